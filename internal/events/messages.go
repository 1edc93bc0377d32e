package events

// Commands consumed by the live controllers. Camera selects the target
// controller by name; empty addresses every controller.

type StartLiveCommand struct {
	Channel string `json:"channel,omitempty"`
	Camera  string `json:"camera,omitempty"`
}

type StopLiveCommand struct {
	Camera string `json:"camera,omitempty"`
}

type SetTriggerModeCommand struct {
	Mode   string `json:"mode"`
	Camera string `json:"camera,omitempty"`
}

type SetTriggerFPSCommand struct {
	FPS    float64 `json:"fps"`
	Camera string  `json:"camera,omitempty"`
}

// SetMicroscopeModeCommand switches the live channel by name.
type SetMicroscopeModeCommand struct {
	Channel string `json:"channel"`
	Camera  string `json:"camera,omitempty"`
}

type SetFilterAutoSwitchCommand struct {
	Enabled bool `json:"enabled"`
}

type UpdateIlluminationCommand struct{}

// SetDisplayResolutionScalingCommand carries a percentage (1-100).
type SetDisplayResolutionScalingCommand struct {
	Scaling float64 `json:"scaling"`
}

func (StartLiveCommand) Kind() string                   { return "start_live" }
func (StopLiveCommand) Kind() string                    { return "stop_live" }
func (SetTriggerModeCommand) Kind() string              { return "set_trigger_mode" }
func (SetTriggerFPSCommand) Kind() string               { return "set_trigger_fps" }
func (SetMicroscopeModeCommand) Kind() string           { return "set_microscope_mode" }
func (SetFilterAutoSwitchCommand) Kind() string         { return "set_filter_auto_switch" }
func (UpdateIlluminationCommand) Kind() string          { return "update_illumination" }
func (SetDisplayResolutionScalingCommand) Kind() string { return "set_display_resolution_scaling" }

// Events published after a state change is committed.

type LiveStateChanged struct {
	Camera  string `json:"camera"`
	IsLive  bool   `json:"is_live"`
	Channel string `json:"channel,omitempty"`
}

type TriggerModeChanged struct {
	Camera string `json:"camera"`
	Mode   string `json:"mode"`
}

type TriggerFPSChanged struct {
	Camera string  `json:"camera"`
	FPS    float64 `json:"fps"`
}

type FilterAutoSwitchChanged struct {
	Enabled bool `json:"enabled"`
}

// GlobalModeChanged is published by the mode gate.
type GlobalModeChanged struct {
	Old    string `json:"old"`
	New    string `json:"new"`
	Reason string `json:"reason"`
}

func (LiveStateChanged) Kind() string        { return "live_state_changed" }
func (TriggerModeChanged) Kind() string      { return "trigger_mode_changed" }
func (TriggerFPSChanged) Kind() string       { return "trigger_fps_changed" }
func (FilterAutoSwitchChanged) Kind() string { return "filter_auto_switch_changed" }
func (GlobalModeChanged) Kind() string       { return "global_mode_changed" }

// IsEvent reports whether m is an outbound event rather than a command.
func IsEvent(m Message) bool {
	switch m.(type) {
	case LiveStateChanged, TriggerModeChanged, TriggerFPSChanged,
		FilterAutoSwitchChanged, GlobalModeChanged:
		return true
	default:
		return false
	}
}
