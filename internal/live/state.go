package live

import (
	"errors"
	"fmt"
	"strings"
)

// State is the live controller state.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateLive
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateStarting:
		return "STARTING"
	case StateLive:
		return "LIVE"
	case StateStopping:
		return "STOPPING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// transitions lists the allowed edges of the state machine.
var transitions = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateLive, StateStopped},
	StateLive:     {StateStopping},
	StateStopping: {StateStopped},
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TriggerMode selects what paces exposures.
type TriggerMode int

const (
	TriggerSoftware   TriggerMode = iota // controller timer sends each trigger
	TriggerHardware                      // external line (or the controller timer, if configured)
	TriggerContinuous                    // camera free-runs
)

// ErrUnknownTriggerMode is returned for trigger mode names that are not
// software, hardware or continuous.
var ErrUnknownTriggerMode = errors.New("unknown trigger mode")

// ErrInvalidFPS is returned for a trigger rate that is not a finite
// positive number.
var ErrInvalidFPS = errors.New("trigger fps must be a finite number > 0")

func (m TriggerMode) String() string {
	switch m {
	case TriggerSoftware:
		return "software"
	case TriggerHardware:
		return "hardware"
	case TriggerContinuous:
		return "continuous"
	default:
		return fmt.Sprintf("TriggerMode(%d)", int(m))
	}
}

// ParseTriggerMode parses a trigger mode name, case-insensitively.
func ParseTriggerMode(s string) (TriggerMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "software":
		return TriggerSoftware, nil
	case "hardware":
		return TriggerHardware, nil
	case "continuous":
		return TriggerContinuous, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTriggerMode, s)
	}
}

func (m TriggerMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *TriggerMode) UnmarshalText(b []byte) error {
	v, err := ParseTriggerMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (m TriggerMode) valid() bool {
	switch m {
	case TriggerSoftware, TriggerHardware, TriggerContinuous:
		return true
	default:
		return false
	}
}

// Snapshot is an immutable view of a controller. A new value replaces the
// previous one on every change; readers never see a partial update.
type Snapshot struct {
	Camera         string      `json:"camera"`
	State          State       `json:"state"`
	IsLive         bool        `json:"is_live"`
	CurrentChannel string      `json:"current_channel,omitempty"`
	TriggerMode    TriggerMode `json:"trigger_mode"`
	TriggerFPS     float64     `json:"trigger_fps"`
	IlluminationOn bool        `json:"illumination_on"`
	TriggerID      int64       `json:"trigger_id"`
	ActiveCamera   string      `json:"active_camera"`
	Session        string      `json:"session,omitempty"`
}
