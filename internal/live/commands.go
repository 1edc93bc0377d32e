package live

import (
	"github.com/cjeanneret/LiveGo/internal/debug"
	"github.com/cjeanneret/LiveGo/internal/events"
)

// Attach subscribes the controller to its commands on b. Commands naming
// another camera are ignored; an empty camera addresses every controller.
// The returned function detaches it.
func (c *Controller) Attach(b *events.Bus) func() {
	unsubs := []func(){
		events.Subscribe(b, func(cmd events.StartLiveCommand) {
			if c.addressed(cmd.Camera) {
				_ = c.StartLive(cmd.Channel)
			}
		}),
		events.Subscribe(b, func(cmd events.StopLiveCommand) {
			if c.addressed(cmd.Camera) {
				_ = c.StopLive()
			}
		}),
		events.Subscribe(b, func(cmd events.SetTriggerModeCommand) {
			if !c.addressed(cmd.Camera) {
				return
			}
			mode, err := ParseTriggerMode(cmd.Mode)
			if err != nil {
				debug.Warn("Live %s: %v", c.name, err)
				return
			}
			if err := c.SetTriggerMode(mode); err != nil {
				debug.Warn("Live %s: %v", c.name, err)
			}
		}),
		events.Subscribe(b, func(cmd events.SetTriggerFPSCommand) {
			if !c.addressed(cmd.Camera) {
				return
			}
			if err := c.SetTriggerFPS(cmd.FPS); err != nil {
				debug.Warn("Live %s: %v", c.name, err)
			}
		}),
		events.Subscribe(b, func(cmd events.SetMicroscopeModeCommand) {
			if !c.addressed(cmd.Camera) {
				return
			}
			m, ok := c.channels.Lookup(cmd.Channel)
			if !ok {
				debug.Warn("Live %s: unknown channel %q", c.name, cmd.Channel)
				return
			}
			if err := c.SetMicroscopeMode(m); err != nil {
				debug.Warn("Live %s: %v", c.name, err)
			}
		}),
		events.Subscribe(b, func(cmd events.SetFilterAutoSwitchCommand) {
			c.SetFilterAutoSwitch(cmd.Enabled)
		}),
		events.Subscribe(b, func(events.UpdateIlluminationCommand) {
			c.UpdateIllumination()
		}),
		events.Subscribe(b, func(cmd events.SetDisplayResolutionScalingCommand) {
			if err := c.SetDisplayResolutionScaling(cmd.Scaling); err != nil {
				debug.Warn("Live %s: %v", c.name, err)
			}
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (c *Controller) addressed(cam string) bool {
	return cam == "" || cam == c.name
}
