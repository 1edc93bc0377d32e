package illumination

import (
	"testing"

	"github.com/cjeanneret/LiveGo/internal/hw/gpio"
)

func newController(t *testing.T) (*GPIOController, *gpio.MockDriver) {
	t.Helper()
	drv := &gpio.MockDriver{}
	c, err := NewGPIOController(drv, []Channel{
		{ID: 405, EnablePin: 5, PWMPin: 12},
		{ID: 488, EnablePin: 6, PWMPin: 13},
		{ID: 0, EnablePin: 16},
	})
	if err != nil {
		t.Fatalf("NewGPIOController: %v", err)
	}
	return c, drv
}

func TestNewGPIOController_DuplicateChannel(t *testing.T) {
	_, err := NewGPIOController(&gpio.MockDriver{}, []Channel{
		{ID: 405, EnablePin: 5},
		{ID: 405, EnablePin: 6},
	})
	if err == nil {
		t.Fatal("expected duplicate channel error")
	}
}

func TestTurnOnOff(t *testing.T) {
	c, drv := newController(t)

	if err := c.TurnOnChannel(488); err != nil {
		t.Fatalf("TurnOnChannel: %v", err)
	}
	if lvl, _ := drv.ReadPin(6); lvl != gpio.High {
		t.Errorf("enable pin level = %v, want High", lvl)
	}
	if !c.IsOn(488) {
		t.Error("channel 488 should be on")
	}

	if err := c.TurnOffChannel(488); err != nil {
		t.Fatalf("TurnOffChannel: %v", err)
	}
	if lvl, _ := drv.ReadPin(6); lvl != gpio.Low {
		t.Errorf("enable pin level = %v, want Low", lvl)
	}
}

func TestUnknownChannel(t *testing.T) {
	c, _ := newController(t)
	if err := c.TurnOnChannel(730); err == nil {
		t.Error("expected error for unknown channel")
	}
	if c.HasChannel(730) {
		t.Error("HasChannel(730) should be false")
	}
}

func TestSetChannelPower(t *testing.T) {
	c, drv := newController(t)

	if err := c.SetChannelPower(405, 35); err != nil {
		t.Fatalf("SetChannelPower: %v", err)
	}
	if got := drv.DutyCycle(12); got != 35 {
		t.Errorf("duty = %v, want 35", got)
	}
	if got := c.Power(405); got != 35 {
		t.Errorf("power = %v, want 35", got)
	}

	// channel without PWM still records power
	if err := c.SetChannelPower(0, 80); err != nil {
		t.Fatalf("SetChannelPower(no pwm): %v", err)
	}

	for _, bad := range []float64{-5, 101} {
		if err := c.SetChannelPower(405, bad); err == nil {
			t.Errorf("expected error for power %v", bad)
		}
	}
}

func TestAllOff(t *testing.T) {
	c, _ := newController(t)
	_ = c.TurnOnChannel(405)
	_ = c.TurnOnChannel(488)

	if err := c.AllOff(); err != nil {
		t.Fatalf("AllOff: %v", err)
	}
	if c.IsOn(405) || c.IsOn(488) {
		t.Error("all channels should be off")
	}
}
