package camera

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/LiveGo/internal/clock"
	"github.com/cjeanneret/LiveGo/internal/debug"
	"github.com/cjeanneret/LiveGo/internal/hw/gpio"
)

// GPIOTriggerConfig describes a camera whose trigger input is wired to a
// GPIO line.
type GPIOTriggerConfig struct {
	Name         string
	TriggerPin   int
	ActiveLow    bool          // trigger asserted by pulling the line LOW
	PulseWidth   time.Duration // how long the line stays asserted
	Readout      time.Duration // sensor readout time after exposure
	Strobe       time.Duration // trigger-to-exposure delay
	ExposureMs   float64       // initial exposure
	SupportsGain bool
}

// GPIOTrigger is a Camera implementation for an industrial camera
// triggered through its opto-isolated trigger input:
// - TRIGGER: asserted for PulseWidth to start one exposure
// - GND: connected to Raspberry Pi ground
//
// Readiness is derived from timing: after a trigger the sensor is busy for
// exposure + readout. Frame delivery is reported through FrameFunc once that
// time has elapsed, which stands in for the vendor SDK's frame thread.
type GPIOTrigger struct {
	gpio  gpio.Driver
	cfg   GPIOTriggerConfig
	clock clock.Clock
	sleep func(time.Duration)

	mu         sync.Mutex
	streaming  bool
	callbacks  bool
	mode       AcquisitionMode
	exposureMs float64
	gain       float64
	busyUntil  time.Time
	frameID    int64
	onFrame    FrameFunc
	freeRun    clock.Timer
}

// NewGPIOTrigger creates a GPIO-triggered camera and parks the trigger line
// in its inactive state.
func NewGPIOTrigger(g gpio.Driver, cfg GPIOTriggerConfig, clk clock.Clock) *GPIOTrigger {
	if clk == nil {
		clk = clock.Real()
	}
	if cfg.PulseWidth <= 0 {
		cfg.PulseWidth = 100 * time.Microsecond
	}
	if cfg.ExposureMs <= 0 {
		cfg.ExposureMs = 20
	}

	_ = g.SetupPin(cfg.TriggerPin, gpio.Output)
	_ = g.WritePin(cfg.TriggerPin, inactive(cfg.ActiveLow))

	return &GPIOTrigger{
		gpio:       g,
		cfg:        cfg,
		clock:      clk,
		sleep:      time.Sleep,
		mode:       SoftwareTrigger,
		exposureMs: cfg.ExposureMs,
	}
}

func inactive(activeLow bool) gpio.Level {
	if activeLow {
		return gpio.High
	}
	return gpio.Low
}

// Name returns the configured camera name.
func (c *GPIOTrigger) Name() string { return c.cfg.Name }

// SetFrameCallback registers the frame delivery callback.
func (c *GPIOTrigger) SetFrameCallback(fn FrameFunc) {
	c.mu.Lock()
	c.onFrame = fn
	c.mu.Unlock()
}

func (c *GPIOTrigger) StartStreaming() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streaming {
		return nil
	}
	c.streaming = true
	debug.Verbose("Camera %s: streaming started (mode=%s)", c.cfg.Name, c.mode)
	if c.mode == Continuous {
		c.armFreeRunLocked()
	}
	return nil
}

func (c *GPIOTrigger) StopStreaming() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streaming = false
	c.stopFreeRunLocked()
	debug.Verbose("Camera %s: streaming stopped", c.cfg.Name)
	return nil
}

func (c *GPIOTrigger) EnableCallbacks(enabled bool) error {
	c.mu.Lock()
	c.callbacks = enabled
	c.mu.Unlock()
	return nil
}

// SendTrigger pulses the trigger line: assert, hold, release.
func (c *GPIOTrigger) SendTrigger() error {
	c.mu.Lock()
	if !c.streaming {
		c.mu.Unlock()
		return ErrNotStreaming
	}
	if c.mode == Continuous {
		c.mu.Unlock()
		return fmt.Errorf("camera %s: trigger ignored in %s mode", c.cfg.Name, c.mode)
	}
	now := c.clock.Now()
	c.busyUntil = now.Add(c.cfg.Strobe + c.totalFrameTimeLocked())
	c.mu.Unlock()

	debug.Trace("Camera %s: asserting TRIGGER (pin %d)", c.cfg.Name, c.cfg.TriggerPin)
	if err := c.gpio.WritePin(c.cfg.TriggerPin, !inactive(c.cfg.ActiveLow)); err != nil {
		return fmt.Errorf("assert trigger: %w", err)
	}
	c.sleep(c.cfg.PulseWidth)
	if err := c.gpio.WritePin(c.cfg.TriggerPin, inactive(c.cfg.ActiveLow)); err != nil {
		return fmt.Errorf("release trigger: %w", err)
	}

	c.scheduleFrame()
	return nil
}

func (c *GPIOTrigger) scheduleFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.callbacks || c.onFrame == nil {
		return
	}
	c.frameID++
	id, fn := c.frameID, c.onFrame
	c.clock.AfterFunc(c.cfg.Strobe+c.totalFrameTimeLocked(), func() { fn(id) })
}

func (c *GPIOTrigger) armFreeRunLocked() {
	c.stopFreeRunLocked()
	period := c.totalFrameTimeLocked()
	var tick func()
	tick = func() {
		c.mu.Lock()
		if !c.streaming || c.mode != Continuous {
			c.mu.Unlock()
			return
		}
		var fn FrameFunc
		var id int64
		if c.callbacks && c.onFrame != nil {
			c.frameID++
			fn, id = c.onFrame, c.frameID
		}
		c.freeRun = c.clock.AfterFunc(period, tick)
		c.mu.Unlock()
		if fn != nil {
			fn(id)
		}
	}
	c.freeRun = c.clock.AfterFunc(period, tick)
}

func (c *GPIOTrigger) stopFreeRunLocked() {
	if c.freeRun != nil {
		c.freeRun.Stop()
		c.freeRun = nil
	}
}

func (c *GPIOTrigger) ReadyForTrigger() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming && !c.clock.Now().Before(c.busyUntil)
}

func (c *GPIOTrigger) TotalFrameTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalFrameTimeLocked()
}

func (c *GPIOTrigger) totalFrameTimeLocked() time.Duration {
	return time.Duration(c.exposureMs*float64(time.Millisecond)) + c.cfg.Readout
}

func (c *GPIOTrigger) StrobeTime() time.Duration { return c.cfg.Strobe }

func (c *GPIOTrigger) SetExposureTime(ms float64) error {
	if ms <= 0 {
		return fmt.Errorf("exposure must be > 0 ms, got %g", ms)
	}
	c.mu.Lock()
	c.exposureMs = ms
	c.mu.Unlock()
	debug.Verbose("Camera %s: exposure %.3f ms", c.cfg.Name, ms)
	return nil
}

// ExposureTime returns the current exposure in milliseconds.
func (c *GPIOTrigger) ExposureTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exposureMs
}

func (c *GPIOTrigger) SetAnalogGain(gain float64) error {
	if !c.cfg.SupportsGain {
		return fmt.Errorf("camera %s analog gain: %w", c.cfg.Name, errors.ErrUnsupported)
	}
	c.mu.Lock()
	c.gain = gain
	c.mu.Unlock()
	return nil
}

func (c *GPIOTrigger) SetAcquisitionMode(mode AcquisitionMode) error {
	switch mode {
	case SoftwareTrigger, HardwareTrigger, Continuous:
	default:
		return fmt.Errorf("camera %s: unsupported acquisition mode %s", c.cfg.Name, mode)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	if mode == Continuous && c.streaming {
		c.armFreeRunLocked()
	} else {
		c.stopFreeRunLocked()
	}
	debug.Verbose("Camera %s: acquisition mode %s", c.cfg.Name, mode)
	return nil
}

// AcquisitionMode returns the current acquisition mode.
func (c *GPIOTrigger) AcquisitionMode() AcquisitionMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}
