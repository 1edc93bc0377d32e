package stepper

import (
	"sync"
	"time"

	"github.com/cjeanneret/LiveGo/internal/debug"
	"github.com/cjeanneret/LiveGo/internal/hw/gpio"
)

// Config holds the hardware configuration for a stepper motor.
type Config struct {
	StepPin       int
	DirPin        int
	EnablePin     int // A4988 ENABLE pin (BCM). 0 = not used. Active LOW.
	StepsPerRev   int
	Microstepping int
	StepDelay     time.Duration // delay per half-cycle of STEP pulse. Total step = 2*StepDelay.
}

// Stepper drives an A4988-style step/dir driver and keeps track of the
// absolute microstep position since construction (or the last Home).
type Stepper struct {
	gpio  gpio.Driver
	cfg   Config
	delay time.Duration // delay between STEP pulse half-cycles

	mu       sync.Mutex
	position int
}

// NewStepper creates a new stepper motor controller.
// cfg.StepDelay: if 0, defaults to 1ms.
func NewStepper(g gpio.Driver, cfg Config) *Stepper {
	_ = g.SetupPin(cfg.StepPin, gpio.Output)
	_ = g.SetupPin(cfg.DirPin, gpio.Output)

	delay := cfg.StepDelay
	if delay <= 0 {
		delay = 1 * time.Millisecond
	}

	s := &Stepper{
		gpio:  g,
		cfg:   cfg,
		delay: delay,
	}

	// A4988 ENABLE: active LOW. LOW = enabled, HIGH = disabled.
	if cfg.EnablePin > 0 {
		_ = g.SetupPin(cfg.EnablePin, gpio.Output)
		_ = g.WritePin(cfg.EnablePin, gpio.Low) // enable by default
	}

	return s
}

// MicrostepsPerRev returns the number of microsteps in a full revolution.
func (s *Stepper) MicrostepsPerRev() int {
	ms := s.cfg.Microstepping
	if ms <= 0 {
		ms = 1
	}
	return s.cfg.StepsPerRev * ms
}

// Position returns the absolute microstep position.
func (s *Stepper) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Home declares the current physical position as zero.
func (s *Stepper) Home() {
	s.mu.Lock()
	s.position = 0
	s.mu.Unlock()
}

// MoveTo moves to an absolute microstep position.
func (s *Stepper) MoveTo(target int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveLocked(target - s.position)
}

// MoveSteps moves the motor by a number of steps (positive or negative).
func (s *Stepper) MoveSteps(steps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveLocked(steps)
}

func (s *Stepper) moveLocked(steps int) error {
	if steps == 0 {
		return nil
	}

	dirLevel := gpio.High
	direction := "forward"
	sign := 1
	if steps < 0 {
		dirLevel = gpio.Low
		direction = "backward"
		sign = -1
		steps = -steps
	}

	debug.Printf("Stepper: moving %d steps (%s) on pin %d", steps, direction, s.cfg.StepPin)

	if err := s.gpio.WritePin(s.cfg.DirPin, dirLevel); err != nil {
		return err
	}

	for i := 0; i < steps; i++ {
		if err := s.stepPulse(); err != nil {
			return err
		}
		s.position += sign
	}
	return nil
}

func (s *Stepper) stepPulse() error {
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.High); err != nil {
		return err
	}
	time.Sleep(s.delay)
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.Low); err != nil {
		return err
	}
	time.Sleep(s.delay)
	return nil
}

// Enable turns on the motor driver (A4988 ENABLE=LOW). Motor holds position.
func (s *Stepper) Enable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.Low)
}

// Disable turns off the motor driver (A4988 ENABLE=HIGH). Motor freewheels.
func (s *Stepper) Disable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.High)
}
