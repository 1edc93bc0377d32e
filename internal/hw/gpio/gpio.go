package gpio

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/LiveGo/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input, output or hardware PWM.
type PinMode int

const (
	Input PinMode = iota
	Output
	PWM
)

func (m PinMode) String() string {
	switch m {
	case Input:
		return "input"
	case Output:
		return "output"
	case PWM:
		return "pwm"
	default:
		return fmt.Sprintf("PinMode(%d)", int(m))
	}
}

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	// SetDutyCycle drives a PWM-capable pin at percent (0-100) duty.
	SetDutyCycle(pin int, percent float64) error
	Close() error
}

// MockDriver is a test implementation that logs actions and remembers
// the last level and duty cycle written per pin.
// Used for development on PC or testing.
type MockDriver struct {
	mu     sync.Mutex
	levels map[int]Level
	duty   map[int]float64
}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool, pwmFreqHz int) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return &MockDriver{}, nil
	}
	return NewRPiRealDriver(pwmFreqHz)
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.levels == nil {
		m.levels = make(map[int]Level)
	}
	m.levels[pin] = level
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin], nil
}

func (m *MockDriver) SetDutyCycle(pin int, percent float64) error {
	if err := checkDuty(percent); err != nil {
		return err
	}
	debug.GPIO("SetDutyCycle", pin, percent)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.duty == nil {
		m.duty = make(map[int]float64)
	}
	m.duty[pin] = percent
	return nil
}

// DutyCycle returns the last duty cycle written to pin.
func (m *MockDriver) DutyCycle(pin int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duty[pin]
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}

func checkDuty(percent float64) error {
	if percent < 0 || percent > 100 || percent != percent {
		return fmt.Errorf("duty cycle must be between 0 and 100, got %g", percent)
	}
	return nil
}
