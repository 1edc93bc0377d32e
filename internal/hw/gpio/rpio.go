package gpio

import (
	"fmt"
	"math"
	"sync"

	"github.com/cjeanneret/LiveGo/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// pwmCycleLen is the PWM range; duty is expressed in 1/1000 steps.
const pwmCycleLen = 1000

// RPiDriver is the real implementation for Raspberry Pi using go-rpio.
// Trigger pulses come from timer goroutines while illumination is driven
// from command handlers, so pin bookkeeping is guarded.
type RPiDriver struct {
	mu      sync.Mutex
	pins    map[int]rpio.Pin
	pwmFreq int
}

// NewRPiRealDriver creates a real GPIO driver for Raspberry Pi.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root
// (hardware PWM needs /dev/mem).
func NewRPiRealDriver(pwmFreqHz int) (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}

	debug.Verbose("GPIO memory mapped successfully")

	if pwmFreqHz <= 0 {
		pwmFreqHz = 100000
	}
	return &RPiDriver{
		pins:    make(map[int]rpio.Pin),
		pwmFreq: pwmFreqHz,
	}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setupLocked(pin, mode)
}

func (r *RPiDriver) setupLocked(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)

	p := rpio.Pin(pin)
	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	case PWM:
		p.Mode(rpio.Pwm)
		p.Freq(r.pwmFreq * pwmCycleLen)
		rpio.StartPwm()
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}
	r.pins[pin] = p
	return nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as output
		if err := r.setupLocked(pin, Output); err != nil {
			return err
		}
		p = r.pins[pin]
	}

	if level == High {
		p.High()
	} else {
		p.Low()
	}

	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)

	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as input
		if err := r.setupLocked(pin, Input); err != nil {
			return Low, err
		}
		p = r.pins[pin]
	}

	if p.Read() == rpio.High {
		return High, nil
	}
	return Low, nil
}

func (r *RPiDriver) SetDutyCycle(pin int, percent float64) error {
	if err := checkDuty(percent); err != nil {
		return err
	}
	debug.GPIO("SetDutyCycle", pin, percent)

	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pins[pin]
	if !ok {
		if err := r.setupLocked(pin, PWM); err != nil {
			return err
		}
		p = r.pins[pin]
	}
	duty := uint32(math.Round(percent / 100 * pwmCycleLen))
	p.DutyCycle(duty, pwmCycleLen)
	return nil
}

func (r *RPiDriver) Close() error {
	debug.Trace("GPIO Close (real driver)")

	r.mu.Lock()
	defer r.mu.Unlock()
	rpio.StopPwm()
	// Reset all pins to input (safe state)
	for pin, p := range r.pins {
		debug.Verbose("Resetting pin %d to input", pin)
		p.Input()
	}

	return rpio.Close()
}
