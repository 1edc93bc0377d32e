// Package laser drives the auxiliary lasers synchronized with live view:
// the autofocus (AF) laser used for displacement measurement, and an NL5
// style laser engine with selectable lines and PWM power.
package laser

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cjeanneret/LiveGo/internal/debug"
	"github.com/cjeanneret/LiveGo/internal/hw/gpio"
)

// AFLaser switches the autofocus laser on a single GPIO line.
type AFLaser struct {
	gpio gpio.Driver
	pin  int

	mu sync.Mutex
	on bool
}

// NewAFLaser configures pin as output and leaves the laser off.
func NewAFLaser(g gpio.Driver, pin int) (*AFLaser, error) {
	if err := g.SetupPin(pin, gpio.Output); err != nil {
		return nil, fmt.Errorf("setup af laser pin %d: %w", pin, err)
	}
	if err := g.WritePin(pin, gpio.Low); err != nil {
		return nil, fmt.Errorf("park af laser pin %d: %w", pin, err)
	}
	return &AFLaser{gpio: g, pin: pin}, nil
}

func (l *AFLaser) TurnOnAFLaser() error  { return l.set(true) }
func (l *AFLaser) TurnOffAFLaser() error { return l.set(false) }

func (l *AFLaser) set(on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.gpio.WritePin(l.pin, gpio.Level(on)); err != nil {
		return fmt.Errorf("af laser: %w", err)
	}
	l.on = on
	debug.Verbose("AF laser: on=%v", on)
	return nil
}

// IsOn reports the last commanded state.
func (l *AFLaser) IsOn() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}

// NL5Line wires one laser line of the engine.
type NL5Line struct {
	ID        int // laser channel id (wavelength)
	SelectPin int
	PWMPin    int
}

// NL5 selects one active line at a time and sets per-line power by PWM.
type NL5 struct {
	gpio gpio.Driver

	mu     sync.Mutex
	lines  map[int]NL5Line
	active int
	power  map[int]float64
}

// NewNL5 configures every line's pins. No line is active afterwards.
func NewNL5(g gpio.Driver, lines []NL5Line) (*NL5, error) {
	n := &NL5{
		gpio:  g,
		lines: make(map[int]NL5Line, len(lines)),
		power: make(map[int]float64),
	}
	for _, line := range lines {
		if _, dup := n.lines[line.ID]; dup {
			return nil, fmt.Errorf("duplicate nl5 line %d", line.ID)
		}
		if err := g.SetupPin(line.SelectPin, gpio.Output); err != nil {
			return nil, fmt.Errorf("setup nl5 select pin %d: %w", line.SelectPin, err)
		}
		if err := g.WritePin(line.SelectPin, gpio.Low); err != nil {
			return nil, fmt.Errorf("park nl5 line %d: %w", line.ID, err)
		}
		if line.PWMPin > 0 {
			if err := g.SetupPin(line.PWMPin, gpio.PWM); err != nil {
				return nil, fmt.Errorf("setup nl5 pwm pin %d: %w", line.PWMPin, err)
			}
		}
		n.lines[line.ID] = line
	}
	return n, nil
}

// SetActiveChannel deselects every other line and selects id.
func (n *NL5) SetActiveChannel(id int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.lines[id]; !ok {
		return fmt.Errorf("unknown nl5 line %d", id)
	}
	ids := make([]int, 0, len(n.lines))
	for other := range n.lines {
		ids = append(ids, other)
	}
	sort.Ints(ids)
	for _, other := range ids {
		if other == id {
			continue
		}
		if err := n.gpio.WritePin(n.lines[other].SelectPin, gpio.Low); err != nil {
			return fmt.Errorf("deselect nl5 line %d: %w", other, err)
		}
	}
	if err := n.gpio.WritePin(n.lines[id].SelectPin, gpio.High); err != nil {
		return fmt.Errorf("select nl5 line %d: %w", id, err)
	}
	n.active = id
	debug.Verbose("NL5: active line %d", id)
	return nil
}

// SetLaserPower sets the power of line id in percent.
func (n *NL5) SetLaserPower(id int, percent float64) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("nl5 line %d power must be between 0 and 100, got %g", id, percent)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	line, ok := n.lines[id]
	if !ok {
		return fmt.Errorf("unknown nl5 line %d", id)
	}
	if line.PWMPin > 0 {
		if err := n.gpio.SetDutyCycle(line.PWMPin, percent); err != nil {
			return fmt.Errorf("set nl5 line %d power: %w", id, err)
		}
	}
	n.power[id] = percent
	return nil
}

// Active returns the selected line (0 when none).
func (n *NL5) Active() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

// Power returns the last power set on line id.
func (n *NL5) Power(id int) float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.power[id]
}
