// Package illumination drives the light engine: one enable line and one
// PWM intensity line per illumination source.
package illumination

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cjeanneret/LiveGo/internal/debug"
	"github.com/cjeanneret/LiveGo/internal/hw/gpio"
)

// Service is the contract the live controller uses to synchronize light
// with exposure.
type Service interface {
	TurnOnChannel(id int) error
	TurnOffChannel(id int) error
	SetChannelPower(id int, percent float64) error
}

// Channel wires one illumination source to GPIO.
type Channel struct {
	ID        int // illumination source id (e.g. wavelength 405, 488)
	EnablePin int
	PWMPin    int // 0 = no intensity control
}

// GPIOController implements Service on a gpio.Driver.
type GPIOController struct {
	gpio     gpio.Driver
	mu       sync.Mutex
	channels map[int]Channel
	on       map[int]bool
	power    map[int]float64
}

// NewGPIOController configures every channel's pins and leaves all light off.
func NewGPIOController(g gpio.Driver, channels []Channel) (*GPIOController, error) {
	c := &GPIOController{
		gpio:     g,
		channels: make(map[int]Channel, len(channels)),
		on:       make(map[int]bool),
		power:    make(map[int]float64),
	}
	for _, ch := range channels {
		if _, dup := c.channels[ch.ID]; dup {
			return nil, fmt.Errorf("duplicate illumination channel %d", ch.ID)
		}
		if err := g.SetupPin(ch.EnablePin, gpio.Output); err != nil {
			return nil, fmt.Errorf("setup enable pin for channel %d: %w", ch.ID, err)
		}
		if err := g.WritePin(ch.EnablePin, gpio.Low); err != nil {
			return nil, fmt.Errorf("park channel %d: %w", ch.ID, err)
		}
		if ch.PWMPin > 0 {
			if err := g.SetupPin(ch.PWMPin, gpio.PWM); err != nil {
				return nil, fmt.Errorf("setup pwm pin for channel %d: %w", ch.ID, err)
			}
		}
		c.channels[ch.ID] = ch
	}
	return c, nil
}

func (c *GPIOController) channel(id int) (Channel, error) {
	ch, ok := c.channels[id]
	if !ok {
		return Channel{}, fmt.Errorf("unknown illumination channel %d", id)
	}
	return ch, nil
}

// HasChannel reports whether id is wired.
func (c *GPIOController) HasChannel(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.channels[id]
	return ok
}

func (c *GPIOController) TurnOnChannel(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, err := c.channel(id)
	if err != nil {
		return err
	}
	if err := c.gpio.WritePin(ch.EnablePin, gpio.High); err != nil {
		return fmt.Errorf("turn on channel %d: %w", id, err)
	}
	c.on[id] = true
	debug.Verbose("Illumination: channel %d on", id)
	return nil
}

func (c *GPIOController) TurnOffChannel(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, err := c.channel(id)
	if err != nil {
		return err
	}
	if err := c.gpio.WritePin(ch.EnablePin, gpio.Low); err != nil {
		return fmt.Errorf("turn off channel %d: %w", id, err)
	}
	c.on[id] = false
	debug.Verbose("Illumination: channel %d off", id)
	return nil
}

func (c *GPIOController) SetChannelPower(id int, percent float64) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("channel %d power must be between 0 and 100, got %g", id, percent)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, err := c.channel(id)
	if err != nil {
		return err
	}
	if ch.PWMPin > 0 {
		if err := c.gpio.SetDutyCycle(ch.PWMPin, percent); err != nil {
			return fmt.Errorf("set channel %d power: %w", id, err)
		}
	}
	c.power[id] = percent
	debug.Verbose("Illumination: channel %d power %.1f%%", id, percent)
	return nil
}

// IsOn reports whether channel id is currently enabled.
func (c *GPIOController) IsOn(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.on[id]
}

// Power returns the last power set on channel id.
func (c *GPIOController) Power(id int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.power[id]
}

// AllOff turns every channel off, collecting the first error.
func (c *GPIOController) AllOff() error {
	c.mu.Lock()
	ids := make([]int, 0, len(c.channels))
	for id := range c.channels {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	sort.Ints(ids)

	var firstErr error
	for _, id := range ids {
		if err := c.TurnOffChannel(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
