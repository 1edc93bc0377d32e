// Package channel holds the acquisition channel configurations
// ("microscope modes") that live view can switch between.
package channel

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Mode is one channel configuration.
type Mode struct {
	Name                   string  `yaml:"name" json:"name"`
	ExposureTimeMs         float64 `yaml:"exposure_time_ms" json:"exposure_time_ms"`
	AnalogGain             float64 `yaml:"analog_gain" json:"analog_gain"`
	IlluminationIntensity  float64 `yaml:"illumination_intensity" json:"illumination_intensity"` // percent
	IlluminationSource     int     `yaml:"illumination_source" json:"illumination_source"`
	EmissionFilterPosition int     `yaml:"emission_filter_position" json:"emission_filter_position"`
	Camera                 string  `yaml:"camera,omitempty" json:"camera,omitempty"` // empty = keep the active camera
	LaserChannel           int     `yaml:"laser_channel,omitempty" json:"laser_channel,omitempty"` // NL5 line, 0 = none
}

// Validate checks the values a controller would push to hardware.
func (m Mode) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("channel name is required")
	}
	if m.ExposureTimeMs <= 0 {
		return fmt.Errorf("channel %q: exposure_time_ms must be > 0", m.Name)
	}
	if m.IlluminationIntensity < 0 || m.IlluminationIntensity > 100 {
		return fmt.Errorf("channel %q: illumination_intensity must be between 0 and 100", m.Name)
	}
	if m.EmissionFilterPosition < 0 {
		return fmt.Errorf("channel %q: emission_filter_position must be >= 0", m.Name)
	}
	return nil
}

// Registry looks channel modes up by name.
type Registry struct {
	mu    sync.RWMutex
	modes map[string]Mode
}

// NewRegistry validates and indexes modes.
func NewRegistry(modes ...Mode) (*Registry, error) {
	r := &Registry{modes: make(map[string]Mode, len(modes))}
	for _, m := range modes {
		if err := r.Add(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers m. Names are unique.
func (r *Registry) Add(m Mode) error {
	if err := m.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.modes[m.Name]; dup {
		return fmt.Errorf("duplicate channel %q", m.Name)
	}
	r.modes[m.Name] = m
	return nil
}

// Lookup returns the mode registered under name.
func (r *Registry) Lookup(name string) (Mode, bool) {
	if r == nil {
		return Mode{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modes[name]
	return m, ok
}

// All returns every registered mode sorted by name.
func (r *Registry) All() []Mode {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Mode, 0, len(r.modes))
	for _, m := range r.modes {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
