// Package filterwheel drives emission filter wheels mounted on stepper
// motors. Positions are 1-based slots spread evenly over one revolution.
package filterwheel

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cjeanneret/LiveGo/internal/debug"
)

// Motor is the part of a stepper the wheel needs.
type Motor interface {
	MoveTo(target int) error
	Position() int
	MicrostepsPerRev() int
}

// Wheel is one filter wheel.
type Wheel struct {
	ID        int
	Positions int // number of filter slots
	Motor     Motor
}

// Service coordinates one or more wheels.
type Service struct {
	mu          sync.Mutex
	wheels      map[int]Wheel
	delayOffset float64
	current     map[int]int
}

// New returns a Service. A Service without wheels reports unavailable.
func New(wheels ...Wheel) (*Service, error) {
	s := &Service{
		wheels:  make(map[int]Wheel, len(wheels)),
		current: make(map[int]int),
	}
	for _, w := range wheels {
		if w.Positions <= 0 {
			return nil, fmt.Errorf("filter wheel %d: positions must be > 0", w.ID)
		}
		if w.Motor == nil {
			return nil, fmt.Errorf("filter wheel %d: no motor", w.ID)
		}
		if _, dup := s.wheels[w.ID]; dup {
			return nil, fmt.Errorf("duplicate filter wheel %d", w.ID)
		}
		s.wheels[w.ID] = w
		s.current[w.ID] = 1
	}
	return s, nil
}

// IsAvailable reports whether at least one wheel is wired.
func (s *Service) IsAvailable() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.wheels) > 0
}

// SetDelayOffset records the trigger-to-move delay offset in milliseconds.
// In hardware trigger mode this is the negative strobe time so the wheel
// settles before the exposure starts.
func (s *Service) SetDelayOffset(ms float64) error {
	s.mu.Lock()
	s.delayOffset = ms
	s.mu.Unlock()
	debug.Verbose("FilterWheel: delay offset %.3f ms", ms)
	return nil
}

// DelayOffset returns the last delay offset set.
func (s *Service) DelayOffset() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delayOffset
}

// SetPosition moves each wheel in positions (wheel id -> slot) to its slot.
// Wheels are moved in id order; the first failure stops the sequence.
func (s *Service) SetPosition(positions map[int]int) error {
	ids := make([]int, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		w, ok := s.wheels[id]
		if !ok {
			return fmt.Errorf("unknown filter wheel %d", id)
		}
		slot := positions[id]
		if slot < 1 || slot > w.Positions {
			return fmt.Errorf("filter wheel %d: position %d out of range 1..%d", id, slot, w.Positions)
		}
		if s.current[id] == slot {
			continue
		}
		target := slotSteps(w, slot)
		debug.Verbose("FilterWheel %d: slot %d -> %d (step %d)", id, s.current[id], slot, target)
		if err := w.Motor.MoveTo(target); err != nil {
			return fmt.Errorf("move filter wheel %d to %d: %w", id, slot, err)
		}
		s.current[id] = slot
	}
	return nil
}

// Position returns the current slot of wheel id (0 if unknown).
func (s *Service) Position(id int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current[id]
}

func slotSteps(w Wheel, slot int) int {
	return (slot - 1) * w.Motor.MicrostepsPerRev() / w.Positions
}
