package filterwheel

import (
	"errors"
	"testing"

	"github.com/cjeanneret/LiveGo/internal/hw/gpio"
	"github.com/cjeanneret/LiveGo/internal/hw/stepper"
)

type fakeMotor struct {
	pos   int
	moves []int
	err   error
}

func (m *fakeMotor) MoveTo(target int) error {
	if m.err != nil {
		return m.err
	}
	m.moves = append(m.moves, target)
	m.pos = target
	return nil
}

func (m *fakeMotor) Position() int         { return m.pos }
func (m *fakeMotor) MicrostepsPerRev() int { return 3200 }

func TestNew_Validation(t *testing.T) {
	cases := []struct {
		name   string
		wheels []Wheel
	}{
		{"zero positions", []Wheel{{ID: 1, Positions: 0, Motor: &fakeMotor{}}}},
		{"no motor", []Wheel{{ID: 1, Positions: 8}}},
		{"duplicate", []Wheel{{ID: 1, Positions: 8, Motor: &fakeMotor{}}, {ID: 1, Positions: 8, Motor: &fakeMotor{}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.wheels...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestIsAvailable(t *testing.T) {
	var nilSvc *Service
	if nilSvc.IsAvailable() {
		t.Error("nil service must be unavailable")
	}
	empty, _ := New()
	if empty.IsAvailable() {
		t.Error("service without wheels must be unavailable")
	}
	s, _ := New(Wheel{ID: 1, Positions: 8, Motor: &fakeMotor{}})
	if !s.IsAvailable() {
		t.Error("service with a wheel must be available")
	}
}

func TestSetPosition(t *testing.T) {
	m := &fakeMotor{}
	s, err := New(Wheel{ID: 1, Positions: 8, Motor: m})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.SetPosition(map[int]int{1: 3}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	if len(m.moves) != 1 || m.moves[0] != 800 {
		t.Errorf("moves = %v, want [800]", m.moves)
	}
	if s.Position(1) != 3 {
		t.Errorf("position = %d, want 3", s.Position(1))
	}

	// same slot: no motion
	_ = s.SetPosition(map[int]int{1: 3})
	if len(m.moves) != 1 {
		t.Errorf("moving to the current slot should not move the motor, moves=%v", m.moves)
	}
}

func TestSetPosition_Errors(t *testing.T) {
	m := &fakeMotor{}
	s, _ := New(Wheel{ID: 1, Positions: 8, Motor: m})

	if err := s.SetPosition(map[int]int{2: 1}); err == nil {
		t.Error("expected error for unknown wheel")
	}
	if err := s.SetPosition(map[int]int{1: 9}); err == nil {
		t.Error("expected error for out-of-range slot")
	}

	m.err = errors.New("stall")
	if err := s.SetPosition(map[int]int{1: 2}); err == nil {
		t.Error("expected motor error to propagate")
	}
	if s.Position(1) != 1 {
		t.Errorf("failed move must keep the old slot, got %d", s.Position(1))
	}
}

func TestDelayOffset(t *testing.T) {
	s, _ := New()
	_ = s.SetDelayOffset(-1.5)
	if got := s.DelayOffset(); got != -1.5 {
		t.Errorf("delay offset = %v, want -1.5", got)
	}
}

func TestWithStepper(t *testing.T) {
	st := stepper.NewStepper(&gpio.MockDriver{}, stepper.Config{
		StepPin: 17, DirPin: 27, StepsPerRev: 200, Microstepping: 1, StepDelay: 1,
	})
	s, err := New(Wheel{ID: 1, Positions: 4, Motor: st})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.SetPosition(map[int]int{1: 4}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	if got := st.Position(); got != 150 {
		t.Errorf("stepper position = %d, want 150", got)
	}
}
