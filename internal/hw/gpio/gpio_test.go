package gpio

import (
	"math"
	"testing"
)

func TestNewDriver_Mock(t *testing.T) {
	drv, err := NewDriver(true, 0)
	if err != nil {
		t.Fatalf("NewDriver(mock): %v", err)
	}
	if _, ok := drv.(*MockDriver); !ok {
		t.Fatalf("expected *MockDriver, got %T", drv)
	}
}

func TestMockDriver_WriteThenRead(t *testing.T) {
	m := &MockDriver{}
	if err := m.WritePin(17, High); err != nil {
		t.Fatalf("WritePin: %v", err)
	}
	lvl, err := m.ReadPin(17)
	if err != nil {
		t.Fatalf("ReadPin: %v", err)
	}
	if lvl != High {
		t.Errorf("level = %v, want High", lvl)
	}
	if lvl, _ := m.ReadPin(18); lvl != Low {
		t.Errorf("untouched pin level = %v, want Low", lvl)
	}
}

func TestMockDriver_SetDutyCycle(t *testing.T) {
	m := &MockDriver{}
	if err := m.SetDutyCycle(12, 42.5); err != nil {
		t.Fatalf("SetDutyCycle: %v", err)
	}
	if got := m.DutyCycle(12); got != 42.5 {
		t.Errorf("duty = %v, want 42.5", got)
	}
}

func TestMockDriver_SetDutyCycleRejectsOutOfRange(t *testing.T) {
	m := &MockDriver{}
	for _, v := range []float64{-1, 100.5, math.NaN()} {
		if err := m.SetDutyCycle(12, v); err == nil {
			t.Errorf("expected error for duty %v", v)
		}
	}
}

func TestPinMode_String(t *testing.T) {
	cases := map[PinMode]string{Input: "input", Output: "output", PWM: "pwm", PinMode(9): "PinMode(9)"}
	for mode, want := range cases {
		if got := mode.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(mode), got, want)
		}
	}
}
