package main

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cjeanneret/LiveGo/internal/clock"
	"github.com/cjeanneret/LiveGo/internal/config"
	"github.com/cjeanneret/LiveGo/internal/events"
	"github.com/cjeanneret/LiveGo/internal/hw/gpio"
	"github.com/cjeanneret/LiveGo/internal/modegate"
)

// ---------- validateCLIOverrides ----------

func TestValidateCLIOverrides_AllZero(t *testing.T) {
	if err := validateCLIOverrides(0, ""); err != nil {
		t.Errorf("zero values should be valid (use config defaults), got: %v", err)
	}
}

func TestValidateCLIOverrides_Valid(t *testing.T) {
	cases := []struct {
		name string
		fps  float64
		mode string
	}{
		{"small_fps", 0.001, ""},
		{"high_fps", 120, ""},
		{"software", 0, "software"},
		{"upper_case", 0, "HARDWARE"},
		{"both", 5, "continuous"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.fps, tc.mode); err != nil {
				t.Errorf("expected valid, got: %v", err)
			}
		})
	}
}

func TestValidateCLIOverrides_Invalid(t *testing.T) {
	cases := []struct {
		name string
		fps  float64
		mode string
	}{
		{"negative_fps", -1, ""},
		{"NaN", math.NaN(), ""},
		{"+Inf", math.Inf(1), ""},
		{"-Inf", math.Inf(-1), ""},
		{"interval_overflow", 1e-10, ""},
		{"unknown_mode", 0, "strobe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.fps, tc.mode); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// ---------- applyOverrides ----------

func TestApplyOverrides(t *testing.T) {
	cfg := &config.Config{Live: config.LiveConfig{FPS: 10, TriggerMode: "software"}}

	applyOverrides(cfg, 0, "")
	if cfg.Live.FPS != 10 || cfg.Live.TriggerMode != "software" {
		t.Errorf("zero overrides changed config: %+v", cfg.Live)
	}

	applyOverrides(cfg, 25, "hardware")
	if cfg.Live.FPS != 25 || cfg.Live.TriggerMode != "hardware" {
		t.Errorf("overrides not applied: %+v", cfg.Live)
	}
}

// ---------- webPortFlag ----------

func TestWebPortFlag_EmptyString(t *testing.T) {
	w := &webPortFlag{defaultPort: 8080}
	if err := w.Set(""); err != nil {
		t.Fatalf("Set(\"\") error: %v", err)
	}
	if w.port() != 8080 {
		t.Errorf("expected default port 8080, got %d", w.port())
	}
}

func TestWebPortFlag_ValidPorts(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"8080", 8080},
		{"1", 1},
		{"65535", 65535},
		{"3000", 3000},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(tc.input); err != nil {
				t.Fatalf("Set(%q) error: %v", tc.input, err)
			}
			if w.port() != tc.want {
				t.Errorf("port() = %d, want %d", w.port(), tc.want)
			}
		})
	}
}

func TestWebPortFlag_InvalidPorts(t *testing.T) {
	for _, input := range []string{"0", "65536", "-1", "abc", "8080.5"} {
		t.Run(input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(input); err == nil {
				t.Errorf("Set(%q) should fail, got nil", input)
			}
		})
	}
}

func TestWebPortFlag_String(t *testing.T) {
	w := &webPortFlag{val: 0}
	if s := w.String(); s != "0" {
		t.Errorf("String() = %q, want \"0\"", s)
	}
	w.val = 9090
	if s := w.String(); s != "9090" {
		t.Errorf("String() = %q, want \"9090\"", s)
	}
}

// ---------- buildApp ----------

func loadDefault(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join("..", "..", "configs", "default.yaml"))
	if err != nil {
		t.Fatalf("load default config: %v", err)
	}
	cfg.FilterWheel.Stepper.StepDelayUs = 1
	return cfg
}

func TestBuildApp_LiveSession(t *testing.T) {
	cfg := loadDefault(t)
	g := &gpio.MockDriver{}
	bus := events.NewBus()
	reg := prometheus.NewRegistry()
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	a, err := buildApp(cfg, g, bus, reg, clk)
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer a.shutdown()

	// Initial channel: BF LED matrix at 20% on source 0 (PWM pin 12).
	if d := g.DutyCycle(12); d != 20 {
		t.Errorf("BF power duty = %v, want 20", d)
	}

	bus.Publish(events.StartLiveCommand{})
	bus.Drain()
	snap := a.ctrl.Snapshot()
	if !snap.IsLive || snap.CurrentChannel != "BF LED matrix full" {
		t.Fatalf("after start: %+v", snap)
	}
	if a.gate.Mode() != modegate.ModeLive {
		t.Errorf("gate mode = %s, want LIVE", a.gate.Mode())
	}

	clk.Advance(time.Second)
	if id := a.ctrl.Snapshot().TriggerID; id < 1 {
		t.Errorf("no trigger after 1s at 10 fps (trigger id %d)", id)
	}
	if !a.illum.IsOn(0) {
		t.Error("software triggering should turn the BF light on")
	}
	if got := triggersTotal(t, reg); got < 1 {
		t.Errorf("livego_triggers_total = %v", got)
	}

	bus.Publish(events.SetMicroscopeModeCommand{Channel: "Fluorescence 488 nm Ex"})
	bus.Drain()
	if pos := a.wheel.Position(1); pos != 2 {
		t.Errorf("emission wheel at slot %d, want 2", pos)
	}
	if d := g.DutyCycle(18); d != 60 {
		t.Errorf("NL5 488 duty = %v, want 60", d)
	}

	bus.Publish(events.StopLiveCommand{Camera: "main"})
	bus.Drain()
	if a.ctrl.Snapshot().IsLive {
		t.Error("controller should be stopped")
	}
	if a.gate.Mode() != modegate.ModeIdle {
		t.Errorf("gate mode = %s, want IDLE", a.gate.Mode())
	}
}

// triggersTotal sums livego_triggers_total over every camera.
func triggersTotal(t *testing.T, reg *prometheus.Registry) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, mf := range mfs {
		if mf.GetName() == "livego_triggers_total" {
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func TestBuildApp_Minimal(t *testing.T) {
	cfg := &config.Config{
		Cameras: []config.CameraConfig{{Name: "main", Type: "gpio_trigger", TriggerPin: 17, ExposureMs: 10}},
		Live:    config.LiveConfig{Name: "main", ActiveCamera: "main", TriggerMode: "continuous", FPS: 1},
	}
	off := false
	cfg.Live.ControlIllumination = &off

	a, err := buildApp(cfg, &gpio.MockDriver{}, events.NewBus(), nil, clock.NewFake(time.Time{}))
	if err != nil {
		t.Fatalf("buildApp without optional hardware: %v", err)
	}
	defer a.shutdown()
	if a.illum != nil || a.wheel != nil {
		t.Error("optional hardware should stay unset")
	}
	if err := a.ctrl.StartLive(""); err != nil {
		t.Fatalf("StartLive: %v", err)
	}
	if !a.ctrl.Snapshot().IsLive {
		t.Error("should be live")
	}
}

func TestNewCameraFromConfig_Unsupported(t *testing.T) {
	if _, err := newCameraFromConfig(&gpio.MockDriver{}, config.CameraConfig{Type: "usb"}, clock.Real()); err == nil {
		t.Error("expected error for unsupported camera type")
	}
}
