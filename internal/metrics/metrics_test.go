package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLive_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLive(reg)

	m.Trigger("main")
	m.Trigger("main")
	m.Skip("main")
	m.Transition("main", "LIVE")
	m.FPS("main", 12.5)
	m.Live("main", true)
	m.Illumination("main", false)

	if got := testutil.ToFloat64(m.triggers.WithLabelValues("main")); got != 2 {
		t.Errorf("triggers = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.skips.WithLabelValues("main")); got != 1 {
		t.Errorf("skips = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.transitions.WithLabelValues("main", "LIVE")); got != 1 {
		t.Errorf("transitions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.fps.WithLabelValues("main")); got != 12.5 {
		t.Errorf("fps = %v, want 12.5", got)
	}
	if got := testutil.ToFloat64(m.live.WithLabelValues("main")); got != 1 {
		t.Errorf("live = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.illumination.WithLabelValues("main")); got != 0 {
		t.Errorf("illumination = %v, want 0", got)
	}

	m.SendTimer("main").ObserveDuration()
	if n := testutil.CollectAndCount(m.sendDuration); n != 1 {
		t.Errorf("send duration series = %d, want 1", n)
	}
}

func TestLive_NilIsNoop(t *testing.T) {
	var m *Live
	m.Trigger("main")
	m.Skip("main")
	m.FPS("main", 1)
	m.Live("main", true)
	m.Illumination("main", true)
	m.Transition("main", "LIVE")
	if m.SendTimer("main") != nil {
		t.Error("nil metrics should return a nil timer")
	}
}

func TestNewLive_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewLive(reg)
	defer func() {
		if recover() == nil {
			t.Error("registering twice on one registry should panic")
		}
	}()
	NewLive(reg)
}
