// Package metrics exposes the live controllers' activity to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Live groups the collectors updated by the live controllers. A nil *Live
// is valid and records nothing.
type Live struct {
	triggers     *prometheus.CounterVec
	skips        *prometheus.CounterVec
	fps          *prometheus.GaugeVec
	live         *prometheus.GaugeVec
	illumination *prometheus.GaugeVec
	transitions  *prometheus.CounterVec
	sendDuration *prometheus.HistogramVec
}

// NewLive creates the collectors and registers them on reg.
func NewLive(reg prometheus.Registerer) *Live {
	m := &Live{
		triggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livego_triggers_total",
				Help: "Triggers sent to the camera",
			},
			[]string{"camera"},
		),
		skips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livego_trigger_skips_total",
				Help: "Timer ticks skipped because the camera was busy",
			},
			[]string{"camera"},
		),
		fps: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "livego_trigger_fps", Help: "Configured trigger rate"},
			[]string{"camera"},
		),
		live: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "livego_live", Help: "1 while live view is running"},
			[]string{"camera"},
		),
		illumination: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "livego_illumination_on", Help: "1 while live illumination is on"},
			[]string{"camera"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livego_state_transitions_total",
				Help: "Live controller state transitions by target state",
			},
			[]string{"camera", "to"},
		),
		sendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "livego_trigger_send_seconds",
				Help:    "Time spent in the camera trigger call",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
			},
			[]string{"camera"},
		),
	}
	reg.MustRegister(m.triggers, m.skips, m.fps, m.live, m.illumination, m.transitions, m.sendDuration)
	return m
}

func (m *Live) Trigger(camera string) {
	if m != nil {
		m.triggers.WithLabelValues(camera).Inc()
	}
}

func (m *Live) Skip(camera string) {
	if m != nil {
		m.skips.WithLabelValues(camera).Inc()
	}
}

func (m *Live) FPS(camera string, fps float64) {
	if m != nil {
		m.fps.WithLabelValues(camera).Set(fps)
	}
}

func (m *Live) Live(camera string, on bool) {
	if m != nil {
		m.live.WithLabelValues(camera).Set(b2f(on))
	}
}

func (m *Live) Illumination(camera string, on bool) {
	if m != nil {
		m.illumination.WithLabelValues(camera).Set(b2f(on))
	}
}

func (m *Live) Transition(camera, to string) {
	if m != nil {
		m.transitions.WithLabelValues(camera, to).Inc()
	}
}

// SendTimer starts timing one trigger call; call ObserveDuration on the
// result when done. Returns nil on a nil *Live.
func (m *Live) SendTimer(camera string) *prometheus.Timer {
	if m == nil {
		return nil
	}
	return prometheus.NewTimer(m.sendDuration.WithLabelValues(camera))
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
