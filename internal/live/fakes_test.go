package live

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cjeanneret/LiveGo/internal/channel"
	"github.com/cjeanneret/LiveGo/internal/clock"
	"github.com/cjeanneret/LiveGo/internal/events"
	"github.com/cjeanneret/LiveGo/internal/hw/camera"
	"github.com/cjeanneret/LiveGo/internal/modegate"
)

// callLog records hardware calls across fakes, in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...interface{}) {
	l.mu.Lock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *callLog) reset() {
	l.mu.Lock()
	l.calls = nil
	l.mu.Unlock()
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

// index returns the position of the first call equal to s, or -1.
func (l *callLog) index(s string) int {
	for i, c := range l.snapshot() {
		if c == s {
			return i
		}
	}
	return -1
}

// ---------- camera ----------

type fakeCamera struct {
	name string
	log  *callLog

	mu        sync.Mutex
	ready     bool
	startErr  error
	stopErr   error
	gainErr   error
	modeErr   error
	streaming bool
	starts    int
	stops     int
	triggers  int
	callbacks []bool
	exposures []float64
	modes     []camera.AcquisitionMode
	strobe    time.Duration
}

func newFakeCamera(name string, log *callLog) *fakeCamera {
	return &fakeCamera{name: name, log: log, ready: true}
}

func (f *fakeCamera) StartStreaming() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("%s.start", f.name)
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.streaming = true
	return nil
}

func (f *fakeCamera) StopStreaming() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("%s.stop", f.name)
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stops++
	f.streaming = false
	return nil
}

func (f *fakeCamera) EnableCallbacks(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("%s.callbacks(%v)", f.name, enabled)
	f.callbacks = append(f.callbacks, enabled)
	return nil
}

func (f *fakeCamera) SendTrigger() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("%s.trigger", f.name)
	f.triggers++
	return nil
}

func (f *fakeCamera) ReadyForTrigger() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeCamera) TotalFrameTime() time.Duration { return 20 * time.Millisecond }

func (f *fakeCamera) StrobeTime() time.Duration { return f.strobe }

func (f *fakeCamera) SetExposureTime(ms float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("%s.exposure(%g)", f.name, ms)
	f.exposures = append(f.exposures, ms)
	return nil
}

func (f *fakeCamera) SetAnalogGain(gain float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("%s.gain(%g)", f.name, gain)
	return f.gainErr
}

func (f *fakeCamera) SetAcquisitionMode(mode camera.AcquisitionMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("%s.mode(%s)", f.name, mode)
	if f.modeErr != nil {
		return f.modeErr
	}
	f.modes = append(f.modes, mode)
	return nil
}

func (f *fakeCamera) setReady(r bool) {
	f.mu.Lock()
	f.ready = r
	f.mu.Unlock()
}

func (f *fakeCamera) triggerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.triggers
}

// ---------- illumination ----------

type fakeIllumination struct {
	log *callLog
	err error
}

func (f *fakeIllumination) TurnOnChannel(id int) error {
	f.log.add("illum.on(%d)", id)
	return f.err
}

func (f *fakeIllumination) TurnOffChannel(id int) error {
	f.log.add("illum.off(%d)", id)
	return f.err
}

func (f *fakeIllumination) SetChannelPower(id int, percent float64) error {
	f.log.add("illum.power(%d,%g)", id, percent)
	return f.err
}

// ---------- auxiliary hardware ----------

type fakePeripheral struct{ log *callLog }

func (f *fakePeripheral) TurnOnAFLaser() error  { f.log.add("af.on"); return nil }
func (f *fakePeripheral) TurnOffAFLaser() error { f.log.add("af.off"); return nil }

type fakeWheel struct{ log *callLog }

func (f *fakeWheel) IsAvailable() bool { return true }
func (f *fakeWheel) SetDelayOffset(ms float64) error {
	f.log.add("wheel.delay(%g)", ms)
	return nil
}
func (f *fakeWheel) SetPosition(p map[int]int) error {
	f.log.add("wheel.position(%d:%d)", emissionWheelID, p[emissionWheelID])
	return nil
}

type fakeNL5 struct{ log *callLog }

func (f *fakeNL5) SetActiveChannel(id int) error { f.log.add("nl5.active(%d)", id); return nil }
func (f *fakeNL5) SetLaserPower(id int, percent float64) error {
	f.log.add("nl5.power(%d,%g)", id, percent)
	return nil
}

// ---------- bus ----------

type recordingBus struct {
	mu   sync.Mutex
	msgs []events.Message
}

func (b *recordingBus) Publish(m events.Message) {
	b.mu.Lock()
	b.msgs = append(b.msgs, m)
	b.mu.Unlock()
}

func (b *recordingBus) kinds() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.msgs))
	for i, m := range b.msgs {
		out[i] = m.Kind()
	}
	return out
}

func (b *recordingBus) liveStates() []events.LiveStateChanged {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.LiveStateChanged
	for _, m := range b.msgs {
		if e, ok := m.(events.LiveStateChanged); ok {
			out = append(out, e)
		}
	}
	return out
}

// ---------- rig ----------

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

var (
	brightfield = channel.Mode{
		Name: "BF LED matrix full", ExposureTimeMs: 10, AnalogGain: 0,
		IlluminationIntensity: 20, IlluminationSource: 0, EmissionFilterPosition: 1,
	}
	fluo488 = channel.Mode{
		Name: "Fluorescence 488 nm Ex", ExposureTimeMs: 50, AnalogGain: 2,
		IlluminationIntensity: 60, IlluminationSource: 488, EmissionFilterPosition: 2, LaserChannel: 488,
	}
)

type rig struct {
	c     *Controller
	cam   *fakeCamera
	illum *fakeIllumination
	gate  *modegate.Gate
	clk   *clock.Fake
	bus   *recordingBus
	log   *callLog
}

func defaultConfig() Config {
	return Config{
		Name:                "main",
		TriggerMode:         TriggerSoftware,
		FPS:                 10,
		ControlIllumination: true,
		FilterAutoSwitch:    true,
	}
}

func newRig(t *testing.T, cfg Config, mutate ...func(*Deps)) *rig {
	t.Helper()
	log := &callLog{}
	r := &rig{
		cam:   newFakeCamera("main", log),
		illum: &fakeIllumination{log: log},
		clk:   clock.NewFake(epoch),
		bus:   &recordingBus{},
		log:   log,
	}
	r.gate = modegate.New(r.bus)
	reg, err := channel.NewRegistry(brightfield, fluo488)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	deps := Deps{
		Cameras:      map[string]camera.Camera{"main": r.cam},
		Illumination: r.illum,
		Gate:         r.gate,
		Channels:     reg,
		Bus:          r.bus,
		Clock:        r.clk,
	}
	for _, m := range mutate {
		m(&deps)
	}
	c, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.c = c
	return r
}

func (r *rig) mustStart(t *testing.T, ch string) {
	t.Helper()
	if err := r.c.StartLive(ch); err != nil {
		t.Fatalf("StartLive: %v", err)
	}
	if !r.c.Snapshot().IsLive {
		t.Fatalf("controller should be live, state=%s", r.c.Snapshot().State)
	}
}

func checkInvariant(t *testing.T, c *Controller) {
	t.Helper()
	s := c.Snapshot()
	if s.IsLive != (s.State == StateLive) {
		t.Errorf("is_live=%v but state=%s", s.IsLive, s.State)
	}
	if !(s.TriggerFPS > 0) {
		t.Errorf("trigger fps = %v, must stay > 0", s.TriggerFPS)
	}
}
