// Package live implements the live-view controller: a four-state machine
// that streams a camera, paces exposure triggers with a self-rescheduling
// timer and keeps illumination synchronized with exposure.
//
// All controller state is guarded by one mutex. Exported methods lock it
// once and call helpers with a Locked suffix, which require it held.
// Hardware calls are made while holding the lock, so commands and timer
// ticks are mutually exclusive.
package live

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/LiveGo/internal/channel"
	"github.com/cjeanneret/LiveGo/internal/clock"
	"github.com/cjeanneret/LiveGo/internal/debug"
	"github.com/cjeanneret/LiveGo/internal/events"
	"github.com/cjeanneret/LiveGo/internal/hw/camera"
	"github.com/cjeanneret/LiveGo/internal/hw/illumination"
	"github.com/cjeanneret/LiveGo/internal/metrics"
	"github.com/cjeanneret/LiveGo/internal/modegate"
)

// Peripheral switches the autofocus laser.
type Peripheral interface {
	TurnOnAFLaser() error
	TurnOffAFLaser() error
}

// FilterWheel moves emission filters.
type FilterWheel interface {
	IsAvailable() bool
	SetDelayOffset(ms float64) error
	SetPosition(positions map[int]int) error
}

// LaserController is an external laser engine with selectable lines.
type LaserController interface {
	SetActiveChannel(id int) error
	SetLaserPower(id int, percent float64) error
}

// ModeGate arbitrates hardware ownership between subsystems.
type ModeGate interface {
	Mode() modegate.Mode
	BlockedForUIHardwareCommands() bool
	SetMode(m modegate.Mode, reason string)
	RestoreMode(m modegate.Mode, reason string)
}

// Publisher queues events. It must not call back into the controller
// synchronously.
type Publisher interface {
	Publish(events.Message)
}

// emissionWheelID is the wheel carrying the emission filters.
const emissionWheelID = 1

// lowRateFPS is the rate at or below which illumination is switched off
// after every frame.
const lowRateFPS = 5

// Config holds the controller's behavior settings.
type Config struct {
	Name                               string // addresses commands; default "main"
	TriggerMode                        TriggerMode
	FPS                                float64 // default 1
	ControlIllumination                bool
	UseInternalTimerForHardwareTrigger bool
	ForDisplacementMeasurement         bool
	FilterAutoSwitch                   bool
	BusyBackoff                        time.Duration // default 10ms
	SkipLogEvery                       int           // default 100
}

// Deps are the collaborators of a controller. Peripheral, FilterWheel,
// NL5, Channels, Bus and Metrics are optional.
type Deps struct {
	Cameras      map[string]camera.Camera
	ActiveCamera string // required when more than one camera is given
	Illumination illumination.Service
	Peripheral   Peripheral
	FilterWheel  FilterWheel
	NL5          LaserController
	Gate         ModeGate
	Channels     *channel.Registry
	Bus          Publisher
	Clock        clock.Clock
	Metrics      *metrics.Live
}

// Controller is the live-view controller for one named camera slot.
type Controller struct {
	name     string
	cfg      Config
	cameras  map[string]camera.Camera
	illum    illumination.Service
	periph   Peripheral
	wheel    FilterWheel
	nl5      LaserController
	gate     ModeGate
	channels *channel.Registry
	bus      Publisher
	clock    clock.Clock
	metrics  *metrics.Live

	mu          sync.Mutex
	state       State
	mode        TriggerMode
	fps         float64
	activeCam   string
	current     *channel.Mode
	channelName string
	illumOn     bool
	triggerID   int64
	skips       int
	timer       clock.Timer
	timerGen    uint64
	prevGate    modegate.Mode
	session     string
	filterAuto  bool
	scaling     float64

	snap atomic.Pointer[Snapshot]
}

// New builds a controller in the STOPPED state.
func New(cfg Config, deps Deps) (*Controller, error) {
	if cfg.Name == "" {
		cfg.Name = "main"
	}
	if cfg.FPS == 0 {
		cfg.FPS = 1
	}
	if err := CheckFPS(cfg.FPS); err != nil {
		return nil, err
	}
	if !cfg.TriggerMode.valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTriggerMode, cfg.TriggerMode)
	}
	if cfg.BusyBackoff <= 0 {
		cfg.BusyBackoff = 10 * time.Millisecond
	}
	if cfg.SkipLogEvery <= 0 {
		cfg.SkipLogEvery = 100
	}
	if len(deps.Cameras) == 0 {
		return nil, errors.New("live controller needs at least one camera")
	}
	active := deps.ActiveCamera
	if active == "" {
		if len(deps.Cameras) > 1 {
			return nil, errors.New("active camera must be named when several cameras are configured")
		}
		for name := range deps.Cameras {
			active = name
		}
	}
	if _, ok := deps.Cameras[active]; !ok {
		return nil, fmt.Errorf("active camera %q is not configured", active)
	}
	if cfg.ControlIllumination && deps.Illumination == nil {
		return nil, errors.New("illumination control requires an illumination service")
	}
	if deps.Gate == nil {
		return nil, errors.New("live controller needs a mode gate")
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}

	c := &Controller{
		name:       cfg.Name,
		cfg:        cfg,
		cameras:    deps.Cameras,
		illum:      deps.Illumination,
		periph:     deps.Peripheral,
		wheel:      deps.FilterWheel,
		nl5:        deps.NL5,
		gate:       deps.Gate,
		channels:   deps.Channels,
		bus:        deps.Bus,
		clock:      deps.Clock,
		metrics:    deps.Metrics,
		state:      StateStopped,
		mode:       cfg.TriggerMode,
		fps:        cfg.FPS,
		activeCam:  active,
		filterAuto: cfg.FilterAutoSwitch,
		scaling:    1,
	}
	c.publishSnapshotLocked()
	return c, nil
}

// CheckFPS rejects rates that are not finite and positive, and rates
// whose trigger interval does not fit a time.Duration of at least 1ns.
func CheckFPS(fps float64) error {
	if math.IsNaN(fps) || math.IsInf(fps, 0) || fps <= 0 {
		return fmt.Errorf("%w, got %g", ErrInvalidFPS, fps)
	}
	if d := float64(time.Second) / fps; d < 1 || d >= math.MaxInt64 {
		return fmt.Errorf("%w, got %g (trigger interval out of range)", ErrInvalidFPS, fps)
	}
	return nil
}

// Name returns the name commands address this controller by.
func (c *Controller) Name() string { return c.name }

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot { return *c.snap.Load() }

// Cameras returns the configured camera names, sorted.
func (c *Controller) Cameras() []string {
	names := make([]string, 0, len(c.cameras))
	for n := range c.cameras {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DisplayResolutionScaling returns the display scaling as a ratio.
func (c *Controller) DisplayResolutionScaling() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scaling
}

// FilterAutoSwitch reports whether the emission filter follows the channel.
func (c *Controller) FilterAutoSwitch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filterAuto
}

// ---------- state machine ----------

// StartLive starts streaming and, in timed modes, the trigger loop. A
// non-empty channel is resolved through the channel registry and applied
// first. The call is ignored while the mode gate blocks UI hardware
// commands or when not STOPPED. On a hardware failure everything is rolled
// back, the controller ends STOPPED and the error is returned.
func (c *Controller) StartLive(channelName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gate.BlockedForUIHardwareCommands() {
		debug.Info("Live %s: start ignored, hardware mode is %s", c.name, c.gate.Mode())
		return nil
	}
	if c.state != StateStopped {
		debug.Info("Live %s: cannot start, state is %s", c.name, c.state)
		return nil
	}
	if !c.transitionLocked(StateStarting) {
		return nil
	}

	prev := c.gate.Mode()

	if err := c.startLocked(channelName); err != nil {
		debug.Errorf("Live %s: start failed (channel=%q camera=%s mode=%s fps=%g): %v",
			c.name, channelName, c.activeCam, c.mode, c.fps, err)
		c.stopTimerLocked()
		c.transitionLocked(StateStopped)
		c.publishSnapshotLocked()
		return err
	}

	c.session = uuid.NewString()
	c.prevGate = prev
	c.transitionLocked(StateLive)
	c.gate.SetMode(modegate.ModeLive, "live start")
	debug.Live("Live %s: session %s started on %s (mode=%s fps=%g)", c.name, c.session, c.activeCam, c.mode, c.fps)
	c.publishSnapshotLocked()
	return nil
}

func (c *Controller) startLocked(channelName string) error {
	if channelName != "" {
		if m, ok := c.channels.Lookup(channelName); ok {
			if err := c.applyChannelLocked(m); err != nil {
				return err
			}
		} else {
			debug.Warn("Live %s: channel %q is not registered, settings unchanged", c.name, channelName)
			c.channelName = channelName
		}
	}

	cam := c.cameraLocked()
	if err := cam.StartStreaming(); err != nil {
		return fmt.Errorf("start streaming on %s: %w", c.activeCam, err)
	}
	if c.timedLocked() {
		if err := cam.EnableCallbacks(true); err != nil {
			c.stopStreamingBestEffortLocked(cam)
			return fmt.Errorf("enable callbacks on %s: %w", c.activeCam, err)
		}
		c.armTimerLocked(c.intervalLocked())
	}
	if c.cfg.ForDisplacementMeasurement {
		c.afLaserLocked(true)
	}
	return nil
}

// applyChannelLocked makes m current before streaming starts.
func (c *Controller) applyChannelLocked(m channel.Mode) error {
	if m.Camera != "" && m.Camera != c.activeCam {
		next, ok := c.cameras[m.Camera]
		if !ok {
			return fmt.Errorf("channel %q: unknown camera %q", m.Name, m.Camera)
		}
		if err := c.configureCameraLocked(next, false); err != nil {
			return fmt.Errorf("configure camera %s: %w", m.Camera, err)
		}
		c.activeCam = m.Camera
	}
	c.current = &m
	c.channelName = m.Name
	if err := c.pushCameraSettingsLocked(m); err != nil {
		return err
	}
	if c.cfg.ControlIllumination {
		c.updateIlluminationLocked()
	}
	return nil
}

func (c *Controller) stopStreamingBestEffortLocked(cam camera.Camera) {
	if err := cam.StopStreaming(); err != nil {
		debug.Warn("Live %s: stop streaming during rollback: %v", c.name, err)
	}
}

// StopLive stops the trigger loop, streaming and illumination, then gives
// the hardware mode back to what it was before StartLive. A hardware
// failure still leaves the controller STOPPED; the error is returned.
func (c *Controller) StopLive() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateLive {
		debug.Info("Live %s: cannot stop, state is %s", c.name, c.state)
		return nil
	}
	c.transitionLocked(StateStopping)
	c.stopTimerLocked()

	err := c.stopLocked()
	if err != nil {
		debug.Errorf("Live %s: stop failed on %s, forcing STOPPED: %v", c.name, c.activeCam, err)
		c.forceStateLocked(StateStopped, "stop failure")
		c.gate.RestoreMode(c.prevGate, "live stop failed")
	} else {
		c.transitionLocked(StateStopped)
		c.gate.RestoreMode(c.prevGate, "live stop")
	}
	debug.Live("Live %s: session %s stopped", c.name, c.session)
	c.session = ""
	c.publishSnapshotLocked()
	return err
}

// stopLocked switches the light and AF laser off even when streaming
// cannot be stopped; the streaming error is returned afterwards.
func (c *Controller) stopLocked() error {
	err := c.cameraLocked().StopStreaming()
	if c.cfg.ControlIllumination {
		c.turnOffIlluminationLocked()
	}
	if c.cfg.ForDisplacementMeasurement {
		c.afLaserLocked(false)
	}
	if err != nil {
		return fmt.Errorf("stop streaming on %s: %w", c.activeCam, err)
	}
	return nil
}

// transitionLocked moves along an allowed edge. Any other edge is logged
// and ignored.
func (c *Controller) transitionLocked(to State) bool {
	if !CanTransition(c.state, to) {
		debug.Warn("Live %s: invalid transition %s -> %s ignored", c.name, c.state, to)
		return false
	}
	c.setStateLocked(to)
	return true
}

// forceStateLocked bypasses the transition table; used to recover from a
// failed stop.
func (c *Controller) forceStateLocked(to State, reason string) {
	debug.Warn("Live %s: forced state %s -> %s (%s)", c.name, c.state, to, reason)
	c.setStateLocked(to)
}

func (c *Controller) setStateLocked(to State) {
	from := c.state
	c.state = to
	debug.State("Live "+c.name, from.String(), to.String())
	c.metrics.Transition(c.name, to.String())
	// A failed start never reached LIVE, so observers get no STOPPED edge.
	if to == StateLive || (to == StateStopped && from != StateStarting) {
		c.publishLocked(events.LiveStateChanged{Camera: c.name, IsLive: to == StateLive, Channel: c.channelName})
	}
}

// ---------- trigger mode and rate ----------

// SetTriggerMode reconfigures the camera for mode and starts or stops the
// trigger loop accordingly. It always reconfigures, even when mode is
// unchanged.
func (c *Controller) SetTriggerMode(mode TriggerMode) error {
	if !mode.valid() {
		return fmt.Errorf("%w: %s", ErrUnknownTriggerMode, mode)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	live := c.state == StateLive
	if c.timedLocked() {
		c.stopTimerLocked()
	}

	prev := c.mode
	c.mode = mode
	if err := c.configureCameraLocked(c.cameraLocked(), true); err != nil {
		c.mode = prev
		if live && c.timedLocked() {
			c.armTimerLocked(c.intervalLocked())
		}
		debug.Errorf("Live %s: trigger mode %s -> %s failed: %v", c.name, prev, mode, err)
		return fmt.Errorf("set trigger mode %s: %w", mode, err)
	}
	if live && c.timedLocked() {
		c.armTimerLocked(c.intervalLocked())
	}

	debug.Live("Live %s: trigger mode %s -> %s", c.name, prev, mode)
	c.publishLocked(events.TriggerModeChanged{Camera: c.name, Mode: mode.String()})
	c.publishSnapshotLocked()
	return nil
}

// configureCameraLocked puts cam into the acquisition mode matching the
// current trigger mode. In hardware mode the current exposure is pushed
// too, unless pushExposure is false because the caller pushes a new
// channel's settings right after.
func (c *Controller) configureCameraLocked(cam camera.Camera, pushExposure bool) error {
	switch c.mode {
	case TriggerSoftware:
		if err := cam.SetAcquisitionMode(camera.SoftwareTrigger); err != nil {
			return err
		}
		return cam.EnableCallbacks(true)
	case TriggerHardware:
		if err := cam.SetAcquisitionMode(camera.HardwareTrigger); err != nil {
			return err
		}
		if pushExposure && c.current != nil {
			return cam.SetExposureTime(c.current.ExposureTimeMs)
		}
		return nil
	case TriggerContinuous:
		if err := cam.SetAcquisitionMode(camera.Continuous); err != nil {
			return err
		}
		return cam.EnableCallbacks(true)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownTriggerMode, c.mode)
	}
}

// SetTriggerFPS sets the trigger rate. While live in a timed mode the
// pending tick is replaced by one at the new interval; no trigger is sent
// immediately.
func (c *Controller) SetTriggerFPS(fps float64) error {
	if err := CheckFPS(fps); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps
	if c.state == StateLive && c.timedLocked() {
		c.armTimerLocked(c.intervalLocked())
	}
	debug.Verbose("Live %s: trigger fps %g", c.name, fps)
	c.publishLocked(events.TriggerFPSChanged{Camera: c.name, FPS: fps})
	c.publishSnapshotLocked()
	return nil
}

// timedLocked reports whether the controller's timer paces triggers in
// the current mode.
func (c *Controller) timedLocked() bool {
	switch c.mode {
	case TriggerSoftware:
		return true
	case TriggerHardware:
		return c.cfg.UseInternalTimerForHardwareTrigger
	default:
		return false
	}
}

func (c *Controller) intervalLocked() time.Duration {
	return time.Duration(float64(time.Second) / c.fps)
}

// ---------- channel switching ----------

// SetMicroscopeMode switches to channel m. While live the trigger loop is
// paused and illumination switched off during the change, then both are
// resumed. This is the only place the active camera can change.
func (c *Controller) SetMicroscopeMode(m channel.Mode) error {
	if err := m.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.activeCam
	if m.Camera != "" {
		if _, ok := c.cameras[m.Camera]; !ok {
			return fmt.Errorf("channel %q: unknown camera %q", m.Name, m.Camera)
		}
		target = m.Camera
	}

	debug.Live("Live %s: setting microscope mode %q", c.name, m.Name)
	live := c.state == StateLive
	if live {
		c.stopTimerLocked()
		if c.cfg.ControlIllumination {
			c.turnOffIlluminationLocked()
		}
	}

	if target != c.activeCam {
		if err := c.switchCameraLocked(target, live); err != nil {
			c.resumeLocked(live)
			c.publishSnapshotLocked()
			return fmt.Errorf("switch to camera %s: %w", target, err)
		}
	}

	c.current = &m
	c.channelName = m.Name
	err := c.pushCameraSettingsLocked(m)
	if err != nil {
		debug.Error(err)
	}
	if c.cfg.ControlIllumination {
		c.updateIlluminationLocked()
	}
	c.resumeLocked(live)
	c.publishSnapshotLocked()
	return err
}

func (c *Controller) pushCameraSettingsLocked(m channel.Mode) error {
	cam := c.cameraLocked()
	if err := cam.SetExposureTime(m.ExposureTimeMs); err != nil {
		return fmt.Errorf("set exposure %g ms on %s: %w", m.ExposureTimeMs, c.activeCam, err)
	}
	if err := cam.SetAnalogGain(m.AnalogGain); err != nil {
		if errors.Is(err, errors.ErrUnsupported) {
			debug.Verbose("Live %s: analog gain not supported by %s", c.name, c.activeCam)
		} else {
			debug.Warn("Live %s: set analog gain %g: %v", c.name, m.AnalogGain, err)
		}
	}
	return nil
}

func (c *Controller) switchCameraLocked(name string, live bool) error {
	old, next := c.cameraLocked(), c.cameras[name]
	if live {
		if err := old.StopStreaming(); err != nil {
			debug.Warn("Live %s: stop streaming on %s: %v", c.name, c.activeCam, err)
		}
	}
	if err := c.configureCameraLocked(next, false); err != nil {
		c.restartBestEffortLocked(old, live)
		return err
	}
	if live {
		if err := next.StartStreaming(); err != nil {
			c.restartBestEffortLocked(old, live)
			return err
		}
	}
	debug.Live("Live %s: active camera %s -> %s", c.name, c.activeCam, name)
	c.activeCam = name
	return nil
}

func (c *Controller) restartBestEffortLocked(cam camera.Camera, live bool) {
	if !live {
		return
	}
	if err := cam.StartStreaming(); err != nil {
		debug.Errorf("Live %s: restart streaming on %s: %v", c.name, c.activeCam, err)
	}
}

func (c *Controller) resumeLocked(live bool) {
	if !live {
		return
	}
	if c.cfg.ControlIllumination {
		c.turnOnIlluminationLocked()
	}
	if c.timedLocked() {
		c.armTimerLocked(c.intervalLocked())
	}
}

// ---------- auxiliary commands ----------

// SetFilterAutoSwitch enables or disables moving the emission filter with
// the channel.
func (c *Controller) SetFilterAutoSwitch(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filterAuto = enabled
	c.publishLocked(events.FilterAutoSwitchChanged{Enabled: enabled})
}

// UpdateIllumination pushes the current channel's power, laser line and
// emission filter again.
func (c *Controller) UpdateIllumination() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateIlluminationLocked()
}

// SetDisplayResolutionScaling stores the display scaling given in percent.
func (c *Controller) SetDisplayResolutionScaling(percent float64) error {
	if math.IsNaN(percent) || percent <= 0 || percent > 100 {
		return fmt.Errorf("display resolution scaling must be in (0, 100], got %g", percent)
	}
	c.mu.Lock()
	c.scaling = percent / 100
	c.mu.Unlock()
	return nil
}

// OnNewFrame is the camera frame callback. At low trigger rates the light
// is switched off between frames and back on by the next trigger.
func (c *Controller) OnNewFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fps <= lowRateFPS && c.cfg.ControlIllumination && c.illumOn {
		c.turnOffIlluminationLocked()
		c.publishSnapshotLocked()
	}
}

// ---------- illumination and auxiliary hardware ----------

func (c *Controller) turnOnIlluminationLocked() {
	if c.illum == nil || c.current == nil {
		return
	}
	src := c.current.IlluminationSource
	if err := c.illum.SetChannelPower(src, c.current.IlluminationIntensity); err != nil {
		debug.Warn("Live %s: illumination %d power: %v", c.name, src, err)
		return
	}
	if err := c.illum.TurnOnChannel(src); err != nil {
		debug.Warn("Live %s: illumination %d on: %v", c.name, src, err)
		return
	}
	c.illumOn = true
}

func (c *Controller) turnOffIlluminationLocked() {
	if c.illum == nil || c.current == nil {
		return
	}
	src := c.current.IlluminationSource
	if err := c.illum.TurnOffChannel(src); err != nil {
		debug.Warn("Live %s: illumination %d off: %v", c.name, src, err)
		return
	}
	c.illumOn = false
}

// updateIlluminationLocked pushes power, the NL5 line and the emission
// filter for the current channel. Every failure is logged and skipped.
func (c *Controller) updateIlluminationLocked() {
	if c.illum == nil || c.current == nil {
		return
	}
	m := c.current
	if err := c.illum.SetChannelPower(m.IlluminationSource, m.IlluminationIntensity); err != nil {
		debug.Warn("Live %s: illumination %d power: %v", c.name, m.IlluminationSource, err)
		return
	}

	if c.nl5 != nil && m.LaserChannel != 0 {
		if err := c.nl5.SetActiveChannel(m.LaserChannel); err != nil {
			debug.Warn("Live %s: nl5 line %d: %v", c.name, m.LaserChannel, err)
		} else if err := c.nl5.SetLaserPower(m.LaserChannel, m.IlluminationIntensity); err != nil {
			debug.Warn("Live %s: nl5 line %d power: %v", c.name, m.LaserChannel, err)
		}
	}

	if c.wheel != nil && c.filterAuto && m.EmissionFilterPosition > 0 && c.wheel.IsAvailable() {
		var delay float64
		if c.mode == TriggerHardware {
			delay = -float64(c.cameraLocked().StrobeTime()) / float64(time.Millisecond)
		}
		if err := c.wheel.SetDelayOffset(delay); err != nil {
			debug.Warn("Live %s: filter wheel delay: %v", c.name, err)
			return
		}
		if err := c.wheel.SetPosition(map[int]int{emissionWheelID: m.EmissionFilterPosition}); err != nil {
			debug.Warn("Live %s: emission filter %d: %v", c.name, m.EmissionFilterPosition, err)
		}
	}
}

func (c *Controller) afLaserLocked(on bool) {
	if c.periph == nil {
		debug.Warn("Live %s: no peripheral service, cannot switch the AF laser", c.name)
		return
	}
	var err error
	if on {
		err = c.periph.TurnOnAFLaser()
	} else {
		err = c.periph.TurnOffAFLaser()
	}
	if err != nil {
		debug.Warn("Live %s: AF laser on=%v: %v", c.name, on, err)
	}
}

// ---------- observable state ----------

func (c *Controller) cameraLocked() camera.Camera { return c.cameras[c.activeCam] }

func (c *Controller) publishLocked(m events.Message) {
	if c.bus != nil {
		c.bus.Publish(m)
	}
}

func (c *Controller) publishSnapshotLocked() {
	s := &Snapshot{
		Camera:         c.name,
		State:          c.state,
		IsLive:         c.state == StateLive,
		CurrentChannel: c.channelName,
		TriggerMode:    c.mode,
		TriggerFPS:     c.fps,
		IlluminationOn: c.illumOn,
		TriggerID:      c.triggerID,
		ActiveCamera:   c.activeCam,
		Session:        c.session,
	}
	c.snap.Store(s)
	c.metrics.Live(c.name, s.IsLive)
	c.metrics.Illumination(c.name, s.IlluminationOn)
	c.metrics.FPS(c.name, s.TriggerFPS)
}
