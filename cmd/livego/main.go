package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cjeanneret/LiveGo/internal/channel"
	"github.com/cjeanneret/LiveGo/internal/clock"
	"github.com/cjeanneret/LiveGo/internal/config"
	"github.com/cjeanneret/LiveGo/internal/debug"
	"github.com/cjeanneret/LiveGo/internal/events"
	"github.com/cjeanneret/LiveGo/internal/hw/camera"
	"github.com/cjeanneret/LiveGo/internal/hw/filterwheel"
	"github.com/cjeanneret/LiveGo/internal/hw/gpio"
	"github.com/cjeanneret/LiveGo/internal/hw/illumination"
	"github.com/cjeanneret/LiveGo/internal/hw/laser"
	"github.com/cjeanneret/LiveGo/internal/hw/stepper"
	"github.com/cjeanneret/LiveGo/internal/live"
	"github.com/cjeanneret/LiveGo/internal/metrics"
	"github.com/cjeanneret/LiveGo/internal/modegate"
	"github.com/cjeanneret/LiveGo/internal/mqttbridge"
	"github.com/cjeanneret/LiveGo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	fps := flag.Float64("fps", 0, "override live trigger rate in frames per second")
	triggerMode := flag.String("trigger_mode", "", "override trigger mode (software, hardware, continuous)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Validate CLI overrides (zero values mean "use config default")
	if err := validateCLIOverrides(*fps, *triggerMode); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, *fps, *triggerMode)

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	port := webPort.port()
	if port == 0 {
		port = cfg.Web.Port
	}
	var broadcaster *web.StatusBroadcaster
	if port > 0 {
		broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
	}

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO, cfg.Defaults.PWMFreqHz)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	bus := events.NewBus()
	go bus.Run(ctx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	debug.Step(2, "Initializing hardware and live controller")
	app, err := buildApp(cfg, gpioDriver, bus, reg, clock.Real())
	if err != nil {
		log.Fatalf("init live controller failed: %v", err)
	}
	defer app.shutdown()

	if cfg.MQTT.Enabled {
		debug.Step(3, "Connecting MQTT bridge")
		bridge := mqttbridge.New(mqttbridge.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         byte(cfg.MQTT.QoS),
		}, bus, nil)
		if err := bridge.Connect(); err != nil {
			debug.Errorf("MQTT bridge disabled: %v", err)
		} else {
			defer bridge.Stop()
		}
	}

	debug.Summary(fmt.Sprintf("LiveGo ready: %s on camera %s", app.ctrl.Name(), app.ctrl.Snapshot().ActiveCamera))
	if debug.IsEnabled(debug.LevelVerbose) {
		for _, m := range app.channels.All() {
			debug.PrintStruct("Channel "+m.Name, m)
		}
	}

	if port > 0 {
		deps := web.Deps{
			Broadcaster: broadcaster,
			Bus:         bus,
			Controllers: []web.StateSource{app.ctrl},
			Channels:    app.channels,
			Gate:        app.gate,
		}
		if cfg.Metrics.Enabled {
			deps.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		}
		srv := web.NewServer(fmt.Sprintf(":%d", port), deps)
		if err := srv.Run(ctx); err != nil {
			log.Printf("web server: %v", err)
		}
		return
	}

	<-ctx.Done()
}

// app is the wired live-acquisition rig.
type app struct {
	ctrl     *live.Controller
	cameras  map[string]*camera.GPIOTrigger
	illum    *illumination.GPIOController
	wheel    *filterwheel.Service
	gate     *modegate.Gate
	channels *channel.Registry
	detach   func()
}

// buildApp wires hardware, the mode gate and the live controller from cfg
// and attaches the controller to bus. reg may be nil.
func buildApp(cfg *config.Config, g gpio.Driver, bus *events.Bus, reg prometheus.Registerer, clk clock.Clock) (*app, error) {
	channels, err := channel.NewRegistry(cfg.Channels...)
	if err != nil {
		return nil, fmt.Errorf("channels: %w", err)
	}
	a := &app{
		cameras:  make(map[string]*camera.GPIOTrigger, len(cfg.Cameras)),
		channels: channels,
		gate:     modegate.New(bus),
	}

	cams := make(map[string]camera.Camera, len(cfg.Cameras))
	for _, cc := range cfg.Cameras {
		cam, err := newCameraFromConfig(g, cc, clk)
		if err != nil {
			return nil, err
		}
		a.cameras[cc.Name] = cam
		cams[cc.Name] = cam
		debug.PrintStruct("Camera "+cc.Name, cc)
	}

	// Optional collaborators are only assigned when configured so that the
	// controller sees a nil interface, not a typed nil.
	deps := live.Deps{
		Cameras:      cams,
		ActiveCamera: cfg.Live.ActiveCamera,
		Gate:         a.gate,
		Channels:     channels,
		Bus:          bus,
		Clock:        clk,
	}
	if reg != nil {
		deps.Metrics = metrics.NewLive(reg)
	}

	if len(cfg.Illumination) > 0 {
		lines := make([]illumination.Channel, 0, len(cfg.Illumination))
		for _, ic := range cfg.Illumination {
			lines = append(lines, illumination.Channel{ID: ic.ID, EnablePin: ic.EnablePin, PWMPin: ic.PWMPin})
		}
		if a.illum, err = illumination.NewGPIOController(g, lines); err != nil {
			return nil, fmt.Errorf("illumination: %w", err)
		}
		deps.Illumination = a.illum
	}
	if cfg.AFLaser != nil {
		af, err := laser.NewAFLaser(g, cfg.AFLaser.Pin)
		if err != nil {
			return nil, fmt.Errorf("af laser: %w", err)
		}
		deps.Peripheral = af
	}
	if cfg.NL5 != nil {
		lines := make([]laser.NL5Line, 0, len(cfg.NL5.Lines))
		for _, l := range cfg.NL5.Lines {
			lines = append(lines, laser.NL5Line{ID: l.ID, SelectPin: l.SelectPin, PWMPin: l.PWMPin})
		}
		nl5, err := laser.NewNL5(g, lines)
		if err != nil {
			return nil, fmt.Errorf("nl5: %w", err)
		}
		deps.NL5 = nl5
	}
	if fw := cfg.FilterWheel; fw != nil {
		motor := stepper.NewStepper(g, stepper.Config{
			StepPin:       fw.Stepper.StepPin,
			DirPin:        fw.Stepper.DirPin,
			EnablePin:     fw.Stepper.EnablePin,
			StepsPerRev:   fw.Stepper.StepsPerRev,
			Microstepping: fw.Stepper.Microstepping,
			StepDelay:     fw.Stepper.StepDelay(),
		})
		if a.wheel, err = filterwheel.New(filterwheel.Wheel{ID: 1, Positions: fw.Positions, Motor: motor}); err != nil {
			return nil, fmt.Errorf("filter wheel: %w", err)
		}
		deps.FilterWheel = a.wheel
	}

	mode, err := live.ParseTriggerMode(cfg.Live.TriggerMode)
	if err != nil {
		return nil, err
	}
	ctrl, err := live.New(live.Config{
		Name:                               cfg.Live.Name,
		TriggerMode:                        mode,
		FPS:                                cfg.Live.FPS,
		ControlIllumination:                cfg.ControlIllumination(),
		UseInternalTimerForHardwareTrigger: cfg.Live.UseInternalTimerForHardwareTrigger,
		ForDisplacementMeasurement:         cfg.Live.ForDisplacementMeasurement,
		FilterAutoSwitch:                   cfg.FilterAutoSwitch(),
		BusyBackoff:                        cfg.BusyBackoff(),
		SkipLogEvery:                       cfg.Live.SkipLogEvery,
	}, deps)
	if err != nil {
		return nil, err
	}
	a.ctrl = ctrl

	for _, cam := range a.cameras {
		cam.SetFrameCallback(func(int64) { ctrl.OnNewFrame() })
	}
	a.detach = ctrl.Attach(bus)

	// Put the camera in the configured acquisition mode before the first start.
	if err := ctrl.SetTriggerMode(mode); err != nil {
		return nil, fmt.Errorf("configure trigger mode: %w", err)
	}
	if name := cfg.Live.InitialChannel; name != "" {
		m, _ := channels.Lookup(name)
		if err := ctrl.SetMicroscopeMode(m); err != nil {
			return nil, fmt.Errorf("initial channel: %w", err)
		}
	}
	return a, nil
}

// shutdown stops live view and leaves every light off.
func (a *app) shutdown() {
	if a.detach != nil {
		a.detach()
	}
	if err := a.ctrl.StopLive(); err != nil {
		debug.Errorf("stop live: %v", err)
	}
	if a.illum != nil {
		if err := a.illum.AllOff(); err != nil {
			debug.Errorf("illumination off: %v", err)
		}
	}
}

// validateCLIOverrides checks that non-zero CLI overrides are valid.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(fps float64, triggerMode string) error {
	if fps != 0 {
		if err := live.CheckFPS(fps); err != nil {
			return err
		}
	}
	if triggerMode != "" {
		if _, err := live.ParseTriggerMode(triggerMode); err != nil {
			return err
		}
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override values are applied.
func applyOverrides(cfg *config.Config, fps float64, triggerMode string) {
	if fps > 0 {
		cfg.Live.FPS = fps
	}
	if triggerMode != "" {
		cfg.Live.TriggerMode = triggerMode
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }

// newCameraFromConfig selects a camera implementation based on configuration.
func newCameraFromConfig(g gpio.Driver, cc config.CameraConfig, clk clock.Clock) (*camera.GPIOTrigger, error) {
	switch cc.Type {
	case "gpio_trigger":
		return camera.NewGPIOTrigger(g, camera.GPIOTriggerConfig{
			Name:         cc.Name,
			TriggerPin:   cc.TriggerPin,
			ActiveLow:    cc.ActiveLow,
			PulseWidth:   cc.PulseWidth(),
			Readout:      cc.Readout(),
			Strobe:       cc.Strobe(),
			ExposureMs:   cc.ExposureMs,
			SupportsGain: cc.SupportsGain,
		}, clk), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cc.Type)
	}
}
