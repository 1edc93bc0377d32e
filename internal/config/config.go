package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/LiveGo/internal/channel"
	"github.com/cjeanneret/LiveGo/internal/live"
)

// MaxConfigFileBytes bounds the size of a config file accepted by Load.
const MaxConfigFileBytes = 1 << 20

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	PWMFreqHz  int  `yaml:"pwm_freq_hz"` // PWM frequency for illumination and laser power
}

// CameraConfig describes one camera and how it is triggered.
// Type selects a concrete implementation (e.g., "gpio_trigger").
type CameraConfig struct {
	Name         string  `yaml:"name"`
	Type         string  `yaml:"type"`           // e.g., "gpio_trigger"
	TriggerPin   int     `yaml:"trigger_pin"`    // GPIO pin wired to the trigger input
	ActiveLow    bool    `yaml:"active_low"`     // trigger asserted by pulling the line LOW
	PulseWidthUs int     `yaml:"pulse_width_us"` // trigger pulse width (µs)
	ReadoutMs    float64 `yaml:"readout_ms"`     // sensor readout after exposure (ms)
	StrobeMs     float64 `yaml:"strobe_ms"`      // trigger-to-exposure delay (ms)
	ExposureMs   float64 `yaml:"exposure_ms"`    // initial exposure (ms)
	SupportsGain bool    `yaml:"supports_gain"`
	// Note: GND is physically connected to Raspberry Pi ground
}

// IlluminationChannelConfig wires one light source.
type IlluminationChannelConfig struct {
	ID        int `yaml:"id"` // illumination source id, as used by channels
	EnablePin int `yaml:"enable_pin"`
	PWMPin    int `yaml:"pwm_pin"` // 0 = on/off only
}

// AFLaserConfig is optional: the autofocus laser enable line.
type AFLaserConfig struct {
	Pin int `yaml:"pin"`
}

// StepperConfig holds the configuration for a stepper motor.
type StepperConfig struct {
	StepPin       int `yaml:"step_pin"`
	DirPin        int `yaml:"dir_pin"`
	EnablePin     int `yaml:"enable_pin"` // A4988 ENABLE pin (BCM). 0 = not used. Active LOW.
	StepsPerRev   int `yaml:"steps_per_rev"`
	Microstepping int `yaml:"microstepping"`
	StepDelayUs   int `yaml:"step_delay_us"` // half-cycle of a STEP pulse (µs)
}

// FilterWheelConfig is optional: the emission filter wheel.
type FilterWheelConfig struct {
	Positions int           `yaml:"positions"`
	Stepper   StepperConfig `yaml:"stepper"`
}

// NL5LineConfig wires one NL5 laser line.
type NL5LineConfig struct {
	ID        int `yaml:"id"`
	SelectPin int `yaml:"select_pin"`
	PWMPin    int `yaml:"pwm_pin"`
}

// NL5Config is optional: the NL5 laser engine.
type NL5Config struct {
	Lines []NL5LineConfig `yaml:"lines"`
}

// LiveConfig configures the live controller.
type LiveConfig struct {
	Name                               string  `yaml:"name"`          // default "main"
	ActiveCamera                       string  `yaml:"active_camera"` // default: first camera
	InitialChannel                     string  `yaml:"initial_channel"`
	TriggerMode                        string  `yaml:"trigger_mode"` // software, hardware, continuous
	FPS                                float64 `yaml:"fps"`
	ControlIllumination                *bool   `yaml:"control_illumination"` // default true
	UseInternalTimerForHardwareTrigger bool    `yaml:"use_internal_timer_for_hardware_trigger"`
	ForDisplacementMeasurement         bool    `yaml:"for_displacement_measurement"`
	FilterAutoSwitch                   *bool   `yaml:"filter_auto_switch"` // default true
	BusyBackoffMs                      int     `yaml:"busy_backoff_ms"`
	SkipLogEvery                       int     `yaml:"skip_log_every"`
}

// WebConfig configures the HTTP surface. Port 0 disables it unless -web is given.
type WebConfig struct {
	Port int `yaml:"port"`
}

// MQTTConfig configures the MQTT bridge.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port or URL
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Config aggregates all application configuration.
type Config struct {
	Defaults     DefaultsConfig              `yaml:"defaults"`
	Cameras      []CameraConfig              `yaml:"cameras"`
	Illumination []IlluminationChannelConfig `yaml:"illumination"`
	AFLaser      *AFLaserConfig              `yaml:"af_laser,omitempty"`     // optional
	FilterWheel  *FilterWheelConfig          `yaml:"filter_wheel,omitempty"` // optional
	NL5          *NL5Config                  `yaml:"nl5,omitempty"`          // optional
	Live         LiveConfig                  `yaml:"live"`
	Channels     []channel.Mode              `yaml:"channels"`
	Web          WebConfig                   `yaml:"web"`
	MQTT         MQTTConfig                  `yaml:"mqtt"`
	Metrics      MetricsConfig               `yaml:"metrics"`
}

// ValidateConfigPath rejects paths that escape a configs/ directory or do
// not name a .yaml file.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must end in .yaml", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file is %d bytes, limit is %d", info.Size(), MaxConfigFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Defaults.PWMFreqHz <= 0 {
		c.Defaults.PWMFreqHz = 1000
	}
	for i := range c.Cameras {
		cam := &c.Cameras[i]
		if cam.Type == "" {
			cam.Type = "gpio_trigger"
		}
		if cam.PulseWidthUs <= 0 {
			cam.PulseWidthUs = 100
		}
		if cam.ExposureMs <= 0 {
			cam.ExposureMs = 10
		}
	}
	if len(c.Cameras) == 1 && c.Cameras[0].Name == "" {
		c.Cameras[0].Name = "main"
	}

	l := &c.Live
	if l.Name == "" {
		l.Name = "main"
	}
	if l.ActiveCamera == "" && len(c.Cameras) > 0 {
		l.ActiveCamera = c.Cameras[0].Name
	}
	if l.TriggerMode == "" {
		l.TriggerMode = "software"
	}
	if l.FPS == 0 {
		l.FPS = 1
	}
	if l.ControlIllumination == nil {
		l.ControlIllumination = boolPtr(true)
	}
	if l.FilterAutoSwitch == nil {
		l.FilterAutoSwitch = boolPtr(true)
	}
	if l.BusyBackoffMs <= 0 {
		l.BusyBackoffMs = 10
	}
	if l.SkipLogEvery <= 0 {
		l.SkipLogEvery = 100
	}

	if c.FilterWheel != nil {
		s := &c.FilterWheel.Stepper
		if s.StepsPerRev <= 0 {
			s.StepsPerRev = 200
		}
		if s.Microstepping <= 0 {
			s.Microstepping = 1
		}
		if s.StepDelayUs <= 0 {
			s.StepDelayUs = 1000
		}
	}

	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "livego"
	}
}

func (c *Config) validate() error {
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	if len(c.Cameras) == 0 {
		return fmt.Errorf("at least one camera is required")
	}
	names := make(map[string]bool, len(c.Cameras))
	for _, cam := range c.Cameras {
		if cam.Name == "" {
			return fmt.Errorf("cameras: name is required when several cameras are configured")
		}
		if names[cam.Name] {
			return fmt.Errorf("cameras: duplicate name %q", cam.Name)
		}
		names[cam.Name] = true
		if cam.Type != "gpio_trigger" {
			return fmt.Errorf("camera %q: unsupported type: %s", cam.Name, cam.Type)
		}
		if cam.TriggerPin <= 0 {
			return fmt.Errorf("camera %q: trigger_pin must be > 0", cam.Name)
		}
		if cam.ReadoutMs < 0 || cam.StrobeMs < 0 {
			return fmt.Errorf("camera %q: readout_ms and strobe_ms must be >= 0", cam.Name)
		}
	}

	ids := make(map[int]bool, len(c.Illumination))
	for _, ch := range c.Illumination {
		if ids[ch.ID] {
			return fmt.Errorf("illumination: duplicate id %d", ch.ID)
		}
		ids[ch.ID] = true
		if ch.EnablePin <= 0 {
			return fmt.Errorf("illumination %d: enable_pin must be > 0", ch.ID)
		}
	}
	if *c.Live.ControlIllumination && len(c.Illumination) == 0 {
		return fmt.Errorf("live.control_illumination requires illumination channels")
	}

	if c.FilterWheel != nil {
		if c.FilterWheel.Positions <= 0 {
			return fmt.Errorf("filter_wheel.positions must be > 0")
		}
		if c.FilterWheel.Stepper.StepPin <= 0 || c.FilterWheel.Stepper.DirPin <= 0 {
			return fmt.Errorf("filter_wheel.stepper: step_pin and dir_pin are required")
		}
	}
	if c.AFLaser != nil && c.AFLaser.Pin <= 0 {
		return fmt.Errorf("af_laser.pin must be > 0")
	}
	if c.NL5 != nil && len(c.NL5.Lines) == 0 {
		return fmt.Errorf("nl5.lines must not be empty")
	}

	l := c.Live
	if !names[l.ActiveCamera] {
		return fmt.Errorf("live.active_camera %q is not a configured camera", l.ActiveCamera)
	}
	if _, err := live.ParseTriggerMode(l.TriggerMode); err != nil {
		return fmt.Errorf("live.trigger_mode: %w", err)
	}
	if err := live.CheckFPS(l.FPS); err != nil {
		return fmt.Errorf("live.fps: %w", err)
	}

	reg, err := channel.NewRegistry(c.Channels...)
	if err != nil {
		return fmt.Errorf("channels: %w", err)
	}
	for _, m := range c.Channels {
		if m.Camera != "" && !names[m.Camera] {
			return fmt.Errorf("channel %q: camera %q is not configured", m.Name, m.Camera)
		}
	}
	if l.InitialChannel != "" {
		if _, ok := reg.Lookup(l.InitialChannel); !ok {
			return fmt.Errorf("live.initial_channel %q is not a configured channel", l.InitialChannel)
		}
	}

	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port must be 0-65535, got %d", c.Web.Port)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }

// ControlIllumination reports whether live view drives the light.
func (c *Config) ControlIllumination() bool {
	return c.Live.ControlIllumination == nil || *c.Live.ControlIllumination
}

// FilterAutoSwitch reports whether channel changes move the filter wheel.
func (c *Config) FilterAutoSwitch() bool {
	return c.Live.FilterAutoSwitch == nil || *c.Live.FilterAutoSwitch
}

// TriggerInterval returns the period between two software triggers.
func (c *Config) TriggerInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.Live.FPS)
}

// BusyBackoff returns the retry delay when the camera is not ready.
func (c *Config) BusyBackoff() time.Duration {
	return time.Duration(c.Live.BusyBackoffMs) * time.Millisecond
}

// PulseWidth returns the trigger pulse width of a camera.
func (cc CameraConfig) PulseWidth() time.Duration {
	return time.Duration(cc.PulseWidthUs) * time.Microsecond
}

// Readout returns the sensor readout time of a camera.
func (cc CameraConfig) Readout() time.Duration {
	return msDuration(cc.ReadoutMs)
}

// Strobe returns the trigger-to-exposure delay of a camera.
func (cc CameraConfig) Strobe() time.Duration {
	return msDuration(cc.StrobeMs)
}

// StepDelay returns the half-cycle of a STEP pulse.
func (s StepperConfig) StepDelay() time.Duration {
	return time.Duration(s.StepDelayUs) * time.Microsecond
}

func msDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
