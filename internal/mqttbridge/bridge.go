// Package mqttbridge carries live-view commands from an MQTT control
// topic onto the event bus and forwards bus events back to MQTT.
package mqttbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/cjeanneret/LiveGo/internal/debug"
	"github.com/cjeanneret/LiveGo/internal/events"
	"github.com/cjeanneret/LiveGo/internal/live"
)

// Config describes the broker connection and topics.
type Config struct {
	Broker      string // host:port or URL
	ClientID    string // empty = livego-<uuid>
	TopicPrefix string // default "livego"
	QoS         byte
}

// Client is the part of mqtt.Client the bridge uses.
type Client interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Command is the JSON payload accepted on <prefix>/command.
type Command struct {
	Command string  `json:"command"`
	Channel string  `json:"channel,omitempty"`
	Camera  string  `json:"camera,omitempty"`
	Mode    string  `json:"mode,omitempty"`
	FPS     float64 `json:"fps,omitempty"`
	Enabled bool    `json:"enabled,omitempty"`
	Scaling float64 `json:"scaling,omitempty"`
}

// Response is published on <prefix>/ack for every command received.
type Response struct {
	CommandAck string `json:"command_ack"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// Stats counts bridge traffic.
type Stats struct {
	Accepted  uint64
	Rejected  uint64
	Forwarded uint64
	Errors    uint64
}

// Bridge connects one MQTT client to the bus.
type Bridge struct {
	cfg Config
	bus *events.Bus

	client  Client
	mqtt    mqtt.Client // set by Connect
	stopFwd func()

	mu    sync.Mutex
	stats Stats
}

// New returns a bridge. client may be nil when Connect will dial.
func New(cfg Config, bus *events.Bus, client Client) *Bridge {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "livego"
	}
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")
	return &Bridge{cfg: cfg, bus: bus, client: client}
}

func (b *Bridge) commandTopic() string { return b.cfg.TopicPrefix + "/command" }
func (b *Bridge) ackTopic() string     { return b.cfg.TopicPrefix + "/ack" }
func (b *Bridge) eventTopic(kind string) string {
	return b.cfg.TopicPrefix + "/events/" + kind
}

// ClientID returns the configured id or a fresh livego-<uuid>.
func ClientID(configured string) string {
	if configured != "" {
		return configured
	}
	return "livego-" + uuid.NewString()
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Connect dials the broker with auto reconnect and starts the bridge.
// Subscriptions survive reconnects through a persistent session.
func (b *Bridge) Connect() error {
	id := ClientID(b.cfg.ClientID)
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(b.cfg.Broker))
	opts.SetClientID(id)
	opts.SetCleanSession(false)
	opts.SetResumeSubs(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		debug.Info("MQTT: connected to %s as %s", b.cfg.Broker, id)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		debug.Warn("MQTT: connection lost, will auto-reconnect: %v", err)
	}

	client := mqtt.NewClient(opts)
	debug.Info("MQTT: connecting to %s", b.cfg.Broker)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	b.mqtt = client
	b.client = client
	return b.Start()
}

// Start subscribes to the command topic and forwards bus events.
func (b *Bridge) Start() error {
	if b.client == nil {
		return errors.New("mqtt bridge has no client")
	}
	token := b.client.Subscribe(b.commandTopic(), b.cfg.QoS, b.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("command subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("command subscription failed: %w", err)
	}
	b.stopFwd = b.bus.SubscribeAll(b.forward)
	debug.Info("MQTT: listening on %s", b.commandTopic())
	return nil
}

// Stop unsubscribes and disconnects a client dialed by Connect.
func (b *Bridge) Stop() {
	if b.stopFwd != nil {
		b.stopFwd()
		b.stopFwd = nil
	}
	if b.client != nil {
		b.client.Unsubscribe(b.commandTopic()).WaitTimeout(time.Second)
	}
	if b.mqtt != nil && b.mqtt.IsConnected() {
		b.mqtt.Disconnect(250)
		debug.Info("MQTT: disconnected")
	}
}

// Stats returns a copy of the counters.
func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *Bridge) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		debug.Warn("MQTT: invalid command payload: %v", err)
		b.count(func(s *Stats) { s.Rejected++ })
		b.ack(Response{CommandAck: "unknown", Status: "error", Error: "invalid JSON"})
		return
	}

	m, err := Translate(cmd)
	if err != nil {
		debug.Warn("MQTT: rejected %q: %v", cmd.Command, err)
		b.count(func(s *Stats) { s.Rejected++ })
		b.ack(Response{CommandAck: cmd.Command, Status: "error", Error: err.Error()})
		return
	}

	debug.Live("MQTT: command %s", cmd.Command)
	b.bus.Publish(m)
	b.count(func(s *Stats) { s.Accepted++ })
	b.ack(Response{CommandAck: cmd.Command, Status: "accepted"})
}

// Translate validates cmd and turns it into a bus command.
func Translate(cmd Command) (events.Message, error) {
	switch cmd.Command {
	case "start_live":
		return events.StartLiveCommand{Channel: cmd.Channel, Camera: cmd.Camera}, nil
	case "stop_live":
		return events.StopLiveCommand{Camera: cmd.Camera}, nil
	case "set_trigger_mode":
		mode, err := live.ParseTriggerMode(cmd.Mode)
		if err != nil {
			return nil, err
		}
		return events.SetTriggerModeCommand{Mode: mode.String(), Camera: cmd.Camera}, nil
	case "set_trigger_fps":
		if err := live.CheckFPS(cmd.FPS); err != nil {
			return nil, err
		}
		return events.SetTriggerFPSCommand{FPS: cmd.FPS, Camera: cmd.Camera}, nil
	case "set_microscope_mode":
		if cmd.Channel == "" {
			return nil, errors.New("missing 'channel'")
		}
		return events.SetMicroscopeModeCommand{Channel: cmd.Channel, Camera: cmd.Camera}, nil
	case "set_filter_auto_switch":
		return events.SetFilterAutoSwitchCommand{Enabled: cmd.Enabled}, nil
	case "update_illumination":
		return events.UpdateIlluminationCommand{}, nil
	case "set_display_resolution_scaling":
		if cmd.Scaling <= 0 || cmd.Scaling > 100 {
			return nil, fmt.Errorf("scaling must be in (0, 100], got %g", cmd.Scaling)
		}
		return events.SetDisplayResolutionScalingCommand{Scaling: cmd.Scaling}, nil
	default:
		return nil, fmt.Errorf("unknown command: %s", cmd.Command)
	}
}

func (b *Bridge) forward(m events.Message) {
	if !events.IsEvent(m) {
		return
	}
	payload, err := json.Marshal(m)
	if err != nil {
		b.count(func(s *Stats) { s.Errors++ })
		return
	}
	if err := b.publish(b.eventTopic(m.Kind()), payload); err != nil {
		debug.Warn("MQTT: forward %s: %v", m.Kind(), err)
		b.count(func(s *Stats) { s.Errors++ })
		return
	}
	b.count(func(s *Stats) { s.Forwarded++ })
}

func (b *Bridge) ack(resp Response) {
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	payload, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := b.publish(b.ackTopic(), payload); err != nil {
		debug.Warn("MQTT: ack %s: %v", resp.CommandAck, err)
	}
}

func (b *Bridge) publish(topic string, payload []byte) error {
	token := b.client.Publish(topic, b.cfg.QoS, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}

func (b *Bridge) count(fn func(*Stats)) {
	b.mu.Lock()
	fn(&b.stats)
	b.mu.Unlock()
}
