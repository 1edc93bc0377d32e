package mqttbridge

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cjeanneret/LiveGo/internal/events"
)

// ---------- fakes ----------

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	mu         sync.Mutex
	subscribed map[string]mqtt.MessageHandler
	pubs       []published
	subErr     error
}

func (c *fakeClient) Subscribe(topic string, qos byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribed == nil {
		c.subscribed = make(map[string]mqtt.MessageHandler)
	}
	c.subscribed[topic] = cb
	return fakeToken{err: c.subErr}
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.subscribed, t)
	}
	return fakeToken{}
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pubs = append(c.pubs, published{topic: topic, payload: payload.([]byte)})
	return fakeToken{}
}

func (c *fakeClient) deliver(topic string, payload string) {
	c.mu.Lock()
	cb := c.subscribed[topic]
	c.mu.Unlock()
	cb(nil, &fakeMessage{topic: topic, payload: []byte(payload)})
}

func (c *fakeClient) last(topic string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.pubs) - 1; i >= 0; i-- {
		if c.pubs[i].topic == topic {
			return c.pubs[i].payload
		}
	}
	return nil
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func newBridge(t *testing.T) (*Bridge, *fakeClient, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	client := &fakeClient{}
	b := New(Config{TopicPrefix: "scope1/"}, bus, client)
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return b, client, bus
}

func ackOf(t *testing.T, c *fakeClient) Response {
	t.Helper()
	raw := c.last("scope1/ack")
	if raw == nil {
		t.Fatal("no ack published")
	}
	var r Response
	if err := json.Unmarshal(raw, &r); err != nil {
		t.Fatalf("ack payload: %v", err)
	}
	return r
}

// ---------- commands ----------

func TestBridge_CommandToBus(t *testing.T) {
	b, client, bus := newBridge(t)
	var got []events.StartLiveCommand
	events.Subscribe(bus, func(c events.StartLiveCommand) { got = append(got, c) })

	client.deliver("scope1/command", `{"command":"start_live","channel":"BF","camera":"main"}`)
	bus.Drain()

	if len(got) != 1 || got[0].Channel != "BF" || got[0].Camera != "main" {
		t.Errorf("bus commands = %+v", got)
	}
	if r := ackOf(t, client); r.Status != "accepted" || r.CommandAck != "start_live" || r.Timestamp == "" {
		t.Errorf("ack = %+v", r)
	}
	if b.Stats().Accepted != 1 {
		t.Errorf("stats = %+v", b.Stats())
	}
}

func TestBridge_RejectedCommands(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		errPart string
	}{
		{"invalid json", `{"command":`, "invalid JSON"},
		{"unknown", `{"command":"self_destruct"}`, "unknown command"},
		{"bad mode", `{"command":"set_trigger_mode","mode":"strobe"}`, "unknown trigger mode"},
		{"zero fps", `{"command":"set_trigger_fps","fps":0}`, "fps"},
		{"fps interval overflows", `{"command":"set_trigger_fps","fps":1e-10}`, "interval out of range"},
		{"no channel", `{"command":"set_microscope_mode"}`, "channel"},
		{"bad scaling", `{"command":"set_display_resolution_scaling","scaling":120}`, "scaling"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, client, bus := newBridge(t)
			client.deliver("scope1/command", tc.payload)

			if bus.Pending() != 0 {
				t.Error("rejected command must not reach the bus")
			}
			r := ackOf(t, client)
			if r.Status != "error" || !strings.Contains(r.Error, tc.errPart) {
				t.Errorf("ack = %+v, want error containing %q", r, tc.errPart)
			}
			if b.Stats().Rejected != 1 {
				t.Errorf("stats = %+v", b.Stats())
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	cases := []struct {
		cmd  Command
		want events.Message
	}{
		{Command{Command: "stop_live", Camera: "side"}, events.StopLiveCommand{Camera: "side"}},
		{Command{Command: "set_trigger_mode", Mode: "Hardware"}, events.SetTriggerModeCommand{Mode: "hardware"}},
		{Command{Command: "set_trigger_fps", FPS: 12.5}, events.SetTriggerFPSCommand{FPS: 12.5}},
		{Command{Command: "set_microscope_mode", Channel: "BF"}, events.SetMicroscopeModeCommand{Channel: "BF"}},
		{Command{Command: "set_filter_auto_switch", Enabled: true}, events.SetFilterAutoSwitchCommand{Enabled: true}},
		{Command{Command: "update_illumination"}, events.UpdateIlluminationCommand{}},
		{Command{Command: "set_display_resolution_scaling", Scaling: 50}, events.SetDisplayResolutionScalingCommand{Scaling: 50}},
	}
	for _, tc := range cases {
		t.Run(tc.cmd.Command, func(t *testing.T) {
			got, err := Translate(tc.cmd)
			if err != nil {
				t.Fatalf("Translate: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %#v, want %#v", got, tc.want)
			}
		})
	}
}

// ---------- events ----------

func TestBridge_ForwardsEventsOnly(t *testing.T) {
	b, client, bus := newBridge(t)

	bus.Publish(events.TriggerFPSChanged{Camera: "main", FPS: 7})
	bus.Publish(events.StopLiveCommand{})
	bus.Drain()

	raw := client.last("scope1/events/trigger_fps_changed")
	if raw == nil {
		t.Fatal("event not forwarded")
	}
	var e events.TriggerFPSChanged
	if err := json.Unmarshal(raw, &e); err != nil || e.FPS != 7 || e.Camera != "main" {
		t.Errorf("payload = %s (%v)", raw, err)
	}
	if client.last("scope1/events/stop_live") != nil {
		t.Error("commands must not be forwarded")
	}
	if b.Stats().Forwarded != 1 {
		t.Errorf("stats = %+v", b.Stats())
	}
}

func TestBridge_Stop(t *testing.T) {
	b, client, bus := newBridge(t)
	b.Stop()

	if _, ok := client.subscribed["scope1/command"]; ok {
		t.Error("command topic should be unsubscribed")
	}
	bus.Publish(events.FilterAutoSwitchChanged{Enabled: true})
	bus.Drain()
	if client.last("scope1/events/filter_auto_switch_changed") != nil {
		t.Error("events must not be forwarded after Stop")
	}
}

func TestBridge_SubscribeFailure(t *testing.T) {
	client := &fakeClient{subErr: errors.New("not authorized")}
	b := New(Config{}, events.NewBus(), client)
	if err := b.Start(); err == nil {
		t.Error("expected subscription error")
	}
	if New(Config{}, events.NewBus(), nil).Start() == nil {
		t.Error("expected error without client")
	}
}

func TestClientIDAndBroker(t *testing.T) {
	if ClientID("bench-3") != "bench-3" {
		t.Error("configured client id must be kept")
	}
	id := ClientID("")
	if !strings.HasPrefix(id, "livego-") || len(id) != len("livego-")+36 {
		t.Errorf("generated id = %q", id)
	}
	if brokerURL("localhost:1883") != "tcp://localhost:1883" {
		t.Error("bare host:port should get tcp://")
	}
	if brokerURL("ssl://broker:8883") != "ssl://broker:8883" {
		t.Error("URL with scheme must be kept")
	}
}
