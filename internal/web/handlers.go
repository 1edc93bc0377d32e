package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/LiveGo/internal/channel"
	"github.com/cjeanneret/LiveGo/internal/debug"
	"github.com/cjeanneret/LiveGo/internal/events"
	"github.com/cjeanneret/LiveGo/internal/live"
	"github.com/cjeanneret/LiveGo/internal/modegate"
)

// maxBodyBytes bounds POST bodies.
const maxBodyBytes = 1 << 20

// Bus is the part of the event bus the HTTP surface uses.
type Bus interface {
	Publish(events.Message)
	SubscribeAll(events.Handler) func()
}

// StateSource is a live controller seen from the HTTP surface.
type StateSource interface {
	Snapshot() live.Snapshot
}

// ModeSource reports the global acquisition mode.
type ModeSource interface {
	Mode() modegate.Mode
}

// Deps are the collaborators of the HTTP surface. Metrics is optional.
type Deps struct {
	Broadcaster *StatusBroadcaster
	Bus         Bus
	Controllers []StateSource
	Channels    *channel.Registry
	Gate        ModeSource
	Metrics     http.Handler
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Deps
	staticFS fs.FS
	upgrader websocket.Upgrader
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(deps Deps, staticFS fs.FS) *Handlers {
	return &Handlers{
		Deps:     deps,
		staticFS: staticFS,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	Mode        string          `json:"mode"`
	Controllers []live.Snapshot `json:"controllers"`
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleState returns every controller snapshot and the global mode.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	resp := StateResponse{Controllers: make([]live.Snapshot, 0, len(h.Controllers))}
	if h.Gate != nil {
		resp.Mode = h.Gate.Mode().String()
	}
	for _, c := range h.Controllers {
		resp.Controllers = append(resp.Controllers, c.Snapshot())
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleChannels returns the configured channels sorted by name.
func (h *Handlers) HandleChannels(w http.ResponseWriter, r *http.Request) {
	modes := h.Channels.All()
	if modes == nil {
		modes = []channel.Mode{}
	}
	writeJSON(w, http.StatusOK, modes)
}

// ---------- commands ----------

type startRequest struct {
	Channel string `json:"channel"`
	Camera  string `json:"camera"`
}

type cameraRequest struct {
	Camera string `json:"camera"`
}

type modeRequest struct {
	Mode   string `json:"mode"`
	Camera string `json:"camera"`
}

type fpsRequest struct {
	FPS    float64 `json:"fps"`
	Camera string  `json:"camera"`
}

type channelRequest struct {
	Name   string `json:"name"`
	Camera string `json:"camera"`
}

type autoRequest struct {
	Enabled *bool `json:"enabled"`
}

type scalingRequest struct {
	Scaling float64 `json:"scaling"`
}

// HandleStart handles POST /live/start.
func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	if req.Channel != "" {
		if _, ok := h.Channels.Lookup(req.Channel); !ok {
			http.Error(w, fmt.Sprintf("unknown channel %q", req.Channel), http.StatusBadRequest)
			return
		}
	}
	h.accept(w, events.StartLiveCommand{Channel: req.Channel, Camera: req.Camera})
}

// HandleStop handles POST /live/stop. The body is optional.
func (h *Handlers) HandleStop(w http.ResponseWriter, r *http.Request) {
	var req cameraRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	h.accept(w, events.StopLiveCommand{Camera: req.Camera})
}

// HandleTriggerMode handles POST /trigger/mode.
func (h *Handlers) HandleTriggerMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	mode, err := live.ParseTriggerMode(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.accept(w, events.SetTriggerModeCommand{Mode: mode.String(), Camera: req.Camera})
}

// HandleTriggerFPS handles POST /trigger/fps.
func (h *Handlers) HandleTriggerFPS(w http.ResponseWriter, r *http.Request) {
	var req fpsRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	if err := live.CheckFPS(req.FPS); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.accept(w, events.SetTriggerFPSCommand{FPS: req.FPS, Camera: req.Camera})
}

// HandleChannel handles POST /channel.
func (h *Handlers) HandleChannel(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	if _, ok := h.Channels.Lookup(req.Name); !ok {
		http.Error(w, fmt.Sprintf("unknown channel %q", req.Name), http.StatusBadRequest)
		return
	}
	h.accept(w, events.SetMicroscopeModeCommand{Channel: req.Name, Camera: req.Camera})
}

// HandleFilterAuto handles POST /filter/auto.
func (h *Handlers) HandleFilterAuto(w http.ResponseWriter, r *http.Request) {
	var req autoRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	if req.Enabled == nil {
		http.Error(w, "missing 'enabled'", http.StatusBadRequest)
		return
	}
	h.accept(w, events.SetFilterAutoSwitchCommand{Enabled: *req.Enabled})
}

// HandleUpdateIllumination handles POST /illumination/update.
func (h *Handlers) HandleUpdateIllumination(w http.ResponseWriter, r *http.Request) {
	h.accept(w, events.UpdateIlluminationCommand{})
}

// HandleScaling handles POST /display/scaling.
func (h *Handlers) HandleScaling(w http.ResponseWriter, r *http.Request) {
	var req scalingRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	if math.IsNaN(req.Scaling) || req.Scaling <= 0 || req.Scaling > 100 {
		http.Error(w, "scaling must be in (0, 100]", http.StatusBadRequest)
		return
	}
	h.accept(w, events.SetDisplayResolutionScalingCommand{Scaling: req.Scaling})
}

// decode reads a JSON body into v. An empty body is accepted only when
// optional is set.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		http.Error(w, "request body too large", http.StatusBadRequest)
		return false
	}
	http.Error(w, "invalid JSON", http.StatusBadRequest)
	return false
}

func (h *Handlers) accept(w http.ResponseWriter, m events.Message) {
	if h.Bus == nil {
		http.Error(w, "live control not configured", http.StatusServiceUnavailable)
		return
	}
	debug.Live("HTTP: command %s", m.Kind())
	h.Bus.Publish(m)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "command": m.Kind()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// ---------- streams ----------

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// WireEvent is one bus event as sent on /ws.
type WireEvent struct {
	Kind  string         `json:"kind"`
	Event events.Message `json:"event"`
}

// HandleEvents handles GET /ws: every bus event is pushed as a JSON text
// message. Slow clients miss events.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if h.Bus == nil {
		http.Error(w, "event bus not configured", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Verbose("HTTP: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	out := make(chan []byte, 64)
	unsub := h.Bus.SubscribeAll(func(m events.Message) {
		if !events.IsEvent(m) {
			return
		}
		data, err := json.Marshal(WireEvent{Kind: m.Kind(), Event: m})
		if err != nil {
			return
		}
		select {
		case out <- data:
		default:
		}
	})
	defer unsub()

	// The read loop only notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case data := <-out:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
