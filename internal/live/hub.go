// Package live broadcasts software-triggered scope frames to websocket clients.
package live

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/tphakala/go-scope/internal/capture"
	"github.com/tphakala/go-scope/internal/config"
	"github.com/tphakala/go-scope/internal/dsp"
)

const (
	// DefaultHistorySeconds of voltage are kept for late joiners.
	DefaultHistorySeconds = 1.0

	sendQueue      = 256
	readBufferSize = 1024
	// frames are a few kilobytes of JSON
	writeBufferSize = 65536
	msPerSecond     = 1000
)

// Message types.
const (
	TypeFrame   = "frame"
	TypeHistory = "history"
)

// Frame is one broadcast message.
type Frame struct {
	Type    string    `json:"type"`
	Time    []float64 `json:"t"` // ms from the trigger point
	Rate    float64   `json:"rate"`
	Volts   []float64 `json:"volts"`
	Trigger bool      `json:"trigger"` // false when no rising crossing was found
}

// Source yields raw chunks; *daq.Stream satisfies it.
type Source interface {
	Next(ctx context.Context) ([]uint16, error)
}

// Options configures a Hub.
type Options struct {
	// Threshold is the trigger level in volts; 0 selects the ADC mid point.
	Threshold      float64
	HistorySeconds float64
}

type client struct {
	conn *websocket.Conn
	send chan Frame
}

// Hub fans frames out to connected clients. Slow clients drop frames instead of
// stalling the capture loop.
type Hub struct {
	adc       config.ADC
	rate      float64
	threshold float64
	history   *capture.History[float64]
	upgrader  websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a hub for captures described by cfg.
func NewHub(cfg config.Config, opts Options) *Hub {
	if opts.Threshold == 0 {
		opts.Threshold = cfg.ADC.VMid
	}
	if opts.HistorySeconds <= 0 {
		opts.HistorySeconds = DefaultHistorySeconds
	}
	rate := cfg.Acquisition.SampleRate
	return &Hub{
		adc:       cfg.ADC,
		rate:      rate,
		threshold: opts.Threshold,
		history:   capture.NewHistory[float64](int(opts.HistorySeconds * rate)),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: writeBufferSize,
		},
		clients: make(map[*client]struct{}),
	}
}

// Publish converts a raw chunk, records it in the history, triggers it and
// broadcasts the frame.
func (h *Hub) Publish(raw []uint16) Frame {
	volts := dsp.RawToVolts(raw, h.adc)
	h.history.Write(volts)

	_, found := dsp.FirstRisingCrossing(volts, h.threshold)
	f := Frame{
		Type:    TypeFrame,
		Time:    timeAxis(len(volts), h.rate),
		Rate:    h.rate,
		Volts:   dsp.SoftwareTrigger(volts, h.threshold),
		Trigger: found,
	}
	h.broadcast(f)
	return f
}

// Run publishes chunks from src until ctx is cancelled or src fails.
// Cancellation returns nil.
func (h *Hub) Run(ctx context.Context, src Source) error {
	frames := 0
	for {
		raw, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				glog.Infof("live: stopped after %d frames", frames)
				return nil
			}
			return err
		}
		h.Publish(raw)
		frames++
		glog.V(2).Infof("live: frame %d to %d clients", frames, h.Clients())
	}
}

// History returns the retained voltage samples, oldest first.
func (h *Hub) History() []float64 { return h.history.Snapshot() }

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(f Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- f:
		default:
		}
	}
}

// ServeHTTP upgrades the request to a websocket, sends the history snapshot and
// then every published frame until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("live: upgrade: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan Frame, sendQueue)}
	hist := h.history.Snapshot()
	c.send <- Frame{Type: TypeHistory, Time: timeAxis(len(hist), h.rate), Rate: h.rate, Volts: hist}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	glog.Infof("live: client %s connected", r.RemoteAddr)

	go c.writePump()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(c.send)
		glog.Infof("live: client %s disconnected", r.RemoteAddr)
	}()

	// clients send nothing useful; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for f := range c.send {
		if err := c.conn.WriteJSON(f); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func timeAxis(n int, rate float64) []float64 {
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i) / rate * msPerSecond
	}
	return t
}
