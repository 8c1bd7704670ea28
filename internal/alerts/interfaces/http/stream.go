package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	alertapp "andon-cloud/internal/alerts/application"
	alerts "andon-cloud/internal/alerts/domain"
)

// SSEBroker fans out alert events to connected boards.
type SSEBroker struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// NewSSEBroker constructs a broker.
func NewSSEBroker() *SSEBroker {
	return &SSEBroker{clients: make(map[chan []byte]struct{})}
}

// Notify implements AlertNotifier. Slow clients drop events instead of blocking.
func (b *SSEBroker) Notify(_ context.Context, event alertapp.AlertEvent) {
	if b == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	b.broadcast(payload)
}

// Subscribe registers a new client channel.
func (b *SSEBroker) Subscribe() chan []byte {
	if b == nil {
		return nil
	}
	ch := make(chan []byte, 16)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a client channel.
func (b *SSEBroker) Unsubscribe(ch chan []byte) {
	if b == nil || ch == nil {
		return
	}
	b.mu.Lock()
	_, ok := b.clients[ch]
	delete(b.clients, ch)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Clients returns the number of connected subscribers.
func (b *SSEBroker) Clients() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *SSEBroker) broadcast(payload []byte) {
	b.mu.Lock()
	clients := make([]chan []byte, 0, len(b.clients))
	for ch := range b.clients {
		clients = append(clients, ch)
	}
	b.mu.Unlock()
	for _, ch := range clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// SnapshotFunc returns the current alert state.
type SnapshotFunc func(ctx context.Context, now time.Time) (alerts.State, error)

// StreamHandler serves the SSE alert stream.
type StreamHandler struct {
	broker    *SSEBroker
	snapshot  SnapshotFunc
	heartbeat time.Duration
}

// StreamOption customizes the stream handler.
type StreamOption func(*StreamHandler)

// WithHeartbeat re-reads the alert on every tick so lazy expiry reaches idle boards.
func WithHeartbeat(interval time.Duration) StreamOption {
	return func(h *StreamHandler) {
		if interval > 0 {
			h.heartbeat = interval
		}
	}
}

// NewStreamHandler constructs a stream handler. snapshot may be nil.
func NewStreamHandler(broker *SSEBroker, snapshot SnapshotFunc, opts ...StreamOption) *StreamHandler {
	handler := &StreamHandler{broker: broker, snapshot: snapshot, heartbeat: 15 * time.Second}
	for _, opt := range opts {
		opt(handler)
	}
	return handler
}

// ServeHTTP handles GET /api/v1/alert/stream.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.broker == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	ch := h.broker.Subscribe()
	if ch == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	defer h.broker.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ready := []byte("{}")
	if h.snapshot != nil {
		if state, _ := h.snapshot(r.Context(), time.Time{}); state.Phase != "" {
			if payload, err := json.Marshal(state); err == nil {
				ready = payload
			}
		}
	}
	writeEvent(w, "ready", ready)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	done := r.Context().Done()
	for {
		select {
		case payload, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, "alert", payload)
			flusher.Flush()
		case <-ticker.C:
			if h.snapshot != nil {
				_, _ = h.snapshot(r.Context(), time.Time{})
			}
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case <-done:
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, payload []byte) {
	_, _ = w.Write([]byte("event: " + name + "\n"))
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n\n"))
}
