package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"seirsim.dev/internal/sim/epidemic"
)

const (
	TypeDay    = "DAY"
	TypeResult = "RESULT"
)

type DayMsg struct {
	Type   string          `json:"type"`
	Day    int             `json:"day"`
	Active int             `json:"active"`
	Total  int             `json:"total"`
	Census epidemic.Census `json:"census"`
}

type ResultMsg struct {
	Type    string          `json:"type"`
	Result  epidemic.Result `json:"result"`
	Summary string          `json:"summary"`
}

// Hub streams the epidemic curve to websocket subscribers. It implements
// epidemic.Observer. Sends never block the simulation: a subscriber whose
// queue is full misses that message.
type Hub struct {
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu      sync.Mutex
	subs    map[uint64]chan []byte
	closed  bool
	writers sync.WaitGroup
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		log:  logger,
		subs: map[uint64]chan []byte{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		id, out, ok := h.subscribe()
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "run finished"), time.Now().Add(time.Second))
			return
		}
		defer h.writers.Done()
		defer h.unsubscribe(id)
		h.logf("subscriber %d connected from %s", id, r.RemoteAddr)

		done := make(chan struct{})
		// Reader: only used to notice the peer going away.
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case b, ok := <-out:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"), time.Now().Add(time.Second))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}
	}
}

func (h *Hub) subscribe() (uint64, chan []byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, nil, false
	}
	id := h.nextID.Add(1)
	out := make(chan []byte, 256)
	h.writers.Add(1)
	h.subs[id] = out
	return id, out, true
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if out, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(out)
	}
}

// Subscribers reports the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) broadcast(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.logf("marshal: %v", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, out := range h.subs {
		select {
		case out <- b:
		default:
			h.logf("subscriber %d queue full; dropped message", id)
		}
	}
}

// Close ends every subscription after queued messages drain.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, out := range h.subs {
		delete(h.subs, id)
		close(out)
	}
}

// Wait blocks until every subscriber connection has written its queued
// messages and closed, or ctx ends. Call it after Close.
func (h *Hub) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.writers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) logf(format string, args ...any) {
	if h.log != nil {
		h.log.Printf(format, args...)
	}
}

func (h *Hub) DayStarted(epidemic.DayReport) {}
func (h *Hub) Infected(epidemic.Infection)   {}

func (h *Hub) DayEnded(d epidemic.DayReport) {
	h.broadcast(DayMsg{Type: TypeDay, Day: d.Day, Active: d.Active, Total: d.Total, Census: d.Census})
}

func (h *Hub) Finished(r epidemic.Result) {
	h.broadcast(ResultMsg{Type: TypeResult, Result: r, Summary: r.Summary()})
}
