package changes

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrHubClosed = errors.New("changes: hub closed")

const defaultBuffer = 64

// Hub fans published events out to the subscriptions whose filter matches.
// A subscriber that falls behind loses events rather than stalling the
// publisher; DropFunc is told about every dropped event.
type Hub struct {
	Logger   *slog.Logger
	Buffer   int
	DropFunc func(f Filter)

	mu     sync.Mutex
	subs   map[*hubSubscription]struct{}
	closed bool
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{Logger: logger}
}

func (h *Hub) Subscribe(ctx context.Context, f Filter) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	if h.subs == nil {
		h.subs = make(map[*hubSubscription]struct{})
	}
	size := h.Buffer
	if size <= 0 {
		size = defaultBuffer
	}
	s := &hubSubscription{hub: h, filter: f, ch: make(chan Event, size)}
	h.subs[s] = struct{}{}
	return s, nil
}

func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if !s.filter.Matches(ev) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			h.logger().Warn("changes: subscriber lagging, event dropped", "filter", s.filter.Key(), "id", ev.ID)
			if h.DropFunc != nil {
				h.DropFunc(s.filter)
			}
		}
	}
}

// Len returns the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for s := range h.subs {
		close(s.ch)
		delete(h.subs, s)
	}
	return nil
}

func (h *Hub) remove(s *hubSubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.ch)
}

func (h *Hub) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

type hubSubscription struct {
	hub    *Hub
	filter Filter
	ch     chan Event
	once   sync.Once
}

func (s *hubSubscription) Events() <-chan Event { return s.ch }

func (s *hubSubscription) Close() error {
	s.once.Do(func() { s.hub.remove(s) })
	return nil
}
