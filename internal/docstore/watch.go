package docstore

import (
	"context"
	"sync"
)

const watchBuffer = 8

type watcher struct {
	ch   chan Snapshot
	once sync.Once
}

// Hub fans document changes out to in-process subscribers. A slow
// subscriber loses its oldest queued snapshot, never the newest.
type Hub struct {
	mu    sync.Mutex
	paths map[string]map[*watcher]struct{}
}

func NewHub() *Hub {
	return &Hub{paths: make(map[string]map[*watcher]struct{})}
}

// Watch registers a subscriber primed with initial. The returned func
// unregisters it and closes the channel; it is also called when ctx ends.
func (h *Hub) Watch(ctx context.Context, initial Snapshot) (<-chan Snapshot, func()) {
	w := &watcher{ch: make(chan Snapshot, watchBuffer)}
	w.ch <- initial

	h.mu.Lock()
	if h.paths[initial.Path] == nil {
		h.paths[initial.Path] = make(map[*watcher]struct{})
	}
	h.paths[initial.Path][w] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	cancel := func() {
		w.once.Do(func() {
			h.mu.Lock()
			if set, ok := h.paths[initial.Path]; ok {
				delete(set, w)
				if len(set) == 0 {
					delete(h.paths, initial.Path)
				}
			}
			close(w.ch)
			h.mu.Unlock()
			close(done)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return w.ch, cancel
}

// Publish delivers s to every subscriber of s.Path without blocking.
func (h *Hub) Publish(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.paths[s.Path] {
		select {
		case w.ch <- s:
			continue
		default:
		}
		select {
		case <-w.ch:
		default:
		}
		select {
		case w.ch <- s:
		default:
		}
	}
}

// Watching reports how many subscribers a path has.
func (h *Hub) Watching(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.paths[path])
}
