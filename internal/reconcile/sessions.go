package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arnold/habitgrid-api/internal/docstore"
	"github.com/arnold/habitgrid-api/internal/logger"
)

var ErrSessionNotFound = errors.New("edit session not found")

// DefaultIdle is how long an untouched session lives before it is discarded.
const DefaultIdle = 30 * time.Minute

// Sessions tracks open edit sessions for the HTTP layer.
type Sessions struct {
	store docstore.Store
	idle  time.Duration
	log   *logger.Logger

	mu    sync.Mutex
	items map[uuid.UUID]*Session
}

func NewSessions(store docstore.Store, idle time.Duration, log *logger.Logger) *Sessions {
	if idle <= 0 {
		idle = DefaultIdle
	}
	return &Sessions{
		store: store,
		idle:  idle,
		log:   logger.OrNop(log).With("service", "EditSessions"),
		items: make(map[uuid.UUID]*Session),
	}
}

func (r *Sessions) Open(ctx context.Context, owner uuid.UUID, habitPath string) (*Session, error) {
	s, err := Open(ctx, r.store, owner, habitPath)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.items[s.ID] = s
	r.mu.Unlock()
	r.log.Debug("session opened", "session", s.ID, "habit", habitPath)
	return s, nil
}

// Get returns a live session owned by owner.
func (r *Sessions) Get(id, owner uuid.UUID) (*Session, error) {
	r.mu.Lock()
	s, ok := r.items[id]
	r.mu.Unlock()
	if !ok || s.Owner != owner {
		return nil, ErrSessionNotFound
	}
	if s.Ended() {
		r.remove(id)
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Discard ends and forgets a session without writing.
func (r *Sessions) Discard(id, owner uuid.UUID) error {
	s, err := r.Get(id, owner)
	if err != nil {
		return err
	}
	s.Discard()
	r.remove(id)
	return nil
}

// DiscardHabit ends every session editing habitPath, used when the habit is deleted.
func (r *Sessions) DiscardHabit(habitPath string) {
	r.mu.Lock()
	var ended []*Session
	for id, s := range r.items {
		if s.HabitPath == habitPath {
			ended = append(ended, s)
			delete(r.items, id)
		}
	}
	r.mu.Unlock()
	for _, s := range ended {
		s.Discard()
	}
}

// Sweep discards sessions idle since before now minus the idle limit.
func (r *Sessions) Sweep(now time.Time) int {
	cutoff := now.Add(-r.idle)
	r.mu.Lock()
	var stale []*Session
	for id, s := range r.items {
		if s.Ended() || s.LastUsed().Before(cutoff) {
			stale = append(stale, s)
			delete(r.items, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Discard()
	}
	if len(stale) > 0 {
		r.log.Info("discarded idle sessions", "count", len(stale))
	}
	return len(stale)
}

// Run sweeps every interval until ctx is done, then discards everything.
func (r *Sessions) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Close()
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

func (r *Sessions) Close() {
	r.mu.Lock()
	items := r.items
	r.items = make(map[uuid.UUID]*Session)
	r.mu.Unlock()
	for _, s := range items {
		s.Discard()
	}
}

func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *Sessions) remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()
}
