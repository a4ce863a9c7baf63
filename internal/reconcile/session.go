package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/arnold/habitgrid-api/internal/achievement"
	"github.com/arnold/habitgrid-api/internal/docstore"
	"github.com/arnold/habitgrid-api/internal/models"
	"github.com/arnold/habitgrid-api/internal/weekgrid"
)

var (
	ErrHabitNotFound  = errors.New("habit not found")
	ErrSessionEnded   = errors.New("edit session has ended")
	ErrNotReady       = errors.New("edit session has no baseline yet")
	ErrNoChanges      = errors.New("nothing to save")
	ErrSaveInFlight   = errors.New("save already in progress")
	ErrMissionTooLong = errors.New("habit mission too long")
	ErrDetailTooLong  = errors.New("habit detail too long")

	ErrSubscriptionClosed = errors.New("habit subscription closed")
)

// Phase of an edit session.
type Phase int

const (
	Uninitialized Phase = iota
	Baseline
	Editing
	Discarded
)

func (p Phase) String() string {
	switch p {
	case Baseline:
		return "baseline"
	case Editing:
		return "editing"
	case Discarded:
		return "discarded"
	default:
		return "uninitialized"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Session buffers edits to one habit until Save or Discard.
//
// The first snapshot of the habit sets the remote copy, the local working
// copy and the initial texts. Later snapshots only refresh the remote copy,
// so local edits are never overwritten. Once discarded, nothing changes the
// session again, including snapshots and saves still in flight.
type Session struct {
	ID        uuid.UUID
	Owner     uuid.UUID
	HabitPath string

	store docstore.Store
	stop  func()
	ready chan struct{}

	mu             sync.Mutex
	phase          Phase
	saving         bool
	gone           bool
	closed         bool
	remote         *achievement.Ledger
	local          *achievement.Ledger
	initialMission string
	initialDetail  string
	mission        string
	detail         string
	lastUsed       time.Time
}

// Open subscribes to the habit and waits for its first snapshot. The
// subscription outlives ctx and ends with Discard.
func Open(ctx context.Context, store docstore.Store, owner uuid.UUID, habitPath string) (*Session, error) {
	subCtx, cancel := context.WithCancel(context.Background())
	ch, unsubscribe, err := store.Subscribe(subCtx, habitPath)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", habitPath, err)
	}

	s := &Session{
		ID:        uuid.New(),
		Owner:     owner,
		HabitPath: habitPath,
		store:     store,
		ready:     make(chan struct{}),
		remote:    achievement.New(),
		local:     achievement.New(),
		lastUsed:  time.Now(),
		stop: func() {
			unsubscribe()
			cancel()
		},
	}
	go func() {
		for snap := range ch {
			s.apply(snap)
		}
		s.subscriptionEnded()
	}()

	select {
	case <-s.ready:
	case <-ctx.Done():
		s.Discard()
		return nil, ctx.Err()
	}

	s.mu.Lock()
	gone, closed := s.gone, s.closed
	s.mu.Unlock()
	switch {
	case gone:
		s.Discard()
		return nil, fmt.Errorf("%w: %s", ErrHabitNotFound, habitPath)
	case closed:
		s.Discard()
		return nil, fmt.Errorf("%w: %s", ErrSubscriptionClosed, habitPath)
	}
	return s, nil
}

// subscriptionEnded runs when the store stops delivering snapshots. A
// session that never got its first snapshot is released from Open.
func (s *Session) subscriptionEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == Discarded {
		return
	}
	s.closed = true
	s.markReady()
}

func (s *Session) apply(snap docstore.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == Discarded {
		return
	}
	if !snap.Exists {
		s.gone = true
		s.markReady()
		return
	}

	var habit models.HabitDoc
	if err := snap.DataTo(&habit); err != nil {
		if s.phase == Uninitialized {
			s.gone = true
			s.markReady()
		}
		return
	}
	s.gone = false
	s.remote = habit.Ledger()

	if s.phase == Uninitialized {
		s.local = s.remote.Clone()
		s.initialMission = habit.HabitMission
		s.initialDetail = habit.HabitMissionDetail
		s.mission = habit.HabitMission
		s.detail = habit.HabitMissionDetail
		s.phase = Baseline
		s.markReady()
	}
}

func (s *Session) markReady() {
	select {
	case <-s.ready:
	default:
		close(s.ready)
	}
}

// Toggle cycles d in the local copy only.
func (s *Session) Toggle(d, today achievement.Date) (achievement.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.activeLocked(); err != nil {
		return achievement.NoRecord, err
	}
	s.touchLocked()
	if d.After(today) {
		return s.local.StateAt(d), nil
	}
	state := s.local.Cycle(d, today)
	s.phase = Editing
	return state, nil
}

func (s *Session) SetMission(mission string) error {
	if utf8.RuneCountInString(mission) > models.MissionEditMaxLength {
		return ErrMissionTooLong
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.activeLocked(); err != nil {
		return err
	}
	s.touchLocked()
	s.mission = mission
	s.phase = Editing
	return nil
}

func (s *Session) SetDetail(detail string) error {
	if utf8.RuneCountInString(detail) > models.DetailMaxLength {
		return ErrDetailTooLong
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.activeLocked(); err != nil {
		return err
	}
	s.touchLocked()
	s.detail = detail
	s.phase = Editing
	return nil
}

func (s *Session) HasChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasChangesLocked()
}

func (s *Session) hasChangesLocked() bool {
	return s.mission != s.initialMission ||
		s.detail != s.initialDetail ||
		!achievement.Equal(s.local, s.remote)
}

// Save merge-writes mission, detail and achievements. On failure the
// session keeps its pre-save state.
func (s *Session) Save(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	if err := s.activeLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	switch {
	case s.saving:
		s.mu.Unlock()
		return ErrSaveInFlight
	case s.gone:
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrHabitNotFound, s.HabitPath)
	case !s.hasChangesLocked():
		s.mu.Unlock()
		return ErrNoChanges
	}
	s.touchLocked()
	saved := s.local.Clone()
	mission, detail := s.mission, s.detail
	s.saving = true
	s.mu.Unlock()

	err := s.store.Set(ctx, s.HabitPath, map[string]interface{}{
		"habitMission":       mission,
		"habitMissionDetail": detail,
		"achievements":       achievement.Maps(saved.Records()),
		"updatedAt":          now,
	}, true)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	if s.phase == Discarded {
		return err
	}
	if err != nil {
		return fmt.Errorf("save habit: %w", err)
	}

	s.initialMission = mission
	s.initialDetail = detail
	s.remote = saved
	if !s.hasChangesLocked() {
		s.phase = Baseline
	}
	return nil
}

// Discard ends the session without writing. Safe to call more than once.
func (s *Session) Discard() {
	s.mu.Lock()
	if s.phase == Discarded {
		s.mu.Unlock()
		return
	}
	s.phase = Discarded
	s.mu.Unlock()
	s.stop()
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Ended() bool {
	return s.Phase() == Discarded
}

// View is a copy of the session state for rendering.
type View struct {
	ID             uuid.UUID            `json:"id"`
	HabitPath      string               `json:"habitPath"`
	Phase          Phase                `json:"phase"`
	Mission        string               `json:"habitMission"`
	Detail         string               `json:"habitMissionDetail"`
	InitialMission string               `json:"initialMission"`
	InitialDetail  string               `json:"initialDetail"`
	HasChanges     bool                 `json:"hasChanges"`
	Saving         bool                 `json:"saving"`
	Achievements   []achievement.Record `json:"achievements"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		ID:             s.ID,
		HabitPath:      s.HabitPath,
		Phase:          s.phase,
		Mission:        s.mission,
		Detail:         s.detail,
		InitialMission: s.initialMission,
		InitialDetail:  s.initialDetail,
		HasChanges:     s.hasChangesLocked(),
		Saving:         s.saving,
		Achievements:   s.local.Records(),
	}
}

// Grid projects the local copy through a calendar window.
func (s *Session) Grid(w weekgrid.Window, today achievement.Date) []weekgrid.Week {
	s.mu.Lock()
	local := s.local.Clone()
	s.mu.Unlock()
	return w.Project(local, today)
}

func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) activeLocked() error {
	switch s.phase {
	case Discarded:
		return ErrSessionEnded
	case Uninitialized:
		return ErrNotReady
	}
	if s.closed {
		return ErrSubscriptionClosed
	}
	return nil
}

func (s *Session) touchLocked() {
	s.lastUsed = time.Now()
}
