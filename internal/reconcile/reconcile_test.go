package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/arnold/habitgrid-api/internal/achievement"
	"github.com/arnold/habitgrid-api/internal/docstore"
	"github.com/arnold/habitgrid-api/internal/models"
	"github.com/arnold/habitgrid-api/internal/weekgrid"
)

const habitPath = "users/u1/habits/h1"

func day(y, m, d int) achievement.Date { return achievement.Date{Year: y, Month: m, Day: d} }

// gatedStore holds Set calls until release is closed and can fail them.
type gatedStore struct {
	*docstore.Memory
	release chan struct{}
	entered chan struct{}
	fail    error
}

func (g *gatedStore) Set(ctx context.Context, path string, data map[string]interface{}, merge bool) error {
	if g.entered != nil {
		g.entered <- struct{}{}
	}
	if g.release != nil {
		<-g.release
	}
	if g.fail != nil {
		return g.fail
	}
	return g.Memory.Set(ctx, path, data, merge)
}

// failingUpdateStore fails every Update with err.
type failingUpdateStore struct {
	*docstore.Memory
	err error
}

func (f *failingUpdateStore) Update(context.Context, string, map[string]interface{}) error {
	return f.err
}

// feedStore hands out a subscription channel the test drives by hand.
type feedStore struct {
	*docstore.Memory
	feed chan docstore.Snapshot
}

func (f *feedStore) Subscribe(context.Context, string) (<-chan docstore.Snapshot, func(), error) {
	return f.feed, func() {}, nil
}

func seedHabit(t *testing.T, s docstore.Store, records ...achievement.Record) {
	t.Helper()
	err := s.Set(context.Background(), habitPath, map[string]interface{}{
		"habitMission":       "Run",
		"habitMissionDetail": "5km",
		"achievements":       achievement.Maps(records),
		"updatedAt":          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}, false)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func readHabit(t *testing.T, s docstore.Store) models.HabitDoc {
	t.Helper()
	snap, err := s.Get(context.Background(), habitPath)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var h models.HabitDoc
	if err := snap.DataTo(&h); err != nil {
		t.Fatalf("DataTo: %v", err)
	}
	return h
}

func TestDirectToggleCyclesAndPersists(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	seedHabit(t, store)
	dc := NewDirectCommit(store)
	today := day(2024, 3, 10)

	want := []struct {
		state achievement.State
		count int
	}{
		{achievement.Achieved, 1},
		{achievement.NotAchieved, 1},
		{achievement.NoRecord, 0},
	}
	for i, w := range want {
		res, err := dc.Toggle(ctx, habitPath, today, today)
		if err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
		if res.State != w.state || !res.Changed {
			t.Fatalf("toggle %d = %+v, want %s", i, res, w.state)
		}
		h := readHabit(t, store)
		if len(h.Achievements) != w.count {
			t.Fatalf("toggle %d persisted %+v", i, h.Achievements)
		}
		if w.count == 1 && h.Achievements[0] != achievement.NewRecord(today, w.state == achievement.Achieved) {
			t.Fatalf("toggle %d persisted %+v", i, h.Achievements[0])
		}
		if h.HabitMission != "Run" {
			t.Fatalf("direct toggle touched other fields: %+v", h)
		}
	}
}

func TestDirectToggleMissingHabitIsNoop(t *testing.T) {
	store := docstore.NewMemory()
	res, err := NewDirectCommit(store).Toggle(context.Background(), habitPath, day(2024, 1, 1), day(2024, 1, 1))
	if err != nil || !res.Missing || res.Changed {
		t.Fatalf("unexpected result %+v, %v", res, err)
	}
	if snap, _ := store.Get(context.Background(), habitPath); snap.Exists {
		t.Fatalf("toggle created a habit")
	}
}

func TestDirectToggleFutureDateIsNoop(t *testing.T) {
	store := docstore.NewMemory()
	seedHabit(t, store)
	res, err := NewDirectCommit(store).Toggle(context.Background(), habitPath, day(2024, 1, 2), day(2024, 1, 1))
	if err != nil || res.Changed || res.State != achievement.NoRecord {
		t.Fatalf("unexpected result %+v, %v", res, err)
	}
	if h := readHabit(t, store); len(h.Achievements) != 0 {
		t.Fatalf("future toggle persisted %+v", h.Achievements)
	}
}

func TestDirectToggleWriteFailureKeepsStore(t *testing.T) {
	seeded := achievement.NewRecord(day(2024, 1, 1), true)
	for _, tc := range []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"io error", errors.New("connection reset"), true},
		{"deleted before write", docstore.ErrNotFound, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store := &failingUpdateStore{Memory: docstore.NewMemory(), err: tc.err}
			seedHabit(t, store, seeded)
			res, err := NewDirectCommit(store).Toggle(context.Background(), habitPath, day(2024, 1, 2), day(2024, 1, 2))
			if (err != nil) != tc.wantErr {
				t.Fatalf("Toggle err = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr && !errors.Is(err, tc.err) {
				t.Fatalf("Toggle err = %v, want wrapped %v", err, tc.err)
			}
			if res.Changed {
				t.Fatalf("failed write reported a change: %+v", res)
			}
			if !tc.wantErr && !res.Missing {
				t.Fatalf("ErrNotFound on write should report Missing: %+v", res)
			}
			h := readHabit(t, store)
			if len(h.Achievements) != 1 || h.Achievements[0] != seeded {
				t.Fatalf("stored achievements changed: %+v", h.Achievements)
			}
		})
	}
}

func TestSessionScenario(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	jan1 := day(2024, 1, 1)
	seedHabit(t, store, achievement.NewRecord(jan1, true))

	s, err := Open(ctx, store, uuid.New(), habitPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Discard()

	if s.Phase() != Baseline || s.HasChanges() {
		t.Fatalf("fresh session should be a clean baseline, got %s", s.Phase())
	}

	if st, _ := s.Toggle(jan1, day(2024, 1, 5)); st != achievement.NotAchieved {
		t.Fatalf("first toggle = %s", st)
	}
	if st, _ := s.Toggle(jan1, day(2024, 1, 5)); st != achievement.NoRecord {
		t.Fatalf("second toggle = %s", st)
	}
	if !s.HasChanges() || s.Phase() != Editing {
		t.Fatalf("expected pending changes in editing phase")
	}
	if h := readHabit(t, store); len(h.Achievements) != 1 {
		t.Fatalf("local toggles leaked to the store: %+v", h.Achievements)
	}

	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	if err := s.Save(ctx, now); err != nil {
		t.Fatalf("Save: %v", err)
	}
	h := readHabit(t, store)
	if len(h.Achievements) != 0 || !h.UpdatedAt.Equal(now) || h.HabitMission != "Run" {
		t.Fatalf("unexpected saved habit %+v", h)
	}
	if s.HasChanges() || s.Phase() != Baseline {
		t.Fatalf("save should reset to a clean baseline")
	}
	if err := s.Save(ctx, now); !errors.Is(err, ErrNoChanges) {
		t.Fatalf("second save = %v, want ErrNoChanges", err)
	}
}

func TestSessionDiscardLeavesRemoteUntouched(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	jan1 := day(2024, 1, 1)
	seedHabit(t, store, achievement.NewRecord(jan1, true))

	s, err := Open(ctx, store, uuid.New(), habitPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Toggle(jan1, jan1)
	if err := s.SetMission("Walk"); err != nil {
		t.Fatalf("SetMission: %v", err)
	}
	s.Discard()

	h := readHabit(t, store)
	if len(h.Achievements) != 1 || !h.Achievements[0].Achievement || h.HabitMission != "Run" {
		t.Fatalf("discard wrote to the store: %+v", h)
	}
	if _, err := s.Toggle(jan1, jan1); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("toggle after discard = %v", err)
	}
	if err := s.Save(ctx, time.Now()); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("save after discard = %v", err)
	}
}

func TestSessionIgnoresLaterSnapshotsForLocal(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	seedHabit(t, store)

	s, err := Open(ctx, store, uuid.New(), habitPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Discard()

	s.SetDetail("10km")
	if err := store.Set(ctx, habitPath, map[string]interface{}{
		"habitMission": "Swim",
		"achievements": achievement.Maps([]achievement.Record{achievement.NewRecord(day(2024, 1, 3), true)}),
	}, true); err != nil {
		t.Fatalf("remote write: %v", err)
	}

	waitFor(t, func() bool { return s.HasChanges() && remoteLen(s) == 1 })

	v := s.View()
	if v.Mission != "Run" || v.InitialMission != "Run" || v.Detail != "10km" {
		t.Fatalf("later snapshot clobbered the session: %+v", v)
	}
	if len(v.Achievements) != 0 {
		t.Fatalf("later snapshot overwrote local achievements: %+v", v.Achievements)
	}
}

func TestSessionDiscardDuringSaveDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	mem := docstore.NewMemory()
	store := &gatedStore{Memory: mem}
	seedHabit(t, mem)

	s, err := Open(ctx, store, uuid.New(), habitPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.SetMission("Walk")

	store.entered = make(chan struct{}, 1)
	store.release = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- s.Save(ctx, time.Now()) }()

	<-store.entered
	if err := s.Save(ctx, time.Now()); !errors.Is(err, ErrSaveInFlight) {
		t.Fatalf("concurrent save = %v", err)
	}
	s.Discard()
	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("in-flight save: %v", err)
	}

	v := s.View()
	if v.Phase != Discarded || v.InitialMission != "Run" {
		t.Fatalf("session mutated after discard: %+v", v)
	}
}

func TestSessionSaveFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	mem := docstore.NewMemory()
	seedHabit(t, mem)
	store := &gatedStore{Memory: mem}

	s, err := Open(ctx, store, uuid.New(), habitPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Discard()

	s.SetMission("Walk")
	store.fail = errors.New("offline")
	if err := s.Save(ctx, time.Now()); err == nil {
		t.Fatalf("expected save failure")
	}
	v := s.View()
	if !v.HasChanges || v.Mission != "Walk" || v.InitialMission != "Run" || v.Phase != Editing {
		t.Fatalf("failed save changed the session: %+v", v)
	}
}

func TestSessionValidation(t *testing.T) {
	store := docstore.NewMemory()
	seedHabit(t, store)
	s, err := Open(context.Background(), store, uuid.New(), habitPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Discard()

	if err := s.SetMission("123456789012345"); !errors.Is(err, ErrMissionTooLong) {
		t.Fatalf("15 char mission = %v", err)
	}
	if err := s.SetMission("12345678901234"); err != nil {
		t.Fatalf("14 char mission = %v", err)
	}
	long := make([]rune, models.DetailMaxLength+1)
	for i := range long {
		long[i] = 'あ'
	}
	if err := s.SetDetail(string(long)); !errors.Is(err, ErrDetailTooLong) {
		t.Fatalf("long detail = %v", err)
	}
	if grid := s.Grid(weekgrid.Window{}, day(2024, 1, 17)); len(grid) != weekgrid.WeeksPerBlock {
		t.Fatalf("Grid returned %d weeks", len(grid))
	}
}

func TestOpenMissingHabit(t *testing.T) {
	_, err := Open(context.Background(), docstore.NewMemory(), uuid.New(), habitPath)
	if !errors.Is(err, ErrHabitNotFound) {
		t.Fatalf("Open on missing habit = %v", err)
	}
}

func TestOpenClosedSubscription(t *testing.T) {
	store := &feedStore{Memory: docstore.NewMemory(), feed: make(chan docstore.Snapshot)}
	seedHabit(t, store)
	close(store.feed)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Open(ctx, store, uuid.New(), habitPath)
	if !errors.Is(err, ErrSubscriptionClosed) {
		t.Fatalf("Open on closed subscription = %v", err)
	}
}

func TestSessionFailsAfterSubscriptionEnds(t *testing.T) {
	ctx := context.Background()
	store := &feedStore{Memory: docstore.NewMemory(), feed: make(chan docstore.Snapshot, 1)}
	seedHabit(t, store)
	snap, err := store.Get(ctx, habitPath)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	store.feed <- snap

	s, err := Open(ctx, store, uuid.New(), habitPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Discard()
	if _, err := s.Toggle(day(2024, 1, 1), day(2024, 1, 1)); err != nil {
		t.Fatalf("Toggle before close: %v", err)
	}

	close(store.feed)
	waitFor(t, func() bool {
		_, err := s.Toggle(day(2024, 1, 1), day(2024, 1, 1))
		return errors.Is(err, ErrSubscriptionClosed)
	})
	if err := s.Save(ctx, time.Now()); !errors.Is(err, ErrSubscriptionClosed) {
		t.Fatalf("Save after close = %v", err)
	}
}

func TestSessionsRegistry(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	seedHabit(t, store)
	reg := NewSessions(store, time.Minute, nil)
	owner := uuid.New()

	s, err := reg.Open(ctx, owner, habitPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := reg.Get(s.ID, uuid.New()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("foreign owner lookup = %v", err)
	}
	if got, err := reg.Get(s.ID, owner); err != nil || got != s {
		t.Fatalf("Get = %v, %v", got, err)
	}

	if n := reg.Sweep(time.Now()); n != 0 {
		t.Fatalf("fresh session swept")
	}
	if n := reg.Sweep(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Fatalf("idle session not swept")
	}
	if !s.Ended() || reg.Len() != 0 {
		t.Fatalf("swept session should be discarded and removed")
	}

	s2, _ := reg.Open(ctx, owner, habitPath)
	reg.DiscardHabit(habitPath)
	if !s2.Ended() {
		t.Fatalf("DiscardHabit left the session open")
	}
}

func remoteLen(s *Session) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote.Len()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}
