package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/arnold/habitgrid-api/internal/achievement"
	"github.com/arnold/habitgrid-api/internal/docstore"
	"github.com/arnold/habitgrid-api/internal/models"
)

// Result is the outcome of one direct toggle.
type Result struct {
	Missing bool                 `json:"missing"`
	Changed bool                 `json:"changed"`
	State   achievement.State    `json:"state"`
	Records []achievement.Record `json:"achievements"`
}

// DirectCommit writes every toggle straight to the store. Used by the home
// view where there is no edit session.
type DirectCommit struct {
	store docstore.Store
}

func NewDirectCommit(store docstore.Store) *DirectCommit {
	return &DirectCommit{store: store}
}

// Toggle re-reads the habit, cycles d once and writes the whole achievements
// array back. A missing habit or a future date is a no-op.
func (dc *DirectCommit) Toggle(ctx context.Context, habitPath string, d, today achievement.Date) (Result, error) {
	snap, err := dc.store.Get(ctx, habitPath)
	if err != nil {
		return Result{}, fmt.Errorf("read habit: %w", err)
	}
	if !snap.Exists {
		return Result{Missing: true}, nil
	}

	var habit models.HabitDoc
	if err := snap.DataTo(&habit); err != nil {
		return Result{}, err
	}
	l := habit.Ledger()

	if d.After(today) {
		return Result{State: l.StateAt(d), Records: l.Records()}, nil
	}

	state := l.Cycle(d, today)
	records := l.Records()
	err = dc.store.Update(ctx, habitPath, map[string]interface{}{
		"achievements": achievement.Maps(records),
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return Result{Missing: true}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("write achievements: %w", err)
	}
	return Result{Changed: true, State: state, Records: records}, nil
}
