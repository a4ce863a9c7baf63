package habits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/arnold/habitgrid-api/internal/achievement"
	"github.com/arnold/habitgrid-api/internal/docstore"
	"github.com/arnold/habitgrid-api/internal/logger"
	"github.com/arnold/habitgrid-api/internal/models"
	"github.com/arnold/habitgrid-api/internal/notify"
	"github.com/arnold/habitgrid-api/internal/reconcile"
)

var (
	ErrHabitNotFound   = reconcile.ErrHabitNotFound
	ErrAlarmNotFound   = errors.New("alarm not found")
	ErrMissionRequired = errors.New("habit mission required")
	ErrMissionTooLong  = reconcile.ErrMissionTooLong
	ErrDetailTooLong   = reconcile.ErrDetailTooLong
)

// Service owns the habit and alarm documents of every user.
type Service struct {
	store  docstore.Store
	notify *notify.Manager
	log    *logger.Logger
	loc    *time.Location
	now    func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone that decides what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func New(store docstore.Store, mgr *notify.Manager, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		notify: mgr,
		log:    logger.OrNop(log).With("service", "HabitService"),
		loc:    time.Local,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Now() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) Today() achievement.Date {
	return achievement.DateOf(s.Now())
}

// CreateHabit stores a new habit seeded with today's record marked not achieved.
func (s *Service) CreateHabit(ctx context.Context, uid uuid.UUID, mission, detail string) (models.HabitDoc, error) {
	if strings.TrimSpace(mission) == "" {
		return models.HabitDoc{}, ErrMissionRequired
	}
	if utf8.RuneCountInString(mission) > models.MissionMaxLength {
		return models.HabitDoc{}, ErrMissionTooLong
	}
	if utf8.RuneCountInString(detail) > models.DetailMaxLength {
		return models.HabitDoc{}, ErrDetailTooLong
	}

	now := s.Now()
	seed := []achievement.Record{achievement.NewRecord(achievement.DateOf(now), false)}
	id, err := s.store.Add(ctx, HabitsPath(uid), map[string]interface{}{
		"habitMission":       mission,
		"habitMissionDetail": detail,
		"achievements":       achievement.Maps(seed),
		"updatedAt":          now,
	})
	if err != nil {
		return models.HabitDoc{}, fmt.Errorf("create habit: %w", err)
	}

	return models.HabitDoc{
		ID:                 id,
		HabitMission:       mission,
		HabitMissionDetail: detail,
		Achievements:       seed,
		UpdatedAt:          now,
	}, nil
}

// ListHabits returns the user's habits, most recently updated first.
func (s *Service) ListHabits(ctx context.Context, uid uuid.UUID) ([]models.HabitDoc, error) {
	snaps, err := s.store.Query(ctx, HabitsPath(uid), docstore.Query{OrderBy: "updatedAt", Desc: true})
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	out := make([]models.HabitDoc, 0, len(snaps))
	for _, snap := range snaps {
		var h models.HabitDoc
		if err := snap.DataTo(&h); err != nil {
			s.log.Warn("skipping unreadable habit", "path", snap.Path, "error", err)
			continue
		}
		h.ID = snap.ID
		out = append(out, h)
	}
	return out, nil
}

func (s *Service) GetHabit(ctx context.Context, uid uuid.UUID, habitID string) (models.HabitDoc, error) {
	snap, err := s.store.Get(ctx, HabitPath(uid, habitID))
	if err != nil {
		return models.HabitDoc{}, fmt.Errorf("get habit: %w", err)
	}
	if !snap.Exists {
		return models.HabitDoc{}, ErrHabitNotFound
	}
	var h models.HabitDoc
	if err := snap.DataTo(&h); err != nil {
		return models.HabitDoc{}, err
	}
	h.ID = snap.ID
	return h, nil
}

// UpdateHabit edits the mission and detail outside of an edit session.
func (s *Service) UpdateHabit(ctx context.Context, uid uuid.UUID, habitID string, mission, detail *string) (models.HabitDoc, error) {
	fields := map[string]interface{}{"updatedAt": s.Now()}
	if mission != nil {
		if strings.TrimSpace(*mission) == "" {
			return models.HabitDoc{}, ErrMissionRequired
		}
		if utf8.RuneCountInString(*mission) > models.MissionEditMaxLength {
			return models.HabitDoc{}, ErrMissionTooLong
		}
		fields["habitMission"] = *mission
	}
	if detail != nil {
		if utf8.RuneCountInString(*detail) > models.DetailMaxLength {
			return models.HabitDoc{}, ErrDetailTooLong
		}
		fields["habitMissionDetail"] = *detail
	}

	err := s.store.Update(ctx, HabitPath(uid, habitID), fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return models.HabitDoc{}, ErrHabitNotFound
	}
	if err != nil {
		return models.HabitDoc{}, fmt.Errorf("update habit: %w", err)
	}
	return s.GetHabit(ctx, uid, habitID)
}

// DeleteHabit cancels every alarm registration of the habit and deletes the
// alarm and habit documents. Both halves run concurrently and both are
// attempted even when the other fails.
func (s *Service) DeleteHabit(ctx context.Context, uid uuid.UUID, habitID string) error {
	if _, err := s.GetHabit(ctx, uid, habitID); err != nil {
		return err
	}
	alarms, err := s.ListAlarms(ctx, uid, habitID)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error {
		var errs []error
		for _, a := range alarms {
			if err := s.notify.Cancel(ctx, a.Identifiers()); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
	g.Go(func() error {
		var errs []error
		for _, a := range alarms {
			if err := s.store.Delete(ctx, AlarmPath(uid, habitID, a.ID)); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.store.Delete(ctx, HabitPath(uid, habitID)); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	s.log.Info("habit deleted", "habit", habitID, "alarms", len(alarms))
	return nil
}

// TouchLatestAccess records the day the user last opened the home view.
func (s *Service) TouchLatestAccess(ctx context.Context, uid uuid.UUID) error {
	today := s.Today()
	return s.store.Set(ctx, UserPath(uid), map[string]interface{}{
		"latestAccess": map[string]interface{}{
			"year":      today.Year,
			"month":     today.Month,
			"day":       today.Day,
			"dayOfWeek": today.Weekday(),
		},
	}, true)
}

func (s *Service) LatestAccess(ctx context.Context, uid uuid.UUID) (models.UserDoc, error) {
	snap, err := s.store.Get(ctx, UserPath(uid))
	if err != nil {
		return models.UserDoc{}, err
	}
	var doc models.UserDoc
	if !snap.Exists {
		return doc, nil
	}
	if err := snap.DataTo(&doc); err != nil {
		return models.UserDoc{}, err
	}
	return doc, nil
}
