package habits

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/arnold/habitgrid-api/internal/docstore"
	"github.com/arnold/habitgrid-api/internal/models"
	"github.com/arnold/habitgrid-api/internal/notify"
)

// AlarmInput is the user's choice of time and weekdays.
type AlarmInput struct {
	Hours   int
	Minutes int
	Mask    notify.WeekMask
}

func (s *Service) ListAlarms(ctx context.Context, uid uuid.UUID, habitID string) ([]models.AlarmDoc, error) {
	snaps, err := s.store.Query(ctx, AlarmsPath(uid, habitID), docstore.Query{OrderBy: "alarmTime.hours", Desc: true})
	if err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}
	out := make([]models.AlarmDoc, 0, len(snaps))
	for _, snap := range snaps {
		var a models.AlarmDoc
		if err := snap.DataTo(&a); err != nil {
			s.log.Warn("skipping unreadable alarm", "path", snap.Path, "error", err)
			continue
		}
		a.ID = snap.ID
		out = append(out, a.Normalize())
	}
	return out, nil
}

func (s *Service) GetAlarm(ctx context.Context, uid uuid.UUID, habitID, alarmID string) (models.AlarmDoc, error) {
	snap, err := s.store.Get(ctx, AlarmPath(uid, habitID, alarmID))
	if err != nil {
		return models.AlarmDoc{}, fmt.Errorf("get alarm: %w", err)
	}
	if !snap.Exists {
		return models.AlarmDoc{}, ErrAlarmNotFound
	}
	var a models.AlarmDoc
	if err := snap.DataTo(&a); err != nil {
		return models.AlarmDoc{}, err
	}
	a.ID = snap.ID
	return a.Normalize(), nil
}

// CreateAlarm registers one weekly notification per selected weekday and
// stores the alarm with its handles. Weekdays that failed to register are
// left out of the stored mask and reported through a *notify.ScheduleError
// next to the stored alarm.
func (s *Service) CreateAlarm(ctx context.Context, uid uuid.UUID, habitID string, in AlarmInput, lang string) (models.AlarmDoc, error) {
	habit, err := s.GetHabit(ctx, uid, habitID)
	if err != nil {
		return models.AlarmDoc{}, err
	}

	alarmID := uuid.NewString()
	path := AlarmPath(uid, habitID, alarmID)
	ids, schedErr := s.notify.Schedule(ctx, s.plan(uid, path, habit, in, lang))
	if err := fatalScheduleError(schedErr); err != nil {
		return models.AlarmDoc{}, err
	}

	doc := s.alarmDoc(alarmID, in, ids)
	if err := s.store.Set(ctx, path, alarmData(doc), false); err != nil {
		s.log.Error("alarm write failed, registrations orphaned", "alarm", path, "handles", ids.Handles(), "error", err)
		return models.AlarmDoc{}, fmt.Errorf("create alarm: %w", err)
	}
	return doc, schedErr
}

// EditAlarm reads the stored handles, cancels them, registers the new
// weekdays and only then writes the alarm.
func (s *Service) EditAlarm(ctx context.Context, uid uuid.UUID, habitID, alarmID string, in AlarmInput, lang string) (models.AlarmDoc, error) {
	current, err := s.GetAlarm(ctx, uid, habitID, alarmID)
	if err != nil {
		return models.AlarmDoc{}, err
	}
	habit, err := s.GetHabit(ctx, uid, habitID)
	if err != nil {
		return models.AlarmDoc{}, err
	}

	path := AlarmPath(uid, habitID, alarmID)
	ids, schedErr := s.notify.Reschedule(ctx, current.Identifiers(), s.plan(uid, path, habit, in, lang))
	if err := fatalScheduleError(schedErr); err != nil {
		return models.AlarmDoc{}, err
	}

	doc := s.alarmDoc(alarmID, in, ids)
	if err := s.store.Set(ctx, path, alarmData(doc), true); err != nil {
		s.log.Error("alarm write failed, registrations orphaned", "alarm", path, "handles", ids.Handles(), "error", err)
		return models.AlarmDoc{}, fmt.Errorf("edit alarm: %w", err)
	}
	return doc, schedErr
}

// DeleteAlarm cancels the alarm's registrations and deletes its document
// concurrently. Both are attempted.
func (s *Service) DeleteAlarm(ctx context.Context, uid uuid.UUID, habitID, alarmID string) error {
	current, err := s.GetAlarm(ctx, uid, habitID, alarmID)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error {
		return s.notify.Cancel(ctx, current.Identifiers())
	})
	g.Go(func() error {
		return s.store.Delete(ctx, AlarmPath(uid, habitID, alarmID))
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("delete alarm: %w", err)
	}
	return nil
}

// Sweep cancels scheduler registrations that no stored alarm refers to,
// such as those left behind by a failed alarm write. Registrations without
// an alarm path are left alone.
func (s *Service) Sweep(ctx context.Context, lister notify.Lister) (int, error) {
	regs, err := lister.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list registrations: %w", err)
	}

	alarms := make(map[string]docstore.Snapshot)
	cancelled := 0
	var errs []error
	for _, reg := range regs {
		if reg.Tag == "" {
			continue
		}
		snap, ok := alarms[reg.Tag]
		if !ok {
			snap, err = s.store.Get(ctx, reg.Tag)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			alarms[reg.Tag] = snap
		}

		if snap.Exists {
			var a models.AlarmDoc
			if err := snap.DataTo(&a); err == nil && a.Identifiers().Contains(reg.ID) {
				continue
			}
		}

		if err := s.notify.CancelHandle(ctx, reg.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		s.log.Info("cancelled orphaned registration", "id", reg.ID, "alarm", reg.Tag)
		cancelled++
	}
	return cancelled, errors.Join(errs...)
}

func (s *Service) plan(uid uuid.UUID, path string, habit models.HabitDoc, in AlarmInput, lang string) notify.Plan {
	return notify.Plan{
		Owner:   uid,
		Tag:     path,
		Hours:   in.Hours,
		Minutes: in.Minutes,
		Mask:    in.Mask,
		Title:   notify.Title(habit.HabitMission, lang),
		Body:    notify.Body(habit.HabitMissionDetail, lang),
	}
}

func (s *Service) alarmDoc(alarmID string, in AlarmInput, ids notify.Identifiers) models.AlarmDoc {
	return models.AlarmDoc{
		ID:              alarmID,
		AlarmTime:       models.AlarmTime{Hours: in.Hours, Minutes: in.Minutes},
		RepeatDayOfWeek: ids.Mask().Slice(),
		AlarmIdentifier: ids.Slice(),
		UpdatedAt:       s.Now(),
	}
}

func alarmData(a models.AlarmDoc) map[string]interface{} {
	return map[string]interface{}{
		"alarmTime":       a.AlarmTime.Map(),
		"repeatDayOfWeek": a.RepeatDayOfWeek,
		"alarmIdentifier": a.AlarmIdentifier,
		"updatedAt":       a.UpdatedAt,
	}
}

// fatalScheduleError passes partial weekday failures through and returns
// anything else.
func fatalScheduleError(err error) error {
	var se *notify.ScheduleError
	if err == nil || errors.As(err, &se) {
		return nil
	}
	return err
}
