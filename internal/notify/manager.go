package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/arnold/habitgrid-api/internal/locale"
	"github.com/arnold/habitgrid-api/internal/logger"
)

// BodyLimit is the number of characters of the habit detail shown in a notification.
const BodyLimit = 20

// Plan describes the weekly alarm to register.
type Plan struct {
	Owner   uuid.UUID
	Tag     string
	Hours   int
	Minutes int
	Mask    WeekMask
	Title   string
	Body    string
}

func (p Plan) Validate() error {
	if p.Hours < 0 || p.Hours > 23 || p.Minutes < 0 || p.Minutes > 59 {
		return fmt.Errorf("%w: %02d:%02d", ErrInvalidTime, p.Hours, p.Minutes)
	}
	return nil
}

// ScheduleError reports the weekdays whose registration failed. The
// identifiers returned next to it are still valid for the other weekdays.
type ScheduleError struct {
	Failed []int
	Err    error
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("schedule failed for weekdays %v: %v", e.Failed, e.Err)
}

func (e *ScheduleError) Unwrap() error { return e.Err }

// Manager turns alarms into one weekly registration per enabled weekday.
type Manager struct {
	scheduler Scheduler
	log       *logger.Logger
}

func NewManager(s Scheduler, log *logger.Logger) *Manager {
	return &Manager{scheduler: s, log: logger.OrNop(log).With("service", "NotifyManager")}
}

// Schedule registers every enabled weekday independently. A failing weekday
// leaves a nil handle and does not stop the others.
func (m *Manager) Schedule(ctx context.Context, p Plan) (Identifiers, error) {
	var ids Identifiers
	if err := p.Validate(); err != nil {
		return ids, err
	}
	if !p.Mask.Any() {
		return ids, nil
	}

	if granted, err := m.scheduler.RequestPermission(ctx, p.Owner); err != nil || !granted {
		m.log.Warn("notification permission not granted", "owner", p.Owner, "error", err)
	}

	var failed []int
	var errs []error
	for i, on := range p.Mask {
		if !on {
			continue
		}
		id, err := m.scheduler.Schedule(ctx, Request{
			Owner: p.Owner,
			Tag:   p.Tag,
			Title: p.Title,
			Body:  p.Body,
			Sound: true,
			Trigger: Trigger{
				Weekly:  true,
				Hour:    p.Hours,
				Minute:  p.Minutes,
				Weekday: i + 1,
			},
		})
		if err != nil {
			m.log.Error("schedule weekday failed", "weekday", i, "tag", p.Tag, "error", err)
			failed = append(failed, i)
			errs = append(errs, fmt.Errorf("weekday %d: %w", i, err))
			continue
		}
		handle := id
		ids[i] = &handle
	}

	if len(errs) > 0 {
		return ids, &ScheduleError{Failed: failed, Err: errors.Join(errs...)}
	}
	return ids, nil
}

// Cancel attempts every non-nil handle, even after failures.
func (m *Manager) Cancel(ctx context.Context, ids Identifiers) error {
	var errs []error
	for i, id := range ids {
		if id == nil {
			continue
		}
		if err := m.scheduler.Cancel(ctx, *id); err != nil {
			m.log.Warn("cancel registration failed", "weekday", i, "id", *id, "error", err)
			errs = append(errs, fmt.Errorf("cancel %s: %w", *id, err))
		}
	}
	return errors.Join(errs...)
}

// CancelHandle cancels a single registration.
func (m *Manager) CancelHandle(ctx context.Context, id string) error {
	if err := m.scheduler.Cancel(ctx, id); err != nil {
		return fmt.Errorf("cancel %s: %w", id, err)
	}
	return nil
}

// Reschedule cancels the old handles and then registers the new plan.
// Cancellation failures are logged and do not block the new registrations.
func (m *Manager) Reschedule(ctx context.Context, old Identifiers, p Plan) (Identifiers, error) {
	if err := p.Validate(); err != nil {
		return Identifiers{}, err
	}
	if err := m.Cancel(ctx, old); err != nil {
		m.log.Warn("old registrations not fully cancelled", "tag", p.Tag, "error", err)
	}
	return m.Schedule(ctx, p)
}

// Title is the habit mission, or a localized default when it is blank.
func Title(mission, lang string) string {
	if strings.TrimSpace(mission) != "" {
		return mission
	}
	return locale.T(lang, locale.NotificationDefaultTitle)
}

// Body is the first BodyLimit characters of the detail, or a localized
// default when it is blank.
func Body(detail, lang string) string {
	if strings.TrimSpace(detail) == "" {
		return locale.T(lang, locale.NotificationDefaultBody)
	}
	r := []rune(detail)
	if len(r) > BodyLimit {
		return string(r[:BodyLimit])
	}
	return detail
}
