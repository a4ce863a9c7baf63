package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/arnold/habitgrid-api/internal/logger"
	"github.com/arnold/habitgrid-api/internal/models"
	"github.com/arnold/habitgrid-api/internal/notify"
)

// Deliverer sends a fired registration to the user's device.
type Deliverer interface {
	HasDevice(userID uuid.UUID) bool
	SendToUser(userID uuid.UUID, title, body string, data map[string]string)
}

// CronScheduler registers weekly notifications as cron entries backed by
// NotificationRegistration rows. It implements notify.Scheduler and
// notify.Lister.
type CronScheduler struct {
	db   *gorm.DB
	push Deliverer
	log  *logger.Logger
	cron *cron.Cron
	now  func() time.Time

	mu      sync.Mutex
	entries map[uuid.UUID]cron.EntryID
}

func NewCronScheduler(db *gorm.DB, push Deliverer, loc *time.Location, log *logger.Logger) *CronScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &CronScheduler{
		db:      db,
		push:    push,
		log:     logger.OrNop(log).With("service", "CronScheduler"),
		cron:    cron.New(cron.WithLocation(loc)),
		now:     time.Now,
		entries: make(map[uuid.UUID]cron.EntryID),
	}
}

func (s *CronScheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron loop and returns a context that is done once running
// jobs have finished.
func (s *CronScheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Restore arms a cron entry for every stored registration.
func (s *CronScheduler) Restore(ctx context.Context) (int, error) {
	var rows []models.NotificationRegistration
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("load registrations: %w", err)
	}
	armed := 0
	for _, row := range rows {
		if err := s.arm(row); err != nil {
			s.log.Error("registration not restored", "id", row.ID, "error", err)
			continue
		}
		armed++
	}
	s.log.Info("registrations restored", "count", armed)
	return armed, nil
}

// RequestPermission grants when the owner has a device to notify.
func (s *CronScheduler) RequestPermission(ctx context.Context, owner uuid.UUID) (bool, error) {
	if s.push == nil {
		return false, nil
	}
	return s.push.HasDevice(owner), nil
}

func (s *CronScheduler) Schedule(ctx context.Context, req notify.Request) (string, error) {
	if err := req.Trigger.Validate(); err != nil {
		return "", err
	}
	row := models.NotificationRegistration{
		UserID:    req.Owner,
		AlarmPath: req.Tag,
		Title:     req.Title,
		Body:      req.Body,
		Sound:     req.Sound,
		Hour:      req.Trigger.Hour,
		Minute:    req.Trigger.Minute,
		Weekday:   req.Trigger.Weekday,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("store registration: %w", err)
	}
	if err := s.arm(row); err != nil {
		if derr := s.db.WithContext(ctx).Delete(&models.NotificationRegistration{}, "id = ?", row.ID).Error; derr != nil {
			s.log.Error("failed to remove unarmed registration", "id", row.ID, "error", derr)
		}
		return "", err
	}
	return row.ID.String(), nil
}

// Cancel removes the registration. Unknown handles are ignored.
func (s *CronScheduler) Cancel(ctx context.Context, id string) error {
	rid, err := uuid.Parse(id)
	if err != nil {
		s.log.Warn("ignoring malformed registration handle", "id", id, "error", err)
		return nil
	}

	s.mu.Lock()
	if entry, ok := s.entries[rid]; ok {
		s.cron.Remove(entry)
		delete(s.entries, rid)
	}
	s.mu.Unlock()

	if err := s.db.WithContext(ctx).Delete(&models.NotificationRegistration{}, "id = ?", rid).Error; err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	return nil
}

func (s *CronScheduler) List(ctx context.Context) ([]notify.Registration, error) {
	var rows []models.NotificationRegistration
	if err := s.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]notify.Registration, 0, len(rows))
	for _, row := range rows {
		out = append(out, notify.Registration{ID: row.ID.String(), Owner: row.UserID, Tag: row.AlarmPath})
	}
	return out, nil
}

// Armed reports how many cron entries are live.
func (s *CronScheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *CronScheduler) arm(row models.NotificationRegistration) error {
	id := row.ID
	entry, err := s.cron.AddFunc(cronSpec(row), func() { s.fire(id) })
	if err != nil {
		return fmt.Errorf("arm registration %s: %w", id, err)
	}
	s.mu.Lock()
	if old, ok := s.entries[id]; ok {
		s.cron.Remove(old)
	}
	s.entries[id] = entry
	s.mu.Unlock()
	return nil
}

func (s *CronScheduler) fire(id uuid.UUID) {
	var row models.NotificationRegistration
	if err := s.db.First(&row, "id = ?", id).Error; err != nil {
		s.log.Warn("fired registration is gone", "id", id, "error", err)
		return
	}
	if s.push != nil {
		s.push.SendToUser(row.UserID, row.Title, row.Body, map[string]string{
			"type":  "alarm",
			"alarm": row.AlarmPath,
		})
	}
	now := s.now()
	if err := s.db.Model(&row).Update("last_fired", &now).Error; err != nil {
		s.log.Error("failed to record firing", "id", id, "error", err)
	}
	s.log.Debug("registration fired", "id", id, "user", row.UserID)
}

// cronSpec converts a 1-based weekday (1 = Sunday) to cron's 0-based field.
func cronSpec(row models.NotificationRegistration) string {
	return fmt.Sprintf("%d %d * * %d", row.Minute, row.Hour, row.Weekday-1)
}
