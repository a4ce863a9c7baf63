package services

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arnold/habitgrid-api/internal/logger"
	"github.com/arnold/habitgrid-api/internal/models"
)

// sender is the part of the FCM client used here.
type sender interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// PushService delivers fired alarms through Firebase Cloud Messaging.
type PushService struct {
	client sender
	db     *gorm.DB
	log    *logger.Logger
}

// Push is the process-wide push service.
var Push *PushService

// InitPush sets up FCM delivery from app. A nil app leaves push disabled,
// which is the normal state in development.
func InitPush(ctx context.Context, app *firebase.App, db *gorm.DB, log *logger.Logger) *PushService {
	log = logger.OrNop(log).With("service", "PushService")
	Push = &PushService{db: db, log: log}

	if app == nil {
		log.Info("no firebase app configured, push notifications disabled")
		return Push
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		log.Warn("messaging client unavailable, push notifications disabled", "error", err)
		return Push
	}
	Push.client = client
	log.Info("push notifications enabled")
	return Push
}

func (p *PushService) Enabled() bool {
	return p != nil && p.client != nil
}

// HasDevice reports whether the user registered a device token.
func (p *PushService) HasDevice(userID uuid.UUID) bool {
	if p == nil || p.db == nil {
		return false
	}
	token, err := p.token(userID)
	return err == nil && token != ""
}

// SendToUser sends a notification to the user's registered device.
// No-op if push is disabled or the user has no device token.
func (p *PushService) SendToUser(userID uuid.UUID, title, body string, data map[string]string) {
	if !p.Enabled() {
		return
	}
	token, err := p.token(userID)
	if err != nil || token == "" {
		return
	}

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}},
		},
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{Sound: "default"},
		},
	}
	if data != nil {
		msg.Data = data
	}

	if _, err := p.client.Send(context.Background(), msg); err != nil {
		p.log.Error("push send failed", "user", userID, "error", err)
	}
}

func (p *PushService) token(userID uuid.UUID) (string, error) {
	var user models.User
	if err := p.db.Select("fcm_token").First(&user, "id = ?", userID).Error; err != nil {
		return "", err
	}
	return user.FCMToken, nil
}
