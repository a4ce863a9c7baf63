package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/arnold/habitgrid-api/internal/habits"
	"github.com/arnold/habitgrid-api/internal/locale"
	"github.com/arnold/habitgrid-api/internal/logger"
	"github.com/arnold/habitgrid-api/internal/notify"
	"github.com/arnold/habitgrid-api/internal/reconcile"
)

// Deps are the services the handlers call into.
type Deps struct {
	Habits   *habits.Service
	Direct   *reconcile.DirectCommit
	Sessions *reconcile.Sessions
	Log      *logger.Logger
}

var (
	habitSvc *habits.Service
	direct   *reconcile.DirectCommit
	sessions *reconcile.Sessions
	appLog   = logger.Nop()
)

// Configure installs the services used by every handler.
func Configure(d Deps) {
	habitSvc = d.Habits
	direct = d.Direct
	sessions = d.Sessions
	appLog = logger.OrNop(d.Log).With("component", "handlers")
}

// lang picks the response language from ?lang or Accept-Language.
func lang(c *fiber.Ctx) string {
	return locale.Resolve(c.Query("lang"), c.Get(fiber.HeaderAcceptLanguage))
}

func fail(c *fiber.Ctx, status int, key string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": locale.T(lang(c), key),
	})
}

// failWith maps service errors to a status and a localized message.
// Anything unrecognized is logged and reported with fallback.
func failWith(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, habits.ErrHabitNotFound):
		return fail(c, fiber.StatusNotFound, locale.HabitNotFound)
	case errors.Is(err, habits.ErrAlarmNotFound):
		return fail(c, fiber.StatusNotFound, locale.AlarmNotFound)
	case errors.Is(err, reconcile.ErrSessionNotFound):
		return fail(c, fiber.StatusNotFound, locale.SessionNotFound)
	case errors.Is(err, reconcile.ErrSessionEnded):
		return fail(c, fiber.StatusGone, locale.SessionEnded)
	case errors.Is(err, reconcile.ErrNoChanges):
		return fail(c, fiber.StatusConflict, locale.SessionNoChanges)
	case errors.Is(err, reconcile.ErrSubscriptionClosed):
		appLog.Warn("habit subscription closed", "path", c.Path(), "error", err)
		return fail(c, fiber.StatusServiceUnavailable, fallback)
	case errors.Is(err, reconcile.ErrSaveInFlight), errors.Is(err, reconcile.ErrNotReady):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, habits.ErrMissionRequired):
		return fail(c, fiber.StatusBadRequest, locale.MissionRequired)
	case errors.Is(err, habits.ErrMissionTooLong):
		return fail(c, fiber.StatusBadRequest, locale.MissionTooLong)
	case errors.Is(err, habits.ErrDetailTooLong):
		return fail(c, fiber.StatusBadRequest, locale.DetailTooLong)
	case errors.Is(err, notify.ErrInvalidTime), errors.Is(err, notify.ErrInvalidTrigger):
		return fail(c, fiber.StatusBadRequest, locale.InvalidTime)
	}
	appLog.Error("request failed", "path", c.Path(), "error", err)
	return fail(c, fiber.StatusInternalServerError, fallback)
}
