package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/arnold/habitgrid-api/internal/habits"
	"github.com/arnold/habitgrid-api/internal/locale"
	"github.com/arnold/habitgrid-api/internal/middleware"
	"github.com/arnold/habitgrid-api/internal/models"
	"github.com/arnold/habitgrid-api/internal/notify"
)

// Alarm summaries shown next to the time.
const (
	SummaryEveryday = "everyday"
	SummaryCustom   = "custom"
	SummaryNone     = "none"
)

type alarmView struct {
	models.AlarmDoc
	Summary string `json:"summary"`
	Label   string `json:"label,omitempty"`
}

func viewAlarm(a models.AlarmDoc, language string) alarmView {
	mask := a.Mask()
	switch {
	case mask.All():
		return alarmView{AlarmDoc: a, Summary: SummaryEveryday, Label: locale.T(language, locale.AlarmEveryday)}
	case !mask.Any():
		return alarmView{AlarmDoc: a, Summary: SummaryNone, Label: locale.T(language, locale.AlarmNoWeekday)}
	}
	return alarmView{AlarmDoc: a, Summary: SummaryCustom}
}

func GetAlarms(c *fiber.Ctx) error {
	list, err := habitSvc.ListAlarms(c.UserContext(), middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return failWith(c, err, locale.HabitLoadFailed)
	}
	language := lang(c)
	views := make([]alarmView, 0, len(list))
	for _, a := range list {
		views = append(views, viewAlarm(a, language))
	}
	return c.JSON(views)
}

func GetAlarm(c *fiber.Ctx) error {
	a, err := habitSvc.GetAlarm(c.UserContext(), middleware.GetUserID(c), c.Params("id"), c.Params("alarmId"))
	if err != nil {
		return failWith(c, err, locale.HabitLoadFailed)
	}
	return c.JSON(viewAlarm(a, lang(c)))
}

func CreateAlarm(c *fiber.Ctx) error {
	in, ok := alarmInput(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, locale.InvalidBody)
	}
	habitID := c.Params("id")
	a, err := habitSvc.CreateAlarm(c.UserContext(), middleware.GetUserID(c), habitID, in, lang(c))
	return respondAlarm(c, fiber.StatusCreated, habitID, a, err, locale.AlarmSaveFailed)
}

// EditAlarm cancels the alarm's registrations, registers the new weekdays
// and stores the result.
func EditAlarm(c *fiber.Ctx) error {
	in, ok := alarmInput(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, locale.InvalidBody)
	}
	habitID := c.Params("id")
	a, err := habitSvc.EditAlarm(c.UserContext(), middleware.GetUserID(c), habitID, c.Params("alarmId"), in, lang(c))
	return respondAlarm(c, fiber.StatusOK, habitID, a, err, locale.AlarmUpdateFailed)
}

func DeleteAlarm(c *fiber.Ctx) error {
	habitID := c.Params("id")
	alarmID := c.Params("alarmId")
	if err := habitSvc.DeleteAlarm(c.UserContext(), middleware.GetUserID(c), habitID, alarmID); err != nil {
		return failWith(c, err, locale.AlarmDeleteFailed)
	}
	broadcastHabit(c, habitID, EventAlarmDeleted, fiber.Map{"alarmId": alarmID})
	return c.JSON(fiber.Map{"success": true})
}

// respondAlarm reports weekdays that could not be registered as a warning
// next to the stored alarm.
func respondAlarm(c *fiber.Ctx, status int, habitID string, a models.AlarmDoc, err error, fallback string) error {
	var partial *notify.ScheduleError
	if err != nil && !errors.As(err, &partial) {
		return failWith(c, err, fallback)
	}

	broadcastHabit(c, habitID, EventAlarmUpdated, a)
	language := lang(c)
	resp := fiber.Map{"alarm": viewAlarm(a, language)}
	if partial != nil {
		resp["warning"] = locale.T(language, locale.AlarmPartial)
		resp["failedWeekdays"] = partial.Failed
	}
	return c.Status(status).JSON(resp)
}

func alarmInput(c *fiber.Ctx) (habits.AlarmInput, bool) {
	var req models.AlarmRequest
	if err := c.BodyParser(&req); err != nil {
		return habits.AlarmInput{}, false
	}
	return habits.AlarmInput{
		Hours:   req.Hours,
		Minutes: req.Minutes,
		Mask:    notify.MaskFromSlice(req.RepeatDayOfWeek),
	}, true
}
