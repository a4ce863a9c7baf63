package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/arnold/habitgrid-api/internal/achievement"
	"github.com/arnold/habitgrid-api/internal/habits"
	"github.com/arnold/habitgrid-api/internal/locale"
	"github.com/arnold/habitgrid-api/internal/middleware"
	"github.com/arnold/habitgrid-api/internal/models"
	"github.com/arnold/habitgrid-api/internal/weekgrid"
)

type habitView struct {
	models.HabitDoc
	Week weekgrid.Week `json:"week"`
}

func viewHabit(h models.HabitDoc, today achievement.Date) habitView {
	return habitView{HabitDoc: h, Week: weekgrid.Current(h.Ledger(), today)}
}

// GetHabits is the home list: every habit with its current week, most
// recently updated first. Opening it records the user's latest access.
func GetHabits(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	ctx := c.UserContext()

	list, err := habitSvc.ListHabits(ctx, userID)
	if err != nil {
		return failWith(c, err, locale.HabitLoadFailed)
	}
	if err := habitSvc.TouchLatestAccess(ctx, userID); err != nil {
		appLog.Warn("latest access not recorded", "user", userID, "error", err)
	}

	today := habitSvc.Today()
	views := make([]habitView, 0, len(list))
	for _, h := range list {
		views = append(views, viewHabit(h, today))
	}
	return c.JSON(fiber.Map{
		"habits": views,
		"today":  today,
	})
}

func CreateHabit(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req models.CreateHabitRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, locale.InvalidBody)
	}

	h, err := habitSvc.CreateHabit(c.UserContext(), userID, req.HabitMission, req.HabitMissionDetail)
	if err != nil {
		return failWith(c, err, locale.HabitAddFailed)
	}
	return c.Status(fiber.StatusCreated).JSON(viewHabit(h, habitSvc.Today()))
}

func GetHabit(c *fiber.Ctx) error {
	h, err := habitSvc.GetHabit(c.UserContext(), middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return failWith(c, err, locale.HabitLoadFailed)
	}
	return c.JSON(viewHabit(h, habitSvc.Today()))
}

func UpdateHabit(c *fiber.Ctx) error {
	var req models.UpdateHabitRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, locale.InvalidBody)
	}

	habitID := c.Params("id")
	h, err := habitSvc.UpdateHabit(c.UserContext(), middleware.GetUserID(c), habitID, req.HabitMission, req.HabitMissionDetail)
	if err != nil {
		return failWith(c, err, locale.HabitUpdateFailed)
	}
	broadcastHabit(c, habitID, EventHabitUpdated, h)
	return c.JSON(viewHabit(h, habitSvc.Today()))
}

// DeleteHabit removes the habit with its alarms and ends any edit session on it.
func DeleteHabit(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	habitID := c.Params("id")

	if err := habitSvc.DeleteHabit(c.UserContext(), userID, habitID); err != nil {
		return failWith(c, err, locale.HabitDeleteFailed)
	}
	sessions.DiscardHabit(habits.HabitPath(userID, habitID))
	broadcastHabit(c, habitID, EventHabitDeleted, nil)
	return c.JSON(fiber.Map{"success": true})
}

// ToggleAchievement cycles one day and commits it straight to the store.
func ToggleAchievement(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	habitID := c.Params("id")

	d, ok := parseDate(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, locale.InvalidDate)
	}

	res, err := direct.Toggle(c.UserContext(), habits.HabitPath(userID, habitID), d, habitSvc.Today())
	if err != nil {
		return failWith(c, err, locale.ToggleFailed)
	}
	if res.Missing {
		return fail(c, fiber.StatusNotFound, locale.HabitNotFound)
	}
	if res.Changed {
		broadcastHabit(c, habitID, EventAchievementToggled, res)
	}
	return c.JSON(res)
}

// GetCalendar projects a four-week block; offset 0 ends at the current week
// and negative offsets page back in time.
func GetCalendar(c *fiber.Ctx) error {
	h, err := habitSvc.GetHabit(c.UserContext(), middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return failWith(c, err, locale.HabitLoadFailed)
	}
	w := windowParam(c)
	today := habitSvc.Today()
	from, to := w.Period(today)
	return c.JSON(fiber.Map{
		"habit":  h,
		"offset": w.Offset,
		"from":   from,
		"to":     to,
		"weeks":  w.Project(h.Ledger(), today),
	})
}

func parseDate(c *fiber.Ctx) (achievement.Date, bool) {
	var req models.ToggleRequest
	if err := c.BodyParser(&req); err != nil {
		return achievement.Date{}, false
	}
	return achievement.NewDate(req.Year, req.Month, req.Day)
}

func windowParam(c *fiber.Ctx) weekgrid.Window {
	offset, err := strconv.Atoi(c.Query("offset", "0"))
	if err != nil {
		offset = 0
	}
	return weekgrid.Window{Offset: offset}.Clamp()
}
