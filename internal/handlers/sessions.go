package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/arnold/habitgrid-api/internal/docstore"
	"github.com/arnold/habitgrid-api/internal/habits"
	"github.com/arnold/habitgrid-api/internal/locale"
	"github.com/arnold/habitgrid-api/internal/middleware"
	"github.com/arnold/habitgrid-api/internal/models"
	"github.com/arnold/habitgrid-api/internal/reconcile"
)

// StartSession opens an edit session on a habit. Toggles and text edits stay
// local to the session until it is saved.
func StartSession(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	s, err := sessions.Open(c.UserContext(), userID, habits.HabitPath(userID, c.Params("id")))
	if err != nil {
		return failWith(c, err, locale.HabitLoadFailed)
	}
	return c.Status(fiber.StatusCreated).JSON(sessionResponse(c, s))
}

func GetSession(c *fiber.Ctx) error {
	s, err := currentSession(c)
	if err != nil {
		return failWith(c, err, locale.HabitLoadFailed)
	}
	return c.JSON(sessionResponse(c, s))
}

func ToggleSession(c *fiber.Ctx) error {
	s, err := currentSession(c)
	if err != nil {
		return failWith(c, err, locale.ToggleFailed)
	}
	d, ok := parseDate(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, locale.InvalidDate)
	}
	state, err := s.Toggle(d, habitSvc.Today())
	if err != nil {
		return failWith(c, err, locale.ToggleFailed)
	}
	resp := sessionResponse(c, s)
	resp["state"] = state
	return c.JSON(resp)
}

// UpdateSession edits mission and detail in the session only.
func UpdateSession(c *fiber.Ctx) error {
	s, err := currentSession(c)
	if err != nil {
		return failWith(c, err, locale.HabitUpdateFailed)
	}
	var req models.UpdateHabitRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, locale.InvalidBody)
	}
	if req.HabitMission != nil {
		if err := s.SetMission(*req.HabitMission); err != nil {
			return failWith(c, err, locale.HabitUpdateFailed)
		}
	}
	if req.HabitMissionDetail != nil {
		if err := s.SetDetail(*req.HabitMissionDetail); err != nil {
			return failWith(c, err, locale.HabitUpdateFailed)
		}
	}
	return c.JSON(sessionResponse(c, s))
}

func SaveSession(c *fiber.Ctx) error {
	s, err := currentSession(c)
	if err != nil {
		return failWith(c, err, locale.HabitUpdateFailed)
	}
	if err := s.Save(c.UserContext(), habitSvc.Now()); err != nil {
		return failWith(c, err, locale.HabitUpdateFailed)
	}

	view := s.View()
	if _, habitID, err := docstore.Split(view.HabitPath); err == nil {
		broadcastHabit(c, habitID, EventHabitUpdated, view)
	}
	return c.JSON(sessionResponse(c, s))
}

// DeleteSession discards the session without writing.
func DeleteSession(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("sid"))
	if err != nil {
		return fail(c, fiber.StatusNotFound, locale.SessionNotFound)
	}
	if err := sessions.Discard(id, middleware.GetUserID(c)); err != nil {
		return failWith(c, err, locale.HabitUpdateFailed)
	}
	return c.JSON(fiber.Map{"success": true})
}

func currentSession(c *fiber.Ctx) (*reconcile.Session, error) {
	id, err := uuid.Parse(c.Params("sid"))
	if err != nil {
		return nil, reconcile.ErrSessionNotFound
	}
	return sessions.Get(id, middleware.GetUserID(c))
}

func sessionResponse(c *fiber.Ctx, s *reconcile.Session) fiber.Map {
	w := windowParam(c)
	today := habitSvc.Today()
	from, to := w.Period(today)
	return fiber.Map{
		"session": s.View(),
		"offset":  w.Offset,
		"from":    from,
		"to":      to,
		"weeks":   s.Grid(w, today),
	}
}
