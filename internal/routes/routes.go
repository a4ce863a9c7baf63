package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/arnold/habitgrid-api/internal/handlers"
	"github.com/arnold/habitgrid-api/internal/middleware"
)

func Setup(app *fiber.App) {
	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", handlers.Register)
	auth.Post("/login", handlers.Login)
	auth.Post("/anonymous", handlers.AnonymousLogin)

	protected := api.Group("/", middleware.Protected())

	protected.Get("/me", handlers.GetMe)
	protected.Put("/me", handlers.UpdateProfile)

	habits := protected.Group("/habits")
	habits.Get("/", handlers.GetHabits)
	habits.Post("/", handlers.CreateHabit)
	habits.Get("/:id", handlers.GetHabit)
	habits.Put("/:id", handlers.UpdateHabit)
	habits.Delete("/:id", handlers.DeleteHabit)
	habits.Post("/:id/toggle", handlers.ToggleAchievement)
	habits.Get("/:id/calendar", handlers.GetCalendar)

	// Weekly alarms
	habits.Get("/:id/alarms", handlers.GetAlarms)
	habits.Post("/:id/alarms", handlers.CreateAlarm)
	habits.Get("/:id/alarms/:alarmId", handlers.GetAlarm)
	habits.Put("/:id/alarms/:alarmId", handlers.EditAlarm)
	habits.Delete("/:id/alarms/:alarmId", handlers.DeleteAlarm)

	// Edit sessions
	habits.Post("/:id/sessions", handlers.StartSession)
	sessions := protected.Group("/sessions")
	sessions.Get("/:sid", handlers.GetSession)
	sessions.Put("/:sid", handlers.UpdateSession)
	sessions.Delete("/:sid", handlers.DeleteSession)
	sessions.Post("/:sid/toggle", handlers.ToggleSession)
	sessions.Post("/:sid/save", handlers.SaveSession)

	// Notifications
	protected.Get("/notifications", handlers.GetNotifications)
	protected.Post("/device-token", handlers.RegisterDeviceToken)

	// WebSocket for live habit updates
	app.Use("/ws", handlers.WebSocketUpgrade())
	app.Get("/ws/habits/:id", websocket.New(handlers.HandleWebSocket))
}
