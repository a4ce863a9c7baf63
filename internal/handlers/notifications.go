package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/arnold/habitgrid-api/internal/database"
	"github.com/arnold/habitgrid-api/internal/middleware"
	"github.com/arnold/habitgrid-api/internal/models"
)

// GetNotifications returns the current user's weekly registrations, paginated.
func GetNotifications(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}

	var regs []models.NotificationRegistration
	if err := database.DB.Where("user_id = ?", userID).
		Order("weekday, hour, minute").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&regs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load notifications",
		})
	}

	var total int64
	database.DB.Model(&models.NotificationRegistration{}).Where("user_id = ?", userID).Count(&total)

	return c.JSON(fiber.Map{
		"notifications": regs,
		"total":         total,
		"page":          page,
		"limit":         limit,
	})
}

// RegisterDeviceToken saves the FCM token for push notifications
func RegisterDeviceToken(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Token is required",
		})
	}

	if err := database.DB.Model(&models.User{}).Where("id = ?", userID).Update("fcm_token", req.Token).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save device token",
		})
	}
	return c.JSON(fiber.Map{"success": true})
}
