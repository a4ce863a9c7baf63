package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/arnold/habitgrid-api/internal/database"
	"github.com/arnold/habitgrid-api/internal/locale"
	"github.com/arnold/habitgrid-api/internal/middleware"
	"github.com/arnold/habitgrid-api/internal/models"
)

func Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, locale.InvalidBody)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email and password are required",
		})
	}

	var existing models.User
	if err := database.DB.Where("email = ?", email).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Email already registered",
		})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to hash password",
		})
	}

	language := locale.NormalizeLanguage(req.Language)
	if language == "" {
		language = lang(c)
	}
	user := models.User{
		Email:        &email,
		Password:     string(hashed),
		AuthProvider: models.AuthProviderEmail,
		Name:         req.Name,
		Language:     language,
	}
	if err := database.DB.Create(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create user",
		})
	}

	return respondWithToken(c, fiber.StatusCreated, user)
}

func Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, locale.InvalidBody)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email and password are required",
		})
	}

	var user models.User
	if err := database.DB.Where("email = ?", email).First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	return respondWithToken(c, fiber.StatusOK, user)
}

// AnonymousLogin creates an account with no credentials. The returned token
// is the only way back into it.
func AnonymousLogin(c *fiber.Ctx) error {
	user := models.User{
		AuthProvider: models.AuthProviderAnonymous,
		Language:     lang(c),
	}
	if err := database.DB.Create(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create user",
		})
	}
	return respondWithToken(c, fiber.StatusCreated, user)
}

func GetMe(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	resp := fiber.Map{
		"id":           user.ID,
		"email":        user.Email,
		"authProvider": user.AuthProvider,
		"name":         user.Name,
		"language":     user.Language,
		"hasDevice":    user.FCMToken != "",
		"createdAt":    user.CreatedAt,
		"updatedAt":    user.UpdatedAt,
	}
	if habitSvc != nil {
		if doc, err := habitSvc.LatestAccess(c.UserContext(), userID); err == nil {
			resp["latestAccess"] = doc.LatestAccess
		}
	}
	return c.JSON(resp)
}

func UpdateProfile(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req models.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, locale.InvalidBody)
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Language != nil {
		language := locale.NormalizeLanguage(*req.Language)
		if language == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unsupported language",
			})
		}
		updates["language"] = language
	}

	if len(updates) > 0 {
		if err := database.DB.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update profile",
			})
		}
	}
	return GetMe(c)
}

func respondWithToken(c *fiber.Ctx, status int, user models.User) error {
	email := ""
	if user.Email != nil {
		email = *user.Email
	}
	token, err := middleware.GenerateToken(user.ID, email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}
	return c.Status(status).JSON(models.AuthResponse{
		Token: token,
		User:  user,
	})
}
