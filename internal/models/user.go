package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AuthProviderEmail     = "email"
	AuthProviderAnonymous = "anonymous"
)

type User struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Email        *string        `json:"email" gorm:"uniqueIndex"`
	Password     string         `json:"-"`
	AuthProvider string         `json:"authProvider" gorm:"default:email"`
	Name         string         `json:"name"`
	Language     string         `json:"language"`
	FCMToken     string         `json:"-" gorm:"column:fcm_token"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

func (u *User) IsAnonymous() bool {
	return u.AuthProvider == AuthProviderAnonymous
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Auth DTOs
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Name     *string `json:"name"`
	Language *string `json:"language"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
