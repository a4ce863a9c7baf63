package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL       string
	JWTSecret         string
	Port              string
	FCMServiceAccount string
	DocStore          string
	FirestoreProject  string
	RedisAddr         string
	RedisChannel      string
	SchedulerTZ       string
	LogMode           string
	SessionIdle       time.Duration
	DefaultLanguage   string
}

func Load() *Config {
	return &Config{
		DatabaseURL:       getEnv("DATABASE_URL", "habitgrid.db"),
		JWTSecret:         getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		Port:              getEnv("PORT", "8080"),
		FCMServiceAccount: getEnv("FCM_SERVICE_ACCOUNT", ""),
		DocStore:          getEnv("DOC_STORE", "sql"),
		FirestoreProject:  getEnv("FIRESTORE_PROJECT_ID", ""),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisChannel:      getEnv("REDIS_CHANNEL", "docstore"),
		SchedulerTZ:       getEnv("SCHEDULER_TZ", "Local"),
		LogMode:           getEnv("LOG_MODE", "dev"),
		SessionIdle:       time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 30)) * time.Minute,
		DefaultLanguage:   getEnv("DEFAULT_LANGUAGE", "ja"),
	}
}

// Location resolves SchedulerTZ, falling back to the local zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.SchedulerTZ)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
