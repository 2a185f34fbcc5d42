package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Line     LineConfig
	Hub      HubConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN           string
	MaxConns      int
	DialTimeout   time.Duration
	HealthTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Addr       string
	AdminToken string
}

// LineConfig holds production-line configuration
type LineConfig struct {
	Name           string
	SupervisorPIN  string
	UseHardware    bool
	AlarmDuration  time.Duration
	RecentScans    int
	PinMaxAttempts int
	PinLockout     time.Duration
	ShiftStartHour int
	ShiftEndHour   int
}

// HubConfig holds broadcast hub configuration
type HubConfig struct {
	QueueSize int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:           getEnv("DB_URL", "file:barcode_verification.db"),
			MaxConns:      getEnvAsInt("DB_MAX_CONNS", 10),
			DialTimeout:   getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			HealthTimeout: getEnvAsDuration("DB_HEALTH_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			Addr:       getEnv("ADDR", ":5000"),
			AdminToken: getEnv("ADMIN_TOKEN", ""),
		},
		Line: LineConfig{
			Name:           getEnv("LINE_NAME", "Master Shipper Verify"),
			SupervisorPIN:  getEnv("SUPERVISOR_PIN", "1234"),
			UseHardware:    getEnvAsBool("USE_HARDWARE", false),
			AlarmDuration:  getEnvAsDuration("ALARM_DURATION", 3*time.Second),
			RecentScans:    getEnvAsInt("RECENT_SCANS", 8),
			PinMaxAttempts: getEnvAsInt("PIN_MAX_ATTEMPTS", 5),
			PinLockout:     getEnvAsDuration("PIN_LOCKOUT", 15*time.Minute),
			ShiftStartHour: getEnvAsInt("SHIFT_START_HOUR", 8),
			ShiftEndHour:   getEnvAsInt("SHIFT_END_HOUR", 20),
		},
		Hub: HubConfig{
			QueueSize: getEnvAsInt("HUB_QUEUE_SIZE", 50),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewValidationError("DB_URL", "is required")
	}
	if c.Server.Addr == "" {
		return NewValidationError("ADDR", "is required")
	}
	if c.Line.SupervisorPIN == "" {
		return NewValidationError("SUPERVISOR_PIN", "is required")
	}
	if c.Line.PinMaxAttempts < 1 {
		return NewValidationError("PIN_MAX_ATTEMPTS", "must be at least 1")
	}
	if c.Hub.QueueSize < 1 {
		return NewValidationError("HUB_QUEUE_SIZE", "must be at least 1")
	}
	if c.Line.ShiftStartHour < 0 || c.Line.ShiftEndHour > 23 || c.Line.ShiftStartHour > c.Line.ShiftEndHour {
		return NewValidationError("SHIFT_START_HOUR/SHIFT_END_HOUR", "must describe a valid hour range")
	}
	return nil
}
