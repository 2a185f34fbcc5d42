package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "file:barcode_verification.db", cfg.Database.DSN)
	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, "1234", cfg.Line.SupervisorPIN)
	assert.Equal(t, 5, cfg.Line.PinMaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Line.PinLockout)
	assert.Equal(t, 8, cfg.Line.ShiftStartHour)
	assert.Equal(t, 20, cfg.Line.ShiftEndHour)
	assert.Equal(t, 50, cfg.Hub.QueueSize)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DB_URL", "postgres://verify:pw@db:5432/verify")
	t.Setenv("SUPERVISOR_PIN", "8642")
	t.Setenv("PIN_LOCKOUT", "5m")
	t.Setenv("HUB_QUEUE_SIZE", "10")
	t.Setenv("USE_HARDWARE", "true")

	cfg := LoadConfig()
	assert.Equal(t, "postgres://verify:pw@db:5432/verify", cfg.Database.DSN)
	assert.Equal(t, "8642", cfg.Line.SupervisorPIN)
	assert.Equal(t, 5*time.Minute, cfg.Line.PinLockout)
	assert.Equal(t, 10, cfg.Hub.QueueSize)
	assert.True(t, cfg.Line.UseHardware)
}

func TestConfigValidate(t *testing.T) {
	cfg := LoadConfig()
	cfg.Line.SupervisorPIN = ""
	require.ErrorIs(t, cfg.Validate(), ErrValidation)

	cfg = LoadConfig()
	cfg.Hub.QueueSize = 0
	require.ErrorIs(t, cfg.Validate(), ErrValidation)

	cfg = LoadConfig()
	cfg.Line.ShiftStartHour = 22
	cfg.Line.ShiftEndHour = 8
	require.ErrorIs(t, cfg.Validate(), ErrValidation)
}
