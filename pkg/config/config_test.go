package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSV(t *testing.T) {
	t.Parallel()

	assert.Nil(t, CSV(""))
	assert.Equal(t, []string{"a:9092", "b:9092"}, CSV(" a:9092, ,b:9092 "))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "")
	t.Setenv("OTP_MAX_ATTEMPTS", "")
	t.Setenv("COOKIE_SECURE", "")

	cfg := Load()
	assert.Equal(t, 6*time.Hour, cfg.AccessTTL)
	assert.Equal(t, 24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, time.Hour, cfg.SecretTTL)
	assert.Equal(t, 2*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 5, cfg.OTPMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.ThrottleWindow)
	assert.True(t, cfg.CookieSecure)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "30m")
	t.Setenv("OTP_MAX_ATTEMPTS", "3")
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	assert.Equal(t, 30*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 3, cfg.OTPMaxAttempts)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 0, cfg.RedisDB)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	missing := Config{}.Validate()
	require.Len(t, missing, 3)
	assert.Contains(t, missing, "DATABASE_URL")

	assert.Empty(t, Config{DatabaseURL: "x", RootAdminEmail: "a", RootAdminPassword: "b"}.Validate())
}
