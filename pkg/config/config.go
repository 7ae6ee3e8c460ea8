package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServiceName string
	HTTPAddr    string
	LogLevel    string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	AuditTopic   string
	NotifyTopic  string

	ESURL         string
	ESUser        string
	ESPassword    string
	ESMemberIndex string

	StorageDriver    string
	StorageDir       string
	StorageBucket    string
	StoragePublicURL string

	RootAdminEmail    string
	RootAdminPassword string

	CookieSecure bool
	CSRFEnabled  bool

	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	SecretTTL       time.Duration
	OTPTTL          time.Duration
	OTPMaxAttempts  int
	ProfileCacheTTL time.Duration
	ThrottleWindow  time.Duration
}

func Load() Config {
	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "retail-console-api"),
		HTTPAddr:    EnvDefault("HTTP_ADDR", ":8080"),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:     EnvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       EnvIntDefault("REDIS_DB", 0),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		AuditTopic:   EnvDefault("KAFKA_AUDIT_TOPIC", "audit_events"),
		NotifyTopic:  EnvDefault("KAFKA_NOTIFY_TOPIC", "notification_events"),

		ESURL:         os.Getenv("ES_URL"),
		ESUser:        os.Getenv("ES_USER"),
		ESPassword:    os.Getenv("ES_PASSWORD"),
		ESMemberIndex: EnvDefault("ES_MEMBER_INDEX", "members"),

		StorageDriver:    EnvDefault("STORAGE_DRIVER", "fs"),
		StorageDir:       EnvDefault("STORAGE_DIR", "./data/images"),
		StorageBucket:    EnvDefault("STORAGE_BUCKET", "images"),
		StoragePublicURL: EnvDefault("STORAGE_PUBLIC_URL", "/images"),

		RootAdminEmail:    os.Getenv("EMAIL_ADMIN_ROOT"),
		RootAdminPassword: os.Getenv("PASSWORD_ADMIN_ROOT"),

		CookieSecure: EnvBoolDefault("COOKIE_SECURE", true),
		CSRFEnabled:  EnvBoolDefault("CSRF_ENABLED", false),

		AccessTTL:       EnvDurationDefault("ACCESS_TOKEN_TTL", 6*time.Hour),
		RefreshTTL:      EnvDurationDefault("REFRESH_TOKEN_TTL", 24*time.Hour),
		SecretTTL:       EnvDurationDefault("SECRET_TTL", time.Hour),
		OTPTTL:          EnvDurationDefault("OTP_TTL", 2*time.Minute),
		OTPMaxAttempts:  EnvIntDefault("OTP_MAX_ATTEMPTS", 5),
		ProfileCacheTTL: EnvDurationDefault("PROFILE_CACHE_TTL", time.Hour),
		ThrottleWindow:  EnvDurationDefault("THROTTLE_WINDOW", 5*time.Second),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
