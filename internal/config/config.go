package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr                 string
	DatabaseURL              string
	RedisAddr                string
	RedisPassword            string
	RedisEventChannel        string
	JWTSecret                string
	JWTIssuer                string
	ReconnectClearDelay      time.Duration
	ConnectivityProbePeriod  time.Duration
	ConnectivityProbeTimeout time.Duration
	RequireAdminForCRUD      bool
	RateLimitBurst           int
	RateLimitPerSecond       int
	LogListLimit             int
}

func Load() Config {
	return Config{
		HTTPAddr:                 getenv("HTTP_ADDR", ":8084"),
		DatabaseURL:              getenv("DATABASE_URL", ""),
		RedisAddr:                getenv("REDIS_ADDR", ""),
		RedisPassword:            getenv("REDIS_PASSWORD", ""),
		RedisEventChannel:        getenv("REDIS_EVENT_CHANNEL", "deskpanel:events"),
		JWTSecret:                getenv("JWT_SECRET", ""),
		JWTIssuer:                getenv("JWT_ISSUER", "deskpanel"),
		ReconnectClearDelay:      getenvDuration("RECONNECT_CLEAR_DELAY", 3*time.Second),
		ConnectivityProbePeriod:  getenvDuration("CONNECTIVITY_PROBE_INTERVAL", 15*time.Second),
		ConnectivityProbeTimeout: getenvDuration("CONNECTIVITY_PROBE_TIMEOUT", 5*time.Second),
		RequireAdminForCRUD:      getenvBool("REQUIRE_ADMIN_FOR_LOCKER_CRUD", true),
		RateLimitBurst:           getenvInt("RATE_LIMIT_BURST", 20),
		RateLimitPerSecond:       getenvInt("RATE_LIMIT_PER_SECOND", 10),
		LogListLimit:             getenvInt("LOG_LIST_LIMIT", 100),
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}
