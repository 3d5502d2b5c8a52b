package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr        string // API bind address, e.g. ":8080"
	LogDir      string // logs directory
	DatabaseURL string // empty means in-memory stores

	// CronSecret authenticates the external scheduler's callbacks to the
	// check-run and cleanup triggers. Empty disables the check (local dev).
	CronSecret string

	// PublicBaseURL is this deployment's externally reachable base URL,
	// embedded in the callback URL registered with the cron API.
	PublicBaseURL string

	// Multi-region checker backend.
	CheckerBaseURL   string
	PollAttempts     int
	PollInterval     time.Duration
	ProbeTimeout     time.Duration
	CheckConcurrency int

	// External job scheduler API.
	CronAPIBaseURL string

	// SMTP transport for email notifications. Empty host disables email.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string

	AllowedOrigins []string
	RPM            int // per-IP requests per minute, 0 disables
	Burst          int
}

func FromEnv() Config {
	cfg := Config{
		Addr:             getenv("ADDR", ":8080"),
		LogDir:           getenv("LOG_DIR", "logs"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		CronSecret:       os.Getenv("CRON_SECRET"),
		PublicBaseURL:    getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		CheckerBaseURL:   getenv("CHECKER_BASE_URL", "https://uptime.onlineornot.com"),
		PollAttempts:     getint("CHECKER_POLL_ATTEMPTS", 10),
		PollInterval:     getms("CHECKER_POLL_INTERVAL_MS", 3000),
		ProbeTimeout:     getms("PROBE_TIMEOUT_MS", 10000),
		CheckConcurrency: getint("MAX_CONCURRENT_CHECKS", 8),
		CronAPIBaseURL:   getenv("CRON_API_BASE_URL", "https://api.cron-job.org"),
		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPPort:         getint("SMTP_PORT", 587),
		SMTPUsername:     os.Getenv("SMTP_USERNAME"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		EmailFrom:        getenv("EMAIL_FROM", "PulseWatch <alerts@pulsewatch.app>"),
		RPM:              getint("API_RPM", 240),
		Burst:            getint("API_BURST", 60),
	}

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func getms(key string, defMS int) time.Duration {
	return time.Duration(getint(key, defMS)) * time.Millisecond
}
