package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays values from the process environment, loading a local
// .env file first when one exists. Only variables that are actually set
// override the current values.
func parseEnv(config *Config) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	applyEnv("CALHUB_HTTP_ADDR", &config.HTTPAddr)
	applyEnv("CALHUB_DATABASE_DSN", &config.DatabaseDSN)
	applyEnv("CALHUB_SECRET_KEY", &config.SecretKey)
	applyEnv("CALHUB_CRON_SPEC", &config.CronSpec)
	applyEnv("CALHUB_REFERENCE_TIMEZONE", &config.ReferenceTimezone)
	applyEnv("CALHUB_GOOGLE_CREDENTIALS_FILE", &config.GoogleCredentialsFile)
	applyEnv("CALHUB_GOOGLE_CLIENT_ID", &config.GoogleClientID)
	applyEnv("CALHUB_GOOGLE_CLIENT_SECRET", &config.GoogleClientSecret)
	applyEnv("CALHUB_GOOGLE_REDIRECT_URL", &config.GoogleRedirectURL)

	if v, ok := os.LookupEnv("CALHUB_TOKEN_VALIDITY"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			config.TokenValidityDuration = d
		}
	}
	if v, ok := os.LookupEnv("CALHUB_MIN_RESYNC_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			config.MinResyncInterval = d
		}
	}
	if v, ok := os.LookupEnv("CALHUB_ALLOWED_EMAILS"); ok {
		config.AllowedEmails = splitList(v)
	}
}

func applyEnv(name string, dst *string) {
	if v, ok := os.LookupEnv(name); ok {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
