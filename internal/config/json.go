package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/msavelyev/calhub/internal/flagx"
	"github.com/msavelyev/calhub/internal/timex"
)

// JsonConfig is the DTO for the JSON config file. Interval fields use
// timex.Duration so both "5m" strings and integer nanoseconds parse.
type JsonConfig struct {
	HTTPAddr              string         `json:"http_addr"`
	DatabaseDSN           string         `json:"database_dsn"`
	SecretKey             string         `json:"secret_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	CronSpec              string         `json:"cron_spec"`
	MinResyncInterval     timex.Duration `json:"min_resync_interval"`
	ReferenceTimezone     string         `json:"reference_timezone"`
	GoogleCredentialsFile string         `json:"google_credentials_file"`
	GoogleClientID        string         `json:"google_client_id"`
	GoogleClientSecret    string         `json:"google_client_secret"`
	GoogleRedirectURL     string         `json:"google_redirect_url"`
	AllowedEmails         []string       `json:"allowed_emails"`
}

// parseJson overlays values from the JSON file named by -c/-config, if any.
// Only keys present in the file override the current values. A file that
// cannot be read or parsed is a deployment error and panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	applyNonEmpty(&config.HTTPAddr, c.HTTPAddr)
	applyNonEmpty(&config.DatabaseDSN, c.DatabaseDSN)
	applyNonEmpty(&config.SecretKey, c.SecretKey)
	applyNonEmpty(&config.CronSpec, c.CronSpec)
	applyNonEmpty(&config.ReferenceTimezone, c.ReferenceTimezone)
	applyNonEmpty(&config.GoogleCredentialsFile, c.GoogleCredentialsFile)
	applyNonEmpty(&config.GoogleClientID, c.GoogleClientID)
	applyNonEmpty(&config.GoogleClientSecret, c.GoogleClientSecret)
	applyNonEmpty(&config.GoogleRedirectURL, c.GoogleRedirectURL)
	if c.TokenValidityDuration.Duration != 0 {
		config.TokenValidityDuration = time.Duration(c.TokenValidityDuration.Duration)
	}
	if c.MinResyncInterval.Duration != 0 {
		config.MinResyncInterval = time.Duration(c.MinResyncInterval.Duration)
	}
	if len(c.AllowedEmails) > 0 {
		config.AllowedEmails = c.AllowedEmails
	}
}

func applyNonEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
