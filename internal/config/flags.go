package config

import (
	"flag"
	"os"
	"time"

	"github.com/msavelyev/calhub/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-k string   cron spec for the periodic sync tick
//	-i int      minimum re-sync interval, minutes
//	-z string   reference timezone (IANA name)
//	-g string   Google service account credentials file
//
// os.Args is first filtered to only the flags handled here, so other
// components can own their own flags without collisions.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-k", "-i", "-z", "-g"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to serve the HTTP API")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.CronSpec, "k", config.CronSpec, "sync tick cron spec")
	fs.StringVar(&config.ReferenceTimezone, "z", config.ReferenceTimezone, "reference timezone")
	fs.StringVar(&config.GoogleCredentialsFile, "g", config.GoogleCredentialsFile, "Google credentials file")

	minResync := fs.Int("i", int(config.MinResyncInterval.Minutes()), "min_resync_interval (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.MinResyncInterval = time.Duration(*minResync) * time.Minute
}
