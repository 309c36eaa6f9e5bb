package cli

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dmdmdm-nz/pathwatchd/pkg/version"
)

// Config holds the application configuration from CLI flags
type Config struct {
	Host              string
	Port              int
	DebounceDelay     time.Duration
	Expiration        time.Duration
	IgnoreFirstUpdate bool
	Announce          bool
	LogLevel          string
}

// ParseFlags parses command line arguments and returns a Config
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Host, "host", "127.0.0.1", "Host to bind the API to")
	flag.IntVar(&cfg.Port, "port", 60180, "Port to bind the API to")
	flag.DurationVar(&cfg.DebounceDelay, "debounce", 500*time.Millisecond, "Quiet period before a burst of path changes is evaluated (0 disables)")
	flag.DurationVar(&cfg.Expiration, "expiration", 0, "Re-notify a stable connection after this long (0 disables)")
	flag.BoolVar(&cfg.IgnoreFirstUpdate, "ignore-first-update", false, "Suppress the first path notification after startup")
	flag.BoolVar(&cfg.Announce, "mdns", false, "Announce the API endpoint over mDNS")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "Show version information")

	flag.Parse()

	if *showVersion {
		fmt.Printf("pathwatchd version %s (commit: %s, built at: %s)\n",
			version.Version,
			version.CommitHash,
			version.BuildTime)
		os.Exit(0)
	}

	return cfg
}

// String returns a string representation of the Config
func (c *Config) String() string {
	return fmt.Sprintf("Host: %s, Port: %d, Debounce: %s, Expiration: %s, IgnoreFirstUpdate: %t, LogLevel: %s",
		c.Host, c.Port, c.DebounceDelay, c.Expiration, c.IgnoreFirstUpdate, c.LogLevel)
}
