package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmdmdm-nz/zeroconf"
	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/pathwatchd/internal/api"
	"github.com/dmdmdm-nz/pathwatchd/internal/pathmon"
	"github.com/dmdmdm-nz/pathwatchd/internal/runtime"
	"github.com/dmdmdm-nz/pathwatchd/pkg/cli"
	"github.com/dmdmdm-nz/pathwatchd/pkg/version"
)

func main() {
	// Parse command line flags
	cfg := cli.ParseFlags()

	// Configure logging
	setLogLevel(cfg.LogLevel)
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FullTimestamp:   true,
	})

	log.Infof("Config: Host=%s", cfg.Host)
	log.Infof("Config: Port=%d", cfg.Port)
	log.Infof("Config: Debounce=%s", cfg.DebounceDelay)
	log.Infof("Config: Expiration=%s", cfg.Expiration)
	log.Infof("Config: IgnoreFirstUpdate=%v", cfg.IgnoreFirstUpdate)
	log.Infof("Config: LogLevel=%s", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	notifier := pathmon.New(pathmon.NewSource(), pathmon.Options{
		DebounceDelay:       cfg.DebounceDelay,
		InterfaceExpiration: cfg.Expiration,
		IgnoreFirstUpdate:   cfg.IgnoreFirstUpdate,
	})

	apiSvc := api.NewService(cfg.Host, cfg.Port)
	apiSvc.Attach(notifier)

	// Subscribe BEFORE starting the API so no change goes unobserved.
	notifier.Start(func(snap *pathmon.Snapshot) {
		log.WithField("path", snap.String()).Info("Network path changed")
		apiSvc.Publish(snap)
	})

	if cfg.Announce {
		server, err := zeroconf.Register("pathwatchd", "_pathwatch._tcp", "local.",
			cfg.Port, []string{"version=" + version.Version}, nil)
		if err != nil {
			log.WithError(err).Warn("Failed to announce service over mDNS")
		} else {
			defer server.Shutdown()
		}
	}

	super := runtime.NewSupervisor()
	super.Add("notifier", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}, notifier.Close)
	super.Add("api", func(ctx context.Context) error { return apiSvc.Start(ctx) }, apiSvc.Close)

	if err := super.Start(ctx); err != nil {
		log.WithError(err).Error("Supervisor start failed")
		os.Exit(1)
	}
	if err := super.Wait(ctx); err != nil {
		log.WithError(err).Error("Supervisor wait failed")
		os.Exit(1)
	}
}

func setLogLevel(level string) {
	switch level {
	case "trace":
		log.SetLevel(log.TraceLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}
