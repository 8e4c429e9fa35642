package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"proptrack/server/config"
	"proptrack/server/internal/database"
	"proptrack/server/internal/geocoding"
)

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if cfg.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logger.WithError(err).Warnf("Unknown log level %q, using info", cfg.Logging.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

// openDatabase connects to the configured datastore and runs migrations
func openDatabase(cfg *config.Config, logger *logrus.Logger) (*database.Database, error) {
	target := cfg.Database.Path
	if cfg.Database.Driver == "mysql" {
		target = cfg.Database.DSN
		logger.Info("Using MySQL database")
	} else {
		logger.Infof("Using database at: %s", target)
	}

	db, err := database.Open(cfg.Database.Driver, target, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	return db, nil
}

// newGeocoder builds the geocoder with a redis cache when REDIS_URL is set,
// the file cache otherwise. The returned func releases the cache.
func newGeocoder(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*geocoding.Geocoder, func(), error) {
	gc := cfg.Geocoding
	cleanup := func() {}

	var cache geocoding.Cache
	switch {
	case !gc.CacheEnabled:
		logger.Info("Geocode cache disabled")
	case gc.RedisURL != "":
		rc, err := geocoding.NewRedisCache(gc.RedisURL, gc.CacheTTL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to configure redis cache: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			rc.Close()
			return nil, cleanup, fmt.Errorf("failed to reach redis: %w", err)
		}
		logger.Info("Using redis geocode cache")
		cache = rc
		cleanup = func() {
			if err := rc.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close redis cache")
			}
		}
	default:
		cache = geocoding.NewFileCache(logger, gc.CacheDir)
	}

	geocoder := geocoding.NewGeocoder(logger, geocoding.Options{
		URL:           gc.URL,
		UserAgent:     gc.UserAgent,
		Timeout:       gc.Timeout,
		RatePerSecond: gc.RatePerSecond,
		MaxRetries:    gc.MaxRetries,
		Cache:         cache,
	})
	return geocoder, cleanup, nil
}
