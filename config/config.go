package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	Server struct {
		Port string `env:"SERVER_PORT" envDefault:"5250"`

		// Origins allowed by CORS, "*" allows any
		AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

		// Requests per minute per client IP, 0 disables the limit
		RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"100"`

		// Largest accepted batch upload
		MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"5242880"`
	}

	Database struct {
		// sqlite or mysql
		Driver string `env:"DB_DRIVER" envDefault:"sqlite"`
		Path   string `env:"DB_PATH" envDefault:"database/properties.db"`
		DSN    string `env:"DB_DSN"`
	}

	Geocoding struct {
		URL           string        `env:"GEOCODER_URL" envDefault:"https://nominatim.openstreetmap.org/search"`
		UserAgent     string        `env:"GEOCODER_USER_AGENT" envDefault:"PropertyTracker/1.0"`
		Timeout       time.Duration `env:"GEOCODER_TIMEOUT" envDefault:"10s"`
		RatePerSecond float64       `env:"GEOCODER_RATE_PER_SECOND" envDefault:"1"`
		MaxRetries    int           `env:"GEOCODER_MAX_RETRIES" envDefault:"0"`

		// Number of rows geocoded at once during a batch import. Nominatim's
		// usage policy allows one request at a time.
		Concurrency int `env:"GEOCODE_CONCURRENCY" envDefault:"1"`

		CacheEnabled bool          `env:"GEOCODE_CACHE_ENABLED" envDefault:"true"`
		CacheDir     string        `env:"GEOCODE_CACHE_DIR"`
		RedisURL     string        `env:"REDIS_URL"`
		CacheTTL     time.Duration `env:"GEOCODE_CACHE_TTL" envDefault:"720h"`
	}

	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.Geocoding.CacheDir = DefaultCacheDir()
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.Geocoding.Concurrency < 1 {
		cfg.Geocoding.Concurrency = 1
	}
	return cfg, nil
}

// DefaultCacheDir is where geocoding results are kept between runs
func DefaultCacheDir() string {
	return filepath.Join(os.TempDir(), "proptrack", "geocode_cache")
}
