package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	ErrNoResults     = errors.New("no geocoding results")
	ErrUpstream      = errors.New("geocoding service error")
	ErrEmptyLocation = errors.New("empty location")
)

const maxResponseBytes = 1 << 20

type Options struct {
	URL           string
	UserAgent     string
	Timeout       time.Duration
	RatePerSecond float64
	MaxRetries    int
	Cache         Cache
}

// Geocoder resolves free-text addresses to coordinates using a
// Nominatim-compatible search endpoint.
type Geocoder struct {
	logger    *logrus.Logger
	baseURL   string
	userAgent string
	client    *retryablehttp.Client
	limiter   *rate.Limiter
	cache     Cache
}

func NewGeocoder(logger *logrus.Logger, opts Options) *Geocoder {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.MaxRetries
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = opts.Timeout
	rc.Logger = &leveledLogger{entry: logger.WithField("component", "geocoder")}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}

	return &Geocoder{
		logger:    logger,
		baseURL:   opts.URL,
		userAgent: opts.UserAgent,
		client:    rc,
		limiter:   rate.NewLimiter(limit, 1),
		cache:     opts.Cache,
	}
}

type nominatimResponse []struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode returns the latitude and longitude of the first match for
// location. Any upstream failure or an empty result is an error.
func (g *Geocoder) Geocode(ctx context.Context, location string) (float64, float64, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return 0, 0, ErrEmptyLocation
	}

	if g.cache != nil {
		if lat, lon, ok := g.cache.Get(ctx, location); ok {
			g.logger.WithFields(logrus.Fields{
				"address":   location,
				"latitude":  lat,
				"longitude": lon,
				"source":    "cache",
			}).Debug("Found coordinates in cache")
			return lat, lon, nil
		}
	}

	// Respect the provider's usage policy
	if err := g.limiter.Wait(ctx); err != nil {
		return 0, 0, fmt.Errorf("geocoding rate limiter: %w", err)
	}

	g.logger.WithField("address", location).Info("Geocoding address")

	params := url.Values{
		"q":      []string{location},
		"format": []string{"json"},
		"limit":  []string{"1"},
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.WithError(err).WithField("address", location).Error("Geocoding request failed")
		return 0, 0, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.logger.WithFields(logrus.Fields{
			"address": location,
			"status":  resp.StatusCode,
		}).Error("Geocoding service returned an error status")
		return 0, 0, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read response: %w", err)
	}

	var result nominatimResponse
	if err := json.Unmarshal(body, &result); err != nil {
		g.logger.WithError(err).WithField("address", location).Error("Failed to parse response")
		return 0, 0, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(result) == 0 {
		g.logger.WithField("address", location).Warn("No results found")
		return 0, 0, fmt.Errorf("%w for address: %s", ErrNoResults, location)
	}

	lat, err := strconv.ParseFloat(result[0].Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q: %w", result[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(result[0].Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q: %w", result[0].Lon, err)
	}

	g.logger.WithFields(logrus.Fields{
		"address":   location,
		"latitude":  lat,
		"longitude": lon,
		"source":    "nominatim",
	}).Info("Successfully geocoded address")

	if g.cache != nil {
		if err := g.cache.Set(ctx, location, lat, lon); err != nil {
			g.logger.WithError(err).Warn("Failed to cache geocoding result")
		}
	}

	return lat, lon, nil
}

// leveledLogger adapts logrus to retryablehttp.LeveledLogger
type leveledLogger struct {
	entry *logrus.Entry
}

func (l *leveledLogger) fields(keysAndValues []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return l.entry.WithFields(fields)
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Error(msg)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Info(msg)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Warn(msg)
}
