package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Cache stores geocoding results keyed by the normalised location text
type Cache interface {
	Get(ctx context.Context, key string) (lat, lon float64, ok bool)
	Set(ctx context.Context, key string, lat, lon float64) error
}

func cacheKey(location string) string {
	return strings.ToLower(strings.Join(strings.Fields(location), " "))
}

// FileCache keeps results in memory and mirrors them to a JSON file
type FileCache struct {
	logger    *logrus.Logger
	cacheFile string
	cache     map[string][]float64
	cacheLock sync.RWMutex
	saveLock  sync.Mutex
}

func NewFileCache(logger *logrus.Logger, cacheDir string) *FileCache {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		logger.WithError(err).Warn("Could not create geocode cache directory")
	}

	c := &FileCache{
		logger:    logger,
		cacheFile: filepath.Join(cacheDir, "geocode_cache.json"),
		cache:     make(map[string][]float64),
	}
	c.load()
	return c
}

func (c *FileCache) load() {
	data, err := os.ReadFile(c.cacheFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warnf("Could not load geocode cache: %v", err)
		}
		return
	}

	if err := json.Unmarshal(data, &c.cache); err != nil {
		c.logger.Errorf("Failed to parse geocode cache: %v", err)
		return
	}

	c.logger.Infof("Loaded %d cached addresses", len(c.cache))
}

func (c *FileCache) Get(_ context.Context, key string) (float64, float64, bool) {
	c.cacheLock.RLock()
	defer c.cacheLock.RUnlock()

	coords, ok := c.cache[cacheKey(key)]
	if !ok || len(coords) != 2 {
		return 0, 0, false
	}
	return coords[0], coords[1], true
}

func (c *FileCache) Set(_ context.Context, key string, lat, lon float64) error {
	c.cacheLock.Lock()
	c.cache[cacheKey(key)] = []float64{lat, lon}
	c.cacheLock.Unlock()

	return c.save()
}

func (c *FileCache) save() error {
	c.saveLock.Lock()
	defer c.saveLock.Unlock()

	c.cacheLock.RLock()
	data, err := json.Marshal(c.cache)
	c.cacheLock.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal geocode cache: %w", err)
	}

	// replace the file atomically
	tmp := c.cacheFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to save geocode cache: %w", err)
	}
	if err := os.Rename(tmp, c.cacheFile); err != nil {
		return fmt.Errorf("failed to save geocode cache: %w", err)
	}
	return nil
}

// RedisCache shares results between server instances
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &RedisCache{
		client: redis.NewClient(opts),
		prefix: "geocode:",
		ttl:    ttl,
	}, nil
}

// Ping checks the connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Get(ctx context.Context, key string) (float64, float64, bool) {
	raw, err := c.client.Get(ctx, c.prefix+cacheKey(key)).Bytes()
	if err != nil {
		return 0, 0, false
	}
	var coords []float64
	if err := json.Unmarshal(raw, &coords); err != nil || len(coords) != 2 {
		return 0, 0, false
	}
	return coords[0], coords[1], true
}

func (c *RedisCache) Set(ctx context.Context, key string, lat, lon float64) error {
	data, err := json.Marshal([]float64{lat, lon})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+cacheKey(key), data, c.ttl).Err()
}
