// Package cache provides an optional redis-backed result cache. Every
// prediction path is deterministic for identical input bytes, so cached
// assessments keyed by a content digest are always valid.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/osteocare/osteocare/internal/domain/assessment"
)

// DefaultTTL bounds how long a cached assessment is served.
const DefaultTTL = 24 * time.Hour

// Cache wraps a redis client. A nil *Cache is a valid no-op cache, so
// callers never need to branch on whether caching is configured.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// New connects to redis at the given URL (redis://host:port/db) and verifies
// the connection.
func New(redisURL string, ttl time.Duration, log zerolog.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return NewFromClient(rdb, ttl, log), nil
}

// NewFromClient wraps an existing redis client.
func NewFromClient(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl, log: log}
}

// Key derives the cache key for an upload from its modality, filename, and
// content bytes.
func Key(modality, filename string, content []byte) string {
	h := sha256.New()
	h.Write([]byte(modality))
	h.Write([]byte{0})
	h.Write([]byte(filename))
	h.Write([]byte{0})
	h.Write(content)
	return "assessment:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached assessment for key, if any.
func (c *Cache) Get(ctx context.Context, key string) (assessment.Assessment, bool) {
	if c == nil || c.rdb == nil {
		return assessment.Assessment{}, false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return assessment.Assessment{}, false
	}
	var a assessment.Assessment
	if err := json.Unmarshal(raw, &a); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		return assessment.Assessment{}, false
	}
	return a, true
}

// Set stores an assessment under key. Failures are logged, never surfaced:
// the cache is an optimization, not a dependency.
func (c *Cache) Set(ctx context.Context, key string, a assessment.Assessment) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Close releases the underlying redis connection.
func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
