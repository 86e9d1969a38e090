// Package storage provides string-keyed durable stores used to keep session snapshots.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Common errors for store operations
var (
	ErrNotFound      = errors.New("key not found")
	ErrInvalidConfig = errors.New("invalid storage configuration")
	ErrInvalidDriver = errors.New("invalid storage driver")
	ErrInvalidKey    = errors.New("invalid storage key")
)

// Store is a string-keyed value store. Set overwrites the whole value.
type Store interface {
	// Get returns ErrNotFound when key has never been set or was deleted
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete is a no-op for missing keys
	Delete(ctx context.Context, key string) error
	Close() error
}

// Driver names a store implementation
type Driver string

const (
	DriverFile     Driver = "file"
	DriverMemory   Driver = "memory"
	DriverRedis    Driver = "redis"
	DriverSQLite   Driver = "sqlite"
	DriverSupabase Driver = "supabase"
)

// Option is a functional option for configuring a store
type Option func(*storeConfig)

type storeConfig struct {
	dir           string
	redisClient   *redis.Client
	ttl           time.Duration
	sqlitePath    string
	supabaseURL   string
	supabaseKey   string
	supabaseTable string
}

// WithDir sets the directory of the file store
func WithDir(dir string) Option {
	return func(c *storeConfig) {
		c.dir = dir
	}
}

// WithRedisClient sets the client of the redis store
func WithRedisClient(client *redis.Client) Option {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithTTL sets a key expiry for stores that support one (redis). Zero keeps keys forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *storeConfig) {
		c.ttl = ttl
	}
}

// WithSQLitePath sets the database file of the sqlite store
func WithSQLitePath(path string) Option {
	return func(c *storeConfig) {
		c.sqlitePath = path
	}
}

// WithSupabase sets the project URL, service key and table of the supabase store
func WithSupabase(url, key, table string) Option {
	return func(c *storeConfig) {
		c.supabaseURL = url
		c.supabaseKey = key
		c.supabaseTable = table
	}
}

// New creates a Store for the given driver
func New(driver Driver, opts ...Option) (Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil

	case DriverFile:
		if cfg.dir == "" {
			return nil, ErrInvalidConfig
		}
		return NewFileStore(cfg.dir)

	case DriverRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return NewRedisStore(cfg.redisClient, cfg.ttl), nil

	case DriverSQLite:
		if cfg.sqlitePath == "" {
			return nil, ErrInvalidConfig
		}
		return OpenSQLite(cfg.sqlitePath)

	case DriverSupabase:
		if cfg.supabaseURL == "" || cfg.supabaseKey == "" || cfg.supabaseTable == "" {
			return nil, ErrInvalidConfig
		}
		return NewSupabaseStore(cfg.supabaseURL, cfg.supabaseKey, cfg.supabaseTable)

	default:
		return nil, ErrInvalidDriver
	}
}
