package cache

import (
	"fmt"
	"time"
)

// RedisConfig is the connection and keyspace of a RedisCache.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	PoolTimeout  time.Duration
	DialTimeout  time.Duration
	Prefix       string
}

func defaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  30 * time.Second,
		DialTimeout:  5 * time.Second,
		Prefix:       "patternlab",
	}
}

func (c *RedisConfig) addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

type RedisOption func(*RedisConfig)

func WithRedisHost(host string) RedisOption {
	return func(c *RedisConfig) {
		if host != "" {
			c.Host = host
		}
	}
}

func WithRedisPort(port int) RedisOption {
	return func(c *RedisConfig) {
		if port > 0 {
			c.Port = port
		}
	}
}

func WithRedisPassword(password string) RedisOption {
	return func(c *RedisConfig) { c.Password = password }
}

func WithRedisDB(db int) RedisOption {
	return func(c *RedisConfig) { c.DB = db }
}

// WithRedisPool sizes the connection pool. Zero values keep the defaults.
func WithRedisPool(poolSize, minIdleConns int, timeout time.Duration) RedisOption {
	return func(c *RedisConfig) {
		if poolSize > 0 {
			c.PoolSize = poolSize
		}
		if minIdleConns > 0 {
			c.MinIdleConns = minIdleConns
		}
		if timeout > 0 {
			c.PoolTimeout = timeout
		}
	}
}

// WithRedisPrefix namespaces every key, including lock keys.
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) {
		if prefix != "" {
			c.Prefix = prefix
		}
	}
}

// MemoryConfig bounds an in-process cache.
type MemoryConfig struct {
	MaxSize         int
	CleanupInterval time.Duration
}

type MemoryOption func(*MemoryConfig)

func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *MemoryConfig) {
		if size > 0 {
			c.MaxSize = size
		}
	}
}

func WithMemoryCleanup(interval time.Duration) MemoryOption {
	return func(c *MemoryConfig) {
		if interval > 0 {
			c.CleanupInterval = interval
		}
	}
}

// LayeredConfig sizes the in-process layer of a LayeredCache. MemoryTTL caps how
// long an entry read back from Redis stays local.
type LayeredConfig struct {
	MemoryMaxSize int
	MemoryTTL     time.Duration
}

type LayeredOption func(*LayeredConfig)

func WithLayeredMemorySize(size int) LayeredOption {
	return func(c *LayeredConfig) {
		if size > 0 {
			c.MemoryMaxSize = size
		}
	}
}

func WithLayeredMemoryTTL(ttl time.Duration) LayeredOption {
	return func(c *LayeredConfig) {
		if ttl > 0 {
			c.MemoryTTL = ttl
		}
	}
}
