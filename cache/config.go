package cache

import (
	"time"

	"github.com/rs/zerolog"
)

// Default values applied by DefaultConfig.
const (
	DefaultTTL       = 20 * time.Second
	DefaultNamespace = "catalog"
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	// TTL is the lifetime of every entry written by the Service.
	TTL time.Duration

	// Namespace prefixes every key built by the default key serializer.
	Namespace string

	// Codec names the serialization used for cached values: "json" or "msgpack".
	Codec string

	// Coalesce enables sharing a single fetch between concurrent misses on one key.
	Coalesce bool
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TTL:       DefaultTTL,
		Namespace: DefaultNamespace,
		Codec:     JSONCodec{}.Name(),
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.Namespace == "" {
		return &ConfigError{Field: "Namespace", Message: "must not be empty"}
	}
	if _, err := CodecByName(c.Codec); err != nil {
		return err
	}
	return nil
}

// NewService validates cfg and builds a Service over store.
func (c Config) NewService(store Store, logger zerolog.Logger) (*Service, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	codec, err := CodecByName(c.Codec)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithCodec(codec), WithLogger(logger)}
	if c.Coalesce {
		opts = append(opts, WithCoalescing())
	}
	return NewService(store, c.TTL, opts...), nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
