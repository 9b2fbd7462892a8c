// Package config loads the service configuration from a YAML file and
// CATALOG_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goliatone/go-record-catalog/pkg/logger"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CATALOG_CACHE_TTL.
const EnvPrefix = "CATALOG"

type Config struct {
	HTTP        HTTPConfig        `mapstructure:"http"`
	Logger      logger.Config     `mapstructure:"logger"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Store       StoreConfig       `mapstructure:"store"`
	Pagination  PaginationConfig  `mapstructure:"pagination"`
	MusicBrainz MusicBrainzConfig `mapstructure:"musicbrainz"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	Mode            string        `mapstructure:"mode" validate:"oneof=debug release test"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type CacheConfig struct {
	Backend   string        `mapstructure:"backend" validate:"oneof=memory redis"`
	TTL       time.Duration `mapstructure:"ttl" validate:"gt=0"`
	Namespace string        `mapstructure:"namespace" validate:"required"`
	Codec     string        `mapstructure:"codec" validate:"oneof=json msgpack"`
	Coalesce  bool          `mapstructure:"coalesce"`
	Redis     RedisConfig   `mapstructure:"redis"`
	Memory    MemoryConfig  `mapstructure:"memory"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

type MemoryConfig struct {
	Capacity           int           `mapstructure:"capacity" validate:"gt=0"`
	NumShards          int           `mapstructure:"num_shards" validate:"gt=0"`
	EvictionPercentage int           `mapstructure:"eviction_percentage" validate:"gte=1,lte=100"`
	EvictionInterval   time.Duration `mapstructure:"eviction_interval" validate:"gte=0"`
}

type StoreConfig struct {
	Driver   string `mapstructure:"driver" validate:"oneof=mongo sqlite postgres"`
	URI      string `mapstructure:"uri" validate:"required"`
	Database string `mapstructure:"database" validate:"required_if=Driver mongo"`
	// Migrate creates the SQL schema or Mongo indexes on startup.
	Migrate bool `mapstructure:"migrate"`
}

type PaginationConfig struct {
	DefaultLimit int `mapstructure:"default_limit" validate:"gt=0"`
}

type MusicBrainzConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	BaseURL          string        `mapstructure:"base_url" validate:"omitempty,url"`
	UserAgent        string        `mapstructure:"user_agent"`
	Timeout          time.Duration `mapstructure:"timeout" validate:"gte=0"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout" validate:"gte=0"`
}

func defaults() map[string]any {
	return map[string]any{
		"http.addr":             ":3000",
		"http.mode":             "release",
		"http.read_timeout":     "10s",
		"http.write_timeout":    "10s",
		"http.shutdown_timeout": "10s",

		"logger.level":        "info",
		"logger.format":       "json",
		"logger.output":       "stdout",
		"logger.service_name": logger.DefaultServiceName,
		"logger.with_caller":  false,

		"cache.backend":                    "memory",
		"cache.ttl":                        "20s",
		"cache.namespace":                  "catalog",
		"cache.codec":                      "json",
		"cache.coalesce":                   false,
		"cache.redis.addr":                 "127.0.0.1:6379",
		"cache.redis.password":             "",
		"cache.redis.db":                   0,
		"cache.memory.capacity":            10000,
		"cache.memory.num_shards":          256,
		"cache.memory.eviction_percentage": 10,
		"cache.memory.eviction_interval":   "0s",

		"store.driver":   "sqlite",
		"store.uri":      "file:catalog.db?_foreign_keys=on",
		"store.database": "records",
		"store.migrate":  true,

		"pagination.default_limit": 5,

		"musicbrainz.enabled":           true,
		"musicbrainz.base_url":          "https://musicbrainz.org/ws/2/",
		"musicbrainz.user_agent":        "go-record-catalog/1.0 ( catalog@example.com )",
		"musicbrainz.timeout":           "5s",
		"musicbrainz.failure_threshold": 5,
		"musicbrainz.open_timeout":      "30s",
	}
}

// Load reads path, applies environment overrides and validates the result.
// An empty path loads defaults and the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section and reports the first failing fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return errors.New("invalid config: Config.Cache.Redis.Addr (required for redis backend)")
	}
	return nil
}
