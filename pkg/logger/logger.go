// Package logger builds the structured zerolog logger shared by the service.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const DefaultServiceName = "record-catalog"

type Config struct {
	Level       string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format      string `mapstructure:"format" validate:"oneof=json console"`
	Output      string `mapstructure:"output" validate:"oneof=stdout stderr"`
	ServiceName string `mapstructure:"service_name"`
	WithCaller  bool   `mapstructure:"with_caller"`
}

func DefaultConfig() Config {
	return Config{
		Level:       "info",
		Format:      "json",
		Output:      "stdout",
		ServiceName: DefaultServiceName,
	}
}

// New builds a logger writing to the configured output.
func New(cfg Config) (zerolog.Logger, error) {
	cfg.setDefaults()
	w := io.Writer(os.Stdout)
	if cfg.Output == "stderr" {
		w = os.Stderr
	}
	return NewWithWriter(cfg, w)
}

// NewWithWriter builds a logger writing to w instead of the configured output.
func NewWithWriter(cfg Config, w io.Writer) (zerolog.Logger, error) {
	cfg.setDefaults()

	if err := validator.New().Struct(cfg); err != nil {
		return zerolog.Nop(), fmt.Errorf("logger config validation error: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(w).Level(level).With().
		Timestamp().
		Str("service", cfg.ServiceName)
	if cfg.WithCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger(), nil
}

func (c *Config) setDefaults() {
	def := DefaultConfig()
	if c.Level == "" {
		c.Level = def.Level
	}
	if c.Format == "" {
		c.Format = def.Format
	}
	if c.Output == "" {
		c.Output = def.Output
	}
	if c.ServiceName == "" {
		c.ServiceName = def.ServiceName
	}
}
