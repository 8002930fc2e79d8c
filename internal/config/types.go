// Package config provides configuration loading for carqa.
package config

import (
	"fmt"
	"time"

	"github.com/carqa/carqa/internal/embeddings"
	"github.com/carqa/carqa/internal/hybrid"
	"github.com/carqa/carqa/internal/qa"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig              `koanf:"server"`
	Logging    LoggingConfig             `koanf:"logging"`
	Store      hybrid.Config             `koanf:"store"`
	Embeddings embeddings.ProviderConfig `koanf:"embeddings"`
	QA         qa.Config                 `koanf:"qa"`
	Articles   ArticlesConfig            `koanf:"articles"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `koanf:"level"`
	// Format selects the encoder: "json" or "console".
	Format string `koanf:"format"`
}

// ArticlesConfig holds settings for the review-articles pipeline.
type ArticlesConfig struct {
	// Dir is the directory holding raw review JSON files.
	Dir string `koanf:"dir"`
	// Watch enables ingesting files as they appear in Dir.
	Watch bool `koanf:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format %q (expected json or console)", c.Logging.Format)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}
