// Package app wires the shop: configuration, storage, purchase workflow,
// admin wizards and the Telegram routes that drive them.
package app

import (
	"fmt"
	"strings"

	"github.com/m3rciful/videoshop/core/cmd"
	coreconfig "github.com/m3rciful/videoshop/core/config"
	coredatabase "github.com/m3rciful/videoshop/core/database"
	"github.com/m3rciful/videoshop/internal/dedupe"
	"github.com/m3rciful/videoshop/internal/httpserver"
)

const (
	// StoreFile keeps the store document in a JSON file.
	StoreFile = "file"
	// StoreSQL keeps the store document in the store_snapshot table.
	StoreSQL = "sql"
)

// StoreConfig selects where the store document lives.
type StoreConfig struct {
	Driver string `yaml:"driver" envconfig:"STORE_DRIVER"`
	// Path is the JSON document for the file driver.
	Path string `yaml:"path" envconfig:"STORE_PATH"`
}

// SenderConfig tunes the outbound Telegram queue.
type SenderConfig struct {
	QueueSize    int `yaml:"queue_size"`
	Workers      int `yaml:"workers"`
	MaxRetries   int `yaml:"max_retries"`
	RetryBackoff int `yaml:"retry_backoff_ms"`
}

// Config is the full application configuration.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Store    StoreConfig         `yaml:"store"`
	Database coredatabase.Config `yaml:"database"`
	Redis    dedupe.RedisConfig  `yaml:"redis"`
	HTTP     httpserver.Config   `yaml:"http"`
	Sender   SenderConfig        `yaml:"sender"`
	// MetricsNamespace prefixes every Prometheus series.
	MetricsNamespace string `yaml:"metrics_namespace"`
}

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Core }

// LoadConfig reads path, applies environment overrides and validates the result.
func LoadConfig(path string) (cmd.ConfigCarrier, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case "", StoreFile:
		c.Store.Driver = StoreFile
		if strings.TrimSpace(c.Store.Path) == "" {
			c.Store.Path = "data/videos.json"
		}
	case StoreSQL:
		if err := c.Database.Normalize(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid store.driver %q; allowed: file, sql", c.Store.Driver)
	}
	if c.MetricsNamespace == "" {
		c.MetricsNamespace = "videoshop"
	}
	if c.Sender.MaxRetries < 0 {
		return fmt.Errorf("sender.max_retries must be >= 0")
	}
	if c.Sender.MaxRetries == 0 {
		c.Sender.MaxRetries = 2
	}
	return nil
}
