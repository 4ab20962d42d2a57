// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for Spool.
type Config struct {
	// Decoder configures the article decode pipeline.
	Decoder DecoderConfig `yaml:"decoder"`

	// Cache configures the decoded-article cache.
	Cache CacheConfig `yaml:"cache"`

	// Servers lists the news servers in priority order. The order of
	// this list is the order in which the failover policy considers
	// alternates.
	Servers []ServerConfig `yaml:"servers"`
}

// DecoderConfig configures the decode worker pool.
type DecoderConfig struct {
	// Workers is the number of decode worker goroutines.
	// Default: 1
	Workers int `yaml:"workers"`

	// QueueSize is the capacity of the decode job queue. The fetch
	// layer blocks when the queue is full.
	// Default: 200
	QueueSize int `yaml:"queue_size"`

	// SoftQueueLimit is the depth below which a delayed fetch layer is
	// resumed regardless of cache pressure.
	// Default: 10
	SoftQueueLimit int `yaml:"soft_queue_limit"`

	// HardQueueLimit is the depth at or above which the fetch layer is
	// never resumed, even when the cache has reserve space.
	// Default: 100
	HardQueueLimit int `yaml:"hard_queue_limit"`

	// Backend selects the yEnc decode implementation.
	// Values: "reference" (table-driven, line at a time) or
	// "chunked" (single pass over raw chunks).
	// Default: chunked
	Backend string `yaml:"backend"`

	// LogDecoding enables a debug log line per decoded article.
	// Default: false
	LogDecoding bool `yaml:"log_decoding"`
}

// CacheConfig configures the decoded-article cache.
type CacheConfig struct {
	// MemoryLimit is the in-memory byte budget for decoded articles.
	// Articles past the budget spill to disk.
	// Default: 64 MiB
	MemoryLimit int64 `yaml:"memory_limit"`

	// SpillDir is the directory for spilled articles. Created if it
	// does not exist.
	SpillDir string `yaml:"spill_dir"`
}

// ServerConfig describes one news server.
type ServerConfig struct {
	// Name identifies the server in logs (e.g., "news.example.com").
	Name string `yaml:"name"`

	// Priority orders servers for failover; a retry only considers
	// servers with priority >= the failing server's priority. Lower
	// numbers are not preferred — only the >= comparison matters.
	Priority int `yaml:"priority"`

	// Active marks the server as usable. Inactive servers are never
	// selected for retry.
	Active bool `yaml:"active"`
}

// Backend names accepted by DecoderConfig.Backend.
const (
	BackendReference = "reference"
	BackendChunked   = "chunked"
)

// Default returns the default configuration. These defaults ensure all
// fields have sensible values before the config file is merged in —
// the file remains the source of truth.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Decoder: DecoderConfig{
			Workers:        1,
			QueueSize:      200,
			SoftQueueLimit: 10,
			HardQueueLimit: 100,
			Backend:        BackendChunked,
		},
		Cache: CacheConfig{
			MemoryLimit: 64 << 20,
			SpillDir:    filepath.Join(homeDir, ".cache", "spool", "spill"),
		},
	}
}

// Load loads configuration from the SPOOL_CONFIG environment variable.
// There are no fallbacks — if SPOOL_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("SPOOL_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("SPOOL_CONFIG environment variable not set; " +
			"set it to the path of your spool.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The config
// file is the single source of truth; environment variables do not
// override config values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks internal consistency. Called by LoadFile; exported so
// programmatically built configs can be checked the same way.
func (c *Config) Validate() error {
	if c.Decoder.Workers < 1 {
		return fmt.Errorf("decoder.workers must be at least 1, got %d", c.Decoder.Workers)
	}
	if c.Decoder.QueueSize < 1 {
		return fmt.Errorf("decoder.queue_size must be at least 1, got %d", c.Decoder.QueueSize)
	}
	if c.Decoder.SoftQueueLimit >= c.Decoder.HardQueueLimit {
		return fmt.Errorf("decoder.soft_queue_limit (%d) must be below decoder.hard_queue_limit (%d)",
			c.Decoder.SoftQueueLimit, c.Decoder.HardQueueLimit)
	}
	switch c.Decoder.Backend {
	case BackendReference, BackendChunked:
	default:
		return fmt.Errorf("decoder.backend must be %q or %q, got %q",
			BackendReference, BackendChunked, c.Decoder.Backend)
	}
	if c.Cache.MemoryLimit <= 0 {
		return fmt.Errorf("cache.memory_limit must be positive, got %d", c.Cache.MemoryLimit)
	}
	for i, server := range c.Servers {
		if server.Name == "" {
			return fmt.Errorf("servers[%d]: name is required", i)
		}
	}
	return nil
}
