// Package config loads the YAML configuration file. Zero values are
// filled with engine defaults; CLI flags override whatever is loaded.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig sizes the pipeline.
type EngineConfig struct {
	NumLBs         int    `yaml:"num_lbs"`
	FPsPerLB       int    `yaml:"fps_per_lb"`
	QueueSize      int    `yaml:"queue_size"`
	MaxConnsPerFP  int    `yaml:"max_connections"`
	CleanupTimeout string `yaml:"cleanup_timeout"`
	StrictDomains  bool   `yaml:"strict_domains"`
}

// RulesConfig points at an optional rules file loaded at startup.
type RulesConfig struct {
	File string `yaml:"file"`
}

// NATSConfig enables flow-event publishing.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// ClickHouseConfig enables the flow archive writer.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ExportConfig groups the optional sinks.
type ExportConfig struct {
	NATS       NATSConfig       `yaml:"nats"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// APIConfig enables the HTTP control surface.
type APIConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the top-level configuration.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Rules  RulesConfig  `yaml:"rules"`
	Export ExportConfig `yaml:"export"`
	API    APIConfig    `yaml:"api"`
}

// Default returns a configuration with every engine knob at its default.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.applyDefaults()
	if _, err := cfg.CleanupTimeout(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Engine.NumLBs <= 0 {
		c.Engine.NumLBs = 2
	}
	if c.Engine.FPsPerLB <= 0 {
		c.Engine.FPsPerLB = 2
	}
	if c.Engine.QueueSize <= 0 {
		c.Engine.QueueSize = 10000
	}
	if c.Engine.MaxConnsPerFP <= 0 {
		c.Engine.MaxConnsPerFP = 100000
	}
	if c.Engine.CleanupTimeout == "" {
		c.Engine.CleanupTimeout = "300s"
	}
	if c.Export.NATS.Subject == "" {
		c.Export.NATS.Subject = "netwarden.flows"
	}
	if c.Export.ClickHouse.Port == 0 {
		c.Export.ClickHouse.Port = 9000
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
}

// CleanupTimeout parses the stale-flow timeout.
func (c *Config) CleanupTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Engine.CleanupTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid cleanup_timeout: %w", err)
	}
	return d, nil
}
