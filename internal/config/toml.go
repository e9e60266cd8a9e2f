// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// executePath is served by the remote execution endpoint and cannot host metrics.
const executePath = "/api/execute"

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Stats  StatsConfig  `toml:"stats"`
	Server ServerConfig `toml:"server"`
	Log    LogConfig    `toml:"log"`
}

// StatsConfig maps stats report defaults.
type StatsConfig struct {
	Threshold *int64  `toml:"threshold"`
	Pattern   *string `toml:"pattern"`
	Rederive  *bool   `toml:"rederive"`
}

// ServerConfig maps remote execution and metrics settings.
type ServerConfig struct {
	Addr             *string       `toml:"addr"`
	MetricsPath      *string       `toml:"metrics-path"`
	MaxCommandLength *int          `toml:"max-command-length"`
	Tokens           []TokenConfig `toml:"tokens"`
}

// TokenConfig is an access token accepted by the remote execution endpoint.
type TokenConfig struct {
	Alias   string `toml:"alias"`
	Token   string `toml:"token"`
	Manager bool   `toml:"manager"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	if err := cfg.validate(); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

func (c FileConfig) validate() error {
	if c.Stats.Threshold != nil && *c.Stats.Threshold < -1 {
		return fmt.Errorf("stats.threshold must be >= 0 or -1")
	}
	if c.Server.MetricsPath != nil {
		if err := validateMetricsPath(*c.Server.MetricsPath); err != nil {
			return err
		}
	}
	if c.Server.MaxCommandLength != nil && *c.Server.MaxCommandLength <= 0 {
		return fmt.Errorf("server.max-command-length must be > 0")
	}
	seen := make(map[string]struct{}, len(c.Server.Tokens))
	for i, tok := range c.Server.Tokens {
		if tok.Alias == "" || tok.Token == "" {
			return fmt.Errorf("server.tokens[%d]: alias and token are required", i)
		}
		if _, ok := seen[tok.Alias]; ok {
			return fmt.Errorf("server.tokens[%d]: duplicate alias %q", i, tok.Alias)
		}
		seen[tok.Alias] = struct{}{}
	}
	return nil
}

func validateMetricsPath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("server.metrics-path must start with '/', got %q", path)
	}
	if strings.ContainsAny(path, " \t{}") {
		return fmt.Errorf("server.metrics-path %q must not contain spaces or braces", path)
	}
	if path == executePath {
		return fmt.Errorf("server.metrics-path %q is reserved for remote execution", path)
	}
	return nil
}
