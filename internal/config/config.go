// Package config provides configuration loading and structs for the Tansaku gateway.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Solr      SolrConfig      `yaml:"solr"`
	ZooKeeper ZooKeeperConfig `yaml:"zookeeper"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Query     QueryConfig     `yaml:"query"`
	Schema    SchemaConfig    `yaml:"schema"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// SolrConfig holds settings for the search cluster protocol client.
// StaticEndpoints is the fallback membership list used when no ZooKeeper
// hosts are configured ("host:port" entries).
type SolrConfig struct {
	StaticEndpoints   []string `yaml:"static_endpoints"`
	DefaultCollection string   `yaml:"default_collection"`
	ConnectTimeoutSec int      `yaml:"connect_timeout_sec"`
	MaxRetries        int      `yaml:"max_retries"`
}

// ConnectTimeout returns the per-call timeout as a duration.
func (c *SolrConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSec) * time.Second
}

// ZooKeeperConfig holds coordination-service settings. An empty Hosts list
// disables ZooKeeper and switches membership to SolrConfig.StaticEndpoints.
type ZooKeeperConfig struct {
	Hosts             []string `yaml:"hosts"`
	LiveNodesPath     string   `yaml:"live_nodes_path"`
	CollectionsPath   string   `yaml:"collections_path"`
	SessionTimeoutSec int      `yaml:"session_timeout_sec"`
	MaxBackoffSec     int      `yaml:"max_backoff_sec"`
}

// SessionTimeout returns the ZooKeeper session timeout as a duration.
func (z *ZooKeeperConfig) SessionTimeout() time.Duration {
	return time.Duration(z.SessionTimeoutSec) * time.Second
}

// MaxBackoff returns the reconnect backoff cap as a duration.
func (z *ZooKeeperConfig) MaxBackoff() time.Duration {
	return time.Duration(z.MaxBackoffSec) * time.Second
}

// EmbeddingConfig holds settings for the remote embedding service.
type EmbeddingConfig struct {
	URL        string `yaml:"url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
}

// QueryConfig holds query compilation and execution limits.
type QueryConfig struct {
	DefaultRows          int `yaml:"default_rows"`
	MaxRows              int `yaml:"max_rows"`
	MaxOffset            int `yaml:"max_offset"`
	InExpansionThreshold int `yaml:"in_expansion_threshold"`
	UnhealthyCoolDownSec int `yaml:"unhealthy_cool_down_sec"`
}

// UnhealthyCoolDown returns the endpoint re-probation cool-down as a duration.
func (q *QueryConfig) UnhealthyCoolDown() time.Duration {
	return time.Duration(q.UnhealthyCoolDownSec) * time.Second
}

// SchemaConfig holds the schema descriptor location.
type SchemaConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Schema.Path = expandPath(cfg.Schema.Path, configDir)

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
