package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Solr.DefaultCollection == "" {
		cfg.Solr.DefaultCollection = "unified"
	}
	if cfg.Solr.ConnectTimeoutSec == 0 {
		cfg.Solr.ConnectTimeoutSec = 10
	}
	if cfg.Solr.MaxRetries == 0 {
		cfg.Solr.MaxRetries = 3
	}
	if cfg.ZooKeeper.LiveNodesPath == "" {
		cfg.ZooKeeper.LiveNodesPath = "/live_nodes"
	}
	if cfg.ZooKeeper.CollectionsPath == "" {
		cfg.ZooKeeper.CollectionsPath = "/collections"
	}
	if cfg.ZooKeeper.SessionTimeoutSec == 0 {
		cfg.ZooKeeper.SessionTimeoutSec = 10
	}
	if cfg.ZooKeeper.MaxBackoffSec == 0 {
		cfg.ZooKeeper.MaxBackoffSec = 30
	}
	if cfg.Embedding.URL == "" {
		cfg.Embedding.URL = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Query.DefaultRows == 0 {
		cfg.Query.DefaultRows = 10
	}
	if cfg.Query.MaxRows == 0 {
		cfg.Query.MaxRows = 1000
	}
	if cfg.Query.MaxOffset == 0 {
		cfg.Query.MaxOffset = 10000
	}
	if cfg.Query.InExpansionThreshold == 0 {
		cfg.Query.InExpansionThreshold = 32
	}
	if cfg.Query.UnhealthyCoolDownSec == 0 {
		cfg.Query.UnhealthyCoolDownSec = 30
	}
	if cfg.Schema.Path == "" {
		cfg.Schema.Path = "./schema.yaml"
	}
}
