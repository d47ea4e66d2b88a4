// Package config loads node configuration from YAML with environment
// overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Node struct {
		EngineID   string `yaml:"engine_id"`
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"node"`

	// Peers are the other nodes of the mesh, host:port. This node dials
	// each peer's /ws/sync stream.
	Peers []string `yaml:"peers"`

	Market struct {
		PriceScale int32 `yaml:"price_scale"`
		QtyScale   int32 `yaml:"qty_scale"`
	} `yaml:"market"`

	Kafka struct {
		Enabled         bool     `yaml:"enabled"`
		Brokers         []string `yaml:"brokers"`
		FillsTopic      string   `yaml:"fills_topic"`
		MarketDataTopic string   `yaml:"marketdata_topic"`
		FlushIntervalMS int      `yaml:"flush_interval_ms"`
	} `yaml:"kafka"`

	Storage struct {
		FillsPath  string `yaml:"fills_path"`
		OutboxPath string `yaml:"outbox_path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	overrideWithEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Node.ListenAddr == "" {
		cfg.Node.ListenAddr = ":7465"
	}
	if cfg.Kafka.FillsTopic == "" {
		cfg.Kafka.FillsTopic = "fills"
	}
	if cfg.Kafka.MarketDataTopic == "" {
		cfg.Kafka.MarketDataTopic = "marketdata"
	}
	if cfg.Kafka.FlushIntervalMS <= 0 {
		cfg.Kafka.FlushIntervalMS = 250
	}
	if cfg.Storage.FillsPath == "" {
		cfg.Storage.FillsPath = "data/fills.db"
	}
	if cfg.Storage.OutboxPath == "" {
		cfg.Storage.OutboxPath = "data/outbox"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
}

func (c *Config) Validate() error {
	if c.Node.EngineID == "" {
		return fmt.Errorf("node.engine_id is required")
	}
	if c.Market.PriceScale < 0 || c.Market.PriceScale > 12 {
		return fmt.Errorf("market.price_scale out of range: %d", c.Market.PriceScale)
	}
	if c.Market.QtyScale < 0 || c.Market.QtyScale > 12 {
		return fmt.Errorf("market.qty_scale out of range: %d", c.Market.QtyScale)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	for _, p := range c.Peers {
		if !strings.Contains(p, ":") {
			return fmt.Errorf("peer %q must be host:port", p)
		}
	}
	return nil
}

// overrideWithEnv lets deployments override per-node values without
// editing the shared file.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("HYDRA_ENGINE_ID"); v != "" {
		cfg.Node.EngineID = v
	}
	if v := os.Getenv("HYDRA_LISTEN_ADDR"); v != "" {
		cfg.Node.ListenAddr = v
	}
	if v := os.Getenv("HYDRA_PEERS"); v != "" {
		cfg.Peers = strings.Split(v, ",")
	}
	if v := os.Getenv("HYDRA_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("HYDRA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
