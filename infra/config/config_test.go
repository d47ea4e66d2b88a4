package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
node:
  engine_id: node-a
market:
  price_scale: 2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Node.ListenAddr != ":7465" {
		t.Fatalf("default listen addr = %q", cfg.Node.ListenAddr)
	}
	if cfg.Kafka.FillsTopic != "fills" {
		t.Fatalf("default fills topic = %q", cfg.Kafka.FillsTopic)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("default log level = %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsMissingEngineID(t *testing.T) {
	path := writeConfig(t, `
market:
  price_scale: 2
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing engine_id")
	}
}

func TestLoadRejectsKafkaWithoutBrokers(t *testing.T) {
	path := writeConfig(t, `
node:
  engine_id: node-a
kafka:
  enabled: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for kafka without brokers")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HYDRA_ENGINE_ID", "node-env")
	t.Setenv("HYDRA_PEERS", "h1:7465,h2:7465")

	path := writeConfig(t, `
node:
  engine_id: node-a
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Node.EngineID != "node-env" {
		t.Fatalf("engine id = %q", cfg.Node.EngineID)
	}
	if len(cfg.Peers) != 2 {
		t.Fatalf("peers = %v", cfg.Peers)
	}
}

func TestBadPeerAddr(t *testing.T) {
	path := writeConfig(t, `
node:
  engine_id: node-a
peers:
  - not-an-addr
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed peer address")
	}
}
