package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
app:
  name: call-connection
  env: test
http:
  port: 9090
platform:
  level: 30
  permissions: [manage_own_calls, bluetooth_connect]
connection:
  max_concurrent_per_account: 4
kafka:
  brokers: [localhost:9092]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileDefaultsAndEnv(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("CONNECTION_HTTP_PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HTTP.Port != 7070 {
		t.Errorf("expected env override for port, got %d", cfg.HTTP.Port)
	}
	if cfg.Platform.Level != 30 || len(cfg.Platform.Permissions) != 2 {
		t.Errorf("unexpected platform config %+v", cfg.Platform)
	}
	if cfg.Connection.MaxConcurrentPerAccount != 4 {
		t.Errorf("expected max concurrent 4, got %d", cfg.Connection.MaxConcurrentPerAccount)
	}
	if cfg.Connection.SlotTTL != 10*time.Minute {
		t.Errorf("expected default slot ttl, got %s", cfg.Connection.SlotTTL)
	}
	if cfg.Kafka.EventTopic != "connection-events" {
		t.Errorf("expected default event topic, got %q", cfg.Kafka.EventTopic)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	envFile := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(envFile, []byte("CONNECTION_CONNECTION_DEFAULT_ACCOUNT_ID=acct-from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", envFile)
	t.Cleanup(func() { os.Unsetenv("CONNECTION_CONNECTION_DEFAULT_ACCOUNT_ID") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Connection.DefaultAccountID != "acct-from-dotenv" {
		t.Fatalf("expected account from env file, got %q", cfg.Connection.DefaultAccountID)
	}
}

func TestLoadRejectsInvalidPlatformLevel(t *testing.T) {
	path := writeConfig(t, "platform:\n  level: -1\n")
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for negative platform level")
	}
}
