package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Gateway.ReconnectDelay != 15*time.Second {
		t.Errorf("reconnect delay = %s, want 15s", cfg.Gateway.ReconnectDelay)
	}
	if cfg.IEC104.ListenAddress != ":2404" {
		t.Errorf("listen address = %s, want :2404", cfg.IEC104.ListenAddress)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	content := `
gateway:
  queue_capacity: 64
iec104:
  listen_address: ":12404"
  common_address: 7
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Gateway.QueueCapacity != 64 {
		t.Errorf("queue capacity = %d, want 64", cfg.Gateway.QueueCapacity)
	}
	if cfg.IEC104.ListenAddress != ":12404" {
		t.Errorf("listen address = %s, want :12404", cfg.IEC104.ListenAddress)
	}
	if cfg.IEC104.CommonAddress != 7 {
		t.Errorf("common address = %d, want 7", cfg.IEC104.CommonAddress)
	}
	// Untouched keys keep their defaults.
	if cfg.Gateway.ConnectionCheckInterval != 30*time.Second {
		t.Errorf("check interval = %s, want default 30s", cfg.Gateway.ConnectionCheckInterval)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %s, want debug", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gateway.QueueCapacity = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero queue capacity must not validate")
	}

	cfg = DefaultConfig()
	cfg.IEC104.CommonAddress = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero common address must not validate")
	}
}
