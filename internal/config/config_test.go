package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.Capacity != 1024 {
		t.Fatalf("capacity = %d, want 1024", cfg.Cache.Capacity)
	}
	if cfg.Cache.CleanupInterval != time.Minute {
		t.Fatalf("cleanup_interval = %s, want 1m", cfg.Cache.CleanupInterval)
	}
	if !strings.HasSuffix(cfg.Server.Socket, "cache.sock") {
		t.Fatalf("socket = %q", cfg.Server.Socket)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("log = %+v", cfg.Log)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, "cache.yaml", `
cache:
  capacity: 2
  cleanup_interval: 5s
server:
  socket: /tmp/lru.sock
  metrics_addr: ":9100"
snapshot:
  path: ""
`)
	t.Setenv("LRUCACHE_LOG_LEVEL", "debug")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.Capacity != 2 || cfg.Cache.CleanupInterval != 5*time.Second {
		t.Fatalf("cache = %+v", cfg.Cache)
	}
	if cfg.Server.Socket != "/tmp/lru.sock" || cfg.Server.MetricsAddr != ":9100" {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Snapshot.Path != "" {
		t.Fatalf("snapshot.path = %q, want empty", cfg.Snapshot.Path)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log.level = %q, want env override", cfg.Log.Level)
	}
}

func TestLoadRejectsInvalidCapacity(t *testing.T) {
	path := writeConfig(t, "cache.toml", "[cache]\ncapacity = 0\n")

	if _, err := Load(context.Background(), path); err == nil {
		t.Fatalf("expected error for capacity 0")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestLoadCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Load(ctx, ""); err == nil {
		t.Fatalf("expected error for canceled context")
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent to testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
