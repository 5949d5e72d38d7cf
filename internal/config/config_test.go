package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"CONFIG_FILE", "APP_USERNAME", "APP_PASSWORD_HASH", "PORT", "GIN_MODE", "CORS_ALLOWED_ORIGINS",
	"WORKERS", "MAX_CONCURRENCY", "WORK_DIR", "BUFFER_SIZE", "MAX_TAIL_BYTES", "FETCH_POOL_SIZE",
	"FETCH_TIMEOUT", "STATUS_BACKEND", "STATUS_REDIS_URL", "JOB_EXPIRE_MINUTES", "NATS_URL",
	"STATUS_SUBJECT", "LOG_LEVEL", "LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != "8888" || cfg.Workers != 4 || cfg.MaxConcurrency != 50 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.BufferSize != 10240 || cfg.MaxTailBytes != 0 {
		t.Fatalf("unexpected read settings: %d %d", cfg.BufferSize, cfg.MaxTailBytes)
	}
	if cfg.FetchPoolSize != cfg.Workers {
		t.Fatalf("fetch pool should follow workers: %d", cfg.FetchPoolSize)
	}
	if cfg.StatusBackend != StatusBackendMemory || cfg.AuthEnabled() {
		t.Fatalf("unexpected backend/auth defaults: %+v", cfg)
	}
	if cfg.JobTTL() != 0 {
		t.Fatalf("expected no TTL by default, got %s", cfg.JobTTL())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORKERS", "8")
	t.Setenv("MAX_CONCURRENCY", "10")
	t.Setenv("FETCH_TIMEOUT", "15")
	t.Setenv("STATUS_BACKEND", "REDIS")
	t.Setenv("JOB_EXPIRE_MINUTES", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Workers != 8 || cfg.FetchPoolSize != 8 || cfg.MaxConcurrency != 10 {
		t.Fatalf("unexpected pool settings: %+v", cfg)
	}
	if cfg.FetchTimeout != 15*time.Second {
		t.Fatalf("FetchTimeout = %s, want 15s", cfg.FetchTimeout)
	}
	if cfg.StatusBackend != StatusBackendRedis || cfg.JobTTL() != 30*time.Minute {
		t.Fatalf("unexpected status settings: %+v", cfg)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sorter.yaml")
	content := "workers: 2\nmax_concurrency: 7\nfetch_timeout: 1m30s\nlog_format: json\nport: \"9000\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Workers != 2 || cfg.MaxConcurrency != 7 || cfg.LogFormat != "json" {
		t.Fatalf("YAML values not applied: %+v", cfg)
	}
	if cfg.FetchTimeout != 90*time.Second {
		t.Fatalf("FetchTimeout = %s, want 1m30s", cfg.FetchTimeout)
	}
	if cfg.Port != "9100" {
		t.Fatalf("environment should override YAML, got port %s", cfg.Port)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero workers", map[string]string{"WORKERS": "0"}},
		{"negative max tail", map[string]string{"MAX_TAIL_BYTES": "-1"}},
		{"bad timeout", map[string]string{"FETCH_TIMEOUT": "soon"}},
		{"unknown backend", map[string]string{"STATUS_BACKEND": "etcd"}},
		{"half auth", map[string]string{"APP_USERNAME": "admin"}},
		{"release without auth", map[string]string{"GIN_MODE": "release"}},
		{"missing config file", map[string]string{"CONFIG_FILE": "/nonexistent/sorter.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
