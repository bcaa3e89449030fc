package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.Grid.Transport != TransportHTTP {
		t.Errorf("expected http transport, got %q", cfg.Grid.Transport)
	}
	if cfg.Grid.RequestTimeout != 120*time.Second {
		t.Errorf("unexpected request timeout %v", cfg.Grid.RequestTimeout)
	}
	if !cfg.IsDevelopment() {
		t.Error("empty frontend URL should be development")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GRIDASSIST_PORT", "9090")
	t.Setenv("GRIDASSIST_GRID_TRANSPORT", "GRPC")
	t.Setenv("GRIDASSIST_GRID_GRPC_ADDR", "agent:50051")
	t.Setenv("GRIDASSIST_SESSION_TTL", "15m")
	t.Setenv("GRIDASSIST_LOG_LEVEL", "debug")

	cfg, err := load(viper.New())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %q", cfg.Port)
	}
	if cfg.Grid.Transport != TransportGRPC || cfg.Grid.GrpcAddr != "agent:50051" {
		t.Errorf("unexpected grid config %+v", cfg.Grid)
	}
	if cfg.SessionTTL != 15*time.Minute {
		t.Errorf("expected 15m ttl, got %v", cfg.SessionTTL)
	}
	if cfg.SlogLevel().String() != "DEBUG" {
		t.Errorf("expected debug level, got %v", cfg.SlogLevel())
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridassist.toml")
	content := "port = \"7000\"\n[grid]\nbase_url = \"http://grid:8000\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GRIDASSIST_CONFIG", path)

	cfg, err := load(viper.New())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Port != "7000" || cfg.Grid.BaseURL != "http://grid:8000" {
		t.Errorf("config file not applied: port=%q base=%q", cfg.Port, cfg.Grid.BaseURL)
	}
}

func TestValidateRejectsUnknownTransport(t *testing.T) {
	t.Setenv("GRIDASSIST_GRID_TRANSPORT", "carrier-pigeon")
	if _, err := load(viper.New()); err == nil {
		t.Fatal("expected validation error")
	}
}
