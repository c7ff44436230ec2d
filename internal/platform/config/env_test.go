package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Port int `env:"REALMTREE_TEST_PORT" envDefault:"123"`
}

type prefixedTestConfig struct {
	DBPath  string        `env:"DB_PATH" envDefault:"data/realms.db"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"1m"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("REALMTREE_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseEnvPrefixedUsesDefaultPrefix(t *testing.T) {
	t.Setenv("REALMTREE_DB_PATH", "/tmp/tree.db")
	t.Setenv("REALMTREE_TIMEOUT", "5s")

	var cfg prefixedTestConfig
	if err := ParseEnvPrefixed(&cfg, ""); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.DBPath != "/tmp/tree.db" {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, "/tmp/tree.db")
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("timeout = %v, want 5s", cfg.Timeout)
	}
}

func TestParseEnvPrefixedCustomPrefix(t *testing.T) {
	t.Setenv("OTHER_TIMEOUT", "bogus")

	var cfg prefixedTestConfig
	err := ParseEnvPrefixed(&cfg, "OTHER_")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env OTHER_*") {
		t.Fatalf("expected prefixed error, got %v", err)
	}
}
