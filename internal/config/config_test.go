package config

import (
	"crypto/ed25519"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shadowvest/go-backend/internal/payload"

	"github.com/mr-tron/base58/base58"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	path := writeConfig(t, `
rpc:
  addr: 0.0.0.0:9000
  requireAuth: true
  readTimeout: 3s
ledger:
  backend: badger
  path: /tmp/sv-ledger
scan:
  workers: 8
service:
  payloadFormat: a
  signingSeed: `+base58.Encode(seed)+`
log:
  format: text
`)
	t.Setenv("SV_RPC_TOKEN", "tok")
	t.Setenv("SV_SCAN_WORKERS", "2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPC.Addr != "0.0.0.0:9000" || cfg.RPC.ReadTimeout != 3*time.Second {
		t.Fatalf("rpc section not merged: %+v", cfg.RPC)
	}
	if cfg.RPC.WriteTimeout != Default().RPC.WriteTimeout {
		t.Fatal("unset fields keep their defaults")
	}
	if cfg.Scan.Workers != 2 {
		t.Fatalf("env must override file, workers=%d", cfg.Scan.Workers)
	}
	if cfg.Ledger.Backend != LedgerBadger || cfg.Service.PayloadFormat != payload.FormatA {
		t.Fatalf("unexpected ledger/service: %+v %+v", cfg.Ledger, cfg.Service)
	}
	want := ed25519.NewKeyFromSeed(seed)
	if !want.Equal(cfg.Service.SigningKey) {
		t.Fatal("signing key not resolved from seed")
	}
	if cfg.Service.SigningSeed != "" {
		t.Fatal("seed text must be dropped after resolving")
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("SV_RPC_REQUIRE_AUTH", "false")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Ledger.Backend != LedgerMemory || cfg.Service.PayloadFormat != payload.FormatB {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Service.SigningKey != nil {
		t.Fatal("no signing key unless configured")
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := map[string]func(*Config){
		"auth without token": func(c *Config) { c.RPC.Token = "" },
		"badger without path": func(c *Config) {
			c.Ledger.Backend = LedgerBadger
			c.Ledger.Path = ""
		},
		"unknown backend":             func(c *Config) { c.Ledger.Backend = "redis" },
		"zero workers":                func(c *Config) { c.Scan.Workers = 0 },
		"registry without passphrase": func(c *Config) { c.Registry.Path = "/tmp/r" },
		"bad log format":              func(c *Config) { c.Log.Format = "xml" },
	}
	for name, mutate := range cases {
		cfg := Default()
		cfg.RPC.Token = "tok"
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestEnvOverridesRejectUnknownPayloadFormat(t *testing.T) {
	t.Setenv("SV_PAYLOAD_FORMAT", "c")
	cfg := Default()
	if err := ApplyEnvOverrides(&cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadRejectsMalformedYAMLAndSeed(t *testing.T) {
	if _, err := Load(writeConfig(t, "rpc: [")); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for yaml, got %v", err)
	}
	t.Setenv("SV_RPC_TOKEN", "tok")
	_, err := Load(writeConfig(t, "service:\n  signingSeed: notakey\n"))
	if !errors.Is(err, ErrInvalidConfig) || strings.Contains(err.Error(), "notakey") {
		t.Fatalf("expected ErrInvalidConfig without echoing the seed, got %v", err)
	}
}
