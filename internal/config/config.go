// Package config loads daemon settings: defaults, then an optional YAML
// file, then SV_* environment overrides.
package config

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"shadowvest/go-backend/internal/crypto/keyenc"
	"shadowvest/go-backend/internal/payload"
	"shadowvest/go-backend/internal/securestore"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidConfig     = errors.New("invalid config")
	ErrSigningKeyMissing = errors.New("service signing key is not configured")
)

type Config struct {
	RPC      RPCConfig
	Keystore KeystoreConfig
	Registry RegistryConfig
	Ledger   LedgerConfig
	Scan     ScanConfig
	Service  ServiceConfig
	Log      LogConfig
}

type RPCConfig struct {
	Addr           string
	Token          string
	RequireAuth    bool
	RateLimitRPS   float64
	RateLimitBurst int
	MaxBodyBytes   int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

type KeystoreConfig struct {
	Path       string
	Passphrase string
	KDF        securestore.KDFParams
}

type RegistryConfig struct {
	Path       string
	Passphrase string
}

type LedgerConfig struct {
	Backend string
	Path    string
}

type ScanConfig struct {
	Workers  int
	MaxBatch int
}

// ServiceConfig carries the service's own signing key. It is resolved once
// at load time and handed to the service; nothing reads it from globals.
type ServiceConfig struct {
	SigningSeed   string
	SigningKey    ed25519.PrivateKey
	PayloadFormat payload.Format
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	LedgerMemory = "memory"
	LedgerBadger = "badger"
)

func Default() Config {
	return Config{
		RPC: RPCConfig{
			Addr:           "127.0.0.1:8787",
			RequireAuth:    true,
			RateLimitRPS:   20,
			RateLimitBurst: 40,
			MaxBodyBytes:   1 << 20,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   15 * time.Second,
		},
		Keystore: KeystoreConfig{KDF: securestore.DefaultKDF},
		Ledger:   LedgerConfig{Backend: LedgerMemory},
		Scan:     ScanConfig{Workers: 4, MaxBatch: 10000},
		Service:  ServiceConfig{PayloadFormat: payload.FormatB},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

// fileConfig mirrors the YAML layout. Pointers distinguish "unset" from a
// zero value where zero is meaningful.
type fileConfig struct {
	RPC struct {
		Addr           string        `yaml:"addr"`
		Token          string        `yaml:"token"`
		RequireAuth    *bool         `yaml:"requireAuth"`
		RateLimitRPS   float64       `yaml:"rateLimitRPS"`
		RateLimitBurst int           `yaml:"rateLimitBurst"`
		MaxBodyBytes   int64         `yaml:"maxBodyBytes"`
		ReadTimeout    time.Duration `yaml:"readTimeout"`
		WriteTimeout   time.Duration `yaml:"writeTimeout"`
	} `yaml:"rpc"`
	Keystore struct {
		Path string                `yaml:"path"`
		KDF  securestore.KDFParams `yaml:"kdf"`
	} `yaml:"keystore"`
	Registry struct {
		Path string `yaml:"path"`
	} `yaml:"registry"`
	Ledger struct {
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
	} `yaml:"ledger"`
	Scan struct {
		Workers  int `yaml:"workers"`
		MaxBatch int `yaml:"maxBatch"`
	} `yaml:"scan"`
	Service struct {
		SigningSeed   string `yaml:"signingSeed"`
		PayloadFormat string `yaml:"payloadFormat"`
	} `yaml:"service"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads path when non-empty, applies environment overrides, resolves
// the signing key and validates the result. Secrets (passphrases, RPC
// token) are accepted from the environment; the signing seed may also come
// from the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
		if err := Merge(&cfg, parsed); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.resolveSigningKey(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func Merge(dst *Config, src fileConfig) error {
	if src.RPC.Addr != "" {
		dst.RPC.Addr = src.RPC.Addr
	}
	if src.RPC.Token != "" {
		dst.RPC.Token = src.RPC.Token
	}
	if src.RPC.RequireAuth != nil {
		dst.RPC.RequireAuth = *src.RPC.RequireAuth
	}
	if src.RPC.RateLimitRPS != 0 {
		dst.RPC.RateLimitRPS = src.RPC.RateLimitRPS
	}
	if src.RPC.RateLimitBurst != 0 {
		dst.RPC.RateLimitBurst = src.RPC.RateLimitBurst
	}
	if src.RPC.MaxBodyBytes != 0 {
		dst.RPC.MaxBodyBytes = src.RPC.MaxBodyBytes
	}
	if src.RPC.ReadTimeout != 0 {
		dst.RPC.ReadTimeout = src.RPC.ReadTimeout
	}
	if src.RPC.WriteTimeout != 0 {
		dst.RPC.WriteTimeout = src.RPC.WriteTimeout
	}
	if src.Keystore.Path != "" {
		dst.Keystore.Path = src.Keystore.Path
	}
	if src.Keystore.KDF != (securestore.KDFParams{}) {
		dst.Keystore.KDF = src.Keystore.KDF
	}
	if src.Registry.Path != "" {
		dst.Registry.Path = src.Registry.Path
	}
	if src.Ledger.Backend != "" {
		dst.Ledger.Backend = src.Ledger.Backend
	}
	if src.Ledger.Path != "" {
		dst.Ledger.Path = src.Ledger.Path
	}
	if src.Scan.Workers != 0 {
		dst.Scan.Workers = src.Scan.Workers
	}
	if src.Scan.MaxBatch != 0 {
		dst.Scan.MaxBatch = src.Scan.MaxBatch
	}
	if src.Service.SigningSeed != "" {
		dst.Service.SigningSeed = src.Service.SigningSeed
	}
	if src.Service.PayloadFormat != "" {
		f, err := payload.ParseFormat(src.Service.PayloadFormat)
		if err != nil {
			return fmt.Errorf("%w: service.payloadFormat: %v", ErrInvalidConfig, err)
		}
		dst.Service.PayloadFormat = f
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.Log.Format = src.Log.Format
	}
	return nil
}

func (c *Config) resolveSigningKey() error {
	if c.Service.SigningSeed == "" {
		return nil
	}
	seed, err := keyenc.ParseString(c.Service.SigningSeed)
	if err != nil {
		return fmt.Errorf("%w: service signing seed: %v", ErrInvalidConfig, err)
	}
	c.Service.SigningKey = ed25519.NewKeyFromSeed(seed[:])
	c.Service.SigningSeed = ""
	return nil
}

// Validate checks ranges and cross-field rules.
func (c Config) Validate() error {
	if strings.TrimSpace(c.RPC.Addr) == "" {
		return fmt.Errorf("%w: rpc.addr is empty", ErrInvalidConfig)
	}
	if c.RPC.RequireAuth && c.RPC.Token == "" {
		return fmt.Errorf("%w: rpc.requireAuth needs SV_RPC_TOKEN", ErrInvalidConfig)
	}
	if c.RPC.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: rpc.maxBodyBytes must be positive", ErrInvalidConfig)
	}
	switch c.Ledger.Backend {
	case LedgerMemory:
	case LedgerBadger:
		if strings.TrimSpace(c.Ledger.Path) == "" {
			return fmt.Errorf("%w: ledger.path is required for badger", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown ledger backend %q", ErrInvalidConfig, c.Ledger.Backend)
	}
	if c.Scan.Workers <= 0 || c.Scan.MaxBatch <= 0 {
		return fmt.Errorf("%w: scan limits must be positive", ErrInvalidConfig)
	}
	if c.Registry.Path != "" && c.Registry.Passphrase == "" {
		return fmt.Errorf("%w: registry.path needs SV_REGISTRY_PASSPHRASE", ErrInvalidConfig)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("%w: log.format must be json or text", ErrInvalidConfig)
	}
	return nil
}
