package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"shadowvest/go-backend/internal/payload"
)

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envBool(key string, fallback bool) bool {
	switch strings.ToLower(envString(key)) {
	case "":
		return fallback
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envInt(key string, fallback int) int {
	raw := envString(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(key string, fallback float64) float64 {
	raw := envString(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := envString(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}

// ApplyEnvOverrides layers SV_* variables over cfg. Malformed numeric values
// keep the previous setting; a malformed payload format is an error.
func ApplyEnvOverrides(cfg *Config) error {
	if v := envString("SV_RPC_ADDR"); v != "" {
		cfg.RPC.Addr = v
	}
	if v := envString("SV_RPC_TOKEN"); v != "" {
		cfg.RPC.Token = v
	}
	cfg.RPC.RequireAuth = envBool("SV_RPC_REQUIRE_AUTH", cfg.RPC.RequireAuth)
	cfg.RPC.RateLimitRPS = envFloat("SV_RPC_RATE_LIMIT_RPS", cfg.RPC.RateLimitRPS)
	cfg.RPC.RateLimitBurst = envInt("SV_RPC_RATE_LIMIT_BURST", cfg.RPC.RateLimitBurst)
	cfg.RPC.ReadTimeout = envDuration("SV_RPC_READ_TIMEOUT", cfg.RPC.ReadTimeout)
	cfg.RPC.WriteTimeout = envDuration("SV_RPC_WRITE_TIMEOUT", cfg.RPC.WriteTimeout)

	if v := envString("SV_KEYSTORE_PATH"); v != "" {
		cfg.Keystore.Path = v
	}
	if v := os.Getenv("SV_KEYSTORE_PASSPHRASE"); v != "" {
		cfg.Keystore.Passphrase = v
	}
	if v := envString("SV_REGISTRY_PATH"); v != "" {
		cfg.Registry.Path = v
	}
	if v := os.Getenv("SV_REGISTRY_PASSPHRASE"); v != "" {
		cfg.Registry.Passphrase = v
	}
	if v := envString("SV_LEDGER_BACKEND"); v != "" {
		cfg.Ledger.Backend = strings.ToLower(v)
	}
	if v := envString("SV_LEDGER_PATH"); v != "" {
		cfg.Ledger.Path = v
	}
	cfg.Scan.Workers = envInt("SV_SCAN_WORKERS", cfg.Scan.Workers)
	cfg.Scan.MaxBatch = envInt("SV_SCAN_MAX_BATCH", cfg.Scan.MaxBatch)

	if v := envString("SV_SIGNING_SEED"); v != "" {
		cfg.Service.SigningSeed = v
	}
	if v := envString("SV_PAYLOAD_FORMAT"); v != "" {
		f, err := payload.ParseFormat(v)
		if err != nil {
			return fmt.Errorf("%w: SV_PAYLOAD_FORMAT: %v", ErrInvalidConfig, err)
		}
		cfg.Service.PayloadFormat = f
	}
	if v := envString("SV_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := envString("SV_LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	return nil
}
