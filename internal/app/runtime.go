package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"strings"

	"shadowvest/go-backend/internal/config"
	"shadowvest/go-backend/internal/platform/privacylog"
)

// NewLogger builds the process logger. Every handler is wrapped by
// privacylog so key material and identifiers never reach the sink in clear.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(privacylog.WrapHandler(h))
}

func DefaultLogger() *slog.Logger {
	return NewLogger(config.LogConfig{Level: "info", Format: "json"}, os.Stdout)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func GeneratePrefixedID(prefix string) (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return prefix + "_" + hex.EncodeToString(buf), nil
}

type correlationKey struct{}

// WithCorrelationID tags ctx so that logs for one request can be joined.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, strings.TrimSpace(id))
}

func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return "n/a"
	}
	if id, _ := ctx.Value(correlationKey{}).(string); id != "" {
		return id
	}
	return "n/a"
}
