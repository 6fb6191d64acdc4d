// Package privacylog keeps key material and linkable identifiers out of logs.
//
// Attributes whose key names secret material are replaced with a fixed
// marker. Identifiers that would link a stealth address to its owner are
// replaced with a per-process fingerprint under a "_fp" key. Raw byte
// slices are never logged, whatever their key.
package privacylog

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const redactedValue = "[REDACTED]"

var (
	bootNonce = newBootNonce()

	fingerprintedKeys = map[string]struct{}{
		"stealth_address": {},
		"nullifier":       {},
		"position_id":     {},
		"meta_id":         {},
		"owner":           {},
		"destination":     {},
		"ephemeral_pub":   {},
	}
	secretKeyParts = []string{
		"priv", "scalar", "seed", "shared", "mnemonic", "plaintext", "tweak",
		"token", "secret", "password", "passphrase", "authorization", "auth",
	}
)

// Secret wraps a value that must never reach a log line even under a
// harmless-looking key.
type Secret []byte

func (Secret) LogValue() slog.Value { return slog.StringValue(redactedValue) }

type SanitizingHandler struct {
	next slog.Handler
}

// WrapHandler returns nil for a nil handler.
func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &SanitizingHandler{next: next}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, rec slog.Record) error {
	clean := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(SanitizeAttr(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = SanitizeAttr(a)
	}
	return &SanitizingHandler{next: h.next.WithAttrs(clean)}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name)}
}

// SanitizeAttr applies the redaction rules to one attribute, recursing into
// groups.
func SanitizeAttr(a slog.Attr) slog.Attr {
	key := strings.TrimSpace(a.Key)
	norm := strings.ToLower(key)
	v := a.Value.Resolve()
	switch {
	case isSecretKey(norm):
		return slog.String(key, redactedValue)
	case isFingerprinted(norm):
		return slog.String(fingerprintKey(key), FingerprintID(render(v)))
	case v.Kind() == slog.KindGroup:
		inner := v.Group()
		clean := make([]any, len(inner))
		for i, g := range inner {
			clean[i] = SanitizeAttr(g)
		}
		return slog.Group(key, clean...)
	case v.Kind() == slog.KindAny:
		if _, raw := v.Any().([]byte); raw {
			return slog.String(key, redactedValue)
		}
	}
	return slog.Attr{Key: key, Value: v}
}

// SanitizeArgs applies the same rules to alternating key/value arguments.
func SanitizeArgs(args ...any) []any {
	if len(args) == 0 {
		return nil
	}
	out := make([]any, 0, len(args))
	for i := 0; i < len(args); i++ {
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			out = append(out, args[i])
			continue
		}
		a := SanitizeAttr(slog.Any(key, args[i+1]))
		out = append(out, a.Key, a.Value.Any())
		i++
	}
	return out
}

// FingerprintID hashes an identifier with a nonce drawn at process start, so
// fingerprints correlate within one run and never across runs.
func FingerprintID(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(bootNonce + "|" + trimmed))
	return "fp_" + hex.EncodeToString(sum[:8])
}

func isFingerprinted(key string) bool {
	_, ok := fingerprintedKeys[key]
	return ok
}

func fingerprintKey(key string) string {
	if strings.HasSuffix(strings.ToLower(key), "_fp") {
		return key
	}
	return key + "_fp"
}

func isSecretKey(key string) bool {
	for _, part := range secretKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

func render(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindAny:
		if b, ok := v.Any().([]byte); ok {
			return hex.EncodeToString(b)
		}
		if s, ok := v.Any().(fmt.Stringer); ok {
			return s.String()
		}
	}
	return fmt.Sprint(v.Any())
}

func newBootNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("boot_%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
