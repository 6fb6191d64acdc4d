package privacylog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode log json: %v (%s)", err, buf.String())
	}
	return payload
}

func TestHandlerRedactsKeyMaterial(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapHandler(slog.NewJSONHandler(&buf, nil)))
	logger.Info("derive",
		"view_priv", "deadbeef",
		"stealth_scalar", "01",
		"shared_secret", "02",
		"spend_seed", "03",
		"rpc_token", "t",
		"operation", "derive_stealth_address",
	)
	payload := decodeLine(t, &buf)
	for _, k := range []string{"view_priv", "stealth_scalar", "shared_secret", "spend_seed", "rpc_token"} {
		if got, _ := payload[k].(string); got != redactedValue {
			t.Fatalf("%s not redacted: %v", k, payload[k])
		}
	}
	if payload["operation"] != "derive_stealth_address" {
		t.Fatalf("operation must pass through, got %v", payload["operation"])
	}
	if strings.Contains(buf.String(), "deadbeef") {
		t.Fatal("secret value leaked")
	}
}

func TestHandlerFingerprintsIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapHandler(slog.NewJSONHandler(&buf, nil))).With("meta_id", "sv1abc")
	logger.Info("claim", "stealth_address", "7xKX", slog.Uint64("position_id", 12))
	payload := decodeLine(t, &buf)
	for _, k := range []string{"stealth_address", "position_id", "meta_id"} {
		if _, ok := payload[k]; ok {
			t.Fatalf("%s must not appear in clear", k)
		}
		fp, _ := payload[k+"_fp"].(string)
		if !strings.HasPrefix(fp, "fp_") {
			t.Fatalf("%s_fp missing: %v", k, payload)
		}
	}
	if payload["stealth_address_fp"] != FingerprintID("7xKX") {
		t.Fatal("fingerprint must be stable within the process")
	}
}

func TestRawBytesAndSecretWrapperNeverLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapHandler(slog.NewJSONHandler(&buf, nil)))
	logger.Info("x", "blob", []byte{0xca, 0xfe}, "wrapped", Secret{0xbe, 0xef})
	payload := decodeLine(t, &buf)
	if payload["blob"] != redactedValue || payload["wrapped"] != redactedValue {
		t.Fatalf("byte values must be redacted: %v", payload)
	}
}

func TestGroupsAreSanitized(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapHandler(slog.NewJSONHandler(&buf, nil)))
	logger.Info("x", slog.Group("req", slog.String("nullifier", "ab"), slog.String("passphrase", "p"), slog.Int("n", 1)))
	payload := decodeLine(t, &buf)
	req, ok := payload["req"].(map[string]any)
	if !ok {
		t.Fatalf("group missing: %v", payload)
	}
	if req["passphrase"] != redactedValue {
		t.Fatal("passphrase in group not redacted")
	}
	if _, ok := req["nullifier_fp"]; !ok {
		t.Fatal("nullifier in group not fingerprinted")
	}
	if req["n"] != float64(1) {
		t.Fatal("plain group value must pass through")
	}
}

func TestSanitizeArgs(t *testing.T) {
	args := SanitizeArgs("nullifier", "ab", "mnemonic", "words", "kind", "claim", "dangling")
	if len(args) != 7 {
		t.Fatalf("unexpected length %d", len(args))
	}
	if args[0] != "nullifier_fp" || !strings.HasPrefix(args[1].(string), "fp_") {
		t.Fatalf("nullifier not fingerprinted: %v", args[:2])
	}
	if args[3] != redactedValue {
		t.Fatal("mnemonic not redacted")
	}
	if args[5] != "claim" || args[6] != "dangling" {
		t.Fatalf("plain args changed: %v", args[4:])
	}
}
