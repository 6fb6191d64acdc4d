package securestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"shadowvest/go-backend/internal/testutil/fsperm"
)

var fastKDF = KDFParams{Time: 1, MemoryKB: 8 * 1024, Threads: 1}

func TestSealOpenRoundTrip(t *testing.T) {
	data, err := Seal("pass", "keystore", fastKDF, []byte("secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !IsSealed(data) {
		t.Fatal("sealed data must carry the prefix")
	}
	plain, err := Open("pass", "keystore", data)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(plain) != "secret" {
		t.Fatalf("unexpected plaintext: %q", plain)
	}
}

func TestOpenRejectsWrongPassphraseAndPurpose(t *testing.T) {
	data, err := Seal("pass", "keystore", fastKDF, []byte("secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := Open("other", "keystore", data); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("wrong passphrase: %v", err)
	}
	if _, err := Open("pass", "registry", data); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("wrong purpose: %v", err)
	}
}

func TestOpenTamperedFails(t *testing.T) {
	data, err := Seal("pass", "p", fastKDF, []byte("secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	data[len(data)-3] ^= 0xff
	if _, err := Open("pass", "p", data); !errors.Is(err, ErrAuthFailed) && !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected auth failure, got %v", err)
	}
	if _, err := Open("pass", "p", []byte(`{"plain":true}`)); !errors.Is(err, ErrNotEncrypted) {
		t.Fatalf("expected ErrNotEncrypted, got %v", err)
	}
}

func TestSealRejectsEmptySecretAndWeakParams(t *testing.T) {
	if _, err := Seal("", "p", fastKDF, nil); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
	if _, err := Seal("x", "p", KDFParams{Time: 1, MemoryKB: 16, Threads: 1}, nil); !errors.Is(err, ErrWeakKDFParams) {
		t.Fatalf("expected ErrWeakKDFParams, got %v", err)
	}
	env, err := SealEnvelope("x", "p", fastKDF, []byte("v"))
	if err != nil {
		t.Fatalf("seal envelope: %v", err)
	}
	env.Params.MemoryKB = 1
	if _, err := OpenEnvelope("x", "p", env); !errors.Is(err, ErrWeakKDFParams) {
		t.Fatalf("downgraded envelope must be rejected, got %v", err)
	}
}

func TestFileJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "registry.enc")
	f := File{Path: path, Passphrase: "pw", Purpose: "registry", KDF: fastKDF}
	if !f.Configured() || f.Exists() {
		t.Fatal("fresh file must be configured and absent")
	}
	var missing map[string]int
	if err := f.ReadJSON(&missing); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
	in := map[string]int{"a": 1, "b": 2}
	if err := f.WriteJSON(in); err != nil {
		t.Fatalf("write: %v", err)
	}
	fsperm.AssertPrivateFilePerm(t, path)
	fsperm.AssertPrivateDirPerm(t, filepath.Dir(path))
	var out map[string]int
	if err := f.ReadJSON(&out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if out["a"] != 1 || out["b"] != 2 {
		t.Fatalf("unexpected content: %v", out)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}
