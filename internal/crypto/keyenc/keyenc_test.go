package keyenc

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	svcrypto "shadowvest/go-backend/internal/crypto"

	"github.com/mr-tron/base58/base58"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	b := make([]byte, KeySize)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return b
}

func TestNormalizeAcceptsAllEncodings(t *testing.T) {
	key := randomKey(t)
	encodings := []KeyEncoding{
		Raw(key),
		Base58(base58.Encode(key)),
		Hex(hex.EncodeToString(key)),
		Hex(strings.ToUpper(hex.EncodeToString(key))),
		Parse(hex.EncodeToString(key)),
		Parse(base58.Encode(key)),
	}
	for i, enc := range encodings {
		got, err := Normalize(enc)
		if err != nil {
			t.Fatalf("encoding %d (%T): %v", i, enc, err)
		}
		if string(got[:]) != string(key) {
			t.Fatalf("encoding %d (%T) decoded to %x", i, enc, got)
		}
	}
}

func TestParseAcceptsPrefixedHex(t *testing.T) {
	key := randomKey(t)
	for _, text := range []string{
		"0x" + hex.EncodeToString(key),
		"0X" + strings.ToUpper(hex.EncodeToString(key)),
		"  0x" + hex.EncodeToString(key) + " ",
	} {
		enc := Parse(text)
		if _, ok := enc.(Hex); !ok {
			t.Fatalf("%q classified as %T", text, enc)
		}
		got, err := ParseString(text)
		if err != nil {
			t.Fatalf("parse %q: %v", text, err)
		}
		if string(got[:]) != string(key) {
			t.Fatalf("%q decoded to %x", text, got)
		}
	}
}

func TestNormalizeRejectsUnsupported(t *testing.T) {
	cases := []KeyEncoding{
		nil,
		Raw(make([]byte, 31)),
		Base58(""),
		Base58("0OIl"),
		Hex("zz"),
		Hex(strings.Repeat("ab", 33)),
		BufferJSON{Type: "Array", Data: make([]int, 32)},
		BufferJSON{Type: "Buffer", Data: []int{300}},
	}
	for i, enc := range cases {
		if _, err := Normalize(enc); !errors.Is(err, svcrypto.ErrUnsupportedKeyFormat) {
			t.Fatalf("case %d (%T): expected ErrUnsupportedKeyFormat, got %v", i, enc, err)
		}
	}
}

func TestKeyParamDecodesStringAndBufferShim(t *testing.T) {
	key := randomKey(t)
	data := make([]int, len(key))
	for i, b := range key {
		data[i] = int(b)
	}
	shim, err := json.Marshal(BufferJSON{Type: "Buffer", Data: data})
	if err != nil {
		t.Fatalf("marshal shim: %v", err)
	}
	inputs := [][]byte{
		[]byte(`"` + base58.Encode(key) + `"`),
		[]byte(`"` + hex.EncodeToString(key) + `"`),
		shim,
	}
	for _, in := range inputs {
		var k KeyParam
		if err := json.Unmarshal(in, &k); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if string(k.Bytes()) != string(key) {
			t.Fatalf("decoded %x from %s", k, in)
		}
	}

	var k KeyParam
	if err := json.Unmarshal([]byte(`12`), &k); !errors.Is(err, svcrypto.ErrUnsupportedKeyFormat) {
		t.Fatalf("expected ErrUnsupportedKeyFormat for number, got %v", err)
	}
}

func TestKeyParamMarshalsBase58(t *testing.T) {
	key := randomKey(t)
	var k KeyParam
	copy(k[:], key)
	out, err := json.Marshal(k)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"`+base58.Encode(key)+`"` {
		t.Fatalf("unexpected json: %s", out)
	}
}
