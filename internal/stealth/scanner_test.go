package stealth

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"

	svcrypto "shadowvest/go-backend/internal/crypto"
	"shadowvest/go-backend/internal/payload"
)

func TestScanBatchFindsOwnedCandidates(t *testing.T) {
	meta := newMeta(t)
	other := newMeta(t)

	var candidates []Candidate
	want := map[int]bool{}
	for i := 0; i < 40; i++ {
		eph := newEph(t)
		recipient := other
		if i%3 == 0 {
			recipient = meta
			want[i] = true
		}
		addr, err := DeriveStealthPub(recipient.SpendPub[:], recipient.ViewPub[:], eph.Priv[:])
		if err != nil {
			t.Fatalf("derive: %v", err)
		}
		text, err := payload.EncryptEphemeral(payload.FormatB, eph.Priv[:], recipient.ViewPub[:], []byte("grant"))
		if err != nil {
			t.Fatalf("payload: %v", err)
		}
		candidates = append(candidates, Candidate{StealthAddress: addr, EphemeralPub: eph.Pub, Payload: text})
	}
	// malformed: identity ephemeral key
	var bad Candidate
	bad.EphemeralPub[0] = 1
	candidates = append(candidates, bad)

	sc, err := NewScanner(meta.ViewPriv[:], meta.SpendPub[:])
	if err != nil {
		t.Fatalf("scanner: %v", err)
	}
	res, err := sc.ScanBatch(context.Background(), candidates, 3)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.Scanned != len(candidates) {
		t.Fatalf("scanned %d of %d", res.Scanned, len(candidates))
	}
	if len(res.Matches) != len(want) {
		t.Fatalf("got %d matches, want %d", len(res.Matches), len(want))
	}
	prev := -1
	for _, m := range res.Matches {
		if !want[m.Index] {
			t.Fatalf("unexpected match at %d", m.Index)
		}
		if m.Index <= prev {
			t.Fatal("matches must be in candidate order")
		}
		prev = m.Index
		if m.PayloadErr != nil || m.Payload == nil || !m.Payload.Verified {
			t.Fatalf("payload at %d not recovered: %v", m.Index, m.PayloadErr)
		}
		if !bytes.Equal(m.Payload.Note, []byte("grant")) {
			t.Fatalf("note at %d: %q", m.Index, m.Payload.Note)
		}
	}
	if len(res.Errors) != 1 || res.Errors[0].Index != len(candidates)-1 {
		t.Fatalf("expected one item error for the malformed candidate, got %+v", res.Errors)
	}
	if !errors.Is(res.Errors[0], svcrypto.ErrInvalidEncoding) {
		t.Fatalf("item error class: %v", res.Errors[0])
	}
}

func TestScanBatchCancelledContext(t *testing.T) {
	meta := newMeta(t)
	sc, err := NewScanner(meta.ViewPriv[:], meta.SpendPub[:])
	if err != nil {
		t.Fatalf("scanner: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := sc.ScanBatch(ctx, make([]Candidate, 10), 2)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Scanned != 0 {
		t.Fatalf("nothing should be dispatched after cancel, scanned %d", res.Scanned)
	}
}

func TestScanBatchEmpty(t *testing.T) {
	meta := newMeta(t)
	sc, err := NewScanner(meta.ViewPriv[:], meta.SpendPub[:])
	if err != nil {
		t.Fatalf("scanner: %v", err)
	}
	res, err := sc.ScanBatch(context.Background(), nil, 0)
	if err != nil || res.Scanned != 0 || len(res.Matches) != 0 {
		t.Fatalf("empty scan: %+v %v", res, err)
	}
}

func TestNewScannerRejectsBadKeys(t *testing.T) {
	meta := newMeta(t)
	if _, err := NewScanner(meta.ViewPriv[:5], meta.SpendPub[:]); !errors.Is(err, ErrScannerKeys) {
		t.Fatalf("expected ErrScannerKeys, got %v", err)
	}
	nonCanonical := bytes.Repeat([]byte{0xff}, 32)
	nonCanonical[31] = 0x7f
	if _, err := NewScanner(meta.ViewPriv[:], nonCanonical); !errors.Is(err, svcrypto.ErrInvalidEncoding) {
		t.Fatalf("expected ErrInvalidEncoding, got %v", err)
	}
}

func TestScanEventsPassesAmountThrough(t *testing.T) {
	meta := newMeta(t)
	eph := newEph(t)
	addr, err := DeriveStealthPub(meta.SpendPub[:], meta.ViewPub[:], eph.Priv[:])
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	text, err := payload.EncryptEphemeral(payload.FormatA, eph.Priv[:], meta.ViewPub[:], nil)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	opaque := []byte{9, 8, 7, 6}
	events := []PaymentEvent{{
		Organization:     "org",
		StealthAddress:   addr,
		EphemeralPub:     eph.Pub,
		EncryptedPayload: text,
		EncryptedAmount:  opaque,
		PositionID:       42,
		Timestamp:        1700000000,
	}}

	raw, err := json.Marshal(events[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded PaymentEvent
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.StealthAddress != events[0].StealthAddress || decoded.PositionID != 42 {
		t.Fatalf("event JSON mismatch: %+v", decoded)
	}

	sc, err := NewScanner(meta.ViewPriv[:], meta.SpendPub[:])
	if err != nil {
		t.Fatalf("scanner: %v", err)
	}
	scan, err := sc.ScanEvents(context.Background(), []PaymentEvent{decoded}, 1)
	if err != nil || len(scan.Errors) != 0 || scan.Scanned != 1 {
		t.Fatalf("scan events: %v %+v", err, scan)
	}
	found := scan.Matches
	if len(found) != 1 {
		t.Fatalf("expected one match, got %d", len(found))
	}
	if !bytes.Equal(found[0].Event.EncryptedAmount, opaque) {
		t.Fatal("encrypted amount must pass through untouched")
	}
	if found[0].Match.Payload == nil || found[0].Match.Payload.EphPriv != eph.Priv {
		t.Fatal("ephemeral key not recovered from format A payload")
	}
}

func TestClaimMessageLayout(t *testing.T) {
	var null, dest [32]byte
	null[0], dest[31] = 0xaa, 0xbb
	msg := ClaimMessage(0x0102030405060708, null, dest)
	if len(msg) != ClaimMessageSize {
		t.Fatalf("length %d", len(msg))
	}
	if binary.LittleEndian.Uint64(msg[:8]) != 0x0102030405060708 {
		t.Fatal("position id must be little-endian")
	}
	if msg[8] != 0xaa || msg[len(msg)-1] != 0xbb {
		t.Fatal("nullifier and destination misplaced")
	}
}
