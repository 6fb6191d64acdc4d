package nullifier

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func randomAddress(t *testing.T) [32]byte {
	t.Helper()
	var a [32]byte
	if _, err := rand.Read(a[:]); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return a
}

func TestDeriveMatchesDefinition(t *testing.T) {
	addr := randomAddress(t)
	var buf [40]byte
	copy(buf[:], addr[:])
	binary.LittleEndian.PutUint64(buf[32:], 77)
	if Derive(addr, 77) != Nullifier(sha256.Sum256(buf[:])) {
		t.Fatal("nullifier must be SHA-256(addr || le64(position))")
	}
	if Derive(addr, 77) != Derive(addr, 77) {
		t.Fatal("derivation must be deterministic")
	}
}

func TestDeriveSensitivity(t *testing.T) {
	seen := make(map[Nullifier]struct{})
	for i := 0; i < 200; i++ {
		addr := randomAddress(t)
		for pos := uint64(0); pos < 20; pos++ {
			n := Derive(addr, pos)
			if _, dup := seen[n]; dup {
				t.Fatalf("collision at address %d position %d", i, pos)
			}
			seen[n] = struct{}{}
		}
	}
	addr := randomAddress(t)
	flipped := addr
	flipped[31] ^= 0x80
	if Derive(addr, 1) == Derive(flipped, 1) {
		t.Fatal("changing the address must change the nullifier")
	}
	if Derive(addr, 1<<40) == Derive(addr, 1) {
		t.Fatal("changing the position must change the nullifier")
	}
}

func TestParseRoundTrip(t *testing.T) {
	n := Derive(randomAddress(t), 5)
	got, err := Parse(n.String())
	if err != nil || got != n {
		t.Fatalf("parse: %v", err)
	}
	if _, err := Parse("abc"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := Parse("zz"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func exerciseLedger(t *testing.T, l Ledger) {
	t.Helper()
	ctx := context.Background()
	addr := randomAddress(t)
	rec := Record{
		Nullifier:      Derive(addr, 3),
		PositionID:     3,
		StealthAddress: addr,
		ConsumedAt:     time.Unix(1700000000, 0).UTC(),
	}
	if _, err := l.Lookup(ctx, rec.Nullifier); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := l.Consume(ctx, rec); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if err := l.Consume(ctx, rec); !errors.Is(err, ErrNullifierUsed) {
		t.Fatalf("expected ErrNullifierUsed, got %v", err)
	}
	got, err := l.Lookup(ctx, rec.Nullifier)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.PositionID != 3 || got.StealthAddress != rec.StealthAddress || !got.ConsumedAt.Equal(rec.ConsumedAt) {
		t.Fatalf("record mismatch: %+v", got)
	}

	// concurrent consumers of one fresh nullifier: exactly one wins
	fresh := Record{Nullifier: Derive(addr, 4), PositionID: 4, StealthAddress: addr}
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Consume(ctx, fresh)
			if err == nil {
				wins.Add(1)
				return
			}
			if !errors.Is(err, ErrNullifierUsed) {
				t.Errorf("unexpected consume error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one successful consume, got %d", wins.Load())
	}
	if n, err := l.Count(); err != nil || n != 2 {
		t.Fatalf("count = %d, %v", n, err)
	}
}

func TestMemoryLedger(t *testing.T) {
	exerciseLedger(t, NewMemoryLedger())
}

func TestBadgerLedgerInMemory(t *testing.T) {
	l, err := OpenBadgerLedger(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer l.Close()
	exerciseLedger(t, l)
}

func TestBadgerLedgerPersists(t *testing.T) {
	dir := t.TempDir()
	l, err := OpenBadgerLedger(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	addr := randomAddress(t)
	rec := Record{Nullifier: Derive(addr, 9), PositionID: 9, StealthAddress: addr}
	if err := l.Consume(context.Background(), rec); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenBadgerLedger(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if err := reopened.Consume(context.Background(), rec); !errors.Is(err, ErrNullifierUsed) {
		t.Fatalf("expected ErrNullifierUsed after reopen, got %v", err)
	}
}

func TestConsumeHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewMemoryLedger().Consume(ctx, Record{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
