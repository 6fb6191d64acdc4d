package nullifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"shadowvest/go-backend/internal/crypto/keyenc"
)

var (
	ErrNullifierUsed = errors.New("nullifier already used")
	ErrNotFound      = errors.New("nullifier not found")
	ErrMalformed     = errors.New("malformed nullifier")
)

// Record is the init-once entry written when a claim is authorized.
type Record struct {
	Nullifier      Nullifier       `json:"nullifier"`
	PositionID     uint64          `json:"position_id"`
	StealthAddress keyenc.KeyParam `json:"stealth_address"`
	Destination    keyenc.KeyParam `json:"destination"`
	ConsumedAt     time.Time       `json:"consumed_at"`
}

// Ledger stores consumed nullifiers. Consume must be atomic: of two
// concurrent calls with the same nullifier exactly one succeeds and the
// other returns ErrNullifierUsed.
type Ledger interface {
	Consume(ctx context.Context, rec Record) error
	Lookup(ctx context.Context, n Nullifier) (Record, error)
	Count() (int, error)
	Close() error
}

// MemoryLedger keeps records for the lifetime of the process.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[Nullifier]Record
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[Nullifier]Record)}
}

func (l *MemoryLedger) Consume(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[rec.Nullifier]; ok {
		return ErrNullifierUsed
	}
	l.records[rec.Nullifier] = rec
	return nil
}

func (l *MemoryLedger) Lookup(ctx context.Context, n Nullifier) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[n]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (l *MemoryLedger) Count() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records), nil
}

func (l *MemoryLedger) Close() error { return nil }
