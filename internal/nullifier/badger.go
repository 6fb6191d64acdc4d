package nullifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "nullifier/"

// BadgerLedger persists records in a badger database. A path of "" or
// ":memory:" opens an in-memory store.
type BadgerLedger struct {
	db *badger.DB
}

func OpenBadgerLedger(path string) (*BadgerLedger, error) {
	var opts badger.Options
	path = strings.TrimSpace(path)
	if path == "" || path == ":memory:" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open nullifier ledger: %w", err)
	}
	return &BadgerLedger{db: db}, nil
}

func ledgerKey(n Nullifier) []byte {
	return []byte(keyPrefix + n.String())
}

func (l *BadgerLedger) Consume(ctx context.Context, rec Record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	key := ledgerKey(rec.Nullifier)
	err = l.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return ErrNullifierUsed
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to read nullifier: %w", err)
		}
		return txn.Set(key, value)
	})
	// The only writer of key is Consume, so a conflict on it means another
	// consumer committed first.
	if errors.Is(err, badger.ErrConflict) {
		return ErrNullifierUsed
	}
	return err
}

func (l *BadgerLedger) Lookup(ctx context.Context, n Nullifier) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	var rec Record
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(ledgerKey(n))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to get nullifier: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Count returns the number of consumed nullifiers.
func (l *BadgerLedger) Count() (int, error) {
	n := 0
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (l *BadgerLedger) Close() error { return l.db.Close() }
