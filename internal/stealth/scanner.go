package stealth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"

	"shadowvest/go-backend/internal/crypto/curveconv"
	"shadowvest/go-backend/internal/crypto/keys"
	"shadowvest/go-backend/internal/payload"
)

// DefaultScanWorkers bounds ScanBatch when the caller passes workers <= 0.
const DefaultScanWorkers = 4

var ErrScannerKeys = errors.New("scanner requires view private key and spend public key")

// Candidate is one published (stealth address, ephemeral key) pair.
// Payload is optional; when set and the address matches, the scanner also
// opens it with the view key.
type Candidate struct {
	StealthAddress [32]byte
	EphemeralPub   [32]byte
	Payload        string
}

// Match is a candidate that belongs to the scanner's meta-address.
// PayloadErr is set when the address matched but its payload could not be
// opened; the match itself still stands.
type Match struct {
	Index      int
	Candidate  Candidate
	Payload    *payload.Decrypted
	PayloadErr error
}

// ItemError reports a malformed candidate without failing the batch.
type ItemError struct {
	Index int
	Err   error
}

func (e ItemError) Error() string { return fmt.Sprintf("candidate %d: %v", e.Index, e.Err) }
func (e ItemError) Unwrap() error { return e.Err }

// ScanResult lists matches and per-item failures in candidate order.
type ScanResult struct {
	Matches []Match
	Errors  []ItemError
	Scanned int
}

// Scanner tests candidates against one meta-address. It keeps only the view
// private key and the spend public key, never the spend private key, and
// never mutates them after construction, so a single Scanner can be shared
// by any number of goroutines.
type Scanner struct {
	viewPriv [32]byte
	spendPub [32]byte
}

// NewScanner validates the keys once.
func NewScanner(viewPriv, spendPub []byte) (*Scanner, error) {
	if len(viewPriv) != 32 || len(spendPub) != 32 {
		return nil, ErrScannerKeys
	}
	if _, err := keys.PublicFromSeed(viewPriv); err != nil {
		return nil, fmt.Errorf("view key: %w", err)
	}
	if _, err := curveconv.DecodePoint(spendPub); err != nil {
		return nil, fmt.Errorf("spend pubkey: %w", err)
	}
	s := &Scanner{}
	copy(s.viewPriv[:], viewPriv)
	copy(s.spendPub[:], spendPub)
	return s, nil
}

// SpendPub returns the spend public key the scanner matches against.
func (s *Scanner) SpendPub() [32]byte { return s.spendPub }

// Check is IsMyStealthAddress bound to the scanner's keys.
func (s *Scanner) Check(c Candidate) (bool, error) {
	shared, err := curveconv.SharedSecret(s.viewPriv[:], c.EphemeralPub[:])
	if err != nil {
		return false, fmt.Errorf("shared secret: %w", err)
	}
	expected, err := stealthPoint(s.spendPub[:], shared)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(expected[:], c.StealthAddress[:]) == 1, nil
}

type scanOutcome struct {
	match   *Match
	err     error
	visited bool
}

// ScanBatch checks every candidate on at most workers goroutines. A
// cancelled context stops dispatch; candidates already dispatched finish and
// the context error is returned with the partial result.
func (s *Scanner) ScanBatch(ctx context.Context, candidates []Candidate, workers int) (ScanResult, error) {
	if workers <= 0 {
		workers = DefaultScanWorkers
	}
	if workers > len(candidates) {
		workers = len(candidates)
	}

	// each index is written by exactly one worker
	outcomes := make([]scanOutcome, len(candidates))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = s.scanOne(i, candidates[i])
			}
		}()
	}

	var ctxErr error
dispatch:
	for i := range candidates {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	var res ScanResult
	for i, o := range outcomes {
		if !o.visited {
			continue
		}
		res.Scanned++
		if o.err != nil {
			res.Errors = append(res.Errors, ItemError{Index: i, Err: o.err})
			continue
		}
		if o.match != nil {
			res.Matches = append(res.Matches, *o.match)
		}
	}
	return res, ctxErr
}

func (s *Scanner) scanOne(i int, c Candidate) scanOutcome {
	ok, err := s.Check(c)
	if err != nil {
		return scanOutcome{visited: true, err: err}
	}
	if !ok {
		return scanOutcome{visited: true}
	}
	m := &Match{Index: i, Candidate: c}
	if c.Payload != "" {
		dec, err := payload.DecryptEphemeral(c.Payload, s.viewPriv[:], c.EphemeralPub[:])
		if err != nil {
			m.PayloadErr = err
		} else {
			m.Payload = &dec
		}
	}
	return scanOutcome{visited: true, match: m}
}
