// Package registry records the published meta-address of each owner.
//
// One owner has at most one meta-address. Deactivation is permanent for
// updates: an inactive record can be read but not changed again.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"shadowvest/go-backend/internal/crypto/curveconv"
	"shadowvest/go-backend/internal/crypto/keyenc"
	"shadowvest/go-backend/internal/crypto/keys"
	"shadowvest/go-backend/internal/securestore"
)

const snapshotPurpose = "shadowvest/registry/v1"

var (
	ErrMetaExists    = errors.New("meta-address already registered for owner")
	ErrMetaNotFound  = errors.New("meta-address not found")
	ErrMetaNotActive = errors.New("meta-address is not active")
)

// MetaRecord is one owner's meta-address.
type MetaRecord struct {
	Owner        keyenc.KeyParam `json:"owner"`
	ID           string          `json:"id"`
	SpendPub     keyenc.KeyParam `json:"spend_pubkey"`
	ViewPub      keyenc.KeyParam `json:"view_pubkey"`
	Active       bool            `json:"is_active"`
	RegisteredAt time.Time       `json:"registered_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// MetaAddress returns the public pair in its published text form.
func (r MetaRecord) MetaAddress() keys.MetaAddress {
	return keys.MetaAddress{
		SpendPub: keyenc.EncodeBase58(r.SpendPub[:]),
		ViewPub:  keyenc.EncodeBase58(r.ViewPub[:]),
	}
}

type snapshot struct {
	Records []MetaRecord `json:"records"`
}

// Registry is safe for concurrent use. With a configured file every
// mutation rewrites the sealed snapshot before it is acknowledged.
type Registry struct {
	mu      sync.RWMutex
	records map[[32]byte]MetaRecord
	file    securestore.File
	now     func() time.Time
}

// NewMemory returns a registry that lives only in process memory.
func NewMemory() *Registry {
	return &Registry{records: make(map[[32]byte]MetaRecord), now: time.Now}
}

// Open loads the sealed snapshot at file.Path, starting empty when the file
// does not exist yet.
func Open(file securestore.File) (*Registry, error) {
	r := NewMemory()
	if !file.Configured() {
		return r, nil
	}
	file.Purpose = snapshotPurpose
	r.file = file
	var snap snapshot
	if err := file.ReadJSON(&snap); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, nil
		}
		return nil, fmt.Errorf("load registry: %w", err)
	}
	for _, rec := range snap.Records {
		r.records[rec.Owner] = rec
	}
	return r, nil
}

func validatePair(spendPub, viewPub [32]byte) error {
	if _, err := curveconv.DecodePoint(spendPub[:]); err != nil {
		return fmt.Errorf("spend pubkey: %w", err)
	}
	if _, err := curveconv.DecodePoint(viewPub[:]); err != nil {
		return fmt.Errorf("view pubkey: %w", err)
	}
	return nil
}

// Register creates the owner's record.
func (r *Registry) Register(ctx context.Context, owner, spendPub, viewPub [32]byte) (MetaRecord, error) {
	if err := ctx.Err(); err != nil {
		return MetaRecord{}, err
	}
	if err := validatePair(spendPub, viewPub); err != nil {
		return MetaRecord{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[owner]; ok {
		return MetaRecord{}, ErrMetaExists
	}
	now := r.now().UTC()
	rec := MetaRecord{
		Owner:        owner,
		ID:           keys.MetaAddressID(spendPub[:], viewPub[:]),
		SpendPub:     spendPub,
		ViewPub:      viewPub,
		Active:       true,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	return rec, r.commitLocked(owner, rec)
}

// Update rotates the keys of an active record.
func (r *Registry) Update(ctx context.Context, owner, spendPub, viewPub [32]byte) (MetaRecord, error) {
	if err := ctx.Err(); err != nil {
		return MetaRecord{}, err
	}
	if err := validatePair(spendPub, viewPub); err != nil {
		return MetaRecord{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.activeLocked(owner)
	if err != nil {
		return MetaRecord{}, err
	}
	rec.SpendPub = spendPub
	rec.ViewPub = viewPub
	rec.ID = keys.MetaAddressID(spendPub[:], viewPub[:])
	rec.UpdatedAt = r.now().UTC()
	return rec, r.commitLocked(owner, rec)
}

// Deactivate marks an active record inactive.
func (r *Registry) Deactivate(ctx context.Context, owner [32]byte) (MetaRecord, error) {
	if err := ctx.Err(); err != nil {
		return MetaRecord{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.activeLocked(owner)
	if err != nil {
		return MetaRecord{}, err
	}
	rec.Active = false
	rec.UpdatedAt = r.now().UTC()
	return rec, r.commitLocked(owner, rec)
}

// Get returns the record whether active or not.
func (r *Registry) Get(ctx context.Context, owner [32]byte) (MetaRecord, error) {
	if err := ctx.Err(); err != nil {
		return MetaRecord{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[owner]
	if !ok {
		return MetaRecord{}, ErrMetaNotFound
	}
	return rec, nil
}

// List returns every record ordered by registration time.
func (r *Registry) List(ctx context.Context) ([]MetaRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked(), nil
}

func (r *Registry) activeLocked(owner [32]byte) (MetaRecord, error) {
	rec, ok := r.records[owner]
	if !ok {
		return MetaRecord{}, ErrMetaNotFound
	}
	if !rec.Active {
		return MetaRecord{}, ErrMetaNotActive
	}
	return rec, nil
}

func (r *Registry) sortedLocked() []MetaRecord {
	out := make([]MetaRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].RegisteredAt.Before(out[j].RegisteredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// commitLocked persists first so a failed write leaves memory unchanged.
func (r *Registry) commitLocked(owner [32]byte, rec MetaRecord) error {
	prev, had := r.records[owner]
	r.records[owner] = rec
	if !r.file.Configured() {
		return nil
	}
	if err := r.file.WriteJSON(snapshot{Records: r.sortedLocked()}); err != nil {
		if had {
			r.records[owner] = prev
		} else {
			delete(r.records, owner)
		}
		return fmt.Errorf("persist registry: %w", err)
	}
	return nil
}
