// Package keystore keeps a meta keypair on disk, sealed under a passphrase.
package keystore

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"shadowvest/go-backend/internal/crypto/keys"
	"shadowvest/go-backend/internal/securestore"
)

const (
	fileVersion = 1
	purpose     = "shadowvest/keystore/v1"
)

var (
	ErrPassphraseRequired = errors.New("passphrase is required")
	ErrInvalidPassphrase  = errors.New("invalid passphrase")
	ErrLocked             = errors.New("passphrase attempts are temporarily locked")
	ErrNotFound           = errors.New("keystore not found")
	ErrExists             = errors.New("keystore already exists")
	ErrNoMnemonic         = errors.New("keystore was created without a mnemonic")
	ErrCorrupted          = errors.New("keystore content is corrupted")
)

type stored struct {
	Version   int       `json:"version"`
	SpendSeed []byte    `json:"spend_seed"`
	ViewSeed  []byte    `json:"view_seed"`
	Mnemonic  string    `json:"mnemonic,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store guards one keystore file. Wrong passphrases trigger an exponential
// lockout shared by every operation on the store; decryption attempts run
// one at a time.
type Store struct {
	path string
	kdf  securestore.KDFParams

	mu             sync.Mutex
	failedAttempts int
	lockedUntil    time.Time
	now            func() time.Time
}

func New(path string, kdf securestore.KDFParams) *Store {
	return &Store{path: strings.TrimSpace(path), kdf: kdf, now: time.Now}
}

func (s *Store) file(passphrase string) securestore.File {
	return securestore.File{Path: s.path, Passphrase: passphrase, Purpose: purpose, KDF: s.kdf}
}

// Path returns the keystore file location.
func (s *Store) Path() string { return s.path }

// Exists reports whether a keystore file is present.
func (s *Store) Exists() bool { return s.file("").Exists() }

// Create generates a fresh mnemonic, derives the meta keypair from it and
// persists both. The mnemonic is returned once for offline backup.
func (s *Store) Create(passphrase string) (string, keys.MetaKeyPair, error) {
	mnemonic, err := keys.NewMnemonic()
	if err != nil {
		return "", keys.MetaKeyPair{}, err
	}
	kp, err := s.Import(mnemonic, passphrase)
	if err != nil {
		return "", keys.MetaKeyPair{}, err
	}
	return mnemonic, kp, nil
}

// Import restores a keypair from a mnemonic and persists it.
func (s *Store) Import(mnemonic, passphrase string) (keys.MetaKeyPair, error) {
	kp, err := keys.MetaKeyPairFromMnemonic(mnemonic, "")
	if err != nil {
		return keys.MetaKeyPair{}, err
	}
	return kp, s.write(passphrase, kp, strings.Join(strings.Fields(mnemonic), " "))
}

// Save persists a keypair that has no mnemonic.
func (s *Store) Save(kp keys.MetaKeyPair, passphrase string) error {
	return s.write(passphrase, kp, "")
}

func (s *Store) write(passphrase string, kp keys.MetaKeyPair, mnemonic string) error {
	if strings.TrimSpace(passphrase) == "" {
		return ErrPassphraseRequired
	}
	if s.Exists() {
		return ErrExists
	}
	rec := stored{
		Version:   fileVersion,
		SpendSeed: kp.SpendPriv[:],
		ViewSeed:  kp.ViewPriv[:],
		Mnemonic:  mnemonic,
		CreatedAt: s.now().UTC(),
	}
	return s.file(passphrase).WriteJSON(rec)
}

// Load decrypts the keystore and rebuilds the keypair.
func (s *Store) Load(passphrase string) (keys.MetaKeyPair, error) {
	rec, err := s.read(passphrase)
	if err != nil {
		return keys.MetaKeyPair{}, err
	}
	kp, err := keys.MetaKeyPairFromSeeds(rec.SpendSeed, rec.ViewSeed)
	if err != nil {
		return keys.MetaKeyPair{}, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return kp, nil
}

// ExportMnemonic returns the stored recovery phrase.
func (s *Store) ExportMnemonic(passphrase string) (string, error) {
	rec, err := s.read(passphrase)
	if err != nil {
		return "", err
	}
	if rec.Mnemonic == "" {
		return "", ErrNoMnemonic
	}
	return rec.Mnemonic, nil
}

// ChangePassphrase re-seals the keystore under a new passphrase.
func (s *Store) ChangePassphrase(oldPassphrase, newPassphrase string) error {
	if strings.TrimSpace(newPassphrase) == "" {
		return ErrPassphraseRequired
	}
	rec, err := s.read(oldPassphrase)
	if err != nil {
		return err
	}
	return s.file(newPassphrase).WriteJSON(rec)
}

func (s *Store) read(passphrase string) (stored, error) {
	if strings.TrimSpace(passphrase) == "" {
		return stored{}, ErrPassphraseRequired
	}
	if !s.Exists() {
		return stored{}, ErrNotFound
	}
	// Attempts are serialized so a failure is recorded before the next
	// guess reaches the KDF.
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lockedUntil.IsZero() && s.now().Before(s.lockedUntil) {
		return stored{}, ErrLocked
	}

	var rec stored
	err := s.file(passphrase).ReadJSON(&rec)
	switch {
	case errors.Is(err, securestore.ErrAuthFailed):
		s.failedAttempts++
		s.lockedUntil = s.now().Add(backoff(s.failedAttempts))
		return stored{}, ErrInvalidPassphrase
	case err != nil:
		return stored{}, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	s.failedAttempts = 0
	s.lockedUntil = time.Time{}
	if rec.Version != fileVersion {
		return stored{}, fmt.Errorf("%w: version %d", ErrCorrupted, rec.Version)
	}
	return rec, nil
}

// backoff doubles from one second up to 32 seconds.
func backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	shift := attempt - 1
	if shift > 5 {
		shift = 5
	}
	return time.Second << shift
}
