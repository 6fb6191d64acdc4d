package app

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"shadowvest/go-backend/internal/config"
	"shadowvest/go-backend/internal/crypto/keyenc"
	"shadowvest/go-backend/internal/crypto/keys"
	"shadowvest/go-backend/internal/keystore"
	"shadowvest/go-backend/internal/metrics"
	"shadowvest/go-backend/internal/nullifier"
	"shadowvest/go-backend/internal/registry"
	"shadowvest/go-backend/internal/securestore"
)

// Service is safe for concurrent use. Keys held by the keystore are kept in
// memory only between Unlock and Lock.
type Service struct {
	cfg      config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	ledger   nullifier.Ledger
	registry *registry.Registry
	keystore *keystore.Store

	mu       sync.RWMutex
	unlocked *keys.MetaKeyPair

	now func() time.Time
}

// NewService opens the ledger, registry and keystore named by cfg. A nil
// logger falls back to DefaultLogger; a nil metrics disables recording.
func NewService(cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (*Service, error) {
	if logger == nil {
		logger = DefaultLogger()
	}
	s := &Service{cfg: cfg, logger: logger, metrics: m, now: time.Now}

	ledger, err := openLedger(cfg.Ledger)
	if err != nil {
		return nil, err
	}
	s.ledger = ledger

	reg, err := registry.Open(securestore.File{
		Path:       cfg.Registry.Path,
		Passphrase: cfg.Registry.Passphrase,
		KDF:        cfg.Keystore.KDF,
	})
	if err != nil {
		_ = ledger.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	s.registry = reg

	if path := strings.TrimSpace(cfg.Keystore.Path); path != "" {
		s.keystore = keystore.New(path, cfg.Keystore.KDF)
		if cfg.Keystore.Passphrase != "" && s.keystore.Exists() {
			kp, err := s.keystore.Load(cfg.Keystore.Passphrase)
			if err != nil {
				_ = ledger.Close()
				return nil, fmt.Errorf("unlock keystore: %w", err)
			}
			s.unlocked = &kp
		}
	}
	s.logInfo(context.Background(), "service.start", "stealth service ready",
		"ledger_backend", cfg.Ledger.Backend,
		"keystore_configured", s.keystore != nil,
		"unlocked", s.unlocked != nil,
		"payload_format", cfg.Service.PayloadFormat.String(),
	)
	return s, nil
}

func openLedger(cfg config.LedgerConfig) (nullifier.Ledger, error) {
	switch cfg.Backend {
	case config.LedgerBadger:
		l, err := nullifier.OpenBadgerLedger(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		return l, nil
	case config.LedgerMemory, "":
		return nullifier.NewMemoryLedger(), nil
	default:
		return nil, fmt.Errorf("%w: unknown ledger backend %q", ErrInvalidArgument, cfg.Backend)
	}
}

// Close releases the ledger and forgets unlocked keys.
func (s *Service) Close() error {
	s.Lock()
	return s.ledger.Close()
}

// Metrics returns the collector the service records into, possibly nil.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

type resolvedKeys struct {
	spendPub     [32]byte
	spendPriv    [32]byte
	viewPriv     [32]byte
	hasSpendPriv bool
}

// resolveKeys takes the caller's keys when a view key is supplied and the
// unlocked keystore otherwise.
func (s *Service) resolveKeys(ref KeyRef, needSpendPriv bool) (resolvedKeys, error) {
	var out resolvedKeys
	if ref.ViewPriv == nil {
		if ref.SpendPriv != nil || ref.SpendPub != nil {
			return out, fmt.Errorf("%w: view_priv is required with explicit keys", ErrInvalidArgument)
		}
		s.mu.RLock()
		kp := s.unlocked
		s.mu.RUnlock()
		if kp == nil {
			return out, ErrKeysLocked
		}
		out.spendPub, out.spendPriv, out.viewPriv = kp.SpendPub, kp.SpendPriv, kp.ViewPriv
		out.hasSpendPriv = true
		return out, nil
	}

	out.viewPriv = *ref.ViewPriv
	switch {
	case ref.SpendPriv != nil:
		pub, err := keys.PublicFromSeed(ref.SpendPriv[:])
		if err != nil {
			return out, err
		}
		if ref.SpendPub != nil && *ref.SpendPub != keyenc.KeyParam(pub) {
			return out, fmt.Errorf("%w: spend_pubkey does not match spend_priv", ErrInvalidArgument)
		}
		out.spendPub, out.spendPriv, out.hasSpendPriv = pub, *ref.SpendPriv, true
	case ref.SpendPub != nil:
		out.spendPub = *ref.SpendPub
	default:
		return out, fmt.Errorf("%w: spend_pubkey or spend_priv is required", ErrInvalidArgument)
	}
	if needSpendPriv && !out.hasSpendPriv {
		return out, fmt.Errorf("%w: spend_priv is required", ErrInvalidArgument)
	}
	return out, nil
}

func (s *Service) servicePub() string {
	key := s.cfg.Service.SigningKey
	if len(key) != ed25519.PrivateKeySize {
		return ""
	}
	return keyenc.EncodeBase58(key.Public().(ed25519.PublicKey))
}

// Status summarizes state without exposing any key material.
func (s *Service) Status(ctx context.Context) (out ServiceStatus, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "service.status", started, err) }()

	out = ServiceStatus{
		KeystoreConfigured: s.keystore != nil,
		LedgerBackend:      s.cfg.Ledger.Backend,
		PayloadFormat:      s.cfg.Service.PayloadFormat.String(),
		ServicePub:         s.servicePub(),
	}
	if s.keystore != nil {
		out.KeystoreExists = s.keystore.Exists()
	}
	s.mu.RLock()
	if s.unlocked != nil {
		out.Unlocked = true
		out.MetaID = s.unlocked.ID()
	}
	s.mu.RUnlock()

	if out.ConsumedNullifiers, err = s.ledger.Count(); err != nil {
		return ServiceStatus{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	metas, err := s.registry.List(ctx)
	if err != nil {
		return ServiceStatus{}, err
	}
	out.RegisteredMetas = len(metas)
	return out, nil
}

func (s *Service) requireKeystore() error {
	if s.keystore == nil {
		return ErrKeystoreDisabled
	}
	return nil
}

func keystoreInfo(kp keys.MetaKeyPair, mnemonic string) KeystoreInfo {
	return KeystoreInfo{MetaID: kp.ID(), MetaAddress: kp.MetaAddress(), Mnemonic: mnemonic}
}

// CreateKeystore generates a mnemonic-backed meta keypair, seals it and
// leaves it unlocked. The mnemonic is returned exactly once.
func (s *Service) CreateKeystore(ctx context.Context, passphrase string) (out KeystoreInfo, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "keystore.create", started, err) }()
	if err = s.requireKeystore(); err != nil {
		return KeystoreInfo{}, err
	}
	mnemonic, kp, err := s.keystore.Create(passphrase)
	if err != nil {
		return KeystoreInfo{}, err
	}
	s.setUnlocked(&kp)
	s.logInfo(ctx, "keystore.create", "keystore created", "meta_id", kp.ID())
	return keystoreInfo(kp, mnemonic), nil
}

// ImportKeystore restores a keypair from a mnemonic into a new keystore.
func (s *Service) ImportKeystore(ctx context.Context, mnemonic, passphrase string) (out KeystoreInfo, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "keystore.import", started, err) }()
	if err = s.requireKeystore(); err != nil {
		return KeystoreInfo{}, err
	}
	kp, err := s.keystore.Import(mnemonic, passphrase)
	if err != nil {
		return KeystoreInfo{}, err
	}
	s.setUnlocked(&kp)
	s.logInfo(ctx, "keystore.import", "keystore imported", "meta_id", kp.ID())
	return keystoreInfo(kp, ""), nil
}

// Unlock loads the keystore into memory.
func (s *Service) Unlock(ctx context.Context, passphrase string) (out KeystoreInfo, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "keystore.unlock", started, err) }()
	if err = s.requireKeystore(); err != nil {
		return KeystoreInfo{}, err
	}
	kp, err := s.keystore.Load(passphrase)
	if err != nil {
		if errors.Is(err, keystore.ErrInvalidPassphrase) || errors.Is(err, keystore.ErrLocked) {
			s.logWarn(ctx, "keystore.unlock", "unlock refused", "error", err.Error())
		}
		return KeystoreInfo{}, err
	}
	s.setUnlocked(&kp)
	return keystoreInfo(kp, ""), nil
}

// Lock forgets the in-memory keypair.
func (s *Service) Lock() {
	s.setUnlocked(nil)
}

func (s *Service) setUnlocked(kp *keys.MetaKeyPair) {
	s.mu.Lock()
	s.unlocked = kp
	s.mu.Unlock()
}
