// Package securestore seals small state files under a passphrase:
// argon2id for the key, XChaCha20-Poly1305 for the data.
package securestore

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeVersion = 1
	saltSize        = 16
	filePrefix      = "SVENC1\n"
	kdfName         = "argon2id"
)

var (
	ErrAuthFailed    = errors.New("securestore authentication failed")
	ErrInvalid       = errors.New("securestore envelope is invalid")
	ErrNotEncrypted  = errors.New("securestore data is not an encrypted envelope")
	ErrEmptySecret   = errors.New("securestore passphrase is empty")
	ErrWeakKDFParams = errors.New("securestore kdf parameters below minimum")
)

// KDFParams are the argon2id cost settings recorded in each envelope.
type KDFParams struct {
	Time     uint32 `json:"time" yaml:"time"`
	MemoryKB uint32 `json:"memory_kb" yaml:"memory_kb"`
	Threads  uint8  `json:"threads" yaml:"threads"`
}

// DefaultKDF is used when a caller passes the zero KDFParams.
var DefaultKDF = KDFParams{Time: 2, MemoryKB: 64 * 1024, Threads: 1}

// minKDF rejects envelopes crafted to make decryption cheap to brute force.
var minKDF = KDFParams{Time: 1, MemoryKB: 8 * 1024, Threads: 1}

func (p KDFParams) orDefault() KDFParams {
	if p == (KDFParams{}) {
		return DefaultKDF
	}
	return p
}

func (p KDFParams) validate() error {
	if p.Time < minKDF.Time || p.MemoryKB < minKDF.MemoryKB || p.Threads < minKDF.Threads {
		return ErrWeakKDFParams
	}
	return nil
}

// Envelope is the JSON body following filePrefix. Purpose is bound as
// associated data, so a keystore file cannot be replayed as a registry
// snapshot.
type Envelope struct {
	Version    uint32    `json:"version"`
	KDF        string    `json:"kdf"`
	Params     KDFParams `json:"params"`
	Purpose    string    `json:"purpose"`
	Salt       []byte    `json:"salt"`
	Nonce      []byte    `json:"nonce"`
	Ciphertext []byte    `json:"ciphertext"`
}

// Seal encrypts plaintext and returns the prefixed file form.
func Seal(passphrase, purpose string, params KDFParams, plaintext []byte) ([]byte, error) {
	env, err := SealEnvelope(passphrase, purpose, params, plaintext)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(filePrefix), raw...), nil
}

func SealEnvelope(passphrase, purpose string, params KDFParams, plaintext []byte) (*Envelope, error) {
	if passphrase == "" {
		return nil, ErrEmptySecret
	}
	params = params.orDefault()
	if err := params.validate(); err != nil {
		return nil, err
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := deriveKey(passphrase, salt, params)
	defer wipe(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return &Envelope{
		Version:    envelopeVersion,
		KDF:        kdfName,
		Params:     params,
		Purpose:    purpose,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, []byte(purpose)),
	}, nil
}

// Open reverses Seal. The purpose must match the one used to seal.
func Open(passphrase, purpose string, data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte(filePrefix)) {
		return nil, ErrNotEncrypted
	}
	var env Envelope
	if err := json.Unmarshal(data[len(filePrefix):], &env); err != nil {
		return nil, ErrInvalid
	}
	return OpenEnvelope(passphrase, purpose, &env)
}

func OpenEnvelope(passphrase, purpose string, env *Envelope) ([]byte, error) {
	if env == nil || env.Version != envelopeVersion || env.KDF != kdfName {
		return nil, ErrInvalid
	}
	if passphrase == "" {
		return nil, ErrEmptySecret
	}
	if err := env.Params.validate(); err != nil {
		return nil, err
	}
	if len(env.Nonce) != chacha20poly1305.NonceSizeX || len(env.Salt) != saltSize {
		return nil, ErrInvalid
	}
	key := deriveKey(passphrase, env.Salt, env.Params)
	defer wipe(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, []byte(purpose))
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// IsSealed reports whether data carries the envelope prefix.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, []byte(filePrefix))
}

func deriveKey(passphrase string, salt []byte, p KDFParams) []byte {
	return argon2.IDKey([]byte(passphrase), salt, p.Time, p.MemoryKB, p.Threads, chacha20poly1305.KeySize)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
