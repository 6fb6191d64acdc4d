package app

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	svcrypto "shadowvest/go-backend/internal/crypto"
	"shadowvest/go-backend/internal/crypto/curveconv"
	"shadowvest/go-backend/internal/crypto/keyenc"
	"shadowvest/go-backend/internal/crypto/keys"
	"shadowvest/go-backend/internal/nullifier"
	"shadowvest/go-backend/internal/payload"
	"shadowvest/go-backend/internal/registry"
	"shadowvest/go-backend/internal/stealth"
	"shadowvest/go-backend/internal/stealth/signer"

	"github.com/mr-tron/base58/base58"
)

const receiptTag = "shadowvest/claim-receipt/v1"

// GenerateMetaKeys returns a fresh meta keypair to the caller. Nothing is
// persisted; use CreateKeystore for a service-held pair.
func (s *Service) GenerateMetaKeys(ctx context.Context, withMnemonic bool) (out GeneratedMeta, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "meta.generate", started, err) }()

	var kp keys.MetaKeyPair
	if withMnemonic {
		if out.Mnemonic, err = keys.NewMnemonic(); err != nil {
			return GeneratedMeta{}, err
		}
		kp, err = keys.MetaKeyPairFromMnemonic(out.Mnemonic, "")
	} else {
		kp, err = keys.GenerateMetaKeyPair()
	}
	if err != nil {
		return GeneratedMeta{}, err
	}
	out.ID = kp.ID()
	out.MetaAddress = kp.MetaAddress()
	out.SpendPriv = kp.SpendPriv
	out.ViewPriv = kp.ViewPriv
	return out, nil
}

func (s *Service) payloadFormat(name string) (payload.Format, error) {
	if strings.TrimSpace(name) == "" {
		return s.cfg.Service.PayloadFormat, nil
	}
	return payload.ParseFormat(name)
}

// DeriveStealthAddress is the sender flow: a fresh ephemeral keypair, the
// one-time address for the recipient and the payload that lets the
// recipient recover the ephemeral key.
func (s *Service) DeriveStealthAddress(ctx context.Context, req DeriveRequest) (out DeriveResult, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "stealth.derive", started, err) }()

	var spendPub, viewPub [32]byte
	switch {
	case req.Owner != nil:
		rec, err := s.registry.Get(ctx, *req.Owner)
		if err != nil {
			return DeriveResult{}, err
		}
		if !rec.Active {
			return DeriveResult{}, registry.ErrMetaNotActive
		}
		spendPub, viewPub = rec.SpendPub, rec.ViewPub
	case req.SpendPub != nil && req.ViewPub != nil:
		spendPub, viewPub = *req.SpendPub, *req.ViewPub
	default:
		return DeriveResult{}, fmt.Errorf("%w: owner or spend_pubkey and view_pubkey required", ErrInvalidArgument)
	}
	f, err := s.payloadFormat(req.Format)
	if err != nil {
		return DeriveResult{}, err
	}

	eph, err := keys.GenerateEphemeralKeyPair()
	if err != nil {
		return DeriveResult{}, err
	}
	addr, err := stealth.DeriveStealthPub(spendPub[:], viewPub[:], eph.Priv[:])
	if err != nil {
		return DeriveResult{}, err
	}
	text, err := payload.EncryptEphemeral(f, eph.Priv[:], viewPub[:], []byte(req.Note))
	if err != nil {
		return DeriveResult{}, err
	}
	out = DeriveResult{
		StealthAddress:   addr,
		EphemeralPub:     eph.Pub,
		EncryptedPayload: text,
		Format:           f.String(),
		MetaID:           keys.MetaAddressID(spendPub[:], viewPub[:]),
	}
	s.logInfo(ctx, "stealth.derive", "stealth address derived",
		"stealth_address", keyenc.EncodeBase58(addr[:]),
		"meta_id", out.MetaID,
		"format", out.Format,
	)
	return out, nil
}

// CheckOwnership reports whether the keys own the address. A foreign
// address is (false, nil); only malformed input is an error.
func (s *Service) CheckOwnership(ctx context.Context, req OwnershipRequest) (owned bool, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "stealth.check", started, err) }()

	k, err := s.resolveKeys(req.Keys, false)
	if err != nil {
		return false, err
	}
	return stealth.IsMyStealthAddress(req.StealthAddress[:], req.EphemeralPub[:], k.spendPub[:], k.viewPriv[:])
}

// RecoverSigningKey rebuilds the stealth scalar and reports its public key.
// The scalar never leaves the service.
func (s *Service) RecoverSigningKey(ctx context.Context, req OwnershipRequest) (out RecoveredKey, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "stealth.recover", started, err) }()

	k, err := s.resolveKeys(req.Keys, true)
	if err != nil {
		return RecoveredKey{}, err
	}
	sc, err := stealth.RecoverStealthPrivKey(k.spendPriv[:], k.viewPriv[:], req.EphemeralPub[:])
	if err != nil {
		return RecoveredKey{}, err
	}
	pub := stealth.PublicFromScalar(sc)
	return RecoveredKey{
		StealthAddress: req.StealthAddress,
		PublicKey:      pub,
		Owned:          keyenc.KeyParam(pub) == req.StealthAddress,
	}, nil
}

// SignClaim signs ClaimMessage(position, nullifier, destination) with the
// stealth key. Addresses the keys do not own fail with ErrNotOwner.
func (s *Service) SignClaim(ctx context.Context, req ClaimRequest) (out SignedClaim, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "claim.sign", started, err) }()

	k, err := s.resolveKeys(req.Keys, true)
	if err != nil {
		return SignedClaim{}, err
	}
	sc, err := stealth.RecoverStealthPrivKey(k.spendPriv[:], k.viewPriv[:], req.EphemeralPub[:])
	if err != nil {
		return SignedClaim{}, err
	}
	if keyenc.KeyParam(stealth.PublicFromScalar(sc)) != req.StealthAddress {
		return SignedClaim{}, ErrNotOwner
	}
	n := nullifier.Derive(req.StealthAddress, req.PositionID)
	msg := stealth.ClaimMessage(req.PositionID, n, req.Destination)
	sig, err := signer.SignWithScalar(sc, msg)
	if err != nil {
		return SignedClaim{}, err
	}
	return SignedClaim{
		StealthAddress: req.StealthAddress,
		Destination:    req.Destination,
		PositionID:     req.PositionID,
		Nullifier:      n,
		Message:        hex.EncodeToString(msg),
		Signature:      hex.EncodeToString(sig),
	}, nil
}

// ComputeNullifier derives the nullifier and reports whether it is spent.
func (s *Service) ComputeNullifier(ctx context.Context, req NullifierRequest) (out NullifierStatus, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "nullifier.compute", started, err) }()

	out.Nullifier = nullifier.Derive(req.StealthAddress, req.PositionID)
	rec, err := s.ledger.Lookup(ctx, out.Nullifier)
	switch {
	case errors.Is(err, nullifier.ErrNotFound):
		return out, nil
	case err != nil:
		return NullifierStatus{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	out.Consumed = true
	at := rec.ConsumedAt
	out.ConsumedAt = &at
	return out, nil
}

// AuthorizeClaim verifies the claim signature against the stealth address
// and consumes the nullifier. A second claim for the same address and
// position fails with nullifier.ErrNullifierUsed.
func (s *Service) AuthorizeClaim(ctx context.Context, req AuthorizeRequest) (out ClaimReceipt, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "claim.authorize", started, err) }()

	if _, err := curveconv.DecodePoint(req.StealthAddress[:]); err != nil {
		return ClaimReceipt{}, fmt.Errorf("stealth address: %w", err)
	}
	sig, err := decodeSignature(req.Signature)
	if err != nil {
		return ClaimReceipt{}, err
	}
	n := nullifier.Derive(req.StealthAddress, req.PositionID)
	msg := stealth.ClaimMessage(req.PositionID, n, req.Destination)
	if !signer.Verify(req.StealthAddress[:], msg, sig) {
		return ClaimReceipt{}, ErrInvalidSignature
	}

	rec := nullifier.Record{
		Nullifier:      n,
		PositionID:     req.PositionID,
		StealthAddress: req.StealthAddress,
		Destination:    req.Destination,
		ConsumedAt:     s.now().UTC().Truncate(time.Second),
	}
	if err := s.ledger.Consume(ctx, rec); err != nil {
		if errors.Is(err, nullifier.ErrNullifierUsed) {
			s.logWarn(ctx, "claim.authorize", "nullifier replay", "nullifier", n.String())
			return ClaimReceipt{}, err
		}
		return ClaimReceipt{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	out = ClaimReceipt{
		Nullifier:      n,
		PositionID:     req.PositionID,
		StealthAddress: req.StealthAddress,
		Destination:    req.Destination,
		ConsumedAt:     rec.ConsumedAt,
	}
	if key := s.cfg.Service.SigningKey; len(key) == ed25519.PrivateKeySize {
		out.ServicePub = s.servicePub()
		out.ServiceSignature = hex.EncodeToString(ed25519.Sign(key, ReceiptMessage(out)))
	}
	s.logInfo(ctx, "claim.authorize", "claim authorized",
		"nullifier", n.String(),
		"position_id", req.PositionID,
		"destination", keyenc.EncodeBase58(req.Destination[:]),
	)
	return out, nil
}

// ReceiptMessage is the byte string the service signs for a receipt:
// tag ‖ ClaimMessage ‖ LE64(consumed_at unix seconds).
func ReceiptMessage(r ClaimReceipt) []byte {
	claim := stealth.ClaimMessage(r.PositionID, r.Nullifier, r.Destination)
	msg := make([]byte, 0, len(receiptTag)+len(claim)+8)
	msg = append(msg, receiptTag...)
	msg = append(msg, claim...)
	msg = binary.LittleEndian.AppendUint64(msg, uint64(r.ConsumedAt.Unix()))
	return msg
}

// VerifyReceipt checks a receipt's service signature.
func VerifyReceipt(pub ed25519.PublicKey, r ClaimReceipt) bool {
	sig, err := hex.DecodeString(r.ServiceSignature)
	if err != nil {
		return false
	}
	return signer.Verify(pub, ReceiptMessage(r), sig)
}

// decodeSignature accepts hex or base58 encodings of a 64-byte signature.
func decodeSignature(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: signature is required", ErrInvalidArgument)
	}
	sig, err := hex.DecodeString(text)
	if err != nil {
		sig, err = base58.Decode(text)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: signature is neither hex nor base58", svcrypto.ErrInvalidEncoding)
	}
	if len(sig) != signer.SignatureSize {
		return nil, fmt.Errorf("%w: signature must be %d bytes, got %d", svcrypto.ErrInvalidEncoding, signer.SignatureSize, len(sig))
	}
	return sig, nil
}

// ScanEvents finds the events owned by the keys, opens their payloads and
// marks the ones whose nullifier is already consumed.
func (s *Service) ScanEvents(ctx context.Context, req ScanRequest) (out ScanReport, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "stealth.scan", started, err) }()

	if len(req.Events) > s.cfg.Scan.MaxBatch {
		return ScanReport{}, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(req.Events), s.cfg.Scan.MaxBatch)
	}
	k, err := s.resolveKeys(req.Keys, false)
	if err != nil {
		return ScanReport{}, err
	}
	sc, err := stealth.NewScanner(k.viewPriv[:], k.spendPub[:])
	if err != nil {
		return ScanReport{}, err
	}
	scan, scanErr := sc.ScanEvents(ctx, req.Events, s.cfg.Scan.Workers)
	s.metrics.RecordScan(scan.Scanned, len(scan.Matches))

	out = ScanReport{Owned: make([]OwnedEvent, 0, len(scan.Matches)), Scanned: scan.Scanned}
	for _, ie := range scan.Errors {
		out.Errors = append(out.Errors, ScanFailure{Index: ie.Index, Error: ie.Err.Error()})
	}
	for _, m := range scan.Matches {
		ev := OwnedEvent{
			Event:     m.Event,
			Nullifier: nullifier.Derive(m.Event.StealthAddress, m.Event.PositionID),
		}
		switch {
		case m.Match.PayloadErr != nil:
			ev.PayloadError = m.Match.PayloadErr.Error()
		case m.Match.Payload != nil:
			ev.PayloadFormat = m.Match.Payload.Format.String()
			ev.PayloadVerified = m.Match.Payload.Verified
			ev.Note = string(m.Match.Payload.Note)
		}
		_, lerr := s.ledger.Lookup(ctx, ev.Nullifier)
		switch {
		case lerr == nil:
			ev.Claimed = true
		case !errors.Is(lerr, nullifier.ErrNotFound):
			return out, fmt.Errorf("%w: %v", ErrStorage, lerr)
		}
		out.Owned = append(out.Owned, ev)
	}
	return out, scanErr
}

// DecryptPayload opens an ephemeral payload with the view key. An empty
// format auto-detects.
func (s *Service) DecryptPayload(ctx context.Context, req DecryptRequest) (out DecryptedPayload, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "payload.decrypt", started, err) }()

	viewPriv, err := s.resolveViewKey(req.Keys)
	if err != nil {
		return DecryptedPayload{}, err
	}
	var dec payload.Decrypted
	if strings.TrimSpace(req.Format) == "" {
		dec, err = payload.DecryptEphemeral(req.Payload, viewPriv[:], req.EphemeralPub[:])
	} else {
		f, perr := payload.ParseFormat(req.Format)
		if perr != nil {
			return DecryptedPayload{}, perr
		}
		dec, err = payload.DecryptEphemeralAs(req.Payload, f, viewPriv[:], req.EphemeralPub[:])
	}
	if err != nil {
		return DecryptedPayload{}, err
	}
	if !dec.Verified {
		s.logWarn(ctx, "payload.decrypt", "payload does not match ephemeral key")
	}
	return DecryptedPayload{Format: dec.Format.String(), Verified: dec.Verified, Note: string(dec.Note)}, nil
}

func (s *Service) resolveViewKey(ref KeyRef) ([32]byte, error) {
	if ref.ViewPriv != nil {
		return *ref.ViewPriv, nil
	}
	k, err := s.resolveKeys(KeyRef{}, false)
	if err != nil {
		return [32]byte{}, err
	}
	return k.viewPriv, nil
}
