package stealth

import (
	"context"
	"encoding/binary"

	"shadowvest/go-backend/internal/crypto/keyenc"
)

// PaymentEvent is what a sender publishes for a vesting position paid to a
// stealth address. EncryptedAmount is carried opaquely and never parsed here.
type PaymentEvent struct {
	Organization     string          `json:"organization"`
	StealthAddress   keyenc.KeyParam `json:"stealth_address"`
	EphemeralPub     keyenc.KeyParam `json:"ephemeral_pubkey"`
	EncryptedPayload string          `json:"encrypted_payload,omitempty"`
	EncryptedAmount  []byte          `json:"encrypted_amount,omitempty"`
	PositionID       uint64          `json:"position_id"`
	TokenMint        string          `json:"token_mint,omitempty"`
	Timestamp        int64           `json:"timestamp"`
}

// Candidate projects the event onto the fields ownership checks need.
func (e PaymentEvent) Candidate() Candidate {
	return Candidate{
		StealthAddress: e.StealthAddress,
		EphemeralPub:   e.EphemeralPub,
		Payload:        e.EncryptedPayload,
	}
}

// EventMatch pairs an owned event with the result of opening its payload.
type EventMatch struct {
	Event PaymentEvent
	Match Match
}

// EventScan is ScanResult over payment events.
type EventScan struct {
	Matches []EventMatch
	Errors  []ItemError
	Scanned int
}

// ScanEvents is ScanBatch over payment events.
func (s *Scanner) ScanEvents(ctx context.Context, events []PaymentEvent, workers int) (EventScan, error) {
	candidates := make([]Candidate, len(events))
	for i, e := range events {
		candidates[i] = e.Candidate()
	}
	res, err := s.ScanBatch(ctx, candidates, workers)
	out := EventScan{
		Matches: make([]EventMatch, 0, len(res.Matches)),
		Errors:  res.Errors,
		Scanned: res.Scanned,
	}
	for _, m := range res.Matches {
		out.Matches = append(out.Matches, EventMatch{Event: events[m.Index], Match: m})
	}
	return out, err
}

// ClaimMessageSize is len(ClaimMessage(...)).
const ClaimMessageSize = 8 + 32 + 32

// ClaimMessage is the message a stealth key signs to authorize withdrawal of
// a vesting position: positionID (little-endian u64) ‖ nullifier ‖ destination.
func ClaimMessage(positionID uint64, nullifier, destination [32]byte) []byte {
	msg := make([]byte, ClaimMessageSize)
	binary.LittleEndian.PutUint64(msg[:8], positionID)
	copy(msg[8:40], nullifier[:])
	copy(msg[40:], destination[:])
	return msg
}
