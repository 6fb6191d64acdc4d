package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"shadowvest/go-backend/internal/app"
	svcrypto "shadowvest/go-backend/internal/crypto"
)

// callWithParams decodes params into P and maps both failure kinds. Key
// strings that fail to parse surface as the encoding error that caused
// them, everything else as invalid params.
func callWithParams[P any](raw json.RawMessage, call func(P) (any, error)) (any, *rpcError) {
	var params P
	if err := decodeObjectParams(raw, &params); err != nil {
		if errors.Is(err, svcrypto.ErrUnsupportedKeyFormat) || errors.Is(err, svcrypto.ErrInvalidEncoding) {
			return nil, mapServiceError(err)
		}
		return nil, rpcInvalidParams()
	}
	result, err := call(params)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return result, nil
}

func callWithoutParams(call func() (any, error)) (any, *rpcError) {
	result, err := call()
	if err != nil {
		return nil, mapServiceError(err)
	}
	return result, nil
}

func (s *Server) dispatchRPC(ctx context.Context, method string, raw json.RawMessage) (any, *rpcError) {
	switch strings.TrimSpace(method) {
	case "health_check":
		return map[string]string{"status": "ok"}, nil
	case "rpc.version":
		return rpcVersionInfo(), nil
	case "service.status":
		return callWithoutParams(func() (any, error) { return s.service.Status(ctx) })
	}
	if result, rpcErr, ok := s.dispatchKeystoreRPC(ctx, method, raw); ok {
		return result, rpcErr
	}
	if result, rpcErr, ok := s.dispatchMetaRPC(ctx, method, raw); ok {
		return result, rpcErr
	}
	if result, rpcErr, ok := s.dispatchStealthRPC(ctx, method, raw); ok {
		return result, rpcErr
	}
	return nil, &rpcError{Code: codeMethodNotFound, Message: "method not found"}
}

func (s *Server) dispatchKeystoreRPC(ctx context.Context, method string, raw json.RawMessage) (any, *rpcError, bool) {
	switch method {
	case "keystore.create":
		result, rpcErr := callWithParams(raw, func(p passphraseParams) (any, error) {
			return s.service.CreateKeystore(ctx, p.Passphrase)
		})
		return result, rpcErr, true
	case "keystore.import":
		result, rpcErr := callWithParams(raw, func(p importParams) (any, error) {
			return s.service.ImportKeystore(ctx, p.Mnemonic, p.Passphrase)
		})
		return result, rpcErr, true
	case "keystore.unlock":
		result, rpcErr := callWithParams(raw, func(p passphraseParams) (any, error) {
			return s.service.Unlock(ctx, p.Passphrase)
		})
		return result, rpcErr, true
	case "keystore.lock":
		s.service.Lock()
		return map[string]bool{"locked": true}, nil, true
	default:
		return nil, nil, false
	}
}

func (s *Server) dispatchMetaRPC(ctx context.Context, method string, raw json.RawMessage) (any, *rpcError, bool) {
	switch method {
	case "meta.generate":
		result, rpcErr := callWithParams(raw, func(p generateParams) (any, error) {
			return s.service.GenerateMetaKeys(ctx, p.WithMnemonic)
		})
		return result, rpcErr, true
	case "meta.register":
		result, rpcErr := callWithParams(raw, func(p app.MetaRequest) (any, error) {
			return s.service.RegisterMeta(ctx, p)
		})
		return result, rpcErr, true
	case "meta.update":
		result, rpcErr := callWithParams(raw, func(p app.MetaRequest) (any, error) {
			return s.service.UpdateMeta(ctx, p)
		})
		return result, rpcErr, true
	case "meta.deactivate":
		result, rpcErr := callWithParams(raw, func(p ownerParams) (any, error) {
			return s.service.DeactivateMeta(ctx, p.Owner)
		})
		return result, rpcErr, true
	case "meta.get":
		result, rpcErr := callWithParams(raw, func(p ownerParams) (any, error) {
			return s.service.GetMeta(ctx, p.Owner)
		})
		return result, rpcErr, true
	case "meta.list":
		result, rpcErr := callWithoutParams(func() (any, error) { return s.service.ListMeta(ctx) })
		return result, rpcErr, true
	default:
		return nil, nil, false
	}
}

func (s *Server) dispatchStealthRPC(ctx context.Context, method string, raw json.RawMessage) (any, *rpcError, bool) {
	switch method {
	case "stealth.derive":
		result, rpcErr := callWithParams(raw, func(p app.DeriveRequest) (any, error) {
			return s.service.DeriveStealthAddress(ctx, p)
		})
		return result, rpcErr, true
	case "stealth.check":
		result, rpcErr := callWithParams(raw, func(p app.OwnershipRequest) (any, error) {
			owned, err := s.service.CheckOwnership(ctx, p)
			if err != nil {
				return nil, err
			}
			return map[string]bool{"owned": owned}, nil
		})
		return result, rpcErr, true
	case "stealth.recover":
		result, rpcErr := callWithParams(raw, func(p app.OwnershipRequest) (any, error) {
			return s.service.RecoverSigningKey(ctx, p)
		})
		return result, rpcErr, true
	case "stealth.scan":
		result, rpcErr := callWithParams(raw, func(p app.ScanRequest) (any, error) {
			return s.service.ScanEvents(ctx, p)
		})
		return result, rpcErr, true
	case "payload.decrypt":
		result, rpcErr := callWithParams(raw, func(p app.DecryptRequest) (any, error) {
			return s.service.DecryptPayload(ctx, p)
		})
		return result, rpcErr, true
	case "claim.sign":
		result, rpcErr := callWithParams(raw, func(p app.ClaimRequest) (any, error) {
			return s.service.SignClaim(ctx, p)
		})
		return result, rpcErr, true
	case "claim.authorize":
		result, rpcErr := callWithParams(raw, func(p app.AuthorizeRequest) (any, error) {
			return s.service.AuthorizeClaim(ctx, p)
		})
		return result, rpcErr, true
	case "nullifier.compute":
		result, rpcErr := callWithParams(raw, func(p app.NullifierRequest) (any, error) {
			return s.service.ComputeNullifier(ctx, p)
		})
		return result, rpcErr, true
	default:
		return nil, nil, false
	}
}
