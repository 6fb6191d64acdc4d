package app

import (
	"context"
	"errors"
	"strings"
	"time"

	svcrypto "shadowvest/go-backend/internal/crypto"
	"shadowvest/go-backend/internal/keystore"
	"shadowvest/go-backend/internal/metrics"
	"shadowvest/go-backend/internal/payload"
	"shadowvest/go-backend/internal/securestore"
)

const serviceComponentName = "stealthservice"

func (s *Service) logInfo(ctx context.Context, operation, message string, attrs ...any) {
	base := []any{
		"component", serviceComponentName,
		"operation", strings.TrimSpace(operation),
		"correlation_id", CorrelationID(ctx),
	}
	s.logger.Info(message, append(base, attrs...)...)
}

func (s *Service) logWarn(ctx context.Context, operation, message string, attrs ...any) {
	base := []any{
		"component", serviceComponentName,
		"operation", strings.TrimSpace(operation),
		"correlation_id", CorrelationID(ctx),
	}
	s.logger.Warn(message, append(base, attrs...)...)
}

func (s *Service) recordErrorWithContext(ctx context.Context, category string, err error, operation string, attrs ...any) {
	if err == nil {
		return
	}
	s.metrics.RecordError(category)
	base := []any{
		"component", serviceComponentName,
		"operation", strings.TrimSpace(operation),
		"category", strings.TrimSpace(category),
		"correlation_id", CorrelationID(ctx),
		"error", err.Error(),
	}
	s.logger.Error("service error", append(base, attrs...)...)
}

// finish closes an operation: latency and result go to metrics, failures
// to the error log. Caller mistakes are logged at warn level.
func (s *Service) finish(ctx context.Context, operation string, started time.Time, err error) {
	s.metrics.RecordOp(operation, started, err)
	if err == nil {
		return
	}
	category := errorCategory(err)
	if category == metrics.CategoryAPI {
		s.metrics.RecordError(category)
		s.logWarn(ctx, operation, "request rejected", "error", err.Error())
		return
	}
	s.recordErrorWithContext(ctx, category, err, operation)
}

func errorCategory(err error) string {
	switch {
	case errors.Is(err, svcrypto.ErrUnsupportedKeyFormat),
		errors.Is(err, svcrypto.ErrInvalidEncoding),
		errors.Is(err, svcrypto.ErrPayloadTooShort),
		errors.Is(err, payload.ErrUnknownFormat),
		errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrNotOwner):
		return metrics.CategoryCrypto
	case errors.Is(err, keystore.ErrCorrupted),
		errors.Is(err, securestore.ErrInvalid),
		errors.Is(err, ErrStorage):
		return metrics.CategoryStorage
	default:
		return metrics.CategoryAPI
	}
}
