package application

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/wms-platform/stockcount-service/internal/domain"
	"github.com/wms-platform/stockcount-service/pkg/errors"
)

const (
	// CodeLockNotAcquired is returned when a record stayed locked past the wait timeout
	CodeLockNotAcquired = "LOCK_NOT_ACQUIRED"
	// CodeBatchInterrupted is returned when a batch operation stopped part way.
	// Its details carry the per-outcome counts reached before the stop.
	CodeBatchInterrupted = "BATCH_INTERRUPTED"
)

// toAppError converts domain failures into API errors, keeping the
// domain error in the chain for errors.Is checks.
func toAppError(err error) error {
	if err == nil {
		return nil
	}
	if errors.IsAppError(err) {
		return err
	}

	var ruleErr *domain.RuleError
	if stderrors.As(err, &ruleErr) {
		appErr := errors.NewAppError(ruleErr.Code, ruleErr.Message, ruleHTTPStatus(ruleErr)).Wrap(err)
		if len(ruleErr.Details) > 0 {
			appErr = appErr.WithDetails(ruleErr.Details)
		}
		if ruleErr.Retryable() {
			appErr = appErr.AsRetryable()
		}
		return appErr
	}

	switch {
	case stderrors.Is(err, domain.ErrLockNotAcquired):
		return errors.NewAppError(CodeLockNotAcquired, "record is busy, retry shortly", http.StatusConflict).
			AsRetryable().Wrap(err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.ErrTimeout("operation").Wrap(err)
	default:
		return errors.ErrInternal("").Wrap(err)
	}
}

func ruleHTTPStatus(e *domain.RuleError) int {
	switch e.Kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindState, domain.KindConflict:
		return http.StatusConflict
	case domain.KindInconsistency:
		return http.StatusUnprocessableEntity
	case domain.KindIntegration:
		if e.Code == domain.CodeERPTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// batchInterrupted reports a batch cut short by its context. Items already
// processed stay processed, so the progress goes back to the caller.
func batchInterrupted(err error, progress map[string]int) *errors.AppError {
	status := http.StatusServiceUnavailable
	if stderrors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	appErr := errors.NewAppError(CodeBatchInterrupted, "batch stopped before every item was processed", status).
		AsRetryable().Wrap(err)
	for key, n := range progress {
		appErr = appErr.WithDetail(key, strconv.Itoa(n))
	}
	return appErr
}
