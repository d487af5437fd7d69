package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/diewo77/go-erp/httpx"
	"github.com/diewo77/go-erp/internal/billing"
	"github.com/diewo77/go-erp/internal/config"
	"github.com/sirupsen/logrus"
)

// writeError maps service errors to HTTP responses. Anything unrecognised is logged and
// reported as a 500 without its message.
func writeError(w http.ResponseWriter, r *http.Request, log *logrus.Logger, err error) {
	var (
		verr  *billing.ValidationError
		terr  *billing.TransitionError
		operr *billing.OverpaymentError
		cerr  *billing.CurrencyMismatchError
		serr  *billing.InvalidStateError
	)
	switch {
	case errors.As(err, &verr):
		httpx.Error(w, http.StatusBadRequest, "validation_failed", "request is invalid", verr.Violations)
	case errors.Is(err, billing.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.As(err, &terr):
		httpx.Error(w, http.StatusConflict, "illegal_transition", err.Error(), map[string]string{
			"from":   string(terr.From),
			"to":     string(terr.To),
			"reason": terr.Reason,
		})
	case errors.As(err, &operr):
		httpx.Error(w, http.StatusUnprocessableEntity, "overpayment", err.Error(), map[string]string{
			"total":       operr.InvoiceTotal.String(),
			"paid":        operr.AlreadyPaid.String(),
			"attempted":   operr.Attempted.String(),
			"outstanding": operr.Outstanding().String(),
		})
	case errors.As(err, &cerr):
		httpx.Error(w, http.StatusUnprocessableEntity, "currency_mismatch", err.Error(), map[string]string{
			"invoice": cerr.Invoice,
			"payment": cerr.Payment,
		})
	case errors.As(err, &serr):
		httpx.Error(w, http.StatusConflict, "invalid_state", err.Error(), map[string]string{
			"status": string(serr.Status),
			"op":     serr.Op,
		})
	case billing.IsRetryable(err):
		w.Header().Set("Retry-After", "1")
		httpx.Error(w, http.StatusConflict, "concurrency_conflict", err.Error(), map[string]bool{"retryable": true})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpx.Error(w, http.StatusRequestTimeout, "request_cancelled", "request was cancelled", nil)
	default:
		config.LogError(log, "handlers", r.Method+" "+r.URL.Path, "unhandled error",
			map[string]any{"request_id": httpx.RequestID(r.Context())}, err)
		httpx.Error(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
	}
}
