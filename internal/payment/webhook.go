package payment

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/payment-kingcard/internal/common"
)

// CallbackHandler processes a parsed webhook into an outcome.
type CallbackHandler interface {
	Handle(ctx context.Context, env CallbackEnvelope) VerificationOutcome
}

// Webhook receives gateway callbacks. The body is answered with the ack on
// success and the log message otherwise; the status tells the gateway whether
// to retry.
type Webhook struct {
	Callbacks CallbackHandler
	Logger    zerolog.Logger
}

// Handle serves POST /webhooks/kingcard.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Callbacks == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "webhook unavailable")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large")
			return
		}
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload")
		return
	}

	env := ParseCallback(body, common.RemoteIP(r))
	out := h.Callbacks.Handle(r.Context(), env)

	if out.Acknowledged() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(out.ResponseStatus())
		_, _ = io.WriteString(w, AckBody)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(out.ResponseStatus())
	_, _ = io.WriteString(w, out.LogMessage)
}
