package payment

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/payment-kingcard/internal/obs"
)

// Locker serializes work per key across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// CallbackService processes one gateway webhook end to end: verify, apply to
// the ledger, finalize and record.
type CallbackService struct {
	Verifier Verifier
	Ledger   Ledger
	Audit    AuditSink
	Locker   Locker
	LockTTL  time.Duration
	Logger   zerolog.Logger
}

// Handle never returns an error; the outcome carries the status and body the
// gateway should receive.
func (s CallbackService) Handle(ctx context.Context, env CallbackEnvelope) VerificationOutcome {
	ctx, span := otel.Tracer("payment.CallbackService").Start(ctx, "CallbackService.Handle")
	defer span.End()

	gateway := s.Verifier.Profile.Name
	out := s.Verifier.Verify(ctx, env)
	if out.Accepted && out.Result == ResultReceived {
		applied, err := s.apply(ctx, out)
		if err != nil {
			span.RecordError(err)
			s.Logger.Error().Err(err).Str("request_key", out.RequestKey).Msg("apply callback outcome")
			out = out.reject(FailureLedger, msgLedgerUnavailable, http.StatusInternalServerError)
		} else {
			out = Finalize(out, applied)
			if applied.AlreadyApplied {
				out.Details["already_applied"] = true
			}
		}
	} else {
		out = Finalize(out, ApplyResult{})
	}

	s.record(ctx, out)

	label := string(out.Result)
	if out.Failure != FailureNone {
		label = string(out.Failure)
	}
	obs.ObserveCallback(gateway, label)
	span.SetAttributes(
		attribute.String("payment.gateway", gateway),
		attribute.String("payment.request_key", out.RequestKey),
		attribute.String("payment.callback.result", label),
		attribute.Int("payment.callback.status", out.ResponseStatus()),
	)
	s.Logger.Info().
		Str("request_key", out.RequestKey).
		Str("transaction_id", out.TransactionID).
		Str("result", label).
		Int("status", out.ResponseStatus()).
		Msg("payment callback processed")
	return out
}

func (s CallbackService) apply(ctx context.Context, out VerificationOutcome) (ApplyResult, error) {
	if s.Locker == nil {
		return s.Ledger.Apply(ctx, out)
	}
	var applied ApplyResult
	err := s.Locker.WithLock(ctx, callbackLockKey(out.RequestKey), s.LockTTL, func(ctx context.Context) error {
		var err error
		applied, err = s.Ledger.Apply(ctx, out)
		return err
	})
	return applied, err
}

func (s CallbackService) record(ctx context.Context, out VerificationOutcome) {
	if s.Audit == nil {
		return
	}
	rec := LogRecord{
		RequestKey:    out.RequestKey,
		ProviderID:    out.ProviderID,
		TransactionID: out.TransactionID,
		LogType:       out.LogType,
		LogMessage:    out.LogMessage,
		Details:       out.Details,
	}
	if err := s.Audit.Record(ctx, rec); err != nil {
		s.Logger.Error().Err(err).Str("request_key", out.RequestKey).Msg("write provider log")
	}
}

func callbackLockKey(requestKey string) string {
	return "kingcard:callback:" + requestKey
}
