package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/payment-kingcard/internal/obs"
)

var (
	// ErrDuplicateOrder means the gateway already holds an order with this id.
	ErrDuplicateOrder = errors.New("payment: duplicate order")
	// ErrGatewayRejected covers every other application-level refusal.
	ErrGatewayRejected = errors.New("payment: gateway rejected the card")
)

// SubmitStatus classifies an accepted submission.
type SubmitStatus string

const (
	// SubmitAccepted means the gateway returned a transaction id.
	SubmitAccepted SubmitStatus = "accepted"
	// SubmitPending means the gateway queued the card; the webhook decides.
	SubmitPending SubmitStatus = "pending"
)

const msgSubmitResponse = "Submit API response."

// SubmitRequest is the raw checkout form for one purchase.
type SubmitRequest struct {
	RequestKey string
	Telecom    string
	Code       string
	Serial     string
}

// SubmissionResult is a successful gateway submission.
type SubmissionResult struct {
	Status        SubmitStatus
	TransactionID string
	StatusCode    int
	Message       string
}

// CardGateway posts a card to the strike-card endpoint.
type CardGateway interface {
	StrikeCard(ctx context.Context, params OutboundPaymentParams, token SignedToken) (GatewayResponse, error)
}

// Initiator turns a checkout form into one strike-card call.
type Initiator struct {
	Profile    GatewayProfile
	Purchases  PurchaseFinder
	Gateway    CardGateway
	Tokens     TokenIssuer
	Audit      AuditSink
	WebhookURL string
	Logger     zerolog.Logger
}

// Submit validates the card, signs and posts it, and classifies the gateway
// reply. Validation errors, ErrPurchaseNotFound, ErrTransportFailed,
// ErrDuplicateOrder and ErrGatewayRejected are the possible failures.
func (in Initiator) Submit(ctx context.Context, req SubmitRequest) (SubmissionResult, error) {
	ctx, span := otel.Tracer("payment.Initiator").Start(ctx, "Initiator.Submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.gateway", in.Profile.Name),
		attribute.String("payment.request_key", req.RequestKey),
	)

	start := time.Now()
	result := "error"
	defer func() {
		span.SetAttributes(
			attribute.String("payment.submit.result", result),
			attribute.Float64("payment.submit.duration_ms", obs.DurationMillis(time.Since(start))),
		)
		obs.ObserveSubmit(in.Profile.Name, result)
	}()

	purchase, profile, err := in.Purchases.FindPurchase(ctx, req.RequestKey)
	if err != nil {
		result = "not_found"
		if !errors.Is(err, ErrPurchaseNotFound) {
			result = "ledger_error"
			span.RecordError(err)
		}
		return SubmissionResult{}, err
	}

	card, err := ValidateUserInput(req.Telecom, req.Code, req.Serial)
	if err != nil {
		result = "invalid_input"
		return SubmissionResult{}, err
	}

	params := BuildParams(purchase, in.WebhookURL).WithCard(in.Profile, card)
	token, err := in.Tokens.Issue(profile, params)
	if err != nil {
		result = "token_error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "token")
		in.Logger.Error().Err(err).Str("request_key", purchase.RequestKey).Msg("issue submit token")
		in.record(ctx, LogRecord{
			RequestKey: purchase.RequestKey,
			ProviderID: purchase.ProviderID,
			LogType:    LogError,
			LogMessage: msgSubmitResponse,
			Details: map[string]any{
				"requestData":  params,
				"responseCode": 0,
				"error":        "token: " + err.Error(),
			},
		})
		return SubmissionResult{}, fmt.Errorf("payment: issue token: %w", err)
	}

	resp, err := in.Gateway.StrikeCard(ctx, params, token)
	if err != nil {
		result = "transport_error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		in.Logger.Warn().Err(err).
			Str("request_key", purchase.RequestKey).
			Interface("params", params.Redacted()).
			Msg("strike card request failed")
		in.record(ctx, LogRecord{
			RequestKey: purchase.RequestKey,
			ProviderID: purchase.ProviderID,
			LogType:    LogError,
			LogMessage: msgSubmitResponse,
			Details: map[string]any{
				"requestData":  params,
				"responseCode": 0,
				"error":        ErrTransportFailed.Error(),
			},
		})
		return SubmissionResult{}, ErrTransportFailed
	}

	parsed, parseErr := ParseSubmitResponse(resp.Body)
	txnID := parsed.TransactionID(in.Profile.TransactionField)
	outcome, classifyErr := in.classify(resp.StatusCode, parsed, txnID, parseErr)

	logType := LogInfo
	if classifyErr != nil {
		logType = LogError
	}
	in.record(ctx, LogRecord{
		RequestKey:    purchase.RequestKey,
		ProviderID:    purchase.ProviderID,
		TransactionID: txnID,
		LogType:       logType,
		LogMessage:    msgSubmitResponse,
		Details: map[string]any{
			"requestData":  params,
			"responseCode": resp.StatusCode,
			"responseData": decodeJSONObject(resp.Body),
		},
	})

	if classifyErr != nil {
		result = "rejected"
		if errors.Is(classifyErr, ErrDuplicateOrder) {
			result = "duplicate"
		}
		return SubmissionResult{}, classifyErr
	}
	result = string(outcome)
	span.SetAttributes(attribute.String("payment.transaction_id", txnID))
	return SubmissionResult{
		Status:        outcome,
		TransactionID: txnID,
		StatusCode:    resp.StatusCode,
		Message:       parsed.Message,
	}, nil
}

func (in Initiator) classify(status int, parsed SubmitResponse, txnID string, parseErr error) (SubmitStatus, error) {
	if parseErr != nil {
		return "", ErrGatewayRejected
	}
	if in.Profile.DuplicateOrderErr != 0 && parsed.HasCode(in.Profile.DuplicateOrderErr) {
		return "", ErrDuplicateOrder
	}
	if status != http.StatusOK || !parsed.HasCode(0) {
		return "", ErrGatewayRejected
	}
	switch in.Profile.Acceptance {
	case AcceptPending:
		return SubmitPending, nil
	default:
		if txnID == "" {
			return "", ErrGatewayRejected
		}
		return SubmitAccepted, nil
	}
}

func (in Initiator) record(ctx context.Context, rec LogRecord) {
	if in.Audit == nil {
		return
	}
	if err := in.Audit.Record(ctx, rec); err != nil {
		in.Logger.Error().Err(err).Str("request_key", rec.RequestKey).Msg("write provider log")
	}
}
