package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PurchaseFinder resolves a request key to its purchase and merchant profile.
type PurchaseFinder interface {
	FindPurchase(ctx context.Context, requestKey string) (PurchaseRequest, PaymentProfile, error)
}

// OrderLookup is the server-to-server order-detail call.
type OrderLookup interface {
	OrderDetail(ctx context.Context, params LookupParams, token SignedToken) (GatewayResponse, error)
}

// Verifier authenticates a callback and validates its amount. It never
// returns an error; every failure is captured in the outcome. ProviderID
// attributes callbacks that never resolve to a purchase.
type Verifier struct {
	ProviderID string
	Profile    GatewayProfile
	Purchases  PurchaseFinder
	Lookup     OrderLookup
	Tokens     TokenIssuer
	Logger     zerolog.Logger
}

// Verify runs parse → resolve → authenticate → cost → result for one callback.
func (v Verifier) Verify(ctx context.Context, env CallbackEnvelope) VerificationOutcome {
	out := VerificationOutcome{
		Result:        ResultPending,
		LogType:       LogInfo,
		ProviderID:    v.ProviderID,
		RequestKey:    env.RequestKey,
		TransactionID: env.TransactionID,
		Order:         env.Order,
		Details:       callbackLogDetails(env),
	}

	if env.RequestKey == "" {
		return out.reject(FailureUnknownOrder, msgUnexpectedPayload, http.StatusOK)
	}
	purchase, profile, err := v.Purchases.FindPurchase(ctx, env.RequestKey)
	if err != nil {
		if errors.Is(err, ErrPurchaseNotFound) {
			return out.reject(FailureUnknownOrder, msgUnexpectedPayload, 0)
		}
		v.Logger.Error().Err(err).Str("request_key", env.RequestKey).Msg("load purchase for callback")
		return out.reject(FailureLedger, msgLedgerUnavailable, 0)
	}
	out.Purchase = purchase
	if purchase.ProviderID != "" {
		out.ProviderID = purchase.ProviderID
	}

	switch v.Profile.Auth {
	case AuthLookup:
		var ok bool
		if out, ok = v.authenticateByLookup(ctx, out, env, profile); !ok {
			return out
		}
	default:
		if !VerifySignature(env.RawBody, env.Signature, profile.APISecret) {
			return out.reject(FailureAuthenticate, msgInvalidSignature, 0)
		}
	}

	expected := purchase.CostAmount.Round(2)
	paid := v.PaidAmount(out.Order, env.Txn)
	if !expected.Equal(paid) {
		out = out.reject(FailureCostMismatch, msgInvalidCost, 0)
		out.Details["expected_amount"] = expected.StringFixed(2)
		out.Details["paid_amount"] = paid.StringFixed(2)
		return out
	}

	out.Accepted = true
	if v.IsReceived(out.Order) {
		out.Result = ResultReceived
		out.LogMessage = msgPaymentReceived
	} else {
		out.LogMessage = msgPaymentPending
	}
	return out
}

func (v Verifier) authenticateByLookup(ctx context.Context, out VerificationOutcome, env CallbackEnvelope, profile PaymentProfile) (VerificationOutcome, bool) {
	params := LookupParams{ID: env.Order.ID.String(), MrcOrderID: env.RequestKey}
	token, err := v.Tokens.Issue(profile, params)
	if err != nil {
		v.Logger.Error().Err(err).Str("request_key", env.RequestKey).Msg("issue lookup token")
		return out.reject(FailureLookup, msgLookupFailed, LookupFailureStatus), false
	}
	resp, err := v.Lookup.OrderDetail(ctx, params, token)
	if err != nil {
		v.Logger.Warn().Err(err).Str("request_key", env.RequestKey).Msg("order lookup failed")
		return out.reject(FailureLookup, msgLookupFailed, LookupFailureStatus), false
	}
	out.Details["lookup_status"] = resp.StatusCode
	out.Details["lookup_response"] = decodeJSONObject(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return out.reject(FailureLookup, msgLookupFailed, LookupFailureStatus), false
	}
	looked := parseLookupOrder(resp.Body)
	if !looked.MrcOrderID.Valid || looked.MrcOrderID.Value != env.RequestKey {
		return out.reject(FailureAuthenticate, msgLookupMismatch, 0), false
	}
	out.Order = out.Order.Merge(looked)
	if looked.TxnID.Valid {
		out.TransactionID = looked.TxnID.Value
	}
	return out, true
}

// PaidAmount applies the profile's formula, rounded to two places.
func (v Verifier) PaidAmount(order OrderData, txn TxnData) decimal.Decimal {
	switch v.Profile.Paid {
	case PaidTotalMinusTax:
		return order.TotalAmount.OrZero().Sub(order.TaxFee.OrZero()).Round(2)
	default:
		return txn.Amount.OrZero().Add(txn.FeeAmount.OrZero()).Round(2)
	}
}

// IsReceived compares order.stat with the sentinel token by token, so the
// integer 2 and the string "2" are different values.
func (v Verifier) IsReceived(order OrderData) bool {
	if len(order.Stat) == 0 {
		return false
	}
	var got, want bytes.Buffer
	if err := json.Compact(&got, order.Stat); err != nil {
		return false
	}
	if err := json.Compact(&want, v.Profile.ReceivedStat); err != nil {
		return false
	}
	return bytes.Equal(got.Bytes(), want.Bytes())
}

// VerifySignature recomputes the HMAC-SHA256 of the canonical body without its
// sign field and compares it in constant time.
func VerifySignature(rawBody []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	expected, err := ComputeSignature(rawBody, secret)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ComputeSignature returns the lowercase hex HMAC the gateway sends as sign.
func ComputeSignature(rawBody []byte, secret string) (string, error) {
	canonical, err := CanonicalWithout(rawBody, "sign")
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func parseLookupOrder(body []byte) OrderData {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return OrderData{}
	}
	raw, ok := top["data"]
	if !ok || !isObject(raw) {
		return OrderData{}
	}
	var order OrderData
	if err := json.Unmarshal(raw, &order); err != nil {
		return OrderData{}
	}
	return order
}

func callbackLogDetails(env CallbackEnvelope) map[string]any {
	details := make(map[string]any, len(env.Fields)+2)
	for k, v := range env.Fields {
		details[k] = v
	}
	details["raw"] = string(env.RawBody)
	if env.SourceIP != "" {
		details["ip"] = env.SourceIP
	}
	return details
}
