package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrPurchaseNotFound is returned by a Ledger when the request key is unknown.
	ErrPurchaseNotFound = errors.New("payment: purchase request not found")
	// ErrNoRecurring reports that the gateway cannot bill on a schedule.
	ErrNoRecurring = errors.New("payment: recurring payments are not supported")
)

// PurchaseRequest is the ledger's record of a pending purchase.
type PurchaseRequest struct {
	RequestKey       string
	CostAmount       decimal.Decimal
	CostCurrency     string
	PurchasableType  string
	PaymentProfileID int64
	ProviderID       string
}

// PaymentProfile holds merchant credentials for the gateway.
type PaymentProfile struct {
	ID         int64
	ProviderID string
	APIKey     string
	APISecret  string
	LiveMode   bool
}

// ApplyResult reports what the ledger did with an accepted outcome.
type ApplyResult struct {
	Applied        bool
	Reinstated     bool
	AlreadyApplied bool
}

// Ledger resolves purchases and applies verified outcomes. Apply must be
// idempotent per request key.
type Ledger interface {
	FindPurchase(ctx context.Context, requestKey string) (PurchaseRequest, PaymentProfile, error)
	Apply(ctx context.Context, outcome VerificationOutcome) (ApplyResult, error)
}

// LogType classifies provider log records.
type LogType string

const (
	LogInfo  LogType = "info"
	LogError LogType = "error"
)

// LogRecord is an append-only audit entry for a gateway interaction.
type LogRecord struct {
	RequestKey    string
	ProviderID    string
	TransactionID string
	SubscriberID  string
	LogType       LogType
	LogMessage    string
	Details       map[string]any
}

// AuditSink persists LogRecords.
type AuditSink interface {
	Record(ctx context.Context, rec LogRecord) error
}

// SupportsRecurring always reports false; cards are single-use.
func SupportsRecurring() (bool, error) {
	return false, ErrNoRecurring
}
