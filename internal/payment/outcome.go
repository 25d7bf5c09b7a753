package payment

import "net/http"

// PaymentResult is the terminal payment state derived from a callback.
type PaymentResult string

const (
	ResultPending    PaymentResult = "pending"
	ResultReceived   PaymentResult = "received"
	ResultReinstated PaymentResult = "reinstated"
	ResultRejected   PaymentResult = "rejected"
)

// FailureKind labels why a callback was rejected.
type FailureKind string

const (
	FailureNone         FailureKind = ""
	FailureUnknownOrder FailureKind = "unknown_order"
	FailureLedger       FailureKind = "ledger_error"
	FailureAuthenticate FailureKind = "authentication_failed"
	FailureLookup       FailureKind = "lookup_failed"
	FailureCostMismatch FailureKind = "cost_mismatch"
)

const (
	// DefaultRejectStatus makes the gateway retry the webhook.
	DefaultRejectStatus = http.StatusForbidden
	LookupFailureStatus = http.StatusBadRequest
	// AckBody is the response body the gateway requires on success.
	AckBody = `{"err_code":0,"message":"ok"}`

	msgUnexpectedPayload = "Data received from BaoKim/KingCard does not contain the expected values."
	msgLedgerUnavailable = "Unable to load the purchase request."
	msgInvalidSignature  = "Invalid signature"
	msgLookupFailed      = "Unable to verify the order with the gateway."
	msgLookupMismatch    = "Order lookup does not match the callback."
	msgInvalidCost       = "Invalid cost amount"
	msgPaymentReceived   = "Payment received"
	msgPaymentPending    = "Payment pending"
)

// VerificationOutcome is the terminal result of verifying one callback.
// HTTPStatus zero means "use the default for this outcome".
type VerificationOutcome struct {
	Accepted      bool
	Result        PaymentResult
	Failure       FailureKind
	LogType       LogType
	LogMessage    string
	HTTPStatus    int
	RequestKey    string
	TransactionID string
	ProviderID    string
	Purchase      PurchaseRequest
	Order         OrderData
	Details       map[string]any
}

func (o VerificationOutcome) reject(kind FailureKind, message string, status int) VerificationOutcome {
	o.Accepted = false
	o.Result = ResultRejected
	o.Failure = kind
	o.LogType = LogError
	o.LogMessage = message
	o.HTTPStatus = status
	return o
}

// Acknowledged reports whether the gateway must receive the ok body.
func (o VerificationOutcome) Acknowledged() bool {
	return o.Result == ResultReceived || o.Result == ResultReinstated
}

// ResponseStatus resolves the HTTP status returned to the gateway. Only an
// unknown request key is acknowledged with 200 on rejection so the gateway
// keeps retrying every other failure.
func (o VerificationOutcome) ResponseStatus() int {
	if o.HTTPStatus != 0 {
		return o.HTTPStatus
	}
	if o.Accepted {
		return http.StatusOK
	}
	return DefaultRejectStatus
}

// Finalize folds the ledger result into the outcome and sets the ack body.
func Finalize(o VerificationOutcome, applied ApplyResult) VerificationOutcome {
	if !o.Accepted {
		return o
	}
	if applied.Reinstated && o.Result == ResultReceived {
		o.Result = ResultReinstated
	}
	if o.Acknowledged() {
		o.LogMessage = AckBody
	}
	return o
}
