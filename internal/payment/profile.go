package payment

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AuthPolicy selects how an inbound callback is authenticated.
type AuthPolicy string

const (
	// AuthSignature recomputes the HMAC-SHA256 of the body against the sign field.
	AuthSignature AuthPolicy = "signature"
	// AuthLookup confirms the order with a server-to-server detail call.
	AuthLookup AuthPolicy = "lookup"
)

// PaidFormula selects how the paid amount is derived from callback data.
type PaidFormula string

const (
	// PaidTxnPlusFee sums txn.amount and txn.fee_amount.
	PaidTxnPlusFee PaidFormula = "txn_amount_plus_fee"
	// PaidTotalMinusTax subtracts order.tax_fee from order.total_amount.
	PaidTotalMinusTax PaidFormula = "order_total_minus_tax"
)

// AcceptancePolicy decides how a code==0 submission response is interpreted.
type AcceptancePolicy string

const (
	// AcceptWithTransaction requires a non-empty transaction id for immediate acceptance.
	AcceptWithTransaction AcceptancePolicy = "transaction"
	// AcceptPending treats code==0 as "wait for the webhook".
	AcceptPending AcceptancePolicy = "pending"
)

// GatewayProfile captures everything that differs between gateway variants.
type GatewayProfile struct {
	Name              string
	Title             string
	Endpoint          string
	SubmitPath        string
	LookupPath        string
	LowercaseTelecom  bool
	Auth              AuthPolicy
	ReceivedStat      json.RawMessage
	Paid              PaidFormula
	TransactionField  string
	Acceptance        AcceptancePolicy
	DuplicateOrderErr int
}

// SCard models the summocard strike-card endpoint with signed webhooks.
func SCard() GatewayProfile {
	return GatewayProfile{
		Name:              "scard",
		Title:             "kingcard.online",
		Endpoint:          "http://summocard.net",
		SubmitPath:        "/s-card/api/v1/strike-card",
		Auth:              AuthSignature,
		ReceivedStat:      json.RawMessage(`2`),
		Paid:              PaidTxnPlusFee,
		TransactionField:  "id",
		Acceptance:        AcceptWithTransaction,
		DuplicateOrderErr: 6,
	}
}

// KingCard models the BaoKim-backed kingcard endpoint with order-detail lookups.
func KingCard() GatewayProfile {
	return GatewayProfile{
		Name:              "kingcard",
		Title:             "kingcard.online",
		Endpoint:          "https://api.kingcard.online",
		SubmitPath:        "/kingcard/api/v1/strike-card",
		LookupPath:        "/payment/api/v4/order/detail",
		LowercaseTelecom:  true,
		Auth:              AuthLookup,
		ReceivedStat:      json.RawMessage(`"c"`),
		Paid:              PaidTotalMinusTax,
		TransactionField:  "order_id",
		Acceptance:        AcceptPending,
		DuplicateOrderErr: 6,
	}
}

// ProfileByName resolves a preset gateway profile, optionally overriding its endpoint.
func ProfileByName(name, endpoint string) (GatewayProfile, error) {
	var p GatewayProfile
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "scard":
		p = SCard()
	case "kingcard":
		p = KingCard()
	default:
		return GatewayProfile{}, fmt.Errorf("payment: unknown gateway profile %q", name)
	}
	if ep := strings.TrimSpace(endpoint); ep != "" {
		p.Endpoint = ep
	}
	return p, p.Validate()
}

// Validate reports configuration combinations the verifier cannot serve.
func (p GatewayProfile) Validate() error {
	if strings.TrimSpace(p.Endpoint) == "" {
		return fmt.Errorf("payment: gateway %s has no endpoint", p.Name)
	}
	if strings.TrimSpace(p.SubmitPath) == "" {
		return fmt.Errorf("payment: gateway %s has no submit path", p.Name)
	}
	switch p.Auth {
	case AuthSignature:
	case AuthLookup:
		if strings.TrimSpace(p.LookupPath) == "" {
			return fmt.Errorf("payment: gateway %s uses lookup auth without a lookup path", p.Name)
		}
	default:
		return fmt.Errorf("payment: gateway %s has unknown auth policy %q", p.Name, p.Auth)
	}
	switch p.Paid {
	case PaidTxnPlusFee, PaidTotalMinusTax:
	default:
		return fmt.Errorf("payment: gateway %s has unknown paid formula %q", p.Name, p.Paid)
	}
	if len(p.ReceivedStat) == 0 || !json.Valid(p.ReceivedStat) {
		return fmt.Errorf("payment: gateway %s has an invalid received sentinel", p.Name)
	}
	return nil
}

// SubmitURL returns the absolute strike-card endpoint.
func (p GatewayProfile) SubmitURL() string {
	return strings.TrimRight(p.Endpoint, "/") + p.SubmitPath
}

// LookupURL returns the absolute order-detail endpoint.
func (p GatewayProfile) LookupURL() string {
	return strings.TrimRight(p.Endpoint, "/") + p.LookupPath
}

// WireTelecom renders a canonical telecom code in the casing the gateway expects.
func (p GatewayProfile) WireTelecom(t Telecom) string {
	if p.LowercaseTelecom {
		return strings.ToLower(string(t))
	}
	return string(t)
}
