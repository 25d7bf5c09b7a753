package payment

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// FlexString holds a JSON scalar that gateways send either quoted or as a bare
// number. Objects, arrays and null leave it unset instead of failing the decode.
type FlexString struct {
	Value string
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	*f = FlexString{}
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil
		}
		*f = FlexString{Value: s, Valid: true}
	case '{', '[', 'n':
	default:
		*f = FlexString{Value: string(trimmed), Valid: true}
	}
	return nil
}

// String returns the value or "" when unset.
func (f FlexString) String() string {
	if !f.Valid {
		return ""
	}
	return f.Value
}

// Amount is an optional decimal. Missing, null or unparsable values are unset
// and count as zero in cost arithmetic.
type Amount struct {
	Value decimal.Decimal
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	*a = Amount{}
	var f FlexString
	_ = f.UnmarshalJSON(b)
	if !f.Valid {
		return nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(f.Value))
	if err != nil {
		return nil
	}
	*a = Amount{Value: d, Valid: true}
	return nil
}

// OrZero returns the value, or zero when unset.
func (a Amount) OrZero() decimal.Decimal {
	if !a.Valid {
		return decimal.Zero
	}
	return a.Value
}

// OrderData is the order section of a callback or order-detail response.
type OrderData struct {
	ID          FlexString      `json:"id"`
	MrcOrderID  FlexString      `json:"mrc_order_id"`
	TxnID       FlexString      `json:"txn_id"`
	Stat        json.RawMessage `json:"stat"`
	TotalAmount Amount          `json:"total_amount"`
	TaxFee      Amount          `json:"tax_fee"`
}

// Merge overlays every field set in authoritative onto o.
func (o OrderData) Merge(authoritative OrderData) OrderData {
	if authoritative.ID.Valid {
		o.ID = authoritative.ID
	}
	if authoritative.MrcOrderID.Valid {
		o.MrcOrderID = authoritative.MrcOrderID
	}
	if authoritative.TxnID.Valid {
		o.TxnID = authoritative.TxnID
	}
	if len(authoritative.Stat) > 0 {
		o.Stat = authoritative.Stat
	}
	if authoritative.TotalAmount.Valid {
		o.TotalAmount = authoritative.TotalAmount
	}
	if authoritative.TaxFee.Valid {
		o.TaxFee = authoritative.TaxFee
	}
	return o
}

// TxnData is the txn section of a callback.
type TxnData struct {
	Amount    Amount `json:"amount"`
	FeeAmount Amount `json:"fee_amount"`
}

// CallbackEnvelope is a parsed inbound webhook. It is consumed once.
type CallbackEnvelope struct {
	RawBody       []byte
	Order         OrderData
	Txn           TxnData
	Signature     string
	SourceIP      string
	RequestKey    string
	TransactionID string
	Fields        map[string]any
}

// ParseCallback decodes a webhook body permissively. A body that is not a JSON
// object, or sections of the wrong type, yield empty sections rather than an
// error so the verifier can still answer the gateway.
func ParseCallback(raw []byte, sourceIP string) CallbackEnvelope {
	env := CallbackEnvelope{RawBody: raw, SourceIP: sourceIP, Fields: map[string]any{}}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return env
	}
	if b, ok := top["order"]; ok && isObject(b) {
		var order OrderData
		if err := json.Unmarshal(b, &order); err == nil {
			env.Order = order
		}
	}
	if b, ok := top["txn"]; ok && isObject(b) {
		var txn TxnData
		if err := json.Unmarshal(b, &txn); err == nil {
			env.Txn = txn
		}
	}
	if b, ok := top["sign"]; ok {
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			env.Signature = s
		}
	}
	_ = json.Unmarshal(raw, &env.Fields)

	env.RequestKey = env.Order.MrcOrderID.String()
	env.TransactionID = env.Order.TxnID.String()
	return env
}

func isObject(b json.RawMessage) bool {
	trimmed := bytes.TrimSpace(b)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
