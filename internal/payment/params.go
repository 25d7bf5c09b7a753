package payment

import (
	"net/url"
	"strconv"
)

// OutboundPaymentParams is the strike-card form body. Field order matches the
// gateway documentation and is preserved in the token claim.
type OutboundPaymentParams struct {
	OrderID    string `json:"mrc_order_id"`
	Telecom    string `json:"telco"`
	Amount     int64  `json:"amount"`
	CardCode   string `json:"code"`
	CardSerial string `json:"serial"`
	WebhookURL string `json:"webhooks"`
}

// BuildParams maps a purchase onto gateway parameters. The cost is truncated to
// whole currency units; card fields stay blank until user input is applied.
func BuildParams(purchase PurchaseRequest, webhookURL string) OutboundPaymentParams {
	return OutboundPaymentParams{
		OrderID:    purchase.RequestKey,
		Amount:     purchase.CostAmount.IntPart(),
		WebhookURL: webhookURL,
	}
}

// WithCard returns a copy of p carrying validated card details.
func (p OutboundPaymentParams) WithCard(profile GatewayProfile, in ValidatedInput) OutboundPaymentParams {
	p.Telecom = profile.WireTelecom(in.Telecom)
	p.CardCode = in.Code
	p.CardSerial = in.Serial
	return p
}

// Form encodes the params as a form body.
func (p OutboundPaymentParams) Form() url.Values {
	v := url.Values{}
	v.Set("mrc_order_id", p.OrderID)
	v.Set("telco", p.Telecom)
	v.Set("amount", strconv.FormatInt(p.Amount, 10))
	v.Set("code", p.CardCode)
	v.Set("serial", p.CardSerial)
	v.Set("webhooks", p.WebhookURL)
	return v
}

// Redacted hides all but the last four characters of the card code for logs.
func (p OutboundPaymentParams) Redacted() OutboundPaymentParams {
	p.CardCode = mask(p.CardCode)
	return p
}

func mask(s string) string {
	if len(s) <= 4 {
		return s
	}
	out := make([]byte, len(s))
	for i := range out {
		if i < len(s)-4 {
			out[i] = '*'
		} else {
			out[i] = s[i]
		}
	}
	return string(out)
}
