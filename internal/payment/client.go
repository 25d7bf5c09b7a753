package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/noah-isme/payment-kingcard/internal/resilience"
)

// ErrTransportFailed classifies timeouts, DNS failures, resets and an open
// circuit. The underlying error is logged, never surfaced to end users.
var ErrTransportFailed = errors.New("payment: gateway transport failed")

const maxGatewayBody = 1 << 20

// GatewayResponse is the raw result of a gateway call.
type GatewayResponse struct {
	StatusCode int
	Body       []byte
}

// GatewayClient performs the two outbound gateway calls.
type GatewayClient struct {
	Profile GatewayProfile
	HTTP    resilience.HTTPClient
}

// StrikeCard posts params as a form body with the token in the jwt query parameter.
func (c GatewayClient) StrikeCard(ctx context.Context, params OutboundPaymentParams, token SignedToken) (GatewayResponse, error) {
	u, err := withJWT(c.Profile.SubmitURL(), nil, token)
	if err != nil {
		return GatewayResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(params.Form().Encode()))
	if err != nil {
		return GatewayResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return c.do(ctx, "strike_card", req)
}

// LookupParams identifies an order for the order-detail endpoint.
type LookupParams struct {
	ID         string `json:"id"`
	MrcOrderID string `json:"mrc_order_id"`
}

// OrderDetail fetches the authoritative order record.
func (c GatewayClient) OrderDetail(ctx context.Context, params LookupParams, token SignedToken) (GatewayResponse, error) {
	q := url.Values{}
	q.Set("id", params.ID)
	q.Set("mrc_order_id", params.MrcOrderID)
	u, err := withJWT(c.Profile.LookupURL(), q, token)
	if err != nil {
		return GatewayResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return GatewayResponse{}, err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(ctx, "order_detail", req)
}

func (c GatewayClient) do(ctx context.Context, operation string, req *http.Request) (GatewayResponse, error) {
	cl := c.HTTP
	cl.Target = operation
	resp, cancel, err := cl.Do(ctx, req)
	if err != nil {
		return GatewayResponse{}, fmt.Errorf("%w: %v", ErrTransportFailed, err)
	}
	defer cancel()
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGatewayBody))
	if err != nil {
		return GatewayResponse{StatusCode: resp.StatusCode}, fmt.Errorf("%w: read body: %v", ErrTransportFailed, err)
	}
	return GatewayResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

func withJWT(raw string, q url.Values, token SignedToken) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("payment: gateway url: %w", err)
	}
	if q == nil {
		q = url.Values{}
	}
	q.Set("jwt", token.Compact)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SubmitResponse is the strike-card response schema. Code is nil unless the
// body carried a JSON integer; a quoted or fractional code is not a success.
type SubmitResponse struct {
	Code    *int
	Message string
	ID      FlexString
	OrderID FlexString
}

// ParseSubmitResponse decodes a strike-card body. Only a body that is not a JSON
// object is an error; an unexpected data shape leaves the ids empty.
func ParseSubmitResponse(body []byte) (SubmitResponse, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return SubmitResponse{}, fmt.Errorf("payment: decode gateway response: %w", err)
	}
	var out SubmitResponse
	if raw, ok := top["code"]; ok {
		var code int
		if err := json.Unmarshal(raw, &code); err == nil {
			out.Code = &code
		}
	}
	if raw, ok := top["message"]; ok {
		var msg FlexString
		if err := json.Unmarshal(raw, &msg); err == nil {
			out.Message = msg.String()
		}
	}
	if raw, ok := top["data"]; ok {
		var data struct {
			ID      FlexString `json:"id"`
			OrderID FlexString `json:"order_id"`
		}
		if err := json.Unmarshal(raw, &data); err == nil {
			out.ID = data.ID
			out.OrderID = data.OrderID
		}
	}
	return out, nil
}

// HasCode reports whether the response carried the integer code want.
func (r SubmitResponse) HasCode(want int) bool {
	return r.Code != nil && *r.Code == want
}

// TransactionID extracts the configured transaction id field.
func (r SubmitResponse) TransactionID(field string) string {
	switch field {
	case "order_id":
		return r.OrderID.String()
	default:
		return r.ID.String()
	}
}

// decodeJSONObject returns the body as an untyped value for audit logs.
func decodeJSONObject(body []byte) any {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return v
}
