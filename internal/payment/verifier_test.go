package payment_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/payment-kingcard/internal/payment"
	"github.com/noah-isme/payment-kingcard/internal/resilience"
)

func signedBody(t *testing.T, unsigned, secret string) []byte {
	t.Helper()
	sig, err := payment.ComputeSignature([]byte(unsigned), secret)
	require.NoError(t, err)
	return []byte(strings.TrimSuffix(unsigned, "}") + `,"sign":"` + sig + `"}`)
}

func signatureVerifier(ledger *mockLedger) payment.Verifier {
	return payment.Verifier{ProviderID: "kingcard", Profile: payment.SCard(), Purchases: ledger, Logger: zerolog.Nop()}
}

const scenarioC = `{"order":{"mrc_order_id":"R1","stat":2},"txn":{"amount":100000,"fee_amount":0}}`

func TestVerifySignatureReceived(t *testing.T) {
	ledger := newMockLedger()
	ledger.addPurchase("R1", "100000.00")

	env := payment.ParseCallback(signedBody(t, scenarioC, testAPISecret), "203.0.113.9")
	out := signatureVerifier(ledger).Verify(context.Background(), env)

	require.True(t, out.Accepted)
	require.Equal(t, payment.ResultReceived, out.Result)
	require.Equal(t, payment.FailureNone, out.Failure)
	require.Equal(t, payment.LogInfo, out.LogType)
	require.Equal(t, http.StatusOK, out.ResponseStatus())
	require.Equal(t, "R1", out.RequestKey)
	require.Equal(t, "203.0.113.9", out.Details["ip"])
	require.Contains(t, out.Details["raw"], `"mrc_order_id":"R1"`)
}

func TestVerifyTamperedSignature(t *testing.T) {
	ledger := newMockLedger()
	ledger.addPurchase("R1", "100000.00")

	body := signedBody(t, scenarioC, "wrong-secret")
	out := signatureVerifier(ledger).Verify(context.Background(), payment.ParseCallback(body, ""))

	require.False(t, out.Accepted)
	require.Equal(t, payment.ResultRejected, out.Result)
	require.Equal(t, payment.FailureAuthenticate, out.Failure)
	require.Equal(t, "Invalid signature", out.LogMessage)
	require.Equal(t, payment.LogError, out.LogType)
	require.NotEqual(t, http.StatusOK, out.ResponseStatus())
	require.Equal(t, payment.DefaultRejectStatus, out.ResponseStatus())
}

func TestVerifySignatureCoversEveryField(t *testing.T) {
	ledger := newMockLedger()
	ledger.addPurchase("R1", "100000.00")

	body := signedBody(t, scenarioC, testAPISecret)
	forged := []byte(strings.Replace(string(body), `"fee_amount":0`, `"fee_amount":1`, 1))
	out := signatureVerifier(ledger).Verify(context.Background(), payment.ParseCallback(forged, ""))
	require.Equal(t, payment.FailureAuthenticate, out.Failure)

	missing := []byte(scenarioC)
	out = signatureVerifier(ledger).Verify(context.Background(), payment.ParseCallback(missing, ""))
	require.Equal(t, payment.FailureAuthenticate, out.Failure)
}

func TestVerifyMissingRequestKeyAcknowledges(t *testing.T) {
	ledger := newMockLedger()
	ledger.addPurchase("R1", "100000.00")

	for _, body := range []string{
		`{"order":{"stat":2},"txn":{"amount":100000,"fee_amount":0},"sign":"x"}`,
		`{"order":[],"sign":"x"}`,
		`not json`,
		`{}`,
	} {
		out := signatureVerifier(ledger).Verify(context.Background(), payment.ParseCallback([]byte(body), ""))
		require.False(t, out.Accepted, body)
		require.Equal(t, payment.ResultRejected, out.Result, body)
		require.Equal(t, payment.FailureUnknownOrder, out.Failure, body)
		require.Equal(t, http.StatusOK, out.ResponseStatus(), body)
		require.Equal(t, payment.LogError, out.LogType, body)
	}
}

func TestVerifyUnknownRequestKeyRetries(t *testing.T) {
	ledger := newMockLedger()
	body := signedBody(t, scenarioC, testAPISecret)

	out := signatureVerifier(ledger).Verify(context.Background(), payment.ParseCallback(body, ""))
	require.Equal(t, payment.FailureUnknownOrder, out.Failure)
	require.Equal(t, payment.DefaultRejectStatus, out.ResponseStatus())

	ledger.findErr = errors.New("db down")
	out = signatureVerifier(ledger).Verify(context.Background(), payment.ParseCallback(body, ""))
	require.Equal(t, payment.FailureLedger, out.Failure)
	require.Equal(t, payment.DefaultRejectStatus, out.ResponseStatus())
}

func TestVerifyCostMismatch(t *testing.T) {
	ledger := newMockLedger()
	ledger.addPurchase("R1", "100000.00")

	body := signedBody(t, `{"order":{"mrc_order_id":"R1","stat":2},"txn":{"amount":90000,"fee_amount":0}}`, testAPISecret)
	out := signatureVerifier(ledger).Verify(context.Background(), payment.ParseCallback(body, ""))

	require.False(t, out.Accepted)
	require.Equal(t, payment.FailureCostMismatch, out.Failure)
	require.Equal(t, "Invalid cost amount", out.LogMessage)
	require.NotEqual(t, payment.ResultReceived, out.Result)
	require.Equal(t, "100000.00", out.Details["expected_amount"])
	require.Equal(t, "90000.00", out.Details["paid_amount"])
	require.Equal(t, payment.DefaultRejectStatus, out.ResponseStatus())
}

func TestVerifyCostUsesDecimalArithmetic(t *testing.T) {
	ledger := newMockLedger()
	ledger.addPurchase("R1", "0.30")

	body := signedBody(t, `{"order":{"mrc_order_id":"R1","stat":2},"txn":{"amount":"0.1","fee_amount":0.2}}`, testAPISecret)
	out := signatureVerifier(ledger).Verify(context.Background(), payment.ParseCallback(body, ""))
	require.True(t, out.Accepted)
	require.Equal(t, payment.ResultReceived, out.Result)
}

func TestVerifyStatSentinelIsStrict(t *testing.T) {
	ledger := newMockLedger()
	ledger.addPurchase("R1", "100000.00")

	for stat, want := range map[string]payment.PaymentResult{
		`2`:    payment.ResultReceived,
		`"2"`:  payment.ResultPending,
		`1`:    payment.ResultPending,
		`null`: payment.ResultPending,
	} {
		body := signedBody(t, `{"order":{"mrc_order_id":"R1","stat":`+stat+`},"txn":{"amount":100000,"fee_amount":0}}`, testAPISecret)
		out := signatureVerifier(ledger).Verify(context.Background(), payment.ParseCallback(body, ""))
		require.True(t, out.Accepted, stat)
		require.Equal(t, want, out.Result, stat)
	}

	body := signedBody(t, `{"order":{"mrc_order_id":"R1"},"txn":{"amount":100000,"fee_amount":0}}`, testAPISecret)
	out := signatureVerifier(ledger).Verify(context.Background(), payment.ParseCallback(body, ""))
	require.Equal(t, payment.ResultPending, out.Result)
	require.Equal(t, http.StatusOK, out.ResponseStatus())
}

func TestVerifySignatureWithUnicodeAndSlashes(t *testing.T) {
	ledger := newMockLedger()
	ledger.addPurchase("R1", "100000.00")

	unsigned := `{"order":{"mrc_order_id":"R1","stat":2,"note":"Thẻ cào / ok"},"txn":{"amount":100000,"fee_amount":0}}`
	out := signatureVerifier(ledger).Verify(context.Background(), payment.ParseCallback(signedBody(t, unsigned, testAPISecret), ""))
	require.True(t, out.Accepted)
}

type lookupGateway struct {
	status int
	body   string
	calls  int
	query  map[string]string
}

func (g *lookupGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.calls++
	g.query = map[string]string{
		"path":         r.URL.Path,
		"id":           r.URL.Query().Get("id"),
		"mrc_order_id": r.URL.Query().Get("mrc_order_id"),
		"jwt":          r.URL.Query().Get("jwt"),
	}
	w.WriteHeader(g.status)
	_, _ = w.Write([]byte(g.body))
}

func lookupVerifier(t *testing.T, ledger *mockLedger, gw *lookupGateway) payment.Verifier {
	t.Helper()
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)
	profile := payment.KingCard()
	profile.Endpoint = srv.URL
	return payment.Verifier{
		Profile:   profile,
		Purchases: ledger,
		Lookup: payment.GatewayClient{
			Profile: profile,
			HTTP:    resilience.HTTPClient{Client: srv.Client(), Timeout: time.Second},
		},
		Logger: zerolog.Nop(),
	}
}

const lookupCallback = `{"order":{"id":"55","mrc_order_id":"R1","stat":"c","total_amount":"1","tax_fee":"0"}}`

func TestVerifyLookupMergesAuthoritativeOrder(t *testing.T) {
	ledger := newMockLedger()
	ledger.addPurchase("R1", "100000.00")
	gw := &lookupGateway{status: http.StatusOK, body: `{"code":0,"data":{"id":55,"mrc_order_id":"R1","txn_id":"BK-9","stat":"c","total_amount":"105000.00","tax_fee":"5000.00"}}`}

	out := lookupVerifier(t, ledger, gw).Verify(context.Background(), payment.ParseCallback([]byte(lookupCallback), ""))

	require.True(t, out.Accepted)
	require.Equal(t, payment.ResultReceived, out.Result)
	require.Equal(t, "BK-9", out.TransactionID)
	require.Equal(t, 1, gw.calls)
	require.Equal(t, "/payment/api/v4/order/detail", gw.query["path"])
	require.Equal(t, "55", gw.query["id"])
	require.Equal(t, "R1", gw.query["mrc_order_id"])

	tok, err := payment.VerifyToken(gw.query["jwt"], testAPISecret, time.Now())
	require.NoError(t, err)
	require.Equal(t, testAPIKey, tok.Issuer())
}

func TestVerifyLookupOverridesForgedAmounts(t *testing.T) {
	ledger := newMockLedger()
	ledger.addPurchase("R1", "100000.00")
	forged := `{"order":{"id":"55","mrc_order_id":"R1","stat":"c","total_amount":"100000","tax_fee":"0"}}`
	gw := &lookupGateway{status: http.StatusOK, body: `{"data":{"mrc_order_id":"R1","stat":"p","total_amount":"10000","tax_fee":"0"}}`}

	out := lookupVerifier(t, ledger, gw).Verify(context.Background(), payment.ParseCallback([]byte(forged), ""))
	require.Equal(t, payment.FailureCostMismatch, out.Failure)
}

func TestVerifyLookupFailures(t *testing.T) {
	cases := map[string]struct {
		gw      *lookupGateway
		failure payment.FailureKind
		status  int
	}{
		"non-200": {
			gw:      &lookupGateway{status: http.StatusNotFound, body: `{"message":"not found"}`},
			failure: payment.FailureLookup,
			status:  payment.LookupFailureStatus,
		},
		"mismatched order": {
			gw:      &lookupGateway{status: http.StatusOK, body: `{"data":{"mrc_order_id":"R2","total_amount":"100000","tax_fee":"0","stat":"c"}}`},
			failure: payment.FailureAuthenticate,
			status:  payment.DefaultRejectStatus,
		},
		"no data": {
			gw:      &lookupGateway{status: http.StatusOK, body: `{"data":[]}`},
			failure: payment.FailureAuthenticate,
			status:  payment.DefaultRejectStatus,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ledger := newMockLedger()
			ledger.addPurchase("R1", "100000.00")
			out := lookupVerifier(t, ledger, tc.gw).Verify(context.Background(), payment.ParseCallback([]byte(lookupCallback), ""))
			require.False(t, out.Accepted)
			require.Equal(t, tc.failure, out.Failure)
			require.Equal(t, tc.status, out.ResponseStatus())
		})
	}
}

func TestVerifyLookupTransportFailure(t *testing.T) {
	ledger := newMockLedger()
	ledger.addPurchase("R1", "100000.00")
	profile := payment.KingCard()
	profile.Endpoint = "http://127.0.0.1:1"
	v := payment.Verifier{
		Profile:   profile,
		Purchases: ledger,
		Lookup: payment.GatewayClient{
			Profile: profile,
			HTTP:    resilience.HTTPClient{Client: &http.Client{}, Timeout: 200 * time.Millisecond},
		},
		Logger: zerolog.Nop(),
	}

	out := v.Verify(context.Background(), payment.ParseCallback([]byte(lookupCallback), ""))
	require.Equal(t, payment.FailureLookup, out.Failure)
	require.Equal(t, http.StatusBadRequest, out.ResponseStatus())
}
