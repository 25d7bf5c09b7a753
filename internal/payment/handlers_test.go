package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/payment-kingcard/internal/payment"
)

type stubSubmitter struct {
	got payment.SubmitRequest
	res payment.SubmissionResult
	err error
}

func (s *stubSubmitter) Submit(ctx context.Context, req payment.SubmitRequest) (payment.SubmissionResult, error) {
	s.got = req
	return s.res, s.err
}

func newCheckoutRouter(sub payment.Submitter) http.Handler {
	h := &payment.Handler{Profile: payment.SCard(), Submitter: sub, ThanksURL: "/api/v1/payments/kingcard/thanks", Logger: zerolog.Nop()}
	r := chi.NewRouter()
	r.Get("/providers", h.Providers)
	r.Post("/{requestKey}", h.Submit)
	r.Get("/thanks", h.Thanks)
	return r
}

func postCard(t *testing.T, router http.Handler, key string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/"+key, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitHandlerSuccess(t *testing.T) {
	sub := &stubSubmitter{res: payment.SubmissionResult{Status: payment.SubmitAccepted, TransactionID: "TX1"}}
	rec := postCard(t, newCheckoutRouter(sub), "R1", url.Values{"telecom": {"MOBI"}, "code": {"1"}, "serial": {"2"}})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, payment.SubmitRequest{RequestKey: "R1", Telecom: "MOBI", Code: "1", Serial: "2"}, sub.got)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "accepted", body["status"])
	require.Equal(t, "TX1", body["transactionId"])
	require.Equal(t, "/api/v1/payments/kingcard/thanks", body["redirect"])
}

func TestSubmitHandlerPending(t *testing.T) {
	sub := &stubSubmitter{res: payment.SubmissionResult{Status: payment.SubmitPending}}
	rec := postCard(t, newCheckoutRouter(sub), "R1", url.Values{})
	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestSubmitHandlerErrorCodes(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{payment.ErrInvalidTelecom, http.StatusUnprocessableEntity, "INVALID_TELECOM"},
		{payment.ErrInvalidCode, http.StatusUnprocessableEntity, "INVALID_CODE"},
		{payment.ErrInvalidSerial, http.StatusUnprocessableEntity, "INVALID_SERIAL"},
		{payment.ErrPurchaseNotFound, http.StatusNotFound, "PURCHASE_NOT_FOUND"},
		{payment.ErrDuplicateOrder, http.StatusConflict, "DUPLICATE_ORDER"},
		{payment.ErrGatewayRejected, http.StatusBadGateway, "PAYMENT_FAILED"},
		{payment.ErrTransportFailed, http.StatusBadGateway, "PAYMENT_FAILED"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rec := postCard(t, newCheckoutRouter(&stubSubmitter{err: tc.err}), "R1", url.Values{})
			require.Equal(t, tc.status, rec.Code)

			var body struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tc.code, body.Error.Code)
			require.NotContains(t, body.Error.Message, "payment:")
		})
	}
}

func TestProvidersAndThanks(t *testing.T) {
	router := newCheckoutRouter(&stubSubmitter{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/providers", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var providers struct {
		Title     string                  `json:"title"`
		Recurring *bool                   `json:"recurring"`
		Providers []payment.TelecomOption `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &providers))
	require.Equal(t, "kingcard.online", providers.Title)
	require.NotNil(t, providers.Recurring)
	require.False(t, *providers.Recurring)
	require.Len(t, providers.Providers, 3)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/thanks", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "under process")
}
