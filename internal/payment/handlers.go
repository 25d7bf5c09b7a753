package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/payment-kingcard/internal/common"
)

const (
	msgThanks           = "Thank you for purchasing. Your payment is under process."
	msgDuplicateOrder   = "This order was already submitted. Please try again."
	msgProcessingFailed = "An error occurred while processing your payment."
)

// Submitter is the card submission use case behind the checkout form.
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) (SubmissionResult, error)
}

// Handler exposes the checkout endpoints.
type Handler struct {
	Profile   GatewayProfile
	Submitter Submitter
	ThanksURL string
	Logger    zerolog.Logger
}

type providersResp struct {
	Gateway   string          `json:"gateway"`
	Title     string          `json:"title"`
	Recurring bool            `json:"recurring"`
	Providers []TelecomOption `json:"providers"`
}

type submitResp struct {
	Status        SubmitStatus `json:"status"`
	TransactionID string       `json:"transactionId,omitempty"`
	Redirect      string       `json:"redirect,omitempty"`
}

// Providers lists the telecom issuers the checkout form offers.
func (h *Handler) Providers(w http.ResponseWriter, r *http.Request) {
	recurring, _ := SupportsRecurring()
	common.JSON(w, http.StatusOK, providersResp{
		Gateway:   h.Profile.Name,
		Title:     h.Profile.Title,
		Recurring: recurring,
		Providers: TelecomProviders(),
	})
}

// Submit redeems a card for the purchase named in the path.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Submitter == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable")
		return
	}
	if err := r.ParseForm(); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid form body")
		return
	}
	req := SubmitRequest{
		RequestKey: strings.TrimSpace(chi.URLParam(r, "requestKey")),
		Telecom:    r.PostForm.Get("telecom"),
		Code:       r.PostForm.Get("code"),
		Serial:     r.PostForm.Get("serial"),
	}
	if req.RequestKey == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "requestKey is required")
		return
	}
	res, err := h.Submitter.Submit(r.Context(), req)
	if err != nil {
		appErr := submitError(err)
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			h.Logger.Error().Err(err).Str("request_key", req.RequestKey).Msg("card submission failed")
		}
		common.WriteError(w, appErr)
		return
	}
	status := http.StatusOK
	if res.Status == SubmitPending {
		status = http.StatusAccepted
	}
	common.JSON(w, status, submitResp{
		Status:        res.Status,
		TransactionID: res.TransactionID,
		Redirect:      h.ThanksURL,
	})
}

// Thanks renders the post-submission message.
func (h *Handler) Thanks(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]string{"message": msgThanks})
}

func submitError(err error) *common.AppError {
	switch {
	case errors.Is(err, ErrInvalidTelecom):
		return common.NewAppError("INVALID_TELECOM", err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrInvalidCode):
		return common.NewAppError("INVALID_CODE", err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrInvalidSerial):
		return common.NewAppError("INVALID_SERIAL", err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrPurchaseNotFound):
		return common.NewAppError("PURCHASE_NOT_FOUND", "purchase request not found", http.StatusNotFound, err)
	case errors.Is(err, ErrDuplicateOrder):
		return common.NewAppError("DUPLICATE_ORDER", msgDuplicateOrder, http.StatusConflict, err)
	case errors.Is(err, ErrGatewayRejected), errors.Is(err, ErrTransportFailed):
		return common.NewAppError("PAYMENT_FAILED", msgProcessingFailed, http.StatusBadGateway, err)
	default:
		return common.NewAppError("PAYMENT_FAILED", msgProcessingFailed, http.StatusInternalServerError, err)
	}
}
