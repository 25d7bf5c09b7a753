package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	dbgen "github.com/noah-isme/payment-kingcard/internal/db/gen"
	"github.com/noah-isme/payment-kingcard/internal/payment"
)

// Store defines the database operations required for provider logs.
type Store interface {
	InsertProviderLog(ctx context.Context, arg dbgen.InsertProviderLogParams) error
}

// Service appends gateway interaction records to payment_provider_logs.
type Service struct {
	Store  Store
	Now    func() time.Time
	NewID  func() uuid.UUID
	Logger zerolog.Logger
}

// Record persists rec. Failures are logged and returned; callers treat the
// audit trail as best effort.
func (s Service) Record(ctx context.Context, rec payment.LogRecord) error {
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	details, err := encodeDetails(rec.Details)
	if err != nil {
		s.Logger.Warn().Err(err).Str("request_key", rec.RequestKey).Msg("audit details not serializable")
		details = []byte(`{}`)
	}

	logType := rec.LogType
	if logType != payment.LogError {
		logType = payment.LogInfo
	}

	params := dbgen.InsertProviderLogParams{
		ProviderLogID:      pgtype.UUID{Bytes: s.newID(), Valid: true},
		PurchaseRequestKey: strings.TrimSpace(rec.RequestKey),
		ProviderID:         rec.ProviderID,
		TransactionID:      rec.TransactionID,
		SubscriberID:       rec.SubscriberID,
		LogType:            string(logType),
		LogMessage:         rec.LogMessage,
		LogDetails:         details,
		LogDate:            pgtype.Timestamptz{Time: s.now().UTC(), Valid: true},
	}
	if err := s.Store.InsertProviderLog(ctx, params); err != nil {
		s.Logger.Error().Err(err).Str("request_key", rec.RequestKey).Str("log_type", params.LogType).Msg("audit insert failed")
		return fmt.Errorf("insert provider log: %w", err)
	}
	return nil
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Service) newID() uuid.UUID {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.New()
}

func encodeDetails(details map[string]any) ([]byte, error) {
	if len(details) == 0 {
		return []byte(`{}`), nil
	}
	return json.Marshal(details)
}
