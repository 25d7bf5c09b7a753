package repo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	dbgen "github.com/noah-isme/payment-kingcard/internal/db/gen"
	"github.com/noah-isme/payment-kingcard/internal/payment"
	"github.com/noah-isme/payment-kingcard/internal/repo"
)

type ledgerStub struct {
	rows      map[string]dbgen.GetPurchaseWithProfileRow
	states    map[string]dbgen.PurchaseState
	completed []dbgen.CompletePurchaseParams
	getErr    error
	commits   int
	rollbacks int
}

func newLedgerStub() *ledgerStub {
	return &ledgerStub{
		rows:   map[string]dbgen.GetPurchaseWithProfileRow{},
		states: map[string]dbgen.PurchaseState{},
	}
}

func (s *ledgerStub) GetPurchaseWithProfile(ctx context.Context, requestKey string) (dbgen.GetPurchaseWithProfileRow, error) {
	if s.getErr != nil {
		return dbgen.GetPurchaseWithProfileRow{}, s.getErr
	}
	row, ok := s.rows[requestKey]
	if !ok {
		return dbgen.GetPurchaseWithProfileRow{}, pgx.ErrNoRows
	}
	return row, nil
}

func (s *ledgerStub) LockPurchaseState(ctx context.Context, requestKey string) (dbgen.PurchaseState, error) {
	state, ok := s.states[requestKey]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return state, nil
}

func (s *ledgerStub) CompletePurchase(ctx context.Context, arg dbgen.CompletePurchaseParams) (int64, error) {
	if s.states[arg.RequestKey] == dbgen.PurchaseStateCompleted {
		return 0, nil
	}
	s.states[arg.RequestKey] = dbgen.PurchaseStateCompleted
	s.completed = append(s.completed, arg)
	return 1, nil
}

func (s *ledgerStub) InTx(ctx context.Context, fn func(repo.LedgerQuerier) error) error {
	if err := fn(s); err != nil {
		s.rollbacks++
		return err
	}
	s.commits++
	return nil
}

func received(key, txn string) payment.VerificationOutcome {
	return payment.VerificationOutcome{
		Accepted:      true,
		Result:        payment.ResultReceived,
		RequestKey:    key,
		TransactionID: txn,
	}
}

func TestLedgerFindPurchaseMapsRow(t *testing.T) {
	stub := newLedgerStub()
	stub.rows["req-1"] = dbgen.GetPurchaseWithProfileRow{
		RequestKey:       "req-1",
		PaymentProfileID: 7,
		ProviderID:       "kingcard",
		CostAmount:       decimal.RequireFromString("50000.00"),
		CostCurrency:     "VND",
		PurchasableType:  "membership",
		State:            dbgen.PurchaseStatePending,
		ApiKey:           "key",
		ApiSecret:        "secret",
		LiveMode:         true,
	}
	ledger := &repo.Ledger{Q: stub, Tx: stub}

	purchase, profile, err := ledger.FindPurchase(context.Background(), "req-1")
	require.NoError(t, err)
	require.Equal(t, "req-1", purchase.RequestKey)
	require.True(t, purchase.CostAmount.Equal(decimal.NewFromInt(50000)))
	require.Equal(t, int64(7), purchase.PaymentProfileID)
	require.Equal(t, int64(7), profile.ID)
	require.Equal(t, "key", profile.APIKey)
	require.Equal(t, "secret", profile.APISecret)
	require.True(t, profile.LiveMode)
}

func TestLedgerFindPurchaseNotFound(t *testing.T) {
	stub := newLedgerStub()
	ledger := &repo.Ledger{Q: stub, Tx: stub}

	_, _, err := ledger.FindPurchase(context.Background(), "missing")
	require.ErrorIs(t, err, payment.ErrPurchaseNotFound)

	stub.getErr = errors.New("connection reset")
	_, _, err = ledger.FindPurchase(context.Background(), "missing")
	require.Error(t, err)
	require.NotErrorIs(t, err, payment.ErrPurchaseNotFound)
}

func TestLedgerApplyIsIdempotent(t *testing.T) {
	stub := newLedgerStub()
	stub.states["req-1"] = dbgen.PurchaseStatePending
	ledger := &repo.Ledger{Q: stub, Tx: stub}

	first, err := ledger.Apply(context.Background(), received("req-1", "T-1"))
	require.NoError(t, err)
	require.True(t, first.Applied)
	require.False(t, first.Reinstated)
	require.False(t, first.AlreadyApplied)

	second, err := ledger.Apply(context.Background(), received("req-1", "T-1"))
	require.NoError(t, err)
	require.False(t, second.Applied)
	require.True(t, second.AlreadyApplied)

	require.Len(t, stub.completed, 1)
	require.Equal(t, "T-1", stub.completed[0].TransactionID)
	require.Equal(t, 2, stub.commits)
}

func TestLedgerApplyReinstatesReversedPurchase(t *testing.T) {
	stub := newLedgerStub()
	stub.states["req-2"] = dbgen.PurchaseStateReversed
	ledger := &repo.Ledger{Q: stub, Tx: stub}

	result, err := ledger.Apply(context.Background(), received("req-2", "T-2"))
	require.NoError(t, err)
	require.True(t, result.Applied)
	require.True(t, result.Reinstated)
}

func TestLedgerApplySkipsNonReceivedOutcomes(t *testing.T) {
	stub := newLedgerStub()
	stub.states["req-3"] = dbgen.PurchaseStatePending
	ledger := &repo.Ledger{Q: stub, Tx: stub}

	pending := received("req-3", "")
	pending.Result = payment.ResultPending
	result, err := ledger.Apply(context.Background(), pending)
	require.NoError(t, err)
	require.Equal(t, payment.ApplyResult{}, result)
	require.Empty(t, stub.completed)
	require.Zero(t, stub.commits)
}

func TestLedgerApplyUnknownPurchaseRollsBack(t *testing.T) {
	stub := newLedgerStub()
	ledger := &repo.Ledger{Q: stub, Tx: stub}

	_, err := ledger.Apply(context.Background(), received("ghost", "T-9"))
	require.ErrorIs(t, err, payment.ErrPurchaseNotFound)
	require.Equal(t, 1, stub.rollbacks)
}
