package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	dbgen "github.com/noah-isme/payment-kingcard/internal/db/gen"
	"github.com/noah-isme/payment-kingcard/internal/payment"
)

// LedgerQuerier defines the sqlc generated queries used by Ledger.
type LedgerQuerier interface {
	GetPurchaseWithProfile(ctx context.Context, requestKey string) (dbgen.GetPurchaseWithProfileRow, error)
	LockPurchaseState(ctx context.Context, requestKey string) (dbgen.PurchaseState, error)
	CompletePurchase(ctx context.Context, arg dbgen.CompletePurchaseParams) (int64, error)
}

// TxRunner executes fn inside a database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(LedgerQuerier) error) error
}

// PoolTx runs ledger transactions on a pgx pool.
type PoolTx struct {
	Pool *pgxpool.Pool
}

// InTx begins a transaction, commits when fn succeeds and rolls back otherwise.
func (p PoolTx) InTx(ctx context.Context, fn func(LedgerQuerier) error) error {
	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(dbgen.New(p.Pool).WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ledger is the Postgres backed purchase ledger.
type Ledger struct {
	Q  LedgerQuerier
	Tx TxRunner
}

// NewLedger wires a Ledger on the pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{Q: dbgen.New(pool), Tx: PoolTx{Pool: pool}}
}

// FindPurchase loads the purchase and the credentials of its active profile.
func (l *Ledger) FindPurchase(ctx context.Context, requestKey string) (payment.PurchaseRequest, payment.PaymentProfile, error) {
	row, err := l.Q.GetPurchaseWithProfile(ctx, requestKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payment.PurchaseRequest{}, payment.PaymentProfile{}, payment.ErrPurchaseNotFound
		}
		return payment.PurchaseRequest{}, payment.PaymentProfile{}, fmt.Errorf("get purchase %s: %w", requestKey, err)
	}
	purchase := payment.PurchaseRequest{
		RequestKey:       row.RequestKey,
		CostAmount:       row.CostAmount,
		CostCurrency:     row.CostCurrency,
		PurchasableType:  row.PurchasableType,
		PaymentProfileID: row.PaymentProfileID,
		ProviderID:       row.ProviderID,
	}
	profile := payment.PaymentProfile{
		ID:         row.PaymentProfileID,
		ProviderID: row.ProviderID,
		APIKey:     row.ApiKey,
		APISecret:  row.ApiSecret,
		LiveMode:   row.LiveMode,
	}
	return purchase, profile, nil
}

// Apply marks the purchase completed. A purchase already completed is left
// untouched and reported as AlreadyApplied.
func (l *Ledger) Apply(ctx context.Context, outcome payment.VerificationOutcome) (payment.ApplyResult, error) {
	if !outcome.Accepted || outcome.Result != payment.ResultReceived {
		return payment.ApplyResult{}, nil
	}
	var result payment.ApplyResult
	err := l.Tx.InTx(ctx, func(q LedgerQuerier) error {
		state, err := q.LockPurchaseState(ctx, outcome.RequestKey)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return payment.ErrPurchaseNotFound
			}
			return fmt.Errorf("lock purchase %s: %w", outcome.RequestKey, err)
		}
		if state == dbgen.PurchaseStateCompleted {
			result.AlreadyApplied = true
			return nil
		}
		rows, err := q.CompletePurchase(ctx, dbgen.CompletePurchaseParams{
			RequestKey:    outcome.RequestKey,
			TransactionID: outcome.TransactionID,
		})
		if err != nil {
			return fmt.Errorf("complete purchase %s: %w", outcome.RequestKey, err)
		}
		if rows == 0 {
			result.AlreadyApplied = true
			return nil
		}
		result.Applied = true
		result.Reinstated = state == dbgen.PurchaseStateReversed
		return nil
	})
	if err != nil {
		return payment.ApplyResult{}, err
	}
	return result, nil
}
