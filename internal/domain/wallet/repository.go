package wallet

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Repository reads wallets and applies ledger entries. The *Tx methods run
// inside a caller-owned transaction so a balance change commits together with
// whatever caused it.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := r.db.GetContext(ctx, &w, `SELECT user_id, balance, updated_at FROM wallets WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &Wallet{UserID: userID, Balance: decimal.Zero, UpdatedAt: time.Now()}, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM wallet_transactions WHERE user_id = $1`, userID); err != nil {
		return nil, 0, err
	}

	var items []*Transaction
	err := r.db.SelectContext(ctx, &items, `
		SELECT id, user_id, amount, type, description, reference, balance_after, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CreditTx adds amount to the user's wallet and records a CREDIT row.
func (r *Repository) CreditTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal, reference, description string) (*Transaction, error) {
	return r.apply(ctx, tx, userID, amount, TransactionTypeCredit, reference, description)
}

// DebitTx subtracts amount from the user's wallet and records a DEBIT row.
func (r *Repository) DebitTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal, reference, description string) (*Transaction, error) {
	return r.apply(ctx, tx, userID, amount.Neg(), TransactionTypeDebit, reference, description)
}

func (r *Repository) lockWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (decimal.Decimal, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance)
		VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return decimal.Zero, err
	}

	var balance decimal.Decimal
	err := tx.GetContext(ctx, &balance, `SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE`, userID)
	return balance, err
}

func (r *Repository) referenceExists(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, reference string) (bool, error) {
	if reference == "" {
		return false, nil
	}
	var exists bool
	err := tx.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM wallet_transactions WHERE user_id = $1 AND reference = $2)
	`, userID, reference)
	return exists, err
}

func (r *Repository) apply(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, delta decimal.Decimal, txType TransactionType, reference, description string) (*Transaction, error) {
	if delta.IsZero() {
		return nil, ErrInvalidAmount
	}

	balance, err := r.lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	exists, err := r.referenceExists(ctx, tx, userID, reference)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateReference
	}

	next := balance.Add(delta)
	if next.IsNegative() {
		return nil, ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx, `UPDATE wallets SET balance = $1, updated_at = now() WHERE user_id = $2`, next, userID); err != nil {
		return nil, err
	}

	t := &Transaction{
		ID:           uuid.New(),
		UserID:       userID,
		Amount:       delta.Abs(),
		Type:         txType,
		Description:  description,
		BalanceAfter: next,
		CreatedAt:    time.Now(),
	}
	if reference != "" {
		t.Reference = &reference
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (id, user_id, amount, type, description, reference, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, t.UserID, t.Amount, string(t.Type), t.Description, t.Reference, t.BalanceAfter, t.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrDuplicateReference
		}
		return nil, err
	}
	return t, nil
}
