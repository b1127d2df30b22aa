package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/gigmarket/gigmarket-api/internal/domain/wallet"
	"github.com/gigmarket/gigmarket-api/internal/pkg/database"
)

// Repository defines payment data access
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Payment, error)
	SetProviderRef(ctx context.Context, id uuid.UUID, ref string) error
	FindPayable(ctx context.Context, t Type, id uuid.UUID) (*Payable, error)

	// RunInTx runs fn in one transaction, committed when fn returns nil.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
}

// TxRepository is the reconciliation write set, bound to one transaction
type TxRepository interface {
	// LockPayment selects the payment FOR UPDATE, by id first and then by
	// the provider's reference.
	LockPayment(ctx context.Context, provider Provider, id *uuid.UUID, ref string) (*Payment, error)
	ApplyTransition(ctx context.Context, p *Payment) error
	ConfirmOrder(ctx context.Context, orderID uuid.UUID) error
	// ConfirmAppointment marks the appointment paid and confirmed and
	// returns its service name.
	ConfirmAppointment(ctx context.Context, appointmentID uuid.UUID) (string, error)
	CreditWallet(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference, description string) error
}

const paymentColumns = `id, user_id, amount, currency, status, type, provider, provider_ref, provider_data,
	order_id, appointment_id, description, failure_reason, completed_at, created_at, updated_at`

type repository struct {
	db      *sqlx.DB
	wallets *wallet.Repository
}

// NewRepository creates payment repository
func NewRepository(db *sqlx.DB, wallets *wallet.Repository) Repository {
	return &repository{db: db, wallets: wallets}
}

func (r *repository) Create(ctx context.Context, p *Payment) error {
	query := `
		INSERT INTO payments (id, user_id, amount, currency, status, type, provider, provider_ref,
			order_id, appointment_id, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.UserID,
		p.Amount,
		p.Currency,
		p.Status,
		p.Type,
		p.Provider,
		p.ProviderRef,
		p.OrderID,
		p.AppointmentID,
		p.Description,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	var p Payment
	err := r.db.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	var payments []*Payment
	err := r.db.SelectContext(ctx, &payments, query, userID, limit, offset)
	return payments, err
}

func (r *repository) SetProviderRef(ctx context.Context, id uuid.UUID, ref string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE payments SET provider_ref = $2, updated_at = NOW() WHERE id = $1`, id, ref)
	return err
}

func (r *repository) FindPayable(ctx context.Context, t Type, id uuid.UUID) (*Payable, error) {
	var query string
	switch t {
	case TypeOrder:
		query = `SELECT customer_id AS owner_id, total AS amount, 'Order' AS description, status = 'CONFIRMED' AS paid
			FROM orders WHERE id = $1`
	case TypeAppointment:
		query = `SELECT a.customer_id AS owner_id, s.price AS amount, s.name AS description, a.payment_mode = 'PAID' AS paid
			FROM appointments a JOIN services s ON s.id = a.service_id
			WHERE a.id = $1`
	default:
		return nil, fmt.Errorf("no payable for type %s", t)
	}

	var row struct {
		OwnerID     uuid.UUID       `db:"owner_id"`
		Amount      decimal.Decimal `db:"amount"`
		Description string          `db:"description"`
		Paid        bool            `db:"paid"`
	}
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPayableNotFound
	}
	if err != nil {
		return nil, err
	}
	if row.Paid {
		return nil, ErrAlreadyPaid
	}
	return &Payable{OwnerID: row.OwnerID, Amount: row.Amount, Description: row.Description}, nil
}

func (r *repository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return database.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, wallets: r.wallets})
	})
}

type txRepository struct {
	tx      *sqlx.Tx
	wallets *wallet.Repository
}

func (t *txRepository) LockPayment(ctx context.Context, provider Provider, id *uuid.UUID, ref string) (*Payment, error) {
	var p Payment
	if id != nil {
		err := t.tx.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, *id)
		if err == nil {
			return &p, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	if ref != "" {
		err := t.tx.GetContext(ctx, &p, `SELECT `+paymentColumns+`
			FROM payments
			WHERE provider = $1 AND provider_ref = $2
			ORDER BY created_at DESC
			LIMIT 1
			FOR UPDATE`, provider, ref)
		if err == nil {
			return &p, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	return nil, ErrPaymentNotFound
}

func (t *txRepository) ApplyTransition(ctx context.Context, p *Payment) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $2, provider_ref = $3, provider_data = $4, completed_at = $5, failure_reason = $6, updated_at = $7
		WHERE id = $1
	`, p.ID, p.Status, p.ProviderRef, p.ProviderData, p.CompletedAt, p.FailureReason, p.UpdatedAt)
	return err
}

func (t *txRepository) ConfirmOrder(ctx context.Context, orderID uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE orders SET status = 'CONFIRMED', updated_at = NOW() WHERE id = $1`, orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Warn().Str("order_id", orderID.String()).Msg("Paid order no longer exists")
	}
	return nil
}

func (t *txRepository) ConfirmAppointment(ctx context.Context, appointmentID uuid.UUID) (string, error) {
	var name string
	err := t.tx.GetContext(ctx, &name, `
		UPDATE appointments a
		SET payment_mode = 'PAID', status = 'CONFIRMED', updated_at = NOW()
		FROM services s
		WHERE a.id = $1 AND s.id = a.service_id
		RETURNING s.name
	`, appointmentID)
	if errors.Is(err, sql.ErrNoRows) {
		log.Warn().Str("appointment_id", appointmentID.String()).Msg("Paid appointment no longer exists")
		return "", nil
	}
	return name, err
}

func (t *txRepository) CreditWallet(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference, description string) error {
	_, err := t.wallets.CreditTx(ctx, t.tx, userID, amount, reference, description)
	if errors.Is(err, wallet.ErrDuplicateReference) {
		log.Warn().Str("user_id", userID.String()).Str("reference", reference).Msg("Wallet already credited for payment")
		return nil
	}
	return err
}
