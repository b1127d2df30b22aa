package payment

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents payment status
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusRefunded   Status = "REFUNDED"
	StatusCancelled  Status = "CANCELLED"
)

// IsTerminal reports whether no further gateway update is expected.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRefunded, StatusCancelled:
		return true
	}
	return false
}

// Type is what a payment pays for
type Type string

const (
	TypeWalletDeposit Type = "WALLET_DEPOSIT"
	TypeOrder         Type = "ORDER"
	TypeAppointment   Type = "APPOINTMENT"
)

// Provider represents payment provider
type Provider string

const (
	ProviderYoco    Provider = "yoco"
	ProviderPayFast Provider = "payfast"
)

// JSONRawMessage handles NULL jsonb columns
type JSONRawMessage []byte

func (j *JSONRawMessage) Scan(src any) error {
	if src == nil {
		*j = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = []byte(v)
	default:
		return fmt.Errorf("unsupported type: %T", src)
	}
	return nil
}

// Value sends the document as text so postgres parses it as jsonb.
func (j JSONRawMessage) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

func (j JSONRawMessage) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// Payment is one attempted external charge
type Payment struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	UserID        uuid.UUID       `db:"user_id" json:"user_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Currency      string          `db:"currency" json:"currency"`
	Status        Status          `db:"status" json:"status"`
	Type          Type            `db:"type" json:"type"`
	Provider      Provider        `db:"provider" json:"provider"`
	ProviderRef   sql.NullString  `db:"provider_ref" json:"-"`
	ProviderData  JSONRawMessage  `db:"provider_data" json:"-"`
	OrderID       uuid.NullUUID   `db:"order_id" json:"-"`
	AppointmentID uuid.NullUUID   `db:"appointment_id" json:"-"`
	Description   sql.NullString  `db:"description" json:"-"`
	FailureReason sql.NullString  `db:"failure_reason" json:"-"`
	CompletedAt   sql.NullTime    `db:"completed_at" json:"-"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// Notification is a verified gateway report about one payment. PaymentID or
// ProviderRef identifies the row; Amount, when set, must match it.
type Notification struct {
	Provider      Provider
	PaymentID     *uuid.UUID
	ProviderRef   string
	Status        Status
	Payload       JSONRawMessage
	FailureReason string
	Amount        *decimal.Decimal
}

// Outcome describes what a reconciliation did
type Outcome struct {
	Payment   *Payment
	Previous  Status
	Duplicate bool
	// Subject names what was paid for in user-facing messages.
	Subject string
}

// Payable is something a payment can be initiated for
type Payable struct {
	OwnerID     uuid.UUID
	Amount      decimal.Decimal
	Description string
}
