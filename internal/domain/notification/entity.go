package notification

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type represents notification type
type Type string

const (
	TypePaymentReceived    Type = "payment_received"    // Payer: gateway confirmed the payment
	TypePaymentFailed      Type = "payment_failed"      // Payer: gateway reported a failure
	TypeRecurringBooked    Type = "recurring_booked"    // Provider: a customer booked a series
	TypeRecurringCancelled Type = "recurring_cancelled" // Counterparty: series cancelled
)

// Notification represents a user notification
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Type      Type            `db:"type" json:"type"`
	Title     string          `db:"title" json:"title"`
	Body      sql.NullString  `db:"body" json:"body,omitempty"`
	Data      json.RawMessage `db:"data" json:"data,omitempty"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	ReadAt    sql.NullTime    `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Data links a notification to the entities it is about
type Data struct {
	PaymentID     *uuid.UUID `json:"payment_id,omitempty"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	OrderID       *uuid.UUID `json:"order_id,omitempty"`
	RecurringID   *uuid.UUID `json:"recurring_id,omitempty"`
	Amount        string     `json:"amount,omitempty"`
}

// SetData encodes data to JSON
func (n *Notification) SetData(data *Data) {
	if data != nil {
		n.Data, _ = json.Marshal(data)
	}
}

// GetData decodes data from JSON
func (n *Notification) GetData() *Data {
	if len(n.Data) == 0 {
		return &Data{}
	}
	var data Data
	_ = json.Unmarshal(n.Data, &data)
	return &data
}
