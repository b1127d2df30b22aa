package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InitiateRequest is the body of POST /payments
type InitiateRequest struct {
	Type          string           `json:"type" validate:"required,oneof=WALLET_DEPOSIT ORDER APPOINTMENT"`
	Provider      string           `json:"provider" validate:"required,oneof=yoco payfast"`
	Amount        *decimal.Decimal `json:"amount" validate:"required_if=Type WALLET_DEPOSIT"`
	OrderID       *uuid.UUID       `json:"orderId" validate:"required_if=Type ORDER"`
	AppointmentID *uuid.UUID       `json:"appointmentId" validate:"required_if=Type APPOINTMENT"`
}

// InitiateResponse tells the client where to pay
type InitiateResponse struct {
	Success     bool      `json:"success"`
	PaymentID   uuid.UUID `json:"paymentId"`
	Amount      string    `json:"amount"`
	Status      Status    `json:"status"`
	RedirectURL string    `json:"redirectUrl"`
}

// PaymentResponse is the public view of a payment
type PaymentResponse struct {
	ID            uuid.UUID  `json:"id"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	Status        Status     `json:"status"`
	Type          Type       `json:"type"`
	Provider      Provider   `json:"provider"`
	Description   string     `json:"description,omitempty"`
	OrderID       *uuid.UUID `json:"orderId,omitempty"`
	AppointmentID *uuid.UUID `json:"appointmentId,omitempty"`
	FailureReason string     `json:"failureReason,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// PaymentResponseFromEntity converts entity to response
func PaymentResponseFromEntity(p *Payment) *PaymentResponse {
	resp := &PaymentResponse{
		ID:            p.ID,
		Amount:        p.Amount.StringFixed(2),
		Currency:      p.Currency,
		Status:        p.Status,
		Type:          p.Type,
		Provider:      p.Provider,
		Description:   p.Description.String,
		FailureReason: p.FailureReason.String,
		CreatedAt:     p.CreatedAt,
	}
	if p.OrderID.Valid {
		resp.OrderID = &p.OrderID.UUID
	}
	if p.AppointmentID.Valid {
		resp.AppointmentID = &p.AppointmentID.UUID
	}
	if p.CompletedAt.Valid {
		resp.CompletedAt = &p.CompletedAt.Time
	}
	return resp
}

// YocoVerifyResponse is the body of GET /payments/yoco/verify
type YocoVerifyResponse struct {
	Success bool   `json:"success"`
	Status  Status `json:"status"`
	Amount  string `json:"amount"`
}
