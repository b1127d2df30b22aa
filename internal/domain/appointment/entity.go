package appointment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gigmarket/gigmarket-api/internal/pkg/recurrence"
)

// Status of a single appointment
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// PaymentMode tells how an appointment is settled
type PaymentMode string

const (
	PaymentModeUnpaid PaymentMode = "UNPAID"
	PaymentModePaid   PaymentMode = "PAID"
	PaymentModeWallet PaymentMode = "WALLET"
)

// Role selects which side of the booking the caller is listing
type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
)

// ParseRole parses the ?role= query value. Empty means customer.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case "", RoleCustomer:
		return RoleCustomer, nil
	case RoleProvider:
		return RoleProvider, nil
	}
	return "", ErrInvalidRole
}

// Action is a lifecycle change of a recurring booking
type Action string

const (
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionCancel Action = "cancel"
)

// ParseAction parses the ?action= query value.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionPause, ActionResume, ActionCancel:
		return a, nil
	}
	return "", ErrInvalidAction
}

// RecurringAppointment is a customer's standing booking of a service
type RecurringAppointment struct {
	ID          uuid.UUID          `db:"id"`
	CustomerID  uuid.UUID          `db:"customer_id"`
	ProviderID  uuid.UUID          `db:"provider_id"`
	ServiceID   uuid.UUID          `db:"service_id"`
	Pattern     recurrence.Pattern `db:"pattern"`
	Frequency   int                `db:"frequency"`
	DayOfWeek   *int               `db:"day_of_week"`
	DayOfMonth  *int               `db:"day_of_month"`
	Time        string             `db:"start_time"`
	StartDate   time.Time          `db:"start_date"`
	EndDate     *time.Time         `db:"end_date"`
	Occurrences *int               `db:"occurrences"`
	Address     *string            `db:"address"`
	Note        *string            `db:"note"`
	IsActive    bool               `db:"is_active"`
	CancelledAt *time.Time         `db:"cancelled_at"`
	CreatedAt   time.Time          `db:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at"`
}

// IsCancelled reports whether the booking was cancelled for good
func (r *RecurringAppointment) IsCancelled() bool {
	return r.CancelledAt != nil
}

// HasParticipant reports whether userID is the customer or the provider
func (r *RecurringAppointment) HasParticipant(userID uuid.UUID) bool {
	return r.CustomerID == userID || r.ProviderID == userID
}

// Rule returns the recurrence rule the booking expands
func (r *RecurringAppointment) Rule() recurrence.Rule {
	rule := recurrence.Rule{
		Pattern:    r.Pattern,
		Frequency:  r.Frequency,
		DayOfMonth: r.DayOfMonth,
		StartDate:  recurrence.Day(r.StartDate),
		EndDate:    r.EndDate,
	}
	if r.DayOfWeek != nil {
		wd := time.Weekday(*r.DayOfWeek)
		rule.DayOfWeek = &wd
	}
	if r.Occurrences != nil {
		rule.Occurrences = *r.Occurrences
	}
	return rule
}

// Appointment is one concrete occurrence
type Appointment struct {
	ID          uuid.UUID   `db:"id"`
	ServiceID   uuid.UUID   `db:"service_id"`
	CustomerID  uuid.UUID   `db:"customer_id"`
	ProviderID  uuid.UUID   `db:"provider_id"`
	RecurringID *uuid.UUID  `db:"recurring_id"`
	Date        time.Time   `db:"date"`
	Time        string      `db:"start_time"`
	Status      Status      `db:"status"`
	PaymentMode PaymentMode `db:"payment_mode"`
	Address     *string     `db:"address"`
	Note        *string     `db:"note"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

// newOccurrence builds the appointment of a recurring booking on date
func newOccurrence(rec *RecurringAppointment, date time.Time, now time.Time) *Appointment {
	id := rec.ID
	return &Appointment{
		ID:          uuid.New(),
		ServiceID:   rec.ServiceID,
		CustomerID:  rec.CustomerID,
		ProviderID:  rec.ProviderID,
		RecurringID: &id,
		Date:        recurrence.Day(date),
		Time:        rec.Time,
		Status:      StatusPending,
		PaymentMode: PaymentModeUnpaid,
		Address:     rec.Address,
		Note:        rec.Note,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ServiceInfo is the bookable service behind a recurring booking
type ServiceInfo struct {
	ID         uuid.UUID       `db:"id"`
	ProviderID uuid.UUID       `db:"provider_id"`
	Name       string          `db:"name"`
	Price      decimal.Decimal `db:"price"`
	IsActive   bool            `db:"is_active"`
}

// Party is the public summary of a user
type Party struct {
	ID   uuid.UUID `db:"id"`
	Name string    `db:"name"`
}

// RecurringDetails is a recurring booking with its joined summaries
type RecurringDetails struct {
	Recurring *RecurringAppointment
	Service   ServiceInfo
	Customer  Party
	Provider  Party
	Upcoming  []*Appointment
}

// SeriesState is an active booking and what has been materialized so far
type SeriesState struct {
	Recurring *RecurringAppointment
	Existing  int
	LastDate  *time.Time
}
