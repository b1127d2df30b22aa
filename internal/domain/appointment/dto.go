package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gigmarket/gigmarket-api/internal/pkg/recurrence"
)

// CreateRecurringRequest is the body of POST /recurring-appointments
type CreateRecurringRequest struct {
	ServiceID   *uuid.UUID `json:"serviceId" validate:"required"`
	ProviderID  *uuid.UUID `json:"providerId" validate:"required"`
	Pattern     string     `json:"pattern" validate:"required,pattern"`
	Frequency   int        `json:"frequency" validate:"omitempty,gte=1,lte=4"`
	DayOfWeek   *int       `json:"dayOfWeek" validate:"required_if=Pattern BIWEEKLY,omitempty,gte=0,lte=6"`
	DayOfMonth  *int       `json:"dayOfMonth" validate:"omitempty,gte=1,lte=31"`
	Time        string     `json:"time" validate:"required,hhmm"`
	StartDate   string     `json:"startDate" validate:"required,isodate"`
	EndDate     *string    `json:"endDate" validate:"omitempty,isodate"`
	Occurrences *int       `json:"occurrences" validate:"omitempty,gte=1,lte=52"`
	Address     *string    `json:"address" validate:"omitempty,max=500"`
	Note        *string    `json:"note" validate:"omitempty,max=1000"`
}

// Normalize upper-cases the pattern and fills the default frequency.
// Call it before validating.
func (r *CreateRecurringRequest) Normalize() {
	r.Pattern = strings.ToUpper(strings.TrimSpace(r.Pattern))
	if r.Frequency == 0 {
		r.Frequency = 1
	}
	if r.Address != nil && strings.TrimSpace(*r.Address) == "" {
		r.Address = nil
	}
	if r.Note != nil && strings.TrimSpace(*r.Note) == "" {
		r.Note = nil
	}
}

// AppointmentResponse is the public view of one occurrence
type AppointmentResponse struct {
	ID     uuid.UUID `json:"id"`
	Date   string    `json:"date"`
	Time   string    `json:"time"`
	Status Status    `json:"status"`
}

// AppointmentResponseFromEntity converts entity to response
func AppointmentResponseFromEntity(a *Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:     a.ID,
		Date:   recurrence.FormatDate(a.Date),
		Time:   a.Time,
		Status: a.Status,
	}
}

func appointmentResponses(list []*Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, AppointmentResponseFromEntity(a))
	}
	return out
}

// CreateRecurringResponse is returned by POST /recurring-appointments
type CreateRecurringResponse struct {
	Success             bool                  `json:"success"`
	RecurringID         uuid.UUID             `json:"recurringId"`
	AppointmentsCreated int                   `json:"appointmentsCreated"`
	Appointments        []AppointmentResponse `json:"appointments"`
}

// ServiceSummary is the service embedded in list responses
type ServiceSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Price string    `json:"price"`
}

// PartySummary is the counterparty embedded in list responses
type PartySummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// RecurringResponse is the public view of a recurring booking
type RecurringResponse struct {
	ID          uuid.UUID             `json:"id"`
	ServiceID   uuid.UUID             `json:"serviceId"`
	CustomerID  uuid.UUID             `json:"customerId"`
	ProviderID  uuid.UUID             `json:"providerId"`
	Pattern     recurrence.Pattern    `json:"pattern"`
	Frequency   int                   `json:"frequency"`
	DayOfWeek   *int                  `json:"dayOfWeek"`
	DayOfMonth  *int                  `json:"dayOfMonth"`
	Time        string                `json:"time"`
	StartDate   string                `json:"startDate"`
	EndDate     *string               `json:"endDate"`
	Occurrences *int                  `json:"occurrences"`
	Address     *string               `json:"address,omitempty"`
	Note        *string               `json:"note,omitempty"`
	IsActive    bool                  `json:"isActive"`
	CancelledAt *time.Time            `json:"cancelledAt,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
	Service     *ServiceSummary       `json:"service,omitempty"`
	Customer    *PartySummary         `json:"customer,omitempty"`
	Provider    *PartySummary         `json:"provider,omitempty"`
	Upcoming    []AppointmentResponse `json:"upcoming,omitempty"`
}

// RecurringResponseFromEntity converts entity to response
func RecurringResponseFromEntity(r *RecurringAppointment) RecurringResponse {
	resp := RecurringResponse{
		ID:          r.ID,
		ServiceID:   r.ServiceID,
		CustomerID:  r.CustomerID,
		ProviderID:  r.ProviderID,
		Pattern:     r.Pattern,
		Frequency:   r.Frequency,
		DayOfWeek:   r.DayOfWeek,
		DayOfMonth:  r.DayOfMonth,
		Time:        r.Time,
		StartDate:   recurrence.FormatDate(r.StartDate),
		Occurrences: r.Occurrences,
		Address:     r.Address,
		Note:        r.Note,
		IsActive:    r.IsActive,
		CancelledAt: r.CancelledAt,
		CreatedAt:   r.CreatedAt,
	}
	if r.EndDate != nil {
		end := recurrence.FormatDate(*r.EndDate)
		resp.EndDate = &end
	}
	return resp
}

// RecurringResponseFromDetails converts a listed booking, showing the
// counterparty of the caller's role.
func RecurringResponseFromDetails(d *RecurringDetails, role Role) RecurringResponse {
	resp := RecurringResponseFromEntity(d.Recurring)
	resp.Service = &ServiceSummary{
		ID:    d.Service.ID,
		Name:  d.Service.Name,
		Price: d.Service.Price.StringFixed(2),
	}
	if role == RoleProvider {
		resp.Customer = &PartySummary{ID: d.Customer.ID, Name: d.Customer.Name}
	} else {
		resp.Provider = &PartySummary{ID: d.Provider.ID, Name: d.Provider.Name}
	}
	resp.Upcoming = appointmentResponses(d.Upcoming)
	return resp
}

// ListRecurringResponse is returned by GET /recurring-appointments
type ListRecurringResponse struct {
	Success   bool                `json:"success"`
	Recurring []RecurringResponse `json:"recurring"`
}

// UpdateRecurringResponse is returned by PATCH /recurring-appointments
type UpdateRecurringResponse struct {
	Success               bool              `json:"success"`
	Recurring             RecurringResponse `json:"recurring"`
	CancelledAppointments int64             `json:"cancelledAppointments"`
}
