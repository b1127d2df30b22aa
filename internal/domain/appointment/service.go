package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gigmarket/gigmarket-api/internal/pkg/recurrence"
)

// UpcomingPerRule is how many upcoming appointments a listed booking shows
const UpcomingPerRule = 3

// Notifier tells the other side of a booking what happened. Delivery is best effort.
type Notifier interface {
	NotifyRecurringBooked(ctx context.Context, providerID, recurringID uuid.UUID, serviceName string, created int)
	NotifyRecurringCancelled(ctx context.Context, userID, recurringID uuid.UUID, serviceName string)
}

// Service handles recurring appointment logic
type Service struct {
	repo     Repository
	notifier Notifier
	now      func() time.Time
}

// NewService creates recurring appointment service. notifier may be nil.
func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier, now: time.Now}
}

// CreateRecurring books a recurring series for customerID and materializes
// its first occurrences.
func (s *Service) CreateRecurring(ctx context.Context, customerID uuid.UUID, req *CreateRecurringRequest) (*RecurringAppointment, []*Appointment, error) {
	pattern, err := recurrence.ParsePattern(req.Pattern)
	if err != nil {
		return nil, nil, err
	}
	start, err := recurrence.ParseDate(req.StartDate)
	if err != nil {
		return nil, nil, fmt.Errorf("startDate: %w", err)
	}
	var end *time.Time
	if req.EndDate != nil {
		e, err := recurrence.ParseDate(*req.EndDate)
		if err != nil {
			return nil, nil, fmt.Errorf("endDate: %w", err)
		}
		if e.Before(start) {
			return nil, nil, ErrInvalidDates
		}
		end = &e
	}

	if req.ServiceID == nil || req.ProviderID == nil {
		return nil, nil, ErrServiceNotFound
	}
	providerID := *req.ProviderID
	if providerID == customerID {
		return nil, nil, ErrSelfBooking
	}

	svc, err := s.repo.GetService(ctx, *req.ServiceID)
	if err != nil {
		return nil, nil, err
	}
	if !svc.IsActive {
		return nil, nil, ErrServiceNotFound
	}
	if svc.ProviderID != providerID {
		return nil, nil, ErrProviderMismatch
	}

	now := s.now()
	frequency := req.Frequency
	if frequency < 1 {
		frequency = 1
	}
	rec := &RecurringAppointment{
		ID:          uuid.New(),
		CustomerID:  customerID,
		ProviderID:  providerID,
		ServiceID:   svc.ID,
		Pattern:     pattern,
		Frequency:   frequency,
		DayOfWeek:   req.DayOfWeek,
		DayOfMonth:  req.DayOfMonth,
		Time:        req.Time,
		StartDate:   start,
		EndDate:     end,
		Occurrences: req.Occurrences,
		Address:     req.Address,
		Note:        req.Note,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	dates := recurrence.InitialDates(rec.Rule())
	if len(dates) == 0 {
		return nil, nil, ErrNoOccurrences
	}
	occurrences := make([]*Appointment, len(dates))
	for i, d := range dates {
		occurrences[i] = newOccurrence(rec, d, now)
	}

	if err := s.repo.CreateRecurring(ctx, rec, occurrences); err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("recurring_id", rec.ID.String()).
		Str("customer_id", customerID.String()).
		Str("pattern", string(pattern)).
		Int("appointments", len(occurrences)).
		Msg("Recurring appointment created")

	if s.notifier != nil {
		s.notifier.NotifyRecurringBooked(ctx, providerID, rec.ID, svc.Name, len(occurrences))
	}
	return rec, occurrences, nil
}

// ListRecurring returns the bookings where userID has the given role, each
// with its next upcoming appointments.
func (s *Service) ListRecurring(ctx context.Context, userID uuid.UUID, role Role) ([]*RecurringDetails, error) {
	list, err := s.repo.ListRecurring(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}

	ids := make([]uuid.UUID, len(list))
	for i, d := range list {
		ids[i] = d.Recurring.ID
	}
	upcoming, err := s.repo.ListUpcoming(ctx, ids, recurrence.Day(s.now()), UpcomingPerRule)
	if err != nil {
		return nil, err
	}
	for _, d := range list {
		d.Upcoming = upcoming[d.Recurring.ID]
	}
	return list, nil
}

// UpdateRecurring pauses, resumes or cancels a booking. Cancelling also
// cancels the open appointments from today on; their count is returned.
func (s *Service) UpdateRecurring(ctx context.Context, userID, id uuid.UUID, action Action) (*RecurringAppointment, int64, error) {
	rec, err := s.repo.GetRecurring(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if !rec.HasParticipant(userID) {
		return nil, 0, ErrNotParticipant
	}
	if rec.IsCancelled() {
		return nil, 0, ErrAlreadyCancelled
	}

	switch action {
	case ActionPause, ActionResume:
		updated, err := s.repo.SetActive(ctx, id, action == ActionResume)
		if err != nil {
			return nil, 0, err
		}
		log.Info().Str("recurring_id", id.String()).Str("action", string(action)).Msg("Recurring appointment updated")
		return updated, 0, nil

	case ActionCancel:
		updated, cancelled, err := s.repo.Cancel(ctx, id, recurrence.Day(s.now()))
		if err != nil {
			return nil, 0, err
		}
		log.Info().
			Str("recurring_id", id.String()).
			Int64("cancelled_appointments", cancelled).
			Msg("Recurring appointment cancelled")

		s.notifyCancelled(ctx, userID, updated)
		return updated, cancelled, nil
	}
	return nil, 0, ErrInvalidAction
}

func (s *Service) notifyCancelled(ctx context.Context, actorID uuid.UUID, rec *RecurringAppointment) {
	if s.notifier == nil {
		return
	}
	other := rec.ProviderID
	if actorID == rec.ProviderID {
		other = rec.CustomerID
	}

	name := "Appointment"
	if svc, err := s.repo.GetService(ctx, rec.ServiceID); err == nil {
		name = svc.Name
	} else {
		log.Warn().Err(err).Str("service_id", rec.ServiceID.String()).Msg("Failed to load service for cancellation notice")
	}
	s.notifier.NotifyRecurringCancelled(ctx, other, rec.ID, name)
}
