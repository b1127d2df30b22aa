package notification

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gigmarket/gigmarket-api/internal/pkg/logger"
)

// Service handles notification logic
type Service struct {
	repo     Repository
	realtime RealtimePublisher
	now      func() time.Time
}

// NewService creates notification service. realtime may be nil.
func NewService(repo Repository, realtime RealtimePublisher) *Service {
	return &Service{repo: repo, realtime: realtime, now: time.Now}
}

// Create persists a notification and pushes it to the user's live connections
func (s *Service) Create(ctx context.Context, userID uuid.UUID, notifType Type, title, body string, data *Data) (*Notification, error) {
	n := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      notifType,
		Title:     title,
		CreatedAt: s.now(),
	}
	if body != "" {
		n.Body = sql.NullString{String: body, Valid: true}
	}
	n.SetData(data)

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if s.realtime != nil {
		unread, err := s.repo.CountUnreadByUser(ctx, userID)
		if err != nil {
			unread = -1
		}
		if err := s.realtime.SendToUser(ctx, userID, newNotificationEvent(NotificationResponseFromEntity(n), unread)); err != nil {
			logger.FromContext(ctx).Warn().Err(err).Str("user_id", userID.String()).Msg("Realtime notification push failed")
		}
	}

	return n, nil
}

// List returns notifications for user
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// GetUnreadCount returns unread count
func (s *Service) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnreadByUser(ctx, userID)
}

// MarkAsRead marks one of the user's notifications as read
func (s *Service) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	ok, err := s.repo.MarkAsRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllAsRead marks all notifications as read
func (s *Service) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// --- Best-effort helpers. Failures are logged and never returned. ---

// NotifyPaymentReceived tells the payer a payment went through
func (s *Service) NotifyPaymentReceived(ctx context.Context, userID, paymentID uuid.UUID, amount decimal.Decimal, subject string) {
	s.createBestEffort(ctx, userID, TypePaymentReceived,
		"Payment received",
		"Your payment of "+amount.StringFixed(2)+" for "+subject+" was received",
		&Data{PaymentID: &paymentID, Amount: amount.StringFixed(2)},
	)
}

// NotifyPaymentFailed tells the payer a payment failed
func (s *Service) NotifyPaymentFailed(ctx context.Context, userID, paymentID uuid.UUID, reason string) {
	if reason == "" {
		reason = "The payment could not be completed. Please try again."
	}
	s.createBestEffort(ctx, userID, TypePaymentFailed,
		"Payment failed",
		reason,
		&Data{PaymentID: &paymentID},
	)
}

// NotifyRecurringBooked tells the provider about a new recurring booking
func (s *Service) NotifyRecurringBooked(ctx context.Context, providerID, recurringID uuid.UUID, serviceName string, created int) {
	s.createBestEffort(ctx, providerID, TypeRecurringBooked,
		"New recurring booking",
		"A customer booked a recurring series of \""+serviceName+"\" ("+strconv.Itoa(created)+" upcoming appointments)",
		&Data{RecurringID: &recurringID},
	)
}

// NotifyRecurringCancelled tells the counterparty a series was cancelled
func (s *Service) NotifyRecurringCancelled(ctx context.Context, userID, recurringID uuid.UUID, serviceName string) {
	s.createBestEffort(ctx, userID, TypeRecurringCancelled,
		"Recurring booking cancelled",
		"The recurring booking of \""+serviceName+"\" was cancelled",
		&Data{RecurringID: &recurringID},
	)
}

func (s *Service) createBestEffort(ctx context.Context, userID uuid.UUID, notifType Type, title, body string, data *Data) {
	if _, err := s.Create(ctx, userID, notifType, title, body, data); err != nil {
		logger.FromContext(ctx).Error().Err(err).
			Str("user_id", userID.String()).
			Str("type", string(notifType)).
			Msg("Failed to create notification")
	}
}
