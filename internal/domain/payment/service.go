package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/gigmarket/gigmarket-api/internal/pkg/logger"
	"github.com/gigmarket/gigmarket-api/internal/pkg/payfast"
	"github.com/gigmarket/gigmarket-api/internal/pkg/yoco"
)

const walletDepositSubject = "Wallet deposit"

// Notifier delivers payment outcomes to the payer. Implementations must not
// block on delivery failures.
type Notifier interface {
	NotifyPaymentReceived(ctx context.Context, userID, paymentID uuid.UUID, amount decimal.Decimal, subject string)
	NotifyPaymentFailed(ctx context.Context, userID, paymentID uuid.UUID, reason string)
}

// YocoGateway is the part of the Yoco API the service uses
type YocoGateway interface {
	CreateCheckout(ctx context.Context, amount decimal.Decimal, metadata map[string]string) (*yoco.Checkout, error)
	GetCheckout(ctx context.Context, checkoutID string) (*yoco.Checkout, error)
}

// PayFastCheckout builds signed PayFast redirects
type PayFastCheckout interface {
	CheckoutURL(req payfast.CheckoutRequest) (string, error)
}

// ITNVerifier authenticates PayFast notifications
type ITNVerifier interface {
	Verify(ctx context.Context, remoteIP string, values url.Values) (*payfast.ITN, error)
}

// Gateways groups the provider clients. A nil field disables that provider.
type Gateways struct {
	Yoco       YocoGateway
	PayFast    PayFastCheckout
	PayFastITN ITNVerifier
}

// Config holds payment limits
type Config struct {
	Currency   string
	MinDeposit decimal.Decimal
	MaxDeposit decimal.Decimal
}

// DefaultConfig returns the deposit limits used when none are configured
func DefaultConfig() Config {
	return Config{
		Currency:   "ZAR",
		MinDeposit: decimal.NewFromInt(10),
		MaxDeposit: decimal.NewFromInt(100000),
	}
}

// Service handles payment business logic
type Service struct {
	repo     Repository
	notifier Notifier
	gateways Gateways
	config   Config
	now      func() time.Time
}

// NewService creates payment service
func NewService(repo Repository, notifier Notifier, gateways Gateways, cfg Config) *Service {
	if cfg.Currency == "" {
		cfg.Currency = DefaultConfig().Currency
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		gateways: gateways,
		config:   cfg,
		now:      time.Now,
	}
}

// Reconcile applies one verified gateway notification. The stored row is
// locked for the whole transition, so a redelivery waits and then finds
// the status already applied. Side effects run only on a real transition.
func (s *Service) Reconcile(ctx context.Context, n Notification) (*Outcome, error) {
	if n.PaymentID == nil && n.ProviderRef == "" {
		return nil, ErrPaymentNotFound
	}

	out := &Outcome{}
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.LockPayment(ctx, n.Provider, n.PaymentID, n.ProviderRef)
		if err != nil {
			return err
		}
		if p.Provider != n.Provider {
			return ErrProviderMismatch
		}
		if n.Amount != nil && !n.Amount.Equal(p.Amount) {
			return ErrAmountMismatch
		}

		out.Payment = p
		out.Previous = p.Status
		if !CanTransition(p.Status, n.Status) {
			out.Duplicate = true
			return nil
		}

		now := s.now()
		p.Status = n.Status
		p.UpdatedAt = now
		if n.ProviderRef != "" {
			p.ProviderRef = sql.NullString{String: n.ProviderRef, Valid: true}
		}
		if len(n.Payload) > 0 {
			p.ProviderData = n.Payload
		}
		switch n.Status {
		case StatusCompleted:
			p.CompletedAt = sql.NullTime{Time: now, Valid: true}
		case StatusFailed:
			p.FailureReason = sql.NullString{String: n.FailureReason, Valid: n.FailureReason != ""}
		}
		if err := tx.ApplyTransition(ctx, p); err != nil {
			return fmt.Errorf("apply transition: %w", err)
		}

		if n.Status != StatusCompleted {
			return nil
		}

		if p.Type == TypeWalletDeposit {
			out.Subject = walletDepositSubject
			if err := tx.CreditWallet(ctx, p.UserID, p.Amount, p.ID.String(), walletDepositSubject); err != nil {
				return fmt.Errorf("credit wallet: %w", err)
			}
			return nil
		}

		out.Subject = "Order"
		if p.OrderID.Valid {
			if err := tx.ConfirmOrder(ctx, p.OrderID.UUID); err != nil {
				return fmt.Errorf("confirm order: %w", err)
			}
		}
		if p.AppointmentID.Valid {
			name, err := tx.ConfirmAppointment(ctx, p.AppointmentID.UUID)
			if err != nil {
				return fmt.Errorf("confirm appointment: %w", err)
			}
			if name != "" {
				out.Subject = name
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l := logger.FromContext(ctx).With().
		Str("payment_id", out.Payment.ID.String()).
		Str("provider", string(n.Provider)).
		Str("status", string(n.Status)).
		Logger()

	if out.Duplicate {
		l.Info().Str("stored_status", string(out.Previous)).Msg("Payment notification already applied")
		return out, nil
	}
	l.Info().Str("previous_status", string(out.Previous)).Msg("Payment reconciled")

	if s.notifier != nil {
		switch n.Status {
		case StatusCompleted:
			s.notifier.NotifyPaymentReceived(ctx, out.Payment.UserID, out.Payment.ID, out.Payment.Amount, out.Subject)
		case StatusFailed:
			s.notifier.NotifyPaymentFailed(ctx, out.Payment.UserID, out.Payment.ID, n.FailureReason)
		}
	}
	return out, nil
}

// ReconcileYoco re-fetches a checkout from Yoco and reconciles the verified
// state. payload is the raw delivery, stored with the checkout.
func (s *Service) ReconcileYoco(ctx context.Context, checkoutID string, payload []byte) (*Outcome, error) {
	if s.gateways.Yoco == nil {
		return nil, ErrProviderUnavailable
	}

	checkout, err := s.gateways.Yoco.GetCheckout(ctx, checkoutID)
	if err != nil {
		if errors.Is(err, yoco.ErrCheckoutNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
		}
		return nil, fmt.Errorf("yoco verify: %w", err)
	}

	n := Notification{
		Provider:    ProviderYoco,
		ProviderRef: checkout.ID,
		Status:      MapYocoStatus(checkout.Status),
	}
	if id, err := uuid.Parse(checkout.Metadata["paymentId"]); err == nil {
		n.PaymentID = &id
	}
	if checkout.Amount > 0 {
		amount := yoco.FromCents(checkout.Amount)
		n.Amount = &amount
	}
	if n.Status == StatusFailed {
		n.FailureReason = "Card payment was declined"
	}

	data := map[string]interface{}{"checkout": checkout}
	if len(payload) > 0 && json.Valid(payload) {
		data["webhook"] = json.RawMessage(payload)
	}
	n.Payload, _ = json.Marshal(data)

	return s.Reconcile(ctx, n)
}

// ReconcilePayFast authenticates an ITN and reconciles it.
func (s *Service) ReconcilePayFast(ctx context.Context, remoteIP string, values url.Values) (*Outcome, error) {
	if s.gateways.PayFastITN == nil {
		return nil, ErrProviderUnavailable
	}

	itn, err := s.gateways.PayFastITN.Verify(ctx, remoteIP, values)
	if err != nil {
		if isPayFastRejection(err) {
			return nil, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
		}
		return nil, fmt.Errorf("payfast verify: %w", err)
	}

	n := Notification{
		Provider:    ProviderPayFast,
		ProviderRef: itn.PFPaymentID,
		Status:      MapPayFastStatus(itn.PaymentStatus),
	}
	if id, err := uuid.Parse(itn.MPaymentID); err == nil {
		n.PaymentID = &id
	}
	if itn.HasAmount {
		amount := itn.AmountGross
		n.Amount = &amount
	}
	if n.Status == StatusFailed {
		n.FailureReason = "PayFast reported the payment as failed"
	}

	fields := make(map[string]string, len(values))
	for k := range values {
		if k != "signature" {
			fields[k] = values.Get(k)
		}
	}
	n.Payload, _ = json.Marshal(fields)

	return s.Reconcile(ctx, n)
}

func isPayFastRejection(err error) bool {
	for _, target := range []error{
		payfast.ErrNotValid,
		payfast.ErrSignature,
		payfast.ErrMerchant,
		payfast.ErrSourceIP,
		payfast.ErrMissingField,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Initiate creates a PENDING payment and the provider redirect for it.
func (s *Service) Initiate(ctx context.Context, userID uuid.UUID, req *InitiateRequest) (*InitiateResponse, error) {
	p := &Payment{
		ID:        uuid.New(),
		UserID:    userID,
		Currency:  s.config.Currency,
		Status:    StatusPending,
		Type:      Type(req.Type),
		Provider:  Provider(req.Provider),
		CreatedAt: s.now(),
	}
	p.UpdatedAt = p.CreatedAt

	switch p.Type {
	case TypeWalletDeposit:
		if req.Amount == nil || req.Amount.LessThan(s.config.MinDeposit) || req.Amount.GreaterThan(s.config.MaxDeposit) {
			return nil, ErrInvalidAmount
		}
		p.Amount = req.Amount.Round(2)
		p.Description = sql.NullString{String: walletDepositSubject, Valid: true}
	case TypeOrder, TypeAppointment:
		targetID := req.OrderID
		if p.Type == TypeAppointment {
			targetID = req.AppointmentID
		}
		if targetID == nil {
			return nil, ErrPayableNotFound
		}
		payable, err := s.repo.FindPayable(ctx, p.Type, *targetID)
		if err != nil {
			return nil, err
		}
		if payable.OwnerID != userID {
			return nil, ErrNotOwner
		}
		if !payable.Amount.IsPositive() {
			return nil, ErrInvalidAmount
		}
		p.Amount = payable.Amount
		p.Description = sql.NullString{String: payable.Description, Valid: payable.Description != ""}
		if p.Type == TypeOrder {
			p.OrderID = uuid.NullUUID{UUID: *targetID, Valid: true}
		} else {
			p.AppointmentID = uuid.NullUUID{UUID: *targetID, Valid: true}
		}
	default:
		return nil, fmt.Errorf("unsupported payment type %q", req.Type)
	}

	switch p.Provider {
	case ProviderYoco:
		if s.gateways.Yoco == nil {
			return nil, ErrProviderUnavailable
		}
	case ProviderPayFast:
		if s.gateways.PayFast == nil {
			return nil, ErrProviderUnavailable
		}
	default:
		return nil, ErrProviderUnavailable
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	resp := &InitiateResponse{Success: true, PaymentID: p.ID, Amount: p.Amount.StringFixed(2), Status: p.Status}
	switch p.Provider {
	case ProviderYoco:
		checkout, err := s.gateways.Yoco.CreateCheckout(ctx, p.Amount, map[string]string{
			"paymentId": p.ID.String(),
			"type":      string(p.Type),
		})
		if err != nil {
			return nil, fmt.Errorf("yoco checkout: %w", err)
		}
		if err := s.repo.SetProviderRef(ctx, p.ID, checkout.ID); err != nil {
			return nil, fmt.Errorf("store checkout id: %w", err)
		}
		resp.RedirectURL = checkout.RedirectURL
	case ProviderPayFast:
		redirect, err := s.gateways.PayFast.CheckoutURL(payfast.CheckoutRequest{
			PaymentID:  p.ID.String(),
			Amount:     p.Amount,
			ItemName:   strings.TrimSpace(p.Description.String),
			CustomStr1: string(p.Type),
			CustomStr2: userID.String(),
		})
		if err != nil {
			return nil, fmt.Errorf("payfast checkout: %w", err)
		}
		resp.RedirectURL = redirect
	}

	log.Info().
		Str("payment_id", p.ID.String()).
		Str("provider", string(p.Provider)).
		Str("type", string(p.Type)).
		Str("amount", p.Amount.StringFixed(2)).
		Msg("Payment initiated")
	return resp, nil
}

// List returns the user's payments, newest first
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Payment, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// Get returns one of the user's payments
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrNotOwner
	}
	return p, nil
}
