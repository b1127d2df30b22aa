package payment

import "errors"

var (
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrAmountMismatch      = errors.New("notification amount does not match payment")
	ErrProviderMismatch    = errors.New("notification provider does not match payment")
	ErrVerificationFailed  = errors.New("gateway notification verification failed")
	ErrProviderUnavailable = errors.New("payment provider is not configured")
	ErrInvalidAmount       = errors.New("invalid payment amount")
	ErrPayableNotFound     = errors.New("order or appointment not found")
	ErrNotOwner            = errors.New("payment belongs to another user")
	ErrAlreadyPaid         = errors.New("order or appointment is already paid")
)
