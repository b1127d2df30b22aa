package wallet

import (
	"context"

	"github.com/google/uuid"
)

// Store is the read side the HTTP service needs
type Store interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, int, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return s.store.GetWallet(ctx, userID)
}

func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListTransactions(ctx, userID, limit, offset)
}
