package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gigmarket/gigmarket-api/internal/middleware"
)

type stubStore struct {
	wallet    *Wallet
	items     []*Transaction
	total     int
	err       error
	gotLimit  int
	gotOffset int
}

func (s *stubStore) GetWallet(_ context.Context, userID uuid.UUID) (*Wallet, error) {
	if s.err != nil {
		return nil, s.err
	}
	w := *s.wallet
	w.UserID = userID
	return &w, nil
}

func (s *stubStore) ListTransactions(_ context.Context, _ uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	s.gotLimit, s.gotOffset = limit, offset
	return s.items, s.total, s.err
}

func newWalletRouter(store Store, userID uuid.UUID) http.Handler {
	h := NewHandler(NewService(store))
	auth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithUser(r.Context(), userID, "customer")))
		})
	}
	r := chi.NewRouter()
	r.Mount("/api/v1/wallet", h.Routes(auth))
	return r
}

func TestBalanceEndpoint(t *testing.T) {
	store := &stubStore{wallet: &Wallet{Balance: decimal.RequireFromString("100"), UpdatedAt: time.Now()}}
	router := newWalletRouter(store, uuid.New())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Balance string `json:"balance"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !body.Success || body.Data.Balance != "100.00" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestBalanceEndpointStoreError(t *testing.T) {
	router := newWalletRouter(&stubStore{err: errors.New("db down")}, uuid.New())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestTransactionsEndpointClampsPaging(t *testing.T) {
	ref := "payment-1"
	store := &stubStore{
		items: []*Transaction{{ID: uuid.New(), Amount: decimal.NewFromInt(100), Type: TransactionTypeCredit, Reference: &ref}},
		total: 1,
	}
	router := newWalletRouter(store, uuid.New())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/wallet/transactions?limit=1000&offset=-5", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if store.gotLimit != 20 || store.gotOffset != 0 {
		t.Fatalf("expected clamped paging 20/0, got %d/%d", store.gotLimit, store.gotOffset)
	}

	var body struct {
		Data []Transaction `json:"data"`
		Meta struct {
			Total int `json:"total"`
		} `json:"meta"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(body.Data) != 1 || body.Meta.Total != 1 || body.Data[0].Type != TransactionTypeCredit {
		t.Fatalf("unexpected body %+v", body)
	}
}
