package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gigmarket/gigmarket-api/internal/pkg/yoco"
)

type ledgerEntry struct {
	UserID    uuid.UUID
	Amount    decimal.Decimal
	Reference string
}

type fakeAppointment struct {
	ServiceName string
	Status      string
	PaymentMode string
}

// fakeStore is an in-memory Repository. RunInTx holds one mutex for the
// whole callback and restores a snapshot when the callback fails.
type fakeStore struct {
	mu           sync.Mutex
	payments     map[uuid.UUID]*Payment
	balances     map[uuid.UUID]decimal.Decimal
	ledger       []ledgerEntry
	orders       map[uuid.UUID]string
	appointments map[uuid.UUID]*fakeAppointment
	payables     map[uuid.UUID]*Payable
	creditErr    error
	applyCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		payments:     map[uuid.UUID]*Payment{},
		balances:     map[uuid.UUID]decimal.Decimal{},
		orders:       map[uuid.UUID]string{},
		appointments: map[uuid.UUID]*fakeAppointment{},
		payables:     map[uuid.UUID]*Payable{},
	}
}

func (s *fakeStore) add(p *Payment) *Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p
	return p
}

func (s *fakeStore) payment(id uuid.UUID) Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.payments[id]
}

func (s *fakeStore) balance(userID uuid.UUID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID]
}

func (s *fakeStore) ledgerLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledger)
}

func (s *fakeStore) Create(_ context.Context, p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Payment
	for _, p := range s.payments {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) SetProviderRef(_ context.Context, id uuid.UUID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[id].ProviderRef.String = ref
	s.payments[id].ProviderRef.Valid = true
	return nil
}

func (s *fakeStore) FindPayable(_ context.Context, _ Type, id uuid.UUID) (*Payable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payables[id]
	if !ok {
		return nil, ErrPayableNotFound
	}
	return p, nil
}

func (s *fakeStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payments := make(map[uuid.UUID]Payment, len(s.payments))
	for id, p := range s.payments {
		payments[id] = *p
	}
	balances := make(map[uuid.UUID]decimal.Decimal, len(s.balances))
	for id, b := range s.balances {
		balances[id] = b
	}
	orders := make(map[uuid.UUID]string, len(s.orders))
	for id, o := range s.orders {
		orders[id] = o
	}
	appointments := make(map[uuid.UUID]fakeAppointment, len(s.appointments))
	for id, a := range s.appointments {
		appointments[id] = *a
	}
	ledgerLen := len(s.ledger)

	if err := fn(ctx, &fakeTx{s: s}); err != nil {
		for id, p := range payments {
			cp := p
			s.payments[id] = &cp
		}
		s.balances = balances
		s.orders = orders
		for id, a := range appointments {
			cp := a
			s.appointments[id] = &cp
		}
		s.ledger = s.ledger[:ledgerLen]
		return err
	}
	return nil
}

type fakeTx struct {
	s *fakeStore
}

func (t *fakeTx) LockPayment(_ context.Context, provider Provider, id *uuid.UUID, ref string) (*Payment, error) {
	if id != nil {
		if p, ok := t.s.payments[*id]; ok {
			cp := *p
			return &cp, nil
		}
	}
	if ref != "" {
		for _, p := range t.s.payments {
			if p.Provider == provider && p.ProviderRef.Valid && p.ProviderRef.String == ref {
				cp := *p
				return &cp, nil
			}
		}
	}
	return nil, ErrPaymentNotFound
}

func (t *fakeTx) ApplyTransition(_ context.Context, p *Payment) error {
	t.s.applyCalls++
	cp := *p
	t.s.payments[p.ID] = &cp
	return nil
}

func (t *fakeTx) ConfirmOrder(_ context.Context, orderID uuid.UUID) error {
	t.s.orders[orderID] = "CONFIRMED"
	return nil
}

func (t *fakeTx) ConfirmAppointment(_ context.Context, appointmentID uuid.UUID) (string, error) {
	a, ok := t.s.appointments[appointmentID]
	if !ok {
		return "", nil
	}
	a.Status = "CONFIRMED"
	a.PaymentMode = "PAID"
	return a.ServiceName, nil
}

func (t *fakeTx) CreditWallet(_ context.Context, userID uuid.UUID, amount decimal.Decimal, reference, _ string) error {
	if t.s.creditErr != nil {
		return t.s.creditErr
	}
	for _, e := range t.s.ledger {
		if e.UserID == userID && e.Reference == reference {
			return nil
		}
	}
	t.s.balances[userID] = t.s.balances[userID].Add(amount)
	t.s.ledger = append(t.s.ledger, ledgerEntry{UserID: userID, Amount: amount, Reference: reference})
	return nil
}

type sentNotification struct {
	Kind      string
	UserID    uuid.UUID
	PaymentID uuid.UUID
	Subject   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) NotifyPaymentReceived(_ context.Context, userID, paymentID uuid.UUID, _ decimal.Decimal, subject string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Kind: "received", UserID: userID, PaymentID: paymentID, Subject: subject})
}

func (n *recordingNotifier) NotifyPaymentFailed(_ context.Context, userID, paymentID uuid.UUID, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Kind: "failed", UserID: userID, PaymentID: paymentID, Subject: reason})
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type stubYoco struct {
	checkouts map[string]*yoco.Checkout
	created   []map[string]string
	err       error
}

func (y *stubYoco) CreateCheckout(_ context.Context, amount decimal.Decimal, metadata map[string]string) (*yoco.Checkout, error) {
	if y.err != nil {
		return nil, y.err
	}
	y.created = append(y.created, metadata)
	return &yoco.Checkout{ID: "ch_new", Amount: yoco.ToCents(amount), RedirectURL: "https://pay.example/ch_new"}, nil
}

func (y *stubYoco) GetCheckout(_ context.Context, id string) (*yoco.Checkout, error) {
	if y.err != nil {
		return nil, y.err
	}
	c, ok := y.checkouts[id]
	if !ok {
		return nil, yoco.ErrCheckoutNotFound
	}
	return c, nil
}

func newPayment(t Type, provider Provider, amount string) *Payment {
	return &Payment{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Amount:   decimal.RequireFromString(amount),
		Currency: "ZAR",
		Status:   StatusPending,
		Type:     t,
		Provider: provider,
	}
}
