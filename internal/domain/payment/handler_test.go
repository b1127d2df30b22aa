package payment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gigmarket/gigmarket-api/internal/middleware"
	"github.com/gigmarket/gigmarket-api/internal/pkg/yoco"
)

func newPaymentRouter(svc *Service, userID uuid.UUID) http.Handler {
	auth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithUser(r.Context(), userID, "customer")))
		})
	}
	r := chi.NewRouter()
	r.Mount("/api/v1/payments", NewHandler(svc).Routes(auth))
	return r
}

func TestInitiateValidation(t *testing.T) {
	svc := NewService(newFakeStore(), nil, Gateways{}, DefaultConfig())
	router := newPaymentRouter(svc, uuid.New())

	cases := []struct {
		body    string
		wantMsg string
	}{
		{`{"type":"GIFT","provider":"yoco"}`, "type: Must be one of"},
		{`{"type":"WALLET_DEPOSIT","provider":"stripe","amount":"10"}`, "provider: Must be one of"},
		{`{"type":"WALLET_DEPOSIT","provider":"yoco"}`, "amount: This field is required"},
		{`{"type":"ORDER","provider":"yoco"}`, "orderId: This field is required"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(tc.body)))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.body, w.Code)
		}
		if !strings.Contains(w.Body.String(), tc.wantMsg) {
			t.Fatalf("%s: expected message %q in %s", tc.body, tc.wantMsg, w.Body.String())
		}
	}
}

func TestVerifyYocoEndpoint(t *testing.T) {
	store := newFakeStore()
	p := store.add(newPayment(TypeWalletDeposit, ProviderYoco, "120.00"))
	gw := &stubYoco{checkouts: map[string]*yoco.Checkout{
		"ch_1": {ID: "ch_1", Status: "succeeded", Amount: 12000, Metadata: map[string]string{"paymentId": p.ID.String()}},
	}}
	svc := NewService(store, nil, Gateways{Yoco: gw}, DefaultConfig())

	w := httptest.NewRecorder()
	newPaymentRouter(svc, p.UserID).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payments/yoco/verify?id=ch_1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	var body YocoVerifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !body.Success || body.Status != StatusCompleted || body.Amount != "120.00" {
		t.Fatalf("unexpected body %+v", body)
	}

	w = httptest.NewRecorder()
	newPaymentRouter(svc, uuid.New()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payments/yoco/verify?id=ch_1", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	newPaymentRouter(svc, p.UserID).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payments/yoco/verify", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without id, got %d", w.Code)
	}
}

func TestGetPaymentEndpoint(t *testing.T) {
	store := newFakeStore()
	p := store.add(newPayment(TypeWalletDeposit, ProviderYoco, "10.00"))
	svc := NewService(store, nil, Gateways{}, DefaultConfig())

	cases := []struct {
		user uuid.UUID
		path string
		want int
	}{
		{p.UserID, "/api/v1/payments/" + p.ID.String(), http.StatusOK},
		{uuid.New(), "/api/v1/payments/" + p.ID.String(), http.StatusForbidden},
		{p.UserID, "/api/v1/payments/" + uuid.NewString(), http.StatusNotFound},
		{p.UserID, "/api/v1/payments/nope", http.StatusBadRequest},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		newPaymentRouter(svc, tc.user).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if w.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.path, tc.want, w.Code)
		}
	}
}
