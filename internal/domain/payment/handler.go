package payment

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gigmarket/gigmarket-api/internal/middleware"
	"github.com/gigmarket/gigmarket-api/internal/pkg/errorhandler"
	"github.com/gigmarket/gigmarket-api/internal/pkg/response"
	"github.com/gigmarket/gigmarket-api/internal/pkg/validator"
)

// Handler handles payment HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates payment handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Initiate handles POST /payments
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req InitiateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if msg := validator.FirstError(&req); msg != "" {
		fieldErrors := validator.Validate(&req)
		errorhandler.LogValidationError(r.Context(), fieldErrors)
		response.ValidationError(w, msg, fieldErrors)
		return
	}

	out, err := h.service.Initiate(r.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "amount: Deposit amount is out of range")
		case errors.Is(err, ErrPayableNotFound):
			response.NotFound(w, "Order or appointment not found")
		case errors.Is(err, ErrNotOwner):
			response.Forbidden(w, "You can only pay for your own orders and appointments")
		case errors.Is(err, ErrAlreadyPaid):
			response.Conflict(w, "Already paid")
		case errors.Is(err, ErrProviderUnavailable):
			response.Error(w, http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE", "Payment provider is not available")
		default:
			errorhandler.HandleError(r.Context(), w, err, "initiate payment")
		}
		return
	}

	response.Raw(w, http.StatusCreated, out)
}

// GetHistory handles GET /payments
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	limit := 20
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	payments, err := h.service.List(r.Context(), userID, limit, offset)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err, "list payments")
		return
	}

	items := make([]*PaymentResponse, len(payments))
	for i, p := range payments {
		items[i] = PaymentResponseFromEntity(p)
	}
	response.OK(w, items)
}

// Get handles GET /payments/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid payment ID")
		return
	}

	p, err := h.service.Get(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrPaymentNotFound):
			response.NotFound(w, "Payment not found")
		case errors.Is(err, ErrNotOwner):
			response.Forbidden(w, "Access denied")
		default:
			errorhandler.HandleError(r.Context(), w, err, "get payment")
		}
		return
	}
	response.OK(w, PaymentResponseFromEntity(p))
}

// VerifyYoco handles GET /payments/yoco/verify?id=<checkoutId>, called when
// the user returns from the hosted checkout.
func (h *Handler) VerifyYoco(w http.ResponseWriter, r *http.Request) {
	checkoutID := strings.TrimSpace(r.URL.Query().Get("id"))
	if checkoutID == "" {
		response.BadRequest(w, "id: This field is required")
		return
	}

	out, err := h.service.ReconcileYoco(r.Context(), checkoutID, nil)
	if err != nil {
		switch {
		case errors.Is(err, ErrPaymentNotFound):
			response.NotFound(w, "Payment not found")
		case isRejection(err):
			response.Raw(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "Verification failed"})
		case errors.Is(err, ErrProviderUnavailable):
			response.Error(w, http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE", "Payment provider is not available")
		default:
			errorhandler.HandleError(r.Context(), w, err, "verify yoco checkout")
		}
		return
	}

	if out.Payment.UserID != middleware.GetUserID(r.Context()) {
		response.Forbidden(w, "Access denied")
		return
	}

	response.Raw(w, http.StatusOK, YocoVerifyResponse{
		Success: true,
		Status:  out.Payment.Status,
		Amount:  out.Payment.Amount.StringFixed(2),
	})
}

// Routes returns payment router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/", h.Initiate)
	r.Get("/", h.GetHistory)
	r.Get("/yoco/verify", h.VerifyYoco)
	r.Get("/{id}", h.Get)

	return r
}
