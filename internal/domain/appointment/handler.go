package appointment

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gigmarket/gigmarket-api/internal/middleware"
	"github.com/gigmarket/gigmarket-api/internal/pkg/errorhandler"
	"github.com/gigmarket/gigmarket-api/internal/pkg/recurrence"
	"github.com/gigmarket/gigmarket-api/internal/pkg/response"
	"github.com/gigmarket/gigmarket-api/internal/pkg/validator"
)

// Handler handles recurring appointment HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates recurring appointment handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /recurring-appointments
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "User not authenticated")
		return
	}

	var req CreateRecurringRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	req.Normalize()
	if msg := validator.FirstError(&req); msg != "" {
		fieldErrors := validator.Validate(&req)
		errorhandler.LogValidationError(r.Context(), fieldErrors)
		response.ValidationError(w, msg, fieldErrors)
		return
	}

	rec, occurrences, err := h.service.CreateRecurring(r.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrServiceNotFound):
			response.NotFound(w, "Service not found")
		case errors.Is(err, ErrProviderMismatch):
			response.BadRequest(w, "providerId: Service does not belong to this provider")
		case errors.Is(err, ErrSelfBooking):
			response.BadRequest(w, "You cannot book your own service")
		case errors.Is(err, ErrInvalidDates):
			response.BadRequest(w, "endDate: Must not be before startDate")
		case errors.Is(err, ErrNoOccurrences):
			response.BadRequest(w, "No appointment dates match this recurrence")
		case errors.Is(err, recurrence.ErrInvalidPattern), errors.Is(err, recurrence.ErrInvalidDate):
			response.BadRequest(w, err.Error())
		default:
			errorhandler.HandleError(r.Context(), w, err, "create recurring appointment")
		}
		return
	}

	response.Raw(w, http.StatusCreated, CreateRecurringResponse{
		Success:             true,
		RecurringID:         rec.ID,
		AppointmentsCreated: len(occurrences),
		Appointments:        appointmentResponses(occurrences),
	})
}

// List handles GET /recurring-appointments?role=customer|provider
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "User not authenticated")
		return
	}

	role, err := ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		response.BadRequest(w, "role: Must be one of: customer provider")
		return
	}

	list, err := h.service.ListRecurring(r.Context(), userID, role)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err, "list recurring appointments")
		return
	}

	items := make([]RecurringResponse, len(list))
	for i, d := range list {
		items[i] = RecurringResponseFromDetails(d, role)
	}
	response.Raw(w, http.StatusOK, ListRecurringResponse{Success: true, Recurring: items})
}

// Update handles PATCH /recurring-appointments?id=<id>&action=pause|resume|cancel
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "User not authenticated")
		return
	}

	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		response.BadRequest(w, "id: Invalid UUID")
		return
	}
	action, err := ParseAction(r.URL.Query().Get("action"))
	if err != nil {
		response.BadRequest(w, "action: Must be one of: pause resume cancel")
		return
	}

	rec, cancelled, err := h.service.UpdateRecurring(r.Context(), userID, id, action)
	if err != nil {
		switch {
		case errors.Is(err, ErrRecurringNotFound):
			response.NotFound(w, "Recurring appointment not found")
		case errors.Is(err, ErrNotParticipant):
			response.Forbidden(w, "Access denied")
		case errors.Is(err, ErrAlreadyCancelled):
			response.Conflict(w, "Recurring appointment is cancelled")
		default:
			errorhandler.HandleError(r.Context(), w, err, "update recurring appointment")
		}
		return
	}

	response.Raw(w, http.StatusOK, UpdateRecurringResponse{
		Success:               true,
		Recurring:             RecurringResponseFromEntity(rec),
		CancelledAppointments: cancelled,
	})
}

// Routes returns recurring appointment router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Patch("/", h.Update)

	return r
}
