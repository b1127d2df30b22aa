package payment

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gigmarket/gigmarket-api/internal/middleware"
	"github.com/gigmarket/gigmarket-api/internal/pkg/lock"
	"github.com/gigmarket/gigmarket-api/internal/pkg/logger"
	"github.com/gigmarket/gigmarket-api/internal/pkg/response"
	"github.com/gigmarket/gigmarket-api/internal/pkg/storage"
	"github.com/gigmarket/gigmarket-api/internal/pkg/yoco"
)

const maxWebhookBody = 1 << 20

// PayFast expects these literal bodies.
const (
	payFastOK                 = "OK"
	payFastVerificationFailed = "ITN verification failed"
	payFastNotFound           = "Payment not found"
	payFastInProgress         = "Notification in progress"
	payFastInternalError      = "Internal error"
)

// WebhookConfig configures gateway callback handling
type WebhookConfig struct {
	// LockTTL bounds how long one delivery holds its in-flight lock.
	LockTTL time.Duration
}

// WebhookHandler receives gateway notifications. Nothing here requires a
// session: authenticity comes from provider verification.
type WebhookHandler struct {
	service *Service
	locker  lock.Locker
	archive storage.Storage
	config  WebhookConfig
}

// NewWebhookHandler creates webhook handler. archive may be nil.
func NewWebhookHandler(service *Service, locker lock.Locker, archive storage.Storage, cfg WebhookConfig) *WebhookHandler {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	return &WebhookHandler{service: service, locker: locker, archive: archive, config: cfg}
}

// Yoco handles POST /webhooks/yoco
func (h *WebhookHandler) Yoco(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.Raw(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "Invalid body"})
		return
	}
	h.archiveDelivery(ctx, ProviderYoco, body, "json")

	event, err := yoco.ParseWebhook(bytes.NewReader(body))
	if err != nil {
		response.Raw(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "Invalid webhook payload"})
		return
	}

	release, ok := h.acquire(ctx, ProviderYoco, event.ID)
	if !ok {
		response.Raw(w, http.StatusConflict, map[string]interface{}{"success": false, "error": "Notification already being processed"})
		return
	}
	defer release()

	_, err = h.service.ReconcileYoco(ctx, event.ID, body)
	switch {
	case err == nil:
		response.Raw(w, http.StatusOK, map[string]interface{}{"success": true})
	case errors.Is(err, ErrPaymentNotFound):
		logger.FromContext(ctx).Warn().Str("checkout_id", event.ID).Msg("Yoco notification for unknown payment")
		response.Raw(w, http.StatusNotFound, map[string]interface{}{"success": false, "error": "Payment not found"})
	case isRejection(err):
		logger.FromContext(ctx).Warn().Err(err).Str("checkout_id", event.ID).Msg("Yoco notification rejected")
		response.Raw(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "Verification failed"})
	default:
		logger.FromContext(ctx).Error().Err(err).Str("checkout_id", event.ID).Msg("Yoco notification failed")
		response.Raw(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "Internal error"})
	}
}

// PayFast handles POST /webhooks/payfast
func (h *WebhookHandler) PayFast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.Text(w, http.StatusBadRequest, payFastVerificationFailed)
		return
	}
	h.archiveDelivery(ctx, ProviderPayFast, body, "txt")

	values, err := url.ParseQuery(string(body))
	if err != nil {
		response.Text(w, http.StatusBadRequest, payFastVerificationFailed)
		return
	}

	ref := values.Get("m_payment_id")
	if ref == "" {
		ref = values.Get("pf_payment_id")
	}
	release, ok := h.acquire(ctx, ProviderPayFast, ref)
	if !ok {
		response.Text(w, http.StatusConflict, payFastInProgress)
		return
	}
	defer release()

	_, err = h.service.ReconcilePayFast(ctx, middleware.ClientIP(r), values)
	switch {
	case err == nil:
		response.Text(w, http.StatusOK, payFastOK)
	case errors.Is(err, ErrPaymentNotFound):
		logger.FromContext(ctx).Warn().Str("m_payment_id", values.Get("m_payment_id")).Msg("PayFast ITN for unknown payment")
		response.Text(w, http.StatusNotFound, payFastNotFound)
	case isRejection(err):
		logger.FromContext(ctx).Warn().Err(err).Str("m_payment_id", values.Get("m_payment_id")).Msg("PayFast ITN rejected")
		response.Text(w, http.StatusBadRequest, payFastVerificationFailed)
	default:
		logger.FromContext(ctx).Error().Err(err).Str("m_payment_id", values.Get("m_payment_id")).Msg("PayFast ITN failed")
		response.Text(w, http.StatusInternalServerError, payFastInternalError)
	}
}

func isRejection(err error) bool {
	return errors.Is(err, ErrVerificationFailed) ||
		errors.Is(err, ErrAmountMismatch) ||
		errors.Is(err, ErrProviderMismatch)
}

// acquire takes the in-flight lock for one delivery. When the lock store is
// unreachable the delivery proceeds and relies on the row lock alone.
func (h *WebhookHandler) acquire(ctx context.Context, provider Provider, ref string) (func(), bool) {
	if ref == "" {
		return func() {}, true
	}
	release, ok, err := h.locker.Acquire(ctx, "payment:webhook:"+string(provider)+":"+ref, h.config.LockTTL)
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("provider", string(provider)).Msg("Webhook lock unavailable")
		return func() {}, true
	}
	if !ok {
		logger.FromContext(ctx).Info().Str("provider", string(provider)).Str("reference", ref).Msg("Concurrent delivery in progress")
		return nil, false
	}
	return release, true
}

func (h *WebhookHandler) archiveDelivery(ctx context.Context, provider Provider, body []byte, ext string) {
	if h.archive == nil || len(body) == 0 {
		return
	}
	key := storage.WebhookKey(string(provider), time.Now(), ext)
	l := logger.FromContext(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.archive.Put(ctx, key, body, "application/octet-stream"); err != nil {
			l.Warn().Err(err).Str("key", key).Msg("Failed to archive webhook delivery")
		}
	}()
}

// Routes returns the webhook router
func (h *WebhookHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/yoco", h.Yoco)
	r.Post("/payfast", h.PayFast)
	return r
}
