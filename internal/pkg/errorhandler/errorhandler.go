package errorhandler

import (
	"context"
	"net/http"

	"github.com/gigmarket/gigmarket-api/internal/pkg/logger"
	"github.com/gigmarket/gigmarket-api/internal/pkg/response"
)

// HandleError logs an unexpected error with the request context and sends
// the generic 500 envelope. The error text never reaches the client.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, operation string) {
	logger.FromContext(ctx).Error().
		Err(err).
		Str("operation", operation).
		Msg("Request error")

	response.InternalError(w)
}

// LogValidationError logs validation errors with details
func LogValidationError(ctx context.Context, fieldErrors map[string]string) {
	logger.FromContext(ctx).Warn().
		Interface("validation_errors", fieldErrors).
		Msg("Validation error")
}

// LogExternalServiceError logs errors from external service calls
func LogExternalServiceError(ctx context.Context, service string, operation string, err error) {
	logger.FromContext(ctx).Error().
		Str("external_service", service).
		Str("operation", operation).
		Err(err).
		Msg("External service error")
}
