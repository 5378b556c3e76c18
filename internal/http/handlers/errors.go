// Package handlers implements the HTTP adapters of the lead qualification
// service: the web chat API, the WhatsApp webhook, lead administration, the
// CRM form proxy and the health check.
//
// Every error leaves through fail() as {request_id, code, message}. Clients
// branch on code, never on message.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/tbourn/lead-qualifier/internal/services"
)

// Stable error codes.
const (
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeForbidden      = "forbidden"
	ErrCodeNotFound       = "not_found"
	ErrCodeConflict       = "conflict"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeTimeout        = "timeout"
	ErrCodeInternal       = "internal_error"

	// The completion service failed before a reply existed.
	ErrCodeCompletionFailed = "completion_failed"
	// The CRM form endpoint could not be reached.
	ErrCodeUpstream = "upstream_error"
)

// Messages shown to chat users on failure. They are in Portuguese because
// the widget renders them verbatim.
const (
	msgMissingFields = "Missing required fields: sessionId and message"
	msgBusy          = "Ainda estou respondendo sua mensagem anterior. Aguarde um instante."
	msgGeneric       = "Desculpe, ocorreu um erro. Por favor, tente novamente."
)

// classify maps an error from the chat pipeline to status, code and message.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest, ErrCodeInvalidRequest, msgMissingFields
	case errors.Is(err, services.ErrTooLong):
		return http.StatusBadRequest, ErrCodeInvalidRequest, "message too long"
	case errors.Is(err, services.ErrConversationBusy):
		return http.StatusConflict, ErrCodeConflict, msgBusy
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeTimeout, msgGeneric
	case errors.Is(err, services.ErrCompletionFailed):
		return http.StatusInternalServerError, ErrCodeCompletionFailed, msgGeneric
	default:
		return http.StatusInternalServerError, ErrCodeInternal, msgGeneric
	}
}
