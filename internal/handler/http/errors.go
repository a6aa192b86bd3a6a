package httphandler

import (
	"errors"
	"net/http"

	"whatsapp-service/internal/domain"
)

// statusFor maps domain errors onto HTTP status codes. Anything unknown is
// an internal error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidPhone),
		errors.Is(err, domain.ErrPhoneRequired),
		errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrNoValidRecipients),
		errors.Is(err, domain.ErrTemplateNotFound):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPairingNotAllowed),
		errors.Is(err, domain.ErrTemplatesReadOnly):
		return http.StatusConflict
	case errors.Is(err, domain.ErrChannelClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
