package server

import (
	"errors"
	"net/http"

	"github.com/bindleproject/bindle/internal/provider"
	"github.com/bindleproject/bindle/internal/signature"
)

// statusForError maps a provider/signature error to the HTTP status code
// per SPEC_FULL.md §7's error taxonomy table.
func statusForError(err error) int {
	switch {
	case errors.Is(err, provider.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, provider.ErrYanked):
		return http.StatusForbidden
	case errors.Is(err, provider.ErrExists):
		return http.StatusConflict
	case errors.Is(err, provider.ErrWriteInProgress):
		return http.StatusConflict
	case errors.Is(err, provider.ErrCreateYanked),
		errors.Is(err, provider.ErrDigestMismatch),
		errors.Is(err, provider.ErrSizeMismatch),
		errors.Is(err, provider.ErrInvalidID),
		errors.Is(err, provider.ErrUnserializable):
		return http.StatusBadRequest
	case errors.Is(err, signature.ErrUnverified),
		errors.Is(err, signature.ErrNoKnownKey),
		errors.Is(err, signature.ErrCorruptKey),
		errors.Is(err, signature.ErrCorruptSignature):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
