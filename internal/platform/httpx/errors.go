package httpx

import (
	"errors"
	"net/http"

	"github.com/ledgerline-erp/ledgerline/internal/shared"
)

// RespondError maps shared domain errors to HTTP responses using RFC7807.
// Package-specific rejections (insufficient stock, credit expiry, ...) are
// mapped by their own handlers before falling back here.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInvalidState):
		Problem(w, http.StatusConflict, "Invalid State", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
