package httpx

import (
	"errors"
	"net/http"

	"github.com/spindle-erp/spindle-erp/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrConsistency):
		Problem(w, http.StatusInternalServerError, "Consistency Violation", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
