package httpx

import (
	"errors"
	"net/http"

	"github.com/aegisgate/aegisgate/internal/shared"
)

// RespondError maps domain errors to HTTP responses. Validation and
// reference errors reach the caller with field-level messages; everything
// else collapses to a generic problem so storage internals never leak.
func RespondError(w http.ResponseWriter, err error) {
	var verr *shared.ValidationError
	switch {
	case errors.As(err, &verr):
		Fields(w, verr.Fields)
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "resource not found")
	case errors.Is(err, shared.ErrProtectedRole):
		Problem(w, http.StatusForbidden, "Protected", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusBadRequest, "Invalid Credentials", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", shared.UserSafeMessage(err))
	}
}
