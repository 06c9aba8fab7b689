// Package httputil centralizes JSON response writing so handlers stay thin.
package httputil

import (
	"encoding/json"
	"net/http"

	"sarathi/pkg/domerrors"
)

// Validatable is implemented by request types that normalize and check their
// own fields after decoding.
type Validatable interface {
	Validate() error
}

// DecodeAndPrepare decodes a JSON request body into T and runs its
// validation. On failure it writes the error response and returns false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request) (PT, bool) {
	req := PT(new(T))
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		WriteError(w, domerrors.New(domerrors.CodeValidation, "request body is not valid JSON"))
		return nil, false
	}
	if err := req.Validate(); err != nil {
		WriteError(w, err)
		return nil, false
	}
	return req, true
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to an HTTP status and JSON body. Internal
// errors omit the description so backing-store detail never leaks to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := domerrors.CodeOf(err)

	body := map[string]string{"error": string(code)}
	if code != domerrors.CodeInternal {
		body["error_description"] = domerrors.MessageOf(err)
	}

	WriteJSON(w, statusFor(code), body)
}

func statusFor(code domerrors.Code) int {
	switch code {
	case domerrors.CodeValidation, domerrors.CodeInvalidCode, domerrors.CodeExpiredToken:
		return http.StatusBadRequest
	case domerrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case domerrors.CodeNotFound:
		return http.StatusNotFound
	case domerrors.CodePrecondition, domerrors.CodeConflict, domerrors.CodeDuplicateReservation,
		domerrors.CodeCapacityExhausted, domerrors.CodeHolidayBlocked:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
