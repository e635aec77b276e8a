package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

// errorResponse — тело ответа с ошибкой.
type errorResponse struct {
	Error      string   `json:"error"`
	Reason     string   `json:"reason,omitempty"`
	Field      string   `json:"field,omitempty"`
	ProductIDs []string `json:"productIds,omitempty"`
}

const reasonMalformedRequest = "malformed request"

// statusFor сопоставляет ошибку домена HTTP-статусу.
func statusFor(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorResponse{Error: http.StatusText(status)}

	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		body.Error = vErr.Error()
		body.Reason = vErr.Reason
		body.Field = vErr.Field
		body.ProductIDs = vErr.ProductIDs
	} else if status != http.StatusInternalServerError {
		body.Error = err.Error()
	}

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return &domain.ValidationError{Reason: reasonMalformedRequest, Details: []string{"empty body"}}
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &domain.ValidationError{Reason: reasonMalformedRequest, Details: []string{err.Error()}}
	}
	return nil
}
