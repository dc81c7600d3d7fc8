package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"campusconnect/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteDomainError(w http.ResponseWriter, err error) {
	status, body := classify(err)
	WriteJSON(w, status, errorEnvelope{Error: body})
}

// classify maps a domain error to a status and wire error. Live sessions use
// the same codes in their error frames.
func classify(err error) (int, apiError) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, apiError{Code: "validation_error", Message: "invalid request", Fields: verr.Fields}
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, apiError{Code: "validation_error", Message: "invalid request"}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, apiError{Code: "unauthorized", Message: "unauthorized"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, apiError{Code: "forbidden", Message: "forbidden"}
	case errors.Is(err, domain.ErrDuplicateConnection):
		return http.StatusConflict, apiError{Code: "connection_exists", Message: "a connection already exists with this user"}
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, apiError{Code: "invalid_transition", Message: "friend request cannot be changed"}
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout, apiError{Code: "timeout", Message: "the request timed out"}
	case errors.Is(err, domain.ErrUpload):
		return http.StatusBadGateway, apiError{Code: "upload_failed", Message: "upload failed"}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, apiError{Code: "not_found", Message: "not found"}
	case errors.Is(err, domain.ErrFetch), errors.Is(err, domain.ErrWrite):
		return http.StatusBadGateway, apiError{Code: "store_unavailable", Message: "the store could not complete the request"}
	default:
		return http.StatusInternalServerError, apiError{Code: "internal_error", Message: "internal server error"}
	}
}
