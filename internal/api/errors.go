package api

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/price-oracle/internal/errors"
)

// APIError is the error payload of an error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: message,
		},
	}

	_ = json.NewEncoder(w).Encode(response) // nolint:errcheck // best effort
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data) // nolint:errcheck // best effort
	}
}

// respondServiceError maps a categorized error to an error response.
func respondServiceError(w http.ResponseWriter, err error) {
	status := apperrors.GetHTTPStatusCode(err)
	code := ErrCodeInternalError
	message := "An internal error occurred"

	var catErr *apperrors.CategorizedError
	if errors.As(err, &catErr) {
		code = catErr.Code
		message = catErr.Message
	}

	respondError(w, status, code, message)
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
