// Package httputil holds the JSON response envelope and request decoding helpers
// shared by every handler.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	dErrors "formintake/pkg/domain-errors"
)

// MaxBodyBytes bounds request bodies; a registration is a handful of short strings.
const MaxBodyBytes = 64 << 10

// Caller-facing messages. Storage and internal failures never leak detail.
const (
	MessageNotFound       = "Not Found"
	MessageUnavailable    = "Service unavailable"
	MessageInternal       = "Internal server error"
	MessageValidation     = "Validation failed"
	MessageInvalidRequest = "Invalid request body"
)

// ErrorResponse is the envelope for every non-2xx response.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Errors  any    `json:"errors,omitempty"`
}

// NewErrorResponse builds an envelope with status "error".
func NewErrorResponse(message string, details any) ErrorResponse {
	return ErrorResponse{Status: "error", Message: message, Errors: details}
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into status and envelope. Errors without a
// domain code are treated as internal.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeInternal
	message := ""
	if de, ok := dErrors.From(err); ok {
		code = de.Code
		message = de.Message
	}
	status := StatusFor(code)
	WriteJSON(w, status, NewErrorResponse(publicMessage(code, message), nil))
}

// StatusFor maps a domain code onto an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(code dErrors.Code, message string) string {
	switch code {
	case dErrors.CodeNotFound:
		return MessageNotFound
	case dErrors.CodeUnavailable:
		return MessageUnavailable
	case dErrors.CodeValidation:
		return MessageValidation
	case dErrors.CodeBadRequest, dErrors.CodeConflict:
		if message != "" {
			return message
		}
		return MessageInvalidRequest
	default:
		return MessageInternal
	}
}

// DecodeJSON reads a single JSON value from the request body without imposing a
// shape, so closed-schema validation can see every key the caller sent. Numbers
// are kept as json.Number.
func DecodeJSON(w http.ResponseWriter, r *http.Request) (any, error) {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, MessageInvalidRequest)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, dErrors.New(dErrors.CodeBadRequest, MessageInvalidRequest)
	}
	return v, nil
}
