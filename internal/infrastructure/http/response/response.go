// Package response renders handler results as JSON, matching the
// envelope the worker-facing HTTP API and the dashboard clients expect:
// a bare payload on success, {"error":{"code","message","details"}} on
// failure. Marshaling happens before the header is written so a
// failed encode still downgrades to a valid 500 response instead of a
// truncated 200 body.
package response

import (
	"encoding/json"
	"net/http"
)

// ErrorDetail describes one field-level validation failure.
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type errorBody struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// OK writes data as a 200 response.
func OK(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, data)
}

// Created writes data as a 201 response.
func Created(w http.ResponseWriter, data any) {
	write(w, http.StatusCreated, data)
}

// Error writes a {"error":{"code","message"}} envelope with the given
// status code.
func Error(w http.ResponseWriter, code, message string, status int) {
	write(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// ValidationError writes a 400 response with a single field/issue
// detail, matching go-playground/validator field error translation.
func ValidationError(w http.ResponseWriter, field, issue string) {
	write(w, http.StatusBadRequest, errorEnvelope{Error: errorBody{
		Code:    "VALIDATION_ERROR",
		Message: "validation failed",
		Details: []ErrorDetail{{Field: field, Issue: issue}},
	}})
}

// ValidationErrors writes a 400 response with multiple field/issue
// details in one envelope.
func ValidationErrors(w http.ResponseWriter, details []ErrorDetail) {
	write(w, http.StatusBadRequest, errorEnvelope{Error: errorBody{
		Code:    "VALIDATION_ERROR",
		Message: "validation failed",
		Details: details,
	}})
}

// write marshals data before touching the header: json.NewEncoder
// writing directly to w can't recover once WriteHeader has been sent,
// so an encode failure would otherwise leak as a truncated 200 body.
func write(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		body, _ = json.Marshal(errorEnvelope{Error: errorBody{
			Code:    "INTERNAL_ERROR",
			Message: "failed to encode response",
		}})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write(body)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
