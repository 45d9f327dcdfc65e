// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteErrorMessage(w, status, err.Error())
}

// WriteErrorMessage writes {"error": message}
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, ErrorResponse{Error: message})
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteDetailedError writes an error label with a message and optional field details
func WriteDetailedError(w http.ResponseWriter, status int, label, message string, details map[string]string) {
	_ = WriteJSON(w, status, ErrorResponse{
		Error:   label,
		Message: message,
		Details: details,
	})
}

// WriteFailure writes a 500 with a user-facing label and the cause as message,
// e.g. {"error":"Failed to fetch audit logs","message":"..."}
func WriteFailure(w http.ResponseWriter, label string, err error) {
	WriteDetailedError(w, http.StatusInternalServerError, label, err.Error(), nil)
}

// WriteValidationError writes a 400 {"error":"Validation failed","details":{...}}
func WriteValidationError(w http.ResponseWriter, details map[string]string) {
	WriteDetailedError(w, http.StatusBadRequest, "Validation failed", "", details)
}

// WriteNotFoundError writes a not found error response (404 Not Found)
func WriteNotFoundError(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteMessage writes 200 {"message": message}
func WriteMessage(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{"message": message})
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes a 401 {"error": label, "message": message}
func WriteUnauthorized(w http.ResponseWriter, label, message string) {
	WriteDetailedError(w, http.StatusUnauthorized, label, message, nil)
}

// WriteForbidden writes a 403 {"error": label, "message": message}
func WriteForbidden(w http.ResponseWriter, label, message string) {
	WriteDetailedError(w, http.StatusForbidden, label, message, nil)
}

// WriteTooManyRequests writes a rate limit error (429)
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusTooManyRequests, message)
}
