// internal/app/system/respond/respond.go
package respond

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform JSON response body for every endpoint.
type Envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    any      `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// JSON writes an envelope with the given status code.
func JSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// Created writes a 201 success envelope.
func Created(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// Fail writes an error envelope with the given status.
func Fail(w http.ResponseWriter, status int, message string, errs ...string) {
	JSON(w, status, Envelope{Success: false, Message: message, Errors: errs})
}

// Invalid writes a 400 envelope carrying the validator's error list verbatim.
func Invalid(w http.ResponseWriter, message string, errs []string) {
	JSON(w, http.StatusBadRequest, Envelope{Success: false, Message: message, Errors: errs})
}

// NotFound writes a 404 envelope.
func NotFound(w http.ResponseWriter, message string) {
	Fail(w, http.StatusNotFound, message)
}

// Conflict writes a 409 envelope, used for duplicate-key violations.
func Conflict(w http.ResponseWriter, message string) {
	Fail(w, http.StatusConflict, message)
}

// InternalError writes the uniform 500 envelope. The concrete failure is
// logged and audited elsewhere; the body stays generic.
func InternalError(w http.ResponseWriter) {
	Fail(w, http.StatusInternalServerError, "Something went wrong")
}
