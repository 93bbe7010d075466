package http

import (
	"encoding/json"
	"net/http"

	apperrors "skedit/pkg/errors"
)

// Response is the envelope every API route writes.
type Response struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Code    string         `json:"code,omitempty"`
	Data    any            `json:"data,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a failure envelope. Non-AppError values become a generic
// internal error so causes never leak to clients.
func WriteError(w http.ResponseWriter, err error) error {
	appErr := apperrors.AsAppError(err)
	return WriteJSON(w, appErr.StatusCode(), Response{
		Success: false,
		Message: appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	})
}

func WriteSuccess(w http.ResponseWriter, data any) error {
	return WriteJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func WriteMessage(w http.ResponseWriter, message string, data any) error {
	return WriteJSON(w, http.StatusOK, Response{Success: true, Message: message, Data: data})
}

// WriteNull writes a success envelope whose data is an explicit null.
func WriteNull(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, struct {
		Success bool   `json:"success"`
		Message string `json:"message,omitempty"`
		Data    any    `json:"data"`
	}{Success: true, Message: message})
}
