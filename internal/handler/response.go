package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/billhaven/billpay/internal/domain"
)

// errorBody is the uniform error payload. Required and SupportedMethods are
// only set for the validation failures that name them.
type errorBody struct {
	Error            string                 `json:"error"`
	Message          string                 `json:"message,omitempty"`
	Required         []string               `json:"required,omitempty"`
	SupportedMethods []domain.PaymentMethod `json:"supportedMethods,omitempty"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, errText, message string) {
	RespondJSON(w, status, errorBody{Error: errText, Message: message})
}

func respondMissingFields(w http.ResponseWriter, required ...string) {
	RespondJSON(w, http.StatusBadRequest, errorBody{
		Error:    "Missing required fields",
		Required: required,
	})
}

func respondBillerNotFound(w http.ResponseWriter) {
	respondError(w, http.StatusNotFound, "Biller not found", "This biller is not registered in our system")
}

// RespondInternal is the generic 500; downstream provider error bodies are
// logged, never surfaced to the client.
func RespondInternal(w http.ResponseWriter, message string) {
	respondError(w, http.StatusInternalServerError, message, "")
}
