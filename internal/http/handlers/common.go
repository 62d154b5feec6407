package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mvidal/flight-emissions-back/internal/automation"
	"github.com/mvidal/flight-emissions-back/internal/http/middleware"
	"github.com/mvidal/flight-emissions-back/internal/repository"
)

var errInvalidPayload = errors.New("invalid payload")

type API struct {
	automation   *automation.Service
	calculations repository.CalculationsRepository
}

func NewAPI(automationService *automation.Service, calculations repository.CalculationsRepository) *API {
	return &API{
		automation:   automationService,
		calculations: calculations,
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

func decodeJSON(r *http.Request, value any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}
