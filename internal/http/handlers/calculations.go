package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/mvidal/flight-emissions-back/internal/repository"
)

// Calculation returns one persisted calculation by its numeric identifier.
func (api *API) Calculation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	rawID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/v1/calculations/"))
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "calculation id must be a positive integer")
		return
	}

	calculation, err := api.calculations.GetCalculation(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "calculation not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load calculation")
		return
	}

	writeJSON(w, http.StatusOK, calculation)
}
