package handlers

import (
	"net/http"

	"github.com/mvidal/flight-emissions-back/internal/domain"
)

// Progress returns the live snapshot of the current (or last) batch run.
func (api *API) Progress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, api.automation.Progress())
}

type tripParamsRequest struct {
	Passengers int    `json:"passengers,omitempty"`
	CabinClass string `json:"cabinClass,omitempty"`
	RoundTrip  *bool  `json:"roundTrip,omitempty"`
}

func (request tripParamsRequest) toParams() (domain.TripParams, error) {
	params := domain.DefaultTripParams()
	if request.Passengers > 0 {
		params.Passengers = request.Passengers
	}
	if request.CabinClass != "" {
		cabin := domain.CabinClass(request.CabinClass)
		if !cabin.Valid() {
			return domain.TripParams{}, errInvalidPayload
		}
		params.CabinClass = cabin
	}
	if request.RoundTrip != nil {
		params.RoundTrip = *request.RoundTrip
	}
	return params, nil
}

// Trigger starts one forced pass over the scheduled directory. An optional
// body overrides the trip parameters for this run only.
func (api *API) Trigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var params *domain.TripParams
	if r.Body != nil && r.ContentLength != 0 {
		var request tripParamsRequest
		if err := decodeJSON(r, &request); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
			return
		}
		override, err := request.toParams()
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "unknown cabin class")
			return
		}
		params = &override
	}

	summary, err := api.automation.TriggerManualRun(r.Context(), params)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to run batch pass")
		return
	}
	if summary.Skipped {
		writeJSON(w, http.StatusConflict, summary)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// SetParams replaces the default trip parameters applied to scheduled runs.
func (api *API) SetParams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var request tripParamsRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	params, err := request.toParams()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "unknown cabin class")
		return
	}

	api.automation.SetParams(params)
	writeJSON(w, http.StatusOK, api.automation.Status(r.Context()))
}

// Status reports scheduler state, registered schedules and cache size.
func (api *API) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, api.automation.Status(r.Context()))
}

// CacheClear empties the processed-filename cache.
func (api *API) CacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	cleared := api.automation.ClearCache(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"cleared_entries": cleared})
}

// ArchiveProcessed moves the processed directory contents to a backup dir.
func (api *API) ArchiveProcessed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	summary, err := api.automation.ArchiveProcessed()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to archive processed files")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
