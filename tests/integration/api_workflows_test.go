package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvidal/flight-emissions-back/internal/automation"
	"github.com/mvidal/flight-emissions-back/internal/batch"
	httpserver "github.com/mvidal/flight-emissions-back/internal/http"
	"github.com/mvidal/flight-emissions-back/internal/http/handlers"
	"github.com/mvidal/flight-emissions-back/internal/icao"
	"github.com/mvidal/flight-emissions-back/internal/repository"
)

const testAuthToken = "integration-token"

type integrationRuntime struct {
	server *httptest.Server
	dirs   automation.Directories
	close  func()
}

// startIntegrationRuntime wires the full stack against a stub of the ICAO
// carbon calculator, so the real HTTP client, retry and rate-limit paths are
// exercised end to end.
func startIntegrationRuntime(t *testing.T) integrationRuntime {
	t.Helper()

	oracle := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Home/PassengerCompute" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"resultSummary": [
				{
					"cabinClass": 0,
					"isClassFound": true,
					"details": [
						{"co2": 110.4, "avgFuel": 35.0, "tripDistance": 550.2}
					]
				}
			]
		}`))
	}))

	root := t.TempDir()
	dirs := automation.Directories{
		Scheduled: filepath.Join(root, "scheduled"),
		Processed: filepath.Join(root, "processed"),
		Errors:    filepath.Join(root, "errors"),
	}
	if err := dirs.Ensure(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	calculations := repository.NewMemoryCalculationsRepository()
	airports := repository.NewMemoryAirportsRepository("AAA", "BBB")
	tracker := batch.NewTracker()

	computer := icao.NewClient(icao.ClientConfig{
		BaseURL:   oracle.URL,
		Timeout:   5 * time.Second,
		RateRPS:   1000,
		RateBurst: 1000,
	})
	processor := batch.NewProcessor(computer, calculations, airports, tracker, logger, 0)

	automationService := automation.NewService(automation.ServiceConfig{
		Processor: processor,
		Tracker:   tracker,
		Cache:     automation.NewMemoryProcessedCache(),
		Dirs:      dirs,
		Logger:    logger,
	})
	automationService.Schedule(automation.Daily(2, 0))

	api := handlers.NewAPI(automationService, calculations)
	router := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      testAuthToken,
		RateLimitRPS:   20000,
		RateLimitBurst: 20000,
	})

	server := httptest.NewServer(router)
	return integrationRuntime{
		server: server,
		dirs:   dirs,
		close: func() {
			server.Close()
			oracle.Close()
		},
	}
}

func doJSON(
	t *testing.T,
	client *http.Client,
	method, url string,
	payload any,
) (int, map[string]any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}
	request, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Authorization", "Bearer "+testAuthToken)

	response, err := client.Do(request)
	if err != nil {
		t.Fatalf("execute request: %v", err)
	}
	defer response.Body.Close()

	raw, _ := io.ReadAll(response.Body)
	if len(raw) == 0 {
		return response.StatusCode, map[string]any{}
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode response body (%d): %s", response.StatusCode, string(raw))
	}
	return response.StatusCode, decoded
}

func seedScheduledFile(t *testing.T, dirs automation.Directories, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dirs.Scheduled, name), []byte(content), 0o644); err != nil {
		t.Fatalf("seed scheduled file: %v", err)
	}
}

func TestBatchWorkflowEndToEnd(t *testing.T) {
	runtime := startIntegrationRuntime(t)
	defer runtime.close()

	client := runtime.server.Client()
	baseURL := runtime.server.URL

	seedScheduledFile(t, runtime.dirs, "routes.csv", "From,To\nAAA,BBB\nBBB,AAA\n")

	status, body := doJSON(t, client, http.MethodPost, baseURL+"/v1/automation/trigger", nil)
	if status != http.StatusOK {
		t.Fatalf("trigger: expected 200, got %d body=%+v", status, body)
	}
	files, _ := body["files"].([]any)
	if len(files) != 1 {
		t.Fatalf("expected 1 file in run summary, got %+v", body)
	}
	fileEntry, _ := files[0].(map[string]any)
	if fileEntry["destination"] != "processed" || fileEntry["moved"] != true {
		t.Fatalf("expected file routed to processed, got %+v", fileEntry)
	}

	status, body = doJSON(t, client, http.MethodGet, baseURL+"/v1/automation/progress", nil)
	if status != http.StatusOK {
		t.Fatalf("progress: expected 200, got %d", status)
	}
	if body["status"] != "completed" {
		t.Fatalf("expected completed progress, got %+v", body)
	}
	if body["processed_rows"] != float64(2) || body["error_rows"] != float64(0) {
		t.Fatalf("unexpected progress counters %+v", body)
	}

	status, body = doJSON(t, client, http.MethodGet, baseURL+"/v1/automation/status", nil)
	if status != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", status)
	}
	if body["cache_size"] != float64(1) {
		t.Fatalf("expected 1 cached filename, got %+v", body)
	}
	schedules, _ := body["schedules"].([]any)
	if len(schedules) != 1 {
		t.Fatalf("expected 1 registered schedule, got %+v", body)
	}

	status, body = doJSON(t, client, http.MethodGet, baseURL+"/v1/calculations/1", nil)
	if status != http.StatusOK {
		t.Fatalf("calculation: expected 200, got %d body=%+v", status, body)
	}
	if body["total_co2_kg"] != float64(110) {
		t.Fatalf("expected rounded per-passenger total, got %+v", body)
	}
	if body["flight_info"] != "AAA to BBB - 550km • Economy" {
		t.Fatalf("unexpected flight info %+v", body["flight_info"])
	}

	status, body = doJSON(t, client, http.MethodPost, baseURL+"/v1/automation/cache/clear", nil)
	if status != http.StatusOK || body["cleared_entries"] != float64(1) {
		t.Fatalf("cache clear: expected 1 cleared entry, got %d %+v", status, body)
	}

	status, body = doJSON(t, client, http.MethodPost, baseURL+"/v1/automation/processed/archive", nil)
	if status != http.StatusOK {
		t.Fatalf("archive: expected 200, got %d", status)
	}
	moved, _ := body["moved_files"].([]any)
	if len(moved) != 2 {
		t.Fatalf("expected csv and sidecar archived, got %+v", body)
	}

	entries, err := os.ReadDir(runtime.dirs.Processed)
	if err != nil {
		t.Fatalf("read processed dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected processed dir emptied after archive, got %d entries", len(entries))
	}
}

func TestTriggerWithParamsPersistsOverrides(t *testing.T) {
	runtime := startIntegrationRuntime(t)
	defer runtime.close()

	client := runtime.server.Client()
	baseURL := runtime.server.URL

	seedScheduledFile(t, runtime.dirs, "override.csv", "From,To\nAAA,BBB\n")

	payload := map[string]any{"passengers": 3, "cabinClass": "economy", "roundTrip": true}
	status, body := doJSON(t, client, http.MethodPost, baseURL+"/v1/automation/trigger", payload)
	if status != http.StatusOK {
		t.Fatalf("trigger: expected 200, got %d body=%+v", status, body)
	}

	status, body = doJSON(t, client, http.MethodGet, baseURL+"/v1/calculations/1", nil)
	if status != http.StatusOK {
		t.Fatalf("calculation: expected 200, got %d", status)
	}
	if body["passengers"] != float64(3) || body["round_trip"] != true {
		t.Fatalf("expected override params persisted, got %+v", body)
	}
	if body["total_co2_kg"] != float64(331) {
		t.Fatalf("expected co2 scaled by passengers, got %+v", body["total_co2_kg"])
	}
}

func TestAuthRequiredOnVersionedRoutes(t *testing.T) {
	runtime := startIntegrationRuntime(t)
	defer runtime.close()

	client := runtime.server.Client()

	response, err := client.Get(runtime.server.URL + "/v1/automation/status")
	if err != nil {
		t.Fatalf("status request: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", response.StatusCode)
	}

	health, err := client.Get(runtime.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	defer health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("expected open health endpoint, got %d", health.StatusCode)
	}
}

func TestConcurrentTriggersAreSingleFlight(t *testing.T) {
	runtime := startIntegrationRuntime(t)
	defer runtime.close()

	client := runtime.server.Client()
	baseURL := runtime.server.URL

	for i := 0; i < 5; i++ {
		seedScheduledFile(t, runtime.dirs, fmt.Sprintf("batch-%d.csv", i), "From,To\nAAA,BBB\n")
	}

	type outcome struct {
		status  int
		skipped bool
		err     error
	}
	results := make(chan outcome, 4)
	for i := 0; i < 4; i++ {
		go func() {
			request, err := http.NewRequest(http.MethodPost, baseURL+"/v1/automation/trigger", nil)
			if err != nil {
				results <- outcome{err: err}
				return
			}
			request.Header.Set("Authorization", "Bearer "+testAuthToken)
			response, err := client.Do(request)
			if err != nil {
				results <- outcome{err: err}
				return
			}
			defer response.Body.Close()

			var body struct {
				Skipped bool `json:"skipped"`
			}
			if err := json.NewDecoder(response.Body).Decode(&body); err != nil {
				results <- outcome{err: err}
				return
			}
			results <- outcome{status: response.StatusCode, skipped: body.Skipped}
		}()
	}

	var ran, conflicted int
	for i := 0; i < 4; i++ {
		result := <-results
		switch {
		case result.err != nil:
			t.Fatalf("trigger request failed: %v", result.err)
		case result.status == http.StatusOK && !result.skipped:
			ran++
		case result.status == http.StatusConflict && result.skipped:
			conflicted++
		default:
			t.Fatalf("unexpected trigger outcome %+v", result)
		}
	}
	if ran == 0 {
		t.Fatalf("expected at least one trigger to run")
	}
	if ran+conflicted != 4 {
		t.Fatalf("expected every trigger to either run or report conflict")
	}
}
