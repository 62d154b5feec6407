// Command load runs a local read-path benchmark against a fully wired
// in-memory runtime, with a stubbed ICAO calculator so no external calls are
// made. The scheduler is not started; the harness triggers one forced pass
// itself to seed calculations.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mvidal/flight-emissions-back/internal/automation"
	"github.com/mvidal/flight-emissions-back/internal/batch"
	httpserver "github.com/mvidal/flight-emissions-back/internal/http"
	"github.com/mvidal/flight-emissions-back/internal/http/handlers"
	"github.com/mvidal/flight-emissions-back/internal/icao"
	"github.com/mvidal/flight-emissions-back/internal/repository"
)

type scenarioResult struct {
	Name          string   `json:"name"`
	Total         int      `json:"total"`
	Success       int      `json:"success"`
	Errors        int      `json:"errors"`
	P50MS         float64  `json:"p50_ms"`
	P95MS         float64  `json:"p95_ms"`
	P99MS         float64  `json:"p99_ms"`
	MaxMS         float64  `json:"max_ms"`
	ThroughputRPS float64  `json:"throughput_rps"`
	ErrorSamples  []string `json:"error_samples,omitempty"`
}

type runResult struct {
	GeneratedAtUTC string           `json:"generated_at_utc"`
	Environment    string           `json:"environment"`
	Results        []scenarioResult `json:"results"`
	SLOEvaluation  map[string]bool  `json:"slo_evaluation"`
}

type benchmarkEnv struct {
	server  *httptest.Server
	cleanup func()
}

func main() {
	seedRows := flag.Int("seed-rows", 200, "rows in the seed batch file")
	progressTotal := flag.Int("progress-total", 400, "total progress requests")
	progressConcurrency := flag.Int("progress-concurrency", 32, "concurrency for progress requests")
	statusTotal := flag.Int("status-total", 300, "total status requests")
	statusConcurrency := flag.Int("status-concurrency", 24, "concurrency for status requests")
	calculationsTotal := flag.Int("calculations-total", 300, "total calculation lookup requests")
	calculationsConcurrency := flag.Int("calculations-concurrency", 24, "concurrency for calculation lookups")
	triggerTotal := flag.Int("trigger-total", 60, "total concurrent trigger requests")
	triggerConcurrency := flag.Int("trigger-concurrency", 12, "concurrency for trigger requests")
	outputPath := flag.String("output", "", "optional path to persist benchmark results JSON")
	flag.Parse()

	env, err := startBenchmarkEnvironment(*seedRows)
	if err != nil {
		log.Fatalf("failed to start local benchmark environment: %v", err)
	}
	defer env.cleanup()

	client := &http.Client{Timeout: 10 * time.Second}

	// Seed: one forced pass so calculations exist for the read scenarios.
	if err := postJSON(client, env.server.URL+"/v1/automation/trigger", nil, http.StatusOK); err != nil {
		log.Fatalf("seed trigger failed: %v", err)
	}

	progressScenario := runScenario("progress_read", *progressTotal, *progressConcurrency, func(int) error {
		return getJSON(client, env.server.URL+"/v1/automation/progress", http.StatusOK)
	})

	statusScenario := runScenario("status_read", *statusTotal, *statusConcurrency, func(int) error {
		return getJSON(client, env.server.URL+"/v1/automation/status", http.StatusOK)
	})

	calculationsScenario := runScenario("calculations_read", *calculationsTotal, *calculationsConcurrency, func(index int) error {
		id := (index % *seedRows) + 1
		return getJSON(client, fmt.Sprintf("%s/v1/calculations/%d", env.server.URL, id), http.StatusOK)
	})

	// Concurrent triggers against an empty queue: every request must resolve
	// fast as either a run (200) or a single-flight conflict (409).
	triggerScenario := runScenario("trigger_contention", *triggerTotal, *triggerConcurrency, func(int) error {
		err := postJSON(client, env.server.URL+"/v1/automation/trigger", nil, http.StatusOK)
		if err != nil && strings.Contains(err.Error(), "unexpected status 409") {
			return nil
		}
		return err
	})

	results := []scenarioResult{
		progressScenario,
		statusScenario,
		calculationsScenario,
		triggerScenario,
	}

	slo := map[string]bool{
		"progress_read_p95_le_50ms":      progressScenario.P95MS <= 50,
		"status_read_p95_le_50ms":        statusScenario.P95MS <= 50,
		"calculations_read_p95_le_100ms": calculationsScenario.P95MS <= 100,
	}

	report := runResult{
		GeneratedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
		Environment:    "local-httptest",
		Results:        results,
		SLOEvaluation:  slo,
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal benchmark report: %v", err)
	}

	if *outputPath != "" {
		if err := os.WriteFile(*outputPath, encoded, 0o644); err != nil {
			log.Fatalf("failed to write output file: %v", err)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, string(encoded))
}

func startBenchmarkEnvironment(seedRows int) (*benchmarkEnv, error) {
	oracle := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"resultSummary": [
				{
					"cabinClass": 0,
					"isClassFound": true,
					"details": [{"co2": 110.4, "avgFuel": 35.0, "tripDistance": 550.2}]
				}
			]
		}`))
	}))

	root, err := os.MkdirTemp("", "emissions-load-*")
	if err != nil {
		oracle.Close()
		return nil, fmt.Errorf("create temp root: %w", err)
	}
	dirs := automation.Directories{
		Scheduled: filepath.Join(root, "scheduled"),
		Processed: filepath.Join(root, "processed"),
		Errors:    filepath.Join(root, "errors"),
	}
	if err := dirs.Ensure(); err != nil {
		oracle.Close()
		return nil, err
	}

	var seed strings.Builder
	seed.WriteString("From,To\n")
	for i := 0; i < seedRows; i++ {
		seed.WriteString("AAA,BBB\n")
	}
	if err := os.WriteFile(filepath.Join(dirs.Scheduled, "seed.csv"), []byte(seed.String()), 0o644); err != nil {
		oracle.Close()
		return nil, fmt.Errorf("write seed file: %w", err)
	}

	logger := log.New(io.Discard, "", 0)
	calculations := repository.NewMemoryCalculationsRepository()
	airports := repository.NewMemoryAirportsRepository("AAA", "BBB")
	tracker := batch.NewTracker()

	computer := icao.NewClient(icao.ClientConfig{
		BaseURL:   oracle.URL,
		Timeout:   5 * time.Second,
		RateRPS:   100000,
		RateBurst: 100000,
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
		AuthToken:      "",
		RateLimitRPS:   200000,
		RateLimitBurst: 200000,
	})

	server := httptest.NewServer(router)
	return &benchmarkEnv{
		server: server,
		cleanup: func() {
			server.Close()
			oracle.Close()
			_ = os.RemoveAll(root)
		},
	}, nil
}

func runScenario(
	name string,
	total int,
	concurrency int,
	requestFn func(index int) error,
) scenarioResult {
	if total <= 0 {
		return scenarioResult{Name: name}
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	startedAt := time.Now()
	type sample struct {
		durationMS float64
		err        string
	}

	jobs := make(chan int, total)
	results := make(chan sample, total)
	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				requestStart := time.Now()
				err := requestFn(index)
				s := sample{
					durationMS: float64(time.Since(requestStart).Microseconds()) / 1000.0,
				}
				if err != nil {
					s.err = err.Error()
				}
				results <- s
			}
		}()
	}
	wg.Wait()
	close(results)

	durations := make([]float64, 0, total)
	errorSamples := make([]string, 0, 5)
	success := 0
	errorsCount := 0
	for item := range results {
		durations = append(durations, item.durationMS)
		if item.err == "" {
			success++
			continue
		}
		errorsCount++
		if len(errorSamples) < 5 {
			errorSamples = append(errorSamples, item.err)
		}
	}

	sort.Float64s(durations)
	elapsedSeconds := time.Since(startedAt).Seconds()
	throughput := 0.0
	if elapsedSeconds > 0 {
		throughput = float64(total) / elapsedSeconds
	}

	return scenarioResult{
		Name:          name,
		Total:         total,
		Success:       success,
		Errors:        errorsCount,
		P50MS:         percentile(durations, 0.50),
		P95MS:         percentile(durations, 0.95),
		P99MS:         percentile(durations, 0.99),
		MaxMS:         percentile(durations, 1.00),
		ThroughputRPS: round2(throughput),
		ErrorSamples:  errorSamples,
	}
}

func postJSON(
	client *http.Client,
	url string,
	payload any,
	expectedStatus int,
) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != expectedStatus {
		responseBody, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, string(responseBody))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func getJSON(client *http.Client, url string, expectedStatus int) error {
	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != expectedStatus {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, string(body))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return round2(values[0])
	}
	if p >= 1 {
		return round2(values[len(values)-1])
	}
	rank := int(math.Ceil(float64(len(values))*p)) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(values) {
		rank = len(values) - 1
	}
	return round2(values[rank])
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
