package icao

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/mvidal/flight-emissions-back/internal/domain"
	"golang.org/x/time/rate"
)

// ErrNoUsableResult is returned when the API answers successfully but the
// payload carries no result for the requested cabin class.
var ErrNoUsableResult = errors.New("icao response without usable result")

const co2PerKGFuel = 3.16

// RouteRequest describes one emissions computation.
type RouteRequest struct {
	Departure   string
	Destination string
	Passengers  int
	RoundTrip   bool
	CabinClass  domain.CabinClass
}

// Result carries the metrics the ICAO carbon calculator returns for a route.
type Result struct {
	FuelBurnKG        float64
	TotalCO2KG        float64
	CO2PerPassengerKG float64
	CO2Tonnes         float64
	DistanceKM        float64
	DistanceMiles     float64
	DataSource        string
}

// Computer is the oracle boundary the batch processor depends on.
type Computer interface {
	Compute(ctx context.Context, request RouteRequest) (Result, error)
}

type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
	RateRPS    float64
	RateBurst  int
}

// Client calls the ICAO passenger-compute endpoint. Calls are paced with a
// shared rate limiter so a batch pass does not flood the API.
type Client struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(config ClientConfig) *Client {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "https://icec.icao.int"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 2
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.RateRPS <= 0 {
		config.RateRPS = 2
	}
	if config.RateBurst <= 0 {
		config.RateBurst = 4
	}

	return &Client{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		httpClient: config.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(config.RateRPS), config.RateBurst),
	}
}

var cabinClassCodes = map[domain.CabinClass]int{
	domain.CabinEconomy:        0,
	domain.CabinPremiumEconomy: 1,
	domain.CabinBusiness:       2,
	domain.CabinFirst:          3,
}

func (c *Client) Compute(ctx context.Context, request RouteRequest) (Result, error) {
	departure := strings.ToUpper(strings.TrimSpace(request.Departure))
	destination := strings.ToUpper(strings.TrimSpace(request.Destination))
	if departure == "" || destination == "" {
		return Result{}, errors.New("departure and destination are required")
	}
	if request.Passengers < 1 {
		request.Passengers = 1
	}

	payload := map[string]any{
		"AirportCodeDeparture":   departure,
		"AirportCodeDestination": []string{destination},
		"CabinClass":             cabinClassCodes[request.CabinClass],
		"Departure":              departure + " Airport",
		"Destination":            []string{destination + " Airport"},
		"IsRoundTrip":            request.RoundTrip,
		"NumberOfPassenger":      request.Passengers,
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal icao payload: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		result, callErr := c.callPassengerCompute(ctx, encoded, request)
		if callErr == nil {
			return result, nil
		}
		lastErr = callErr

		if !isRetryableError(callErr) || attempt == c.maxRetries {
			break
		}

		backoff := time.Duration(500*(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(backoff):
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown icao error")
	}
	return Result{}, lastErr
}

func (c *Client) callPassengerCompute(
	ctx context.Context,
	payload []byte,
	request RouteRequest,
) (Result, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodPost,
		c.baseURL+"/Home/PassengerCompute",
		bytes.NewReader(payload),
	)
	if err != nil {
		return Result{}, fmt.Errorf("create icao request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json; charset=UTF-8")
	httpRequest.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	httpRequest.Header.Set("X-Requested-With", "XMLHttpRequest")

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return Result{}, fmt.Errorf("icao timeout: %w", err)
		}
		return Result{}, fmt.Errorf("icao transport error: %w", err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read icao body: %w", err)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		message := strings.TrimSpace(string(body))
		if len(message) > 500 {
			message = message[:500]
		}
		return Result{}, &icaoHTTPError{
			StatusCode: httpResponse.StatusCode,
			Message:    message,
		}
	}

	var raw passengerComputeResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return Result{}, fmt.Errorf("decode icao response: %w", err)
	}

	return buildResult(raw, request)
}

type passengerComputeResponse struct {
	ResultSummary []struct {
		CabinClass   int  `json:"cabinClass"`
		IsClassFound bool `json:"isClassFound"`
		Details      []struct {
			CO2          float64 `json:"co2"`
			AvgFuel      float64 `json:"avgFuel"`
			TripDistance float64 `json:"tripDistance"`
		} `json:"details"`
	} `json:"resultSummary"`
}

func buildResult(response passengerComputeResponse, request RouteRequest) (Result, error) {
	wantClass := cabinClassCodes[request.CabinClass]

	for _, summary := range response.ResultSummary {
		if summary.CabinClass != wantClass || !summary.IsClassFound {
			continue
		}

		var co2PerPassenger, distanceKM float64
		for _, leg := range summary.Details {
			co2PerPassenger += leg.CO2
			distanceKM += leg.TripDistance
		}
		if co2PerPassenger <= 0 && distanceKM <= 0 {
			continue
		}

		passengers := float64(request.Passengers)
		totalCO2 := co2PerPassenger * passengers
		totalFuel := co2PerPassenger / co2PerKGFuel * passengers

		return Result{
			FuelBurnKG:        math.Round(totalFuel),
			TotalCO2KG:        math.Round(totalCO2),
			CO2PerPassengerKG: math.Round(co2PerPassenger),
			CO2Tonnes:         math.Round(totalCO2) / 1000,
			DistanceKM:        math.Round(distanceKM),
			DistanceMiles:     math.Round(distanceKM * 0.621371),
			DataSource:        "ICAO_API",
		}, nil
	}

	return Result{}, ErrNoUsableResult
}

type icaoHTTPError struct {
	StatusCode int
	Message    string
}

func (e *icaoHTTPError) Error() string {
	return fmt.Sprintf("icao status %d: %s", e.StatusCode, e.Message)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *icaoHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
