package icao

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mvidal/flight-emissions-back/internal/domain"
)

const economyResponse = `{
	"resultSummary":[
		{"cabinClass":0,"isClassFound":true,"details":[{"co2":110,"avgFuel":35,"tripDistance":550}]},
		{"cabinClass":2,"isClassFound":false,"details":[]}
	]
}`

func TestClientComputeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Home/PassengerCompute" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(economyResponse))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:    server.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 1,
		RateRPS:    1000,
		RateBurst:  1000,
	})

	result, err := client.Compute(context.Background(), RouteRequest{
		Departure:   "YYZ",
		Destination: "YVR",
		Passengers:  2,
		CabinClass:  domain.CabinEconomy,
	})
	if err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if result.CO2PerPassengerKG != 110 {
		t.Fatalf("expected 110 kg per passenger, got %.1f", result.CO2PerPassengerKG)
	}
	if result.TotalCO2KG != 220 {
		t.Fatalf("expected 220 kg total, got %.1f", result.TotalCO2KG)
	}
	if result.DistanceKM != 550 {
		t.Fatalf("expected 550 km, got %.1f", result.DistanceKM)
	}
	if result.DataSource != "ICAO_API" {
		t.Fatalf("unexpected data source %q", result.DataSource)
	}
}

func TestClientComputeRetriesOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(economyResponse))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:    server.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		RateRPS:    1000,
		RateBurst:  1000,
	})

	_, err := client.Compute(context.Background(), RouteRequest{
		Departure:   "YYZ",
		Destination: "YVR",
		Passengers:  1,
		CabinClass:  domain.CabinEconomy,
	})
	if err != nil {
		t.Fatalf("expected success after retry, got err=%v", err)
	}
	if atomic.LoadInt32(&calls) < 2 {
		t.Fatalf("expected at least 2 calls, got %d", calls)
	}
}

func TestClientComputeBadStatusDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`bad request`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:    server.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 3,
		RateRPS:    1000,
		RateBurst:  1000,
	})

	_, err := client.Compute(context.Background(), RouteRequest{
		Departure:   "AAA",
		Destination: "BBB",
		Passengers:  1,
		CabinClass:  domain.CabinEconomy,
	})
	if err == nil {
		t.Fatalf("expected error on 400 status")
	}
	if !strings.Contains(err.Error(), "icao status 400") {
		t.Fatalf("expected status error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly 1 call for a 400, got %d", calls)
	}
}

func TestClientComputeNoUsableResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"resultSummary":[{"cabinClass":0,"isClassFound":false,"details":[]}]}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:    server.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 1,
		RateRPS:    1000,
		RateBurst:  1000,
	})

	_, err := client.Compute(context.Background(), RouteRequest{
		Departure:   "AAA",
		Destination: "BBB",
		Passengers:  1,
		CabinClass:  domain.CabinEconomy,
	})
	if !errors.Is(err, ErrNoUsableResult) {
		t.Fatalf("expected ErrNoUsableResult, got %v", err)
	}
}

func TestClientComputeMalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html><html>rate limit</html>`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:    server.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 1,
		RateRPS:    1000,
		RateBurst:  1000,
	})

	_, err := client.Compute(context.Background(), RouteRequest{
		Departure:   "AAA",
		Destination: "BBB",
		Passengers:  1,
		CabinClass:  domain.CabinEconomy,
	})
	if err == nil || !strings.Contains(err.Error(), "decode icao response") {
		t.Fatalf("expected decode error, got %v", err)
	}
}
