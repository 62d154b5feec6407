package httpserver

import (
	"log"
	"net/http"

	"github.com/mvidal/flight-emissions-back/internal/http/handlers"
	"github.com/mvidal/flight-emissions-back/internal/http/middleware"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         *log.Logger
	AuthToken      string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", deps.API.Health)
	mux.HandleFunc("/v1/automation/progress", deps.API.Progress)
	mux.HandleFunc("/v1/automation/trigger", deps.API.Trigger)
	mux.HandleFunc("/v1/automation/status", deps.API.Status)
	mux.HandleFunc("/v1/automation/params", deps.API.SetParams)
	mux.HandleFunc("/v1/automation/cache/clear", deps.API.CacheClear)
	mux.HandleFunc("/v1/automation/processed/archive", deps.API.ArchiveProcessed)
	mux.HandleFunc("/v1/calculations/", deps.API.Calculation)

	handler := http.Handler(mux)
	handler = middleware.Auth(deps.AuthToken)(handler)
	handler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: deps.CORSOrigins,
	})(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
