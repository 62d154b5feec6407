package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mvidal/flight-emissions-back/internal/automation"
	"github.com/mvidal/flight-emissions-back/internal/batch"
	"github.com/mvidal/flight-emissions-back/internal/config"
	httpserver "github.com/mvidal/flight-emissions-back/internal/http"
	"github.com/mvidal/flight-emissions-back/internal/http/handlers"
	"github.com/mvidal/flight-emissions-back/internal/icao"
	"github.com/mvidal/flight-emissions-back/internal/repository"
)

func main() {
	logger := log.New(os.Stdout, "[emissions-back] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	calculations, airports, repoCloser := setupRepositories(ctx, cfg, logger)
	defer repoCloser()

	cache, cacheCloser := setupProcessedCache(ctx, cfg, logger)
	defer cacheCloser()

	computer := icao.NewClient(icao.ClientConfig{
		BaseURL:    cfg.ICAOBaseURL,
		Timeout:    time.Duration(cfg.ICAOTimeoutMS) * time.Millisecond,
		MaxRetries: cfg.ICAOMaxRetries,
		RateRPS:    cfg.ICAORateRPS,
		RateBurst:  cfg.ICAORateBurst,
	})

	tracker := batch.NewTracker()
	processor := batch.NewProcessor(computer, calculations, airports, tracker, logger, cfg.CommitBatchSize)

	automationService := automation.NewService(automation.ServiceConfig{
		Processor: processor,
		Tracker:   tracker,
		Cache:     cache,
		Dirs: automation.Directories{
			Scheduled: cfg.ScheduledDir,
			Processed: cfg.ProcessedDir,
			Errors:    cfg.ErrorsDir,
		},
		Logger: logger,
		Tick:   time.Duration(cfg.TickSeconds) * time.Second,
	})
	automationService.Schedule(automation.Daily(cfg.ScheduleHour, cfg.ScheduleMinute))

	if cfg.SchedulerEnabled {
		automationService.Start(ctx)
		defer automationService.Stop()
	} else {
		logger.Printf("scheduler disabled by configuration")
	}

	api := handlers.NewAPI(automationService, calculations)
	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      cfg.AuthToken,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func setupRepositories(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (repository.CalculationsRepository, repository.AirportsRepository, func()) {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, using in-memory repositories")
		return repository.NewMemoryCalculationsRepository(), repository.NewMemoryAirportsRepository(), func() {}
	}

	pool, err := repository.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres, fallback to memory: %v", err)
		return repository.NewMemoryCalculationsRepository(), repository.NewMemoryAirportsRepository(), func() {}
	}
	logger.Printf("postgres repositories initialized")
	return repository.NewPostgresCalculationsRepository(pool),
		repository.NewPostgresAirportsRepository(pool),
		pool.Close
}

func setupProcessedCache(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (automation.ProcessedCache, func()) {
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using in-memory processed cache")
		return automation.NewMemoryProcessedCache(), func() {}
	}

	redisCache, err := automation.NewRedisProcessedCache(ctx, automation.RedisCacheConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		SetKey:   cfg.RedisProcessedSetKey,
	}, logger)
	if err != nil {
		logger.Printf("failed to initialize redis processed cache, fallback to memory: %v", err)
		return automation.NewMemoryProcessedCache(), func() {}
	}
	logger.Printf("redis processed cache initialized")
	return redisCache, func() {
		_ = redisCache.Close()
	}
}
