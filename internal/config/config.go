package config

import (
	"os"
	"strconv"
	"strings"
)

// Config centralizes runtime settings for the API and the batch automation.
type Config struct {
	Port string

	AuthToken string

	DatabaseURL string

	ICAOBaseURL    string
	ICAOTimeoutMS  int
	ICAOMaxRetries int
	ICAORateRPS    float64
	ICAORateBurst  int

	ScheduledDir string
	ProcessedDir string
	ErrorsDir    string

	CommitBatchSize int

	SchedulerEnabled bool
	ScheduleHour     int
	ScheduleMinute   int
	TickSeconds      int

	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	RedisProcessedSetKey string

	RateLimitRPS   float64
	RateLimitBurst int

	CORSAllowedOrigins []string
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		AuthToken: getEnv("API_AUTH_TOKEN", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		ICAOBaseURL:    getEnv("ICAO_BASE_URL", "https://icec.icao.int"),
		ICAOTimeoutMS:  getEnvInt("ICAO_TIMEOUT_MS", 30000),
		ICAOMaxRetries: getEnvInt("ICAO_MAX_RETRIES", 2),
		ICAORateRPS:    getEnvFloat("ICAO_RATE_RPS", 2),
		ICAORateBurst:  getEnvInt("ICAO_RATE_BURST", 4),

		ScheduledDir: getEnv("SCHEDULED_DIR", "data/scheduled"),
		ProcessedDir: getEnv("PROCESSED_DIR", "data/processed"),
		ErrorsDir:    getEnv("ERRORS_DIR", "data/errors"),

		CommitBatchSize: getEnvInt("COMMIT_BATCH_SIZE", 50),

		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),
		ScheduleHour:     getEnvInt("SCHEDULE_HOUR", 2),
		ScheduleMinute:   getEnvInt("SCHEDULE_MINUTE", 0),
		TickSeconds:      getEnvInt("SCHEDULER_TICK_SECONDS", 60),

		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisProcessedSetKey: getEnv("REDIS_PROCESSED_SET_KEY", "emissions_processed_files"),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", nil),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}
