package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tech-news-daily/apptrack/internal/gemini"
	"github.com/tech-news-daily/apptrack/internal/metadata"
	"github.com/tech-news-daily/apptrack/internal/notify"
	"github.com/tech-news-daily/apptrack/internal/observability"
	"github.com/tech-news-daily/apptrack/internal/pipeline"
	"github.com/tech-news-daily/apptrack/internal/sensortower"
	"github.com/tech-news-daily/apptrack/internal/store"
	"github.com/tech-news-daily/apptrack/internal/summarize"
)

// Config holds the application configuration loaded from environment variables
type Config struct {
	Env                  string        // Environment (development/production)
	SentryDSN            string        // Sentry DSN for error tracking
	LogLevel             string        // Log level (debug, info, warn, error)
	SensorTowerKey       string        // Sensor Tower API auth token
	SensorTowerInterval  time.Duration // Minimum spacing between Sensor Tower calls
	GeminiAPIKey         string        // Gemini API key; empty disables summarization
	GeminiModel          string        // Gemini model override
	LookupWorkers        int           // Metadata lookup pool size
	RankingLimit         int           // Rows kept per ranking list
	AdvertiserLimit      int           // Advertiser feed request size
	ObservabilityEnabled bool          // Toggle OpenTelemetry + Prometheus exporters
	OTLPEndpoint         string        // OTLP HTTP endpoint for trace export
	OTLPHeaders          string        // Comma separated headers for OTLP exporter
	OTLPInsecure         bool          // Disable TLS verification for OTLP exporter
	PushgatewayURL       string        // Prometheus Pushgateway for run metrics
}

func main() {
	// Load .env files - .env.local takes priority for development
	godotenv.Load(".env.local", ".env")

	config := loadConfig()
	setupLogging(config)

	os.Exit(run(config))
}

func loadConfig() *Config {
	return &Config{
		Env:                  getEnvWithDefault("APP_ENV", "development"),
		SentryDSN:            os.Getenv("SENTRY_DSN"),
		LogLevel:             getEnvWithDefault("LOG_LEVEL", "info"),
		SensorTowerKey:       os.Getenv("SENSORTOWER_API_KEY"),
		SensorTowerInterval:  getEnvDuration("SENSORTOWER_MIN_INTERVAL", 0),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiModel:          os.Getenv("GEMINI_MODEL"),
		LookupWorkers:        getEnvInt("LOOKUP_WORKERS", 0),
		RankingLimit:         getEnvInt("RANKING_LIMIT", 0),
		AdvertiserLimit:      getEnvInt("ADVERTISER_LIMIT", 0),
		ObservabilityEnabled: getEnvWithDefault("OBSERVABILITY_ENABLED", "true") == "true",
		OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPHeaders:          os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		OTLPInsecure:         getEnvWithDefault("OTEL_EXPORTER_OTLP_INSECURE", "false") == "true",
		PushgatewayURL:       os.Getenv("PUSHGATEWAY_URL"),
	}
}

// run executes one ranking run and returns the process exit code. Defers
// (Sentry flush, telemetry push, connection close) run before the code is
// handed to os.Exit.
func run(config *Config) int {
	if config.SensorTowerKey == "" {
		log.Fatal().Msg("SENSORTOWER_API_KEY is required")
	}

	// Initialise Sentry for error tracking
	if config.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.SentryDSN,
			Environment: config.Env,
			TracesSampleRate: func() float64 {
				if config.Env == "production" {
					return 0.1 // 10% sampling in production
				}
				return 1.0 // 100% sampling in development
			}(),
			AttachStacktrace: true,
			Debug:            config.Env == "development",
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialise Sentry")
		} else {
			log.Info().Str("environment", config.Env).Msg("Sentry initialised successfully")
			// Ensure Sentry flushes before the process exits
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Warn().Msg("Sentry DSN not configured, error tracking disabled")
	}

	// Cancel the run on SIGINT/SIGTERM; in-flight calls settle before exit.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if config.ObservabilityEnabled {
		obsProviders, err := observability.Init(ctx, observability.Config{
			Enabled:        true,
			ServiceName:    "apptrack",
			Environment:    config.Env,
			OTLPEndpoint:   strings.TrimSpace(config.OTLPEndpoint),
			OTLPHeaders:    parseOTLPHeaders(config.OTLPHeaders),
			OTLPInsecure:   config.OTLPInsecure,
			PushgatewayURL: config.PushgatewayURL,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialise observability providers")
		} else if obsProviders != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := obsProviders.Shutdown(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("Failed to flush telemetry providers cleanly")
				}
			}()
		}
	}

	// Connect to PostgreSQL
	pgStore, err := store.InitFromEnv()
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL database")
	}
	defer pgStore.Close()

	log.Info().Msg("Connected to PostgreSQL database")
	pgStore.Probe(ctx)

	stClient := sensortower.New(sensortower.Config{
		AuthToken:   config.SensorTowerKey,
		MinInterval: config.SensorTowerInterval,
	})

	var summarizer pipeline.DescriptionSummarizer = summarize.Disabled{}
	if config.GeminiAPIKey != "" {
		summarizer = summarize.New(gemini.New(gemini.Config{
			APIKey: config.GeminiAPIKey,
			Model:  config.GeminiModel,
		}))
	} else {
		log.Warn().Msg("GEMINI_API_KEY not configured, description summarization disabled")
	}

	resolver := metadata.NewDispatcher(metadata.NewCache(), metadata.NewResolver(stClient), config.LookupWorkers)

	runner := pipeline.NewRunner(stClient, resolver, summarizer, pgStore, pipeline.Config{
		ListSize:            config.RankingLimit,
		AdvertiserFetchSize: config.AdvertiserLimit,
	})

	report := runner.Run(ctx, time.Now())

	notify.NewFromEnv().RunSummary(ctx, report)

	if report.AllFailed() {
		log.Error().Str("run_id", report.RunID).Msg("Every ranking list failed, nothing persisted")
		return 1
	}
	return 0
}

// getEnvWithDefault retrieves an environment variable or returns a default value if not set
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns a default value if not set or invalid
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result int
	if _, err := fmt.Sscanf(value, "%d", &result); err != nil {
		log.Warn().
			Str("key", key).
			Str("value", value).
			Int("default", defaultValue).
			Msg("Invalid integer in environment variable, using default")
		return defaultValue
	}

	return result
}

// getEnvDuration retrieves an environment variable as a duration or returns a default value if not set or invalid
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	result, err := time.ParseDuration(value)
	if err != nil {
		log.Warn().
			Str("key", key).
			Str("value", value).
			Dur("default", defaultValue).
			Msg("Invalid duration in environment variable, using default")
		return defaultValue
	}

	return result
}

func parseOTLPHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return headers
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}

		headers[key] = value
	}

	return headers
}

// setupLogging configures the logging system
func setupLogging(config *Config) {
	// Configure log level
	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	// Use console writer in development
	if config.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		// In production, use a JSON format that works well with hosted log drains
		log.Logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Str("service", "apptrack").
			Logger()
	}
}
