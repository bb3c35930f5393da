package observability

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// InitLogger configures the process-wide zerolog logger. Development gets a
// console writer; everywhere else emits JSON with caller info. The level
// comes from LOG_LEVEL and defaults to info.
func InitLogger(serviceName, env string) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var base zerolog.Logger
	if env == "development" {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	} else {
		base = zerolog.New(os.Stdout).With().Caller().Logger()
	}
	log.Logger = base.With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// LoggerFromContext returns the global logger enriched with the trace and
// span ids of the active span, when one is recording.
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	logger := log.Logger
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		logger = logger.With().
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String()).
			Logger()
	}
	return &logger
}

// GetLogger returns the global logger
func GetLogger() *zerolog.Logger {
	return &log.Logger
}
