// Package logging configures the process-wide zerolog logger and hands out
// request-scoped loggers.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aidarkhanov/nanoid"
	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dbt-cloudrun/config"
)

// TraceFieldName is the field Cloud Logging uses to group entries by request trace
const TraceFieldName = "logging.googleapis.com/trace"

// RequestIDHeader carries the request ID back to the caller
const RequestIDHeader = "X-Request-ID"

type logPtr struct{}

var severities = map[zerolog.Level]string{
	zerolog.TraceLevel: "DEBUG",
	zerolog.DebugLevel: "DEBUG",
	zerolog.InfoLevel:  "INFO",
	zerolog.WarnLevel:  "WARNING",
	zerolog.ErrorLevel: "ERROR",
	zerolog.FatalLevel: "CRITICAL",
	zerolog.PanicLevel: "ALERT",
}

// Severity maps a zerolog level to the matching Cloud Logging severity
func Severity(level zerolog.Level) string {
	if s, ok := severities[level]; ok {
		return s
	}
	return "DEFAULT"
}

func getConsoleWriter(out io.Writer) zerolog.ConsoleWriter {
	writer := zerolog.ConsoleWriter{Out: out}
	writer.TimeFormat = "02.01.2006 15:04:05 MST"
	writer.PartsOrder = []string{
		zerolog.TimestampFieldName,
		"req",
		zerolog.LevelFieldName,
		zerolog.CallerFieldName,
		zerolog.MessageFieldName,
	}

	writer.FormatFieldValue = func(value interface{}) string {
		str, ok := value.(string)
		if ok && strings.Contains(str, "\\n") && strings.Contains(str, "\\t") {
			// stack traces
			if unquoted, err := strconv.Unquote(str); err == nil {
				return unquoted
			}
		}

		return fmt.Sprintf("%s", value)
	}
	return writer
}

// Setup configures the global logger. It is called once during bootstrap.
func Setup(cfg *config.Config) {
	setup(cfg, os.Stdout)
}

func setup(cfg *config.Config, out io.Writer) {
	zerolog.SetGlobalLevel(cfg.LogLevelValue())
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if cfg.LogFormat == "console" {
		zerolog.LevelFieldName = "level"
		zerolog.LevelFieldMarshalFunc = func(l zerolog.Level) string { return l.String() }
		zerolog.ErrorStackMarshaler = func(err error) interface{} {
			return eris.ToString(err, true)
		}
		log.Logger = zerolog.New(getConsoleWriter(out)).With().Timestamp().Logger()
	} else {
		zerolog.LevelFieldName = "severity"
		zerolog.LevelFieldMarshalFunc = Severity
		zerolog.ErrorStackMarshaler = func(err error) interface{} {
			return eris.ToJSON(err, true)
		}
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	}

	log.Logger = log.Logger.With().Caller().Stack().Logger()
}

// RequestLogger attaches a logger tagged with a fresh request ID to every request and
// logs the route entry and its outcome.
func RequestLogger(project string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := nanoid.New()

		logCtx := log.With().Str("req", reqID)
		if trace := traceResource(project, c.GetHeader("X-Cloud-Trace-Context")); trace != "" {
			logCtx = logCtx.Str(TraceFieldName, trace)
		}
		logger := logCtx.Logger()

		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logPtr{}, &logger))
		c.Header(RequestIDHeader, reqID)

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("Request received")

		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request completed")
	}
}

// Log returns a zerolog Logger with additional context information (i.e. request ID)
func Log(ctx context.Context) *zerolog.Logger {
	logger := ctx.Value(logPtr{})
	if logger == nil {
		return &log.Logger
	}

	return logger.(*zerolog.Logger)
}

// traceResource turns "TRACE_ID/SPAN_ID;o=1" into projects/<project>/traces/TRACE_ID
func traceResource(project, header string) string {
	if project == "" || header == "" {
		return ""
	}

	traceID, _, _ := strings.Cut(header, "/")
	traceID, _, _ = strings.Cut(traceID, ";")
	if traceID == "" {
		return ""
	}

	return fmt.Sprintf("projects/%s/traces/%s", project, traceID)
}
