// Package logging configures the application-wide zerolog logger: JSON
// output tee'd to stdout plus an optional log file, and a level taken from
// LOG_LEVEL.
package logging

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ragengine/internal/obs"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var w io.Writer = os.Stdout
	logPath := firstNonEmpty(os.Getenv("LOG_PATH"), "ragengine.log")
	if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
		w = io.MultiWriter(os.Stdout, f)
	} else {
		_, _ = fmt.Fprintf(os.Stderr, "failed to open log file %q: %v\n", logPath, err)
	}
	log.Logger = log.Output(w).With().Timestamp().Caller().Logger()

	level := strings.ToLower(firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"))
	lvl := zerolog.InfoLevel
	if level != "" {
		if l, err := zerolog.ParseLevel(level); err == nil {
			lvl = l
		}
	}
	zerolog.SetGlobalLevel(lvl)

	stdlog.SetFlags(0)
	stdlog.SetOutput(log.Logger)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// componentLogger adapts a *zerolog.Logger to obs.Logger.
type componentLogger struct {
	logger zerolog.Logger
}

// New returns an obs.Logger backed by the package zerolog instance, with
// component attached to every line it writes.
func New(component string) obs.Logger {
	return componentLogger{logger: log.Logger.With().Str("component", component).Logger()}
}

func (l componentLogger) Info(msg string, fields map[string]any) {
	l.logger.Info().Fields(fields).Msg(msg)
}

func (l componentLogger) Error(msg string, fields map[string]any) {
	l.logger.Error().Fields(fields).Msg(msg)
}

func (l componentLogger) Debug(msg string, fields map[string]any) {
	l.logger.Debug().Fields(fields).Msg(msg)
}

func (l componentLogger) Warn(msg string, fields map[string]any) {
	l.logger.Warn().Fields(fields).Msg(msg)
}
