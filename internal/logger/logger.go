// Package logger provides structured logging for the character crawler.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log levels.
type Level = zerolog.Level

// Log levels.
const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	Disabled   = zerolog.Disabled
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	zl zerolog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level      Level
	Pretty     bool // Use console writer (colored output)
	Output     io.Writer
	TimeFormat string
	Component  string // Component name (e.g., "crawler", "fetcher")
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:      WarnLevel,
		Pretty:     true,
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// New creates a new logger with the given configuration.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}

	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        cfg.Output,
			TimeFormat: "15:04:05",
		}
	}

	zl := zerolog.New(output).
		With().
		Timestamp().
		Logger().
		Level(cfg.Level)

	if cfg.Component != "" {
		zl = zl.With().Str("component", cfg.Component).Logger()
	}

	return &Logger{zl: zl}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// LevelFor maps the CLI verbosity switches to a level.
func LevelFor(verbose, debug bool) Level {
	switch {
	case debug:
		return DebugLevel
	case verbose:
		return InfoLevel
	default:
		return WarnLevel
	}
}

// WithComponent returns a new logger with the component field set.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		zl: l.zl.With().Str("component", component).Logger(),
	}
}

// WithURL returns a new logger with URL field.
func (l *Logger) WithURL(url string) *Logger {
	return &Logger{
		zl: l.zl.With().Str("url", url).Logger(),
	}
}

// WithIteration returns a new logger with the iteration field.
func (l *Logger) WithIteration(n int) *Logger {
	return &Logger{
		zl: l.zl.With().Int("iteration", n).Logger(),
	}
}

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

// Info logs an info message.
func (l *Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}

// Infof logs a formatted info message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

// Warnf logs a formatted warning message.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

// Errorf logs a formatted error message.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

// PageEvent logs the outcome of one crawl iteration.
func (l *Logger) PageEvent(url, title string, iteration, links, characters int, duration time.Duration) {
	l.zl.Info().
		Str("url", url).
		Str("title", title).
		Int("iteration", iteration).
		Int("links", links).
		Int("characters", characters).
		Dur("duration", duration).
		Msg("Page processed")
}

// LinkEvent logs a single link classification at debug level.
func (l *Logger) LinkEvent(raw, resolved, reason string) {
	ev := l.zl.Debug().Str("link", raw)
	if resolved != "" {
		ev = ev.Str("resolved", resolved)
	}
	if reason != "" {
		ev = ev.Str("reason", reason)
	}
	ev.Msg("Link classified")
}

// ErrorEvent logs a non-fatal page failure.
func (l *Logger) ErrorEvent(err error, url string, operation string) {
	l.zl.Warn().
		Err(err).
		Str("url", url).
		Str("operation", operation).
		Msg("Operation failed")
}

// StatsEvent logs statistics.
func (l *Logger) StatsEvent(stats map[string]interface{}) {
	event := l.zl.Info()
	for k, v := range stats {
		event = event.Interface(k, v)
	}
	event.Msg("Crawl statistics")
}
