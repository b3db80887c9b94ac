package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger to provide additional functionality
type Logger struct {
	zerolog.Logger
}

// Config holds the logger configuration
type Config struct {
	// Level is the minimum level to log
	Level string `json:"level" default:"info"`

	// Format specifies the output format (json or console)
	Format string `json:"format" default:"console"`

	// Output specifies where to write logs (stdout, stderr, or file path).
	// Build log lines are relayed on stdout, so stderr is the default here.
	Output string `json:"output" default:"stderr"`

	// TimeFormat specifies the format for timestamps
	TimeFormat string `json:"time_format" default:"2006-01-02T15:04:05.000Z07:00"`

	// AddCaller adds the caller (file:line) to log entries
	AddCaller bool `json:"add_caller" default:"false"`

	// NoColor disables ANSI colors in console output
	NoColor bool `json:"no_color" default:"false"`
}

type contextKey string

const (
	loggerContextKey = contextKey("logger")

	defaultTimeFormat = "2006-01-02T15:04:05.000Z07:00"
)

// NewLogger creates a new logger instance with the provided configuration
func NewLogger(cfg *Config) *Logger {
	if cfg == nil {
		cfg = &Config{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			TimeFormat: defaultTimeFormat,
		}
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = defaultTimeFormat
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	return New(output, cfg)
}

// New builds a logger writing to w. The Output field of cfg is ignored.
func New(w io.Writer, cfg *Config) *Logger {
	if cfg == nil {
		cfg = &Config{Format: "json"}
	}

	if strings.ToLower(cfg.Format) == "console" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: cfg.TimeFormat,
			NoColor:    cfg.NoColor,
		}
	}

	logger := zerolog.New(w).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()

	if cfg.AddCaller {
		logger = logger.With().Caller().Logger()
	}

	return &Logger{
		Logger: logger,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// WithContext returns a copy of context with the logger attached
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext retrieves the logger from the context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok {
		return logger
	}
	return NewLogger(nil)
}

// WithFields creates a new logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{Logger: ctx.Logger()}
}

// WithField creates a new logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{Logger: l.With().Interface(key, value).Logger()}
}

// WithError creates a new logger with an error field
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.With().Err(err).Logger()}
}

// WithBuildID adds a CodeBuild build ID to the logger
func (l *Logger) WithBuildID(buildID string) *Logger {
	return &Logger{Logger: l.With().Str("build_id", buildID).Logger()}
}

// WithProject adds a CodeBuild project name to the logger
func (l *Logger) WithProject(projectName string) *Logger {
	return &Logger{Logger: l.With().Str("project_name", projectName).Logger()}
}

// parseLevel converts a string level to zerolog.Level
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}
