// Package logging provides centralized logging infrastructure for archkit.
// It supports console and file handlers with independently configurable
// levels, built on zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Level represents a logging verbosity level.
type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	DisabledLevel
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "trace"
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case DisabledLevel:
		return "disabled"
	default:
		return "unknown"
	}
}

func (l Level) toZerolog() zerolog.Level {
	switch l {
	case TraceLevel:
		return zerolog.TraceLevel
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	case DisabledLevel:
		return zerolog.Disabled
	default:
		return zerolog.WarnLevel
	}
}

// Config holds the logging configuration.
type Config struct {
	ConsoleLevel Level
	FileLevel    Level
	LogFile      string
	NoColor      bool
	// LogPrefix, when set, is attached to every event as a "prefix" field
	// (e.g. --log-prefix from the CLI). It is not sent on outbound resolver
	// requests.
	LogPrefix string
}

// DefaultConfig returns the default logging configuration: warnings to the
// console, debug-and-up to a file under the user's cache directory.
func DefaultConfig() Config {
	return Config{
		ConsoleLevel: WarnLevel,
		FileLevel:    DebugLevel,
		LogFile:      defaultLogFile(),
		NoColor:      false,
	}
}

func defaultLogFile() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "archkit", "archkit.log")
		}
		cacheDir = filepath.Join(homeDir, ".cache")
	}
	return filepath.Join(cacheDir, "archkit", "archkit.log")
}

// levelWriter only forwards writes at or above its configured Level.
type levelWriter struct {
	Writer io.Writer
	Level  Level
}

func (lw levelWriter) Write(p []byte) (int, error) {
	return lw.Writer.Write(p)
}

func (lw levelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	var ours Level
	switch level {
	case zerolog.TraceLevel:
		ours = TraceLevel
	case zerolog.DebugLevel:
		ours = DebugLevel
	case zerolog.InfoLevel:
		ours = InfoLevel
	case zerolog.WarnLevel:
		ours = WarnLevel
	case zerolog.ErrorLevel:
		ours = ErrorLevel
	default:
		ours = WarnLevel
	}
	if ours >= lw.Level {
		return lw.Writer.Write(p)
	}
	return len(p), nil
}

// New builds a zerolog.Logger from Config. Unlike the teacher's logging
// package, this returns a plain logger rather than stashing one in a
// package-level singleton: callers thread it through a RunContext instead.
func New(cfg Config) (zerolog.Logger, error) {
	var writers []zerolog.LevelWriter

	if cfg.ConsoleLevel != DisabledLevel {
		console := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.NoColor,
		}
		writers = append(writers, levelWriter{Writer: console, Level: cfg.ConsoleLevel})
	}

	if cfg.FileLevel != DisabledLevel && cfg.LogFile != "" {
		dir := filepath.Dir(cfg.LogFile)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return zerolog.Logger{}, fmt.Errorf("creating log directory %s: %w", dir, err)
		}
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("opening log file %s: %w", cfg.LogFile, err)
		}
		writers = append(writers, levelWriter{Writer: file, Level: cfg.FileLevel})
	}

	var writer zerolog.LevelWriter
	switch len(writers) {
	case 0:
		writer = levelWriter{Writer: io.Discard, Level: DisabledLevel}
	case 1:
		writer = writers[0]
	default:
		ioWriters := make([]io.Writer, len(writers))
		for i, w := range writers {
			ioWriters[i] = w
		}
		writer = zerolog.MultiLevelWriter(ioWriters...)
	}

	minLevel := cfg.ConsoleLevel
	if cfg.FileLevel < minLevel {
		minLevel = cfg.FileLevel
	}

	logger := zerolog.New(writer).Level(minLevel.toZerolog()).With().Timestamp().Logger()
	if cfg.LogPrefix != "" {
		logger = logger.With().Str("prefix", cfg.LogPrefix).Logger()
	}
	return logger, nil
}

// NewFromVerbosity maps a CLI -v/-vv/-vvv count to a console Config.
// 0 = warn, 1 = info, 2 = debug, 3+ = trace. File logging stays at debug.
func NewFromVerbosity(verbosity int) (zerolog.Logger, error) {
	cfg := DefaultConfig()
	switch {
	case verbosity >= 3:
		cfg.ConsoleLevel = TraceLevel
	case verbosity == 2:
		cfg.ConsoleLevel = DebugLevel
	case verbosity == 1:
		cfg.ConsoleLevel = InfoLevel
	}
	return New(cfg)
}
