// Package logger provides the structured logger shared by every DevPanel package.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the process-wide logger. It is safe to use before InitLogger.
var Logger zerolog.Logger

var (
	fileWriter   *lumberjack.Logger
	fileWriterMu sync.Mutex
)

// LogLevel is the minimum level that is written
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// ParseLogLevel maps config strings ("debug", "info", ...) to a level.
// Unknown values fall back to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	}
	return LogLevelInfo
}

// LogConfig controls where log output goes
type LogConfig struct {
	Level      LogLevel
	Console    bool      // human-readable output
	ConsoleOut io.Writer // defaults to stderr so stdout stays free for MCP stdio
	File       bool
	FilePath   string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

// DefaultLogConfig returns console-only logging at info level
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      LogLevelInfo,
		Console:    true,
		MaxSizeMB:  10,
		MaxAgeDays: 7,
		MaxBackups: 5,
		Compress:   true,
	}
}

// PersistentLogConfig returns a config that also writes to <dataDir>/logs/devpanel.log
func PersistentLogConfig(dataDir string) LogConfig {
	cfg := DefaultLogConfig()
	cfg.File = true
	cfg.FilePath = filepath.Join(dataDir, "logs", "devpanel.log")
	return cfg
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

// InitLogger replaces the global Logger according to config
func InitLogger(config LogConfig) error {
	var writers []io.Writer

	if config.Console {
		out := config.ConsoleOut
		if out == nil {
			out = os.Stderr
		}
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
		})
	}

	fileWriterMu.Lock()
	if fileWriter != nil {
		_ = fileWriter.Close()
		fileWriter = nil
	}
	if config.File && config.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			fileWriterMu.Unlock()
			return err
		}
		fileWriter = &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.MaxSizeMB,
			MaxAge:     config.MaxAgeDays,
			MaxBackups: config.MaxBackups,
			Compress:   config.Compress,
		}
		writers = append(writers, fileWriter)
	}
	fileWriterMu.Unlock()

	if len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(config.Level.zerolog()).
		With().
		Timestamp().
		Logger()

	return nil
}

// CloseLogger flushes and closes the file writer, if any
func CloseLogger() {
	fileWriterMu.Lock()
	defer fileWriterMu.Unlock()
	if fileWriter != nil {
		_ = fileWriter.Close()
		fileWriter = nil
	}
}

// LogFilePath returns the active log file, or "" when file logging is off
func LogFilePath() string {
	fileWriterMu.Lock()
	defer fileWriterMu.Unlock()
	if fileWriter == nil {
		return ""
	}
	return fileWriter.Filename
}

func LogDebug(module string) *zerolog.Event {
	return Logger.Debug().Str("module", module)
}

func LogInfo(module string) *zerolog.Event {
	return Logger.Info().Str("module", module)
}

func LogWarn(module string) *zerolog.Event {
	return Logger.Warn().Str("module", module)
}

func LogError(module string) *zerolog.Event {
	return Logger.Error().Str("module", module)
}

// DeviceLog is the info logger for registry and device events
func DeviceLog() *zerolog.Event {
	return Logger.Info().Str("module", "device")
}

// ProcessLog is the info logger for child process lifecycle
func ProcessLog() *zerolog.Event {
	return Logger.Info().Str("module", "process")
}

// SessionLog is the info logger for slot operations
func SessionLog() *zerolog.Event {
	return Logger.Info().Str("module", "session")
}

// PollLog is the debug logger for device polling, which runs every few seconds
func PollLog() *zerolog.Event {
	return Logger.Debug().Str("module", "poller")
}

// OperationTimer measures a single operation and logs its duration
type OperationTimer struct {
	module    string
	operation string
	startTime time.Time
	details   map[string]string
}

// StartOperation starts timing an operation
func StartOperation(module, operation string) *OperationTimer {
	return &OperationTimer{
		module:    module,
		operation: operation,
		startTime: time.Now(),
		details:   make(map[string]string),
	}
}

// AddDetail attaches a string field to the final log line
func (t *OperationTimer) AddDetail(key, value string) *OperationTimer {
	t.details[key] = value
	return t
}

// End logs a successful completion
func (t *OperationTimer) End() {
	t.event(Logger.Info()).Msg("Operation completed")
}

// EndWithError logs a failed completion
func (t *OperationTimer) EndWithError(err error) {
	t.event(Logger.Error()).Err(err).Msg("Operation failed")
}

func (t *OperationTimer) event(e *zerolog.Event) *zerolog.Event {
	d := time.Since(t.startTime)
	e = e.Str("module", t.module).
		Str("operation", t.operation).
		Dur("duration", d).
		Int64("duration_ms", d.Milliseconds())
	for k, v := range t.details {
		e = e.Str(k, v)
	}
	return e
}

func init() {
	_ = InitLogger(DefaultLogConfig())
}
