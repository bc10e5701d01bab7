package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"keywarden-go/internal/models"
	"keywarden-go/internal/secret"
)

// Logger represents the application logger
type Logger struct {
	logger *logrus.Logger
	file   *os.File
}

// LogLevel represents the log level
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// NewLogger creates a new logger instance
func NewLogger(level LogLevel, logFile string) (*Logger, error) {
	logger := logrus.New()

	switch level {
	case DebugLevel:
		logger.SetLevel(logrus.DebugLevel)
	case InfoLevel:
		logger.SetLevel(logrus.InfoLevel)
	case WarnLevel:
		logger.SetLevel(logrus.WarnLevel)
	case ErrorLevel:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	var output io.Writer = os.Stdout
	if logFile != "" {
		logDir := filepath.Dir(logFile)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		output = io.MultiWriter(os.Stdout, file)
		logger.SetOutput(output)

		return &Logger{
			logger: logger,
			file:   file,
		}, nil
	}

	logger.SetOutput(output)

	return &Logger{
		logger: logger,
		file:   nil,
	}, nil
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields ...map[string]interface{}) {
	l.logWithCaller(logrus.DebugLevel, message, fields...)
}

// Info logs an info message
func (l *Logger) Info(message string, fields ...map[string]interface{}) {
	l.logWithCaller(logrus.InfoLevel, message, fields...)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields ...map[string]interface{}) {
	l.logWithCaller(logrus.WarnLevel, message, fields...)
}

// Error logs an error message
func (l *Logger) Error(message string, fields ...map[string]interface{}) {
	l.logWithCaller(logrus.ErrorLevel, message, fields...)
}

// logWithCaller logs a message with caller information
func (l *Logger) logWithCaller(level logrus.Level, message string, fields ...map[string]interface{}) {
	_, file, line, ok := runtime.Caller(2)
	caller := ""
	if ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	allFields := make(map[string]interface{})
	for _, fieldMap := range fields {
		for k, v := range fieldMap {
			allFields[k] = v
		}
	}

	if caller != "" {
		allFields["caller"] = caller
	}

	l.logger.WithFields(allFields).Log(level, message)
}

// LogValidation logs the outcome of a validation request. The key is
// always masked; raw key material never reaches a log record.
func (l *Logger) LogValidation(provider, key string, result *models.ValidationResult) {
	fields := map[string]interface{}{
		"provider":    provider,
		"key":         secret.Mask(key),
		"valid":       result.Valid,
		"http_status": result.HTTPStatus,
		"from_cache":  result.FromCache,
		"elapsed_ms":  result.Elapsed.Milliseconds(),
		"event_type":  "key_validation",
	}
	if result.ErrorKind != models.ErrorNone {
		fields["error_kind"] = string(result.ErrorKind)
	}

	if result.Valid {
		l.Info("Key validation successful", fields)
	} else {
		l.Warn("Key validation failed", fields)
	}
}

// LogPatternRejection logs a key rejected before any network activity
func (l *Logger) LogPatternRejection(provider, key string, result models.PatternResult) {
	l.Info("Key rejected by pattern check", map[string]interface{}{
		"provider":   provider,
		"key":        secret.Mask(key),
		"error_kind": string(result.ErrorKind),
		"event_type": "pattern_rejection",
	})
}

// LogSystemEvent logs a system event
func (l *Logger) LogSystemEvent(eventType, message string, fields ...map[string]interface{}) {
	allFields := make(map[string]interface{})
	for _, fieldMap := range fields {
		for k, v := range fieldMap {
			allFields[k] = v
		}
	}

	allFields["event_type"] = "system"
	allFields["sub_type"] = eventType

	l.Info(message, allFields)
}

// Close closes the logger and any open files
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
