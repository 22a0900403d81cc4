package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogRotationConfig contains log rotation settings
type LogRotationConfig struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// logWriter holds the rotating file writer for cleanup
var (
	logWriter   *lumberjack.Logger
	logWriterMu sync.Mutex
)

// NewLogger configures the global logrus logger with console output and a
// size-rotated log file.
func NewLogger(logLevel string, logFilePath string, rotationConfig LogRotationConfig) error {
	// Set log level on global logger
	level, err := parseLogLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)

	logWriterMu.Lock()
	defer logWriterMu.Unlock()

	// Close previous writer if open (re-initialization)
	if logWriter != nil {
		logWriter.Close()
	}

	logWriter = &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    rotationConfig.MaxSizeMB,
		MaxBackups: rotationConfig.MaxBackups,
		MaxAge:     rotationConfig.MaxAgeDays,
		Compress:   rotationConfig.Compress,
	}

	// Set up multi-writer to write to both file and console
	multiWriter := io.MultiWriter(os.Stdout, logWriter)
	logrus.SetOutput(multiWriter)

	// Set custom formatter on global logger
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		ForceColors:     false, // Disable colors for file output
	})

	// Log initial message
	logrus.WithFields(logrus.Fields{
		"level":       logLevel,
		"log_file":    logFilePath,
		"max_size":    fmt.Sprintf("%dMB", rotationConfig.MaxSizeMB),
		"max_backups": rotationConfig.MaxBackups,
		"max_age":     fmt.Sprintf("%d days", rotationConfig.MaxAgeDays),
		"compress":    rotationConfig.Compress,
	}).Info("Logger initialized with file output")

	return nil
}

// Close closes the log writer and should be called during application shutdown
func Close() error {
	logWriterMu.Lock()
	defer logWriterMu.Unlock()

	if logWriter != nil {
		err := logWriter.Close()
		logWriter = nil
		return err
	}
	return nil
}

// parseLogLevel converts string log level to logrus.Level
func parseLogLevel(level string) (logrus.Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return logrus.DebugLevel, nil
	case "INFO":
		return logrus.InfoLevel, nil
	case "WARNING", "WARN":
		return logrus.WarnLevel, nil
	case "ERROR":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}
