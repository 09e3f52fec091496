package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the logging level
type Level int

const (
	// DEBUG level for detailed debugging information
	DEBUG Level = iota
	// INFO level for informational messages
	INFO
	// WARN level for warning messages
	WARN
	// ERROR level for error messages
	ERROR
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name ("debug", "INFO", ...) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level: %q", s)
	}
}

// Interface is the method set components log through.
type Interface interface {
	Debug(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// filePrefix is the log file name prefix; files are named
// local-dictation-YYYYMMDD.log.
const filePrefix = "local-dictation-"

// Logger writes levelled log lines either to a daily-rotated file or to a
// fixed writer.
type Logger struct {
	mu            sync.RWMutex
	level         Level
	out           *log.Logger
	file          *os.File
	logDir        string
	currentDay    string
	retentionDays int
	rotate        bool
}

// Config holds logger configuration
type Config struct {
	LogDir        string
	Level         Level
	RetentionDays int
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() Config {
	baseDir, err := os.UserConfigDir()
	if err != nil {
		baseDir = "."
	}

	return Config{
		LogDir:        filepath.Join(baseDir, "local-dictation", "logs"),
		Level:         INFO,
		RetentionDays: 7,
	}
}

// New creates a file logger that rotates once per day
func New(config Config) (*Logger, error) {
	l := &Logger{
		level:         config.Level,
		logDir:        config.LogDir,
		retentionDays: config.RetentionDays,
		rotate:        true,
	}

	if err := l.rotateLog(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return l, nil
}

// NewWriter creates a logger that writes to w without rotation.
func NewWriter(w io.Writer, level Level) *Logger {
	return &Logger{
		level: level,
		out:   log.New(w, "", log.LstdFlags|log.Lmicroseconds),
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewWriter(io.Discard, ERROR+1)
}

// rotateLog opens today's log file if it is not already open
func (l *Logger) rotateLog() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := time.Now().Format("20060102")
	if l.currentDay == today && l.file != nil {
		return nil
	}

	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	if err := os.MkdirAll(l.logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	filePath := filepath.Join(l.logDir, filePrefix+today+".log")
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.file = file
	l.currentDay = today
	l.out = log.New(file, "", log.LstdFlags|log.Lmicroseconds)

	if err := l.cleanOldLogs(); err != nil {
		l.out.Printf("[WARN] failed to clean old logs: %v", err)
	}

	return nil
}

// cleanOldLogs deletes log files older than retentionDays
func (l *Logger) cleanOldLogs() error {
	if l.retentionDays <= 0 {
		return nil
	}
	cutoffDate := time.Now().AddDate(0, 0, -l.retentionDays)

	entries, err := os.ReadDir(l.logDir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		if !strings.HasPrefix(entry.Name(), filePrefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoffDate) {
			// best effort
			_ = os.Remove(filepath.Join(l.logDir, entry.Name()))
		}
	}

	return nil
}

// checkRotation performs rotation when the day changed
func (l *Logger) checkRotation() {
	if !l.rotate {
		return
	}

	l.mu.RLock()
	currentDay := l.currentDay
	l.mu.RUnlock()

	if currentDay != time.Now().Format("20060102") {
		if err := l.rotateLog(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to rotate log: %v\n", err)
		}
	}
}

func (l *Logger) logf(level Level, format string, v ...interface{}) {
	l.mu.RLock()
	enabled := l.level <= level
	l.mu.RUnlock()
	if !enabled {
		return
	}

	l.checkRotation()

	l.mu.RLock()
	out := l.out
	l.mu.RUnlock()
	if out != nil {
		out.Printf("[%s] %s", level, fmt.Sprintf(format, v...))
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) { l.logf(DEBUG, format, v...) }

// Info logs an informational message
func (l *Logger) Info(format string, v ...interface{}) { l.logf(INFO, format, v...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) { l.logf(WARN, format, v...) }

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) { l.logf(ERROR, format, v...) }

// Close closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.out = nil
		return err
	}
	return nil
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.level
}

// Named returns a logger that prefixes every message with [component].
func Named(base Interface, component string) Interface {
	if base == nil {
		base = Nop()
	}
	return &named{base: base, prefix: "[" + component + "] "}
}

type named struct {
	base   Interface
	prefix string
}

func (n *named) Debug(format string, v ...interface{}) { n.base.Debug(n.prefix+format, v...) }
func (n *named) Info(format string, v ...interface{})  { n.base.Info(n.prefix+format, v...) }
func (n *named) Warn(format string, v ...interface{})  { n.base.Warn(n.prefix+format, v...) }
func (n *named) Error(format string, v ...interface{}) { n.base.Error(n.prefix+format, v...) }
