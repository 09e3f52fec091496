package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func todayLogPath(dir string) string {
	return filepath.Join(dir, filePrefix+time.Now().Format("20060102")+".log")
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Level != INFO {
		t.Errorf("Expected default level INFO, got %v", config.Level)
	}

	if config.RetentionDays != 7 {
		t.Errorf("Expected retention days 7, got %d", config.RetentionDays)
	}

	if config.LogDir == "" {
		t.Error("Expected non-empty log directory")
	}
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
		{Level(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := tt.level.String()
			if result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		wantErr  bool
	}{
		{"debug", DEBUG, false},
		{"INFO", INFO, false},
		{"", INFO, false},
		{"warning", WARN, false},
		{"Error", ERROR, false},
		{"verbose", INFO, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if level != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, level)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tempDir := t.TempDir()

	logger, err := New(Config{LogDir: tempDir, Level: INFO, RetentionDays: 7})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(todayLogPath(tempDir)); os.IsNotExist(err) {
		t.Errorf("Log file was not created: %s", todayLogPath(tempDir))
	}
}

func TestLogging(t *testing.T) {
	tempDir := t.TempDir()

	logger, err := New(Config{LogDir: tempDir, Level: DEBUG, RetentionDays: 7})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Debug("Debug message")
	logger.Info("Info message %d", 2)
	logger.Warn("Warn message")
	logger.Error("Error message")
	logger.Close()

	content, err := os.ReadFile(todayLogPath(tempDir))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	logContent := string(content)

	for _, want := range []string{
		"[DEBUG] Debug message",
		"[INFO] Info message 2",
		"[WARN] Warn message",
		"[ERROR] Error message",
	} {
		if !strings.Contains(logContent, want) {
			t.Errorf("Expected %q in log, got:\n%s", want, logContent)
		}
	}
}

func TestLogLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, WARN)

	logger.Debug("Debug message")
	logger.Info("Info message")
	logger.Warn("Warn message")
	logger.Error("Error message")

	logContent := buf.String()

	if strings.Contains(logContent, "Debug message") {
		t.Error("Debug message should not be logged at WARN level")
	}
	if strings.Contains(logContent, "Info message") {
		t.Error("Info message should not be logged at WARN level")
	}
	if !strings.Contains(logContent, "Warn message") {
		t.Error("Warn message not found in log")
	}
	if !strings.Contains(logContent, "Error message") {
		t.Error("Error message not found in log")
	}
}

func TestSetLevel(t *testing.T) {
	logger := NewWriter(&bytes.Buffer{}, INFO)

	if logger.GetLevel() != INFO {
		t.Errorf("Expected initial level INFO, got %v", logger.GetLevel())
	}

	logger.SetLevel(DEBUG)

	if logger.GetLevel() != DEBUG {
		t.Errorf("Expected level DEBUG, got %v", logger.GetLevel())
	}
}

func TestNamed(t *testing.T) {
	var buf bytes.Buffer
	log := Named(NewWriter(&buf, DEBUG), "wakeword")

	log.Info("segment dropped: %s", "queue full")

	if !strings.Contains(buf.String(), "[INFO] [wakeword] segment dropped: queue full") {
		t.Errorf("Expected component prefix, got %q", buf.String())
	}
}

func TestNop(t *testing.T) {
	// Must not panic and must not write anywhere.
	log := Nop()
	log.Error("dropped %d", 1)
	if err := log.Close(); err != nil {
		t.Errorf("Expected nil error from Nop Close, got %v", err)
	}
}

func TestCleanOldLogs(t *testing.T) {
	tempDir := t.TempDir()

	oldDate := time.Now().AddDate(0, 0, -10)
	oldLogPath := filepath.Join(tempDir, filePrefix+oldDate.Format("20060102")+".log")
	if err := os.WriteFile(oldLogPath, []byte("old log"), 0644); err != nil {
		t.Fatalf("Failed to create old log file: %v", err)
	}
	if err := os.Chtimes(oldLogPath, oldDate, oldDate); err != nil {
		t.Fatalf("Failed to change file times: %v", err)
	}

	// Foreign .log files are left alone.
	foreignPath := filepath.Join(tempDir, "other.log")
	if err := os.WriteFile(foreignPath, []byte("keep"), 0644); err != nil {
		t.Fatalf("Failed to create foreign log file: %v", err)
	}
	if err := os.Chtimes(foreignPath, oldDate, oldDate); err != nil {
		t.Fatalf("Failed to change file times: %v", err)
	}

	logger, err := New(Config{LogDir: tempDir, Level: INFO, RetentionDays: 7})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(oldLogPath); !os.IsNotExist(err) {
		t.Error("Old log file should have been deleted")
	}
	if _, err := os.Stat(foreignPath); err != nil {
		t.Error("Foreign log file should have been kept")
	}
	if _, err := os.Stat(todayLogPath(tempDir)); os.IsNotExist(err) {
		t.Error("Current log file should exist")
	}
}
