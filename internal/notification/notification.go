package notification

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/yok-tottii/local-dictation/internal/i18n"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	// TypeInfo is an informational notification
	TypeInfo NotificationType = "info"
	// TypeError is an error notification
	TypeError NotificationType = "error"
	// TypeSuccess is a success notification
	TypeSuccess NotificationType = "success"
)

// maxMessageRunes bounds the body; notification centers truncate anyway
const maxMessageRunes = 200

// ErrUnsupported is returned on platforms without a notification command
var ErrUnsupported = errors.New("notifications are not supported on this platform")

// Notification represents a desktop notification
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
}

// Runner executes a notification command
type Runner func(name string, args ...string) error

func execRunner(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// NotificationManager sends dictation events to the desktop
type NotificationManager struct {
	appName string
	tr      *i18n.Translator
	goos    string
	run     Runner
}

// NewNotificationManager creates a notification manager for the current OS.
// A nil translator uses English.
func NewNotificationManager(appName string, tr *i18n.Translator) *NotificationManager {
	if tr == nil {
		tr = i18n.NewTranslator(i18n.LanguageEnglish)
	}
	return &NotificationManager{
		appName: appName,
		tr:      tr,
		goos:    runtime.GOOS,
		run:     execRunner,
	}
}

// Send sends a notification through osascript on macOS or notify-send on
// Linux.
func (nm *NotificationManager) Send(notification *Notification) error {
	if notification == nil {
		return fmt.Errorf("notification cannot be nil")
	}
	message := truncate(notification.Message, maxMessageRunes)

	var err error
	switch nm.goos {
	case "darwin":
		script := fmt.Sprintf(
			`display notification "%s" with title "%s"`,
			escapeAppleScript(message),
			escapeAppleScript(notification.Title),
		)
		err = nm.run("osascript", "-e", script)
	case "linux":
		urgency := "normal"
		if notification.Type == TypeError {
			urgency = "critical"
		}
		err = nm.run("notify-send", "-a", nm.appName, "-u", urgency, notification.Title, message)
	default:
		return ErrUnsupported
	}
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

// WakeDetected notifies that the wake phrase was heard
func (nm *NotificationManager) WakeDetected(phrase string) error {
	return nm.Send(&Notification{Title: nm.appName, Message: nm.tr.TranslateWithFormat("notify.wake_detected", map[string]string{"phrase": phrase}), Type: TypeInfo})
}

// TranscriptionComplete notifies with the transcribed text
func (nm *NotificationManager) TranscriptionComplete(text string) error {
	return nm.Send(&Notification{Title: nm.appName, Message: text, Type: TypeSuccess})
}

// TranscriptionFailed notifies that an utterance could not be transcribed
func (nm *NotificationManager) TranscriptionFailed(err error) error {
	message := nm.tr.TranslateWithFormat("notify.transcription_failed", map[string]string{"error": err.Error()})
	return nm.Send(&Notification{Title: nm.appName, Message: message, Type: TypeError})
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
