package i18n

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"strings"
	"sync"
)

// Language represents a supported language
type Language string

const (
	// Japanese language
	LanguageJapanese Language = "ja"
	// English language
	LanguageEnglish Language = "en"
)

// Translator holds the user-facing messages of the CLI and notifications
type Translator struct {
	currentLanguage Language
	translations    map[Language]map[string]string
	mu              sync.RWMutex
}

// NewTranslator creates a translator preloaded with the built-in messages
func NewTranslator(language Language) *Translator {
	return &Translator{
		currentLanguage: language,
		translations: map[Language]map[string]string{
			LanguageEnglish:  DefaultEnglishTranslations(),
			LanguageJapanese: DefaultJapaneseTranslations(),
		},
	}
}

// LoadTranslations merges translations from JSON data over the built-in ones
func (t *Translator) LoadTranslations(language Language, data []byte) error {
	var translations map[string]string
	if err := json.Unmarshal(data, &translations); err != nil {
		return fmt.Errorf("failed to unmarshal translations: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.translations[language] == nil {
		t.translations[language] = make(map[string]string, len(translations))
	}
	maps.Copy(t.translations[language], translations)
	return nil
}

// LoadTranslationsFromFile loads translations from a JSON file
func (t *Translator) LoadTranslationsFromFile(language Language, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read translation file: %w", err)
	}

	return t.LoadTranslations(language, data)
}

// SetLanguage sets the current language
func (t *Translator) SetLanguage(language Language) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentLanguage = language
}

// GetLanguage returns the current language
func (t *Translator) GetLanguage() Language {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentLanguage
}

// Translate translates a key in the current language, falling back to
// English and then to the key itself.
func (t *Translator) Translate(key string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if text, ok := t.translations[t.currentLanguage][key]; ok {
		return text
	}
	if text, ok := t.translations[LanguageEnglish][key]; ok {
		return text
	}
	return key
}

// TranslateWithFormat translates a key and replaces {param} placeholders
func (t *Translator) TranslateWithFormat(key string, params map[string]string) string {
	text := t.Translate(key)
	for param, value := range params {
		text = strings.ReplaceAll(text, "{"+param+"}", value)
	}
	return text
}

// HasTranslation checks if a translation key exists in the current language
func (t *Translator) HasTranslation(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.translations[t.currentLanguage][key]
	return ok
}

// ValidateLanguage validates that a language is supported
func ValidateLanguage(language string) bool {
	return language == string(LanguageJapanese) || language == string(LanguageEnglish)
}

// DetectSystemLanguage picks Japanese when the POSIX locale says so
func DetectSystemLanguage() Language {
	for _, env := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(v), "ja") {
			return LanguageJapanese
		}
		return LanguageEnglish
	}
	return LanguageEnglish
}

// GetSupportedLanguages returns a list of supported languages
func GetSupportedLanguages() []Language {
	return []Language{LanguageJapanese, LanguageEnglish}
}

// DefaultEnglishTranslations returns default English translations
func DefaultEnglishTranslations() map[string]string {
	return map[string]string{
		// CLI
		"cli.devices_header": "Input devices:",
		"cli.no_devices":     "No input devices found",
		"cli.default":        "default",
		"cli.models_header":  "Models in {dir}:",
		"cli.no_models":      "No models found in {dir}",
		"cli.ready":          "Ready. Hold {chord} to dictate.",
		"cli.ready_taps":     "Ready. Hold {chord} to dictate, double-tap for hands-free.",
		"cli.wake_ready":     "Listening for wake phrase: {phrases}",
		"cli.conflict":       "Warning: {chord} is also used by {name}",

		// Notifications
		"notify.wake_detected":        "Wake phrase detected: {phrase}",
		"notify.transcription_failed": "Transcription failed: {error}",

		// Status
		"status.idle":       "Idle",
		"status.recording":  "Recording",
		"status.processing": "Processing",
	}
}

// DefaultJapaneseTranslations returns default Japanese translations
func DefaultJapaneseTranslations() map[string]string {
	return map[string]string{
		// CLI
		"cli.devices_header": "入力デバイス:",
		"cli.no_devices":     "入力デバイスが見つかりません",
		"cli.default":        "デフォルト",
		"cli.models_header":  "{dir} のモデル:",
		"cli.no_models":      "{dir} にモデルがありません",
		"cli.ready":          "準備完了。{chord} を押している間に話してください。",
		"cli.ready_taps":     "準備完了。{chord} を押している間に話してください。ダブルタップでハンズフリー。",
		"cli.wake_ready":     "ウェイクワード待機中: {phrases}",
		"cli.conflict":       "警告: {chord} は {name} と競合しています",

		// Notifications
		"notify.wake_detected":        "ウェイクワードを検出: {phrase}",
		"notify.transcription_failed": "文字起こしに失敗しました: {error}",

		// Status
		"status.idle":       "待機中",
		"status.recording":  "録音中",
		"status.processing": "処理中",
	}
}
