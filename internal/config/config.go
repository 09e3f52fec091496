package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/yok-tottii/local-dictation/internal/audio"
	"github.com/yok-tottii/local-dictation/internal/endpoint"
	"github.com/yok-tottii/local-dictation/internal/hotkey"
	"github.com/yok-tottii/local-dictation/internal/i18n"
	"github.com/yok-tottii/local-dictation/internal/logger"
	"github.com/yok-tottii/local-dictation/internal/recognition"
	"github.com/yok-tottii/local-dictation/internal/recording"
	"github.com/yok-tottii/local-dictation/internal/vad"
	"github.com/yok-tottii/local-dictation/internal/wakeword"
)

// ErrInvalid is wrapped by every validation error
var ErrInvalid = errors.New("invalid configuration")

// RecommendedModel is the model name used when none is configured
const RecommendedModel = "base.en"

// Config holds application configuration. It is a plain value: copy it,
// don't share it.
type Config struct {
	Audio       AudioConfig       `json:"audio" yaml:"audio" toml:"audio"`
	VAD         VADConfig         `json:"vad" yaml:"vad" toml:"vad"`
	Endpoint    EndpointConfig    `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	Hotkey      HotkeyConfig      `json:"hotkey" yaml:"hotkey" toml:"hotkey"`
	WakeWord    WakeWordConfig    `json:"wake_word" yaml:"wake_word" toml:"wake_word"`
	Recognition RecognitionConfig `json:"recognition" yaml:"recognition" toml:"recognition"`
	Log         LogConfig         `json:"log" yaml:"log" toml:"log"`
	Metrics     MetricsConfig     `json:"metrics" yaml:"metrics" toml:"metrics"`
	Notify      NotifyConfig      `json:"notify" yaml:"notify" toml:"notify"`
	UILanguage  string            `json:"ui_language" yaml:"ui_language" toml:"ui_language"` // "ja" or "en", empty to follow the locale
}

// AudioConfig holds capture settings
type AudioConfig struct {
	Device          string  `json:"device" yaml:"device" toml:"device"`                // substring of the device name, empty for default
	SampleRate      int     `json:"sample_rate" yaml:"sample_rate" toml:"sample_rate"` // preferred device rate; audio is resampled to 16 kHz
	MaxSeconds      int     `json:"max_seconds" yaml:"max_seconds" toml:"max_seconds"`
	HighpassHz      float64 `json:"highpass_hz" yaml:"highpass_hz" toml:"highpass_hz"`
	FramesPerBuffer int     `json:"frames_per_buffer" yaml:"frames_per_buffer" toml:"frames_per_buffer"`
	Latency         string  `json:"latency" yaml:"latency" toml:"latency"` // "low" or "stable"
}

// VADConfig holds voice activity detection settings
type VADConfig struct {
	Engine            string  `json:"engine" yaml:"engine" toml:"engine"`
	ModelPath         string  `json:"model_path" yaml:"model_path" toml:"model_path"`
	SharedLibraryPath string  `json:"shared_library_path" yaml:"shared_library_path" toml:"shared_library_path"`
	Threshold         float32 `json:"threshold" yaml:"threshold" toml:"threshold"`
	FrameMs           int     `json:"frame_ms" yaml:"frame_ms" toml:"frame_ms"`
	Aggressiveness    int     `json:"aggressiveness" yaml:"aggressiveness" toml:"aggressiveness"`
	MinSpeechMs       int     `json:"min_speech_ms" yaml:"min_speech_ms" toml:"min_speech_ms"`
	MinSilenceMs      int     `json:"min_silence_ms" yaml:"min_silence_ms" toml:"min_silence_ms"`
	TrimSilence       bool    `json:"trim_silence" yaml:"trim_silence" toml:"trim_silence"`
	Smoothing         int     `json:"smoothing" yaml:"smoothing" toml:"smoothing"`
}

// EndpointConfig holds end-of-utterance settings
type EndpointConfig struct {
	Mode          string  `json:"mode" yaml:"mode" toml:"mode"`
	ProbThreshold float32 `json:"prob_threshold" yaml:"prob_threshold" toml:"prob_threshold"`
	HangoverMs    int     `json:"hangover_ms" yaml:"hangover_ms" toml:"hangover_ms"`
	DebounceMs    int     `json:"debounce_ms" yaml:"debounce_ms" toml:"debounce_ms"`
}

// HotkeyConfig holds hotkey configuration
type HotkeyConfig struct {
	Chord       string `json:"chord" yaml:"chord" toml:"chord"` // e.g. "CTRL,ALT,SPACE"
	DebounceMs  int    `json:"debounce_ms" yaml:"debounce_ms" toml:"debounce_ms"`
	DoubleTapMs int    `json:"double_tap_ms" yaml:"double_tap_ms" toml:"double_tap_ms"`
	LongPressMs int    `json:"long_press_ms" yaml:"long_press_ms" toml:"long_press_ms"`
	Taps        bool   `json:"taps" yaml:"taps" toml:"taps"`
}

// WakeWordConfig holds wake word settings
type WakeWordConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Phrases        []string `json:"phrases" yaml:"phrases" toml:"phrases"`
	WindowSeconds  float64  `json:"window_seconds" yaml:"window_seconds" toml:"window_seconds"`
	MinGapSeconds  float64  `json:"min_gap_seconds" yaml:"min_gap_seconds" toml:"min_gap_seconds"`
	VADThreshold   float32  `json:"vad_threshold" yaml:"vad_threshold" toml:"vad_threshold"`
	MatchThreshold float64  `json:"match_threshold" yaml:"match_threshold" toml:"match_threshold"`
}

// RecognitionConfig holds transcription settings
type RecognitionConfig struct {
	ModelPath         string            `json:"model_path" yaml:"model_path" toml:"model_path"` // file path, or a model name looked up in ModelDir
	ModelDir          string            `json:"model_dir" yaml:"model_dir" toml:"model_dir"`
	Language          string            `json:"language" yaml:"language" toml:"language"` // "auto" for automatic detection
	Threads           int               `json:"threads" yaml:"threads" toml:"threads"`
	IdleUnloadSeconds int               `json:"idle_unload_seconds" yaml:"idle_unload_seconds" toml:"idle_unload_seconds"`
	CustomWords       map[string]string `json:"custom_words" yaml:"custom_words" toml:"custom_words"`
}

// LogConfig holds logging settings. An empty Dir logs to stderr.
type LogConfig struct {
	Dir           string `json:"dir" yaml:"dir" toml:"dir"`
	Level         string `json:"level" yaml:"level" toml:"level"`
	RetentionDays int    `json:"retention_days" yaml:"retention_days" toml:"retention_days"`
}

// MetricsConfig holds the local status server (/metrics, /healthz, /api).
// An empty Addr disables it.
type MetricsConfig struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
}

// NotifyConfig enables desktop notifications for transcripts and wake words
type NotifyConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled"`
}

// IsValidModelExtension checks if the file has a valid Whisper model extension
// Supports both .bin (current official format) and .gguf (future format)
func IsValidModelExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".bin" || ext == ".gguf"
}

// Default returns the default configuration
func Default() Config {
	a := audio.DefaultConfig()
	v := vad.DefaultConfig()
	e := endpoint.DefaultConfig()
	h := hotkey.DefaultOptions()
	w := wakeword.DefaultConfig()
	r := recognition.DefaultConfig()

	return Config{
		Audio: AudioConfig{
			SampleRate:      a.TargetRate,
			MaxSeconds:      int(a.MaxDuration / time.Second),
			HighpassHz:      a.HighpassHz,
			FramesPerBuffer: a.FramesPerBuffer,
			Latency:         "low",
		},
		VAD: VADConfig{
			Engine:         v.Engine,
			Threshold:      v.Threshold,
			FrameMs:        v.FrameMs,
			Aggressiveness: v.Aggressiveness,
			MinSpeechMs:    v.MinSpeechMs,
			MinSilenceMs:   v.MinSilenceMs,
			Smoothing:      1,
		},
		Endpoint: EndpointConfig{
			Mode:          e.Mode.String(),
			ProbThreshold: e.ProbThreshold,
			HangoverMs:    int(e.Hangover / time.Millisecond),
			DebounceMs:    int(e.Debounce / time.Millisecond),
		},
		Hotkey: HotkeyConfig{
			Chord:       hotkey.DefaultChordSpec,
			DebounceMs:  int(h.Debounce / time.Millisecond),
			DoubleTapMs: int(h.DoubleTap / time.Millisecond),
			LongPressMs: int(h.LongPress / time.Millisecond),
			Taps:        h.Taps,
		},
		WakeWord: WakeWordConfig{
			WindowSeconds:  w.Window.Seconds(),
			MinGapSeconds:  w.MinGap.Seconds(),
			VADThreshold:   w.VADThreshold,
			MatchThreshold: w.MatchThreshold,
		},
		Recognition: RecognitionConfig{
			ModelPath:         RecommendedModel,
			Language:          r.Language,
			Threads:           r.Threads,
			IdleUnloadSeconds: int(r.IdleUnload / time.Second),
		},
		Log: LogConfig{
			Level:         logger.INFO.String(),
			RetentionDays: 7,
		},
	}
}

// DefaultPath returns the default configuration file path
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(configDir, "local-dictation", "config.yaml")
}

type format int

const (
	formatYAML format = iota
	formatTOML
	formatJSON
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".toml":
		return formatTOML, nil
	case ".json":
		return formatJSON, nil
	default:
		return 0, fmt.Errorf("unsupported config format: %q", filepath.Ext(path))
	}
}

// Load loads configuration from file, overlaying it onto the defaults.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := formatOf(path)
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	switch f {
	case formatYAML:
		err = yaml.Unmarshal(data, &cfg)
	case formatTOML:
		_, err = toml.Decode(string(data), &cfg)
	case formatJSON:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Default(), fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration in the format matching path's extension
func (c Config) Save(path string) error {
	f, err := formatOf(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	switch f {
	case formatYAML:
		data, err = yaml.Marshal(c)
	case formatTOML:
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(c)
		data = buf.Bytes()
	case formatJSON:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ExpandPath expands ~ to home directory in file paths
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	// Expand ~ to home directory
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, path[2:]), nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	return absPath, nil
}

func invalid(format string, v ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, v...))
}

// Validate validates all configuration fields
func (c Config) Validate() error {
	// Audio
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 48000 {
		return invalid("audio.sample_rate: %d (must be between 8000 and 48000)", c.Audio.SampleRate)
	}
	if c.Audio.MaxSeconds <= 0 || c.Audio.MaxSeconds > 300 {
		return invalid("audio.max_seconds: %d (must be between 1 and 300 seconds)", c.Audio.MaxSeconds)
	}
	if c.Audio.HighpassHz < 0 || c.Audio.HighpassHz >= audio.TargetRate/2 {
		return invalid("audio.highpass_hz: %.1f (must be below Nyquist)", c.Audio.HighpassHz)
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > 16384 {
		return invalid("audio.frames_per_buffer: %d (must be between 1 and 16384)", c.Audio.FramesPerBuffer)
	}
	if _, err := parseLatency(c.Audio.Latency); err != nil {
		return invalid("audio.latency: %v", err)
	}

	// VAD
	switch c.VAD.Engine {
	case vad.EngineSilero, vad.EngineWebRTC, vad.EngineEnergy:
	default:
		return invalid("vad.engine: %q (must be 'silero', 'webrtc' or 'energy')", c.VAD.Engine)
	}
	if c.VAD.Threshold <= 0 || c.VAD.Threshold >= 1 {
		return invalid("vad.threshold: %.2f (must be between 0 and 1)", c.VAD.Threshold)
	}
	if c.VAD.FrameMs != 10 && c.VAD.FrameMs != 20 && c.VAD.FrameMs != 30 {
		return invalid("vad.frame_ms: %d (must be 10, 20 or 30)", c.VAD.FrameMs)
	}
	if c.VAD.Aggressiveness < 0 || c.VAD.Aggressiveness > 3 {
		return invalid("vad.aggressiveness: %d (must be between 0 and 3)", c.VAD.Aggressiveness)
	}
	if c.VAD.MinSpeechMs < 0 || c.VAD.MinSilenceMs < 0 {
		return invalid("vad.min_speech_ms and vad.min_silence_ms must not be negative")
	}
	if c.VAD.Smoothing < 1 || c.VAD.Smoothing > 50 {
		return invalid("vad.smoothing: %d (must be between 1 and 50 frames)", c.VAD.Smoothing)
	}

	// Endpoint
	if _, err := endpoint.ParseMode(c.Endpoint.Mode); err != nil {
		return invalid("endpoint.mode: %v", err)
	}
	if c.Endpoint.ProbThreshold <= 0 || c.Endpoint.ProbThreshold >= 1 {
		return invalid("endpoint.prob_threshold: %.2f (must be between 0 and 1)", c.Endpoint.ProbThreshold)
	}
	if c.Endpoint.HangoverMs < 0 || c.Endpoint.HangoverMs > 10000 {
		return invalid("endpoint.hangover_ms: %d (must be between 0 and 10000)", c.Endpoint.HangoverMs)
	}
	if c.Endpoint.DebounceMs < 0 || c.Endpoint.DebounceMs > 10000 {
		return invalid("endpoint.debounce_ms: %d (must be between 0 and 10000)", c.Endpoint.DebounceMs)
	}

	// Hotkey
	if _, err := hotkey.ParseChord(c.Hotkey.Chord); err != nil {
		return fmt.Errorf("%w: hotkey.chord: %w", ErrInvalid, err)
	}
	if c.Hotkey.DebounceMs < 0 || c.Hotkey.DebounceMs > 1000 {
		return invalid("hotkey.debounce_ms: %d (must be between 0 and 1000)", c.Hotkey.DebounceMs)
	}
	if c.Hotkey.DoubleTapMs <= 0 || c.Hotkey.DoubleTapMs > 2000 {
		return invalid("hotkey.double_tap_ms: %d (must be between 1 and 2000)", c.Hotkey.DoubleTapMs)
	}
	if c.Hotkey.LongPressMs <= 0 || c.Hotkey.LongPressMs > 2000 {
		return invalid("hotkey.long_press_ms: %d (must be between 1 and 2000)", c.Hotkey.LongPressMs)
	}

	// Wake word
	if c.WakeWord.Enabled {
		if err := c.WakeWordSettings().Validate(); err != nil {
			return fmt.Errorf("%w: wake_word: %w", ErrInvalid, err)
		}
	}

	// Recognition (any language code is accepted; whisper.cpp validates it)
	if c.Recognition.ModelPath == "" {
		return invalid("recognition.model_path cannot be empty")
	}
	if c.Recognition.Language == "" {
		return invalid("recognition.language cannot be empty")
	}
	if c.Recognition.Threads < 0 {
		return invalid("recognition.threads: %d (must not be negative)", c.Recognition.Threads)
	}
	if c.Recognition.IdleUnloadSeconds < 0 {
		return invalid("recognition.idle_unload_seconds: %d (0 keeps the model loaded)", c.Recognition.IdleUnloadSeconds)
	}

	if c.UILanguage != "" && !i18n.ValidateLanguage(c.UILanguage) {
		return invalid("ui_language: %s (must be 'ja' or 'en')", c.UILanguage)
	}

	// Log
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level: %v", err)
	}
	if c.Log.RetentionDays < 0 {
		return invalid("log.retention_days: %d (must not be negative)", c.Log.RetentionDays)
	}

	return nil
}

func parseLatency(s string) (audio.LatencyMode, error) {
	switch strings.ToLower(s) {
	case "", "low":
		return audio.LowLatency, nil
	case "stable", "high":
		return audio.HighStability, nil
	default:
		return audio.LowLatency, fmt.Errorf("unknown latency mode: %q", s)
	}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func seconds(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

// AudioSettings returns the capture configuration
func (c Config) AudioSettings() audio.Config {
	latency, _ := parseLatency(c.Audio.Latency)
	return audio.Config{
		MaxDuration:     time.Duration(c.Audio.MaxSeconds) * time.Second,
		TargetRate:      audio.TargetRate,
		HighpassHz:      c.Audio.HighpassHz,
		FramesPerBuffer: c.Audio.FramesPerBuffer,
		Latency:         latency,
	}
}

// VADSettings returns the classifier configuration. Classifiers run on
// resampled 16 kHz audio.
func (c Config) VADSettings() vad.Config {
	return vad.Config{
		Engine:            c.VAD.Engine,
		ModelPath:         c.VAD.ModelPath,
		SharedLibraryPath: c.VAD.SharedLibraryPath,
		SampleRate:        audio.TargetRate,
		FrameMs:           c.VAD.FrameMs,
		Threshold:         c.VAD.Threshold,
		MinSpeechMs:       c.VAD.MinSpeechMs,
		MinSilenceMs:      c.VAD.MinSilenceMs,
		Aggressiveness:    c.VAD.Aggressiveness,
	}
}

// EndpointSettings returns the endpoint configuration
func (c Config) EndpointSettings() endpoint.Config {
	mode, _ := endpoint.ParseMode(c.Endpoint.Mode)
	return endpoint.Config{
		Mode:          mode,
		ProbThreshold: c.Endpoint.ProbThreshold,
		Hangover:      ms(c.Endpoint.HangoverMs),
		Debounce:      ms(c.Endpoint.DebounceMs),
	}
}

// RecordingSettings returns the dictation manager configuration
func (c Config) RecordingSettings() recording.Config {
	return recording.Config{
		MaxDuration: time.Duration(c.Audio.MaxSeconds) * time.Second,
		Endpoint:    c.EndpointSettings(),
		Smoothing:   c.VAD.Smoothing,
		TrimSilence: c.VAD.TrimSilence,
		VAD:         c.VADSettings(),
	}
}

// Chord returns the parsed hotkey chord
func (c Config) Chord() (hotkey.Chord, error) {
	return hotkey.ParseChord(c.Hotkey.Chord)
}

// HotkeyOptions returns the listener timing options
func (c Config) HotkeyOptions() hotkey.Options {
	o := hotkey.DefaultOptions()
	o.Debounce = ms(c.Hotkey.DebounceMs)
	o.DoubleTap = ms(c.Hotkey.DoubleTapMs)
	o.LongPress = ms(c.Hotkey.LongPressMs)
	o.Taps = c.Hotkey.Taps
	return o
}

// WakeWordSettings returns the wake word detector configuration
func (c Config) WakeWordSettings() wakeword.Config {
	return wakeword.Config{
		Phrases:        c.WakeWord.Phrases,
		Window:         seconds(c.WakeWord.WindowSeconds),
		MinGap:         seconds(c.WakeWord.MinGapSeconds),
		VADThreshold:   c.WakeWord.VADThreshold,
		MatchThreshold: c.WakeWord.MatchThreshold,
	}
}

// RecognitionSettings resolves the model and returns the transcriber
// configuration.
func (c Config) RecognitionSettings() (recognition.Config, error) {
	path, err := c.ResolveModelPath()
	if err != nil {
		return recognition.Config{}, err
	}
	return recognition.Config{
		ModelPath:   path,
		Language:    c.Recognition.Language,
		Threads:     c.Recognition.Threads,
		IdleUnload:  time.Duration(c.Recognition.IdleUnloadSeconds) * time.Second,
		CustomWords: c.Recognition.CustomWords,
	}, nil
}

// ResolveModelPath expands the model path, or looks a bare model name up in
// the model directory.
func (c Config) ResolveModelPath() (string, error) {
	p := c.Recognition.ModelPath
	if strings.HasPrefix(p, "~/") || strings.ContainsRune(p, os.PathSeparator) {
		expanded, err := ExpandPath(p)
		if err != nil {
			return "", fmt.Errorf("failed to expand model path: %w", err)
		}
		if !IsValidModelExtension(expanded) {
			return "", fmt.Errorf("model file must have .bin or .gguf extension: %s", expanded)
		}
		return recognition.FindModel("", expanded)
	}

	dir, err := ExpandPath(c.Recognition.ModelDir)
	if err != nil {
		return "", fmt.Errorf("failed to expand model directory: %w", err)
	}
	return recognition.FindModel(dir, p)
}

// LoggerSettings returns the file logger configuration
func (c Config) LoggerSettings() (logger.Config, error) {
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		return logger.Config{}, err
	}
	dir, err := ExpandPath(c.Log.Dir)
	if err != nil {
		return logger.Config{}, err
	}
	return logger.Config{LogDir: dir, Level: level, RetentionDays: c.Log.RetentionDays}, nil
}

// Language returns the UI language, detected from the locale when unset
func (c Config) Language() i18n.Language {
	if c.UILanguage == "" {
		return i18n.DetectSystemLanguage()
	}
	return i18n.Language(c.UILanguage)
}
