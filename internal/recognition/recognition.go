// Package recognition turns 16 kHz mono audio into text.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/yok-tottii/local-dictation/internal/clock"
	"github.com/yok-tottii/local-dictation/internal/logger"
	"github.com/yok-tottii/local-dictation/internal/sched"
)

// SampleRate is the only rate Transcribe accepts
const SampleRate = 16000

// minSamples is one second; shorter input is padded with silence
const minSamples = SampleRate

// ErrModelNotFound is returned when the model file does not exist
var ErrModelNotFound = errors.New("model file not found")

// Transcriber converts 16 kHz mono samples to text. An empty string means
// no speech was recognized.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32) (string, error)
}

// Model is a loaded speech model
type Model interface {
	Transcribe(samples []float32, language string, threads int) (string, error)
	Close() error
}

// Loader opens a model from a file
type Loader func(path string) (Model, error)

// Config holds recognition configuration
type Config struct {
	ModelPath   string
	Language    string        // Default: "en"; "auto" detects
	Threads     int           // Number of threads, 0 = auto
	IdleUnload  time.Duration // 0 keeps the model loaded
	CustomWords map[string]string
}

// DefaultConfig returns the default recognition configuration
func DefaultConfig() Config {
	return Config{
		Language:   "en",
		Threads:    0,
		IdleUnload: 60 * time.Second,
	}
}

// Whisper owns a model handle. The model is loaded on first use, and
// unloaded by the scheduler once it has been idle for IdleUnload.
type Whisper struct {
	config   Config
	language string
	load     Loader
	sched    *sched.Scheduler
	clk      clock.Clock
	log      logger.Interface
	words    []wordRule

	mu           sync.Mutex
	model        Model
	idleDeadline time.Time
	unload       *sched.Task
	closed       bool
}

// NewWhisper creates a transcriber for config. A nil loader uses the
// whisper.cpp bindings; a nil scheduler disables idle unloading.
func NewWhisper(config Config, load Loader, s *sched.Scheduler, clk clock.Clock, log logger.Interface) (*Whisper, error) {
	if config.ModelPath == "" {
		return nil, errors.New("model path is empty")
	}
	if config.Threads < 0 {
		return nil, fmt.Errorf("invalid thread count: %d", config.Threads)
	}
	if config.IdleUnload < 0 {
		return nil, fmt.Errorf("invalid idle unload: %v", config.IdleUnload)
	}
	if load == nil {
		load = LoadWhisperModel
	}
	if clk == nil {
		clk = clock.Real{}
	}

	language := config.Language
	if language == "" {
		language = "auto"
	}
	// English-only models
	if strings.Contains(filepath.Base(config.ModelPath), ".en.") || strings.HasSuffix(config.ModelPath, ".en") {
		language = "en"
	}

	words, err := compileWords(config.CustomWords)
	if err != nil {
		return nil, err
	}

	return &Whisper{
		config:   config,
		language: language,
		load:     load,
		sched:    s,
		clk:      clk,
		log:      logger.Named(log, "recognition"),
		words:    words,
	}, nil
}

// Language returns the effective language code
func (w *Whisper) Language() string { return w.language }

// Loaded reports whether the model is resident
func (w *Whisper) Loaded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.model != nil
}

// Warmup loads the model and runs one second of silence through it.
func (w *Whisper) Warmup(ctx context.Context) error {
	start := time.Now()
	if _, err := w.Transcribe(ctx, make([]float32, minSamples)); err != nil {
		return fmt.Errorf("warmup failed: %w", err)
	}
	w.log.Info("model warmed up (%v)", time.Since(start).Round(time.Millisecond))
	return nil
}

// Transcribe performs speech recognition on 16 kHz mono samples
func (w *Whisper) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(samples) == 0 {
		return "", nil
	}
	if len(samples) < minSamples {
		padded := make([]float32, minSamples)
		copy(padded, samples)
		samples = padded
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	model, err := w.acquire()
	if err != nil {
		return "", err
	}

	text, err := model.Transcribe(samples, w.language, w.config.Threads)
	w.touch()
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	return w.applyWords(strings.TrimSpace(text)), nil
}

// acquire returns the loaded model, loading it if needed. Caller holds mu.
func (w *Whisper) acquire() (Model, error) {
	if w.closed {
		return nil, errors.New("transcriber is closed")
	}
	if w.model != nil {
		return w.model, nil
	}

	if _, err := os.Stat(w.config.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, w.config.ModelPath)
	}

	start := time.Now()
	model, err := w.load(w.config.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load model from %s: %w", w.config.ModelPath, err)
	}
	w.model = model
	w.log.Info("model loaded from %s (%v)", w.config.ModelPath, time.Since(start).Round(time.Millisecond))
	return model, nil
}

// touch pushes the idle deadline out and arms the unload task. Caller holds mu.
func (w *Whisper) touch() {
	if w.sched == nil || w.config.IdleUnload <= 0 {
		return
	}
	w.idleDeadline = w.clk.Now().Add(w.config.IdleUnload)
	if w.unload == nil {
		w.unload = w.sched.After(w.config.IdleUnload, w.unloadIfIdle)
	}
}

// unloadIfIdle runs on the scheduler goroutine. A transcription in
// progress or a deadline that moved re-arms the task instead.
func (w *Whisper) unloadIfIdle() {
	if !w.mu.TryLock() {
		w.rearm(w.config.IdleUnload)
		return
	}
	defer w.mu.Unlock()

	w.unload = nil
	if w.model == nil || w.closed {
		return
	}
	if remaining := w.idleDeadline.Sub(w.clk.Now()); remaining > 0 {
		w.unload = w.sched.After(remaining, w.unloadIfIdle)
		return
	}

	if err := w.model.Close(); err != nil {
		w.log.Warn("failed to release model: %v", err)
	}
	w.model = nil
	w.log.Info("model unloaded after %v idle", w.config.IdleUnload)
}

func (w *Whisper) rearm(d time.Duration) {
	w.sched.After(d, w.unloadIfIdle)
}

// Close releases the model
func (w *Whisper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	if w.unload != nil {
		w.unload.Cancel()
		w.unload = nil
	}
	if w.model == nil {
		return nil
	}
	err := w.model.Close()
	w.model = nil
	return err
}

type wordRule struct {
	re  *regexp.Regexp
	new string
}

// compileWords orders rules longest first, then alphabetically, so
// overlapping words are replaced the same way on every run.
func compileWords(words map[string]string) ([]wordRule, error) {
	keys := make([]string, 0, len(words))
	for old := range words {
		if strings.TrimSpace(old) == "" {
			return nil, errors.New("custom word is empty")
		}
		keys = append(keys, old)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(keys[i]), utf8.RuneCountInString(keys[j])
		if li != lj {
			return li > lj
		}
		return keys[i] < keys[j]
	})

	rules := make([]wordRule, 0, len(keys))
	for _, old := range keys {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(old))
		if err != nil {
			return nil, fmt.Errorf("invalid custom word %q: %w", old, err)
		}
		rules = append(rules, wordRule{re: re, new: words[old]})
	}
	return rules, nil
}

// applyWords replaces whole-word occurrences of custom words, following the
// case of the match
func (w *Whisper) applyWords(text string) string {
	for _, r := range w.words {
		text = replaceWholeWords(text, r)
	}
	return text
}

func replaceWholeWords(text string, r wordRule) string {
	matches := r.re.FindAllStringIndex(text, -1)
	if matches == nil {
		return text
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		if !atWordBoundary(text, m[0], m[1]) {
			continue
		}
		b.WriteString(text[last:m[0]])
		b.WriteString(matchCase(text[m[0]:m[1]], r.new))
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// atWordBoundary reports whether text[start:end] is not glued to a
// neighbouring word rune. Scripts written without spaces never need a
// boundary.
func atWordBoundary(text string, start, end int) bool {
	if start > 0 {
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		first, _ := utf8.DecodeRuneInString(text[start:end])
		if isWordRune(before) && isWordRune(first) {
			return false
		}
	}
	if end < len(text) {
		after, _ := utf8.DecodeRuneInString(text[end:])
		lastRune, _ := utf8.DecodeLastRuneInString(text[start:end])
		if isWordRune(after) && isWordRune(lastRune) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
		return false
	}
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func matchCase(match, word string) string {
	if word == "" {
		return ""
	}
	first, _ := utf8.DecodeRuneInString(match)
	switch {
	case strings.ToUpper(match) == match && strings.ToLower(match) != match:
		return strings.ToUpper(word)
	case unicode.IsUpper(first):
		r, size := utf8.DecodeRuneInString(word)
		return string(unicode.ToUpper(r)) + strings.ToLower(word[size:])
	default:
		return strings.ToLower(word)
	}
}

// DefaultModelDir returns the default directory for Whisper models
func DefaultModelDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, "local-dictation", "models")
}

// FindModel resolves a model name against dir, or DefaultModelDir when dir
// is empty. Paths containing a separator are returned as-is if they exist.
func FindModel(dir, name string) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("%w: %s", ErrModelNotFound, name)
		}
		return name, nil
	}

	if dir == "" {
		dir = DefaultModelDir()
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return "", fmt.Errorf("model directory not found: %s", dir)
	}

	candidates := []string{name, "ggml-" + name + ".bin"}
	for _, c := range candidates {
		p := filepath.Join(dir, c)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrModelNotFound, filepath.Join(dir, name))
}
