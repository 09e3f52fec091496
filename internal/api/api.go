package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/yok-tottii/local-dictation/internal/audio"
	"github.com/yok-tottii/local-dictation/internal/config"
	"github.com/yok-tottii/local-dictation/internal/hotkey"
	"github.com/yok-tottii/local-dictation/internal/recording"
)

// StateSource reports the dictation state
type StateSource interface {
	State() recording.State
}

// WakeSource reports whether the wake word listener is paused
type WakeSource interface {
	Paused() bool
}

// ModelSource reports whether the transcription model is resident
type ModelSource interface {
	Loaded() bool
	Language() string
}

// Deps are the read-only views the handler serves
type Deps struct {
	Recording StateSource
	Wake      WakeSource // nil when the wake word is disabled
	Model     ModelSource
	Host      audio.Host
	Selection audio.Selection
	Chord     hotkey.Chord
	ModelDir  string
}

// Handler manages API endpoints
type Handler struct {
	deps Deps
}

// New creates a new API handler
func New(deps Deps) *Handler {
	return &Handler{deps: deps}
}

// RegisterRoutes registers all API routes on the given mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/api/devices", h.handleDevices)
	mux.HandleFunc("/api/hotkey/validate", h.handleHotkeyValidate)
	mux.HandleFunc("/api/models", h.handleModels)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// Status is the body of GET /api/status
type Status struct {
	State       string `json:"state"`
	Device      string `json:"device"`
	SampleRate  int    `json:"sample_rate"`
	Chord       string `json:"chord"`
	WakeWord    bool   `json:"wake_word"`
	WakePaused  bool   `json:"wake_paused"`
	ModelLoaded bool   `json:"model_loaded"`
	Language    string `json:"language"`
}

// CurrentStatus snapshots the running pipeline
func (h *Handler) CurrentStatus() Status {
	s := Status{
		State:      recording.Idle.String(),
		Device:     h.deps.Selection.DeviceName,
		SampleRate: h.deps.Selection.SampleRate,
		Chord:      h.deps.Chord.String(),
		WakeWord:   h.deps.Wake != nil,
	}
	if h.deps.Recording != nil {
		s.State = h.deps.Recording.State().String()
	}
	if h.deps.Wake != nil {
		s.WakePaused = h.deps.Wake.Paused()
	}
	if h.deps.Model != nil {
		s.ModelLoaded = h.deps.Model.Loaded()
		s.Language = h.deps.Model.Language()
	}
	return s
}

// handleStatus handles GET /api/status
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.CurrentStatus())
}

// Device represents an audio device
type Device struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Channels   int     `json:"channels"`
	SampleRate float64 `json:"sample_rate"`
	IsDefault  bool    `json:"is_default"`
	Selected   bool    `json:"selected"`
}

// handleDevices handles GET /api/devices
func (h *Handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.deps.Host == nil {
		http.Error(w, "Audio host not available", http.StatusServiceUnavailable)
		return
	}

	audioDevices, err := audio.ListInputDevices(h.deps.Host)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list audio devices: %v", err), http.StatusInternalServerError)
		return
	}

	devices := make([]Device, 0, len(audioDevices))
	for _, dev := range audioDevices {
		devices = append(devices, Device{
			ID:         dev.ID,
			Name:       dev.Name,
			Channels:   dev.MaxInputChannels,
			SampleRate: dev.DefaultSampleRate,
			IsDefault:  dev.IsDefault,
			Selected:   dev.Name == h.deps.Selection.DeviceName,
		})
	}
	writeJSON(w, map[string]any{"devices": devices})
}

// HotkeyValidation is the body of POST /api/hotkey/validate
type HotkeyValidation struct {
	Valid     bool     `json:"valid"`
	Chord     string   `json:"chord,omitempty"`
	Display   string   `json:"display,omitempty"`
	Error     string   `json:"error,omitempty"`
	Conflicts []string `json:"conflicts"`
}

// ValidateChord parses spec and lists the system shortcuts it shadows
func ValidateChord(spec string) HotkeyValidation {
	v := HotkeyValidation{Conflicts: []string{}}
	chord, err := hotkey.ParseChord(spec)
	if err != nil {
		v.Error = err.Error()
		return v
	}
	v.Valid = true
	v.Chord = chord.String()
	v.Display = hotkey.FormatChord(chord)
	for _, c := range hotkey.CheckConflicts(chord) {
		v.Conflicts = append(v.Conflicts, c.Name)
	}
	return v
}

// handleHotkeyValidate handles POST /api/hotkey/validate
func (h *Handler) handleHotkeyValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		Chord string `json:"chord"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	writeJSON(w, ValidateChord(request.Chord))
}

// Model represents a Whisper model file
type Model struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Size        string `json:"size"`
	Recommended bool   `json:"recommended"`
}

// ScanModels lists the model files in dir
func ScanModels(dir string) ([]Model, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model directory: %w", err)
	}

	var models []Model
	for _, entry := range entries {
		if entry.IsDir() || !config.IsValidModelExtension(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		baseName := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		models = append(models, Model{
			Name:        entry.Name(),
			Path:        filepath.Join(dir, entry.Name()),
			Size:        formatSize(info.Size()),
			Recommended: baseName == "ggml-"+config.RecommendedModel,
		})
	}
	return models, nil
}

// handleModels handles GET /api/models
func (h *Handler) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	models, err := ScanModels(h.deps.ModelDir)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if models == nil {
		models = []Model{}
	}
	writeJSON(w, map[string]any{"models": models})
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
