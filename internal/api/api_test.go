package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/yok-tottii/local-dictation/internal/audio"
	"github.com/yok-tottii/local-dictation/internal/hotkey"
	"github.com/yok-tottii/local-dictation/internal/recording"
)

type fakeState struct{ state recording.State }

func (f fakeState) State() recording.State { return f.state }

type fakeWake struct{ paused bool }

func (f fakeWake) Paused() bool { return f.paused }

type fakeModel struct{ loaded bool }

func (f fakeModel) Loaded() bool     { return f.loaded }
func (f fakeModel) Language() string { return "en" }

type fakeHost struct{ devices []audio.Device }

func (h fakeHost) Devices() ([]audio.Device, error) { return h.devices, nil }
func (h fakeHost) DefaultInputDevice() (audio.Device, error) {
	return h.devices[0], nil
}
func (h fakeHost) CheckRate(deviceID, rate int) error { return nil }

func newTestHandler() *Handler {
	return New(Deps{
		Recording: fakeState{recording.Recording},
		Wake:      fakeWake{paused: true},
		Model:     fakeModel{loaded: true},
		Host: fakeHost{devices: []audio.Device{
			{ID: 0, Name: "Built-in Microphone", MaxInputChannels: 1, DefaultSampleRate: 48000, IsDefault: true},
			{ID: 1, Name: "Speakers", MaxInputChannels: 0},
			{ID: 2, Name: "USB Mic", MaxInputChannels: 2, DefaultSampleRate: 44100},
		}},
		Selection: audio.Selection{SampleRate: 48000, DeviceID: 0, DeviceName: "Built-in Microphone"},
		Chord:     hotkey.MustParseChord(hotkey.DefaultChordSpec),
	})
}

func TestHandleStatus(t *testing.T) {
	handler := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	handler.handleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var status Status
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if status.State != "Recording" {
		t.Errorf("Expected state 'Recording', got '%s'", status.State)
	}
	if !status.WakeWord || !status.WakePaused {
		t.Errorf("Expected paused wake word, got %+v", status)
	}
	if !status.ModelLoaded {
		t.Error("Expected model to be loaded")
	}
	if status.Chord != "CTRL+ALT+SPACE" {
		t.Errorf("Expected chord CTRL+ALT+SPACE, got %s", status.Chord)
	}
	if status.SampleRate != 48000 {
		t.Errorf("Expected sample rate 48000, got %d", status.SampleRate)
	}
}

func TestCurrentStatusWithoutSources(t *testing.T) {
	status := New(Deps{}).CurrentStatus()

	if status.State != recording.Idle.String() {
		t.Errorf("Expected Idle, got %s", status.State)
	}
	if status.WakeWord {
		t.Error("Expected wake word to be reported disabled")
	}
}

func TestHandleDevices(t *testing.T) {
	handler := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	w := httptest.NewRecorder()
	handler.handleDevices(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Devices []Device `json:"devices"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(response.Devices) != 2 {
		t.Fatalf("Expected 2 input devices, got %d", len(response.Devices))
	}
	if !response.Devices[0].Selected {
		t.Error("Expected first device to be selected")
	}
	if response.Devices[1].Name != "USB Mic" {
		t.Errorf("Expected 'USB Mic', got '%s'", response.Devices[1].Name)
	}
}

func TestHandleDevicesWithoutHost(t *testing.T) {
	handler := New(Deps{})

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	w := httptest.NewRecorder()
	handler.handleDevices(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestHandleHotkeyValidate(t *testing.T) {
	tests := []struct {
		name          string
		chord         string
		wantValid     bool
		wantConflicts int
	}{
		{"default chord", "CTRL,ALT,SPACE", true, 0},
		{"spotlight", "cmd+space", true, 1},
		{"unknown key", "CTRL,BOGUS", false, 0},
	}

	handler := newTestHandler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(map[string]string{"chord": tt.chord})
			req := httptest.NewRequest(http.MethodPost, "/api/hotkey/validate", bytes.NewReader(body))
			w := httptest.NewRecorder()
			handler.handleHotkeyValidate(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}

			var response HotkeyValidation
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if response.Valid != tt.wantValid {
				t.Errorf("Expected valid=%v, got %v (%s)", tt.wantValid, response.Valid, response.Error)
			}
			if len(response.Conflicts) != tt.wantConflicts {
				t.Errorf("Expected %d conflicts, got %v", tt.wantConflicts, response.Conflicts)
			}
		})
	}
}

func TestHandleHotkeyValidateInvalidBody(t *testing.T) {
	handler := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/hotkey/validate", bytes.NewReader([]byte("invalid")))
	w := httptest.NewRecorder()
	handler.handleHotkeyValidate(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler()
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/status"},
		{http.MethodPost, "/api/devices"},
		{http.MethodGet, "/api/hotkey/validate"},
		{http.MethodDelete, "/api/models"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected status 405, got %d", tt.method, tt.path, w.Code)
		}
	}
}

func TestScanModels(t *testing.T) {
	dir := t.TempDir()
	files := map[string]int{
		"ggml-base.en.bin":  2048,
		"ggml-small.gguf":   10,
		"notes.txt":         5,
		"ggml-tiny.bin.tmp": 5,
	}
	for name, size := range files {
		if err := os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.bin"), 0755); err != nil {
		t.Fatal(err)
	}

	models, err := ScanModels(dir)
	if err != nil {
		t.Fatalf("ScanModels failed: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("Expected 2 models, got %d: %+v", len(models), models)
	}

	byName := map[string]Model{}
	for _, m := range models {
		byName[m.Name] = m
	}
	if !byName["ggml-base.en.bin"].Recommended {
		t.Error("Expected ggml-base.en.bin to be recommended")
	}
	if byName["ggml-base.en.bin"].Size != "2.0 KB" {
		t.Errorf("Expected size '2.0 KB', got '%s'", byName["ggml-base.en.bin"].Size)
	}
	if byName["ggml-small.gguf"].Recommended {
		t.Error("Expected ggml-small.gguf not to be recommended")
	}

	missing, err := ScanModels(filepath.Join(dir, "missing"))
	if err != nil || missing != nil {
		t.Errorf("Expected no models and no error for missing dir, got %v, %v", missing, err)
	}
}

func TestFormatSize(t *testing.T) {
	tests := map[int64]string{
		512:         "512 B",
		1024:        "1.0 KB",
		1536 * 1024: "1.5 MB",
		3 << 30:     "3.0 GB",
	}
	for in, want := range tests {
		if got := formatSize(in); got != want {
			t.Errorf("formatSize(%d): expected %q, got %q", in, want, got)
		}
	}
}
