//go:build cgo

package recognition

import (
	"errors"
	"fmt"
	"io"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

type whisperModel struct {
	model whisperlib.Model
}

// LoadWhisperModel loads a ggml model with the whisper.cpp bindings
func LoadWhisperModel(path string) (Model, error) {
	model, err := whisperlib.New(path)
	if err != nil {
		return nil, err
	}
	return &whisperModel{model: model}, nil
}

func (m *whisperModel) Transcribe(samples []float32, language string, threads int) (string, error) {
	// Contexts are not safe for concurrent use; one per call
	wctx, err := m.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("failed to create context: %w", err)
	}

	if err := wctx.SetLanguage(language); err != nil {
		return "", fmt.Errorf("failed to set language %q: %w", language, err)
	}
	if threads > 0 {
		wctx.SetThreads(uint(threads))
	}
	wctx.SetTranslate(false)

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("failed to process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

func (m *whisperModel) Close() error {
	return m.model.Close()
}
