//go:build !cgo

package recognition

import "errors"

// LoadWhisperModel always fails without cgo
func LoadWhisperModel(path string) (Model, error) {
	return nil, errors.New("whisper.cpp requires cgo")
}
