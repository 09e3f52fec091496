package wizard

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yok-tottii/local-dictation/internal/config"
	"github.com/yok-tottii/local-dictation/internal/permissions"
)

// SetupWizard prepares a first-run installation: a default config file and
// the model directory.
type SetupWizard struct {
	configPath string
	modelDir   string
	// checkPermissions is replaced in tests
	checkPermissions func() permissions.Report
}

// NewSetupWizard creates a wizard for configPath. An empty modelDir uses
// the default model directory.
func NewSetupWizard(configPath, modelDir string) (*SetupWizard, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is empty")
	}
	if modelDir == "" {
		modelDir = filepath.Join(filepath.Dir(configPath), "models")
	}
	expanded, err := config.ExpandPath(modelDir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand model directory: %w", err)
	}

	return &SetupWizard{
		configPath:       configPath,
		modelDir:         expanded,
		checkPermissions: permissions.Check,
	}, nil
}

// IsFirstRun checks if the config file has not been written yet
func (w *SetupWizard) IsFirstRun() bool {
	_, err := os.Stat(w.configPath)
	return os.IsNotExist(err)
}

// SetupProgress reports which setup steps are complete
type SetupProgress struct {
	ConfigWritten      bool     `json:"config_written"`
	ModelDirExists     bool     `json:"model_dir_exists"`
	ModelFound         bool     `json:"model_found"`
	HotkeyValid        bool     `json:"hotkey_valid"`
	PermissionsGranted bool     `json:"permissions_granted"`
	Missing            []string `json:"missing,omitempty"`
}

// Complete reports whether dictation can start
func (p SetupProgress) Complete() bool {
	return p.ConfigWritten && p.ModelFound && p.HotkeyValid && p.PermissionsGranted
}

// GetProgress checks each setup step against cfg
func (w *SetupWizard) GetProgress(cfg config.Config) SetupProgress {
	var p SetupProgress
	p.ConfigWritten = !w.IsFirstRun()

	if info, err := os.Stat(w.modelDir); err == nil && info.IsDir() {
		p.ModelDirExists = true
	}

	if cfg.Recognition.ModelDir == "" {
		cfg.Recognition.ModelDir = w.modelDir
	}
	if _, err := cfg.ResolveModelPath(); err == nil {
		p.ModelFound = true
	} else {
		p.Missing = append(p.Missing, err.Error())
	}

	if _, err := cfg.Chord(); err == nil {
		p.HotkeyValid = true
	} else {
		p.Missing = append(p.Missing, err.Error())
	}

	report := w.checkPermissions()
	p.PermissionsGranted = report.Granted()
	p.Missing = append(p.Missing, report.Missing()...)
	return p
}

// Run writes the default config (unless one exists and force is false) and
// creates the model directory. It returns the paths it created.
func (w *SetupWizard) Run(force bool) ([]string, error) {
	var created []string

	if force || w.IsFirstRun() {
		cfg := config.Default()
		cfg.Recognition.ModelDir = w.modelDir
		if err := cfg.Save(w.configPath); err != nil {
			return created, err
		}
		created = append(created, w.configPath)
	}

	if _, err := os.Stat(w.modelDir); os.IsNotExist(err) {
		if err := os.MkdirAll(w.modelDir, 0755); err != nil {
			return created, fmt.Errorf("failed to create model directory: %w", err)
		}
		created = append(created, w.modelDir)
	}
	return created, nil
}

// GetConfigPath returns the configuration file path
func (w *SetupWizard) GetConfigPath() string {
	return w.configPath
}

// GetModelDir returns the model directory
func (w *SetupWizard) GetModelDir() string {
	return w.modelDir
}
