package wizard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yok-tottii/local-dictation/internal/config"
	"github.com/yok-tottii/local-dictation/internal/permissions"
)

func newTestWizard(t *testing.T, granted bool) *SetupWizard {
	t.Helper()
	dir := t.TempDir()

	w, err := NewSetupWizard(filepath.Join(dir, "config.yaml"), filepath.Join(dir, "models"))
	if err != nil {
		t.Fatalf("Failed to create wizard: %v", err)
	}
	status := permissions.PermissionDenied
	if granted {
		status = permissions.PermissionAuthorized
	}
	w.checkPermissions = func() permissions.Report {
		return permissions.Report{Microphone: status, Accessibility: permissions.PermissionAuthorized}
	}
	return w
}

func TestNewSetupWizard(t *testing.T) {
	if _, err := NewSetupWizard("", ""); err == nil {
		t.Error("Expected error for empty config path")
	}

	dir := t.TempDir()
	w, err := NewSetupWizard(filepath.Join(dir, "config.yaml"), "")
	if err != nil {
		t.Fatalf("Failed to create wizard: %v", err)
	}
	if w.GetModelDir() != filepath.Join(dir, "models") {
		t.Errorf("Expected model dir next to config, got %s", w.GetModelDir())
	}
}

func TestRunCreatesConfigAndModelDir(t *testing.T) {
	w := newTestWizard(t, true)

	if !w.IsFirstRun() {
		t.Fatal("Expected first run")
	}

	created, err := w.Run(false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(created) != 2 {
		t.Errorf("Expected 2 created paths, got %v", created)
	}
	if w.IsFirstRun() {
		t.Error("Expected config to exist after Run")
	}

	cfg, err := config.Load(w.GetConfigPath())
	if err != nil {
		t.Fatalf("Failed to load written config: %v", err)
	}
	if cfg.Recognition.ModelDir != w.GetModelDir() {
		t.Errorf("Expected model dir %s, got %s", w.GetModelDir(), cfg.Recognition.ModelDir)
	}

	// A second run leaves the existing config alone
	created, err = w.Run(false)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("Expected nothing created, got %v", created)
	}

	created, err = w.Run(true)
	if err != nil {
		t.Fatalf("Forced run failed: %v", err)
	}
	if len(created) != 1 || created[0] != w.GetConfigPath() {
		t.Errorf("Expected config to be rewritten, got %v", created)
	}
}

func TestGetProgress(t *testing.T) {
	w := newTestWizard(t, false)

	p := w.GetProgress(config.Default())
	if p.ConfigWritten || p.ModelDirExists || p.ModelFound {
		t.Errorf("Expected nothing set up yet, got %+v", p)
	}
	if !p.HotkeyValid {
		t.Error("Expected default hotkey to be valid")
	}
	if p.Complete() {
		t.Error("Expected setup to be incomplete")
	}

	if _, err := w.Run(false); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	model := filepath.Join(w.GetModelDir(), "ggml-"+config.RecommendedModel+".bin")
	if err := os.WriteFile(model, []byte("model"), 0644); err != nil {
		t.Fatal(err)
	}

	p = w.GetProgress(config.Default())
	if !p.ConfigWritten || !p.ModelDirExists || !p.ModelFound {
		t.Errorf("Expected config and model, got %+v", p)
	}
	if p.PermissionsGranted || p.Complete() {
		t.Error("Expected missing microphone permission to block completion")
	}
	if len(p.Missing) != 1 {
		t.Errorf("Expected 1 missing item, got %v", p.Missing)
	}

	w.checkPermissions = func() permissions.Report {
		return permissions.Report{Microphone: permissions.PermissionAuthorized, Accessibility: permissions.PermissionAuthorized}
	}
	if p := w.GetProgress(config.Default()); !p.Complete() {
		t.Errorf("Expected setup to be complete, got %+v", p)
	}
}
