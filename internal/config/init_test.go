package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/temirov/repotxt/internal/utils"
)

func TestInitializeConfigurationCreatesLocalFile(t *testing.T) {
	workingDirectory := t.TempDir()
	options := InitOptions{WorkingDirectory: workingDirectory, Target: InitTargetLocal}
	path, err := InitializeConfiguration(options)
	if err != nil {
		t.Fatalf("InitializeConfiguration error: %v", err)
	}
	expectedPath := filepath.Join(workingDirectory, utils.ConfigFileName)
	if path != expectedPath {
		t.Fatalf("expected path %s, got %s", expectedPath, path)
	}
	content, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatalf("read config: %v", readErr)
	}
	if !strings.Contains(string(content), "generate:") {
		t.Fatalf("unexpected configuration content: %s", string(content))
	}
	if _, statErr := os.Stat(filepath.Join(workingDirectory, utils.IgnoreFileName)); statErr != nil {
		t.Fatalf("expected ignore file to be seeded: %v", statErr)
	}
}

func TestInitializeConfigurationTemplateLoads(t *testing.T) {
	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)
	t.Setenv("USERPROFILE", homeDir)
	workingDirectory := t.TempDir()
	if _, err := InitializeConfiguration(InitOptions{WorkingDirectory: workingDirectory}); err != nil {
		t.Fatalf("InitializeConfiguration error: %v", err)
	}
	loaded, err := LoadApplicationConfiguration(LoadOptions{WorkingDirectory: workingDirectory})
	if err != nil {
		t.Fatalf("LoadApplicationConfiguration error: %v", err)
	}
	if loaded.Generate.Preset == nil || !*loaded.Generate.Preset {
		t.Fatalf("expected preset enabled in default template")
	}
	if loaded.Generate.Model != "gpt-4o" {
		t.Fatalf("expected default model gpt-4o, got %q", loaded.Generate.Model)
	}
	if loaded.Watch.Debounce != "500ms" {
		t.Fatalf("expected default debounce 500ms, got %q", loaded.Watch.Debounce)
	}
}

func TestInitializeConfigurationHonorsGlobalTarget(t *testing.T) {
	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)
	t.Setenv("USERPROFILE", homeDir)
	path, err := InitializeConfiguration(InitOptions{Target: InitTargetGlobal, Force: true})
	if err != nil {
		t.Fatalf("InitializeConfiguration error: %v", err)
	}
	if !strings.HasPrefix(path, homeDir) {
		t.Fatalf("expected configuration under home dir, got %s", path)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("expected file to exist at %s: %v", path, statErr)
	}
}

func TestInitializeConfigurationPreventsOverwriteWithoutForce(t *testing.T) {
	workingDirectory := t.TempDir()
	path := filepath.Join(workingDirectory, utils.ConfigFileName)
	if err := os.WriteFile(path, []byte("existing"), 0o600); err != nil {
		t.Fatalf("write seed config: %v", err)
	}
	_, err := InitializeConfiguration(InitOptions{WorkingDirectory: workingDirectory, Target: InitTargetLocal, Force: false})
	if err == nil {
		t.Fatalf("expected error when configuration already exists")
	}
}
