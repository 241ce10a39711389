package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/temirov/repotxt/internal/utils"
)

type configTestCase struct {
	name          string
	globalContent string
	localContent  string
	explicitPath  string
	expectPreset  *bool
	expectCopy    *bool
	expectModel   string
	expectOutput  string
	expectExclude []string
	expectDelay   string
}

func boolPointer(value bool) *bool {
	pointer := value
	return &pointer
}

func TestLoadApplicationConfigurationMergesSources(t *testing.T) {
	testCases := []configTestCase{
		{
			name:          "local_overrides_global",
			globalContent: "generate:\n  preset: false\n  copy: true\n  model: gpt-4\n  exclude: [\"*.log\"]\n",
			localContent:  "generate:\n  copy: false\n  model: claude-3\n  exclude: [\"dist\", \"dist\"]\nwatch:\n  debounce: 2s\n",
			expectPreset:  boolPointer(false),
			expectCopy:    boolPointer(false),
			expectModel:   "claude-3",
			expectExclude: []string{"dist"},
			expectDelay:   "2s",
		},
		{
			name:          "explicit_path_only",
			globalContent: "generate:\n  output: global.txt\n",
			localContent:  "generate:\n  output: ignored.txt\n",
			explicitPath:  "custom.yaml",
			expectOutput:  "explicit.txt",
			expectExclude: []string{},
		},
		{
			name:          "global_only",
			globalContent: "generate:\n  preset: true\n",
			expectPreset:  boolPointer(true),
			expectExclude: []string{},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			homeDir := t.TempDir()
			workingDir := t.TempDir()
			configDir := filepath.Join(homeDir, utils.GlobalConfigDirectoryName)
			if err := os.MkdirAll(configDir, 0o755); err != nil {
				t.Fatalf("create config dir: %v", err)
			}
			if testCase.globalContent != "" {
				globalPath := filepath.Join(configDir, utils.ConfigFileName)
				if err := os.WriteFile(globalPath, []byte(testCase.globalContent), 0o600); err != nil {
					t.Fatalf("write global config: %v", err)
				}
			}
			if testCase.localContent != "" {
				localPath := filepath.Join(workingDir, utils.ConfigFileName)
				if err := os.WriteFile(localPath, []byte(testCase.localContent), 0o600); err != nil {
					t.Fatalf("write local config: %v", err)
				}
			}
			if testCase.explicitPath != "" {
				target := filepath.Join(workingDir, testCase.explicitPath)
				if err := os.WriteFile(target, []byte("generate:\n  output: explicit.txt\n"), 0o600); err != nil {
					t.Fatalf("write explicit config: %v", err)
				}
			}

			t.Setenv("HOME", homeDir)
			t.Setenv("USERPROFILE", homeDir)

			loadedConfig, err := LoadApplicationConfiguration(LoadOptions{
				WorkingDirectory: workingDir,
				ExplicitFilePath: testCase.explicitPath,
			})
			if err != nil {
				t.Fatalf("LoadApplicationConfiguration error: %v", err)
			}

			assertBoolPointer(t, "preset", loadedConfig.Generate.Preset, testCase.expectPreset)
			assertBoolPointer(t, "copy", loadedConfig.Generate.Copy, testCase.expectCopy)
			if loadedConfig.Generate.Model != testCase.expectModel {
				t.Fatalf("expected model %q, got %q", testCase.expectModel, loadedConfig.Generate.Model)
			}
			if loadedConfig.Generate.Output != testCase.expectOutput {
				t.Fatalf("expected output %q, got %q", testCase.expectOutput, loadedConfig.Generate.Output)
			}
			if !reflect.DeepEqual(loadedConfig.Generate.Exclude, testCase.expectExclude) {
				t.Fatalf("expected exclude %v, got %v", testCase.expectExclude, loadedConfig.Generate.Exclude)
			}
			if loadedConfig.Watch.Debounce != testCase.expectDelay {
				t.Fatalf("expected debounce %q, got %q", testCase.expectDelay, loadedConfig.Watch.Debounce)
			}
		})
	}
}

func assertBoolPointer(t *testing.T, label string, actual *bool, expected *bool) {
	t.Helper()
	if expected == nil {
		if actual != nil {
			t.Fatalf("expected no %s override, got %v", label, *actual)
		}
		return
	}
	if actual == nil || *actual != *expected {
		t.Fatalf("unexpected %s value", label)
	}
}

func TestLoadApplicationConfigurationRejectsDirectory(t *testing.T) {
	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)
	t.Setenv("USERPROFILE", homeDir)
	workingDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(workingDir, utils.ConfigFileName), 0o755); err != nil {
		t.Fatalf("create directory: %v", err)
	}
	if _, err := LoadApplicationConfiguration(LoadOptions{WorkingDirectory: workingDir}); err == nil {
		t.Fatalf("expected error for directory configuration path")
	}
}

func TestWatchConfigurationDebounceInterval(t *testing.T) {
	testCases := []struct {
		name        string
		value       string
		expected    time.Duration
		expectError bool
	}{
		{name: "unset", value: "", expected: 0},
		{name: "milliseconds", value: "750ms", expected: 750 * time.Millisecond},
		{name: "invalid", value: "soon", expectError: true},
		{name: "negative", value: "-1s", expectError: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			interval, err := WatchConfiguration{Debounce: testCase.value}.DebounceInterval()
			if testCase.expectError {
				if err == nil {
					t.Fatalf("expected error for %q", testCase.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if interval != testCase.expected {
				t.Fatalf("expected %v, got %v", testCase.expected, interval)
			}
		})
	}
}
