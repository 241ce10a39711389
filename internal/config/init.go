package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/temirov/repotxt/internal/utils"
)

// InitTarget identifies where configuration should be initialized.
type InitTarget string

const (
	// InitTargetLocal writes configuration into the working directory.
	InitTargetLocal InitTarget = "local"
	// InitTargetGlobal writes configuration into the global configuration directory.
	InitTargetGlobal InitTarget = "global"

	defaultConfigurationTemplate = `generate:
  preset: true
  exclude: []
  use_ignore: true
  model: gpt-4o
  prompt: ""
  copy: false
  output: ""
watch:
  debounce: 500ms
`
	defaultIgnoreTemplate = `# One exclusion pattern per line: name, *.ext, prefix*, *suffix, *part*, or a relative path.
`
)

// InitOptions controls how configuration initialization behaves.
type InitOptions struct {
	Target           InitTarget
	Force            bool
	WorkingDirectory string
}

// InitializeConfiguration writes the default configuration to the requested target.
// A local target also seeds an ignore file when none exists.
func InitializeConfiguration(options InitOptions) (string, error) {
	target := options.Target
	if target == "" {
		target = InitTargetLocal
	}
	destinationDirectory, err := resolveInitDirectory(target, options.WorkingDirectory)
	if err != nil {
		return "", err
	}
	destinationPath := filepath.Join(destinationDirectory, utils.ConfigFileName)

	if _, err := os.Stat(destinationPath); err == nil {
		if !options.Force {
			return "", fmt.Errorf("configuration file already exists at %s", destinationPath)
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("inspect configuration path %s: %w", destinationPath, err)
	}

	if err := os.WriteFile(destinationPath, []byte(defaultConfigurationTemplate), 0o600); err != nil {
		return "", fmt.Errorf("write configuration to %s: %w", destinationPath, err)
	}

	if target == InitTargetLocal {
		ignorePath := filepath.Join(destinationDirectory, utils.IgnoreFileName)
		if _, statErr := os.Stat(ignorePath); os.IsNotExist(statErr) {
			if err := os.WriteFile(ignorePath, []byte(defaultIgnoreTemplate), 0o600); err != nil {
				return "", fmt.Errorf("write ignore file to %s: %w", ignorePath, err)
			}
		}
	}

	return destinationPath, nil
}

func resolveInitDirectory(target InitTarget, workingDirectory string) (string, error) {
	switch target {
	case InitTargetLocal:
		if workingDirectory != "" {
			return workingDirectory, nil
		}
		current, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory for configuration: %w", err)
		}
		return current, nil
	case InitTargetGlobal:
		homeDirectory, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory for configuration: %w", err)
		}
		configurationDirectory := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName)
		if err := os.MkdirAll(configurationDirectory, 0o755); err != nil {
			return "", fmt.Errorf("create configuration directory %s: %w", configurationDirectory, err)
		}
		return configurationDirectory, nil
	default:
		return "", fmt.Errorf("unsupported init target %q", target)
	}
}
