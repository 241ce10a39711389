package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/temirov/repotxt/internal/utils"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds command-specific configuration defaults.
type ApplicationConfiguration struct {
	Generate GenerateConfiguration `mapstructure:"generate"`
	Watch    WatchConfiguration    `mapstructure:"watch"`
}

// GenerateConfiguration defines defaults for the generate and watch commands.
type GenerateConfiguration struct {
	Preset    *bool    `mapstructure:"preset"`
	Exclude   []string `mapstructure:"exclude"`
	UseIgnore *bool    `mapstructure:"use_ignore"`
	Model     string   `mapstructure:"model"`
	Prompt    string   `mapstructure:"prompt"`
	Copy      *bool    `mapstructure:"copy"`
	Output    string   `mapstructure:"output"`
}

// WatchConfiguration defines defaults for the watch command.
type WatchConfiguration struct {
	Debounce string `mapstructure:"debounce"`
}

// DebounceInterval parses the configured debounce, returning zero when unset.
func (config WatchConfiguration) DebounceInterval() (time.Duration, error) {
	trimmed := strings.TrimSpace(config.Debounce)
	if trimmed == "" {
		return 0, nil
	}
	interval, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse watch debounce %q: %w", trimmed, err)
	}
	if interval < 0 {
		return 0, fmt.Errorf("watch debounce %q must not be negative", trimmed)
	}
	return interval, nil
}

// LoadApplicationConfiguration loads configuration from global and local files.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.ConfigFileName)
		globalConfig, loadErr := loadConfigurationFromPath(globalPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath, resolveErr := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveErr != nil {
		return ApplicationConfiguration{}, resolveErr
	}
	if localPath != "" {
		localConfig, loadErr := loadConfigurationFromPath(localPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(localConfig)
	}

	merged.Generate.Exclude = utils.DeduplicatePatterns(merged.Generate.Exclude)

	return merged, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath, nil
		}
		if workingDirectory == "" {
			absolute, err := filepath.Abs(explicitPath)
			if err != nil {
				return "", fmt.Errorf("resolve configuration path %s: %w", explicitPath, err)
			}
			return absolute, nil
		}
		return filepath.Join(workingDirectory, explicitPath), nil
	}
	if workingDirectory == "" {
		return "", nil
	}
	return filepath.Join(workingDirectory, utils.ConfigFileName), nil
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	if path == "" {
		return ApplicationConfiguration{}, nil
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	reader.SetConfigType("yaml")
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return config, nil
}

// Merge overlays override onto the receiver returning the combined configuration.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	result.Generate = result.Generate.merge(override.Generate)
	result.Watch = result.Watch.merge(override.Watch)
	return result
}

func (config GenerateConfiguration) merge(override GenerateConfiguration) GenerateConfiguration {
	result := config
	if override.Preset != nil {
		result.Preset = cloneBool(override.Preset)
	}
	if len(override.Exclude) > 0 {
		result.Exclude = append([]string{}, utils.DeduplicatePatterns(override.Exclude)...)
	}
	if override.UseIgnore != nil {
		result.UseIgnore = cloneBool(override.UseIgnore)
	}
	if override.Model != "" {
		result.Model = override.Model
	}
	if override.Prompt != "" {
		result.Prompt = override.Prompt
	}
	if override.Copy != nil {
		result.Copy = cloneBool(override.Copy)
	}
	if override.Output != "" {
		result.Output = override.Output
	}
	return result
}

func (config WatchConfiguration) merge(override WatchConfiguration) WatchConfiguration {
	result := config
	if override.Debounce != "" {
		result.Debounce = override.Debounce
	}
	return result
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
