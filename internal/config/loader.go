package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the config file location
const EnvConfigPath = "OPENFOLIO_CONFIG"

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".openfolio"), nil
}

// LoadConfig loads configuration from the default path, creating it with defaults if missing
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from configPath, creating it with defaults if missing
func LoadFile(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		slog.Debug("no config file found, writing defaults", slog.String("path", configPath))
		defaultConfig := DefaultConfig()
		if err := SaveFile(configPath, defaultConfig); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return defaultConfig, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(expandEnvVars(data), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Pick the first context by name when none is selected
	if config.CurrentContext == "" && len(config.Contexts) > 0 {
		config.CurrentContext = config.ContextNames()[0]
	}

	for name, ctx := range config.Contexts {
		if ctx == nil {
			return nil, fmt.Errorf("context %q is empty", name)
		}
		ctx.applyDefaults()
		if err := ctx.Validate(); err != nil {
			return nil, fmt.Errorf("context %q: %w", name, err)
		}
	}

	return &config, nil
}

// SaveConfig saves configuration to the default path
func SaveConfig(config *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(configPath, config)
}

// SaveFile writes configuration to configPath
func SaveFile(configPath string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ContextNames returns context names in sorted order
func (c *Config) ContextNames() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
