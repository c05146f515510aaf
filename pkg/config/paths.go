package config

import (
	"path/filepath"

	"github.com/spf13/viper"
)

// BaseSettingsDir is the directory holding the active settings file,
// where sidecar state like mode preferences lives too.
func BaseSettingsDir() string {
	// Check if config.path is explicitly set (for testing)
	if configPath := viper.GetString("config.path"); configPath != "" {
		return configPath
	}

	if current := viper.ConfigFileUsed(); current != "" {
		return filepath.Dir(current)
	}
	return "./.sage"
}

// BuildSettingsPath joins target onto the settings directory.
func BuildSettingsPath(target string) string {
	return filepath.Join(BaseSettingsDir(), target)
}
