package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	// Create a temporary directory for test files
	tempDir := t.TempDir()

	// Create a test config file
	configPath := filepath.Join(tempDir, "test_config.yaml")
	configContent := `
log_level: -4
log_format: text
types_file: ./types.yml
cache_path: ./cache.db
storage:
  type: local
  output_dir: ./out
shuffle:
  style: chaos_all
  avoid_duplicates: false
  interval: 30s
packs:
  /packs/zelda:
    alt_tracks: true
    frequency: more
    favorite: true
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	assert.NoError(t, err)

	// Test loading the config
	cfg, err := Load(configPath)

	// Assert
	assert.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, -4, cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "./types.yml", cfg.TypesFile)
	assert.Equal(t, "./cache.db", cfg.CachePath)
	assert.Equal(t, "./out", cfg.Storage.OutputDir)
	assert.Equal(t, "chaos_all", cfg.Shuffle.Style)
	assert.False(t, cfg.Shuffle.AvoidDuplicates)
	assert.True(t, cfg.Shuffle.WeightBySource, "defaults survive partial sections")
	assert.Equal(t, 30*time.Second, cfg.Shuffle.Interval)

	settings := cfg.PackSettingsFor("/packs/zelda")
	assert.True(t, settings.AltTracks)
	assert.Equal(t, "more", settings.Frequency)
	assert.Equal(t, PackSettings{}, cfg.PackSettingsFor("/packs/unknown"))
}

func TestLoadDefaults(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "empty.yaml")
	err := os.WriteFile(configPath, []byte("log_level: 0\n"), 0644)
	assert.NoError(t, err)

	cfg, err := Load(configPath)
	assert.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, DefaultTypesFile, cfg.TypesFile)
	assert.Equal(t, DefaultContainerExtension, cfg.ContainerExtension)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, DefaultOutputDir, cfg.Storage.OutputDir)
	assert.Equal(t, DefaultShuffleStyle, cfg.Shuffle.Style)
	assert.Equal(t, DefaultShuffleInterval, cfg.Shuffle.Interval)
	assert.True(t, cfg.Shuffle.AvoidDuplicates)
}

func TestLoadNonExistentFile(t *testing.T) {
	// Test loading a non-existent config file
	cfg, err := Load("non_existent_file.yaml")

	// Assert
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadInvalidYAML(t *testing.T) {
	// Create a temporary directory for test files
	tempDir := t.TempDir()

	// Create an invalid YAML file
	configPath := filepath.Join(tempDir, "invalid_config.yaml")
	configContent := `
log_level: -4
storage:
  type: local
invalid_yaml: [this is not valid yaml
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	assert.NoError(t, err)

	// Test loading the invalid config
	cfg, err := Load(configPath)

	// Assert
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad log format", "log_format: xml\n"},
		{"gcs without bucket", "storage:\n  type: gcs\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			assert.NoError(t, os.WriteFile(configPath, []byte(tt.content), 0644))

			cfg, err := Load(configPath)
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}
