package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  int    `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// TypesFile is the YAML document describing pack types.
	TypesFile string `yaml:"types_file"`
	// CachePath is the SQLite pack cache; empty disables caching.
	CachePath string `yaml:"cache_path"`
	// ContainerExtension identifies a pack's container file, e.g. "msu".
	ContainerExtension string `yaml:"container_extension"`

	Storage StorageConfig           `yaml:"storage"`
	Shuffle ShuffleConfig           `yaml:"shuffle"`
	Packs   map[string]PackSettings `yaml:"packs"`
}

type StorageConfig struct {
	// Type of storage: "local" or "gcs"
	Type string `yaml:"type"`

	// Local storage options
	OutputDir string `yaml:"output_dir"`

	GCS GCSConfig `yaml:"gcs"`
}

type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	ObjectPrefix    string `yaml:"object_prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

type ShuffleConfig struct {
	Style           string        `yaml:"style"`
	AvoidDuplicates bool          `yaml:"avoid_duplicates"`
	WeightBySource  bool          `yaml:"weight_by_source"`
	Interval        time.Duration `yaml:"interval"`
}

// PackSettings are per-pack preferences keyed by pack path.
type PackSettings struct {
	AltTracks bool   `yaml:"alt_tracks"`
	Frequency string `yaml:"frequency"`
	Favorite  bool   `yaml:"favorite"`
}

const (
	DefaultTypesFile          = "types.yml"
	DefaultContainerExtension = "msu"
	DefaultOutputDir          = "output"
	DefaultShuffleStyle       = "standard"
	DefaultShuffleInterval    = time.Minute
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{
		Shuffle: ShuffleConfig{AvoidDuplicates: true, WeightBySource: true},
	}
	cfg.applyDefaults()
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()

	// Unmarshal the YAML data into the struct
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Set defaults if not provided
func (c *Config) applyDefaults() {
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}

	if c.TypesFile == "" {
		c.TypesFile = DefaultTypesFile
	}

	if c.ContainerExtension == "" {
		c.ContainerExtension = DefaultContainerExtension
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}

	if c.Storage.OutputDir == "" {
		c.Storage.OutputDir = DefaultOutputDir
	}

	if c.Shuffle.Style == "" {
		c.Shuffle.Style = DefaultShuffleStyle
	}

	if c.Shuffle.Interval <= 0 {
		c.Shuffle.Interval = DefaultShuffleInterval
	}
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log_format %q: expected json or text", c.LogFormat)
	}
	if c.Storage.Type == "gcs" && c.Storage.GCS.Bucket == "" {
		return fmt.Errorf("storage.gcs.bucket is required when storage.type is gcs")
	}
	return nil
}

// PackSettingsFor returns the settings configured for a pack path.
func (c *Config) PackSettingsFor(path string) PackSettings {
	if s, ok := c.Packs[path]; ok {
		return s
	}
	return PackSettings{}
}
