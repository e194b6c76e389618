package config

import (
	"os"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/blockpool/memutils"
	"gopkg.in/yaml.v3"
)

// ElementTypes lists the element types poolrun can build a pool for
var ElementTypes = []string{"float64", "float32", "int64", "int32", "uint8"}

// Config represents the top-level configuration structure.
type Config struct {
	Pool   PoolConfig   `yaml:"pool"`
	Output OutputConfig `yaml:"output"`
}

// PoolConfig holds the settings used to build each pool.
type PoolConfig struct {
	Capacity          int    `yaml:"capacity"`           // Buffer size in bytes, control words included
	Element           string `yaml:"element"`            // One of ElementTypes
	BackingFile       string `yaml:"backing_file"`       // Map the pool onto this file instead of the heap
	ValidateMutations bool   `yaml:"validate_mutations"` // Validate the layout after every mutation
}

// OutputConfig controls how results are reported.
type OutputConfig struct {
	JSON    bool `yaml:"json"`    // Print the detailed block map instead of headers
	Verbose bool `yaml:"verbose"` // Log every allocation and deallocation
}

// Default returns the configuration used when no file is given: a 1000-byte pool of float64
func Default() *Config {
	return &Config{
		Pool: PoolConfig{
			Capacity: 1000,
			Element:  "float64",
		},
	}
}

// LoadConfig reads a YAML configuration file from the specified path. Settings missing from the file
// keep their Default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}

	return cfg, nil
}

// Validate checks the settings that can be checked before a pool is built
func (c *Config) Validate() error {
	if c.Pool.Capacity < 1 {
		return errors.Wrapf(memutils.ErrInvalidConfiguration, "capacity must be positive, but was %d", c.Pool.Capacity)
	}

	if !slices.Contains(ElementTypes, c.Pool.Element) {
		return errors.Wrapf(memutils.ErrInvalidConfiguration, "unknown element type %q, expected one of %v", c.Pool.Element, ElementTypes)
	}

	return nil
}
