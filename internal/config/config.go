// Package config loads settings for the bsonkit command-line tool.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/xdg-go/bsonkit"
)

// Output formats.
const (
	FormatHex     = "hex"
	FormatRaw     = "raw"
	FormatExtJSON = "extjson"
)

// Config is the complete tool configuration.
type Config struct {
	Region RegionConfig `yaml:"region"`
	Parser ParserConfig `yaml:"parser"`
	Output OutputConfig `yaml:"output"`
}

// RegionConfig sizes the output buffer.
type RegionConfig struct {
	InitialCapacity int `yaml:"initial_capacity"`
	Limit           int `yaml:"limit"`
}

// ParserConfig controls JSON conversion.
type ParserConfig struct {
	MaxDepth   int  `yaml:"max_depth"`
	UniqueKeys bool `yaml:"unique_keys"`
}

// OutputConfig controls how documents are written.
type OutputConfig struct {
	Format string `yaml:"format"`
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		Region: RegionConfig{
			InitialCapacity: bsonkit.DefaultRegionCapacity,
		},
		Parser: ParserConfig{
			MaxDepth: bsonkit.DefaultMaxDepth,
		},
		Output: OutputConfig{
			Format: FormatHex,
		},
	}
}

// LoadConfig reads a YAML file over the defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	cfg := NewConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindConfigFile searches the current directory and its parents for a
// config file.  It returns "" if there is none.
func FindConfigFile() string {
	names := []string{".bsonkit.yml", ".bsonkit.yaml", "bsonkit.yml", "bsonkit.yaml"}

	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		for _, name := range names {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Validate checks value ranges and the output format.
func (c *Config) Validate() error {
	if c.Region.InitialCapacity < 0 {
		return errors.Errorf("region.initial_capacity must not be negative, got %d", c.Region.InitialCapacity)
	}
	if c.Region.Limit < 0 {
		return errors.Errorf("region.limit must not be negative, got %d", c.Region.Limit)
	}
	if c.Region.Limit > 0 && c.Region.Limit < 5 {
		return errors.Errorf("region.limit %d cannot hold an empty document", c.Region.Limit)
	}
	switch c.Output.Format {
	case FormatHex, FormatRaw, FormatExtJSON:
	default:
		return errors.Errorf("unknown output format %q", c.Output.Format)
	}
	return nil
}

// Converter returns a bsonkit.Converter with the parser and region settings
// applied.
func (c *Config) Converter() *bsonkit.Converter {
	conv := bsonkit.NewConverter()
	conv.InitialCapacity(c.Region.InitialCapacity)
	conv.Limit(c.Region.Limit)
	conv.MaxDepth(c.Parser.MaxDepth)
	conv.UniqueKeys(c.Parser.UniqueKeys)
	return conv
}
