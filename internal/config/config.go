package config

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config carries the tunable runtime limits. Every field has a sane default;
// a YAML file overrides only what it names.
type Config struct {
	GCEnabled         bool    `yaml:"gcEnabled"`
	GCMinThreshold    int     `yaml:"gcMinThreshold"`
	GCThreshold       int     `yaml:"gcThreshold"`
	GCRatio           float64 `yaml:"gcRatio"`
	MaxCallDepth      int     `yaml:"maxCallDepth"`
	MaxBlockSize      int     `yaml:"maxBlockSize"`
	MaxRecursionDepth int     `yaml:"maxRecursionDepth"`
}

// Default returns the stock limits
func Default() *Config {
	return &Config{
		GCEnabled:         true,
		GCMinThreshold:    128,
		GCThreshold:       4096,
		GCRatio:           0.5,
		MaxCallDepth:      256,
		MaxBlockSize:      1 << 20,
		MaxRecursionDepth: 1000,
	}
}

// Load reads a YAML config file over the defaults
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "validating config %s", path)
	}
	return cfg, nil
}

// Validate rejects limits that would make the runtime unusable
func (c *Config) Validate() error {
	if c.MaxCallDepth < 1 {
		return errors.Errorf("maxCallDepth must be positive, got %d", c.MaxCallDepth)
	}
	if c.MaxRecursionDepth < 1 {
		return errors.Errorf("maxRecursionDepth must be positive, got %d", c.MaxRecursionDepth)
	}
	if c.MaxBlockSize < 1 {
		return errors.Errorf("maxBlockSize must be positive, got %d", c.MaxBlockSize)
	}
	if c.GCRatio < 0 || c.GCRatio > 1 {
		return errors.Errorf("gcRatio must be within [0,1], got %g", c.GCRatio)
	}
	return nil
}

// Summary renders the limits in human-readable form for diagnostics
func (c *Config) Summary() string {
	gc := "off"
	if c.GCEnabled {
		gc = fmt.Sprintf("on (min %s, threshold %s, ratio %g)",
			humanize.Comma(int64(c.GCMinThreshold)),
			humanize.Comma(int64(c.GCThreshold)),
			c.GCRatio)
	}
	return fmt.Sprintf("gc %s, call depth %s, recursion depth %s, block size %s",
		gc,
		humanize.Comma(int64(c.MaxCallDepth)),
		humanize.Comma(int64(c.MaxRecursionDepth)),
		humanize.Bytes(uint64(c.MaxBlockSize)))
}
