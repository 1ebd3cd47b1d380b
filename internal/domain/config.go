package domain

import (
	"fmt"
	"strings"
	"time"
)

// Resolver defaults.
const (
	DefaultMaxConcurrency = 8
	DefaultIOTimeout      = 10 * time.Second
	DefaultDirCacheSize   = 4096
)

// ToolConfig pairs an inclusion pattern with the parser that reads the
// matching report files.
type ToolConfig struct {
	ID      string `yaml:"id"      json:"id"`
	Pattern string `yaml:"pattern" json:"pattern"`
	Parser  string `yaml:"parser"  json:"parser"`
}

// EffectiveID falls back to the parser id when no explicit id is set.
func (t ToolConfig) EffectiveID() string {
	if t.ID != "" {
		return t.ID
	}
	return t.Parser
}

// ResolverConfig bounds the cost of path resolution and file capture.
type ResolverConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency" json:"max_concurrency,omitempty"`
	IOTimeout      time.Duration `yaml:"io_timeout"      json:"io_timeout,omitempty"`
	DirCacheSize   int           `yaml:"dir_cache_size"  json:"dir_cache_size,omitempty"`
}

// ProjectConfig holds the analysis configuration loaded from .issuegate.yaml.
type ProjectConfig struct {
	ID         string         `yaml:"id"         json:"id,omitempty"`
	Tools      []ToolConfig   `yaml:"tools"      json:"tools,omitempty"`
	Thresholds Thresholds     `yaml:"thresholds" json:"thresholds,omitempty"`
	Resolver   ResolverConfig `yaml:"resolver"   json:"resolver,omitempty"`
}

// DefaultConfig returns a config with resolver defaults and no tools or
// quality gates.
func DefaultConfig() ProjectConfig {
	return ProjectConfig{
		ID: "analysis",
		Resolver: ResolverConfig{
			MaxConcurrency: DefaultMaxConcurrency,
			IOTimeout:      DefaultIOTimeout,
			DirCacheSize:   DefaultDirCacheSize,
		},
	}
}

// WithDefaults fills unset resolver settings and the result id.
func (c ProjectConfig) WithDefaults() ProjectConfig {
	d := DefaultConfig()
	if c.ID == "" {
		c.ID = d.ID
	}
	if c.Resolver.MaxConcurrency <= 0 {
		c.Resolver.MaxConcurrency = d.Resolver.MaxConcurrency
	}
	if c.Resolver.IOTimeout <= 0 {
		c.Resolver.IOTimeout = d.Resolver.IOTimeout
	}
	if c.Resolver.DirCacheSize <= 0 {
		c.Resolver.DirCacheSize = d.Resolver.DirCacheSize
	}
	return c
}

// Validate checks the config for invalid values and returns a descriptive error.
func (c ProjectConfig) Validate() error {
	// 1. every tool needs a pattern and a parser, ids must be unique
	seen := map[string]bool{}
	for i, t := range c.Tools {
		if strings.TrimSpace(t.Pattern) == "" {
			return fmt.Errorf("tools[%d].pattern must not be empty", i)
		}
		if strings.TrimSpace(t.Parser) == "" {
			return fmt.Errorf("tools[%d].parser must not be empty", i)
		}
		id := t.EffectiveID()
		if seen[id] {
			return fmt.Errorf("duplicate tool id %q in tools", id)
		}
		seen[id] = true
	}

	// 2. thresholds must be positive
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}

	// 3. resolver bounds
	if c.Resolver.MaxConcurrency < 0 {
		return fmt.Errorf("resolver.max_concurrency must be >= 0 (got %d)", c.Resolver.MaxConcurrency)
	}
	if c.Resolver.IOTimeout < 0 {
		return fmt.Errorf("resolver.io_timeout must be >= 0 (got %s)", c.Resolver.IOTimeout)
	}
	if c.Resolver.DirCacheSize < 0 {
		return fmt.Errorf("resolver.dir_cache_size must be >= 0 (got %d)", c.Resolver.DirCacheSize)
	}

	return nil
}
