package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/openkraft/issuegate/internal/domain"
)

const fileName = ".issuegate.yaml"

// YAMLLoader implements domain.ConfigLoader by reading .issuegate.yaml.
type YAMLLoader struct{}

// New creates a YAMLLoader.
func New() *YAMLLoader { return &YAMLLoader{} }

// Load reads .issuegate.yaml from dir.
// Returns DefaultConfig if the file does not exist.
func (l *YAMLLoader) Load(dir string) (domain.ProjectConfig, error) {
	cfg, err := l.LoadFile(filepath.Join(dir, fileName))
	if errors.Is(err, os.ErrNotExist) {
		return domain.DefaultConfig(), nil
	}
	return cfg, err
}

// LoadFile reads an explicit config file. A missing file is an error.
func (l *YAMLLoader) LoadFile(path string) (domain.ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ProjectConfig{}, err
	}

	var cfg domain.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.ProjectConfig{}, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	// Validate before applying defaults so that typos in raw input surface.
	if err := cfg.Validate(); err != nil {
		return domain.ProjectConfig{}, fmt.Errorf("invalid %s: %w", filepath.Base(path), err)
	}

	return cfg.WithDefaults(), nil
}

// Merge overlays explicit overrides, e.g. from command line flags, on top of
// a loaded config. Explicit (non-zero) values always win; tools given as
// overrides replace the configured tools entirely.
func Merge(base, override domain.ProjectConfig) domain.ProjectConfig {
	result := base

	if override.ID != "" {
		result.ID = override.ID
	}
	if len(override.Tools) > 0 {
		result.Tools = override.Tools
	}
	result.Thresholds = mergeThresholds(base.Thresholds, override.Thresholds)

	if override.Resolver.MaxConcurrency > 0 {
		result.Resolver.MaxConcurrency = override.Resolver.MaxConcurrency
	}
	if override.Resolver.IOTimeout > 0 {
		result.Resolver.IOTimeout = override.Resolver.IOTimeout
	}
	if override.Resolver.DirCacheSize > 0 {
		result.Resolver.DirCacheSize = override.Resolver.DirCacheSize
	}

	return result.WithDefaults()
}

func mergeThresholds(base, override domain.Thresholds) domain.Thresholds {
	result := base
	for _, pair := range []struct{ dst, src **int }{
		{&result.UnstableTotalAll, &override.UnstableTotalAll},
		{&result.UnstableTotalError, &override.UnstableTotalError},
		{&result.UnstableTotalHigh, &override.UnstableTotalHigh},
		{&result.UnstableTotalNormal, &override.UnstableTotalNormal},
		{&result.UnstableTotalLow, &override.UnstableTotalLow},
		{&result.UnstableNewAll, &override.UnstableNewAll},
		{&result.UnstableNewError, &override.UnstableNewError},
		{&result.UnstableNewHigh, &override.UnstableNewHigh},
		{&result.UnstableNewNormal, &override.UnstableNewNormal},
		{&result.UnstableNewLow, &override.UnstableNewLow},
		{&result.FailedTotalAll, &override.FailedTotalAll},
		{&result.FailedTotalError, &override.FailedTotalError},
		{&result.FailedTotalHigh, &override.FailedTotalHigh},
		{&result.FailedTotalNormal, &override.FailedTotalNormal},
		{&result.FailedTotalLow, &override.FailedTotalLow},
		{&result.FailedNewAll, &override.FailedNewAll},
		{&result.FailedNewError, &override.FailedNewError},
		{&result.FailedNewHigh, &override.FailedNewHigh},
		{&result.FailedNewNormal, &override.FailedNewNormal},
		{&result.FailedNewLow, &override.FailedNewLow},
	} {
		if *pair.src != nil {
			*pair.dst = *pair.src
		}
	}
	return result
}
