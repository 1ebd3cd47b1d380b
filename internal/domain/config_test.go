package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkraft/issuegate/internal/domain"
)

func TestDefaultConfig_HasNoToolsOrGates(t *testing.T) {
	cfg := domain.DefaultConfig()
	assert.Equal(t, "analysis", cfg.ID)
	assert.Empty(t, cfg.Tools)
	assert.True(t, cfg.Thresholds.IsEmpty())
	assert.Equal(t, domain.DefaultMaxConcurrency, cfg.Resolver.MaxConcurrency)
	assert.Equal(t, domain.DefaultIOTimeout, cfg.Resolver.IOTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestWithDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := domain.ProjectConfig{
		ID:       "lint",
		Resolver: domain.ResolverConfig{MaxConcurrency: 2, IOTimeout: time.Second},
	}.WithDefaults()

	assert.Equal(t, "lint", cfg.ID)
	assert.Equal(t, 2, cfg.Resolver.MaxConcurrency)
	assert.Equal(t, time.Second, cfg.Resolver.IOTimeout)
	assert.Equal(t, domain.DefaultDirCacheSize, cfg.Resolver.DirCacheSize)
}

func TestToolConfig_EffectiveID(t *testing.T) {
	assert.Equal(t, "eclipse", domain.ToolConfig{Parser: "eclipse"}.EffectiveID())
	assert.Equal(t, "ecj", domain.ToolConfig{ID: "ecj", Parser: "eclipse"}.EffectiveID())
}

func TestValidate_RejectsInvalidConfigs(t *testing.T) {
	tests := []struct {
		name    string
		cfg     domain.ProjectConfig
		wantErr string
	}{
		{
			name:    "empty pattern",
			cfg:     domain.ProjectConfig{Tools: []domain.ToolConfig{{Parser: "gcc"}}},
			wantErr: "tools[0].pattern",
		},
		{
			name:    "empty parser",
			cfg:     domain.ProjectConfig{Tools: []domain.ToolConfig{{Pattern: "*.log"}}},
			wantErr: "tools[0].parser",
		},
		{
			name: "duplicate id",
			cfg: domain.ProjectConfig{Tools: []domain.ToolConfig{
				{Pattern: "a.log", Parser: "gcc"},
				{Pattern: "b.log", Parser: "gcc"},
			}},
			wantErr: `duplicate tool id "gcc"`,
		},
		{
			name:    "zero threshold",
			cfg:     domain.ProjectConfig{Thresholds: domain.Thresholds{FailedNewAll: domain.IntPtr(0)}},
			wantErr: "thresholds.failed_new_all must be > 0",
		},
		{
			name:    "negative concurrency",
			cfg:     domain.ProjectConfig{Resolver: domain.ResolverConfig{MaxConcurrency: -1}},
			wantErr: "resolver.max_concurrency",
		},
		{
			name:    "negative timeout",
			cfg:     domain.ProjectConfig{Resolver: domain.ResolverConfig{IOTimeout: -time.Second}},
			wantErr: "resolver.io_timeout",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_DistinctIDsForSameParser(t *testing.T) {
	cfg := domain.ProjectConfig{Tools: []domain.ToolConfig{
		{ID: "main", Pattern: "a.log", Parser: "gcc"},
		{ID: "tests", Pattern: "b.log", Parser: "gcc"},
	}}
	assert.NoError(t, cfg.Validate())
}
