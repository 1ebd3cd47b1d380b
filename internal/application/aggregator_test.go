package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkraft/issuegate/internal/adapters/outbound/detector"
	"github.com/openkraft/issuegate/internal/application"
	"github.com/openkraft/issuegate/internal/domain"
)

func TestResultAggregator_FillsNamesAndGroups(t *testing.T) {
	ws := memWorkspace(t,
		"/ws/core/pom.xml", "<project><name>Core</name></project>",
		"/ws/core/src/com/acme/A.java", "package com.acme;\nclass A {}",
		"/ws/core/src/com/acme/B.java", "package com.acme.b;\nclass B {}",
		"/ws/web/package.json", `{"name": "web-ui"}`,
		"/ws/web/src/index.ts", "export {}",
	)
	fs := findings("core/src/com/acme/A.java", "core/src/com/acme/A.java", "core/src/com/acme/B.java", "web/src/index.ts", "gone/X.java")
	fs[2].Severity = domain.SeverityError

	resolver := application.NewPathResolver(application.PathResolverOptions{})
	resolved, _, err := resolver.Resolve(context.Background(), ws, []string{"/ws"}, fs)
	require.NoError(t, err)
	copied, err := application.NewAffectedFileCopier(newMemContent(), application.FileCopierOptions{}).
		Copy(context.Background(), ws, testBuild, resolved)
	require.NoError(t, err)

	agg := application.NewResultAggregator(detector.New(), application.AggregatorOptions{})
	result, err := agg.Aggregate(context.Background(), ws, []string{"/ws"}, resolved, copied.Sources)
	require.NoError(t, err)

	assert.Equal(t, 5, result.TotalSize)
	assert.Len(t, result.Issues, 5)
	assert.Equal(t, domain.SeverityCounts{Error: 1, Normal: 4}, result.Totals)

	assert.Equal(t, "Core", fs[0].ModuleName)
	assert.Equal(t, "com.acme", fs[0].PackageName)
	assert.Equal(t, "com.acme.b", fs[2].PackageName)
	assert.Equal(t, "web-ui", fs[3].ModuleName)
	assert.Empty(t, fs[3].PackageName, "no package detection for TypeScript")
	assert.Empty(t, fs[4].ModuleName, "unresolved findings keep empty names")

	assert.Equal(t, []domain.GroupStats{
		{Name: "", Total: 1, Counts: domain.SeverityCounts{Normal: 1}},
		{Name: "Core", Total: 3, Counts: domain.SeverityCounts{Error: 1, Normal: 2}},
		{Name: "web-ui", Total: 1, Counts: domain.SeverityCounts{Normal: 1}},
	}, result.Modules)

	assert.Equal(t, []string{
		"Resolved module names for 4 issues",
		"Resolved package names of 2 affected files",
	}, result.InfoMessages)
}

func TestResultAggregator_KeepsParserNames(t *testing.T) {
	ws := memWorkspace(t,
		"/ws/pom.xml", "<project><name>Root</name></project>",
		"/ws/A.java", "package a;",
	)
	fs := findings("A.java")
	fs[0].ModuleName = "from-parser"
	fs[0].PackageName = "from.parser"

	resolved, _, err := application.NewPathResolver(application.PathResolverOptions{}).
		Resolve(context.Background(), ws, []string{"/ws"}, fs)
	require.NoError(t, err)

	agg := application.NewResultAggregator(detector.New(), application.AggregatorOptions{})
	_, err = agg.Aggregate(context.Background(), ws, []string{"/ws"}, resolved, map[string][]byte{"/ws/A.java": []byte("package a;")})
	require.NoError(t, err)

	assert.Equal(t, "from-parser", fs[0].ModuleName)
	assert.Equal(t, "from.parser", fs[0].PackageName)
}

func TestResultAggregator_NameFailuresAreIgnored(t *testing.T) {
	f := findings("/ws/A.java")[0]
	resolved := []domain.ResolvedFinding{{Finding: f, Outcome: domain.Resolved("/ws/A.java")}}

	agg := application.NewResultAggregator(detector.New(), application.AggregatorOptions{})
	result, err := agg.Aggregate(context.Background(), brokenWorkspace{}, []string{"/ws"}, resolved, nil)
	require.NoError(t, err)

	assert.Empty(t, f.ModuleName)
	assert.Equal(t, 1, result.TotalSize)
	assert.Contains(t, result.InfoMessages, "Resolved module names for 0 issues")
}

func TestResultAggregator_Cancelled(t *testing.T) {
	ws := memWorkspace(t, "/ws/A.java", "package a;")
	resolved := []domain.ResolvedFinding{{Finding: findings("/ws/A.java")[0], Outcome: domain.Resolved("/ws/A.java")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agg := application.NewResultAggregator(detector.New(), application.AggregatorOptions{})
	result, err := agg.Aggregate(ctx, ws, []string{"/ws"}, resolved, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}
