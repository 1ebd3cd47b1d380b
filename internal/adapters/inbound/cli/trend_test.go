package cli_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkraft/issuegate/internal/domain"
)

func TestTrendCommand(t *testing.T) {
	dir := t.TempDir()
	_, err := recordFixture(t, dir, "1")
	require.NoError(t, err)
	_, err = recordFixture(t, dir, "2")
	require.NoError(t, err)

	out, err := run(t, "trend", "--data-dir", dir, "--job", "example")
	require.NoError(t, err)
	assert.Contains(t, out, "Trend of example")
	assert.Contains(t, out, "#2")
	assert.Contains(t, out, "#1")

	out, err = run(t, "trend", "--data-dir", dir, "--job", "example", "--limit", "1", "--json")
	require.NoError(t, err)
	var trend []domain.ActionSummary
	require.NoError(t, json.Unmarshal([]byte(out), &trend))
	require.Len(t, trend, 1)
	assert.Equal(t, 2, trend[0].Build.Number)
	assert.Zero(t, trend[0].NewSize, "build 2 has the same issues as build 1")
}

func TestLastCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, "last", "--data-dir", dir, "--job", "example")
	require.NoError(t, err)
	assert.Equal(t, "no results for job example\n", out)

	_, err = recordFixture(t, dir, "3")
	require.NoError(t, err)

	out, err = run(t, "last", "--data-dir", dir, "--job", "example", "--json")
	require.NoError(t, err)
	var action domain.ResultAction
	require.NoError(t, json.Unmarshal([]byte(out), &action))
	assert.Equal(t, 3, action.Build.Number)

	out, err = run(t, "last", "--data-dir", dir, "--job", "example", "--with-issues")
	require.NoError(t, err)
	assert.Contains(t, out, "Build #3")
}

func TestSourceCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := recordFixture(t, dir, "1", "--json")
	require.NoError(t, err)
	var result domain.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	fp := result.Issues[0].Fingerprint

	out, err = run(t, "source", "--data-dir", dir, "--job", "example", "--build", "1", "--fingerprint", fp, "--raw")
	require.NoError(t, err)
	assert.Contains(t, out, "package com.example.app;")

	out, err = run(t, "source", "--data-dir", dir, "--job", "example", "--build", "1", "--fingerprint", fp)
	require.NoError(t, err)
	assert.Contains(t, out, "Main.java:3")
	assert.Contains(t, out, "▶")

	_, err = run(t, "source", "--data-dir", dir, "--job", "example", "--build", "1", "--fingerprint", "nope")
	assert.ErrorIs(t, err, domain.ErrContentNotFound)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "issuegate dev")
}
