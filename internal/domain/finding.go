package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Severity classifies a finding. The zero value is not a valid severity.
type Severity string

const (
	SeverityError  Severity = "ERROR"
	SeverityHigh   Severity = "HIGH"
	SeverityNormal Severity = "NORMAL"
	SeverityLow    Severity = "LOW"
)

// Severities lists all severities from most to least severe.
var Severities = []Severity{SeverityError, SeverityHigh, SeverityNormal, SeverityLow}

// ParseSeverity maps the vocabulary used by compilers and linters onto the
// four severities. Unknown values map to NORMAL.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "fatal", "failure", "severe":
		return SeverityError
	case "high", "critical", "major":
		return SeverityHigh
	case "low", "info", "note", "minor", "style":
		return SeverityLow
	default:
		return SeverityNormal
	}
}

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityError, SeverityHigh, SeverityNormal, SeverityLow:
		return true
	}
	return false
}

// Finding is a single normalized static-analysis result.
//
// A parser creates the finding. The path resolver may rewrite FilePath to
// the absolute path it found and the result aggregator fills ModuleName and
// PackageName. After aggregation the finding is never mutated again.
type Finding struct {
	FilePath    string   `json:"file_path"`
	ModuleName  string   `json:"module_name,omitempty"`
	PackageName string   `json:"package_name,omitempty"`
	Severity    Severity `json:"severity"`
	Line        int      `json:"line,omitempty"`
	Column      int      `json:"column,omitempty"`
	Message     string   `json:"message"`
	Category    string   `json:"category,omitempty"`
	Type        string   `json:"type,omitempty"`
	Origin      string   `json:"origin,omitempty"` // id of the tool configuration
	Fingerprint string   `json:"fingerprint"`
}

// ComputeFingerprint derives the stable identity of a finding from the path
// as emitted by the parser, the line, the message and the originating tool.
// It must be computed before resolution rewrites FilePath.
func ComputeFingerprint(origin, filePath string, line int, message string) string {
	h := sha256.New()
	for _, part := range []string{origin, normalizeSeparators(filePath), strconv.Itoa(line), message} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// EnsureFingerprint sets Fingerprint if the parser left it empty.
func (f *Finding) EnsureFingerprint() {
	if f.Fingerprint == "" {
		f.Fingerprint = ComputeFingerprint(f.Origin, f.FilePath, f.Line, f.Message)
	}
}

// Location renders the finding position as path:line[:column].
func (f *Finding) Location() string {
	switch {
	case f.Line > 0 && f.Column > 0:
		return fmt.Sprintf("%s:%d:%d", f.FilePath, f.Line, f.Column)
	case f.Line > 0:
		return fmt.Sprintf("%s:%d", f.FilePath, f.Line)
	default:
		return f.FilePath
	}
}

// normalizeSeparators turns Windows separators into forward slashes so that
// the same report produces the same fingerprints on every platform.
func normalizeSeparators(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
