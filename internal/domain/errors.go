package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrContentNotFound is returned by a ContentStore when no copy exists
	// for the key.
	ErrContentNotFound = errors.New("affected file content not found")
	// ErrUnknownParser is returned when a tool references an unregistered parser.
	ErrUnknownParser = errors.New("unknown parser")
)

// Pipeline stages reported in PipelineError.
const (
	StageWorkspace = "workspace"
	StageCopy      = "copy"
	StageAttach    = "attach"
)

// PipelineError is an infrastructure-wide failure of one build's analysis.
// Nothing is attached to the trend when it occurs.
type PipelineError struct {
	Build BuildRef
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("analysis of %s failed at %s: %v", e.Build, e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NoFilesMessage is the configuration error reported when an inclusion
// pattern matches no report file.
func NoFilesMessage(pattern string) string {
	return fmt.Sprintf("No files found for pattern '%s'. Configuration error?", pattern)
}
