package domain

// OutcomeKind classifies what happened to a single finding during resolution
// or affected-file capture.
type OutcomeKind string

const (
	OutcomeResolved       OutcomeKind = "resolved"
	OutcomeNotInWorkspace OutcomeKind = "not-in-workspace"
	OutcomeNotFound       OutcomeKind = "not-found"
	OutcomeIOError        OutcomeKind = "io-error"

	// OutcomeCopied is only used by copy outcomes.
	OutcomeCopied OutcomeKind = "copied"
)

// ResolutionOutcome is the result of resolving one finding's file reference.
// Path is only set for OutcomeResolved and Err only for OutcomeIOError.
// AlreadyResolved marks findings whose parser already emitted a valid
// absolute path.
type ResolutionOutcome struct {
	Kind            OutcomeKind `json:"kind"`
	Path            string      `json:"path,omitempty"`
	AlreadyResolved bool        `json:"already_resolved,omitempty"`
	Err             error       `json:"-"`
}

func Resolved(path string) ResolutionOutcome {
	return ResolutionOutcome{Kind: OutcomeResolved, Path: path}
}

func NotInWorkspace() ResolutionOutcome { return ResolutionOutcome{Kind: OutcomeNotInWorkspace} }

func NotFound() ResolutionOutcome { return ResolutionOutcome{Kind: OutcomeNotFound} }

func IOFailure(err error) ResolutionOutcome {
	return ResolutionOutcome{Kind: OutcomeIOError, Err: err}
}

// IsResolved reports whether the outcome points at an existing file.
func (o ResolutionOutcome) IsResolved() bool { return o.Kind == OutcomeResolved }

// ResolvedFinding pairs a finding with its outcome. Index is the position of
// the finding in parser emission order.
type ResolvedFinding struct {
	Index   int
	Finding *Finding
	Outcome ResolutionOutcome
}

// ResolutionSummary counts resolver outcomes for the info message.
type ResolutionSummary struct {
	Resolved        int `json:"resolved"`
	Unresolved      int `json:"unresolved"`
	AlreadyResolved int `json:"already_resolved"`
}

// CopyOutcome is the result of capturing one finding's affected file.
type CopyOutcome struct {
	Kind OutcomeKind `json:"kind"`
	Key  string      `json:"key,omitempty"`
	Size int         `json:"size,omitempty"`
	Err  error       `json:"-"`
}

// CopySummary counts copy outcomes for the info message.
type CopySummary struct {
	Copied         int `json:"copied"`
	NotInWorkspace int `json:"not_in_workspace"`
	NotFound       int `json:"not_found"`
	IOError        int `json:"io_error"`
}

// Add records a single outcome.
func (s *CopySummary) Add(kind OutcomeKind) {
	switch kind {
	case OutcomeCopied:
		s.Copied++
	case OutcomeNotInWorkspace:
		s.NotInWorkspace++
	case OutcomeNotFound:
		s.NotFound++
	case OutcomeIOError:
		s.IOError++
	}
}
