package collect

import (
	"context"
	"fmt"
	"strings"
)

// Kind identifies the flavor of a collection step. It selects the size
// threshold applied to the produced artifact and the activity-log marker
// family used for its outcome line.
type Kind string

const (
	KindFileQuery        Kind = "file_query"
	KindChannelExport    Kind = "channel_export"
	KindRegistryExport   Kind = "registry_export"
	KindReportExtraction Kind = "report_extraction"
	KindArchive          Kind = "archive"
)

// Status is the terminal state of a step.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Reason is the structured cause attached to a non-success outcome.
type Reason string

const (
	ReasonExportFailed   Reason = "export failed"
	ReasonEmptyOrMissing Reason = "empty or missing file"
	ReasonException      Reason = "exception"
	ReasonNoChannel      Reason = "no channel succeeded"
	ReasonSourceNotFound Reason = "source not found"
	ReasonParseFailure   Reason = "parse failure"
	ReasonNoMatches      Reason = "no matching nodes"
)

// RunContext carries the identity of the run a step executes inside.
type RunContext struct {
	RunID     string
	Family    string
	OutputDir string
}

// Result is what a step's action hands back on normal return. The runner
// validates OutputPath and finalizes the outcome; actions never decide
// success themselves.
type Result struct {
	OutputPath string
	Channel    string
	ExitCode   int
	Count      int
	Attempted  []string
}

// Step is one independent collection operation producing zero or one
// artifact file.
type Step interface {
	Name() string
	Kind() Kind
	MinArtifactBytes() int64
	Run(ctx context.Context, rc RunContext) (Result, error)
}

// Outcome is the finalized record of one step. It is created when the step
// concludes and never mutated afterward.
type Outcome struct {
	Name       string   `json:"name"`
	Kind       Kind     `json:"kind"`
	Status     Status   `json:"status"`
	Reason     Reason   `json:"reason,omitempty"`
	Channel    string   `json:"channel,omitempty"`
	OutputPath string   `json:"output_path,omitempty"`
	SizeBytes  int64    `json:"size_bytes,omitempty"`
	SHA256     string   `json:"sha256,omitempty"`
	ExitCode   int      `json:"exit_code"`
	Exists     bool     `json:"exists"`
	SizeOK     bool     `json:"size_ok"`
	Count      int      `json:"count,omitempty"`
	Error      string   `json:"error,omitempty"`
	Attempted  []string `json:"attempted,omitempty"`
	FinishedAt string   `json:"finished_at"`
}

// ReasonError is returned by step actions that have already classified their
// failure. The runner copies the reason into the outcome instead of treating
// the error as an unexpected exception.
type ReasonError struct {
	Reason    Reason
	Attempted []string
	Err       error
}

func (e *ReasonError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	if len(e.Attempted) > 0 {
		return fmt.Sprintf("%s (attempted: %s)", e.Reason, strings.Join(e.Attempted, ", "))
	}
	return string(e.Reason)
}

func (e *ReasonError) Unwrap() error { return e.Err }
