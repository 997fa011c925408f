package conformance

import (
	"fmt"
	"strings"
)

// LoadError reports a case list that could not be turned into test cases.
// It is fatal for the whole run.
type LoadError struct {
	Path string
	// Index is the zero-based record index, or -1 when the failure is not
	// tied to a single record.
	Index int
	Field string
	Err   error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	b.WriteString("load cases")
	if e.Path != "" {
		fmt.Fprintf(&b, " from %s", e.Path)
	}
	if e.Index >= 0 {
		fmt.Fprintf(&b, ": record %d", e.Index)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %q", e.Field)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Stage names the process a SpawnError refers to.
type Stage string

const (
	StageCompile Stage = "compile"
	StageRun     Stage = "run"
)

// SpawnError reports that the compiler or the compiled artifact could not
// be launched at all. It points at a broken environment rather than a
// compiler defect.
type SpawnError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("%s: start %s: %v", e.Stage, e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
