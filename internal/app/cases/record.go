package cases

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
)

// Record is the wire shape of one entry in the case list.
type Record struct {
	Name               *string `json:"name"`
	File               *string `json:"file"`
	ShouldCompile      *bool   `json:"should_compile"`
	ExpectedReturnCode *int64  `json:"expected_return_code,omitempty"`
}

// NewRecord converts a TestCase back into its wire shape.
func NewRecord(tc conformance.TestCase) Record {
	rec := Record{
		Name:          &tc.Name,
		File:          &tc.File,
		ShouldCompile: &tc.ShouldCompile,
	}
	if tc.ShouldCompile {
		rec.ExpectedReturnCode = &tc.ExpectedExitCode
	}
	return rec
}

// fieldError ties a validation failure to a record field.
type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("field %q: %v", e.field, e.err)
}

func (e *fieldError) Unwrap() error {
	return e.err
}

var errMissing = errors.New("required field is missing")

// RecordError turns an error returned by ParseRecord into a LoadError for the
// record at index, naming the offending field when there is one.
func RecordError(index int, err error) *conformance.LoadError {
	loadErr := &conformance.LoadError{Index: index, Err: err}
	var fe *fieldError
	if errors.As(err, &fe) {
		loadErr.Field = fe.field
		loadErr.Err = fe.err
	}
	return loadErr
}

// ParseRecord decodes a single record and resolves its file against programsDir.
func ParseRecord(raw []byte, programsDir string) (conformance.TestCase, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return conformance.TestCase{}, fmt.Errorf("decode record: %w", err)
	}
	return rec.toCase(programsDir)
}

func (r Record) toCase(programsDir string) (conformance.TestCase, error) {
	if r.Name == nil {
		return conformance.TestCase{}, &fieldError{field: "name", err: errMissing}
	}
	if *r.Name == "" {
		return conformance.TestCase{}, &fieldError{field: "name", err: errors.New("must not be empty")}
	}
	if r.File == nil {
		return conformance.TestCase{}, &fieldError{field: "file", err: errMissing}
	}
	if *r.File == "" {
		return conformance.TestCase{}, &fieldError{field: "file", err: errors.New("must not be empty")}
	}
	if r.ShouldCompile == nil {
		return conformance.TestCase{}, &fieldError{field: "should_compile", err: errMissing}
	}

	tc := conformance.TestCase{
		Name:          *r.Name,
		File:          *r.File,
		ShouldCompile: *r.ShouldCompile,
	}
	if tc.ShouldCompile {
		if r.ExpectedReturnCode == nil {
			return conformance.TestCase{}, &fieldError{field: "expected_return_code", err: errMissing}
		}
		tc.ExpectedExitCode = *r.ExpectedReturnCode
	}

	sourcePath, err := filepath.Abs(filepath.Join(programsDir, tc.File))
	if err != nil {
		return conformance.TestCase{}, &fieldError{field: "file", err: err}
	}
	tc.SourcePath = sourcePath

	return tc, nil
}
