// Package report renders verdicts for humans and machines.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
)

// Format selects a Reporter implementation.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported report format %q (want text or json)", name)
	}
}

// Reporter writes the outcome of a whole run.
type Reporter interface {
	Report(verdicts []conformance.Verdict, summary conformance.Summary) error
}

// New returns the reporter for format writing to w.
func New(format Format, w io.Writer) (Reporter, error) {
	switch format {
	case FormatText, "":
		return NewText(w), nil
	case FormatJSON:
		return NewJSON(w), nil
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

// describe explains a failure in one line.
func describe(v conformance.Verdict) string {
	switch v.Reason {
	case conformance.ReasonCompileStatusMismatch:
		if v.Expected.ShouldCompile {
			return "expected the source to compile, but the compiler rejected it"
		}
		return "expected the compiler to reject the source, but it compiled"
	case conformance.ReasonExitCodeMismatch:
		observed := "not run"
		if v.Result != nil {
			observed = v.Result.ExitCode.String()
		}
		return fmt.Sprintf("expected exit code %d, got %s", v.Expected.ExpectedExitCode, observed)
	case conformance.ReasonTimeLimit:
		return "time limit exceeded"
	case conformance.ReasonProcessSpawn:
		if v.Err != nil {
			return v.Err.Error()
		}
		return "process could not be started"
	default:
		return string(v.Reason)
	}
}
