package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
)

// Text prints one PASS/FAIL line per case followed by a summary line.
// Captured streams are printed for every failing case.
type Text struct {
	w    io.Writer
	pass *color.Color
	fail *color.Color
	dim  *color.Color
}

// NewText returns a text reporter. Colour follows color.NoColor, which is
// off when stdout is not a terminal.
func NewText(w io.Writer) *Text {
	return &Text{
		w:    w,
		pass: color.New(color.FgGreen, color.Bold),
		fail: color.New(color.FgRed, color.Bold),
		dim:  color.New(color.Faint),
	}
}

func (t *Text) Report(verdicts []conformance.Verdict, summary conformance.Summary) error {
	for _, v := range verdicts {
		if err := t.Case(v); err != nil {
			return err
		}
	}
	return t.Summary(summary)
}

// Case writes the block for a single verdict.
func (t *Text) Case(v conformance.Verdict) error {
	if v.Passed {
		_, err := fmt.Fprintf(t.w, "%s %s\n", t.pass.Sprint("PASS:"), v.CaseName)
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s - %s\n", t.fail.Sprint("FAIL:"), v.CaseName, v.Reason)
	fmt.Fprintf(&b, "    %s\n", describe(v))
	if v.Result != nil {
		writeStream(&b, t.dim.Sprint("stdout"), v.Result.Stdout)
		writeStream(&b, t.dim.Sprint("stderr"), v.Result.Stderr)
	}
	if v.Err != nil && v.Reason != conformance.ReasonProcessSpawn {
		fmt.Fprintf(&b, "    error: %v\n", v.Err)
	}
	_, err := io.WriteString(t.w, b.String())
	return err
}

// Summary writes the closing "passed N/M" line.
func (t *Text) Summary(s conformance.Summary) error {
	status := t.pass.Sprint("OK")
	if !s.OK() {
		status = t.fail.Sprintf("FAILED (%d)", s.Failed)
	}
	_, err := fmt.Fprintf(t.w, "\npassed %d/%d %s in %s\n", s.Passed, s.Total, status, s.Duration.Round(time.Millisecond))
	return err
}

func writeStream(b *strings.Builder, label, content string) {
	if content == "" {
		return
	}
	fmt.Fprintf(b, "    %s:\n", label)
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		fmt.Fprintf(b, "        %s\n", line)
	}
}
