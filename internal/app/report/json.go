package report

import (
	"encoding/json"
	"io"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
)

// JSON writes a single machine-readable document per run.
type JSON struct {
	w io.Writer
}

func NewJSON(w io.Writer) *JSON {
	return &JSON{w: w}
}

type jsonDocument struct {
	Summary jsonSummary `json:"summary"`
	Cases   []jsonCase  `json:"cases"`
}

type jsonSummary struct {
	Total      int   `json:"total"`
	Passed     int   `json:"passed"`
	Failed     int   `json:"failed"`
	OK         bool  `json:"ok"`
	DurationMS int64 `json:"duration_ms"`
}

type jsonCase struct {
	Name               string `json:"name"`
	File               string `json:"file"`
	Passed             bool   `json:"passed"`
	Reason             string `json:"reason,omitempty"`
	Detail             string `json:"detail,omitempty"`
	ShouldCompile      bool   `json:"should_compile"`
	ExpectedReturnCode int64  `json:"expected_return_code"`
	Compiled           bool   `json:"compiled"`
	ExitCode           int64  `json:"exit_code"`
	TimedOut           bool   `json:"timed_out,omitempty"`
	Stdout             string `json:"stdout,omitempty"`
	Stderr             string `json:"stderr,omitempty"`
	Error              string `json:"error,omitempty"`
	DurationMS         int64  `json:"duration_ms"`
}

func (j *JSON) Report(verdicts []conformance.Verdict, summary conformance.Summary) error {
	doc := jsonDocument{
		Summary: jsonSummary{
			Total:      summary.Total,
			Passed:     summary.Passed,
			Failed:     summary.Failed,
			OK:         summary.OK(),
			DurationMS: summary.Duration.Milliseconds(),
		},
		Cases: make([]jsonCase, 0, len(verdicts)),
	}

	for _, v := range verdicts {
		doc.Cases = append(doc.Cases, newJSONCase(v))
	}

	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func newJSONCase(v conformance.Verdict) jsonCase {
	out := jsonCase{
		Name:               v.CaseName,
		File:               v.Expected.File,
		Passed:             v.Passed,
		Reason:             string(v.Reason),
		ShouldCompile:      v.Expected.ShouldCompile,
		ExpectedReturnCode: v.Expected.ExpectedExitCode,
		ExitCode:           conformance.NotRunExitCode,
	}
	if !v.Passed {
		out.Detail = describe(v)
	}
	if v.Result != nil {
		out.Compiled = v.Result.CompileSucceeded
		out.ExitCode = v.Result.ExitCode.Sentinel()
		out.TimedOut = v.Result.TimedOut
		out.Stdout = v.Result.Stdout
		out.Stderr = v.Result.Stderr
		out.DurationMS = v.Result.Duration.Milliseconds()
	}
	if v.Err != nil {
		out.Error = v.Err.Error()
	}
	return out
}
