package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
)

func init() {
	color.NoColor = true
}

func sampleVerdicts() []conformance.Verdict {
	return []conformance.Verdict{
		{
			CaseName: "ok",
			Passed:   true,
			Expected: conformance.TestCase{Name: "ok", File: "ok.src", ShouldCompile: true},
			Result:   &conformance.RunResult{CompileSucceeded: true, ExitCode: conformance.Exited(0), Duration: 12 * time.Millisecond},
		},
		{
			CaseName: "wrong_code",
			Reason:   conformance.ReasonExitCodeMismatch,
			Expected: conformance.TestCase{Name: "wrong_code", File: "wrong.src", ShouldCompile: true, ExpectedExitCode: 2},
			Result:   &conformance.RunResult{CompileSucceeded: true, ExitCode: conformance.Exited(3), Stdout: "hello\nworld\n"},
		},
		{
			CaseName: "should_compile",
			Reason:   conformance.ReasonCompileStatusMismatch,
			Expected: conformance.TestCase{Name: "should_compile", File: "fine.src", ShouldCompile: true},
			Result:   &conformance.RunResult{Stderr: "Parser error: unexpected token"},
		},
		{
			CaseName: "no_compiler",
			Reason:   conformance.ReasonProcessSpawn,
			Expected: conformance.TestCase{Name: "no_compiler", File: "x.src"},
			Err:      &conformance.SpawnError{Stage: conformance.StageCompile, Path: "/bin/missing", Err: errors.New("no such file or directory")},
		},
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]Format{"": FormatText, "text": FormatText, " JSON ": FormatJSON} {
		got, err := ParseFormat(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseFormat("xml")
	require.Error(t, err)
}

func TestTextReport(t *testing.T) {
	t.Parallel()

	verdicts := sampleVerdicts()
	var buf bytes.Buffer
	require.NoError(t, NewText(&buf).Report(verdicts, conformance.Summarize(verdicts)))
	out := buf.String()

	assert.Contains(t, out, "PASS: ok\n")
	assert.Contains(t, out, "FAIL: wrong_code - exit_code_mismatch\n")
	assert.Contains(t, out, "expected exit code 2, got 3")
	assert.Contains(t, out, "        hello\n        world\n")
	assert.Contains(t, out, "FAIL: should_compile - compile_status_mismatch\n")
	assert.Contains(t, out, "Parser error: unexpected token")
	assert.Contains(t, out, "FAIL: no_compiler - process_spawn_error\n")
	assert.Contains(t, out, "compile: start /bin/missing: no such file or directory")
	assert.Contains(t, out, "passed 1/4 FAILED (3)")

	// Lines appear in input order.
	order := []string{"PASS: ok", "FAIL: wrong_code", "FAIL: should_compile", "FAIL: no_compiler", "passed 1/4"}
	last := -1
	for _, marker := range order {
		idx := strings.Index(out, marker)
		require.Greater(t, idx, last, marker)
		last = idx
	}
}

func TestTextReportAllPassed(t *testing.T) {
	t.Parallel()

	verdicts := sampleVerdicts()[:1]
	var buf bytes.Buffer
	require.NoError(t, NewText(&buf).Report(verdicts, conformance.Summarize(verdicts)))

	assert.Contains(t, buf.String(), "passed 1/1 OK")
	assert.NotContains(t, buf.String(), "FAIL")
}

func TestJSONReport(t *testing.T) {
	t.Parallel()

	verdicts := sampleVerdicts()
	var buf bytes.Buffer
	reporter, err := New(FormatJSON, &buf)
	require.NoError(t, err)
	require.NoError(t, reporter.Report(verdicts, conformance.Summarize(verdicts)))

	var doc jsonDocument
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, jsonSummary{Total: 4, Passed: 1, Failed: 3, OK: false, DurationMS: 12}, doc.Summary)
	require.Len(t, doc.Cases, 4)

	assert.Equal(t, "ok", doc.Cases[0].Name)
	assert.True(t, doc.Cases[0].Passed)
	assert.Empty(t, doc.Cases[0].Detail)

	assert.Equal(t, int64(3), doc.Cases[1].ExitCode)
	assert.Equal(t, int64(2), doc.Cases[1].ExpectedReturnCode)
	assert.Equal(t, "exit_code_mismatch", doc.Cases[1].Reason)

	assert.False(t, doc.Cases[2].Compiled)
	assert.Equal(t, conformance.NotRunExitCode, doc.Cases[2].ExitCode)

	assert.Equal(t, conformance.NotRunExitCode, doc.Cases[3].ExitCode)
	assert.Contains(t, doc.Cases[3].Error, "/bin/missing")
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := New(Format("yaml"), &bytes.Buffer{})
	require.Error(t, err)
}
