package harness

import (
	"testing"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
)

func compiled(code int64) conformance.RunResult {
	return conformance.RunResult{CompileSucceeded: true, ExitCode: conformance.Exited(code)}
}

func rejected() conformance.RunResult {
	return conformance.RunResult{CompileSucceeded: false, Stderr: "Parser error"}
}

func TestEvaluateScenarios(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		tc         conformance.TestCase
		result     conformance.RunResult
		wantPassed bool
		wantReason conformance.FailureReason
	}{
		{
			name:       "compiles and exits as expected",
			tc:         conformance.TestCase{Name: "ok", File: "ok.src", ShouldCompile: true, ExpectedExitCode: 0},
			result:     compiled(0),
			wantPassed: true,
		},
		{
			name:       "expected compile failure",
			tc:         conformance.TestCase{Name: "bad_syntax", ShouldCompile: false},
			result:     rejected(),
			wantPassed: true,
		},
		{
			name:       "wrong exit code",
			tc:         conformance.TestCase{Name: "wrong_code", ShouldCompile: true, ExpectedExitCode: 2},
			result:     compiled(3),
			wantReason: conformance.ReasonExitCodeMismatch,
		},
		{
			name:       "compiles although it should not",
			tc:         conformance.TestCase{Name: "should_fail_but_compiles", ShouldCompile: false},
			result:     compiled(0),
			wantReason: conformance.ReasonCompileStatusMismatch,
		},
		{
			name:       "fails to compile although it should",
			tc:         conformance.TestCase{Name: "should_compile", ShouldCompile: true, ExpectedExitCode: 0},
			result:     rejected(),
			wantReason: conformance.ReasonCompileStatusMismatch,
		},
		{
			name:       "time limit wins over everything",
			tc:         conformance.TestCase{Name: "hangs", ShouldCompile: true},
			result:     conformance.RunResult{CompileSucceeded: true, TimedOut: true},
			wantReason: conformance.ReasonTimeLimit,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := Evaluate(tc.tc, tc.result)
			if got.Passed != tc.wantPassed {
				t.Fatalf("expected passed=%v, got %v (reason %q)", tc.wantPassed, got.Passed, got.Reason)
			}
			if got.Reason != tc.wantReason {
				t.Fatalf("expected reason %q, got %q", tc.wantReason, got.Reason)
			}
			if got.CaseName != tc.tc.Name {
				t.Fatalf("expected case name %q, got %q", tc.tc.Name, got.CaseName)
			}
			if got.Result == nil {
				t.Fatalf("expected result to be attached")
			}
		})
	}
}

func TestEvaluateNonCompilingCaseIgnoresExitCodes(t *testing.T) {
	t.Parallel()

	for _, expected := range []int64{-1, 0, 1, 255} {
		tc := conformance.TestCase{Name: "never", ShouldCompile: false, ExpectedExitCode: expected}

		for _, observed := range []conformance.ExitCode{{}, conformance.Exited(0), conformance.Exited(expected + 1)} {
			result := conformance.RunResult{CompileSucceeded: false, ExitCode: observed}
			if v := Evaluate(tc, result); !v.Passed {
				t.Fatalf("expected pass for rejected source (expected=%d observed=%v), got %q", expected, observed, v.Reason)
			}

			result.CompileSucceeded = true
			if v := Evaluate(tc, result); v.Passed || v.Reason != conformance.ReasonCompileStatusMismatch {
				t.Fatalf("expected compile status mismatch (expected=%d observed=%v), got passed=%v reason=%q", expected, observed, v.Passed, v.Reason)
			}
		}
	}
}

func TestEvaluateExitCodeMustMatchExactly(t *testing.T) {
	t.Parallel()

	tc := conformance.TestCase{Name: "exact", ShouldCompile: true, ExpectedExitCode: 1}
	for _, observed := range []int64{-1, 0, 2, 255, 257} {
		if v := Evaluate(tc, compiled(observed)); v.Passed || v.Reason != conformance.ReasonExitCodeMismatch {
			t.Fatalf("exit code %d must not match 1, got passed=%v reason=%q", observed, v.Passed, v.Reason)
		}
	}
	if v := Evaluate(tc, compiled(1)); !v.Passed {
		t.Fatalf("exit code 1 must match, got %q", v.Reason)
	}
}

func TestEvaluateNotRunSentinelNeverMatches(t *testing.T) {
	t.Parallel()

	tc := conformance.TestCase{Name: "expects_minus_one", ShouldCompile: true, ExpectedExitCode: conformance.NotRunExitCode}

	if v := Evaluate(tc, rejected()); v.Passed || v.Reason != conformance.ReasonCompileStatusMismatch {
		t.Fatalf("a rejected source must not pass via the sentinel, got passed=%v reason=%q", v.Passed, v.Reason)
	}

	missing := conformance.RunResult{CompileSucceeded: true}
	if v := Evaluate(tc, missing); v.Passed || v.Reason != conformance.ReasonExitCodeMismatch {
		t.Fatalf("an absent exit code must not equal -1, got passed=%v reason=%q", v.Passed, v.Reason)
	}

	if v := Evaluate(tc, compiled(-1)); !v.Passed {
		t.Fatalf("a program that really reported -1 must match, got %q", v.Reason)
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	t.Parallel()

	tc := conformance.TestCase{Name: "wrong_code", ShouldCompile: true, ExpectedExitCode: 2}
	result := compiled(3)

	first := Evaluate(tc, result)
	second := Evaluate(tc, result)
	if first.Passed != second.Passed || first.Reason != second.Reason || *first.Result != *second.Result {
		t.Fatalf("expected identical verdicts, got %+v and %+v", first, second)
	}
}
