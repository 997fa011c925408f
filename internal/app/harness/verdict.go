package harness

import "github.com/dolev-goaz/language-compiler/internal/domain/conformance"

// Evaluate judges an observed result against the case's expectation.
//
// The compile status is checked first. When it disagrees with the
// expectation nothing else is compared, because the exit code of a program
// that should not exist (or failed to exist) is meaningless.
func Evaluate(tc conformance.TestCase, result conformance.RunResult) conformance.Verdict {
	verdict := conformance.Verdict{
		CaseName: tc.Name,
		Expected: tc,
		Result:   &result,
	}

	if result.TimedOut {
		verdict.Reason = conformance.ReasonTimeLimit
		return verdict
	}

	if result.CompileSucceeded != tc.ShouldCompile {
		verdict.Reason = conformance.ReasonCompileStatusMismatch
		return verdict
	}

	if !tc.ShouldCompile {
		verdict.Passed = true
		return verdict
	}

	if !result.ExitCode.Valid || result.ExitCode.Value != tc.ExpectedExitCode {
		verdict.Reason = conformance.ReasonExitCodeMismatch
		return verdict
	}

	verdict.Passed = true
	return verdict
}

func spawnVerdict(tc conformance.TestCase, err error) conformance.Verdict {
	return conformance.Verdict{
		CaseName: tc.Name,
		Reason:   conformance.ReasonProcessSpawn,
		Expected: tc,
		Err:      err,
	}
}
