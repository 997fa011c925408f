package conformance

import "time"

// FailureReason classifies why a case failed. It is empty for passing cases.
type FailureReason string

const (
	ReasonNone                  FailureReason = ""
	ReasonCompileStatusMismatch FailureReason = "compile_status_mismatch"
	ReasonExitCodeMismatch      FailureReason = "exit_code_mismatch"
	ReasonProcessSpawn          FailureReason = "process_spawn_error"
	ReasonTimeLimit             FailureReason = "time_limit_exceeded"
)

// Verdict is the pass/fail judgement for a single case.
type Verdict struct {
	CaseName string
	Passed   bool
	Reason   FailureReason
	Expected TestCase
	// Result is nil when the case could not be executed at all.
	Result *RunResult
	// Err holds the infrastructure error behind ReasonProcessSpawn.
	Err error
}

// Summary aggregates the verdicts of one run.
type Summary struct {
	Total    int
	Passed   int
	Failed   int
	Duration time.Duration
}

// OK reports whether every case passed.
func (s Summary) OK() bool {
	return s.Failed == 0
}

// Summarize counts verdicts. Every verdict contributes exactly one unit.
func Summarize(verdicts []Verdict) Summary {
	summary := Summary{Total: len(verdicts)}
	for _, v := range verdicts {
		if v.Passed {
			summary.Passed++
		} else {
			summary.Failed++
		}
		if v.Result != nil {
			summary.Duration += v.Result.Duration
		}
	}
	return summary
}
