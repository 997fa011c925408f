package conformance

import (
	"strconv"
	"time"
)

// NotRunExitCode is what ExitCode.Sentinel renders when no program ran.
const NotRunExitCode int64 = -1

// ExitCode is the exit status of a compiled program, present only if the
// program actually ran.
type ExitCode struct {
	Value int64
	Valid bool
}

// Exited returns a present exit code.
func Exited(code int64) ExitCode {
	return ExitCode{Value: code, Valid: true}
}

// Sentinel returns the exit code, or NotRunExitCode when none is present.
// It exists for display and wire formats; comparisons must use Valid.
func (c ExitCode) Sentinel() int64 {
	if !c.Valid {
		return NotRunExitCode
	}
	return c.Value
}

func (c ExitCode) String() string {
	if !c.Valid {
		return "not run"
	}
	return strconv.FormatInt(c.Value, 10)
}

// RunResult captures what happened when a case was compiled and, if the
// compile succeeded, run.
type RunResult struct {
	CompileSucceeded bool
	ExitCode         ExitCode
	// Stdout and Stderr come from whichever process ran last.
	Stdout   string
	Stderr   string
	Duration time.Duration
	// TimedOut is set when the compiler or the program was killed after
	// exceeding RunLimits.TimeLimit.
	TimedOut bool
}
