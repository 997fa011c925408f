package harness

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
	"github.com/dolev-goaz/language-compiler/internal/ports"
)

type caseRunner struct {
	toolchain ports.Toolchain
	logger    *zap.Logger
}

func newCaseRunner(toolchain ports.Toolchain, logger *zap.Logger) *caseRunner {
	return &caseRunner{toolchain: toolchain, logger: logger}
}

// Run compiles and runs one case and turns the outcome into a verdict.
// Errors never escape: a case that cannot be executed becomes a
// process_spawn_error verdict. When ctx is cancelled before the case
// finishes, no verdict is produced and ok is false.
func (r *caseRunner) Run(ctx context.Context, tc conformance.TestCase) (verdict conformance.Verdict, ok bool) {
	result, err := r.compileAndRun(ctx, tc)
	if ctx.Err() != nil {
		r.logger.Debug("case interrupted", zap.String("case", tc.Name), zap.Error(ctx.Err()))
		return conformance.Verdict{}, false
	}
	if err != nil {
		r.logger.Warn("case could not be executed", zap.String("case", tc.Name), zap.Error(err))
		return spawnVerdict(tc, err), true
	}

	verdict = Evaluate(tc, *result)
	r.logger.Debug("case evaluated",
		zap.String("case", tc.Name),
		zap.Bool("passed", verdict.Passed),
		zap.String("reason", string(verdict.Reason)),
		zap.Stringer("exit_code", result.ExitCode),
	)
	return verdict, true
}

// compileAndRun invokes the compiler and, only if it succeeds, the artifact.
func (r *caseRunner) compileAndRun(ctx context.Context, tc conformance.TestCase) (*conformance.RunResult, error) {
	program, buildResult, err := r.toolchain.Compile(ctx, tc)
	if err != nil {
		return nil, err
	}
	if program != nil {
		defer program.Close()
	}

	if buildResult != nil {
		return buildResult, nil
	}

	if program == nil {
		return nil, fmt.Errorf("toolchain returned neither a program nor a build result")
	}

	result, err := program.Run(ctx)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("program returned no result")
	}
	return result, nil
}
