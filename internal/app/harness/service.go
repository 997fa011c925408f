// Package harness evaluates conformance cases against the compiler under test.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
	"github.com/dolev-goaz/language-compiler/internal/ports"
)

// Options tune a single Execute call.
type Options struct {
	// MaxParallel bounds how many cases are evaluated at once. Values above
	// one are only honoured by toolchains that isolate their artifacts.
	MaxParallel int
	// OnVerdict, when set, is invoked as soon as each case is judged. It is
	// called from worker goroutines when MaxParallel is above one.
	OnVerdict func(conformance.Verdict)
}

// Service coordinates case evaluation through a toolchain.
type Service struct {
	toolchain ports.Toolchain
	runner    *caseRunner
	logger    *zap.Logger
}

// NewService constructs a Service. A nil logger disables logging.
func NewService(toolchain ports.Toolchain, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		toolchain: toolchain,
		runner:    newCaseRunner(toolchain, logger),
		logger:    logger,
	}
}

// Execute pulls cases from source until io.EOF and returns one verdict per
// case, in the order the source produced them.
//
// Per-case failures are folded into verdicts and never abort the batch. An
// error is returned only when the source fails or ctx is cancelled; the
// verdicts completed so far are returned alongside it. Cases still in flight
// at cancellation get no verdict and are not reported to OnVerdict.
func (s *Service) Execute(ctx context.Context, source ports.CaseSource, opts Options) ([]conformance.Verdict, error) {
	parallel := opts.MaxParallel
	if parallel <= 0 {
		parallel = 1
	}
	if parallel > 1 && !s.toolchain.Isolated() {
		s.logger.Warn("toolchain shares one artifact path between cases, running serially",
			zap.Int("requested_parallel", parallel))
		parallel = 1
	}

	var (
		mu       sync.Mutex
		verdicts []conformance.Verdict
		judged   []bool
		group    errgroup.Group
	)
	group.SetLimit(parallel)

	finish := func(err error) ([]conformance.Verdict, error) {
		_ = group.Wait()
		if err == nil && ctx.Err() != nil {
			err = fmt.Errorf("run interrupted: %w", ctx.Err())
		}
		mu.Lock()
		defer mu.Unlock()
		completed := verdicts[:0]
		for i, v := range verdicts {
			if judged[i] {
				completed = append(completed, v)
			}
		}
		return completed, err
	}

	for idx := 0; ; idx++ {
		tc, err := source.NextCase(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return finish(nil)
			}
			if ctx.Err() != nil {
				return finish(fmt.Errorf("run interrupted: %w", ctx.Err()))
			}
			return finish(fmt.Errorf("get next case: %w", err))
		}

		mu.Lock()
		verdicts = append(verdicts, conformance.Verdict{})
		judged = append(judged, false)
		mu.Unlock()

		slot := idx
		group.Go(func() error {
			verdict, ok := s.runner.Run(ctx, tc)
			if !ok {
				return nil
			}

			mu.Lock()
			verdicts[slot] = verdict
			judged[slot] = true
			mu.Unlock()

			if opts.OnVerdict != nil {
				opts.OnVerdict(verdict)
			}
			return nil
		})
	}
}

// Close releases any resources owned by the underlying toolchain.
func (s *Service) Close() error {
	return s.toolchain.Close()
}
