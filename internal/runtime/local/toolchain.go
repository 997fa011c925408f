// Package local runs the compiler under test and its artifacts directly on
// the host with os/exec.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
	"github.com/dolev-goaz/language-compiler/internal/ports"
)

// Toolchain implements ports.Toolchain with host processes.
type Toolchain struct {
	compiler   string
	subcommand string
	workdir    string
	artifact   string
	limits     conformance.RunLimits
	logger     *zap.Logger
}

var _ ports.Toolchain = (*Toolchain)(nil)

// New validates cfg and builds a Toolchain. It does not check that the
// compiler exists; a missing compiler surfaces per case as a spawn error.
func New(cfg Config) (*Toolchain, error) {
	if cfg.CompilerPath == "" {
		return nil, fmt.Errorf("local runtime: compiler path must be provided")
	}

	compiler := cfg.CompilerPath
	if strings.ContainsRune(compiler, filepath.Separator) || strings.ContainsRune(compiler, '/') {
		abs, err := filepath.Abs(compiler)
		if err != nil {
			return nil, fmt.Errorf("local runtime: resolve compiler path: %w", err)
		}
		compiler = abs
	}

	workdir := cfg.Workdir
	if workdir != "" {
		abs, err := filepath.Abs(workdir)
		if err != nil {
			return nil, fmt.Errorf("local runtime: resolve workdir: %w", err)
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, fmt.Errorf("local runtime: create workdir: %w", err)
		}
		workdir = abs
	}

	if cfg.Subcommand == "" {
		cfg.Subcommand = defaultSubcommand
	}
	if cfg.ArtifactName == "" {
		cfg.ArtifactName = defaultArtifactName
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Toolchain{
		compiler:   compiler,
		subcommand: cfg.Subcommand,
		workdir:    workdir,
		artifact:   cfg.ArtifactName,
		limits:     cfg.Limits.Normalize(),
		logger:     cfg.Logger,
	}, nil
}

// Isolated reports whether each case compiles into its own directory.
func (t *Toolchain) Isolated() bool {
	return t.workdir == ""
}

// Compile invokes "<compiler> <subcommand> <source>" in the case's working directory.
func (t *Toolchain) Compile(ctx context.Context, tc conformance.TestCase) (ports.Program, *conformance.RunResult, error) {
	dir, cleanup, err := t.workspace()
	if err != nil {
		return nil, nil, err
	}

	log := t.logger.With(zap.String("case", tc.Name), zap.String("dir", dir))
	log.Debug("invoking compiler", zap.String("compiler", t.compiler), zap.String("source", tc.SourcePath))

	out, err := execute(ctx, t.limits, conformance.StageCompile, dir, t.compiler, t.subcommand, tc.SourcePath)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	if out.timedOut || out.exitCode != 0 {
		cleanup()
		log.Debug("compiler rejected source", zap.Int64("status", out.exitCode), zap.Bool("timed_out", out.timedOut))
		return nil, &conformance.RunResult{
			CompileSucceeded: false,
			Stdout:           out.stdout,
			Stderr:           out.stderr,
			Duration:         out.duration,
			TimedOut:         out.timedOut,
		}, nil
	}

	return &program{
		path:    filepath.Join(dir, t.artifact),
		dir:     dir,
		limits:  t.limits,
		cleanup: cleanup,
		logger:  log,
	}, nil, nil
}

// Close is a no-op; per-case directories are released by Program.Close.
func (t *Toolchain) Close() error {
	return nil
}

// workspace returns the directory a case compiles in. A fixed workdir is
// shared, so a stale artifact from the previous case is removed first.
func (t *Toolchain) workspace() (string, func(), error) {
	if t.workdir != "" {
		stale := filepath.Join(t.workdir, t.artifact)
		if err := os.Remove(stale); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("remove stale artifact %s: %w", stale, err)
		}
		return t.workdir, func() {}, nil
	}

	dir, err := os.MkdirTemp("", "compcheck-")
	if err != nil {
		return "", nil, fmt.Errorf("create case directory: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

type program struct {
	path    string
	dir     string
	limits  conformance.RunLimits
	cleanup func()
	logger  *zap.Logger
}

// Run executes the compiled artifact with no arguments.
func (p *program) Run(ctx context.Context) (*conformance.RunResult, error) {
	p.logger.Debug("running artifact", zap.String("artifact", p.path))

	out, err := execute(ctx, p.limits, conformance.StageRun, p.dir, p.path)
	if err != nil {
		return nil, err
	}

	result := &conformance.RunResult{
		CompileSucceeded: true,
		Stdout:           out.stdout,
		Stderr:           out.stderr,
		Duration:         out.duration,
		TimedOut:         out.timedOut,
	}
	if !out.timedOut {
		result.ExitCode = conformance.Exited(out.exitCode)
	}
	return result, nil
}

func (p *program) Close() error {
	p.cleanup()
	return nil
}
