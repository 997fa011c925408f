// Package docker runs the compiler under test and its artifacts inside
// throwaway Docker containers, giving every case its own filesystem.
package docker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/docker/docker/client"
	"go.uber.org/zap"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
	"github.com/dolev-goaz/language-compiler/internal/ports"
)

// Toolchain implements ports.Toolchain backed by Docker containers.
type Toolchain struct {
	client dockerClient
	engine *containerEngine
	config Config
	logger *zap.Logger

	pullOnce sync.Once
	pullErr  error
}

var _ ports.Toolchain = (*Toolchain)(nil)

// New constructs a Toolchain using the supplied configuration.
func New(cfg Config) (*Toolchain, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker runtime: create client: %w", err)
	}

	tc, err := newToolchainWithClient(cli, cfg)
	if err != nil {
		_ = cli.Close()
		return nil, err
	}

	return tc, nil
}

func newToolchainWithClient(cli dockerClient, cfg Config) (*Toolchain, error) {
	if cfg.CompilerPath == "" {
		return nil, fmt.Errorf("docker runtime: compiler path must be provided")
	}
	if cfg.Image == "" {
		return nil, fmt.Errorf("docker runtime: image must be provided")
	}
	if cfg.RunImage == "" {
		cfg.RunImage = cfg.Image
	}
	if cfg.Workdir == "" {
		cfg.Workdir = defaultWorkdir
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
		client: cli,
		engine: newContainerEngine(cli, cfg.Limits),
		config: cfg,
		logger: cfg.Logger,
	}, nil
}

// Isolated is always true: every invocation gets a fresh container.
func (t *Toolchain) Isolated() bool {
	return true
}

// Compile copies the compiler and the case source into a build container and
// runs "./compiler <subcommand> <file>". On success the artifact is extracted
// so it can be executed in a separate container.
func (t *Toolchain) Compile(ctx context.Context, tc conformance.TestCase) (ports.Program, *conformance.RunResult, error) {
	if err := t.ensureImages(ctx); err != nil {
		return nil, nil, t.spawnError(ctx, conformance.StageCompile, t.config.Image, err)
	}

	compiler, err := os.ReadFile(t.config.CompilerPath)
	if err != nil {
		return nil, nil, &conformance.SpawnError{Stage: conformance.StageCompile, Path: t.config.CompilerPath, Err: err}
	}
	source, err := os.ReadFile(tc.SourcePath)
	if err != nil {
		return nil, nil, &conformance.SpawnError{Stage: conformance.StageCompile, Path: tc.SourcePath, Err: fmt.Errorf("read source: %w", err)}
	}

	sourceName := filepath.Base(tc.SourcePath)
	log := t.logger.With(zap.String("case", tc.Name))
	log.Debug("compiling in container", zap.String("image", t.config.Image), zap.String("source", sourceName))

	run, cleanup, err := t.engine.execute(ctx, t.config.Image, t.config.Workdir,
		[]string{"./" + compilerFilename, t.config.Subcommand, sourceName},
		[]workspaceFile{
			{name: compilerFilename, mode: 0o755, data: compiler},
			{name: sourceName, mode: 0o644, data: source},
		},
	)
	if err != nil {
		return nil, nil, t.spawnError(ctx, conformance.StageCompile, compilerFilename, err)
	}
	defer cleanup()

	if run.timedOut || run.oomKilled || run.exitCode != 0 {
		log.Debug("compiler rejected source", zap.Int64("status", run.exitCode), zap.Bool("timed_out", run.timedOut))
		return nil, &conformance.RunResult{
			CompileSucceeded: false,
			Stdout:           run.stdout,
			Stderr:           run.stderr,
			Duration:         run.duration,
			TimedOut:         run.timedOut,
		}, nil
	}

	artifactPath := path.Join(t.config.Workdir, t.config.ArtifactName)
	binary, err := t.engine.extractArtifact(ctx, run.id, artifactPath)
	var missing *artifactMissingError
	if errors.As(err, &missing) {
		// Nothing to launch: the run stage cannot start.
		return nil, nil, &conformance.SpawnError{Stage: conformance.StageRun, Path: artifactPath, Err: missing}
	}
	if err != nil {
		return nil, nil, t.spawnError(ctx, conformance.StageCompile, artifactPath, err)
	}

	return &program{
		toolchain: t,
		binary:    binary,
		logger:    log,
	}, nil, nil
}

// Close releases the Docker client.
func (t *Toolchain) Close() error {
	if err := t.client.Close(); err != nil {
		return fmt.Errorf("docker client: %w", err)
	}
	return nil
}

func (t *Toolchain) ensureImages(ctx context.Context) error {
	t.pullOnce.Do(func() {
		if err := t.engine.pullImage(ctx, t.config.Image); err != nil {
			t.pullErr = err
			return
		}
		if t.config.RunImage != t.config.Image {
			if err := t.engine.pullImage(ctx, t.config.RunImage); err != nil {
				t.pullErr = err
				return
			}
		}
	})
	return t.pullErr
}

// spawnError classifies a container failure. Cancellation is passed through
// so the caller can tell an aborted run from a broken environment.
func (t *Toolchain) spawnError(ctx context.Context, stage conformance.Stage, target string, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return &conformance.SpawnError{Stage: stage, Path: target, Err: err}
}

type program struct {
	toolchain *Toolchain
	binary    []byte
	logger    *zap.Logger
}

// Run executes the extracted artifact in a fresh container of the run image.
func (p *program) Run(ctx context.Context) (*conformance.RunResult, error) {
	cfg := p.toolchain.config
	p.logger.Debug("running artifact in container", zap.String("image", cfg.RunImage))

	run, cleanup, err := p.toolchain.engine.execute(ctx, cfg.RunImage, cfg.Workdir,
		[]string{"./" + cfg.ArtifactName},
		[]workspaceFile{{name: cfg.ArtifactName, mode: 0o755, data: p.binary}},
	)
	if err != nil {
		return nil, p.toolchain.spawnError(ctx, conformance.StageRun, cfg.ArtifactName, err)
	}
	defer cleanup()

	result := &conformance.RunResult{
		CompileSucceeded: true,
		Stdout:           run.stdout,
		Stderr:           run.stderr,
		Duration:         run.duration,
		TimedOut:         run.timedOut,
	}
	if !run.timedOut {
		result.ExitCode = conformance.Exited(run.exitCode)
	}
	return result, nil
}

func (p *program) Close() error {
	return nil
}
