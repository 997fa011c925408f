package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dolev-goaz/language-compiler/internal/app/cases"
	"github.com/dolev-goaz/language-compiler/internal/app/harness"
	"github.com/dolev-goaz/language-compiler/internal/app/report"
	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
	kafkainfra "github.com/dolev-goaz/language-compiler/internal/infra/kafka"
	"github.com/dolev-goaz/language-compiler/internal/ports"
	"github.com/dolev-goaz/language-compiler/internal/runtime"
)

// errCasesFailed signals a completed run with failing cases. The report has
// already been printed, so main only sets the exit status.
var errCasesFailed = errors.New("conformance cases failed")

type app struct {
	stdout   io.Writer
	stderr   io.Writer
	logger   *zap.Logger
	registry *runtime.Registry

	configPath string
	verbose    bool
	watch      bool
	fromKafka  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, &app{stdout: os.Stdout, stderr: os.Stderr, registry: runtime.DefaultRegistry()}, os.Args[1:])
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, a *app, args []string) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errCasesFailed) {
			fmt.Fprintf(a.stderr, "compcheck: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "compcheck",
		Short:         "Conformance runner for an external compiler",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.logger != nil {
				return nil
			}
			config := zap.NewProductionConfig()
			config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			if a.verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (default "+defaultConfigFile+" if present)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newRunCmd(a), newListCmd(a), newEnqueueCmd(a))
	return root
}

func addCaseFlags(cmd *cobra.Command) {
	cmd.Flags().String("cases", defaultCasesFile, "JSON case list")
	cmd.Flags().String("programs", defaultProgramsDir, "directory case files are resolved against")
	cmd.Flags().String("run", "", "only cases whose name matches this regular expression")
}

func addKafkaFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("brokers", nil, "Kafka brokers")
	cmd.Flags().String("cases-topic", "", "Kafka topic carrying cases")
}

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compile and run every case and report verdicts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), cfg)
		},
	}

	addCaseFlags(cmd)
	addKafkaFlags(cmd)
	flags := cmd.Flags()
	flags.String("compiler", defaultCompiler, "compiler executable under test")
	flags.String("subcommand", "compile", "compiler subcommand that builds a program")
	flags.String("backend", string(runtime.BackendLocal), "toolchain backend (local or docker)")
	flags.String("workdir", "", "shared working directory; empty gives every case its own directory")
	flags.String("artifact", "output", "file name of the compiled program")
	flags.Duration("time-limit", 0, "per-process time limit, 0 disables it")
	flags.IntP("parallel", "j", 1, "cases evaluated at once when the backend isolates them")
	flags.String("format", string(report.FormatText), "report format (text or json)")
	flags.String("image", "", "docker image with the compiler's toolchain")
	flags.String("run-image", "", "docker image compiled programs run in (default --image)")
	flags.String("results-topic", "", "Kafka topic verdicts are published to")
	flags.BoolVar(&a.watch, "watch", false, "re-run when the cases, programs or compiler change")
	flags.BoolVar(&a.fromKafka, "from-kafka", false, "consume cases from --cases-topic instead of --cases")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the cases that a run would evaluate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			tcs, err := loadCases(cfg)
			if err != nil {
				return err
			}
			return printCases(a.stdout, tcs)
		},
	}
	addCaseFlags(cmd)
	return cmd
}

func newEnqueueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Publish the case list to Kafka for a remote runner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			tcs, err := loadCases(cfg)
			if err != nil {
				return err
			}

			publisher, err := kafkainfra.NewCasePublisher(kafkainfra.PublisherConfig{
				Brokers: cfg.Kafka.Brokers,
				Topic:   cfg.Kafka.CasesTopic,
			})
			if err != nil {
				return fmt.Errorf("initialize kafka case publisher: %w", err)
			}
			defer func() {
				if cerr := publisher.Close(); cerr != nil {
					a.logger.Warn("failed to close kafka case publisher", zap.Error(cerr))
				}
			}()

			if err := publisher.PublishCases(cmd.Context(), tcs); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "enqueued %d cases to %s\n", len(tcs), cfg.Kafka.CasesTopic)
			return nil
		},
	}
	addCaseFlags(cmd)
	addKafkaFlags(cmd)
	return cmd
}

func (a *app) loadConfig(cmd *cobra.Command) (appConfig, error) {
	return loadAppConfig(a.configPath, cmd.Flags().Changed("config"), cmd.Flags())
}

func (a *app) run(ctx context.Context, cfg appConfig) error {
	err := a.runOnce(ctx, cfg)
	if !a.watch {
		return err
	}

	// In watch mode the exit status is that of the last run that finished.
	last := err
	a.logRunError(err)
	watchErr := watchAndRerun(ctx, watchTargets(cfg), ignoreArtifacts(cfg), defaultDebounce, a.logger, func(ctx context.Context) {
		fmt.Fprintln(a.stdout)
		err := a.runOnce(ctx, cfg)
		if ctx.Err() != nil {
			return
		}
		last = err
		a.logRunError(err)
	})
	if watchErr != nil {
		return watchErr
	}
	return last
}

func (a *app) logRunError(err error) {
	if err != nil && !errors.Is(err, errCasesFailed) {
		a.logger.Error("run failed", zap.Error(err))
	}
}

// runOnce evaluates every case once and prints the report. Partial results
// are still reported when the run is interrupted.
func (a *app) runOnce(ctx context.Context, cfg appConfig) error {
	runID := uuid.NewString()
	logger := a.logger.With(zap.String("run_id", runID))

	source, closeSource, err := a.openSource(cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	settings := cfg.settings()
	settings.Logger = logger
	toolchain, err := a.registry.Open(runtime.Backend(cfg.Backend), settings)
	if err != nil {
		return err
	}

	service := harness.NewService(toolchain, logger)
	defer func() {
		if cerr := service.Close(); cerr != nil {
			logger.Warn("failed to close toolchain", zap.Error(cerr))
		}
	}()

	publisher, err := openPublisher(cfg)
	if err != nil {
		return err
	}
	if publisher != nil {
		defer func() {
			if cerr := publisher.Close(); cerr != nil {
				logger.Warn("failed to close kafka publisher", zap.Error(cerr))
			}
		}()
	}

	opts := harness.Options{
		MaxParallel: cfg.Parallel,
		OnVerdict: func(v conformance.Verdict) {
			if publisher == nil {
				return
			}
			if err := publisher.PublishVerdict(ctx, runID, v); err != nil {
				logger.Warn("failed to publish verdict", zap.String("case", v.CaseName), zap.Error(err))
			}
		},
	}

	start := time.Now()
	verdicts, runErr := service.Execute(ctx, source, opts)
	summary := conformance.Summarize(verdicts)
	summary.Duration = time.Since(start)

	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	reporter, err := report.New(format, a.stdout)
	if err != nil {
		return err
	}
	if err := reporter.Report(verdicts, summary); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if runErr != nil {
		return runErr
	}
	if !summary.OK() {
		return errCasesFailed
	}
	return nil
}

func (a *app) openSource(cfg appConfig) (ports.CaseSource, func(), error) {
	if !a.fromKafka {
		tcs, err := loadCases(cfg)
		if err != nil {
			return nil, nil, err
		}
		return cases.NewCatalogue(tcs), func() {}, nil
	}

	if cfg.Run != "" {
		a.logger.Warn("--run is ignored for cases consumed from kafka", zap.String("pattern", cfg.Run))
	}
	consumer, err := kafkainfra.NewConsumer(kafkainfra.Config{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.CasesTopic,
		GroupID:     cfg.Kafka.GroupID,
		ProgramsDir: cfg.Programs,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initialize kafka consumer: %w", err)
	}
	return consumer, func() {
		if cerr := consumer.Close(); cerr != nil {
			a.logger.Warn("failed to close kafka consumer", zap.Error(cerr))
		}
	}, nil
}

func openPublisher(cfg appConfig) (ports.VerdictPublisher, error) {
	if cfg.Kafka.ResultsTopic == "" {
		return nil, nil
	}
	publisher, err := kafkainfra.NewPublisher(kafkainfra.PublisherConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.ResultsTopic,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize kafka publisher: %w", err)
	}
	return publisher, nil
}

func loadCases(cfg appConfig) ([]conformance.TestCase, error) {
	tcs, err := cases.Load(cfg.Cases, cfg.Programs)
	if err != nil {
		return nil, err
	}
	return cases.Filter(tcs, cfg.Run)
}

func printCases(w io.Writer, tcs []conformance.TestCase) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFILE\tEXPECTATION")
	for _, tc := range tcs {
		expectation := "compile error"
		if tc.ShouldCompile {
			expectation = fmt.Sprintf("exit %d", tc.ExpectedExitCode)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", tc.Name, tc.File, expectation)
	}
	fmt.Fprintf(tw, "\n%d cases\n", len(tcs))
	return tw.Flush()
}
