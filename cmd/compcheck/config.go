package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/dolev-goaz/language-compiler/internal/app/report"
	"github.com/dolev-goaz/language-compiler/internal/runtime"
)

const (
	defaultConfigFile   = "compcheck.yaml"
	defaultCompiler     = "./compiler"
	defaultCasesFile    = "testing/test_cases.json"
	defaultProgramsDir  = "testing/programs"
	defaultKafkaGroupID = "compcheck"
)

type appConfig struct {
	Compiler    string         `yaml:"compiler"`
	Subcommand  string         `yaml:"subcommand"`
	Cases       string         `yaml:"cases"`
	Programs    string         `yaml:"programs"`
	Backend     string         `yaml:"backend"`
	Workdir     string         `yaml:"workdir"`
	Artifact    string         `yaml:"artifact"`
	TimeLimit   time.Duration  `yaml:"time_limit"`
	MemoryLimit int64          `yaml:"memory_limit_bytes"`
	Parallel    int            `yaml:"parallel"`
	Run         string         `yaml:"run"`
	Format      string         `yaml:"format"`
	Docker      dockerSettings `yaml:"docker"`
	Kafka       kafkaSettings  `yaml:"kafka"`
}

type dockerSettings struct {
	Image    string `yaml:"image"`
	RunImage string `yaml:"run_image"`
	Workdir  string `yaml:"workdir"`
}

type kafkaSettings struct {
	Brokers      []string `yaml:"brokers"`
	CasesTopic   string   `yaml:"cases_topic"`
	ResultsTopic string   `yaml:"results_topic"`
	GroupID      string   `yaml:"group_id"`
}

func defaultAppConfig() appConfig {
	return appConfig{
		Compiler: defaultCompiler,
		Cases:    defaultCasesFile,
		Programs: defaultProgramsDir,
		Backend:  string(runtime.BackendLocal),
		Parallel: 1,
		Format:   string(report.FormatText),
		Kafka:    kafkaSettings{GroupID: defaultKafkaGroupID},
	}
}

// loadAppConfig layers defaults, the YAML file, environment overrides and
// explicitly set flags, in that order. A missing default config file is not
// an error; a missing explicit one is.
func loadAppConfig(path string, explicit bool, flags *pflag.FlagSet) (appConfig, error) {
	cfg := defaultAppConfig()

	if path == "" {
		path = defaultConfigFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return appConfig{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return appConfig{}, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	if flags != nil {
		if err := cfg.applyFlags(flags); err != nil {
			return appConfig{}, err
		}
	}
	return cfg, cfg.validate()
}

func (c *appConfig) applyEnv() {
	c.Compiler = envOrDefault("COMPCHECK_COMPILER", c.Compiler)
	c.Subcommand = envOrDefault("COMPCHECK_SUBCOMMAND", c.Subcommand)
	c.Cases = envOrDefault("COMPCHECK_CASES", c.Cases)
	c.Programs = envOrDefault("COMPCHECK_PROGRAMS", c.Programs)
	c.Backend = envOrDefault("COMPCHECK_BACKEND", c.Backend)
	c.Workdir = envOrDefault("COMPCHECK_WORKDIR", c.Workdir)
	c.Artifact = envOrDefault("COMPCHECK_ARTIFACT", c.Artifact)
	c.TimeLimit = parseDuration(os.Getenv("COMPCHECK_TIME_LIMIT"), c.TimeLimit)
	c.MemoryLimit = parseBytes(os.Getenv("COMPCHECK_MEMORY_LIMIT"), c.MemoryLimit)
	c.Parallel = parseMaxParallel(os.Getenv("COMPCHECK_PARALLEL"), c.Parallel)
	c.Format = envOrDefault("COMPCHECK_FORMAT", c.Format)

	c.Docker.Image = envOrDefault("COMPCHECK_DOCKER_IMAGE", c.Docker.Image)
	c.Docker.RunImage = envOrDefault("COMPCHECK_DOCKER_RUN_IMAGE", c.Docker.RunImage)
	c.Docker.Workdir = envOrDefault("COMPCHECK_DOCKER_WORKDIR", c.Docker.Workdir)

	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		c.Kafka.Brokers = parseBrokerList(raw)
	}
	c.Kafka.CasesTopic = envOrDefault("KAFKA_CASES_TOPIC", c.Kafka.CasesTopic)
	c.Kafka.ResultsTopic = envOrDefault("KAFKA_RESULTS_TOPIC", c.Kafka.ResultsTopic)
	c.Kafka.GroupID = envOrDefault("KAFKA_GROUP_ID", c.Kafka.GroupID)
}

// applyFlags copies only the flags the user actually set, so that flag
// defaults never mask file or environment values.
func (c *appConfig) applyFlags(flags *pflag.FlagSet) error {
	var errs []error
	str := func(name string, dst *string) {
		if f := flags.Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}

	str("compiler", &c.Compiler)
	str("subcommand", &c.Subcommand)
	str("cases", &c.Cases)
	str("programs", &c.Programs)
	str("backend", &c.Backend)
	str("workdir", &c.Workdir)
	str("artifact", &c.Artifact)
	str("run", &c.Run)
	str("format", &c.Format)
	str("image", &c.Docker.Image)
	str("run-image", &c.Docker.RunImage)

	if flags.Changed("time-limit") {
		d, err := flags.GetDuration("time-limit")
		errs = append(errs, err)
		c.TimeLimit = d
	}
	if flags.Changed("parallel") {
		n, err := flags.GetInt("parallel")
		errs = append(errs, err)
		c.Parallel = n
	}
	if flags.Changed("brokers") {
		brokers, err := flags.GetStringSlice("brokers")
		errs = append(errs, err)
		c.Kafka.Brokers = brokers
	}
	str("results-topic", &c.Kafka.ResultsTopic)
	str("cases-topic", &c.Kafka.CasesTopic)

	return errors.Join(errs...)
}

func (c appConfig) validate() error {
	if c.Parallel <= 0 {
		return fmt.Errorf("parallel must be positive, got %d", c.Parallel)
	}
	if c.TimeLimit < 0 {
		return fmt.Errorf("time limit must not be negative, got %s", c.TimeLimit)
	}
	if _, err := report.ParseFormat(c.Format); err != nil {
		return err
	}
	return nil
}

func (c appConfig) settings() runtime.Settings {
	return runtime.Settings{
		CompilerPath:     c.Compiler,
		Subcommand:       c.Subcommand,
		ArtifactName:     c.Artifact,
		Workdir:          c.Workdir,
		Image:            c.Docker.Image,
		RunImage:         c.Docker.RunImage,
		ContainerWorkdir: c.Docker.Workdir,
		TimeLimit:        c.TimeLimit,
		MemoryLimitBytes: c.MemoryLimit,
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseBrokerList(raw string) []string {
	fields := strings.Split(raw, ",")
	brokers := make([]string, 0, len(fields))
	for _, field := range fields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}

func parseMaxParallel(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func parseBytes(raw string, fallback int64) int64 {
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
