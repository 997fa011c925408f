package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOrDefault(t *testing.T) {
	const key = "COMPCHECK_TEST_ENV"
	const fallback = "fallback"

	if got := envOrDefault(key, fallback); got != fallback {
		t.Fatalf("expected fallback when env unset, got %q", got)
	}

	t.Setenv(key, "value")
	if got := envOrDefault(key, fallback); got != "value" {
		t.Fatalf("expected env value, got %q", got)
	}
}

func TestParseBrokerList(t *testing.T) {
	input := " broker1:9092 , ,broker2:9093 ,"
	brokers := parseBrokerList(input)
	want := []string{"broker1:9092", "broker2:9093"}
	if len(brokers) != len(want) {
		t.Fatalf("expected %d brokers, got %d", len(want), len(brokers))
	}
	for i := range want {
		if brokers[i] != want[i] {
			t.Fatalf("unexpected broker at index %d: got %q want %q", i, brokers[i], want[i])
		}
	}
}

func TestParseMaxParallel(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"", 1},
		{"not-a-number", 1},
		{"0", 1},
		{"-5", 1},
		{"3", 3},
	}

	for _, tc := range cases {
		if got := parseMaxParallel(tc.input, 1); got != tc.want {
			t.Fatalf("parseMaxParallel(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestParseDurationAndBytes(t *testing.T) {
	if got := parseDuration("", time.Second); got != time.Second {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := parseDuration("-1s", time.Second); got != time.Second {
		t.Fatalf("expected fallback for negative duration, got %v", got)
	}
	if got := parseDuration("250ms", 0); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", got)
	}
	if got := parseBytes("oops", 7); got != 7 {
		t.Fatalf("expected fallback, got %d", got)
	}
	if got := parseBytes("1024", 0); got != 1024 {
		t.Fatalf("expected 1024, got %d", got)
	}
}

func runFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := newRunCmd(&app{})
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadAppConfigDefaults(t *testing.T) {
	cfg, err := loadAppConfig(filepath.Join(t.TempDir(), "absent.yaml"), false, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultAppConfig(), cfg)
}

func TestLoadAppConfigExplicitMissingFile(t *testing.T) {
	_, err := loadAppConfig(filepath.Join(t.TempDir(), "absent.yaml"), true, nil)
	require.Error(t, err)
}

func TestLoadAppConfigLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
compiler: /opt/compiler
cases: suite/cases.json
backend: docker
time_limit: 5s
parallel: 4
docker:
  image: compiler-toolchain:latest
kafka:
  brokers: [file:9092]
  results_topic: verdicts
`), 0o644))

	t.Setenv("COMPCHECK_CASES", "env/cases.json")
	t.Setenv("KAFKA_BROKERS", "env1:9092, env2:9092")

	cmd := runFlags(t, "--backend", "local", "--parallel", "2")
	cfg, err := loadAppConfig(path, true, cmd.Flags())
	require.NoError(t, err)

	assert.Equal(t, "/opt/compiler", cfg.Compiler, "file value")
	assert.Equal(t, "env/cases.json", cfg.Cases, "env overrides file")
	assert.Equal(t, "local", cfg.Backend, "flag overrides file")
	assert.Equal(t, 2, cfg.Parallel, "flag overrides file")
	assert.Equal(t, 5*time.Second, cfg.TimeLimit)
	assert.Equal(t, "compiler-toolchain:latest", cfg.Docker.Image)
	assert.Equal(t, []string{"env1:9092", "env2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "verdicts", cfg.Kafka.ResultsTopic)
	assert.Equal(t, defaultProgramsDir, cfg.Programs, "unset flag keeps default")

	settings := cfg.settings()
	assert.Equal(t, "/opt/compiler", settings.CompilerPath)
	assert.Equal(t, 5*time.Second, settings.TimeLimit)
	assert.Equal(t, "compiler-toolchain:latest", settings.Image)
}

func TestLoadAppConfigRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("parallel: [oops"), 0o644))
	_, err := loadAppConfig(bad, true, nil)
	require.Error(t, err)

	_, err = loadAppConfig(filepath.Join(dir, "absent.yaml"), false, runFlags(t, "--parallel", "0").Flags())
	require.ErrorContains(t, err, "parallel")

	_, err = loadAppConfig(filepath.Join(dir, "absent.yaml"), false, runFlags(t, "--format", "xml").Flags())
	require.ErrorContains(t, err, "format")
}
