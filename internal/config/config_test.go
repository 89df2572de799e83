package config

import (
	"os"
	"path/filepath"
	"testing"

	"multilateration-sim/internal/multilateration"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rdm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, multilateration.DefaultEpsilon, cfg.Solver.Epsilon)
	assert.Equal(t, multilateration.SpeedOfLight, cfg.Solver.PropagationSpeed)
	assert.Equal(t, "partial", cfg.Solver.Pivoting)
	assert.Equal(t, []float64{700, 800, 500}, cfg.Scenario.Scaling)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("RDM_LOG_LEVEL", "")
	t.Setenv("RDM_LOG_FORMAT", "")
	t.Setenv("RDM_TRACING_ENABLED", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
solver:
  epsilon: 1.0e-10
  pivoting: none
  parallel: true
scenario:
  seed: 42
  receivers: 4
log:
  level: debug
  format: json
tracing:
  enabled: true
  exporter: otlp
  endpoint: collector:4317
http:
  addr: 127.0.0.1:9090
`)
	t.Setenv("RDM_LOG_LEVEL", "")
	t.Setenv("RDM_LOG_FORMAT", "")
	t.Setenv("RDM_TRACING_ENABLED", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1e-10, cfg.Solver.Epsilon)
	assert.Equal(t, "none", cfg.Solver.Pivoting)
	assert.True(t, cfg.Solver.Parallel)
	assert.Equal(t, multilateration.DefaultMaxIterations, cfg.Solver.MaxIterations, "unset keys keep defaults")
	assert.Equal(t, uint64(42), cfg.Scenario.Seed)
	assert.Equal(t, 4, cfg.Scenario.Receivers)
	assert.Equal(t, 100, cfg.Scenario.Targets)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "collector:4317", cfg.Tracing.Endpoint)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTP.Addr)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")
	t.Setenv("RDM_LOG_LEVEL", "warn")
	t.Setenv("RDM_LOG_FORMAT", "json")
	t.Setenv("RDM_TRACING_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestApplyEnvRejectsBadBool(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(key string) (string, bool) {
		if key == "RDM_TRACING_ENABLED" {
			return "maybe", true
		}
		return "", false
	})
	assert.ErrorContains(t, err, "RDM_TRACING_ENABLED")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	_, err = Load(writeConfig(t, "solver: [not, a, map]\n"))
	assert.ErrorContains(t, err, "parse config")
}

func TestValidateJoinsProblems(t *testing.T) {
	cfg := Default()
	cfg.Solver.Epsilon = 1
	cfg.Solver.MaxIterations = 0
	cfg.Solver.PropagationSpeed = -1
	cfg.Solver.Pivoting = "full"
	cfg.Scenario.Receivers = 1
	cfg.Scenario.Center = []float64{0, 0}
	cfg.Scenario.Targets = -1
	cfg.Scenario.NoiseStd = -1
	cfg.Tracing.Exporter = "zipkin"
	cfg.Tracing.SampleRatio = 2

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"solver.epsilon",
		"solver.max_iterations",
		"solver.propagation_speed",
		"solver.pivoting",
		"scenario.receivers",
		"scenario.center",
		"scenario.targets",
		"scenario.noise_std",
		"tracing.exporter",
		"tracing.sample_ratio",
	} {
		assert.ErrorContains(t, err, want)
	}
}

func TestSolverOptions(t *testing.T) {
	cfg := Default().Solver
	cfg.Epsilon = 1e-6
	cfg.MaxIterations = 50
	cfg.PropagationSpeed = 343
	cfg.Pivoting = "none"

	opts, err := cfg.SolverOptions()
	require.NoError(t, err)
	solver, err := multilateration.NewSolver(opts...)
	require.NoError(t, err)
	assert.Equal(t, 1e-6, solver.Epsilon())
	assert.Equal(t, 50, solver.MaxIterations())
	assert.Equal(t, 343.0, solver.PropagationSpeed())

	cfg.Pivoting = "full"
	_, err = cfg.SolverOptions()
	assert.Error(t, err)
}
