package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"multilateration-sim/internal/linalg"
	"multilateration-sim/internal/logging"
	"multilateration-sim/internal/multilateration"
)

// Config is the full application configuration.
type Config struct {
	Solver   SolverConfig   `yaml:"solver"`
	Scenario ScenarioConfig `yaml:"scenario"`
	Log      logging.Config `yaml:"log"`
	Tracing  TracingConfig  `yaml:"tracing"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// SolverConfig configures a multilateration.Solver.
type SolverConfig struct {
	Epsilon          float64 `yaml:"epsilon"`
	MaxIterations    int     `yaml:"max_iterations"`
	PropagationSpeed float64 `yaml:"propagation_speed"`
	Pivoting         string  `yaml:"pivoting"` // partial | none
	Parallel         bool    `yaml:"parallel"`
}

// ScenarioConfig configures the synthetic scenario generator.
type ScenarioConfig struct {
	Seed      uint64    `yaml:"seed"`
	Receivers int       `yaml:"receivers"`
	Center    []float64 `yaml:"center"`
	Scaling   []float64 `yaml:"scaling"`
	Sigma     float64   `yaml:"sigma"`
	Targets   int       `yaml:"targets"`
	NoiseStd  float64   `yaml:"noise_std"` // seconds; 0 disables timing noise
}

// TracingConfig governs how tracing is initialised.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Exporter    string  `yaml:"exporter"` // stdout | otlp
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Solver: SolverConfig{
			Epsilon:          multilateration.DefaultEpsilon,
			MaxIterations:    multilateration.DefaultMaxIterations,
			PropagationSpeed: multilateration.SpeedOfLight,
			Pivoting:         linalg.PartialPivoting.String(),
		},
		Scenario: ScenarioConfig{
			Seed:      1,
			Receivers: 5,
			Center:    []float64{0, 0, 0},
			Scaling:   []float64{700, 800, 500},
			Sigma:     0.5,
			Targets:   100,
		},
		Log: logging.Config{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			ServiceName: "rdm",
			Exporter:    "stdout",
			SampleRatio: 1,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("RDM_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("RDM_LOG_FORMAT"); ok && v != "" {
		c.Log.Format = v
	}
	if v, ok := lookup("RDM_TRACING_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RDM_TRACING_ENABLED: %w", err)
		}
		c.Tracing.Enabled = enabled
	}
	return nil
}

// Validate checks every section and joins the problems found.
func (c Config) Validate() error {
	var errs []error
	if c.Solver.Epsilon <= 0 || c.Solver.Epsilon >= 1 {
		errs = append(errs, fmt.Errorf("solver.epsilon must be in (0, 1), got %g", c.Solver.Epsilon))
	}
	if c.Solver.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("solver.max_iterations must be positive, got %d", c.Solver.MaxIterations))
	}
	if c.Solver.PropagationSpeed <= 0 {
		errs = append(errs, fmt.Errorf("solver.propagation_speed must be positive, got %g", c.Solver.PropagationSpeed))
	}
	if _, err := linalg.ParsePivoting(c.Solver.Pivoting); err != nil {
		errs = append(errs, fmt.Errorf("solver.pivoting: %w", err))
	}
	if c.Scenario.Receivers < multilateration.MinReceivers {
		errs = append(errs, fmt.Errorf("scenario.receivers must be at least %d, got %d", multilateration.MinReceivers, c.Scenario.Receivers))
	}
	if len(c.Scenario.Center) != 3 || len(c.Scenario.Scaling) != 3 {
		errs = append(errs, errors.New("scenario.center and scenario.scaling must have 3 components"))
	}
	if c.Scenario.Targets < 0 {
		errs = append(errs, fmt.Errorf("scenario.targets must not be negative, got %d", c.Scenario.Targets))
	}
	if c.Scenario.NoiseStd < 0 {
		errs = append(errs, fmt.Errorf("scenario.noise_std must not be negative, got %g", c.Scenario.NoiseStd))
	}
	switch strings.ToLower(c.Tracing.Exporter) {
	case "stdout", "otlp", "otlpgrpc", "":
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter: unsupported %q", c.Tracing.Exporter))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be in [0, 1], got %g", c.Tracing.SampleRatio))
	}
	return errors.Join(errs...)
}

// SolverOptions translates the solver section into multilateration options.
func (c SolverConfig) SolverOptions() ([]multilateration.Option, error) {
	pivoting, err := linalg.ParsePivoting(c.Pivoting)
	if err != nil {
		return nil, err
	}
	return []multilateration.Option{
		multilateration.WithEpsilon(c.Epsilon),
		multilateration.WithMaxIterations(c.MaxIterations),
		multilateration.WithPropagationSpeed(c.PropagationSpeed),
		multilateration.WithPivoting(pivoting),
	}, nil
}
