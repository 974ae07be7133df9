package relod

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that parses human-readable YAML values
// like "50ms" as well as plain nanosecond integers.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config gathers the tuning parameters for grouping and probe refresh.
// All of them are knobs, not contracts; defaults are one coherent set
// observed to behave well for architectural models.
type Config struct {
	Detail    DetailConfig    `yaml:"detail"`
	Probes    ProbeConfig     `yaml:"probes"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Lights    LightConfig     `yaml:"lights"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DetailConfig tunes LOD group construction.
type DetailConfig struct {
	// Screen-relative height below which the lowest level culls instead
	// of fading further. 2/720 is about two pixels of a 720 line screen.
	CulledHeight float32 `yaml:"culled_height"`
	// Nominal fraction of a level's visible range used for cross-fading.
	NominalFadeFraction float32 `yaml:"nominal_fade_fraction"`
}

// ProbeConfig tunes proxy-volume assignment.
type ProbeConfig struct {
	// World-space distance between probes. A renderer below the primary
	// level gets a volume only when its bounds exceed this on some axis.
	Spacing float32 `yaml:"spacing"`
	// Per-axis cap on probe grid resolution.
	MaxGridResolution int `yaml:"max_grid_resolution"`
}

// SchedulerConfig tunes the per-frame probe refresh budget.
type SchedulerConfig struct {
	// Frame period the budget controller chases.
	TargetFramePeriod Duration `yaml:"target_frame_period"`
	// Probes of budget gained (lost) per second of frame-time headroom
	// (overrun). Plain integral control, no damping.
	GainConstant float64 `yaml:"gain_constant"`
	// Budget in probe units before the controller has any samples.
	InitialProbeBudget int `yaml:"initial_probe_budget"`
}

// LightConfig tunes change detection for tracked lights.
type LightConfig struct {
	// Minimum |color*intensity| delta counted as a change.
	IntensityThreshold float32 `yaml:"intensity_threshold"`
	// Minimum forward-direction delta, in degrees.
	AngleThresholdDegrees float32 `yaml:"angle_threshold_degrees"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Detail: DetailConfig{
			CulledHeight:        2.0 / 720.0,
			NominalFadeFraction: 0.1,
		},
		Probes: ProbeConfig{
			Spacing:           2.0,
			MaxGridResolution: 32,
		},
		Scheduler: SchedulerConfig{
			TargetFramePeriod:  Duration(time.Second / 20),
			GainConstant:       1000,
			InitialProbeBudget: 64,
		},
		Lights: LightConfig{
			IntensityThreshold:    0.01,
			AngleThresholdDegrees: 0.5,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// LoadConfig reads a YAML file over the defaults. A missing path is not
// an error; the defaults are returned unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
