// Package config loads the training configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sanonone/nodevec/pkg/model"
	"github.com/sanonone/nodevec/pkg/trainer"
)

// Duration is a wrapper around time.Duration that decodes YAML strings ("5s")
// as well as plain integers (nanoseconds).
type Duration time.Duration

// UnmarshalYAML implements custom decoding logic.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var v any
	if err := value.Decode(&v); err != nil {
		return err
	}
	switch x := v.(type) {
	case int:
		*d = Duration(time.Duration(x))
		return nil
	case string:
		tmp, err := time.ParseDuration(x)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return fmt.Errorf("invalid duration %q", value.Value)
	}
}

// MarshalYAML serializes the duration back to a readable string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config holds every tunable of a training run.
type Config struct {
	// --- Model ---
	Size         int     `yaml:"size"`
	DownSampling float64 `yaml:"down_sampling"`
	Seed         int64   `yaml:"seed"`
	TableSize    int     `yaml:"table_size"`

	// --- Training ---
	Workers      int     `yaml:"workers"`
	LearningRate float64 `yaml:"learning_rate"`
	Negative     int     `yaml:"negative"`
	ChunkSize    int     `yaml:"chunk_size"`
	Iterations   int     `yaml:"iterations"`

	ProgressInterval Duration `yaml:"progress_interval"`
	LockTimeout      Duration `yaml:"lock_timeout"`

	// MetricsAddr, when set, exposes Prometheus metrics (e.g. ":9100").
	MetricsAddr string `yaml:"metrics_addr"`
}

// DefaultConfig returns the model and trainer defaults with jobs of 150 edges.
func DefaultConfig() Config {
	mo := model.DefaultOptions()
	to := trainer.DefaultOptions()
	return Config{
		Size:             mo.Size,
		DownSampling:     mo.DownSampling,
		Seed:             mo.Seed,
		TableSize:        mo.TableSize,
		Workers:          to.Workers,
		LearningRate:     to.LearningRate,
		Negative:         to.Negative,
		ChunkSize:        150,
		Iterations:       1,
		ProgressInterval: Duration(to.ProgressInterval),
		LockTimeout:      Duration(to.LockTimeout),
	}
}

// LoadConfig reads the YAML configuration file using strict parsing.
// An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("YAML syntax error in config: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate checks ranges. Warnings (such as a size that is not a multiple
// of 4) are left to the model constructor.
func (c Config) Validate() error {
	var errs []error
	if c.Size <= 0 {
		errs = append(errs, fmt.Errorf("size must be > 0, got %d", c.Size))
	} else if uint64(c.Size) > math.MaxUint32 {
		errs = append(errs, fmt.Errorf("size must be <= %d, got %d", uint64(math.MaxUint32), c.Size))
	}
	if c.DownSampling < 0 {
		errs = append(errs, fmt.Errorf("down_sampling must be >= 0, got %g", c.DownSampling))
	}
	if c.TableSize <= 0 {
		errs = append(errs, fmt.Errorf("table_size must be > 0, got %d", c.TableSize))
	} else if uint64(c.TableSize) > math.MaxUint32 {
		errs = append(errs, fmt.Errorf("table_size must be <= %d, got %d", uint64(math.MaxUint32), c.TableSize))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be > 0, got %d", c.Workers))
	}
	if c.Negative < 0 {
		errs = append(errs, fmt.Errorf("negative must be >= 0, got %d", c.Negative))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk_size must be > 0, got %d", c.ChunkSize))
	}
	if c.Iterations <= 0 {
		errs = append(errs, fmt.Errorf("iterations must be > 0, got %d", c.Iterations))
	}
	return errors.Join(errs...)
}

// ModelOptions extracts the model construction parameters.
func (c Config) ModelOptions() model.Options {
	return model.Options{
		Size:         c.Size,
		DownSampling: c.DownSampling,
		Seed:         c.Seed,
		TableSize:    c.TableSize,
	}
}

// TrainerOptions extracts the scheduler parameters.
func (c Config) TrainerOptions() trainer.Options {
	return trainer.Options{
		Workers:          c.Workers,
		LearningRate:     c.LearningRate,
		Negative:         c.Negative,
		ProgressInterval: time.Duration(c.ProgressInterval),
		LockTimeout:      time.Duration(c.LockTimeout),
		Seed:             c.Seed,
	}
}
