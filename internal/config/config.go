// Package config loads the YAML file that drives the flyvfly command.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Noofbiz/flyvfly/datasets"
	"github.com/Noofbiz/flyvfly/simple"
)

// EvalConfig controls the eval command.
type EvalConfig struct {
	// NumTestSample caps the examples scored per split; 0 scores all.
	NumTestSample int `yaml:"num_test_sample"`

	// PlotPath is where the precision/recall PNG is written.
	PlotPath string `yaml:"plot_path"`
	Title    string `yaml:"title"`

	// BaselineK enables the nearest-neighbor baseline with K neighbors
	// drawn from the training split. 0 disables it.
	BaselineK int `yaml:"baseline_k"`
	// BaselineSims is the number of weighted draws per baseline estimate.
	BaselineSims int `yaml:"baseline_sims"`
}

// Config is the whole file: dataset layout, training and evaluation.
type Config struct {
	Dataset datasets.Config `yaml:"dataset"`

	// BatchSize and Seed are passed to the dataset adapter.
	BatchSize int   `yaml:"batch_size"`
	Seed      int64 `yaml:"seed"`

	Training  simple.Config `yaml:"training"`
	ModelPath string        `yaml:"model_path"`

	Eval EvalConfig `yaml:"eval"`
}

// DefaultConfig returns a Config with the defaults for scheme.
func DefaultConfig(scheme datasets.Scheme) *Config {
	cfg := &Config{
		Dataset:   datasets.DefaultConfig(scheme),
		BatchSize: 32,
		Training:  simple.DefaultConfig(),
		ModelPath: "output/model.gob",
		Eval: EvalConfig{
			PlotPath:     "output/precision_recall.png",
			Title:        "Precision Recall of Model",
			BaselineSims: 64,
		},
	}
	if scheme == datasets.SchemeMulticlass {
		cfg.Eval.NumTestSample = 10000
	}
	return cfg
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns the binary defaults without error.
// The defaults are picked by the file's dataset.scheme before the rest of
// the file is applied on top of them.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(datasets.SchemeBinary), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var peek struct {
		Dataset struct {
			Scheme datasets.Scheme `yaml:"scheme"`
		} `yaml:"dataset"`
	}
	if err := yaml.Unmarshal(data, &peek); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	scheme := peek.Dataset.Scheme
	if scheme == "" {
		scheme = datasets.SchemeBinary
	}

	cfg := DefaultConfig(scheme)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ExpandPaths()
	return cfg, nil
}

// WithScheme switches to scheme, resetting the scheme-dependent defaults
// (actions, standardization, test sample cap) while keeping everything else.
func (c *Config) WithScheme(scheme datasets.Scheme) {
	if c.Dataset.Scheme == scheme {
		return
	}
	def := DefaultConfig(scheme)
	c.Dataset.Scheme = scheme
	c.Dataset.Actions = def.Dataset.Actions
	c.Dataset.Standardize = def.Dataset.Standardize
	c.Eval.NumTestSample = def.Eval.NumTestSample
}

// ExpandPaths replaces a leading ~ in every path setting.
func (c *Config) ExpandPaths() {
	c.Dataset.MovieDir = datasets.ExpandHome(c.Dataset.MovieDir)
	c.Dataset.StatsPath = datasets.ExpandHome(c.Dataset.StatsPath)
	c.ModelPath = datasets.ExpandHome(c.ModelPath)
	c.Eval.PlotPath = datasets.ExpandHome(c.Eval.PlotPath)
}

// DatasetOptions returns the adapter options for the given split.
func (c *Config) DatasetOptions(split datasets.Split) datasets.Options {
	return datasets.Options{
		UseSet:        split,
		NumTestSample: c.Eval.NumTestSample,
		BatchSize:     c.BatchSize,
		Seed:          c.Seed,
	}
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if err := c.Dataset.Validate(); err != nil {
		return err
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must be >= 0, got %d", c.BatchSize)
	}
	if c.ModelPath == "" {
		return fmt.Errorf("model_path cannot be empty")
	}
	if c.Eval.NumTestSample < 0 {
		return fmt.Errorf("eval.num_test_sample must be >= 0, got %d", c.Eval.NumTestSample)
	}
	if c.Eval.BaselineK < 0 {
		return fmt.Errorf("eval.baseline_k must be >= 0, got %d", c.Eval.BaselineK)
	}
	if c.Training.LearningRate < 0 {
		return fmt.Errorf("training.learning_rate must be >= 0, got %v", c.Training.LearningRate)
	}
	return nil
}
