package datasets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Scheme selects how windows are labeled.
type Scheme string

const (
	// SchemeBinary labels each window 0/1 for a single action.
	SchemeBinary Scheme = "binary"
	// SchemeMulticlass labels each window one-hot over the configured
	// actions plus a trailing "no action" column.
	SchemeMulticlass Scheme = "multiclass"
)

var ErrInvalidConfig = errors.New("invalid dataset config")

// Config describes where the movies live and how they are turned into
// examples. It replaces the tunables the preprocessing scripts kept as
// package-level variables.
type Config struct {
	// MovieDir holds movieN/ subdirectories.
	MovieDir string `yaml:"movie_dir"`

	Scheme Scheme `yaml:"scheme"`

	// WindowLength is the number of contiguous frames per example.
	WindowLength int `yaml:"window_length"`
	// Stride is accepted for completeness; windows always advance by one frame.
	Stride int `yaml:"stride"`
	// UseBoth concatenates both flies' frames into each window.
	UseBoth bool `yaml:"use_both"`
	// UseTrk reads movieN_track.mat (trk) instead of movieN_feat.mat (feat).
	UseTrk bool `yaml:"use_trk"`

	// Actions lists the action columns of the bouts cell to label. The
	// binary scheme uses only the first entry.
	Actions []int `yaml:"actions"`

	TrainMovies      []int `yaml:"train_movies"`
	ValidationMovies []int `yaml:"validation_movies"`
	TestMovies       []int `yaml:"test_movies"`

	// NegFrac and PosFrac drive the rebalancing of filtered splits.
	NegFrac float64 `yaml:"neg_frac"`
	PosFrac float64 `yaml:"pos_frac"`
	// PredictPosFrac replaces PosFrac when the multiclass predict variant
	// rebalances its training split.
	PredictPosFrac float64 `yaml:"predict_pos_frac"`

	// Standardize applies the per-fly statistics in StatsPath before windowing.
	Standardize bool   `yaml:"standardize"`
	StatsPath   string `yaml:"stats_path"`
}

// DefaultMovieDir is ~/flyvflydata/Aggression/Aggression.
func DefaultMovieDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, "flyvflydata", "Aggression", "Aggression")
}

// DefaultConfig returns the standard Aggression settings for the given
// scheme.
func DefaultConfig(scheme Scheme) Config {
	cfg := Config{
		MovieDir:         DefaultMovieDir(),
		Scheme:           scheme,
		WindowLength:     3,
		Stride:           1,
		TrainMovies:      []int{1, 2, 3, 4, 5},
		ValidationMovies: []int{6},
		TestMovies:       []int{6, 7, 8, 9, 10},
		NegFrac:          0.6,
		PosFrac:          20.0,
		PredictPosFrac:   1.0,
		StatsPath:        "means.txt",
	}
	switch scheme {
	case SchemeMulticlass:
		cfg.Actions = []int{0, 1, 2, 3, 4}
	default:
		cfg.Scheme = SchemeBinary
		cfg.Actions = []int{0}
		cfg.Standardize = true
	}
	return cfg
}

// Validate checks the config for values the transform cannot work with.
func (c Config) Validate() error {
	switch c.Scheme {
	case SchemeBinary, SchemeMulticlass:
	default:
		return fmt.Errorf("%w: unknown scheme %q", ErrInvalidConfig, c.Scheme)
	}
	if c.WindowLength < 1 {
		return fmt.Errorf("%w: window_length must be positive, got %d", ErrInvalidConfig, c.WindowLength)
	}
	if c.Stride != 0 && c.Stride != 1 {
		return fmt.Errorf("%w: only stride 1 is supported, got %d", ErrInvalidConfig, c.Stride)
	}
	if len(c.Actions) == 0 {
		return fmt.Errorf("%w: no actions configured", ErrInvalidConfig)
	}
	for _, a := range c.Actions {
		if a < 0 {
			return fmt.Errorf("%w: negative action index %d", ErrInvalidConfig, a)
		}
	}
	if c.NegFrac < 0 || c.PosFrac < 0 || c.PredictPosFrac < 0 {
		return fmt.Errorf("%w: rebalancing fractions must be non-negative", ErrInvalidConfig)
	}
	if c.Standardize && c.StatsPath == "" {
		return fmt.Errorf("%w: standardize requires stats_path", ErrInvalidConfig)
	}
	return nil
}

// LabelWidth is the number of label columns per example.
func (c Config) LabelWidth() int {
	if c.Scheme == SchemeMulticlass {
		return len(c.Actions) + 1
	}
	return 1
}

// FlyMultiplier is 2 when windows carry both flies, else 1.
func (c Config) FlyMultiplier() int {
	if c.UseBoth {
		return 2
	}
	return 1
}

// FeaturePath is movieN/movieN_feat.mat, or movieN_track.mat with UseTrk.
func (c Config) FeaturePath(movie int) string {
	suffix := "feat"
	if c.UseTrk {
		suffix = "track"
	}
	return c.moviePath(movie, suffix)
}

// ActionsPath is movieN/movieN_actions.mat.
func (c Config) ActionsPath(movie int) string {
	return c.moviePath(movie, "actions")
}

func (c Config) moviePath(movie int, suffix string) string {
	return filepath.Join(c.MovieDir, fmt.Sprintf("movie%d", movie), fmt.Sprintf("movie%d_%s.mat", movie, suffix))
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
