package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noofbiz/flyvfly/datasets"
)

// setupWorkspace writes three synthetic movies and a config file pointing
// at them, and returns the config path and the workspace directory.
func setupWorkspace(t *testing.T, scheme datasets.Scheme) (string, string) {
	t.Helper()
	dir := t.TempDir()
	movieDir := filepath.Join(dir, "movies")

	cfg := datasets.DefaultConfig(scheme)
	cfg.MovieDir = movieDir
	for _, movie := range []int{1, 2, 3} {
		tr := datasets.NewTracking(datasets.NumFlies, 30, 2)
		tr.Movie = movie
		for f := 0; f < 30; f++ {
			v := float64((f+movie)%4) * 0.25
			if f >= 10 && f < 20 {
				v += 4
			}
			tr.Set(0, f, 0, v)
			tr.Set(0, f, 1, float64(f%3))
			tr.Set(1, f, 0, float64(f%5))
			tr.Set(1, f, 1, float64(movie))
		}
		b := datasets.NewBouts(datasets.NumFlies, 2)
		b.Add(0, 0, datasets.Interval{Start: 10, Stop: 18})
		b.Add(1, 1, datasets.Interval{Start: 3, Stop: 6})
		require.NoError(t, datasets.WriteMovie(cfg, tr, b))
	}

	yaml := fmt.Sprintf(`dataset:
  scheme: %s
  movie_dir: %s
  train_movies: [1, 2]
  validation_movies: [3]
  test_movies: [3]
  stats_path: %s
  actions: %s
seed: 11
training:
  hidden_sizes: [8]
  epochs: 3
  seed: 5
model_path: %s
eval:
  plot_path: %s
  baseline_k: 3
  baseline_sims: 8
`, scheme, movieDir,
		filepath.Join(dir, "means.txt"),
		map[datasets.Scheme]string{datasets.SchemeBinary: "[0]", datasets.SchemeMulticlass: "[0, 1]"}[scheme],
		filepath.Join(dir, "out", "model.gob"),
		filepath.Join(dir, "out", "pr.png"))
	path := filepath.Join(dir, "flyvfly.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	return path, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestBinaryPipeline(t *testing.T) {
	cfgPath, dir := setupWorkspace(t, datasets.SchemeBinary)

	out, err := execute(t, "stats", "--config", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Wrote statistics for 2 features")
	stats, err := datasets.LoadStats(filepath.Join(dir, "means.txt"))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Features())

	out, err = execute(t, "load", "--config", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "movie 2 fly 1")
	assert.Contains(t, out, "Total:")

	out, err = execute(t, "train", "--config", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Validation precision/recall AUC")
	_, err = os.Stat(filepath.Join(dir, "out", "model.gob"))
	require.NoError(t, err)

	out, err = execute(t, "eval", "--config", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "train")
	assert.Contains(t, out, "test (3-NN baseline)")
	assert.Equal(t, 3, strings.Count(out, " examples "))
	fi, err := os.Stat(filepath.Join(dir, "out", "pr.png"))
	require.NoError(t, err)
	assert.Positive(t, fi.Size())
}

func TestMulticlassTrainAndEval(t *testing.T) {
	cfgPath, dir := setupWorkspace(t, datasets.SchemeMulticlass)
	model := filepath.Join(dir, "mc.gob")

	out, err := execute(t, "train", "--config", cfgPath, "--out", model, "--epochs", "1")
	require.NoError(t, err, out)

	plot := filepath.Join(dir, "mc.png")
	out, err = execute(t, "eval", model, "--config", cfgPath, "--plot", plot, "--baseline-k", "0")
	require.NoError(t, err, out)
	assert.NotContains(t, out, "baseline")
	_, err = os.Stat(plot)
	require.NoError(t, err)
}

func TestFlagOverrides(t *testing.T) {
	cfgPath, dir := setupWorkspace(t, datasets.SchemeBinary)

	_, err := execute(t, "load", "--config", cfgPath, "--scheme", "ternary")
	assert.ErrorIs(t, err, datasets.ErrInvalidConfig)

	_, err = execute(t, "load", "--config", cfgPath, "--movie-dir", filepath.Join(dir, "nowhere"))
	assert.Error(t, err)

	// multiclass defaults to five actions, but the synthetic bouts only
	// have two columns.
	_, err = execute(t, "load", "--config", cfgPath, "--scheme", "multiclass", "--unfiltered")
	assert.ErrorIs(t, err, datasets.ErrBadShape)
}

func TestEvalMissingModel(t *testing.T) {
	cfgPath, dir := setupWorkspace(t, datasets.SchemeBinary)
	_, err := execute(t, "eval", filepath.Join(dir, "missing.gob"), "--config", cfgPath)
	assert.Error(t, err)
}

func TestColorDisabledForBuffers(t *testing.T) {
	saved := color.NoColor
	t.Cleanup(func() { color.NoColor = saved })

	color.NoColor = false
	setColorOutput(&bytes.Buffer{})
	assert.True(t, color.NoColor)
}
