package datasets

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitStats(t *testing.T) {
	tr := synthTracking(1, 10, 2)
	s, err := FitStats([]*Tracking{tr})
	require.NoError(t, err)
	require.Equal(t, 2, s.Features())

	// feature 0 of fly 0 is 0, 10, ..., 90
	assert.InDelta(t, 45.0, s.Mean[0][0], 1e-9)
	assert.InDelta(t, math.Sqrt(825), s.Std[0][0], 1e-9)
	assert.InDelta(t, 1046.0, s.Mean[1][1], 1e-9)
	assert.InDelta(t, math.Sqrt(825), s.Std[1][1], 1e-9)
}

func TestFitStatsConstantFeature(t *testing.T) {
	tr := NewTracking(NumFlies, 4, 1)
	s, err := FitStats([]*Tracking{tr})
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Std[0][0])

	_, err = FitStats(nil)
	assert.ErrorIs(t, err, ErrBadShape)
}

func TestStatsApply(t *testing.T) {
	tr := synthTracking(1, 10, 2)
	s, err := FitStats([]*Tracking{tr})
	require.NoError(t, err)
	require.NoError(t, s.Apply(tr))

	for fly := 0; fly < NumFlies; fly++ {
		for k := 0; k < tr.Features; k++ {
			var sum float64
			for f := 0; f < tr.Frames; f++ {
				sum += tr.At(fly, f, k)
			}
			assert.InDelta(t, 0, sum/float64(tr.Frames), 1e-9)
		}
	}
	assert.InDelta(t, -45/math.Sqrt(825), tr.At(0, 0, 0), 1e-9)

	other := NewTracking(NumFlies, 3, 5)
	assert.ErrorIs(t, s.Apply(other), ErrBadShape)
}

func TestStatsWriteLoad(t *testing.T) {
	s := &Stats{
		Mean: [NumFlies][]float64{{1.5, -2}, {0.1, 1e-20}},
		Std:  [NumFlies][]float64{{3, 0.25}, {1, 7.123456789012345}},
	}
	path := filepath.Join(t.TempDir(), "means.txt")
	require.NoError(t, s.Write(path))

	got, err := LoadStats(path)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestLoadStatsRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadStats(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	short := filepath.Join(dir, "short.txt")
	require.NoError(t, os.WriteFile(short, []byte("1 2\n3 4\n"), 0644))
	_, err = LoadStats(short)
	assert.ErrorIs(t, err, ErrBadShape)

	ragged := filepath.Join(dir, "ragged.txt")
	require.NoError(t, os.WriteFile(ragged, []byte("1 2\n3 4\n5\n6 7\n"), 0644))
	_, err = LoadStats(ragged)
	assert.ErrorIs(t, err, ErrBadShape)

	junk := filepath.Join(dir, "junk.txt")
	require.NoError(t, os.WriteFile(junk, []byte("1 x\n3 4\n5 6\n6 7\n"), 0644))
	_, err = LoadStats(junk)
	assert.Error(t, err)
}
