package evaluate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrecisionRecall(t *testing.T) {
	c, err := PrecisionRecall([]float64{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2.0 / 3, 0.5, 1, 1}, c.Precision, 1e-12)
	assert.Equal(t, []float64{1, 0.5, 0.5, 0}, c.Recall)
	assert.Equal(t, []float64{0.35, 0.4, 0.8}, c.Thresholds)

	auc, err := c.AUC()
	require.NoError(t, err)
	assert.InDelta(t, 0.5+0.25*(0.5+2.0/3), auc, 1e-12)
}

func TestPrecisionRecallTiesAndPerfect(t *testing.T) {
	c, err := PrecisionRecall([]float64{1, 0, 1, 0}, []float64{0.5, 0.5, 0.5, 0.5})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1}, c.Precision)
	assert.Equal(t, []float64{1, 0}, c.Recall)
	assert.Equal(t, []float64{0.5}, c.Thresholds)

	c, err = PrecisionRecall([]float64{1, 1, 0}, []float64{0.9, 0.8, 0.1})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1}, c.Precision)
	assert.Equal(t, []float64{1, 0.5, 0}, c.Recall)
	auc, err := c.AUC()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, auc, 1e-12)
}

func TestPrecisionRecallNoPositives(t *testing.T) {
	c, err := PrecisionRecall([]float64{0, 0}, []float64{0.3, 0.6})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, c.Precision)
	assert.Equal(t, []float64{1, 0}, c.Recall)
}

func TestPrecisionRecallErrors(t *testing.T) {
	_, err := PrecisionRecall([]float64{1}, []float64{0.1, 0.2})
	assert.ErrorIs(t, err, ErrLengthMismatch)
	_, err = PrecisionRecall(nil, nil)
	assert.Error(t, err)
}

func TestAUC(t *testing.T) {
	auc, err := AUC([]float64{0, 1, 2}, []float64{0, 1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, auc, 1e-12)

	auc, err = AUC([]float64{2, 1, 0}, []float64{0, 1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, auc, 1e-12)

	_, err = AUC([]float64{0, 2, 1}, []float64{0, 0, 0})
	assert.Error(t, err)
	_, err = AUC([]float64{0}, []float64{0})
	assert.Error(t, err)
}

type fixedPredictor struct {
	calls int
}

func (f *fixedPredictor) PredictBatch(inputs [][]float32) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		out[i] = in
	}
	return out, nil
}

func TestScores(t *testing.T) {
	// inputs double as predictions
	inputs := [][]float32{{0.2, 0.7, 0.1}, {0.1, 0.1, 0.8}, {0, 0, 1}}
	targets := [][]float32{{0, 1, 0}, {0, 0, 1}, {1, 0, 0}}

	ys, ss, err := Scores(&fixedPredictor{}, inputs, targets, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 1}, ys)
	assert.InDeltaSlice(t, []float64{0.9, 0.2, 0}, ss, 1e-6)

	ys, _, err = Scores(&fixedPredictor{}, inputs, targets, 2)
	require.NoError(t, err)
	assert.Len(t, ys, 2)

	ys, ss, err = Scores(&fixedPredictor{}, [][]float32{{0.3}}, [][]float32{{1}}, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, ys)
	assert.InDelta(t, 0.3, ss[0], 1e-6)

	_, _, err = Scores(&fixedPredictor{}, inputs, targets[:1], 0)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestScoresBatches(t *testing.T) {
	n := scoreBatch*2 + 5
	inputs := make([][]float32, n)
	targets := make([][]float32, n)
	for i := range inputs {
		inputs[i] = []float32{0.5}
		targets[i] = []float32{float32(i % 2)}
	}
	p := &fixedPredictor{}
	ys, _, err := Scores(p, inputs, targets, 0)
	require.NoError(t, err)
	assert.Len(t, ys, n)
	assert.Equal(t, 3, p.calls)
}

func TestPlotCurves(t *testing.T) {
	c, err := PrecisionRecall([]float64{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8})
	require.NoError(t, err)
	c.Name = "test"
	train := c
	train.Name = "train"

	path := filepath.Join(t.TempDir(), "plots", "pr.png")
	require.NoError(t, PlotCurves(path, "Precision Recall of Model", train, c))
	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, fi.Size())
}
