package simple

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/Noofbiz/flyvfly/datasets"
)

// mockDataset implements the minimal Dataset interface required by the trainer.
type mockDataset struct {
	inputs [][]float32
	labels [][]float32
}

func (m *mockDataset) Len() int { return len(m.inputs) }

func (m *mockDataset) Batch(indices []int) ([][]float32, [][]float32, error) {
	in := make([][]float32, len(indices))
	la := make([][]float32, len(indices))
	for i, idx := range indices {
		in[i] = m.inputs[idx]
		la[i] = m.labels[idx]
	}
	return in, la, nil
}

func meanLoss(preds, labels [][]float32) float64 {
	var sum float64
	for i := range preds {
		sum += crossEntropy(preds[i], labels[i])
	}
	return sum / float64(len(preds))
}

// separable builds n windows of width 4 whose label is 1 when the first
// feature is positive.
func separable(n int) *mockDataset {
	ds := &mockDataset{}
	for i := 0; i < n; i++ {
		x := float32(i%10) - 4.5
		y := float32((i/10)%5) - 2
		ds.inputs = append(ds.inputs, []float32{x, y, 0, 1})
		label := float32(0)
		if x > 0 {
			label = 1
		}
		ds.labels = append(ds.labels, []float32{label})
	}
	return ds
}

func TestModelTrainBinary(t *testing.T) {
	ds := separable(200)
	model, err := NewModel(Config{
		InputDim:     4,
		HiddenSizes:  []int{16},
		LearningRate: 0.1,
		Epochs:       40,
		BatchSize:    16,
		Seed:         42,
	})
	if err != nil {
		t.Fatalf("NewModel error: %v", err)
	}

	before, err := model.PredictBatch(ds.inputs)
	if err != nil {
		t.Fatalf("PredictBatch(before) error: %v", err)
	}
	lossBefore := meanLoss(before, ds.labels)

	lossTrain, err := model.TrainWithDataset(ds)
	if err != nil {
		t.Fatalf("TrainWithDataset error: %v", err)
	}
	after, err := model.PredictBatch(ds.inputs)
	if err != nil {
		t.Fatalf("PredictBatch(after) error: %v", err)
	}
	lossAfter := meanLoss(after, ds.labels)
	t.Logf("loss before=%.4f after=%.4f last epoch=%.4f", lossBefore, lossAfter, lossTrain)

	if !(lossAfter < lossBefore) {
		t.Fatalf("expected loss to decrease after training: before=%.4f after=%.4f", lossBefore, lossAfter)
	}
	correct := 0
	for i, p := range after {
		if p[0] < 0 || p[0] > 1 || math.IsNaN(float64(p[0])) {
			t.Fatalf("prediction %d is not a probability: %v", i, p[0])
		}
		if (p[0] > 0.5) == (ds.labels[i][0] == 1) {
			correct++
		}
	}
	if acc := float64(correct) / float64(len(after)); acc < 0.9 {
		t.Fatalf("expected accuracy >= 0.9, got %.3f", acc)
	}
}

func TestModelSoftmaxOutput(t *testing.T) {
	model, err := NewModel(Config{InputDim: 3, OutputDim: 4, Seed: 1})
	if err != nil {
		t.Fatalf("NewModel error: %v", err)
	}
	preds, err := model.PredictBatch([][]float32{{1, 2, 3}, {-5, 0, 5}})
	if err != nil {
		t.Fatalf("PredictBatch error: %v", err)
	}
	for i, p := range preds {
		if len(p) != 4 {
			t.Fatalf("prediction %d has %d columns, want 4", i, len(p))
		}
		var sum float32
		for _, v := range p {
			sum += v
		}
		if math.Abs(float64(sum)-1) > 1e-5 {
			t.Fatalf("prediction %d sums to %f", i, sum)
		}
	}

	if _, err := model.PredictBatch([][]float32{{1, 2}}); err == nil {
		t.Fatalf("expected error for wrong input width")
	}
}

func TestNewModelValidates(t *testing.T) {
	if _, err := NewModel(Config{}); err == nil {
		t.Fatalf("expected error for missing input dim")
	}
	if _, err := NewModel(Config{InputDim: 2, HiddenSizes: []int{0}}); err == nil {
		t.Fatalf("expected error for zero hidden size")
	}
	m, err := NewModel(Config{InputDim: 2})
	if err != nil {
		t.Fatalf("NewModel error: %v", err)
	}
	if m.OutputDim() != 1 || m.InputDim() != 2 || m.Config.BatchSize != 32 {
		t.Fatalf("unexpected defaults: %+v", m.Config)
	}
}

func TestClipGradients(t *testing.T) {
	gradW := [][][]float32{{{3, 0}}}
	gradB := [][]float32{{4}}
	clipGradients(gradW, gradB, 1)
	if math.Abs(float64(gradW[0][0][0])-0.6) > 1e-6 || math.Abs(float64(gradB[0][0])-0.8) > 1e-6 {
		t.Fatalf("unexpected clipped gradients: %v %v", gradW, gradB)
	}

	gradB = [][]float32{{0.5}}
	gradW = [][][]float32{{{0}}}
	clipGradients(gradW, gradB, 1)
	if gradB[0][0] != 0.5 {
		t.Fatalf("gradient below the norm was scaled: %v", gradB[0][0])
	}
}

func TestSaveLoad(t *testing.T) {
	model, err := NewModel(Config{InputDim: 4, OutputDim: 3, HiddenSizes: []int{8, 4}, Seed: 9})
	if err != nil {
		t.Fatalf("NewModel error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "models", "model.gob")
	if err := model.Save(path); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	in := [][]float32{{0.1, -0.2, 0.3, 0.4}}
	want, _ := model.PredictBatch(in)
	got, err := loaded.PredictBatch(in)
	if err != nil {
		t.Fatalf("PredictBatch error: %v", err)
	}
	for j := range want[0] {
		if want[0][j] != got[0][j] {
			t.Fatalf("prediction mismatch at %d: want %v got %v", j, want[0], got[0])
		}
	}
	if loaded.ID() == "" || loaded.ID() != model.ID() {
		t.Fatalf("model id not restored: want %q got %q", model.ID(), loaded.ID())
	}
	if loaded.Config.HiddenSizes[1] != 4 {
		t.Fatalf("config not restored: %+v", loaded.Config)
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp.*"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.gob")); err == nil {
		t.Fatalf("expected error for missing model")
	}
}

// TestModelTrainWithFlyDataset runs a short training loop on synthetic
// movies loaded through datasets.Fly.
func TestModelTrainWithFlyDataset(t *testing.T) {
	cfg := datasets.DefaultConfig(datasets.SchemeMulticlass)
	cfg.MovieDir = t.TempDir()
	cfg.Actions = []int{0, 1}
	cfg.TrainMovies = []int{1}
	cfg.ValidationMovies = []int{2}
	for _, movie := range []int{1, 2} {
		tr := datasets.NewTracking(datasets.NumFlies, 30, 2)
		tr.Movie = movie
		for f := 0; f < 30; f++ {
			tr.Set(0, f, 0, float64(f%7))
			tr.Set(1, f, 1, float64(f%5))
		}
		b := datasets.NewBouts(datasets.NumFlies, 2)
		b.Add(0, 0, datasets.Interval{Start: 5, Stop: 12})
		b.Add(1, 1, datasets.Interval{Start: 15, Stop: 20})
		if err := datasets.WriteMovie(cfg, tr, b); err != nil {
			t.Fatalf("WriteMovie error: %v", err)
		}
	}

	ds, err := datasets.NewFly(cfg, datasets.Options{Seed: 3})
	if err != nil {
		t.Fatalf("NewFly error: %v", err)
	}
	if err := ds.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	model, err := NewModel(Config{
		InputDim:  cfg.WindowLength * 2,
		OutputDim: cfg.LabelWidth(),
		Epochs:    2,
		Seed:      123,
	})
	if err != nil {
		t.Fatalf("NewModel error: %v", err)
	}
	loss, err := model.TrainWithDataset(ds)
	if err != nil {
		t.Fatalf("TrainWithDataset error: %v", err)
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		t.Fatalf("non-finite loss: %v", loss)
	}

	ds.SetUseSet(datasets.SplitValidation)
	preds, err := model.PredictBatch(ds.Inputs(datasets.SplitValidation))
	if err != nil {
		t.Fatalf("PredictBatch error: %v", err)
	}
	if len(preds) != 2*(30-cfg.WindowLength) {
		t.Fatalf("unexpected prediction count %d", len(preds))
	}
}
