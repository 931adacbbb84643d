package monte

import (
	"testing"

	"github.com/Noofbiz/flyvfly/datasets"
)

// TestIntegrationWithFlyDataset writes synthetic movies where fly 0's first
// feature jumps during its action bout, then scores the test split against
// the training split as reference.
func TestIntegrationWithFlyDataset(t *testing.T) {
	cfg := datasets.DefaultConfig(datasets.SchemeBinary)
	cfg.MovieDir = t.TempDir()
	cfg.Standardize = false
	cfg.TrainMovies = []int{1, 2}
	cfg.TestMovies = []int{3}

	const frames = 40
	for _, movie := range []int{1, 2, 3} {
		tr := datasets.NewTracking(datasets.NumFlies, frames, 2)
		tr.Movie = movie
		for f := 0; f < frames; f++ {
			v := float64((f*movie)%3) * 0.1
			if f >= 10 && f < 22 {
				v += 5
			}
			tr.Set(0, f, 0, v)
			tr.Set(0, f, 1, float64(f%2))
			tr.Set(1, f, 1, float64(f%4))
		}
		b := datasets.NewBouts(datasets.NumFlies, 1)
		b.Add(0, 0, datasets.Interval{Start: 10, Stop: 20})
		if err := datasets.WriteMovie(cfg, tr, b); err != nil {
			t.Fatalf("WriteMovie error: %v", err)
		}
	}

	ds, err := datasets.NewFlyPredict(cfg, datasets.Options{UseSet: datasets.SplitTrain})
	if err != nil {
		t.Fatalf("NewFlyPredict error: %v", err)
	}
	if err := ds.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	m, err := NewMonte(ds, 5)
	if err != nil {
		t.Fatalf("failed to create Monte: %v", err)
	}
	m.Seed(42)

	inputs := ds.Inputs(datasets.SplitTest)
	targets := ds.Targets(datasets.SplitTest)
	preds, err := m.PredictBatch(inputs)
	if err != nil {
		t.Fatalf("PredictBatch error: %v", err)
	}
	if len(preds) != len(inputs) {
		t.Fatalf("expected %d predictions, got %d", len(inputs), len(preds))
	}

	var posSum, negSum float64
	var posN, negN int
	for i, p := range preds {
		if p[0] < 0 || p[0] > 1 {
			t.Fatalf("prediction %d out of [0,1]: %v", i, p[0])
		}
		if targets[i][0] == 1 {
			posSum += float64(p[0])
			posN++
		} else {
			negSum += float64(p[0])
			negN++
		}
	}
	if posN == 0 || negN == 0 {
		t.Fatalf("test split should contain both classes: pos=%d neg=%d", posN, negN)
	}
	posMean, negMean := posSum/float64(posN), negSum/float64(negN)
	t.Logf("mean score: positives %.3f negatives %.3f", posMean, negMean)
	if posMean <= negMean {
		t.Fatalf("expected positives to score higher: %.3f <= %.3f", posMean, negMean)
	}
}
