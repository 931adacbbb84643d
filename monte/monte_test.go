package monte

import (
	"math"
	"testing"
)

// mockDS is a small in-memory dataset implementing the Dataset interface used by Monte.
type mockDS struct {
	inputs [][]float32
	labels [][]float32
}

func (m *mockDS) Len() int { return len(m.inputs) }

func (m *mockDS) Example(i int) ([]float32, []float32, error) {
	if i < 0 || i >= len(m.inputs) {
		return nil, nil, nil
	}
	return m.inputs[i], m.labels[i], nil
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestEstimateK1Deterministic(t *testing.T) {
	// With K=1 every draw picks the single nearest neighbor.
	ds := &mockDS{
		inputs: [][]float32{
			{0, 0, 10},
			{100, 100, 10},
			{-100, -50, 9},
		},
		labels: [][]float32{
			{1, 0},
			{0, 1},
			{0, 1},
		},
	}
	m, err := NewMonte(ds, 1)
	if err != nil {
		t.Fatalf("NewMonte returned error: %v", err)
	}
	m.Seed(999)

	est, err := m.Estimate([]float32{1, 1, 10})
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}
	if est[0] != 1 || est[1] != 0 {
		t.Fatalf("expected nearest label [1 0], got %v", est)
	}
}

func TestEstimateIsProbability(t *testing.T) {
	ds := &mockDS{}
	for i := 0; i < 40; i++ {
		x := float32(i)
		label := float32(0)
		if i >= 20 {
			label = 1
		}
		ds.inputs = append(ds.inputs, []float32{x, 0})
		ds.labels = append(ds.labels, []float32{label})
	}
	m, err := NewMonte(ds, 6)
	if err != nil {
		t.Fatalf("NewMonte returned error: %v", err)
	}
	m.Seed(12345)

	preds, err := m.PredictBatch([][]float32{{2, 0}, {37, 0}, {19.5, 0}})
	if err != nil {
		t.Fatalf("PredictBatch returned error: %v", err)
	}
	for i, p := range preds {
		if p[0] < 0 || p[0] > 1 {
			t.Fatalf("prediction %d out of [0,1]: %v", i, p[0])
		}
	}
	if preds[0][0] != 0 {
		t.Errorf("expected 0 far inside the negative region, got %v", preds[0][0])
	}
	if preds[1][0] != 1 {
		t.Errorf("expected 1 far inside the positive region, got %v", preds[1][0])
	}
	if preds[2][0] <= 0 || preds[2][0] >= 1 {
		t.Errorf("expected a mixed estimate at the boundary, got %v", preds[2][0])
	}
}

func TestEstimateExactMean(t *testing.T) {
	ds := &mockDS{
		inputs: [][]float32{{0}, {2}},
		labels: [][]float32{{1}, {0}},
	}
	m, err := NewMonte(ds, 2)
	if err != nil {
		t.Fatalf("NewMonte returned error: %v", err)
	}
	m.NumSims = 0

	// Equidistant neighbors get equal weight.
	est, err := m.Estimate([]float32{1})
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}
	if !approxEqual(float64(est[0]), 0.5, 1e-6) {
		t.Fatalf("expected 0.5, got %v", est[0])
	}
}

func TestEstimateErrors(t *testing.T) {
	if _, err := NewMonte(nil, 1); err == nil {
		t.Fatalf("expected error for nil dataset")
	}
	if _, err := NewMonte(&mockDS{}, 0); err == nil {
		t.Fatalf("expected error for k=0")
	}

	m, err := NewMonte(&mockDS{}, 3)
	if err != nil {
		t.Fatalf("NewMonte returned error: %v", err)
	}
	if _, err := m.Estimate([]float32{1}); err == nil {
		t.Fatalf("expected error for empty dataset")
	}

	m.DS = &mockDS{inputs: [][]float32{{1, 2}}, labels: [][]float32{{1}}}
	if _, err := m.Estimate([]float32{1}); err == nil {
		t.Fatalf("expected error when no example matches the query width")
	}
}
