// Package evaluate scores a trained model on a dataset split and measures
// it with precision/recall curves.
package evaluate

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"gonum.org/v1/gonum/integrate"
)

var ErrLengthMismatch = errors.New("targets and scores differ in length")

// Predictor maps a batch of windows to per-column probabilities.
// simple.Model and monte.Monte both satisfy it.
type Predictor interface {
	PredictBatch(inputs [][]float32) ([][]float32, error)
}

// Curve is a precision/recall curve. Precision and Recall have one more
// point than Thresholds: the final (recall 0, precision 1) anchor.
type Curve struct {
	Name       string
	Precision  []float64
	Recall     []float64
	Thresholds []float64
}

// PrecisionRecall computes the curve for binary targets and scores.
// Thresholds are the distinct scores in increasing order, truncated at the
// lowest threshold that already reaches full recall. With no positive
// targets recall is taken as 1.
func PrecisionRecall(targets, scores []float64) (Curve, error) {
	if len(targets) != len(scores) {
		return Curve{}, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(targets), len(scores))
	}
	if len(targets) == 0 {
		return Curve{}, errors.New("no scores to evaluate")
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	// Cumulative true/false positives at the last index of each distinct score.
	var tps, fps, thresholds []float64
	var tp float64
	for k, i := range order {
		if targets[i] > 0 {
			tp++
		}
		if k+1 < len(order) && scores[order[k+1]] == scores[i] {
			continue
		}
		tps = append(tps, tp)
		fps = append(fps, float64(k+1)-tp)
		thresholds = append(thresholds, scores[i])
	}

	total := tps[len(tps)-1]
	last := sort.SearchFloat64s(tps, total)

	c := Curve{
		Precision:  make([]float64, 0, last+2),
		Recall:     make([]float64, 0, last+2),
		Thresholds: make([]float64, 0, last+1),
	}
	for i := last; i >= 0; i-- {
		prec := 0.0
		if n := tps[i] + fps[i]; n > 0 {
			prec = tps[i] / n
		}
		rec := 1.0
		if total > 0 {
			rec = tps[i] / total
		}
		c.Precision = append(c.Precision, prec)
		c.Recall = append(c.Recall, rec)
		c.Thresholds = append(c.Thresholds, thresholds[i])
	}
	c.Precision = append(c.Precision, 1)
	c.Recall = append(c.Recall, 0)
	return c, nil
}

// AUC integrates y over x with the trapezoidal rule. x must be monotonic;
// decreasing x (as in Curve.Recall) is integrated in reverse.
func AUC(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(x), len(y))
	}
	if len(x) < 2 {
		return 0, fmt.Errorf("at least 2 points are needed to compute area under curve, got %d", len(x))
	}
	xs, ys := slices.Clone(x), slices.Clone(y)
	switch {
	case sort.Float64sAreSorted(xs):
	case sort.Float64sAreSorted(reversed(xs)):
		slices.Reverse(xs)
		slices.Reverse(ys)
	default:
		return 0, errors.New("x is neither increasing nor decreasing")
	}
	return integrate.Trapezoidal(xs, ys), nil
}

func reversed(x []float64) []float64 {
	r := slices.Clone(x)
	slices.Reverse(r)
	return r
}

// AUC is the area under the curve's precision over recall.
func (c Curve) AUC() (float64, error) {
	return AUC(c.Recall, c.Precision)
}

// Score reduces one prediction and label to binary form. A single column is
// used as is; with several columns the last one is "no action" and the
// score is the probability of any action.
func Score(pred, label []float32) (target, score float64) {
	if len(pred) == 1 {
		return float64(label[0]), float64(pred[0])
	}
	last := len(pred) - 1
	return 1 - float64(label[last]), 1 - float64(pred[last])
}

const scoreBatch = 1024

// Scores runs p over the first limit inputs (all when limit <= 0) and
// returns binary targets and scores.
func Scores(p Predictor, inputs, targets [][]float32, limit int) ([]float64, []float64, error) {
	if len(inputs) != len(targets) {
		return nil, nil, fmt.Errorf("%w: %d inputs, %d targets", ErrLengthMismatch, len(inputs), len(targets))
	}
	n := len(inputs)
	if limit > 0 {
		n = min(n, limit)
	}
	ys := make([]float64, 0, n)
	ss := make([]float64, 0, n)
	for start := 0; start < n; start += scoreBatch {
		end := min(start+scoreBatch, n)
		preds, err := p.PredictBatch(inputs[start:end])
		if err != nil {
			return nil, nil, fmt.Errorf("predict rows %d-%d: %w", start, end, err)
		}
		for i, pred := range preds {
			label := targets[start+i]
			if len(pred) != len(label) {
				return nil, nil, fmt.Errorf("row %d: prediction has %d columns, label %d", start+i, len(pred), len(label))
			}
			y, s := Score(pred, label)
			ys = append(ys, y)
			ss = append(ss, s)
		}
	}
	return ys, ss, nil
}
