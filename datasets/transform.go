package datasets

import (
	"fmt"
	"slices"
)

// Examples holds flattened windows and their labels, row-aligned. Rows may
// alias each other after rebalancing; treat them as read-only.
type Examples struct {
	Inputs [][]float32
	Labels [][]float32
}

// Len is the number of examples.
func (e Examples) Len() int { return len(e.Inputs) }

// InputDim is the width of one window, or 0 when empty.
func (e Examples) InputDim() int {
	if len(e.Inputs) == 0 {
		return 0
	}
	return len(e.Inputs[0])
}

// LabelDim is the width of one label, or 0 when empty.
func (e Examples) LabelDim() int {
	if len(e.Labels) == 0 {
		return 0
	}
	return len(e.Labels[0])
}

// Stack concatenates examples in order.
func Stack(parts []Examples) Examples {
	n := 0
	for _, p := range parts {
		n += p.Len()
	}
	out := Examples{
		Inputs: make([][]float32, 0, n),
		Labels: make([][]float32, 0, n),
	}
	for _, p := range parts {
		out.Inputs = append(out.Inputs, p.Inputs...)
		out.Labels = append(out.Labels, p.Labels...)
	}
	return out
}

// Windows slices one fly's frames into overlapping windows of window
// frames, each flattened frame-major. It yields Frames-window rows: the
// last complete window is never produced.
//
// With useBoth every fly's frames go into each window, and the vector is
// reversed for flies other than 0.
func Windows(t *Tracking, fly, window int, useBoth bool) ([][]float32, error) {
	if fly < 0 || fly >= t.Flies {
		return nil, fmt.Errorf("%w: fly %d of %d", ErrBadShape, fly, t.Flies)
	}
	if window < 1 {
		return nil, fmt.Errorf("%w: window length %d", ErrInvalidConfig, window)
	}
	n := t.Frames - window
	if n < 0 {
		n = 0
	}
	mult := 1
	if useBoth {
		mult = t.Flies
	}
	width := window * t.Features * mult

	rows := make([][]float32, n)
	for i := 0; i < n; i++ {
		row := make([]float32, 0, width)
		if useBoth {
			for f := 0; f < t.Flies; f++ {
				row = appendFrames(row, t, f, i, window)
			}
			if fly != 0 {
				slices.Reverse(row)
			}
		} else {
			row = appendFrames(row, t, fly, i, window)
		}
		rows[i] = row
	}
	return rows, nil
}

func appendFrames(row []float32, t *Tracking, fly, start, window int) []float32 {
	lo := t.offset(fly, start, 0)
	hi := t.offset(fly, start+window, 0)
	for _, v := range t.Data[lo:hi] {
		row = append(row, float32(v))
	}
	return row
}

// sliceBounds clips [start, stop) the way NumPy slicing does for a
// sequence of length n.
func sliceBounds(start, stop, n int) (int, int) {
	clip := func(i int) int {
		if i < 0 {
			i += n
			if i < 0 {
				i = 0
			}
		}
		if i > n {
			i = n
		}
		return i
	}
	return clip(start), clip(stop)
}

func markRange(labels [][]float32, start, stop, col int) {
	lo, hi := sliceBounds(start, stop, len(labels))
	for i := lo; i < hi; i++ {
		labels[i][col] = 1
	}
}

func newLabels(rows, width int) [][]float32 {
	buf := make([]float32, rows*width)
	out := make([][]float32, rows)
	for i := range out {
		out[i] = buf[i*width : (i+1)*width : (i+1)*width]
	}
	return out
}

// BinaryLabels marks rows covered by the fly's intervals of action with 1.
// Intervals index window start positions directly.
func BinaryLabels(b *Bouts, fly, action, rows int) ([][]float32, error) {
	ivs, err := b.Intervals(fly, action)
	if err != nil {
		return nil, err
	}
	labels := newLabels(rows, 1)
	for _, iv := range ivs {
		markRange(labels, iv.Start, iv.Stop, 0)
	}
	return labels, nil
}

// MulticlassLabels builds one column per action plus a trailing "no action"
// column. Each interval is shifted left by window/2 so the label lands on
// the window whose center frame it covers, but only when the shifted start
// stays non-negative. Rows with no action get the "no action" bit.
// Overlapping actions are not reconciled.
func MulticlassLabels(b *Bouts, fly int, actions []int, rows, window int) ([][]float32, error) {
	half := window / 2
	width := len(actions) + 1
	labels := newLabels(rows, width)
	for col, action := range actions {
		ivs, err := b.Intervals(fly, action)
		if err != nil {
			return nil, err
		}
		for _, iv := range ivs {
			start, stop := iv.Start, iv.Stop
			if start-half >= 0 {
				start -= half
				stop -= half
			}
			markRange(labels, start, stop, col)
		}
	}
	for _, row := range labels {
		hit := false
		for _, v := range row[:width-1] {
			if v != 0 {
				hit = true
				break
			}
		}
		if !hit {
			row[width-1] = 1
		}
	}
	return labels, nil
}

// Transform windows one fly of a movie and labels the windows according to
// cfg.Scheme. A non-nil rb rebalances the result.
func Transform(cfg Config, t *Tracking, b *Bouts, fly int, rb *Rebalance) (Examples, error) {
	inputs, err := Windows(t, fly, cfg.WindowLength, cfg.UseBoth)
	if err != nil {
		return Examples{}, err
	}
	var labels [][]float32
	switch cfg.Scheme {
	case SchemeMulticlass:
		labels, err = MulticlassLabels(b, fly, cfg.Actions, len(inputs), cfg.WindowLength)
	default:
		labels, err = BinaryLabels(b, fly, cfg.Actions[0], len(inputs))
	}
	if err != nil {
		return Examples{}, fmt.Errorf("movie %d fly %d: %w", t.Movie, fly, err)
	}
	ex := Examples{Inputs: inputs, Labels: labels}
	if rb != nil {
		ex, _ = rb.Apply(ex, cfg.Scheme)
	}
	return ex, nil
}
