package datasets

import (
	"errors"
	"fmt"
	"math"

	"github.com/Noofbiz/flyvfly/matfile"
)

var ErrBadShape = errors.New("unexpected array shape")

// Tracking is one movie's per-fly feature matrix with shape
// (flies, frames, features), stored row-major.
type Tracking struct {
	Movie    int
	Flies    int
	Frames   int
	Features int
	Data     []float64
	Names    []string
}

// NewTracking allocates a zeroed tracking matrix.
func NewTracking(flies, frames, features int) *Tracking {
	return &Tracking{
		Flies:    flies,
		Frames:   frames,
		Features: features,
		Data:     make([]float64, flies*frames*features),
	}
}

func (t *Tracking) offset(fly, frame, feature int) int {
	return (fly*t.Frames+frame)*t.Features + feature
}

// At returns the value for (fly, frame, feature).
func (t *Tracking) At(fly, frame, feature int) float64 {
	return t.Data[t.offset(fly, frame, feature)]
}

// Set stores v at (fly, frame, feature).
func (t *Tracking) Set(fly, frame, feature int, v float64) {
	t.Data[t.offset(fly, frame, feature)] = v
}

// FlyData is the frames×features block of one fly. It aliases Data.
func (t *Tracking) FlyData(fly int) []float64 {
	n := t.Frames * t.Features
	return t.Data[fly*n : (fly+1)*n]
}

// ZeroNaN replaces NaN entries with 0 and returns how many were replaced.
func (t *Tracking) ZeroNaN() int {
	n := 0
	for i, v := range t.Data {
		if math.IsNaN(v) {
			t.Data[i] = 0
			n++
		}
	}
	return n
}

// trackingFromArray converts MATLAB's column-major (flies, frames,
// features) array. A trailing singleton features dimension may be absent.
func trackingFromArray(a *matfile.Array) (*Tracking, error) {
	if !a.Class.IsNumeric() {
		return nil, fmt.Errorf("%w: tracking data is %s", ErrBadShape, a.Class)
	}
	var flies, frames, features int
	switch len(a.Dims) {
	case 2:
		flies, frames, features = a.Dims[0], a.Dims[1], 1
	case 3:
		flies, frames, features = a.Dims[0], a.Dims[1], a.Dims[2]
	default:
		return nil, fmt.Errorf("%w: tracking dims %v", ErrBadShape, a.Dims)
	}
	t := NewTracking(flies, frames, features)
	for k := 0; k < features; k++ {
		for j := 0; j < frames; j++ {
			for i := 0; i < flies; i++ {
				t.Set(i, j, k, a.Real[i+j*flies+k*flies*frames])
			}
		}
	}
	return t, nil
}

// ToArray converts t back to a MATLAB column-major array.
func (t *Tracking) ToArray(name string) *matfile.Array {
	data := make([]float64, len(t.Data))
	for k := 0; k < t.Features; k++ {
		for j := 0; j < t.Frames; j++ {
			for i := 0; i < t.Flies; i++ {
				data[i+j*t.Flies+k*t.Flies*t.Frames] = t.At(i, j, k)
			}
		}
	}
	return matfile.NewDouble(name, []int{t.Flies, t.Frames, t.Features}, data)
}

// ReadTracking reads the feat (or trk, with UseTrk) struct of a movie.
func ReadTracking(cfg Config, movie int) (*Tracking, error) {
	path := cfg.FeaturePath(movie)
	f, err := matfile.Open(path)
	if err != nil {
		return nil, err
	}
	varName := "feat"
	if cfg.UseTrk {
		varName = "trk"
	}
	s, err := f.Var(varName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	data, err := s.Field("data")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t, err := trackingFromArray(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if names, err := s.Field("names"); err == nil {
		t.Names = names.Strings()
	}
	t.Movie = movie
	return t, nil
}

// Interval is a [Start, Stop) frame range during which an action occurs.
type Interval struct {
	Start int
	Stop  int
}

// Bouts holds the action intervals of one movie per (fly, action).
type Bouts struct {
	Movie   int
	Names   []string
	flies   int
	actions int
	ivs     [][]Interval
}

// NewBouts allocates an empty bout table.
func NewBouts(flies, actions int) *Bouts {
	return &Bouts{flies: flies, actions: actions, ivs: make([][]Interval, flies*actions)}
}

func (b *Bouts) Flies() int   { return b.flies }
func (b *Bouts) Actions() int { return b.actions }

// Add appends intervals for (fly, action).
func (b *Bouts) Add(fly, action int, ivs ...Interval) {
	i := fly*b.actions + action
	b.ivs[i] = append(b.ivs[i], ivs...)
}

// Intervals returns the intervals of (fly, action).
func (b *Bouts) Intervals(fly, action int) ([]Interval, error) {
	if fly < 0 || fly >= b.flies || action < 0 || action >= b.actions {
		return nil, fmt.Errorf("%w: bouts (%d, %d) of %dx%d", ErrBadShape, fly, action, b.flies, b.actions)
	}
	return b.ivs[fly*b.actions+action], nil
}

// boutsFromArray reads the flies×actions cell whose entries are n×3
// [start, stop, switched] matrices. Only the first two columns are used.
func boutsFromArray(a *matfile.Array) (*Bouts, error) {
	if a.Class != matfile.ClassCell || len(a.Dims) != 2 {
		return nil, fmt.Errorf("%w: bouts is %s %v", ErrBadShape, a.Class, a.Dims)
	}
	b := NewBouts(a.Dims[0], a.Dims[1])
	for fly := 0; fly < b.flies; fly++ {
		for action := 0; action < b.actions; action++ {
			c, err := a.Cell(fly, action)
			if err != nil {
				return nil, err
			}
			if c.Empty() {
				continue
			}
			if !c.Class.IsNumeric() || len(c.Dims) != 2 || c.Dims[1] < 2 {
				return nil, fmt.Errorf("%w: bouts{%d,%d} is %s %v", ErrBadShape, fly, action, c.Class, c.Dims)
			}
			rows := c.Dims[0]
			for r := 0; r < rows; r++ {
				b.Add(fly, action, Interval{Start: int(c.Real[r]), Stop: int(c.Real[r+rows])})
			}
		}
	}
	return b, nil
}

// ToArray converts b to a flies×actions cell of n×3 matrices with a zero
// "switched" column.
func (b *Bouts) ToArray(name string) *matfile.Array {
	cells := make([]*matfile.Array, b.flies*b.actions)
	for fly := 0; fly < b.flies; fly++ {
		for action := 0; action < b.actions; action++ {
			ivs := b.ivs[fly*b.actions+action]
			n := len(ivs)
			data := make([]float64, 3*n)
			for r, iv := range ivs {
				data[r] = float64(iv.Start)
				data[r+n] = float64(iv.Stop)
			}
			dims := []int{n, 3}
			if n == 0 {
				dims = []int{0, 0}
			}
			cells[fly+action*b.flies] = matfile.NewDouble("", dims, data)
		}
	}
	return matfile.NewCell(name, []int{b.flies, b.actions}, cells)
}

// ReadBouts reads the behs names and bouts cell of a movie.
func ReadBouts(cfg Config, movie int) (*Bouts, error) {
	path := cfg.ActionsPath(movie)
	f, err := matfile.Open(path)
	if err != nil {
		return nil, err
	}
	a, err := f.Var("bouts")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	b, err := boutsFromArray(a)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if behs, err := f.Var("behs"); err == nil {
		b.Names = behs.Strings()
	}
	b.Movie = movie
	return b, nil
}
