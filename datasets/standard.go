package datasets

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"
)

// NumFlies is the number of flies tracked per movie.
const NumFlies = 2

// Stats holds per-fly feature means and standard deviations.
type Stats struct {
	Mean [NumFlies][]float64
	Std  [NumFlies][]float64
}

// Features is the number of features the statistics cover.
func (s *Stats) Features() int { return len(s.Mean[0]) }

// Apply standardizes t in place: (x - mean) / std per fly and feature.
// A zero std is treated as 1. Applying it twice is not a no-op.
func (s *Stats) Apply(t *Tracking) error {
	if t.Flies != NumFlies {
		return fmt.Errorf("%w: stats cover %d flies, tracking has %d", ErrBadShape, NumFlies, t.Flies)
	}
	if s.Features() != t.Features {
		return fmt.Errorf("%w: stats cover %d features, tracking has %d", ErrBadShape, s.Features(), t.Features)
	}
	if t.Frames == 0 || t.Features == 0 {
		return nil
	}
	for fly := 0; fly < NumFlies; fly++ {
		m := mat.NewDense(t.Frames, t.Features, t.FlyData(fly))
		mean, std := s.Mean[fly], s.Std[fly]
		m.Apply(func(_, j int, v float64) float64 {
			sd := std[j]
			if sd == 0 {
				sd = 1
			}
			return (v - mean[j]) / sd
		}, m)
	}
	return nil
}

// FitStats computes population mean/std per fly over the frames of all
// given tracking matrices. Zero std is stored as 1.
func FitStats(movies []*Tracking) (*Stats, error) {
	if len(movies) == 0 {
		return nil, fmt.Errorf("%w: no movies to fit statistics on", ErrBadShape)
	}
	features := movies[0].Features
	total := 0
	for _, t := range movies {
		if t.Flies != NumFlies || t.Features != features {
			return nil, fmt.Errorf("%w: movie %d is %dx%dx%d, want %dx*x%d",
				ErrBadShape, t.Movie, t.Flies, t.Frames, t.Features, NumFlies, features)
		}
		total += t.Frames
	}
	if total == 0 || features == 0 {
		return nil, fmt.Errorf("%w: no frames to fit statistics on", ErrBadShape)
	}

	s := &Stats{}
	col := make([]float64, total)
	for fly := 0; fly < NumFlies; fly++ {
		buf := make([]float64, 0, total*features)
		for _, t := range movies {
			buf = append(buf, t.FlyData(fly)...)
		}
		m := mat.NewDense(total, features, buf)
		s.Mean[fly] = make([]float64, features)
		s.Std[fly] = make([]float64, features)
		for j := 0; j < features; j++ {
			mat.Col(col, j, m)
			mean, std := stat.PopMeanStdDev(col, nil)
			if std == 0 {
				std = 1
			}
			s.Mean[fly][j], s.Std[fly][j] = mean, std
		}
	}
	return s, nil
}

// ComputeStats fits statistics over the training movies of cfg, NaNs
// zero-filled. It does not standardize anything.
func ComputeStats(cfg Config) (*Stats, error) {
	movies := make([]*Tracking, 0, len(cfg.TrainMovies))
	for _, n := range cfg.TrainMovies {
		t, err := ReadTracking(cfg, n)
		if err != nil {
			return nil, err
		}
		if z := t.ZeroNaN(); z > 0 {
			klog.V(1).Infof("movie %d: zero-filled %d NaN values", n, z)
		}
		movies = append(movies, t)
	}
	return FitStats(movies)
}

// LoadStats reads the four-row text matrix written by Write: mean of fly
// 0, mean of fly 1, std of fly 0, std of fly 1.
func LoadStats(path string) (*Stats, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stats %s: %w", path, err)
	}
	defer fh.Close()

	var rows [][]float64
	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("stats %s row %d: %w", path, len(rows), err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stats %s: %w", path, err)
	}
	if len(rows) != 2*NumFlies {
		return nil, fmt.Errorf("%w: stats %s has %d rows, want %d", ErrBadShape, path, len(rows), 2*NumFlies)
	}
	for _, r := range rows[1:] {
		if len(r) != len(rows[0]) {
			return nil, fmt.Errorf("%w: stats %s rows differ in length", ErrBadShape, path)
		}
	}

	s := &Stats{}
	for fly := 0; fly < NumFlies; fly++ {
		s.Mean[fly] = rows[fly]
		s.Std[fly] = rows[fly+NumFlies]
	}
	return s, nil
}

// Write stores s as space-delimited %.18e text.
func (s *Stats) Write(path string) error {
	var sb strings.Builder
	rows := [][]float64{s.Mean[0], s.Mean[1], s.Std[0], s.Std[1]}
	for _, r := range rows {
		for i, v := range r {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strconv.FormatFloat(v, 'e', 18, 64))
		}
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("write stats %s: %w", path, err)
	}
	return nil
}
