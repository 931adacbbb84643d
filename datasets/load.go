package datasets

import (
	"fmt"

	"k8s.io/klog/v2"
)

// LoadMovie reads one movie, zero-fills NaNs, optionally standardizes it,
// and transforms both flies. Fly 0's examples come first.
func LoadMovie(cfg Config, movie int, stats *Stats, rb *Rebalance) ([]Examples, error) {
	t, err := ReadTracking(cfg, movie)
	if err != nil {
		return nil, err
	}
	if z := t.ZeroNaN(); z > 0 {
		klog.V(1).Infof("movie %d: zero-filled %d NaN values", movie, z)
	}
	b, err := ReadBouts(cfg, movie)
	if err != nil {
		return nil, err
	}
	if stats != nil {
		if err := stats.Apply(t); err != nil {
			return nil, fmt.Errorf("standardize movie %d: %w", movie, err)
		}
	}

	out := make([]Examples, 0, NumFlies)
	for fly := 0; fly < NumFlies; fly++ {
		ex, err := Transform(cfg, t, b, fly, rb)
		if err != nil {
			return nil, err
		}
		klog.V(1).Infof("movie %d fly %d: %d examples", movie, fly, ex.Len())
		out = append(out, ex)
	}
	return out, nil
}

// LoadData loads every listed movie, returning one Examples per
// (movie, fly) in movie order. A non-nil rb rebalances each of them.
func LoadData(cfg Config, movies []int, rb *Rebalance) ([]Examples, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var stats *Stats
	if cfg.Standardize {
		s, err := LoadStats(cfg.StatsPath)
		if err != nil {
			return nil, err
		}
		stats = s
	}

	data := make([]Examples, 0, NumFlies*len(movies))
	for _, movie := range movies {
		ex, err := LoadMovie(cfg, movie, stats, rb)
		if err != nil {
			return nil, err
		}
		data = append(data, ex...)
	}
	return data, nil
}
