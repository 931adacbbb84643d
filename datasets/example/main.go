package main

// Example command that writes a couple of synthetic Fly-vs-Fly movies to a
// temporary directory, loads them through the Fly dataset and converts a
// small batch into gomlx tensors.
//
// Usage:
//   go run ./datasets/example
//
// Pass -dir to point at a real movie directory instead; the synthetic
// movies are only written when -dir is empty.

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/Noofbiz/flyvfly/datasets"
)

func writeSynthetic(cfg datasets.Config, movies []int) error {
	const frames, features = 200, 4
	for _, m := range movies {
		t := datasets.NewTracking(datasets.NumFlies, frames, features)
		t.Movie = m
		for fly := 0; fly < datasets.NumFlies; fly++ {
			for f := 0; f < frames; f++ {
				for k := 0; k < features; k++ {
					t.Set(fly, f, k, math.Sin(float64(f*(k+1)+fly*m)/10))
				}
			}
		}
		b := datasets.NewBouts(datasets.NumFlies, 1)
		b.Add(0, 0, datasets.Interval{Start: 40, Stop: 60}, datasets.Interval{Start: 120, Stop: 125})
		b.Add(1, 0, datasets.Interval{Start: 90, Stop: 110})
		if err := datasets.WriteMovie(cfg, t, b); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	dir := flag.String("dir", "", "movie directory (default: synthetic movies in a temp dir)")
	flag.Parse()

	cfg := datasets.DefaultConfig(datasets.SchemeBinary)
	cfg.Standardize = false
	if *dir != "" {
		cfg.MovieDir = datasets.ExpandHome(*dir)
	} else {
		tmp, err := os.MkdirTemp("", "flyvfly-example")
		if err != nil {
			log.Fatalf("failed to create temp dir: %v", err)
		}
		defer os.RemoveAll(tmp)
		cfg.MovieDir = tmp
		cfg.TrainMovies = []int{1, 2}
		cfg.ValidationMovies = []int{3}
		if err := writeSynthetic(cfg, []int{1, 2, 3}); err != nil {
			log.Fatalf("failed to write synthetic movies: %v", err)
		}
	}

	movies, err := datasets.FindMovies(cfg.MovieDir)
	if err != nil {
		log.Fatalf("failed to find movies: %v", err)
	}
	fmt.Printf("Movies in %s: %v\n", cfg.MovieDir, movies)

	ds, err := datasets.NewFly(cfg, datasets.DefaultOptions())
	if err != nil {
		log.Fatalf("failed to create dataset: %v", err)
	}
	if err := ds.Load(); err != nil {
		log.Fatalf("failed to load dataset: %v", err)
	}
	for _, split := range ds.Splits() {
		fmt.Printf("%s: %d examples\n", split, len(ds.Inputs(split)))
	}

	n := min(8, ds.Len())
	if n == 0 {
		return
	}
	indices := make([]int, n)
	for i := range n {
		indices[i] = i
	}
	inputs, labels, err := ds.Batch(indices)
	if err != nil {
		log.Fatalf("failed to build batch: %v", err)
	}
	flat, err := datasets.MakeBatchFlat(inputs, labels)
	if err != nil {
		log.Fatalf("failed to flatten batch: %v", err)
	}
	inT, laT, err := flat.ToGomlxTensors()
	if err != nil {
		log.Fatalf("failed to convert batch to gomlx tensors: %v", err)
	}
	fmt.Printf("Created tensors: input=%T label=%T\n", inT, laT)
	fmt.Printf("  Input shape: [%d, %d]\n", flat.BatchSize, flat.InputDim)
	fmt.Printf("  Label shape: [%d, %d]\n", flat.BatchSize, flat.LabelDim)
	fmt.Printf("  First example label: %v\n", labels[0])
}
