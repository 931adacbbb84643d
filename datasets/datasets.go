package datasets

import "github.com/gomlx/gomlx/pkg/core/tensors"

// This package turns the Fly-vs-Fly tracking movies into examples suitable
// for model training.
//
// Layout and intended usage:
//
// Readers
//   - ReadTracking / ReadBouts parse movieN_feat.mat (or movieN_track.mat)
//     and movieN_actions.mat under Config.MovieDir.
//   - Stats standardizes each fly's features with statistics fitted on the
//     training movies only (see ComputeStats, LoadStats).
//
// Transform
//   - Windows slices each fly's frames into overlapping windows.
//   - BinaryLabels / MulticlassLabels align the action bouts to windows.
//   - Rebalance thins "no action" windows and replicates action windows.
//
// Fly
//   - Wraps the above into the Dataset contract consumed by training code,
//     with a train variant (NewFly) and a predict/eval variant
//     (NewFlyPredict). Examples are held in memory once loaded; a movie is
//     small enough for that.
//   - Also exposes Len/Example/Batch for the simple trainer and Yield/Reset
//     for gomlx training loops.

// Split names one partition of the movies.
type Split string

const (
	SplitTrain      Split = "train"
	SplitValidation Split = "validation"
	SplitTest       Split = "test"
)

// Dataset is the contract a training loop relies on: load once, then read
// inputs and targets per split and draw mini-batches.
type Dataset interface {
	// Load populates every split. Calling it again is a no-op.
	Load() error
	Inputs(split Split) [][]float32
	Targets(split Split) [][]float32
	// MiniBatch returns the example for batchIdx from the active split.
	MiniBatch(batchIdx int) (inputs, targets []float32, err error)
	// ExtractBatch returns one batch (row) of data.
	ExtractBatch(data [][]float32, batch int) []float32
}

// Batcher is the in-memory batch surface shared with the simple trainer
// and gomlx's train.Dataset.
type Batcher interface {
	Len() int
	Example(i int) (inputs []float32, labels []float32, err error)
	Batch(indices []int) (inputs [][]float32, labels [][]float32, err error)
	Shuffle(seed int64)

	Name() string
	Yield() (any, []*tensors.Tensor, []*tensors.Tensor, error)
	Reset()
}
