package datasets

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"k8s.io/klog/v2"
)

var (
	ErrDistNotImplemented       = errors.New("distributed loading not implemented for Fly")
	ErrMacroBatchNotImplemented = errors.New("macro batching not implemented for Fly")
	ErrNotLoaded                = errors.New("dataset not loaded")
	ErrUnknownSplit             = errors.New("split not loaded")
)

// Options are the recognized dataset options.
type Options struct {
	// MacroBatched and DistFlag must stay false.
	MacroBatched bool
	DistFlag     bool

	// UseSet selects the split MiniBatch, Batch and Yield read from.
	UseSet Split

	// NumTestSample caps how many examples an evaluation scores; 0 means all.
	NumTestSample int

	// BatchSize is the number of examples per Yield.
	BatchSize int

	// Seed drives random mini-batch selection. Zero uses the clock.
	Seed int64
}

// DefaultOptions returns UseSet train and a batch size of 32.
func DefaultOptions() Options {
	return Options{UseSet: SplitTrain, BatchSize: 32}
}

type splitPlan struct {
	split  Split
	movies []int
	rb     *Rebalance
}

// Fly holds the windowed Fly-vs-Fly examples for each split. It starts
// unloaded; Load fills every split of its plan at once.
type Fly struct {
	cfg     Config
	opts    Options
	predict bool

	data   map[Split]Examples
	rand   *rand.Rand
	cursor int
}

var (
	_ Dataset = (*Fly)(nil)
	_ Batcher = (*Fly)(nil)
)

// NewFly creates the training variant: the training split is rebalanced,
// and the validation split is too under the binary scheme.
func NewFly(cfg Config, opts Options) (*Fly, error) {
	return newFly(cfg, opts, false)
}

// NewFlyPredict creates the predict/eval variant with train and test
// splits. Under the multiclass scheme the training split is rebalanced with
// PredictPosFrac.
func NewFlyPredict(cfg Config, opts Options) (*Fly, error) {
	return newFly(cfg, opts, true)
}

func newFly(cfg Config, opts Options, predict bool) (*Fly, error) {
	if opts.DistFlag {
		return nil, ErrDistNotImplemented
	}
	if opts.MacroBatched {
		return nil, ErrMacroBatchNotImplemented
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.UseSet == "" {
		opts.UseSet = SplitTrain
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Fly{
		cfg:     cfg,
		opts:    opts,
		predict: predict,
		rand:    rand.New(rand.NewSource(seed)),
	}, nil
}

func (f *Fly) plans() []splitPlan {
	train := &Rebalance{NegFrac: f.cfg.NegFrac, PosFrac: f.cfg.PosFrac}
	multi := f.cfg.Scheme == SchemeMulticlass
	switch {
	case !f.predict && !multi:
		return []splitPlan{
			{SplitTrain, f.cfg.TrainMovies, train},
			{SplitValidation, f.cfg.ValidationMovies, train},
		}
	case !f.predict:
		return []splitPlan{
			{SplitTrain, f.cfg.TrainMovies, train},
			{SplitValidation, f.cfg.ValidationMovies, nil},
		}
	case multi:
		predictTrain := &Rebalance{NegFrac: f.cfg.NegFrac, PosFrac: f.cfg.PredictPosFrac}
		return []splitPlan{
			{SplitTrain, f.cfg.TrainMovies, predictTrain},
			{SplitTest, f.cfg.TestMovies, nil},
		}
	default:
		return []splitPlan{
			{SplitTrain, f.cfg.TrainMovies, nil},
			{SplitTest, f.cfg.TestMovies, nil},
		}
	}
}

// Config returns the dataset configuration.
func (f *Fly) Config() Config { return f.cfg }

// Options returns the options in effect.
func (f *Fly) Options() Options { return f.opts }

// Loaded reports whether Load has completed.
func (f *Fly) Loaded() bool { return f.data != nil }

// Splits lists the splits this variant loads, in load order.
func (f *Fly) Splits() []Split {
	plans := f.plans()
	out := make([]Split, len(plans))
	for i, p := range plans {
		out[i] = p.split
	}
	return out
}

// Load reads and transforms every split. A failed load leaves the dataset
// unloaded.
func (f *Fly) Load() error {
	if f.Loaded() {
		return nil
	}
	data := make(map[Split]Examples)
	for _, p := range f.plans() {
		parts, err := LoadData(f.cfg, p.movies, p.rb)
		if err != nil {
			return fmt.Errorf("load %s split: %w", p.split, err)
		}
		ex := Stack(parts)
		data[p.split] = ex
		klog.Infof("%s size: %s x %d (labels x %d)", p.split,
			humanize.Comma(int64(ex.Len())), ex.InputDim(), ex.LabelDim())
	}
	f.data = data
	return nil
}

// Examples returns the loaded examples of split.
func (f *Fly) Examples(split Split) (Examples, error) {
	if !f.Loaded() {
		return Examples{}, ErrNotLoaded
	}
	ex, ok := f.data[split]
	if !ok {
		return Examples{}, fmt.Errorf("%w: %s", ErrUnknownSplit, split)
	}
	return ex, nil
}

// Inputs returns the windows of split, or nil when unloaded.
func (f *Fly) Inputs(split Split) [][]float32 {
	return f.data[split].Inputs
}

// Targets returns the labels of split, or nil when unloaded.
func (f *Fly) Targets(split Split) [][]float32 {
	return f.data[split].Labels
}

// UseSet returns the active split.
func (f *Fly) UseSet() Split { return f.opts.UseSet }

// SetUseSet switches the active split and rewinds Yield.
func (f *Fly) SetUseSet(split Split) {
	f.opts.UseSet = split
	f.cursor = 0
}

// training reports whether mini-batches are drawn at random.
func (f *Fly) training() bool {
	return !f.predict && f.opts.UseSet != SplitValidation
}

// MiniBatch returns one example. The train variant ignores batchIdx and
// draws a uniformly random training row unless the validation split is
// active; otherwise the row at batchIdx of the active split is returned.
func (f *Fly) MiniBatch(batchIdx int) ([]float32, []float32, error) {
	if !f.Loaded() {
		return nil, nil, ErrNotLoaded
	}
	if f.training() {
		train := f.data[SplitTrain]
		if train.Len() == 0 {
			return nil, nil, fmt.Errorf("%w: %s is empty", ErrUnknownSplit, SplitTrain)
		}
		i := f.rand.Intn(train.Len())
		return train.Inputs[i], train.Labels[i], nil
	}
	ex, err := f.Examples(f.opts.UseSet)
	if err != nil {
		return nil, nil, err
	}
	if batchIdx < 0 || batchIdx >= ex.Len() {
		return nil, nil, fmt.Errorf("index %d out of range [0, %d)", batchIdx, ex.Len())
	}
	return ex.Inputs[batchIdx], ex.Labels[batchIdx], nil
}

// ExtractBatch returns data[batch]. It panics when batch is out of range.
func (f *Fly) ExtractBatch(data [][]float32, batch int) []float32 {
	return data[batch]
}

func (f *Fly) active() Examples {
	return f.data[f.opts.UseSet]
}

// Len returns the number of examples in the active split.
func (f *Fly) Len() int { return f.active().Len() }

// Example reads a single example of the active split.
func (f *Fly) Example(idx int) ([]float32, []float32, error) {
	ex, err := f.Examples(f.opts.UseSet)
	if err != nil {
		return nil, nil, err
	}
	if idx < 0 || idx >= ex.Len() {
		return nil, nil, fmt.Errorf("index %d out of range [0, %d)", idx, ex.Len())
	}
	return ex.Inputs[idx], ex.Labels[idx], nil
}

// Batch reads multiple examples of the active split by index.
func (f *Fly) Batch(indices []int) ([][]float32, [][]float32, error) {
	ex, err := f.Examples(f.opts.UseSet)
	if err != nil {
		return nil, nil, err
	}
	inputs := make([][]float32, len(indices))
	labels := make([][]float32, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= ex.Len() {
			return nil, nil, fmt.Errorf("batch index %d out of range [0, %d)", idx, ex.Len())
		}
		inputs[i] = ex.Inputs[idx]
		labels[i] = ex.Labels[idx]
	}
	return inputs, labels, nil
}

// Shuffle permutes the active split in place and reseeds mini-batch
// sampling, both deterministically from seed.
func (f *Fly) Shuffle(seed int64) {
	f.rand = rand.New(rand.NewSource(seed))
	ex := f.active()
	f.rand.Shuffle(ex.Len(), func(i, j int) {
		ex.Inputs[i], ex.Inputs[j] = ex.Inputs[j], ex.Inputs[i]
		ex.Labels[i], ex.Labels[j] = ex.Labels[j], ex.Labels[i]
	})
	f.cursor = 0
}

// Tensors reads a batch of examples and returns them as gomlx tensors.
func (f *Fly) Tensors(indices []int) (*tensors.Tensor, *tensors.Tensor, error) {
	inData, labData, err := f.Batch(indices)
	if err != nil {
		return nil, nil, err
	}
	flat, err := MakeBatchFlat(inData, labData)
	if err != nil {
		return nil, nil, err
	}
	return flat.ToGomlxTensors()
}

// Name returns the name of the dataset.
func (f *Fly) Name() string {
	if f.predict {
		return fmt.Sprintf("FlyPredict/%s/%s", f.cfg.Scheme, f.opts.UseSet)
	}
	return fmt.Sprintf("Fly/%s/%s", f.cfg.Scheme, f.opts.UseSet)
}

// Yield returns the next batch of the active split. Training batches are
// BatchSize random rows and never run out; otherwise the split is walked in
// order and io.EOF marks the end of the epoch.
func (f *Fly) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if !f.Loaded() {
		return nil, nil, nil, ErrNotLoaded
	}
	n := f.Len()
	if n == 0 {
		return nil, nil, nil, io.EOF
	}

	var indices []int
	if f.training() {
		indices = make([]int, f.opts.BatchSize)
		for i := range indices {
			indices[i] = f.rand.Intn(n)
		}
	} else {
		if f.cursor >= n {
			return nil, nil, nil, io.EOF
		}
		end := min(f.cursor+f.opts.BatchSize, n)
		for i := f.cursor; i < end; i++ {
			indices = append(indices, i)
		}
		f.cursor = end
	}

	in, la, err := f.Tensors(indices)
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, []*tensors.Tensor{in}, []*tensors.Tensor{la}, nil
}

// Reset rewinds sequential iteration for a new epoch.
func (f *Fly) Reset() {
	f.cursor = 0
}
