package simple

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// Config holds configurable hyperparameters for the classifier and training.
type Config struct {
	// HiddenSizes is the list of hidden layer sizes. Example: []int{64, 32}
	// If empty, a single hidden layer of size 64 will be used.
	HiddenSizes []int `yaml:"hidden_sizes"`

	// InputDim is the width of one window. Required.
	InputDim int `yaml:"input_dim"`

	// OutputDim is the number of label columns. One column gets a sigmoid
	// output, several get a softmax. Default 1.
	OutputDim int `yaml:"output_dim"`

	// LearningRate used by SGD (default 0.01).
	LearningRate float64 `yaml:"learning_rate"`

	// Epochs to train for (default if 0 will be set by NewModel to 10).
	Epochs int `yaml:"epochs"`

	// BatchSize for mini-batch updates (default if 0 will be set by NewModel to 32).
	BatchSize int `yaml:"batch_size"`

	// Seed controls RNG for weight init and shuffling. If zero, time-based seed is used.
	Seed int64 `yaml:"seed"`

	// ClipNorm caps the L2 norm of each averaged mini-batch gradient.
	// Zero uses 5; negative disables clipping.
	ClipNorm float32 `yaml:"clip_norm"`
}

// DefaultConfig returns the training defaults NewModel would fill in,
// except for InputDim.
func DefaultConfig() Config {
	return Config{
		HiddenSizes:  []int{64},
		OutputDim:    1,
		LearningRate: 0.01,
		Epochs:       10,
		BatchSize:    32,
		ClipNorm:     5,
	}
}

// Dataset is the minimal interface this package requires from a dataset.
// datasets.Fly satisfies it over its active split.
type Dataset interface {
	Len() int
	// Batch returns inputs and labels for the provided indices.
	Batch(indices []int) ([][]float32, [][]float32, error)
}

// Model is a small MLP classifier over flattened windows. It is trained by
// a self-contained mini-batch SGD loop with a cross-entropy loss.
type Model struct {
	// Config used for training / initialization.
	Config Config

	// layerSizes includes input size, hidden sizes, then output size.
	layerSizes []int

	// weights[l] is a matrix of shape [out][in] for layer l -> l+1
	weights [][][]float32

	// biases[l] is a vector of length out for layer l -> l+1
	biases [][]float32

	// id identifies the model across save and load.
	id string

	rng *rand.Rand
}

// ID returns the model identifier assigned when the model was created.
func (m *Model) ID() string { return m.id }

// NewModel creates a new Model instance with the provided configuration.
// It initializes weights (small random values) and is ready to train.
func NewModel(cfg Config) (*Model, error) {
	if cfg.InputDim <= 0 {
		return nil, fmt.Errorf("input dim must be positive, got %d", cfg.InputDim)
	}
	def := DefaultConfig()
	if len(cfg.HiddenSizes) == 0 {
		cfg.HiddenSizes = def.HiddenSizes
	}
	if cfg.OutputDim == 0 {
		cfg.OutputDim = def.OutputDim
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = def.Epochs
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.ClipNorm == 0 {
		cfg.ClipNorm = def.ClipNorm
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	for _, h := range cfg.HiddenSizes {
		if h <= 0 {
			return nil, fmt.Errorf("hidden layer sizes must be positive, got %v", cfg.HiddenSizes)
		}
	}

	m := &Model{
		Config: cfg,
		id:     uuid.New().String(),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}

	sizes := make([]int, 0, 2+len(cfg.HiddenSizes))
	sizes = append(sizes, cfg.InputDim)
	sizes = append(sizes, cfg.HiddenSizes...)
	sizes = append(sizes, cfg.OutputDim)
	m.layerSizes = sizes

	L := len(sizes) - 1
	m.weights = make([][][]float32, L)
	m.biases = make([][]float32, L)
	for l := 0; l < L; l++ {
		in, out := sizes[l], sizes[l+1]
		// Xavier/Glorot uniform initialization heuristic
		limit := float32(math.Sqrt(6.0 / float64(in+out)))
		w := make([][]float32, out)
		for j := range w {
			row := make([]float32, in)
			for i := range row {
				row[i] = (m.rng.Float32()*2.0 - 1.0) * limit
			}
			w[j] = row
		}
		m.weights[l] = w
		m.biases[l] = make([]float32, out)
	}
	return m, nil
}

// InputDim is the expected input width.
func (m *Model) InputDim() int { return m.layerSizes[0] }

// OutputDim is the number of output columns.
func (m *Model) OutputDim() int { return m.layerSizes[len(m.layerSizes)-1] }

func activationReLU(x []float32) {
	for i := range x {
		if x[i] < 0 {
			x[i] = 0
		}
	}
}

// activationReLUDeriv returns elementwise derivative of ReLU applied to preact.
func activationReLUDeriv(preact []float32) []float32 {
	d := make([]float32, len(preact))
	for i := range preact {
		if preact[i] > 0 {
			d[i] = 1.0
		}
	}
	return d
}

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

// softmax replaces x with its softmax, shifted by the max for stability.
func softmax(x []float32) {
	mx := x[0]
	for _, v := range x[1:] {
		mx = max(mx, v)
	}
	var sum float64
	for i, v := range x {
		e := math.Exp(float64(v - mx))
		x[i] = float32(e)
		sum += e
	}
	for i := range x {
		x[i] = float32(float64(x[i]) / sum)
	}
}

// outputActivation applies sigmoid to a single column and softmax otherwise.
func outputActivation(x []float32) {
	if len(x) == 1 {
		x[0] = sigmoid(x[0])
		return
	}
	softmax(x)
}

// forwardSingle performs a forward pass for a single input vector, returning:
// - preActs: pre-activation vectors per layer (len = L)
// - acts: activation vectors per layer (len = L+1, acts[0] = input)
func (m *Model) forwardSingle(input []float32) (preActs [][]float32, acts [][]float32, err error) {
	if len(input) != m.layerSizes[0] {
		return nil, nil, fmt.Errorf("input has dimension %d, model expects %d", len(input), m.layerSizes[0])
	}
	L := len(m.weights)
	acts = make([][]float32, L+1)
	acts[0] = input

	preActs = make([][]float32, L)
	for l := 0; l < L; l++ {
		inVec := acts[l]
		W := m.weights[l]
		b := m.biases[l]
		pre := make([]float32, len(b))
		for j := range pre {
			sum := b[j]
			for i, w := range W[j] {
				sum += w * inVec[i]
			}
			pre[j] = sum
		}
		preActs[l] = pre

		act := make([]float32, len(pre))
		copy(act, pre)
		if l < L-1 {
			activationReLU(act)
		} else {
			outputActivation(act)
		}
		acts[l+1] = act
	}
	return preActs, acts, nil
}

// PredictBatch returns class probabilities for a batch of inputs, shape
// [batch][OutputDim].
func (m *Model) PredictBatch(inputs [][]float32) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		_, acts, err := m.forwardSingle(in)
		if err != nil {
			return nil, err
		}
		out[i] = acts[len(acts)-1]
	}
	return out, nil
}

// crossEntropy is the loss of one prediction: binary cross-entropy for a
// single column, categorical otherwise.
func crossEntropy(pred, label []float32) float64 {
	const eps = 1e-7
	if len(pred) == 1 {
		p := min(max(float64(pred[0]), eps), 1-eps)
		y := float64(label[0])
		return -(y*math.Log(p) + (1-y)*math.Log(1-p))
	}
	var loss float64
	for j, y := range label {
		if y != 0 {
			loss -= float64(y) * math.Log(max(float64(pred[j]), eps))
		}
	}
	return loss
}

// clipGradients scales all gradients so their global L2 norm is at most
// maxNorm.
func clipGradients(gradW [][][]float32, gradB [][]float32, maxNorm float32) {
	if maxNorm <= 0 {
		return
	}
	var sq float64
	for l := range gradW {
		for j := range gradW[l] {
			for _, g := range gradW[l][j] {
				sq += float64(g) * float64(g)
			}
			sq += float64(gradB[l][j]) * float64(gradB[l][j])
		}
	}
	norm := math.Sqrt(sq)
	if norm <= float64(maxNorm) {
		return
	}
	scale := float32(float64(maxNorm) / norm)
	for l := range gradW {
		for j := range gradW[l] {
			for i := range gradW[l][j] {
				gradW[l][j][i] *= scale
			}
			gradB[l][j] *= scale
		}
	}
}

// TrainWithDataset runs mini-batch SGD over ds for Config.Epochs epochs and
// returns the mean loss of the last epoch.
func (m *Model) TrainWithDataset(ds Dataset) (float64, error) {
	if ds == nil {
		return 0, errors.New("dataset is nil")
	}
	n := ds.Len()
	if n == 0 {
		return 0, errors.New("dataset has no examples")
	}

	epochs := max(m.Config.Epochs, 1)
	batchSize := max(m.Config.BatchSize, 1)
	lr := float32(m.Config.LearningRate)

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	L := len(m.weights)
	gradW := make([][][]float32, L)
	gradB := make([][]float32, L)
	for l := 0; l < L; l++ {
		gradW[l] = make([][]float32, len(m.biases[l]))
		for j := range gradW[l] {
			gradW[l][j] = make([]float32, len(m.weights[l][j]))
		}
		gradB[l] = make([]float32, len(m.biases[l]))
	}

	var epochLoss float64
	for ep := 0; ep < epochs; ep++ {
		m.rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		epochLoss = 0
		for bstart := 0; bstart < n; bstart += batchSize {
			bend := min(bstart+batchSize, n)
			inputs, labels, err := ds.Batch(indices[bstart:bend])
			if err != nil {
				return 0, err
			}
			batchN := len(inputs)
			if batchN == 0 {
				continue
			}

			for l := 0; l < L; l++ {
				for j := range gradW[l] {
					clear(gradW[l][j])
				}
				clear(gradB[l])
			}

			for ex := 0; ex < batchN; ex++ {
				preacts, acts, err := m.forwardSingle(inputs[ex])
				if err != nil {
					return 0, err
				}
				la := labels[ex]
				outAct := acts[len(acts)-1]
				if len(la) != len(outAct) {
					return 0, fmt.Errorf("label has dimension %d, model outputs %d", len(la), len(outAct))
				}
				epochLoss += crossEntropy(outAct, la)

				// sigmoid/softmax with cross-entropy: dLoss/dPre = pred - label
				delta := make([]float32, len(outAct))
				for j := range outAct {
					delta[j] = outAct[j] - la[j]
				}

				for l := L - 1; l >= 0; l-- {
					inAct := acts[l]
					for j, d := range delta {
						gradB[l][j] += d
						gw := gradW[l][j]
						for i, a := range inAct {
							gw[i] += d * a
						}
					}
					if l == 0 {
						break
					}
					newDelta := make([]float32, len(inAct))
					for i := range newDelta {
						var sum float32
						for j, d := range delta {
							sum += m.weights[l][j][i] * d
						}
						newDelta[i] = sum
					}
					deriv := activationReLUDeriv(preacts[l-1])
					for i := range newDelta {
						newDelta[i] *= deriv[i]
					}
					delta = newDelta
				}
			}

			bInv := float32(1.0 / float64(batchN))
			for l := 0; l < L; l++ {
				for j := range gradW[l] {
					for i := range gradW[l][j] {
						gradW[l][j][i] *= bInv
					}
					gradB[l][j] *= bInv
				}
			}
			clipGradients(gradW, gradB, m.Config.ClipNorm)

			for l := 0; l < L; l++ {
				for j := range m.biases[l] {
					m.biases[l][j] -= lr * gradB[l][j]
					for i := range m.weights[l][j] {
						m.weights[l][j][i] -= lr * gradW[l][j][i]
					}
				}
			}
		}
		epochLoss /= float64(n)
		klog.V(1).Infof("epoch %d/%d: loss %.5f", ep+1, epochs, epochLoss)
	}
	return epochLoss, nil
}
