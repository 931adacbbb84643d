package monte

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Dataset is the minimal interface Monte needs from a labeled dataset.
// datasets.Fly satisfies it over its active split.
type Dataset interface {
	// Len returns the number of examples in the dataset.
	Len() int

	// Example returns the window and label at index idx.
	Example(idx int) (inputs []float32, labels []float32, err error)
}

// Monte is a nearest-neighbor baseline. For a query window it finds the K
// closest reference windows, then draws NumSims neighbors at random,
// weighted by inverse distance, and averages their labels. The result is
// an empirical per-column probability comparable to a model's output.
type Monte struct {
	DS Dataset
	K  int

	// NumSims is the number of weighted draws per query. Zero averages the
	// K neighbors exactly, weighted by inverse distance.
	NumSims int

	// DistEps avoids divide-by-zero for exact matches.
	DistEps float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMonte creates a new Monte object. ds must be non-nil and k >= 1.
func NewMonte(ds Dataset, k int) (*Monte, error) {
	if ds == nil {
		return nil, errors.New("dataset cannot be nil")
	}
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	return &Monte{
		DS:      ds,
		K:       k,
		NumSims: 64,
		DistEps: 1e-6,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Seed makes the draws reproducible.
func (m *Monte) Seed(seed int64) {
	m.mu.Lock()
	m.rng = rand.New(rand.NewSource(seed))
	m.mu.Unlock()
}

// neighbor holds a dataset neighbor candidate.
type neighbor struct {
	idx      int
	distance float32
	labels   []float32
}

// weights returns inverse-distance weights and their sum.
func (m *Monte) weights(neighbors []neighbor) ([]float64, float64) {
	eps := m.DistEps
	if eps <= 0 {
		eps = 1e-6
	}
	weights := make([]float64, len(neighbors))
	var total float64
	for i, nb := range neighbors {
		w := 1.0 / (float64(nb.distance) + eps)
		weights[i] = w
		total += w
	}
	return weights, total
}

// Estimate returns the label estimate for one query window.
func (m *Monte) Estimate(query []float32) ([]float32, error) {
	if m == nil {
		return nil, errors.New("Monte object is nil")
	}
	if len(query) == 0 {
		return nil, errors.New("query window is empty")
	}
	neighbors, err := m.knnNeighbors(query, m.K)
	if err != nil {
		return nil, err
	}
	weights, totalWeight := m.weights(neighbors)
	dim := len(neighbors[0].labels)
	sum := make([]float64, dim)

	if m.NumSims <= 0 {
		for i, nb := range neighbors {
			for j, v := range nb.labels {
				sum[j] += weights[i] * float64(v)
			}
		}
		return scale(sum, 1/totalWeight), nil
	}

	// Draw seeds serially so concurrent Estimate calls stay reproducible
	// for a given call order.
	m.mu.Lock()
	rng := rand.New(rand.NewSource(m.rng.Int63()))
	m.mu.Unlock()

	for s := 0; s < m.NumSims; s++ {
		target := rng.Float64() * totalWeight
		acc := 0.0
		choice := len(weights) - 1
		for i, w := range weights {
			acc += w
			if target <= acc {
				choice = i
				break
			}
		}
		for j, v := range neighbors[choice].labels {
			sum[j] += float64(v)
		}
	}
	return scale(sum, 1/float64(m.NumSims)), nil
}

func scale(sum []float64, f float64) []float32 {
	out := make([]float32, len(sum))
	for j, v := range sum {
		out[j] = float32(v * f)
	}
	return out
}

// PredictBatch estimates every input, so Monte can stand in for a trained
// model during evaluation.
func (m *Monte) PredictBatch(inputs [][]float32) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		est, err := m.Estimate(in)
		if err != nil {
			return nil, fmt.Errorf("estimate %d: %w", i, err)
		}
		out[i] = est
	}
	return out, nil
}

// knnNeighbors performs a simple linear scan KNN search over the dataset.
// Examples whose width differs from the query are skipped. It returns up
// to k neighbors sorted by increasing distance.
func (m *Monte) knnNeighbors(query []float32, k int) ([]neighbor, error) {
	n := m.DS.Len()
	if n == 0 {
		return nil, fmt.Errorf("reference dataset is empty")
	}

	// Use a worker pool to compute distances concurrently.
	jobs := make(chan int, n)
	resultsCh := make(chan neighbor, n)

	workerCount := min(runtime.NumCPU(), n)

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				inp, labels, err := m.DS.Example(i)
				if err != nil || len(inp) != len(query) || len(labels) == 0 {
					continue
				}
				resultsCh <- neighbor{
					idx:      i,
					distance: float32(math.Sqrt(euclideanDistanceSquared(query, inp))),
					labels:   labels,
				}
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	candidates := make([]neighbor, 0, n)
	for nb := range resultsCh {
		candidates = append(candidates, nb)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no examples of width %d in dataset", len(query))
	}

	// Ties are broken by index so results do not depend on worker timing.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].idx < candidates[j].idx
	})

	k = min(k, len(candidates))
	return candidates[:k], nil
}

// euclideanDistanceSquared computes squared Euclidean distance between two equal-length float32 slices.
func euclideanDistanceSquared(a, b []float32) float64 {
	sum := 0.0
	for i := 0; i < len(a) && i < len(b); i++ {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return sum
}
