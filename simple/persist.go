package simple

import (
	"encoding/gob"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"k8s.io/klog/v2"

	"github.com/Noofbiz/flyvfly/internal/filelock"
)

const modelVersion = 1

// modelFormat is the on-disk gob layout of a Model.
type modelFormat struct {
	Version    int
	ID         string
	CreatedAt  int64 // unix timestamp when the model was saved
	Config     Config
	LayerSizes []int
	Weights    [][][]float32
	Biases     [][]float32
}

// Save writes the model to path using encoding/gob. It performs an atomic
// write (create temp file then rename) while holding the path's lock.
func (m *Model) Save(path string) error {
	if path == "" {
		return fmt.Errorf("empty model path")
	}
	return filelock.With(path, func() error { return m.save(path) })
}

func (m *Model) save(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		_ = os.Remove(tmpName)
	}()

	mf := modelFormat{
		Version:    modelVersion,
		ID:         m.id,
		CreatedAt:  time.Now().Unix(),
		Config:     m.Config,
		LayerSizes: m.layerSizes,
		Weights:    m.weights,
		Biases:     m.biases,
	}
	if err := gob.NewEncoder(tmpFile).Encode(&mf); err != nil {
		return fmt.Errorf("encode model to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		klog.Warningf("sync temp model file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp model file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp model to target: %w", err)
	}
	return nil
}

// Load reads a model written by Save and checks that its layers are
// consistent.
func Load(path string) (*Model, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model file %s: %w", path, err)
	}
	defer fh.Close()

	var mf modelFormat
	if err := gob.NewDecoder(fh).Decode(&mf); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if mf.Version != modelVersion {
		return nil, fmt.Errorf("model version mismatch: file=%d expected=%d", mf.Version, modelVersion)
	}
	L := len(mf.LayerSizes) - 1
	if L < 1 || len(mf.Weights) != L || len(mf.Biases) != L {
		return nil, fmt.Errorf("model %s has %d layer sizes, %d weight and %d bias layers",
			path, len(mf.LayerSizes), len(mf.Weights), len(mf.Biases))
	}
	for l := 0; l < L; l++ {
		in, out := mf.LayerSizes[l], mf.LayerSizes[l+1]
		if len(mf.Weights[l]) != out || len(mf.Biases[l]) != out {
			return nil, fmt.Errorf("model %s layer %d: want %d outputs", path, l, out)
		}
		for _, row := range mf.Weights[l] {
			if len(row) != in {
				return nil, fmt.Errorf("model %s layer %d: want %d inputs, got %d", path, l, in, len(row))
			}
		}
	}
	return &Model{
		Config:     mf.Config,
		id:         mf.ID,
		layerSizes: mf.LayerSizes,
		weights:    mf.Weights,
		biases:     mf.Biases,
		rng:        rand.New(rand.NewSource(mf.Config.Seed)),
	}, nil
}
