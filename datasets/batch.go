package datasets

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// BatchFlat stores a batch of windows and labels in flat contiguous buffers.
type BatchFlat struct {
	Inputs    []float32
	Labels    []float32
	BatchSize int
	InputDim  int
	LabelDim  int
}

// MakeBatchFlat flattens a batch into contiguous buffers. Every row must
// have the width of the first one.
func MakeBatchFlat(inputs, labels [][]float32) (*BatchFlat, error) {
	if len(inputs) != len(labels) {
		return nil, fmt.Errorf("inputs and labels batch sizes don't match: %d != %d", len(inputs), len(labels))
	}
	if len(inputs) == 0 {
		return &BatchFlat{}, nil
	}

	b := &BatchFlat{
		BatchSize: len(inputs),
		InputDim:  len(inputs[0]),
		LabelDim:  len(labels[0]),
	}
	b.Inputs = make([]float32, b.BatchSize*b.InputDim)
	b.Labels = make([]float32, b.BatchSize*b.LabelDim)
	for i := range b.BatchSize {
		if len(inputs[i]) != b.InputDim {
			return nil, fmt.Errorf("%w: window %d has width %d, want %d", ErrBadShape, i, len(inputs[i]), b.InputDim)
		}
		if len(labels[i]) != b.LabelDim {
			return nil, fmt.Errorf("%w: label %d has width %d, want %d", ErrBadShape, i, len(labels[i]), b.LabelDim)
		}
		copy(b.Inputs[i*b.InputDim:], inputs[i])
		copy(b.Labels[i*b.LabelDim:], labels[i])
	}
	return b, nil
}

// Row returns the input and label of example i, aliasing the flat buffers.
func (b *BatchFlat) Row(i int) ([]float32, []float32) {
	return b.Inputs[i*b.InputDim : (i+1)*b.InputDim], b.Labels[i*b.LabelDim : (i+1)*b.LabelDim]
}

// ToGomlxTensors converts the batch to [BatchSize, InputDim] and
// [BatchSize, LabelDim] tensors.
func (b *BatchFlat) ToGomlxTensors() (*tensors.Tensor, *tensors.Tensor, error) {
	inputs := make([][]float32, b.BatchSize)
	labels := make([][]float32, b.BatchSize)
	if b.InputDim > 0 && b.LabelDim > 0 {
		for i := range b.BatchSize {
			inputs[i], labels[i] = b.Row(i)
		}
	} else {
		inputs, labels = inputs[:0], labels[:0]
	}
	return tensors.FromAnyValue(inputs), tensors.FromAnyValue(labels), nil
}
