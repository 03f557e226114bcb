package fl

import (
	"errors"
	"fmt"
	"slices"

	"github.com/absmach/fedmodel/pkg/tensor"
)

// FedAvg computes the unweighted elementwise mean of every layer.
type FedAvg struct{}

func NewFedAvg() Aggregator {
	return &FedAvg{}
}

// Aggregate sums in float64 with compensation over contributions sorted by
// value, so the result does not depend on update order. Each mean is cast
// back to the layer's dtype.
func (f *FedAvg) Aggregate(updates []ClientUpdate) (tensor.Weights, error) {
	if len(updates) == 0 {
		return nil, ErrEmptyInput
	}

	base := updates[0].Weights.Signature()
	for _, u := range updates[1:] {
		if err := base.Compare(u.Weights.Signature()); err != nil {
			switch {
			case errors.Is(err, tensor.ErrMissingKey), errors.Is(err, tensor.ErrUnexpectedKey):
				return nil, fmt.Errorf("%w: client %q: %w", ErrKeyMismatch, u.ClientID, err)
			default:
				return nil, fmt.Errorf("%w: client %q: %w", ErrShapeMismatch, u.ClientID, err)
			}
		}
	}

	n := float64(len(updates))
	column := make([]float64, len(updates))
	out := make(tensor.Weights, len(base))
	for _, key := range base.Keys() {
		spec := base[key]
		size := tensor.Size(spec.Shape)
		mean := make([]float64, size)
		for i := range size {
			for j, u := range updates {
				column[j] = u.Weights[key].Values[i]
			}
			slices.Sort(column)
			mean[i] = spec.DType.Cast(sum(column) / n)
		}
		out[key] = tensor.Tensor{
			Shape:  slices.Clone(spec.Shape),
			DType:  spec.DType,
			Values: mean,
		}
	}

	return out, nil
}

// sum is Neumaier's compensated summation.
func sum(values []float64) float64 {
	var s, c float64
	for _, v := range values {
		t := s + v
		if abs(s) >= abs(v) {
			c += (s - t) + v
		} else {
			c += (v - t) + s
		}
		s = t
	}

	return s + c
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}

	return v
}
