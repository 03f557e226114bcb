// Package tensor holds the typed weight representation exchanged between
// clients and the coordinator.
package tensor

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/x448/float16"
)

type DType string

const (
	Float16 DType = "float16"
	Float32 DType = "float32"
	Float64 DType = "float64"

	// DefaultDType is assumed for tensors submitted as bare arrays.
	DefaultDType = Float32
)

var (
	ErrUnknownDType  = errors.New("unknown dtype")
	ErrInvalidShape  = errors.New("invalid tensor shape")
	ErrSizeMismatch  = errors.New("value count does not match shape")
	ErrNonFinite     = errors.New("tensor contains non-finite value")
	ErrRaggedArray   = errors.New("ragged nested array")
	ErrEmptyLayerKey = errors.New("empty layer key")
)

func (d DType) Valid() bool {
	switch d {
	case Float16, Float32, Float64:
		return true
	default:
		return false
	}
}

// Cast rounds v to the nearest value representable in d.
func (d DType) Cast(v float64) float64 {
	switch d {
	case Float16:
		return float64(float16.Fromfloat32(float32(v)).Float32())
	case Float32:
		return float64(float32(v))
	default:
		return v
	}
}

// Tensor is a dense row-major array. Values are held in float64 but always
// carry the precision of DType.
type Tensor struct {
	Shape  []int     `json:"shape"  cbor:"shape"`
	DType  DType     `json:"dtype"  cbor:"dtype"`
	Values []float64 `json:"values" cbor:"values"`
}

func New(shape []int, dtype DType, values []float64) (Tensor, error) {
	t := Tensor{
		Shape:  slices.Clone(shape),
		DType:  dtype,
		Values: make([]float64, len(values)),
	}
	for i, v := range values {
		t.Values[i] = dtype.Cast(v)
	}

	if err := t.Validate(); err != nil {
		return Tensor{}, err
	}

	return t, nil
}

// MaxElements bounds the element count of a single tensor.
const MaxElements = 1 << 28

// Size returns the element count described by shape. A rank-0 shape holds a
// single scalar. It returns -1 when a dimension is not positive or the count
// exceeds MaxElements.
func Size(shape []int) int {
	n := 1
	for _, d := range shape {
		if d <= 0 || n > MaxElements/d {
			return -1
		}
		n *= d
	}

	return n
}

func (t Tensor) Validate() error {
	if !t.DType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownDType, t.DType)
	}
	want := Size(t.Shape)
	if want < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidShape, t.Shape)
	}
	if want != len(t.Values) {
		return fmt.Errorf("%w: shape %v wants %d values, got %d", ErrSizeMismatch, t.Shape, want, len(t.Values))
	}
	for _, v := range t.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNonFinite
		}
	}

	return nil
}

func (t Tensor) Spec() Spec {
	return Spec{Shape: slices.Clone(t.Shape), DType: t.DType}
}

func (t Tensor) Clone() Tensor {
	return Tensor{
		Shape:  slices.Clone(t.Shape),
		DType:  t.DType,
		Values: slices.Clone(t.Values),
	}
}

// As returns a copy of t converted to dtype.
func (t Tensor) As(dtype DType) Tensor {
	out := Tensor{
		Shape:  slices.Clone(t.Shape),
		DType:  dtype,
		Values: make([]float64, len(t.Values)),
	}
	for i, v := range t.Values {
		out.Values[i] = dtype.Cast(v)
	}

	return out
}
