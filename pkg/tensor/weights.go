package tensor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
)

var (
	ErrMissingKey    = errors.New("missing layer")
	ErrUnexpectedKey = errors.New("unexpected layer")
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrDTypeMismatch = errors.New("dtype mismatch")
)

// Spec is the structural identity of a tensor.
type Spec struct {
	Shape []int `json:"shape" cbor:"shape"`
	DType DType `json:"dtype" cbor:"dtype"`
}

func (s Spec) Equal(o Spec) bool {
	return s.DType == o.DType && slices.Equal(s.Shape, o.Shape)
}

// Signature maps layer keys to their specs.
type Signature map[string]Spec

func (s Signature) Keys() []string {
	return slices.Sorted(maps.Keys(s))
}

// Compare reports the first structural difference between s and other, in
// key order. It returns nil when both describe the same layers.
func (s Signature) Compare(other Signature) error {
	for _, k := range s.Keys() {
		o, ok := other[k]
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingKey, k)
		}
		want := s[k]
		if !slices.Equal(want.Shape, o.Shape) {
			return fmt.Errorf("%w: layer %q expects %v, got %v", ErrShapeMismatch, k, want.Shape, o.Shape)
		}
		if want.DType != o.DType {
			return fmt.Errorf("%w: layer %q expects %s, got %s", ErrDTypeMismatch, k, want.DType, o.DType)
		}
	}
	for _, k := range other.Keys() {
		if _, ok := s[k]; !ok {
			return fmt.Errorf("%w: %q", ErrUnexpectedKey, k)
		}
	}

	return nil
}

func (s Signature) Clone() Signature {
	if s == nil {
		return nil
	}
	out := make(Signature, len(s))
	for k, v := range s {
		out[k] = Spec{Shape: slices.Clone(v.Shape), DType: v.DType}
	}

	return out
}

// Weights maps layer keys to tensors.
type Weights map[string]Tensor

func (w Weights) Keys() []string {
	return slices.Sorted(maps.Keys(w))
}

func (w Weights) Signature() Signature {
	sig := make(Signature, len(w))
	for k, t := range w {
		sig[k] = t.Spec()
	}

	return sig
}

func (w Weights) Validate() error {
	for _, k := range w.Keys() {
		if k == "" {
			return ErrEmptyLayerKey
		}
		if err := w[k].Validate(); err != nil {
			return fmt.Errorf("layer %q: %w", k, err)
		}
	}

	return nil
}

func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, t := range w {
		out[k] = t.Clone()
	}

	return out
}

// UnmarshalJSON accepts either the object form {"shape","dtype","values"} or
// a bare number or nested array, whose shape is inferred and whose dtype
// defaults to float32.
func (t *Tensor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		type plain Tensor
		var p plain
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*t = Tensor(p)
		if t.DType == "" {
			t.DType = DefaultDType
		}
		if t.Shape == nil {
			t.Shape = []int{len(t.Values)}
		}
		if t.DType.Valid() {
			for i, v := range t.Values {
				t.Values[i] = t.DType.Cast(v)
			}
		}

		return nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	shape, values, err := flatten(raw)
	if err != nil {
		return err
	}
	*t = Tensor{
		Shape:  shape,
		DType:  DefaultDType,
		Values: values,
	}
	for i, v := range t.Values {
		t.Values[i] = DefaultDType.Cast(v)
	}

	return nil
}

func flatten(v any) ([]int, []float64, error) {
	switch x := v.(type) {
	case float64:
		return []int{}, []float64{x}, nil
	case []any:
		if len(x) == 0 {
			return nil, nil, fmt.Errorf("%w: empty dimension", ErrInvalidShape)
		}
		var (
			inner  []int
			values []float64
		)
		for i, e := range x {
			s, vals, err := flatten(e)
			if err != nil {
				return nil, nil, err
			}
			if i == 0 {
				inner = s
			} else if !slices.Equal(inner, s) {
				return nil, nil, ErrRaggedArray
			}
			values = append(values, vals...)
		}

		return append([]int{len(x)}, inner...), values, nil
	default:
		return nil, nil, fmt.Errorf("%w: unsupported element %T", ErrInvalidShape, v)
	}
}
