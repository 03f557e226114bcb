package tensor_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/absmach/fedmodel/pkg/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTensorValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc   string
		tensor tensor.Tensor
		err    error
	}{
		{
			desc:   "valid vector",
			tensor: tensor.Tensor{Shape: []int{2}, DType: tensor.Float32, Values: []float64{1, 2}},
			err:    nil,
		},
		{
			desc:   "valid scalar",
			tensor: tensor.Tensor{Shape: []int{}, DType: tensor.Float64, Values: []float64{3}},
			err:    nil,
		},
		{
			desc:   "unknown dtype",
			tensor: tensor.Tensor{Shape: []int{1}, DType: "int8", Values: []float64{1}},
			err:    tensor.ErrUnknownDType,
		},
		{
			desc:   "zero dimension",
			tensor: tensor.Tensor{Shape: []int{0}, DType: tensor.Float32, Values: nil},
			err:    tensor.ErrInvalidShape,
		},
		{
			desc:   "overflowing shape",
			tensor: tensor.Tensor{Shape: []int{1 << 32, 1 << 32}, DType: tensor.Float32, Values: nil},
			err:    tensor.ErrInvalidShape,
		},
		{
			desc:   "shape above element cap",
			tensor: tensor.Tensor{Shape: []int{tensor.MaxElements, 2}, DType: tensor.Float32, Values: nil},
			err:    tensor.ErrInvalidShape,
		},
		{
			desc:   "value count mismatch",
			tensor: tensor.Tensor{Shape: []int{2, 2}, DType: tensor.Float32, Values: []float64{1, 2, 3}},
			err:    tensor.ErrSizeMismatch,
		},
		{
			desc:   "nan value",
			tensor: tensor.Tensor{Shape: []int{1}, DType: tensor.Float64, Values: []float64{math.NaN()}},
			err:    tensor.ErrNonFinite,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			err := tc.tensor.Validate()
			if tc.err == nil {
				assert.NoError(t, err)

				return
			}
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestDTypeCast(t *testing.T) {
	t.Parallel()

	v := 0.1
	assert.Equal(t, v, tensor.Float64.Cast(v))
	assert.Equal(t, float64(float32(v)), tensor.Float32.Cast(v))
	assert.InDelta(t, v, tensor.Float16.Cast(v), 1e-3)
	assert.NotEqual(t, v, tensor.Float16.Cast(v))
}

func TestTensorUnmarshalJSON(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc   string
		input  string
		shape  []int
		dtype  tensor.DType
		values []float64
		err    error
	}{
		{
			desc:   "flat array",
			input:  `[1, 2]`,
			shape:  []int{2},
			dtype:  tensor.Float32,
			values: []float64{1, 2},
		},
		{
			desc:   "nested array",
			input:  `[[1, 2, 3], [4, 5, 6]]`,
			shape:  []int{2, 3},
			dtype:  tensor.Float32,
			values: []float64{1, 2, 3, 4, 5, 6},
		},
		{
			desc:   "scalar",
			input:  `0.5`,
			shape:  []int{},
			dtype:  tensor.Float32,
			values: []float64{0.5},
		},
		{
			desc:   "object form",
			input:  `{"shape": [1, 2], "dtype": "float64", "values": [0.1, 0.2]}`,
			shape:  []int{1, 2},
			dtype:  tensor.Float64,
			values: []float64{0.1, 0.2},
		},
		{
			desc:  "ragged array",
			input: `[[1, 2], [3]]`,
			err:   tensor.ErrRaggedArray,
		},
		{
			desc:  "empty array",
			input: `[]`,
			err:   tensor.ErrInvalidShape,
		},
		{
			desc:  "string element",
			input: `["a"]`,
			err:   tensor.ErrInvalidShape,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			var got tensor.Tensor
			err := json.Unmarshal([]byte(tc.input), &got)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.shape, got.Shape)
			assert.Equal(t, tc.dtype, got.DType)
			assert.Equal(t, tc.values, got.Values)
			assert.NoError(t, got.Validate())
		})
	}
}

func TestWeightsUnmarshalJSON(t *testing.T) {
	t.Parallel()

	var w tensor.Weights
	require.NoError(t, json.Unmarshal([]byte(`{"w": [1, 2], "b": 0.5}`), &w))
	assert.Equal(t, []string{"b", "w"}, w.Keys())
	assert.NoError(t, w.Validate())

	sig := w.Signature()
	assert.True(t, sig["w"].Equal(tensor.Spec{Shape: []int{2}, DType: tensor.Float32}))
	assert.True(t, sig["b"].Equal(tensor.Spec{Shape: []int{}, DType: tensor.Float32}))
}

func TestSignatureCompare(t *testing.T) {
	t.Parallel()

	base := tensor.Signature{
		"w": {Shape: []int{2}, DType: tensor.Float32},
		"b": {Shape: []int{}, DType: tensor.Float32},
	}

	cases := []struct {
		desc  string
		other tensor.Signature
		err   error
	}{
		{
			desc:  "identical",
			other: base.Clone(),
			err:   nil,
		},
		{
			desc:  "missing layer",
			other: tensor.Signature{"w": {Shape: []int{2}, DType: tensor.Float32}},
			err:   tensor.ErrMissingKey,
		},
		{
			desc: "extra layer",
			other: tensor.Signature{
				"w": {Shape: []int{2}, DType: tensor.Float32},
				"b": {Shape: []int{}, DType: tensor.Float32},
				"c": {Shape: []int{1}, DType: tensor.Float32},
			},
			err: tensor.ErrUnexpectedKey,
		},
		{
			desc: "shape differs",
			other: tensor.Signature{
				"w": {Shape: []int{3}, DType: tensor.Float32},
				"b": {Shape: []int{}, DType: tensor.Float32},
			},
			err: tensor.ErrShapeMismatch,
		},
		{
			desc: "dtype differs",
			other: tensor.Signature{
				"w": {Shape: []int{2}, DType: tensor.Float64},
				"b": {Shape: []int{}, DType: tensor.Float32},
			},
			err: tensor.ErrDTypeMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			err := base.Compare(tc.other)
			if tc.err == nil {
				assert.NoError(t, err)

				return
			}
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestWeightsCloneIsDeep(t *testing.T) {
	t.Parallel()

	w := tensor.Weights{"w": {Shape: []int{2}, DType: tensor.Float32, Values: []float64{1, 2}}}
	c := w.Clone()
	c["w"].Values[0] = 9

	assert.Equal(t, 1.0, w["w"].Values[0])
}
