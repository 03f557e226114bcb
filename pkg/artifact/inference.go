package artifact

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/absmach/fedmodel/pkg/tensor"
	"github.com/x448/float16"
)

const ModelFormat = "fedmodel/inference-fp16/v1"

// Layer stores float16 values as little-endian bit patterns.
type Layer struct {
	Name  string `cbor:"name"`
	Shape []int  `cbor:"shape"`
	Data  []byte `cbor:"data"`
}

// Model is the compact inference representation. Layers are sorted by name.
type Model struct {
	Format string  `cbor:"format"`
	Layers []Layer `cbor:"layers"`
}

// Derive reduces every checkpoint layer to float16. The transform is lossy
// and cannot be reversed into a checkpoint.
func Derive(c Checkpoint) (Model, error) {
	m := Model{
		Format: ModelFormat,
		Layers: make([]Layer, 0, len(c.Layers)),
	}
	for _, name := range c.Layers.Keys() {
		t := c.Layers[name]
		data := make([]byte, 2*len(t.Values))
		for i, v := range t.Values {
			h := float16.Fromfloat32(float32(v))
			if h.IsInf(0) || h.IsNaN() {
				return Model{}, fmt.Errorf("%w: layer %q value %g", ErrNotRepresentable, name, v)
			}
			binary.LittleEndian.PutUint16(data[2*i:], h.Bits())
		}
		m.Layers = append(m.Layers, Layer{
			Name:  name,
			Shape: slices.Clone(t.Shape),
			Data:  data,
		})
	}

	return m, nil
}

func EncodeModel(m Model) ([]byte, error) {
	return encMode.Marshal(m)
}

func DecodeModel(data []byte) (Model, error) {
	var m Model
	if err := decMode.Unmarshal(data, &m); err != nil {
		return Model{}, fmt.Errorf("%w: %w", ErrCorruptArtifact, err)
	}
	if m.Format != ModelFormat {
		return Model{}, fmt.Errorf("%w: unexpected format %q", ErrCorruptArtifact, m.Format)
	}

	return m, nil
}

// Weights expands the model back into float16 tensors.
func (m Model) Weights() (tensor.Weights, error) {
	w := make(tensor.Weights, len(m.Layers))
	for _, l := range m.Layers {
		if len(l.Data) != 2*tensor.Size(l.Shape) {
			return nil, fmt.Errorf("%w: layer %q has %d bytes for shape %v", ErrCorruptArtifact, l.Name, len(l.Data), l.Shape)
		}
		values := make([]float64, len(l.Data)/2)
		for i := range values {
			values[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(l.Data[2*i:])).Float32())
		}
		w[l.Name] = tensor.Tensor{
			Shape:  slices.Clone(l.Shape),
			DType:  tensor.Float16,
			Values: values,
		}
	}

	return w, nil
}
