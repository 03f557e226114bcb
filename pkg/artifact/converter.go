package artifact

import (
	"fmt"
	"slices"

	"github.com/absmach/fedmodel/pkg/tensor"
)

type MergeMode string

const (
	// MergeReplace overwrites checkpoint layers with the aggregate.
	MergeReplace MergeMode = "replace"
	// MergeDelta adds the aggregate to the checkpoint layers.
	MergeDelta MergeMode = "delta"
)

func ParseMergeMode(s string) (MergeMode, error) {
	switch m := MergeMode(s); m {
	case MergeReplace, MergeDelta:
		return m, nil
	case "":
		return MergeReplace, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMergeMode, s)
	}
}

// Conversion holds both serialized representations of one model state.
type Conversion struct {
	Checkpoint Checkpoint
	Model      Model
	Training   []byte
	Inference  []byte
}

type Converter interface {
	// Convert merges aggregated weights into the previous training checkpoint
	// and derives the inference model from the result. It has no side
	// effects.
	Convert(aggregated tensor.Weights, previous []byte) (Conversion, error)

	// Initial builds both representations from a full set of weights.
	Initial(weights tensor.Weights) (Conversion, error)
}

type converter struct {
	mode MergeMode
}

func NewConverter(mode MergeMode) Converter {
	if mode == "" {
		mode = MergeReplace
	}

	return &converter{mode: mode}
}

func (c *converter) Convert(aggregated tensor.Weights, previous []byte) (Conversion, error) {
	prev, err := DecodeCheckpoint(previous)
	if err != nil {
		return Conversion{}, fmt.Errorf("%w: %w", ErrConversion, err)
	}

	merged, err := c.merge(prev.Layers, aggregated)
	if err != nil {
		return Conversion{}, fmt.Errorf("%w: %w", ErrConversion, err)
	}

	return build(Checkpoint{
		Format: CheckpointFormat,
		Merges: prev.Merges + 1,
		Layers: merged,
	})
}

func (c *converter) Initial(weights tensor.Weights) (Conversion, error) {
	if len(weights) == 0 {
		return Conversion{}, fmt.Errorf("%w: %w", ErrConversion, ErrMissingCheckpoint)
	}
	if err := weights.Validate(); err != nil {
		return Conversion{}, fmt.Errorf("%w: %w", ErrConversion, err)
	}

	return build(NewCheckpoint(weights))
}

// merge applies the aggregate to a copy of layers. Every aggregated key must
// name an existing layer of the same shape; layers the aggregate does not
// mention carry over unchanged.
func (c *converter) merge(layers, aggregated tensor.Weights) (tensor.Weights, error) {
	out := layers.Clone()
	for _, k := range aggregated.Keys() {
		layer, ok := out[k]
		if !ok {
			return nil, fmt.Errorf("%w: checkpoint has no layer %q", ErrTopologyMismatch, k)
		}
		update := aggregated[k]
		if !slices.Equal(layer.Shape, update.Shape) {
			return nil, fmt.Errorf("%w: layer %q has shape %v, aggregate has %v", ErrTopologyMismatch, k, layer.Shape, update.Shape)
		}
		for i, v := range update.Values {
			switch c.mode {
			case MergeDelta:
				layer.Values[i] = layer.DType.Cast(layer.Values[i] + v)
			default:
				layer.Values[i] = layer.DType.Cast(v)
			}
		}
		if err := layer.Validate(); err != nil {
			return nil, fmt.Errorf("layer %q: %w", k, err)
		}
	}

	return out, nil
}

func build(ckpt Checkpoint) (Conversion, error) {
	training, err := EncodeCheckpoint(ckpt)
	if err != nil {
		return Conversion{}, fmt.Errorf("%w: encode checkpoint: %w", ErrConversion, err)
	}
	model, err := Derive(ckpt)
	if err != nil {
		return Conversion{}, fmt.Errorf("%w: %w", ErrConversion, err)
	}
	inference, err := EncodeModel(model)
	if err != nil {
		return Conversion{}, fmt.Errorf("%w: encode inference model: %w", ErrConversion, err)
	}

	return Conversion{
		Checkpoint: ckpt,
		Model:      model,
		Training:   training,
		Inference:  inference,
	}, nil
}
