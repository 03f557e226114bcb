package artifact

import (
	"fmt"

	"github.com/absmach/fedmodel/pkg/tensor"
)

const CheckpointFormat = "fedmodel/checkpoint/v1"

// Checkpoint is the training representation: full precision parameters that
// later rounds merge into.
type Checkpoint struct {
	Format string         `cbor:"format"`
	Merges uint64         `cbor:"merges"`
	Layers tensor.Weights `cbor:"layers"`
}

func NewCheckpoint(layers tensor.Weights) Checkpoint {
	return Checkpoint{
		Format: CheckpointFormat,
		Layers: layers.Clone(),
	}
}

func EncodeCheckpoint(c Checkpoint) ([]byte, error) {
	return encMode.Marshal(c)
}

func DecodeCheckpoint(data []byte) (Checkpoint, error) {
	if len(data) == 0 {
		return Checkpoint{}, ErrMissingCheckpoint
	}

	var c Checkpoint
	if err := decMode.Unmarshal(data, &c); err != nil {
		return Checkpoint{}, fmt.Errorf("%w: %w", ErrCorruptArtifact, err)
	}
	if c.Format != CheckpointFormat {
		return Checkpoint{}, fmt.Errorf("%w: unexpected format %q", ErrCorruptArtifact, c.Format)
	}
	if len(c.Layers) == 0 {
		return Checkpoint{}, fmt.Errorf("%w: checkpoint has no layers", ErrCorruptArtifact)
	}
	if err := c.Layers.Validate(); err != nil {
		return Checkpoint{}, fmt.Errorf("%w: %w", ErrCorruptArtifact, err)
	}

	return c, nil
}
