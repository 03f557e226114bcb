package artifact

import "errors"

var (
	ErrNoModelAvailable   = errors.New("no global model has been published")
	ErrModelExists        = errors.New("a global model has already been published")
	ErrConversion         = errors.New("artifact conversion failed")
	ErrMissingCheckpoint  = errors.New("training checkpoint is missing")
	ErrCorruptArtifact    = errors.New("artifact is corrupt or unreadable")
	ErrTopologyMismatch   = errors.New("aggregate does not fit checkpoint topology")
	ErrNotRepresentable   = errors.New("value is not representable in float16")
	ErrUnknownMergeMode   = errors.New("unknown merge mode")
	ErrPublish            = errors.New("failed to publish artifacts")
	ErrIntegrityViolation = errors.New("stored artifact fails integrity check")
)
