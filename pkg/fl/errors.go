package fl

import "errors"

var (
	ErrEmptyPayload             = errors.New("update carries no layers")
	ErrSchemaMismatch           = errors.New("update does not match the round baseline schema")
	ErrInvalidUpdate            = errors.New("invalid update")
	ErrMissingClientID          = errors.New("missing client id")
	ErrInsufficientParticipants = errors.New("insufficient participants for aggregation")
	ErrRoundInProgress          = errors.New("aggregation round already in progress")
	ErrInvalidStateTransition   = errors.New("invalid coordinator state transition")

	ErrEmptyInput    = errors.New("no updates provided for aggregation")
	ErrKeyMismatch   = errors.New("updates do not share the same layer keys")
	ErrShapeMismatch = errors.New("updates do not share the same layer shapes")
)
