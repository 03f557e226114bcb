package fl

import (
	"fmt"
	"slices"

	"github.com/absmach/fedmodel/pkg/tensor"
)

// ValidateUpdate checks an update in isolation, before it competes for the
// buffer lock.
func ValidateUpdate(u ClientUpdate) error {
	if u.ClientID == "" {
		return ErrMissingClientID
	}
	if len(u.Weights) == 0 {
		return ErrEmptyPayload
	}
	if err := u.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidUpdate, err)
	}

	return nil
}

// Buffer holds at most one pending update per client, in arrival order, and
// the baseline signature every update must match. It is not safe for
// concurrent use.
type Buffer struct {
	updates  map[string]ClientUpdate
	order    []string
	baseline tensor.Signature
}

func NewBuffer() *Buffer {
	return &Buffer{
		updates: make(map[string]ClientUpdate),
	}
}

// Add stores u, replacing any earlier update from the same client. The first
// update accepted while no baseline is set becomes the baseline. A rejected
// update leaves the buffer untouched.
func (b *Buffer) Add(u ClientUpdate) (replaced bool, err error) {
	if u.ClientID == "" {
		return false, ErrMissingClientID
	}
	if len(u.Weights) == 0 {
		return false, ErrEmptyPayload
	}

	sig := u.Weights.Signature()
	if b.baseline != nil {
		if err := b.baseline.Compare(sig); err != nil {
			return false, fmt.Errorf("%w: %w", ErrSchemaMismatch, err)
		}
	} else {
		b.baseline = sig
	}

	if _, replaced = b.updates[u.ClientID]; !replaced {
		b.order = append(b.order, u.ClientID)
	}
	b.updates[u.ClientID] = u

	return replaced, nil
}

func (b *Buffer) Len() int {
	return len(b.order)
}

func (b *Buffer) Clients() []string {
	return slices.Clone(b.order)
}

func (b *Buffer) Baseline() tensor.Signature {
	return b.baseline.Clone()
}

// ClearBaseline lets the next accepted update define a new schema. It is a
// no-op while updates are pending.
func (b *Buffer) ClearBaseline() {
	if len(b.order) == 0 {
		b.baseline = nil
	}
}

// Detach empties the buffer and returns its updates in arrival order. The
// baseline stays, so contributions arriving while the detached set is being
// aggregated remain compatible with it.
func (b *Buffer) Detach() []ClientUpdate {
	out := make([]ClientUpdate, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.updates[id])
	}
	b.updates = make(map[string]ClientUpdate)
	b.order = nil

	return out
}

// Restore puts detached updates back ahead of anything accepted since. A
// client that submitted again in the meantime keeps its newer update.
func (b *Buffer) Restore(updates []ClientUpdate) {
	order := make([]string, 0, len(updates)+len(b.order))
	for _, u := range updates {
		if _, ok := b.updates[u.ClientID]; ok {
			continue
		}
		b.updates[u.ClientID] = u
		order = append(order, u.ClientID)
	}
	b.order = append(order, b.order...)
	if b.baseline == nil && len(updates) > 0 {
		b.baseline = updates[0].Weights.Signature()
	}
}
