package artifact

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Publisher assigns versions and swaps the current snapshot. Readers load
// the snapshot pointer without locking, so they observe either the previous
// or the new version in full.
type Publisher struct {
	mu      sync.Mutex
	store   Store
	current atomic.Pointer[Snapshot]
	logger  *slog.Logger
	now     func() time.Time
}

func NewPublisher(store Store, logger *slog.Logger) *Publisher {
	return &Publisher{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Recover loads the last saved snapshot from the store. It reports whether a
// model was found.
func (p *Publisher) Recover(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap, ok, err := p.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	p.current.Store(&snap)

	return true, nil
}

func (p *Publisher) Current() (Snapshot, error) {
	snap := p.current.Load()
	if snap == nil {
		return Snapshot{}, ErrNoModelAvailable
	}

	return *snap, nil
}

func (p *Publisher) Manifest() (Manifest, error) {
	snap, err := p.Current()
	if err != nil {
		return Manifest{}, err
	}

	return snap.Manifest(), nil
}

// Publish makes the artifacts current under the next version.
func (p *Publisher) Publish(ctx context.Context, training, inference []byte) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var next uint64
	if cur := p.current.Load(); cur != nil {
		next = cur.Inference.Version + 1
	}

	return p.publish(ctx, next, training, inference)
}

// PublishInitial publishes version 0. It fails with ErrModelExists once any
// version is current.
func (p *Publisher) PublishInitial(ctx context.Context, training, inference []byte) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current.Load() != nil {
		return Snapshot{}, ErrModelExists
	}

	return p.publish(ctx, 0, training, inference)
}

func (p *Publisher) publish(ctx context.Context, version uint64, training, inference []byte) (Snapshot, error) {
	now := p.now().UTC()
	snap := Snapshot{
		Training: Artifact{
			Version:     version,
			Format:      Training,
			ContentHash: Digest(training),
			SizeBytes:   int64(len(training)),
			CreatedAt:   now,
		},
		Inference: Artifact{
			Version:     version,
			Format:      Inference,
			ContentHash: Digest(inference),
			SizeBytes:   int64(len(inference)),
			CreatedAt:   now,
		},
		TrainingData:  bytes.Clone(training),
		InferenceData: bytes.Clone(inference),
	}

	saved, err := p.store.Save(ctx, snap)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: version %d: %w", ErrPublish, version, err)
	}
	p.current.Store(&saved)

	if err := p.store.Prune(ctx); err != nil {
		p.logger.Warn("failed to prune superseded artifacts", slog.Uint64("version", version), slog.Any("error", err))
	}

	return saved, nil
}

func (p *Publisher) Archived(ctx context.Context) (int, error) {
	return p.store.Archived(ctx)
}
