package coordinator_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/absmach/fedmodel/coordinator"
	"github.com/absmach/fedmodel/pkg/artifact"
	"github.com/absmach/fedmodel/pkg/fl"
	"github.com/absmach/fedmodel/pkg/storage"
	"github.com/absmach/fedmodel/pkg/tensor"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

type options struct {
	aggregator fl.Aggregator
	store      artifact.Store
	notifier   coordinator.Notifier
	recover    bool
}

type option func(*options)

func withAggregator(a fl.Aggregator) option {
	return func(o *options) { o.aggregator = a }
}

func withStore(s artifact.Store) option {
	return func(o *options) { o.store = s }
}

func withNotifier(n coordinator.Notifier) option {
	return func(o *options) { o.notifier = n }
}

// withRecovery loads the last published snapshot from the store before the
// service starts.
func withRecovery() option {
	return func(o *options) { o.recover = true }
}

func newService(t *testing.T, cfg coordinator.Config, opts ...option) coordinator.Service {
	t.Helper()

	o := options{
		aggregator: fl.NewFedAvg(),
		store:      artifact.NewMemoryStore(0),
	}
	for _, opt := range opts {
		opt(&o)
	}

	repos, err := storage.NewRepositories(storage.Config{Type: "memory"})
	require.NoError(t, err)

	publisher := artifact.NewPublisher(o.store, logger)
	if o.recover {
		_, err := publisher.Recover(context.Background())
		require.NoError(t, err)
	}

	svc := coordinator.NewService(
		cfg,
		o.aggregator,
		artifact.NewConverter(artifact.MergeReplace),
		publisher,
		repos,
		o.notifier,
		logger,
	)
	t.Cleanup(func() {
		_ = svc.Wait(context.Background())
	})

	return svc
}

func vec(values ...float64) tensor.Tensor {
	return tensor.Tensor{Shape: []int{len(values)}, DType: tensor.Float32, Values: values}
}

func weights(values ...float64) tensor.Weights {
	return tensor.Weights{"w": vec(values...)}
}

func seed(t *testing.T, svc coordinator.Service) {
	t.Helper()
	_, err := svc.Seed(context.Background(), weights(0, 0))
	require.NoError(t, err)
}

// currentWeights decodes the served inference artifact.
func currentWeights(t *testing.T, svc coordinator.Service) tensor.Weights {
	t.Helper()
	snap, err := svc.Artifact(context.Background())
	require.NoError(t, err)
	model, err := artifact.DecodeModel(snap.InferenceData)
	require.NoError(t, err)
	w, err := model.Weights()
	require.NoError(t, err)

	return w
}

// gatedAggregator blocks every aggregation until release is closed.
type gatedAggregator struct {
	fl.Aggregator
	started chan struct{}
	release chan struct{}
}

func newGatedAggregator() *gatedAggregator {
	return &gatedAggregator{
		Aggregator: fl.NewFedAvg(),
		started:    make(chan struct{}, 16),
		release:    make(chan struct{}),
	}
}

func (g *gatedAggregator) Aggregate(updates []fl.ClientUpdate) (tensor.Weights, error) {
	g.started <- struct{}{}
	<-g.release

	return g.Aggregator.Aggregate(updates)
}

type failingStore struct {
	artifact.Store
	mu   sync.Mutex
	fail bool
}

func (s *failingStore) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *failingStore) Save(ctx context.Context, snap artifact.Snapshot) (artifact.Snapshot, error) {
	s.mu.Lock()
	fail := s.fail
	s.mu.Unlock()
	if fail {
		return artifact.Snapshot{}, io.ErrShortWrite
	}

	return s.Store.Save(ctx, snap)
}

type recordingNotifier struct {
	mu       sync.Mutex
	versions []uint64
}

func (n *recordingNotifier) Notify(_ context.Context, m artifact.Manifest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.versions = append(n.versions, m.Version)

	return nil
}

func (n *recordingNotifier) Versions() []uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]uint64(nil), n.versions...)
}
