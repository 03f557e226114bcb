package artifact_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/absmach/fedmodel/pkg/artifact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDiskFull = errors.New("disk full")

type failingStore struct {
	artifact.Store
	fail bool
}

func (s *failingStore) Save(ctx context.Context, snap artifact.Snapshot) (artifact.Snapshot, error) {
	if s.fail {
		return artifact.Snapshot{}, errDiskFull
	}

	return s.Store.Save(ctx, snap)
}

func sha(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

func TestPublisherVersions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := artifact.NewPublisher(artifact.NewMemoryStore(0), slog.Default())

	_, err := p.Current()
	assert.ErrorIs(t, err, artifact.ErrNoModelAvailable)
	_, err = p.Manifest()
	assert.ErrorIs(t, err, artifact.ErrNoModelAvailable)

	snap, err := p.PublishInitial(ctx, []byte("train-0"), []byte("infer-0"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), snap.Inference.Version)
	assert.Equal(t, uint64(0), snap.Training.Version)

	_, err = p.PublishInitial(ctx, []byte("train-x"), []byte("infer-x"))
	assert.ErrorIs(t, err, artifact.ErrModelExists)

	for k := uint64(1); k <= 3; k++ {
		snap, err = p.Publish(ctx, []byte("train"), []byte{byte(k)})
		require.NoError(t, err)
		assert.Equal(t, k, snap.Inference.Version)
	}

	m, err := p.Manifest()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), m.Version)
	assert.Equal(t, sha([]byte{3}), m.ContentHash)
	assert.Equal(t, int64(1), m.SizeBytes)

	cur, err := p.Current()
	require.NoError(t, err)
	assert.Equal(t, m.ContentHash, sha(cur.InferenceData))
	assert.Equal(t, sha([]byte("train")), cur.Training.ContentHash)

	archived, err := p.Archived(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, archived)
}

func TestPublisherFailedSaveKeepsCurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &failingStore{Store: artifact.NewMemoryStore(0)}
	p := artifact.NewPublisher(store, slog.Default())

	_, err := p.PublishInitial(ctx, []byte("train-0"), []byte("infer-0"))
	require.NoError(t, err)
	before, err := p.Manifest()
	require.NoError(t, err)

	store.fail = true
	_, err = p.Publish(ctx, []byte("train-1"), []byte("infer-1"))
	assert.ErrorIs(t, err, artifact.ErrPublish)
	assert.ErrorIs(t, err, errDiskFull)

	after, err := p.Manifest()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	store.fail = false
	snap, err := p.Publish(ctx, []byte("train-1"), []byte("infer-1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Inference.Version)
}

func TestPublisherConcurrentReaders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := artifact.NewPublisher(artifact.NewMemoryStore(1), slog.Default())
	_, err := p.PublishInitial(ctx, []byte("t"), []byte("v0"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				snap, err := p.Current()
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, snap.Inference.ContentHash, sha(snap.InferenceData))
				assert.Equal(t, snap.Manifest().ContentHash, snap.Inference.ContentHash)
			}
		}()
	}
	for i := range 50 {
		_, err := p.Publish(ctx, []byte("t"), []byte{byte(i), 1})
		require.NoError(t, err)
	}
	wg.Wait()
}

func TestPublisherRecover(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	store, err := artifact.NewFileStore(dir, 0)
	require.NoError(t, err)
	p := artifact.NewPublisher(store, slog.Default())
	found, err := p.Recover(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = p.PublishInitial(ctx, []byte("train-0"), []byte("infer-0"))
	require.NoError(t, err)
	published, err := p.Publish(ctx, []byte("train-1"), []byte("infer-1"))
	require.NoError(t, err)

	store, err = artifact.NewFileStore(dir, 0)
	require.NoError(t, err)
	restarted := artifact.NewPublisher(store, slog.Default())
	found, err = restarted.Recover(ctx)
	require.NoError(t, err)
	assert.True(t, found)

	m, err := restarted.Manifest()
	require.NoError(t, err)
	assert.Equal(t, published.Manifest().Version, m.Version)
	assert.Equal(t, published.Manifest().ContentHash, m.ContentHash)

	next, err := restarted.Publish(ctx, []byte("train-2"), []byte("infer-2"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next.Inference.Version)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "inference-v2.fp16"), []byte("tampered"), 0o644))
	_, err = artifact.NewPublisher(store, slog.Default()).Recover(ctx)
	assert.ErrorIs(t, err, artifact.ErrIntegrityViolation)
}
