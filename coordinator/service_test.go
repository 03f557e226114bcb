package coordinator_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/absmach/fedmodel/coordinator"
	"github.com/absmach/fedmodel/pkg/artifact"
	pkgerrors "github.com/absmach/fedmodel/pkg/errors"
	"github.com/absmach/fedmodel/pkg/fl"
	"github.com/absmach/fedmodel/pkg/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenario(t *testing.T) {
	t.Parallel()

	uploads := []struct {
		client string
		w      tensor.Weights
	}{
		{"a", weights(1, 2)},
		{"b", weights(3, 4)},
		{"c", weights(5, 6)},
	}

	cases := []struct {
		desc    string
		cfg     coordinator.Config
		trigger bool
		want    []float64
		pending int
	}{
		{
			desc:    "auto aggregation fires on the second upload",
			cfg:     coordinator.Config{MinParticipants: 2, AutoAggregate: true},
			want:    []float64{2, 3},
			pending: 1,
		},
		{
			desc:    "explicit trigger aggregates all three uploads",
			cfg:     coordinator.Config{MinParticipants: 2, AutoAggregate: false},
			trigger: true,
			want:    []float64{3, 4},
			pending: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			svc := newService(t, tc.cfg)
			seed(t, svc)

			for _, u := range uploads {
				_, err := svc.Submit(ctx, u.client, u.w)
				require.NoError(t, err)
			}
			if tc.trigger {
				round, err := svc.TriggerRound(ctx)
				require.NoError(t, err)
				assert.Equal(t, []string{"a", "b", "c"}, round.Participants)
				assert.Equal(t, fl.RoundSucceeded, round.Status)
				require.NotNil(t, round.ResultVersion)
				assert.Equal(t, uint64(1), *round.ResultVersion)
			}
			require.NoError(t, svc.Wait(ctx))

			m, err := svc.Manifest(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), m.Version)
			assert.InDeltaSlice(t, tc.want, currentWeights(t, svc)["w"].Values, 1e-3)

			st, err := svc.Status(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.pending, st.PendingUpdates)
			assert.Equal(t, uint64(1), st.CompletedRounds)
			assert.Equal(t, uint64(3), st.TotalUploads)
			assert.Equal(t, 3, st.UniqueClients)
		})
	}
}

func TestThresholdGating(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, coordinator.Config{MinParticipants: 2})
	seed(t, svc)

	_, err := svc.TriggerRound(ctx)
	assert.ErrorIs(t, err, fl.ErrInsufficientParticipants)

	_, err = svc.Submit(ctx, "a", weights(1, 1))
	require.NoError(t, err)
	_, err = svc.TriggerRound(ctx)
	assert.ErrorIs(t, err, fl.ErrInsufficientParticipants)

	_, err = svc.Submit(ctx, "b", weights(3, 3))
	require.NoError(t, err)
	round, err := svc.TriggerRound(ctx)
	require.NoError(t, err)
	assert.Len(t, round.Participants, 2)
}

func TestSubmitRejectionLeavesBufferUnchanged(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc   string
		client string
		w      tensor.Weights
		err    error
	}{
		{
			desc:   "shape mismatch",
			client: "b",
			w:      weights(1, 2, 3),
			err:    fl.ErrSchemaMismatch,
		},
		{
			desc:   "extra layer",
			client: "b",
			w:      tensor.Weights{"w": vec(1, 2), "bias": vec(1)},
			err:    fl.ErrSchemaMismatch,
		},
		{
			desc:   "missing layer",
			client: "b",
			w:      tensor.Weights{"v": vec(1, 2)},
			err:    fl.ErrSchemaMismatch,
		},
		{
			desc:   "dtype change",
			client: "b",
			w:      tensor.Weights{"w": {Shape: []int{2}, DType: tensor.Float64, Values: []float64{1, 2}}},
			err:    fl.ErrSchemaMismatch,
		},
		{
			desc:   "empty payload",
			client: "b",
			w:      tensor.Weights{},
			err:    fl.ErrEmptyPayload,
		},
		{
			desc:   "missing client id",
			client: "",
			w:      weights(1, 2),
			err:    fl.ErrMissingClientID,
		},
		{
			desc:   "overflowing shape",
			client: "b",
			w:      tensor.Weights{"w": {Shape: []int{1 << 32, 1 << 32}, DType: tensor.Float32}},
			err:    fl.ErrInvalidUpdate,
		},
		{
			desc:   "malformed tensor",
			client: "b",
			w:      tensor.Weights{"w": {Shape: []int{3}, DType: tensor.Float32, Values: []float64{1, 2}}},
			err:    fl.ErrInvalidUpdate,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			svc := newService(t, coordinator.Config{MinParticipants: 2})
			_, err := svc.Submit(ctx, "a", weights(1, 2))
			require.NoError(t, err)

			_, err = svc.Submit(ctx, tc.client, tc.w)
			assert.ErrorIs(t, err, tc.err)

			st, err := svc.Status(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, st.PendingUpdates)
			assert.Equal(t, uint64(1), st.TotalUploads)
			assert.Equal(t, fl.Accumulating, st.State)
		})
	}
}

func TestSubmitReplacesEarlierUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, coordinator.Config{MinParticipants: 2})
	seed(t, svc)

	res, err := svc.Submit(ctx, "a", weights(100, 100))
	require.NoError(t, err)
	assert.False(t, res.Replaced)

	res, err = svc.Submit(ctx, "a", weights(1, 2))
	require.NoError(t, err)
	assert.True(t, res.Replaced)
	assert.Equal(t, 1, res.PendingUpdates)
	assert.Equal(t, 2, res.MinParticipants)

	_, err = svc.Submit(ctx, "b", weights(3, 4))
	require.NoError(t, err)
	_, err = svc.TriggerRound(ctx)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 3}, currentWeights(t, svc)["w"].Values, 1e-3)

	st, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), st.TotalUploads)
	assert.Equal(t, 2, st.UniqueClients)
}

func TestVersionIsMonotonic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	notifier := &recordingNotifier{}
	svc := newService(t, coordinator.Config{MinParticipants: 2}, withNotifier(notifier))
	seed(t, svc)

	const rounds = 5
	for i := range rounds {
		_, err := svc.Submit(ctx, "a", weights(float64(i), 0))
		require.NoError(t, err)
		_, err = svc.Submit(ctx, "b", weights(float64(i), 2))
		require.NoError(t, err)
		round, err := svc.TriggerRound(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), round.Number)
	}

	m, err := svc.Manifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(rounds), m.Version)
	assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5}, notifier.Versions())

	page, err := svc.ListRounds(ctx, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(rounds), page.Total)
	for i, r := range page.Rounds {
		require.NotNil(t, r.ResultVersion)
		assert.Equal(t, uint64(i+1), *r.ResultVersion)
	}

	arts, err := svc.ListArtifacts(ctx, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(2*(rounds+1)), arts.Total)

	got, err := svc.GetRound(ctx, page.Rounds[0].ID)
	require.NoError(t, err)
	assert.Equal(t, page.Rounds[0].ID, got.ID)

	_, err = svc.GetRound(ctx, "missing")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestDigestIntegrity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, coordinator.Config{MinParticipants: 1})

	_, err := svc.Manifest(ctx)
	assert.ErrorIs(t, err, artifact.ErrNoModelAvailable)
	_, err = svc.Artifact(ctx)
	assert.ErrorIs(t, err, artifact.ErrNoModelAvailable)

	seed(t, svc)
	_, err = svc.Submit(ctx, "a", weights(0.1, 0.2))
	require.NoError(t, err)
	_, err = svc.TriggerRound(ctx)
	require.NoError(t, err)

	snap, err := svc.Artifact(ctx)
	require.NoError(t, err)
	m, err := svc.Manifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, m.ContentHash, artifact.Digest(snap.InferenceData))
	assert.Equal(t, m.SizeBytes, int64(len(snap.InferenceData)))
	assert.Equal(t, snap.Training.ContentHash, artifact.Digest(snap.TrainingData))
	assert.Equal(t, snap.Training.Version, snap.Inference.Version)
}

func TestFailedRoundKeepsModelAndUpdates(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc   string
		seeded bool
		submit tensor.Weights
		fail   bool
		err    error
	}{
		{
			desc:   "no seed model",
			submit: weights(1, 2),
			err:    artifact.ErrConversion,
		},
		{
			desc:   "aggregate does not fit the checkpoint",
			seeded: true,
			submit: tensor.Weights{"v": vec(1, 2)},
			err:    artifact.ErrTopologyMismatch,
		},
		{
			desc:   "store rejects the new version",
			seeded: true,
			submit: weights(1, 2),
			fail:   true,
			err:    artifact.ErrPublish,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := &failingStore{Store: artifact.NewMemoryStore(0)}
			svc := newService(t, coordinator.Config{MinParticipants: 2}, withStore(store))

			var before artifact.Manifest
			if tc.seeded {
				seed(t, svc)
				var err error
				before, err = svc.Manifest(ctx)
				require.NoError(t, err)
			}
			store.setFail(tc.fail)

			for _, client := range []string{"a", "b"} {
				_, err := svc.Submit(ctx, client, tc.submit)
				require.NoError(t, err)
			}
			round, err := svc.TriggerRound(ctx)
			assert.ErrorIs(t, err, tc.err)
			assert.Equal(t, fl.RoundFailed, round.Status)
			assert.Nil(t, round.ResultVersion)

			m, merr := svc.Manifest(ctx)
			if tc.seeded {
				require.NoError(t, merr)
				assert.Equal(t, before, m)
			} else {
				assert.ErrorIs(t, merr, artifact.ErrNoModelAvailable)
			}

			st, err := svc.Status(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, st.PendingUpdates)
			assert.Equal(t, uint64(1), st.FailedRounds)
			assert.Equal(t, uint64(0), st.CompletedRounds)
			assert.Equal(t, fl.Accumulating, st.State)

			page, err := svc.ListRounds(ctx, 0, 10)
			require.NoError(t, err)
			require.Len(t, page.Rounds, 1)
			assert.Equal(t, fl.RoundFailed, page.Rounds[0].Status)
			assert.NotEmpty(t, page.Rounds[0].Error)
		})
	}
}

func TestRetryAfterFailedRound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, coordinator.Config{MinParticipants: 2})

	_, err := svc.Submit(ctx, "a", weights(1, 2))
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "b", weights(3, 4))
	require.NoError(t, err)

	failed, err := svc.TriggerRound(ctx)
	assert.ErrorIs(t, err, artifact.ErrConversion)

	seed(t, svc)
	retried, err := svc.TriggerRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, failed.Number, retried.Number)
	assert.NotEqual(t, failed.ID, retried.ID)
	assert.Equal(t, []string{"a", "b"}, retried.Participants)
	assert.InDeltaSlice(t, []float64{2, 3}, currentWeights(t, svc)["w"].Values, 1e-3)
}

func TestSeed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc string
		w    tensor.Weights
		err  error
	}{
		{
			desc: "empty weights",
			w:    tensor.Weights{},
			err:  fl.ErrEmptyPayload,
		},
		{
			desc: "malformed tensor",
			w:    tensor.Weights{"w": {Shape: []int{2}, DType: "int8", Values: []float64{1, 2}}},
			err:  fl.ErrInvalidUpdate,
		},
		{
			desc: "valid weights",
			w:    weights(0.5, 1),
			err:  nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			svc := newService(t, coordinator.Config{MinParticipants: 1})
			m, err := svc.Seed(context.Background(), tc.w)
			assert.ErrorIs(t, err, tc.err)
			if tc.err == nil {
				assert.Equal(t, uint64(0), m.Version)
				assert.NotEmpty(t, m.ContentHash)
			}
		})
	}

	svc := newService(t, coordinator.Config{MinParticipants: 1})
	seed(t, svc)
	_, err := svc.Seed(context.Background(), weights(1, 1))
	assert.ErrorIs(t, err, artifact.ErrModelExists)
}

func TestRoundInProgressUsesFreshBuffer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	agg := newGatedAggregator()
	svc := newService(t, coordinator.Config{MinParticipants: 2, AutoAggregate: true}, withAggregator(agg))
	seed(t, svc)

	_, err := svc.Submit(ctx, "a", weights(1, 2))
	require.NoError(t, err)
	res, err := svc.Submit(ctx, "b", weights(3, 4))
	require.NoError(t, err)
	assert.NotEmpty(t, res.RoundID)
	<-agg.started

	_, err = svc.TriggerRound(ctx)
	assert.ErrorIs(t, err, fl.ErrRoundInProgress)

	// Uploads during aggregation land in the next buffer and defer the
	// next automatic round.
	res, err = svc.Submit(ctx, "c", weights(5, 6))
	require.NoError(t, err)
	assert.Empty(t, res.RoundID)
	res, err = svc.Submit(ctx, "d", weights(7, 8))
	require.NoError(t, err)
	assert.Empty(t, res.RoundID)

	st, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, fl.Aggregating, st.State)
	assert.Equal(t, 2, st.PendingUpdates)

	m, err := svc.Manifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), m.Version)

	close(agg.release)
	require.NoError(t, svc.Wait(ctx))

	m, err = svc.Manifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), m.Version)
	assert.InDeltaSlice(t, []float64{6, 7}, currentWeights(t, svc)["w"].Values, 1e-3)

	page, err := svc.ListRounds(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Rounds, 2)
	participants := [][]string{page.Rounds[0].Participants, page.Rounds[1].Participants}
	assert.ElementsMatch(t, [][]string{{"a", "b"}, {"c", "d"}}, participants)

	st, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, fl.Idle, st.State)
	assert.Equal(t, 0, st.PendingUpdates)
}

func TestWaitHonoursContext(t *testing.T) {
	t.Parallel()
	agg := newGatedAggregator()
	svc := newService(t, coordinator.Config{MinParticipants: 1, AutoAggregate: true}, withAggregator(agg))
	seed(t, svc)

	_, err := svc.Submit(context.Background(), "a", weights(1, 2))
	require.NoError(t, err)
	<-agg.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, svc.Wait(ctx), context.DeadlineExceeded)

	close(agg.release)
	assert.NoError(t, svc.Wait(context.Background()))
}

func TestConcurrentSubmissions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, coordinator.Config{MinParticipants: 3, AutoAggregate: true})
	seed(t, svc)

	const clients = 30
	var wg sync.WaitGroup
	for i := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(ctx, fmt.Sprintf("client-%d", i), weights(float64(i), 1))
			assert.NoError(t, err)

			snap, err := svc.Artifact(ctx)
			if assert.NoError(t, err) {
				assert.Equal(t, snap.Manifest().ContentHash, artifact.Digest(snap.InferenceData))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, svc.Wait(ctx))

	st, err := svc.Status(ctx)
	require.NoError(t, err)
	page, err := svc.ListRounds(ctx, 0, 100)
	require.NoError(t, err)

	seen := st.PendingUpdates
	for _, r := range page.Rounds {
		assert.Equal(t, fl.RoundSucceeded, r.Status)
		seen += len(r.Participants)
	}
	assert.Equal(t, clients, seen)
	assert.Equal(t, uint64(len(page.Rounds)), st.CompletedRounds)
	assert.Equal(t, uint64(clients), st.TotalUploads)

	m, err := svc.Manifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, st.CompletedRounds, m.Version)
}

func TestSchemaAfterRound(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc   string
		fail   bool
		err    error
		status fl.RoundStatus
	}{
		{
			desc:   "successful round lets the next update define the schema",
			status: fl.RoundSucceeded,
		},
		{
			desc:   "failed round keeps the schema of the restored updates",
			fail:   true,
			err:    fl.ErrSchemaMismatch,
			status: fl.RoundFailed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := &failingStore{Store: artifact.NewMemoryStore(0)}
			svc := newService(t, coordinator.Config{MinParticipants: 2}, withStore(store))
			seed(t, svc)

			_, err := svc.Submit(ctx, "a", weights(1, 2))
			require.NoError(t, err)
			_, err = svc.Submit(ctx, "b", weights(3, 4))
			require.NoError(t, err)

			store.setFail(tc.fail)
			round, err := svc.TriggerRound(ctx)
			assert.Equal(t, tc.status, round.Status)
			if !tc.fail {
				require.NoError(t, err)
			}

			_, err = svc.Submit(ctx, "c", weights(1, 2, 3))
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)

			_, err = svc.Submit(ctx, "d", weights(1, 2))
			assert.ErrorIs(t, err, fl.ErrSchemaMismatch)

			st, err := svc.Status(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, st.PendingUpdates)
		})
	}
}

func TestRoundNumberContinuesAfterRecovery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	store, err := artifact.NewFileStore(dir, 0)
	require.NoError(t, err)
	svc := newService(t, coordinator.Config{MinParticipants: 1}, withStore(store))
	seed(t, svc)

	const rounds = 3
	for i := range rounds {
		_, err := svc.Submit(ctx, "a", weights(float64(i), 1))
		require.NoError(t, err)
		_, err = svc.TriggerRound(ctx)
		require.NoError(t, err)
	}

	reopened, err := artifact.NewFileStore(dir, 0)
	require.NoError(t, err)
	restarted := newService(t, coordinator.Config{MinParticipants: 1}, withStore(reopened), withRecovery())

	st, err := restarted.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(rounds), st.CompletedRounds)

	_, err = restarted.Submit(ctx, "a", weights(9, 9))
	require.NoError(t, err)
	round, err := restarted.TriggerRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(rounds), round.Number)
	require.NotNil(t, round.ResultVersion)
	assert.Equal(t, uint64(rounds+1), *round.ResultVersion)
}

func TestWaitWhileRoundsStart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, coordinator.Config{MinParticipants: 1, AutoAggregate: true})
	seed(t, svc)

	const clients = 20
	var wg sync.WaitGroup
	for i := range clients {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(ctx, fmt.Sprintf("client-%d", i), weights(float64(i), 1))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.Wait(ctx))
		}()
	}
	wg.Wait()
	require.NoError(t, svc.Wait(ctx))

	st, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, fl.Idle, st.State)
	assert.Equal(t, 0, st.PendingUpdates)
	assert.Equal(t, uint64(clients), st.TotalUploads)
}
