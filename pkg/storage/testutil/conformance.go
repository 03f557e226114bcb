package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/absmach/fedmodel/pkg/artifact"
	pkgerrors "github.com/absmach/fedmodel/pkg/errors"
	"github.com/absmach/fedmodel/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RoundRepository exercises repo, which must start empty.
func RoundRepository(t *testing.T, repo storage.RoundRepository) {
	t.Helper()
	ctx := context.Background()

	third := TestRound(3 * time.Second)
	first := TestRound(1 * time.Second)
	second := TestRound(2 * time.Second)

	require.NoError(t, repo.Save(ctx, third))
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, first.Number, got.Number)
	assert.Equal(t, first.Status, got.Status)
	assert.Equal(t, first.Trigger, got.Trigger)
	assert.Equal(t, first.Participants, got.Participants)
	assert.True(t, first.StartedAt.Equal(got.StartedAt))
	assert.Nil(t, got.ResultVersion)

	finished := Finish(first, 7)
	require.NoError(t, repo.Save(ctx, finished))
	got, err = repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, finished.Status, got.Status)
	require.NotNil(t, got.ResultVersion)
	assert.Equal(t, uint64(7), *got.ResultVersion)
	assert.True(t, finished.FinishedAt.Equal(got.FinishedAt))

	_, err = repo.Get(ctx, "invalid-id-that-does-not-exist")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	cases := []struct {
		desc   string
		offset uint64
		limit  uint64
		ids    []string
	}{
		{
			desc:   "all rounds in start order",
			offset: 0,
			limit:  10,
			ids:    []string{first.ID, second.ID, third.ID},
		},
		{
			desc:   "second page",
			offset: 1,
			limit:  1,
			ids:    []string{second.ID},
		},
		{
			desc:   "offset past end",
			offset: 5,
			limit:  10,
			ids:    []string{},
		},
	}

	for _, tc := range cases {
		rounds, total, err := repo.List(ctx, tc.offset, tc.limit)
		require.NoError(t, err, tc.desc)
		assert.Equal(t, uint64(3), total, tc.desc)
		ids := make([]string, 0, len(rounds))
		for _, r := range rounds {
			ids = append(ids, r.ID)
		}
		assert.Equal(t, tc.ids, ids, tc.desc)
	}
}

// ArtifactRepository exercises repo, which must start empty.
func ArtifactRepository(t *testing.T, repo storage.ArtifactRepository) {
	t.Helper()
	ctx := context.Background()

	records := []artifact.Artifact{
		TestArtifact(1, artifact.Training),
		TestArtifact(0, artifact.Inference),
		TestArtifact(1, artifact.Inference),
		TestArtifact(0, artifact.Training),
	}
	for _, a := range records {
		require.NoError(t, repo.Create(ctx, a))
	}

	assert.Error(t, repo.Create(ctx, TestArtifact(1, artifact.Inference)))

	list, total, err := repo.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), total)
	require.Len(t, list, 4)

	want := []struct {
		version uint64
		format  artifact.Format
	}{
		{0, artifact.Inference},
		{0, artifact.Training},
		{1, artifact.Inference},
		{1, artifact.Training},
	}
	for i, w := range want {
		assert.Equal(t, w.version, list[i].Version)
		assert.Equal(t, w.format, list[i].Format)
		assert.Equal(t, TestArtifact(w.version, w.format).ContentHash, list[i].ContentHash)
		assert.Equal(t, int64(1), list[i].SizeBytes)
	}

	page, total, err := repo.List(ctx, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), total)
	require.Len(t, page, 1)
	assert.Equal(t, artifact.Training, page[0].Format)
}
