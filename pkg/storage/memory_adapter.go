package storage

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/absmach/fedmodel/pkg/artifact"
	pkgerrors "github.com/absmach/fedmodel/pkg/errors"
	"github.com/absmach/fedmodel/pkg/fl"
)

type memoryRoundRepo struct {
	storage Storage
}

func NewMemoryRoundRepository(s Storage) RoundRepository {
	return &memoryRoundRepo{storage: s}
}

func (r *memoryRoundRepo) Save(ctx context.Context, round fl.Round) error {
	round.Participants = slices.Clone(round.Participants)
	err := r.storage.Create(ctx, round.ID, round)
	if errors.Is(err, pkgerrors.ErrEntityExists) {
		return r.storage.Update(ctx, round.ID, round)
	}

	return err
}

func (r *memoryRoundRepo) Get(ctx context.Context, id string) (fl.Round, error) {
	data, err := r.storage.Get(ctx, id)
	if err != nil {
		return fl.Round{}, err
	}
	round, ok := data.(fl.Round)
	if !ok {
		return fl.Round{}, pkgerrors.ErrInvalidData
	}

	return round, nil
}

func (r *memoryRoundRepo) List(ctx context.Context, offset, limit uint64) ([]fl.Round, uint64, error) {
	data, total, err := r.storage.List(ctx, 0, math.MaxUint64)
	if err != nil {
		return nil, 0, err
	}
	rounds := make([]fl.Round, len(data))
	for i, d := range data {
		round, ok := d.(fl.Round)
		if !ok {
			return nil, 0, pkgerrors.ErrInvalidData
		}
		rounds[i] = round
	}
	slices.SortFunc(rounds, func(a, b fl.Round) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})

	if offset >= total {
		return []fl.Round{}, total, nil
	}
	end := total
	if limit < total-offset {
		end = offset + limit
	}

	return rounds[offset:end], total, nil
}

type memoryArtifactRepo struct {
	storage Storage
}

func NewMemoryArtifactRepository(s Storage) ArtifactRepository {
	return &memoryArtifactRepo{storage: s}
}

func artifactKey(a artifact.Artifact) string {
	return fmt.Sprintf("%020d:%s", a.Version, a.Format)
}

func (r *memoryArtifactRepo) Create(ctx context.Context, a artifact.Artifact) error {
	return r.storage.Create(ctx, artifactKey(a), a)
}

func (r *memoryArtifactRepo) List(ctx context.Context, offset, limit uint64) ([]artifact.Artifact, uint64, error) {
	data, total, err := r.storage.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	artifacts := make([]artifact.Artifact, len(data))
	for i, d := range data {
		a, ok := d.(artifact.Artifact)
		if !ok {
			return nil, 0, pkgerrors.ErrInvalidData
		}
		artifacts[i] = a
	}

	return artifacts, total, nil
}
