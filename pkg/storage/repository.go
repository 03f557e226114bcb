package storage

import (
	"context"

	"github.com/absmach/fedmodel/pkg/artifact"
	"github.com/absmach/fedmodel/pkg/fl"
)

// RoundRepository is the audit log of aggregation attempts. List is ordered
// by start time, oldest first.
type RoundRepository interface {
	// Save inserts r or replaces the stored round with the same ID.
	Save(ctx context.Context, r fl.Round) error
	Get(ctx context.Context, id string) (fl.Round, error)
	List(ctx context.Context, offset, limit uint64) ([]fl.Round, uint64, error)
}

// ArtifactRepository records every published artifact. List is ordered by
// version, then format.
type ArtifactRepository interface {
	Create(ctx context.Context, a artifact.Artifact) error
	List(ctx context.Context, offset, limit uint64) ([]artifact.Artifact, uint64, error)
}
