package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/absmach/fedmodel/pkg/artifact"
)

type dbArtifact struct {
	Version     int64     `db:"version"`
	Format      string    `db:"format"`
	ContentHash string    `db:"content_hash"`
	SizeBytes   int64     `db:"size_bytes"`
	CreatedAt   time.Time `db:"created_at"`
	Location    string    `db:"location"`
}

type artifactRepo struct {
	db *Database
}

func NewArtifactRepository(db *Database) ArtifactRepository {
	return &artifactRepo{db: db}
}

func (r *artifactRepo) Create(ctx context.Context, a artifact.Artifact) error {
	dba := dbArtifact{
		Version:     clamp(a.Version),
		Format:      string(a.Format),
		ContentHash: a.ContentHash,
		SizeBytes:   a.SizeBytes,
		CreatedAt:   a.CreatedAt.UTC(),
		Location:    a.Location,
	}

	q := `INSERT INTO artifacts (version, format, content_hash, size_bytes, created_at, location)
		VALUES (:version, :format, :content_hash, :size_bytes, :created_at, :location)`
	if _, err := r.db.NamedExecContext(ctx, q, dba); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *artifactRepo) List(ctx context.Context, offset, limit uint64) ([]artifact.Artifact, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM artifacts`); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	var dbas []dbArtifact
	if err := r.db.SelectContext(
		ctx,
		&dbas,
		`SELECT * FROM artifacts ORDER BY version ASC, format ASC LIMIT $1 OFFSET $2`,
		clamp(limit),
		clamp(offset),
	); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	artifacts := make([]artifact.Artifact, 0, len(dbas))
	for _, dba := range dbas {
		artifacts = append(artifacts, artifact.Artifact{
			Version:     uint64(dba.Version),
			Format:      artifact.Format(dba.Format),
			ContentHash: dba.ContentHash,
			SizeBytes:   dba.SizeBytes,
			CreatedAt:   dba.CreatedAt,
			Location:    dba.Location,
		})
	}

	return artifacts, total, nil
}
