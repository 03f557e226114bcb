package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/absmach/fedmodel/pkg/artifact"
	pkgerrors "github.com/absmach/fedmodel/pkg/errors"
	"github.com/dgraph-io/badger/v4"
)

const artifactPrefix = "artifact:"

type artifactRepo struct {
	db *Database
}

func NewArtifactRepository(db *Database) ArtifactRepository {
	return &artifactRepo{db: db}
}

func artifactKey(a artifact.Artifact) []byte {
	return fmt.Appendf(nil, "%s%020d:%s", artifactPrefix, a.Version, a.Format)
}

func (r *artifactRepo) Create(_ context.Context, a artifact.Artifact) error {
	val, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	key := artifactKey(a)
	err = r.db.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return pkgerrors.ErrEntityExists
		}

		return txn.Set(key, val)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *artifactRepo) List(_ context.Context, offset, limit uint64) ([]artifact.Artifact, uint64, error) {
	total, err := r.db.countWithPrefix([]byte(artifactPrefix))
	if err != nil {
		return nil, 0, err
	}

	items, err := r.db.listWithPrefix([]byte(artifactPrefix), offset, limit)
	if err != nil {
		return nil, 0, err
	}

	artifacts := make([]artifact.Artifact, 0, len(items))
	for _, item := range items {
		var a artifact.Artifact
		if err := json.Unmarshal(item, &a); err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrDBScan, err)
		}
		artifacts = append(artifacts, a)
	}

	return artifacts, total, nil
}
