package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/absmach/fedmodel/pkg/fl"
	"github.com/dgraph-io/badger/v4"
)

const (
	roundPrefix      = "round:"
	roundIndexPrefix = "round-at:"
)

type roundRepo struct {
	db *Database
}

func NewRoundRepository(db *Database) RoundRepository {
	return &roundRepo{db: db}
}

func roundKey(id string) []byte {
	return []byte(roundPrefix + id)
}

// roundIndexKey orders rounds by start time. Its value is the round ID.
func roundIndexKey(r fl.Round) []byte {
	return fmt.Appendf(nil, "%s%020d:%s", roundIndexPrefix, r.StartedAt.UnixNano(), r.ID)
}

func (r *roundRepo) Save(_ context.Context, round fl.Round) error {
	val, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	err = r.db.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(roundKey(round.ID))
		switch {
		case err == nil:
			var old fl.Round
			if err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &old)
			}); err != nil {
				return err
			}
			if err := txn.Delete(roundIndexKey(old)); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := txn.Set(roundKey(round.ID), val); err != nil {
			return err
		}

		return txn.Set(roundIndexKey(round), []byte(round.ID))
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return nil
}

func (r *roundRepo) Get(_ context.Context, id string) (fl.Round, error) {
	val, err := r.db.get(roundKey(id))
	if err != nil {
		return fl.Round{}, err
	}

	var round fl.Round
	if err := json.Unmarshal(val, &round); err != nil {
		return fl.Round{}, fmt.Errorf("%w: %w", ErrDBScan, err)
	}

	return round, nil
}

func (r *roundRepo) List(ctx context.Context, offset, limit uint64) ([]fl.Round, uint64, error) {
	total, err := r.db.countWithPrefix([]byte(roundIndexPrefix))
	if err != nil {
		return nil, 0, err
	}

	ids, err := r.db.listWithPrefix([]byte(roundIndexPrefix), offset, limit)
	if err != nil {
		return nil, 0, err
	}

	rounds := make([]fl.Round, 0, len(ids))
	for _, id := range ids {
		round, err := r.Get(ctx, string(id))
		if err != nil {
			return nil, 0, err
		}
		rounds = append(rounds, round)
	}

	return rounds, total, nil
}
