package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/absmach/fedmodel/pkg/fl"
)

type dbRound struct {
	ID            string        `db:"id"`
	Number        int64         `db:"number"`
	Trigger       string        `db:"trigger_type"`
	Status        string        `db:"status"`
	Participants  string        `db:"participants"`
	StartedAt     time.Time     `db:"started_at"`
	FinishedAt    sql.NullTime  `db:"finished_at"`
	ResultVersion sql.NullInt64 `db:"result_version"`
	Error         string        `db:"error"`
}

func toDBRound(r fl.Round) (dbRound, error) {
	participants, err := json.Marshal(r.Participants)
	if err != nil {
		return dbRound{}, err
	}

	dbr := dbRound{
		ID:           r.ID,
		Number:       clamp(r.Number),
		Trigger:      string(r.Trigger),
		Status:       string(r.Status),
		Participants: string(participants),
		StartedAt:    r.StartedAt.UTC(),
		Error:        r.Error,
	}
	if !r.FinishedAt.IsZero() {
		dbr.FinishedAt = sql.NullTime{Time: r.FinishedAt.UTC(), Valid: true}
	}
	if r.ResultVersion != nil {
		dbr.ResultVersion = sql.NullInt64{Int64: clamp(*r.ResultVersion), Valid: true}
	}

	return dbr, nil
}

func (dbr dbRound) toRound() (fl.Round, error) {
	r := fl.Round{
		ID:        dbr.ID,
		Number:    uint64(dbr.Number),
		Trigger:   fl.Trigger(dbr.Trigger),
		Status:    fl.RoundStatus(dbr.Status),
		StartedAt: dbr.StartedAt,
		Error:     dbr.Error,
	}
	if err := json.Unmarshal([]byte(dbr.Participants), &r.Participants); err != nil {
		return fl.Round{}, err
	}
	if dbr.FinishedAt.Valid {
		r.FinishedAt = dbr.FinishedAt.Time
	}
	if dbr.ResultVersion.Valid {
		v := uint64(dbr.ResultVersion.Int64)
		r.ResultVersion = &v
	}

	return r, nil
}

type roundRepo struct {
	db *Database
}

func NewRoundRepository(db *Database) RoundRepository {
	return &roundRepo{db: db}
}

func (r *roundRepo) Save(ctx context.Context, round fl.Round) error {
	dbr, err := toDBRound(round)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	q := `INSERT INTO rounds (id, number, trigger_type, status, participants, started_at, finished_at, result_version, error)
		VALUES (:id, :number, :trigger_type, :status, :participants, :started_at, :finished_at, :result_version, :error)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			participants = excluded.participants,
			finished_at = excluded.finished_at,
			result_version = excluded.result_version,
			error = excluded.error`
	if _, err := r.db.NamedExecContext(ctx, q, dbr); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return nil
}

func (r *roundRepo) Get(ctx context.Context, id string) (fl.Round, error) {
	var dbr dbRound
	if err := r.db.GetContext(ctx, &dbr, `SELECT * FROM rounds WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fl.Round{}, ErrNotFound
		}

		return fl.Round{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	round, err := dbr.toRound()
	if err != nil {
		return fl.Round{}, fmt.Errorf("%w: %w", ErrDBScan, err)
	}

	return round, nil
}

func (r *roundRepo) List(ctx context.Context, offset, limit uint64) ([]fl.Round, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM rounds`); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	var dbrs []dbRound
	if err := r.db.SelectContext(
		ctx,
		&dbrs,
		`SELECT * FROM rounds ORDER BY started_at ASC, id ASC LIMIT $1 OFFSET $2`,
		clamp(limit),
		clamp(offset),
	); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	rounds := make([]fl.Round, 0, len(dbrs))
	for _, dbr := range dbrs {
		round, err := dbr.toRound()
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrDBScan, err)
		}
		rounds = append(rounds, round)
	}

	return rounds, total, nil
}
