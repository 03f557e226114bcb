package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/absmach/fedmodel/pkg/artifact"
	pkgerrors "github.com/absmach/fedmodel/pkg/errors"
	"github.com/absmach/fedmodel/pkg/fl"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	ErrDBConnection = errors.New("database connection error")
	ErrDBQuery      = errors.New("database query error")
	ErrDBScan       = errors.New("database scan error")
	ErrCreate       = errors.New("create error")
	ErrUpdate       = errors.New("update error")
	ErrNotFound     = pkgerrors.ErrNotFound
)

type RoundRepository interface {
	Save(ctx context.Context, r fl.Round) error
	Get(ctx context.Context, id string) (fl.Round, error)
	List(ctx context.Context, offset, limit uint64) ([]fl.Round, uint64, error)
}

type ArtifactRepository interface {
	Create(ctx context.Context, a artifact.Artifact) error
	List(ctx context.Context, offset, limit uint64) ([]artifact.Artifact, uint64, error)
}

type Repositories struct {
	Rounds    RoundRepository
	Artifacts ArtifactRepository
}

func NewRepositories(db *Database) *Repositories {
	return &Repositories{
		Rounds:    NewRoundRepository(db),
		Artifacts: NewArtifactRepository(db),
	}
}

type Database struct {
	*sqlx.DB
}

func NewDatabase(path string) (*Database, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	// A single writer avoids SQLITE_BUSY under concurrent round updates.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &Database{DB: db}

	if err := database.Migrate(); err != nil {
		db.Close()

		return nil, err
	}

	return database, nil
}

func (db *Database) Migrate() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_tables",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS rounds (
						id TEXT PRIMARY KEY,
						number INTEGER NOT NULL,
						trigger_type TEXT NOT NULL,
						status TEXT NOT NULL,
						participants TEXT NOT NULL,
						started_at TIMESTAMP NOT NULL,
						finished_at TIMESTAMP,
						result_version INTEGER,
						error TEXT NOT NULL DEFAULT ''
					)`,
					`CREATE INDEX IF NOT EXISTS idx_rounds_started_at ON rounds(started_at, id)`,
					`CREATE TABLE IF NOT EXISTS artifacts (
						version INTEGER NOT NULL,
						format TEXT NOT NULL,
						content_hash TEXT NOT NULL,
						size_bytes INTEGER NOT NULL,
						created_at TIMESTAMP NOT NULL,
						location TEXT NOT NULL DEFAULT '',
						PRIMARY KEY (version, format)
					)`,
				},
				Down: []string{
					`DROP TABLE IF EXISTS artifacts`,
					`DROP INDEX IF EXISTS idx_rounds_started_at`,
					`DROP TABLE IF EXISTS rounds`,
				},
			},
		},
	}

	if _, err := migrate.Exec(db.DB.DB, "sqlite3", migrations, migrate.Up); err != nil {
		return fmt.Errorf("database migration error: %w", err)
	}

	return nil
}

func clamp(v uint64) int64 {
	const maxInt64 = 1<<63 - 1
	if v > maxInt64 {
		return maxInt64
	}

	return int64(v)
}
