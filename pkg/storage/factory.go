package storage

import (
	"fmt"
	"io"

	"github.com/absmach/fedmodel/pkg/storage/badger"
	"github.com/absmach/fedmodel/pkg/storage/postgres"
	"github.com/absmach/fedmodel/pkg/storage/sqlite"
)

type Config struct {
	Type string `env:"FL_STORAGE_TYPE" envDefault:"memory" toml:"type" default:"memory"`

	PostgresHost    string `env:"FL_POSTGRES_HOST"    envDefault:"localhost" toml:"postgres_host"    default:"localhost"`
	PostgresPort    string `env:"FL_POSTGRES_PORT"    envDefault:"5432"      toml:"postgres_port"    default:"5432"`
	PostgresUser    string `env:"FL_POSTGRES_USER"    envDefault:"fedmodel"  toml:"postgres_user"    default:"fedmodel"`
	PostgresPass    string `env:"FL_POSTGRES_PASS"    envDefault:"fedmodel"  toml:"postgres_pass"    default:"fedmodel"`
	PostgresDB      string `env:"FL_POSTGRES_DB"      envDefault:"fedmodel"  toml:"postgres_db"      default:"fedmodel"`
	PostgresSSLMode string `env:"FL_POSTGRES_SSLMODE" envDefault:"disable"   toml:"postgres_sslmode" default:"disable"`

	SQLitePath string `env:"FL_SQLITE_PATH" envDefault:"./fedmodel.db" toml:"sqlite_path" default:"./fedmodel.db"`

	BadgerPath string `env:"FL_BADGER_PATH" envDefault:"./data/badger" toml:"badger_path" default:"./data/badger"`
}

type Repositories struct {
	Rounds    RoundRepository
	Artifacts ArtifactRepository
	// Closer closes the underlying persistent storage connection.
	// It is nil for the in-memory backend.
	Closer io.Closer
}

func NewRepositories(cfg Config) (*Repositories, error) {
	switch cfg.Type {
	case "postgres":
		return newPostgresRepositories(cfg)
	case "sqlite":
		return newSQLiteRepositories(cfg)
	case "badger":
		return newBadgerRepositories(cfg)
	case "memory", "":
		return newMemoryRepositories(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, cfg.Type)
	}
}

func newPostgresRepositories(cfg Config) (*Repositories, error) {
	db, err := postgres.NewDatabase(
		cfg.PostgresHost,
		cfg.PostgresPort,
		cfg.PostgresUser,
		cfg.PostgresPass,
		cfg.PostgresDB,
		cfg.PostgresSSLMode,
	)
	if err != nil {
		return nil, err
	}

	repos := postgres.NewRepositories(db)

	return &Repositories{
		Rounds:    repos.Rounds,
		Artifacts: repos.Artifacts,
		Closer:    db,
	}, nil
}

func newSQLiteRepositories(cfg Config) (*Repositories, error) {
	db, err := sqlite.NewDatabase(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}

	repos := sqlite.NewRepositories(db)

	return &Repositories{
		Rounds:    repos.Rounds,
		Artifacts: repos.Artifacts,
		Closer:    db,
	}, nil
}

func newBadgerRepositories(cfg Config) (*Repositories, error) {
	db, err := badger.NewDatabase(cfg.BadgerPath)
	if err != nil {
		return nil, err
	}

	repos := badger.NewRepositories(db)

	return &Repositories{
		Rounds:    repos.Rounds,
		Artifacts: repos.Artifacts,
		Closer:    db,
	}, nil
}

func newMemoryRepositories() *Repositories {
	return &Repositories{
		Rounds:    NewMemoryRoundRepository(NewInMemoryStorage()),
		Artifacts: NewMemoryArtifactRepository(NewInMemoryStorage()),
	}
}
