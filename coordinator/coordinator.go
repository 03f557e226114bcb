// Package coordinator runs federated aggregation rounds: it buffers client
// updates, aggregates them once enough participants contributed, publishes
// the resulting model version and serves it back to clients.
package coordinator

import (
	"context"
	"time"

	"github.com/absmach/fedmodel/pkg/artifact"
	"github.com/absmach/fedmodel/pkg/fl"
	"github.com/absmach/fedmodel/pkg/tensor"
)

type Service interface {
	// Submit validates and buffers a client update. When auto aggregation
	// is enabled and the buffer reaches the participant threshold, a round
	// starts in the background.
	Submit(ctx context.Context, clientID string, weights tensor.Weights) (SubmitResult, error)
	// TriggerRound aggregates the pending updates and blocks until the
	// round finishes.
	TriggerRound(ctx context.Context) (fl.Round, error)
	GetRound(ctx context.Context, id string) (fl.Round, error)
	ListRounds(ctx context.Context, offset, limit uint64) (fl.RoundPage, error)

	Manifest(ctx context.Context) (artifact.Manifest, error)
	Artifact(ctx context.Context) (artifact.Snapshot, error)
	ListArtifacts(ctx context.Context, offset, limit uint64) (ArtifactPage, error)
	// Seed publishes the initial model as version 0.
	Seed(ctx context.Context, weights tensor.Weights) (artifact.Manifest, error)

	Status(ctx context.Context) (Status, error)
	// Wait blocks until no round is running.
	Wait(ctx context.Context) error
}

type Config struct {
	MinParticipants int  `env:"FL_MIN_PARTICIPANTS" envDefault:"2"    toml:"min_participants" default:"2"`
	AutoAggregate   bool `env:"FL_AUTO_AGGREGATE"   envDefault:"true" toml:"auto_aggregate"   default:"true"`
	// RoundSchedule is an optional cron expression for periodic rounds.
	RoundSchedule    string `env:"FL_ROUND_SCHEDULE"    toml:"round_schedule"`
	ScheduleTimezone string `env:"FL_SCHEDULE_TIMEZONE" toml:"schedule_timezone"`
}

// Notifier announces newly published model versions.
type Notifier interface {
	Notify(ctx context.Context, m artifact.Manifest) error
}

type SubmitResult struct {
	ClientID        string `json:"client_id"`
	Replaced        bool   `json:"replaced"`
	PendingUpdates  int    `json:"pending_updates"`
	MinParticipants int    `json:"min_participants"`
	// RoundID is set when this update started an aggregation round.
	RoundID string `json:"round_id,omitempty"`
}

type ArtifactPage struct {
	Offset    uint64              `json:"offset"`
	Limit     uint64              `json:"limit"`
	Total     uint64              `json:"total"`
	Artifacts []artifact.Artifact `json:"artifacts"`
}

type Status struct {
	State             fl.State  `json:"state"`
	PendingUpdates    int       `json:"pending_updates"`
	MinParticipants   int       `json:"min_participants"`
	AutoAggregate     bool      `json:"auto_aggregate"`
	TotalUploads      uint64    `json:"total_uploads"`
	UniqueClients     int       `json:"unique_clients"`
	CompletedRounds   uint64    `json:"completed_rounds"`
	FailedRounds      uint64    `json:"failed_rounds"`
	ModelAvailable    bool      `json:"model_available"`
	CurrentVersion    *uint64   `json:"current_version,omitempty"`
	ArchivedArtifacts int       `json:"archived_artifacts"`
	LastAggregation   time.Time `json:"last_aggregation,omitzero"`
}
