// Package artifact converts aggregated weights into versioned model artifacts
// and owns their publication.
package artifact

import (
	"context"
	"time"
)

type Format string

const (
	Training  Format = "training"
	Inference Format = "inference"
)

// Artifact describes one stored representation of a model version.
type Artifact struct {
	Version     uint64    `json:"version"`
	Format      Format    `json:"format"`
	ContentHash string    `json:"content_hash"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
	Location    string    `json:"location,omitempty"`
}

// Manifest is what clients poll to decide whether to download.
type Manifest struct {
	Version      uint64    `json:"version"`
	ContentHash  string    `json:"content_hash"`
	SizeBytes    int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
}

// Snapshot is one published model version. Its byte slices are never
// modified after publication.
type Snapshot struct {
	Training      Artifact
	Inference     Artifact
	TrainingData  []byte
	InferenceData []byte
}

func (s Snapshot) Manifest() Manifest {
	return Manifest{
		Version:      s.Inference.Version,
		ContentHash:  s.Inference.ContentHash,
		SizeBytes:    s.Inference.SizeBytes,
		LastModified: s.Inference.CreatedAt,
	}
}

// Store persists published snapshots. Save must make the new snapshot
// current atomically: after a failed Save, Load still returns the previous
// one.
type Store interface {
	Save(ctx context.Context, s Snapshot) (Snapshot, error)
	// Load returns the current snapshot and false when nothing was saved.
	Load(ctx context.Context) (Snapshot, bool, error)
	// Prune drops superseded versions beyond the retention limit.
	Prune(ctx context.Context) error
	// Archived counts retained superseded versions.
	Archived(ctx context.Context) (int, error)
}
