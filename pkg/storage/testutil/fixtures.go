package testutil

import (
	"time"

	"github.com/absmach/fedmodel/pkg/artifact"
	"github.com/absmach/fedmodel/pkg/fl"
	"github.com/google/uuid"
)

// TestRound returns a running round started at the given offset from a fixed
// epoch, so fixtures sort predictably.
func TestRound(offset time.Duration) fl.Round {
	return fl.Round{
		ID:           uuid.NewString(),
		Number:       uint64(offset / time.Second),
		Trigger:      fl.TriggerManual,
		Status:       fl.RoundRunning,
		Participants: []string{"client-a", "client-b"},
		StartedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(offset),
	}
}

func Finish(r fl.Round, version uint64) fl.Round {
	r.Status = fl.RoundSucceeded
	r.FinishedAt = r.StartedAt.Add(time.Second)
	r.ResultVersion = &version

	return r
}

func TestArtifact(version uint64, format artifact.Format) artifact.Artifact {
	return artifact.Artifact{
		Version:     version,
		Format:      format,
		ContentHash: artifact.Digest([]byte{byte(version)}),
		SizeBytes:   1,
		CreatedAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(version) * time.Minute),
		Location:    "memory://" + string(format),
	}
}
