package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/absmach/fedmodel/pkg/fl"
)

// Scheduler yields the next activation after a given time.
type Scheduler interface {
	Next(from time.Time) time.Time
}

// RunScheduled triggers a round at every activation of sched until ctx is
// done. Activations that find too few updates or a running round are skipped.
func RunScheduled(ctx context.Context, svc Service, sched Scheduler, logger *slog.Logger) error {
	for {
		next := sched.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()

			return nil
		case <-timer.C:
		}

		round, err := svc.TriggerRound(ctx)
		switch {
		case errors.Is(err, fl.ErrInsufficientParticipants), errors.Is(err, fl.ErrRoundInProgress):
			logger.DebugContext(ctx, "Skipped scheduled round", "reason", err)
		case err != nil:
			logger.WarnContext(ctx, "Scheduled round failed", "round_id", round.ID, "error", err)
		default:
			logger.InfoContext(ctx, "Scheduled round completed", "round_id", round.ID, "participants", len(round.Participants))
		}
	}
}
