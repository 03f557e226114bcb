package coordinator

import (
	"context"
	"fmt"

	"github.com/absmach/fedmodel/pkg/artifact"
	"github.com/absmach/fedmodel/pkg/fl"
	"github.com/google/uuid"
)

// transition must be called with mu held.
func (svc *service) transition(to fl.State) error {
	if !fl.ValidateTransition(svc.state, to) {
		return fmt.Errorf("%w: %s to %s", fl.ErrInvalidStateTransition, svc.state, to)
	}
	svc.state = to

	return nil
}

// startLocked detaches the whole buffer into a new round. Uploads accepted
// from now on go to the emptied buffer. mu must be held.
func (svc *service) startLocked(trigger fl.Trigger) (fl.Round, []fl.ClientUpdate, error) {
	if err := svc.transition(fl.Aggregating); err != nil {
		return fl.Round{}, nil, err
	}

	updates := svc.buffer.Detach()
	participants := make([]string, len(updates))
	for i, u := range updates {
		participants[i] = u.ClientID
	}
	if svc.inflight == 0 {
		svc.idle = make(chan struct{})
	}
	svc.inflight++

	return fl.Round{
		ID:           uuid.NewString(),
		Number:       svc.completed,
		Trigger:      trigger,
		Status:       fl.RoundRunning,
		Participants: participants,
		StartedAt:    svc.now().UTC(),
	}, updates, nil
}

func (svc *service) run(ctx context.Context, round fl.Round, updates []fl.ClientUpdate) (fl.Round, error) {
	defer svc.done()

	svc.logger.InfoContext(ctx, "Aggregation round started",
		"round_id", round.ID,
		"round_number", round.Number,
		"trigger", round.Trigger,
		"participants", len(round.Participants))
	svc.saveRound(ctx, round)

	snap, err := svc.aggregate(ctx, updates)

	return svc.finish(ctx, round, updates, snap, err)
}

// aggregate works on the detached updates only and takes no coordinator
// lock.
func (svc *service) aggregate(ctx context.Context, updates []fl.ClientUpdate) (artifact.Snapshot, error) {
	weights, err := svc.aggregator.Aggregate(updates)
	if err != nil {
		return artifact.Snapshot{}, err
	}

	var previous []byte
	if cur, err := svc.publisher.Current(); err == nil {
		previous = cur.TrainingData
	}

	conv, err := svc.converter.Convert(weights, previous)
	if err != nil {
		return artifact.Snapshot{}, err
	}

	return svc.publisher.Publish(ctx, conv.Training, conv.Inference)
}

func (svc *service) finish(ctx context.Context, round fl.Round, updates []fl.ClientUpdate, snap artifact.Snapshot, err error) (fl.Round, error) {
	round.FinishedAt = svc.now().UTC()

	svc.mu.Lock()
	if err != nil {
		svc.buffer.Restore(updates)
		svc.failed++
		round.Status = fl.RoundFailed
		round.Error = err.Error()
	} else {
		svc.completed++
		svc.lastAggregation = round.FinishedAt
		// The detached set is consumed. An empty buffer lets the next
		// update define a new schema.
		svc.buffer.ClearBaseline()
		version := snap.Inference.Version
		round.ResultVersion = &version
		round.Status = fl.RoundSucceeded
	}

	// Aggregating always returns to Idle, so these transitions cannot fail.
	_ = svc.transition(fl.Idle)
	if svc.buffer.Len() > 0 {
		_ = svc.transition(fl.Accumulating)
	}

	var (
		next        fl.Round
		nextUpdates []fl.ClientUpdate
		restart     bool
	)
	if svc.deferred {
		svc.deferred = false
		if err == nil && svc.cfg.AutoAggregate && svc.buffer.Len() >= svc.cfg.MinParticipants {
			var serr error
			if next, nextUpdates, serr = svc.startLocked(fl.TriggerAuto); serr != nil {
				svc.logger.ErrorContext(ctx, "Failed to start deferred round", "error", serr)
			}
			restart = serr == nil
		}
	}
	svc.mu.Unlock()

	svc.saveRound(ctx, round)

	if err != nil {
		svc.logger.WarnContext(ctx, "Aggregation round failed",
			"round_id", round.ID,
			"round_number", round.Number,
			"duration", round.FinishedAt.Sub(round.StartedAt).String(),
			"error", err)
	} else {
		svc.logger.InfoContext(ctx, "Aggregation round completed",
			"round_id", round.ID,
			"round_number", round.Number,
			"version", snap.Inference.Version,
			"content_hash", snap.Inference.ContentHash,
			"duration", round.FinishedAt.Sub(round.StartedAt).String())
		svc.announce(ctx, snap)
	}

	if restart {
		go svc.run(ctx, next, nextUpdates)
	}

	return round, err
}

func (svc *service) done() {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.inflight--
	if svc.inflight == 0 {
		close(svc.idle)
	}
}

func (svc *service) saveRound(ctx context.Context, round fl.Round) {
	if err := svc.rounds.Save(ctx, round); err != nil {
		svc.logger.WarnContext(ctx, "Failed to record round", "round_id", round.ID, "status", round.Status, "error", err)
	}
}
