package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/fedmodel/pkg/artifact"
	"github.com/absmach/fedmodel/pkg/fl"
	"github.com/absmach/fedmodel/pkg/storage"
	"github.com/absmach/fedmodel/pkg/tensor"
)

type service struct {
	cfg        Config
	aggregator fl.Aggregator
	converter  artifact.Converter
	publisher  *artifact.Publisher
	rounds     storage.RoundRepository
	artifacts  storage.ArtifactRepository
	notifier   Notifier
	logger     *slog.Logger
	now        func() time.Time

	// mu guards everything below. It is never held while aggregating.
	mu              sync.Mutex
	state           fl.State
	buffer          *fl.Buffer
	deferred        bool
	completed       uint64
	failed          uint64
	totalUploads    uint64
	clients         map[string]struct{}
	lastAggregation time.Time
	// inflight counts running rounds. idle is closed when it drops to zero.
	inflight int
	idle     chan struct{}
}

// NewService wires a coordinator. notifier may be nil.
func NewService(
	cfg Config,
	aggregator fl.Aggregator,
	converter artifact.Converter,
	publisher *artifact.Publisher,
	repos *storage.Repositories,
	notifier Notifier,
	logger *slog.Logger,
) Service {
	if cfg.MinParticipants < 1 {
		cfg.MinParticipants = 1
	}

	// Version 0 is the seed and every successful round adds one, so a
	// recovered version is the number of rounds completed before restart.
	var completed uint64
	if m, err := publisher.Manifest(); err == nil {
		completed = m.Version
	}

	return &service{
		cfg:        cfg,
		aggregator: aggregator,
		converter:  converter,
		publisher:  publisher,
		rounds:     repos.Rounds,
		artifacts:  repos.Artifacts,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
		state:      fl.Idle,
		buffer:     fl.NewBuffer(),
		clients:    make(map[string]struct{}),
		completed:  completed,
	}
}

func (svc *service) Submit(ctx context.Context, clientID string, weights tensor.Weights) (SubmitResult, error) {
	u := fl.ClientUpdate{
		ClientID:   clientID,
		Weights:    weights,
		ReceivedAt: svc.now().UTC(),
	}
	if err := fl.ValidateUpdate(u); err != nil {
		return SubmitResult{}, err
	}

	svc.mu.Lock()
	replaced, err := svc.buffer.Add(u)
	if err != nil {
		svc.mu.Unlock()

		return SubmitResult{}, err
	}
	svc.totalUploads++
	svc.clients[clientID] = struct{}{}
	if svc.state == fl.Idle {
		if err := svc.transition(fl.Accumulating); err != nil {
			svc.mu.Unlock()

			return SubmitResult{}, err
		}
	}

	res := SubmitResult{
		ClientID:        clientID,
		Replaced:        replaced,
		PendingUpdates:  svc.buffer.Len(),
		MinParticipants: svc.cfg.MinParticipants,
	}

	var (
		round   fl.Round
		updates []fl.ClientUpdate
		started bool
	)
	if svc.cfg.AutoAggregate && svc.buffer.Len() >= svc.cfg.MinParticipants {
		switch svc.state {
		case fl.Aggregating:
			svc.deferred = true
		default:
			round, updates, err = svc.startLocked(fl.TriggerAuto)
			if err != nil {
				svc.mu.Unlock()

				return SubmitResult{}, err
			}
			started = true
			res.RoundID = round.ID
		}
	}
	svc.mu.Unlock()

	if started {
		go svc.run(context.WithoutCancel(ctx), round, updates)
	}

	return res, nil
}

func (svc *service) TriggerRound(ctx context.Context) (fl.Round, error) {
	svc.mu.Lock()
	if svc.state == fl.Aggregating {
		svc.mu.Unlock()

		return fl.Round{}, fl.ErrRoundInProgress
	}
	if n := svc.buffer.Len(); n < svc.cfg.MinParticipants {
		svc.mu.Unlock()

		return fl.Round{}, fmt.Errorf("%w: %d of %d", fl.ErrInsufficientParticipants, n, svc.cfg.MinParticipants)
	}
	round, updates, err := svc.startLocked(fl.TriggerManual)
	svc.mu.Unlock()
	if err != nil {
		return fl.Round{}, err
	}

	// Aggregation is not cancellable by the caller.
	return svc.run(context.WithoutCancel(ctx), round, updates)
}

func (svc *service) GetRound(ctx context.Context, id string) (fl.Round, error) {
	return svc.rounds.Get(ctx, id)
}

func (svc *service) ListRounds(ctx context.Context, offset, limit uint64) (fl.RoundPage, error) {
	rounds, total, err := svc.rounds.List(ctx, offset, limit)
	if err != nil {
		return fl.RoundPage{}, err
	}

	return fl.RoundPage{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Rounds: rounds,
	}, nil
}

func (svc *service) Manifest(_ context.Context) (artifact.Manifest, error) {
	return svc.publisher.Manifest()
}

func (svc *service) Artifact(_ context.Context) (artifact.Snapshot, error) {
	return svc.publisher.Current()
}

func (svc *service) ListArtifacts(ctx context.Context, offset, limit uint64) (ArtifactPage, error) {
	artifacts, total, err := svc.artifacts.List(ctx, offset, limit)
	if err != nil {
		return ArtifactPage{}, err
	}

	return ArtifactPage{
		Offset:    offset,
		Limit:     limit,
		Total:     total,
		Artifacts: artifacts,
	}, nil
}

func (svc *service) Seed(ctx context.Context, weights tensor.Weights) (artifact.Manifest, error) {
	if len(weights) == 0 {
		return artifact.Manifest{}, fl.ErrEmptyPayload
	}
	if err := weights.Validate(); err != nil {
		return artifact.Manifest{}, fmt.Errorf("%w: %w", fl.ErrInvalidUpdate, err)
	}

	conv, err := svc.converter.Initial(weights)
	if err != nil {
		return artifact.Manifest{}, err
	}
	snap, err := svc.publisher.PublishInitial(ctx, conv.Training, conv.Inference)
	if err != nil {
		return artifact.Manifest{}, err
	}
	svc.logger.InfoContext(ctx, "Published initial model", "version", snap.Inference.Version, "content_hash", snap.Inference.ContentHash)
	svc.announce(ctx, snap)

	return snap.Manifest(), nil
}

func (svc *service) Status(ctx context.Context) (Status, error) {
	svc.mu.Lock()
	st := Status{
		State:           svc.state,
		PendingUpdates:  svc.buffer.Len(),
		MinParticipants: svc.cfg.MinParticipants,
		AutoAggregate:   svc.cfg.AutoAggregate,
		TotalUploads:    svc.totalUploads,
		UniqueClients:   len(svc.clients),
		CompletedRounds: svc.completed,
		FailedRounds:    svc.failed,
		LastAggregation: svc.lastAggregation,
	}
	svc.mu.Unlock()

	if m, err := svc.publisher.Manifest(); err == nil {
		st.ModelAvailable = true
		st.CurrentVersion = &m.Version
	}

	archived, err := svc.publisher.Archived(ctx)
	if err != nil {
		svc.logger.WarnContext(ctx, "Failed to count archived artifacts", "error", err)
	}
	st.ArchivedArtifacts = archived

	return st, nil
}

func (svc *service) Wait(ctx context.Context) error {
	svc.mu.Lock()
	if svc.inflight == 0 {
		svc.mu.Unlock()

		return nil
	}
	idle := svc.idle
	svc.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// announce records a published snapshot in the artifact log and notifies
// subscribers. Failures here do not undo the publication.
func (svc *service) announce(ctx context.Context, snap artifact.Snapshot) {
	for _, a := range []artifact.Artifact{snap.Training, snap.Inference} {
		if err := svc.artifacts.Create(ctx, a); err != nil {
			svc.logger.WarnContext(ctx, "Failed to record artifact", "version", a.Version, "format", a.Format, "error", err)
		}
	}

	if svc.notifier == nil {
		return
	}
	if err := svc.notifier.Notify(ctx, snap.Manifest()); err != nil {
		svc.logger.WarnContext(ctx, "Failed to announce model version", "version", snap.Inference.Version, "error", err)
	}
}
