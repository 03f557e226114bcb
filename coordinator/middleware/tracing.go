package middleware

import (
	"context"

	"github.com/absmach/fedmodel/coordinator"
	"github.com/absmach/fedmodel/pkg/artifact"
	"github.com/absmach/fedmodel/pkg/fl"
	"github.com/absmach/fedmodel/pkg/tensor"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ coordinator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) Submit(ctx context.Context, clientID string, weights tensor.Weights) (coordinator.SubmitResult, error) {
	ctx, span := tm.tracer.Start(ctx, "submit-update", trace.WithAttributes(
		attribute.String("client_id", clientID),
		attribute.Int("layers", len(weights)),
	))
	defer span.End()

	return tm.svc.Submit(ctx, clientID, weights)
}

func (tm *tracing) TriggerRound(ctx context.Context) (fl.Round, error) {
	ctx, span := tm.tracer.Start(ctx, "trigger-round")
	defer span.End()

	round, err := tm.svc.TriggerRound(ctx)
	span.SetAttributes(
		attribute.String("round_id", round.ID),
		attribute.Int("participants", len(round.Participants)),
	)

	return round, err
}

func (tm *tracing) GetRound(ctx context.Context, id string) (fl.Round, error) {
	ctx, span := tm.tracer.Start(ctx, "get-round", trace.WithAttributes(
		attribute.String("id", id),
	))
	defer span.End()

	return tm.svc.GetRound(ctx, id)
}

func (tm *tracing) ListRounds(ctx context.Context, offset, limit uint64) (fl.RoundPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-rounds", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListRounds(ctx, offset, limit)
}

func (tm *tracing) Manifest(ctx context.Context) (artifact.Manifest, error) {
	ctx, span := tm.tracer.Start(ctx, "get-manifest")
	defer span.End()

	return tm.svc.Manifest(ctx)
}

func (tm *tracing) Artifact(ctx context.Context) (artifact.Snapshot, error) {
	ctx, span := tm.tracer.Start(ctx, "get-artifact")
	defer span.End()

	snap, err := tm.svc.Artifact(ctx)
	span.SetAttributes(
		attribute.Int64("version", int64(snap.Inference.Version)),
		attribute.String("content_hash", snap.Inference.ContentHash),
	)

	return snap, err
}

func (tm *tracing) ListArtifacts(ctx context.Context, offset, limit uint64) (coordinator.ArtifactPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-artifacts", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListArtifacts(ctx, offset, limit)
}

func (tm *tracing) Seed(ctx context.Context, weights tensor.Weights) (artifact.Manifest, error) {
	ctx, span := tm.tracer.Start(ctx, "seed-model", trace.WithAttributes(
		attribute.Int("layers", len(weights)),
	))
	defer span.End()

	return tm.svc.Seed(ctx, weights)
}

func (tm *tracing) Status(ctx context.Context) (coordinator.Status, error) {
	ctx, span := tm.tracer.Start(ctx, "get-status")
	defer span.End()

	return tm.svc.Status(ctx)
}

func (tm *tracing) Wait(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "wait-rounds")
	defer span.End()

	return tm.svc.Wait(ctx)
}
