package middleware

import (
	"context"
	"time"

	"github.com/absmach/fedmodel/coordinator"
	"github.com/absmach/fedmodel/pkg/artifact"
	"github.com/absmach/fedmodel/pkg/fl"
	"github.com/absmach/fedmodel/pkg/tensor"
	"github.com/go-kit/kit/metrics"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) observe(method string, begin time.Time) {
	mm.counter.With("method", method).Add(1)
	mm.latency.With("method", method).Observe(time.Since(begin).Seconds())
}

func (mm *metricsMiddleware) Submit(ctx context.Context, clientID string, weights tensor.Weights) (coordinator.SubmitResult, error) {
	defer mm.observe("submit-update", time.Now())

	return mm.svc.Submit(ctx, clientID, weights)
}

func (mm *metricsMiddleware) TriggerRound(ctx context.Context) (fl.Round, error) {
	defer mm.observe("trigger-round", time.Now())

	return mm.svc.TriggerRound(ctx)
}

func (mm *metricsMiddleware) GetRound(ctx context.Context, id string) (fl.Round, error) {
	defer mm.observe("get-round", time.Now())

	return mm.svc.GetRound(ctx, id)
}

func (mm *metricsMiddleware) ListRounds(ctx context.Context, offset, limit uint64) (fl.RoundPage, error) {
	defer mm.observe("list-rounds", time.Now())

	return mm.svc.ListRounds(ctx, offset, limit)
}

func (mm *metricsMiddleware) Manifest(ctx context.Context) (artifact.Manifest, error) {
	defer mm.observe("get-manifest", time.Now())

	return mm.svc.Manifest(ctx)
}

func (mm *metricsMiddleware) Artifact(ctx context.Context) (artifact.Snapshot, error) {
	defer mm.observe("get-artifact", time.Now())

	return mm.svc.Artifact(ctx)
}

func (mm *metricsMiddleware) ListArtifacts(ctx context.Context, offset, limit uint64) (coordinator.ArtifactPage, error) {
	defer mm.observe("list-artifacts", time.Now())

	return mm.svc.ListArtifacts(ctx, offset, limit)
}

func (mm *metricsMiddleware) Seed(ctx context.Context, weights tensor.Weights) (artifact.Manifest, error) {
	defer mm.observe("seed-model", time.Now())

	return mm.svc.Seed(ctx, weights)
}

func (mm *metricsMiddleware) Status(ctx context.Context) (coordinator.Status, error) {
	defer mm.observe("get-status", time.Now())

	return mm.svc.Status(ctx)
}

func (mm *metricsMiddleware) Wait(ctx context.Context) error {
	return mm.svc.Wait(ctx)
}
