package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/fedmodel/coordinator"
	"github.com/absmach/fedmodel/pkg/artifact"
	"github.com/absmach/fedmodel/pkg/fl"
	"github.com/absmach/fedmodel/pkg/tensor"
)

var _ coordinator.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    coordinator.Service
}

func Logging(logger *slog.Logger, svc coordinator.Service) coordinator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) Submit(ctx context.Context, clientID string, weights tensor.Weights) (res coordinator.SubmitResult, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("update",
				slog.String("client_id", clientID),
				slog.Int("layers", len(weights)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit update failed", args...)

			return
		}
		args = append(args,
			slog.Bool("replaced", res.Replaced),
			slog.Int("pending_updates", res.PendingUpdates),
		)
		if res.RoundID != "" {
			args = append(args, slog.String("round_id", res.RoundID))
		}
		lm.logger.Info("Submit update completed successfully", args...)
	}(time.Now())

	return lm.svc.Submit(ctx, clientID, weights)
}

func (lm *loggingMiddleware) TriggerRound(ctx context.Context) (round fl.Round, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.String("id", round.ID),
				slog.Uint64("number", round.Number),
				slog.Int("participants", len(round.Participants)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Trigger round failed", args...)

			return
		}
		if round.ResultVersion != nil {
			args = append(args, slog.Uint64("version", *round.ResultVersion))
		}
		lm.logger.Info("Trigger round completed successfully", args...)
	}(time.Now())

	return lm.svc.TriggerRound(ctx)
}

func (lm *loggingMiddleware) GetRound(ctx context.Context, id string) (round fl.Round, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.String("id", id),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get round failed", args...)

			return
		}
		lm.logger.Info("Get round completed successfully", args...)
	}(time.Now())

	return lm.svc.GetRound(ctx, id)
}

func (lm *loggingMiddleware) ListRounds(ctx context.Context, offset, limit uint64) (page fl.RoundPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List rounds failed", args...)

			return
		}
		lm.logger.Info("List rounds completed successfully", args...)
	}(time.Now())

	return lm.svc.ListRounds(ctx, offset, limit)
}

func (lm *loggingMiddleware) Manifest(ctx context.Context) (m artifact.Manifest, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get manifest failed", args...)

			return
		}
		args = append(args, slog.Uint64("version", m.Version))
		lm.logger.Debug("Get manifest completed successfully", args...)
	}(time.Now())

	return lm.svc.Manifest(ctx)
}

func (lm *loggingMiddleware) Artifact(ctx context.Context) (snap artifact.Snapshot, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get artifact failed", args...)

			return
		}
		args = append(args, slog.Group("artifact",
			slog.Uint64("version", snap.Inference.Version),
			slog.Int64("size_bytes", snap.Inference.SizeBytes),
		))
		lm.logger.Info("Get artifact completed successfully", args...)
	}(time.Now())

	return lm.svc.Artifact(ctx)
}

func (lm *loggingMiddleware) ListArtifacts(ctx context.Context, offset, limit uint64) (page coordinator.ArtifactPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List artifacts failed", args...)

			return
		}
		lm.logger.Info("List artifacts completed successfully", args...)
	}(time.Now())

	return lm.svc.ListArtifacts(ctx, offset, limit)
}

func (lm *loggingMiddleware) Seed(ctx context.Context, weights tensor.Weights) (m artifact.Manifest, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("layers", len(weights)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Seed model failed", args...)

			return
		}
		args = append(args, slog.String("content_hash", m.ContentHash))
		lm.logger.Info("Seed model completed successfully", args...)
	}(time.Now())

	return lm.svc.Seed(ctx, weights)
}

func (lm *loggingMiddleware) Status(ctx context.Context) (st coordinator.Status, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get status failed", args...)

			return
		}
		lm.logger.Debug("Get status completed successfully", args...)
	}(time.Now())

	return lm.svc.Status(ctx)
}

func (lm *loggingMiddleware) Wait(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Wait for rounds failed", args...)

			return
		}
		lm.logger.Info("Wait for rounds completed successfully", args...)
	}(time.Now())

	return lm.svc.Wait(ctx)
}
