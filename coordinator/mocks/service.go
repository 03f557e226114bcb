package mocks

import (
	"context"

	"github.com/absmach/fedmodel/coordinator"
	"github.com/absmach/fedmodel/pkg/artifact"
	"github.com/absmach/fedmodel/pkg/fl"
	"github.com/absmach/fedmodel/pkg/tensor"
	"github.com/stretchr/testify/mock"
)

var _ coordinator.Service = (*Service)(nil)

// Service is a mock implementation of coordinator.Service.
type Service struct {
	mock.Mock
}

func (m *Service) Submit(ctx context.Context, clientID string, weights tensor.Weights) (coordinator.SubmitResult, error) {
	args := m.Called(ctx, clientID, weights)

	return args.Get(0).(coordinator.SubmitResult), args.Error(1)
}

func (m *Service) TriggerRound(ctx context.Context) (fl.Round, error) {
	args := m.Called(ctx)

	return args.Get(0).(fl.Round), args.Error(1)
}

func (m *Service) GetRound(ctx context.Context, id string) (fl.Round, error) {
	args := m.Called(ctx, id)

	return args.Get(0).(fl.Round), args.Error(1)
}

func (m *Service) ListRounds(ctx context.Context, offset, limit uint64) (fl.RoundPage, error) {
	args := m.Called(ctx, offset, limit)

	return args.Get(0).(fl.RoundPage), args.Error(1)
}

func (m *Service) Manifest(ctx context.Context) (artifact.Manifest, error) {
	args := m.Called(ctx)

	return args.Get(0).(artifact.Manifest), args.Error(1)
}

func (m *Service) Artifact(ctx context.Context) (artifact.Snapshot, error) {
	args := m.Called(ctx)

	return args.Get(0).(artifact.Snapshot), args.Error(1)
}

func (m *Service) ListArtifacts(ctx context.Context, offset, limit uint64) (coordinator.ArtifactPage, error) {
	args := m.Called(ctx, offset, limit)

	return args.Get(0).(coordinator.ArtifactPage), args.Error(1)
}

func (m *Service) Seed(ctx context.Context, weights tensor.Weights) (artifact.Manifest, error) {
	args := m.Called(ctx, weights)

	return args.Get(0).(artifact.Manifest), args.Error(1)
}

func (m *Service) Status(ctx context.Context) (coordinator.Status, error) {
	args := m.Called(ctx)

	return args.Get(0).(coordinator.Status), args.Error(1)
}

func (m *Service) Wait(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
