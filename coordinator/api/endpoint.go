package api

import (
	"context"
	"errors"
	"time"

	"github.com/absmach/fedmodel/coordinator"
	"github.com/absmach/fedmodel/pkg/artifact"
	pkgerrors "github.com/absmach/fedmodel/pkg/errors"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
)

const downloadURL = "/model"

func submitUpdateEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(submitReq)
		if !ok {
			return submitRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return submitRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		res, err := svc.Submit(ctx, req.ClientID, req.Weights)
		if err != nil {
			return submitRes{}, err
		}

		return submitRes{SubmitResult: res}, nil
	}
}

func triggerRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		if _, ok := request.(triggerReq); !ok {
			return roundRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}

		round, err := svc.TriggerRound(ctx)
		if err != nil {
			return roundRes{}, err
		}

		return roundRes{Round: round, created: true}, nil
	}
}

func getRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return roundRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		round, err := svc.GetRound(ctx, req.id)
		if err != nil {
			return roundRes{}, err
		}

		return roundRes{Round: round}, nil
	}
}

func listRoundsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listReq)
		if !ok {
			return listRoundsRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listRoundsRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListRounds(ctx, req.offset, req.limit)
		if err != nil {
			return listRoundsRes{}, err
		}

		return listRoundsRes{RoundPage: page}, nil
	}
}

func manifestEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(manifestReq)
		if !ok {
			return manifestRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}

		m, err := svc.Manifest(ctx)
		if err != nil {
			return manifestRes{}, err
		}

		return manifestRes{
			Manifest:    m,
			DownloadURL: downloadURL,
			ServerTime:  time.Now().UTC(),
			notModified: etagMatches(req.ifNoneMatch, m.ContentHash),
		}, nil
	}
}

func downloadModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(artifactReq)
		if !ok {
			return artifactRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return artifactRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		snap, err := svc.Artifact(ctx)
		if err != nil {
			return artifactRes{}, err
		}

		res := artifactRes{meta: snap.Inference, data: snap.InferenceData}
		if req.format == artifact.Training {
			res = artifactRes{meta: snap.Training, data: snap.TrainingData}
		}
		res.notModified = etagMatches(req.ifNoneMatch, res.meta.ContentHash)

		return res, nil
	}
}

func listArtifactsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listReq)
		if !ok {
			return listArtifactsRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listArtifactsRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListArtifacts(ctx, req.offset, req.limit)
		if err != nil {
			return listArtifactsRes{}, err
		}

		return listArtifactsRes{ArtifactPage: page}, nil
	}
}

func seedModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(seedReq)
		if !ok {
			return manifestRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return manifestRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		m, err := svc.Seed(ctx, req.Weights)
		if err != nil {
			return manifestRes{}, err
		}

		return manifestRes{
			Manifest:    m,
			DownloadURL: downloadURL,
			ServerTime:  time.Now().UTC(),
			created:     true,
		}, nil
	}
}

func statusEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		if _, ok := request.(statusReq); !ok {
			return statusRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}

		st, err := svc.Status(ctx)
		if err != nil {
			return statusRes{}, err
		}

		return statusRes{Status: st}, nil
	}
}
