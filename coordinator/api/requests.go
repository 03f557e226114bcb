package api

import (
	"github.com/absmach/fedmodel/pkg/api"
	"github.com/absmach/fedmodel/pkg/artifact"
	"github.com/absmach/fedmodel/pkg/fl"
	"github.com/absmach/fedmodel/pkg/tensor"
	apiutil "github.com/absmach/supermq/api/http/util"
)

type submitReq struct {
	ClientID string         `json:"client_id" cbor:"client_id"`
	Weights  tensor.Weights `json:"weights"   cbor:"weights"`
}

func (req submitReq) validate() error {
	if req.ClientID == "" {
		return fl.ErrMissingClientID
	}
	if len(req.Weights) == 0 {
		return fl.ErrEmptyPayload
	}

	return nil
}

type seedReq struct {
	Weights tensor.Weights `json:"weights" cbor:"weights"`
}

func (req seedReq) validate() error {
	if len(req.Weights) == 0 {
		return fl.ErrEmptyPayload
	}

	return nil
}

type triggerReq struct{}

type statusReq struct{}

type entityReq struct {
	id string
}

func (req entityReq) validate() error {
	if req.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type listReq struct {
	offset, limit uint64
}

func (req listReq) validate() error {
	if req.limit > api.MaxLimitSize {
		return api.ErrLimitSize
	}

	return nil
}

type manifestReq struct {
	ifNoneMatch string
}

type artifactReq struct {
	format      artifact.Format
	ifNoneMatch string
}

func (req artifactReq) validate() error {
	switch req.format {
	case artifact.Inference, artifact.Training:
		return nil
	default:
		return errUnknownFormat
	}
}
