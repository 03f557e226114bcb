package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/absmach/fedmodel/pkg/artifact"
	pkgerrors "github.com/absmach/fedmodel/pkg/errors"
	"github.com/absmach/fedmodel/pkg/fl"
	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
)

const (
	OffsetKey = "offset"
	LimitKey  = "limit"
	DefOffset = 0
	DefLimit  = 10

	ContentType       = "application/json"
	CBORContentType   = "application/cbor"
	BinaryContentType = "application/octet-stream"

	MaxLimitSize = 100
)

var ErrLimitSize = errors.New("invalid limit size")

type errorRes struct {
	Error string `json:"error"`
}

func EncodeResponse(_ context.Context, w http.ResponseWriter, response any) error {
	if ar, ok := response.(supermq.Response); ok {
		for k, v := range ar.Headers() {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(ar.Code())

		if ar.Empty() {
			return nil
		}
	}

	return json.NewEncoder(w).Encode(response)
}

func EncodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(StatusCode(err))

	_ = json.NewEncoder(w).Encode(errorRes{Error: err.Error()})
}

// StatusCode maps domain errors to HTTP status codes.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, apiutil.ErrUnsupportedContentType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, fl.ErrSchemaMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apiutil.ErrValidation),
		errors.Is(err, fl.ErrEmptyPayload),
		errors.Is(err, fl.ErrMissingClientID),
		errors.Is(err, fl.ErrInvalidUpdate),
		errors.Is(err, pkgerrors.ErrEmptyKey),
		errors.Is(err, ErrLimitSize):
		return http.StatusBadRequest
	case errors.Is(err, fl.ErrRoundInProgress),
		errors.Is(err, fl.ErrInsufficientParticipants),
		errors.Is(err, artifact.ErrModelExists):
		return http.StatusConflict
	case errors.Is(err, artifact.ErrNoModelAvailable),
		errors.Is(err, pkgerrors.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
