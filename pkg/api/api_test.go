package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/absmach/fedmodel/pkg/api"
	"github.com/absmach/fedmodel/pkg/artifact"
	pkgerrors "github.com/absmach/fedmodel/pkg/errors"
	"github.com/absmach/fedmodel/pkg/fl"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeError(t *testing.T) {
	cases := []struct {
		desc   string
		err    error
		status int
	}{
		{
			desc:   "unsupported content type",
			err:    errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType),
			status: http.StatusUnsupportedMediaType,
		},
		{
			desc:   "schema mismatch",
			err:    fmt.Errorf("%w: layer w", fl.ErrSchemaMismatch),
			status: http.StatusUnprocessableEntity,
		},
		{
			desc:   "malformed body",
			err:    errors.Join(errors.New("unexpected EOF"), apiutil.ErrValidation),
			status: http.StatusBadRequest,
		},
		{
			desc:   "empty payload",
			err:    fl.ErrEmptyPayload,
			status: http.StatusBadRequest,
		},
		{
			desc:   "missing client id",
			err:    fl.ErrMissingClientID,
			status: http.StatusBadRequest,
		},
		{
			desc:   "round in progress",
			err:    fl.ErrRoundInProgress,
			status: http.StatusConflict,
		},
		{
			desc:   "insufficient participants",
			err:    fmt.Errorf("%w: 1 of 2", fl.ErrInsufficientParticipants),
			status: http.StatusConflict,
		},
		{
			desc:   "model already seeded",
			err:    artifact.ErrModelExists,
			status: http.StatusConflict,
		},
		{
			desc:   "no model",
			err:    artifact.ErrNoModelAvailable,
			status: http.StatusNotFound,
		},
		{
			desc:   "unknown round",
			err:    pkgerrors.ErrNotFound,
			status: http.StatusNotFound,
		},
		{
			desc:   "conversion failure",
			err:    fmt.Errorf("%w: %w", artifact.ErrConversion, artifact.ErrMissingCheckpoint),
			status: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			rec := httptest.NewRecorder()
			api.EncodeError(context.Background(), tc.err, rec)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, api.ContentType, rec.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tc.err.Error(), body["error"])
		})
	}
}
