package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/absmach/fedmodel/coordinator"
	"github.com/absmach/fedmodel/pkg/api"
	"github.com/absmach/fedmodel/pkg/artifact"
	"github.com/absmach/fedmodel/pkg/tensor"
	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	maxBodySize = 1024 * 1024 * 256
	formatKey   = "format"
	roundIDKey  = "roundID"
)

var (
	errUnknownFormat = errors.New("unknown artifact format")

	cborDecMode = mustDecMode()
)

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		MaxArrayElements: math.MaxInt32,
		MaxMapPairs:      math.MaxInt32,
	}.DecMode()
	if err != nil {
		panic(err)
	}

	return dm
}

func MakeHandler(svc coordinator.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Post("/updates", otelhttp.NewHandler(kithttp.NewServer(
		submitUpdateEndpoint(svc),
		decodeSubmitReq,
		api.EncodeResponse,
		opts...,
	), "submit-update").ServeHTTP)

	mux.Route("/rounds", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			triggerRoundEndpoint(svc),
			decodeTriggerReq,
			api.EncodeResponse,
			opts...,
		), "trigger-round").ServeHTTP)
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listRoundsEndpoint(svc),
			decodeListReq,
			api.EncodeResponse,
			opts...,
		), "list-rounds").ServeHTTP)
		r.Get("/{roundID}", otelhttp.NewHandler(kithttp.NewServer(
			getRoundEndpoint(svc),
			decodeEntityReq(roundIDKey),
			api.EncodeResponse,
			opts...,
		), "get-round").ServeHTTP)
	})

	mux.Route("/model", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			downloadModelEndpoint(svc),
			decodeArtifactReq,
			encodeArtifactResponse,
			opts...,
		), "download-model").ServeHTTP)
		r.Get("/manifest", otelhttp.NewHandler(kithttp.NewServer(
			manifestEndpoint(svc),
			decodeManifestReq,
			api.EncodeResponse,
			opts...,
		), "get-manifest").ServeHTTP)
		r.Get("/versions", otelhttp.NewHandler(kithttp.NewServer(
			listArtifactsEndpoint(svc),
			decodeListReq,
			api.EncodeResponse,
			opts...,
		), "list-artifacts").ServeHTTP)
		r.Post("/seed", otelhttp.NewHandler(kithttp.NewServer(
			seedModelEndpoint(svc),
			decodeSeedReq,
			api.EncodeResponse,
			opts...,
		), "seed-model").ServeHTTP)
	})

	mux.Get("/status", otelhttp.NewHandler(kithttp.NewServer(
		statusEndpoint(svc),
		decodeStatusReq,
		api.EncodeResponse,
		opts...,
	), "get-status").ServeHTTP)

	mux.Get("/health", supermq.Health("fl-coordinator", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeSubmitReq(_ context.Context, r *http.Request) (any, error) {
	var req submitReq
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	normalize(req.Weights)

	return req, nil
}

func decodeSeedReq(_ context.Context, r *http.Request) (any, error) {
	var req seedReq
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	normalize(req.Weights)

	return req, nil
}

// decodeBody reads a JSON or CBOR request body into v.
func decodeBody(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, maxBodySize)
	ct := r.Header.Get("Content-Type")

	switch {
	case strings.Contains(ct, api.ContentType):
		if err := json.NewDecoder(body).Decode(v); err != nil {
			return errors.Join(err, apiutil.ErrValidation)
		}
	case strings.Contains(ct, api.CBORContentType):
		if err := cborDecMode.NewDecoder(body).Decode(v); err != nil {
			return errors.Join(err, apiutil.ErrValidation)
		}
	default:
		return errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	return nil
}

// normalize fills the defaults the JSON form applies when a CBOR tensor
// omits its dtype or shape.
func normalize(w tensor.Weights) {
	for k, t := range w {
		if t.DType == "" {
			t.DType = tensor.DefaultDType
		}
		if t.Shape == nil {
			t.Shape = []int{len(t.Values)}
		}
		w[k] = t
	}
}

func decodeTriggerReq(_ context.Context, _ *http.Request) (any, error) {
	return triggerReq{}, nil
}

func decodeStatusReq(_ context.Context, _ *http.Request) (any, error) {
	return statusReq{}, nil
}

func decodeEntityReq(key string) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		return entityReq{
			id: chi.URLParam(r, key),
		}, nil
	}
}

func decodeListReq(_ context.Context, r *http.Request) (any, error) {
	o, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	l, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return listReq{
		offset: o,
		limit:  l,
	}, nil
}

func decodeManifestReq(_ context.Context, r *http.Request) (any, error) {
	return manifestReq{
		ifNoneMatch: r.Header.Get("If-None-Match"),
	}, nil
}

func decodeArtifactReq(_ context.Context, r *http.Request) (any, error) {
	format := artifact.Inference
	if f := r.URL.Query().Get(formatKey); f != "" {
		format = artifact.Format(f)
	}

	return artifactReq{
		format:      format,
		ifNoneMatch: r.Header.Get("If-None-Match"),
	}, nil
}

func encodeArtifactResponse(_ context.Context, w http.ResponseWriter, response any) error {
	res, ok := response.(artifactRes)
	if !ok {
		return api.EncodeResponse(context.Background(), w, response)
	}

	for k, v := range res.Headers() {
		w.Header().Set(k, v)
	}
	if res.Empty() {
		w.WriteHeader(res.Code())

		return nil
	}
	w.Header().Set("Content-Type", api.BinaryContentType)
	w.WriteHeader(res.Code())
	_, err := w.Write(res.data)

	return err
}

func etag(hash string) string {
	return `"` + hash + `"`
}

// etagMatches reports whether an If-None-Match header names hash.
func etagMatches(header, hash string) bool {
	if header == "" || hash == "" {
		return false
	}
	for _, tag := range strings.Split(header, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" {
			return true
		}
		tag = strings.TrimPrefix(tag, "W/")
		if strings.Trim(tag, `"`) == hash {
			return true
		}
	}

	return false
}
