package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/absmach/fedmodel/pkg/artifact"
	"github.com/absmach/fedmodel/pkg/tensor"
)

const (
	modelEndpoint    = "/model"
	manifestEndpoint = "/model/manifest"
	versionsEndpoint = "/model/versions"
	seedEndpoint     = "/model/seed"
	statusEndpoint   = "/status"

	FormatInference = "inference"
	FormatTraining  = "training"
)

type Manifest struct {
	Version      uint64    `json:"version"`
	ContentHash  string    `json:"content_hash"`
	SizeBytes    int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
	DownloadURL  string    `json:"download_url,omitempty"`
	ServerTime   time.Time `json:"server_time,omitzero"`
}

// Model is a downloaded artifact whose Data hashed to ContentHash.
type Model struct {
	Version     uint64
	Format      string
	ContentHash string
	Data        []byte
}

type Artifact struct {
	Version     uint64    `json:"version"`
	Format      string    `json:"format"`
	ContentHash string    `json:"content_hash"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
	Location    string    `json:"location,omitempty"`
}

type ArtifactPage struct {
	Offset    uint64     `json:"offset"`
	Limit     uint64     `json:"limit"`
	Total     uint64     `json:"total"`
	Artifacts []Artifact `json:"artifacts"`
}

type Status struct {
	State             string    `json:"state"`
	PendingUpdates    int       `json:"pending_updates"`
	MinParticipants   int       `json:"min_participants"`
	AutoAggregate     bool      `json:"auto_aggregate"`
	TotalUploads      uint64    `json:"total_uploads"`
	UniqueClients     int       `json:"unique_clients"`
	CompletedRounds   uint64    `json:"completed_rounds"`
	FailedRounds      uint64    `json:"failed_rounds"`
	ModelAvailable    bool      `json:"model_available"`
	CurrentVersion    *uint64   `json:"current_version,omitempty"`
	ArchivedArtifacts int       `json:"archived_artifacts"`
	LastAggregation   time.Time `json:"last_aggregation,omitzero"`
}

type seedReq struct {
	Weights tensor.Weights `json:"weights"`
}

func (sdk *flSDK) Manifest() (Manifest, error) {
	url := sdk.coordinatorURL + manifestEndpoint

	body, _, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return Manifest{}, err
	}

	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return Manifest{}, err
	}

	return m, nil
}

func (sdk *flSDK) DownloadModel(format string) (Model, error) {
	if format == "" {
		format = FormatInference
	}
	reqURL := sdk.coordinatorURL + modelEndpoint + "?format=" + url.QueryEscape(format)

	body, headers, err := sdk.processRequest(http.MethodGet, reqURL, nil, http.StatusOK)
	if err != nil {
		return Model{}, err
	}

	version, err := strconv.ParseUint(headers.Get("Model-Version"), 10, 64)
	if err != nil {
		return Model{}, fmt.Errorf("invalid model version header: %w", err)
	}
	hash := headers.Get("Model-Hash")
	if got := artifact.Digest(body); got != hash {
		return Model{}, fmt.Errorf("%w: got %s, want %s", ErrDigestMismatch, got, hash)
	}

	return Model{
		Version:     version,
		Format:      format,
		ContentHash: hash,
		Data:        body,
	}, nil
}

func (sdk *flSDK) ListArtifacts(offset, limit uint64) (ArtifactPage, error) {
	url := sdk.coordinatorURL + versionsEndpoint + pageQuery(offset, limit)

	body, _, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return ArtifactPage{}, err
	}

	var page ArtifactPage
	if err := json.Unmarshal(body, &page); err != nil {
		return ArtifactPage{}, err
	}

	return page, nil
}

func (sdk *flSDK) Seed(weights tensor.Weights) (Manifest, error) {
	data, err := json.Marshal(seedReq{Weights: weights})
	if err != nil {
		return Manifest{}, err
	}

	url := sdk.coordinatorURL + seedEndpoint

	body, _, err := sdk.processRequest(http.MethodPost, url, data, http.StatusCreated)
	if err != nil {
		return Manifest{}, err
	}

	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return Manifest{}, err
	}

	return m, nil
}

func (sdk *flSDK) Status() (Status, error) {
	url := sdk.coordinatorURL + statusEndpoint

	body, _, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return Status{}, err
	}

	var st Status
	if err := json.Unmarshal(body, &st); err != nil {
		return Status{}, err
	}

	return st, nil
}
