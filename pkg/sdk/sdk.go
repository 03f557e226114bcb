// Package sdk is a Go client for the federated learning coordinator.
package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/absmach/fedmodel/pkg/tensor"
)

const (
	CTJSON   string = "application/json"
	CTBinary string = "application/octet-stream"
)

var (
	// ErrUnexpectedStatus wraps every non-success response.
	ErrUnexpectedStatus = errors.New("unexpected response code")
	// ErrDigestMismatch is returned when downloaded bytes do not hash to the
	// advertised content hash.
	ErrDigestMismatch = errors.New("downloaded model does not match its content hash")
)

type PageMetadata struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

type SDK interface {
	// SubmitUpdate uploads a client's local weights.
	//
	// example:
	//  weights := tensor.Weights{
	//    "dense/kernel": {Shape: []int{2}, DType: tensor.Float32, Values: []float64{0.1, 0.2}},
	//  }
	//  res, _ := sdk.SubmitUpdate("client-1", weights)
	//  fmt.Println(res.PendingUpdates)
	SubmitUpdate(clientID string, weights tensor.Weights) (SubmitResult, error)

	// TriggerRound aggregates the pending updates and waits for the result.
	//
	// example:
	//  round, _ := sdk.TriggerRound()
	//  fmt.Println(round.Status)
	TriggerRound() (Round, error)

	// GetRound gets a round by id.
	//
	// example:
	//  round, _ := sdk.GetRound("b1d10738-c5d7-4ff1-8f4d-b9328ce6f040")
	//  fmt.Println(round)
	GetRound(id string) (Round, error)

	// ListRounds lists rounds in the order they started.
	//
	// example:
	//  page, _ := sdk.ListRounds(0, 10)
	//  fmt.Println(page)
	ListRounds(offset, limit uint64) (RoundPage, error)

	// Manifest returns the current model version and content hash.
	//
	// example:
	//  m, _ := sdk.Manifest()
	//  fmt.Println(m.Version, m.ContentHash)
	Manifest() (Manifest, error)

	// DownloadModel downloads the current model in the given format and
	// verifies its digest. An empty format selects the inference artifact.
	//
	// example:
	//  model, _ := sdk.DownloadModel(sdk.FormatInference)
	//  os.WriteFile("model.fp16", model.Data, 0o644)
	DownloadModel(format string) (Model, error)

	// ListArtifacts lists every recorded artifact.
	//
	// example:
	//  page, _ := sdk.ListArtifacts(0, 10)
	//  fmt.Println(page.Total)
	ListArtifacts(offset, limit uint64) (ArtifactPage, error)

	// Seed publishes the initial model.
	//
	// example:
	//  m, _ := sdk.Seed(weights)
	//  fmt.Println(m.Version)
	Seed(weights tensor.Weights) (Manifest, error)

	// Status returns the coordinator state and counters.
	//
	// example:
	//  st, _ := sdk.Status()
	//  fmt.Println(st.State, st.PendingUpdates)
	Status() (Status, error)
}

type flSDK struct {
	coordinatorURL string
	client         *http.Client
}

type Config struct {
	CoordinatorURL  string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	return &flSDK{
		coordinatorURL: strings.TrimSuffix(cfg.CoordinatorURL, "/"),
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

type errorRes struct {
	Error string `json:"error"`
}

func (sdk *flSDK) processRequest(method, reqURL string, data []byte, expectedRespCode int) ([]byte, http.Header, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, nil, err
	}

	req.Header.Add("Content-Type", CTJSON)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, nil, err
	}

	if resp.StatusCode != expectedRespCode {
		var e errorRes
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return []byte{}, nil, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, e.Error)
		}

		return []byte{}, nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return body, resp.Header, nil
}

func pageQuery(offset, limit uint64) string {
	queries := make([]string, 0)
	if offset > 0 {
		queries = append(queries, fmt.Sprintf("offset=%d", offset))
	}
	if limit > 0 {
		queries = append(queries, fmt.Sprintf("limit=%d", limit))
	}
	if len(queries) == 0 {
		return ""
	}

	return "?" + strings.Join(queries, "&")
}
