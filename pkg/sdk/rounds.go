package sdk

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/absmach/fedmodel/pkg/tensor"
)

const (
	updatesEndpoint = "/updates"
	roundsEndpoint  = "/rounds"
)

type SubmitResult struct {
	ClientID        string `json:"client_id"`
	Replaced        bool   `json:"replaced"`
	PendingUpdates  int    `json:"pending_updates"`
	MinParticipants int    `json:"min_participants"`
	RoundID         string `json:"round_id,omitempty"`
}

type Round struct {
	ID            string    `json:"id"`
	Number        uint64    `json:"number"`
	Trigger       string    `json:"trigger"`
	Status        string    `json:"status"`
	Participants  []string  `json:"participants"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at,omitzero"`
	ResultVersion *uint64   `json:"result_version,omitempty"`
	Error         string    `json:"error,omitempty"`
}

type RoundPage struct {
	Offset uint64  `json:"offset"`
	Limit  uint64  `json:"limit"`
	Total  uint64  `json:"total"`
	Rounds []Round `json:"rounds"`
}

type updateReq struct {
	ClientID string         `json:"client_id"`
	Weights  tensor.Weights `json:"weights"`
}

func (sdk *flSDK) SubmitUpdate(clientID string, weights tensor.Weights) (SubmitResult, error) {
	data, err := json.Marshal(updateReq{ClientID: clientID, Weights: weights})
	if err != nil {
		return SubmitResult{}, err
	}

	url := sdk.coordinatorURL + updatesEndpoint

	body, _, err := sdk.processRequest(http.MethodPost, url, data, http.StatusAccepted)
	if err != nil {
		return SubmitResult{}, err
	}

	var res SubmitResult
	if err := json.Unmarshal(body, &res); err != nil {
		return SubmitResult{}, err
	}

	return res, nil
}

func (sdk *flSDK) TriggerRound() (Round, error) {
	url := sdk.coordinatorURL + roundsEndpoint

	body, _, err := sdk.processRequest(http.MethodPost, url, nil, http.StatusCreated)
	if err != nil {
		return Round{}, err
	}

	var r Round
	if err := json.Unmarshal(body, &r); err != nil {
		return Round{}, err
	}

	return r, nil
}

func (sdk *flSDK) GetRound(id string) (Round, error) {
	url := sdk.coordinatorURL + roundsEndpoint + "/" + id

	body, _, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return Round{}, err
	}

	var r Round
	if err := json.Unmarshal(body, &r); err != nil {
		return Round{}, err
	}

	return r, nil
}

func (sdk *flSDK) ListRounds(offset, limit uint64) (RoundPage, error) {
	url := sdk.coordinatorURL + roundsEndpoint + pageQuery(offset, limit)

	body, _, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return RoundPage{}, err
	}

	var page RoundPage
	if err := json.Unmarshal(body, &page); err != nil {
		return RoundPage{}, err
	}

	return page, nil
}
