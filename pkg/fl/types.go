package fl

import (
	"time"

	"github.com/absmach/fedmodel/pkg/tensor"
)

// ClientUpdate is one client's weight contribution. It is never mutated once
// accepted.
type ClientUpdate struct {
	ClientID   string         `json:"client_id"`
	Weights    tensor.Weights `json:"weights"`
	ReceivedAt time.Time      `json:"received_at"`
}

type RoundStatus string

const (
	RoundRunning   RoundStatus = "running"
	RoundSucceeded RoundStatus = "succeeded"
	RoundFailed    RoundStatus = "failed"
)

type Trigger string

const (
	TriggerAuto   Trigger = "auto"
	TriggerManual Trigger = "manual"
)

// Round records one aggregation attempt. Number is the count of successful
// rounds before this attempt, so a failed attempt and its retry share it.
type Round struct {
	ID            string      `json:"id"`
	Number        uint64      `json:"number"`
	Trigger       Trigger     `json:"trigger"`
	Status        RoundStatus `json:"status"`
	Participants  []string    `json:"participants"`
	StartedAt     time.Time   `json:"started_at"`
	FinishedAt    time.Time   `json:"finished_at,omitzero"`
	ResultVersion *uint64     `json:"result_version,omitempty"`
	Error         string      `json:"error,omitempty"`
}

type RoundPage struct {
	Offset uint64  `json:"offset"`
	Limit  uint64  `json:"limit"`
	Total  uint64  `json:"total"`
	Rounds []Round `json:"rounds"`
}

type Aggregator interface {
	Aggregate(updates []ClientUpdate) (tensor.Weights, error)
}
