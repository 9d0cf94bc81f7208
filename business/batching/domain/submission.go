package domain

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TxRequest is an unsigned transaction shape used for estimation and sending.
type TxRequest struct {
	To       common.Address
	Data     []byte
	GasLimit uint64   // 0 when estimating
	Fees     *FeePlan // nil when estimating
}

// TxOptions are the per-transaction overrides passed to the aggregator.
type TxOptions struct {
	GasLimit uint64
	Fees     FeePlan
}

// SubmissionResult identifies a mined, successful aggregate transaction.
type SubmissionResult struct {
	ChainID     *big.Int
	Hash        common.Hash
	BlockNumber uint64
	Nonce       uint64
	GasUsed     uint64
}

// NotificationEvent is published after a successful submission.
type NotificationEvent struct {
	ChainID string `json:"chainId"`
	Hash    string `json:"hash"`
}

// NewNotificationEvent builds the event for r.
func NewNotificationEvent(r *SubmissionResult) NotificationEvent {
	return NotificationEvent{
		ChainID: r.ChainID.String(),
		Hash:    r.Hash.Hex(),
	}
}

// Payload returns the JSON encoding of the event.
func (e NotificationEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// FailurePolicy decides what happens to calls whose estimation failed.
type FailurePolicy string

const (
	// DropFailed removes failed calls from the queue.
	DropFailed FailurePolicy = "drop"
	// RetainFailed keeps failed calls for the next cycle.
	RetainFailed FailurePolicy = "retain"
)

// ParseFailurePolicy parses a configured policy name.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(s); p {
	case DropFailed, RetainFailed:
		return p, nil
	case "":
		return DropFailed, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", s)
	}
}
