// Package domain contains the core types of the batching context.
package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Call is one sub-call of an aggregate transaction.
type Call struct {
	Target       common.Address
	CallData     []byte
	AllowFailure bool
}

// NewCall copies callData so the Call cannot be mutated through the caller's slice.
func NewCall(target common.Address, callData []byte, allowFailure bool) Call {
	return Call{
		Target:       target,
		CallData:     common.CopyBytes(callData),
		AllowFailure: allowFailure,
	}
}

// Validate rejects calls that can never be submitted.
func (c Call) Validate() error {
	if c.Target == (common.Address{}) {
		return fmt.Errorf("call target is the zero address")
	}
	return nil
}

// QueuedCall is a Call with the identity the queue assigned to it.
type QueuedCall struct {
	ID uint64
	Call
}

// IDs returns the queue ids of calls in order.
func IDs(calls []QueuedCall) []uint64 {
	ids := make([]uint64, len(calls))
	for i, c := range calls {
		ids[i] = c.ID
	}
	return ids
}
