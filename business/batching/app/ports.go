// Package app contains application services and port definitions for the batching context.
package app

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/multicall-batcher/business/batching/domain"
)

// Signer estimates and sends transactions from the batching account.
type Signer interface {
	// Address is the sending account.
	Address() common.Address

	// EstimateGas returns the gas a transaction shaped like req would use.
	EstimateGas(ctx context.Context, req domain.TxRequest) (uint64, error)

	// SendTransaction signs and broadcasts req. When the node may have
	// accepted the transaction despite an error, the error is an
	// *UncertainSendError.
	SendTransaction(ctx context.Context, req domain.TxRequest) (PendingTransaction, error)
}

// UncertainSendError is a send that failed on the client side after the
// signed transaction left for the node. The node may hold it under Hash.
type UncertainSendError struct {
	Hash common.Hash
	Err  error
}

func (e *UncertainSendError) Error() string {
	return fmt.Sprintf("send of %s unconfirmed: %v", e.Hash.Hex(), e.Err)
}

func (e *UncertainSendError) Unwrap() error {
	return e.Err
}

// FeeSource reads live fee data.
type FeeSource interface {
	CurrentFeeData(ctx context.Context) (*domain.FeeData, error)
}

// Aggregator is the multicall contract endpoint.
type Aggregator interface {
	Address() common.Address

	// Pack encodes calls as aggregate3 calldata.
	Pack(calls []domain.Call) ([]byte, error)

	// Aggregate3 submits calls as one transaction.
	Aggregate3(ctx context.Context, calls []domain.Call, opts domain.TxOptions) (PendingTransaction, error)
}

// PendingTransaction is a broadcast transaction that may not be mined yet.
type PendingTransaction interface {
	Hash() common.Hash
	Nonce() uint64

	// Wait blocks until the transaction is mined. A reverted receipt is an error.
	Wait(ctx context.Context) (*domain.SubmissionResult, error)
}

// LogLevel is the severity of a LogSink record.
type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogSink receives structured notification records.
type LogSink interface {
	Record(ctx context.Context, level LogLevel, message string, fields map[string]any)

	// Flush delivers buffered records.
	Flush(ctx context.Context) error
}

// MessageExchange publishes to a named exchange. Connections are scoped to a
// single Publish call.
type MessageExchange interface {
	Name() string
	Publish(ctx context.Context, routingKey string, payload []byte) error
}
