package ethereum

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/multicall-batcher/business/batching/app"
	"github.com/fd1az/multicall-batcher/business/batching/domain"
	"github.com/fd1az/multicall-batcher/internal/apperror"
)

var _ app.Aggregator = (*Multicall)(nil)

// Multicall submits batches to a Multicall3 deployment through a Signer.
type Multicall struct {
	address common.Address
	abi     abi.ABI
	signer  app.Signer
}

// NewMulticall creates a Multicall bound to address.
func NewMulticall(address common.Address, signer app.Signer) (*Multicall, error) {
	parsed, err := abi.JSON(strings.NewReader(Multicall3ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse multicall3 ABI: %w", err)
	}

	return &Multicall{
		address: address,
		abi:     parsed,
		signer:  signer,
	}, nil
}

// Address implements app.Aggregator.
func (m *Multicall) Address() common.Address {
	return m.address
}

// Pack implements app.Aggregator.
func (m *Multicall) Pack(calls []domain.Call) ([]byte, error) {
	args := make([]Call3, len(calls))
	for i, c := range calls {
		args[i] = Call3{
			Target:       c.Target,
			AllowFailure: c.AllowFailure,
			CallData:     c.CallData,
		}
	}

	data, err := m.abi.Pack("aggregate3", args)
	if err != nil {
		return nil, apperror.New(apperror.CodeAggregateEncodeFailed, apperror.WithCause(err))
	}
	return data, nil
}

// Aggregate3 implements app.Aggregator.
func (m *Multicall) Aggregate3(ctx context.Context, calls []domain.Call, opts domain.TxOptions) (app.PendingTransaction, error) {
	data, err := m.Pack(calls)
	if err != nil {
		return nil, err
	}

	fees := opts.Fees
	return m.signer.SendTransaction(ctx, domain.TxRequest{
		To:       m.address,
		Data:     data,
		GasLimit: opts.GasLimit,
		Fees:     &fees,
	})
}
