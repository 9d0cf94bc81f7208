package app

import (
	"context"
	"math/big"

	"github.com/fd1az/multicall-batcher/business/batching/domain"
	"github.com/fd1az/multicall-batcher/internal/apperror"
)

// FeeSelector derives the fee plan for a cycle.
type FeeSelector struct {
	source  FeeSource
	ceiling *big.Int
}

// NewFeeSelector creates a FeeSelector. A nil or zero ceiling leaves the live
// price unclamped.
func NewFeeSelector(source FeeSource, ceiling *big.Int) *FeeSelector {
	if ceiling != nil && ceiling.Sign() == 0 {
		ceiling = nil
	}
	return &FeeSelector{source: source, ceiling: ceiling}
}

// Select reads live fee data once and clamps it to the ceiling.
func (s *FeeSelector) Select(ctx context.Context) (domain.FeePlan, error) {
	data, err := s.source.CurrentFeeData(ctx)
	if err != nil {
		return domain.FeePlan{}, apperror.New(apperror.CodeFeeDataUnavailable, apperror.WithCause(err))
	}
	if data == nil || data.GasPrice == nil {
		return domain.FeePlan{}, apperror.New(apperror.CodeFeeDataUnavailable,
			apperror.WithContext("fee source returned no gas price"))
	}
	return domain.SelectFee(data.GasPrice, s.ceiling), nil
}

// Ceiling returns the configured ceiling, or nil.
func (s *FeeSelector) Ceiling() *big.Int {
	return s.ceiling
}
