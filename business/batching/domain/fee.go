package domain

import (
	"math/big"
)

// PriorityFee is the fixed tip per gas, 1 gwei.
var PriorityFee = big.NewInt(1_000_000_000)

// FeeData is the live fee information read from the chain.
type FeeData struct {
	GasPrice *big.Int
}

// FeePlan holds the EIP-1559 fee caps for one submission.
type FeePlan struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// SelectFee returns min(live, ceiling) as the fee cap, or live when ceiling is
// nil. The tip is PriorityFee, lowered to the fee cap when the cap is smaller.
func SelectFee(live, ceiling *big.Int) FeePlan {
	maxFee := new(big.Int).Set(live)
	if ceiling != nil && maxFee.Cmp(ceiling) > 0 {
		maxFee.Set(ceiling)
	}

	tip := new(big.Int).Set(PriorityFee)
	if tip.Cmp(maxFee) > 0 {
		tip.Set(maxFee)
	}

	return FeePlan{MaxFeePerGas: maxFee, MaxPriorityFeePerGas: tip}
}

// ParseGasPriceCeiling parses a configured gas price ceiling. Empty and zero
// both mean no ceiling and return nil.
func ParseGasPriceCeiling(s string) (*big.Int, error) {
	ceiling, err := ParseWei(s)
	if err != nil || ceiling == nil || ceiling.Sign() == 0 {
		return nil, err
	}
	return ceiling, nil
}
