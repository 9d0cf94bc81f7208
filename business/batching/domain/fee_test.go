package domain

import (
	"math/big"
	"testing"
)

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}

func TestSelectFee(t *testing.T) {
	tests := []struct {
		name    string
		live    *big.Int
		ceiling *big.Int
		wantFee *big.Int
		wantTip *big.Int
	}{
		{name: "live above ceiling", live: gwei(80), ceiling: gwei(50), wantFee: gwei(50), wantTip: gwei(1)},
		{name: "live below ceiling", live: gwei(20), ceiling: gwei(50), wantFee: gwei(20), wantTip: gwei(1)},
		{name: "no ceiling", live: gwei(300), ceiling: nil, wantFee: gwei(300), wantTip: gwei(1)},
		{name: "tip clamped to fee cap", live: big.NewInt(500_000_000), ceiling: nil, wantFee: big.NewInt(500_000_000), wantTip: big.NewInt(500_000_000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := SelectFee(tt.live, tt.ceiling)
			if plan.MaxFeePerGas.Cmp(tt.wantFee) != 0 {
				t.Errorf("maxFee = %s, want %s", plan.MaxFeePerGas, tt.wantFee)
			}
			if plan.MaxPriorityFeePerGas.Cmp(tt.wantTip) != 0 {
				t.Errorf("tip = %s, want %s", plan.MaxPriorityFeePerGas, tt.wantTip)
			}

			again := SelectFee(plan.MaxFeePerGas, tt.ceiling)
			if again.MaxFeePerGas.Cmp(plan.MaxFeePerGas) != 0 || again.MaxPriorityFeePerGas.Cmp(plan.MaxPriorityFeePerGas) != 0 {
				t.Errorf("clamp not idempotent: %+v then %+v", plan, again)
			}
		})
	}
}

func TestSelectFee_DoesNotAliasInputs(t *testing.T) {
	live := gwei(10)
	plan := SelectFee(live, nil)
	plan.MaxFeePerGas.SetInt64(0)
	plan.MaxPriorityFeePerGas.SetInt64(0)

	if live.Cmp(gwei(10)) != 0 || PriorityFee.Cmp(gwei(1)) != 0 {
		t.Error("SelectFee returned shared big.Int values")
	}
}

func TestParseGasPriceCeiling(t *testing.T) {
	tests := []struct {
		in      string
		want    *big.Int
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "0", want: nil},
		{in: "0gwei", want: nil},
		{in: "50gwei", want: gwei(50)},
		{in: "50gwie", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseGasPriceCeiling(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if (got == nil) != (tt.want == nil) || (got != nil && got.Cmp(tt.want) != 0) {
				t.Errorf("ParseGasPriceCeiling(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
