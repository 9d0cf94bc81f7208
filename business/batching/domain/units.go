package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// longer suffixes first so "gwei" is not read as "wei"
var units = []struct {
	suffix string
	exp    int32
}{
	{"ether", 18},
	{"szabo", 12},
	{"gwei", 9},
	{"mwei", 6},
	{"kwei", 3},
	{"wei", 0},
}

// ParseWei parses an amount such as "50gwei", "1.5 gwei" or "1000" (wei).
// An empty string returns nil.
func ParseWei(s string) (*big.Int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil, nil
	}

	num, exp := s, int32(0)
	for _, u := range units {
		if rest, ok := strings.CutSuffix(s, u.suffix); ok {
			num, exp = strings.TrimSpace(rest), u.exp
			break
		}
	}

	d, err := decimal.NewFromString(num)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %q", s)
	}

	wei := d.Shift(exp)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("amount %q is not a whole number of wei", s)
	}
	return wei.BigInt(), nil
}

// FormatGwei renders wei as a gwei decimal string.
func FormatGwei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -9).String()
}
