package models

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToBaseUnits converts a display amount to the integer base-unit amount,
// truncating toward zero.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (uint64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("negative amount %s", amount)
	}
	base := amount.Shift(int32(decimals)).Truncate(0).BigInt()
	if !base.IsUint64() {
		return 0, fmt.Errorf("amount %s overflows base units", amount)
	}
	return base.Uint64(), nil
}

// FromBaseUnits converts an integer base-unit amount to display units.
func FromBaseUnits(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
}

// ApplyBps returns amount * (1 - bps/10000), floored.
func ApplyBps(amount uint64, bps uint16) uint64 {
	if bps >= 10000 {
		return 0
	}
	v := new(big.Int).SetUint64(amount)
	v.Mul(v, big.NewInt(int64(10000-bps)))
	v.Quo(v, big.NewInt(10000))
	return v.Uint64()
}

// ApplyRate returns amount * (1 - rate), floored.
func ApplyRate(amount uint64, rate decimal.Decimal) uint64 {
	v := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0).
		Mul(decimal.NewFromInt(1).Sub(rate)).
		Floor()
	if v.IsNegative() {
		return 0
	}
	return v.BigInt().Uint64()
}

// Deviation returns |current - expected| / expected.
func Deviation(expected, current decimal.Decimal) decimal.Decimal {
	if expected.IsZero() {
		return decimal.Zero
	}
	return current.Sub(expected).Abs().DivRound(expected, 8)
}
