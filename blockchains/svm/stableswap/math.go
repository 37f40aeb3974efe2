package stableswap

import (
	"fmt"
	"math/big"
)

const (
	nCoins        = 2
	maxIterations = 256
)

var (
	bigN   = big.NewInt(nCoins)
	bigOne = big.NewInt(1)
)

// AmpFactor returns the amplification coefficient at unix time now,
// linearly interpolated while a ramp is in progress.
func (s *SwapInfo) AmpFactor(now int64) uint64 {
	if now >= s.StopRampTs || s.StopRampTs <= s.StartRampTs {
		return s.TargetAmpFactor
	}
	if now <= s.StartRampTs {
		return s.InitialAmpFactor
	}
	elapsed := uint64(now - s.StartRampTs)
	span := uint64(s.StopRampTs - s.StartRampTs)
	if s.TargetAmpFactor > s.InitialAmpFactor {
		return s.InitialAmpFactor + (s.TargetAmpFactor-s.InitialAmpFactor)*elapsed/span
	}
	return s.InitialAmpFactor - (s.InitialAmpFactor-s.TargetAmpFactor)*elapsed/span
}

// computeD solves the StableSwap invariant for D given both reserves.
func computeD(amp uint64, a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(a, b)
	if sum.Sign() == 0 {
		return new(big.Int), nil
	}
	if a.Sign() == 0 || b.Sign() == 0 {
		return nil, fmt.Errorf("empty reserve")
	}
	ann := new(big.Int).Mul(new(big.Int).SetUint64(amp), bigN)
	annMinusOne := new(big.Int).Sub(ann, bigOne)
	d := new(big.Int).Set(sum)

	for i := 0; i < maxIterations; i++ {
		dp := new(big.Int).Set(d)
		dp.Mul(dp, d).Quo(dp, new(big.Int).Mul(a, bigN))
		dp.Mul(dp, d).Quo(dp, new(big.Int).Mul(b, bigN))

		prev := d
		num := new(big.Int).Mul(ann, sum)
		num.Add(num, new(big.Int).Mul(dp, bigN))
		num.Mul(num, prev)
		den := new(big.Int).Mul(annMinusOne, prev)
		den.Add(den, new(big.Int).Mul(dp, big.NewInt(nCoins+1)))
		d = num.Quo(num, den)

		if withinOne(d, prev) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("invariant did not converge")
}

// computeY returns the new reserve of the other token after the first
// reserve moves to x, holding D constant.
func computeY(amp uint64, x, d *big.Int) (*big.Int, error) {
	if x.Sign() == 0 {
		return nil, fmt.Errorf("empty reserve")
	}
	ann := new(big.Int).Mul(new(big.Int).SetUint64(amp), bigN)

	c := new(big.Int).Mul(d, d)
	c.Quo(c, new(big.Int).Mul(x, bigN))
	c.Mul(c, d).Quo(c, new(big.Int).Mul(ann, bigN))

	b := new(big.Int).Quo(d, ann)
	b.Add(b, x)

	y := new(big.Int).Set(d)
	for i := 0; i < maxIterations; i++ {
		prev := y
		num := new(big.Int).Mul(prev, prev)
		num.Add(num, c)
		den := new(big.Int).Lsh(prev, 1)
		den.Add(den, b).Sub(den, d)
		if den.Sign() <= 0 {
			return nil, fmt.Errorf("invariant did not converge")
		}
		y = num.Quo(num, den)
		if withinOne(y, prev) {
			return y, nil
		}
	}
	return nil, fmt.Errorf("invariant did not converge")
}

func withinOne(a, b *big.Int) bool {
	diff := new(big.Int).Sub(a, b)
	return diff.CmpAbs(bigOne) <= 0
}

// SwapResult is the outcome of selling AmountIn into the pool.
type SwapResult struct {
	AmountOut uint64
	TradeFee  uint64
	AdminFee  uint64
}

// SwapOut prices amountIn of the source token against the pool.
func SwapOut(amp uint64, sourceReserve, destReserve, amountIn uint64, fees Fees) (SwapResult, error) {
	src := new(big.Int).SetUint64(sourceReserve)
	dst := new(big.Int).SetUint64(destReserve)
	d, err := computeD(amp, src, dst)
	if err != nil {
		return SwapResult{}, err
	}
	newSrc := new(big.Int).Add(src, new(big.Int).SetUint64(amountIn))
	newDst, err := computeY(amp, newSrc, d)
	if err != nil {
		return SwapResult{}, err
	}
	dy := new(big.Int).Sub(dst, newDst)
	if dy.Sign() <= 0 {
		return SwapResult{}, nil
	}
	tradeFee := fees.trade(dy)
	adminFee := fees.admin(tradeFee)
	out := new(big.Int).Sub(dy, tradeFee)
	if !out.IsUint64() {
		return SwapResult{}, fmt.Errorf("swap output overflows")
	}
	return SwapResult{AmountOut: out.Uint64(), TradeFee: tradeFee.Uint64(), AdminFee: adminFee.Uint64()}, nil
}

func (f Fees) trade(amount *big.Int) *big.Int {
	return mulDiv(amount, f.TradeFeeNumerator, f.TradeFeeDenominator)
}

func (f Fees) admin(amount *big.Int) *big.Int {
	return mulDiv(amount, f.AdminTradeFeeNumerator, f.AdminTradeFeeDenominator)
}

func mulDiv(amount *big.Int, num, den uint64) *big.Int {
	if num == 0 || den == 0 {
		return new(big.Int)
	}
	v := new(big.Int).Mul(amount, new(big.Int).SetUint64(num))
	return v.Quo(v, new(big.Int).SetUint64(den))
}
