package stableswap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finco/settlement/blockchains/svm"
	"finco/settlement/blockchains/svm/spl"
	"finco/settlement/errors"
	"finco/settlement/models"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const venueName = "restricted"

// PoolConfig names a pool and the two mints it trades.
type PoolConfig struct {
	Address solana.PublicKey
	MintA   solana.PublicKey
	MintB   solana.PublicKey
}

func (p PoolConfig) trades(a, b solana.PublicKey) bool {
	return (p.MintA.Equals(a) && p.MintB.Equals(b)) || (p.MintA.Equals(b) && p.MintB.Equals(a))
}

type poolQuote struct {
	pool PoolConfig
	info *SwapInfo
}

type Option func(*Venue)

// WithClock overrides the time source used for amplification ramps.
func WithClock(now func() time.Time) Option {
	return func(v *Venue) { v.now = now }
}

// Venue quotes and builds swaps against configured stable pools. Only
// pairs whose symbols are both in the restricted set are served.
type Venue struct {
	chain     svm.Chain
	programID solana.PublicKey
	pools     []PoolConfig
	symbols   map[string]struct{}
	now       func() time.Time
}

func NewVenue(chain svm.Chain, programID solana.PublicKey, symbols []string, pools []PoolConfig, opts ...Option) *Venue {
	v := &Venue{
		chain:     chain,
		programID: programID,
		pools:     pools,
		symbols:   make(map[string]struct{}, len(symbols)),
		now:       time.Now,
	}
	for _, s := range symbols {
		v.symbols[strings.ToUpper(s)] = struct{}{}
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Venue) Route() models.Route {
	return models.RestrictedRoute
}

// Restricted reports whether symbol belongs to the restricted asset set.
func (v *Venue) Restricted(symbol string) bool {
	_, ok := v.symbols[strings.ToUpper(symbol)]
	return ok
}

func (v *Venue) Supports(from, to spl.Asset) bool {
	return from.Symbol != to.Symbol && v.Restricted(from.Symbol) && v.Restricted(to.Symbol)
}

func (v *Venue) findPool(from, to spl.Asset) (PoolConfig, bool) {
	for _, p := range v.pools {
		if p.trades(from.Mint, to.Mint) {
			return p, true
		}
	}
	return PoolConfig{}, false
}

func (v *Venue) Quote(ctx context.Context, req svm.QuoteRequest) (*svm.VenueQuote, error) {
	if !v.Supports(req.From, req.To) {
		return nil, errors.UnsupportedVenuePair(venueName, req.From.Symbol, req.To.Symbol, nil)
	}
	pool, ok := v.findPool(req.From, req.To)
	if !ok {
		return nil, errors.UnsupportedVenuePair(venueName, req.From.Symbol, req.To.Symbol, fmt.Errorf("no pool configured"))
	}

	info, reserves, err := v.loadPool(ctx, pool, req.From, req.To)
	if err != nil {
		return nil, err
	}
	if info.IsPaused {
		return nil, errors.VenueServiceError(venueName, 0, fmt.Errorf("pool %s is paused", pool.Address))
	}

	amp := info.AmpFactor(v.now().Unix())
	result, err := SwapOut(amp, reserves[0], reserves[1], req.AmountIn, info.Fees)
	if err != nil {
		return nil, errors.VenueServiceError(venueName, 0, err)
	}
	if result.AmountOut == 0 {
		return nil, errors.UnsupportedVenuePair(venueName, req.From.Symbol, req.To.Symbol, fmt.Errorf("insufficient pool liquidity"))
	}

	log.WithFields(log.Fields{
		"pool":      pool.Address.String(),
		"amp":       amp,
		"amountIn":  req.AmountIn,
		"amountOut": result.AmountOut,
	}).Debug("stable pool quote")

	return &svm.VenueQuote{
		Route:          models.RestrictedRoute,
		From:           req.From,
		To:             req.To,
		AmountIn:       req.AmountIn,
		AmountOut:      result.AmountOut,
		MinAmountOut:   models.ApplyBps(result.AmountOut, req.SlippageBps),
		SlippageBps:    req.SlippageBps,
		FeeAmount:      result.TradeFee,
		PriceImpactPct: priceImpact(amp, reserves[0], reserves[1], req.AmountIn, result.AmountOut+result.TradeFee),
		Raw:            &poolQuote{pool: pool, info: info},
	}, nil
}

// loadPool fetches pool state and both reserve balances, ordered
// [source, destination].
func (v *Venue) loadPool(ctx context.Context, pool PoolConfig, from, to spl.Asset) (*SwapInfo, [2]uint64, error) {
	var reserves [2]uint64
	data, err := v.chain.AccountData(ctx, pool.Address)
	if err != nil {
		if errors.Is(err, svm.ErrAccountNotFound) {
			return nil, reserves, errors.UnsupportedVenuePair(venueName, from.Symbol, to.Symbol, fmt.Errorf("pool %s not found", pool.Address))
		}
		return nil, reserves, errors.VenueServiceError(venueName, 0, err)
	}
	info, err := DecodeSwapInfo(data)
	if err != nil {
		return nil, reserves, errors.VenueServiceError(venueName, 0, err)
	}
	source, dest, ok := info.Sides(from.Mint)
	if !ok {
		return nil, reserves, errors.VenueServiceError(venueName, 0, fmt.Errorf("pool %s does not hold %s", pool.Address, from.Symbol))
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, account := range []solana.PublicKey{source.Reserves, dest.Reserves} {
		i, account := i, account
		g.Go(func() error {
			raw, err := v.chain.AccountData(gctx, account)
			if err != nil {
				return err
			}
			token, err := spl.DecodeTokenAccount(raw)
			if err != nil {
				return err
			}
			reserves[i] = token.Amount
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, reserves, errors.VenueServiceError(venueName, 0, fmt.Errorf("pool reserves: %w", err))
	}
	return info, reserves, nil
}

// priceImpact compares the realized rate with the rate of a marginal trade.
func priceImpact(amp, sourceReserve, destReserve, amountIn, grossOut uint64) decimal.Decimal {
	probe := amountIn / 10_000
	if probe == 0 {
		probe = 1
	}
	marginal, err := SwapOut(amp, sourceReserve, destReserve, probe, Fees{})
	if err != nil || marginal.AmountOut == 0 || amountIn == 0 {
		return decimal.Zero
	}
	spot := models.FromBaseUnits(marginal.AmountOut, 0).Div(models.FromBaseUnits(probe, 0))
	realized := models.FromBaseUnits(grossOut, 0).Div(models.FromBaseUnits(amountIn, 0))
	impact := decimal.NewFromInt(1).Sub(realized.Div(spot))
	if impact.IsNegative() {
		return decimal.Zero
	}
	return impact.Round(6)
}

// BuildSwapInstructions creates the destination token account if needed
// and swaps from payer's source account into it.
func (v *Venue) BuildSwapInstructions(_ context.Context, quote *svm.VenueQuote, payer solana.PublicKey) (*svm.SwapInstructions, error) {
	raw, ok := quote.Raw.(*poolQuote)
	if !ok {
		return nil, errors.Internal(errors.TxBuildError, fmt.Errorf("quote was not produced by the restricted venue"))
	}
	source, dest, ok := raw.info.Sides(quote.From.Mint)
	if !ok {
		return nil, errors.Internal(errors.TxBuildError, fmt.Errorf("pool does not hold %s", quote.From.Mint))
	}
	authority, err := Authority(v.programID, raw.pool.Address, raw.info.Nonce)
	if err != nil {
		return nil, errors.Internal(errors.AddressError, err)
	}
	userSource, err := spl.AssociatedTokenAddress(payer, quote.From.Mint)
	if err != nil {
		return nil, errors.Internal(errors.AddressError, err)
	}
	userDest, err := spl.AssociatedTokenAddress(payer, quote.To.Mint)
	if err != nil {
		return nil, errors.Internal(errors.AddressError, err)
	}
	createDest, err := spl.CreateIdempotentInstruction(payer, payer, quote.To.Mint)
	if err != nil {
		return nil, errors.Internal(errors.TxBuildError, err)
	}

	swap := SwapInstruction(v.programID, SwapAccounts{
		Pool:             raw.pool.Address,
		Authority:        authority,
		UserAuthority:    payer,
		Source:           userSource,
		PoolSource:       source.Reserves,
		PoolDestination:  dest.Reserves,
		Destination:      userDest,
		AdminDestination: dest.AdminFees,
	}, quote.AmountIn, quote.MinAmountOut)

	return &svm.SwapInstructions{Instructions: []solana.Instruction{createDest, swap}}, nil
}
