package svm

import (
	"context"

	"finco/settlement/blockchains/svm/spl"
	"finco/settlement/models"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Venue is a liquidity source able to quote and build swap instructions.
// Implementations return errors from the settlement taxonomy so callers can
// tell venue outages from unsupported pairs.
type Venue interface {
	Route() models.Route
	Supports(from, to spl.Asset) bool
	Quote(ctx context.Context, req QuoteRequest) (*VenueQuote, error)
	BuildSwapInstructions(ctx context.Context, quote *VenueQuote, payer solana.PublicKey) (*SwapInstructions, error)
}

type QuoteRequest struct {
	From        spl.Asset
	To          spl.Asset
	AmountIn    uint64
	SlippageBps uint16
}

// VenueQuote is a venue price in base units. Raw carries whatever the venue
// needs back to build instructions for this exact quote.
type VenueQuote struct {
	Route          models.Route
	From           spl.Asset
	To             spl.Asset
	AmountIn       uint64
	AmountOut      uint64
	MinAmountOut   uint64
	SlippageBps    uint16
	FeeAmount      uint64
	PriceImpactPct decimal.Decimal
	Raw            interface{}
}

type SwapInstructions struct {
	Instructions []solana.Instruction
	LookupTables []solana.PublicKey
}
