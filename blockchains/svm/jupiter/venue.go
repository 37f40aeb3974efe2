package jupiter

import (
	"context"
	"encoding/base64"
	"fmt"

	"finco/settlement/blockchains/svm"
	"finco/settlement/blockchains/svm/spl"
	"finco/settlement/errors"
	"finco/settlement/models"

	"github.com/gagliardetto/solana-go"
)

// Venue routes any registered pair through the aggregator.
type Venue struct {
	client *Client
}

func NewVenue(client *Client) *Venue {
	return &Venue{client: client}
}

func (v *Venue) Route() models.Route {
	return models.AggregatorRoute
}

func (v *Venue) Supports(from, to spl.Asset) bool {
	return !from.Mint.Equals(to.Mint)
}

func (v *Venue) Quote(ctx context.Context, req svm.QuoteRequest) (*svm.VenueQuote, error) {
	quote, err := v.client.Quote(ctx, req.From.Mint.String(), req.To.Mint.String(), req.AmountIn, req.SlippageBps)
	if err != nil {
		return nil, err
	}
	out, err := parseAmount(quote.OutAmount)
	if err != nil {
		return nil, errors.VenueServiceError(venueName, 0, fmt.Errorf("outAmount %q: %w", quote.OutAmount, err))
	}
	if out == 0 {
		return nil, errors.UnsupportedVenuePair(venueName, req.From.Symbol, req.To.Symbol, fmt.Errorf("zero output"))
	}
	minOut, err := parseAmount(quote.OtherAmountThreshold)
	if err != nil {
		minOut = models.ApplyBps(out, req.SlippageBps)
	}

	return &svm.VenueQuote{
		Route:          models.AggregatorRoute,
		From:           req.From,
		To:             req.To,
		AmountIn:       req.AmountIn,
		AmountOut:      out,
		MinAmountOut:   minOut,
		SlippageBps:    req.SlippageBps,
		FeeAmount:      outputFees(quote, req.To.Mint.String()),
		PriceImpactPct: parsePct(quote.PriceImpactPct),
		Raw:            quote,
	}, nil
}

// outputFees sums route fees charged in the output mint.
func outputFees(quote *QuoteResponse, outputMint string) uint64 {
	var total uint64
	for _, step := range quote.RoutePlan {
		if step.SwapInfo.FeeMint != outputMint {
			continue
		}
		if fee, err := parseAmount(step.SwapInfo.FeeAmount); err == nil {
			total += fee
		}
	}
	return total
}

// BuildSwapInstructions converts the aggregator response into instructions
// for payer. Compute budget instructions are dropped; the outer
// transaction sets its own.
func (v *Venue) BuildSwapInstructions(ctx context.Context, quote *svm.VenueQuote, payer solana.PublicKey) (*svm.SwapInstructions, error) {
	raw, ok := quote.Raw.(*QuoteResponse)
	if !ok {
		return nil, errors.Internal(errors.TxBuildError, fmt.Errorf("quote was not produced by the aggregator"))
	}
	resp, err := v.client.SwapInstructions(ctx, raw, payer.String())
	if err != nil {
		return nil, err
	}

	var ordered []Instruction
	if resp.TokenLedgerInstruction != nil {
		ordered = append(ordered, *resp.TokenLedgerInstruction)
	}
	ordered = append(ordered, resp.SetupInstructions...)
	ordered = append(ordered, resp.SwapInstruction)
	if resp.CleanupInstruction != nil {
		ordered = append(ordered, *resp.CleanupInstruction)
	}
	ordered = append(ordered, resp.OtherInstructions...)

	out := &svm.SwapInstructions{}
	for _, ix := range ordered {
		decoded, err := decodeInstruction(ix)
		if err != nil {
			return nil, errors.VenueServiceError(venueName, 0, err)
		}
		if decoded.ProgramID().Equals(svm.ComputeBudgetProgramID) {
			continue
		}
		out.Instructions = append(out.Instructions, decoded)
	}
	for _, addr := range resp.AddressLookupTableAddresses {
		key, err := solana.PublicKeyFromBase58(addr)
		if err != nil {
			return nil, errors.VenueServiceError(venueName, 0, fmt.Errorf("lookup table %q: %w", addr, err))
		}
		out.LookupTables = append(out.LookupTables, key)
	}
	return out, nil
}

func decodeInstruction(ix Instruction) (*solana.GenericInstruction, error) {
	program, err := solana.PublicKeyFromBase58(ix.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("program id %q: %w", ix.ProgramID, err)
	}
	data, err := base64.StdEncoding.DecodeString(ix.Data)
	if err != nil {
		return nil, errors.BuildErrMsg(errors.Base64DecodeError, err)
	}
	accounts := make(solana.AccountMetaSlice, 0, len(ix.Accounts))
	for _, a := range ix.Accounts {
		key, err := solana.PublicKeyFromBase58(a.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", a.Pubkey, err)
		}
		accounts = append(accounts, solana.NewAccountMeta(key, a.IsWritable, a.IsSigner))
	}
	return solana.NewInstruction(program, accounts, data), nil
}
