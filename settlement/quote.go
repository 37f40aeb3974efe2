package settlement

import (
	"context"
	"strings"
	"time"

	"finco/settlement/blockchains/svm"
	"finco/settlement/blockchains/svm/spl"
	"finco/settlement/blockchains/svm/squads"
	"finco/settlement/errors"
	"finco/settlement/models"
	"finco/settlement/observability"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	nativeSymbol   = "SOL"
	nativeDecimals = 9
	// A settlement pays for the proposal and the execution transaction,
	// each signed by the sponsor and one member.
	settlementTransactions = 2
	signaturesPerTx        = 2
)

// swapPlan is a validated swap request resolved against the registry.
type swapPlan struct {
	from        spl.Asset
	to          spl.Asset
	multisig    solana.PublicKey
	vault       solana.PublicKey
	amountIn    uint64
	slippageBps uint16
}

// estimate is a venue quote, the instructions it builds and the output
// projected for them.
type estimate struct {
	quote     *svm.VenueQuote
	swap      *svm.SwapInstructions
	tables    []squads.LookupTable
	amountOut uint64
	simulated bool
}

// begin opens the span and metric scope of one public operation.
func (s *Service) begin(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	started := time.Now()
	ctx, span := observability.StartSpan(ctx, operation, attrs...)
	return ctx, func(err error) {
		observability.EndSpan(span, err)
		s.metrics.Observe(operation, started, err)
	}
}

// plan validates req without any I/O.
func (s *Service) plan(req models.SwapRequest) (*swapPlan, error) {
	if !req.Amount.IsPositive() {
		return nil, errors.InvalidParameter("amount must be positive")
	}
	if strings.EqualFold(req.FromAsset, req.ToAsset) {
		return nil, errors.InvalidParameter("fromAsset and toAsset must differ")
	}
	if req.SlippageBps < s.cfg.MinSlippageBps || req.SlippageBps > s.cfg.MaxSlippageBps {
		return nil, errors.InvalidParameter("slippageBps must be between %d and %d", s.cfg.MinSlippageBps, s.cfg.MaxSlippageBps)
	}
	from, ok := s.registry.GetToken(req.FromAsset)
	if !ok {
		return nil, errors.InvalidParameter("unsupported asset %s", req.FromAsset)
	}
	to, ok := s.registry.GetToken(req.ToAsset)
	if !ok {
		return nil, errors.InvalidParameter("unsupported asset %s", req.ToAsset)
	}
	multisig, err := solana.PublicKeyFromBase58(req.VaultID)
	if err != nil {
		return nil, errors.InvalidParameter("vaultId is not a valid address")
	}
	amountIn, err := models.ToBaseUnits(req.Amount, from.Decimals)
	if err != nil {
		return nil, errors.InvalidParameter("amount: %v", err)
	}
	if amountIn == 0 {
		return nil, errors.InvalidParameter("amount %s is below the smallest unit of %s", req.Amount, from.Symbol)
	}
	vault, _, err := squads.VaultAddress(s.programID, multisig, s.vaultIndex)
	if err != nil {
		return nil, errors.Internal(errors.AddressError, err)
	}
	return &swapPlan{
		from:        from,
		to:          to,
		multisig:    multisig,
		vault:       vault,
		amountIn:    amountIn,
		slippageBps: req.SlippageBps,
	}, nil
}

// Simulate quotes a swap out of the multisig vault. It never writes.
func (s *Service) Simulate(ctx context.Context, req models.SwapRequest) (quote *models.SwapQuote, err error) {
	ctx, done := s.begin(ctx, "simulate",
		attribute.String("fromAsset", req.FromAsset),
		attribute.String("toAsset", req.ToAsset))
	defer func() { done(err) }()

	p, err := s.plan(req)
	if err != nil {
		return nil, err
	}
	if err = s.balances.Verify(ctx, p.vault, p.from, p.amountIn); err != nil {
		return nil, err
	}
	est, err := s.estimate(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.quoteFrom(p, est), nil
}

// estimate quotes and projects the swap on the candidate venues.
func (s *Service) estimate(ctx context.Context, p *swapPlan) (*estimate, error) {
	venues := s.router.Candidates(p.from, p.to)
	return TryVenues(ctx, venues,
		func(ctx context.Context, venue svm.Venue) (*estimate, error) {
			return s.estimateOn(ctx, venue, p)
		},
		func(from, to svm.Venue, _ error) {
			s.metrics.Fallback(string(from.Route()), string(to.Route()))
		})
}

func (s *Service) estimateOn(ctx context.Context, venue svm.Venue, p *swapPlan) (*estimate, error) {
	if !venue.Supports(p.from, p.to) {
		return nil, errors.UnsupportedVenuePair(string(venue.Route()), p.from.Symbol, p.to.Symbol, nil)
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QuoteTimeout)
	defer cancel()

	quote, err := venue.Quote(ctx, svm.QuoteRequest{
		From:        p.from,
		To:          p.to,
		AmountIn:    p.amountIn,
		SlippageBps: p.slippageBps,
	})
	if err != nil {
		return nil, err
	}
	swap, err := venue.BuildSwapInstructions(ctx, quote, p.vault)
	if err != nil {
		return nil, err
	}
	tables, err := svm.LoadLookupTables(ctx, s.chain, swap.LookupTables)
	if err != nil {
		return nil, errors.Internal(errors.AccountFetchError, err)
	}
	est := &estimate{quote: quote, swap: swap, tables: tables}
	est.amountOut, est.simulated = s.project(ctx, p, quote, swap.Instructions, tables)
	return est, nil
}

// project simulates instructions and returns the growth of the vault's
// destination token account. Any failure degrades to the quoted output
// less the fallback fee rate.
func (s *Service) project(ctx context.Context, p *swapPlan, quote *svm.VenueQuote, instructions []solana.Instruction, tables []squads.LookupTable) (uint64, bool) {
	logger := log.WithFields(log.Fields{
		"route": quote.Route,
		"from":  p.from.Symbol,
		"to":    p.to.Symbol,
	})
	degrade := func(reason string, err error) (uint64, bool) {
		entry := logger.WithField("reason", reason)
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Warn("simulation unusable, using fallback fee estimate")
		return models.ApplyRate(quote.AmountOut, s.fallbackRate), false
	}

	destination, err := spl.AssociatedTokenAddress(p.vault, p.to.Mint)
	if err != nil {
		return degrade("destination address", err)
	}
	pre, err := s.chain.TokenBalance(ctx, p.vault, p.to.Mint)
	if err != nil {
		return degrade("pre balance", err)
	}
	tx, err := s.creator.BuildSimulation(instructions, tables)
	if err != nil {
		return degrade("build", err)
	}
	result, err := s.chain.Simulate(ctx, tx, []solana.PublicKey{destination})
	if err != nil {
		return degrade("rpc", err)
	}
	if result.Err != nil {
		logger.WithField("logs", result.Logs).Debug("simulation failed on-chain")
		return degrade("execution", nil)
	}
	if len(result.Accounts) == 0 || result.Accounts[0] == nil {
		return degrade("no destination account", nil)
	}
	post, err := spl.DecodeTokenAccount(result.Accounts[0])
	if err != nil {
		return degrade("decode", err)
	}
	if post.Amount <= pre {
		return degrade("non positive delta", nil)
	}
	logger.WithFields(log.Fields{
		"quoted":    quote.AmountOut,
		"simulated": post.Amount - pre,
		"units":     result.UnitsConsumed,
	}).Debug("swap simulated")
	return post.Amount - pre, true
}

func (s *Service) quoteFrom(p *swapPlan, est *estimate) *models.SwapQuote {
	route := est.quote.Route
	networkFee := s.creator.NetworkFee(signaturesPerTx) * settlementTransactions
	return &models.SwapQuote{
		FromAsset:          p.from.Symbol,
		ToAsset:            p.to.Symbol,
		AmountIn:           models.FromBaseUnits(p.amountIn, p.from.Decimals),
		EstimatedAmountOut: models.FromBaseUnits(est.amountOut, p.to.Decimals),
		MinimumAmountOut:   models.FromBaseUnits(models.ApplyBps(est.amountOut, p.slippageBps), p.to.Decimals),
		PriceImpactPct:     est.quote.PriceImpactPct,
		Fees: models.FeeBreakdown{
			ProtocolFee:      models.FromBaseUnits(est.quote.FeeAmount, p.to.Decimals),
			ProtocolFeeAsset: p.to.Symbol,
			NetworkFee:       models.FromBaseUnits(networkFee, nativeDecimals),
			NetworkFeeAsset:  nativeSymbol,
		},
		Route:                 route,
		SlippageBps:           p.slippageBps,
		ExecutionTimeEstimate: s.estimates[route],
		Simulated:             est.simulated,
		QuotedAt:              s.now().UTC(),
	}
}

// Routes reports the route chosen for a pair and the venues that would be
// tried, in order.
func (s *Service) Routes(from, to string) (*models.RouteResponse, error) {
	fromAsset, okFrom := s.registry.GetToken(from)
	toAsset, okTo := s.registry.GetToken(to)
	if !okFrom || !okTo {
		return nil, errors.UnsupportedTokenPair(strings.ToUpper(from), strings.ToUpper(to))
	}
	if fromAsset.Symbol == toAsset.Symbol {
		return nil, errors.InvalidParameter("fromAsset and toAsset must differ")
	}
	resp := &models.RouteResponse{
		FromAsset: fromAsset.Symbol,
		ToAsset:   toAsset.Symbol,
		Route:     s.router.Select(fromAsset, toAsset),
	}
	for _, v := range s.router.Candidates(fromAsset, toAsset) {
		resp.Candidates = append(resp.Candidates, v.Route())
	}
	return resp, nil
}
