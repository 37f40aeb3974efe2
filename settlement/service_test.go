package settlement

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"finco/settlement/blockchains/svm"
	"finco/settlement/errors"
	"finco/settlement/models"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireCode(t *testing.T, err error, code errors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, errors.CodeOf(err), err.Error())
}

func TestSimulateUsesSimulatedOutput(t *testing.T) {
	h := newHarness(t)

	quote, err := h.svc.Simulate(context.Background(), h.swap("100"))
	require.NoError(t, err)

	assert.True(t, quote.Simulated)
	assert.Equal(t, models.RestrictedRoute, quote.Route)
	assert.Equal(t, "100", quote.AmountIn.String())
	assert.Equal(t, "99.5", quote.EstimatedAmountOut.String())
	assert.Equal(t, "99.0025", quote.MinimumAmountOut.String())
	assert.Equal(t, "0.004", quote.Fees.ProtocolFee.String())
	assert.Equal(t, "USDT", quote.Fees.ProtocolFeeAsset)
	assert.Equal(t, "0.00002", quote.Fees.NetworkFee.String())
	assert.Equal(t, "SOL", quote.Fees.NetworkFeeAsset)
	assert.Equal(t, "~30 seconds", quote.ExecutionTimeEstimate)
	assert.Equal(t, h.clock.Now().UTC(), quote.QuotedAt)
	assert.Empty(t, h.chain.sent)
}

func TestSimulateFallsBackToFeeRate(t *testing.T) {
	cases := map[string]func(*solana.Transaction, []solana.PublicKey) (*svm.SimulationResult, error){
		"rpc error": func(*solana.Transaction, []solana.PublicKey) (*svm.SimulationResult, error) {
			return nil, errors.New("node unavailable")
		},
		"runtime error": func(*solana.Transaction, []solana.PublicKey) (*svm.SimulationResult, error) {
			return &svm.SimulationResult{Err: "custom program error: 0x1"}, nil
		},
		"missing account": func(*solana.Transaction, []solana.PublicKey) (*svm.SimulationResult, error) {
			return &svm.SimulationResult{Accounts: [][]byte{nil}}, nil
		},
	}
	for name, simulate := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.chain.simulate = simulate

			quote, err := h.svc.Simulate(context.Background(), h.swap("100"))
			require.NoError(t, err)
			assert.False(t, quote.Simulated)
			assert.Equal(t, "99.5006", quote.EstimatedAmountOut.String())
		})
	}
}

func TestSimulateRejectsInvalidInputBeforeIO(t *testing.T) {
	h := newHarness(t)
	valid := h.swap("100")

	cases := map[string]func(r *models.SwapRequest){
		"zero amount":       func(r *models.SwapRequest) { r.Amount = decimal.Zero },
		"negative amount":   func(r *models.SwapRequest) { r.Amount = decimal.NewFromInt(-1) },
		"dust amount":       func(r *models.SwapRequest) { r.Amount = decimal.RequireFromString("0.0000001") },
		"same asset":        func(r *models.SwapRequest) { r.ToAsset = "usdc" },
		"slippage zero":     func(r *models.SwapRequest) { r.SlippageBps = 0 },
		"slippage too high": func(r *models.SwapRequest) { r.SlippageBps = 501 },
		"unknown asset":     func(r *models.SwapRequest) { r.ToAsset = "DOGE" },
		"bad vault":         func(r *models.SwapRequest) { r.VaultID = "not-an-address" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := valid
			mutate(&req)
			_, err := h.svc.Simulate(context.Background(), req)
			requireCode(t, err, errors.CodeInvalidParameter)
		})
	}
	assert.Zero(t, h.chain.balanceCalls)
	assert.Zero(t, h.restricted.quotes)
}

func TestSimulateChecksBalance(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Simulate(context.Background(), h.swap("1000.000001"))
	requireCode(t, err, errors.CodeInsufficientBalance)

	var typed *errors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, "USDC", typed.Detail("asset"))
	assert.Zero(t, h.restricted.quotes)
}

func TestRestrictedVenueFallsBackToAggregator(t *testing.T) {
	t.Run("service error", func(t *testing.T) {
		h := newHarness(t)
		h.restricted.quoteErr = errors.VenueServiceError("restricted", 503, nil)

		quote, err := h.svc.Simulate(context.Background(), h.swap("100"))
		require.NoError(t, err)
		assert.Equal(t, models.AggregatorRoute, quote.Route)
		assert.Equal(t, 1, h.restricted.quotes)
		assert.Equal(t, 1, h.aggregator.quotes)
	})

	t.Run("unsupported pair", func(t *testing.T) {
		h := newHarness(t)
		h.restricted.supports = false

		quote, err := h.svc.Simulate(context.Background(), h.swap("100"))
		require.NoError(t, err)
		assert.Equal(t, models.AggregatorRoute, quote.Route)
		assert.Equal(t, "~1 minute", quote.ExecutionTimeEstimate)
	})

	t.Run("build fails on restricted venue", func(t *testing.T) {
		for name, buildErr := range map[string]error{
			"service error":    errors.VenueServiceError("restricted", 502, nil),
			"unsupported pair": errors.UnsupportedVenuePair("restricted", "USDC", "USDT", nil),
		} {
			t.Run(name, func(t *testing.T) {
				h := newHarness(t)
				h.restricted.buildErr = buildErr

				quote, err := h.svc.Simulate(context.Background(), h.swap("100"))
				require.NoError(t, err)
				assert.Equal(t, models.AggregatorRoute, quote.Route)
				assert.Equal(t, 1, h.restricted.builds)
				assert.Equal(t, 1, h.aggregator.builds)

				prepared, err := h.svc.Prepare(context.Background(), testOrg, models.PrepareRequest{
					SwapRequest:       h.swap("100"),
					ExpectedAmountOut: quote.EstimatedAmountOut,
				})
				require.NoError(t, err)
				assert.Equal(t, models.AggregatorRoute, prepared.SwapDetails.Route)
			})
		}
	})

	t.Run("aggregator error is surfaced", func(t *testing.T) {
		h := newHarness(t)
		h.restricted.quoteErr = errors.VenueServiceError("restricted", 503, nil)
		h.aggregator.quoteErr = errors.VenueServiceError("aggregator", 429, nil)

		_, err := h.svc.Simulate(context.Background(), h.swap("100"))
		requireCode(t, err, errors.CodeVenueServiceError)
		var typed *errors.Error
		require.True(t, errors.As(err, &typed))
		assert.Equal(t, "aggregator", typed.Detail("venue"))
		assert.Equal(t, true, typed.Detail("rateLimited"))
	})

	t.Run("ineligible error does not fall back", func(t *testing.T) {
		h := newHarness(t)
		h.restricted.quoteErr = errors.Internal(errors.AccountFetchError, errors.New("rpc down"))

		_, err := h.svc.Simulate(context.Background(), h.swap("100"))
		requireCode(t, err, errors.CodeInternal)
		assert.Zero(t, h.aggregator.quotes)
	})
}

func TestAggregatorOnlyPairSkipsRestrictedVenue(t *testing.T) {
	h := newHarness(t)
	req := h.swap("100")
	req.ToAsset = "SOL"

	quote, err := h.svc.Simulate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.AggregatorRoute, quote.Route)
	assert.Zero(t, h.restricted.quotes)
}

func TestSwapSettlesEndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	quote, err := h.svc.Simulate(ctx, h.swap("100"))
	require.NoError(t, err)

	prepared, err := h.svc.Prepare(ctx, testOrg, models.PrepareRequest{
		SwapRequest:       h.swap("100"),
		ExpectedAmountOut: quote.EstimatedAmountOut,
		Memo:              "rebalance",
	})
	require.NoError(t, err)
	assert.Equal(t, h.sponsor.PublicKey().String(), prepared.FeePayerAddress)
	assert.Equal(t, uint64(5), prepared.SwapDetails.TransactionIndex)
	assert.Equal(t, h.member.PublicKey().String(), prepared.SwapDetails.Member)
	assert.Equal(t, h.vault.String(), prepared.SwapDetails.Vault)
	assert.Equal(t, h.clock.Now().Add(10*time.Minute), prepared.ExpiresAt)

	unsigned, err := svm.DecodeTransaction(prepared.UnsignedTx)
	require.NoError(t, err)
	assert.Equal(t, h.sponsor.PublicKey(), unsigned.Message.AccountKeys[0])
	assert.Len(t, unsigned.Message.Instructions, 3)

	h.seedVaultTransaction(prepared.SwapDetails.TransactionIndex)
	proposal, err := h.svc.SubmitProposal(ctx, testOrg, models.SubmitProposalRequest{
		TransactionID: prepared.TransactionID,
		SignedTx:      h.sign(prepared.UnsignedTx, h.member),
	})
	require.NoError(t, err)
	assert.Equal(t, h.member.PublicKey().String(), proposal.ExecutionMember)
	assert.Equal(t, prepared.SwapDetails, proposal.SwapDetails)
	assert.Zero(t, h.prepared.Len())
	assert.Equal(t, 1, h.executions.Len())

	final, err := h.svc.FinalizeExecution(ctx, testOrg, models.FinalizeRequest{
		ProposalSignature: proposal.ProposalSignature,
		SignedExecutionTx: h.sign(proposal.ExecutionTx, h.member),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, final.Status)
	assert.NotEmpty(t, final.ExecutionSignature)
	assert.Equal(t, prepared.SwapDetails, final.SwapDetails)
	assert.Equal(t, 2, h.chain.sentCount())
	assert.Zero(t, h.executions.Len())

	for _, tx := range h.chain.sent {
		assert.NotEqual(t, solana.Signature{}, tx.Signatures[0], "sponsor must co-sign")
	}

	_, err = h.svc.FinalizeExecution(ctx, testOrg, models.FinalizeRequest{
		ProposalSignature: proposal.ProposalSignature,
		SignedExecutionTx: h.sign(proposal.ExecutionTx, h.member),
	})
	requireCode(t, err, errors.CodeExecutionContextNotFound)

	assert.Equal(t, []string{
		"quoted>prepared",
		"prepared>proposed",
		"proposed>executing",
		"executing>finalized",
	}, h.journal.moves())
}

func TestPrepareRejectsMovedMarket(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Prepare(context.Background(), testOrg, models.PrepareRequest{
		SwapRequest:       h.swap("100"),
		ExpectedAmountOut: decimal.RequireFromString("110"),
	})
	requireCode(t, err, errors.CodeMarketConditionsChanged)

	var typed *errors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, "99.5", typed.Detail("current").(decimal.Decimal).String())
	assert.Zero(t, h.prepared.Len())
	assert.Empty(t, h.chain.sent)
}

func TestPrepareHonorsRequestDeviation(t *testing.T) {
	h := newHarness(t)
	wide := decimal.RequireFromString("0.2")

	_, err := h.svc.Prepare(context.Background(), testOrg, models.PrepareRequest{
		SwapRequest:       h.swap("100"),
		ExpectedAmountOut: decimal.RequireFromString("110"),
		MaxDeviation:      &wide,
	})
	require.NoError(t, err)

	tooWide := decimal.RequireFromString("0.6")
	_, err = h.svc.Prepare(context.Background(), testOrg, models.PrepareRequest{
		SwapRequest:       h.swap("100"),
		ExpectedAmountOut: decimal.RequireFromString("99.5"),
		MaxDeviation:      &tooWide,
	})
	requireCode(t, err, errors.CodeInvalidParameter)
	assert.Equal(t, 1, h.restricted.quotes)
	assert.Equal(t, 1, h.prepared.Len())
}

func TestPrepareRechecksBalance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	quote, err := h.svc.Simulate(ctx, h.swap("100"))
	require.NoError(t, err)
	h.restricted.quotes, h.aggregator.quotes = 0, 0
	h.chain.setBalance(h.vault, h.usdc.Mint, 99_999999)

	_, err = h.svc.Prepare(ctx, testOrg, models.PrepareRequest{
		SwapRequest:       h.swap("100"),
		ExpectedAmountOut: quote.EstimatedAmountOut,
	})
	requireCode(t, err, errors.CodeInsufficientBalance)
	assert.Zero(t, h.restricted.quotes)
	assert.Zero(t, h.aggregator.quotes)
	assert.Zero(t, h.prepared.Len())
}

func TestPrepareValidatesMultisig(t *testing.T) {
	t.Run("threshold above one", func(t *testing.T) {
		h := newHarness(t)
		h.setMultisig(2)
		_, err := h.svc.Prepare(context.Background(), testOrg, models.PrepareRequest{
			SwapRequest:       h.swap("100"),
			ExpectedAmountOut: decimal.RequireFromString("99.5"),
		})
		requireCode(t, err, errors.CodeInvalidParameter)
	})

	t.Run("requested member without vote permission", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.Prepare(context.Background(), testOrg, models.PrepareRequest{
			SwapRequest:       h.swap("100"),
			ExpectedAmountOut: decimal.RequireFromString("99.5"),
			Member:            h.sponsor.PublicKey().String(),
		})
		requireCode(t, err, errors.CodeInvalidParameter)
	})

	t.Run("missing expected amount", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.Prepare(context.Background(), testOrg, models.PrepareRequest{SwapRequest: h.swap("100")})
		requireCode(t, err, errors.CodeInvalidParameter)
		assert.Zero(t, h.chain.balanceCalls)
	})
}

func TestSubmitProposalRejectsBadSignatures(t *testing.T) {
	h := newHarness(t)
	prepared := h.prepare()
	submit := func(signed string) error {
		_, err := h.svc.SubmitProposal(context.Background(), testOrg, models.SubmitProposalRequest{
			TransactionID: prepared.TransactionID,
			SignedTx:      signed,
		})
		return err
	}

	requireCode(t, submit("!!not base64"), errors.CodeInvalidTransactionFormat)
	requireCode(t, submit(prepared.UnsignedTx), errors.CodeMissingUserSignature)
	requireCode(t, submit(h.sign(prepared.UnsignedTx, h.member, h.sponsor)), errors.CodeAlreadySigned)

	tampered, err := svm.DecodeTransaction(prepared.UnsignedTx)
	require.NoError(t, err)
	tampered.Message.RecentBlockhash = solana.Hash(solana.NewWallet().PublicKey())
	h.signTx(tampered, h.member)
	encoded, err := svm.EncodeTransaction(tampered)
	require.NoError(t, err)
	requireCode(t, submit(encoded), errors.CodeMessageTampered)

	assert.Equal(t, 1, h.prepared.Len(), "rejected submissions keep the prepared record")
	assert.Empty(t, h.chain.sent)
}

func TestSubmitProposalChecksOrganization(t *testing.T) {
	h := newHarness(t)
	prepared := h.prepare()

	_, err := h.svc.SubmitProposal(context.Background(), "other-org", models.SubmitProposalRequest{
		TransactionID: prepared.TransactionID,
		SignedTx:      h.sign(prepared.UnsignedTx, h.member),
	})
	requireCode(t, err, errors.CodePreparedTransactionNotFound)
	assert.Equal(t, 1, h.prepared.Len())
}

func TestPreparedRecordExpires(t *testing.T) {
	h := newHarness(t)
	prepared := h.prepare()

	h.clock.Advance(10*time.Minute + time.Second)
	_, err := h.svc.SubmitProposal(context.Background(), testOrg, models.SubmitProposalRequest{
		TransactionID: prepared.TransactionID,
		SignedTx:      h.sign(prepared.UnsignedTx, h.member),
	})
	requireCode(t, err, errors.CodePreparedTransactionNotFound)
	assert.Empty(t, h.chain.sent)
	assert.Contains(t, h.journal.moves(), "prepared>expired")
}

func TestSubmitProposalOnChainFailureDiscardsContext(t *testing.T) {
	h := newHarness(t)
	prepared := h.prepare()
	h.chain.setStatus(func(solana.Signature) (*svm.SignatureStatus, error) {
		return &svm.SignatureStatus{Found: true, Err: "custom program error: 0x177e"}, nil
	})

	_, err := h.svc.SubmitProposal(context.Background(), testOrg, models.SubmitProposalRequest{
		TransactionID: prepared.TransactionID,
		SignedTx:      h.sign(prepared.UnsignedTx, h.member),
	})
	requireCode(t, err, errors.CodeExecutionFailed)

	var typed *errors.Error
	require.True(t, errors.As(err, &typed))
	assert.NotEmpty(t, typed.Detail("signature"))
	assert.Zero(t, h.executions.Len())
	assert.Equal(t, []string{"quoted>prepared", "prepared>proposed", "proposed>failed"}, h.journal.moves())
}

func preflightRevert() error {
	return &jsonrpc.RPCError{
		Code:    -32002,
		Message: "Transaction simulation failed: Error processing Instruction 0: custom program error: 0x1771",
		Data: map[string]interface{}{
			"err":  map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 6001}}},
			"logs": []interface{}{"Program log: AnchorError occurred"},
		},
	}
}

func TestSubmitProposalPreflightRevert(t *testing.T) {
	h := newHarness(t)
	prepared := h.prepare()
	h.chain.failSends(preflightRevert())

	_, err := h.svc.SubmitProposal(context.Background(), testOrg, models.SubmitProposalRequest{
		TransactionID: prepared.TransactionID,
		SignedTx:      h.sign(prepared.UnsignedTx, h.member),
	})
	requireCode(t, err, errors.CodeExecutionFailed)
	assert.Equal(t, http.StatusUnprocessableEntity, errors.HTTPStatus(errors.CodeOf(err)))

	var typed *errors.Error
	require.True(t, errors.As(err, &typed))
	assert.Contains(t, typed.Detail("chainError"), "InstructionError")
	assert.Zero(t, h.executions.Len())
	assert.Equal(t, []string{"quoted>prepared", "prepared>failed"}, h.journal.moves())
}

func TestSubmitProposalUnansweredSendKeepsContext(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	prepared := h.prepare()
	h.chain.failSends(fmt.Errorf("read tcp: connection reset by peer"))

	_, err := h.svc.SubmitProposal(ctx, testOrg, models.SubmitProposalRequest{
		TransactionID: prepared.TransactionID,
		SignedTx:      h.sign(prepared.UnsignedTx, h.member),
	})
	requireCode(t, err, errors.CodeConfirmationUnknown)
	var typed *errors.Error
	require.True(t, errors.As(err, &typed))
	signature := typed.Detail("signature").(string)
	assert.Equal(t, 1, h.executions.Len())

	h.seedVaultTransaction(prepared.SwapDetails.TransactionIndex)
	refreshed, err := h.svc.RefreshExecution(ctx, testOrg, models.RefreshExecutionRequest{ProposalSignature: signature})
	require.NoError(t, err)
	assert.Equal(t, signature, refreshed.ProposalSignature)
}

func TestFinalizePreflightRevert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	proposal := h.propose()
	h.chain.failSends(preflightRevert())

	_, err := h.svc.FinalizeExecution(ctx, testOrg, models.FinalizeRequest{
		ProposalSignature: proposal.ProposalSignature,
		SignedExecutionTx: h.sign(proposal.ExecutionTx, h.member),
	})
	requireCode(t, err, errors.CodeExecutionFailed)
	assert.Zero(t, h.executions.Len())
	assert.Contains(t, h.journal.moves(), "executing>failed")
}

func TestUnconfirmedProposalCanBeRefreshed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	prepared := h.prepare()
	h.chain.setStatus(func(solana.Signature) (*svm.SignatureStatus, error) {
		return &svm.SignatureStatus{}, nil
	})

	_, err := h.svc.SubmitProposal(ctx, testOrg, models.SubmitProposalRequest{
		TransactionID: prepared.TransactionID,
		SignedTx:      h.sign(prepared.UnsignedTx, h.member),
	})
	requireCode(t, err, errors.CodeConfirmationTimeout)
	var typed *errors.Error
	require.True(t, errors.As(err, &typed))
	signature := typed.Detail("signature").(string)
	assert.Equal(t, 1, h.executions.Len(), "ambiguous outcome keeps the context")

	_, err = h.svc.FinalizeExecution(ctx, testOrg, models.FinalizeRequest{
		ProposalSignature: signature,
		SignedExecutionTx: prepared.UnsignedTx,
	})
	requireCode(t, err, errors.CodeInvalidParameter)

	_, err = h.svc.RefreshExecution(ctx, testOrg, models.RefreshExecutionRequest{ProposalSignature: signature})
	requireCode(t, err, errors.CodeConfirmationTimeout)

	h.chain.setStatus(confirmed)
	h.seedVaultTransaction(prepared.SwapDetails.TransactionIndex)
	refreshed, err := h.svc.RefreshExecution(ctx, testOrg, models.RefreshExecutionRequest{ProposalSignature: signature})
	require.NoError(t, err)
	assert.Equal(t, signature, refreshed.ProposalSignature)

	final, err := h.svc.FinalizeExecution(ctx, testOrg, models.FinalizeRequest{
		ProposalSignature: signature,
		SignedExecutionTx: h.sign(refreshed.ExecutionTx, h.member),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, final.Status)
}

func TestRefreshReplacesExecutionTransaction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	proposal := h.propose()

	h.chain.blockhash = solana.Hash(solana.NewWallet().PublicKey())
	refreshed, err := h.svc.RefreshExecution(ctx, testOrg, models.RefreshExecutionRequest{ProposalSignature: proposal.ProposalSignature})
	require.NoError(t, err)
	assert.NotEqual(t, proposal.ExecutionTx, refreshed.ExecutionTx)

	_, err = h.svc.FinalizeExecution(ctx, testOrg, models.FinalizeRequest{
		ProposalSignature: proposal.ProposalSignature,
		SignedExecutionTx: h.sign(proposal.ExecutionTx, h.member),
	})
	requireCode(t, err, errors.CodeMessageTampered)

	_, err = h.svc.FinalizeExecution(ctx, testOrg, models.FinalizeRequest{
		ProposalSignature: proposal.ProposalSignature,
		SignedExecutionTx: h.sign(refreshed.ExecutionTx, h.member),
	})
	require.NoError(t, err)
}

func TestFinalizeChecksOrganization(t *testing.T) {
	h := newHarness(t)
	proposal := h.propose()

	_, err := h.svc.FinalizeExecution(context.Background(), "other-org", models.FinalizeRequest{
		ProposalSignature: proposal.ProposalSignature,
		SignedExecutionTx: h.sign(proposal.ExecutionTx, h.member),
	})
	requireCode(t, err, errors.CodeExecutionContextNotFound)
	assert.Equal(t, 1, h.executions.Len())
}

func TestConcurrentFinalizeHasOneWinner(t *testing.T) {
	h := newHarness(t)
	proposal := h.propose()
	signed := h.sign(proposal.ExecutionTx, h.member)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = h.svc.FinalizeExecution(context.Background(), testOrg, models.FinalizeRequest{
				ProposalSignature: proposal.ProposalSignature,
				SignedExecutionTx: signed,
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
			continue
		}
		assert.Equal(t, errors.CodeExecutionContextNotFound, errors.CodeOf(err))
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 2, h.chain.sentCount(), "one proposal and one execution broadcast")
}

func TestRoutes(t *testing.T) {
	h := newHarness(t)

	resp, err := h.svc.Routes("usdc", "USDT")
	require.NoError(t, err)
	assert.Equal(t, models.RestrictedRoute, resp.Route)
	assert.Equal(t, []models.Route{models.RestrictedRoute, models.AggregatorRoute}, resp.Candidates)

	resp, err = h.svc.Routes("USDC", "SOL")
	require.NoError(t, err)
	assert.Equal(t, models.AggregatorRoute, resp.Route)
	assert.Equal(t, []models.Route{models.AggregatorRoute}, resp.Candidates)

	_, err = h.svc.Routes("USDC", "DOGE")
	requireCode(t, err, errors.CodeUnsupportedTokenPair)
}

func TestSweepJournalsExpiredContexts(t *testing.T) {
	h := newHarness(t)
	h.propose()

	h.clock.Advance(11 * time.Minute)
	h.svc.sweep()

	assert.Zero(t, h.executions.Len())
	assert.Contains(t, h.journal.moves(), "proposed>expired")
}
