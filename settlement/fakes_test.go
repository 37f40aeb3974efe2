package settlement

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"finco/settlement/blockchains/svm"
	"finco/settlement/blockchains/svm/spl"
	"finco/settlement/blockchains/svm/squads"
	"finco/settlement/common"
	"finco/settlement/models"
	"finco/settlement/store"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testOrg = "org-1"

type fakeChain struct {
	mu           sync.Mutex
	balances     map[string]uint64
	accounts     map[solana.PublicKey][]byte
	blockhash    solana.Hash
	simulate     func(tx *solana.Transaction, watch []solana.PublicKey) (*svm.SimulationResult, error)
	status       func(sig solana.Signature) (*svm.SignatureStatus, error)
	sent         []*solana.Transaction
	sendErr      error
	balanceCalls int
}

func balanceKey(owner, mint solana.PublicKey) string {
	return owner.String() + "/" + mint.String()
}

func (f *fakeChain) TokenBalance(_ context.Context, owner, mint solana.PublicKey) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balanceCalls++
	return f.balances[balanceKey(owner, mint)], nil
}

func (f *fakeChain) AccountData(_ context.Context, address solana.PublicKey) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.accounts[address]
	if !ok {
		return nil, svm.ErrAccountNotFound
	}
	return data, nil
}

func (f *fakeChain) LatestBlockhash(context.Context) (solana.Hash, error) {
	return f.blockhash, nil
}

func (f *fakeChain) Simulate(_ context.Context, tx *solana.Transaction, watch []solana.PublicKey) (*svm.SimulationResult, error) {
	return f.simulate(tx, watch)
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	f.sent = append(f.sent, tx)
	return tx.Signatures[0], nil
}

func (f *fakeChain) SignatureStatus(_ context.Context, sig solana.Signature) (*svm.SignatureStatus, error) {
	f.mu.Lock()
	status := f.status
	f.mu.Unlock()
	return status(sig)
}

func (f *fakeChain) setStatus(fn func(solana.Signature) (*svm.SignatureStatus, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = fn
}

func (f *fakeChain) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeChain) setBalance(owner, mint solana.PublicKey, amount uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[balanceKey(owner, mint)] = amount
}

func (f *fakeChain) failSends(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func confirmed(solana.Signature) (*svm.SignatureStatus, error) {
	return &svm.SignatureStatus{Found: true, Confirmed: true}, nil
}

type fakeVenue struct {
	route     models.Route
	supports  bool
	quoteErr  error
	buildErr  error
	amountOut uint64
	fee       uint64
	program   solana.PublicKey
	quotes    int
	builds    int
}

func (v *fakeVenue) Route() models.Route { return v.route }

func (v *fakeVenue) Supports(from, to spl.Asset) bool { return v.supports }

func (v *fakeVenue) Quote(_ context.Context, req svm.QuoteRequest) (*svm.VenueQuote, error) {
	v.quotes++
	if v.quoteErr != nil {
		return nil, v.quoteErr
	}
	return &svm.VenueQuote{
		Route:          v.route,
		From:           req.From,
		To:             req.To,
		AmountIn:       req.AmountIn,
		AmountOut:      v.amountOut,
		MinAmountOut:   models.ApplyBps(v.amountOut, req.SlippageBps),
		SlippageBps:    req.SlippageBps,
		FeeAmount:      v.fee,
		PriceImpactPct: decimal.RequireFromString("0.01"),
	}, nil
}

func (v *fakeVenue) BuildSwapInstructions(_ context.Context, quote *svm.VenueQuote, payer solana.PublicKey) (*svm.SwapInstructions, error) {
	v.builds++
	if v.buildErr != nil {
		return nil, v.buildErr
	}
	return &svm.SwapInstructions{Instructions: swapInstructions(v.program, payer, quote.To.Mint)}, nil
}

func swapInstructions(program, payer, mint solana.PublicKey) []solana.Instruction {
	destination, _ := spl.AssociatedTokenAddress(payer, mint)
	return []solana.Instruction{
		solana.NewInstruction(program, solana.AccountMetaSlice{
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(destination, true, false),
		}, []byte{9}),
	}
}

type recordingJournal struct {
	mu          sync.Mutex
	transitions []Transition
}

func (j *recordingJournal) Record(_ context.Context, t Transition) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.transitions = append(j.transitions, t)
	return nil
}

func (j *recordingJournal) moves() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, 0, len(j.transitions))
	for _, t := range j.transitions {
		out = append(out, fmt.Sprintf("%s>%s", t.From, t.To))
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	t            *testing.T
	chain        *fakeChain
	sponsor      solana.PrivateKey
	member       solana.PrivateKey
	usdc         spl.Asset
	usdt         spl.Asset
	sol          spl.Asset
	restricted   *fakeVenue
	aggregator   *fakeVenue
	multisig     solana.PublicKey
	vault        solana.PublicKey
	clock        *fakeClock
	prepared     *store.MemoryStore[PreparedRecord]
	executions   *store.MemoryStore[ExecutionContext]
	journal      *recordingJournal
	simulatedOut uint64
	svc          *Service
}

func newKey(t *testing.T) solana.PrivateKey {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		t:            t,
		sponsor:      newKey(t),
		member:       newKey(t),
		usdc:         spl.Asset{Symbol: "USDC", Mint: solana.NewWallet().PublicKey(), Decimals: 6},
		usdt:         spl.Asset{Symbol: "USDT", Mint: solana.NewWallet().PublicKey(), Decimals: 6},
		sol:          spl.Asset{Symbol: "SOL", Mint: solana.SolMint, Decimals: 9},
		multisig:     solana.NewWallet().PublicKey(),
		clock:        &fakeClock{now: time.Unix(1_700_000_000, 0)},
		journal:      &recordingJournal{},
		simulatedOut: 99_500000,
	}
	h.restricted = &fakeVenue{route: models.RestrictedRoute, supports: true, amountOut: 99_800000, fee: 4000, program: solana.NewWallet().PublicKey()}
	h.aggregator = &fakeVenue{route: models.AggregatorRoute, supports: true, amountOut: 99_700000, fee: 0, program: solana.NewWallet().PublicKey()}

	vault, _, err := squads.VaultAddress(squads.ProgramID, h.multisig, 0)
	require.NoError(t, err)
	h.vault = vault

	h.chain = &fakeChain{
		balances:  map[string]uint64{balanceKey(vault, h.usdc.Mint): 1_000_000000},
		accounts:  map[solana.PublicKey][]byte{},
		blockhash: solana.Hash(solana.NewWallet().PublicKey()),
		status:    confirmed,
	}
	h.chain.simulate = func(_ *solana.Transaction, watch []solana.PublicKey) (*svm.SimulationResult, error) {
		acct, err := spl.TokenAccount{Mint: h.usdt.Mint, Owner: h.vault, Amount: h.simulatedOut}.MarshalBinary()
		if err != nil {
			return nil, err
		}
		return &svm.SimulationResult{Accounts: [][]byte{acct}, UnitsConsumed: 42_000}, nil
	}
	h.setMultisig(1)

	registry, err := spl.NewRegistry(h.usdc, h.usdt, h.sol)
	require.NoError(t, err)

	h.prepared = store.NewMemoryStore[PreparedRecord](
		store.WithClock[PreparedRecord](h.clock.Now),
		store.WithEvictionHook[PreparedRecord](PreparedExpiryHook(h.journal)))
	h.executions = store.NewMemoryStore[ExecutionContext](
		store.WithClock[ExecutionContext](h.clock.Now),
		store.WithEvictionHook[ExecutionContext](ExecutionExpiryHook(h.journal)))

	cfg := common.DefaultSettlementConfigurations()
	cfg.ConfirmInitialInterval = time.Millisecond
	cfg.ConfirmMaxInterval = 2 * time.Millisecond
	cfg.ConfirmTimeout = 500 * time.Millisecond
	cfg.ConfirmMaxRetries = 3

	ids := 0
	h.svc, err = NewService(Dependencies{
		Chain:      h.chain,
		Registry:   registry,
		Router:     NewRouteSelector([]string{"USDC", "USDT"}, h.restricted, h.aggregator),
		Sponsor:    h.sponsor,
		Prepared:   h.prepared,
		Executions: h.executions,
		Journal:    h.journal,
		Config:     cfg,
		ExecutionEstimates: map[models.Route]string{
			models.RestrictedRoute: "~30 seconds",
			models.AggregatorRoute: "~1 minute",
		},
	}, WithClock(h.clock.Now), WithIDGenerator(func() string {
		ids++
		return fmt.Sprintf("00000000-0000-0000-0000-%012d", ids)
	}))
	require.NoError(t, err)
	return h
}

func (h *harness) setMultisig(threshold uint16) {
	ms := squads.Multisig{
		CreateKey:        solana.NewWallet().PublicKey(),
		Threshold:        threshold,
		TransactionIndex: 4,
		Members: []squads.Member{
			{Key: h.sponsor.PublicKey(), Permissions: squads.Permissions{Mask: squads.PermissionInitiate}},
			{Key: h.member.PublicKey(), Permissions: squads.Permissions{Mask: squads.PermissionInitiate | squads.PermissionVote | squads.PermissionExecute}},
		},
	}
	data, err := ms.MarshalBinary()
	require.NoError(h.t, err)
	h.chain.mu.Lock()
	h.chain.accounts[h.multisig] = data
	h.chain.mu.Unlock()
}

// seedVaultTransaction stores the vault transaction account the confirmed
// proposal would have created.
func (h *harness) seedVaultTransaction(index uint64) {
	message, err := squads.CompileMessage(h.vault, swapInstructions(h.restricted.program, h.vault, h.usdt.Mint), nil)
	require.NoError(h.t, err)
	vt := squads.VaultTransaction{
		Multisig: h.multisig,
		Creator:  h.member.PublicKey(),
		Index:    index,
		Message:  *message,
	}
	data, err := vt.MarshalBinary()
	require.NoError(h.t, err)
	address, _, err := squads.TransactionAddress(squads.ProgramID, h.multisig, index)
	require.NoError(h.t, err)
	h.chain.mu.Lock()
	h.chain.accounts[address] = data
	h.chain.mu.Unlock()
}

func (h *harness) swap(amount string) models.SwapRequest {
	return models.SwapRequest{
		VaultID:     h.multisig.String(),
		FromAsset:   "USDC",
		ToAsset:     "USDT",
		Amount:      decimal.RequireFromString(amount),
		SlippageBps: 50,
	}
}

func (h *harness) prepare() *models.PrepareResponse {
	resp, err := h.svc.Prepare(context.Background(), testOrg, models.PrepareRequest{
		SwapRequest:       h.swap("100"),
		ExpectedAmountOut: decimal.RequireFromString("99.5"),
	})
	require.NoError(h.t, err)
	return resp
}

func (h *harness) propose() *models.SubmitProposalResponse {
	prepared := h.prepare()
	h.seedVaultTransaction(prepared.SwapDetails.TransactionIndex)
	resp, err := h.svc.SubmitProposal(context.Background(), testOrg, models.SubmitProposalRequest{
		TransactionID: prepared.TransactionID,
		SignedTx:      h.sign(prepared.UnsignedTx, h.member),
	})
	require.NoError(h.t, err)
	return resp
}

func (h *harness) sign(encoded string, keys ...solana.PrivateKey) string {
	tx, err := svm.DecodeTransaction(encoded)
	require.NoError(h.t, err)
	h.signTx(tx, keys...)
	out, err := svm.EncodeTransaction(tx)
	require.NoError(h.t, err)
	return out
}

func (h *harness) signTx(tx *solana.Transaction, keys ...solana.PrivateKey) {
	message, err := tx.Message.MarshalBinary()
	require.NoError(h.t, err)
	for _, key := range keys {
		signed := false
		for i := 0; i < int(tx.Message.Header.NumRequiredSignatures); i++ {
			if tx.Message.AccountKeys[i].Equals(key.PublicKey()) {
				sig, err := key.Sign(message)
				require.NoError(h.t, err)
				tx.Signatures[i] = sig
				signed = true
			}
		}
		require.True(h.t, signed, "%s is not a signer", key.PublicKey())
	}
}
