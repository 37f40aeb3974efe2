package settlement

import (
	"context"

	"finco/settlement/blockchains/svm"
	"finco/settlement/blockchains/svm/squads"
	"finco/settlement/errors"
	"finco/settlement/models"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var maxAllowedDeviation = decimal.RequireFromString("0.5")

// Prepare re-quotes the swap, checks it against the caller's expectation
// and returns an unsigned transaction that creates, proposes and approves
// the vault transaction in one step.
func (s *Service) Prepare(ctx context.Context, orgID string, req models.PrepareRequest) (resp *models.PrepareResponse, err error) {
	ctx, done := s.begin(ctx, "prepare",
		attribute.String("organizationId", orgID),
		attribute.String("fromAsset", req.FromAsset),
		attribute.String("toAsset", req.ToAsset))
	defer func() { done(err) }()

	if orgID == "" {
		return nil, errors.InvalidParameter("organization id is required")
	}
	p, err := s.plan(req.SwapRequest)
	if err != nil {
		return nil, err
	}
	if !req.ExpectedAmountOut.IsPositive() {
		return nil, errors.InvalidParameter("expectedAmountOut must be positive")
	}
	maxDeviation := s.maxDeviation
	if req.MaxDeviation != nil {
		maxDeviation = *req.MaxDeviation
		if !maxDeviation.IsPositive() || maxDeviation.GreaterThan(maxAllowedDeviation) {
			return nil, errors.InvalidParameter("maxDeviation must be in (0, %s]", maxAllowedDeviation)
		}
	}
	var requested *solana.PublicKey
	if req.Member != "" {
		key, err := solana.PublicKeyFromBase58(req.Member)
		if err != nil {
			return nil, errors.InvalidParameter("member is not a valid address")
		}
		requested = &key
	}
	var memo *string
	if req.Memo != "" {
		memo = &req.Memo
	}

	if err = s.balances.Verify(ctx, p.vault, p.from, p.amountIn); err != nil {
		return nil, err
	}
	est, err := s.estimate(ctx, p)
	if err != nil {
		return nil, err
	}
	current := models.FromBaseUnits(est.amountOut, p.to.Decimals)
	deviation := models.Deviation(req.ExpectedAmountOut, current)
	if deviation.GreaterThan(maxDeviation) {
		log.WithFields(log.Fields{
			"expected":  req.ExpectedAmountOut.String(),
			"current":   current.String(),
			"deviation": deviation.String(),
		}).Info("swap output moved beyond tolerance")
		return nil, errors.MarketConditionsChanged(req.ExpectedAmountOut, current, deviation)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.BuildTimeout)
	defer cancel()

	ms, err := s.fetchMultisig(ctx, p.multisig)
	if err != nil {
		return nil, err
	}
	if ms.Threshold != 1 {
		return nil, errors.InvalidParameter("multisig threshold %d is not supported, only 1", ms.Threshold)
	}
	member, err := s.proposer(ms, requested)
	if err != nil {
		return nil, err
	}

	index := ms.NextTransactionIndex()
	transaction, _, err := squads.TransactionAddress(s.programID, p.multisig, index)
	if err != nil {
		return nil, errors.Internal(errors.AddressError, err)
	}
	proposal, _, err := squads.ProposalAddress(s.programID, p.multisig, index)
	if err != nil {
		return nil, errors.Internal(errors.AddressError, err)
	}
	message, err := squads.CompileMessage(p.vault, est.swap.Instructions, est.tables)
	if err != nil {
		return nil, errors.Internal(errors.TxBuildError, err)
	}
	create, err := squads.VaultTransactionCreate(s.programID, p.multisig, transaction, member, s.sponsor, s.vaultIndex, message, memo)
	if err != nil {
		return nil, errors.Internal(errors.TxBuildError, err)
	}
	propose, err := squads.ProposalCreate(s.programID, p.multisig, proposal, member, s.sponsor, index)
	if err != nil {
		return nil, errors.Internal(errors.TxBuildError, err)
	}
	approve, err := squads.ProposalApprove(s.programID, p.multisig, member, proposal, memo)
	if err != nil {
		return nil, errors.Internal(errors.TxBuildError, err)
	}
	tx, err := s.creator.BuildUnsigned(ctx, []solana.Instruction{create, propose, approve}, nil)
	if err != nil {
		return nil, err
	}
	fingerprint, err := svm.MessageFingerprint(tx)
	if err != nil {
		return nil, errors.Internal(errors.TxSerializeError, err)
	}
	encoded, err := svm.EncodeTransaction(tx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec := PreparedRecord{
		TransactionID:  s.newID(),
		OrganizationID: orgID,
		State:          StatePrepared,
		Params:         req,
		Snapshot: models.SwapDetails{
			Multisig:           p.multisig.String(),
			Vault:              p.vault.String(),
			FromAsset:          p.from.Symbol,
			ToAsset:            p.to.Symbol,
			AmountIn:           models.FromBaseUnits(p.amountIn, p.from.Decimals),
			EstimatedAmountOut: current,
			MinimumAmountOut:   models.FromBaseUnits(models.ApplyBps(est.amountOut, p.slippageBps), p.to.Decimals),
			SlippageBps:        p.slippageBps,
			Route:              est.quote.Route,
			TransactionIndex:   index,
			Member:             member.String(),
		},
		Fingerprint: fingerprint,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.PreparedTTL),
	}
	if err = s.prepared.Put(ctx, rec.TransactionID, rec, s.cfg.PreparedTTL); err != nil {
		return nil, errors.Internal(errors.StoreWriteError, err)
	}
	s.record(ctx, Transition{
		Key:            rec.TransactionID,
		Kind:           KindPrepared,
		OrganizationID: orgID,
		TransactionID:  rec.TransactionID,
		From:           StateQuoted,
		To:             StatePrepared,
	})
	log.WithFields(log.Fields{
		"transactionId": rec.TransactionID,
		"multisig":      rec.Snapshot.Multisig,
		"index":         index,
		"route":         rec.Snapshot.Route,
	}).Info("swap proposal prepared")

	return &models.PrepareResponse{
		UnsignedTx:      encoded,
		TransactionID:   rec.TransactionID,
		FeePayerAddress: s.sponsor.String(),
		ExpiresAt:       rec.ExpiresAt,
		SwapDetails:     rec.Snapshot,
	}, nil
}

func (s *Service) fetchMultisig(ctx context.Context, address solana.PublicKey) (*squads.Multisig, error) {
	data, err := s.chain.AccountData(ctx, address)
	if err != nil {
		if errors.Is(err, svm.ErrAccountNotFound) {
			return nil, errors.InvalidParameter("multisig %s does not exist", address)
		}
		return nil, errors.Internal(errors.AccountFetchError, err)
	}
	ms, err := squads.DecodeMultisig(data)
	if err != nil {
		return nil, errors.InvalidParameter("%s is not a multisig account", address)
	}
	return ms, nil
}

// proposer resolves the member that creates and approves the proposal.
func (s *Service) proposer(ms *squads.Multisig, requested *solana.PublicKey) (solana.PublicKey, error) {
	mask := squads.PermissionInitiate | squads.PermissionVote
	if requested != nil {
		m, ok := ms.FindMember(*requested)
		if !ok || m.Key.Equals(s.sponsor) || !m.Permissions.Has(mask) {
			return solana.PublicKey{}, errors.InvalidParameter("member %s cannot propose and approve", requested)
		}
		return m.Key, nil
	}
	m, ok := ms.FirstMemberWith(mask, s.sponsor)
	if !ok {
		return solana.PublicKey{}, errors.InvalidParameter("multisig has no member with initiate and vote permissions")
	}
	return m.Key, nil
}
