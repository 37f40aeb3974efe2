package settlement

import (
	"context"

	"finco/settlement/blockchains/svm"
	"finco/settlement/blockchains/svm/squads"
	"finco/settlement/errors"
	"finco/settlement/models"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// SubmitProposal co-signs and broadcasts a member-signed proposal, waits
// for it to confirm and returns the unsigned execution transaction.
func (s *Service) SubmitProposal(ctx context.Context, orgID string, req models.SubmitProposalRequest) (resp *models.SubmitProposalResponse, err error) {
	ctx, done := s.begin(ctx, "proposal",
		attribute.String("organizationId", orgID),
		attribute.String("transactionId", req.TransactionID))
	defer func() { done(err) }()

	rec, ok, err := s.prepared.Get(ctx, req.TransactionID)
	if err != nil {
		return nil, errors.Internal(errors.StoreReadError, err)
	}
	if !ok || rec.OrganizationID != orgID {
		return nil, errors.PreparedTransactionNotFound(req.TransactionID)
	}
	tx, err := s.validator.Validate(req.SignedTx, svm.Expectation{Fingerprint: rec.Fingerprint})
	if err != nil {
		return nil, err
	}
	if _, err = rec.State.Transition(StateProposed); err != nil {
		return nil, err
	}
	if err = s.broadcaster.CoSign(tx); err != nil {
		return nil, err
	}
	if _, ok, err = s.prepared.Take(ctx, req.TransactionID); err != nil {
		return nil, errors.Internal(errors.StoreReadError, err)
	} else if !ok {
		return nil, errors.PreparedTransactionNotFound(req.TransactionID)
	}

	sig, sendErr := s.broadcaster.Send(ctx, tx)
	if errors.HasCode(sendErr, errors.CodeConfirmationUnknown) {
		// the proposal may still land; keep its context for refresh
		sig = tx.Signatures[0]
	} else if err = sendErr; err != nil {
		s.record(ctx, Transition{
			Key:            rec.TransactionID,
			Kind:           KindPrepared,
			OrganizationID: orgID,
			TransactionID:  rec.TransactionID,
			From:           StatePrepared,
			To:             StateFailed,
			Reason:         err.Error(),
		})
		return nil, err
	}

	signature := sig.String()
	now := s.now()
	ec := ExecutionContext{
		ProposalSignature: signature,
		OrganizationID:    orgID,
		TransactionID:     rec.TransactionID,
		State:             StateProposed,
		Params:            rec.Params,
		Snapshot:          rec.Snapshot,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.cfg.ExecutionTTL),
	}
	if err = s.executions.Put(ctx, signature, ec, s.cfg.ExecutionTTL); err != nil {
		log.WithField("signature", signature).WithError(err).Error("proposal broadcast but execution context not stored")
		return nil, errors.Internal(errors.StoreWriteError, err)
	}
	s.record(ctx, Transition{
		Key:            signature,
		Kind:           KindExecution,
		OrganizationID: orgID,
		TransactionID:  rec.TransactionID,
		From:           StatePrepared,
		To:             StateProposed,
		Signature:      signature,
	})
	if sendErr != nil {
		return nil, sendErr
	}

	err = s.broadcaster.AwaitConfirmation(ctx, sig)
	s.metrics.Confirmation(err)
	if err != nil {
		if errors.HasCode(err, errors.CodeExecutionFailed) {
			s.fail(ctx, ec, err)
		}
		return nil, err
	}
	return s.buildExecution(ctx, ec)
}

// fail discards a context whose proposal failed on-chain.
func (s *Service) fail(ctx context.Context, ec ExecutionContext, cause error) {
	if err := s.executions.Delete(ctx, ec.ProposalSignature); err != nil {
		log.WithField("signature", ec.ProposalSignature).WithError(err).Warn("failed to discard execution context")
	}
	s.record(ctx, Transition{
		Key:            ec.ProposalSignature,
		Kind:           KindExecution,
		OrganizationID: ec.OrganizationID,
		TransactionID:  ec.TransactionID,
		From:           ec.State,
		To:             StateFailed,
		Signature:      ec.ProposalSignature,
		Reason:         cause.Error(),
	})
}

// buildExecution assembles vault_transaction_execute for the confirmed
// proposal of ec from current chain state and stores the result in a
// replacement context.
func (s *Service) buildExecution(ctx context.Context, ec ExecutionContext) (*models.SubmitProposalResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.BuildTimeout)
	defer cancel()

	multisig, err := solana.PublicKeyFromBase58(ec.Snapshot.Multisig)
	if err != nil {
		return nil, errors.Internal(errors.AddressError, err)
	}
	index := ec.Snapshot.TransactionIndex
	transaction, _, err := squads.TransactionAddress(s.programID, multisig, index)
	if err != nil {
		return nil, errors.Internal(errors.AddressError, err)
	}
	proposal, _, err := squads.ProposalAddress(s.programID, multisig, index)
	if err != nil {
		return nil, errors.Internal(errors.AddressError, err)
	}

	var (
		ms *squads.Multisig
		vt *squads.VaultTransaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ms, err = s.fetchMultisig(gctx, multisig)
		return err
	})
	g.Go(func() error {
		data, err := s.chain.AccountData(gctx, transaction)
		if err != nil {
			return errors.Internal(errors.AccountFetchError, err)
		}
		vt, err = squads.DecodeVaultTransaction(data)
		if err != nil {
			return errors.Internal(errors.AccountDecodingError, err)
		}
		return nil
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}

	executor, ok := ms.FirstMemberWith(squads.PermissionExecute, s.sponsor)
	if !ok {
		return nil, errors.InvalidParameter("multisig has no member with execute permission")
	}
	vault, _, err := squads.VaultAddress(s.programID, multisig, vt.VaultIndex)
	if err != nil {
		return nil, errors.Internal(errors.AddressError, err)
	}
	ephemeral := make([]solana.PublicKey, 0, len(vt.EphemeralSignerBumps))
	for i := range vt.EphemeralSignerBumps {
		signer, _, err := squads.EphemeralSignerAddress(s.programID, transaction, uint8(i))
		if err != nil {
			return nil, errors.Internal(errors.AddressError, err)
		}
		ephemeral = append(ephemeral, signer)
	}
	keys := make([]solana.PublicKey, 0, len(vt.Message.AddressTableLookups))
	for _, l := range vt.Message.AddressTableLookups {
		keys = append(keys, l.AccountKey)
	}
	tables, err := svm.LoadLookupTables(ctx, s.chain, keys)
	if err != nil {
		return nil, errors.Internal(errors.AccountFetchError, err)
	}
	remaining, err := squads.ExecuteRemainingAccounts(&vt.Message, vault, ephemeral, svm.TablesByKey(tables))
	if err != nil {
		return nil, errors.Internal(errors.TxBuildError, err)
	}
	execute, err := squads.VaultTransactionExecute(s.programID, multisig, proposal, transaction, executor.Key, remaining)
	if err != nil {
		return nil, errors.Internal(errors.TxBuildError, err)
	}
	tx, err := s.creator.BuildUnsigned(ctx, []solana.Instruction{execute}, tables)
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

	ttl := ec.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil, errors.ExecutionContextNotFound(ec.ProposalSignature)
	}
	built := ec
	built.ExecutionTx = encoded
	built.ExecutionMember = executor.Key.String()
	built.Fingerprint = fingerprint
	if err = s.executions.Put(ctx, ec.ProposalSignature, built, ttl); err != nil {
		return nil, errors.Internal(errors.StoreWriteError, err)
	}
	log.WithFields(log.Fields{
		"signature": ec.ProposalSignature,
		"index":     index,
		"executor":  built.ExecutionMember,
	}).Info("execution transaction built")

	return &models.SubmitProposalResponse{
		ProposalSignature: ec.ProposalSignature,
		ExecutionTx:       encoded,
		ExecutionMember:   built.ExecutionMember,
		ExpiresAt:         built.ExpiresAt,
		SwapDetails:       built.Snapshot,
	}, nil
}
