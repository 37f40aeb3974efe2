package settlement

import (
	"context"

	"finco/settlement/blockchains/svm"
	"finco/settlement/errors"
	"finco/settlement/models"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// FinalizeExecution co-signs and broadcasts the member-signed execution
// transaction. The context is claimed before broadcast, so a second call
// for the same proposal fails with ExecutionContextNotFound.
func (s *Service) FinalizeExecution(ctx context.Context, orgID string, req models.FinalizeRequest) (resp *models.FinalizeResponse, err error) {
	ctx, done := s.begin(ctx, "finalize",
		attribute.String("organizationId", orgID),
		attribute.String("proposalSignature", req.ProposalSignature))
	defer func() { done(err) }()

	ec, err := s.lookupExecution(ctx, orgID, req.ProposalSignature)
	if err != nil {
		return nil, err
	}
	if !ec.Built() {
		return nil, errors.InvalidParameter("execution transaction for %s is not built yet, refresh it first", req.ProposalSignature)
	}
	if _, err = ec.State.Transition(StateExecuting); err != nil {
		return nil, err
	}
	tx, err := s.validator.Validate(req.SignedExecutionTx, svm.Expectation{Fingerprint: ec.Fingerprint})
	if err != nil {
		return nil, err
	}
	claimed, ok, err := s.executions.Take(ctx, req.ProposalSignature)
	if err != nil {
		return nil, errors.Internal(errors.StoreReadError, err)
	}
	if !ok || claimed.OrganizationID != orgID {
		return nil, errors.ExecutionContextNotFound(req.ProposalSignature)
	}
	claimed.State = StateExecuting
	s.record(ctx, Transition{
		Key:            claimed.ProposalSignature,
		Kind:           KindExecution,
		OrganizationID: orgID,
		TransactionID:  claimed.TransactionID,
		From:           StateProposed,
		To:             StateExecuting,
		Signature:      claimed.ProposalSignature,
	})

	if err = s.broadcaster.CoSign(tx); err != nil {
		s.fail(ctx, claimed, err)
		return nil, err
	}
	sig, err := s.broadcaster.SendAndConfirm(ctx, tx)
	if sig != (solana.Signature{}) {
		s.metrics.Confirmation(err)
	}
	if err != nil {
		switch errors.CodeOf(err) {
		case errors.CodeConfirmationTimeout, errors.CodeConfirmationUnknown:
			log.WithFields(log.Fields{
				"proposalSignature":  claimed.ProposalSignature,
				"executionSignature": sig.String(),
			}).Warn("execution outcome unresolved")
		default:
			s.fail(ctx, claimed, err)
		}
		return nil, err
	}

	s.record(ctx, Transition{
		Key:            claimed.ProposalSignature,
		Kind:           KindExecution,
		OrganizationID: orgID,
		TransactionID:  claimed.TransactionID,
		From:           StateExecuting,
		To:             StateFinalized,
		Signature:      sig.String(),
	})
	log.WithFields(log.Fields{
		"proposalSignature":  claimed.ProposalSignature,
		"executionSignature": sig.String(),
	}).Info("swap settled")

	return &models.FinalizeResponse{
		ExecutionSignature: sig.String(),
		Status:             models.StatusConfirmed,
		SwapDetails:        claimed.Snapshot,
	}, nil
}

// RefreshExecution rebuilds the execution transaction of a proposal with a
// fresh blockhash. A proposal whose confirmation was not observed earlier
// is checked once more before building.
func (s *Service) RefreshExecution(ctx context.Context, orgID string, req models.RefreshExecutionRequest) (resp *models.SubmitProposalResponse, err error) {
	ctx, done := s.begin(ctx, "refresh",
		attribute.String("organizationId", orgID),
		attribute.String("proposalSignature", req.ProposalSignature))
	defer func() { done(err) }()

	ec, err := s.lookupExecution(ctx, orgID, req.ProposalSignature)
	if err != nil {
		return nil, err
	}
	if ec.State != StateProposed {
		return nil, errors.InvalidStateTransition(string(ec.State), string(StateProposed))
	}
	if !ec.Built() {
		if err = s.checkProposal(ctx, ec); err != nil {
			return nil, err
		}
	}
	return s.buildExecution(ctx, ec)
}

func (s *Service) lookupExecution(ctx context.Context, orgID, signature string) (ExecutionContext, error) {
	ec, ok, err := s.executions.Get(ctx, signature)
	if err != nil {
		return ExecutionContext{}, errors.Internal(errors.StoreReadError, err)
	}
	if !ok || ec.OrganizationID != orgID {
		return ExecutionContext{}, errors.ExecutionContextNotFound(signature)
	}
	return ec, nil
}

// checkProposal polls the proposal signature once.
func (s *Service) checkProposal(ctx context.Context, ec ExecutionContext) error {
	sig, err := solana.SignatureFromBase58(ec.ProposalSignature)
	if err != nil {
		return errors.Internal(errors.SignatureError, err)
	}
	status, err := s.chain.SignatureStatus(ctx, sig)
	if err != nil {
		return errors.ConfirmationUnknown(ec.ProposalSignature, err)
	}
	if status.Found && status.Err != nil {
		failure := errors.ExecutionFailed(ec.ProposalSignature, status.Err)
		s.fail(ctx, ec, failure)
		return failure
	}
	if !status.Found || !status.Confirmed {
		return errors.ConfirmationTimeout(ec.ProposalSignature)
	}
	return nil
}
