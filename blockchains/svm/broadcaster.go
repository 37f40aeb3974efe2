package svm

import (
	"context"
	"fmt"
	"time"

	"finco/settlement/errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	log "github.com/sirupsen/logrus"
)

var errPending = errors.New("signature not yet confirmed")

// preflightFailureCode is the node's "Transaction simulation failed" error.
const preflightFailureCode = -32002

// ConfirmationPolicy bounds how long AwaitConfirmation polls.
type ConfirmationPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Timeout         time.Duration
	MaxRetries      uint64
}

func DefaultConfirmationPolicy() ConfirmationPolicy {
	return ConfirmationPolicy{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Timeout:         60 * time.Second,
		MaxRetries:      30,
	}
}

// Broadcaster co-signs transactions with the sponsor key, sends them and
// tracks their confirmation.
type Broadcaster struct {
	chain   Chain
	sponsor solana.PrivateKey
	policy  ConfirmationPolicy
}

func NewBroadcaster(chain Chain, sponsor solana.PrivateKey, policy ConfirmationPolicy) *Broadcaster {
	return &Broadcaster{chain: chain, sponsor: sponsor, policy: policy}
}

// CoSign writes the sponsor signature into its required-signer slot.
func (b *Broadcaster) CoSign(tx *solana.Transaction) error {
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return errors.Internal(errors.TxSerializeError, err)
	}
	sponsor := b.sponsor.PublicKey()
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) != required {
		return errors.Internal(errors.SignatureError, fmt.Errorf("%d signature slots for %d signers", len(tx.Signatures), required))
	}
	for i := 0; i < required; i++ {
		if !tx.Message.AccountKeys[i].Equals(sponsor) {
			continue
		}
		sig, err := b.sponsor.Sign(message)
		if err != nil {
			return errors.Internal(errors.SignatureError, err)
		}
		tx.Signatures[i] = sig
		return nil
	}
	return errors.Internal(errors.SignatureError, fmt.Errorf("sponsor %s is not a required signer", sponsor))
}

// Send broadcasts tx with preflight. A preflight revert is ExecutionFailed
// carrying the chain error, a node that rejects tx for any other reason is
// an internal failure, and a send whose answer never arrived is
// ConfirmationUnknown since tx may still land.
func (b *Broadcaster) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := b.chain.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, sendError(tx, err)
	}
	log.WithField("signature", sig.String()).Info("transaction broadcast")
	return sig, nil
}

func sendError(tx *solana.Transaction, err error) error {
	var signature string
	if len(tx.Signatures) > 0 {
		signature = tx.Signatures[0].String()
	}
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		log.WithField("signature", signature).WithError(err).Warn("transaction send unanswered")
		return errors.ConfirmationUnknown(signature, err)
	}
	data, _ := rpcErr.Data.(map[string]interface{})
	logs, hasLogs := data["logs"]
	if rpcErr.Code != preflightFailureCode && !hasLogs {
		return errors.Internal(errors.CommitTxError, err)
	}
	log.WithFields(log.Fields{
		"signature": signature,
		"logs":      logs,
	}).Warn("transaction rejected by preflight")
	chainErr, ok := data["err"]
	if !ok || chainErr == nil {
		chainErr = rpcErr.Message
	}
	return errors.ExecutionFailed(signature, chainErr)
}

// AwaitConfirmation polls the signature status until it reaches confirmed
// commitment. It returns ExecutionFailed for an on-chain error,
// ConfirmationTimeout when the node answered but never reported the
// signature as confirmed, and ConfirmationUnknown when every poll failed.
func (b *Broadcaster) AwaitConfirmation(ctx context.Context, sig solana.Signature) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.policy.InitialInterval
	bo.Multiplier = 1.5
	bo.MaxInterval = b.policy.MaxInterval
	bo.MaxElapsedTime = b.policy.Timeout
	bo.Reset()

	var (
		answered bool
		lastErr  error
	)
	poll := func() error {
		status, err := b.chain.SignatureStatus(ctx, sig)
		if err != nil {
			lastErr = err
			return err
		}
		answered = true
		if !status.Found {
			return errPending
		}
		if status.Err != nil {
			return backoff.Permanent(errors.ExecutionFailed(sig.String(), status.Err))
		}
		if !status.Confirmed {
			return errPending
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, b.policy.MaxRetries), ctx)
	err := backoff.Retry(poll, policy)
	switch {
	case err == nil:
		return nil
	case errors.HasCode(err, errors.CodeExecutionFailed):
		return err
	case !answered:
		return errors.ConfirmationUnknown(sig.String(), lastErr)
	default:
		log.WithField("signature", sig.String()).Warn("confirmation not observed in time")
		return errors.ConfirmationTimeout(sig.String())
	}
}

// SendAndConfirm is Send followed by AwaitConfirmation.
func (b *Broadcaster) SendAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := b.Send(ctx, tx)
	if err != nil {
		return sig, err
	}
	return sig, b.AwaitConfirmation(ctx, sig)
}
