package gateways

import (
	"context"
	"fmt"

	"finco/settlement/blockchains/svm"
	"finco/settlement/blockchains/svm/spl"
	"finco/settlement/common"
	"finco/settlement/errors"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	log "github.com/sirupsen/logrus"
)

// SolanaGateway implements svm.Chain over a JSON-RPC node.
type SolanaGateway struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
}

func NewSolanaGateway(cfg common.SolanaConfigurations) (*SolanaGateway, error) {
	if cfg.RpcUrl == "" {
		return nil, errors.BuildErrMsg(errors.ClientError, fmt.Errorf("solana rpcUrl is not configured"))
	}
	commitment := rpc.CommitmentType(cfg.Commitment)
	switch commitment {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		commitment = rpc.CommitmentConfirmed
	}
	log.WithField("commitment", commitment).Info("solana gateway configured")
	return &SolanaGateway{client: rpc.New(cfg.RpcUrl), commitment: commitment}, nil
}

func (g *SolanaGateway) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	ata, err := spl.AssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, errors.BuildErrMsg(errors.AddressError, err)
	}
	data, err := g.AccountData(ctx, ata)
	if errors.Is(err, svm.ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	account, err := spl.DecodeTokenAccount(data)
	if err != nil {
		return 0, errors.BuildErrMsg(errors.AccountDecodingError, err)
	}
	return account.Amount, nil
}

func (g *SolanaGateway) AccountData(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	out, err := g.client.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: g.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, svm.ErrAccountNotFound
	}
	if err != nil {
		return nil, errors.BuildErrMsg(errors.AccountFetchError, err)
	}
	if out == nil || out.Value == nil || out.Value.Data == nil {
		return nil, svm.ErrAccountNotFound
	}
	return out.Value.Data.GetBinary(), nil
}

func (g *SolanaGateway) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := g.client.GetLatestBlockhash(ctx, g.commitment)
	if err != nil {
		return solana.Hash{}, errors.BuildErrMsg(errors.HttpRequestError, err)
	}
	return out.Value.Blockhash, nil
}

// Simulate skips signature verification and replaces the blockhash, so
// unsigned transactions can be simulated.
func (g *SolanaGateway) Simulate(ctx context.Context, tx *solana.Transaction, watch []solana.PublicKey) (*svm.SimulationResult, error) {
	opts := &rpc.SimulateTransactionOpts{
		SigVerify:              false,
		Commitment:             g.commitment,
		ReplaceRecentBlockhash: true,
	}
	if len(watch) > 0 {
		opts.Accounts = &rpc.SimulateTransactionAccountsOpts{
			Encoding:  solana.EncodingBase64,
			Addresses: watch,
		}
	}
	out, err := g.client.SimulateTransactionWithOpts(ctx, tx, opts)
	if err != nil {
		return nil, errors.BuildErrMsg(errors.SimulationError, err)
	}
	if out == nil || out.Value == nil {
		return nil, errors.BuildErrMsg(errors.SimulationError, fmt.Errorf("empty simulation result"))
	}
	result := &svm.SimulationResult{
		Err:      out.Value.Err,
		Logs:     out.Value.Logs,
		Accounts: make([][]byte, len(watch)),
	}
	if out.Value.UnitsConsumed != nil {
		result.UnitsConsumed = *out.Value.UnitsConsumed
	}
	for i, account := range out.Value.Accounts {
		if i >= len(result.Accounts) {
			break
		}
		if account != nil && account.Data != nil {
			result.Accounts[i] = account.Data.GetBinary()
		}
	}
	return result, nil
}

func (g *SolanaGateway) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	return g.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: g.commitment,
	})
}

func (g *SolanaGateway) SignatureStatus(ctx context.Context, sig solana.Signature) (*svm.SignatureStatus, error) {
	out, err := g.client.GetSignatureStatuses(ctx, true, sig)
	if errors.Is(err, rpc.ErrNotFound) {
		return &svm.SignatureStatus{}, nil
	}
	if err != nil {
		return nil, errors.BuildErrMsg(errors.HttpRequestError, err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return &svm.SignatureStatus{}, nil
	}
	status := out.Value[0]
	return &svm.SignatureStatus{
		Found: true,
		Confirmed: status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
			status.ConfirmationStatus == rpc.ConfirmationStatusFinalized,
		Err: status.Err,
	}, nil
}
