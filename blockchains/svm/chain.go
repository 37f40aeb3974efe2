// Package svm holds the chain-facing pieces of the settlement flow: the
// chain and venue contracts, balance checks, transaction assembly,
// signed-transaction validation and broadcasting.
package svm

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

// ErrAccountNotFound is returned by Chain.AccountData for missing accounts.
var ErrAccountNotFound = errors.New("account not found")

// Chain is the subset of the RPC surface used by settlement.
type Chain interface {
	// TokenBalance returns owner's associated token account balance for
	// mint in base units; a missing account is a zero balance.
	TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error)
	AccountData(ctx context.Context, address solana.PublicKey) ([]byte, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	// Simulate runs tx without signature verification and returns the
	// post-state of the watched accounts, in order.
	Simulate(ctx context.Context, tx *solana.Transaction, watch []solana.PublicKey) (*SimulationResult, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error)
}

type SimulationResult struct {
	// Err is the runtime error, nil on success.
	Err           interface{}
	Logs          []string
	UnitsConsumed uint64
	// Accounts holds raw data for each watched address; nil entries are
	// accounts that do not exist after execution.
	Accounts [][]byte
}

type SignatureStatus struct {
	Found     bool
	Confirmed bool
	Err       interface{}
}
