package svm

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

type statusReply struct {
	status *SignatureStatus
	err    error
}

type fakeChain struct {
	mu         sync.Mutex
	balances   map[string]uint64
	balanceErr error
	accounts   map[solana.PublicKey][]byte
	blockhash  solana.Hash
	statuses   []statusReply
	polls      int
	sent       []*solana.Transaction
	sendErr    error
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		balances:  map[string]uint64{},
		accounts:  map[solana.PublicKey][]byte{},
		blockhash: solana.Hash(solana.NewWallet().PublicKey()),
	}
}

func balanceKey(owner, mint solana.PublicKey) string {
	return owner.String() + "/" + mint.String()
}

func (f *fakeChain) TokenBalance(_ context.Context, owner, mint solana.PublicKey) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.balances[balanceKey(owner, mint)], nil
}

func (f *fakeChain) AccountData(_ context.Context, address solana.PublicKey) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.accounts[address]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return data, nil
}

func (f *fakeChain) LatestBlockhash(context.Context) (solana.Hash, error) {
	return f.blockhash, nil
}

func (f *fakeChain) Simulate(context.Context, *solana.Transaction, []solana.PublicKey) (*SimulationResult, error) {
	return nil, fmt.Errorf("simulation not scripted")
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

// SignatureStatus replays scripted replies and repeats the last one.
func (f *fakeChain) SignatureStatus(context.Context, solana.Signature) (*SignatureStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return &SignatureStatus{}, nil
	}
	i := f.polls
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.polls++
	return f.statuses[i].status, f.statuses[i].err
}

func newPrivateKey(t *testing.T) solana.PrivateKey {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

// memberTx builds a sponsor-paid transaction with member as a second
// required signer.
func memberTx(t *testing.T, chain Chain, sponsor, member solana.PublicKey) *solana.Transaction {
	program := solana.NewWallet().PublicKey()
	ix := solana.NewInstruction(program, solana.AccountMetaSlice{
		solana.NewAccountMeta(member, false, true),
	}, []byte{1, 2, 3})
	tx, err := NewTxCreator(chain, sponsor, 0, 0).BuildUnsigned(context.Background(), []solana.Instruction{ix}, nil)
	require.NoError(t, err)
	return tx
}

func signAs(t *testing.T, tx *solana.Transaction, key solana.PrivateKey) {
	message, err := tx.Message.MarshalBinary()
	require.NoError(t, err)
	for i := 0; i < int(tx.Message.Header.NumRequiredSignatures); i++ {
		if tx.Message.AccountKeys[i].Equals(key.PublicKey()) {
			sig, err := key.Sign(message)
			require.NoError(t, err)
			tx.Signatures[i] = sig
			return
		}
	}
	t.Fatalf("%s is not a signer", key.PublicKey())
}

func encode(t *testing.T, tx *solana.Transaction) string {
	encoded, err := EncodeTransaction(tx)
	require.NoError(t, err)
	return encoded
}
