package spl

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// TokenAccountSize is the length of an SPL token account.
const TokenAccountSize = 165

// TokenAccount holds the fields of an SPL token account used here.
type TokenAccount struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

// DecodeTokenAccount reads mint (0..32), owner (32..64) and amount (64..72).
func DecodeTokenAccount(data []byte) (TokenAccount, error) {
	if len(data) < 72 {
		return TokenAccount{}, fmt.Errorf("token account data too short: %d bytes", len(data))
	}
	var acc TokenAccount
	copy(acc.Mint[:], data[0:32])
	copy(acc.Owner[:], data[32:64])
	acc.Amount = binary.LittleEndian.Uint64(data[64:72])
	return acc, nil
}

// MarshalBinary encodes an initialized token account with no delegate.
func (a TokenAccount) MarshalBinary() ([]byte, error) {
	data := make([]byte, TokenAccountSize)
	copy(data[0:32], a.Mint[:])
	copy(data[32:64], a.Owner[:])
	binary.LittleEndian.PutUint64(data[64:72], a.Amount)
	data[108] = 1 // AccountState::Initialized
	return data, nil
}

// AssociatedTokenAddress derives the ATA of owner for mint.
func AssociatedTokenAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	return ata, err
}

// CreateIdempotentInstruction creates owner's ATA for mint if it does not
// exist yet.
func CreateIdempotentInstruction(payer, owner, mint solana.PublicKey) (solana.Instruction, error) {
	ata, err := AssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(
		solana.SPLAssociatedTokenAccountProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(ata, true, false),
			solana.NewAccountMeta(owner, false, false),
			solana.NewAccountMeta(mint, false, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
			solana.NewAccountMeta(solana.TokenProgramID, false, false),
		},
		[]byte{1},
	), nil
}
