package svm

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"finco/settlement/blockchains/svm/squads"
	"finco/settlement/errors"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/blake2b"
)

// LamportsPerSignature is the base fee charged per required signature.
const LamportsPerSignature = 5000

var ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// TxCreator assembles sponsor-paid transactions.
type TxCreator struct {
	chain                    Chain
	sponsor                  solana.PublicKey
	priorityFeeMicroLamports uint64
	computeUnitLimit         uint32
}

func NewTxCreator(chain Chain, sponsor solana.PublicKey, priorityFeeMicroLamports uint64, computeUnitLimit uint32) *TxCreator {
	return &TxCreator{
		chain:                    chain,
		sponsor:                  sponsor,
		priorityFeeMicroLamports: priorityFeeMicroLamports,
		computeUnitLimit:         computeUnitLimit,
	}
}

func (c *TxCreator) Sponsor() solana.PublicKey {
	return c.sponsor
}

// BuildUnsigned wraps instructions into a transaction with the sponsor as
// fee payer, a fresh blockhash and empty signature slots.
func (c *TxCreator) BuildUnsigned(ctx context.Context, instructions []solana.Instruction, tables []squads.LookupTable) (*solana.Transaction, error) {
	blockhash, err := c.chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, errors.Internal(errors.TxBuildError, err)
	}
	all := append(c.budgetInstructions(), instructions...)
	return c.build(all, blockhash, tables)
}

// BuildSimulation is BuildUnsigned without the RPC round trip; the node
// replaces the blockhash during simulation.
func (c *TxCreator) BuildSimulation(instructions []solana.Instruction, tables []squads.LookupTable) (*solana.Transaction, error) {
	return c.build(instructions, solana.Hash{}, tables)
}

func (c *TxCreator) build(instructions []solana.Instruction, blockhash solana.Hash, tables []squads.LookupTable) (*solana.Transaction, error) {
	opts := []solana.TransactionOption{solana.TransactionPayer(c.sponsor)}
	if len(tables) > 0 {
		opts = append(opts, solana.TransactionAddressTables(TablesByKey(tables)))
	}
	tx, err := solana.NewTransaction(instructions, blockhash, opts...)
	if err != nil {
		return nil, errors.Internal(errors.TxBuildError, err)
	}
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	return tx, nil
}

func (c *TxCreator) budgetInstructions() []solana.Instruction {
	if c.priorityFeeMicroLamports == 0 {
		return nil
	}
	return ComputeBudgetInstructions(c.computeUnitLimit, c.priorityFeeMicroLamports)
}

// NetworkFee estimates the lamports paid by the sponsor for a transaction
// with the given number of signatures.
func (c *TxCreator) NetworkFee(signatures int) uint64 {
	fee := uint64(signatures) * LamportsPerSignature
	if c.priorityFeeMicroLamports > 0 {
		fee += (c.priorityFeeMicroLamports*uint64(c.computeUnitLimit) + 999_999) / 1_000_000
	}
	return fee
}

func ComputeBudgetInstructions(unitLimit uint32, microLamports uint64) []solana.Instruction {
	limit := make([]byte, 5)
	limit[0] = 2
	binary.LittleEndian.PutUint32(limit[1:], unitLimit)
	price := make([]byte, 9)
	price[0] = 3
	binary.LittleEndian.PutUint64(price[1:], microLamports)
	return []solana.Instruction{
		solana.NewInstruction(ComputeBudgetProgramID, solana.AccountMetaSlice{}, limit),
		solana.NewInstruction(ComputeBudgetProgramID, solana.AccountMetaSlice{}, price),
	}
}

func EncodeTransaction(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", errors.Internal(errors.TxSerializeError, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func DecodeTransaction(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.BuildErrMsg(errors.Base64DecodeError, err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, errors.BuildErrMsg(errors.TxDecodingError, err)
	}
	return tx, nil
}

// MessageFingerprint identifies the exact message bytes the signers commit to.
func MessageFingerprint(tx *solana.Transaction) (string, error) {
	raw, err := tx.Message.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("serialize message: %w", err)
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
