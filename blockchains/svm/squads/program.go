// Package squads builds and decodes the custody multisig program's
// instructions and accounts.
package squads

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// ProgramID is the mainnet deployment of the multisig program.
var ProgramID = solana.MustPublicKeyFromBase58("SQDS4ep65T869zMMBKyuUq6aD6EgTu8psMjkvj52pCf")

// Member permission bits.
const (
	PermissionInitiate uint8 = 1 << 0
	PermissionVote     uint8 = 1 << 1
	PermissionExecute  uint8 = 1 << 2
)

var (
	seedPrefix          = []byte("multisig")
	seedVault           = []byte("vault")
	seedTransaction     = []byte("transaction")
	seedProposal        = []byte("proposal")
	seedEphemeralSigner = []byte("ephemeral_signer")
)

// VaultAddress derives the vault that holds the multisig's assets.
func VaultAddress(programID, multisig solana.PublicKey, vaultIndex uint8) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		seedPrefix, multisig[:], seedVault, {vaultIndex},
	}, programID)
}

// TransactionAddress derives the vault transaction account for index.
func TransactionAddress(programID, multisig solana.PublicKey, index uint64) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		seedPrefix, multisig[:], seedTransaction, u64le(index),
	}, programID)
}

// ProposalAddress derives the proposal account for index.
func ProposalAddress(programID, multisig solana.PublicKey, index uint64) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		seedPrefix, multisig[:], seedTransaction, u64le(index), seedProposal,
	}, programID)
}

func EphemeralSignerAddress(programID, transaction solana.PublicKey, index uint8) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		seedPrefix, transaction[:], seedEphemeralSigner, {index},
	}, programID)
}

func u64le(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func instructionDiscriminator(name string) []byte {
	h := sha256.Sum256([]byte("global:" + name))
	return h[:8]
}

func accountDiscriminator(name string) []byte {
	h := sha256.Sum256([]byte("account:" + name))
	return h[:8]
}
