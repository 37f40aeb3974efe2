package squads

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
)

type VaultTransactionCreateArgs struct {
	VaultIndex         uint8
	EphemeralSigners   uint8
	TransactionMessage []byte
	Memo               *string
}

type ProposalCreateArgs struct {
	TransactionIndex uint64
	Draft            bool
}

type ProposalVoteArgs struct {
	Memo *string
}

func encodeArgs(name string, args interface{}) ([]byte, error) {
	data := instructionDiscriminator(name)
	if args == nil {
		return data, nil
	}
	body, err := borsh.Serialize(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", name, err)
	}
	return append(data, body...), nil
}

// VaultTransactionCreate stores message as a new vault transaction. The
// vault is the first signer of message; any further signer must be one of
// the ephemeral signers of transaction, see EphemeralSignerAddress.
func VaultTransactionCreate(programID, multisig, transaction, creator, rentPayer solana.PublicKey, vaultIndex uint8, message *TransactionMessage, memo *string) (solana.Instruction, error) {
	ephemeral, err := ephemeralSigners(programID, transaction, message)
	if err != nil {
		return nil, err
	}
	raw, err := message.MarshalBinary()
	if err != nil {
		return nil, err
	}
	data, err := encodeArgs("vault_transaction_create", VaultTransactionCreateArgs{
		VaultIndex:         vaultIndex,
		EphemeralSigners:   ephemeral,
		TransactionMessage: raw,
		Memo:               memo,
	})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(multisig, true, false),
		solana.NewAccountMeta(transaction, true, false),
		solana.NewAccountMeta(creator, false, true),
		solana.NewAccountMeta(rentPayer, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, data), nil
}

func ephemeralSigners(programID, transaction solana.PublicKey, message *TransactionMessage) (uint8, error) {
	if message.NumSigners == 0 || int(message.NumSigners) > len(message.AccountKeys) {
		return 0, fmt.Errorf("message declares %d signers for %d keys", message.NumSigners, len(message.AccountKeys))
	}
	count := message.NumSigners - 1
	signers := message.AccountKeys[1:message.NumSigners]
	for i := uint8(0); i < count; i++ {
		want, _, err := EphemeralSignerAddress(programID, transaction, i)
		if err != nil {
			return 0, err
		}
		found := false
		for _, k := range signers {
			if k.Equals(want) {
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("signer set %v is not the vault plus %d ephemeral signers", signers, count)
		}
	}
	return count, nil
}

func ProposalCreate(programID, multisig, proposal, creator, rentPayer solana.PublicKey, transactionIndex uint64) (solana.Instruction, error) {
	data, err := encodeArgs("proposal_create", ProposalCreateArgs{TransactionIndex: transactionIndex, Draft: false})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(multisig, false, false),
		solana.NewAccountMeta(proposal, true, false),
		solana.NewAccountMeta(creator, false, true),
		solana.NewAccountMeta(rentPayer, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, data), nil
}

func ProposalApprove(programID, multisig, member, proposal solana.PublicKey, memo *string) (solana.Instruction, error) {
	data, err := encodeArgs("proposal_approve", ProposalVoteArgs{Memo: memo})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(multisig, false, false),
		solana.NewAccountMeta(member, true, true),
		solana.NewAccountMeta(proposal, true, false),
	}, data), nil
}

// VaultTransactionExecute runs an approved vault transaction. remaining is
// the output of ExecuteRemainingAccounts.
func VaultTransactionExecute(programID, multisig, proposal, transaction, member solana.PublicKey, remaining solana.AccountMetaSlice) (solana.Instruction, error) {
	data, err := encodeArgs("vault_transaction_execute", nil)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(multisig, false, false),
		solana.NewAccountMeta(proposal, true, false),
		solana.NewAccountMeta(transaction, false, false),
		solana.NewAccountMeta(member, false, true),
	}
	return solana.NewInstruction(programID, append(accounts, remaining...), data), nil
}
