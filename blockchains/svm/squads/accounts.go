package squads

import (
	"bytes"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
)

type Permissions struct {
	Mask uint8
}

func (p Permissions) Has(mask uint8) bool {
	return p.Mask&mask == mask
}

type Member struct {
	Key         solana.PublicKey
	Permissions Permissions
}

// Multisig is the on-chain multisig account after its discriminator.
type Multisig struct {
	CreateKey             solana.PublicKey
	ConfigAuthority       solana.PublicKey
	Threshold             uint16
	TimeLock              uint32
	TransactionIndex      uint64
	StaleTransactionIndex uint64
	RentCollector         *solana.PublicKey
	Bump                  uint8
	Members               []Member
}

// VaultTransaction is the on-chain record of a proposed vault transaction.
type VaultTransaction struct {
	Multisig             solana.PublicKey
	Creator              solana.PublicKey
	Index                uint64
	Bump                 uint8
	VaultIndex           uint8
	VaultBump            uint8
	EphemeralSignerBumps []uint8
	Message              TransactionMessage
}

func DecodeMultisig(data []byte) (*Multisig, error) {
	var m Multisig
	if err := decodeAccount("Multisig", data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Multisig) MarshalBinary() ([]byte, error) {
	return encodeAccount("Multisig", *m)
}

func DecodeVaultTransaction(data []byte) (*VaultTransaction, error) {
	var vt VaultTransaction
	if err := decodeAccount("VaultTransaction", data, &vt); err != nil {
		return nil, err
	}
	return &vt, nil
}

func (vt *VaultTransaction) MarshalBinary() ([]byte, error) {
	return encodeAccount("VaultTransaction", *vt)
}

// NextTransactionIndex is the index the next proposal must use.
func (m *Multisig) NextTransactionIndex() uint64 {
	return m.TransactionIndex + 1
}

func (m *Multisig) FindMember(key solana.PublicKey) (Member, bool) {
	for _, member := range m.Members {
		if member.Key.Equals(key) {
			return member, true
		}
	}
	return Member{}, false
}

// FirstMemberWith returns the first member holding every bit of mask that
// is not excluded.
func (m *Multisig) FirstMemberWith(mask uint8, exclude solana.PublicKey) (Member, bool) {
	for _, member := range m.Members {
		if member.Key.Equals(exclude) {
			continue
		}
		if member.Permissions.Has(mask) {
			return member, true
		}
	}
	return Member{}, false
}

func decodeAccount(name string, data []byte, out interface{}) error {
	disc := accountDiscriminator(name)
	if len(data) < len(disc) || !bytes.Equal(data[:len(disc)], disc) {
		return fmt.Errorf("account is not a %s", name)
	}
	if err := borsh.Deserialize(out, data[len(disc):]); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// encodeAccount takes the account by value; borsh encodes pointers as options.
func encodeAccount(name string, v interface{}) ([]byte, error) {
	body, err := borsh.Serialize(v)
	if err != nil {
		return nil, err
	}
	return append(accountDiscriminator(name), body...), nil
}
