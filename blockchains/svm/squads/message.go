package squads

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// TransactionMessage is the inner message executed by the vault. Field
// order matches the on-chain account layout.
type TransactionMessage struct {
	NumSigners            uint8
	NumWritableSigners    uint8
	NumWritableNonSigners uint8
	AccountKeys           []solana.PublicKey
	Instructions          []CompiledInstruction
	AddressTableLookups   []MessageAddressTableLookup
}

type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndexes []uint8
	Data           []byte
}

type MessageAddressTableLookup struct {
	AccountKey      solana.PublicKey
	WritableIndexes []uint8
	ReadonlyIndexes []uint8
}

// LookupTable is a resolved address lookup table.
type LookupTable struct {
	Key       solana.PublicKey
	Addresses solana.PublicKeySlice
}

func (m *TransactionMessage) IsSignerIndex(i int) bool {
	return i < int(m.NumSigners)
}

func (m *TransactionMessage) IsStaticWritableIndex(i int) bool {
	if i >= len(m.AccountKeys) {
		return false
	}
	if i < int(m.NumSigners) {
		return i < int(m.NumWritableSigners)
	}
	return i-int(m.NumSigners) < int(m.NumWritableNonSigners)
}

// MarshalBinary encodes the message in the compact form expected by
// vault_transaction_create: u8 lengths everywhere except instruction data,
// which has a u16 length.
func (m *TransactionMessage) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)

	writeLen8 := func(n int, what string) error {
		if n > math.MaxUint8 {
			return fmt.Errorf("too many %s: %d", what, n)
		}
		return enc.WriteUint8(uint8(n))
	}

	for _, v := range []uint8{m.NumSigners, m.NumWritableSigners, m.NumWritableNonSigners} {
		if err := enc.WriteUint8(v); err != nil {
			return nil, err
		}
	}
	if err := writeLen8(len(m.AccountKeys), "account keys"); err != nil {
		return nil, err
	}
	for _, k := range m.AccountKeys {
		if err := enc.WriteBytes(k[:], false); err != nil {
			return nil, err
		}
	}
	if err := writeLen8(len(m.Instructions), "instructions"); err != nil {
		return nil, err
	}
	for _, ix := range m.Instructions {
		if err := enc.WriteUint8(ix.ProgramIDIndex); err != nil {
			return nil, err
		}
		if err := writeLen8(len(ix.AccountIndexes), "instruction accounts"); err != nil {
			return nil, err
		}
		if err := enc.WriteBytes(ix.AccountIndexes, false); err != nil {
			return nil, err
		}
		if len(ix.Data) > math.MaxUint16 {
			return nil, fmt.Errorf("instruction data too large: %d", len(ix.Data))
		}
		if err := enc.WriteUint16(uint16(len(ix.Data)), binary.LittleEndian); err != nil {
			return nil, err
		}
		if err := enc.WriteBytes(ix.Data, false); err != nil {
			return nil, err
		}
	}
	if err := writeLen8(len(m.AddressTableLookups), "address table lookups"); err != nil {
		return nil, err
	}
	for _, l := range m.AddressTableLookups {
		if err := enc.WriteBytes(l.AccountKey[:], false); err != nil {
			return nil, err
		}
		if err := writeLen8(len(l.WritableIndexes), "writable indexes"); err != nil {
			return nil, err
		}
		if err := enc.WriteBytes(l.WritableIndexes, false); err != nil {
			return nil, err
		}
		if err := writeLen8(len(l.ReadonlyIndexes), "readonly indexes"); err != nil {
			return nil, err
		}
		if err := enc.WriteBytes(l.ReadonlyIndexes, false); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

type keyMeta struct {
	key      solana.PublicKey
	signer   bool
	writable bool
	invoked  bool
}

// CompileMessage compiles instructions into a vault transaction message with
// vault as the payer. Non-signer accounts found in tables are loaded through
// lookups; program ids always stay static.
func CompileMessage(vault solana.PublicKey, instructions []solana.Instruction, tables []LookupTable) (*TransactionMessage, error) {
	if len(instructions) == 0 {
		return nil, fmt.Errorf("no instructions to compile")
	}

	var ordered []*keyMeta
	index := map[solana.PublicKey]*keyMeta{}
	touch := func(k solana.PublicKey) *keyMeta {
		if m, ok := index[k]; ok {
			return m
		}
		m := &keyMeta{key: k}
		index[k] = m
		ordered = append(ordered, m)
		return m
	}

	payer := touch(vault)
	payer.signer, payer.writable = true, true
	for _, ix := range instructions {
		touch(ix.ProgramID()).invoked = true
		for _, acc := range ix.Accounts() {
			m := touch(acc.PublicKey)
			m.signer = m.signer || acc.IsSigner
			m.writable = m.writable || acc.IsWritable
		}
	}

	var writableSigners, readonlySigners, writableNonSigners, readonlyNonSigners []*keyMeta
	for _, m := range ordered {
		switch {
		case m.signer && m.writable:
			writableSigners = append(writableSigners, m)
		case m.signer:
			readonlySigners = append(readonlySigners, m)
		case m.writable:
			writableNonSigners = append(writableNonSigners, m)
		default:
			readonlyNonSigners = append(readonlyNonSigners, m)
		}
	}

	var lookups []MessageAddressTableLookup
	var loadedWritable, loadedReadonly []solana.PublicKey
	for _, table := range tables {
		lookup := MessageAddressTableLookup{AccountKey: table.Key}
		var keys []solana.PublicKey
		writableNonSigners, lookup.WritableIndexes, keys = drainFromTable(writableNonSigners, table.Addresses)
		loadedWritable = append(loadedWritable, keys...)
		readonlyNonSigners, lookup.ReadonlyIndexes, keys = drainFromTable(readonlyNonSigners, table.Addresses)
		loadedReadonly = append(loadedReadonly, keys...)
		if len(lookup.WritableIndexes)+len(lookup.ReadonlyIndexes) > 0 {
			lookups = append(lookups, lookup)
		}
	}

	static := make([]solana.PublicKey, 0, len(ordered))
	for _, group := range [][]*keyMeta{writableSigners, readonlySigners, writableNonSigners, readonlyNonSigners} {
		for _, m := range group {
			static = append(static, m.key)
		}
	}
	all := append(append(append([]solana.PublicKey{}, static...), loadedWritable...), loadedReadonly...)
	if len(all) > math.MaxUint8+1 {
		return nil, fmt.Errorf("message references %d accounts", len(all))
	}
	position := make(map[solana.PublicKey]uint8, len(all))
	for i, k := range all {
		position[k] = uint8(i)
	}

	msg := &TransactionMessage{
		NumSigners:            uint8(len(writableSigners) + len(readonlySigners)),
		NumWritableSigners:    uint8(len(writableSigners)),
		NumWritableNonSigners: uint8(len(writableNonSigners)),
		AccountKeys:           static,
		AddressTableLookups:   lookups,
	}
	for _, ix := range instructions {
		data, err := ix.Data()
		if err != nil {
			return nil, fmt.Errorf("instruction data: %w", err)
		}
		compiled := CompiledInstruction{ProgramIDIndex: position[ix.ProgramID()], Data: data}
		for _, acc := range ix.Accounts() {
			compiled.AccountIndexes = append(compiled.AccountIndexes, position[acc.PublicKey])
		}
		msg.Instructions = append(msg.Instructions, compiled)
	}
	return msg, nil
}

func drainFromTable(keys []*keyMeta, table solana.PublicKeySlice) (remaining []*keyMeta, indexes []uint8, drained []solana.PublicKey) {
	for _, m := range keys {
		idx := -1
		if !m.invoked {
			for i, addr := range table {
				if addr.Equals(m.key) && i <= math.MaxUint8 {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			remaining = append(remaining, m)
			continue
		}
		indexes = append(indexes, uint8(idx))
		drained = append(drained, m.key)
	}
	return remaining, indexes, drained
}

// ExecuteRemainingAccounts lists the accounts vault_transaction_execute
// needs after its fixed accounts: lookup tables, static keys, then the
// writable and readonly keys loaded from the tables.
func ExecuteRemainingAccounts(msg *TransactionMessage, vault solana.PublicKey, ephemeralSigners []solana.PublicKey, tables map[solana.PublicKey]solana.PublicKeySlice) (solana.AccountMetaSlice, error) {
	isEphemeral := func(k solana.PublicKey) bool {
		for _, e := range ephemeralSigners {
			if e.Equals(k) {
				return true
			}
		}
		return false
	}

	var metas solana.AccountMetaSlice
	for _, l := range msg.AddressTableLookups {
		metas = append(metas, solana.NewAccountMeta(l.AccountKey, false, false))
	}
	for i, k := range msg.AccountKeys {
		signer := msg.IsSignerIndex(i) && !k.Equals(vault) && !isEphemeral(k)
		metas = append(metas, solana.NewAccountMeta(k, msg.IsStaticWritableIndex(i), signer))
	}

	resolve := func(l MessageAddressTableLookup, idx uint8) (solana.PublicKey, error) {
		addrs, ok := tables[l.AccountKey]
		if !ok {
			return solana.PublicKey{}, fmt.Errorf("lookup table %s not resolved", l.AccountKey)
		}
		if int(idx) >= len(addrs) {
			return solana.PublicKey{}, fmt.Errorf("lookup table %s has no index %d", l.AccountKey, idx)
		}
		return addrs[idx], nil
	}
	for _, l := range msg.AddressTableLookups {
		for _, idx := range l.WritableIndexes {
			k, err := resolve(l, idx)
			if err != nil {
				return nil, err
			}
			metas = append(metas, solana.NewAccountMeta(k, true, false))
		}
	}
	for _, l := range msg.AddressTableLookups {
		for _, idx := range l.ReadonlyIndexes {
			k, err := resolve(l, idx)
			if err != nil {
				return nil, err
			}
			metas = append(metas, solana.NewAccountMeta(k, false, false))
		}
	}
	return metas, nil
}
