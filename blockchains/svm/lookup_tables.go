package svm

import (
	"context"
	"fmt"

	"finco/settlement/blockchains/svm/squads"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"
)

// lookupTableMetaSize is the fixed header of an address lookup table
// account; addresses follow it back to back.
const lookupTableMetaSize = 56

func DecodeLookupTable(data []byte) (solana.PublicKeySlice, error) {
	if len(data) < lookupTableMetaSize || (len(data)-lookupTableMetaSize)%32 != 0 {
		return nil, fmt.Errorf("invalid lookup table length %d", len(data))
	}
	n := (len(data) - lookupTableMetaSize) / 32
	out := make(solana.PublicKeySlice, n)
	for i := 0; i < n; i++ {
		copy(out[i][:], data[lookupTableMetaSize+i*32:])
	}
	return out, nil
}

// LoadLookupTables fetches and decodes tables concurrently, preserving order.
func LoadLookupTables(ctx context.Context, chain Chain, keys []solana.PublicKey) ([]squads.LookupTable, error) {
	tables := make([]squads.LookupTable, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			data, err := chain.AccountData(gctx, key)
			if err != nil {
				return fmt.Errorf("lookup table %s: %w", key, err)
			}
			addrs, err := DecodeLookupTable(data)
			if err != nil {
				return fmt.Errorf("lookup table %s: %w", key, err)
			}
			tables[i] = squads.LookupTable{Key: key, Addresses: addrs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

func TablesByKey(tables []squads.LookupTable) map[solana.PublicKey]solana.PublicKeySlice {
	m := make(map[solana.PublicKey]solana.PublicKeySlice, len(tables))
	for _, t := range tables {
		m[t.Key] = t.Addresses
	}
	return m
}
