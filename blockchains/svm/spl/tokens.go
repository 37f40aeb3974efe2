package spl

import (
	"fmt"
	"strings"

	"finco/settlement/common"

	"github.com/gagliardetto/solana-go"
)

// Asset describes a fungible SPL token. Decimals is fixed per asset and is
// the only precision used for base/display conversions.
type Asset struct {
	Symbol   string
	Mint     solana.PublicKey
	Decimals uint8
}

// Registry resolves assets by symbol or mint.
type Registry struct {
	bySymbol map[string]Asset
	byMint   map[solana.PublicKey]Asset
}

func NewRegistry(assets ...Asset) (*Registry, error) {
	r := &Registry{
		bySymbol: make(map[string]Asset, len(assets)),
		byMint:   make(map[solana.PublicKey]Asset, len(assets)),
	}
	for _, a := range assets {
		symbol := strings.ToUpper(a.Symbol)
		if symbol == "" {
			return nil, fmt.Errorf("asset with mint %s has no symbol", a.Mint)
		}
		if _, dup := r.bySymbol[symbol]; dup {
			return nil, fmt.Errorf("duplicate asset symbol %s", symbol)
		}
		if _, dup := r.byMint[a.Mint]; dup {
			return nil, fmt.Errorf("duplicate asset mint %s", a.Mint)
		}
		a.Symbol = symbol
		r.bySymbol[symbol] = a
		r.byMint[a.Mint] = a
	}
	return r, nil
}

// RegistryFromConfig builds a registry from the assets section of the config.
func RegistryFromConfig(cfg []common.AssetConfigurations) (*Registry, error) {
	assets := make([]Asset, 0, len(cfg))
	for _, c := range cfg {
		mint, err := solana.PublicKeyFromBase58(c.Mint)
		if err != nil {
			return nil, fmt.Errorf("asset %s: invalid mint: %w", c.Symbol, err)
		}
		assets = append(assets, Asset{Symbol: c.Symbol, Mint: mint, Decimals: c.Decimals})
	}
	return NewRegistry(assets...)
}

func (r *Registry) GetToken(symbol string) (Asset, bool) {
	a, ok := r.bySymbol[strings.ToUpper(symbol)]
	return a, ok
}
