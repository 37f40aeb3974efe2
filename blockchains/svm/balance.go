package svm

import (
	"context"

	"finco/settlement/blockchains/svm/spl"
	"finco/settlement/errors"
	"finco/settlement/models"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"
)

type BalanceVerifier struct {
	chain Chain
}

func NewBalanceVerifier(chain Chain) *BalanceVerifier {
	return &BalanceVerifier{chain: chain}
}

// Verify fails with InsufficientBalance when vault holds less than required
// base units of asset.
func (b *BalanceVerifier) Verify(ctx context.Context, vault solana.PublicKey, asset spl.Asset, required uint64) error {
	available, err := b.chain.TokenBalance(ctx, vault, asset.Mint)
	if err != nil {
		return errors.Internal(errors.BalanceError, err)
	}
	if available < required {
		log.WithFields(log.Fields{
			"vault":     vault.String(),
			"asset":     asset.Symbol,
			"required":  required,
			"available": available,
		}).Info("vault balance below swap amount")
		return errors.InsufficientBalance(asset.Symbol,
			models.FromBaseUnits(required, asset.Decimals),
			models.FromBaseUnits(available, asset.Decimals))
	}
	return nil
}
