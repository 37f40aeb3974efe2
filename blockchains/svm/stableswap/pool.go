// Package stableswap is the restricted venue: stable-asset pools priced
// with the StableSwap invariant from on-chain pool state.
package stableswap

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
)

// SwapInfoSize is the packed length of a pool state account.
const SwapInfoSize = 397

const instructionSwap = 1

type Fees struct {
	AdminTradeFeeNumerator      uint64
	AdminTradeFeeDenominator    uint64
	AdminWithdrawFeeNumerator   uint64
	AdminWithdrawFeeDenominator uint64
	TradeFeeNumerator           uint64
	TradeFeeDenominator         uint64
	WithdrawFeeNumerator        uint64
	WithdrawFeeDenominator      uint64
}

type SwapTokenInfo struct {
	Reserves  solana.PublicKey
	Mint      solana.PublicKey
	AdminFees solana.PublicKey
	Index     uint8
}

// SwapInfo is the pool state account.
type SwapInfo struct {
	IsInitialized       bool
	IsPaused            bool
	Nonce               uint8
	InitialAmpFactor    uint64
	TargetAmpFactor     uint64
	StartRampTs         int64
	StopRampTs          int64
	FutureAdminDeadline int64
	FutureAdminKey      solana.PublicKey
	AdminKey            solana.PublicKey
	TokenA              SwapTokenInfo
	TokenB              SwapTokenInfo
	PoolMint            solana.PublicKey
	Fees                Fees
}

func DecodeSwapInfo(data []byte) (*SwapInfo, error) {
	if len(data) < SwapInfoSize {
		return nil, fmt.Errorf("pool account too short: %d bytes", len(data))
	}
	info := &SwapInfo{}
	if err := borsh.Deserialize(info, data[:SwapInfoSize]); err != nil {
		return nil, fmt.Errorf("decode pool: %w", err)
	}
	if !info.IsInitialized {
		return nil, fmt.Errorf("pool is not initialized")
	}
	return info, nil
}

func (s *SwapInfo) MarshalBinary() ([]byte, error) {
	return borsh.Serialize(*s)
}

// Sides returns the source and destination token infos for a swap selling
// sourceMint, or false if the pool does not hold that mint.
func (s *SwapInfo) Sides(sourceMint solana.PublicKey) (SwapTokenInfo, SwapTokenInfo, bool) {
	switch {
	case s.TokenA.Mint.Equals(sourceMint):
		return s.TokenA, s.TokenB, true
	case s.TokenB.Mint.Equals(sourceMint):
		return s.TokenB, s.TokenA, true
	}
	return SwapTokenInfo{}, SwapTokenInfo{}, false
}

// Authority derives the pool's program authority from its nonce.
func Authority(programID, pool solana.PublicKey, nonce uint8) (solana.PublicKey, error) {
	return solana.CreateProgramAddress([][]byte{pool[:], {nonce}}, programID)
}

type SwapAccounts struct {
	Pool             solana.PublicKey
	Authority        solana.PublicKey
	UserAuthority    solana.PublicKey
	Source           solana.PublicKey
	PoolSource       solana.PublicKey
	PoolDestination  solana.PublicKey
	Destination      solana.PublicKey
	AdminDestination solana.PublicKey
}

// SwapInstruction sells amountIn of the source token, failing on-chain if
// fewer than minAmountOut destination tokens would be received.
func SwapInstruction(programID solana.PublicKey, accounts SwapAccounts, amountIn, minAmountOut uint64) solana.Instruction {
	data := make([]byte, 17)
	data[0] = instructionSwap
	binary.LittleEndian.PutUint64(data[1:9], amountIn)
	binary.LittleEndian.PutUint64(data[9:17], minAmountOut)
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(accounts.Pool, false, false),
		solana.NewAccountMeta(accounts.Authority, false, false),
		solana.NewAccountMeta(accounts.UserAuthority, false, true),
		solana.NewAccountMeta(accounts.Source, true, false),
		solana.NewAccountMeta(accounts.PoolSource, true, false),
		solana.NewAccountMeta(accounts.PoolDestination, true, false),
		solana.NewAccountMeta(accounts.Destination, true, false),
		solana.NewAccountMeta(accounts.AdminDestination, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}, data)
}
