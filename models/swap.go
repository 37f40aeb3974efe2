package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Route identifies a liquidity venue.
type Route string

const (
	RestrictedRoute Route = "restricted"
	AggregatorRoute Route = "aggregator"
)

const (
	StatusConfirmed = "confirmed"
)

// SwapRequest is the common input of simulate and prepare. Amount is in
// display units of FromAsset.
type SwapRequest struct {
	VaultID     string          `json:"vaultId" binding:"required,base58"`
	FromAsset   string          `json:"fromAsset" binding:"required"`
	ToAsset     string          `json:"toAsset" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	SlippageBps uint16          `json:"slippageBps"`
}

type PrepareRequest struct {
	SwapRequest
	ExpectedAmountOut decimal.Decimal  `json:"expectedAmountOut"`
	MaxDeviation      *decimal.Decimal `json:"maxDeviation,omitempty"`
	// Member optionally pins the proposing member; otherwise the first
	// member holding initiate and vote permissions is used.
	Member string `json:"member,omitempty" binding:"omitempty,base58"`
	Memo   string `json:"memo,omitempty" binding:"max=256"`
}

type SubmitProposalRequest struct {
	TransactionID string `json:"transactionId" binding:"required,uuid"`
	SignedTx      string `json:"signedTx" binding:"required,base64"`
}

type FinalizeRequest struct {
	ProposalSignature string `json:"proposalSignature" binding:"required,base58"`
	SignedExecutionTx string `json:"signedExecutionTx" binding:"required,base64"`
}

type RefreshExecutionRequest struct {
	ProposalSignature string `json:"proposalSignature" binding:"required,base58"`
}

type RoutePair struct {
	From string `uri:"from" binding:"required,alphanum"`
	To   string `uri:"to" binding:"required,alphanum"`
}

type FeeBreakdown struct {
	ProtocolFee      decimal.Decimal `json:"protocolFee"`
	ProtocolFeeAsset string          `json:"protocolFeeAsset"`
	NetworkFee       decimal.Decimal `json:"networkFee"`
	NetworkFeeAsset  string          `json:"networkFeeAsset"`
}

// SwapQuote is computed on every simulation and never persisted.
type SwapQuote struct {
	FromAsset             string          `json:"fromAsset"`
	ToAsset               string          `json:"toAsset"`
	AmountIn              decimal.Decimal `json:"amountIn"`
	EstimatedAmountOut    decimal.Decimal `json:"estimatedAmountOut"`
	MinimumAmountOut      decimal.Decimal `json:"minimumAmountOut"`
	PriceImpactPct        decimal.Decimal `json:"priceImpactPct"`
	Fees                  FeeBreakdown    `json:"fees"`
	Route                 Route           `json:"route"`
	SlippageBps           uint16          `json:"slippageBps"`
	ExecutionTimeEstimate string          `json:"executionTimeEstimate"`
	Simulated             bool            `json:"simulated"`
	QuotedAt              time.Time       `json:"quotedAt"`
}

// SwapDetails is the snapshot carried from prepare to finalize for reporting.
type SwapDetails struct {
	Multisig           string          `json:"multisig"`
	Vault              string          `json:"vault"`
	FromAsset          string          `json:"fromAsset"`
	ToAsset            string          `json:"toAsset"`
	AmountIn           decimal.Decimal `json:"amountIn"`
	EstimatedAmountOut decimal.Decimal `json:"estimatedAmountOut"`
	MinimumAmountOut   decimal.Decimal `json:"minimumAmountOut"`
	SlippageBps        uint16          `json:"slippageBps"`
	Route              Route           `json:"route"`
	TransactionIndex   uint64          `json:"transactionIndex"`
	Member             string          `json:"member"`
}

type PrepareResponse struct {
	UnsignedTx      string      `json:"unsignedTx"`
	TransactionID   string      `json:"transactionId"`
	FeePayerAddress string      `json:"feePayerAddress"`
	ExpiresAt       time.Time   `json:"expiresAt"`
	SwapDetails     SwapDetails `json:"swapDetails"`
}

type SubmitProposalResponse struct {
	ProposalSignature string      `json:"proposalSignature"`
	ExecutionTx       string      `json:"executionTx"`
	ExecutionMember   string      `json:"executionMember"`
	ExpiresAt         time.Time   `json:"expiresAt"`
	SwapDetails       SwapDetails `json:"swapDetails"`
}

type FinalizeResponse struct {
	ExecutionSignature string      `json:"executionSignature"`
	Status             string      `json:"status"`
	SwapDetails        SwapDetails `json:"swapDetails"`
}

type RouteResponse struct {
	FromAsset  string  `json:"fromAsset"`
	ToAsset    string  `json:"toAsset"`
	Route      Route   `json:"route"`
	Candidates []Route `json:"candidates"`
}
