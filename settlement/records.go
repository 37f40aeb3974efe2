package settlement

import (
	"time"

	"finco/settlement/models"
)

// Record kinds, used as journal and metric labels.
const (
	KindPrepared  = "prepared"
	KindExecution = "execution"
)

// PreparedRecord correlates a prepared proposal transaction with the
// submit call that returns it signed. Keyed by TransactionID.
type PreparedRecord struct {
	TransactionID  string                `json:"transactionId"`
	OrganizationID string                `json:"organizationId"`
	State          State                 `json:"state"`
	Params         models.PrepareRequest `json:"params"`
	Snapshot       models.SwapDetails    `json:"snapshot"`
	// Fingerprint identifies the exact message the member must sign.
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ExecutionContext carries a confirmed proposal to its execution. Keyed by
// the proposal transaction signature.
type ExecutionContext struct {
	ProposalSignature string                `json:"proposalSignature"`
	OrganizationID    string                `json:"organizationId"`
	TransactionID     string                `json:"transactionId"`
	State             State                 `json:"state"`
	Params            models.PrepareRequest `json:"params"`
	Snapshot          models.SwapDetails    `json:"snapshot"`
	// ExecutionTx is the unsigned execution transaction last handed out,
	// empty until the proposal is confirmed.
	ExecutionTx     string    `json:"executionTx,omitempty"`
	ExecutionMember string    `json:"executionMember,omitempty"`
	Fingerprint     string    `json:"fingerprint,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// Built reports whether an execution transaction is ready to be signed.
func (c ExecutionContext) Built() bool {
	return c.Fingerprint != ""
}
