package settlement

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Transition is one audited state change of a settlement.
type Transition struct {
	Key            string    `json:"key" bson:"key"`
	Kind           string    `json:"kind" bson:"kind"`
	OrganizationID string    `json:"organizationId" bson:"organizationId"`
	TransactionID  string    `json:"transactionId,omitempty" bson:"transactionId,omitempty"`
	From           State     `json:"from" bson:"from"`
	To             State     `json:"to" bson:"to"`
	Signature      string    `json:"signature,omitempty" bson:"signature,omitempty"`
	Reason         string    `json:"reason,omitempty" bson:"reason,omitempty"`
	At             time.Time `json:"at" bson:"at"`
}

// Journal persists transitions for audit. It is never read back to drive
// the flow; the chain stays authoritative.
type Journal interface {
	Record(ctx context.Context, t Transition) error
}

// NopJournal discards transitions.
type NopJournal struct{}

func (NopJournal) Record(context.Context, Transition) error { return nil }

// record journals t, logging instead of failing the caller.
func (s *Service) record(ctx context.Context, t Transition) {
	if t.At.IsZero() {
		t.At = s.now()
	}
	if err := s.journal.Record(ctx, t); err != nil {
		log.WithFields(log.Fields{
			"key":  t.Key,
			"from": t.From,
			"to":   t.To,
		}).WithError(err).Warn("settlement journal write failed")
	}
}
