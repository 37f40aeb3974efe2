// Package settlement runs the two-phase sponsored swap flow: quote,
// prepare a multisig proposal, submit it, then finalize its execution.
package settlement

import (
	"context"
	"fmt"
	"time"

	"finco/settlement/blockchains/svm"
	"finco/settlement/blockchains/svm/spl"
	"finco/settlement/blockchains/svm/squads"
	"finco/settlement/common"
	"finco/settlement/errors"
	"finco/settlement/models"
	"finco/settlement/observability"
	"finco/settlement/store"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Dependencies are the collaborators of a Service. Journal and Metrics are
// optional.
type Dependencies struct {
	Chain      svm.Chain
	Registry   *spl.Registry
	Router     *RouteSelector
	Sponsor    solana.PrivateKey
	ProgramID  solana.PublicKey
	VaultIndex uint8
	Prepared   store.Store[PreparedRecord]
	Executions store.Store[ExecutionContext]
	Journal    Journal
	Metrics    *observability.SettlementMetrics
	Config     common.SettlementConfigurations
	// ExecutionEstimates maps a route to the human readable time the swap
	// usually takes on it.
	ExecutionEstimates map[models.Route]string
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the prepared transaction id generator.
func WithIDGenerator(next func() string) Option {
	return func(s *Service) { s.newID = next }
}

type Service struct {
	chain      svm.Chain
	registry   *spl.Registry
	router     *RouteSelector
	sponsor    solana.PublicKey
	programID  solana.PublicKey
	vaultIndex uint8
	prepared   store.Store[PreparedRecord]
	executions store.Store[ExecutionContext]
	journal    Journal
	metrics    *observability.SettlementMetrics
	cfg        common.SettlementConfigurations
	estimates  map[models.Route]string

	balances    *svm.BalanceVerifier
	creator     *svm.TxCreator
	validator   *svm.Validator
	broadcaster *svm.Broadcaster

	fallbackRate decimal.Decimal
	maxDeviation decimal.Decimal

	now   func() time.Time
	newID func() string
}

func NewService(deps Dependencies, opts ...Option) (*Service, error) {
	switch {
	case deps.Chain == nil:
		return nil, fmt.Errorf("settlement: chain is required")
	case deps.Registry == nil:
		return nil, fmt.Errorf("settlement: asset registry is required")
	case deps.Router == nil:
		return nil, fmt.Errorf("settlement: route selector is required")
	case deps.Prepared == nil || deps.Executions == nil:
		return nil, fmt.Errorf("settlement: record stores are required")
	case len(deps.Sponsor) == 0:
		return nil, errors.New(errors.SponsorKeyError)
	}

	cfg := withDefaults(deps.Config)
	programID := deps.ProgramID
	if programID.IsZero() {
		programID = squads.ProgramID
	}
	journal := deps.Journal
	if journal == nil {
		journal = NopJournal{}
	}
	sponsor := deps.Sponsor.PublicKey()

	s := &Service{
		chain:        deps.Chain,
		registry:     deps.Registry,
		router:       deps.Router,
		sponsor:      sponsor,
		programID:    programID,
		vaultIndex:   deps.VaultIndex,
		prepared:     deps.Prepared,
		executions:   deps.Executions,
		journal:      journal,
		metrics:      deps.Metrics,
		cfg:          cfg,
		estimates:    deps.ExecutionEstimates,
		balances:     svm.NewBalanceVerifier(deps.Chain),
		creator:      svm.NewTxCreator(deps.Chain, sponsor, cfg.PriorityFeeMicroLamports, cfg.ComputeUnitLimit),
		validator:    svm.NewValidator(sponsor),
		fallbackRate: decimal.NewFromFloat(cfg.FallbackFeeRate),
		maxDeviation: decimal.NewFromFloat(cfg.MaxDeviation),
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
	}
	s.broadcaster = svm.NewBroadcaster(deps.Chain, deps.Sponsor, svm.ConfirmationPolicy{
		InitialInterval: cfg.ConfirmInitialInterval,
		MaxInterval:     cfg.ConfirmMaxInterval,
		Timeout:         cfg.ConfirmTimeout,
		MaxRetries:      cfg.ConfirmMaxRetries,
	})
	for _, opt := range opts {
		opt(s)
	}

	log.WithFields(log.Fields{
		"sponsor":   sponsor.String(),
		"program":   programID.String(),
		"vaultIdx":  deps.VaultIndex,
		"preparedT": cfg.PreparedTTL,
		"execT":     cfg.ExecutionTTL,
	}).Info("settlement service ready")
	return s, nil
}

// withDefaults fills every zero policy value with its default.
func withDefaults(cfg common.SettlementConfigurations) common.SettlementConfigurations {
	d := common.DefaultSettlementConfigurations()
	if cfg.PreparedTTL <= 0 {
		cfg.PreparedTTL = d.PreparedTTL
	}
	if cfg.ExecutionTTL <= 0 {
		cfg.ExecutionTTL = d.ExecutionTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = d.SweepInterval
	}
	if cfg.MaxDeviation <= 0 {
		cfg.MaxDeviation = d.MaxDeviation
	}
	if cfg.MaxSlippageBps == 0 {
		cfg.MinSlippageBps, cfg.MaxSlippageBps = d.MinSlippageBps, d.MaxSlippageBps
	}
	if cfg.FallbackFeeRate <= 0 {
		cfg.FallbackFeeRate = d.FallbackFeeRate
	}
	if cfg.QuoteTimeout <= 0 {
		cfg.QuoteTimeout = d.QuoteTimeout
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = d.BuildTimeout
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = d.ConfirmTimeout
	}
	if cfg.ConfirmMaxRetries == 0 {
		cfg.ConfirmMaxRetries = d.ConfirmMaxRetries
	}
	if cfg.ConfirmInitialInterval <= 0 {
		cfg.ConfirmInitialInterval = d.ConfirmInitialInterval
	}
	if cfg.ConfirmMaxInterval <= 0 {
		cfg.ConfirmMaxInterval = d.ConfirmMaxInterval
	}
	if cfg.ComputeUnitLimit == 0 {
		cfg.ComputeUnitLimit = d.ComputeUnitLimit
	}
	return cfg
}

// Sponsor is the fee payer of every transaction the service builds.
func (s *Service) Sponsor() solana.PublicKey {
	return s.sponsor
}

// RunSweeper expires stale records every interval until ctx is done and
// publishes record counts. Stores with native expiry are only counted when
// they can report their size.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.cfg.SweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Service) sweep() {
	sweepOne := func(kind string, st interface{}) {
		sw, ok := st.(store.Sweeper)
		if !ok {
			return
		}
		if n := sw.Sweep(); n > 0 {
			log.WithFields(log.Fields{"kind": kind, "expired": n}).Info("expired settlement records swept")
		}
		s.metrics.Records(kind, sw.Len())
	}
	sweepOne(KindPrepared, s.prepared)
	sweepOne(KindExecution, s.executions)
}

// PreparedExpiryHook journals prepared records dropped by their store.
func PreparedExpiryHook(journal Journal) func(string, PreparedRecord) {
	return func(key string, rec PreparedRecord) {
		expire(journal, Transition{
			Key:            key,
			Kind:           KindPrepared,
			OrganizationID: rec.OrganizationID,
			TransactionID:  rec.TransactionID,
			From:           rec.State,
		})
	}
}

// ExecutionExpiryHook journals execution contexts dropped by their store.
func ExecutionExpiryHook(journal Journal) func(string, ExecutionContext) {
	return func(key string, ec ExecutionContext) {
		expire(journal, Transition{
			Key:            key,
			Kind:           KindExecution,
			OrganizationID: ec.OrganizationID,
			TransactionID:  ec.TransactionID,
			From:           ec.State,
			Signature:      ec.ProposalSignature,
		})
	}
}

func expire(journal Journal, t Transition) {
	if !t.From.CanTransition(StateExpired) {
		return
	}
	t.To = StateExpired
	t.Reason = "ttl elapsed"
	t.At = time.Now()
	if err := journal.Record(context.Background(), t); err != nil {
		log.WithField("key", t.Key).WithError(err).Warn("settlement journal write failed")
	}
}
