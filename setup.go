package main

import (
	"context"
	"fmt"

	"finco/settlement/blockchains/svm"
	"finco/settlement/blockchains/svm/jupiter"
	"finco/settlement/blockchains/svm/spl"
	"finco/settlement/blockchains/svm/stableswap"
	"finco/settlement/common"
	"finco/settlement/errors"
	"finco/settlement/gateways"
	"finco/settlement/models"
	"finco/settlement/observability"
	"finco/settlement/settlement"
	"finco/settlement/store"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"
)

// application holds the wired service and what must be released on exit.
type application struct {
	service *settlement.Service
	closers []func(context.Context) error
}

func (a *application) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			log.WithError(err).Warn("error releasing resource")
		}
	}
}

func loadSponsor(env *common.ENVConfigs, cfg common.SponsorConfigurations) (solana.PrivateKey, error) {
	if env.SponsorPrivateKey != "" {
		key, err := solana.PrivateKeyFromBase58(env.SponsorPrivateKey)
		if err != nil {
			return nil, errors.BuildErrMsg(errors.SponsorKeyError, err)
		}
		return key, nil
	}
	if cfg.KeypairPath == "" {
		return nil, errors.BuildErrMsg(errors.SponsorKeyError, fmt.Errorf("set %s or sponsor.keypairPath", common.SponsorPrivateKey))
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(cfg.KeypairPath)
	if err != nil {
		return nil, errors.BuildErrMsg(errors.SponsorKeyError, err)
	}
	return key, nil
}

// restrictedVenue returns nil when no stable pool is configured, which
// routes every pair through the aggregator.
func restrictedVenue(chain svm.Chain, cfg common.RestrictedConfigurations) (svm.Venue, error) {
	if cfg.ProgramId == "" || len(cfg.Pools) == 0 {
		log.Warn("restricted venue not configured, all pairs use the aggregator")
		return nil, nil
	}
	programID, err := solana.PublicKeyFromBase58(cfg.ProgramId)
	if err != nil {
		return nil, errors.BuildErrMsg(errors.AddressError, err)
	}
	pools := make([]stableswap.PoolConfig, 0, len(cfg.Pools))
	for _, p := range cfg.Pools {
		keys := make([]solana.PublicKey, 3)
		for i, raw := range []string{p.Address, p.MintA, p.MintB} {
			if keys[i], err = solana.PublicKeyFromBase58(raw); err != nil {
				return nil, errors.BuildErrMsg(errors.AddressError, fmt.Errorf("pool %s: %w", p.Address, err))
			}
		}
		pools = append(pools, stableswap.PoolConfig{Address: keys[0], MintA: keys[1], MintB: keys[2]})
	}
	return stableswap.NewVenue(chain, programID, cfg.Assets, pools), nil
}

func openJournal(ctx context.Context, env *common.ENVConfigs, cfg common.MongoConfigurations) (settlement.Journal, func(context.Context) error, error) {
	if env.MongoDbConnectionString == "" && cfg.Uri == "" {
		log.Warn("mongo not configured, settlement journal disabled")
		return settlement.NopJournal{}, nil, nil
	}
	db, client, err := gateways.ConnectDB(ctx, env.MongoDbConnectionString, cfg)
	if err != nil {
		return nil, nil, err
	}
	return gateways.NewMongoJournal(db), client.Disconnect, nil
}

func openStores(ctx context.Context, env *common.ENVConfigs, cfg common.Configurations, journal settlement.Journal) (store.Store[settlement.PreparedRecord], store.Store[settlement.ExecutionContext], func(context.Context) error, error) {
	switch cfg.Store.Backend {
	case common.StoreBackendRedis:
		redisCfg := cfg.Redis
		if env.RedisHost != "" {
			redisCfg.Host = env.RedisHost
		}
		if env.RedisPort != "" {
			redisCfg.Port = env.RedisPort
		}
		client, handler, err := gateways.RedisClient(ctx, redisCfg)
		if err != nil {
			return nil, nil, nil, err
		}
		closer := func(context.Context) error { return client.Close() }
		return gateways.NewRedisStore[settlement.PreparedRecord](client, handler, settlement.KindPrepared),
			gateways.NewRedisStore[settlement.ExecutionContext](client, handler, settlement.KindExecution),
			closer, nil
	case common.StoreBackendMemory, "":
		prepared := store.NewMemoryStore(store.WithEvictionHook(settlement.PreparedExpiryHook(journal)))
		executions := store.NewMemoryStore(store.WithEvictionHook(settlement.ExecutionExpiryHook(journal)))
		return prepared, executions, nil, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// newApplication wires the settlement service from configuration.
func newApplication(ctx context.Context, env *common.ENVConfigs, cfg common.Configurations) (*application, error) {
	app := &application{}
	fail := func(err error) (*application, error) {
		app.Close(context.Background())
		return nil, err
	}

	sponsor, err := loadSponsor(env, cfg.Sponsor)
	if err != nil {
		return nil, err
	}
	registry, err := spl.RegistryFromConfig(cfg.Assets)
	if err != nil {
		return nil, errors.BuildErrMsg(errors.AddressError, err)
	}
	var programID solana.PublicKey
	if cfg.Solana.SquadsProgramId != "" {
		if programID, err = solana.PublicKeyFromBase58(cfg.Solana.SquadsProgramId); err != nil {
			return nil, errors.BuildErrMsg(errors.AddressError, err)
		}
	}

	chain, err := gateways.NewSolanaGateway(cfg.Solana)
	if err != nil {
		return nil, err
	}
	aggregator := jupiter.NewVenue(jupiter.NewClient(jupiter.Config{
		BaseURL:           cfg.Venues.Aggregator.BaseUrl,
		APIKey:            cfg.Venues.Aggregator.ApiKey,
		Timeout:           cfg.Venues.Aggregator.Timeout,
		RequestsPerSecond: cfg.Venues.Aggregator.RequestsPerSecond,
	}))
	restricted, err := restrictedVenue(chain, cfg.Venues.Restricted)
	if err != nil {
		return nil, err
	}

	journal, closeJournal, err := openJournal(ctx, env, cfg.Mongo)
	if err != nil {
		return nil, err
	}
	if closeJournal != nil {
		app.closers = append(app.closers, closeJournal)
	}
	prepared, executions, closeStores, err := openStores(ctx, env, cfg, journal)
	if err != nil {
		return fail(err)
	}
	if closeStores != nil {
		app.closers = append(app.closers, closeStores)
	}

	app.service, err = settlement.NewService(settlement.Dependencies{
		Chain:      chain,
		Registry:   registry,
		Router:     settlement.NewRouteSelector(cfg.Venues.Restricted.Assets, restricted, aggregator),
		Sponsor:    sponsor,
		ProgramID:  programID,
		VaultIndex: cfg.Solana.VaultIndex,
		Prepared:   prepared,
		Executions: executions,
		Journal:    journal,
		Metrics:    observability.Settlement(),
		Config:     cfg.Settlement,
		ExecutionEstimates: map[models.Route]string{
			models.AggregatorRoute: cfg.Venues.Aggregator.ExecutionEstimate,
			models.RestrictedRoute: cfg.Venues.Restricted.ExecutionEstimate,
		},
	})
	if err != nil {
		return fail(err)
	}
	return app, nil
}
