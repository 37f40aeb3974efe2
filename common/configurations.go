package common

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Configurations exported
type Configurations struct {
	Server     ServerConfigurations
	Solana     SolanaConfigurations
	Sponsor    SponsorConfigurations
	Assets     []AssetConfigurations
	Venues     VenueConfigurations
	Settlement SettlementConfigurations
	Store      StoreConfigurations
	Redis      RedisConfigurations
	Mongo      MongoConfigurations
	Log        LogConfigurations
}

// ServerConfigurations exported
type ServerConfigurations struct {
	Port string
}

// SolanaConfigurations exported
type SolanaConfigurations struct {
	RpcUrl          string
	Commitment      string
	SquadsProgramId string
	VaultIndex      uint8
}

// SponsorConfigurations exported. The secret itself comes from the
// SPONSOR_PRIVATE_KEY environment variable when KeypairPath is empty.
type SponsorConfigurations struct {
	KeypairPath string
}

// AssetConfigurations describes one supported token.
type AssetConfigurations struct {
	Symbol   string
	Mint     string
	Decimals uint8
}

type VenueConfigurations struct {
	Aggregator AggregatorConfigurations
	Restricted RestrictedConfigurations
}

type AggregatorConfigurations struct {
	BaseUrl           string
	ApiKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	ExecutionEstimate string
}

type RestrictedConfigurations struct {
	ProgramId         string
	Assets            []string
	Pools             []StablePoolConfigurations
	Timeout           time.Duration
	ExecutionEstimate string
}

type StablePoolConfigurations struct {
	Address string
	MintA   string
	MintB   string
}

// SettlementConfigurations holds the policy knobs of the settlement flow.
type SettlementConfigurations struct {
	PreparedTTL              time.Duration
	ExecutionTTL             time.Duration
	SweepInterval            time.Duration
	MaxDeviation             float64
	MinSlippageBps           uint16
	MaxSlippageBps           uint16
	FallbackFeeRate          float64
	QuoteTimeout             time.Duration
	BuildTimeout             time.Duration
	ConfirmTimeout           time.Duration
	ConfirmMaxRetries        uint64
	ConfirmInitialInterval   time.Duration
	ConfirmMaxInterval       time.Duration
	PriorityFeeMicroLamports uint64
	ComputeUnitLimit         uint32
}

type StoreConfigurations struct {
	Backend string
}

type RedisConfigurations struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type MongoConfigurations struct {
	Uri                   string
	Database              string
	TransitionsCollection string
}

type LogConfigurations struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

const (
	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"
)

// DefaultSettlementConfigurations returns the policy defaults used when the
// config file leaves a value unset.
func DefaultSettlementConfigurations() SettlementConfigurations {
	return SettlementConfigurations{
		PreparedTTL:              600 * time.Second,
		ExecutionTTL:             600 * time.Second,
		SweepInterval:            300 * time.Second,
		MaxDeviation:             0.02,
		MinSlippageBps:           10,
		MaxSlippageBps:           500,
		FallbackFeeRate:          0.003,
		QuoteTimeout:             10 * time.Second,
		BuildTimeout:             15 * time.Second,
		ConfirmTimeout:           60 * time.Second,
		ConfirmMaxRetries:        30,
		ConfirmInitialInterval:   500 * time.Millisecond,
		ConfirmMaxInterval:       5 * time.Second,
		PriorityFeeMicroLamports: 0,
		ComputeUnitLimit:         400_000,
	}
}

func setDefaults() {
	d := DefaultSettlementConfigurations()
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("solana.commitment", "confirmed")
	viper.SetDefault("solana.squadsProgramId", "SQDS4ep65T869zMMBKyuUq6aD6EgTu8psMjkvj52pCf")
	viper.SetDefault("settlement.preparedTTL", d.PreparedTTL)
	viper.SetDefault("settlement.executionTTL", d.ExecutionTTL)
	viper.SetDefault("settlement.sweepInterval", d.SweepInterval)
	viper.SetDefault("settlement.maxDeviation", d.MaxDeviation)
	viper.SetDefault("settlement.minSlippageBps", d.MinSlippageBps)
	viper.SetDefault("settlement.maxSlippageBps", d.MaxSlippageBps)
	viper.SetDefault("settlement.fallbackFeeRate", d.FallbackFeeRate)
	viper.SetDefault("settlement.quoteTimeout", d.QuoteTimeout)
	viper.SetDefault("settlement.buildTimeout", d.BuildTimeout)
	viper.SetDefault("settlement.confirmTimeout", d.ConfirmTimeout)
	viper.SetDefault("settlement.confirmMaxRetries", d.ConfirmMaxRetries)
	viper.SetDefault("settlement.confirmInitialInterval", d.ConfirmInitialInterval)
	viper.SetDefault("settlement.confirmMaxInterval", d.ConfirmMaxInterval)
	viper.SetDefault("settlement.computeUnitLimit", d.ComputeUnitLimit)
	viper.SetDefault("venues.aggregator.timeout", d.QuoteTimeout)
	viper.SetDefault("venues.aggregator.requestsPerSecond", 5)
	viper.SetDefault("venues.aggregator.executionEstimate", "~30 seconds")
	viper.SetDefault("venues.restricted.timeout", d.QuoteTimeout)
	viper.SetDefault("venues.restricted.executionEstimate", "~15 seconds")
	viper.SetDefault("venues.restricted.assets", []string{"USDC", "USDT", "PYUSD"})
	viper.SetDefault("store.backend", StoreBackendMemory)
	viper.SetDefault("mongo.transitionsCollection", "settlement_transitions")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.maxSizeMB", 100)
	viper.SetDefault("log.maxBackups", 5)
	viper.SetDefault("log.maxAgeDays", 14)
}

func LoadConfig(env *ENVConfigs) (Configurations, error) {
	var configName string
	if env.WorkingEnvironment == "development" {
		configName = "dev"
	} else if env.WorkingEnvironment == "production" {
		configName = "prod"
	} else {
		return Configurations{}, fmt.Errorf("environment configuration not valid: %q", env.WorkingEnvironment)
	}
	// Set the file name of the configurations file
	viper.SetConfigName("config_" + configName)

	// Set the path to look for the configurations file
	viper.AddConfigPath(".")

	// Enable VIPER to read Environment Variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigType("yaml")
	setDefaults()

	var configuration Configurations

	if err := viper.ReadInConfig(); err != nil {
		log.Warnf("Error reading config file, %s", err)
	}

	err := viper.Unmarshal(&configuration)
	if err != nil {
		return configuration, fmt.Errorf("unable to decode into struct, %w", err)
	}

	log.WithFields(log.Fields{
		"rpc":    configuration.Solana.RpcUrl,
		"store":  configuration.Store.Backend,
		"assets": len(configuration.Assets),
	}).Info("configuration loaded")

	return configuration, nil
}

// Getting once all env variables to avoiding future fatals.
func GetENVVars() *ENVConfigs {
	getOrFatal := func(envVarName string) string {
		variable, ok := os.LookupEnv(envVarName)
		if !ok {
			log.Fatal("missing environment variable: ", envVarName)
		}
		return variable
	}
	getOrDefault := func(envVarName, fallback string) string {
		if variable, ok := os.LookupEnv(envVarName); ok {
			return variable
		}
		return fallback
	}

	if getOrDefault(WorkingEnvironment, "") != "production" {
		// missing .env is fine; real deployments inject variables directly
		_ = godotenv.Load()
	}

	env := ENVConfigs{}
	env.WorkingEnvironment = getOrFatal(WorkingEnvironment)
	env.GinMode = getOrDefault(GinMode, "debug")
	env.SponsorPrivateKey = getOrDefault(SponsorPrivateKey, "")
	env.MongoDbConnectionString = getOrDefault(MongoDbConnectionString, "")
	env.RedisHost = getOrDefault(RedisHost, "")
	env.RedisPort = getOrDefault(RedisPort, "")

	return &env
}
