package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/binaryplan/binaryd/internal/core/application"
	"github.com/binaryplan/binaryd/internal/core/ports"
	alertsmanager "github.com/binaryplan/binaryd/internal/infrastructure/alertsmanager"
	"github.com/binaryplan/binaryd/internal/infrastructure/db"
	evmledger "github.com/binaryplan/binaryd/internal/infrastructure/ledger/evm"
	inmemorylivestore "github.com/binaryplan/binaryd/internal/infrastructure/live-store/inmemory"
	redislivestore "github.com/binaryplan/binaryd/internal/infrastructure/live-store/redis"
	blockscheduler "github.com/binaryplan/binaryd/internal/infrastructure/scheduler/block"
	timescheduler "github.com/binaryplan/binaryd/internal/infrastructure/scheduler/gocron"
	"github.com/binaryplan/binaryd/pkg/errors"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	supportedDbs = supportedType{
		"badger":   {},
		"sqlite":   {},
		"postgres": {},
	}
	supportedSchedulers = supportedType{
		"gocron": {},
		"block":  {},
	}
	supportedLiveStores = supportedType{
		"inmemory": {},
		"redis":    {},
	}
)

type Config struct {
	Datadir  string
	LogLevel int

	DbType              string
	DbDir               string
	DbUrl               string
	DbAutoCreate        bool
	LiveStoreType       string
	RedisUrl            string
	RedisTxNumOfRetries int

	SchedulerType       string
	SweepInterval       time.Duration
	SweepIntervalBlocks int64
	SweepOnStart        bool
	BlockPollInterval   time.Duration

	MaxWalkDepth         int
	PointsFactor         decimal.Decimal
	MatchingRate         decimal.Decimal
	ClaimDiscountPercent decimal.Decimal
	ClaimCooldown        time.Duration
	ClaimLockTTL         time.Duration

	LedgerRpcURLs         []string
	LedgerContractAddress string
	LedgerPrivateKey      string
	LedgerChainID         int64
	LedgerDecimals        int32
	LedgerMaxRetries      uint64
	LedgerCallTimeout     time.Duration
	LedgerSettleTimeout   time.Duration
	LedgerGasLimit        uint64

	OtelCollectorEndpoint string
	OtelPushInterval      int64
	PyroscopeServerURL    string
	AlertManagerURL       string
	ExplorerURL           string

	repo      ports.RepoManager
	svc       application.Service
	ledger    ports.LedgerClient
	scheduler ports.SchedulerService
	liveStore ports.LiveStore
	alerts    ports.Alerts
}

func (c *Config) String() string {
	clone := *c
	if clone.LedgerPrivateKey != "" {
		clone.LedgerPrivateKey = "••••••"
	}
	json, err := json.MarshalIndent(clone, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	defaultDatadir              = btcutil.AppDataDir("binaryd", false)
	defaultDbType               = "badger"
	defaultSchedulerType        = "gocron"
	defaultLiveStoreType        = "inmemory"
	defaultRedisTxNumOfRetries  = 10
	defaultLogLevel             = 4
	defaultSweepInterval        = time.Hour
	defaultSweepIntervalBlocks  = 300
	defaultBlockPollInterval    = 15 * time.Second
	defaultMaxWalkDepth         = 100000
	defaultPointsFactor         = "100"
	defaultMatchingRate         = "10"
	defaultClaimDiscountPercent = "0"
	defaultClaimCooldown        = 24 * time.Hour
	defaultClaimLockTTL         = 5 * time.Minute
	defaultLedgerDecimals       = 18
	defaultLedgerMaxRetries     = uint64(5)
	defaultLedgerCallTimeout    = 10 * time.Second
	defaultLedgerSettleTimeout  = 2 * time.Minute
	defaultLedgerGasLimit       = uint64(300000)
	defaultOtelPushInterval     = 10 // seconds
)

// env returns a list of strings prefixed with `BINARYD_`.
// This is used as a syntax sugar for defining env vars.
func env(values ...string) []string {
	envs := make([]string, len(values))

	for i, value := range values {
		envs[i] = fmt.Sprintf("BINARYD_%s", value)
	}

	return envs
}

var (
	Datadir = &cli.StringFlag{
		Usage: "Directory to store data",
		Name:  "datadir", EnvVars: env("DATADIR"),
		Value: defaultDatadir,
	}

	LogLevel = &cli.IntFlag{
		Usage: "Logging level (0-6, where 6 is trace)",
		Name:  "log-level", EnvVars: env("LOG_LEVEL"),
		Value: defaultLogLevel,
	}

	DbType = &cli.StringFlag{
		Usage: "Database type (badger, sqlite, postgres)",
		Name:  "db-type", EnvVars: env("DB_TYPE"),
		Value: defaultDbType,
	}

	DbUrl = &cli.StringFlag{
		Usage: "Postgres connection url if BINARYD_DB_TYPE is set to postgres",
		Name:  "pg-db-url", EnvVars: env("PG_DB_URL"),
	}

	DbAutoCreate = &cli.BoolFlag{
		Usage: "Create the postgres database if it does not exist",
		Name:  "pg-db-autocreate", EnvVars: env("PG_DB_AUTOCREATE"),
	}

	LiveStoreType = &cli.StringFlag{
		Usage: "Live store type for claim locks and sweep state (inmemory, redis)",
		Name:  "live-store-type", EnvVars: env("LIVE_STORE_TYPE"),
		Value: defaultLiveStoreType,
	}

	RedisUrl = &cli.StringFlag{
		Usage: "Redis db connection url if BINARYD_LIVE_STORE_TYPE is set to redis",
		Name:  "redis-url", EnvVars: env("REDIS_URL"),
	}

	RedisTxNumOfRetries = &cli.IntFlag{
		Usage: "Maximum number of retries for Redis write operations in case of conflicts",
		Name:  "redis-num-of-retries", EnvVars: env("REDIS_NUM_OF_RETRIES"),
		Value: defaultRedisTxNumOfRetries,
	}

	SchedulerType = &cli.StringFlag{
		Usage: "Scheduler type (gocron, block)",
		Name:  "scheduler-type", EnvVars: env("SCHEDULER_TYPE"),
		Value: defaultSchedulerType,
	}

	SweepInterval = &cli.DurationFlag{
		Usage: "Period of the reconciliation pass, 0 disables it (gocron scheduler)",
		Name:  "sweep-interval", EnvVars: env("SWEEP_INTERVAL"),
		Value: defaultSweepInterval,
	}

	SweepIntervalBlocks = &cli.Int64Flag{
		Usage: "Period of the reconciliation pass in ledger blocks (block scheduler)",
		Name:  "sweep-interval-blocks", EnvVars: env("SWEEP_INTERVAL_BLOCKS"),
		Value: int64(defaultSweepIntervalBlocks),
	}

	SweepOnStart = &cli.BoolFlag{
		Usage: "Run one reconciliation pass at startup",
		Name:  "sweep-on-start", EnvVars: env("SWEEP_ON_START"),
	}

	BlockPollInterval = &cli.DurationFlag{
		Usage: "How often the block scheduler polls the ledger tip",
		Name:  "block-poll-interval", EnvVars: env("BLOCK_POLL_INTERVAL"),
		Value: defaultBlockPollInterval,
	}

	MaxWalkDepth = &cli.IntFlag{
		Usage: "Maximum number of nodes visited by a placement walk",
		Name:  "max-walk-depth", EnvVars: env("MAX_WALK_DEPTH"),
		Value: defaultMaxWalkDepth,
	}

	PointsFactor = &cli.StringFlag{
		Usage: "Percentage of an investment converted into points",
		Name:  "points-factor", EnvVars: env("POINTS_FACTOR"),
		Value: defaultPointsFactor,
	}

	MatchingRate = &cli.StringFlag{
		Usage: "Percentage of the matched points paid out on claim",
		Name:  "matching-rate", EnvVars: env("MATCHING_RATE"),
		Value: defaultMatchingRate,
	}

	ClaimDiscountPercent = &cli.StringFlag{
		Usage: "Percentage of the claimed amount passed to the ledger as discount",
		Name:  "claim-discount-percent", EnvVars: env("CLAIM_DISCOUNT_PERCENT"),
		Value: defaultClaimDiscountPercent,
	}

	ClaimCooldown = &cli.DurationFlag{
		Usage: "Minimum time between two claims of the same account, 0 disables it",
		Name:  "claim-cooldown", EnvVars: env("CLAIM_COOLDOWN"),
		Value: defaultClaimCooldown,
	}

	ClaimLockTTL = &cli.DurationFlag{
		Usage: "Expiry of the per account claim lock",
		Name:  "claim-lock-ttl", EnvVars: env("CLAIM_LOCK_TTL"),
		Value: defaultClaimLockTTL,
	}

	LedgerRpcURL = &cli.StringSliceFlag{
		Usage: "Ledger JSON-RPC endpoint, repeat the flag to rotate across several nodes",
		Name:  "ledger-rpc-url", EnvVars: env("LEDGER_RPC_URL"),
	}

	LedgerContractAddress = &cli.StringFlag{
		Usage: "Address of the plan contract",
		Name:  "ledger-contract-address", EnvVars: env("LEDGER_CONTRACT_ADDRESS"),
	}

	LedgerPrivateKey = &cli.StringFlag{
		Usage: "Hex encoded key used to sign settlements, required to claim",
		Name:  "ledger-private-key", EnvVars: env("LEDGER_PRIVATE_KEY"),
	}

	LedgerChainID = &cli.Int64Flag{
		Usage:       "Chain id used to sign settlements",
		Name:        "ledger-chain-id", EnvVars: env("LEDGER_CHAIN_ID"),
		DefaultText: "fetched from the node",
	}

	LedgerDecimals = &cli.IntFlag{
		Usage: "Decimals of the ledger token amounts",
		Name:  "ledger-decimals", EnvVars: env("LEDGER_DECIMALS"),
		Value: defaultLedgerDecimals,
	}

	LedgerMaxRetries = &cli.Uint64Flag{
		Usage: "Maximum number of retries of a ledger read",
		Name:  "ledger-max-retries", EnvVars: env("LEDGER_MAX_RETRIES"),
		Value: defaultLedgerMaxRetries,
	}

	LedgerCallTimeout = &cli.DurationFlag{
		Usage: "Timeout of a single ledger read",
		Name:  "ledger-call-timeout", EnvVars: env("LEDGER_CALL_TIMEOUT"),
		Value: defaultLedgerCallTimeout,
	}

	LedgerSettleTimeout = &cli.DurationFlag{
		Usage: "How long to wait for a settlement to be mined",
		Name:  "ledger-settle-timeout", EnvVars: env("LEDGER_SETTLE_TIMEOUT"),
		Value: defaultLedgerSettleTimeout,
	}

	LedgerGasLimit = &cli.Uint64Flag{
		Usage: "Gas limit of settlement transactions",
		Name:  "ledger-gas-limit", EnvVars: env("LEDGER_GAS_LIMIT"),
		Value: defaultLedgerGasLimit,
	}

	OtelCollectorEndpoint = &cli.StringFlag{
		Usage: "OpenTelemetry collector endpoint",
		Name:  "otel-collector-endpoint", EnvVars: env("OTEL_COLLECTOR_ENDPOINT"),
	}

	OtelPushInterval = &cli.IntFlag{
		Usage: "OpenTelemetry push interval in seconds",
		Name:  "otel-push-interval", EnvVars: env("OTEL_PUSH_INTERVAL"),
		Value: defaultOtelPushInterval,
	}

	PyroscopeServerURL = &cli.StringFlag{
		Usage: "Pyroscope server url for continuous profiling",
		Name:  "pyroscope-server-url", EnvVars: env("PYROSCOPE_SERVER_URL"),
	}

	AlertManagerURL = &cli.StringFlag{
		Usage: "Alertmanager url for sweep, orphan and ambiguous settlement alerts",
		Name:  "alert-manager-url", EnvVars: env("ALERT_MANAGER_URL"),
	}

	ExplorerURL = &cli.StringFlag{
		Usage: "Block explorer url used to link settlement transactions in alerts",
		Name:  "explorer-url", EnvVars: env("EXPLORER_URL"),
	}
)

var Flags = []cli.Flag{
	Datadir,
	LogLevel,
	DbType,
	DbUrl,
	DbAutoCreate,
	LiveStoreType,
	RedisUrl,
	RedisTxNumOfRetries,
	SchedulerType,
	SweepInterval,
	SweepIntervalBlocks,
	SweepOnStart,
	BlockPollInterval,
	MaxWalkDepth,
	PointsFactor,
	MatchingRate,
	ClaimDiscountPercent,
	ClaimCooldown,
	ClaimLockTTL,
	LedgerRpcURL,
	LedgerContractAddress,
	LedgerPrivateKey,
	LedgerChainID,
	LedgerDecimals,
	LedgerMaxRetries,
	LedgerCallTimeout,
	LedgerSettleTimeout,
	LedgerGasLimit,
	OtelCollectorEndpoint,
	OtelPushInterval,
	PyroscopeServerURL,
	AlertManagerURL,
	ExplorerURL,
}

func LoadConfig(c *cli.Context) (*Config, error) {
	if err := initDatadir(c); err != nil {
		return nil, fmt.Errorf("failed to create datadir: %s", err)
	}

	dbPath := filepath.Join(c.String(Datadir.Name), "db")

	var dbUrl string
	if c.String(DbType.Name) == "postgres" {
		dbUrl = c.String(DbUrl.Name)
		if dbUrl == "" {
			return nil, fatalConfig(DbUrl.Name, "db type set to 'postgres' but db url is missing")
		}
	}

	var redisUrl string
	if c.String(LiveStoreType.Name) == "redis" {
		redisUrl = c.String(RedisUrl.Name)
		if redisUrl == "" {
			return nil, fatalConfig(
				RedisUrl.Name, "live store type set to 'redis' but redis url is missing",
			)
		}
	}

	pointsFactor, err := parseDecimal(PointsFactor.Name, c.String(PointsFactor.Name))
	if err != nil {
		return nil, err
	}
	matchingRate, err := parseDecimal(MatchingRate.Name, c.String(MatchingRate.Name))
	if err != nil {
		return nil, err
	}
	claimDiscountPercent, err := parseDecimal(
		ClaimDiscountPercent.Name, c.String(ClaimDiscountPercent.Name),
	)
	if err != nil {
		return nil, err
	}

	rpcURLs := make([]string, 0, len(c.StringSlice(LedgerRpcURL.Name)))
	for _, url := range c.StringSlice(LedgerRpcURL.Name) {
		if url = strings.TrimSpace(url); url != "" {
			rpcURLs = append(rpcURLs, url)
		}
	}

	return &Config{
		Datadir:               c.String(Datadir.Name),
		LogLevel:              c.Int(LogLevel.Name),
		DbType:                c.String(DbType.Name),
		DbDir:                 dbPath,
		DbUrl:                 dbUrl,
		DbAutoCreate:          c.Bool(DbAutoCreate.Name),
		LiveStoreType:         c.String(LiveStoreType.Name),
		RedisUrl:              redisUrl,
		RedisTxNumOfRetries:   c.Int(RedisTxNumOfRetries.Name),
		SchedulerType:         c.String(SchedulerType.Name),
		SweepInterval:         c.Duration(SweepInterval.Name),
		SweepIntervalBlocks:   c.Int64(SweepIntervalBlocks.Name),
		SweepOnStart:          c.Bool(SweepOnStart.Name),
		BlockPollInterval:     c.Duration(BlockPollInterval.Name),
		MaxWalkDepth:          c.Int(MaxWalkDepth.Name),
		PointsFactor:          pointsFactor,
		MatchingRate:          matchingRate,
		ClaimDiscountPercent:  claimDiscountPercent,
		ClaimCooldown:         c.Duration(ClaimCooldown.Name),
		ClaimLockTTL:          c.Duration(ClaimLockTTL.Name),
		LedgerRpcURLs:         rpcURLs,
		LedgerContractAddress: c.String(LedgerContractAddress.Name),
		LedgerPrivateKey:      c.String(LedgerPrivateKey.Name),
		LedgerChainID:         c.Int64(LedgerChainID.Name),
		LedgerDecimals:        int32(c.Int(LedgerDecimals.Name)),
		LedgerMaxRetries:      c.Uint64(LedgerMaxRetries.Name),
		LedgerCallTimeout:     c.Duration(LedgerCallTimeout.Name),
		LedgerSettleTimeout:   c.Duration(LedgerSettleTimeout.Name),
		LedgerGasLimit:        c.Uint64(LedgerGasLimit.Name),
		OtelCollectorEndpoint: c.String(OtelCollectorEndpoint.Name),
		OtelPushInterval:      int64(c.Int(OtelPushInterval.Name)),
		PyroscopeServerURL:    c.String(PyroscopeServerURL.Name),
		AlertManagerURL:       c.String(AlertManagerURL.Name),
		ExplorerURL:           c.String(ExplorerURL.Name),
	}, nil
}

func initDatadir(c *cli.Context) error {
	datadir := c.String(Datadir.Name)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0o755)
	}
	return nil
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fatalConfig(field, "invalid %s %q: %s", field, value, err)
	}
	return d, nil
}

func fatalConfig(field, msg string, args ...any) errors.Error {
	return errors.FATAL_CONFIG.New(msg, args...).
		WithMetadata(errors.ConfigMetadata{Field: field})
}

// Validate checks the settings and builds every component but the application
// service.
func (c *Config) Validate() error {
	if !supportedDbs.supports(c.DbType) {
		return fatalConfig(
			DbType.Name, "db type not supported, please select one of: %s", supportedDbs,
		)
	}
	if !supportedSchedulers.supports(c.SchedulerType) {
		return fatalConfig(
			SchedulerType.Name,
			"scheduler type not supported, please select one of: %s", supportedSchedulers,
		)
	}
	if !supportedLiveStores.supports(c.LiveStoreType) {
		return fatalConfig(
			LiveStoreType.Name,
			"live store type not supported, please select one of: %s", supportedLiveStores,
		)
	}
	if len(c.LedgerRpcURLs) <= 0 {
		return fatalConfig(LedgerRpcURL.Name, "missing ledger rpc url")
	}
	if !common.IsHexAddress(c.LedgerContractAddress) {
		return fatalConfig(
			LedgerContractAddress.Name,
			"invalid ledger contract address %q", c.LedgerContractAddress,
		)
	}
	if c.PointsFactor.IsNegative() {
		return fatalConfig(PointsFactor.Name, "points factor must not be negative")
	}
	if c.MatchingRate.IsNegative() {
		return fatalConfig(MatchingRate.Name, "matching rate must not be negative")
	}
	if c.ClaimDiscountPercent.IsNegative() ||
		c.ClaimDiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return fatalConfig(
			ClaimDiscountPercent.Name, "claim discount percent must be between 0 and 100",
		)
	}
	if c.LedgerDecimals < 0 {
		return fatalConfig(LedgerDecimals.Name, "ledger decimals must not be negative")
	}
	if c.MaxWalkDepth < 1 {
		return fatalConfig(MaxWalkDepth.Name, "max walk depth must be at least 1")
	}
	if c.ClaimCooldown < 0 {
		return fatalConfig(ClaimCooldown.Name, "claim cooldown must not be negative")
	}
	if c.SchedulerType == "gocron" && c.SweepInterval > 0 && c.SweepInterval < time.Second {
		return fatalConfig(SweepInterval.Name, "sweep interval must be at least 1s")
	}
	if c.SchedulerType == "block" && c.SweepIntervalBlocks < 0 {
		return fatalConfig(
			SweepIntervalBlocks.Name, "sweep interval in blocks must not be negative",
		)
	}
	if c.SweepInterval <= 0 && c.SchedulerType == "gocron" {
		log.Debugf("periodic reconciliation is disabled")
	}

	if err := c.repoManager(); err != nil {
		return err
	}
	if err := c.ledgerService(); err != nil {
		return err
	}
	if err := c.liveStoreService(); err != nil {
		return err
	}
	if err := c.schedulerService(); err != nil {
		return err
	}
	if err := c.alertsService(); err != nil {
		return err
	}
	return nil
}

// RequireSigner fails if settlements cannot be signed.
func (c *Config) RequireSigner() error {
	if c.LedgerPrivateKey == "" {
		return fatalConfig(LedgerPrivateKey.Name, "missing ledger private key")
	}
	return nil
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

// SweepIntervalUnits returns the sweep period in the unit of the configured
// scheduler.
func (c *Config) SweepIntervalUnits() int64 {
	if c.SchedulerType == "block" {
		return c.SweepIntervalBlocks
	}
	return int64(c.SweepInterval / time.Second)
}

func (c *Config) repoManager() error {
	var dataStoreConfig []interface{}
	logger := log.New()

	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, logger}
	case "sqlite":
		if err := makeDirectoryIfNotExists(c.DbDir); err != nil {
			return fmt.Errorf("failed to create db dir: %s", err)
		}
		dataStoreConfig = []interface{}{c.DbDir}
	case "postgres":
		dataStoreConfig = []interface{}{c.DbUrl, c.DbAutoCreate}
	default:
		return fmt.Errorf("unknown db type")
	}

	svc, err := db.NewService(db.ServiceConfig{
		DataStoreType:   c.DbType,
		DataStoreConfig: dataStoreConfig,
	})
	if err != nil {
		return err
	}
	c.repo = svc
	return nil
}

func (c *Config) ledgerService() error {
	svc, err := evmledger.NewLedgerClient(evmledger.Config{
		RpcURLs:         c.LedgerRpcURLs,
		ContractAddress: c.LedgerContractAddress,
		PrivateKey:      c.LedgerPrivateKey,
		ChainID:         c.LedgerChainID,
		Decimals:        c.LedgerDecimals,
		MaxRetries:      c.LedgerMaxRetries,
		CallTimeout:     c.LedgerCallTimeout,
		SettleTimeout:   c.LedgerSettleTimeout,
		GasLimit:        c.LedgerGasLimit,
	})
	if err != nil {
		return err
	}
	c.ledger = svc
	return nil
}

func (c *Config) liveStoreService() error {
	var liveStoreSvc ports.LiveStore
	var err error
	switch c.LiveStoreType {
	case "inmemory":
		liveStoreSvc = inmemorylivestore.NewLiveStore()
	case "redis":
		redisOpts, err := redis.ParseURL(c.RedisUrl)
		if err != nil {
			return fatalConfig(RedisUrl.Name, "invalid redis url: %s", err)
		}
		rdb := redis.NewClient(redisOpts)
		liveStoreSvc = redislivestore.NewLiveStore(rdb, c.RedisTxNumOfRetries)
	default:
		err = fmt.Errorf("unknown live store type")
	}
	if err != nil {
		return err
	}
	c.liveStore = liveStoreSvc
	return nil
}

func (c *Config) schedulerService() error {
	var svc ports.SchedulerService
	var err error
	switch c.SchedulerType {
	case "gocron":
		svc = timescheduler.NewScheduler()
	case "block":
		if c.ledger == nil {
			return fmt.Errorf("ledger client not set")
		}
		svc, err = blockscheduler.NewScheduler(
			c.ledger.CurrentBlock, blockscheduler.WithTickerInterval(c.BlockPollInterval),
		)
	default:
		err = fmt.Errorf("unknown scheduler type")
	}
	if err != nil {
		return err
	}
	c.scheduler = svc
	return nil
}

func (c *Config) alertsService() error {
	if c.AlertManagerURL == "" {
		return nil
	}

	c.alerts = alertsmanager.NewService(c.AlertManagerURL, c.ExplorerURL)
	return nil
}

func (c *Config) appService() error {
	svc, err := application.NewService(
		c.ledger, c.repo, c.liveStore, c.scheduler, c.alerts,
		application.Config{
			PointsFactor:         c.PointsFactor,
			MatchingRate:         c.MatchingRate,
			ClaimDiscountPercent: c.ClaimDiscountPercent,
			LedgerDecimals:       c.LedgerDecimals,
			MaxWalkDepth:         c.MaxWalkDepth,
			ClaimCooldown:        c.ClaimCooldown,
			ClaimLockTTL:         c.ClaimLockTTL,
			SweepInterval:        c.SweepIntervalUnits(),
			SweepOnStart:         c.SweepOnStart,
		},
	)
	if err != nil {
		return err
	}

	c.svc = svc
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
