package config

import (
	"time"

	"github.com/spf13/viper"
)

// Path config
const (
	LogPath    = "./logs/"
	ConfigPath = "./"
)

// Viper keys. Every key can be overridden from the environment, e.g.
// SOL_RPC or RELAYER_MARGIN_BPS.
const (
	KeyRelayerSecret    = "relayer.secret-key"
	KeyRelayerMarginBps = "relayer.margin-bps"
	KeyRelayerMode      = "relayer.mode"

	KeySolRpc        = "sol.rpc"
	KeySolCommitment = "sol.commitment"

	KeyJitoEnabled         = "jito.enabled"
	KeyJitoBlockEngineURL  = "jito.block-engine-url"
	KeyJitoBundlesURL      = "jito.bundles-url"
	KeyJitoTipLamports     = "jito.tip-lamports"
	KeyJitoBundleTimeout   = "jito.bundle-timeout"
	KeyJitoTipFloorRetries = "jito.tip-floor-retries"

	KeyFeeLamportsPerSignature = "fee.lamports-per-signature"
	KeyFeeCacheTTL             = "fee.cache-ttl"

	KeySimulationTimeout = "simulation.timeout"
	KeyReimburseProgram  = "reimburse.program-id"

	KeyServerPort           = "server.port"
	KeyServerRateLimit      = "server.rate-limit"
	KeyServerRateBurst      = "server.rate-burst"
	KeyServerRequestTimeout = "server.request-timeout"

	KeyAuditBatchSize     = "audit.batch-size"
	KeyAuditFlushInterval = "audit.flush-interval"
	KeyAuditInsertTimeout = "audit.insert-timeout"

	KeyLogLevel = "log.level"

	KeyClickhouseAddr = "CLICKHOUSE_ADDR"
)

// Relay defaults
const (
	DefaultMarginBps      = 10
	DefaultMode           = "mainnet"
	DefaultCommitment     = "confirmed"
	DefaultSolRpc         = "https://api.mainnet-beta.solana.com"
	DefaultBlockEngineURL = "https://mainnet.block-engine.jito.wtf/api/v1/bundles"
	DefaultBundlesURL     = "https://bundles.jito.wtf/api/v1/bundles"

	DefaultTipLamports          = 100_000
	DefaultBundleTimeout        = 2 * time.Second
	DefaultTipFloorRetries      = 3
	DefaultLamportsPerSignature = 5000
	DefaultFeeCacheTTL          = 5 * time.Second
	DefaultSimulationTimeout    = 3 * time.Second

	DefaultServerPort     = 8000
	DefaultRateLimit      = 20.0
	DefaultRateBurst      = 40
	DefaultRequestTimeout = 15 * time.Second

	DefaultAuditBatchSize     = 256
	DefaultAuditFlushInterval = time.Second
	DefaultAuditInsertTimeout = 5 * time.Second

	DefaultLogLevel = "info"
)

// Settings is the resolved relayer configuration.
type Settings struct {
	SecretKey string
	MarginBps uint64
	Mode      string

	SolRpc        string
	SolCommitment string

	JitoEnabled          bool
	BlockEngineURL       string
	BundlesURL           string
	TipLamports          uint64
	BundleTimeout        time.Duration
	TipFloorRetries      int
	LamportsPerSignature uint64
	FeeCacheTTL          time.Duration

	SimulationTimeout time.Duration
	ReimburseProgram  string

	Port           int
	RateLimit      float64
	RateBurst      int
	RequestTimeout time.Duration

	AuditBatchSize     int
	AuditFlushInterval time.Duration
	AuditInsertTimeout time.Duration

	LogLevel string
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyRelayerMarginBps, DefaultMarginBps)
	v.SetDefault(KeyRelayerMode, DefaultMode)
	v.SetDefault(KeySolRpc, DefaultSolRpc)
	v.SetDefault(KeySolCommitment, DefaultCommitment)
	v.SetDefault(KeyJitoEnabled, true)
	v.SetDefault(KeyJitoBlockEngineURL, DefaultBlockEngineURL)
	v.SetDefault(KeyJitoBundlesURL, DefaultBundlesURL)
	v.SetDefault(KeyJitoTipLamports, DefaultTipLamports)
	v.SetDefault(KeyJitoBundleTimeout, DefaultBundleTimeout)
	v.SetDefault(KeyJitoTipFloorRetries, DefaultTipFloorRetries)
	v.SetDefault(KeyFeeLamportsPerSignature, DefaultLamportsPerSignature)
	v.SetDefault(KeyFeeCacheTTL, DefaultFeeCacheTTL)
	v.SetDefault(KeySimulationTimeout, DefaultSimulationTimeout)
	v.SetDefault(KeyServerPort, DefaultServerPort)
	v.SetDefault(KeyServerRateLimit, DefaultRateLimit)
	v.SetDefault(KeyServerRateBurst, DefaultRateBurst)
	v.SetDefault(KeyServerRequestTimeout, DefaultRequestTimeout)
	v.SetDefault(KeyAuditBatchSize, DefaultAuditBatchSize)
	v.SetDefault(KeyAuditFlushInterval, DefaultAuditFlushInterval)
	v.SetDefault(KeyAuditInsertTimeout, DefaultAuditInsertTimeout)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
}

// Load resolves Settings from v after applying defaults.
func Load(v *viper.Viper) Settings {
	SetDefaults(v)
	return Settings{
		SecretKey: v.GetString(KeyRelayerSecret),
		MarginBps: v.GetUint64(KeyRelayerMarginBps),
		Mode:      v.GetString(KeyRelayerMode),

		SolRpc:        v.GetString(KeySolRpc),
		SolCommitment: v.GetString(KeySolCommitment),

		JitoEnabled:          v.GetBool(KeyJitoEnabled),
		BlockEngineURL:       v.GetString(KeyJitoBlockEngineURL),
		BundlesURL:           v.GetString(KeyJitoBundlesURL),
		TipLamports:          v.GetUint64(KeyJitoTipLamports),
		BundleTimeout:        v.GetDuration(KeyJitoBundleTimeout),
		TipFloorRetries:      v.GetInt(KeyJitoTipFloorRetries),
		LamportsPerSignature: v.GetUint64(KeyFeeLamportsPerSignature),
		FeeCacheTTL:          v.GetDuration(KeyFeeCacheTTL),

		SimulationTimeout: v.GetDuration(KeySimulationTimeout),
		ReimburseProgram:  v.GetString(KeyReimburseProgram),

		Port:           v.GetInt(KeyServerPort),
		RateLimit:      v.GetFloat64(KeyServerRateLimit),
		RateBurst:      v.GetInt(KeyServerRateBurst),
		RequestTimeout: v.GetDuration(KeyServerRequestTimeout),

		AuditBatchSize:     v.GetInt(KeyAuditBatchSize),
		AuditFlushInterval: v.GetDuration(KeyAuditFlushInterval),
		AuditInsertTimeout: v.GetDuration(KeyAuditInsertTimeout),

		LogLevel: v.GetString(KeyLogLevel),
	}
}
