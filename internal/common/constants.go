package common

// Environment variable keys
const (
	EnvExchangeAPIKey    = "EXCHANGE_API_KEY"
	EnvExchangeSecretKey = "EXCHANGE_API_SECRET"
	EnvExchangeTestnet   = "EXCHANGE_TESTNET"
	EnvSymbols           = "SYMBOLS"
	EnvBaseURL           = "BASE_URL"

	EnvNotifierToken  = "NOTIFIER_TOKEN"
	EnvNotifierChatID = "NOTIFIER_CHAT_ID"

	EnvAPIKeys = "API_KEYS"
	EnvAPIHost = "API_HOST"
	EnvAPIPort = "API_PORT"

	EnvRESTTimeout = "REST_TIMEOUT"

	EnvMinStopLoss           = "MIN_STOP_LOSS"
	EnvMaxStopLoss           = "MAX_STOP_LOSS"
	EnvVolatilityMultiplier  = "VOLATILITY_MULTIPLIER"
	EnvPartialTrigger        = "PARTIAL_TRIGGER_PERCENT"
	EnvPartialStopFraction   = "PARTIAL_STOP_PERCENT"
	EnvScaleTPWithVolatility = "SCALE_TP_WITH_VOLATILITY"
	EnvMarginRiskThreshold   = "MARGIN_RISK_THRESHOLD"
	EnvMarginCriticalThreshold = "MARGIN_CRITICAL_THRESHOLD"
	EnvDustThreshold         = "DUST_THRESHOLD"

	EnvDetectPeriod     = "DETECT_PERIOD"
	EnvLevelCheckPeriod = "LEVEL_CHECK_PERIOD"
	EnvMarginCheckPeriod = "MARGIN_CHECK_PERIOD"
	EnvReportPeriod     = "REPORT_PERIOD"
	EnvTechnicalRefresh = "TECHNICAL_REFRESH_INTERVAL"
	EnvShutdownGrace    = "SHUTDOWN_GRACE_PERIOD"

	EnvMetricsPort = "METRICS_PORT"
)

// Configuration defaults
const (
	DefaultBaseURL = "https://fapi.bitunix.com"

	DefaultAPIHost = "0.0.0.0"
	DefaultAPIPort = 8090

	DefaultMetricsPort = 9090

	DefaultRESTTimeout = 10 // seconds, §5 "bounded timeout (default 10s)"

	DefaultMinStopLoss           = 0.015 // 1.5%
	DefaultMaxStopLoss           = 0.05  // 5%
	DefaultVolatilityMultiplier  = 1.5
	DefaultPartialTrigger        = 0.4  // fraction of stop distance
	DefaultPartialStopFraction   = 0.30 // fraction of quantity_at_detection
	DefaultMarginRiskThreshold   = 0.70
	DefaultMarginCriticalThreshold = 0.85
	DefaultDustThreshold         = 0.05

	DefaultDetectPeriod      = 30  // seconds
	DefaultLevelCheckPeriod  = 10  // seconds
	DefaultMarginCheckPeriod = 60  // seconds
	DefaultReportPeriod      = 360 // minutes (6h)
	DefaultTechnicalRefresh  = 60  // minutes (1h)
	DefaultShutdownGrace     = 30  // seconds
)

// Common error messages
const (
	ErrMsgAPICredentialsRequired = "EXCHANGE_API_KEY and EXCHANGE_API_SECRET are required"
	ErrMsgSymbolRequired         = "at least one symbol is required in SYMBOLS"
	ErrMsgBaseURLRequired        = "baseURL is required"
	ErrMsgAPIKeysRequired        = "at least one key is required in API_KEYS"
)

// Validation bounds
const (
	MinMetricsPort = 1024
	MaxMetricsPort = 65535
	MinAPIPort     = 1024
	MaxAPIPort     = 65535
)
