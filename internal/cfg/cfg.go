// Package cfg loads and validates the position manager's configuration.
// Environment variables are authoritative; an optional CONFIG_FILE YAML
// overlay provides defaults that env vars still override, matching the
// convention used throughout this codebase.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bitunix-position-manager/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings contains every configuration parameter for the position manager.
type Settings struct {
	// Exchange credentials
	ExchangeAPIKey    string
	ExchangeAPISecret string
	ExchangeTestnet   bool
	BaseURL           string
	RESTTimeout       time.Duration

	// Managed symbols
	Symbols []string

	// Notifier
	NotifierToken  string
	NotifierChatID string

	// Control API
	APIKeys []string
	APIHost string
	APIPort int

	// Risk constants (§4.3)
	MinStopLoss           float64
	MaxStopLoss           float64
	VolatilityMultiplier  float64
	PartialTrigger        float64
	PartialStopFraction   float64
	ScaleTPWithVolatility bool
	MarginRiskThreshold   float64
	MarginCriticalThreshold float64
	DustThreshold         float64

	// Scheduler periods (§4.5)
	DetectPeriod     time.Duration
	LevelCheckPeriod time.Duration
	MarginCheckPeriod time.Duration
	ReportPeriod     time.Duration
	TechnicalRefresh time.Duration
	ShutdownGrace    time.Duration

	MetricsPort int
}

// configFile is the optional CONFIG_FILE YAML overlay shape.
type configFile struct {
	Exchange struct {
		APIKey    string `yaml:"apiKey"`
		APISecret string `yaml:"apiSecret"`
		Testnet   bool   `yaml:"testnet"`
		BaseURL   string `yaml:"baseURL"`
	} `yaml:"exchange"`

	Symbols []string `yaml:"symbols"`

	Notifier struct {
		Token  string `yaml:"token"`
		ChatID string `yaml:"chatID"`
	} `yaml:"notifier"`

	API struct {
		Keys []string `yaml:"keys"`
		Host string   `yaml:"host"`
		Port int      `yaml:"port"`
	} `yaml:"api"`

	Risk struct {
		MinStopLoss           float64 `yaml:"minStopLoss"`
		MaxStopLoss           float64 `yaml:"maxStopLoss"`
		VolatilityMultiplier  float64 `yaml:"volatilityMultiplier"`
		PartialTrigger        float64 `yaml:"partialTrigger"`
		PartialStopFraction   float64 `yaml:"partialStopFraction"`
		ScaleTPWithVolatility bool    `yaml:"scaleTPWithVolatility"`
		MarginRiskThreshold   float64 `yaml:"marginRiskThreshold"`
		MarginCriticalThreshold float64 `yaml:"marginCriticalThreshold"`
		DustThreshold         float64 `yaml:"dustThreshold"`
	} `yaml:"risk"`

	Scheduler struct {
		DetectPeriod      string `yaml:"detectPeriod"`
		LevelCheckPeriod  string `yaml:"levelCheckPeriod"`
		MarginCheckPeriod string `yaml:"marginCheckPeriod"`
		ReportPeriod      string `yaml:"reportPeriod"`
		TechnicalRefresh  string `yaml:"technicalRefresh"`
	} `yaml:"scheduler"`

	MetricsPort int `yaml:"metricsPort"`
}

// Load reads configuration, preferring a CONFIG_FILE YAML overlay if set,
// with environment variables always taking precedence (§6).
func Load() (Settings, error) {
	_ = godotenv.Load()

	var overlay configFile
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return Settings{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	key := getEnvOrDefault(common.EnvExchangeAPIKey, overlay.Exchange.APIKey)
	secret := getEnvOrDefault(common.EnvExchangeSecretKey, overlay.Exchange.APISecret)
	if key == "" || secret == "" {
		return Settings{}, fmt.Errorf(common.ErrMsgAPICredentialsRequired)
	}

	apiKeys := splitOrDefault(os.Getenv(common.EnvAPIKeys), overlay.API.Keys)

	settings := Settings{
		ExchangeAPIKey:    key,
		ExchangeAPISecret: secret,
		ExchangeTestnet:   getBoolFromEnvOrConfig(common.EnvExchangeTestnet, overlay.Exchange.Testnet),
		BaseURL:           getEnvOrDefault(common.EnvBaseURL, firstNonEmpty(overlay.Exchange.BaseURL, common.DefaultBaseURL)),
		RESTTimeout:       getDurationSecondsOrDefault(common.EnvRESTTimeout, common.DefaultRESTTimeout),

		Symbols: splitOrDefault(os.Getenv(common.EnvSymbols), overlay.Symbols),

		NotifierToken:  getEnvOrDefault(common.EnvNotifierToken, overlay.Notifier.Token),
		NotifierChatID: getEnvOrDefault(common.EnvNotifierChatID, overlay.Notifier.ChatID),

		APIKeys: apiKeys,
		APIHost: getEnvOrDefault(common.EnvAPIHost, firstNonEmpty(overlay.API.Host, common.DefaultAPIHost)),
		APIPort: getIntFromEnvOrConfig(common.EnvAPIPort, overlay.API.Port, common.DefaultAPIPort),

		MinStopLoss:             getFloatFromEnvOrConfig(common.EnvMinStopLoss, overlay.Risk.MinStopLoss, common.DefaultMinStopLoss),
		MaxStopLoss:             getFloatFromEnvOrConfig(common.EnvMaxStopLoss, overlay.Risk.MaxStopLoss, common.DefaultMaxStopLoss),
		VolatilityMultiplier:    getFloatFromEnvOrConfig(common.EnvVolatilityMultiplier, overlay.Risk.VolatilityMultiplier, common.DefaultVolatilityMultiplier),
		PartialTrigger:          getFloatFromEnvOrConfig(common.EnvPartialTrigger, overlay.Risk.PartialTrigger, common.DefaultPartialTrigger),
		PartialStopFraction:     getFloatFromEnvOrConfig(common.EnvPartialStopFraction, overlay.Risk.PartialStopFraction, common.DefaultPartialStopFraction),
		ScaleTPWithVolatility:   getBoolFromEnvOrConfig(common.EnvScaleTPWithVolatility, overlay.Risk.ScaleTPWithVolatility),
		MarginRiskThreshold:     getFloatFromEnvOrConfig(common.EnvMarginRiskThreshold, overlay.Risk.MarginRiskThreshold, common.DefaultMarginRiskThreshold),
		MarginCriticalThreshold: getFloatFromEnvOrConfig(common.EnvMarginCriticalThreshold, overlay.Risk.MarginCriticalThreshold, common.DefaultMarginCriticalThreshold),
		DustThreshold:           getFloatFromEnvOrConfig(common.EnvDustThreshold, overlay.Risk.DustThreshold, common.DefaultDustThreshold),

		DetectPeriod:      getDurationSecondsOrOverlay(common.EnvDetectPeriod, overlay.Scheduler.DetectPeriod, common.DefaultDetectPeriod),
		LevelCheckPeriod:  getDurationSecondsOrOverlay(common.EnvLevelCheckPeriod, overlay.Scheduler.LevelCheckPeriod, common.DefaultLevelCheckPeriod),
		MarginCheckPeriod: getDurationSecondsOrOverlay(common.EnvMarginCheckPeriod, overlay.Scheduler.MarginCheckPeriod, common.DefaultMarginCheckPeriod),
		ReportPeriod:      getDurationMinutesOrOverlay(common.EnvReportPeriod, overlay.Scheduler.ReportPeriod, common.DefaultReportPeriod),
		TechnicalRefresh:  getDurationMinutesOrOverlay(common.EnvTechnicalRefresh, overlay.Scheduler.TechnicalRefresh, common.DefaultTechnicalRefresh),
		ShutdownGrace:     getDurationSecondsOrDefault(common.EnvShutdownGrace, common.DefaultShutdownGrace),

		MetricsPort: getIntFromEnvOrConfig(common.EnvMetricsPort, overlay.MetricsPort, common.DefaultMetricsPort),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return def
}

func getIntFromEnvOrConfig(key string, overlayValue, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	if overlayValue != 0 {
		return overlayValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, overlayValue, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	if overlayValue != 0 {
		return overlayValue
	}
	return defaultValue
}

func getBoolFromEnvOrConfig(key string, overlayValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return overlayValue
}

func getDurationSecondsOrDefault(key string, defaultSeconds int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return time.Duration(defaultSeconds) * time.Second
}

func getDurationSecondsOrOverlay(key, overlayValue string, defaultSeconds int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	if overlayValue != "" {
		if d, err := time.ParseDuration(overlayValue); err == nil {
			return d
		}
	}
	return time.Duration(defaultSeconds) * time.Second
}

func getDurationMinutesOrOverlay(key, overlayValue string, defaultMinutes int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * time.Minute
		}
	}
	if overlayValue != "" {
		if d, err := time.ParseDuration(overlayValue); err == nil {
			return d
		}
	}
	return time.Duration(defaultMinutes) * time.Minute
}

// validateSettings performs per-concern validation, matching the
// validate-per-concern style used across this codebase.
func validateSettings(s *Settings) error {
	if err := validateCredentials(s); err != nil {
		return err
	}
	if err := validateSymbols(s); err != nil {
		return err
	}
	if err := validateAPI(s); err != nil {
		return err
	}
	if err := validateRiskParameters(s); err != nil {
		return err
	}
	if err := validateSchedulerPeriods(s); err != nil {
		return err
	}
	return nil
}

func validateCredentials(s *Settings) error {
	if s.ExchangeAPIKey == "" || s.ExchangeAPISecret == "" {
		return fmt.Errorf(common.ErrMsgAPICredentialsRequired)
	}
	if s.BaseURL == "" {
		return fmt.Errorf(common.ErrMsgBaseURLRequired)
	}
	return nil
}

func validateSymbols(s *Settings) error {
	if len(s.Symbols) == 0 {
		return fmt.Errorf(common.ErrMsgSymbolRequired)
	}
	return nil
}

func validateAPI(s *Settings) error {
	if len(s.APIKeys) == 0 {
		return fmt.Errorf(common.ErrMsgAPIKeysRequired)
	}
	if s.APIPort < common.MinAPIPort || s.APIPort > common.MaxAPIPort {
		return fmt.Errorf("API_PORT must be between %d and %d", common.MinAPIPort, common.MaxAPIPort)
	}
	if s.MetricsPort < common.MinMetricsPort || s.MetricsPort > common.MaxMetricsPort {
		return fmt.Errorf("METRICS_PORT must be between %d and %d", common.MinMetricsPort, common.MaxMetricsPort)
	}
	return nil
}

func validateRiskParameters(s *Settings) error {
	if s.MinStopLoss <= 0 || s.MinStopLoss >= s.MaxStopLoss {
		return fmt.Errorf("MIN_STOP_LOSS must be positive and less than MAX_STOP_LOSS")
	}
	if s.MaxStopLoss <= 0 || s.MaxStopLoss >= 1 {
		return fmt.Errorf("MAX_STOP_LOSS must be between 0 and 1")
	}
	if s.PartialTrigger <= 0 || s.PartialTrigger >= 1 {
		return fmt.Errorf("PARTIAL_TRIGGER_PERCENT must be between 0 and 1")
	}
	if s.PartialStopFraction <= 0 || s.PartialStopFraction >= 1 {
		return fmt.Errorf("PARTIAL_STOP_PERCENT must be between 0 and 1")
	}
	if s.MarginRiskThreshold <= 0 || s.MarginRiskThreshold >= s.MarginCriticalThreshold {
		return fmt.Errorf("MARGIN_RISK_THRESHOLD must be positive and less than MARGIN_CRITICAL_THRESHOLD")
	}
	if s.MarginCriticalThreshold <= 0 || s.MarginCriticalThreshold >= 1 {
		return fmt.Errorf("MARGIN_CRITICAL_THRESHOLD must be between 0 and 1")
	}
	if s.DustThreshold <= 0 || s.DustThreshold >= 1 {
		return fmt.Errorf("DUST_THRESHOLD must be between 0 and 1")
	}
	return nil
}

func validateSchedulerPeriods(s *Settings) error {
	if s.DetectPeriod < time.Second {
		return fmt.Errorf("DETECT_PERIOD must be at least 1s")
	}
	if s.LevelCheckPeriod < time.Second {
		return fmt.Errorf("LEVEL_CHECK_PERIOD must be at least 1s")
	}
	if s.MarginCheckPeriod < time.Second {
		return fmt.Errorf("MARGIN_CHECK_PERIOD must be at least 1s")
	}
	if s.ReportPeriod < time.Minute {
		return fmt.Errorf("REPORT_PERIOD must be at least 1m")
	}
	if s.TechnicalRefresh < time.Minute {
		return fmt.Errorf("TECHNICAL_REFRESH_INTERVAL must be at least 1m")
	}
	return nil
}
