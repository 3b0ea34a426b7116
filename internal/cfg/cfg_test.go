package cfg

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"EXCHANGE_API_KEY", "EXCHANGE_API_SECRET", "EXCHANGE_TESTNET", "BASE_URL",
		"SYMBOLS", "NOTIFIER_TOKEN", "NOTIFIER_CHAT_ID", "API_KEYS", "API_HOST", "API_PORT",
		"MIN_STOP_LOSS", "MAX_STOP_LOSS", "VOLATILITY_MULTIPLIER", "PARTIAL_TRIGGER_PERCENT",
		"PARTIAL_STOP_PERCENT", "SCALE_TP_WITH_VOLATILITY", "MARGIN_RISK_THRESHOLD",
		"MARGIN_CRITICAL_THRESHOLD", "DUST_THRESHOLD", "DETECT_PERIOD", "LEVEL_CHECK_PERIOD",
		"MARGIN_CHECK_PERIOD", "REPORT_PERIOD", "TECHNICAL_REFRESH_INTERVAL", "METRICS_PORT",
		"CONFIG_FILE", "REST_TIMEOUT", "SHUTDOWN_GRACE_PERIOD",
	}
	for _, k := range keys {
		os.Unsetenv(k)
	}
}

func TestLoad_RequiredFieldsAndDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("EXCHANGE_API_KEY", "key")
	os.Setenv("EXCHANGE_API_SECRET", "secret")
	os.Setenv("SYMBOLS", "BTCUSDT")
	os.Setenv("API_KEYS", "supersecret")
	defer clearEnv(t)

	s, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.ExchangeAPIKey != "key" || s.ExchangeAPISecret != "secret" {
		t.Fatalf("got credentials %q/%q", s.ExchangeAPIKey, s.ExchangeAPISecret)
	}
	if s.BaseURL == "" {
		t.Fatal("expected default BaseURL")
	}
	if s.MinStopLoss != 0.015 || s.MaxStopLoss != 0.05 {
		t.Fatalf("got MinStopLoss=%v MaxStopLoss=%v, want spec defaults", s.MinStopLoss, s.MaxStopLoss)
	}
	if s.PartialTrigger != 0.4 || s.PartialStopFraction != 0.30 {
		t.Fatalf("got PartialTrigger=%v PartialStopFraction=%v, want spec defaults", s.PartialTrigger, s.PartialStopFraction)
	}
	if s.DetectPeriod != 30*time.Second || s.LevelCheckPeriod != 10*time.Second || s.MarginCheckPeriod != 60*time.Second {
		t.Fatalf("got scheduler periods %v/%v/%v, want spec defaults", s.DetectPeriod, s.LevelCheckPeriod, s.MarginCheckPeriod)
	}
	if s.ReportPeriod != 6*time.Hour {
		t.Fatalf("ReportPeriod = %v, want 6h", s.ReportPeriod)
	}
	if s.ScaleTPWithVolatility {
		t.Fatal("ScaleTPWithVolatility must default to false per §9")
	}
}

func TestLoad_MissingCredentialsErrors(t *testing.T) {
	clearEnv(t)
	os.Setenv("SYMBOLS", "BTCUSDT")
	os.Setenv("API_KEYS", "x")
	defer clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected error when EXCHANGE_API_KEY/SECRET are missing")
	}
}

func TestLoad_MissingSymbolsErrors(t *testing.T) {
	clearEnv(t)
	os.Setenv("EXCHANGE_API_KEY", "key")
	os.Setenv("EXCHANGE_API_SECRET", "secret")
	os.Setenv("API_KEYS", "x")
	defer clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected error when SYMBOLS is missing")
	}
}

func TestLoad_CustomOverrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("EXCHANGE_API_KEY", "key")
	os.Setenv("EXCHANGE_API_SECRET", "secret")
	os.Setenv("SYMBOLS", "BTCUSDT,ETHUSDT")
	os.Setenv("API_KEYS", "a,b")
	os.Setenv("MIN_STOP_LOSS", "0.02")
	os.Setenv("MAX_STOP_LOSS", "0.06")
	os.Setenv("DETECT_PERIOD", "15")
	defer clearEnv(t)

	s, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(s.Symbols) != 2 || s.Symbols[1] != "ETHUSDT" {
		t.Fatalf("got Symbols=%v", s.Symbols)
	}
	if len(s.APIKeys) != 2 {
		t.Fatalf("got APIKeys=%v", s.APIKeys)
	}
	if s.MinStopLoss != 0.02 || s.MaxStopLoss != 0.06 {
		t.Fatalf("got MinStopLoss=%v MaxStopLoss=%v", s.MinStopLoss, s.MaxStopLoss)
	}
	if s.DetectPeriod != 15*time.Second {
		t.Fatalf("DetectPeriod = %v, want 15s", s.DetectPeriod)
	}
}
