package cfg

import (
	"testing"
	"time"
)

func validSettings() *Settings {
	return &Settings{
		ExchangeAPIKey:          "key",
		ExchangeAPISecret:       "secret",
		BaseURL:                 "https://fapi.bitunix.com",
		Symbols:                 []string{"BTCUSDT"},
		APIKeys:                 []string{"supersecret"},
		APIPort:                 8090,
		MetricsPort:             9090,
		MinStopLoss:             0.015,
		MaxStopLoss:             0.05,
		PartialTrigger:          0.4,
		PartialStopFraction:     0.30,
		MarginRiskThreshold:     0.70,
		MarginCriticalThreshold: 0.85,
		DustThreshold:           0.05,
		DetectPeriod:            30 * time.Second,
		LevelCheckPeriod:        10 * time.Second,
		MarginCheckPeriod:       60 * time.Second,
		ReportPeriod:            6 * time.Hour,
		TechnicalRefresh:        time.Hour,
	}
}

func TestValidateSettings_Valid(t *testing.T) {
	if err := validateSettings(validSettings()); err != nil {
		t.Fatalf("expected valid settings to pass, got %v", err)
	}
}

func TestValidateSettings_MinStopLossMustBeBelowMax(t *testing.T) {
	s := validSettings()
	s.MinStopLoss = 0.06
	if err := validateSettings(s); err == nil {
		t.Fatal("expected error when MinStopLoss >= MaxStopLoss")
	}
}

func TestValidateSettings_MarginThresholdsOrdered(t *testing.T) {
	s := validSettings()
	s.MarginRiskThreshold = 0.90
	if err := validateSettings(s); err == nil {
		t.Fatal("expected error when MarginRiskThreshold >= MarginCriticalThreshold")
	}
}

func TestValidateSettings_RejectsEmptySymbols(t *testing.T) {
	s := validSettings()
	s.Symbols = nil
	if err := validateSettings(s); err == nil {
		t.Fatal("expected error for empty Symbols")
	}
}

func TestValidateSettings_RejectsEmptyAPIKeys(t *testing.T) {
	s := validSettings()
	s.APIKeys = nil
	if err := validateSettings(s); err == nil {
		t.Fatal("expected error for empty APIKeys")
	}
}

func TestValidateSettings_RejectsShortSchedulerPeriods(t *testing.T) {
	s := validSettings()
	s.ReportPeriod = 10 * time.Second
	if err := validateSettings(s); err == nil {
		t.Fatal("expected error for ReportPeriod below 1m")
	}
}

func TestValidateSettings_RejectsOutOfRangePorts(t *testing.T) {
	s := validSettings()
	s.APIPort = 80
	if err := validateSettings(s); err == nil {
		t.Fatal("expected error for APIPort below MinAPIPort")
	}
}

func TestValidateSettings_RejectsDustThresholdOutOfRange(t *testing.T) {
	s := validSettings()
	s.DustThreshold = 1.5
	if err := validateSettings(s); err == nil {
		t.Fatal("expected error for DustThreshold >= 1")
	}
}
