// Command positionmanager runs the Bitunix position manager: it detects
// exchange-side futures positions, derives and enforces stop-loss and
// take-profit actions every tick, and exposes a Control API and a
// Prometheus metrics endpoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bitunix-position-manager/internal/cfg"
	"bitunix-position-manager/internal/controlapi"
	"bitunix-position-manager/internal/domain"
	"bitunix-position-manager/internal/exchange/bitunix"
	"bitunix-position-manager/internal/metrics"
	"bitunix-position-manager/internal/notifier"
	"bitunix-position-manager/internal/risk"
	"bitunix-position-manager/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	settings, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	store := domain.NewStore()
	notify := notifier.New(settings.NotifierToken, settings.NotifierChatID, m)
	exchange := bitunix.NewClient(settings.ExchangeAPIKey, settings.ExchangeAPISecret, settings.BaseURL, settings.RESTTimeout)
	closes := bitunix.NewCloseTracker(30*time.Second, 2*time.Second)
	defer closes.Stop()

	sched := scheduler.New(scheduler.Config{
		Symbols:                 settings.Symbols,
		DetectPeriod:            settings.DetectPeriod,
		LevelCheckPeriod:        settings.LevelCheckPeriod,
		MarginCheckPeriod:       settings.MarginCheckPeriod,
		ReportPeriod:            settings.ReportPeriod,
		TechnicalRefresh:        settings.TechnicalRefresh,
		ShutdownGrace:           settings.ShutdownGrace,
		MarginRiskThreshold:     settings.MarginRiskThreshold,
		MarginCriticalThreshold: settings.MarginCriticalThreshold,
		KlineInterval:           "15m",
		KlineLimit:              50,
		Risk: risk.Config{
			MinStopLoss:           settings.MinStopLoss,
			MaxStopLoss:           settings.MaxStopLoss,
			VolatilityMultiplier:  settings.VolatilityMultiplier,
			PartialTrigger:        settings.PartialTrigger,
			PartialStopFraction:   settings.PartialStopFraction,
			ScaleTPWithVolatility: settings.ScaleTPWithVolatility,
		},
	}, store, exchange, closes, notify, m)

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", settings.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	controlSrv := controlapi.New(fmt.Sprintf("%s:%d", settings.APIHost, settings.APIPort), settings.APIKeys, sched)
	go func() {
		if err := controlSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("control API server failed")
		}
	}()

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutdown signal received")
	cancel()

	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), settings.ShutdownGrace)
	defer shutdownCancel()
	if err := controlSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("control API shutdown failed")
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics server shutdown failed")
	}

	log.Info().Msg("shutdown complete")
}
