// Package scheduler owns the four periodic tasks that drive the position
// manager: detect, level_check, margin_check, and report (§4.5). The
// Position Store is their only shared mutable state; every tick takes the
// store's lock only to read or write, never across exchange I/O.
package scheduler

import (
	"context"
	"sync"
	"time"

	"bitunix-position-manager/internal/domain"
	"bitunix-position-manager/internal/exchange/bitunix"
	"bitunix-position-manager/internal/metrics"
	"bitunix-position-manager/internal/notifier"
	"bitunix-position-manager/internal/risk"
	"bitunix-position-manager/internal/technical"

	"github.com/rs/zerolog/log"
)

// Config bundles every period and threshold the Scheduler needs, sourced
// from cfg.Settings (kept decoupled from the cfg package to avoid an import
// cycle and to keep the scheduler testable with ad-hoc values).
type Config struct {
	Symbols []string

	DetectPeriod      time.Duration
	LevelCheckPeriod  time.Duration
	MarginCheckPeriod time.Duration
	ReportPeriod      time.Duration
	TechnicalRefresh  time.Duration
	ShutdownGrace     time.Duration

	MarginRiskThreshold     float64
	MarginCriticalThreshold float64

	KlineInterval string
	KlineLimit    int

	Risk risk.Config
}

// Scheduler wires the Position Store, Risk Engine, Exchange Adapter,
// Notifier, and Metrics together and drives the four periodic tasks.
type Scheduler struct {
	cfg      Config
	store    *domain.Store
	exchange *bitunix.Client
	closes   *bitunix.CloseTracker
	notify   *notifier.Notifier
	metrics  *metrics.Metrics

	symbolSet map[string]bool
}

// New builds a Scheduler. exchange, closes, and store must be non-nil;
// notify and m may be nil in which case their side effects are skipped.
func New(cfg Config, store *domain.Store, exchange *bitunix.Client, closes *bitunix.CloseTracker, notify *notifier.Notifier, m *metrics.Metrics) *Scheduler {
	set := make(map[string]bool, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		set[s] = true
	}
	if cfg.KlineInterval == "" {
		cfg.KlineInterval = "15m"
	}
	if cfg.KlineLimit == 0 {
		cfg.KlineLimit = 50
	}
	return &Scheduler{
		cfg:       cfg,
		store:     store,
		exchange:  exchange,
		closes:    closes,
		notify:    notify,
		metrics:   m,
		symbolSet: set,
	}
}

// Run starts the four periodic tasks and blocks until ctx is cancelled, then
// waits up to cfg.ShutdownGrace for in-flight ticks to finish.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup

	loop := func(period time.Duration, tick func(context.Context)) {
		defer wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick(ctx)
			}
		}
	}

	wg.Add(4)
	go loop(s.cfg.DetectPeriod, s.detectTick)
	go loop(s.cfg.LevelCheckPeriod, s.levelCheckTick)
	go loop(s.cfg.MarginCheckPeriod, s.marginCheckTick)
	go loop(s.cfg.ReportPeriod, s.reportTick)

	<-ctx.Done()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	grace := s.cfg.ShutdownGrace
	if grace <= 0 {
		grace = 30 * time.Second
	}
	select {
	case <-done:
		log.Info().Msg("scheduler: all tasks stopped")
	case <-time.After(grace):
		log.Warn().Msg("scheduler: shutdown grace period elapsed, forcing exit")
	}
}

// ForceDetect runs one detect tick immediately, for the Control API's
// POST /sync endpoint (§4.7).
func (s *Scheduler) ForceDetect(ctx context.Context) {
	s.detectTick(ctx)
}

// ForceClose submits a full close for symbol outside the normal level_check
// priority evaluation, for the Control API's POST /close/{symbol} endpoint
// (§4.7). It reports whether symbol was managed and the close was confirmed.
func (s *Scheduler) ForceClose(ctx context.Context, symbol string) bool {
	pos, ok := s.store.Get(symbol)
	if !ok {
		return false
	}
	action := domain.Action{
		Kind:     domain.FullStopLoss,
		Symbol:   symbol,
		Quantity: pos.Quantity,
		Reason:   "forced close via control API",
	}
	confirmed, _ := s.executeAction(ctx, symbol, action, pos.CurrentPrice)
	return confirmed
}

// Snapshot returns every currently managed Position, for the Control API's
// GET /positions endpoint.
func (s *Scheduler) Snapshot() []domain.Position {
	return s.store.Snapshot()
}

// Stats returns the current PerformanceStats snapshot, for the Control
// API's GET /status endpoint.
func (s *Scheduler) Stats() domain.PerformanceStats {
	return s.store.Stats()
}

// ManagedCount reports the number of currently managed positions.
func (s *Scheduler) ManagedCount() int {
	return s.store.Len()
}

// detectTick lists open positions, upserts newly-seen allow-listed symbols,
// and removes symbols the exchange no longer reports after two consecutive
// misses (§3.3, I-6).
func (s *Scheduler) detectTick(ctx context.Context) {
	start := time.Now()
	defer s.observeDetect(start)

	positions, err := s.exchange.ListOpenPositions(ctx)
	if err != nil {
		log.Error().Err(err).Msg("detect tick: list open positions failed")
		return
	}

	seen := make(map[string]bool, len(positions))
	for _, snap := range positions {
		if !s.symbolSet[snap.Symbol] {
			continue
		}
		seen[snap.Symbol] = true

		existed := false
		if _, ok := s.store.Get(snap.Symbol); ok {
			existed = true
		}
		s.store.Upsert(snap)
		if !existed {
			log.Info().Str("symbol", snap.Symbol).Str("side", string(snap.Side)).Msg("position detected")
			s.notifyOpened(snap)
		}
	}

	for _, symbol := range s.store.Symbols() {
		if seen[symbol] {
			continue
		}
		if removed := s.store.MarkMissing(symbol); removed {
			s.store.Remove(symbol)
			log.Info().Str("symbol", symbol).Msg("position removed: absent for two consecutive detect ticks")
		}
	}

	if s.metrics != nil {
		s.metrics.SetManagedPositions(s.store.Len())
	}
}

func (s *Scheduler) notifyOpened(snap domain.PositionSnapshot) {
	if s.notify == nil {
		return
	}
	s.notify.Notify(notifier.PositionOpened(snap.Symbol, string(snap.Side), snap.Quantity, snap.EntryPrice))
}

// levelCheckTick refreshes price and technicals for every managed symbol,
// derives actions, and executes them in priority order.
func (s *Scheduler) levelCheckTick(ctx context.Context) {
	start := time.Now()
	defer s.observeLevelCheck(start)

	for _, symbol := range s.store.Symbols() {
		s.processSymbol(ctx, symbol)
	}
}

func (s *Scheduler) processSymbol(ctx context.Context, symbol string) {
	pos, ok := s.store.Get(symbol)
	if !ok {
		return
	}

	price, err := s.exchange.CurrentPrice(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("level check: price refresh failed")
		return
	}

	needsTechnicals := !pos.HasTechnicals || time.Since(pos.TechnicalLevels.Ts) > s.cfg.TechnicalRefresh
	if needsTechnicals {
		s.refreshTechnicals(ctx, symbol, price)
		pos, ok = s.store.Get(symbol)
		if !ok {
			return
		}
	}

	s.store.Mutate(symbol, func(p *domain.Position) {
		p.CurrentPrice = price
		p.LastUpdate = time.Now()
	})
	pos, ok = s.store.Get(symbol)
	if !ok {
		return
	}

	actions := risk.DeriveActions(pos, price, s.cfg.Risk)
	for _, action := range actions {
		if _, cont := s.executeAction(ctx, symbol, action, price); !cont {
			// A failed close, or a close that removed the position, aborts
			// remaining actions for this symbol this tick; the next
			// level_check tick re-evaluates from fresh state.
			break
		}
	}
}

func (s *Scheduler) refreshTechnicals(ctx context.Context, symbol string, price float64) {
	candles, err := s.exchange.Klines(ctx, symbol, s.cfg.KlineInterval, s.cfg.KlineLimit)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("level check: kline refresh failed")
		return
	}

	atr := technical.ATR(candles)
	levels := technical.SupportResistance(candles, price)

	s.store.Mutate(symbol, func(p *domain.Position) {
		p.TechnicalLevels = domain.TechnicalLevels{ATR: atr, Support: levels.Support, Resistance: levels.Resistance, Ts: time.Now()}
		p.HasTechnicals = true
		stop := risk.ComputeStopLevels(p.EntryPrice, p.Side, price, atr, levels.Support, levels.Resistance, s.cfg.Risk)
		p.StopLevels = stop
		if len(p.TPLevels) == 0 {
			p.TPLevels = risk.BuildTakeProfitLadder(p.EntryPrice, p.Side, atr, price, s.cfg.Risk)
		}
	})
}

// executeAction submits a single close for action and, on a confirmed fill,
// applies the resulting hit-flag/quantity change to the store. confirmed
// reports whether the close was authoritative; cont reports whether the
// caller should keep evaluating further actions for this symbol this tick
// (false once the position has been removed from the store).
func (s *Scheduler) executeAction(ctx context.Context, symbol string, action domain.Action, price float64) (confirmed, cont bool) {
	pos, ok := s.store.Get(symbol)
	if !ok {
		return false, false
	}

	result, err := s.exchange.ClosePosition(ctx, symbol, action.Quantity, pos.Side, action.Reason)
	confirmed, tracked := s.closes.Record(symbol, action.Quantity, result, err)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Str("kind", string(action.Kind)).Msg("close submission failed")
		return false, false
	}
	if !confirmed {
		log.Warn().Str("symbol", symbol).Str("status", string(tracked.Status)).Msg("close did not reach confirmed fill ratio")
		return false, false
	}

	remaining := pos.Quantity - tracked.FilledQty
	dust := pos.IsDust(remaining)

	s.store.Mutate(symbol, func(p *domain.Position) {
		p.Quantity = remaining
		switch action.Kind {
		case domain.PartialStopLoss:
			p.PartialStopHit = true
		case domain.TakeProfit:
			for i := range p.TPLevels {
				if p.TPLevels[i].Idx == action.TPIndex {
					p.TPLevels[i].Hit = true
				}
			}
		}
	})

	if s.metrics != nil {
		s.metrics.RecordAction(action.Kind)
	}
	if s.notify != nil {
		s.notify.Notify(notifier.ActionExecuted(symbol, string(action.Kind), tracked.FilledQty, price))
	}

	if action.Kind == domain.FullStopLoss || dust {
		pnl := (price - pos.EntryPrice) * tracked.FilledQty
		if pos.Side == domain.Short {
			pnl = -pnl
		}
		s.store.RecordAction(action.Kind)
		s.store.RecordClosed(pnl)
		s.store.Remove(symbol)
		return true, false
	}

	s.store.RecordAction(action.Kind)
	return true, true
}

// marginCheckTick pulls the account-wide margin snapshot and reacts per
// §4.5's two thresholds.
func (s *Scheduler) marginCheckTick(ctx context.Context) {
	margin, err := s.exchange.AccountMargin(ctx)
	if err != nil {
		log.Error().Err(err).Msg("margin check: fetch failed")
		return
	}

	if s.metrics != nil {
		s.metrics.SetMarginRatio(margin.MarginRatio, s.cfg.MarginRiskThreshold)
	}

	if margin.MarginRatio <= s.cfg.MarginRiskThreshold {
		return
	}

	if s.notify != nil {
		s.notify.Notify(notifier.MarginWarn(margin.MarginRatio, s.cfg.MarginRiskThreshold))
	}

	if margin.MarginRatio <= s.cfg.MarginCriticalThreshold {
		return
	}

	for _, symbol := range s.store.Symbols() {
		pos, ok := s.store.Get(symbol)
		if !ok {
			continue
		}
		action := domain.Action{
			Kind:     domain.MarginReduce,
			Symbol:   symbol,
			Quantity: pos.Quantity * 0.5,
			Reason:   "margin critical threshold breached",
		}
		s.executeAction(ctx, symbol, action, pos.CurrentPrice)
	}
}

// reportTick computes and emits the current PerformanceStats snapshot.
func (s *Scheduler) reportTick(context.Context) {
	stats := s.store.Stats()
	if s.notify != nil {
		s.notify.Notify(notifier.Report(stats.TotalManaged, stats.Winning, stats.Losing, stats.TotalTakeProfits, stats.TotalStopLosses, stats.TotalPartialStops, stats.TotalPnL))
	}
}

func (s *Scheduler) observeDetect(start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.DetectTickDuration.Observe(time.Since(start).Seconds())
}

func (s *Scheduler) observeLevelCheck(start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.LevelCheckTickDuration.Observe(time.Since(start).Seconds())
}
