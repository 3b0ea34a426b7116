// Package risk is the stateless decision engine: it turns a position's
// technical levels and current price into a stop-loss envelope, a
// take-profit ladder, and the ordered list of close actions for one tick.
// It performs no I/O and mutates nothing — callers apply hit-flags only
// after the corresponding close succeeds.
package risk

import "bitunix-position-manager/internal/domain"

// Config holds the tunable risk constants, all overridable from env (§6).
type Config struct {
	MinStopLoss           float64 // fraction, default 0.015
	MaxStopLoss           float64 // fraction, default 0.05
	VolatilityMultiplier  float64 // default 1.5
	PartialTrigger        float64 // fraction of stop distance, default 0.4
	PartialStopFraction   float64 // fraction of quantity_at_detection, default 0.30
	ScaleTPWithVolatility bool    // default false (§9 open question: default off)
}

// DefaultConfig matches spec §4.3's stated defaults.
func DefaultConfig() Config {
	return Config{
		MinStopLoss:           0.015,
		MaxStopLoss:           0.05,
		VolatilityMultiplier:  1.5,
		PartialTrigger:        0.4,
		PartialStopFraction:   0.30,
		ScaleTPWithVolatility: false,
	}
}

// takeProfitTargets are the fixed profit-fraction/close-fraction pairs
// making up the three-level ladder (§4.3.2).
var takeProfitTargets = [3]struct {
	profit float64
	close  float64
}{
	{profit: 0.0025, close: 0.50},
	{profit: 0.0030, close: 0.30},
	{profit: 0.0035, close: 0.20},
}

// ComputeStopLevels derives the two-tier stop-loss envelope for a position
// at entry. currentPrice is the latest observed price at the moment of
// computation (the scheduler passes the price fetched in the same
// level-check tick, also for a freshly detected position).
func ComputeStopLevels(entry float64, side domain.Side, currentPrice, atr, support, resistance float64, cfg Config) domain.StopLevels {
	full := baseFullStop(side, currentPrice, atr, support, resistance, cfg)
	full = clampFullStop(entry, side, full, cfg)
	partial := partialStopPrice(entry, side, full, cfg)
	return domain.StopLevels{FullStop: full, PartialStop: partial}
}

func baseFullStop(side domain.Side, currentPrice, atr, support, resistance float64, cfg Config) float64 {
	if side == domain.Long {
		bySupport := support * (1 - 0.001)
		byATR := currentPrice - atr*cfg.VolatilityMultiplier
		// Tighter of the two for LONG is the higher value.
		return max(bySupport, byATR)
	}
	byResistance := resistance * (1 + 0.001)
	byATR := currentPrice + atr*cfg.VolatilityMultiplier
	// Tighter of the two for SHORT is the lower value.
	return min(byResistance, byATR)
}

func clampFullStop(entry float64, side domain.Side, base float64, cfg Config) float64 {
	if side == domain.Long {
		lower := entry * (1 - cfg.MaxStopLoss) // furthest allowed (largest loss)
		upper := entry * (1 - cfg.MinStopLoss) // closest allowed (smallest loss)
		return clamp(base, lower, upper)
	}
	lower := entry * (1 + cfg.MinStopLoss)
	upper := entry * (1 + cfg.MaxStopLoss)
	return clamp(base, lower, upper)
}

func partialStopPrice(entry float64, side domain.Side, fullStop float64, cfg Config) float64 {
	if side == domain.Long {
		distance := entry - fullStop
		return entry - distance*cfg.PartialTrigger
	}
	distance := fullStop - entry
	return entry + distance*cfg.PartialTrigger
}

// BuildTakeProfitLadder constructs the three fixed take-profit rungs against
// entry. When cfg.ScaleTPWithVolatility and atr/closePrice are both
// positive, each target is widened by 1+(atr/close)*vol_mul; scaling is
// frozen at ladder-construction time, never re-applied.
func BuildTakeProfitLadder(entry float64, side domain.Side, atr, closePrice float64, cfg Config) []domain.TakeProfitLevel {
	levels := make([]domain.TakeProfitLevel, len(takeProfitTargets))
	for i, t := range takeProfitTargets {
		target := t.profit
		if cfg.ScaleTPWithVolatility && atr > 0 && closePrice > 0 {
			target *= 1 + (atr/closePrice)*cfg.VolatilityMultiplier
		}

		var price float64
		if side == domain.Long {
			price = entry * (1 + target)
		} else {
			price = entry * (1 - target)
		}

		levels[i] = domain.TakeProfitLevel{
			Idx:           i + 1,
			TargetPrice:   price,
			CloseFraction: t.close,
		}
	}
	return levels
}

// DeriveActions evaluates §4.3.3's priority order against p's current state
// and currentPrice, returning the ordered actions for this tick. It does not
// mutate p — hit-flags and quantity are updated by the caller only once the
// corresponding close succeeds.
func DeriveActions(p domain.Position, currentPrice float64, cfg Config) []domain.Action {
	if triggered(p.Side, currentPrice, p.StopLevels.FullStop, true) {
		return []domain.Action{{
			Kind:     domain.FullStopLoss,
			Symbol:   p.Symbol,
			Quantity: p.Quantity,
			Reason:   "full stop-loss reached",
		}}
	}

	var actions []domain.Action

	if !p.PartialStopHit && triggered(p.Side, currentPrice, p.StopLevels.PartialStop, true) {
		actions = append(actions, domain.Action{
			Kind:     domain.PartialStopLoss,
			Symbol:   p.Symbol,
			Quantity: p.QtyDetected * cfg.PartialStopFraction,
			Reason:   "partial stop-loss reached",
		})
	}

	for _, lvl := range p.TPLevels {
		if lvl.Hit {
			continue
		}
		if !triggered(p.Side, currentPrice, lvl.TargetPrice, false) {
			break // strict index order: a later level cannot fire before this one
		}
		actions = append(actions, domain.Action{
			Kind:     domain.TakeProfit,
			Symbol:   p.Symbol,
			Quantity: p.QtyDetected * lvl.CloseFraction,
			Reason:   "take-profit level reached",
			TPIndex:  lvl.Idx,
		})
	}

	return actions
}

// triggered applies the directional comparison for stop levels (isStop=true,
// price moving against the position) or take-profit levels (isStop=false,
// price moving in the position's favor). Both use ≥/≤, never strict, per
// §8's boundary-case rule.
func triggered(side domain.Side, currentPrice, level float64, isStop bool) bool {
	if isStop {
		if side == domain.Long {
			return currentPrice <= level
		}
		return currentPrice >= level
	}
	if side == domain.Long {
		return currentPrice >= level
	}
	return currentPrice <= level
}

func clamp(v, lower, upper float64) float64 {
	if lower > upper {
		lower, upper = upper, lower
	}
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
