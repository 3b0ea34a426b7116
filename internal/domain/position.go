// Package domain holds the core types of the position-management engine —
// Position, Action, AccountMargin, PerformanceStats — and the in-memory
// Position Store that is the sole authority for the managed set.
package domain

import "time"

// Side is the direction of a managed position.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// ActionKind identifies the kind of close action the Risk Engine emitted.
type ActionKind string

const (
	PartialStopLoss ActionKind = "PARTIAL_STOP_LOSS"
	FullStopLoss    ActionKind = "FULL_STOP_LOSS"
	TakeProfit      ActionKind = "TAKE_PROFIT"

	// MarginReduce is a margin-critical forced reduction (§4.5). It is not
	// a Risk Engine action and never sets PartialStopHit or counts toward
	// TotalPartialStops — it only shrinks quantity.
	MarginReduce ActionKind = "MARGIN_REDUCE"
)

// TechnicalLevels is the ATR/support/resistance snapshot refreshed at most
// once an hour per position.
type TechnicalLevels struct {
	ATR        float64
	Support    float64
	Resistance float64
	Ts         time.Time
}

// StopLevels is the derived two-tier stop-loss envelope for a position.
type StopLevels struct {
	FullStop    float64
	PartialStop float64
}

// TakeProfitLevel is one rung of the take-profit ladder.
type TakeProfitLevel struct {
	Idx           int
	TargetPrice   float64
	CloseFraction float64
	Hit           bool
}

// Position is the unit of management: one symbol's open exposure plus the
// risk envelope attached to it.
type Position struct {
	Symbol       string
	Side         Side
	Quantity     float64 // current open quantity, decreases as partials close
	QtyDetected  float64 // quantity_at_detection — the basis for all close-fraction math
	EntryPrice   float64
	Leverage     int
	ManagedSince time.Time
	CurrentPrice float64

	TechnicalLevels TechnicalLevels
	HasTechnicals   bool // false until the first technical refresh succeeds

	StopLevels StopLevels
	TPLevels   []TakeProfitLevel

	PartialStopHit bool
	LastUpdate     time.Time

	// missedDetectTicks counts consecutive detect ticks where the exchange
	// did not report this symbol; reaching 2 removes the position (§3.3, I-6).
	missedDetectTicks int
}

// DustThresholdFraction is the fraction of quantity_at_detection at or below
// which a position is considered fully closed and removed from the store.
const DustThresholdFraction = 0.05

// IsDust reports whether qty is at or below the dust threshold relative to
// the quantity observed at detection, or exactly zero.
func (p *Position) IsDust(qty float64) bool {
	if qty <= 0 {
		return true
	}
	return qty <= p.QtyDetected*DustThresholdFraction
}

// AccountMargin is the account-wide margin snapshot used by the margin_check
// task.
type AccountMargin struct {
	WalletBalance    float64
	MarginBalance    float64
	AvailableBalance float64
	UnrealizedPnL    float64
	MarginRatio      float64
}

// PerformanceStats are the running counters emitted by the report task and
// exposed via the Control API.
type PerformanceStats struct {
	TotalManaged      int
	Winning           int
	Losing            int
	TotalTakeProfits  int
	TotalStopLosses   int
	TotalPartialStops int
	TotalPnL          float64
}

// Action is a decision emitted by the Risk Engine for a single tick.
type Action struct {
	Kind     ActionKind
	Symbol   string
	Quantity float64
	Reason   string
	TPIndex  int // present when Kind == TakeProfit, 1-based
}
