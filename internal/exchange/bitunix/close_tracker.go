package bitunix

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CloseStatus is the lifecycle state of a tracked reduce-only close.
type CloseStatus string

const (
	CloseStatusPending   CloseStatus = "PENDING"
	CloseStatusConfirmed CloseStatus = "CONFIRMED"
	CloseStatusPartial   CloseStatus = "PARTIAL_FILL"
	CloseStatusRejected  CloseStatus = "REJECTED"
	CloseStatusTimeout   CloseStatus = "TIMEOUT"
)

// MinConfirmedFillRatio is the minimum filled/requested ratio that lets a
// close be treated as authoritative for hit-flag purposes (§7 "Partial
// failures").
const MinConfirmedFillRatio = 0.95

// TrackedClose is one reduce-only close submission under observation.
type TrackedClose struct {
	ClientOrderID string
	Symbol        string
	RequestedQty  float64
	FilledQty     float64
	Status        CloseStatus
	SubmittedAt   time.Time
	TimeoutAt     time.Time
	Err           error
}

// CloseTracker tracks in-flight reduce-only closes for timeout and
// fill-confirmation bookkeeping. Unlike an order-placement tracker it never
// retries a failed submission internally (§4.1) — it only records what the
// single submission returned and watches for it to go stale.
type CloseTracker struct {
	mu               sync.RWMutex
	closes           map[string]*TrackedClose
	executionTimeout time.Duration
	ctx              context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
}

// NewCloseTracker starts a CloseTracker that sweeps for timed-out closes
// every statusCheckInterval.
func NewCloseTracker(executionTimeout, statusCheckInterval time.Duration) *CloseTracker {
	if executionTimeout <= 0 {
		executionTimeout = 30 * time.Second
	}
	if statusCheckInterval <= 0 {
		statusCheckInterval = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	ct := &CloseTracker{
		closes:           make(map[string]*TrackedClose),
		executionTimeout: executionTimeout,
		ctx:              ctx,
		cancel:           cancel,
	}

	ct.wg.Add(1)
	go ct.sweep(statusCheckInterval)

	return ct
}

// Stop halts the background sweep and waits for it to exit.
func (ct *CloseTracker) Stop() {
	ct.cancel()
	ct.wg.Wait()
}

// Record registers a submitted close and classifies its outcome: a result
// reporting Success with FilledQuantity >= MinConfirmedFillRatio*requested
// is CONFIRMED; a lesser fill is PARTIAL_FILL; a failed submission is
// REJECTED. It returns whether the close should be treated as authoritative
// for setting hit-flags.
func (ct *CloseTracker) Record(symbol string, requestedQty float64, result CloseResult, submitErr error) (confirmed bool, tracked *TrackedClose) {
	id := uuid.New().String()
	now := time.Now()

	t := &TrackedClose{
		ClientOrderID: id,
		Symbol:        symbol,
		RequestedQty:  requestedQty,
		SubmittedAt:   now,
		TimeoutAt:     now.Add(ct.executionTimeout),
	}

	switch {
	case submitErr != nil || !result.Success:
		t.Status = CloseStatusRejected
		t.Err = submitErr
		if t.Err == nil {
			t.Err = fmt.Errorf("close rejected: %s", result.Error)
		}
	default:
		t.FilledQty = result.FilledQuantity
		if requestedQty > 0 && result.FilledQuantity/requestedQty >= MinConfirmedFillRatio {
			t.Status = CloseStatusConfirmed
			confirmed = true
		} else {
			t.Status = CloseStatusPartial
		}
	}

	ct.mu.Lock()
	ct.closes[id] = t
	ct.mu.Unlock()

	log.Info().
		Str("symbol", symbol).
		Str("status", string(t.Status)).
		Float64("requested_qty", requestedQty).
		Float64("filled_qty", t.FilledQty).
		Msg("close submission recorded")

	return confirmed, t
}

func (ct *CloseTracker) sweep(interval time.Duration) {
	defer ct.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ct.ctx.Done():
			return
		case <-ticker.C:
			ct.expirePending()
		}
	}
}

func (ct *CloseTracker) expirePending() {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	now := time.Now()
	for id, t := range ct.closes {
		if t.Status == CloseStatusPartial && now.After(t.TimeoutAt) {
			t.Status = CloseStatusTimeout
			log.Warn().
				Str("client_order_id", id).
				Str("symbol", t.Symbol).
				Msg("close confirmation timed out before reaching minimum fill ratio")
		}
	}
}

// Snapshot returns a copy of every tracked close, for diagnostics.
func (ct *CloseTracker) Snapshot() []TrackedClose {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	out := make([]TrackedClose, 0, len(ct.closes))
	for _, t := range ct.closes {
		out = append(out, *t)
	}
	return out
}
