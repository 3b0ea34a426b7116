package domain

import "testing"

func TestUpsert_CreatesNewPosition(t *testing.T) {
	s := NewStore()
	p := s.Upsert(PositionSnapshot{Symbol: "BTCUSDT", Side: Long, Quantity: 0.1, EntryPrice: 300, Leverage: 10})

	if p.Symbol != "BTCUSDT" || p.QtyDetected != 0.1 || p.EntryPrice != 300 {
		t.Fatalf("got %+v", p)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestUpsert_RefreshPreservesHitFlagsAndQtyDetected(t *testing.T) {
	s := NewStore()
	s.Upsert(PositionSnapshot{Symbol: "BTCUSDT", Side: Long, Quantity: 0.1, EntryPrice: 300})
	s.Mutate("BTCUSDT", func(p *Position) {
		p.PartialStopHit = true
		p.QtyDetected = 0.1
	})

	s.Upsert(PositionSnapshot{Symbol: "BTCUSDT", Side: Long, Quantity: 0.07, EntryPrice: 9999, Leverage: 20})

	got, ok := s.Get("BTCUSDT")
	if !ok {
		t.Fatal("expected position to still exist")
	}
	if !got.PartialStopHit {
		t.Fatal("PartialStopHit should survive a refresh")
	}
	if got.QtyDetected != 0.1 {
		t.Fatalf("QtyDetected = %v, want unchanged 0.1", got.QtyDetected)
	}
	if got.Quantity != 0.07 {
		t.Fatalf("Quantity = %v, want refreshed 0.07", got.Quantity)
	}
	if got.EntryPrice != 300 {
		t.Fatalf("EntryPrice = %v, want unchanged 300 (not re-read per §3.1)", got.EntryPrice)
	}
}

func TestUpsert_TwiceUnchangedIsIdempotent(t *testing.T) {
	s := NewStore()
	snap := PositionSnapshot{Symbol: "BTCUSDT", Side: Long, Quantity: 0.1, EntryPrice: 300}
	s.Upsert(snap)
	before, _ := s.Get("BTCUSDT")

	s.Upsert(snap)
	after, _ := s.Get("BTCUSDT")

	if before.ManagedSince != after.ManagedSince {
		t.Fatal("second upsert must not reset ManagedSince")
	}
}

func TestMarkMissing_RemovesAfterTwoConsecutiveTicks(t *testing.T) {
	s := NewStore()
	s.Upsert(PositionSnapshot{Symbol: "BTCUSDT", Side: Long, Quantity: 0.1, EntryPrice: 300})

	if s.MarkMissing("BTCUSDT") {
		t.Fatal("should not remove after one missed tick")
	}
	if _, ok := s.Get("BTCUSDT"); !ok {
		t.Fatal("position should still be present after one missed tick")
	}

	if !s.MarkMissing("BTCUSDT") {
		t.Fatal("should signal removal after two consecutive missed ticks")
	}
}

func TestMarkMissing_ResetByUpsert(t *testing.T) {
	s := NewStore()
	s.Upsert(PositionSnapshot{Symbol: "BTCUSDT", Side: Long, Quantity: 0.1, EntryPrice: 300})
	s.MarkMissing("BTCUSDT")
	s.Upsert(PositionSnapshot{Symbol: "BTCUSDT", Side: Long, Quantity: 0.1, EntryPrice: 300}) // reappears

	if s.MarkMissing("BTCUSDT") {
		t.Fatal("missing counter should have reset on reappearance")
	}
}

func TestRemove_DropsPosition(t *testing.T) {
	s := NewStore()
	s.Upsert(PositionSnapshot{Symbol: "BTCUSDT", Side: Long, Quantity: 0.1, EntryPrice: 300})
	s.Remove("BTCUSDT")

	if _, ok := s.Get("BTCUSDT"); ok {
		t.Fatal("expected position to be removed")
	}
}

func TestSnapshot_ReturnsIndependentCopies(t *testing.T) {
	s := NewStore()
	s.Upsert(PositionSnapshot{Symbol: "BTCUSDT", Side: Long, Quantity: 0.1, EntryPrice: 300})

	snap := s.Snapshot()
	snap[0].Quantity = 999

	got, _ := s.Get("BTCUSDT")
	if got.Quantity == 999 {
		t.Fatal("mutating a snapshot must not affect the stored position")
	}
}

func TestRecordAction_IncrementsCorrectCounter(t *testing.T) {
	s := NewStore()
	s.RecordAction(PartialStopLoss)
	s.RecordAction(FullStopLoss)
	s.RecordAction(TakeProfit)
	s.RecordAction(TakeProfit)

	stats := s.Stats()
	if stats.TotalPartialStops != 1 || stats.TotalStopLosses != 1 || stats.TotalTakeProfits != 2 {
		t.Fatalf("got %+v", stats)
	}
}

func TestRecordClosed_TalliesWinLoss(t *testing.T) {
	s := NewStore()
	s.RecordClosed(10.0)
	s.RecordClosed(-5.0)

	stats := s.Stats()
	if stats.Winning != 1 || stats.Losing != 1 || stats.TotalPnL != 5.0 {
		t.Fatalf("got %+v", stats)
	}
}

func TestIsDust(t *testing.T) {
	p := Position{QtyDetected: 1.0}
	if !p.IsDust(0) {
		t.Fatal("zero quantity must be dust")
	}
	if !p.IsDust(0.05) {
		t.Fatal("5% of quantity_at_detection must be dust")
	}
	if p.IsDust(0.06) {
		t.Fatal("6% of quantity_at_detection must not be dust")
	}
}
