package technical

import "testing"

func candles(closes ...float64) []Candle {
	out := make([]Candle, len(closes))
	for i, c := range closes {
		out[i] = Candle{Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1}
	}
	return out
}

func TestATR_InsufficientCandlesReturnsDefault(t *testing.T) {
	cs := candles(100, 101, 102) // fewer than ATRPeriod+1
	got := ATR(cs)
	want := cs[len(cs)-1].Close * 0.01
	if got != want {
		t.Fatalf("ATR() = %v, want default %v", got, want)
	}
}

func TestATR_ExactlyPeriodCandlesIsStillInsufficient(t *testing.T) {
	// exactly ATRPeriod candles gives only ATRPeriod-1 true-range samples
	// against a prior close; the spec requires period+1.
	closes := make([]float64, ATRPeriod)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	cs := candles(closes...)
	got := ATR(cs)
	want := cs[len(cs)-1].Close * 0.01
	if got != want {
		t.Fatalf("ATR() = %v, want default %v", got, want)
	}
}

func TestATR_AllLossesStillPositive(t *testing.T) {
	cs := make([]Candle, ATRPeriod+1)
	price := 200.0
	for i := range cs {
		cs[i] = Candle{High: price + 0.5, Low: price - 0.5, Close: price}
		price -= 1
	}
	got := ATR(cs)
	if got <= 0 {
		t.Fatalf("ATR() = %v, want > 0", got)
	}
}

func TestATR_PositiveAverageOfTrueRanges(t *testing.T) {
	cs := make([]Candle, ATRPeriod+1)
	for i := range cs {
		price := 100.0 + float64(i)
		cs[i] = Candle{High: price + 2, Low: price - 2, Close: price}
	}
	got := ATR(cs)
	if got <= 0 {
		t.Fatalf("ATR() = %v, want > 0", got)
	}
}

func TestSupportResistance_RollingWindow(t *testing.T) {
	cs := candles(100, 101, 99, 105, 95, 102)
	lv := SupportResistance(cs, 100)
	if lv.Support != 94 { // min(low) = 95-1
		t.Fatalf("Support = %v, want 94", lv.Support)
	}
	if lv.Resistance != 106 { // max(high) = 105+1
		t.Fatalf("Resistance = %v, want 106", lv.Resistance)
	}
}

func TestSupportResistance_WidensOnBreach(t *testing.T) {
	cs := candles(100, 101, 99)
	lv := SupportResistance(cs, 50) // breaches support
	if lv.Support != 50*0.995 {
		t.Fatalf("Support = %v, want widened to %v", lv.Support, 50*0.995)
	}

	high := 200.0
	lv2 := SupportResistance(cs, high) // breaches resistance
	if lv2.Resistance != high*1.005 {
		t.Fatalf("Resistance = %v, want widened to %v", lv2.Resistance, high*1.005)
	}
}

func TestSupportResistance_EmptySeriesUsesCurrentPrice(t *testing.T) {
	lv := SupportResistance(nil, 100)
	if lv.Support != 98 || lv.Resistance != 102 {
		t.Fatalf("got %+v, want support=98 resistance=102", lv)
	}
}
