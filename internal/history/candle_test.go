package history

import (
	"testing"
)

// go test -v --run TestSnapRange
func TestSnapRange(t *testing.T) {
	res := int64(60_000)

	cases := []struct {
		name     string
		from, to int64
		wantFrom int64
		wantTo   int64
	}{
		{"already aligned", 120_000, 240_000, 120_000, 240_000},
		{"snaps outward", 130_000, 190_000, 120_000, 240_000},
		{"equal bounds cover one bucket", 120_000, 120_000, 120_000, 180_000},
		{"equal unaligned bounds", 130_000, 130_000, 120_000, 180_000},
	}

	for _, tc := range cases {
		from, to := SnapRange(tc.from, tc.to, res)
		if from != tc.wantFrom || to != tc.wantTo {
			t.Errorf("%s: got [%d, %d), want [%d, %d)", tc.name, from, to, tc.wantFrom, tc.wantTo)
		}
	}
}

// go test -v --run TestFoldCandlesSingleMinute
func TestFoldCandlesSingleMinute(t *testing.T) {
	base := int64(1_700_000_040_000) // aligned to a minute
	trades := []Trade{
		{Price: 100, Size: 1, Side: SideBuy, Ts: base + 1_000, Seq: 10},
		{Price: 101, Size: 2, Side: SideBuy, Ts: base + 20_000, Seq: 11},
		{Price: 99, Size: 1, Side: SideSell, Ts: base + 55_000, Seq: 12},
	}

	candles := FoldCandles(trades, 60_000, base, base+60_000)
	if len(candles) != 1 {
		t.Fatalf("got %d candles, want 1", len(candles))
	}

	c := candles[0]
	if c.Start != base {
		t.Errorf("start = %d, want %d", c.Start, base)
	}
	if c.Open != 100 || c.High != 101 || c.Low != 99 || c.Close != 99 {
		t.Errorf("ohlc = %v/%v/%v/%v, want 100/101/99/99", c.Open, c.High, c.Low, c.Close)
	}
	if c.Volume != 4 {
		t.Errorf("volume = %v, want 4", c.Volume)
	}
}

// go test -v --run TestFoldCandlesInvariants
func TestFoldCandlesInvariants(t *testing.T) {
	base := int64(1_700_000_000_000) - 1_700_000_000_000%60_000
	trades := []Trade{
		{Price: 50, Size: 1, Ts: base + 5_000},
		{Price: 70, Size: 2, Ts: base + 10_000},
		{Price: 40, Size: 3, Ts: base + 15_000},
		{Price: 60, Size: 1, Ts: base + 125_000}, // two buckets later
	}

	candles := FoldCandles(trades, 60_000, base, base+180_000)
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2 (empty bucket omitted)", len(candles))
	}

	var volume float64
	for _, c := range candles {
		if c.Low > c.Open || c.Low > c.Close || c.High < c.Open || c.High < c.Close {
			t.Errorf("candle %d violates low <= open,close <= high: %+v", c.Start, c)
		}
		volume += c.Volume
	}
	if volume != 7 {
		t.Errorf("total volume = %v, want 7", volume)
	}

	if candles[0].Start >= candles[1].Start {
		t.Errorf("candles not ordered by start: %d, %d", candles[0].Start, candles[1].Start)
	}
	// the middle minute had no trades and must not appear
	for _, c := range candles {
		if c.Start == base+60_000 {
			t.Errorf("empty bucket %d was not omitted", c.Start)
		}
	}
}

// go test -v --run TestFoldCandlesRangeBounds
func TestFoldCandlesRangeBounds(t *testing.T) {
	base := int64(600_000)
	trades := []Trade{
		{Price: 1, Size: 1, Ts: base - 1},       // before range
		{Price: 2, Size: 1, Ts: base},           // first bucket
		{Price: 3, Size: 1, Ts: base + 59_999},  // still first bucket
		{Price: 4, Size: 1, Ts: base + 60_000},  // excluded: at to
	}

	candles := FoldCandles(trades, 60_000, base, base+60_000)
	if len(candles) != 1 {
		t.Fatalf("got %d candles, want 1", len(candles))
	}
	if candles[0].Open != 2 || candles[0].Close != 3 || candles[0].Volume != 2 {
		t.Errorf("unexpected candle: %+v", candles[0])
	}
}

// go test -v --run TestFoldCandlesOpenCloseByTimestamp
func TestFoldCandlesOpenCloseByTimestamp(t *testing.T) {
	base := int64(0)
	// out-of-order input: open/close must follow timestamps, not input order
	trades := []Trade{
		{Price: 5, Size: 1, Ts: base + 30_000},
		{Price: 9, Size: 1, Ts: base + 1_000},
		{Price: 7, Size: 1, Ts: base + 59_000},
	}

	candles := FoldCandles(trades, 60_000, base, base+60_000)
	if len(candles) != 1 {
		t.Fatalf("got %d candles, want 1", len(candles))
	}
	if candles[0].Open != 9 {
		t.Errorf("open = %v, want price of earliest trade 9", candles[0].Open)
	}
	if candles[0].Close != 7 {
		t.Errorf("close = %v, want price of latest trade 7", candles[0].Close)
	}
}
