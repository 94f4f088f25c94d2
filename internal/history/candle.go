package history

import "sort"

// SnapRange widens [fromMs, toMs) outward to the nearest enclosing multiples
// of the resolution, and guarantees at least one full bucket when from == to.
func SnapRange(fromMs, toMs, resolutionMs int64) (int64, int64) {
	from := (fromMs / resolutionMs) * resolutionMs
	to := toMs
	if rem := to % resolutionMs; rem != 0 {
		to += resolutionMs - rem
	}
	if from == to {
		to += resolutionMs
	}
	return from, to
}

// FoldCandles aggregates trades within [fromMs, toMs) into OHLCV candles at
// the given resolution. Bucket starts are epoch-aligned multiples of the
// resolution; buckets with no trades are omitted rather than zero-filled.
func FoldCandles(trades []Trade, resolutionMs, fromMs, toMs int64) []Candle {
	type bucket struct {
		candle  Candle
		firstTs int64
		lastTs  int64
	}
	buckets := make(map[int64]*bucket)

	for _, t := range trades {
		if t.Ts < fromMs || t.Ts >= toMs {
			continue
		}
		start := (t.Ts / resolutionMs) * resolutionMs

		b, ok := buckets[start]
		if !ok {
			b = &bucket{
				candle: Candle{
					Start:  start,
					Open:   t.Price,
					High:   t.Price,
					Low:    t.Price,
					Close:  t.Price,
					Volume: t.Size,
				},
				firstTs: t.Ts,
				lastTs:  t.Ts,
			}
			buckets[start] = b
			continue
		}

		if t.Price > b.candle.High {
			b.candle.High = t.Price
		}
		if t.Price < b.candle.Low {
			b.candle.Low = t.Price
		}
		if t.Ts < b.firstTs {
			b.firstTs = t.Ts
			b.candle.Open = t.Price
		}
		if t.Ts >= b.lastTs {
			b.lastTs = t.Ts
			b.candle.Close = t.Price
		}
		b.candle.Volume += t.Size
	}

	out := make([]Candle, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, b.candle)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
