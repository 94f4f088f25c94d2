package history

// Trade sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Trade is one taker execution as persisted in a day bucket. Immutable once
// stored. Seq carries the source event-queue sequence number so that a replay
// of an overlapping decoded range can be deduplicated at the store boundary;
// 0 means unknown (pre-cursor data) and is never deduplicated against.
type Trade struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
	Side  string  `json:"side"`
	Ts    int64   `json:"ts"` // milliseconds since epoch
	Seq   uint64  `json:"seq,omitempty"`
}

// Candle is an OHLCV aggregate of the trades in one resolution-aligned
// bucket. Computed on demand, never persisted.
type Candle struct {
	Start  int64   `json:"start"` // bucket start in milliseconds, aligned to the resolution
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}
