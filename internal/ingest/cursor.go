package ingest

import (
	"context"
	"fmt"
	"strconv"

	"tradehistory/pkg/kvstore"
)

// CursorStore persists each market's last-ingested sequence number. The
// cursor is written only after the trades it covers are durable, so a crash
// between the two writes at worst replays an overlapping range.
type CursorStore struct {
	kv kvstore.Store
}

func NewCursorStore(kv kvstore.Store) *CursorStore {
	return &CursorStore{kv: kv}
}

func cursorKey(market string) string {
	return market + "|lastseq"
}

// Load returns the stored cursor, or nil when the market has none (first run
// or after a discontinuity reset).
func (c *CursorStore) Load(ctx context.Context, market string) (*uint64, error) {
	data, err := c.kv.Get(ctx, cursorKey(market))
	if err != nil {
		return nil, fmt.Errorf("load cursor for %s: %w", market, err)
	}
	if data == nil {
		return nil, nil
	}

	seq, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt cursor for %s: %w", market, err)
	}
	return &seq, nil
}

func (c *CursorStore) Save(ctx context.Context, market string, seq uint64) error {
	if err := c.kv.Set(ctx, cursorKey(market), []byte(strconv.FormatUint(seq, 10))); err != nil {
		return fmt.Errorf("save cursor for %s: %w", market, err)
	}
	return nil
}

// Clear resets the market to an undefined cursor; the next iteration
// bootstraps from the bounded recent window.
func (c *CursorStore) Clear(ctx context.Context, market string) error {
	if err := c.kv.Delete(ctx, cursorKey(market)); err != nil {
		return fmt.Errorf("clear cursor for %s: %w", market, err)
	}
	return nil
}
