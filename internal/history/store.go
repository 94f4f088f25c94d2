// Package history owns persisted trades: UTC-day buckets in the key-value
// store, a bounded LRU over them, and on-demand OHLCV aggregation.
package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tradehistory/pkg/kvstore"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

const dayMillis = 24 * 60 * 60 * 1000

// TradeStore persists trades in day buckets and serves reads cache-first.
// The cache is write-through: a store write is visible to the next read of a
// resident bucket without any invalidation step.
type TradeStore struct {
	kv    kvstore.Store
	cache *BucketCache
	log   *zap.Logger
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-market, serializes bucket read-modify-write
}

func NewTradeStore(kv kvstore.Store, cache *BucketCache, log *zap.Logger) *TradeStore {
	return &TradeStore{
		kv:    kv,
		cache: cache,
		log:   log,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

// KeyForDay is the addressing scheme shared by store and cache: the UTC
// calendar day of the timestamp, independent of local timezone.
func (s *TradeStore) KeyForDay(market string, tsMillis int64) string {
	day := time.UnixMilli(tsMillis).UTC().Format("20060102")
	return market + "|trades|" + day
}

// StoreTrade appends a single trade to its day bucket.
func (s *TradeStore) StoreTrade(ctx context.Context, market string, trade Trade) error {
	return s.StoreTrades(ctx, market, []Trade{trade})
}

// StoreTrades appends trades (in sequence order) to their day buckets.
// Trades whose sequence number is at or below the bucket's high-water mark
// are skipped, so re-applying an overlapping decoded range after a crash is
// idempotent.
func (s *TradeStore) StoreTrades(ctx context.Context, market string, trades []Trade) error {
	if len(trades) == 0 {
		return nil
	}

	lock := s.marketLock(market)
	lock.Lock()
	defer lock.Unlock()

	// Group contiguous runs by day key, preserving order. A batch straddles
	// at most one midnight boundary in practice.
	type run struct {
		key    string
		trades []Trade
	}
	var runs []run
	for _, t := range trades {
		key := s.KeyForDay(market, t.Ts)
		if len(runs) == 0 || runs[len(runs)-1].key != key {
			runs = append(runs, run{key: key})
		}
		runs[len(runs)-1].trades = append(runs[len(runs)-1].trades, t)
	}

	for _, r := range runs {
		if err := s.appendToBucket(ctx, r.key, r.trades); err != nil {
			return err
		}
	}
	return nil
}

func (s *TradeStore) appendToBucket(ctx context.Context, key string, trades []Trade) error {
	bucket, err := s.loadBucket(ctx, key)
	if err != nil {
		return err
	}

	var maxSeq uint64
	for _, t := range bucket {
		if t.Seq > maxSeq {
			maxSeq = t.Seq
		}
	}

	appended := 0
	for _, t := range trades {
		if t.Seq != 0 && t.Seq <= maxSeq {
			continue // replayed range, already persisted
		}
		bucket = append(bucket, t)
		if t.Seq > maxSeq {
			maxSeq = t.Seq
		}
		appended++
	}
	if appended == 0 {
		return nil
	}

	data, err := json.Marshal(bucket)
	if err != nil {
		return fmt.Errorf("marshal bucket %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("store bucket %s: %w", key, err)
	}

	// Write-through: the bucket must be refreshed if resident, so reads
	// issued after this write observe it immediately.
	s.cache.Replace(key, bucket)

	s.log.Debug("stored trades",
		zap.String("key", key),
		zap.Int("appended", appended),
		zap.Int("bucket_size", len(bucket)))
	return nil
}

// ResetSequence clears the sequence tags on the market's open buckets. A
// venue counter reset restarts sequence numbers at low values; without the
// rebase the old epoch's high-water mark would swallow every new fill until
// the UTC day rolled over. Tagless trades never participate in dedup.
func (s *TradeStore) ResetSequence(ctx context.Context, market string) error {
	lock := s.marketLock(market)
	lock.Lock()
	defer lock.Unlock()

	now := s.now().UTC()
	for _, ts := range []int64{now.UnixMilli(), now.AddDate(0, 0, -1).UnixMilli()} {
		key := s.KeyForDay(market, ts)
		bucket, err := s.loadBucket(ctx, key)
		if err != nil {
			return err
		}

		tagged := false
		for _, t := range bucket {
			if t.Seq != 0 {
				tagged = true
				break
			}
		}
		if !tagged {
			continue
		}

		// Cached slices are shared with readers, so rebase a copy.
		rebased := append([]Trade(nil), bucket...)
		for i := range rebased {
			rebased[i].Seq = 0
		}

		data, err := json.Marshal(rebased)
		if err != nil {
			return fmt.Errorf("marshal bucket %s: %w", key, err)
		}
		if err := s.kv.Set(ctx, key, data); err != nil {
			return fmt.Errorf("store bucket %s: %w", key, err)
		}
		s.cache.Replace(key, rebased)

		s.log.Info("rebased bucket sequences",
			zap.String("key", key),
			zap.Int("trades", len(rebased)))
	}
	return nil
}

// LoadRecentTrades returns up to limit trades, newest first, from the most
// recent open bucket(s).
func (s *TradeStore) LoadRecentTrades(ctx context.Context, market string, limit int) ([]Trade, error) {
	now := s.now().UTC()
	keys := []string{
		s.KeyForDay(market, now.UnixMilli()),
		s.KeyForDay(market, now.AddDate(0, 0, -1).UnixMilli()),
	}

	out := make([]Trade, 0, limit)
	for _, key := range keys {
		bucket, err := s.loadBucket(ctx, key)
		if err != nil {
			return nil, err
		}
		for i := len(bucket) - 1; i >= 0 && len(out) < limit; i-- {
			out = append(out, bucket[i])
		}
		if len(out) >= limit {
			break
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Ts > out[j].Ts })
	return out, nil
}

// LoadCandles snaps [fromMs, toMs) outward to resolution multiples, loads the
// covered day buckets (cache first) and folds them into candles. Empty
// buckets are omitted.
func (s *TradeStore) LoadCandles(ctx context.Context, market string, resolutionSec, fromMs, toMs int64) ([]Candle, error) {
	resolutionMs := resolutionSec * 1000
	from, to := SnapRange(fromMs, toMs, resolutionMs)

	var trades []Trade
	firstDay := (from / dayMillis) * dayMillis
	for day := firstDay; day < to; day += dayMillis {
		bucket, err := s.loadBucket(ctx, s.KeyForDay(market, day))
		if err != nil {
			return nil, err
		}
		trades = append(trades, bucket...)
	}

	return FoldCandles(trades, resolutionMs, from, to), nil
}

// WarmCache prefetches the last days buckets for each market in the
// background. Every day's failure is logged independently and never blocks
// other days or markets. The returned channel closes when the warmup is done,
// so callers can track it without waiting on it.
func (s *TradeStore) WarmCache(ctx context.Context, markets []string, days int) <-chan struct{} {
	done := make(chan struct{})
	var wg sync.WaitGroup

	for _, market := range markets {
		wg.Add(1)
		go func(market string) {
			defer wg.Done()
			now := s.now().UTC()
			for i := 1; i <= days; i++ {
				if ctx.Err() != nil {
					return
				}
				key := s.KeyForDay(market, now.AddDate(0, 0, -i).UnixMilli())
				if _, err := s.loadBucket(ctx, key); err != nil {
					s.log.Warn("could not warm bucket",
						zap.String("key", key), zap.Error(err))
					continue
				}
			}
			s.log.Info("warmed market", zap.String("market", market), zap.Int("days", days))
		}(market)
	}

	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// loadBucket reads a day bucket cache-first; a read miss populates the cache.
// An absent key yields an empty bucket.
func (s *TradeStore) loadBucket(ctx context.Context, key string) ([]Trade, error) {
	if bucket, ok := s.cache.Get(key); ok {
		return bucket, nil
	}

	data, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load bucket %s: %w", key, err)
	}

	var bucket []Trade
	if len(data) > 0 {
		if err := json.Unmarshal(data, &bucket); err != nil {
			return nil, fmt.Errorf("unmarshal bucket %s: %w", key, err)
		}
	}

	s.cache.Add(key, bucket)
	return bucket, nil
}

func (s *TradeStore) marketLock(market string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[market]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[market] = lock
	}
	return lock
}

// SetNowFunc overrides the store's clock. Tests only.
func (s *TradeStore) SetNowFunc(now func() time.Time) {
	s.now = now
}
