// Package ingest runs one supervised polling task per configured market:
// fetch the raw event queue, decode fills past the cursor, persist trades,
// then advance the cursor.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradehistory/internal/eventqueue"
	"tradehistory/internal/history"
	"tradehistory/internal/market"
	"tradehistory/internal/notify"
	"tradehistory/internal/venue"

	"go.uber.org/zap"
)

// Scheduler owns the per-market poll loops. Markets never share state, so
// every loop progresses independently; an error in one iteration is reported
// and the loop resumes after the normal interval.
type Scheduler struct {
	registry *market.Registry
	spot     venue.Venue
	perp     venue.Venue
	store    *history.TradeStore
	cursors  *CursorStore
	notifier *notify.Notifier
	log      *zap.Logger
	interval time.Duration
	now      func() time.Time
}

func NewScheduler(
	registry *market.Registry,
	spot, perp venue.Venue,
	store *history.TradeStore,
	cursors *CursorStore,
	notifier *notify.Notifier,
	interval time.Duration,
	log *zap.Logger,
) *Scheduler {
	return &Scheduler{
		registry: registry,
		spot:     spot,
		perp:     perp,
		store:    store,
		cursors:  cursors,
		notifier: notifier,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

// Start launches one supervised task per market and returns immediately.
// Tasks run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	for _, d := range s.registry.All() {
		go s.supervise(ctx, d)
	}
	s.log.Info("poll scheduler started",
		zap.Int("markets", len(s.registry.Symbols())),
		zap.Duration("interval", s.interval))
}

// supervise restarts the market loop if it ever panics; a crash in one
// market must never take down another.
func (s *Scheduler) supervise(ctx context.Context, d market.Descriptor) {
	for ctx.Err() == nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.report(d, fmt.Errorf("task panic: %v", r))
				}
			}()
			s.runMarket(ctx, d)
		}()

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.interval):
		}
	}
}

func (s *Scheduler) runMarket(ctx context.Context, d market.Descriptor) {
	v := s.venueFor(d)
	decoder := eventqueue.NewDecoder(d.BaseDecimals, d.QuoteDecimals)

	var handle *venue.Handle
	for {
		if handle == nil {
			h, err := v.LoadMarket(ctx, d)
			if err != nil {
				s.report(d, err)
			} else {
				handle = h
				s.log.Info("market loaded",
					zap.String("market", d.Symbol),
					zap.String("event_queue", h.EventQueue))
			}
		} else if err := s.iterate(ctx, v, decoder, d, handle); err != nil {
			s.report(d, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.interval):
		}
	}
}

// iterate is one poll: cursor -> fetch -> decode -> persist trades -> persist
// cursor. Trades reach durable storage before the cursor advances, so a
// retried iteration reproduces the same or overlapping fills and the store's
// sequence dedup absorbs them.
func (s *Scheduler) iterate(ctx context.Context, v venue.Venue, decoder *eventqueue.Decoder, d market.Descriptor, h *venue.Handle) error {
	cursor, err := s.cursors.Load(ctx, d.Symbol)
	if err != nil {
		return err
	}

	raw, err := v.FetchRawEventQueue(ctx, h)
	if err != nil {
		return err
	}

	seq, fills, err := decoder.Decode(raw, cursor)
	if errors.Is(err, eventqueue.ErrSequenceDiscontinuity) {
		// Rebase before clearing the cursor: if either write fails the next
		// poll sees the discontinuity again and retries both.
		if resetErr := s.store.ResetSequence(ctx, d.Symbol); resetErr != nil {
			return resetErr
		}
		if clearErr := s.cursors.Clear(ctx, d.Symbol); clearErr != nil {
			return clearErr
		}
		return fmt.Errorf("venue state reset for %s, cursor cleared: %w", d.Symbol, err)
	}
	if err != nil {
		return err
	}

	if len(fills) > 0 {
		trades := s.mapFills(d, fills)
		if err := s.store.StoreTrades(ctx, d.Symbol, trades); err != nil {
			return err
		}
		s.log.Info("ingested trades",
			zap.String("market", d.Symbol),
			zap.Int("count", len(trades)),
			zap.Uint64("seq", seq))
	}

	return s.cursors.Save(ctx, d.Symbol, seq)
}

// mapFills converts decoded fills to trades. Spot queues carry no event time,
// so trades are stamped at decode time; perpetual queues embed the venue's
// event time and that is authoritative.
func (s *Scheduler) mapFills(d market.Descriptor, fills []eventqueue.Fill) []history.Trade {
	decodeTime := s.now().UnixMilli()

	trades := make([]history.Trade, 0, len(fills))
	for _, f := range fills {
		ts := decodeTime
		if d.Kind == market.Perpetual && f.Timestamp > 0 {
			ts = f.Timestamp * 1000
		}
		trades = append(trades, history.Trade{
			Price: f.Price,
			Size:  f.Size,
			Side:  f.Side,
			Ts:    ts,
			Seq:   f.Seq,
		})
	}
	return trades
}

func (s *Scheduler) venueFor(d market.Descriptor) venue.Venue {
	if d.Kind == market.Perpetual {
		return s.perp
	}
	return s.spot
}

func (s *Scheduler) report(d market.Descriptor, err error) {
	s.log.Error("ingestion iteration failed",
		zap.String("market", d.Symbol), zap.Error(err))
	s.notifier.Notify(fmt.Sprintf("collect %s: %v", d.Symbol, err))
}

// SetNowFunc overrides the scheduler's clock. Tests only.
func (s *Scheduler) SetNowFunc(now func() time.Time) {
	s.now = now
}
