package dataset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tradai/core/internal/config"
	"github.com/tradai/core/internal/market"
)

// ChannelRequest is one channel a Reader streams, paired with the symbol
// and venue whose day files it reads from.
type ChannelRequest struct {
	Venue   string
	Symbol  string
	Channel market.MarketChannel
}

// Reader replays day-partitioned market-event files through a Broker,
// merging multiple channels' streams by event timestamp, stable-tied by
// the order channels were requested in (the file format carries no
// sub-channel sequence number).
type Reader struct {
	Catalog *Catalog
}

// NewReader builds a Reader over cat.
func NewReader(cat *Catalog) *Reader { return &Reader{Catalog: cat} }

// StreamWithBroker reads every requested channel for every day in period,
// merges them by event time, and publishes the merged stream to broker in
// order. It returns once the whole period has been replayed or ctx is
// cancelled.
func (r *Reader) StreamWithBroker(ctx context.Context, channels []ChannelRequest, broker *market.Broker, period config.Period) error {
	for _, day := range period.Days() {
		if err := ctx.Err(); err != nil {
			return err
		}
		merged, err := r.loadDay(ctx, channels, day)
		if err != nil {
			return err
		}
		for _, e := range merged {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := broker.Publish(e); err != nil {
				return fmt.Errorf("dataset: publish %s/%s: %w", e.Symbol, e.Type, err)
			}
		}
	}
	return nil
}

// loadDay loads every requested channel's events for one day in parallel
// and merges them by event time.
func (r *Reader) loadDay(ctx context.Context, channels []ChannelRequest, day time.Time) ([]market.Envelope, error) {
	perChannel := make([][]market.Envelope, len(channels))
	errs := make([]error, len(channels))

	var wg sync.WaitGroup
	wg.Add(len(channels))
	for i, cr := range channels {
		i, cr := i, cr
		go func() {
			defer wg.Done()
			envs, err := r.loadChannelDay(ctx, cr, day)
			perChannel[i], errs[i] = envs, err
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return mergeByEventTime(perChannel), nil
}

func (r *Reader) loadChannelDay(ctx context.Context, cr ChannelRequest, day time.Time) ([]market.Envelope, error) {
	if cr.Channel.Type == market.ChannelCandles && cr.Channel.CandleResolution != nil {
		trades, err := ReadDay(r.Catalog, cr.Venue, cr.Symbol, market.ChannelTrades, day)
		if err != nil {
			return nil, err
		}
		return AggregateCandles(trades, cr.Symbol, *cr.Channel.CandleResolution), nil
	}
	return ReadDay(r.Catalog, cr.Venue, cr.Symbol, cr.Channel.Type, day)
}

// mergeByEventTime k-way merges already-time-sorted per-channel slices,
// breaking ties by the channel's position in streams (the order the
// caller requested channels in).
func mergeByEventTime(streams [][]market.Envelope) []market.Envelope {
	total := 0
	for _, s := range streams {
		total += len(s)
	}
	out := make([]market.Envelope, 0, total)

	idx := make([]int, len(streams))
	for {
		best := -1
		var bestTime time.Time
		for ch, s := range streams {
			if idx[ch] >= len(s) {
				continue
			}
			t := s[idx[ch]].EventTime()
			if best == -1 || t.Before(bestTime) {
				best, bestTime = ch, t
			}
		}
		if best == -1 {
			break
		}
		out = append(out, streams[best][idx[best]])
		idx[best]++
	}
	return out
}
