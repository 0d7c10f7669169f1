package collector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"PortfolioSentinel/internal/cache"
	"PortfolioSentinel/internal/metrics"
	"PortfolioSentinel/internal/model"
)

// Collector serves live quotes and normalized historical series, memoizing
// upstream responses in a cache.Store.
type Collector struct {
	primary  Fetcher
	fallback Fetcher
	store    cache.Store
	metrics  *metrics.Recorder
	logger   zerolog.Logger
}

// Option customizes a Collector.
type Option func(*Collector)

// WithFallback sets a secondary fetcher tried when the primary fails.
func WithFallback(f Fetcher) Option {
	return func(c *Collector) { c.fallback = f }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Collector) { c.metrics = m }
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, store cache.Store, logger zerolog.Logger, opts ...Option) *Collector {
	c := &Collector{
		primary: fetcher,
		store:   store,
		logger:  logger.With().Str("component", "collector").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LiveQuote returns the latest quote for symbol.
func (c *Collector) LiveQuote(ctx context.Context, symbol string) (*model.LiveQuote, error) {
	key := cache.Key{Symbol: symbol, Kind: cache.KindLive}
	var cached model.LiveQuote
	if c.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	var quote *model.LiveQuote
	err := c.each(func(f Fetcher) error {
		q, err := f.FetchQuote(ctx, symbol)
		c.metrics.ObserveUpstream(f.Name(), "quote", err)
		if err != nil {
			return err
		}
		if q == nil {
			return fmt.Errorf("%s returned no quote", f.Name())
		}
		if !q.Usable() {
			return fmt.Errorf("%s returned unusable price %v", f.Name(), q.Price)
		}
		quote = q
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: live price for %s: %w", model.ErrDataUnavailable, symbol, err)
	}

	c.save(ctx, key, quote)
	return quote, nil
}

// History returns the normalized series for symbol over period at interval.
func (c *Collector) History(ctx context.Context, symbol, period, interval string) (*model.HistoricalSeries, error) {
	key := cache.Key{Symbol: symbol, Kind: cache.KindHistory, Params: period + "_" + interval}
	var cached []model.PricePoint
	if c.lookup(ctx, key, &cached) {
		return model.NewHistoricalSeries(symbol, period, interval, cached), nil
	}

	var series *model.HistoricalSeries
	err := c.each(func(f Fetcher) error {
		raw, err := f.FetchBars(ctx, symbol, period, interval)
		c.metrics.ObserveUpstream(f.Name(), "bars", err)
		if err != nil {
			return err
		}
		s := model.NewHistoricalSeries(symbol, period, interval, raw)
		if s.Empty() {
			return fmt.Errorf("%s returned no usable bars", f.Name())
		}
		if dropped := len(raw) - s.Len(); dropped > 0 {
			c.logger.Debug().Str("symbol", symbol).Int("dropped", dropped).Msg("dropped incomplete bars")
		}
		series = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: history for %s: %w", model.ErrDataUnavailable, symbol, err)
	}

	c.save(ctx, key, series.Points())
	return series, nil
}

// each runs fn against the primary fetcher, then the fallback if one is set.
func (c *Collector) each(fn func(Fetcher) error) error {
	err := fn(c.primary)
	if err == nil || c.fallback == nil {
		return err
	}
	c.logger.Warn().Err(err).Str("fallback", c.fallback.Name()).Msg("primary fetcher failed")
	if ferr := fn(c.fallback); ferr != nil {
		return fmt.Errorf("%w; fallback: %w", err, ferr)
	}
	return nil
}

func (c *Collector) lookup(ctx context.Context, key cache.Key, out any) bool {
	if c.store == nil {
		return false
	}
	b, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("cache read failed")
		return false
	}
	if ok {
		if err := json.Unmarshal(b, out); err != nil {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("cache entry undecodable")
			ok = false
		}
	}
	c.metrics.ObserveCache(key.Kind, ok)
	return ok
}

func (c *Collector) save(ctx context.Context, key cache.Key, v any) {
	if c.store == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("cache encode failed")
		return
	}
	if err := c.store.Put(ctx, key, b); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("cache write failed")
	}
}
