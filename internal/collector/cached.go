package collector

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"BullionWatch/internal/cache"
	"BullionWatch/internal/metrics"
	"BullionWatch/internal/model"
)

// TTLs are the cache lifetimes per data class.
type TTLs struct {
	Quote       time.Duration
	Bars        time.Duration
	Correlation time.Duration
	History     time.Duration
}

func lookup(ctx context.Context, store cache.Store, kind, key string, dst any, logger *zap.Logger) bool {
	ok, err := cache.GetJSON(ctx, store, key, dst)
	if err != nil {
		logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}
	result := "miss"
	if ok {
		result = "hit"
	}
	metrics.CacheLookups.WithLabelValues(kind, result).Inc()
	return ok
}

func save(ctx context.Context, s cache.Store, key string, v any, ttl time.Duration, logger *zap.Logger) {
	if err := cache.SetJSON(ctx, s, key, v, ttl); err != nil {
		logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// CachedQuoteFetcher keeps prices and bars in a TTL cache in front of a
// provider. Prices and each bar resolution expire independently.
type CachedQuoteFetcher struct {
	next   QuoteFetcher
	store  cache.Store
	ttl    TTLs
	logger *zap.Logger
}

// NewCachedQuoteFetcher wraps next with a cache.
func NewCachedQuoteFetcher(next QuoteFetcher, store cache.Store, ttl TTLs, logger *zap.Logger) *CachedQuoteFetcher {
	return &CachedQuoteFetcher{next: next, store: store, ttl: ttl, logger: logger}
}

func (c *CachedQuoteFetcher) Name() string { return c.next.Name() }

func priceKey(symbol string) string { return "quote:" + symbol }

func barsKey(symbol string, res model.Resolution) string { return "bars:" + symbol + ":" + string(res) }

func (c *CachedQuoteFetcher) FetchQuote(ctx context.Context, symbol string, resolutions []model.Resolution) (*model.Quote, error) {
	var price model.Quote
	havePrice := lookup(ctx, c.store, "quote", priceKey(symbol), &price, c.logger)

	bars := make(map[model.Resolution][]model.Bar, len(resolutions))
	var missing []model.Resolution
	for _, res := range resolutions {
		var b []model.Bar
		if lookup(ctx, c.store, "bars", barsKey(symbol, res), &b, c.logger) {
			bars[res] = b
		} else {
			missing = append(missing, res)
		}
	}

	if havePrice && len(missing) == 0 {
		price.Bars = bars
		return &price, nil
	}

	fresh, err := c.next.FetchQuote(ctx, symbol, missing)
	if err != nil {
		// Cached bars still give a usable last price.
		q := &model.Quote{Symbol: symbol, Bars: bars, FetchedAt: time.Now().UTC()}
		if last, ok := q.LastClose(model.Res15m, model.Res1h, model.Res4h); ok && len(missing) == 0 {
			q.Price = last
			return q, nil
		}
		return nil, err
	}
	for res, b := range fresh.Bars {
		bars[res] = b
		save(ctx, c.store, barsKey(symbol, res), b, c.ttl.Bars, c.logger)
	}
	head := *fresh
	head.Bars = nil
	save(ctx, c.store, priceKey(symbol), head, c.ttl.Quote, c.logger)

	head.Bars = bars
	return &head, nil
}

// FetchQuotes serves cached symbols and fetches the rest in one batch.
func (c *CachedQuoteFetcher) FetchQuotes(ctx context.Context, symbols []string) (map[string]model.Quote, error) {
	out := make(map[string]model.Quote, len(symbols))
	var missing []string
	for _, sym := range symbols {
		var q model.Quote
		if lookup(ctx, c.store, "cross", "cross:"+sym, &q, c.logger) {
			out[sym] = q
		} else {
			missing = append(missing, sym)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}
	fresh, err := c.next.FetchQuotes(ctx, missing)
	if err != nil {
		if len(out) > 0 {
			return out, nil
		}
		return nil, err
	}
	for sym, q := range fresh {
		out[sym] = q
		save(ctx, c.store, "cross:"+sym, q, c.ttl.Correlation, c.logger)
	}
	return out, nil
}

// CachedMacroFetcher caches macro readings and history.
type CachedMacroFetcher struct {
	next   MacroFetcher
	store  cache.Store
	ttl    TTLs
	logger *zap.Logger
}

// NewCachedMacroFetcher wraps next with a cache.
func NewCachedMacroFetcher(next MacroFetcher, store cache.Store, ttl TTLs, logger *zap.Logger) *CachedMacroFetcher {
	return &CachedMacroFetcher{next: next, store: store, ttl: ttl, logger: logger}
}

func (c *CachedMacroFetcher) Name() string { return c.next.Name() }

func (c *CachedMacroFetcher) FetchSeries(ctx context.Context, ids []string) SeriesResult {
	res := newSeriesResult()
	var missing []string
	for _, id := range ids {
		var s model.MacroSeries
		if lookup(ctx, c.store, "macro", "macro:"+id, &s, c.logger) {
			res.Series[id] = s
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return res
	}
	fresh := c.next.FetchSeries(ctx, missing)
	for id, s := range fresh.Series {
		res.Series[id] = s
		save(ctx, c.store, "macro:"+id, s, c.ttl.Correlation, c.logger)
	}
	for id, err := range fresh.Failed {
		res.Failed[id] = err
	}
	return res
}

func (c *CachedMacroFetcher) FetchHistory(ctx context.Context, id string, limit int) ([]model.Observation, error) {
	key := "history:" + id + ":" + strconv.Itoa(limit)
	var obs []model.Observation
	if lookup(ctx, c.store, "history", key, &obs, c.logger) {
		return obs, nil
	}
	obs, err := c.next.FetchHistory(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	save(ctx, c.store, key, obs, c.ttl.History, c.logger)
	return obs, nil
}
