package collector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"BullionWatch/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price float64
	Bars  map[model.Resolution][]model.Bar
	// Cross maps symbol to price for FetchQuotes; unknown symbols get Price.
	Cross map[string]float64
	Err   error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchQuote(_ context.Context, symbol string, resolutions []model.Resolution) (*model.Quote, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	now := time.Now().UTC()
	q := &model.Quote{
		Symbol:    symbol,
		Price:     m.Price,
		PrevClose: m.Price * 0.998,
		Bars:      make(map[model.Resolution][]model.Bar, len(resolutions)),
		FetchedAt: now,
	}
	q.PercentChange = (q.Price - q.PrevClose) / q.PrevClose * 100
	for _, res := range resolutions {
		if bars, ok := m.Bars[res]; ok {
			q.Bars[res] = bars
			continue
		}
		q.Bars[res] = generateMockBars(m.Price, resolutionStep(res), 200, now)
	}
	return q, nil
}

func (m *MockFetcher) FetchQuotes(_ context.Context, symbols []string) (map[string]model.Quote, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string]model.Quote, len(symbols))
	for _, sym := range symbols {
		p, ok := m.Cross[sym]
		if !ok {
			p = m.Price
		}
		prev := p * 0.999
		out[sym] = model.Quote{Symbol: sym, Price: p, PrevClose: prev, PercentChange: (p - prev) / prev * 100, FetchedAt: time.Now().UTC()}
	}
	return out, nil
}

func resolutionStep(res model.Resolution) time.Duration {
	switch res {
	case model.Res15m:
		return 15 * time.Minute
	case model.Res4h:
		return 4 * time.Hour
	default:
		return time.Hour
	}
}

// generateMockBars builds a gentle deterministic wave ending at basePrice.
func generateMockBars(basePrice float64, step time.Duration, count int, now time.Time) []model.Bar {
	bars := make([]model.Bar, count)
	end := now.Truncate(step)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + 0.004*math.Sin(float64(i)/6) + float64(i-count+1)*0.00005)
		bars[i] = model.Bar{
			Time:   end.Add(-time.Duration(count-1-i) * step),
			Open:   p * 0.999,
			High:   p * 1.002,
			Low:    p * 0.997,
			Close:  p,
			Volume: 1000 + float64(i%7)*150,
		}
	}
	bars[count-1].Close = basePrice
	return bars
}

// MockMacroFetcher serves fixed macro readings.
type MockMacroFetcher struct {
	Series  map[string]model.MacroSeries
	History map[string][]model.Observation
}

func (m *MockMacroFetcher) Name() string { return "mock" }

func (m *MockMacroFetcher) FetchSeries(_ context.Context, ids []string) SeriesResult {
	res := newSeriesResult()
	for _, id := range ids {
		if s, ok := m.Series[id]; ok {
			res.Series[id] = s
		} else {
			res.Failed[id] = &FetchError{Provider: "mock", Op: "series " + id, Kind: KindNotAtTier}
		}
	}
	return res
}

func (m *MockMacroFetcher) FetchHistory(_ context.Context, id string, limit int) ([]model.Observation, error) {
	obs, ok := m.History[id]
	if !ok {
		return nil, &FetchError{Provider: "mock", Op: "history " + id, Kind: KindNotAtTier}
	}
	if limit > 0 && len(obs) > limit {
		obs = obs[len(obs)-limit:]
	}
	return obs, nil
}

// DemoMacroSeries returns plausible readings keyed by FRED identifier.
func DemoMacroSeries() map[string]model.MacroSeries {
	mk := func(id string, latest, prior string, unit model.Unit) model.MacroSeries {
		return model.MacroSeries{
			ID:       id,
			Latest:   decimal.RequireFromString(latest),
			Prior:    decimal.RequireFromString(prior),
			HasPrior: true,
			Unit:     unit,
			Date:     time.Now().UTC().Format(time.DateOnly),
			Source:   "mock",
		}
	}
	return map[string]model.MacroSeries{
		"DGS10":    mk("DGS10", "4.255", "4.250", model.UnitPercent),
		"DGS2":     mk("DGS2", "4.30", "4.28", model.UnitPercent),
		"DGS30":    mk("DGS30", "4.41", "4.43", model.UnitPercent),
		"VIXCLS":   mk("VIXCLS", "16.2", "15.8", model.UnitIndex),
		"DTWEXBGS": mk("DTWEXBGS", "121.4", "121.1", model.UnitIndex),
		"DEXUSEU":  mk("DEXUSEU", "1.0842", "1.0850", model.UnitFX),
	}
}

// Request describes one collection round.
type Request struct {
	Symbol      string
	Resolutions []model.Resolution
	// Cross maps logical name to provider symbol for cross-asset quotes.
	Cross map[string]string
	// Series maps logical name to macro series identifier.
	Series map[string]string
}

// MarketData is everything one collection round produced. Failures are
// recorded next to the data instead of aborting the round.
type MarketData struct {
	Quote       *model.Quote
	QuoteErr    error
	Cross       map[string]model.Quote // by logical name
	CrossErr    error
	Macro       map[string]model.MacroSeries // by logical name
	MacroFailed map[string]error             // by logical name
}

// Collector orchestrates concurrent fetching from the quote and macro providers.
type Collector struct {
	Quotes QuoteFetcher
	Macro  MacroFetcher
	logger *zap.Logger
}

// NewCollector creates a new Collector.
func NewCollector(quotes QuoteFetcher, macro MacroFetcher, logger *zap.Logger) *Collector {
	return &Collector{Quotes: quotes, Macro: macro, logger: logger}
}

// Collect fetches the primary quote, cross-asset quotes and macro series
// concurrently and waits for all of them.
func (c *Collector) Collect(ctx context.Context, req Request) MarketData {
	md := MarketData{
		Cross:       make(map[string]model.Quote),
		Macro:       make(map[string]model.MacroSeries),
		MacroFailed: make(map[string]error),
	}
	var mu sync.Mutex
	var g errgroup.Group

	g.Go(func() error {
		q, err := c.Quotes.FetchQuote(ctx, req.Symbol, req.Resolutions)
		mu.Lock()
		md.Quote, md.QuoteErr = q, err
		mu.Unlock()
		c.logFailure("fetch quote failed", err, zap.String("symbol", req.Symbol))
		return nil
	})

	if len(req.Cross) > 0 {
		g.Go(func() error {
			cross, err := c.collectCross(ctx, req.Cross)
			mu.Lock()
			md.CrossErr = err
			for k, v := range cross {
				md.Cross[k] = v
			}
			mu.Unlock()
			c.logFailure("fetch cross quotes failed", err)
			return nil
		})
	}

	if len(req.Series) > 0 && c.Macro != nil {
		g.Go(func() error {
			series, failed := c.collectMacro(ctx, req.Series)
			mu.Lock()
			md.Macro, md.MacroFailed = series, failed
			mu.Unlock()
			for name, err := range failed {
				c.logFailure("fetch macro series failed", err, zap.String("series", name))
			}
			return nil
		})
	}

	_ = g.Wait()
	return md
}

func (c *Collector) collectCross(ctx context.Context, names map[string]string) (map[string]model.Quote, error) {
	symbols := make([]string, 0, len(names))
	seen := make(map[string]bool)
	for _, sym := range names {
		if !seen[sym] {
			seen[sym] = true
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)

	quotes, err := c.Quotes.FetchQuotes(ctx, symbols)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Quote, len(names))
	for name, sym := range names {
		if q, ok := quotes[sym]; ok {
			out[name] = q
		}
	}
	return out, nil
}

func (c *Collector) collectMacro(ctx context.Context, names map[string]string) (map[string]model.MacroSeries, map[string]error) {
	ids := make([]string, 0, len(names))
	for _, id := range names {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	res := c.Macro.FetchSeries(ctx, ids)

	series := make(map[string]model.MacroSeries, len(names))
	failed := make(map[string]error)
	for name, id := range names {
		if s, ok := res.Series[id]; ok {
			series[name] = s
			continue
		}
		err := res.Failed[id]
		if err == nil {
			err = fmt.Errorf("series %s: %w", id, ErrUnavailable)
		}
		failed[name] = err
	}
	return series, failed
}

func (c *Collector) logFailure(msg string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	fields = append(fields, zap.Error(err))
	if IsExpected(err) {
		c.logger.Info(msg, fields...)
		return
	}
	c.logger.Warn(msg, fields...)
}
