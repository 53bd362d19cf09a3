package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"BullionWatch/internal/model"
)

const providerYahoo = "yahoo"

// YahooFetcher implements QuoteFetcher using the Yahoo Finance chart API.
// It needs no key and serves as the fallback provider.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(client *http.Client) *YahooFetcher {
	return &YahooFetcher{
		BaseURL: "https://query1.finance.yahoo.com",
		Client:  client,
		SymbolMap: map[string]string{
			"XAU/USD": "GC=F",
			"XAG/USD": "SI=F",
			"EUR/USD": "EURUSD=X",
			"USD/JPY": "JPY=X",
			"GBP/USD": "GBPUSD=X",
			"BTC/USD": "BTC-USD",
			"VIX":     "^VIX",
			"DXY":     "DX-Y.NYB",
		},
	}
}

func (f *YahooFetcher) Name() string { return providerYahoo }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return strings.ReplaceAll(symbol, "/", "")
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				PreviousClose      float64 `json:"previousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartData struct {
	price, prevClose float64
	bars             []model.Bar
}

func at(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

func (f *YahooFetcher) fetchChart(ctx context.Context, symbol, interval, rng string) (*chartData, error) {
	op := "chart " + symbol
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		strings.TrimRight(f.BaseURL, "/"), url.PathEscape(f.yahooSymbol(symbol)), interval, rng)

	status, body, err := get(ctx, f.Client, u, nil)
	if err != nil {
		return nil, transportErr(providerYahoo, op, err)
	}
	switch {
	case status == http.StatusTooManyRequests:
		return nil, fetchErr(providerYahoo, op, KindRateLimited, fmt.Errorf("status %d", status))
	case status == http.StatusNotFound:
		return nil, fetchErr(providerYahoo, op, KindNotAtTier, fmt.Errorf("status %d", status))
	case status != http.StatusOK:
		return nil, fetchErr(providerYahoo, op, KindUnavailable, fmt.Errorf("status %d: %s", status, truncate(body, 200)))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fetchErr(providerYahoo, op, KindParse, err)
	}
	if chart.Chart.Error != nil {
		return nil, fetchErr(providerYahoo, op, KindNotAtTier, fmt.Errorf("api error: %s", chart.Chart.Error.Description))
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fetchErr(providerYahoo, op, KindParse, fmt.Errorf("no data returned"))
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h, l, c := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if o == 0 || h == 0 || l == 0 || c == 0 {
			continue // null bars (holidays, halts)
		}
		bars = append(bars, model.Bar{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: at(quote.Volume, i),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })

	prev := result.Meta.PreviousClose
	if prev == 0 {
		prev = result.Meta.ChartPreviousClose
	}
	fetchOK(providerYahoo, op)
	return &chartData{price: result.Meta.RegularMarketPrice, prevClose: prev, bars: bars}, nil
}

// chartParams maps a resolution to a Yahoo interval and range. 4h is not
// offered and is resampled from 1h bars.
func chartParams(res model.Resolution) (interval, rng string) {
	switch res {
	case model.Res15m:
		return "15m", "5d"
	case model.Res4h:
		return "60m", "3mo"
	default:
		return "60m", "1mo"
	}
}

func (f *YahooFetcher) FetchQuote(ctx context.Context, symbol string, resolutions []model.Resolution) (*model.Quote, error) {
	q := &model.Quote{
		Symbol:    symbol,
		Bars:      make(map[model.Resolution][]model.Bar, len(resolutions)),
		FetchedAt: time.Now().UTC(),
	}
	var lastErr error
	for _, res := range resolutions {
		interval, rng := chartParams(res)
		cd, err := f.fetchChart(ctx, symbol, interval, rng)
		if err != nil {
			lastErr = err
			continue
		}
		bars := cd.bars
		if res == model.Res4h {
			bars = resample(bars, 4*time.Hour)
		}
		q.Bars[res] = bars
		if q.Price == 0 && cd.price > 0 {
			q.Price = cd.price
		}
		if q.PrevClose == 0 {
			q.PrevClose = cd.prevClose
		}
	}

	if q.Price == 0 && len(resolutions) == 0 {
		cd, err := f.fetchChart(ctx, symbol, "1d", "5d")
		if err != nil {
			return nil, err
		}
		q.Price, q.PrevClose = cd.price, cd.prevClose
	}
	if q.Price == 0 {
		if last, ok := q.LastClose(model.Res15m, model.Res1h, model.Res4h); ok {
			q.Price = last
		}
	}
	if q.Price == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fetchErr(providerYahoo, "chart "+symbol, KindParse, fmt.Errorf("no price"))
	}
	if q.PrevClose > 0 {
		q.PercentChange = (q.Price - q.PrevClose) / q.PrevClose * 100
	}
	return q, nil
}

// FetchQuotes fetches daily charts one symbol at a time.
func (f *YahooFetcher) FetchQuotes(ctx context.Context, symbols []string) (map[string]model.Quote, error) {
	out := make(map[string]model.Quote, len(symbols))
	var lastErr error
	for _, sym := range symbols {
		q, err := f.FetchQuote(ctx, sym, nil)
		if err != nil {
			lastErr = err
			continue
		}
		out[sym] = *q
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

// resample merges ascending bars into fixed UTC-aligned buckets of width d.
func resample(bars []model.Bar, d time.Duration) []model.Bar {
	if len(bars) == 0 {
		return nil
	}
	var out []model.Bar
	var cur model.Bar
	var bucket time.Time
	for i, b := range bars {
		start := b.Time.Truncate(d)
		if i == 0 || !start.Equal(bucket) {
			if i > 0 {
				out = append(out, cur)
			}
			bucket = start
			cur = model.Bar{Time: start, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	return append(out, cur)
}
