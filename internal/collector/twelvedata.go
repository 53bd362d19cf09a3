package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"BullionWatch/internal/model"
)

const providerTwelveData = "twelvedata"

// TwelveDataFetcher implements QuoteFetcher against the Twelve Data REST API.
// Every request passes through a per-minute limiter.
type TwelveDataFetcher struct {
	BaseURL    string
	APIKey     string
	OutputSize int
	Client     *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewTwelveDataFetcher creates a fetcher allowing callsPerMinute requests.
func NewTwelveDataFetcher(baseURL, apiKey string, callsPerMinute int, client *http.Client, logger *zap.Logger) *TwelveDataFetcher {
	limit := rate.Inf
	burst := 1
	if callsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(callsPerMinute))
		burst = callsPerMinute
	}
	return &TwelveDataFetcher{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		OutputSize: 200,
		Client:     client,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
}

func (f *TwelveDataFetcher) Name() string { return providerTwelveData }

// numStr accepts a JSON string or number and keeps its text. NaN and
// infinities read as missing.
type numStr string

func (n *numStr) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = numStr(s)
		return nil
	}
	if string(b) == "null" {
		*n = ""
		return nil
	}
	*n = numStr(b)
	return nil
}

func (n numStr) float() (float64, bool) {
	if n == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(n), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

type tdStatus struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type tdQuote struct {
	tdStatus
	Symbol        string `json:"symbol"`
	Close         numStr `json:"close"`
	PreviousClose numStr `json:"previous_close"`
	PercentChange numStr `json:"percent_change"`
}

type tdSeries struct {
	tdStatus
	Values []struct {
		Datetime string `json:"datetime"`
		Open     numStr `json:"open"`
		High     numStr `json:"high"`
		Low      numStr `json:"low"`
		Close    numStr `json:"close"`
		Volume   numStr `json:"volume"`
	} `json:"values"`
}

// classify maps a Twelve Data error body to a failure kind.
func (s tdStatus) classify() (Kind, bool) {
	if s.Status != "error" {
		return 0, false
	}
	msg := strings.ToLower(s.Message)
	switch {
	case s.Code == http.StatusTooManyRequests || strings.Contains(msg, "api credits"):
		return KindRateLimited, true
	case (s.Code == 400 || s.Code == 403 || s.Code == 404) &&
		(strings.Contains(msg, "plan") || strings.Contains(msg, "available") || strings.Contains(msg, "not found") || strings.Contains(msg, "invalid")):
		return KindNotAtTier, true
	default:
		return KindUnavailable, true
	}
}

func (f *TwelveDataFetcher) call(ctx context.Context, op, path string, params url.Values) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fetchErr(providerTwelveData, op, KindRateLimited, err)
	}
	params.Set("apikey", f.APIKey)
	status, body, err := get(ctx, f.Client, f.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, transportErr(providerTwelveData, op, err)
	}
	switch {
	case status == http.StatusTooManyRequests:
		return nil, fetchErr(providerTwelveData, op, KindRateLimited, fmt.Errorf("status %d", status))
	case status != http.StatusOK:
		return nil, fetchErr(providerTwelveData, op, KindUnavailable, fmt.Errorf("status %d: %s", status, truncate(body, 200)))
	}
	var st tdStatus
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fetchErr(providerTwelveData, op, KindParse, err)
	}
	if kind, failed := st.classify(); failed {
		return nil, fetchErr(providerTwelveData, op, kind, fmt.Errorf("code %d: %s", st.Code, st.Message))
	}
	return body, nil
}

// FetchQuote calls /quote and one /time_series per resolution.
func (f *TwelveDataFetcher) FetchQuote(ctx context.Context, symbol string, resolutions []model.Resolution) (*model.Quote, error) {
	q := &model.Quote{
		Symbol:    symbol,
		Bars:      make(map[model.Resolution][]model.Bar, len(resolutions)),
		FetchedAt: time.Now().UTC(),
	}

	quoteErr := f.fillQuote(ctx, symbol, q)
	if quoteErr != nil {
		f.logger.Warn("twelvedata quote failed", zap.String("symbol", symbol), zap.Error(quoteErr))
	}

	for _, res := range resolutions {
		bars, err := f.FetchBars(ctx, symbol, res, f.OutputSize)
		if err != nil {
			f.logger.Warn("twelvedata bars failed", zap.String("symbol", symbol),
				zap.String("interval", string(res)), zap.Error(err))
			continue
		}
		q.Bars[res] = bars
	}

	if q.Price == 0 {
		last, ok := q.LastClose(model.Res15m, model.Res1h, model.Res4h)
		if !ok {
			if quoteErr != nil {
				return nil, quoteErr
			}
			return nil, fetchErr(providerTwelveData, "quote "+symbol, KindParse, fmt.Errorf("no price field"))
		}
		q.Price = last
	}
	return q, nil
}

func (f *TwelveDataFetcher) fillQuote(ctx context.Context, symbol string, q *model.Quote) error {
	op := "quote " + symbol
	body, err := f.call(ctx, op, "/quote", url.Values{"symbol": {symbol}})
	if err != nil {
		return err
	}
	var raw tdQuote
	if err := json.Unmarshal(body, &raw); err != nil {
		return fetchErr(providerTwelveData, op, KindParse, err)
	}
	applyTDQuote(q, raw)
	fetchOK(providerTwelveData, op)
	return nil
}

// applyTDQuote sets price from close, falling back to previous_close.
func applyTDQuote(q *model.Quote, raw tdQuote) {
	prev, hasPrev := raw.PreviousClose.float()
	if hasPrev {
		q.PrevClose = prev
	}
	if price, ok := raw.Close.float(); ok && price > 0 {
		q.Price = price
	} else if hasPrev {
		q.Price = prev
	}
	if pct, ok := raw.PercentChange.float(); ok {
		q.PercentChange = pct
	}
}

// FetchBars calls /time_series. Rows that fail to parse are skipped.
func (f *TwelveDataFetcher) FetchBars(ctx context.Context, symbol string, res model.Resolution, size int) ([]model.Bar, error) {
	op := "time_series " + symbol
	params := url.Values{
		"symbol":     {symbol},
		"interval":   {string(res)},
		"outputsize": {strconv.Itoa(size)},
		"timezone":   {"UTC"},
		"format":     {"JSON"},
	}
	body, err := f.call(ctx, op, "/time_series", params)
	if err != nil {
		return nil, err
	}
	var raw tdSeries
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fetchErr(providerTwelveData, op, KindParse, err)
	}

	bars := make([]model.Bar, 0, len(raw.Values))
	for _, v := range raw.Values {
		ts, err := parseTDTime(v.Datetime)
		if err != nil {
			continue
		}
		o, ok1 := v.Open.float()
		h, ok2 := v.High.float()
		l, ok3 := v.Low.float()
		c, ok4 := v.Close.float()
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		vol, _ := v.Volume.float()
		bars = append(bars, model.Bar{Time: ts, Open: o, High: h, Low: l, Close: c, Volume: vol})
	}
	if len(bars) == 0 {
		return nil, fetchErr(providerTwelveData, op, KindParse, fmt.Errorf("no usable values"))
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	fetchOK(providerTwelveData, op)
	return bars, nil
}

func parseTDTime(s string) (time.Time, error) {
	for _, layout := range []string{time.DateTime, time.DateOnly, time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised datetime %q", s)
}

// FetchQuotes issues one batched /quote call. A single-symbol request gets a
// flat body; a multi-symbol request gets a body keyed by symbol.
func (f *TwelveDataFetcher) FetchQuotes(ctx context.Context, symbols []string) (map[string]model.Quote, error) {
	out := make(map[string]model.Quote, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}
	op := "quote_batch " + strings.Join(symbols, ",")
	body, err := f.call(ctx, op, "/quote", url.Values{"symbol": {strings.Join(symbols, ",")}})
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	add := func(symbol string, raw tdQuote) {
		if _, failed := raw.classify(); failed {
			return
		}
		q := model.Quote{Symbol: symbol, FetchedAt: now}
		applyTDQuote(&q, raw)
		if q.Price > 0 {
			out[symbol] = q
		}
	}

	if len(symbols) == 1 {
		var raw tdQuote
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fetchErr(providerTwelveData, op, KindParse, err)
		}
		add(symbols[0], raw)
	} else {
		var batch map[string]json.RawMessage
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, fetchErr(providerTwelveData, op, KindParse, err)
		}
		for _, sym := range symbols {
			entry, ok := batch[sym]
			if !ok {
				continue
			}
			var raw tdQuote
			if err := json.Unmarshal(entry, &raw); err != nil {
				f.logger.Debug("skip malformed batch entry", zap.String("symbol", sym), zap.Error(err))
				continue
			}
			add(sym, raw)
		}
	}
	fetchOK(providerTwelveData, op)
	return out, nil
}
