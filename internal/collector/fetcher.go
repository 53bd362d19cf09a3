package collector

import (
	"context"

	"BullionWatch/internal/model"
)

// QuoteFetcher fetches prices and bars for market symbols.
type QuoteFetcher interface {
	// FetchQuote returns the current price and bars at each requested resolution.
	// Resolutions that fail are left out of Quote.Bars; an error is returned
	// only when no price could be determined.
	FetchQuote(ctx context.Context, symbol string, resolutions []model.Resolution) (*model.Quote, error)
	// FetchQuotes returns price-only quotes for several symbols. Symbols the
	// provider does not serve are absent from the result.
	FetchQuotes(ctx context.Context, symbols []string) (map[string]model.Quote, error)
	Name() string
}

// MacroFetcher fetches auxiliary economic series.
type MacroFetcher interface {
	// FetchSeries never fails as a whole: every identifier ends up either in
	// Series or in Failed.
	FetchSeries(ctx context.Context, ids []string) SeriesResult
	// FetchHistory returns up to limit observations, ascending by date.
	FetchHistory(ctx context.Context, id string, limit int) ([]model.Observation, error)
	Name() string
}

// SeriesResult is the partial-success outcome of a macro fetch.
type SeriesResult struct {
	Series map[string]model.MacroSeries
	Failed map[string]error
}

func newSeriesResult() SeriesResult {
	return SeriesResult{
		Series: make(map[string]model.MacroSeries),
		Failed: make(map[string]error),
	}
}
