package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"BullionWatch/internal/model"
)

// ChainFetcher tries quote providers in order and returns the first success.
type ChainFetcher struct {
	fetchers []QuoteFetcher
}

// NewChainFetcher creates a fallback chain over the given providers.
func NewChainFetcher(fetchers ...QuoteFetcher) *ChainFetcher {
	return &ChainFetcher{fetchers: fetchers}
}

func (c *ChainFetcher) Name() string {
	names := make([]string, len(c.fetchers))
	for i, f := range c.fetchers {
		names[i] = f.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c *ChainFetcher) FetchQuote(ctx context.Context, symbol string, resolutions []model.Resolution) (*model.Quote, error) {
	if len(c.fetchers) == 0 {
		return nil, fmt.Errorf("no quote providers configured: %w", ErrUnavailable)
	}
	var errs []error
	for _, f := range c.fetchers {
		q, err := f.FetchQuote(ctx, symbol, resolutions)
		if err == nil && q != nil {
			return q, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

func (c *ChainFetcher) FetchQuotes(ctx context.Context, symbols []string) (map[string]model.Quote, error) {
	if len(c.fetchers) == 0 {
		return nil, fmt.Errorf("no quote providers configured: %w", ErrUnavailable)
	}
	var errs []error
	for _, f := range c.fetchers {
		quotes, err := f.FetchQuotes(ctx, symbols)
		if err == nil && len(quotes) > 0 {
			return quotes, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return map[string]model.Quote{}, nil
	}
	return nil, errors.Join(errs...)
}
