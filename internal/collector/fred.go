package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"BullionWatch/internal/model"
)

const providerFRED = "fred"

// latestWindow is how many recent observations are scanned for two valid values.
const latestWindow = 10

// FredClient implements MacroFetcher against the FRED observations API.
type FredClient struct {
	BaseURL     string
	APIKey      string
	Client      *http.Client
	Concurrency int
}

// NewFredClient creates a FRED client issuing at most concurrency requests at once.
func NewFredClient(baseURL, apiKey string, concurrency int, client *http.Client) *FredClient {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &FredClient{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		APIKey:      apiKey,
		Client:      client,
		Concurrency: concurrency,
	}
}

func (c *FredClient) Name() string { return providerFRED }

// UnitFor returns the quoting unit of a FRED series.
func UnitFor(id string) model.Unit {
	switch {
	case strings.HasPrefix(id, "DGS"), strings.HasPrefix(id, "T10Y"):
		return model.UnitPercent
	case strings.HasPrefix(id, "DEX"):
		return model.UnitFX
	default:
		return model.UnitIndex
	}
}

type fredObservations struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (c *FredClient) observations(ctx context.Context, op, id string, limit int) (*fredObservations, error) {
	if c.APIKey == "" {
		return nil, fetchErr(providerFRED, op, KindNotAtTier, errors.New("no api key configured"))
	}
	params := url.Values{
		"series_id":  {id},
		"api_key":    {c.APIKey},
		"file_type":  {"json"},
		"sort_order": {"desc"},
		"limit":      {strconv.Itoa(limit)},
	}
	status, body, err := get(ctx, c.Client, c.BaseURL+"/series/observations?"+params.Encode(), nil)
	if err != nil {
		return nil, transportErr(providerFRED, op, err)
	}

	var obs fredObservations
	decodeErr := json.Unmarshal(body, &obs)
	switch {
	case status == http.StatusTooManyRequests || obs.ErrorCode == http.StatusTooManyRequests:
		return nil, fetchErr(providerFRED, op, KindRateLimited, fmt.Errorf("status %d", status))
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		return nil, fetchErr(providerFRED, op, KindNotAtTier, fmt.Errorf("status %d: %s", status, obs.ErrorMessage))
	case status != http.StatusOK:
		return nil, fetchErr(providerFRED, op, KindUnavailable, fmt.Errorf("status %d: %s", status, truncate(body, 200)))
	case decodeErr != nil:
		return nil, fetchErr(providerFRED, op, KindParse, decodeErr)
	}
	return &obs, nil
}

// FetchLatest returns the newest valid observation and the one before it.
// Missing values (".") and unparseable values are skipped.
func (c *FredClient) FetchLatest(ctx context.Context, id string) (model.MacroSeries, error) {
	op := "series " + id
	obs, err := c.observations(ctx, op, id, latestWindow)
	if err != nil {
		return model.MacroSeries{}, err
	}

	s := model.MacroSeries{ID: id, Unit: UnitFor(id), Source: providerFRED}
	found := 0
	for _, o := range obs.Observations {
		if o.Value == "." {
			continue
		}
		v, err := decimal.NewFromString(o.Value)
		if err != nil {
			continue
		}
		if found == 0 {
			s.Latest, s.Date = v, o.Date
		} else {
			s.Prior, s.HasPrior = v, true
			break
		}
		found++
	}
	if found == 0 {
		if len(obs.Observations) == 0 {
			return model.MacroSeries{}, fetchErr(providerFRED, op, KindUnavailable, errors.New("no observations"))
		}
		return model.MacroSeries{}, fetchErr(providerFRED, op, KindParse, errors.New("no valid observations"))
	}
	fetchOK(providerFRED, op)
	return s, nil
}

// FetchSeries fetches each identifier concurrently, bounded by Concurrency.
func (c *FredClient) FetchSeries(ctx context.Context, ids []string) SeriesResult {
	res := newSeriesResult()
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(c.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			s, err := c.FetchLatest(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[id] = err
			} else {
				res.Series[id] = s
			}
			return nil
		})
	}
	_ = g.Wait()
	return res
}

// FetchHistory returns up to limit observations in ascending date order.
func (c *FredClient) FetchHistory(ctx context.Context, id string, limit int) ([]model.Observation, error) {
	op := "history " + id
	obs, err := c.observations(ctx, op, id, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.Observation, 0, len(obs.Observations))
	for i := len(obs.Observations) - 1; i >= 0; i-- {
		o := obs.Observations[i]
		if o.Value == "." {
			continue
		}
		v, err := strconv.ParseFloat(o.Value, 64)
		if err != nil {
			continue
		}
		out = append(out, model.Observation{Date: o.Date, Value: v})
	}
	fetchOK(providerFRED, op)
	return out, nil
}
