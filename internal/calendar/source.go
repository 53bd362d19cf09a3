package calendar

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"BullionWatch/internal/cache"
	"BullionWatch/internal/metrics"
	"BullionWatch/internal/model"
)

// Request is the context every tier receives.
type Request struct {
	Now      time.Time
	Horizon  time.Duration
	Currency string
}

// Tier is one fallback strategy. Fetch returns raw candidates; filtering is
// done by the Source so every tier is judged the same way.
type Tier struct {
	Name  model.SourceTier
	Fetch func(ctx context.Context, req Request) ([]model.Event, error)
}

// Source walks its tiers in order and returns the first non-empty filtered
// result. Tiers are never merged.
type Source struct {
	tiers     []Tier
	currency  string
	horizon   time.Duration
	maxEvents int
	store     cache.Store
	ttl       time.Duration
	logger    *zap.Logger
}

// Options configures a Source.
type Options struct {
	Currency  string
	Horizon   time.Duration
	MaxEvents int
	Cache     cache.Store // optional; real (non-synthetic) results only
	CacheTTL  time.Duration
}

// NewSource creates a Source over tiers. Unless the last tier is already the
// synthetic one, it is appended so the result is never empty.
func NewSource(opts Options, logger *zap.Logger, tiers ...Tier) *Source {
	if opts.MaxEvents <= 0 {
		opts.MaxEvents = 5
	}
	chain := append([]Tier(nil), tiers...)
	if len(chain) == 0 || chain[len(chain)-1].Name != model.TierSynthetic {
		chain = append(chain, SyntheticTier())
	}
	return &Source{
		tiers:     chain,
		currency:  opts.Currency,
		horizon:   opts.Horizon,
		maxEvents: opts.MaxEvents,
		store:     opts.Cache,
		ttl:       opts.CacheTTL,
		logger:    logger,
	}
}

func (s *Source) cacheKey() string { return "calendar:" + s.currency }

// Upcoming returns qualifying events sorted by time ascending. It never
// returns an empty slice.
func (s *Source) Upcoming(ctx context.Context, now time.Time) []model.Event {
	req := Request{Now: now, Horizon: s.horizon, Currency: s.currency}

	if s.store != nil {
		var cached []model.Event
		if ok, err := cache.GetJSON(ctx, s.store, s.cacheKey(), &cached); err == nil && ok {
			if events := s.filter(cached, req); len(events) > 0 {
				metrics.CacheLookups.WithLabelValues("calendar", "hit").Inc()
				return events
			}
		}
		metrics.CacheLookups.WithLabelValues("calendar", "miss").Inc()
	}

	for _, tier := range s.tiers {
		raw, err := tier.Fetch(ctx, req)
		if err != nil {
			metrics.CalendarTiers.WithLabelValues(string(tier.Name), "error").Inc()
			s.logger.Info("calendar tier failed, falling back", zap.String("tier", string(tier.Name)), zap.Error(err))
			continue
		}
		events := s.filter(raw, req)
		if len(events) == 0 {
			metrics.CalendarTiers.WithLabelValues(string(tier.Name), "empty").Inc()
			s.logger.Debug("calendar tier empty", zap.String("tier", string(tier.Name)), zap.Int("candidates", len(raw)))
			continue
		}
		metrics.CalendarTiers.WithLabelValues(string(tier.Name), "hit").Inc()
		if s.store != nil && tier.Name != model.TierSynthetic {
			if err := cache.SetJSON(ctx, s.store, s.cacheKey(), events, s.ttl); err != nil {
				s.logger.Warn("cache calendar failed", zap.Error(err))
			}
		}
		return events
	}

	// Unreachable while the synthetic tier keeps its horizon guarantee.
	return Synthetic(req)
}

// filter keeps high-impact events for the target currency inside
// [now, now+horizon], sorted ascending and capped.
func (s *Source) filter(events []model.Event, req Request) []model.Event {
	end := req.Now.Add(req.Horizon)
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if e.Impact != model.ImpactHigh {
			continue
		}
		if req.Currency != "" && !strings.EqualFold(e.Currency, req.Currency) {
			continue
		}
		if e.Time.Before(req.Now) || e.Time.After(end) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	if len(out) > s.maxEvents {
		out = out[:s.maxEvents]
	}
	return out
}

// NextCatalyst picks the first event at or after now.
func NextCatalyst(events []model.Event, now time.Time) (model.Event, bool) {
	for _, e := range events {
		if !e.Time.Before(now) {
			return e, true
		}
	}
	return model.Event{}, false
}
