package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"BullionWatch/internal/calculator"
	"BullionWatch/internal/calendar"
	"BullionWatch/internal/collector"
	"BullionWatch/internal/correlation"
	"BullionWatch/internal/metrics"
	"BullionWatch/internal/model"
	"BullionWatch/internal/strategy"
)

// ErrAssembly marks a run that failed while composing. No snapshot is produced.
var ErrAssembly = errors.New("snapshot assembly failed")

// MarketCollector gathers quotes and macro series for one run.
type MarketCollector interface {
	Collect(ctx context.Context, req collector.Request) collector.MarketData
}

// EventSource returns upcoming events, never empty.
type EventSource interface {
	Upcoming(ctx context.Context, now time.Time) []model.Event
}

// Options configures what a run fetches and how it is analysed.
type Options struct {
	Request    collector.Request
	Primary    model.Resolution
	Params     calculator.Params
	Thresholds strategy.Thresholds
	Sessions   []Session
}

// Assembler runs the fetch and compose stages of the pipeline.
type Assembler struct {
	collector MarketCollector
	events    EventSource
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

// NewAssembler creates an Assembler.
func NewAssembler(c MarketCollector, events EventSource, opts Options, logger *zap.Logger) *Assembler {
	if opts.Primary == "" {
		opts.Primary = model.Res1h
	}
	return &Assembler{collector: c, events: events, opts: opts, logger: logger, now: time.Now}
}

// Build fetches every input concurrently, waits for all of them, then
// composes a snapshot. Fetch failures degrade fields; only a failure while
// composing returns an error.
func (a *Assembler) Build(ctx context.Context) (*model.Snapshot, error) {
	now := a.now().UTC()

	var md collector.MarketData
	var events []model.Event
	var g errgroup.Group
	g.Go(recovered(func() { md = a.collector.Collect(ctx, a.opts.Request) }))
	g.Go(recovered(func() { events = a.events.Upcoming(ctx, now) }))
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return a.compose(now, md, events)
}

// recovered turns a panic in fn into ErrAssembly.
func recovered(fn func()) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrAssembly, r)
			}
		}()
		fn()
		return nil
	}
}

func (a *Assembler) compose(now time.Time, md collector.MarketData, events []model.Event) (snap *model.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			snap, err = nil, fmt.Errorf("%w: %v", ErrAssembly, r)
		}
	}()

	var missing []string
	price := 0.0
	var bars []model.Bar
	inst := model.Instrument{}
	if md.Quote != nil {
		price = md.Quote.Price
		bars = md.Quote.BarsFor(a.opts.Primary)
		if md.Quote.PrevClose > 0 {
			prev := md.Quote.PrevClose
			inst.PrevClose = &prev
		}
		fetched := md.Quote.FetchedAt
		inst.FetchedAt = &fetched
	} else {
		missing = append(missing, "instrument")
	}

	tech, techMissing := calculator.Analyze(a.opts.Primary, bars, price, a.opts.Params)
	missing = append(missing, techMissing...)
	inst.Price = tech.CurrentPrice
	inst.Change1h = tech.PriceChange1h

	corr, corrMissing := correlation.Analyze(correlation.Input{Macro: md.Macro, Quotes: md.Cross})
	missing = append(missing, corrMissing...)

	if events == nil {
		events = []model.Event{}
	}
	cond := strategy.Evaluate(strategy.Inputs{
		Technical:    tech,
		Correlations: corr,
		Events:       events,
		Now:          now,
	}, a.opts.Thresholds)

	next := catalyst(events, now)
	if next == nil {
		missing = append(missing, "next_catalyst")
	}

	snap = &model.Snapshot{
		ID:                 uuid.NewString(),
		Timestamp:          now,
		Symbol:             a.opts.Request.Symbol,
		Session:            CurrentSession(a.opts.Sessions, now),
		NextSessionOverlap: NextOverlap(now),
		Instrument:         inst,
		PrimaryDriver:      cond.PrimaryDriver,
		Momentum:           cond.Momentum,
		Technical:          tech,
		Correlations:       corr,
		News:               events,
		NextCatalyst:       next,
		Alerts:             cond.Alerts,
		Unavailable:        dedupe(missing),
	}
	for _, f := range snap.Unavailable {
		metrics.UnavailableFields.WithLabelValues(f).Inc()
	}
	if len(snap.Unavailable) > 0 {
		a.logger.Debug("snapshot has unavailable fields", zap.Strings("fields", snap.Unavailable))
	}
	return snap, nil
}

func catalyst(events []model.Event, now time.Time) *model.Catalyst {
	e, ok := calendar.NextCatalyst(events, now)
	if !ok {
		return nil
	}
	return &model.Catalyst{
		Event:        e.Title,
		Time:         e.Time,
		Clock:        e.Time.UTC().Format("15:04 UTC"),
		MinutesUntil: int(e.Time.Sub(now).Minutes()),
		Impact:       e.Impact,
		Source:       e.Source,
	}
}

func dedupe(fields []string) []string {
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}
