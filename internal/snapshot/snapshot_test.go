package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"BullionWatch/internal/calculator"
	"BullionWatch/internal/collector"
	"BullionWatch/internal/config"
	"BullionWatch/internal/model"
	"BullionWatch/internal/strategy"
)

var testNow = time.Date(2025, time.June, 3, 10, 0, 0, 0, time.UTC)

type fixedEvents []model.Event

func (f fixedEvents) Upcoming(context.Context, time.Time) []model.Event { return f }

type panicCollector struct{}

func (panicCollector) Collect(context.Context, collector.Request) collector.MarketData {
	panic("provider client bug")
}

func testSessions(t *testing.T) []Session {
	t.Helper()
	s, err := ParseSessions([]config.Session{
		{Name: "ASIAN", Start: "00:00", End: "09:00"},
		{Name: "LONDON", Start: "08:00", End: "17:00"},
		{Name: "NY", Start: "13:00", End: "22:00"},
	})
	if err != nil {
		t.Fatalf("parse sessions: %v", err)
	}
	return s
}

func testOptions(t *testing.T) Options {
	return Options{
		Request: collector.Request{
			Symbol:      "XAU/USD",
			Resolutions: []model.Resolution{model.Res1h},
			Cross:       map[string]string{"GBP/USD": "GBP/USD"},
			Series:      map[string]string{"US10Y": "DGS10", "US2Y": "DGS2", "VIX": "VIXCLS"},
		},
		Primary:    model.Res1h,
		Params:     calculator.DefaultParams(),
		Thresholds: strategy.DefaultThresholds(),
		Sessions:   testSessions(t),
	}
}

func newTestAssembler(t *testing.T, c MarketCollector, events EventSource) *Assembler {
	a := NewAssembler(c, events, testOptions(t), zap.NewNop())
	a.now = func() time.Time { return testNow }
	return a
}

func upcoming() fixedEvents {
	return fixedEvents{{Title: "US CPI", Time: testNow.Add(2 * time.Hour), Impact: model.ImpactHigh, Currency: "USD", Source: model.TierScraped}}
}

// risingBars ends with closes 2400 then 2412.
func risingBars(n int) []model.Bar {
	bars := make([]model.Bar, n)
	for i := range bars {
		c := 2300 + float64(i)*100/float64(n-2)
		bars[i] = model.Bar{Time: testNow.Add(time.Duration(i-n+1) * time.Hour), Open: c - 1, High: c + 2, Low: c - 2, Close: c, Volume: 1000}
	}
	bars[n-2].Close = 2400
	bars[n-1].Close = 2412
	return bars
}

var topLevelKeys = []string{
	"id", "timestamp", "symbol", "session", "next_session_overlap", "instrument",
	"primary_driver", "momentum", "technical", "correlations", "news",
	"next_catalyst", "alerts", "unavailable",
}

func TestBuild_MacroFailsEverywhere(t *testing.T) {
	quotes := &collector.MockFetcher{Price: 2400}
	macro := &collector.MockMacroFetcher{} // every identifier fails
	a := newTestAssembler(t, collector.NewCollector(quotes, macro, zap.NewNop()), upcoming())

	snap, err := a.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range topLevelKeys {
		if _, ok := doc[k]; !ok {
			t.Errorf("missing top-level key %q", k)
		}
	}

	var corr map[string]json.RawMessage
	if err := json.Unmarshal(doc["correlations"], &corr); err != nil {
		t.Fatalf("correlations: %v", err)
	}
	for _, k := range []string{"yield", "yield_2y", "yield_30y", "yield_curve", "vix", "dxy", "risk", "btc"} {
		v, ok := corr[k]
		if !ok {
			t.Errorf("missing correlation key %q", k)
			continue
		}
		if k != "risk" && string(v) != "null" {
			t.Errorf("expected %s to be null, got %s", k, v)
		}
	}
	for _, f := range []string{"correlations.yield", "correlations.vix", "correlations.yield_curve"} {
		if !slices.Contains(snap.Unavailable, f) {
			t.Errorf("expected %s in unavailable list %v", f, snap.Unavailable)
		}
	}
	if snap.Instrument.Price == nil || *snap.Instrument.Price != 2400 {
		t.Errorf("quote should survive macro failure: %+v", snap.Instrument)
	}
	if snap.NextCatalyst == nil || snap.NextCatalyst.Event != "US CPI" || snap.NextCatalyst.MinutesUntil != 120 {
		t.Errorf("unexpected catalyst: %+v", snap.NextCatalyst)
	}
}

func TestBuild_QuoteFails(t *testing.T) {
	quotes := &collector.MockFetcher{Err: errors.New("connection reset")}
	a := newTestAssembler(t, collector.NewCollector(quotes, &collector.MockMacroFetcher{}, zap.NewNop()), fixedEvents{})

	snap, err := a.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if snap.Instrument.Price != nil || snap.Technical.RSI != nil {
		t.Errorf("expected null price and rsi, got %+v / %v", snap.Instrument, snap.Technical.RSI)
	}
	if snap.Technical.RSIStatus != model.Unavailable || snap.Momentum.Direction != model.Unavailable {
		t.Errorf("expected N/A markers, got %q %q", snap.Technical.RSIStatus, snap.Momentum.Direction)
	}
	if snap.News == nil || snap.Alerts == nil {
		t.Error("news and alerts must serialize as lists")
	}
	for _, f := range []string{"instrument", "technical", "next_catalyst"} {
		if !slices.Contains(snap.Unavailable, f) {
			t.Errorf("expected %s in unavailable list %v", f, snap.Unavailable)
		}
	}
}

func TestBuild_Scenario(t *testing.T) {
	mk := func(latest, prior string, unit model.Unit) model.MacroSeries {
		return model.MacroSeries{Latest: decimal.RequireFromString(latest), Prior: decimal.RequireFromString(prior), HasPrior: true, Unit: unit}
	}
	quotes := &collector.MockFetcher{
		Price: 2412,
		Bars:  map[model.Resolution][]model.Bar{model.Res1h: risingBars(250)},
	}
	macro := &collector.MockMacroFetcher{Series: map[string]model.MacroSeries{
		"DGS10":  mk("4.255", "4.250", model.UnitPercent),
		"DGS2":   mk("4.455", "4.455", model.UnitPercent),
		"VIXCLS": mk("32", "30", model.UnitIndex),
	}}
	a := newTestAssembler(t, collector.NewCollector(quotes, macro, zap.NewNop()), upcoming())

	snap, err := a.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if snap.Instrument.Change1h == nil || *snap.Instrument.Change1h != 0.5 {
		t.Errorf("expected change_1h 0.5, got %v", snap.Instrument.Change1h)
	}
	y := snap.Correlations.Yield
	if y == nil || y.ChangeBps == nil || *y.ChangeBps != 0.5 || y.Direction != model.DirUp {
		t.Errorf("unexpected yield signal: %+v", y)
	}
	if v := snap.Correlations.VIX; v == nil || v.FearLevel != "Extreme Fear" {
		t.Errorf("unexpected vix: %+v", v)
	}
	if c := snap.Correlations.YieldCurve; c == nil || c.SpreadBps != -20 || c.Status != "Inverted" {
		t.Errorf("unexpected curve: %+v", c)
	}
	if snap.Momentum.Description != "Moderate Bullish" {
		t.Errorf("expected Moderate Bullish, got %q", snap.Momentum.Description)
	}
	if snap.Session != "LONDON" {
		t.Errorf("expected LONDON at 10:00 UTC, got %q", snap.Session)
	}
	if snap.Symbol != "XAU/USD" || snap.ID == "" {
		t.Errorf("unexpected identity: %q %q", snap.Symbol, snap.ID)
	}
}

func TestBuild_PanicBecomesAssemblyError(t *testing.T) {
	a := newTestAssembler(t, panicCollector{}, upcoming())
	snap, err := a.Build(context.Background())
	if !errors.Is(err, ErrAssembly) {
		t.Fatalf("expected ErrAssembly, got %v", err)
	}
	if snap != nil {
		t.Error("no snapshot should be produced on assembly failure")
	}
}

func TestCurrentSession(t *testing.T) {
	sessions := testSessions(t)
	tests := []struct {
		hour, minute int
		want         string
	}{
		{3, 0, "ASIAN"},
		{8, 30, "ASIAN/LONDON"},
		{10, 0, "LONDON"},
		{14, 0, "LONDON/NY"},
		{20, 0, "NY"},
		{23, 0, OffHours},
	}
	for _, tt := range tests {
		now := time.Date(2025, 6, 3, tt.hour, tt.minute, 0, 0, time.UTC)
		if got := CurrentSession(sessions, now); got != tt.want {
			t.Errorf("%02d:%02d: expected %s, got %s", tt.hour, tt.minute, tt.want, got)
		}
	}

	wrap := []Session{{Name: "SYDNEY", Start: 22 * 60, End: 7 * 60}}
	if got := CurrentSession(wrap, time.Date(2025, 6, 3, 23, 0, 0, 0, time.UTC)); got != "SYDNEY" {
		t.Errorf("wrapping session: got %s", got)
	}
}

func TestNextOverlap(t *testing.T) {
	if o := NextOverlap(time.Date(2025, 6, 3, 11, 30, 0, 0, time.UTC)); o.Active || o.MinutesUntil != 90 {
		t.Errorf("before overlap: %+v", o)
	}
	if o := NextOverlap(time.Date(2025, 6, 3, 15, 0, 0, 0, time.UTC)); !o.Active || o.MinutesUntil != 0 {
		t.Errorf("during overlap: %+v", o)
	}
	if o := NextOverlap(time.Date(2025, 6, 3, 18, 0, 0, 0, time.UTC)); o.Active || o.MinutesUntil != 19*60 {
		t.Errorf("after overlap: %+v", o)
	}
}

func TestHolder_ConcurrentReaders(t *testing.T) {
	var h Holder
	if h.Load() != nil {
		t.Fatal("expected nil before first store")
	}
	h.Store(nil)
	if h.Load() != nil {
		t.Fatal("nil store should be ignored")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Store(&model.Snapshot{ID: "s", Alerts: []string{}})
			if s := h.Load(); s == nil || s.ID != "s" {
				t.Errorf("reader %d saw incomplete snapshot", i)
			}
		}(i)
	}
	wg.Wait()
}

func TestBuild_NonFiniteProviderRowIsIsolated(t *testing.T) {
	rows := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		closeVal := fmt.Sprintf("%.2f", 2400+float64(i))
		if i == 3 {
			closeVal = "NaN"
		}
		ts := testNow.Add(-time.Duration(i) * time.Hour).Format(time.DateTime)
		rows = append(rows, fmt.Sprintf(`{"datetime":%q,"open":"2400","high":"2440","low":"2390","close":%q,"volume":"10"}`, ts, closeVal))
	}
	series := `{"status":"ok","values":[` + strings.Join(rows, ",") + `]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			w.Write([]byte(`{"symbol":"XAU/USD","close":"2412.00","previous_close":"2400.00"}`))
		case "/time_series":
			w.Write([]byte(series))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	td := collector.NewTwelveDataFetcher(srv.URL, "test-key", 0, collector.NewHTTPClient(2*time.Second, ""), zap.NewNop())
	a := newTestAssembler(t, collector.NewCollector(td, &collector.MockMacroFetcher{}, zap.NewNop()), upcoming())

	snap, err := a.Build(context.Background())
	if err != nil {
		t.Fatalf("a malformed row should not fail the run: %v", err)
	}
	if snap.Instrument.Price == nil || *snap.Instrument.Price != 2412 {
		t.Errorf("unexpected instrument: %+v", snap.Instrument)
	}
	if _, err := json.Marshal(snap); err != nil {
		t.Errorf("snapshot should encode: %v", err)
	}
}
