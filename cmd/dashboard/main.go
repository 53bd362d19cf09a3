package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"BullionWatch/internal/api"
	"BullionWatch/internal/cache"
	"BullionWatch/internal/calculator"
	"BullionWatch/internal/calendar"
	"BullionWatch/internal/collector"
	"BullionWatch/internal/config"
	"BullionWatch/internal/hub"
	"BullionWatch/internal/logging"
	"BullionWatch/internal/model"
	"BullionWatch/internal/scheduler"
	"BullionWatch/internal/snapshot"
	"BullionWatch/internal/strategy"
)

func main() {
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("BullionWatch starting", zap.String("symbol", cfg.Instrument.Symbol))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newStore(ctx, cfg, logger)
	priceTTL, quoteTTL, newsTTL, corrTTL := cfg.TTLs()
	ttls := collector.TTLs{Quote: quoteTTL, Bars: priceTTL, Correlation: corrTTL, History: priceTTL}

	quotes := newQuoteFetcher(cfg, logger)
	logger.Info("quote provider selected", zap.String("provider", quotes.Name()))
	macro := newMacroFetcher(cfg)
	cachedMacro := collector.NewCachedMacroFetcher(macro, store, ttls, logger)
	col := collector.NewCollector(collector.NewCachedQuoteFetcher(quotes, store, ttls, logger), cachedMacro, logger)

	loc, err := time.LoadLocation(cfg.Calendar.Timezone)
	if err != nil {
		logger.Fatal("calendar timezone", zap.Error(err))
	}
	calClient := collector.NewHTTPClient(time.Duration(cfg.Calendar.TimeoutSec)*time.Second, cfg.Proxy)
	events := calendar.NewSource(calendar.Options{
		Currency:  cfg.Calendar.Currency,
		Horizon:   cfg.Horizon(),
		MaxEvents: cfg.Calendar.MaxEvents,
		Cache:     store,
		CacheTTL:  newsTTL,
	}, logger.Named("calendar"),
		calendar.NewScraper(cfg.Calendar.CalendarURL, calClient, loc).Tier(),
		calendar.NewFeedReader(cfg.Calendar.FeedURL, calClient, cfg.Calendar.Keywords).Tier(),
	)

	sessions, err := snapshot.ParseSessions(cfg.Sessions)
	if err != nil {
		logger.Fatal("parse sessions", zap.Error(err))
	}
	resolutions := make([]model.Resolution, 0, len(cfg.Instrument.Timeframes))
	for _, tf := range cfg.Instrument.Timeframes {
		resolutions = append(resolutions, model.Resolution(tf))
	}
	assembler := snapshot.NewAssembler(col, events, snapshot.Options{
		Request: collector.Request{
			Symbol:      cfg.Instrument.Symbol,
			Resolutions: resolutions,
			Cross:       cfg.QuoteProvider.CorrelationSymbols,
			Series:      cfg.MacroProvider.Series,
		},
		Primary:  model.Resolution(cfg.Instrument.Primary),
		Params:   analysisParams(cfg),
		Sessions: sessions,
		Thresholds: strategy.Thresholds{
			AlertProximityPercent: cfg.Analysis.AlertProximityPercent,
			YieldAlertBps:         cfg.Analysis.YieldAlertBps,
		},
	}, logger.Named("assembler"))

	holder := &snapshot.Holder{}
	wsHub := hub.NewHub(holder, logger.Named("hub"))
	sched := scheduler.NewScheduler(ctx, assembler, holder, wsHub, cfg.UpdateInterval(), cfg.RunTimeout(), logger.Named("scheduler"))
	wsHub.SetUpdater(sched)
	if err := sched.Start(); err != nil {
		logger.Fatal("start scheduler", zap.Error(err))
	}
	if cfg.Schedule.RunOnStart || os.Getenv("RUN_ON_START") == "true" {
		sched.Trigger(scheduler.TriggerStartup)
	}

	handler := api.NewHandler(holder, cachedMacro, wsHub, api.Settings{
		UpdateInterval: cfg.UpdateInterval(),
		Symbol:         cfg.Instrument.Symbol,
		Timeframes:     cfg.Instrument.Timeframes,
		HistoryLimit:   cfg.MacroProvider.HistoryLimit,
	}, logger.Named("api"))
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server starting", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown", zap.Error(err))
	}
	cancel()
	sched.Stop()
	logger.Info("BullionWatch stopped")
}

// newStore uses Redis when configured and reachable, otherwise process memory.
func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) cache.Store {
	if cfg.Cache.RedisAddr == "" {
		return cache.NewMemory()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})
	r := cache.NewRedis(rdb, cfg.Cache.KeyPrefix)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, using in-memory cache", zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
		rdb.Close()
		return cache.NewMemory()
	}
	logger.Info("using redis cache", zap.String("addr", cfg.Cache.RedisAddr))
	return r
}

func newQuoteFetcher(cfg *config.Config, logger *zap.Logger) collector.QuoteFetcher {
	qp := cfg.QuoteProvider
	client := collector.NewHTTPClient(time.Duration(qp.TimeoutSec)*time.Second, cfg.Proxy)
	switch qp.Name {
	case "mock":
		return &collector.MockFetcher{Price: 2350}
	case "twelvedata":
		td := collector.NewTwelveDataFetcher(qp.BaseURL, qp.APIKey, qp.CallsPerMinute, client, logger.Named("twelvedata"))
		td.OutputSize = cfg.Instrument.OutputSize
		if qp.YahooFallback {
			return collector.NewChainFetcher(td, collector.NewYahooFetcher(client))
		}
		return td
	default:
		return collector.NewYahooFetcher(client)
	}
}

func newMacroFetcher(cfg *config.Config) collector.MacroFetcher {
	if cfg.QuoteProvider.Name == "mock" {
		return &collector.MockMacroFetcher{Series: collector.DemoMacroSeries()}
	}
	mp := cfg.MacroProvider
	client := collector.NewHTTPClient(time.Duration(mp.TimeoutSec)*time.Second, cfg.Proxy)
	return collector.NewFredClient(mp.BaseURL, mp.APIKey, mp.Concurrency, client)
}

func analysisParams(cfg *config.Config) calculator.Params {
	a := cfg.Analysis
	p := calculator.DefaultParams()
	p.RSIPeriod = a.RSIPeriod
	p.Overbought = a.RSIOverbought
	p.Oversold = a.RSIOversold
	p.MAPeriods = a.MAPeriods
	p.LevelLookback = a.LevelLookback
	p.ClusterThreshold = a.LevelClusterPercent / 100
	p.VolumeLookback = a.VolumeLookback
	p.HighVolumeThreshold = a.HighVolumeThreshold
	p.MinBars = a.MinBars
	return p
}
