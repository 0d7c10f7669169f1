package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"PortfolioSentinel/internal/analysis"
	"PortfolioSentinel/internal/cache"
	"PortfolioSentinel/internal/collector"
	"PortfolioSentinel/internal/config"
	"PortfolioSentinel/internal/logger"
	"PortfolioSentinel/internal/metrics"
	"PortfolioSentinel/internal/model"
	"PortfolioSentinel/internal/notifier"
	"PortfolioSentinel/internal/pipeline"
	"PortfolioSentinel/internal/portfolio"
	"PortfolioSentinel/internal/recorder"
	"PortfolioSentinel/internal/risk"
	"PortfolioSentinel/internal/scheduler"
	"PortfolioSentinel/internal/server"
)

func main() {
	defaultConfig := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultConfig = v
	}
	cfgPath := flag.String("config", defaultConfig, "path to the YAML config file")
	portfolioPath := flag.String("portfolio", "", "path to the portfolio JSON file (overrides config)")
	single := flag.Bool("single", false, "run one cycle and exit")
	ticker := flag.String("ticker", "", "analyze one instrument and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *portfolioPath != "" {
		cfg.PortfolioFile = *portfolioPath
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	log.Info().Msg("PortfolioSentinel starting")

	instruments, err := portfolio.Load(cfg.PortfolioFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.PortfolioFile).Msg("load portfolio")
	}
	log.Info().Int("instruments", len(instruments)).Msg("portfolio loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, closeStore := buildCache(ctx, cfg, log)
	defer closeStore()

	col := buildCollector(cfg, store, m, log)
	analyst := analysis.New(cfg.AnalysisConfig(), log, analysis.WithMetrics(m))
	calc := risk.NewCalculator(cfg.RiskParams(), log)
	orch := pipeline.New(col, analyst, calc, pipeline.Config{
		HistoryPeriod:       cfg.MarketData.HistoryPeriod,
		HistoryInterval:     cfg.MarketData.HistoryInterval,
		MinRiskReward:       cfg.MinRiskReward,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
	}, log, pipeline.WithMetrics(m))

	rec, history := buildRecorder(ctx, cfg, log)
	closeRecorder := sync.OnceValue(rec.Close)
	defer closeRecorder()

	var notif notifier.Notifier = notifier.NewLogNotifier(log)
	var tg *notifier.Telegram
	if cfg.TelegramEnabled() && *ticker == "" {
		tg, err = notifier.NewTelegram(notifier.TelegramConfig{
			BotToken:   cfg.Telegram.BotToken,
			ChatID:     cfg.Telegram.ChatID,
			Proxy:      cfg.Proxy,
			MaxRetries: cfg.Telegram.MaxRetries,
		}, log, m)
		if err != nil {
			log.Warn().Err(err).Msg("init telegram failed, notifications go to the log")
		} else {
			notif = tg
		}
	}

	sched := scheduler.New(orch, instruments, rec, notif, scheduler.Config{
		CronSpec:            cfg.CronSpec(),
		InstrumentDelay:     cfg.Schedule.InstrumentDelay,
		InstrumentTimeout:   cfg.Schedule.InstrumentTimeout,
		Workers:             cfg.Schedule.Workers,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		RunOnStart:          !cfg.Schedule.SkipInitialRun,
	}, log, scheduler.WithMetrics(m))

	switch {
	case *ticker != "":
		code := runTicker(ctx, sched, portfolio.Find(instruments, *ticker), closeRecorder, os.Stdout, log)
		if code != 0 {
			// os.Exit skips deferred calls.
			closeStore()
			os.Exit(code)
		}
		return
	case *single:
		summary := sched.RunCycle(ctx)
		sched.Flush()
		printJSON(os.Stdout, summary)
		return
	}

	var srv *server.Server
	if !cfg.Server.Disabled {
		var opts []server.Option
		if history != nil {
			opts = append(opts, server.WithHistory(history))
		}
		srv = server.New(cfg.Server.Addr, sched, reg, log, opts...)
		go func() {
			if err := srv.Start(); err != nil {
				log.Error().Err(err).Msg("status server")
			}
		}()
	}

	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start scheduler")
	}
	if tg != nil {
		go tg.StartPolling(ctx, sched.HandleCommand)
	}

	log.Info().Msg("PortfolioSentinel is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping...")
	cancel()
	sched.Stop()
	if srv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown status server")
		}
	}
	log.Info().Msg("PortfolioSentinel stopped")
}

func buildCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cache.Store, func()) {
	if cfg.Cache.Backend == "redis" {
		r, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		}, cfg.Cache.TTL)
		if err == nil {
			log.Info().Str("addr", cfg.Cache.Redis.Addr).Msg("using redis cache")
			return r, func() { _ = r.Close() }
		}
		log.Warn().Err(err).Msg("redis unavailable, using in-memory cache")
	}
	return cache.NewMemory(cfg.Cache.TTL, nil), func() {}
}

func buildFetcher(name string, cfg *config.Config) collector.Fetcher {
	switch name {
	case "vstrader":
		return collector.NewVsTraderFetcher(cfg.MarketData.BaseURL, cfg.MarketData.APIKey, cfg.ClientOptions())
	case "yahoo":
		return collector.NewYahooFetcher(cfg.ClientOptions())
	default:
		return nil
	}
}

func buildCollector(cfg *config.Config, store cache.Store, m *metrics.Recorder, log zerolog.Logger) *collector.Collector {
	primary := buildFetcher(cfg.MarketData.Provider, cfg)
	opts := []collector.Option{collector.WithMetrics(m)}
	if fb := buildFetcher(cfg.MarketData.Fallback, cfg); fb != nil && cfg.MarketData.Fallback != cfg.MarketData.Provider {
		opts = append(opts, collector.WithFallback(fb))
	}
	log.Info().Str("provider", primary.Name()).Str("fallback", cfg.MarketData.Fallback).Msg("market data source")
	return collector.NewCollector(primary, store, log, opts...)
}

func buildRecorder(ctx context.Context, cfg *config.Config, log zerolog.Logger) (recorder.Recorder, recorder.HistoryReader) {
	var recs recorder.Multi
	var history recorder.HistoryReader
	if cfg.OutputDir != "" {
		jr, err := recorder.NewJSONFileRecorder(cfg.OutputDir)
		if err != nil {
			log.Warn().Err(err).Msg("init json recorder failed")
		} else {
			recs = append(recs, jr)
		}
	}

	switch cfg.Database.Driver {
	case "sqlite":
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, skipping")
		} else {
			recs = append(recs, sr)
			history = sr
		}
	case "postgres":
		pr, err := recorder.NewPostgresRecorder(ctx, cfg.Database.PostgresDSN, log)
		if err != nil {
			log.Warn().Err(err).Msg("init postgres recorder failed, skipping")
		} else {
			recs = append(recs, pr)
			history = pr
		}
	}

	if len(recs) == 0 {
		return recorder.NewNoopRecorder(), nil
	}
	return recs, history
}

// runTicker analyzes one instrument, prints the result and closes the
// recorder once pending writes are done. It returns the process exit code.
func runTicker(ctx context.Context, sched *scheduler.Scheduler, inst model.Instrument, closeRecorder func() error, out io.Writer, log zerolog.Logger) int {
	res := sched.AnalyzeOne(ctx, inst)
	sched.Flush()
	printJSON(out, res)
	if err := closeRecorder(); err != nil {
		log.Error().Err(err).Msg("close recorder")
	}
	if !res.Success {
		return 2
	}
	return 0
}

func printJSON(out io.Writer, v any) {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
