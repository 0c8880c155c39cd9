package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"backtest_engine/internal/bootstrap"
	"backtest_engine/internal/config"
	"backtest_engine/internal/core"
	"backtest_engine/internal/data"
	"backtest_engine/internal/engine"
	"backtest_engine/internal/feed"
	"backtest_engine/internal/infrastructure/health"
	"backtest_engine/internal/infrastructure/metrics"
	"backtest_engine/internal/portfolio"
	"backtest_engine/internal/results"
	"backtest_engine/internal/securities"
	"backtest_engine/pkg/cli"
	"backtest_engine/pkg/concurrency"
	pkghttp "backtest_engine/pkg/http"
	"backtest_engine/pkg/telemetry"
)

var (
	// Version information (set via build flags)
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/backtest.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("backtester version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	if err := cli.ValidatePath(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config path: %v\n", err)
		os.Exit(1)
	}

	app, err := bootstrap.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}

	if err := run(app); err != nil {
		app.Logger.Error("backtest failed", "error", err)
		os.Exit(1)
	}
}

func run(app *bootstrap.App) error {
	cfg := app.Cfg
	logger := app.Logger

	tel, err := telemetry.Setup("backtest_engine")
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	job, err := buildJob(cfg)
	if err != nil {
		return err
	}
	logger.Info("run configured",
		"run_id", job.RunID,
		"name", job.Name,
		"version", version)

	manager := securities.NewManager()
	cashBook := securities.NewCashBook(cfg.Account.Currency)
	feeModel := buildFeeModel(cfg)
	book := portfolio.NewPortfolio(logger, manager, cashBook, feeModel, job.RunID)
	book.SetCash(decimal.NewFromFloat(cfg.Account.StartingCash))
	book.SetMarginWarningBuffer(decimal.NewFromFloat(cfg.Portfolio.MarginWarningBuffer))
	txn := portfolio.NewTransactionManager(logger, manager, book, feeModel)

	dataFeed := feed.NewDataFeed(logger, buildFactory(cfg, logger), cfg.Feed.BridgeCapacity, cfg.Feed.SlicesPerSecond)
	if err := dataFeed.Initialize(job); err != nil {
		return err
	}

	hours := buildHours(cfg)
	if err := registerSecurities(cfg, manager, dataFeed, hours); err != nil {
		return err
	}
	if err := cashBook.EnsureCurrencyDataFeeds(manager, dataFeed, hours); err != nil {
		return fmt.Errorf("currency resolution: %w", err)
	}

	handler, err := buildResultHandler(cfg, job, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := handler.Close(); err != nil {
			logger.Warn("closing result handler", "error", err)
		}
	}()

	if cfg.Telemetry.EnableMetrics {
		healthManager := health.NewManager(logger)
		healthManager.Register("bridge", func() error {
			if dataFeed.Bridge().IsCompleted() && dataFeed.Bridge().IsBusy() {
				return fmt.Errorf("bridge completed with %d slices stuck", dataFeed.Bridge().Count())
			}
			return nil
		})
		srv := metrics.NewServer(cfg.Telemetry.MetricsPort, healthManager, logger)
		srv.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(ctx)
		}()
	}

	runner := engine.NewRunner(logger, job, dataFeed, manager, cashBook, book, txn,
		buildAlgorithm(cfg), handler, engine.ImmediateFillModel{})

	return app.Run(runner)
}

func buildJob(cfg *config.Config) (core.BacktestJob, error) {
	job := core.BacktestJob{
		RunID:           uuid.NewString(),
		Name:            cfg.App.Name,
		AccountCurrency: cfg.Account.Currency,
		StartingCash:    decimal.NewFromFloat(cfg.Account.StartingCash),
	}

	var err error
	if cfg.App.UTCStart != "" {
		if job.UTCStart, err = time.Parse(time.RFC3339, cfg.App.UTCStart); err != nil {
			return job, fmt.Errorf("app.utc_start: %w", err)
		}
	}
	if cfg.App.UTCEnd != "" {
		if job.UTCEnd, err = time.Parse(time.RFC3339, cfg.App.UTCEnd); err != nil {
			return job, fmt.Errorf("app.utc_end: %w", err)
		}
	}
	return job, nil
}

func buildFeeModel(cfg *config.Config) portfolio.FeeModel {
	if cfg.Portfolio.FeePerOrder > 0 {
		return portfolio.ConstantFeeModel{Fee: decimal.NewFromFloat(cfg.Portfolio.FeePerOrder)}
	}
	return portfolio.ZeroFeeModel{}
}

func buildFactory(cfg *config.Config, logger core.ILogger) feed.SourceFactory {
	switch cfg.Feed.SourceType {
	case "stream":
		return data.StreamFactory(cfg.Feed.StreamURL, cfg.Feed.StreamBuffer, logger)
	case "rest":
		return data.RESTFactory(pkghttp.NewClient(cfg.Feed.RestURL, 30*time.Second))
	default:
		return data.CSVFactory(cfg.Feed.DataDir)
	}
}

// buildHours maps each configured equity market to itself as a MIC code;
// forex and unlisted markets fall back to always-open hours
func buildHours(cfg *config.Config) securities.HoursProvider {
	mics := make(map[string]string)
	for _, sec := range cfg.Securities {
		if strings.ToUpper(sec.Type) == "EQUITY" && sec.Market != "" {
			mics[strings.ToLower(sec.Market)] = strings.ToLower(sec.Market)
		}
	}
	return securities.NewMICHoursProvider(mics)
}

func registerSecurities(cfg *config.Config, manager *securities.Manager, dataFeed *feed.DataFeed, hours securities.HoursProvider) error {
	for _, sc := range cfg.Securities {
		if err := cli.ValidateSymbol(sc.Symbol); err != nil {
			return fmt.Errorf("security %q: %w", sc.Symbol, err)
		}

		quote := sc.QuoteCurrency
		if quote == "" && strings.ToUpper(sc.Type) == "FOREX" {
			quote = strings.ToUpper(sc.Symbol[3:])
		}

		sec, err := securities.NewSecurity(securities.SecuritySpec{
			Symbol:        sc.Symbol,
			Type:          core.SecurityType(strings.ToUpper(sc.Type)),
			Market:        sc.Market,
			TimeZone:      sc.TimeZone,
			Resolution:    core.Resolution(strings.ToUpper(sc.Resolution)),
			Hours:         hours.HoursFor(sc.Market, sc.Symbol),
			QuoteCurrency: quote,
			Leverage:      decimal.NewFromFloat(sc.Leverage),
		})
		if err != nil {
			return err
		}

		manager.Add(sec)
		if err := dataFeed.AddSubscription(sec, time.Time{}, time.Time{}); err != nil {
			return err
		}
	}
	return nil
}

func buildAlgorithm(cfg *config.Config) core.IAlgorithm {
	if cfg.Algorithm.Type == "buy_and_hold" {
		return &engine.BuyAndHold{
			Symbol:   cfg.Algorithm.Symbol,
			Quantity: decimal.NewFromFloat(cfg.Algorithm.Quantity),
		}
	}
	return engine.HoldAlgorithm{}
}

func buildResultHandler(cfg *config.Config, job core.BacktestJob, logger core.ILogger) (core.IResultHandler, error) {
	if cfg.Results.JournalPath == "" {
		return results.NopHandler{}, nil
	}
	return results.NewSQLiteJournal(cfg.Results.JournalPath, job.RunID, job.Name,
		concurrency.PoolConfig{
			Name:        "results_journal",
			MaxCapacity: cfg.Concurrency.JournalPoolBuffer,
		}, logger)
}
