package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Foresight/config"
	"github.com/Alias1177/Foresight/internal/api/marketdata"
	"github.com/Alias1177/Foresight/internal/backtest"
	"github.com/Alias1177/Foresight/internal/database"
	"github.com/Alias1177/Foresight/internal/dataload"
	"github.com/Alias1177/Foresight/internal/ensemble"
	"github.com/Alias1177/Foresight/internal/evaluate"
	"github.com/Alias1177/Foresight/internal/features"
	"github.com/Alias1177/Foresight/internal/forecast"
	"github.com/Alias1177/Foresight/models"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx := context.Background()

	prices, err := loadPrices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load price series")
	}
	log.Info().Str("symbol", cfg.Symbol).Int("days", len(prices)).Msg("price series ready")

	rows, err := features.Build(prices, cfg.Indicators)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build feature set")
	}
	log.Info().Int("rows", len(rows)).Int("lookback", features.MinLookback(cfg.Indicators)).Msg("feature set built")

	policy := config.DefaultPolicy()
	if cfg.PolicyFile != "" {
		policy, err = config.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load ensemble policy")
		}
	}

	combiner, err := ensemble.New(policy)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ensemble policy")
	}

	factories := []forecast.Factory{
		func() forecast.Forecaster { return forecast.NewAR() },
		func() forecast.Forecaster { return forecast.NewBoost(forecast.BoostOptions{Seed: 42}) },
		func() forecast.Forecaster { return forecast.NewLinear() },
	}

	evaluator, err := evaluate.New(factories, combiner, evaluate.Options{
		TrainSize: cfg.TrainSize,
		TestSize:  cfg.TestSize,
		Horizon:   cfg.Indicators.Horizon,
		Workers:   cfg.Workers,
		FitBudget: cfg.FitBudget,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build evaluator")
	}

	started := time.Now()
	signals, reports, err := evaluator.Run(ctx, rows)
	if err != nil {
		log.Fatal().Err(err).Msg("walk-forward evaluation failed")
	}
	log.Info().
		Int("signals", len(signals)).
		Int("folds", len(reports)).
		Dur("elapsed", time.Since(started)).
		Msg("walk-forward evaluation complete")
	for _, report := range reports {
		if len(report.Excluded) > 0 {
			log.Warn().
				Int("fold", report.FoldIndex).
				Interface("excluded", report.Excluded).
				Msg("fold ran with a degraded ensemble")
		}
	}

	ledger, metrics, err := backtest.Run(signals, prices, backtest.Config{CostBps: cfg.CostBps})
	if err != nil {
		log.Fatal().Err(err).Msg("backtest failed")
	}

	log.Info().
		Int("days", metrics.Days).
		Int("trades", metrics.Trades).
		Float64("cumulative_return", metrics.CumulativeReturn).
		Float64("max_drawdown", metrics.MaxDrawdown).
		Float64("hit_rate", metrics.HitRate).
		Float64("sharpe", metrics.SharpeRatio).
		Float64("buy_hold_return", metrics.BuyHoldReturn).
		Msg("backtest summary")

	persistRun(cfg, metrics, signals, ledger)
}

// loadPrices prefers a local CSV and falls back to the market data provider.
func loadPrices(ctx context.Context, cfg *config.Config) ([]models.PricePoint, error) {
	if cfg.DataFile != "" {
		return dataload.LoadCSV(cfg.DataFile)
	}

	client := marketdata.NewClient(marketdata.ClientOptions{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.APIBaseURL,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
	})
	// Enough history for the train window, every test fold, and warmup
	count := cfg.TrainSize + 10*cfg.TestSize + features.MinLookback(cfg.Indicators)
	return client.GetDailySeries(ctx, cfg.Symbol, count)
}

// persistRun saves results to Postgres when a DB host is configured.
func persistRun(cfg *config.Config, metrics models.SummaryMetrics, signals []models.Signal, ledger []models.TradeLedgerEntry) {
	if cfg.DBHost == "" {
		log.Debug().Msg("no DB host configured, skipping persistence")
		return
	}

	db, err := database.New(database.ConnectionParams{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to database")
		return
	}
	defer db.Close()

	runID, err := db.SaveRun(cfg.Symbol, metrics, signals, ledger)
	if err != nil {
		log.Error().Err(err).Msg("failed to persist run")
		return
	}
	log.Info().Int64("run_id", runID).Msg("run persisted")
}
