package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/davidhsu/execsim/internal/config"
	"github.com/davidhsu/execsim/internal/core"
	"github.com/davidhsu/execsim/internal/engine"
	"github.com/davidhsu/execsim/internal/exits"
	"github.com/davidhsu/execsim/internal/feed"
	"github.com/davidhsu/execsim/internal/fill"
	"github.com/davidhsu/execsim/internal/logger"
	"github.com/davidhsu/execsim/internal/metrics"
	"github.com/davidhsu/execsim/internal/report"
	"github.com/davidhsu/execsim/internal/rollover"
	"github.com/davidhsu/execsim/internal/storage/archive"
	"github.com/davidhsu/execsim/internal/storage/trades"
	"github.com/davidhsu/execsim/internal/strategy"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one backtest over the configured candle streams",
	RunE:  runSimulation,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.Must(debug)
	defer log.Sync()

	coarse, fine, rolls, err := loadData(cfg)
	if err != nil {
		return err
	}

	reg := (*metrics.Registry)(nil)
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		go serveMetrics(cfg.Metrics.Addr, reg, log)
	}

	driver, strat, err := buildDriver(cfg, rolls, log, reg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	startedAt := time.Now()
	log.Info("starting run",
		zap.String("run_id", runID),
		zap.String("strategy", strat.Name()),
		zap.Int("coarse_bars", len(coarse)),
		zap.Int("fine_bars", len(fine)))

	res, runErr := driver.Run(ctx, coarse, fine)
	if res == nil {
		return runErr
	}
	if runErr != nil {
		log.Warn("run aborted, active trades forced flat", zap.Error(runErr))
	}

	report.WriteTable(os.Stdout, res)

	if err := persist(cfg, runID, strat.Name(), startedAt, res, log); err != nil {
		return err
	}
	return nil
}

func loadData(cfg *config.Config) ([]core.Candle, []core.Candle, *rollover.Table, error) {
	coarse, err := feed.LoadCandles(cfg.Data.Coarse)
	if err != nil {
		return nil, nil, nil, err
	}
	fine, err := feed.LoadCandles(cfg.Data.Fine)
	if err != nil {
		return nil, nil, nil, err
	}
	var spreads []core.CalendarSpread
	if cfg.Data.Spreads != "" {
		spreads, err = feed.LoadSpreads(cfg.Data.Spreads)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	rolls, err := rollover.NewTable(spreads)
	if err != nil {
		return nil, nil, nil, err
	}
	return coarse, fine, rolls, nil
}

// buildDriver wires the fill resolver, exit evaluator, roll adapter and
// reference strategy into one isolated driver.
func buildDriver(cfg *config.Config, rolls *rollover.Table, log *zap.Logger, reg *metrics.Registry) (*engine.Driver, strategy.Strategy, error) {
	resolver, err := fill.NewResolver(fill.Policy{
		Mode:        fill.Mode(cfg.Fill.Mode),
		MarketPrice: fill.MarketPrice(cfg.Fill.MarketPrice),
		TimeoutBars: cfg.Fill.TimeoutBars,
	})
	if err != nil {
		return nil, nil, err
	}

	precedence, err := exits.ParsePrecedence(cfg.Exits.Precedence)
	if err != nil {
		return nil, nil, err
	}

	var trailingParams *core.TrailingParams
	if cfg.Strategy.Trailing.Enabled {
		trailingParams = &core.TrailingParams{
			TriggerPoints: cfg.Strategy.Trailing.TriggerPoints,
			OffsetPoints:  cfg.Strategy.Trailing.OffsetPoints,
		}
	}
	strat, err := strategy.NewBreakout(strategy.BreakoutConfig{
		Lookback:    cfg.Strategy.Lookback,
		RiskReward:  cfg.Strategy.RiskReward,
		MaxHoldBars: cfg.Strategy.MaxHoldBars,
		Trailing:    trailingParams,
	})
	if err != nil {
		return nil, nil, err
	}

	machine := engine.NewMachine(engine.MachineParams{
		Resolver:          resolver,
		Evaluator:         exits.NewEvaluator(precedence),
		Rolls:             rolls,
		PointValue:        decimal.NewFromFloat(cfg.PointValue),
		Commission:        decimal.NewFromFloat(cfg.Commission),
		ForceFlat:         cfg.ForceFlat,
		MaxUnresolvedBars: cfg.MaxUnresolvedBars,
		Log:               log,
	})
	return engine.NewDriver(machine, strat, log, reg), strat, nil
}

func persist(cfg *config.Config, runID, stratName string, startedAt time.Time, res *engine.Result, log *zap.Logger) error {
	ctx := context.Background()

	if cfg.Storage.DSN != "" {
		store, err := trades.Open(cfg.Storage.DSN)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.SaveRun(ctx, runID, stratName, startedAt, res); err != nil {
			return err
		}
		log.Info("trade records saved", zap.String("dsn", cfg.Storage.DSN), zap.String("run_id", runID))
	}

	if cfg.Storage.Archive.Type != "" {
		store, err := buildArchive(cfg.Storage.Archive)
		if err != nil {
			return err
		}
		data, err := report.NewArtifact(res).Marshal()
		if err != nil {
			return err
		}
		key := archive.RunKey(startedAt, runID)
		if err := store.Put(ctx, key, data); err != nil {
			return err
		}
		log.Info("run artifact archived", zap.String("key", key))
	}
	return nil
}

func buildArchive(cfg config.ArchiveConfig) (archive.Store, error) {
	if cfg.Type == "s3" {
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	}
	return archive.NewLocalFS(cfg.Path)
}

func serveMetrics(addr string, reg *metrics.Registry, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg.Registry, promhttp.HandlerOpts{}))
	log.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics endpoint stopped", zap.Error(err))
	}
}
