package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davidhsu/execsim/internal/config"
	"github.com/davidhsu/execsim/internal/logger"
)

var (
	sweepTriggers string
	sweepOffsets  string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a parallel parameter sweep over trailing-stop settings",
	Long: `Runs one isolated backtest per (trigger, offset) combination. Runs
share only the read-only candle and spread tables; every run owns its
trade set, so runs execute in parallel without locks.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepTriggers, "triggers", "", "comma-separated trailing trigger points (required)")
	sweepCmd.Flags().StringVar(&sweepOffsets, "offsets", "", "comma-separated trailing offset points (required)")
	sweepCmd.MarkFlagRequired("triggers")
	sweepCmd.MarkFlagRequired("offsets")
	rootCmd.AddCommand(sweepCmd)
}

type sweepResult struct {
	trigger   float64
	offset    float64
	trades    int
	discarded int
	fillRate  float64
	netPnL    decimal.Decimal
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	triggers, err := parseFloats(sweepTriggers)
	if err != nil {
		return fmt.Errorf("parsing --triggers: %w", err)
	}
	offsets, err := parseFloats(sweepOffsets)
	if err != nil {
		return fmt.Errorf("parsing --offsets: %w", err)
	}

	log := logger.Must(debug)
	defer log.Sync()

	// Loaded once; candles and the spread table are immutable and safe
	// for concurrent readers.
	coarse, fine, rolls, err := loadData(cfg)
	if err != nil {
		return err
	}

	type combo struct{ trigger, offset float64 }
	var combos []combo
	for _, tr := range triggers {
		for _, off := range offsets {
			if off >= tr {
				log.Warn("skipping combination with offset at or above trigger",
					zap.Float64("trigger", tr), zap.Float64("offset", off))
				continue
			}
			combos = append(combos, combo{trigger: tr, offset: off})
		}
	}
	if len(combos) == 0 {
		return fmt.Errorf("no valid trigger/offset combinations")
	}

	results := make([]sweepResult, len(combos))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, cb := range combos {
		g.Go(func() error {
			runCfg := *cfg
			runCfg.Strategy.Trailing = config.TrailingConfig{
				Enabled:       true,
				TriggerPoints: cb.trigger,
				OffsetPoints:  cb.offset,
			}

			driver, _, err := buildDriver(&runCfg, rolls, zap.NewNop(), nil)
			if err != nil {
				return err
			}
			res, err := driver.Run(ctx, coarse, fine)
			if err != nil {
				return err
			}

			net := decimal.Zero
			for _, t := range res.Trades {
				net = net.Add(t.NetPnL)
			}
			mu.Lock()
			results[i] = sweepResult{
				trigger:   cb.trigger,
				offset:    cb.offset,
				trades:    len(res.Trades),
				discarded: len(res.Discarded),
				fillRate:  res.FillRate(),
				netPnL:    net,
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].netPnL.GreaterThan(results[j].netPnL)
	})

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Trigger", "Offset", "Trades", "Discarded", "Fill %", "Net PnL")
	for _, r := range results {
		table.Append(
			fmt.Sprintf("%.1f", r.trigger),
			fmt.Sprintf("%.1f", r.offset),
			fmt.Sprintf("%d", r.trades),
			fmt.Sprintf("%d", r.discarded),
			fmt.Sprintf("%.1f", r.fillRate*100),
			r.netPnL.StringFixed(2),
		)
	}
	table.Render()
	return nil
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty list")
	}
	return out, nil
}
