package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/turtle/backtest"
	"github.com/rustyeddy/turtle/config"
	"github.com/rustyeddy/turtle/journal"
	"github.com/rustyeddy/turtle/market"
	"github.com/rustyeddy/turtle/metrics"
)

const postgresConnectWait = 30 * time.Second

func newBacktestCmd(rc *RootConfig) *cobra.Command {
	var (
		barsPath        string
		instrumentsPath string
		fromStr         string
		toStr           string
		portfolio       float64
		journalType     string
		journalDir      string
		orgPath         string
		metricsFile     string
		seed            int64
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run the breakout portfolio over historical bars",
		Long: `Replay daily bars through every configured breakout signal on every
instrument, print the summary and journal the run.

Settings come from --config (or the defaults) and are overridden by flags.

Examples:
  turtle backtest --bars data/bars.csv.xz --instruments data/instruments.csv
  turtle backtest --config turtle.yaml --journal none --org run.org`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if rc.ConfigPath != "" {
				var err error
				if cfg, err = config.LoadFromFile(rc.ConfigPath); err != nil {
					return err
				}
			}

			flags := cmd.Flags()
			if flags.Changed("bars") {
				cfg.Data.Bars = barsPath
				cfg.Data.ClickHouse = nil
			}
			if flags.Changed("instruments") {
				cfg.Data.Instruments = instrumentsPath
			}
			if flags.Changed("from") {
				cfg.Data.From = fromStr
			}
			if flags.Changed("to") {
				cfg.Data.To = toStr
			}
			if flags.Changed("portfolio") {
				cfg.Portfolio.Value = portfolio
			}
			if flags.Changed("journal") {
				cfg.Journal.Type = journalType
			}
			if flags.Changed("journal-dir") {
				cfg.Journal.Dir = journalDir
			}
			if flags.Changed("db") || cfg.Journal.DBPath == "" {
				cfg.Journal.DBPath = rc.DBPath
			}
			if rc.PGDSN != "" && cfg.Journal.DSN == "" {
				cfg.Journal.DSN = rc.PGDSN
			}
			if flags.Changed("org") {
				cfg.Journal.OrgPath = orgPath
			}
			if flags.Changed("metrics-file") {
				cfg.MetricsFile = metricsFile
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			insts, err := market.LoadInstrumentsCSV(cfg.Data.Instruments)
			if err != nil {
				return err
			}

			feed, dataset, err := openFeed(ctx, cfg.Data, insts)
			if err != nil {
				return err
			}

			opts := []backtest.Option{backtest.WithLogger(rc.Log)}
			var m *metrics.Metrics
			if cfg.MetricsFile != "" {
				m = metrics.New()
				opts = append(opts, backtest.WithMetrics(m))
			}
			if flags.Changed("seed") {
				opts = append(opts, backtest.WithIDSeed(seed))
			}

			engine, err := backtest.NewEngine(cfg.Engine(), insts, opts...)
			if err != nil {
				return err
			}

			j, err := openJournal(ctx, cfg.Journal)
			if err != nil {
				return err
			}
			if j != nil {
				defer j.Close()
			}

			runner := &backtest.Runner{
				Engine:  engine,
				Feed:    feed,
				Journal: j,
				Options: backtest.RunnerOptions{
					Dataset: dataset,
					OrgPath: cfg.Journal.OrgPath,
				},
			}

			rep, err := runner.Run(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			backtest.PrintResult(out, rep.Result)
			fmt.Fprintf(out, "\nRun ID:            %s\n", rep.RunID)

			if m != nil {
				if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
					return fmt.Errorf("metrics: %w", err)
				}
			}

			rc.Log.Info().
				Str("run_id", rep.RunID).
				Str("journal", cfg.Journal.Type).
				Int("fills", len(engine.Fills(""))).
				Msg("backtest complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&barsPath, "bars", "", "bar CSV file (time,instrument,open,high,low,close[,volume]); .xz allowed")
	cmd.Flags().StringVar(&instrumentsPath, "instruments", "", "instrument CSV file")
	cmd.Flags().StringVar(&fromStr, "from", "", "start time, inclusive (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&toStr, "to", "", "end time, exclusive (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().Float64Var(&portfolio, "portfolio", 0, "portfolio value used for sizing")
	cmd.Flags().StringVar(&journalType, "journal", "", "journal type: none|csv|sqlite|postgres")
	cmd.Flags().StringVar(&journalDir, "journal-dir", "", "directory for the CSV journal")
	cmd.Flags().StringVar(&orgPath, "org", "", "write an Org-mode report of the run")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in textfile format")
	cmd.Flags().Int64Var(&seed, "seed", 1, "seed for fill IDs")

	return cmd
}

// openFeed returns the bar feed described by d and a name for the journal.
func openFeed(ctx context.Context, d config.DataConfig, insts market.Instruments) (market.SliceFeed, string, error) {
	from, to, err := d.Range()
	if err != nil {
		return nil, "", err
	}

	if d.ClickHouse != nil {
		src, err := market.NewClickHouseSource(ctx, *d.ClickHouse)
		if err != nil {
			return nil, "", err
		}
		defer src.Close()

		feed, err := src.Feed(ctx, insts.Symbols(), from, to)
		if err != nil {
			return nil, "", err
		}
		return feed, "clickhouse://" + d.ClickHouse.Addr + "/" + d.ClickHouse.Table, nil
	}

	feed, err := market.OpenBarFeed(d.Bars, from, to)
	if err != nil {
		return nil, "", err
	}
	return feed, d.Bars, nil
}

// openJournal opens the configured journal, or returns nil for none.
func openJournal(ctx context.Context, jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case config.JournalCSV:
		return journal.NewCSV(jc.Dir)
	case config.JournalSQLite:
		return journal.NewSQLite(jc.DBPath)
	case config.JournalPostgres:
		return journal.NewPostgres(ctx, jc.DSN, postgresConnectWait)
	}
	return nil, nil
}
