package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/turtle/backtest"
	"github.com/rustyeddy/turtle/journal"
)

func newJournalCmd(rc *RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query stored backtest runs",
		Long: `Query runs stored in the SQLite journal (--db) or Postgres (--pg-dsn).

Examples:
  turtle journal runs
  turtle journal run <run-id>`,
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openQueryJournal(cmd.Context(), rc)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer j.Close()

			runs, err := j.ListRuns()
			if err != nil {
				return fmt.Errorf("query runs: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN_ID\tCREATED\tPERIOD\tTRADES\tNET_PNL\tRETURN%\tMAX_DD%")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s..%s\t%d\t%s\t%s\t%s\n",
					r.RunID,
					r.Created.Format("2006-01-02 15:04"),
					r.Start.Format("2006-01-02"),
					r.End.Format("2006-01-02"),
					r.Trades,
					backtest.FormatNumber(r.NetPnL),
					backtest.FormatNumber(r.TotalReturn),
					backtest.FormatNumber(r.MaxDrawdownPct),
				)
			}
			return tw.Flush()
		},
	}

	runCmd := &cobra.Command{
		Use:   "run <run-id>",
		Short: "Print one run with its fills as Org",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openQueryJournal(cmd.Context(), rc)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer j.Close()

			run, err := j.GetRun(args[0])
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}
			fills, err := j.ListFills(run.RunID)
			if err != nil {
				return fmt.Errorf("query fills: %w", err)
			}

			return journal.WriteOrg(cmd.OutOrStdout(), journal.OrgReport{Run: run, Fills: fills})
		},
	}

	cmd.AddCommand(runsCmd, runCmd)
	return cmd
}

func openQueryJournal(ctx context.Context, rc *RootConfig) (*journal.SQLJournal, error) {
	if rc.PGDSN != "" {
		return journal.NewPostgres(ctx, rc.PGDSN, postgresConnectWait)
	}
	return journal.NewSQLite(rc.DBPath)
}
