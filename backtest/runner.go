package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/turtle/journal"
	"github.com/rustyeddy/turtle/market"
	"github.com/rustyeddy/turtle/pkg/id"
)

// RunnerOptions controls what the runner persists besides the journal.
type RunnerOptions struct {
	// Dataset names the bar source in the journal, e.g. a file path.
	Dataset string

	// If set, an Org-mode entry for the run is written here.
	OrgPath string
	Notes   []string

	// RunID overrides the generated run ID.
	RunID string
}

// Runner drives an engine over a feed and persists the run.
type Runner struct {
	Engine  *Engine
	Feed    market.SliceFeed
	Journal journal.Journal // optional
	Options RunnerOptions
}

// Report is what a finished run hands back to the caller.
type Report struct {
	RunID  string
	Result Result
}

// Run executes the backtest:
//  1. replay every slice through the engine
//  2. aggregate the finalized days
//  3. record each fill and day, then the run summary, in the journal
//  4. write the Org entry when requested
func (r *Runner) Run(ctx context.Context) (Report, error) {
	if r.Engine == nil {
		return Report{}, fmt.Errorf("backtest: Engine is required")
	}
	if r.Feed == nil {
		return Report{}, fmt.Errorf("backtest: Feed is required")
	}

	if err := r.Engine.Run(ctx, r.Feed); err != nil {
		return Report{}, err
	}

	res, err := r.Engine.Result()
	if err != nil {
		return Report{}, fmt.Errorf("backtest: %w", err)
	}

	runID := r.Options.RunID
	if runID == "" {
		runID = id.New()
	}
	rep := Report{RunID: runID, Result: res}
	run := r.runRecord(runID, res)
	fills := r.fillRecords(runID)

	if r.Journal != nil {
		for _, f := range fills {
			if err := r.Journal.RecordFill(f); err != nil {
				return rep, fmt.Errorf("journal fill %s: %w", f.FillID, err)
			}
		}
		for _, d := range r.dayRecords(runID, res) {
			if err := r.Journal.RecordDay(d); err != nil {
				return rep, fmt.Errorf("journal day %s: %w", d.Date.Format(time.DateOnly), err)
			}
		}
		if err := r.Journal.RecordRun(run); err != nil {
			return rep, fmt.Errorf("journal run %s: %w", runID, err)
		}
	}

	if r.Options.OrgPath != "" {
		org := journal.OrgReport{Run: run, Fills: fills, Notes: r.Options.Notes}
		if err := journal.WriteOrgFile(r.Options.OrgPath, org); err != nil {
			return rep, fmt.Errorf("org %s: %w", r.Options.OrgPath, err)
		}
	}
	return rep, nil
}

func (r *Runner) runRecord(runID string, res Result) journal.RunRecord {
	s := res.Summary
	cfg := r.Engine.Config()

	signals := make([]string, 0, len(cfg.Signals))
	for _, sc := range cfg.Signals {
		signals = append(signals, sc.Name())
	}

	return journal.RunRecord{
		RunID:          runID,
		Created:        time.Now().UTC(),
		Dataset:        r.Options.Dataset,
		Instruments:    r.Engine.instruments.Symbols(),
		Signals:        signals,
		Start:          s.StartDate,
		End:            s.EndDate,
		Days:           s.TotalDays,
		Trades:         s.TotalTradeCount,
		StartBalance:   s.StartBalance,
		EndBalance:     s.EndBalance,
		NetPnL:         s.TotalNetPnL,
		Commission:     s.TotalCommission,
		Slippage:       s.TotalSlippage,
		TotalReturn:    s.TotalReturn,
		AnnualReturn:   s.AnnualizedReturn,
		MaxDrawdown:    s.MaxDrawdown,
		MaxDrawdownPct: s.MaxDrawdownPct,
		Sharpe:         s.SharpeRatio,
	}
}

func (r *Runner) fillRecords(runID string) []journal.FillRecord {
	fills := r.Engine.Fills("")
	out := make([]journal.FillRecord, 0, len(fills))
	for _, f := range fills {
		out = append(out, journal.FillRecord{
			FillID:     f.ID,
			RunID:      runID,
			Time:       f.Time,
			Instrument: f.Instrument,
			Direction:  f.Direction.String(),
			Offset:     f.Offset.String(),
			Price:      f.Price,
			Volume:     f.Volume,
		})
	}
	return out
}

func (r *Runner) dayRecords(runID string, res Result) []journal.DayRecord {
	days := r.Engine.Days()
	out := make([]journal.DayRecord, 0, len(days))
	for i, d := range days {
		pnl := d.PnL()
		out = append(out, journal.DayRecord{
			RunID:      runID,
			Date:       d.Date,
			TradingPnL: pnl.TradingPnL,
			HoldingPnL: pnl.HoldingPnL,
			Commission: pnl.Commission,
			Slippage:   pnl.Slippage,
			NetPnL:     pnl.NetPnL,
			Trades:     pnl.TradeCount,
			Balance:    res.Series.Balance[i],
			Drawdown:   res.Series.Drawdown[i],
		})
	}
	return out
}
