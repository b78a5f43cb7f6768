package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrRunNotFound = errors.New("run not found")

const runColumns = `run_id, created, dataset, instruments, signals, start_date, end_date, days, trades,
	start_balance, end_balance, net_pnl, commission, slippage,
	total_return, annual_return, max_drawdown, max_drawdown_pct, sharpe`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunRecord, error) {
	var (
		rec                  RunRecord
		instruments, signals string
	)
	err := s.Scan(
		&rec.RunID,
		&rec.Created,
		&rec.Dataset,
		&instruments,
		&signals,
		&rec.Start,
		&rec.End,
		&rec.Days,
		&rec.Trades,
		&rec.StartBalance,
		&rec.EndBalance,
		&rec.NetPnL,
		&rec.Commission,
		&rec.Slippage,
		&rec.TotalReturn,
		&rec.AnnualReturn,
		&rec.MaxDrawdown,
		&rec.MaxDrawdownPct,
		&rec.Sharpe,
	)
	if err != nil {
		return RunRecord{}, err
	}
	rec.Instruments = splitList(instruments)
	rec.Signals = splitList(signals)
	return rec, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// GetRun returns a single run by ID.
func (j *SQLJournal) GetRun(runID string) (RunRecord, error) {
	row := j.db.QueryRow(rebind(j.driver, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`), runID)

	rec, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, fmt.Errorf("%w: %q", ErrRunNotFound, runID)
		}
		return RunRecord{}, err
	}
	return rec, nil
}

// ListRuns returns every run, newest first.
func (j *SQLJournal) ListRuns() ([]RunRecord, error) {
	rows, err := j.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY created DESC, run_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListFills returns the fills of a run in time order.
func (j *SQLJournal) ListFills(runID string) ([]FillRecord, error) {
	rows, err := j.db.Query(rebind(j.driver, `
		SELECT fill_id, run_id, time, instrument, direction, open_close, price, volume
		FROM fills
		WHERE run_id = ?
		ORDER BY time ASC, fill_id ASC`), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		var rec FillRecord
		if err := rows.Scan(
			&rec.FillID,
			&rec.RunID,
			&rec.Time,
			&rec.Instrument,
			&rec.Direction,
			&rec.Offset,
			&rec.Price,
			&rec.Volume,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDays returns the daily ledger of a run in date order.
func (j *SQLJournal) ListDays(runID string) ([]DayRecord, error) {
	rows, err := j.db.Query(rebind(j.driver, `
		SELECT run_id, date, trading_pnl, holding_pnl, commission, slippage, net_pnl, trades, balance, drawdown
		FROM days
		WHERE run_id = ?
		ORDER BY date ASC`), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DayRecord
	for rows.Next() {
		var rec DayRecord
		if err := rows.Scan(
			&rec.RunID,
			&rec.Date,
			&rec.TradingPnL,
			&rec.HoldingPnL,
			&rec.Commission,
			&rec.Slippage,
			&rec.NetPnL,
			&rec.Trades,
			&rec.Balance,
			&rec.Drawdown,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
