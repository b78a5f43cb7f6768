package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	runsHeader  = []string{"run_id", "created", "dataset", "instruments", "signals", "start", "end", "days", "trades", "start_balance", "end_balance", "net_pnl", "commission", "slippage", "total_return", "annual_return", "max_drawdown", "max_drawdown_pct", "sharpe"}
	fillsHeader = []string{"fill_id", "run_id", "time", "instrument", "direction", "offset", "price", "volume"}
	daysHeader  = []string{"run_id", "date", "trading_pnl", "holding_pnl", "commission", "slippage", "net_pnl", "trades", "balance", "drawdown"}
)

// CSVJournal writes runs.csv, fills.csv and days.csv into one directory.
type CSVJournal struct {
	runs, fills, days *csv.Writer
	files             []*os.File
}

func NewCSV(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	j := &CSVJournal{}
	open := func(name string, header []string) (*csv.Writer, error) {
		fh, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, fh)

		w := csv.NewWriter(fh)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		w.Flush()
		return w, w.Error()
	}

	var err error
	if j.runs, err = open("runs.csv", runsHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.fills, err = open("fills.csv", fillsHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.days, err = open("days.csv", daysHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) RecordRun(r RunRecord) error {
	return write(j.runs, []string{
		r.RunID,
		r.Created.UTC().Format(time.RFC3339),
		r.Dataset,
		strings.Join(r.Instruments, ";"),
		strings.Join(r.Signals, ";"),
		r.Start.UTC().Format(time.RFC3339),
		r.End.UTC().Format(time.RFC3339),
		strconv.Itoa(r.Days),
		strconv.Itoa(r.Trades),
		f(r.StartBalance),
		f(r.EndBalance),
		f(r.NetPnL),
		f(r.Commission),
		f(r.Slippage),
		f(r.TotalReturn),
		f(r.AnnualReturn),
		f(r.MaxDrawdown),
		f(r.MaxDrawdownPct),
		f(r.Sharpe),
	})
}

func (j *CSVJournal) RecordFill(fl FillRecord) error {
	return write(j.fills, []string{
		fl.FillID,
		fl.RunID,
		fl.Time.UTC().Format(time.RFC3339),
		fl.Instrument,
		fl.Direction,
		fl.Offset,
		f(fl.Price),
		strconv.Itoa(fl.Volume),
	})
}

func (j *CSVJournal) RecordDay(d DayRecord) error {
	return write(j.days, []string{
		d.RunID,
		d.Date.UTC().Format("2006-01-02"),
		f(d.TradingPnL),
		f(d.HoldingPnL),
		f(d.Commission),
		f(d.Slippage),
		f(d.NetPnL),
		strconv.Itoa(d.Trades),
		f(d.Balance),
		f(d.Drawdown),
	})
}

func (j *CSVJournal) Close() error {
	for _, w := range []*csv.Writer{j.runs, j.fills, j.days} {
		w.Flush()
		if err := w.Error(); err != nil {
			j.closeFiles()
			return err
		}
	}
	return j.closeFiles()
}

func (j *CSVJournal) closeFiles() error {
	var first error
	for _, fh := range j.files {
		if err := fh.Close(); err != nil && first == nil {
			first = err
		}
	}
	j.files = nil
	return first
}

func write(w *csv.Writer, rec []string) error {
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
