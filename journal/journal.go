// Package journal persists backtest runs: the summary of each run, every
// fill and the daily ledger.
package journal

import "time"

// RunRecord is the summary row of one backtest run.
type RunRecord struct {
	RunID       string
	Created     time.Time
	Dataset     string
	Instruments []string
	Signals     []string // signal config names, e.g. "20/10/20+pc"

	Start time.Time
	End   time.Time
	Days  int

	Trades int

	StartBalance float64
	EndBalance   float64
	NetPnL       float64
	Commission   float64
	Slippage     float64

	TotalReturn    float64 // percent
	AnnualReturn   float64 // percent
	MaxDrawdown    float64
	MaxDrawdownPct float64
	Sharpe         float64
}

// FillRecord is one recorded fill.
type FillRecord struct {
	FillID     string
	RunID      string
	Time       time.Time
	Instrument string
	Direction  string // LONG | SHORT
	Offset     string // OPEN | CLOSE
	Price      float64
	Volume     int
}

// DayRecord is one finalized day together with the balance curve after it.
type DayRecord struct {
	RunID      string
	Date       time.Time
	TradingPnL float64
	HoldingPnL float64
	Commission float64
	Slippage   float64
	NetPnL     float64
	Trades     int
	Balance    float64
	Drawdown   float64
}

type Journal interface {
	RecordRun(RunRecord) error
	RecordFill(FillRecord) error
	RecordDay(DayRecord) error
	Close() error
}
