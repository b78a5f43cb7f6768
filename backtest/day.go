package backtest

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/turtle/market"
	"github.com/rustyeddy/turtle/risk"
)

var (
	// ErrDayFinalized is returned when a finalized day is changed or
	// finalized again.
	ErrDayFinalized = errors.New("day already finalized")

	// ErrDayNotFinalized is returned when an open day is aggregated.
	ErrDayNotFinalized = errors.New("day not finalized")
)

// Fill is one accepted order as recorded by the engine. Price is on the
// instrument's tick grid and Volume is in contracts.
type Fill struct {
	ID         string
	Time       time.Time
	Instrument string
	Direction  risk.Direction
	Offset     risk.Offset
	Price      float64
	Volume     int
}

// DayPnL holds the values a day computes when it is finalized.
type DayPnL struct {
	TradingPnL float64
	HoldingPnL float64
	Commission float64
	Slippage   float64
	NetPnL     float64 // trading + holding - commission - slippage
	TradeCount int
}

// Day is the ledger of one time step: positions carried in, fills made,
// and the closing prices they are marked to.
type Day struct {
	Date time.Time

	opening    map[string]int     // signed contracts at open
	prevCloses map[string]float64 // closes carried from earlier days
	closes     map[string]float64 // closes seen today
	fills      map[string][]Fill

	tradeCount int
	finalized  bool
	pnl        DayPnL
}

// NewDay opens a ledger. opening and prevCloses are copied.
func NewDay(date time.Time, opening map[string]int, prevCloses map[string]float64) *Day {
	d := &Day{
		Date:       date,
		opening:    make(map[string]int, len(opening)),
		prevCloses: make(map[string]float64, len(prevCloses)),
		closes:     make(map[string]float64),
		fills:      make(map[string][]Fill),
	}
	for k, v := range opening {
		if v != 0 {
			d.opening[k] = v
		}
	}
	for k, v := range prevCloses {
		d.prevCloses[k] = v
	}
	return d
}

// RecordFill adds a fill to the day.
func (d *Day) RecordFill(f Fill) error {
	if d.finalized {
		return ErrDayFinalized
	}
	d.fills[f.Instrument] = append(d.fills[f.Instrument], f)
	d.tradeCount++
	return nil
}

// RecordClose sets the closing price of an instrument.
func (d *Day) RecordClose(instrument string, price float64) error {
	if d.finalized {
		return ErrDayFinalized
	}
	d.closes[instrument] = price
	return nil
}

// Finalize computes the day's PnL once.
//
// Positions carried in are marked from the previous close to today's close.
// An instrument seen for the first time has no previous close and earns no
// holding PnL. One without a bar today is marked at its previous close.
// Fills are marked from their price to today's close.
func (d *Day) Finalize(instruments market.Instruments) error {
	if d.finalized {
		return ErrDayFinalized
	}

	var pnl DayPnL

	for _, sym := range sortedKeys(d.opening) {
		pos := d.opening[sym]
		inst, err := instruments.Get(sym)
		if err != nil {
			return fmt.Errorf("day %s: %w", d.Date.Format(time.DateOnly), err)
		}
		prev, ok := d.prevCloses[sym]
		if !ok {
			continue
		}
		pnl.HoldingPnL += (d.markPrice(sym, prev) - prev) * float64(pos) * inst.Size
	}

	for _, sym := range sortedKeys(d.fills) {
		inst, err := instruments.Get(sym)
		if err != nil {
			return fmt.Errorf("day %s: %w", d.Date.Format(time.DateOnly), err)
		}

		for _, f := range d.fills[sym] {
			vol := float64(f.Volume)
			mark := d.markPrice(sym, f.Price)

			pnl.TradingPnL += (mark - f.Price) * vol * float64(f.Direction) * inst.Size
			pnl.Commission += vol*inst.FixedCommission + vol*f.Price*inst.VariableCommission
			pnl.Slippage += vol * inst.Slippage
		}
	}

	pnl.NetPnL = pnl.TradingPnL + pnl.HoldingPnL - pnl.Commission - pnl.Slippage
	pnl.TradeCount = d.tradeCount

	d.pnl = pnl
	d.finalized = true
	return nil
}

// markPrice is today's close, or fallback when the instrument has no bar.
func (d *Day) markPrice(sym string, fallback float64) float64 {
	if c, ok := d.closes[sym]; ok {
		return c
	}
	if c, ok := d.prevCloses[sym]; ok {
		return c
	}
	return fallback
}

func (d *Day) Finalized() bool { return d.finalized }

// PnL returns the finalized values, zero before Finalize.
func (d *Day) PnL() DayPnL { return d.pnl }

// TradeCount is the number of fills recorded so far.
func (d *Day) TradeCount() int { return d.tradeCount }

// Opening returns the contract positions carried into the day.
func (d *Day) Opening() map[string]int {
	out := make(map[string]int, len(d.opening))
	for k, v := range d.opening {
		out[k] = v
	}
	return out
}

// Closes returns today's closes layered over the carried previous closes,
// ready to seed the next day.
func (d *Day) Closes() map[string]float64 {
	out := make(map[string]float64, len(d.prevCloses)+len(d.closes))
	for k, v := range d.prevCloses {
		out[k] = v
	}
	for k, v := range d.closes {
		out[k] = v
	}
	return out
}

// Fills returns the fills of one instrument, or every fill ordered by
// instrument when instrument is empty.
func (d *Day) Fills(instrument string) []Fill {
	if instrument != "" {
		return append([]Fill(nil), d.fills[instrument]...)
	}
	var out []Fill
	for _, sym := range sortedKeys(d.fills) {
		out = append(out, d.fills[sym]...)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
