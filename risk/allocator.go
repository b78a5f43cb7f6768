package risk

import (
	"fmt"

	"github.com/rustyeddy/turtle/market"
)

// Allocator is the portfolio gate every signal trades through. It owns the
// per-instrument exposure table, the frozen size multipliers and the single
// signal allowed to hold each instrument.
//
// It is not safe for concurrent use; a backtest drives it from one goroutine.
type Allocator struct {
	portfolioValue float64
	limits         Limits
	sizes          map[string]float64
	rec            Recorder

	units       map[string]int    // signed units per instrument
	multipliers map[string]int    // contracts per unit, frozen while units != 0
	positions   map[string]int    // signed contracts per instrument
	owners      map[string]string // signal id holding the instrument

	totalLong  int
	totalShort int
}

// NewAllocator returns a flat allocator. rec may be nil.
func NewAllocator(portfolioValue float64, limits Limits, instruments market.Instruments, rec Recorder) (*Allocator, error) {
	if portfolioValue <= 0 {
		return nil, fmt.Errorf("portfolio value must be positive")
	}
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if err := instruments.Validate(); err != nil {
		return nil, err
	}

	a := &Allocator{
		portfolioValue: portfolioValue,
		limits:         limits,
		sizes:          make(map[string]float64, len(instruments)),
		rec:            rec,
		units:          make(map[string]int, len(instruments)),
		multipliers:    make(map[string]int, len(instruments)),
		positions:      make(map[string]int, len(instruments)),
		owners:         make(map[string]string),
	}
	for sym, inst := range instruments {
		a.sizes[sym] = inst.Size
	}
	return a, nil
}

// Propose evaluates o against the caps, the close rule and instrument
// ownership, in that order. An accepted order updates exposure and is handed
// to the Recorder; a rejected one changes nothing.
func (a *Allocator) Propose(o Order) Decision {
	d := Decision{Accepted: true}

	size, ok := a.sizes[o.Instrument]
	if !ok {
		d.reject(RejectUnknownInstrument, "unknown instrument %q", o.Instrument)
		return d
	}
	if o.Units <= 0 {
		d.reject(RejectZeroSize, "units must be positive, got %d", o.Units)
		return d
	}

	unit := a.units[o.Instrument]

	// A flat instrument is resized from the proposer's volatility. The new
	// multiplier is only kept if the order is accepted.
	multiplier := a.multipliers[o.Instrument]
	if unit == 0 {
		multiplier = Multiplier(Inputs{
			PortfolioValue: a.portfolioValue,
			RiskFraction:   a.limits.RiskFraction,
			Volatility:     o.Volatility,
			ContractSize:   size,
		})
	}

	units := o.Units
	switch o.Offset {
	case Open:
		if o.Direction == Long {
			if a.totalLong >= a.limits.MaxDirectionUnits {
				d.reject(RejectDirectionCap, "total long %d >= max %d", a.totalLong, a.limits.MaxDirectionUnits)
				return d
			}
			if unit >= a.limits.MaxInstrumentUnits {
				d.reject(RejectInstrumentCap, "%s units %d >= max %d", o.Instrument, unit, a.limits.MaxInstrumentUnits)
				return d
			}
		} else {
			if a.totalShort <= -a.limits.MaxDirectionUnits {
				d.reject(RejectDirectionCap, "total short %d <= max -%d", a.totalShort, a.limits.MaxDirectionUnits)
				return d
			}
			if unit <= -a.limits.MaxInstrumentUnits {
				d.reject(RejectInstrumentCap, "%s units %d <= max -%d", o.Instrument, unit, a.limits.MaxInstrumentUnits)
				return d
			}
		}
	case Close:
		// a buy closes shorts, a sell closes longs
		if unit*int(o.Direction) >= 0 {
			d.reject(RejectNothingToClose, "%s has no %s position to close", o.Instrument, o.Direction.Opposite())
			return d
		}
		units = min(units, abs(unit))
	}

	if owner, held := a.owners[o.Instrument]; held && owner != o.Signal {
		d.reject(RejectNotOwner, "%s is held by %s", o.Instrument, owner)
		return d
	}

	if multiplier <= 0 {
		d.reject(RejectZeroSize, "%s sizes to zero contracts (volatility %g)", o.Instrument, o.Volatility)
		return d
	}

	// accepted
	a.multipliers[o.Instrument] = multiplier
	a.units[o.Instrument] = unit + units*int(o.Direction)
	a.positions[o.Instrument] = a.units[o.Instrument] * multiplier

	switch {
	case o.Offset == Open:
		a.owners[o.Instrument] = o.Signal
	case a.units[o.Instrument] == 0:
		delete(a.owners, o.Instrument)
	}

	a.recount()

	d.Units = units
	d.Multiplier = multiplier
	d.Volume = units * multiplier

	if a.rec != nil {
		a.rec.Record(o.Instrument, o.Direction, o.Offset, o.Price, d.Volume)
	}
	return d
}

// recount rebuilds the directional totals from the exposure table.
func (a *Allocator) recount() {
	a.totalLong, a.totalShort = 0, 0
	for _, u := range a.units {
		switch {
		case u > 0:
			a.totalLong += u
		case u < 0:
			a.totalShort += u
		}
	}
}

// Units returns the signed unit exposure of an instrument.
func (a *Allocator) Units(inst string) int { return a.units[inst] }

// Multiplier returns the contracts per unit last fixed for an instrument.
func (a *Allocator) Multiplier(inst string) int { return a.multipliers[inst] }

// Position returns the signed contract position of an instrument.
func (a *Allocator) Position(inst string) int { return a.positions[inst] }

// Positions returns a copy of every non-zero contract position.
func (a *Allocator) Positions() map[string]int {
	out := make(map[string]int, len(a.positions))
	for sym, p := range a.positions {
		if p != 0 {
			out[sym] = p
		}
	}
	return out
}

// TotalLong is the sum of all positive unit exposures.
func (a *Allocator) TotalLong() int { return a.totalLong }

// TotalShort is the sum of all negative unit exposures (<= 0).
func (a *Allocator) TotalShort() int { return a.totalShort }

// Owner returns the id of the signal holding inst, if any.
func (a *Allocator) Owner(inst string) (string, bool) {
	id, ok := a.owners[inst]
	return id, ok
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
