// Package strategy implements the channel breakout signal.
//
// A Signal trades one instrument with one parameter set. It enters when price
// breaks the entry channel, adds up to three more units every half
// volatility, and exits on the tighter of a 2x volatility stop and the exit
// channel. Every trade is proposed to a Gate, and the signal only changes its
// own state once the gate accepts.
package strategy

import (
	"fmt"
	"math"

	"github.com/rustyeddy/turtle/indicators"
	"github.com/rustyeddy/turtle/market"
	"github.com/rustyeddy/turtle/risk"
)

// MaxUnits is the deepest pyramid a signal builds.
const MaxUnits = 4

// Level offsets in volatility multiples from the channel edge.
var levelSteps = [MaxUnits]float64{0, 0.5, 1, 1.5}

const stopMultiple = 2

// Gate accepts or rejects proposed orders.
type Gate interface {
	Propose(o risk.Order) risk.Decision
}

// Action is an order a signal proposed on a bar and the answer it got.
type Action struct {
	Order    risk.Order
	Decision risk.Decision
}

type Signal struct {
	id         string
	instrument string
	cfg        Config
	window     indicators.Window
	gate       Gate

	units int // signed, |units| <= MaxUnits

	// Channel edges from the latest bar.
	entryHigh, entryLow float64
	exitHigh, exitLow   float64

	// Frozen while a position is open.
	leveled    bool
	volatility float64
	long       [MaxUnits]float64
	short      [MaxUnits]float64
	longStop   float64
	shortStop  float64

	current *RoundTrip
	trades  []RoundTrip
}

// NewSignal builds a flat signal reading its channels from w.
func NewSignal(instrument string, cfg Config, w indicators.Window, gate Gate) (*Signal, error) {
	if instrument == "" {
		return nil, fmt.Errorf("signal: instrument is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("signal %s: %w", instrument, err)
	}
	if w == nil {
		return nil, fmt.Errorf("signal %s: window is required", instrument)
	}
	if gate == nil {
		return nil, fmt.Errorf("signal %s: gate is required", instrument)
	}

	return &Signal{
		id:         instrument + "/" + cfg.Name(),
		instrument: instrument,
		cfg:        cfg,
		window:     w,
		gate:       gate,
	}, nil
}

// OnBar advances the signal by one bar and returns what it proposed.
//
// Precedence, at most one trade per bar:
//  1. nothing happens until the window is warm and levels exist;
//  2. an open position is checked for exit first, and a firing exit ends
//     the bar;
//  3. long levels are checked when not short, lowest first, and the first
//     triggered level is the only one proposed;
//  4. short levels are checked when not long and no long level triggered,
//     so at most one order is proposed per bar.
//
// The channels are refreshed afterwards, so levels always come from bars
// before the one being traded.
func (s *Signal) OnBar(b market.Bar) []Action {
	if !s.window.Push(b) {
		return nil
	}

	actions := s.generate(b)
	s.refresh()
	return actions
}

func (s *Signal) generate(b market.Bar) []Action {
	if !s.leveled {
		return nil
	}

	if act, fired := s.checkExit(b); fired {
		return []Action{act}
	}

	if s.units >= 0 {
		if act, ok := s.checkEntry(b, risk.Long); ok {
			return []Action{act}
		}
	}
	if s.units <= 0 {
		if act, ok := s.checkEntry(b, risk.Short); ok {
			return []Action{act}
		}
	}
	return nil
}

func (s *Signal) checkExit(b market.Bar) (Action, bool) {
	switch {
	case s.units > 0:
		exit := math.Max(s.longStop, s.exitLow)
		if b.Low <= exit {
			return s.exit(b, risk.Short, exit), true
		}
	case s.units < 0:
		exit := math.Min(s.shortStop, s.exitHigh)
		if b.High >= exit {
			return s.exit(b, risk.Long, exit), true
		}
	}
	return Action{}, false
}

func (s *Signal) checkEntry(b market.Bar, dir risk.Direction) (Action, bool) {
	if s.suppressed() {
		return Action{}, false
	}

	held := s.units * int(dir)
	for i := held; i < MaxUnits; i++ {
		var hit bool
		var level float64
		if dir == risk.Long {
			level = s.long[i]
			hit = b.High >= level
		} else {
			level = s.short[i]
			hit = b.Low <= level
		}
		if hit {
			return s.add(b, dir, level), true
		}
	}
	return Action{}, false
}

// suppressed reports whether the profit check blocks new entries.
func (s *Signal) suppressed() bool {
	return s.cfg.ProfitCheck && s.LastPnL() > 0
}

func (s *Signal) add(b market.Bar, dir risk.Direction, level float64) Action {
	price := tradePrice(b, dir, level)
	act := s.propose(dir, risk.Open, price, 1)
	if !act.Decision.Accepted {
		return act
	}

	if s.current == nil {
		s.current = &RoundTrip{}
	}
	s.current.open(b.Time, price, int(dir))
	s.units += int(dir)

	if dir == risk.Long {
		s.longStop = price - stopMultiple*s.volatility
	} else {
		s.shortStop = price + stopMultiple*s.volatility
	}
	return act
}

func (s *Signal) exit(b market.Bar, dir risk.Direction, level float64) Action {
	price := tradePrice(b, dir, level)
	act := s.propose(dir, risk.Close, price, abs(s.units))
	if !act.Decision.Accepted {
		return act
	}

	s.current.close(b.Time, price)
	s.trades = append(s.trades, *s.current)
	s.current = nil
	s.units = 0
	return act
}

func (s *Signal) propose(dir risk.Direction, off risk.Offset, price float64, units int) Action {
	o := risk.Order{
		Signal:     s.id,
		Instrument: s.instrument,
		Direction:  dir,
		Offset:     off,
		Price:      price,
		Units:      units,
		Volatility: s.volatility,
	}
	return Action{Order: o, Decision: s.gate.Propose(o)}
}

// tradePrice never fills a stop better than the bar's open: a gap through
// the trigger fills at the open.
func tradePrice(b market.Bar, dir risk.Direction, trigger float64) float64 {
	if dir == risk.Long {
		return math.Max(b.Open, trigger)
	}
	return math.Min(b.Open, trigger)
}

func (s *Signal) refresh() {
	s.entryHigh, s.entryLow = s.window.Donchian(s.cfg.EntryWindow)
	s.exitHigh, s.exitLow = s.window.Donchian(s.cfg.ExitWindow)

	if s.units != 0 {
		return
	}

	s.volatility = s.window.ATR(s.cfg.ATRWindow)
	for i, step := range levelSteps {
		s.long[i] = s.entryHigh + s.volatility*step
		s.short[i] = s.entryLow - s.volatility*step
	}
	s.longStop, s.shortStop = 0, 0
	s.leveled = true
}

func (s *Signal) ID() string { return s.id }
func (s *Signal) Instrument() string { return s.instrument }
func (s *Signal) Config() Config { return s.cfg }

// Units is the signed pyramid depth, 0 when flat.
func (s *Signal) Units() int { return s.units }

// Volatility is the snapshot the current levels and stops were built from.
func (s *Signal) Volatility() float64 { return s.volatility }

// Stop returns the stop of the open position, 0 when flat.
func (s *Signal) Stop() float64 {
	switch {
	case s.units > 0:
		return s.longStop
	case s.units < 0:
		return s.shortStop
	}
	return 0
}

// LongLevels returns the four long entry prices, lowest first.
func (s *Signal) LongLevels() [MaxUnits]float64 { return s.long }

// ShortLevels returns the four short entry prices, highest first.
func (s *Signal) ShortLevels() [MaxUnits]float64 { return s.short }

// Trades returns a copy of the closed round trips, oldest first.
func (s *Signal) Trades() []RoundTrip {
	out := make([]RoundTrip, len(s.trades))
	copy(out, s.trades)
	return out
}

// Open returns the round trip in progress.
func (s *Signal) Open() (RoundTrip, bool) {
	if s.current == nil {
		return RoundTrip{}, false
	}
	return *s.current, true
}

// LastPnL is the PnL of the most recently closed round trip, 0 if none.
func (s *Signal) LastPnL() float64 {
	if len(s.trades) == 0 {
		return 0
	}
	return s.trades[len(s.trades)-1].PnL
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
