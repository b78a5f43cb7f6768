// Package indicators provides the rolling price windows signals read their
// channels and volatility from.
package indicators

import "github.com/rustyeddy/turtle/market"

// Window is a rolling buffer of bars for one instrument.
// It is deterministic and safe to use in replay and backtests.
type Window interface {
	// Push consumes the next closed bar and reports whether the window
	// holds enough bars to be read.
	Push(b market.Bar) bool

	// Ready reports whether Donchian and ATR values are meaningful.
	Ready() bool

	// Donchian returns the highest high and lowest low of the last n bars.
	Donchian(n int) (high, low float64)

	// ATR returns the average true range over an n-bar lookback.
	ATR(n int) float64
}
