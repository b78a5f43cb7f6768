package market

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrUnknownInstrument is returned when a symbol has no configuration.
var ErrUnknownInstrument = errors.New("unknown instrument")

// Instrument carries the trading parameters of one contract.
type Instrument struct {
	Symbol             string  `json:"symbol" yaml:"symbol"`
	Size               float64 `json:"size" yaml:"size"`             // contract multiplier
	PriceTick          float64 `json:"price_tick" yaml:"price_tick"` // minimum price increment
	VariableCommission float64 `json:"variable_commission" yaml:"variable_commission"`
	FixedCommission    float64 `json:"fixed_commission" yaml:"fixed_commission"`
	Slippage           float64 `json:"slippage" yaml:"slippage"` // cost per contract traded
}

// Validate checks that the instrument is fully parameterised.
func (i Instrument) Validate() error {
	if i.Symbol == "" {
		return fmt.Errorf("instrument symbol is required")
	}
	if i.Size <= 0 {
		return fmt.Errorf("instrument %s: size must be positive", i.Symbol)
	}
	if i.PriceTick <= 0 {
		return fmt.Errorf("instrument %s: price tick must be positive", i.Symbol)
	}
	if i.VariableCommission < 0 || i.FixedCommission < 0 {
		return fmt.Errorf("instrument %s: commission must not be negative", i.Symbol)
	}
	if i.Slippage < 0 {
		return fmt.Errorf("instrument %s: slippage must not be negative", i.Symbol)
	}
	return nil
}

// RoundPrice snaps p to the nearest multiple of the price tick.
// Halfway values round to even, so 2.5 ticks becomes 2 ticks.
func (i Instrument) RoundPrice(p float64) float64 {
	if i.PriceTick <= 0 {
		return p
	}
	tick := decimal.NewFromFloat(i.PriceTick)
	ticks := decimal.NewFromFloat(p).Div(tick).RoundBank(0)
	out, _ := ticks.Mul(tick).Float64()
	return out
}

// Instruments maps a symbol to its configuration.
type Instruments map[string]Instrument

// Get returns the configuration for sym.
func (in Instruments) Get(sym string) (Instrument, error) {
	i, ok := in[sym]
	if !ok {
		return Instrument{}, fmt.Errorf("%w: %s", ErrUnknownInstrument, sym)
	}
	return i, nil
}

// Symbols returns the configured symbols in sorted order.
func (in Instruments) Symbols() []string {
	out := make([]string, 0, len(in))
	for sym := range in {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Validate checks every instrument and that map keys match symbols.
func (in Instruments) Validate() error {
	if len(in) == 0 {
		return fmt.Errorf("no instruments configured")
	}
	for _, sym := range in.Symbols() {
		i := in[sym]
		if i.Symbol != sym {
			return fmt.Errorf("instrument key %q does not match symbol %q", sym, i.Symbol)
		}
		if err := i.Validate(); err != nil {
			return err
		}
	}
	return nil
}
