package risk

import "fmt"

// Reason identifies why the allocator turned an order down.
type Reason string

const (
	RejectDirectionCap      Reason = "DIRECTION_CAP"
	RejectInstrumentCap     Reason = "INSTRUMENT_CAP"
	RejectNothingToClose    Reason = "NOTHING_TO_CLOSE"
	RejectNotOwner          Reason = "NOT_OWNER"
	RejectZeroSize          Reason = "ZERO_SIZE"
	RejectUnknownInstrument Reason = "UNKNOWN_INSTRUMENT"
)

// Decision is the allocator's answer to an Order. Rejections are ordinary
// outcomes, not errors.
type Decision struct {
	Accepted bool
	Reason   Reason
	Msg      string

	Units      int // units actually traded, after clamping
	Multiplier int // contracts per unit
	Volume     int // contracts recorded: Units * Multiplier
}

func (d *Decision) reject(code Reason, format string, args ...any) {
	d.Accepted = false
	d.Reason = code
	d.Msg = fmt.Sprintf(format, args...)
}

// Limits caps exposure in units.
type Limits struct {
	MaxInstrumentUnits int     `json:"max_instrument_units" yaml:"max_instrument_units"`
	MaxDirectionUnits  int     `json:"max_direction_units" yaml:"max_direction_units"`
	RiskFraction       float64 `json:"risk_fraction" yaml:"risk_fraction"`
}

// DefaultLimits returns 4 units per instrument, 10 units per direction and 1%
// of the portfolio at risk per unit.
func DefaultLimits() Limits {
	return Limits{
		MaxInstrumentUnits: 4,
		MaxDirectionUnits:  10,
		RiskFraction:       0.01,
	}
}

func (l Limits) Validate() error {
	if l.MaxInstrumentUnits <= 0 {
		return fmt.Errorf("risk.max_instrument_units must be positive")
	}
	if l.MaxDirectionUnits <= 0 {
		return fmt.Errorf("risk.max_direction_units must be positive")
	}
	if l.RiskFraction <= 0 || l.RiskFraction > 1 {
		return fmt.Errorf("risk.risk_fraction must be in (0, 1]")
	}
	return nil
}
