package strategy

import "fmt"

// Config is one breakout parameter set.
type Config struct {
	EntryWindow int  `json:"entry_window" yaml:"entry_window"`
	ExitWindow  int  `json:"exit_window" yaml:"exit_window"`
	ATRWindow   int  `json:"atr_window" yaml:"atr_window"`
	ProfitCheck bool `json:"profit_check" yaml:"profit_check"` // skip entries after a winning trade
}

// DefaultConfigs returns the two classic systems: a 20 day breakout that
// sits out after a winner, and a 55 day breakout that always trades.
func DefaultConfigs() []Config {
	return []Config{
		{EntryWindow: 20, ExitWindow: 10, ATRWindow: 20, ProfitCheck: true},
		{EntryWindow: 55, ExitWindow: 20, ATRWindow: 20, ProfitCheck: false},
	}
}

func (c Config) Validate() error {
	if c.EntryWindow <= 0 {
		return fmt.Errorf("entry_window must be positive, got %d", c.EntryWindow)
	}
	if c.ExitWindow <= 0 {
		return fmt.Errorf("exit_window must be positive, got %d", c.ExitWindow)
	}
	if c.ATRWindow <= 0 {
		return fmt.Errorf("atr_window must be positive, got %d", c.ATRWindow)
	}
	return nil
}

// Warmup is the number of bars needed before any level can be read.
func (c Config) Warmup() int {
	return max(c.EntryWindow, c.ExitWindow, c.ATRWindow)
}

// Name identifies the parameter set, e.g. "20/10/20+pc".
func (c Config) Name() string {
	n := fmt.Sprintf("%d/%d/%d", c.EntryWindow, c.ExitWindow, c.ATRWindow)
	if c.ProfitCheck {
		n += "+pc"
	}
	return n
}
