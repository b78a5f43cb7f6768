package risk

import "math"

// Inputs to the volatility sizing rule.
type Inputs struct {
	PortfolioValue float64
	RiskFraction   float64 // 0.01
	Volatility     float64 // price units per bar
	ContractSize   float64
}

// Multiplier returns the contracts per unit such that one unit moving by one
// volatility changes the portfolio by RiskFraction of its value. Halfway
// values round to even. Degenerate inputs give 0.
func Multiplier(in Inputs) int {
	if in.Volatility <= 0 || in.ContractSize <= 0 {
		return 0
	}

	riskAmt := in.PortfolioValue * in.RiskFraction
	m := math.RoundToEven(riskAmt / (in.Volatility * in.ContractSize))
	if math.IsNaN(m) || math.IsInf(m, 0) || m < 0 {
		return 0
	}
	return int(m)
}
