package backtest

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/turtle/market"
)

// pnlDays builds finalized days whose net PnL is exactly pnls[i].
func pnlDays(t *testing.T, pnls ...float64) []*Day {
	t.Helper()

	insts := market.Instruments{"X": {Symbol: "X", Size: 1, PriceTick: 0.01}}
	days := make([]*Day, 0, len(pnls))
	for i, p := range pnls {
		d := NewDay(day0.AddDate(0, 0, i), map[string]int{"X": 1}, map[string]float64{"X": 100})
		require.NoError(t, d.RecordClose("X", 100+p))
		require.NoError(t, d.Finalize(insts))
		days = append(days, d)
	}
	return days
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	res, err := Aggregate(pnlDays(t, 100, -50, 25), 1000, 0)
	require.NoError(t, err)
	s := res.Summary

	assert.Equal(t, 3, s.TotalDays)
	assert.Equal(t, 2, s.ProfitDays)
	assert.Equal(t, 1, s.LossDays)
	assert.True(t, s.StartDate.Equal(day0))
	assert.True(t, s.EndDate.Equal(day0.AddDate(0, 0, 2)))

	assert.InDelta(t, 1075.0, s.EndBalance, 1e-9)
	assert.InDelta(t, 75.0, s.TotalNetPnL, 1e-9)
	assert.InDelta(t, 25.0, s.DailyNetPnL, 1e-9)
	assert.InDelta(t, 7.5, s.TotalReturn, 1e-9)

	assert.Equal(t, []float64{1100, 1050, 1075}, res.Series.Balance)
	assert.Equal(t, []float64{1100, 1100, 1100}, res.Series.HighWaterMark)
	assert.Equal(t, []float64{0, -50, -25}, res.Series.Drawdown)
	assert.InDelta(t, -50.0, s.MaxDrawdown, 1e-9)
	assert.InDelta(t, -50.0/1100*100, s.MaxDrawdownPct, 1e-9)

	returns := []float64{0.1, 1050.0/1100 - 1, 1075.0/1050 - 1}
	mean, std := meanStd(returns)
	assert.InDeltaSlice(t, returns, res.Series.Return, 1e-12)
	assert.InDelta(t, mean*100, s.DailyReturn, 1e-9)
	assert.InDelta(t, mean*100*DefaultAnnualDays, s.AnnualizedReturn, 1e-9)
	assert.InDelta(t, std*100, s.ReturnStd, 1e-9)
	assert.InDelta(t, mean/std*math.Sqrt(DefaultAnnualDays), s.SharpeRatio, 1e-9)
}

func TestAggregateDrawdownInvariant(t *testing.T) {
	t.Parallel()

	res, err := Aggregate(pnlDays(t, 10, -30, 5, 40, -80, -1, 90), 500, 252)
	require.NoError(t, err)

	lowest := 0.0
	for i, dd := range res.Series.Drawdown {
		assert.LessOrEqual(t, dd, 0.0)
		assert.InDelta(t, res.Series.Balance[i]-res.Series.HighWaterMark[i], dd, 1e-9)
		lowest = math.Min(lowest, dd)
	}
	assert.Equal(t, lowest, res.Summary.MaxDrawdown)
}

func TestAggregateFlatSharpe(t *testing.T) {
	t.Parallel()

	res, err := Aggregate(pnlDays(t, 0, 0, 0), 1000, 0)
	require.NoError(t, err)
	assert.Zero(t, res.Summary.ReturnStd)
	assert.Zero(t, res.Summary.SharpeRatio)
	assert.Zero(t, res.Summary.ProfitDays)
	assert.Zero(t, res.Summary.LossDays)
	assert.Zero(t, res.Summary.MaxDrawdown)
}

func TestAggregateIdempotent(t *testing.T) {
	t.Parallel()

	days := pnlDays(t, 12, -7, 3)
	a, err := Aggregate(days, 1000, 0)
	require.NoError(t, err)
	b, err := Aggregate(days, 1000, 0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestAggregateErrors(t *testing.T) {
	t.Parallel()

	_, err := Aggregate(nil, 1000, 0)
	assert.ErrorIs(t, err, ErrNoDays)

	_, err = Aggregate(pnlDays(t, 1), 0, 0)
	assert.Error(t, err)

	open := NewDay(day0.AddDate(0, 0, 5), nil, nil)
	_, err = Aggregate(append(pnlDays(t, 1), open), 1000, 0)
	assert.ErrorIs(t, err, ErrDayNotFinalized)
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{100, "100.00"},
		{999.999, "1,000.00"},
		{1234567.891, "1,234,567.89"},
		{-1234.5, "-1,234.50"},
		{0.125, "0.12"},
		{0.135, "0.14"},
		{-0.001, "0.00"},
		{10_000_000, "10,000,000.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatNumber(tt.in), "FormatNumber(%v)", tt.in)
	}
}

func TestPrintResult(t *testing.T) {
	t.Parallel()

	res, err := Aggregate(pnlDays(t, 100, -50, 25), 1000, 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintResult(&buf, res)
	out := buf.String()

	assert.Contains(t, out, "Backtest Result")
	assert.Contains(t, out, "First Day:         2024-01-02")
	assert.Contains(t, out, "Total Days:        3")
	assert.Contains(t, out, "End Balance:       1,075.00")
	assert.Contains(t, out, "Total Return:      7.50%")
	assert.Contains(t, out, "Max Drawdown:      -50.00")
}
