package backtest

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultAnnualDays is the number of trading days used to annualise.
const DefaultAnnualDays = 240

// ErrNoDays is returned when there is nothing to aggregate.
var ErrNoDays = errors.New("no days to aggregate")

// Summary holds the headline statistics of a run. Percent fields are
// already multiplied by 100.
type Summary struct {
	StartDate  time.Time
	EndDate    time.Time
	TotalDays  int
	ProfitDays int
	LossDays   int

	StartBalance float64
	EndBalance   float64

	MaxDrawdown    float64 // most negative drawdown, <= 0
	MaxDrawdownPct float64

	TotalNetPnL     float64
	DailyNetPnL     float64
	TotalCommission float64
	DailyCommission float64
	TotalSlippage   float64
	DailySlippage   float64
	TotalTradeCount int
	DailyTradeCount float64

	TotalReturn      float64
	AnnualizedReturn float64
	DailyReturn      float64
	ReturnStd        float64
	SharpeRatio      float64
}

// Series holds one value per day, aligned with Dates.
type Series struct {
	Dates         []time.Time
	Balance       []float64
	Return        []float64 // simple return, balance/prevBalance - 1
	HighWaterMark []float64
	Drawdown      []float64 // balance - high water mark, <= 0
	DrawdownPct   []float64
	NetPnL        []float64
}

type Result struct {
	Summary Summary
	Series  Series
}

// Aggregate folds finalized days into a balance curve and summary
// statistics. It does not modify the days, so repeated calls agree.
func Aggregate(days []*Day, startBalance float64, annualDays int) (Result, error) {
	if len(days) == 0 {
		return Result{}, ErrNoDays
	}
	if startBalance <= 0 {
		return Result{}, fmt.Errorf("start balance must be positive")
	}
	if annualDays <= 0 {
		annualDays = DefaultAnnualDays
	}

	n := len(days)
	s := Series{
		Dates:         make([]time.Time, 0, n),
		Balance:       make([]float64, 0, n),
		Return:        make([]float64, 0, n),
		HighWaterMark: make([]float64, 0, n),
		Drawdown:      make([]float64, 0, n),
		DrawdownPct:   make([]float64, 0, n),
		NetPnL:        make([]float64, 0, n),
	}
	sum := Summary{
		StartDate:    days[0].Date,
		EndDate:      days[n-1].Date,
		TotalDays:    n,
		StartBalance: startBalance,
	}

	balance := startBalance
	high := startBalance

	for _, d := range days {
		if !d.Finalized() {
			return Result{}, fmt.Errorf("%w: %s", ErrDayNotFinalized, d.Date.Format(time.RFC3339))
		}
		pnl := d.PnL()

		switch {
		case pnl.NetPnL > 0:
			sum.ProfitDays++
		case pnl.NetPnL < 0:
			sum.LossDays++
		}

		prev := balance
		balance += pnl.NetPnL
		high = math.Max(high, balance)
		dd := balance - high

		s.Dates = append(s.Dates, d.Date)
		s.NetPnL = append(s.NetPnL, pnl.NetPnL)
		s.Balance = append(s.Balance, balance)
		s.Return = append(s.Return, balance/prev-1)
		s.HighWaterMark = append(s.HighWaterMark, high)
		s.Drawdown = append(s.Drawdown, dd)
		s.DrawdownPct = append(s.DrawdownPct, dd/high*100)

		sum.TotalNetPnL += pnl.NetPnL
		sum.TotalCommission += pnl.Commission
		sum.TotalSlippage += pnl.Slippage
		sum.TotalTradeCount += pnl.TradeCount
	}

	sum.EndBalance = balance
	sum.MaxDrawdown = minOf(s.Drawdown)
	sum.MaxDrawdownPct = minOf(s.DrawdownPct)

	days64 := float64(n)
	sum.DailyNetPnL = sum.TotalNetPnL / days64
	sum.DailyCommission = sum.TotalCommission / days64
	sum.DailySlippage = sum.TotalSlippage / days64
	sum.DailyTradeCount = float64(sum.TotalTradeCount) / days64

	mean, std := meanStd(s.Return)
	sum.TotalReturn = (balance/startBalance - 1) * 100
	sum.DailyReturn = mean * 100
	sum.AnnualizedReturn = sum.DailyReturn * float64(annualDays)
	sum.ReturnStd = std * 100
	if sum.ReturnStd > 0 {
		sum.SharpeRatio = sum.DailyReturn / sum.ReturnStd * math.Sqrt(float64(annualDays))
	}

	return Result{Summary: sum, Series: s}, nil
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Min(m, x)
	}
	return m
}

// meanStd returns the mean and population standard deviation.
func meanStd(xs []float64) (mean, std float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(xs)))
}

// PrintResult writes a plain text report of r.
func PrintResult(w io.Writer, r Result) {
	s := r.Summary

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "First Day:         %s\n", s.StartDate.Format(time.DateOnly))
	fmt.Fprintf(w, "Last Day:          %s\n", s.EndDate.Format(time.DateOnly))
	fmt.Fprintf(w, "Total Days:        %d\n", s.TotalDays)
	fmt.Fprintf(w, "Profit Days:       %d\n", s.ProfitDays)
	fmt.Fprintf(w, "Loss Days:         %d\n", s.LossDays)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Balance:     %s\n", FormatNumber(s.StartBalance))
	fmt.Fprintf(w, "End Balance:       %s\n", FormatNumber(s.EndBalance))
	fmt.Fprintf(w, "Total Return:      %s%%\n", FormatNumber(s.TotalReturn))
	fmt.Fprintf(w, "Annual Return:     %s%%\n", FormatNumber(s.AnnualizedReturn))
	fmt.Fprintf(w, "Net P/L:           %s\n", FormatNumber(s.TotalNetPnL))
	fmt.Fprintf(w, "Max Drawdown:      %s\n", FormatNumber(s.MaxDrawdown))
	fmt.Fprintf(w, "Max Drawdown %%:    %s%%\n", FormatNumber(s.MaxDrawdownPct))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Costs and Activity")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Commission:        %s\n", FormatNumber(s.TotalCommission))
	fmt.Fprintf(w, "Slippage:          %s\n", FormatNumber(s.TotalSlippage))
	fmt.Fprintf(w, "Trades:            %s\n", FormatNumber(float64(s.TotalTradeCount)))
	fmt.Fprintf(w, "Daily P/L:         %s\n", FormatNumber(s.DailyNetPnL))
	fmt.Fprintf(w, "Daily Commission:  %s\n", FormatNumber(s.DailyCommission))
	fmt.Fprintf(w, "Daily Slippage:    %s\n", FormatNumber(s.DailySlippage))
	fmt.Fprintf(w, "Daily Trades:      %s\n", FormatNumber(s.DailyTradeCount))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Returns")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Daily Return:      %s%%\n", FormatNumber(s.DailyReturn))
	fmt.Fprintf(w, "Return Std:        %s%%\n", FormatNumber(s.ReturnStd))
	fmt.Fprintf(w, "Sharpe Ratio:      %s\n", FormatNumber(s.SharpeRatio))
}

// FormatNumber rounds n to two decimals, half to even, and groups the
// integer part in thousands: 1234567.891 -> "1,234,567.89".
func FormatNumber(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Sprint(n)
	}
	str := decimal.NewFromFloat(n).RoundBank(2).StringFixed(2)

	sign := ""
	if strings.HasPrefix(str, "-") {
		sign, str = "-", str[1:]
	}
	intPart, frac, _ := strings.Cut(str, ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if sign != "" && strings.Trim(b.String()+frac, "0,") == "" {
		sign = ""
	}
	return sign + b.String() + "." + frac
}
