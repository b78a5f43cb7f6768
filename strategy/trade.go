package strategy

import "time"

// RoundTrip is one open to fully closed cycle of a signal.
type RoundTrip struct {
	Units int     // signed, peak size of the position
	Entry float64 // unit weighted average entry price
	Exit  float64
	PnL   float64 // Units * (Exit - Entry), in price units

	Opened time.Time
	Closed time.Time
}

func (r *RoundTrip) open(t time.Time, price float64, change int) {
	if r.Units == 0 {
		r.Opened = t
	}
	cost := float64(r.Units)*r.Entry + float64(change)*price
	r.Units += change
	r.Entry = cost / float64(r.Units)
}

func (r *RoundTrip) close(t time.Time, price float64) {
	r.Exit = price
	r.Closed = t
	r.PnL = float64(r.Units) * (r.Exit - r.Entry)
}
