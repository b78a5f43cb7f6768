package market

import (
	"sort"
	"time"
)

// Bar represents one OHLC observation for a single instrument.
type Bar struct {
	Instrument string
	Time       time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
}

// Valid reports whether the bar carries a usable price range.
func (b Bar) Valid() bool {
	if b.Instrument == "" || b.Time.IsZero() {
		return false
	}
	if b.High < b.Low {
		return false
	}
	return b.Open >= b.Low && b.Open <= b.High &&
		b.Close >= b.Low && b.Close <= b.High
}

// Slice holds every bar that shares one timestamp, one bar per instrument.
type Slice struct {
	Time time.Time
	Bars []Bar
}

// GroupSlices groups bars by identical timestamp and returns the slices in
// ascending time order. Within a slice bars are ordered by instrument so a
// replay does not depend on the order the source produced them in.
// Duplicate (instrument, time) bars keep the first occurrence.
func GroupSlices(bars []Bar) []Slice {
	type key struct {
		inst string
		ts   int64
	}

	seen := make(map[key]bool, len(bars))
	byTime := make(map[int64]*Slice)
	var order []int64

	for _, b := range bars {
		k := key{b.Instrument, b.Time.UnixNano()}
		if seen[k] {
			continue
		}
		seen[k] = true

		s, ok := byTime[k.ts]
		if !ok {
			s = &Slice{Time: b.Time}
			byTime[k.ts] = s
			order = append(order, k.ts)
		}
		s.Bars = append(s.Bars, b)
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := make([]Slice, 0, len(order))
	for _, ts := range order {
		s := byTime[ts]
		sort.SliceStable(s.Bars, func(i, j int) bool {
			return s.Bars[i].Instrument < s.Bars[j].Instrument
		})
		out = append(out, *s)
	}
	return out
}
