package market

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// SliceFeed yields bars grouped by timestamp, in ascending time order.
// Implementations should be deterministic and return (ok=false, err=nil) at EOF.
type SliceFeed interface {
	Next() (s Slice, ok bool, err error)
	Close() error
}

// MemoryFeed replays slices already held in memory.
type MemoryFeed struct {
	slices []Slice
	pos    int
}

// NewMemoryFeed groups bars into slices and returns a feed over them.
func NewMemoryFeed(bars []Bar) *MemoryFeed {
	return &MemoryFeed{slices: GroupSlices(bars)}
}

func (f *MemoryFeed) Next() (Slice, bool, error) {
	if f.pos >= len(f.slices) {
		return Slice{}, false, nil
	}
	s := f.slices[f.pos]
	f.pos++
	return s, true, nil
}

// Len returns the number of slices in the feed.
func (f *MemoryFeed) Len() int {
	return len(f.slices)
}

func (f *MemoryFeed) Close() error {
	return nil
}

// OpenBarFeed loads a bar CSV file (see ReadBarsCSV) and returns a feed
// over it. Files ending in ".xz" are decompressed on the fly.
//
// The whole file is read up front: bars of different instruments must be
// regrouped by timestamp before the first slice can be produced.
func OpenBarFeed(path string, from, to time.Time) (*MemoryFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".xz") {
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("xz %s: %w", path, err)
		}
		r = xr
	}

	bars, err := ReadBarsCSV(r, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewMemoryFeed(bars), nil
}

// ReadBarsCSV reads canonical bar CSV rows:
//
//	time,instrument,open,high,low,close[,volume]
//
// where time is RFC3339, RFC3339Nano or a plain 2006-01-02 date.
//
// It optionally filters bars to [from, to) if provided.
// Header row ("time,...") is allowed.
// Empty/short rows are skipped.
func ReadBarsCSV(r io.Reader, from, to time.Time) ([]Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var (
		out      []Bar
		sawFirst bool
		line     int
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(row) == 0 {
			continue
		}

		// Allow a single header row
		if !sawFirst {
			sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		b, ok, err := parseBarRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if !ok {
			continue
		}
		if !inRange(b.Time, from, to) {
			continue
		}
		out = append(out, b)
	}
}

func parseBarRow(row []string) (Bar, bool, error) {
	// Need at least: time,instrument,open,high,low,close
	if len(row) < 6 {
		return Bar{}, false, nil
	}

	ts := strings.TrimSpace(row[0])
	if ts == "" {
		return Bar{}, false, nil
	}
	t, err := ParseTime(ts)
	if err != nil {
		return Bar{}, false, err
	}

	inst := strings.TrimSpace(row[1])
	if inst == "" {
		return Bar{}, false, nil
	}

	var px [4]float64
	names := [4]string{"open", "high", "low", "close"}
	for i := range px {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[2+i]), 64)
		if err != nil {
			return Bar{}, false, fmt.Errorf("bad %s %q: %w", names[i], row[2+i], err)
		}
		px[i] = v
	}

	b := Bar{
		Instrument: inst,
		Time:       t,
		Open:       px[0],
		High:       px[1],
		Low:        px[2],
		Close:      px[3],
	}
	if len(row) > 6 && strings.TrimSpace(row[6]) != "" {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[6]), 64)
		if err != nil {
			return Bar{}, false, fmt.Errorf("bad volume %q: %w", row[6], err)
		}
		b.Volume = v
	}
	if !b.Valid() {
		return Bar{}, false, fmt.Errorf("inconsistent bar %s %s o=%v h=%v l=%v c=%v",
			inst, ts, b.Open, b.High, b.Low, b.Close)
	}
	return b, true, nil
}

// ParseTime accepts RFC3339, RFC3339Nano or a 2006-01-02 date (UTC).
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
