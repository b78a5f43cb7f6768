package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/turtle/indicators"
	"github.com/rustyeddy/turtle/market"
	"github.com/rustyeddy/turtle/risk"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newBar(day int, o, h, l, c float64) market.Bar {
	return market.Bar{
		Instrument: "RB",
		Time:       day0.AddDate(0, 0, day),
		Open:       o,
		High:       h,
		Low:        l,
		Close:      c,
	}
}

// gate accepts or rejects everything and keeps what it was asked.
type gate struct {
	accept bool
	reject map[risk.Direction]bool
	orders []risk.Order
}

func (g *gate) Propose(o risk.Order) risk.Decision {
	g.orders = append(g.orders, o)
	if !g.accept || g.reject[o.Direction] {
		return risk.Decision{Reason: risk.RejectDirectionCap}
	}
	return risk.Decision{Accepted: true, Units: o.Units, Multiplier: 1, Volume: o.Units}
}

// fakeWindow returns fixed channels so levels can be steered bar by bar.
type fakeWindow struct {
	n      int
	warm   int
	entryN int

	entryHigh, entryLow float64
	exitHigh, exitLow   float64
	atr                 float64
}

func (w *fakeWindow) Push(market.Bar) bool { w.n++; return w.Ready() }
func (w *fakeWindow) Ready() bool          { return w.n >= w.warm }
func (w *fakeWindow) ATR(int) float64      { return w.atr }
func (w *fakeWindow) Donchian(n int) (float64, float64) {
	if n == w.entryN {
		return w.entryHigh, w.entryLow
	}
	return w.exitHigh, w.exitLow
}

var testConfig = Config{EntryWindow: 20, ExitWindow: 10, ATRWindow: 20}

// primed returns a signal whose levels are long 105/110/115/120 and
// short 95/90/85/80, with an exit channel of 90..110.
func primed(t *testing.T, cfg Config, g Gate) (*Signal, *fakeWindow) {
	t.Helper()

	w := &fakeWindow{
		warm:      1,
		entryN:    cfg.EntryWindow,
		entryHigh: 105,
		entryLow:  95,
		exitHigh:  110,
		exitLow:   90,
		atr:       10,
	}
	s, err := NewSignal("RB", cfg, w, g)
	require.NoError(t, err)

	// first ready bar only builds levels
	assert.Empty(t, s.OnBar(newBar(0, 100, 101, 99, 100)))
	assert.Equal(t, [MaxUnits]float64{105, 110, 115, 120}, s.LongLevels())
	assert.Equal(t, [MaxUnits]float64{95, 90, 85, 80}, s.ShortLevels())
	return s, w
}

func TestNewSignalErrors(t *testing.T) {
	t.Parallel()

	w := &fakeWindow{}
	g := &gate{}

	tests := []struct {
		name string
		inst string
		cfg  Config
		w    indicators.Window
		g    Gate
	}{
		{"no instrument", "", testConfig, w, g},
		{"zero entry window", "RB", Config{ExitWindow: 10, ATRWindow: 20}, w, g},
		{"zero exit window", "RB", Config{EntryWindow: 20, ATRWindow: 20}, w, g},
		{"negative atr window", "RB", Config{EntryWindow: 20, ExitWindow: 10, ATRWindow: -1}, w, g},
		{"no window", "RB", testConfig, nil, g},
		{"no gate", "RB", testConfig, w, nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewSignal(tt.inst, tt.cfg, tt.w, tt.g)
			assert.Error(t, err)
		})
	}
}

func TestConfig(t *testing.T) {
	t.Parallel()

	cfgs := DefaultConfigs()
	require.Len(t, cfgs, 2)
	assert.Equal(t, "20/10/20+pc", cfgs[0].Name())
	assert.Equal(t, "55/20/20", cfgs[1].Name())
	assert.Equal(t, 20, cfgs[0].Warmup())
	assert.Equal(t, 55, cfgs[1].Warmup())
	assert.Equal(t, 30, Config{EntryWindow: 10, ExitWindow: 30, ATRWindow: 5}.Warmup())
}

// Twenty quiet bars build a 105 channel and bar 21 breaks it.
func TestSignalBreakoutScenario(t *testing.T) {
	t.Parallel()

	w, err := indicators.NewBuffer(0, testConfig.Warmup())
	require.NoError(t, err)
	g := &gate{accept: true}
	s, err := NewSignal("RB", testConfig, w, g)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		assert.Empty(t, s.OnBar(newBar(i, 100, 105, 95, 100)), "bar %d", i+1)
	}
	assert.Equal(t, 0, s.Units())
	assert.InDelta(t, 10.0, s.Volatility(), 1e-12)
	assert.Equal(t, [MaxUnits]float64{105, 110, 115, 120}, s.LongLevels())

	acts := s.OnBar(newBar(20, 104, 107, 103, 106))
	require.Len(t, acts, 1)
	o := acts[0].Order
	assert.Equal(t, risk.Long, o.Direction)
	assert.Equal(t, risk.Open, o.Offset)
	assert.Equal(t, 1, o.Units)
	assert.Equal(t, 105.0, o.Price, "max(open 104, level 105)")
	assert.Equal(t, 10.0, o.Volatility)
	assert.Equal(t, "RB/20/10/20", o.Signal)
	assert.Equal(t, 1, s.Units())
	assert.Equal(t, 85.0, s.Stop())

	for i := 21; i < 25; i++ {
		assert.Empty(t, s.OnBar(newBar(i, 106, 108, 104, 106)), "bar %d", i+1)
	}
	assert.Equal(t, 1, s.Units())
	assert.Len(t, g.orders, 1)

	// levels stay frozen while the position is open
	assert.Equal(t, [MaxUnits]float64{105, 110, 115, 120}, s.LongLevels())
}

func TestSignalPyramid(t *testing.T) {
	t.Parallel()

	g := &gate{accept: true}
	s, _ := primed(t, testConfig, g)

	// a bar through every level still adds one unit
	acts := s.OnBar(newBar(1, 104, 130, 103, 125))
	require.Len(t, acts, 1)
	assert.Equal(t, 105.0, acts[0].Order.Price)
	assert.Equal(t, 1, s.Units())

	bars := []struct {
		bar       market.Bar
		wantPrice float64
		wantStop  float64
	}{
		{newBar(2, 109, 111, 108, 110), 110, 90},
		{newBar(3, 116, 117, 114, 116), 116, 96}, // gapped above 115
		{newBar(4, 118, 121, 117, 120), 120, 100},
	}
	for i, b := range bars {
		acts := s.OnBar(b.bar)
		require.Len(t, acts, 1, "add %d", i+2)
		assert.Equal(t, b.wantPrice, acts[0].Order.Price)
		assert.Equal(t, i+2, s.Units())
		assert.Equal(t, b.wantStop, s.Stop())
	}

	// full pyramid, nothing left to add
	assert.Empty(t, s.OnBar(newBar(5, 125, 140, 121, 135)))
	assert.Equal(t, MaxUnits, s.Units())

	trip, ok := s.Open()
	require.True(t, ok)
	assert.Equal(t, 4, trip.Units)
	assert.InDelta(t, (105.0+110+116+120)/4, trip.Entry, 1e-12)
}

func TestSignalExit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		exitBar   market.Bar
		wantPrice float64
	}{
		{"at exit channel", newBar(2, 100, 101, 89, 95), 90},
		{"gap through exit", newBar(2, 88, 89, 80, 85), 88},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := &gate{accept: true}
			s, _ := primed(t, testConfig, g)

			require.Len(t, s.OnBar(newBar(1, 104, 106, 103, 105)), 1)
			require.Equal(t, 1, s.Units())

			// stop 85 is below the 90 exit channel, so the channel decides
			acts := s.OnBar(tt.exitBar)
			require.Len(t, acts, 1)
			o := acts[0].Order
			assert.Equal(t, risk.Short, o.Direction)
			assert.Equal(t, risk.Close, o.Offset)
			assert.Equal(t, 1, o.Units)
			assert.Equal(t, tt.wantPrice, o.Price)

			assert.Equal(t, 0, s.Units())
			assert.Equal(t, 0.0, s.Stop())
			_, open := s.Open()
			assert.False(t, open)

			trades := s.Trades()
			require.Len(t, trades, 1)
			assert.Equal(t, tt.wantPrice-105, trades[0].PnL)
			assert.Equal(t, trades[0].PnL, s.LastPnL())
		})
	}
}

func TestSignalExitBeforeEntry(t *testing.T) {
	t.Parallel()

	g := &gate{accept: true}
	s, _ := primed(t, testConfig, g)
	require.Len(t, s.OnBar(newBar(1, 104, 106, 103, 105)), 1)

	// touches the exit and level 2 on the same bar: only the exit happens
	acts := s.OnBar(newBar(2, 100, 112, 89, 100))
	require.Len(t, acts, 1)
	assert.Equal(t, risk.Close, acts[0].Order.Offset)
	assert.Equal(t, 0, s.Units())
	assert.Len(t, g.orders, 2)
}

func TestSignalStopTighterThanChannel(t *testing.T) {
	t.Parallel()

	g := &gate{accept: true}
	s, w := primed(t, testConfig, g)
	w.exitLow = 50

	require.Len(t, s.OnBar(newBar(1, 104, 106, 103, 105)), 1)
	assert.Equal(t, 85.0, s.Stop())

	assert.Empty(t, s.OnBar(newBar(2, 100, 101, 86, 90)))
	acts := s.OnBar(newBar(3, 90, 91, 84, 85))
	require.Len(t, acts, 1)
	assert.Equal(t, 85.0, acts[0].Order.Price)
}

func TestSignalShort(t *testing.T) {
	t.Parallel()

	g := &gate{accept: true}
	s, _ := primed(t, testConfig, g)

	acts := s.OnBar(newBar(1, 96, 97, 94, 95))
	require.Len(t, acts, 1)
	o := acts[0].Order
	assert.Equal(t, risk.Short, o.Direction)
	assert.Equal(t, risk.Open, o.Offset)
	assert.Equal(t, 95.0, o.Price)
	assert.Equal(t, -1, s.Units())
	assert.Equal(t, 115.0, s.Stop())

	// gap down through level 2 fills at the open
	acts = s.OnBar(newBar(2, 88, 89, 87, 88))
	require.Len(t, acts, 1)
	assert.Equal(t, 88.0, acts[0].Order.Price)
	assert.Equal(t, -2, s.Units())
	assert.Equal(t, 108.0, s.Stop())

	// exit channel 110 is above the stop 108, so the stop decides
	acts = s.OnBar(newBar(3, 100, 109, 98, 105))
	require.Len(t, acts, 1)
	o = acts[0].Order
	assert.Equal(t, risk.Long, o.Direction)
	assert.Equal(t, risk.Close, o.Offset)
	assert.Equal(t, 2, o.Units)
	assert.Equal(t, 108.0, o.Price)
	assert.Equal(t, 0, s.Units())

	trades := s.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, -2, trades[0].Units)
	assert.Equal(t, -2*(108-91.5), trades[0].PnL)
}

func TestSignalRejectedLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	g := &gate{accept: false}
	s, _ := primed(t, testConfig, g)

	acts := s.OnBar(newBar(1, 100, 106, 100, 103))
	require.Len(t, acts, 1)
	assert.Equal(t, risk.Long, acts[0].Order.Direction)
	assert.False(t, acts[0].Decision.Accepted)

	assert.Equal(t, 0, s.Units())
	assert.Equal(t, 0.0, s.Stop())
	_, open := s.Open()
	assert.False(t, open)
	assert.Empty(t, s.Trades())
}

func TestSignalOneProposalPerBar(t *testing.T) {
	t.Parallel()

	g := &gate{accept: true, reject: map[risk.Direction]bool{risk.Long: true}}
	s, _ := primed(t, testConfig, g)

	// wide bar crosses both channels; the long is asked and the bar ends there
	acts := s.OnBar(newBar(1, 100, 106, 94, 100))
	require.Len(t, acts, 1)
	assert.Equal(t, risk.Long, acts[0].Order.Direction)
	assert.False(t, acts[0].Decision.Accepted)
	require.Len(t, g.orders, 1)
	assert.Equal(t, 0, s.Units())

	// a short-only break on the next bar is still taken
	acts = s.OnBar(newBar(2, 96, 97, 94, 95))
	require.Len(t, acts, 1)
	assert.Equal(t, risk.Short, acts[0].Order.Direction)
	assert.True(t, acts[0].Decision.Accepted)
	assert.Equal(t, -1, s.Units())
}

func TestSignalProfitCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		profitCheck bool
		wantReentry bool
	}{
		{"suppressed after a winner", true, false},
		{"always trades", false, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig
			cfg.ProfitCheck = tt.profitCheck
			g := &gate{accept: true}
			s, w := primed(t, cfg, g)

			// exit channel trails up to 120 once long
			w.exitLow = 120
			require.Len(t, s.OnBar(newBar(1, 104, 106, 103, 105)), 1)

			acts := s.OnBar(newBar(2, 125, 126, 119, 121))
			require.Len(t, acts, 1)
			assert.Equal(t, 120.0, acts[0].Order.Price)
			assert.Equal(t, 15.0, s.LastPnL())

			acts = s.OnBar(newBar(3, 104, 130, 100, 125))
			if tt.wantReentry {
				require.Len(t, acts, 1)
				assert.Equal(t, 1, s.Units())
			} else {
				assert.Empty(t, acts)
				assert.Equal(t, 0, s.Units())
			}
			assert.Len(t, g.orders, 2+len(acts))
		})
	}
}

func TestSignalsShareInstrumentThroughAllocator(t *testing.T) {
	t.Parallel()

	in := market.Instruments{"RB": {Symbol: "RB", Size: 10, PriceTick: 1}}
	alloc, err := risk.NewAllocator(10_000_000, risk.DefaultLimits(), in, nil)
	require.NoError(t, err)

	fast, _ := primed(t, Config{EntryWindow: 20, ExitWindow: 10, ATRWindow: 20}, alloc)
	slow, _ := primed(t, Config{EntryWindow: 55, ExitWindow: 20, ATRWindow: 20}, alloc)
	signals := []*Signal{fast, slow}

	bars := []market.Bar{
		newBar(1, 104, 106, 103, 105),
		newBar(2, 109, 111, 108, 110),
		newBar(3, 100, 101, 89, 95),
		newBar(4, 96, 97, 94, 95),
	}
	for _, b := range bars {
		for _, s := range signals {
			s.OnBar(b)
		}

		holding := 0
		for _, s := range signals {
			assert.LessOrEqual(t, abs(s.Units()), MaxUnits)
			if s.Units() != 0 {
				holding++
				assert.Equal(t, alloc.Units("RB"), s.Units())
			}
		}
		assert.LessOrEqual(t, holding, 1)
	}

	// fast exited on bar 3 and could not re-enter on the same bar, so the
	// slow signal picked up the short and now owns the instrument
	assert.Len(t, fast.Trades(), 1)
	assert.Empty(t, slow.Trades())
	assert.Equal(t, 0, fast.Units())
	assert.Equal(t, -1, slow.Units())
	owner, _ := alloc.Owner("RB")
	assert.Equal(t, slow.ID(), owner)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	var r RoundTrip
	r.open(day0, 100, 1)
	r.open(day0.AddDate(0, 0, 1), 110, 1)
	r.open(day0.AddDate(0, 0, 2), 121, 1)
	r.close(day0.AddDate(0, 0, 5), 130)

	assert.Equal(t, 3, r.Units)
	assert.InDelta(t, 110.333333333, r.Entry, 1e-8)
	assert.Equal(t, float64(r.Units)*(r.Exit-r.Entry), r.PnL)
	assert.True(t, r.Opened.Equal(day0))
	assert.True(t, r.Closed.Equal(day0.AddDate(0, 0, 5)))

	var short RoundTrip
	short.open(day0, 50, -1)
	short.open(day0, 40, -1)
	short.close(day0, 42)
	assert.Equal(t, 45.0, short.Entry)
	assert.Equal(t, 6.0, short.PnL)
}
