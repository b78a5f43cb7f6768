// Package backtest replays bars through the breakout signals and the
// portfolio gate and keeps the daily PnL ledgers.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/turtle/indicators"
	"github.com/rustyeddy/turtle/market"
	"github.com/rustyeddy/turtle/metrics"
	"github.com/rustyeddy/turtle/pkg/id"
	"github.com/rustyeddy/turtle/risk"
	"github.com/rustyeddy/turtle/strategy"
)

// EngineConfig is the portfolio setup of a run.
type EngineConfig struct {
	PortfolioValue float64
	AnnualDays     int
	Limits         risk.Limits
	Signals        []strategy.Config // one signal per config per instrument
}

// DefaultEngineConfig returns a 10,000,000 portfolio running the two
// default signals under the default limits.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		PortfolioValue: 10_000_000,
		AnnualDays:     DefaultAnnualDays,
		Limits:         risk.DefaultLimits(),
		Signals:        strategy.DefaultConfigs(),
	}
}

func (c EngineConfig) Validate() error {
	if c.PortfolioValue <= 0 {
		return fmt.Errorf("portfolio value must be positive")
	}
	if c.AnnualDays < 0 {
		return fmt.Errorf("annual days must not be negative")
	}
	if err := c.Limits.Validate(); err != nil {
		return err
	}
	if len(c.Signals) == 0 {
		return fmt.Errorf("at least one signal config is required")
	}
	seen := make(map[string]bool, len(c.Signals))
	for _, sc := range c.Signals {
		if err := sc.Validate(); err != nil {
			return err
		}
		if seen[sc.Name()] {
			return fmt.Errorf("duplicate signal config %s", sc.Name())
		}
		seen[sc.Name()] = true
	}
	return nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics mirrors orders, fills and the balance curve to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithIDSeed seeds fill IDs. Runs with the same seed and bars get the
// same IDs.
func WithIDSeed(seed int64) Option {
	return func(e *Engine) { e.ids = id.NewGenerator(seed) }
}

// Engine drives one backtest. It implements risk.Recorder for its
// allocator. An Engine runs once and is not safe for concurrent use.
type Engine struct {
	cfg         EngineConfig
	instruments market.Instruments
	alloc       *risk.Allocator
	signals     map[string][]*strategy.Signal

	log     zerolog.Logger
	metrics *metrics.Metrics
	ids     *id.Generator

	now   time.Time
	day   *Day
	days  []*Day
	fills []Fill

	balance float64
	high    float64
	ran     bool
}

// NewEngine validates the configuration and builds every signal. All
// configuration errors surface here, before any bar is processed.
func NewEngine(cfg EngineConfig, instruments market.Instruments, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	if err := instruments.Validate(); err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	if cfg.AnnualDays == 0 {
		cfg.AnnualDays = DefaultAnnualDays
	}

	e := &Engine{
		cfg:         cfg,
		instruments: instruments,
		signals:     make(map[string][]*strategy.Signal, len(instruments)),
		log:         zerolog.Nop(),
		ids:         id.NewGenerator(1),
		balance:     cfg.PortfolioValue,
		high:        cfg.PortfolioValue,
	}
	for _, opt := range opts {
		opt(e)
	}

	alloc, err := risk.NewAllocator(cfg.PortfolioValue, cfg.Limits, instruments, e)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	e.alloc = alloc

	for _, sym := range instruments.Symbols() {
		for _, sc := range cfg.Signals {
			w, err := indicators.NewBuffer(0, sc.Warmup())
			if err != nil {
				return nil, fmt.Errorf("backtest: %s: %w", sym, err)
			}
			s, err := strategy.NewSignal(sym, sc, w, alloc)
			if err != nil {
				return nil, fmt.Errorf("backtest: %w", err)
			}
			e.signals[sym] = append(e.signals[sym], s)
		}
	}
	return e, nil
}

// Run replays every slice of feed. Each slice opens a new day seeded with
// the positions and closes left by the previous one, and the previous day is
// finalized at the boundary. The last day is finalized when the feed ends.
//
// A bar for an instrument without configuration aborts the run, as does ctx.
func (e *Engine) Run(ctx context.Context, feed market.SliceFeed) error {
	if feed == nil {
		return fmt.Errorf("backtest: Feed is required")
	}
	if e.ran {
		return fmt.Errorf("backtest: engine already ran")
	}
	e.ran = true
	defer feed.Close()

	e.log.Info().
		Int("instruments", len(e.instruments)).
		Int("signals", len(e.cfg.Signals)).
		Float64("portfolio", e.cfg.PortfolioValue).
		Msg("backtest start")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s, ok, err := feed.Next()
		if err != nil {
			return fmt.Errorf("backtest: feed: %w", err)
		}
		if !ok {
			break
		}
		if err := e.step(s); err != nil {
			return err
		}
	}

	if err := e.closeDay(); err != nil {
		return err
	}

	e.log.Info().
		Int("days", len(e.days)).
		Int("fills", len(e.fills)).
		Float64("balance", e.balance).
		Msg("backtest done")
	return nil
}

func (e *Engine) step(s market.Slice) error {
	if !e.now.IsZero() && !s.Time.After(e.now) {
		return fmt.Errorf("backtest: slice %s is not after %s",
			s.Time.Format(time.RFC3339), e.now.Format(time.RFC3339))
	}

	var prevCloses map[string]float64
	if e.day != nil {
		prevCloses = e.day.Closes()
	}
	if err := e.closeDay(); err != nil {
		return err
	}

	e.now = s.Time
	e.day = NewDay(s.Time, e.alloc.Positions(), prevCloses)

	for _, b := range s.Bars {
		signals, ok := e.signals[b.Instrument]
		if !ok {
			return fmt.Errorf("backtest: %w: %s", market.ErrUnknownInstrument, b.Instrument)
		}
		for _, sig := range signals {
			for _, act := range sig.OnBar(b) {
				e.observe(sig, act)
			}
		}
		if err := e.day.RecordClose(b.Instrument, b.Close); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) observe(sig *strategy.Signal, act strategy.Action) {
	o, d := act.Order, act.Decision
	if e.metrics != nil {
		e.metrics.ObserveOrder(o.Instrument, o.Offset.String(), d.Accepted, string(d.Reason))
	}
	if d.Accepted {
		return
	}
	e.log.Debug().
		Time("time", e.now).
		Str("signal", sig.ID()).
		Str("dir", o.Direction.String()).
		Str("offset", o.Offset.String()).
		Float64("price", o.Price).
		Str("reason", string(d.Reason)).
		Msg(d.Msg)
}

// closeDay finalizes the current day, if any, and extends the balance curve.
func (e *Engine) closeDay() error {
	if e.day == nil || e.day.Finalized() {
		return nil
	}
	if err := e.day.Finalize(e.instruments); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	e.days = append(e.days, e.day)

	e.balance += e.day.PnL().NetPnL
	if e.balance > e.high {
		e.high = e.balance
	}
	if e.metrics != nil {
		e.metrics.ObserveDay(e.balance, e.balance-e.high)
	}
	return nil
}

// Record implements risk.Recorder. The price is snapped to the instrument's
// tick before it reaches the ledger.
func (e *Engine) Record(instrument string, dir risk.Direction, off risk.Offset, price float64, volume int) {
	inst, err := e.instruments.Get(instrument)
	if err != nil {
		// the allocator only accepts configured instruments
		e.log.Error().Err(err).Msg("record")
		return
	}

	f := Fill{
		ID:         e.ids.At(e.now),
		Time:       e.now,
		Instrument: instrument,
		Direction:  dir,
		Offset:     off,
		Price:      inst.RoundPrice(price),
		Volume:     volume,
	}
	e.fills = append(e.fills, f)
	if e.day != nil {
		if err := e.day.RecordFill(f); err != nil {
			e.log.Error().Err(err).Str("fill_id", f.ID).Str("instrument", instrument).Msg("record")
		}
	}
	if e.metrics != nil {
		e.metrics.ObserveFill(instrument, dir.String(), volume)
	}

	e.log.Debug().
		Time("time", f.Time).
		Str("instrument", instrument).
		Str("dir", dir.String()).
		Str("offset", off.String()).
		Float64("price", f.Price).
		Int("volume", volume).
		Msg("fill")
}

// Result aggregates the finalized days.
func (e *Engine) Result() (Result, error) {
	return Aggregate(e.days, e.cfg.PortfolioValue, e.cfg.AnnualDays)
}

// Days returns the finalized days in order.
func (e *Engine) Days() []*Day {
	return append([]*Day(nil), e.days...)
}

// Fills returns the fills of one instrument in time order, or all fills when
// instrument is empty.
func (e *Engine) Fills(instrument string) []Fill {
	var out []Fill
	for _, f := range e.fills {
		if instrument == "" || f.Instrument == instrument {
			out = append(out, f)
		}
	}
	return out
}

// Signals returns the signals trading an instrument.
func (e *Engine) Signals(instrument string) []*strategy.Signal {
	return append([]*strategy.Signal(nil), e.signals[instrument]...)
}

// Allocator exposes the portfolio gate for inspection.
func (e *Engine) Allocator() *risk.Allocator {
	return e.alloc
}

func (e *Engine) Config() EngineConfig {
	return e.cfg
}
