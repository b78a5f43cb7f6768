package market

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig locates an OHLCV table laid out as
//
//	symbol String, interval String, open_time_ms UInt64,
//	open Float64, high Float64, low Float64, close Float64, volume Float64
type ClickHouseConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Database string `json:"database" yaml:"database"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Table    string `json:"table" yaml:"table"`
	Interval string `json:"interval" yaml:"interval"` // e.g. "1d"
}

// ClickHouseSource loads bars from ClickHouse.
type ClickHouseSource struct {
	conn driver.Conn
	cfg  ClickHouseConfig
}

// NewClickHouseSource connects and pings the server.
func NewClickHouseSource(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseSource, error) {
	if cfg.Addr == "" || cfg.Table == "" {
		return nil, fmt.Errorf("clickhouse: addr and table are required")
	}
	if cfg.Interval == "" {
		cfg.Interval = "1d"
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &ClickHouseSource{conn: conn, cfg: cfg}, nil
}

// LoadBars reads the bars of each symbol in [from, to). Zero times leave the
// range open on that side.
func (s *ClickHouseSource) LoadBars(ctx context.Context, symbols []string, from, to time.Time) ([]Bar, error) {
	var out []Bar
	for _, sym := range symbols {
		q, args := barsQuery(s.cfg, sym, from, to)
		rows, err := s.conn.Query(ctx, q, args...)
		if err != nil {
			return nil, fmt.Errorf("clickhouse query %s: %w", sym, err)
		}

		for rows.Next() {
			var (
				ot             uint64
				o, h, l, c, vl float64
			)
			if err := rows.Scan(&ot, &o, &h, &l, &c, &vl); err != nil {
				rows.Close()
				return nil, fmt.Errorf("clickhouse scan %s: %w", sym, err)
			}
			b, err := rowBar(sym, ot, o, h, l, c, vl)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("clickhouse %s: %w", sym, err)
			}
			out = append(out, b)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("clickhouse rows %s: %w", sym, err)
		}
	}
	return out, nil
}

// Feed loads every symbol and returns a replayable feed.
func (s *ClickHouseSource) Feed(ctx context.Context, symbols []string, from, to time.Time) (*MemoryFeed, error) {
	bars, err := s.LoadBars(ctx, symbols, from, to)
	if err != nil {
		return nil, err
	}
	return NewMemoryFeed(bars), nil
}

func (s *ClickHouseSource) Close() error {
	return s.conn.Close()
}

func barsQuery(cfg ClickHouseConfig, sym string, from, to time.Time) (string, []any) {
	table := cfg.Table
	if cfg.Database != "" {
		table = cfg.Database + "." + cfg.Table
	}

	q := fmt.Sprintf(`
SELECT open_time_ms, open, high, low, close, volume
FROM %s
WHERE symbol = ? AND interval = ?`, table)
	args := []any{sym, cfg.Interval}

	if !from.IsZero() {
		q += " AND open_time_ms >= ?"
		args = append(args, uint64(from.UnixMilli()))
	}
	if !to.IsZero() {
		q += " AND open_time_ms < ?"
		args = append(args, uint64(to.UnixMilli()))
	}
	q += "\nORDER BY open_time_ms"
	return q, args
}

// rowBar builds a bar from an ohlcv row and applies the same consistency
// check as the CSV reader.
func rowBar(sym string, openTimeMs uint64, o, h, l, c, vl float64) (Bar, error) {
	b := Bar{
		Instrument: sym,
		Time:       time.UnixMilli(int64(openTimeMs)).UTC(),
		Open:       o,
		High:       h,
		Low:        l,
		Close:      c,
		Volume:     vl,
	}
	if !b.Valid() {
		return Bar{}, fmt.Errorf("inconsistent bar %s o=%v h=%v l=%v c=%v",
			b.Time.Format(time.RFC3339), o, h, l, c)
	}
	return b, nil
}
