package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLJournal stores runs in a SQL database. The same statements run on
// SQLite and Postgres; placeholders are rebound per driver.
type SQLJournal struct {
	db     *sql.DB
	driver string
}

// NewSQLite opens (or creates) a SQLite journal at path.
func NewSQLite(path string) (*SQLJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLJournal{db: db, driver: "sqlite3"}, nil
}

// NewPostgres connects to the Postgres database at dsn, retrying the first
// ping with exponential backoff for up to maxWait, and creates the schema.
func NewPostgres(ctx context.Context, dsn string, maxWait time.Duration) (*SQLJournal, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxWait
	ping := func() error { return db.PingContext(ctx) }
	if err := backoff.Retry(ping, backoff.WithContext(b, ctx)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, PostgresSchema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLJournal{db: db, driver: "postgres"}, nil
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func rebind(driver, query string) string {
	if driver != "postgres" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (j *SQLJournal) exec(query string, args ...any) error {
	_, err := j.db.Exec(rebind(j.driver, query), args...)
	return err
}

func (j *SQLJournal) RecordRun(r RunRecord) error {
	return j.exec(`
		INSERT INTO runs
		(run_id, created, dataset, instruments, signals, start_date, end_date, days, trades,
		 start_balance, end_balance, net_pnl, commission, slippage,
		 total_return, annual_return, max_drawdown, max_drawdown_pct, sharpe)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created.UTC(), r.Dataset,
		strings.Join(r.Instruments, ","), strings.Join(r.Signals, ","),
		r.Start.UTC(), r.End.UTC(), r.Days, r.Trades,
		r.StartBalance, r.EndBalance, r.NetPnL, r.Commission, r.Slippage,
		r.TotalReturn, r.AnnualReturn, r.MaxDrawdown, r.MaxDrawdownPct, r.Sharpe,
	)
}

func (j *SQLJournal) RecordFill(f FillRecord) error {
	return j.exec(`
		INSERT INTO fills
		(fill_id, run_id, time, instrument, direction, open_close, price, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.FillID, f.RunID, f.Time.UTC(), f.Instrument, f.Direction, f.Offset, f.Price, f.Volume,
	)
}

func (j *SQLJournal) RecordDay(d DayRecord) error {
	return j.exec(`
		INSERT INTO days
		(run_id, date, trading_pnl, holding_pnl, commission, slippage, net_pnl, trades, balance, drawdown)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.RunID, d.Date.UTC(), d.TradingPnL, d.HoldingPnL, d.Commission, d.Slippage,
		d.NetPnL, d.Trades, d.Balance, d.Drawdown,
	)
}

func (j *SQLJournal) Close() error {
	return j.db.Close()
}
