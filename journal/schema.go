package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	dataset TEXT NOT NULL,
	instruments TEXT NOT NULL,
	signals TEXT NOT NULL,
	start_date DATETIME NOT NULL,
	end_date DATETIME NOT NULL,
	days INTEGER NOT NULL,
	trades INTEGER NOT NULL,
	start_balance REAL NOT NULL,
	end_balance REAL NOT NULL,
	net_pnl REAL NOT NULL,
	commission REAL NOT NULL,
	slippage REAL NOT NULL,
	total_return REAL NOT NULL,
	annual_return REAL NOT NULL,
	max_drawdown REAL NOT NULL,
	max_drawdown_pct REAL NOT NULL,
	sharpe REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS fills (
	fill_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	instrument TEXT NOT NULL,
	direction TEXT NOT NULL,
	open_close TEXT NOT NULL,
	price REAL NOT NULL,
	volume INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_run ON fills(run_id, time);

CREATE TABLE IF NOT EXISTS days (
	run_id TEXT NOT NULL,
	date DATETIME NOT NULL,
	trading_pnl REAL NOT NULL,
	holding_pnl REAL NOT NULL,
	commission REAL NOT NULL,
	slippage REAL NOT NULL,
	net_pnl REAL NOT NULL,
	trades INTEGER NOT NULL,
	balance REAL NOT NULL,
	drawdown REAL NOT NULL,
	PRIMARY KEY (run_id, date)
);
`

// PostgresSchema is Schema with Postgres column types.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created TIMESTAMPTZ NOT NULL,
	dataset TEXT NOT NULL,
	instruments TEXT NOT NULL,
	signals TEXT NOT NULL,
	start_date TIMESTAMPTZ NOT NULL,
	end_date TIMESTAMPTZ NOT NULL,
	days INTEGER NOT NULL,
	trades INTEGER NOT NULL,
	start_balance DOUBLE PRECISION NOT NULL,
	end_balance DOUBLE PRECISION NOT NULL,
	net_pnl DOUBLE PRECISION NOT NULL,
	commission DOUBLE PRECISION NOT NULL,
	slippage DOUBLE PRECISION NOT NULL,
	total_return DOUBLE PRECISION NOT NULL,
	annual_return DOUBLE PRECISION NOT NULL,
	max_drawdown DOUBLE PRECISION NOT NULL,
	max_drawdown_pct DOUBLE PRECISION NOT NULL,
	sharpe DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS fills (
	fill_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	time TIMESTAMPTZ NOT NULL,
	instrument TEXT NOT NULL,
	direction TEXT NOT NULL,
	open_close TEXT NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	volume BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_run ON fills(run_id, time);

CREATE TABLE IF NOT EXISTS days (
	run_id TEXT NOT NULL,
	date TIMESTAMPTZ NOT NULL,
	trading_pnl DOUBLE PRECISION NOT NULL,
	holding_pnl DOUBLE PRECISION NOT NULL,
	commission DOUBLE PRECISION NOT NULL,
	slippage DOUBLE PRECISION NOT NULL,
	net_pnl DOUBLE PRECISION NOT NULL,
	trades INTEGER NOT NULL,
	balance DOUBLE PRECISION NOT NULL,
	drawdown DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, date)
);
`
