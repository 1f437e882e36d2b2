// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	action TEXT NOT NULL,
	instrument TEXT NOT NULL,
	price REAL NOT NULL,
	stop_loss_price REAL NOT NULL,
	take_profit_price REAL NOT NULL,
	units INTEGER NOT NULL,
	mode TEXT NOT NULL,
	status TEXT NOT NULL,
	account_balance REAL NOT NULL,
	margin REAL NOT NULL,
	pip_value REAL NOT NULL,
	trade_value REAL NOT NULL,
	reward REAL NOT NULL,
	risk REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_time ON trades(time);
`
