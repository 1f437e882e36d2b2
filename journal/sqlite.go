package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(id, time, action, instrument, price, stop_loss_price, take_profit_price,
		 units, mode, status, account_balance, margin, pip_value, trade_value, reward, risk)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Time, t.Action, t.Instrument, t.Price, t.StopLossPrice, t.TakeProfitPrice,
		t.Units, string(t.Mode), t.Status, t.AccountBalance, t.Margin, t.PipValue, t.TradeValue, t.Reward, t.Risk,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
