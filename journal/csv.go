// journal/csv.go
package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

type CSV struct {
	w *csv.Writer
	f *os.File
}

var csvHeader = []string{
	"id", "time", "action", "instrument", "price", "stop_loss_price", "take_profit_price",
	"units", "mode", "status", "account_balance", "margin", "pip_value", "trade_value", "reward", "risk",
}

func NewCSV(path string) (*CSV, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	w := csv.NewWriter(f)
	// Only write the header on a fresh file; the ledger is append-only.
	if stat.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &CSV{w: w, f: f}, nil
}

func (j *CSV) RecordTrade(t TradeRecord) error {
	err := j.w.Write([]string{
		t.ID,
		t.Time.Format(time.RFC3339),
		t.Action,
		t.Instrument,
		f(t.Price),
		f(t.StopLossPrice),
		f(t.TakeProfitPrice),
		strconv.Itoa(t.Units),
		string(t.Mode),
		t.Status,
		f(t.AccountBalance),
		f(t.Margin),
		f(t.PipValue),
		f(t.TradeValue),
		f(t.Reward),
		f(t.Risk),
	})
	if err != nil {
		return err
	}

	j.w.Flush()
	return j.w.Error()
}

func (j *CSV) Close() error {
	j.w.Flush()
	if err := j.w.Error(); err != nil {
		return err
	}
	return j.f.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
