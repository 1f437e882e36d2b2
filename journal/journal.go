// journal/journal.go
package journal

import (
	"time"

	"github.com/rustyeddy/tradehook/broker"
)

// TradeRecord is one ledger row: the signal that was acted on, the computed
// sizing metrics, and the outcome. Close actions leave the sizing fields
// zero.
type TradeRecord struct {
	Time            time.Time
	ID              string
	Action          string
	Instrument      string
	Price           float64
	StopLossPrice   float64
	TakeProfitPrice float64
	Units           int
	Mode            broker.Mode
	Status          string // "success", "dry-run", or "error: ..."
	AccountBalance  float64
	Margin          float64
	PipValue        float64
	TradeValue      float64
	Reward          float64
	Risk            float64
}

// Journal persists trade records. A journal write failure must never fail
// the trade itself; callers log and continue.
type Journal interface {
	RecordTrade(TradeRecord) error
	Close() error
}
