package trade

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/tradehook/broker"
	"github.com/rustyeddy/tradehook/market"
	"github.com/rustyeddy/tradehook/pkg/id"
)

type Action string

const (
	OpenLong   Action = "open_long"
	CloseLong  Action = "close_long"
	OpenShort  Action = "open_short"
	CloseShort Action = "close_short"
)

// IsOpen reports whether the action opens a position.
func (a Action) IsOpen() bool { return a == OpenLong || a == OpenShort }

// Direction returns the position side the action refers to.
func (a Action) Direction() broker.Direction {
	if a == OpenShort || a == CloseShort {
		return broker.Short
	}
	return broker.Long
}

// Signal is the inbound trading-signal payload. Price, stop, and target are
// required for open actions and ignored for closes.
type Signal struct {
	Ticker          string  `json:"ticker"`
	Action          Action  `json:"action"`
	Price           float64 `json:"price,omitempty"`
	StopLossPrice   float64 `json:"stop_loss_price,omitempty"`
	TakeProfitPrice float64 `json:"take_profit_price,omitempty"`
	RiskPercent     float64 `json:"risk_percent,omitempty"`
	TradingType     string  `json:"trading_type,omitempty"`
	ID              string  `json:"id"`
}

// ValidationError marks a malformed signal. The HTTP layer maps it to 400;
// nothing with this error ever reaches the broker.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid signal: " + e.Reason }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Normalize fills the documented defaults: 1% risk, practice mode, and a
// generated id when the sender did not supply one.
func (s *Signal) Normalize() {
	if s.RiskPercent == 0 {
		s.RiskPercent = 1.0
	}
	if s.TradingType == "" {
		s.TradingType = string(broker.Practice)
	}
	if s.ID == "" {
		s.ID = id.New()
	}
}

// Validate checks the signal's shape. It performs no I/O.
func (s Signal) Validate() error {
	if _, err := market.InstrumentFromTicker(s.Ticker); err != nil {
		return validationErrorf("%v", err)
	}

	switch s.Action {
	case OpenLong, OpenShort:
		if s.Price <= 0 {
			return validationErrorf("price is required for %s", s.Action)
		}
		if s.StopLossPrice <= 0 {
			return validationErrorf("stop_loss_price is required for %s", s.Action)
		}
		if s.TakeProfitPrice <= 0 {
			return validationErrorf("take_profit_price is required for %s", s.Action)
		}
	case CloseLong, CloseShort:
		// Closes carry no prices; anything supplied is ignored.
	default:
		return validationErrorf("unknown action %q", s.Action)
	}

	if s.RiskPercent < 0 || s.RiskPercent > 100 {
		return validationErrorf("risk_percent %v out of range", s.RiskPercent)
	}
	if _, err := broker.ParseMode(s.TradingType); err != nil {
		return validationErrorf("%v", err)
	}
	return nil
}

// Instrument derives the broker instrument name from the ticker.
func (s Signal) Instrument() (string, error) {
	return market.InstrumentFromTicker(s.Ticker)
}

// Mode returns the trading mode the signal targets.
func (s Signal) Mode() (broker.Mode, error) {
	return broker.ParseMode(s.TradingType)
}
