// Package risk converts a signal's entry/stop/target into a concrete unit
// count sized to a percentage of the account balance. It is pure computation:
// the account state and any cross-currency mid rate are inputs, fetched by
// the caller immediately before each decision.
package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/rustyeddy/tradehook/broker"
	"github.com/rustyeddy/tradehook/market"
)

// ErrInvalidSizing means the signal cannot produce a tradable position:
// a zero stop-loss distance, or a computed unit count of zero or less.
// It marks a bad signal payload, not a system fault.
var ErrInvalidSizing = errors.New("invalid sizing")

// Inputs carries everything Compute needs. QuoteRate is the account→quote
// currency mid rate (e.g. GBP_USD for a GBP account trading EUR_USD); it is
// ignored when the quote currency equals the account currency.
type Inputs struct {
	Instrument      string
	Price           float64
	StopLossPrice   float64
	TakeProfitPrice float64 // 0 when the signal carries no target
	RiskPercent     float64
	Account         broker.AccountState
	QuoteRate       float64
}

// Result is the sized position and its risk/reward metrics. Units is always
// positive; the caller negates it for short positions before submission.
// Percentages are relative to the converted balance.
type Result struct {
	Units                   int
	Margin                  float64
	PipValue                float64 // value of a one-pip move, account currency
	TradeValue              float64
	RewardPct               float64 // 0 when no take-profit was given
	RiskPct                 float64
	AccountBalanceConverted float64
	AccountBalanceOriginal  float64
}

// Compute sizes a position so that the stop-loss being hit loses RiskPercent
// of the account balance. Identical inputs always yield an identical result.
func Compute(in Inputs) (Result, error) {
	_, quote, err := market.SplitInstrument(in.Instrument)
	if err != nil {
		return Result{}, err
	}
	if in.Account.Leverage < 1 {
		return Result{}, fmt.Errorf("account leverage %d must be >= 1", in.Account.Leverage)
	}

	// Balance is converted into the quote currency so the stop distance,
	// which is denominated in quote-currency price terms, divides cleanly.
	rate := 1.0
	if quote != in.Account.Currency {
		if in.QuoteRate <= 0 {
			return Result{}, fmt.Errorf("quote rate required to convert %s balance to %s", in.Account.Currency, quote)
		}
		rate = in.QuoteRate
	}
	converted := in.Account.Balance * rate
	riskAmount := converted * in.RiskPercent / 100

	pip := market.PipSizeFor(quote)
	stopDistance := math.Abs(in.Price - in.StopLossPrice)
	if stopDistance == 0 {
		return Result{}, fmt.Errorf("%w: stop-loss distance is zero", ErrInvalidSizing)
	}
	stopPips := stopDistance / pip

	units := int(math.Floor(riskAmount / (stopPips * pip)))
	if units <= 0 {
		return Result{}, fmt.Errorf("%w: computed units %d (risk amount %.2f over %.1f stop pips)",
			ErrInvalidSizing, units, riskAmount, stopPips)
	}

	res := Result{
		Units:                   units,
		Margin:                  float64(units) * in.Price / float64(in.Account.Leverage),
		PipValue:                pip * float64(units) / rate,
		TradeValue:              float64(units) * in.Price,
		RiskPct:                 stopPips * pip * float64(units) / converted * 100,
		AccountBalanceConverted: converted,
		AccountBalanceOriginal:  in.Account.Balance,
	}
	if in.TakeProfitPrice != 0 {
		targetPips := math.Abs(in.TakeProfitPrice-in.Price) / pip
		res.RewardPct = targetPips * pip * float64(units) / converted * 100
	}
	return res, nil
}
