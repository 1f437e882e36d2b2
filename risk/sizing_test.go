package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/tradehook/broker"
)

func gbpAccount() broker.AccountState {
	return broker.AccountState{Balance: 100000.0844, Leverage: 30, Currency: "GBP"}
}

// The cross rate is quoted account→quote: GBP_USD for a GBP account trading
// a USD-quoted pair.
func TestComputeGBPAccountEURUSD(t *testing.T) {
	t.Parallel()

	in := Inputs{
		Instrument:      "EUR_USD",
		Price:           0.64902,
		StopLossPrice:   0.64772,
		TakeProfitPrice: 0.65162,
		RiskPercent:     1.0,
		Account:         gbpAccount(),
		QuoteRate:       1.27,
	}

	got, err := Compute(in)
	assert.NoError(t, err)

	assert.Greater(t, got.Units, 0)
	assert.InDelta(t, 100000.0844, got.AccountBalanceOriginal, 1e-9)
	assert.InDelta(t, 100000.0844*1.27, got.AccountBalanceConverted, 1e-6)

	// 1% of the converted balance over a 13-pip stop.
	assert.InDelta(t, 976924, float64(got.Units), 1)
	assert.InDelta(t, float64(got.Units)*0.64902/30, got.Margin, 1e-6)
	assert.InDelta(t, float64(got.Units)*0.64902, got.TradeValue, 1e-6)

	// Floor-truncation keeps realized risk at or just under the requested 1%.
	assert.InDelta(t, 1.0, got.RiskPct, 0.01)
	assert.LessOrEqual(t, got.RiskPct, 1.0)
	// 26-pip target against a 13-pip stop: reward is twice the risk.
	assert.InDelta(t, got.RiskPct*2, got.RewardPct, 0.01)
}

func TestComputeIsIdempotent(t *testing.T) {
	t.Parallel()

	in := Inputs{
		Instrument:      "EUR_USD",
		Price:           1.1000,
		StopLossPrice:   1.0950,
		TakeProfitPrice: 1.1100,
		RiskPercent:     0.5,
		Account:         gbpAccount(),
		QuoteRate:       1.27,
	}

	first, err := Compute(in)
	assert.NoError(t, err)
	second, err := Compute(in)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeZeroStopDistance(t *testing.T) {
	t.Parallel()

	in := Inputs{
		Instrument:    "EUR_USD",
		Price:         1.1000,
		StopLossPrice: 1.1000,
		RiskPercent:   1.0,
		Account:       broker.AccountState{Balance: 10000, Leverage: 30, Currency: "USD"},
	}

	_, err := Compute(in)
	assert.ErrorIs(t, err, ErrInvalidSizing)
}

func TestComputeNonPositiveUnits(t *testing.T) {
	t.Parallel()

	// A tiny risk amount over a huge stop distance floors to zero units.
	in := Inputs{
		Instrument:    "EUR_USD",
		Price:         1.2000,
		StopLossPrice: 1.1000,
		RiskPercent:   0.001,
		Account:       broker.AccountState{Balance: 10, Leverage: 30, Currency: "USD"},
	}

	_, err := Compute(in)
	assert.ErrorIs(t, err, ErrInvalidSizing)
}

func TestComputeSameCurrencyNeedsNoRate(t *testing.T) {
	t.Parallel()

	in := Inputs{
		Instrument:    "EUR_USD",
		Price:         1.1000,
		StopLossPrice: 1.0900,
		RiskPercent:   1.0,
		Account:       broker.AccountState{Balance: 10000, Leverage: 50, Currency: "USD"},
	}

	got, err := Compute(in)
	assert.NoError(t, err)
	assert.InDelta(t, 10000, got.AccountBalanceConverted, 1e-9)
	// risk amount 100 over a 0.01 stop distance
	assert.InDelta(t, 10000, float64(got.Units), 1)
}

func TestComputeMissingRateForCrossCurrency(t *testing.T) {
	t.Parallel()

	in := Inputs{
		Instrument:    "EUR_USD",
		Price:         1.1000,
		StopLossPrice: 1.0900,
		RiskPercent:   1.0,
		Account:       gbpAccount(),
		// QuoteRate deliberately unset
	}

	_, err := Compute(in)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidSizing))
}

func TestComputeJPYQuote(t *testing.T) {
	t.Parallel()

	in := Inputs{
		Instrument:    "USD_JPY",
		Price:         150.00,
		StopLossPrice: 149.50,
		RiskPercent:   1.0,
		Account:       broker.AccountState{Balance: 10000, Leverage: 30, Currency: "USD"},
		QuoteRate:     150.0, // USD_JPY mid
	}

	got, err := Compute(in)
	assert.NoError(t, err)

	// JPY pip size is 0.01: a 0.50 stop is 50 pips. Risk amount is
	// 1% of 1,500,000 JPY = 15,000 JPY, so 30,000 units.
	assert.Equal(t, 30000, got.Units)
	// One pip across the position, converted back to USD.
	assert.InDelta(t, 2.0, got.PipValue, 1e-9)
	// No take-profit given: reward is absent.
	assert.Zero(t, got.RewardPct)
}

func TestComputeAlwaysReturnsPositiveUnits(t *testing.T) {
	t.Parallel()

	// Stop above entry (a short setup): distance is absolute, units stay
	// positive. Signing is the caller's job.
	in := Inputs{
		Instrument:    "EUR_USD",
		Price:         1.1000,
		StopLossPrice: 1.1050,
		RiskPercent:   1.0,
		Account:       broker.AccountState{Balance: 10000, Leverage: 30, Currency: "USD"},
	}

	got, err := Compute(in)
	assert.NoError(t, err)
	assert.Greater(t, got.Units, 0)
}

func TestComputeBadLeverage(t *testing.T) {
	t.Parallel()

	in := Inputs{
		Instrument:    "EUR_USD",
		Price:         1.1000,
		StopLossPrice: 1.0900,
		RiskPercent:   1.0,
		Account:       broker.AccountState{Balance: 10000, Leverage: 0, Currency: "USD"},
	}

	_, err := Compute(in)
	assert.Error(t, err)
}
