package broker

import (
	"context"
)

// Gateway is the broker capability the rest of the system is built on.
// Implementations talk to a real broker (oanda.Client) or stand in for one in
// tests. Every call is a fresh round trip; nothing here caches account or
// position state.
type Gateway interface {
	GetAccountState(ctx context.Context, mode Mode) (AccountState, error)
	GetInstruments(ctx context.Context, mode Mode) ([]Instrument, error)
	GetOpenPositions(ctx context.Context, mode Mode) ([]Position, error)
	GetMidRate(ctx context.Context, baseCcy, quoteCcy string, mode Mode) (float64, error)
	SubmitMarketOrder(ctx context.Context, req MarketOrderRequest) (OrderResult, error)
	ClosePosition(ctx context.Context, instrument string, direction Direction, mode Mode) (OrderResult, error)
}

// AccountState is the broker-reported account snapshot used for sizing.
// It is fetched fresh per decision and never persisted: any executed trade
// invalidates it.
type AccountState struct {
	Balance  float64
	Leverage int // round(1/marginRate) as reported by the broker
	Currency string
}

// Instrument pairs a broker instrument name with its display precision, the
// number of decimal places used when formatting prices for that instrument.
type Instrument struct {
	Name      string
	Precision int
}

type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Position is a broker-side open position. The system only reads these; any
// entry in the list means "a position is open".
type Position struct {
	Instrument string
	Direction  Direction
	Units      float64
}

// MarketOrderRequest describes a market order with broker-side stop-loss and
// take-profit fills. Units is signed: positive opens long, negative short.
// Stop and take-profit prices are formatted to exactly Precision decimal
// places on the wire.
type MarketOrderRequest struct {
	Instrument      string
	Units           int
	StopLossPrice   float64
	TakeProfitPrice float64
	Precision       int
	Mode            Mode
}

// OrderResult is the broker's answer to an order or close instruction. In
// dry-run mode no network call is made: DryRun is true and Payload echoes the
// body that would have been sent.
type OrderResult struct {
	Body    string
	DryRun  bool
	Payload string
}
