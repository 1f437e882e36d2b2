// Package trade drives the open/close lifecycle of the account's single
// position. The broker is the source of truth for position state: the engine
// re-queries open positions before every open decision instead of trusting
// anything cached locally.
package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/tradehook/broker"
	"github.com/rustyeddy/tradehook/journal"
	"github.com/rustyeddy/tradehook/market"
	"github.com/rustyeddy/tradehook/risk"
)

// ErrPositionAlreadyOpen rejects an open signal while any position is open,
// on any instrument. One position at a time, system-wide. Callers must not
// retry automatically.
var ErrPositionAlreadyOpen = errors.New("a position is already open")

// State is the engine's view of the position lifecycle. It exists for
// introspection and logging only; decisions always re-query the broker.
type State string

const (
	StateFlat    State = "flat"
	StateOpening State = "opening"
	StateOpen    State = "open"
	StateClosing State = "closing"
)

// PrecisionSource yields an instrument's price precision, normally a
// *market.PrecisionCache.
type PrecisionSource interface {
	Precision(ctx context.Context, instrument string, mode broker.Mode) (int, error)
}

// Alerter delivers human-facing notifications. Implementations never return
// errors; delivery failure must not affect the trade.
type Alerter interface {
	Send(ctx context.Context, message string)
}

// Engine enforces the single-open-position invariant and turns validated
// signals into broker orders. The mutex serializes the whole
// decision-and-submit sequence so two concurrent opens cannot both observe a
// flat account.
type Engine struct {
	gateway   broker.Gateway
	precision PrecisionSource
	ledger    journal.Journal
	alerter   Alerter
	log       *slog.Logger

	mu    sync.Mutex // held from position check through order submission
	state State
}

func NewEngine(gateway broker.Gateway, precision PrecisionSource, ledger journal.Journal, alerter Alerter) *Engine {
	return &Engine{
		gateway:   gateway,
		precision: precision,
		ledger:    ledger,
		alerter:   alerter,
		log:       slog.Default(),
		state:     StateFlat,
	}
}

// State returns the engine's last observed lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Outcome is what a handled signal produced: the resolved instrument, the
// signed unit count, the sizing metrics (nil for closes), and the broker's
// answer.
type Outcome struct {
	Signal     Signal
	Instrument string
	Mode       broker.Mode
	Units      int
	Sizing     *risk.Result
	Order      broker.OrderResult
}

// Handle validates a signal and executes it. Validation failures return a
// *ValidationError before any broker call is made.
func (e *Engine) Handle(ctx context.Context, sig Signal) (Outcome, error) {
	sig.Normalize()
	if err := sig.Validate(); err != nil {
		return Outcome{}, err
	}

	instrument, err := sig.Instrument()
	if err != nil {
		return Outcome{}, &ValidationError{Reason: err.Error()}
	}
	mode, err := sig.Mode()
	if err != nil {
		return Outcome{}, &ValidationError{Reason: err.Error()}
	}

	if sig.Action.IsOpen() {
		return e.open(ctx, sig, instrument, mode)
	}
	return e.close(ctx, sig, instrument, mode)
}

func (e *Engine) open(ctx context.Context, sig Signal, instrument string, mode broker.Mode) (Outcome, error) {
	out, err := e.openLocked(ctx, sig, instrument, mode)

	// Ledger and alert run outside the lock; neither may fail the trade.
	if out.Sizing != nil || err == nil {
		e.record(ctx, sig, out, err)
	}
	e.notify(ctx, sig, out, err)
	return out, err
}

func (e *Engine) openLocked(ctx context.Context, sig Signal, instrument string, mode broker.Mode) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	positions, err := e.gateway.GetOpenPositions(ctx, mode)
	if err != nil {
		return Outcome{}, err
	}
	if len(positions) > 0 {
		return Outcome{}, fmt.Errorf("%w: %s %s", ErrPositionAlreadyOpen,
			positions[0].Instrument, positions[0].Direction)
	}

	e.state = StateOpening

	out, err := e.submitOpen(ctx, sig, instrument, mode)
	if err != nil {
		// The submit may or may not have reached the broker; the next
		// decision re-queries open positions either way.
		e.state = StateFlat
		return out, err
	}
	e.state = StateOpen
	return out, nil
}

func (e *Engine) submitOpen(ctx context.Context, sig Signal, instrument string, mode broker.Mode) (Outcome, error) {
	acct, err := e.gateway.GetAccountState(ctx, mode)
	if err != nil {
		return Outcome{}, err
	}

	in := risk.Inputs{
		Instrument:      instrument,
		Price:           sig.Price,
		StopLossPrice:   sig.StopLossPrice,
		TakeProfitPrice: sig.TakeProfitPrice,
		RiskPercent:     sig.RiskPercent,
		Account:         acct,
	}

	// Balance conversion needs a live cross rate whenever the pair's quote
	// currency differs from the account currency. The rate is quoted
	// account→quote, e.g. GBP_USD for a GBP account trading EUR_USD.
	_, quote, err := market.SplitInstrument(instrument)
	if err != nil {
		return Outcome{}, err
	}
	if quote != acct.Currency {
		rate, err := e.gateway.GetMidRate(ctx, acct.Currency, quote, mode)
		if err != nil {
			return Outcome{}, err
		}
		in.QuoteRate = rate
	}

	sizing, err := risk.Compute(in)
	if err != nil {
		return Outcome{}, err
	}

	precision, err := e.precision.Precision(ctx, instrument, mode)
	if err != nil {
		return Outcome{}, err
	}

	// The sizing engine always returns positive units; the sign is applied
	// here, never inside the engine.
	units := sizing.Units
	if sig.Action == OpenShort {
		units = -units
	}

	out := Outcome{
		Signal:     sig,
		Instrument: instrument,
		Mode:       mode,
		Units:      units,
		Sizing:     &sizing,
	}

	order, err := e.gateway.SubmitMarketOrder(ctx, broker.MarketOrderRequest{
		Instrument:      instrument,
		Units:           units,
		StopLossPrice:   sig.StopLossPrice,
		TakeProfitPrice: sig.TakeProfitPrice,
		Precision:       precision,
		Mode:            mode,
	})
	if err != nil {
		return out, err
	}
	out.Order = order
	return out, nil
}

func (e *Engine) close(ctx context.Context, sig Signal, instrument string, mode broker.Mode) (Outcome, error) {
	out := Outcome{Signal: sig, Instrument: instrument, Mode: mode}

	// No pre-check: the broker rejects a close against a flat position and
	// that surfaces as an UpstreamError.
	e.mu.Lock()
	e.state = StateClosing
	order, err := e.gateway.ClosePosition(ctx, instrument, sig.Action.Direction(), mode)
	if err == nil {
		out.Order = order
		e.state = StateFlat
	} else {
		e.state = StateOpen
	}
	e.mu.Unlock()

	e.record(ctx, sig, out, err)
	e.notify(ctx, sig, out, err)
	return out, err
}

func (e *Engine) record(ctx context.Context, sig Signal, out Outcome, handleErr error) {
	_ = ctx

	rec := journal.TradeRecord{
		Time:            time.Now().UTC(),
		ID:              sig.ID,
		Action:          string(sig.Action),
		Instrument:      out.Instrument,
		Price:           sig.Price,
		StopLossPrice:   sig.StopLossPrice,
		TakeProfitPrice: sig.TakeProfitPrice,
		Units:           out.Units,
		Mode:            out.Mode,
		Status:          "success",
	}
	if out.Order.DryRun {
		rec.Status = "dry-run"
	}
	if handleErr != nil {
		rec.Status = "error: " + handleErr.Error()
	}
	if out.Sizing != nil {
		rec.AccountBalance = out.Sizing.AccountBalanceOriginal
		rec.Margin = out.Sizing.Margin
		rec.PipValue = out.Sizing.PipValue
		rec.TradeValue = out.Sizing.TradeValue
		rec.Reward = out.Sizing.RewardPct
		rec.Risk = out.Sizing.RiskPct
	}

	if err := e.ledger.RecordTrade(rec); err != nil {
		e.log.Error("record trade", "id", sig.ID, "error", err)
	}
}

func (e *Engine) notify(ctx context.Context, sig Signal, out Outcome, handleErr error) {
	if e.alerter == nil {
		return
	}
	if handleErr != nil {
		e.alerter.Send(ctx, fmt.Sprintf("❌ %s %s failed: %v", sig.Action, out.Instrument, handleErr))
		return
	}
	if sig.Action.IsOpen() {
		e.alerter.Send(ctx, fmt.Sprintf("✅ %s %s: %d units (%s)", sig.Action, out.Instrument, out.Units, out.Mode))
		return
	}
	e.alerter.Send(ctx, fmt.Sprintf("✅ %s %s (%s)", sig.Action, out.Instrument, out.Mode))
}
