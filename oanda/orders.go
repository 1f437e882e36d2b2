package oanda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradehook/broker"
)

// marketOrder mirrors OANDA's order creation body.
type marketOrder struct {
	Order struct {
		Type         string     `json:"type"`
		PositionFill string     `json:"positionFill"`
		Instrument   string     `json:"instrument"`
		Units        string     `json:"units"`
		StopLoss     *fillPrice `json:"stopLossOnFill,omitempty"`
		TakeProfit   *fillPrice `json:"takeProfitOnFill,omitempty"`
	} `json:"order"`
}

type fillPrice struct {
	Price string `json:"price"`
}

// formatPrice renders a price with exactly precision decimal places, as the
// order endpoint requires.
func formatPrice(price float64, precision int) string {
	return decimal.NewFromFloat(price).StringFixed(int32(precision))
}

// SubmitMarketOrder places a market order with stop-loss (and, when present,
// take-profit) on-fill prices. In dry-run mode the constructed payload is
// logged and echoed back without touching the network.
func (c *Client) SubmitMarketOrder(ctx context.Context, req broker.MarketOrderRequest) (broker.OrderResult, error) {
	const op = "submit order"

	var payload marketOrder
	payload.Order.Type = "MARKET"
	payload.Order.PositionFill = "DEFAULT"
	payload.Order.Instrument = req.Instrument
	payload.Order.Units = fmt.Sprintf("%d", req.Units)
	payload.Order.StopLoss = &fillPrice{Price: formatPrice(req.StopLossPrice, req.Precision)}
	if req.TakeProfitPrice != 0 {
		payload.Order.TakeProfit = &fillPrice{Price: formatPrice(req.TakeProfitPrice, req.Precision)}
	}

	if c.dryRun {
		return c.dryRunResult(op, payload)
	}

	var resp json.RawMessage
	if err := c.do(ctx, op, req.Mode, http.MethodPost, "/v3/accounts/{account}/orders", nil, payload, &resp); err != nil {
		return broker.OrderResult{}, err
	}
	return broker.OrderResult{Body: string(resp)}, nil
}

// ClosePosition closes all units of the given direction for an instrument.
func (c *Client) ClosePosition(ctx context.Context, instrument string, direction broker.Direction, mode broker.Mode) (broker.OrderResult, error) {
	const op = "close position"

	payload := map[string]string{"longUnits": "ALL"}
	if direction == broker.Short {
		payload = map[string]string{"shortUnits": "ALL"}
	}

	if c.dryRun {
		return c.dryRunResult(op, payload)
	}

	path := "/v3/accounts/{account}/positions/" + instrument + "/close"
	var resp json.RawMessage
	if err := c.do(ctx, op, mode, http.MethodPut, path, nil, payload, &resp); err != nil {
		return broker.OrderResult{}, err
	}
	return broker.OrderResult{Body: string(resp)}, nil
}

func (c *Client) dryRunResult(op string, payload any) (broker.OrderResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return broker.OrderResult{}, fmt.Errorf("%s: marshal payload: %w", op, err)
	}
	c.log.Info("dry run: order logged, not sent", "op", op, "payload", string(data))
	return broker.OrderResult{
		Body:    `{"status":"dry-run","message":"order logged, not sent"}`,
		DryRun:  true,
		Payload: string(data),
	}, nil
}
