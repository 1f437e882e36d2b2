// Package oanda implements broker.Gateway against OANDA's v3 REST API.
package oanda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/tradehook/broker"
)

const (
	// PracticeURL is the URL for OANDA's practice/demo environment
	PracticeURL = "https://api-fxpractice.oanda.com"
	// LiveURL is the URL for OANDA's live trading environment
	LiveURL = "https://api-fxtrade.oanda.com"

	// DefaultTimeout bounds every REST call. A timeout surfaces as an
	// UpstreamError like any other transport failure.
	DefaultTimeout = 10 * time.Second
)

// Credentials hold the per-mode API key and account id.
type Credentials struct {
	APIKey    string
	AccountID string
}

// Client is an OANDA REST client serving both trading modes. When dryRun is
// set, order and close submissions are logged and echoed back instead of
// being sent to the network.
type Client struct {
	creds      map[broker.Mode]Credentials
	httpClient *http.Client
	dryRun     bool
	log        *slog.Logger

	// baseURLs lets tests point the client at an httptest server.
	baseURLs map[broker.Mode]string
}

// NewClient creates an OANDA client. A zero timeout falls back to
// DefaultTimeout.
func NewClient(creds map[broker.Mode]Credentials, timeout time.Duration, dryRun bool) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		creds:      creds,
		httpClient: &http.Client{Timeout: timeout},
		dryRun:     dryRun,
		log:        slog.Default(),
		baseURLs: map[broker.Mode]string{
			broker.Practice: PracticeURL,
			broker.Live:     LiveURL,
		},
	}
}

// SetBaseURL overrides the endpoint for a mode. Intended for tests.
func (c *Client) SetBaseURL(mode broker.Mode, base string) { c.baseURLs[mode] = base }

func (c *Client) credentials(mode broker.Mode) (Credentials, error) {
	cr, ok := c.creds[mode]
	if !ok || cr.APIKey == "" || cr.AccountID == "" {
		return Credentials{}, fmt.Errorf("no %s credentials configured", mode)
	}
	return cr, nil
}

// do executes a JSON request against the account-scoped API and decodes the
// response into out. Non-2xx statuses and transport failures come back as
// *broker.UpstreamError.
func (c *Client) do(ctx context.Context, op string, mode broker.Mode, method, path string, query url.Values, payload, out any) error {
	cr, err := c.credentials(mode)
	if err != nil {
		return err
	}

	u := c.baseURLs[mode] + strings.Replace(path, "{account}", cr.AccountID, 1)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: marshal payload: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cr.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &broker.UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return &broker.UpstreamError{
			Op:     op,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s", strings.TrimSpace(string(b))),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &broker.UpstreamError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

type accountResponse struct {
	Account struct {
		Balance    string `json:"balance"`
		Currency   string `json:"currency"`
		MarginRate string `json:"marginRate"`
	} `json:"account"`
}

// GetAccountState fetches the account's balance, currency, and leverage.
// Leverage is derived from the broker margin rate as round(1/marginRate).
func (c *Client) GetAccountState(ctx context.Context, mode broker.Mode) (broker.AccountState, error) {
	const op = "get account"

	var resp accountResponse
	if err := c.do(ctx, op, mode, http.MethodGet, "/v3/accounts/{account}", nil, nil, &resp); err != nil {
		return broker.AccountState{}, err
	}

	a := resp.Account
	if a.Balance == "" || a.Currency == "" || a.MarginRate == "" {
		return broker.AccountState{}, &broker.UpstreamError{
			Op:  op,
			Err: fmt.Errorf("account response missing balance, currency, or marginRate"),
		}
	}

	balance, err := strconv.ParseFloat(a.Balance, 64)
	if err != nil {
		return broker.AccountState{}, &broker.UpstreamError{Op: op, Err: fmt.Errorf("parse balance %q: %w", a.Balance, err)}
	}
	marginRate, err := strconv.ParseFloat(a.MarginRate, 64)
	if err != nil || marginRate <= 0 {
		return broker.AccountState{}, &broker.UpstreamError{Op: op, Err: fmt.Errorf("parse marginRate %q: %w", a.MarginRate, err)}
	}

	return broker.AccountState{
		Balance:  balance,
		Leverage: int(math.Round(1 / marginRate)),
		Currency: a.Currency,
	}, nil
}

type instrumentsResponse struct {
	Instruments []struct {
		Name             string `json:"name"`
		DisplayPrecision int    `json:"displayPrecision"`
	} `json:"instruments"`
}

// GetInstruments lists the tradable instruments with their price precision.
func (c *Client) GetInstruments(ctx context.Context, mode broker.Mode) ([]broker.Instrument, error) {
	var resp instrumentsResponse
	if err := c.do(ctx, "get instruments", mode, http.MethodGet, "/v3/accounts/{account}/instruments", nil, nil, &resp); err != nil {
		return nil, err
	}

	instruments := make([]broker.Instrument, 0, len(resp.Instruments))
	for _, in := range resp.Instruments {
		instruments = append(instruments, broker.Instrument{Name: in.Name, Precision: in.DisplayPrecision})
	}
	return instruments, nil
}

type openPositionsResponse struct {
	Positions []struct {
		Instrument string `json:"instrument"`
		Long       struct {
			Units string `json:"units"`
		} `json:"long"`
		Short struct {
			Units string `json:"units"`
		} `json:"short"`
	} `json:"positions"`
}

// GetOpenPositions lists every open position on the account, one entry per
// open side.
func (c *Client) GetOpenPositions(ctx context.Context, mode broker.Mode) ([]broker.Position, error) {
	const op = "get open positions"

	var resp openPositionsResponse
	if err := c.do(ctx, op, mode, http.MethodGet, "/v3/accounts/{account}/openPositions", nil, nil, &resp); err != nil {
		return nil, err
	}

	var positions []broker.Position
	for _, p := range resp.Positions {
		if units := parseUnits(p.Long.Units); units != 0 {
			positions = append(positions, broker.Position{Instrument: p.Instrument, Direction: broker.Long, Units: units})
		}
		if units := parseUnits(p.Short.Units); units != 0 {
			positions = append(positions, broker.Position{Instrument: p.Instrument, Direction: broker.Short, Units: units})
		}
	}
	return positions, nil
}

func parseUnits(s string) float64 {
	if s == "" {
		return 0
	}
	units, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return units
}

type pricingResponse struct {
	Prices []struct {
		Instrument string `json:"instrument"`
		Bids       []struct {
			Price string `json:"price"`
		} `json:"bids"`
		Asks []struct {
			Price string `json:"price"`
		} `json:"asks"`
	} `json:"prices"`
}

// GetMidRate queries pricing for BASE_QUOTE and returns the average of the
// best bid and best ask.
func (c *Client) GetMidRate(ctx context.Context, baseCcy, quoteCcy string, mode broker.Mode) (float64, error) {
	const op = "get mid rate"
	pair := baseCcy + "_" + quoteCcy

	query := url.Values{}
	query.Set("instruments", pair)

	var resp pricingResponse
	if err := c.do(ctx, op, mode, http.MethodGet, "/v3/accounts/{account}/pricing", query, nil, &resp); err != nil {
		return 0, err
	}

	for _, p := range resp.Prices {
		if p.Instrument != pair || len(p.Bids) == 0 || len(p.Asks) == 0 {
			continue
		}
		bid, err := strconv.ParseFloat(p.Bids[0].Price, 64)
		if err != nil {
			return 0, &broker.UpstreamError{Op: op, Err: fmt.Errorf("parse bid %q: %w", p.Bids[0].Price, err)}
		}
		ask, err := strconv.ParseFloat(p.Asks[0].Price, 64)
		if err != nil {
			return 0, &broker.UpstreamError{Op: op, Err: fmt.Errorf("parse ask %q: %w", p.Asks[0].Price, err)}
		}
		return (bid + ask) / 2, nil
	}

	return 0, &broker.UpstreamError{
		Op:  op,
		Err: fmt.Errorf("%w: %s", broker.ErrInstrumentNotFound, pair),
	}
}
