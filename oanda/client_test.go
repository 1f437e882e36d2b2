package oanda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/tradehook/broker"
)

func testCreds() map[broker.Mode]Credentials {
	return map[broker.Mode]Credentials{
		broker.Practice: {APIKey: "test-key", AccountID: "101-001-1234567-001"},
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(testCreds(), 5*time.Second, false)
	c.SetBaseURL(broker.Practice, srv.URL)
	return c, srv
}

func TestGetAccountState(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/accounts/101-001-1234567-001", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"account":{"balance":"100000.0844","currency":"GBP","marginRate":"0.0333333333333333"}}`))
	}))

	acct, err := c.GetAccountState(context.Background(), broker.Practice)
	assert.NoError(t, err)
	assert.InDelta(t, 100000.0844, acct.Balance, 1e-9)
	assert.Equal(t, "GBP", acct.Currency)
	// round(1/0.0333...) = 30
	assert.Equal(t, 30, acct.Leverage)
}

func TestGetAccountStateMissingFields(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"account":{"balance":"1000.00"}}`))
	}))

	_, err := c.GetAccountState(context.Background(), broker.Practice)
	assert.True(t, broker.IsUpstream(err))
}

func TestGetAccountStateNon2xx(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessage":"Insufficient authorization"}`, http.StatusUnauthorized)
	}))

	_, err := c.GetAccountState(context.Background(), broker.Practice)
	assert.True(t, broker.IsUpstream(err))
	var ue *broker.UpstreamError
	assert.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusUnauthorized, ue.Status)
}

func TestGetInstruments(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/accounts/101-001-1234567-001/instruments", r.URL.Path)
		w.Write([]byte(`{"instruments":[
			{"name":"EUR_USD","displayPrecision":5},
			{"name":"USD_JPY","displayPrecision":3}
		]}`))
	}))

	instruments, err := c.GetInstruments(context.Background(), broker.Practice)
	assert.NoError(t, err)
	assert.Equal(t, []broker.Instrument{
		{Name: "EUR_USD", Precision: 5},
		{Name: "USD_JPY", Precision: 3},
	}, instruments)
}

func TestGetOpenPositions(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"positions":[
			{"instrument":"EUR_USD","long":{"units":"100000"},"short":{"units":"0"}},
			{"instrument":"USD_JPY","long":{"units":"0"},"short":{"units":"-5000"}}
		]}`))
	}))

	positions, err := c.GetOpenPositions(context.Background(), broker.Practice)
	assert.NoError(t, err)
	assert.Equal(t, []broker.Position{
		{Instrument: "EUR_USD", Direction: broker.Long, Units: 100000},
		{Instrument: "USD_JPY", Direction: broker.Short, Units: -5000},
	}, positions)
}

func TestGetOpenPositionsEmpty(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"positions":[]}`))
	}))

	positions, err := c.GetOpenPositions(context.Background(), broker.Practice)
	assert.NoError(t, err)
	assert.Empty(t, positions)
}

func TestGetMidRate(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GBP_USD", r.URL.Query().Get("instruments"))
		w.Write([]byte(`{"prices":[{"instrument":"GBP_USD",
			"bids":[{"price":"1.26990"}],
			"asks":[{"price":"1.27010"}]}]}`))
	}))

	rate, err := c.GetMidRate(context.Background(), "GBP", "USD", broker.Practice)
	assert.NoError(t, err)
	assert.InDelta(t, 1.27, rate, 1e-9)
}

func TestGetMidRateInstrumentNotFound(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prices":[]}`))
	}))

	_, err := c.GetMidRate(context.Background(), "GBP", "XXX", broker.Practice)
	assert.ErrorIs(t, err, broker.ErrInstrumentNotFound)
	assert.True(t, broker.IsUpstream(err))
}

func TestSubmitMarketOrderPayload(t *testing.T) {
	t.Parallel()

	var got marketOrder
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/accounts/101-001-1234567-001/orders", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"orderFillTransaction":{"id":"42"}}`))
	}))

	res, err := c.SubmitMarketOrder(context.Background(), broker.MarketOrderRequest{
		Instrument:      "EUR_USD",
		Units:           -976923,
		StopLossPrice:   0.64772,
		TakeProfitPrice: 0.65162,
		Precision:       5,
		Mode:            broker.Practice,
	})
	assert.NoError(t, err)
	assert.False(t, res.DryRun)
	assert.Contains(t, res.Body, "orderFillTransaction")

	assert.Equal(t, "MARKET", got.Order.Type)
	assert.Equal(t, "DEFAULT", got.Order.PositionFill)
	assert.Equal(t, "EUR_USD", got.Order.Instrument)
	assert.Equal(t, "-976923", got.Order.Units)
	assert.Equal(t, "0.64772", got.Order.StopLoss.Price)
	assert.Equal(t, "0.65162", got.Order.TakeProfit.Price)
}

func TestSubmitMarketOrderOmitsAbsentTakeProfit(t *testing.T) {
	t.Parallel()

	var raw map[string]map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.Write([]byte(`{}`))
	}))

	_, err := c.SubmitMarketOrder(context.Background(), broker.MarketOrderRequest{
		Instrument:    "USD_JPY",
		Units:         30000,
		StopLossPrice: 149.503,
		Precision:     3,
		Mode:          broker.Practice,
	})
	assert.NoError(t, err)
	assert.Contains(t, raw["order"], "stopLossOnFill")
	assert.NotContains(t, raw["order"], "takeProfitOnFill")
}

func TestSubmitMarketOrderDryRunMakesNoNetworkCall(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(testCreds(), 5*time.Second, true)
	c.SetBaseURL(broker.Practice, srv.URL)

	res, err := c.SubmitMarketOrder(context.Background(), broker.MarketOrderRequest{
		Instrument:      "EUR_USD",
		Units:           1000,
		StopLossPrice:   1.09501,
		TakeProfitPrice: 1.11,
		Precision:       5,
		Mode:            broker.Practice,
	})
	assert.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Contains(t, res.Payload, `"units": "1000"`)
	assert.Contains(t, res.Payload, `"price": "1.09501"`)
	assert.Contains(t, res.Payload, `"price": "1.11000"`)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestClosePosition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		direction broker.Direction
		wantKey   string
	}{
		{"long", broker.Long, "longUnits"},
		{"short", broker.Short, "shortUnits"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got map[string]string
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPut, r.Method)
				assert.Equal(t, "/v3/accounts/101-001-1234567-001/positions/EUR_USD/close", r.URL.Path)
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.Write([]byte(`{"longOrderFillTransaction":{}}`))
			}))

			_, err := c.ClosePosition(context.Background(), "EUR_USD", tt.direction, broker.Practice)
			assert.NoError(t, err)
			assert.Equal(t, map[string]string{tt.wantKey: "ALL"}, got)
		})
	}
}

func TestMissingCredentials(t *testing.T) {
	t.Parallel()

	c := NewClient(testCreds(), time.Second, false)
	_, err := c.GetAccountState(context.Background(), broker.Live)
	assert.Error(t, err)
	assert.False(t, broker.IsUpstream(err))
}
