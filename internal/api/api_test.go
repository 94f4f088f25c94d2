package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tradehistory/config"
	"tradehistory/internal/history"
	"tradehistory/internal/market"
	"tradehistory/internal/notify"
	"tradehistory/pkg/kvstore"

	json "github.com/goccy/go-json"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testAddress = "9wFFyRfZBsuAha4YcuxcXLKwMxJR43S7fPfQLusDBzvT"

func newTestServer(t *testing.T, kv kvstore.Store) (*Server, *history.TradeStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry, err := market.NewRegistry([]config.MarketConfig{{
		Symbol:        "SOL/USDC",
		Kind:          "spot",
		ProgramID:     "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		Address:       testAddress,
		BaseDecimals:  9,
		QuoteDecimals: 6,
		PriceScale:    1000,
	}})
	require.NoError(t, err)

	cache, err := history.NewBucketCache(16)
	require.NoError(t, err)
	store := history.NewTradeStore(kv, cache, zap.NewNop())
	store.SetNowFunc(func() time.Time {
		return time.Date(2021, 9, 1, 12, 0, 0, 0, time.UTC)
	})

	notifier := notify.New(config.NotifyConfig{}, zap.NewNop())
	return NewServer(registry, store, notifier, zap.NewNop()), store
}

func perform(srv *Server, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestTVConfig(t *testing.T) {
	srv, _ := newTestServer(t, kvstore.NewMemoryStore())

	w := perform(srv, http.MethodGet, "/tv/config")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=360", w.Header().Get("Cache-Control"))

	var resp tvConfigResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"1", "3", "5", "15", "30", "60", "120", "240", "D"}, resp.SupportedResolutions)
	assert.True(t, resp.SupportsSearch)
	assert.False(t, resp.SupportsGroupRequest)
	assert.False(t, resp.SupportsMarks)
	assert.False(t, resp.SupportsTimescaleMarks)
}

func TestTVSymbolsConfigured(t *testing.T) {
	srv, _ := newTestServer(t, kvstore.NewMemoryStore())

	w := perform(srv, http.MethodGet, "/tv/symbols?symbol=SOL/USDC")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=360", w.Header().Get("Cache-Control"))

	var resp tvSymbolResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SOL/USDC", resp.Name)
	assert.Equal(t, "SOL/USDC", resp.Ticker)
	assert.Equal(t, int64(1000), resp.PriceScale)
	assert.Equal(t, 1, resp.MinMov)
	assert.Equal(t, "Etc/UTC", resp.Timezone)
	assert.Equal(t, "24x7", resp.Session)
}

func TestTVSymbolsUnknownFallsBack(t *testing.T) {
	srv, _ := newTestServer(t, kvstore.NewMemoryStore())

	// unknown symbols still answer 200 with the documented default pricescale
	w := perform(srv, http.MethodGet, "/tv/symbols?symbol=DOGE/USDC")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp tvSymbolResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "DOGE/USDC", resp.Name)
	assert.Equal(t, int64(market.DefaultPriceScale), resp.PriceScale)
}

func TestTVHistoryReturnsCandles(t *testing.T) {
	srv, store := newTestServer(t, kvstore.NewMemoryStore())

	bucketStart := time.Date(2021, 9, 1, 10, 30, 0, 0, time.UTC)
	err := store.StoreTrades(context.Background(), "SOL/USDC", []history.Trade{
		{Price: 100, Size: 1, Side: history.SideBuy, Ts: bucketStart.UnixMilli() + 1_000, Seq: 10},
		{Price: 101, Size: 2, Side: history.SideBuy, Ts: bucketStart.UnixMilli() + 20_000, Seq: 11},
		{Price: 99, Size: 1, Side: history.SideSell, Ts: bucketStart.UnixMilli() + 55_000, Seq: 12},
	})
	require.NoError(t, err)

	target := fmt.Sprintf("/tv/history?symbol=SOL/USDC&resolution=1&from=%d&to=%d",
		bucketStart.Unix(), bucketStart.Unix())
	w := perform(srv, http.MethodGet, target)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=1", w.Header().Get("Cache-Control"))

	var resp tvHistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.S)
	require.Len(t, resp.T, 1)
	assert.Equal(t, bucketStart.Unix(), resp.T[0])
	assert.Equal(t, []float64{100}, resp.O)
	assert.Equal(t, []float64{101}, resp.H)
	assert.Equal(t, []float64{99}, resp.L)
	assert.Equal(t, []float64{99}, resp.C)
	assert.Equal(t, []float64{4}, resp.V)
}

func TestTVHistoryEmptySeries(t *testing.T) {
	srv, _ := newTestServer(t, kvstore.NewMemoryStore())

	from := time.Date(2021, 9, 1, 10, 0, 0, 0, time.UTC).Unix()
	target := fmt.Sprintf("/tv/history?symbol=SOL/USDC&resolution=1&from=%d&to=%d", from, from+3600)
	w := perform(srv, http.MethodGet, target)
	assert.Equal(t, http.StatusOK, w.Code)

	// the series arrays must be empty arrays, never null
	assert.Contains(t, w.Body.String(), `"t":[]`)
	assert.Contains(t, w.Body.String(), `"o":[]`)

	var resp tvHistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.S)
	assert.Empty(t, resp.T)
}

func TestTVHistoryInvalidRequest(t *testing.T) {
	srv, _ := newTestServer(t, kvstore.NewMemoryStore())

	cases := []struct {
		name   string
		target string
		want   tvHistoryError
	}{
		{
			name:   "unknown symbol",
			target: "/tv/history?symbol=DOGE/USDC&resolution=60&from=1600000000&to=1600003600",
			want:   tvHistoryError{S: "error", ValidSymbol: false, ValidResolution: true, ValidFrom: true},
		},
		{
			name:   "unsupported resolution",
			target: "/tv/history?symbol=SOL/USDC&resolution=7&from=1600000000&to=1600003600",
			want:   tvHistoryError{S: "error", ValidSymbol: true, ValidResolution: false, ValidFrom: true},
		},
		{
			name:   "non-numeric range",
			target: "/tv/history?symbol=SOL/USDC&resolution=60&from=abc&to=1600003600",
			want:   tvHistoryError{S: "error", ValidSymbol: true, ValidResolution: true, ValidFrom: false},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := perform(srv, http.MethodGet, tc.target)
			assert.Equal(t, http.StatusNotFound, w.Code)

			var resp tvHistoryError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.want, resp)
		})
	}
}

// failingStore refuses all reads so the handler's downstream-error path runs.
type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("store unavailable")
}
func (failingStore) Set(ctx context.Context, key string, value []byte) error {
	return errors.New("store unavailable")
}
func (failingStore) Delete(ctx context.Context, key string) error {
	return errors.New("store unavailable")
}
func (failingStore) Close() error { return nil }

func TestTVHistoryStoreFailure(t *testing.T) {
	srv, _ := newTestServer(t, failingStore{})

	w := perform(srv, http.MethodGet, "/tv/history?symbol=SOL/USDC&resolution=60&from=1600000000&to=1600003600")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"s":"error"}`, w.Body.String())
}

func TestTradesByAddress(t *testing.T) {
	srv, store := newTestServer(t, kvstore.NewMemoryStore())

	ts := time.Date(2021, 9, 1, 11, 0, 0, 0, time.UTC).UnixMilli()
	err := store.StoreTrades(context.Background(), "SOL/USDC", []history.Trade{
		{Price: 150.5, Size: 2, Side: history.SideBuy, Ts: ts, Seq: 1},
		{Price: 151, Size: 1, Side: history.SideSell, Ts: ts + 1000, Seq: 2},
	})
	require.NoError(t, err)

	w := perform(srv, http.MethodGet, "/trades/address/"+testAddress)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=5", w.Header().Get("Cache-Control"))

	var resp tradesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 2)

	newest := resp.Data[0]
	assert.Equal(t, "SOL/USDC", newest.Market)
	assert.Equal(t, testAddress, newest.MarketAddress)
	assert.Equal(t, 151.0, newest.Price)
	assert.Equal(t, history.SideSell, newest.Side)
	assert.Equal(t, ts+1000, newest.Time)
}

func TestTradesByAddressUnknown(t *testing.T) {
	srv, _ := newTestServer(t, kvstore.NewMemoryStore())

	w := perform(srv, http.MethodGet, "/trades/address/UnknownPk11111111111111111111111111111111111")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"s":"error","validPk":false}`, w.Body.String())
}

func TestRequestIDAndCORSHeaders(t *testing.T) {
	srv, _ := newTestServer(t, kvstore.NewMemoryStore())

	w := perform(srv, http.MethodGet, "/tv/config")
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
