package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibubble/analytics/backend/pkg/config"
	"github.com/aibubble/analytics/backend/pkg/httputil"
	"github.com/aibubble/analytics/backend/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.FinnhubConfig{APIKey: "test-key", BaseURL: server.URL}
	client := NewClient(cfg, httputil.New(logger.NewNop()).DisableRetry(), logger.NewNop())
	return client, server
}

func TestGetQuote(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "NVDA", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("token"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"c":140.5,"d":3.4,"dp":2.48,"h":142.0,"l":137.2,"o":138.0,"pc":137.1,"t":1756555200}`))
	})

	quote, err := client.GetQuote(context.Background(), "NVDA")
	require.NoError(t, err)

	assert.Equal(t, "NVDA", quote.Symbol)
	assert.InDelta(t, 140.5, quote.CurrentPrice, 0.001)
	assert.InDelta(t, 2.48, quote.PercentChange, 0.001)
	assert.InDelta(t, 137.1, quote.PreviousClose, 0.001)
}

func TestGetQuoteInvalidSymbol(t *testing.T) {
	// Finnhub answers unknown symbols with all-zero quotes
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"c":0,"d":0,"dp":0,"h":0,"l":0,"o":0,"pc":0,"t":0}`))
	})

	_, err := client.GetQuote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrInvalidQuote)
}

func TestGetQuoteServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.GetQuote(context.Background(), "NVDA")
	assert.Error(t, err)
}

func TestGetBatchQuotesPartialFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "BAD" {
			w.Write([]byte(`{"c":0}`))
			return
		}
		w.Write([]byte(`{"c":100.0,"d":1.0,"dp":1.0,"h":101,"l":99,"o":99.5,"pc":99,"t":1}`))
	})

	quotes, err := client.GetBatchQuotes(context.Background(), []string{"AAPL", "BAD"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	assert.Empty(t, quotes[0].Error)
	assert.InDelta(t, 100.0, quotes[0].CurrentPrice, 0.001)

	// The failed symbol keeps its slot with the error recorded
	assert.Equal(t, "BAD", quotes[1].Symbol)
	assert.NotEmpty(t, quotes[1].Error)
	assert.Zero(t, quotes[1].CurrentPrice)
}
