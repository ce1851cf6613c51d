package index

import (
	"context"
	"strconv"
	"strings"

	"github.com/aibubble/analytics/backend/internal/external/alphavantage"
	"github.com/aibubble/analytics/backend/internal/external/finnhub"
)

// GlobalQuoteSource is the subset of the Alpha Vantage client the
// fallback adapter needs.
type GlobalQuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (*alphavantage.Quote, error)
}

// AlphaVantageQuotes adapts Alpha Vantage global quotes to the batch
// QuoteSource contract. Used when Finnhub is not configured; the
// provider's limiter paces the per-symbol calls, so a full batch of
// seven takes over a minute on the free tier.
type AlphaVantageQuotes struct {
	client GlobalQuoteSource
}

// NewAlphaVantageQuotes wraps an Alpha Vantage client as a QuoteSource.
func NewAlphaVantageQuotes(client GlobalQuoteSource) *AlphaVantageQuotes {
	return &AlphaVantageQuotes{client: client}
}

var _ QuoteSource = (*AlphaVantageQuotes)(nil)

// GetBatchQuotes fetches symbols sequentially. A failed symbol keeps its
// slot with the error recorded, matching the Finnhub batch behavior.
func (a *AlphaVantageQuotes) GetBatchQuotes(ctx context.Context, symbols []string) ([]finnhub.Quote, error) {
	quotes := make([]finnhub.Quote, 0, len(symbols))
	for _, symbol := range symbols {
		q, err := a.client.GetQuote(ctx, symbol)
		if err != nil {
			if ctx.Err() != nil {
				return quotes, ctx.Err()
			}
			quotes = append(quotes, finnhub.Quote{Symbol: symbol, Error: err.Error()})
			continue
		}
		quotes = append(quotes, finnhub.Quote{
			Symbol:        symbol,
			CurrentPrice:  q.Price,
			Change:        q.Change,
			PercentChange: parsePercent(q.ChangePercent),
		})
	}
	return quotes, nil
}

// parsePercent converts Alpha Vantage's "2.3500%" form to a float.
func parsePercent(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	return v
}
