package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/aibubble/analytics/backend/pkg/config"
	"github.com/aibubble/analytics/backend/pkg/httputil"
	"github.com/aibubble/analytics/backend/pkg/logger"
)

// ErrInvalidQuote is returned when Finnhub responds without price data,
// which is how it signals an unknown symbol or an exhausted key.
var ErrInvalidQuote = errors.New("finnhub: invalid quote data received")

// Client handles communication with the Finnhub market data API.
// Free tier allows 60 calls/minute; the limiter paces requests a little
// under that so batch fetches never trip the server-side limit.
type Client struct {
	httpClient *httputil.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
	apiKey     string
	baseURL    string
}

// NewClient creates a new Finnhub client
func NewClient(cfg config.FinnhubConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(1100*time.Millisecond), 1),
		logger:     log,
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
	}
}

// Quote is a real-time stock quote
type Quote struct {
	Symbol        string  `json:"symbol"`
	CurrentPrice  float64 `json:"currentPrice"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percentChange"`
	HighPrice     float64 `json:"highPrice"`
	LowPrice      float64 `json:"lowPrice"`
	OpenPrice     float64 `json:"openPrice"`
	PreviousClose float64 `json:"previousClose"`
	Timestamp     int64   `json:"timestamp"`
	Error         string  `json:"error,omitempty"`
}

// quoteResponse is the raw Finnhub quote payload
type quoteResponse struct {
	C  float64 `json:"c"`  // current price
	D  float64 `json:"d"`  // change
	DP float64 `json:"dp"` // percent change
	H  float64 `json:"h"`
	L  float64 `json:"l"`
	O  float64 `json:"o"`
	PC float64 `json:"pc"`
	T  int64   `json:"t"`
}

// GetQuote fetches a real-time quote for one symbol
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("finnhub rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("token", c.apiKey)

	resp, err := c.httpClient.Get(ctx, fmt.Sprintf("%s/quote?%s", c.baseURL, params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("finnhub quote request for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("finnhub quote for %s: unexpected status %d", symbol, resp.StatusCode)
	}

	var raw quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("finnhub quote decode for %s: %w", symbol, err)
	}

	if raw.C == 0 {
		return nil, fmt.Errorf("%w (symbol %s)", ErrInvalidQuote, symbol)
	}

	return &Quote{
		Symbol:        symbol,
		CurrentPrice:  raw.C,
		Change:        raw.D,
		PercentChange: raw.DP,
		HighPrice:     raw.H,
		LowPrice:      raw.L,
		OpenPrice:     raw.O,
		PreviousClose: raw.PC,
		Timestamp:     raw.T,
	}, nil
}

// CompanyProfile holds company identity and market cap
type CompanyProfile struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	MarketCap float64 `json:"marketCap"` // millions USD
	Industry  string  `json:"industry"`
	Exchange  string  `json:"exchange"`
	Currency  string  `json:"currency"`
}

// GetCompanyProfile fetches company profile including market cap
func (c *Client) GetCompanyProfile(ctx context.Context, symbol string) (*CompanyProfile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("finnhub rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("token", c.apiKey)

	resp, err := c.httpClient.Get(ctx, fmt.Sprintf("%s/stock/profile2?%s", c.baseURL, params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("finnhub profile request for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("finnhub profile for %s: unexpected status %d", symbol, resp.StatusCode)
	}

	var raw struct {
		Name                 string  `json:"name"`
		MarketCapitalization float64 `json:"marketCapitalization"`
		FinnhubIndustry      string  `json:"finnhubIndustry"`
		Exchange             string  `json:"exchange"`
		Currency             string  `json:"currency"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("finnhub profile decode for %s: %w", symbol, err)
	}

	if raw.Name == "" && raw.MarketCapitalization == 0 {
		return nil, fmt.Errorf("finnhub: no company profile data for %s", symbol)
	}

	return &CompanyProfile{
		Symbol:    symbol,
		Name:      raw.Name,
		MarketCap: raw.MarketCapitalization,
		Industry:  raw.FinnhubIndustry,
		Exchange:  raw.Exchange,
		Currency:  raw.Currency,
	}, nil
}

// BasicFinancials holds valuation metrics for a symbol
type BasicFinancials struct {
	Symbol    string  `json:"symbol"`
	PERatio   float64 `json:"peRatio"`
	EPS       float64 `json:"eps"`
	MarketCap float64 `json:"marketCap"`
	Beta      float64 `json:"beta"`
}

// GetBasicFinancials fetches valuation metrics including P/E ratio
func (c *Client) GetBasicFinancials(ctx context.Context, symbol string) (*BasicFinancials, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("finnhub rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("metric", "all")
	params.Set("token", c.apiKey)

	resp, err := c.httpClient.Get(ctx, fmt.Sprintf("%s/stock/metric?%s", c.baseURL, params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("finnhub metrics request for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("finnhub metrics for %s: unexpected status %d", symbol, resp.StatusCode)
	}

	var raw struct {
		Metric struct {
			PEBasicExclExtraTTM    float64 `json:"peBasicExclExtraTTM"`
			PENormalizedAnnual     float64 `json:"peNormalizedAnnual"`
			EPSBasicExclExtraItems float64 `json:"epsBasicExclExtraItemsTTM"`
			MarketCapitalization   float64 `json:"marketCapitalization"`
			Beta                   float64 `json:"beta"`
		} `json:"metric"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("finnhub metrics decode for %s: %w", symbol, err)
	}

	pe := raw.Metric.PEBasicExclExtraTTM
	if pe == 0 {
		pe = raw.Metric.PENormalizedAnnual
	}

	return &BasicFinancials{
		Symbol:    symbol,
		PERatio:   pe,
		EPS:       raw.Metric.EPSBasicExclExtraItems,
		MarketCap: raw.Metric.MarketCapitalization,
		Beta:      raw.Metric.Beta,
	}, nil
}

// GetBatchQuotes fetches quotes for multiple symbols sequentially.
// The limiter paces the calls; a symbol that fails yields a fallback
// entry carrying the error so one bad symbol never aborts the batch.
func (c *Client) GetBatchQuotes(ctx context.Context, symbols []string) ([]Quote, error) {
	quotes := make([]Quote, 0, len(symbols))

	for _, symbol := range symbols {
		quote, err := c.GetQuote(ctx, symbol)
		if err != nil {
			if ctx.Err() != nil {
				return quotes, ctx.Err()
			}
			c.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"error":  err.Error(),
			}).Warn("Finnhub quote failed, recording fallback entry")
			quotes = append(quotes, Quote{Symbol: symbol, Error: err.Error()})
			continue
		}
		quotes = append(quotes, *quote)
	}

	return quotes, nil
}
