package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/aibubble/analytics/backend/pkg/config"
	"github.com/aibubble/analytics/backend/pkg/httputil"
	"github.com/aibubble/analytics/backend/pkg/logger"
)

// ErrRateLimited is returned when Alpha Vantage answers with its "Note"
// payload, which it uses instead of a 429 status.
var ErrRateLimited = errors.New("alphavantage: API rate limit reached")

// Client handles communication with the Alpha Vantage API.
// Free tier allows 5 requests/minute and 25/day, so the limiter is
// deliberately slow; callers should treat this as a supplementary source.
type Client struct {
	httpClient *httputil.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
	apiKey     string
	baseURL    string
}

// NewClient creates a new Alpha Vantage client
func NewClient(cfg config.AlphaVantageConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(12*time.Second), 1),
		logger:     log,
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
	}
}

// CompanyOverview holds fundamentals for a symbol
type CompanyOverview struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	MarketCap int64   `json:"marketCap"`
	PERatio   float64 `json:"peRatio"`
	EPS       float64 `json:"eps"`
}

// GetCompanyOverview fetches company fundamentals including market cap
func (c *Client) GetCompanyOverview(ctx context.Context, symbol string) (*CompanyOverview, error) {
	body, err := c.query(ctx, url.Values{
		"function": {"OVERVIEW"},
		"symbol":   {symbol},
	})
	if err != nil {
		return nil, err
	}

	var raw struct {
		Symbol               string `json:"Symbol"`
		Name                 string `json:"Name"`
		MarketCapitalization string `json:"MarketCapitalization"`
		PERatio              string `json:"PERatio"`
		EPS                  string `json:"EPS"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("alphavantage overview decode for %s: %w", symbol, err)
	}

	if raw.Symbol == "" {
		return nil, fmt.Errorf("alphavantage: no overview data for %s", symbol)
	}

	marketCap, _ := strconv.ParseInt(raw.MarketCapitalization, 10, 64)
	peRatio, _ := strconv.ParseFloat(raw.PERatio, 64)
	eps, _ := strconv.ParseFloat(raw.EPS, 64)

	return &CompanyOverview{
		Symbol:    raw.Symbol,
		Name:      raw.Name,
		MarketCap: marketCap,
		PERatio:   peRatio,
		EPS:       eps,
	}, nil
}

// Quote is a delayed stock quote
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent string  `json:"changePercent"`
	Volume        int64   `json:"volume"`
}

// GetQuote fetches the global quote for a symbol
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	body, err := c.query(ctx, url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {symbol},
	})
	if err != nil {
		return nil, err
	}

	var raw struct {
		GlobalQuote struct {
			Symbol        string `json:"01. symbol"`
			Price         string `json:"05. price"`
			Volume        string `json:"06. volume"`
			Change        string `json:"09. change"`
			ChangePercent string `json:"10. change percent"`
		} `json:"Global Quote"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("alphavantage quote decode for %s: %w", symbol, err)
	}

	if raw.GlobalQuote.Price == "" {
		return nil, fmt.Errorf("alphavantage: invalid quote data for %s", symbol)
	}

	price, _ := strconv.ParseFloat(raw.GlobalQuote.Price, 64)
	change, _ := strconv.ParseFloat(raw.GlobalQuote.Change, 64)
	volume, _ := strconv.ParseInt(raw.GlobalQuote.Volume, 10, 64)

	return &Quote{
		Symbol:        raw.GlobalQuote.Symbol,
		Price:         price,
		Change:        change,
		ChangePercent: raw.GlobalQuote.ChangePercent,
		Volume:        volume,
	}, nil
}

// query executes one paced API call and surfaces provider-level errors
// hidden inside otherwise successful responses.
func (c *Client) query(ctx context.Context, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("alphavantage rate limit wait: %w", err)
	}

	params.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Get(ctx, fmt.Sprintf("%s?%s", c.baseURL, params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("alphavantage request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alphavantage: unexpected status %d", resp.StatusCode)
	}

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("alphavantage read body: %w", err)
	}

	// Rate limiting and errors come back inside a 200 response
	var envelope struct {
		Note         string `json:"Note"`
		ErrorMessage string `json:"Error Message"`
	}
	if err := json.Unmarshal(buf, &envelope); err == nil {
		if envelope.Note != "" {
			return nil, ErrRateLimited
		}
		if envelope.ErrorMessage != "" {
			return nil, fmt.Errorf("alphavantage: %s", envelope.ErrorMessage)
		}
	}

	return buf, nil
}
