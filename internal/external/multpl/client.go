package multpl

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aibubble/analytics/backend/pkg/httputil"
	"github.com/aibubble/analytics/backend/pkg/logger"
)

const shillerPEURL = "https://www.multpl.com/shiller-pe/table/by-month"

// Client scrapes macro valuation series from multpl.com
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new multpl.com scraper
func NewClient(httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    shillerPEURL,
	}
}

// CAPE is one monthly Shiller P/E observation
type CAPE struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// GetLatestCAPE scrapes the most recent monthly Shiller P/E reading.
// multpl.com publishes the table newest-first, so the first data row wins.
func (c *Client) GetLatestCAPE(ctx context.Context) (*CAPE, error) {
	resp, err := c.httpClient.Get(ctx, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("multpl request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("multpl: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("multpl parse: %w", err)
	}

	var result *CAPE
	doc.Find("table#datatable tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return true // header row
		}

		dateText := strings.TrimSpace(cells.Eq(0).Text())
		valueText := strings.TrimSpace(cells.Eq(1).Text())

		// Estimated readings carry a trailing marker, e.g. "38.51 estimate"
		if idx := strings.IndexByte(valueText, ' '); idx > 0 {
			valueText = valueText[:idx]
		}

		value, err := strconv.ParseFloat(strings.ReplaceAll(valueText, ",", ""), 64)
		if err != nil {
			return true
		}

		date, err := time.Parse("Jan 2, 2006", dateText)
		if err != nil {
			date = time.Now().UTC()
		}

		result = &CAPE{Date: date, Value: value}
		return false
	})

	if result == nil {
		return nil, fmt.Errorf("multpl: no parseable rows in table")
	}
	return result, nil
}
