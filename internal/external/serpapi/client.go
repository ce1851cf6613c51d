package serpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/aibubble/analytics/backend/pkg/config"
	"github.com/aibubble/analytics/backend/pkg/httputil"
	"github.com/aibubble/analytics/backend/pkg/logger"
)

// Client handles communication with SerpAPI's Google Trends engine.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	apiKey     string
	baseURL    string
}

// NewClient creates a new SerpAPI client
func NewClient(cfg config.SerpAPIConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
	}
}

// TrendsOptions configures a Google Trends query
type TrendsOptions struct {
	DataType string // TIMESERIES (default) or RELATED_QUERIES
	Geo      string
	Date     string // e.g. "today 24-m"
}

// TimelinePoint is one point of the interest-over-time series
type TimelinePoint struct {
	Date  string `json:"date"`
	Value int    `json:"value"`
}

// trendsResponse is the subset of the SerpAPI payload we consume
type trendsResponse struct {
	Error            string `json:"error"`
	InterestOverTime struct {
		TimelineData []struct {
			Date   string `json:"date"`
			Values []struct {
				ExtractedValue int `json:"extracted_value"`
			} `json:"values"`
		} `json:"timeline_data"`
	} `json:"interest_over_time"`
}

// GetGoogleTrends fetches Google Trends data for a search query
func (c *Client) GetGoogleTrends(ctx context.Context, query string, opts TrendsOptions) (*trendsResponse, error) {
	params := url.Values{}
	params.Set("engine", "google_trends")
	params.Set("q", query)
	params.Set("tz", "360") // US timezone
	params.Set("api_key", c.apiKey)

	dataType := opts.DataType
	if dataType == "" {
		dataType = "TIMESERIES"
	}
	params.Set("data_type", dataType)

	if opts.Geo != "" {
		params.Set("geo", opts.Geo)
	}
	if opts.Date != "" {
		params.Set("date", opts.Date)
	}

	resp, err := c.httpClient.Get(ctx, fmt.Sprintf("%s?%s", c.baseURL, params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("serpapi trends request for %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi trends for %q: unexpected status %d", query, resp.StatusCode)
	}

	var raw trendsResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("serpapi trends decode for %q: %w", query, err)
	}

	if raw.Error != "" {
		return nil, fmt.Errorf("serpapi: %s", raw.Error)
	}

	return &raw, nil
}

// SearchInterest summarizes interest-over-time for the "AI bubble" query
type SearchInterest struct {
	Current         float64         `json:"currentInterest"`
	Baseline        float64         `json:"baselineInterest"`
	PercentIncrease float64         `json:"percentIncrease"`
	Timeline        []TimelinePoint `json:"timeline"`
	Query           string          `json:"query"`
	LastUpdated     time.Time       `json:"lastUpdated"`
}

// GetAIBubbleSearchInterest fetches two years of "AI bubble" search
// interest and compares the latest reading against the baseline.
func (c *Client) GetAIBubbleSearchInterest(ctx context.Context) (*SearchInterest, error) {
	const query = "AI bubble"

	raw, err := c.GetGoogleTrends(ctx, query, TrendsOptions{Date: "today 24-m"})
	if err != nil {
		return nil, err
	}

	timeline := raw.InterestOverTime.TimelineData
	if len(timeline) == 0 {
		return nil, fmt.Errorf("serpapi: no timeline data for %q", query)
	}

	pointValue := func(i int) float64 {
		if len(timeline[i].Values) == 0 {
			return 0
		}
		return float64(timeline[i].Values[0].ExtractedValue)
	}

	current := pointValue(len(timeline) - 1)
	baseline := pointValue(0)
	if baseline == 0 {
		baseline = 1
	}

	// Keep the last 12 data points for display
	start := len(timeline) - 12
	if start < 0 {
		start = 0
	}
	points := make([]TimelinePoint, 0, len(timeline)-start)
	for i := start; i < len(timeline); i++ {
		points = append(points, TimelinePoint{
			Date:  timeline[i].Date,
			Value: int(pointValue(i)),
		})
	}

	return &SearchInterest{
		Current:         current,
		Baseline:        baseline,
		PercentIncrease: (current - baseline) / baseline * 100,
		Timeline:        points,
		Query:           query,
		LastUpdated:     time.Now().UTC(),
	}, nil
}
