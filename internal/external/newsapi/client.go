package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aibubble/analytics/backend/pkg/config"
	"github.com/aibubble/analytics/backend/pkg/httputil"
	"github.com/aibubble/analytics/backend/pkg/logger"
)

// Client handles communication with NewsAPI
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	apiKey     string
	baseURL    string
}

// NewClient creates a new NewsAPI client
func NewClient(cfg config.NewsAPIConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
	}
}

// Article is a single news article
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"publishedAt"`
}

type articlesResponse struct {
	Status       string `json:"status"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
		PublishedAt time.Time `json:"publishedAt"`
	} `json:"articles"`
}

// GetAINews searches recent articles mentioning an AI bubble
func (c *Client) GetAINews(ctx context.Context, pageSize int) ([]Article, error) {
	params := url.Values{}
	params.Set("q", `"AI bubble" OR "artificial intelligence bubble" OR "AI spending"`)
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", fmt.Sprintf("%d", pageSize))
	params.Set("apiKey", c.apiKey)

	return c.fetchArticles(ctx, fmt.Sprintf("%s/everything?%s", c.baseURL, params.Encode()))
}

// GetTopTechHeadlines fetches top US technology headlines
func (c *Client) GetTopTechHeadlines(ctx context.Context, pageSize int) ([]Article, error) {
	params := url.Values{}
	params.Set("country", "us")
	params.Set("category", "technology")
	params.Set("pageSize", fmt.Sprintf("%d", pageSize))
	params.Set("apiKey", c.apiKey)

	return c.fetchArticles(ctx, fmt.Sprintf("%s/top-headlines?%s", c.baseURL, params.Encode()))
}

func (c *Client) fetchArticles(ctx context.Context, endpoint string) ([]Article, error) {
	resp, err := c.httpClient.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return nil, fmt.Errorf("newsapi: unexpected status %d", resp.StatusCode)
	}

	var raw articlesResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("newsapi decode: %w", err)
	}

	if raw.Status != "ok" {
		return nil, fmt.Errorf("newsapi: %s (%s)", raw.Message, raw.Code)
	}

	articles := make([]Article, 0, len(raw.Articles))
	for _, a := range raw.Articles {
		articles = append(articles, Article{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			Source:      a.Source.Name,
			PublishedAt: a.PublishedAt,
		})
	}
	return articles, nil
}

// Sentiment summarizes keyword-based sentiment of AI bubble coverage.
// Score ranges from -100 (uniformly negative) to 100 (uniformly positive).
type Sentiment struct {
	Score         float64 `json:"score"`
	ArticleCount  int     `json:"articleCount"`
	NegativeCount int     `json:"negativeCount"`
	PositiveCount int     `json:"positiveCount"`
}

var negativeKeywords = []string{
	"crash", "burst", "collapse", "bubble", "overvalued", "correction",
	"warning", "risk", "fear", "concern", "plunge", "selloff",
}

var positiveKeywords = []string{
	"growth", "opportunity", "innovation", "breakthrough", "rally",
	"surge", "boom", "optimism", "record", "milestone",
}

// GetAIBubbleSentiment fetches recent AI bubble coverage and scores it
// by counting negative and positive keywords per article.
func (c *Client) GetAIBubbleSentiment(ctx context.Context) (*Sentiment, error) {
	articles, err := c.GetAINews(ctx, 50)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return &Sentiment{}, nil
	}

	s := &Sentiment{ArticleCount: len(articles)}
	for _, a := range articles {
		text := strings.ToLower(a.Title + " " + a.Description)
		for _, kw := range negativeKeywords {
			if strings.Contains(text, kw) {
				s.NegativeCount++
			}
		}
		for _, kw := range positiveKeywords {
			if strings.Contains(text, kw) {
				s.PositiveCount++
			}
		}
	}

	total := s.NegativeCount + s.PositiveCount
	if total > 0 {
		s.Score = float64(s.PositiveCount-s.NegativeCount) / float64(total) * 100
	}
	return s, nil
}
