package index

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aibubble/analytics/backend/internal/external/finnhub"
	"github.com/aibubble/analytics/backend/internal/external/multpl"
	"github.com/aibubble/analytics/backend/internal/external/serpapi"
	"github.com/aibubble/analytics/backend/pkg/config"
	"github.com/aibubble/analytics/backend/pkg/logger"
)

// QuoteSource provides live equity quotes for the concentration metrics.
type QuoteSource interface {
	GetBatchQuotes(ctx context.Context, symbols []string) ([]finnhub.Quote, error)
}

// TrendsSource provides search interest data
type TrendsSource interface {
	GetAIBubbleSearchInterest(ctx context.Context) (*serpapi.SearchInterest, error)
}

// CAPESource provides the Shiller P/E reading
type CAPESource interface {
	GetLatestCAPE(ctx context.Context) (*multpl.CAPE, error)
}

// Magnificent 7 market cap estimates in trillions, refreshed quarterly.
// Quotes move daily prices but the cap base anchors the divergence metric.
var mag7CapEstimates = map[string]float64{
	"AAPL": 3.0, "MSFT": 3.2, "GOOGL": 2.1, "AMZN": 2.0,
	"NVDA": 3.5, "META": 1.4, "TSLA": 1.1,
}

var mag7Symbols = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA"}

const (
	sp500TotalCapTrillions = 45.0
	mag7EarningsBillions   = 450.0
	sp500EarningsBillions  = 1800.0
)

// Curated readings used when a metric has no live source wired.
// Updated by hand from public filings and press coverage.
const (
	staticMag7Divergence   = 10.4  // cap share minus earnings share, pct points
	staticSP500TopTenShare = 30.2  // top-10 weight in the index, pct
	staticCAPE             = 38.5  // Shiller P/E
	staticVCThisQuarter    = 22.5  // USD billions into AI startups
	staticVCPriorYear      = 12.0
	staticSearchInterest   = 87.0  // Google Trends, 0-100
	staticAISpendThisYear  = 45.0  // hyperscaler AI capex, USD billions
	staticAISpendLastYear  = 25.0
	staticGPUThisYear      = 32.5  // data-center GPU revenue, USD billions
	staticGPULastYear      = 10.3
	staticCircularDeals    = 185.0 // vendor-financed AI deals, USD billions
	staticTotalDeals       = 250.0
	staticDebtToEquity     = 1.85  // tech sector aggregate
	staticFedConcernLevel  = 2.1   // 0 none to 2.5 explicit warnings
)

// Aggregator fetches all ten index metrics concurrently. Sources are
// optional: a nil source means the metric falls back to its curated
// static reading and never fails.
type Aggregator struct {
	quotes QuoteSource
	trends TrendsSource
	cape   CAPESource

	policy  config.FailurePolicy
	timeout time.Duration
	logger  *logger.Logger
}

// NewAggregator creates a metric aggregator
func NewAggregator(cfg config.MetricsConfig, quotes QuoteSource, trends TrendsSource, cape CAPESource, log *logger.Logger) *Aggregator {
	return &Aggregator{
		quotes:  quotes,
		trends:  trends,
		cape:    cape,
		policy:  cfg.FailurePolicy,
		timeout: cfg.FetchTimeout,
		logger:  log,
	}
}

type fetchResult struct {
	key    Key
	metric Metric
	err    error
}

// FetchAll gathers every metric concurrently and applies the configured
// failure policy. The returned snapshot always carries all ten keys
// unless the policy is strict and a fetch failed.
func (a *Aggregator) FetchAll(ctx context.Context) (*Snapshot, error) {
	fetchers := map[Key]func(context.Context) (Metric, error){
		KeyMag7Divergence:     a.fetchMag7Divergence,
		KeySP500Concentration: a.fetchSP500Concentration,
		KeyCAPERatio:          a.fetchCAPERatio,
		KeyVCFunding:          a.fetchVCFunding,
		KeySearchInterest:     a.fetchSearchInterest,
		KeyAISpending:         a.fetchAISpending,
		KeyGPUSpending:        a.fetchGPUSpending,
		KeyCircularFinancing:  a.fetchCircularFinancing,
		KeyDebtRatios:         a.fetchDebtRatios,
		KeyFedIndicator:       a.fetchFedIndicator,
	}

	results := make(chan fetchResult, len(fetchers))
	var wg sync.WaitGroup

	for key, fetch := range fetchers {
		wg.Add(1)
		go func(key Key, fetch func(context.Context) (Metric, error)) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			metric, err := fetch(fetchCtx)
			results <- fetchResult{key: key, metric: metric, err: err}
		}(key, fetch)
	}

	wg.Wait()
	close(results)

	snapshot := &Snapshot{
		Timestamp: time.Now().UTC(),
		Data:      make(map[Key]Metric, len(fetchers)),
	}

	for res := range results {
		if res.err == nil {
			snapshot.Data[res.key] = res.metric
			continue
		}

		a.logger.WithError(res.err).WithField("metric", string(res.key)).
			Warn("Metric fetch failed")

		switch a.policy {
		case config.PolicyStrict:
			return nil, fmt.Errorf("fetch %s: %w", res.key, res.err)
		case config.PolicyExclude:
			snapshot.Data[res.key] = Metric{
				Normalized:  0,
				Source:      "unavailable",
				LastUpdated: time.Now().UTC(),
				Error:       res.err.Error(),
				Excluded:    true,
			}
		default: // dilute
			snapshot.Data[res.key] = Metric{
				Normalized:  50,
				Source:      "fallback",
				LastUpdated: time.Now().UTC(),
				Error:       res.err.Error(),
			}
		}
	}

	return snapshot, nil
}

// CompanyStat is one Magnificent 7 constituent for the overview endpoint
type CompanyStat struct {
	Symbol           string  `json:"symbol"`
	MarketCapTrilln  float64 `json:"marketCapTrillions"`
	Price            float64 `json:"price,omitempty"`
	PercentChange    float64 `json:"percentChange,omitempty"`
	QuoteUnavailable bool    `json:"quoteUnavailable,omitempty"`
}

// Magnificent7 returns per-company stats, with live quotes when a
// quote source is wired and estimate-only rows otherwise.
func (a *Aggregator) Magnificent7(ctx context.Context) ([]CompanyStat, error) {
	stats := make([]CompanyStat, 0, len(mag7Symbols))

	if a.quotes == nil {
		for _, sym := range mag7Symbols {
			stats = append(stats, CompanyStat{
				Symbol:           sym,
				MarketCapTrilln:  mag7CapEstimates[sym],
				QuoteUnavailable: true,
			})
		}
		return stats, nil
	}

	quotes, err := a.quotes.GetBatchQuotes(ctx, mag7Symbols)
	if err != nil {
		return nil, err
	}

	bySymbol := make(map[string]finnhub.Quote, len(quotes))
	for _, q := range quotes {
		bySymbol[q.Symbol] = q
	}

	for _, sym := range mag7Symbols {
		stat := CompanyStat{
			Symbol:          sym,
			MarketCapTrilln: mag7CapEstimates[sym],
		}
		if q, ok := bySymbol[sym]; ok && q.Error == "" {
			stat.Price = q.CurrentPrice
			stat.PercentChange = q.PercentChange
			stat.MarketCapTrilln = round2(mag7CapEstimates[sym] * (1 + q.PercentChange/100))
		} else {
			stat.QuoteUnavailable = true
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

func (a *Aggregator) fetchMag7Divergence(ctx context.Context) (Metric, error) {
	if a.quotes == nil {
		return Metric{
			Raw:         floatPtr(staticMag7Divergence),
			Normalized:  normalize(KeyMag7Divergence, staticMag7Divergence),
			Unit:        "pct_points",
			Source:      "static",
			LastUpdated: time.Now().UTC(),
			Detail: map[string]float64{
				"capWeight":     44.2,
				"earningsShare": 33.8,
			},
		}, nil
	}

	quotes, err := a.quotes.GetBatchQuotes(ctx, mag7Symbols)
	if err != nil {
		return Metric{}, err
	}

	// Scale each estimated cap by the day's price move to approximate
	// the live Magnificent 7 weight.
	var mag7Cap float64
	for _, q := range quotes {
		base, ok := mag7CapEstimates[q.Symbol]
		if !ok || q.Error != "" {
			continue
		}
		mag7Cap += base * (1 + q.PercentChange/100)
	}
	if mag7Cap == 0 {
		return Metric{}, fmt.Errorf("no usable quotes for magnificent 7")
	}

	capWeight := mag7Cap / sp500TotalCapTrillions * 100
	earningsShare := mag7EarningsBillions / sp500EarningsBillions * 100
	divergence := capWeight - earningsShare

	return Metric{
		Raw:         floatPtr(round2(divergence)),
		Normalized:  normalize(KeyMag7Divergence, divergence),
		Unit:        "pct_points",
		Source:      "finnhub",
		LastUpdated: time.Now().UTC(),
		Detail: map[string]float64{
			"capWeight":     round2(capWeight),
			"earningsShare": round2(earningsShare),
		},
	}, nil
}

func (a *Aggregator) fetchSP500Concentration(ctx context.Context) (Metric, error) {
	return Metric{
		Raw:         floatPtr(staticSP500TopTenShare),
		Normalized:  normalize(KeySP500Concentration, staticSP500TopTenShare),
		Unit:        "pct",
		Source:      "static",
		LastUpdated: time.Now().UTC(),
	}, nil
}

func (a *Aggregator) fetchCAPERatio(ctx context.Context) (Metric, error) {
	if a.cape == nil {
		return Metric{
			Raw:         floatPtr(staticCAPE),
			Normalized:  normalize(KeyCAPERatio, staticCAPE),
			Unit:        "ratio",
			Source:      "static",
			LastUpdated: time.Now().UTC(),
		}, nil
	}

	reading, err := a.cape.GetLatestCAPE(ctx)
	if err != nil {
		return Metric{}, err
	}

	return Metric{
		Raw:         floatPtr(reading.Value),
		Normalized:  normalize(KeyCAPERatio, reading.Value),
		Unit:        "ratio",
		Source:      "multpl.com",
		LastUpdated: time.Now().UTC(),
	}, nil
}

func (a *Aggregator) fetchVCFunding(ctx context.Context) (Metric, error) {
	growth := (staticVCThisQuarter - staticVCPriorYear) / staticVCPriorYear * 100

	return Metric{
		Raw:         floatPtr(staticVCThisQuarter),
		Normalized:  normalize(KeyVCFunding, growth),
		Unit:        "usd_billions",
		Source:      "static",
		LastUpdated: time.Now().UTC(),
		Detail: map[string]float64{
			"priorYearQuarter": staticVCPriorYear,
			"growthPct":        round2(growth),
		},
	}, nil
}

func (a *Aggregator) fetchSearchInterest(ctx context.Context) (Metric, error) {
	if a.trends == nil {
		return Metric{
			Raw:         floatPtr(staticSearchInterest),
			Normalized:  normalize(KeySearchInterest, staticSearchInterest),
			Unit:        "index",
			Source:      "static",
			LastUpdated: time.Now().UTC(),
		}, nil
	}

	interest, err := a.trends.GetAIBubbleSearchInterest(ctx)
	if err != nil {
		return Metric{}, err
	}

	return Metric{
		Raw:         floatPtr(interest.Current),
		Normalized:  normalize(KeySearchInterest, interest.Current),
		Unit:        "index",
		Source:      "google-trends",
		LastUpdated: time.Now().UTC(),
		Detail: map[string]float64{
			"baseline":        interest.Baseline,
			"percentIncrease": round2(interest.PercentIncrease),
		},
	}, nil
}

func (a *Aggregator) fetchAISpending(ctx context.Context) (Metric, error) {
	growth := (staticAISpendThisYear - staticAISpendLastYear) / staticAISpendLastYear * 100

	return Metric{
		Raw:         floatPtr(staticAISpendThisYear),
		Normalized:  normalize(KeyAISpending, growth),
		Unit:        "usd_billions",
		Source:      "static",
		LastUpdated: time.Now().UTC(),
		Detail: map[string]float64{
			"lastYear":  staticAISpendLastYear,
			"growthPct": round2(growth),
		},
	}, nil
}

func (a *Aggregator) fetchGPUSpending(ctx context.Context) (Metric, error) {
	growth := (staticGPUThisYear - staticGPULastYear) / staticGPULastYear * 100

	return Metric{
		Raw:         floatPtr(staticGPUThisYear),
		Normalized:  normalize(KeyGPUSpending, growth),
		Unit:        "usd_billions",
		Source:      "static",
		LastUpdated: time.Now().UTC(),
		Detail: map[string]float64{
			"lastYear":  staticGPULastYear,
			"growthPct": round2(growth),
		},
	}, nil
}

func (a *Aggregator) fetchCircularFinancing(ctx context.Context) (Metric, error) {
	share := staticCircularDeals / staticTotalDeals * 100

	return Metric{
		Raw:         floatPtr(staticCircularDeals),
		Normalized:  normalize(KeyCircularFinancing, share),
		Unit:        "usd_billions",
		Source:      "static",
		LastUpdated: time.Now().UTC(),
		Detail: map[string]float64{
			"totalDeals": staticTotalDeals,
			"sharePct":   round2(share),
		},
	}, nil
}

func (a *Aggregator) fetchDebtRatios(ctx context.Context) (Metric, error) {
	return Metric{
		Raw:         floatPtr(staticDebtToEquity),
		Normalized:  normalize(KeyDebtRatios, staticDebtToEquity),
		Unit:        "ratio",
		Source:      "static",
		LastUpdated: time.Now().UTC(),
	}, nil
}

func (a *Aggregator) fetchFedIndicator(ctx context.Context) (Metric, error) {
	return Metric{
		Raw:         floatPtr(staticFedConcernLevel),
		Normalized:  normalize(KeyFedIndicator, staticFedConcernLevel),
		Unit:        "level",
		Source:      "static",
		LastUpdated: time.Now().UTC(),
	}, nil
}
