package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aibubble/analytics/backend/internal/index"
	"github.com/aibubble/analytics/backend/pkg/database"
)

// ErrNotFound means no snapshot matches the lookup
var ErrNotFound = errors.New("snapshot not found")

// Daily is one persisted day of the index, keyed on its calendar date.
// Re-running the pipeline for the same date overwrites the row.
type Daily struct {
	ID             uuid.UUID                        `json:"id"`
	Date           time.Time                        `json:"date"`
	Score          float64                          `json:"score"`
	RiskLevel      index.RiskLevel                  `json:"riskLevel"`
	RiskColor      index.RiskColor                  `json:"riskColor"`
	TrendDirection string                           `json:"trendDirection"`
	TrendChange    float64                          `json:"trendChange"`
	Metrics        map[index.Key]index.Metric       `json:"metrics"`
	Breakdown      map[index.Key]index.Contribution `json:"breakdown"`
	CreatedAt      time.Time                        `json:"createdAt"`
}

// FromResult builds a Daily row from a calculation
func FromResult(date time.Time, result *index.Result, metrics map[index.Key]index.Metric) *Daily {
	return &Daily{
		ID:             uuid.New(),
		Date:           date,
		Score:          result.Score,
		RiskLevel:      result.RiskLevel,
		RiskColor:      result.RiskColor,
		TrendDirection: result.Trend.Direction,
		TrendChange:    result.Trend.Change,
		Metrics:        metrics,
		Breakdown:      result.Breakdown,
		CreatedAt:      time.Now().UTC(),
	}
}

// Repository persists daily snapshots and pipeline errors
type Repository struct {
	db *database.DB
}

// NewRepository creates a snapshot repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Upsert writes a day's snapshot, replacing any existing row for the date
func (r *Repository) Upsert(ctx context.Context, d *Daily) error {
	metricsJSON, err := json.Marshal(d.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	breakdownJSON, err := json.Marshal(d.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}

	query := `
		INSERT INTO daily_metrics_snapshots
			(id, snapshot_date, score, risk_level, risk_color,
			 trend_direction, trend_change, metrics, breakdown, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (snapshot_date) DO UPDATE SET
			score = EXCLUDED.score,
			risk_level = EXCLUDED.risk_level,
			risk_color = EXCLUDED.risk_color,
			trend_direction = EXCLUDED.trend_direction,
			trend_change = EXCLUDED.trend_change,
			metrics = EXCLUDED.metrics,
			breakdown = EXCLUDED.breakdown,
			created_at = EXCLUDED.created_at
	`

	_, err = r.db.Pool.Exec(ctx, query,
		d.ID, d.Date.Format("2006-01-02"), d.Score, d.RiskLevel, d.RiskColor,
		d.TrendDirection, d.TrendChange, metricsJSON, breakdownJSON, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// GetLatest returns the most recent snapshot
func (r *Repository) GetLatest(ctx context.Context) (*Daily, error) {
	query := selectColumns + `
		FROM daily_metrics_snapshots
		ORDER BY snapshot_date DESC
		LIMIT 1
	`
	return r.scanOne(r.db.Pool.QueryRow(ctx, query))
}

// GetByDate returns the snapshot for a calendar date
func (r *Repository) GetByDate(ctx context.Context, date time.Time) (*Daily, error) {
	query := selectColumns + `
		FROM daily_metrics_snapshots
		WHERE snapshot_date = $1
	`
	return r.scanOne(r.db.Pool.QueryRow(ctx, query, date.Format("2006-01-02")))
}

// GetPrevious returns the newest snapshot strictly before a date.
// The trend of a day's index compares against this row.
func (r *Repository) GetPrevious(ctx context.Context, date time.Time) (*Daily, error) {
	query := selectColumns + `
		FROM daily_metrics_snapshots
		WHERE snapshot_date < $1
		ORDER BY snapshot_date DESC
		LIMIT 1
	`
	return r.scanOne(r.db.Pool.QueryRow(ctx, query, date.Format("2006-01-02")))
}

// GetRange returns snapshots between two dates inclusive, oldest first
func (r *Repository) GetRange(ctx context.Context, start, end time.Time) ([]Daily, error) {
	query := selectColumns + `
		FROM daily_metrics_snapshots
		WHERE snapshot_date BETWEEN $1 AND $2
		ORDER BY snapshot_date
	`

	rows, err := r.db.Pool.Query(ctx, query, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("query snapshot range: %w", err)
	}
	defer rows.Close()

	var result []Daily
	for rows.Next() {
		d, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

// LogJobError records a pipeline failure for later inspection
func (r *Repository) LogJobError(ctx context.Context, jobName string, jobErr error) error {
	query := `
		INSERT INTO job_errors (id, job_name, error, occurred_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		uuid.New(), jobName, jobErr.Error(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert job error: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, snapshot_date, score, risk_level, risk_color,
	       trend_direction, trend_change, metrics, breakdown, created_at
`

func (r *Repository) scanOne(row pgx.Row) (*Daily, error) {
	d, err := scanRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (*Daily, error) {
	var d Daily
	var metricsJSON, breakdownJSON []byte

	err := row.Scan(
		&d.ID, &d.Date, &d.Score, &d.RiskLevel, &d.RiskColor,
		&d.TrendDirection, &d.TrendChange, &metricsJSON, &breakdownJSON, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(metricsJSON, &d.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}
	if err := json.Unmarshal(breakdownJSON, &d.Breakdown); err != nil {
		return nil, fmt.Errorf("unmarshal breakdown: %w", err)
	}
	return &d, nil
}
