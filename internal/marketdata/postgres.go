// Package marketdata reads and writes the observed renovation costs behind
// local benchmarks, from Postgres or Elasticsearch with an optional Redis cache.
package marketdata

import (
	"context"
	"database/sql"
	"time"

	"copro-diagnostic/internal/common/errors"
	"copro-diagnostic/internal/diagnostic/benchmark"
	"copro-diagnostic/internal/models"
)

const selectRecentStats = `
	SELECT cost_per_sqm, created_at
	FROM market_stats
	WHERE postal_code = $1
	  AND current_rating = $2
	  AND target_rating = $3
	  AND cost_per_sqm > 0
	  AND created_at >= $4
	ORDER BY created_at DESC`

// PostgresSource reads the market_stats table.
type PostgresSource struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db, now: time.Now}
}

func (s *PostgresSource) FetchRecords(ctx context.Context, postalCode string, current, target models.Rating) ([]models.MarketRecord, error) {
	since := s.now().UTC().AddDate(0, -benchmark.WindowMonths, 0)

	rows, err := s.db.QueryContext(ctx, selectRecentStats, postalCode, string(current), string(target), since)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewQueryTimeoutError("market_stats")
		}
		return nil, errors.NewQueryExecutionFailedError("market_stats", err)
	}
	defer rows.Close()

	var records []models.MarketRecord
	for rows.Next() {
		r := models.MarketRecord{
			PostalCode:    postalCode,
			CurrentRating: current,
			TargetRating:  target,
		}
		if err := rows.Scan(&r.CostPerSqm, &r.CreatedAt); err != nil {
			return nil, errors.NewQueryExecutionFailedError("market_stats", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("market_stats", err)
	}
	return records, nil
}
