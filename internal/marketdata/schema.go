package marketdata

import (
	"context"
	"database/sql"

	"copro-diagnostic/internal/common/errors"
)

// Schema creates the market_stats table and the index behind the benchmark
// lookup. It is idempotent.
const Schema = `
	CREATE TABLE IF NOT EXISTS market_stats (
		id              UUID PRIMARY KEY,
		diagnostic_id   TEXT NOT NULL,
		postal_code     CHAR(5) NOT NULL,
		current_rating  CHAR(1) NOT NULL,
		target_rating   CHAR(1) NOT NULL,
		cost_per_sqm    NUMERIC(10, 2) NOT NULL CHECK (cost_per_sqm > 0),
		surface_sqm     NUMERIC(12, 2) NOT NULL,
		number_of_units INTEGER NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_market_stats_lookup
		ON market_stats (postal_code, current_rating, target_rating, created_at DESC);`

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return errors.NewQueryExecutionFailedError("market_stats schema", err)
	}
	return nil
}
