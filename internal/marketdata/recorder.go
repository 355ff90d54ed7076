package marketdata

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/google/uuid"

	"copro-diagnostic/internal/common/errors"
	"copro-diagnostic/internal/models"
)

const insertStat = `
	INSERT INTO market_stats (
		id, diagnostic_id, postal_code, current_rating, target_rating,
		cost_per_sqm, surface_sqm, number_of_units, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Recorder stores the quoted works cost per m² of computed diagnostics so that
// later diagnostics in the same area can be benchmarked against them. Costs
// estimated from the parameter table are never recorded. Only the location,
// the transition and the unit cost are kept; no address.
type Recorder struct {
	db  *sql.DB
	now func() time.Time
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

// Record inserts one row for result. It reports false without error when the
// result carries nothing to benchmark: no postal code or no quoted cost.
func (r *Recorder) Record(ctx context.Context, diagnosticID string, result *models.DiagnosticResult) (bool, error) {
	if result == nil || result.Input.PostalCode == "" {
		return false, nil
	}
	quote := result.Input.EstimatedWorksCost
	if quote <= 0 || result.Input.SurfaceSqm <= 0 {
		return false, nil
	}

	costPerSqm := math.Round(quote/result.Input.SurfaceSqm*100) / 100

	_, err := r.db.ExecContext(ctx, insertStat,
		uuid.New().String(),
		diagnosticID,
		result.Input.PostalCode,
		string(result.Input.CurrentRating),
		string(result.Input.TargetRating),
		costPerSqm,
		result.Input.SurfaceSqm,
		result.Input.NumberOfUnits,
		r.now().UTC(),
	)
	if err != nil {
		return false, errors.NewDatabaseInsertFailedError(err)
	}
	return true, nil
}
