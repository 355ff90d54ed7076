// Package matrix projects a diagnostic into one comparison row per income profile.
package matrix

import "copro-diagnostic/internal/models"

// GenerateProfileMatrix returns one row per income profile in canonical order.
// Figures are copied from the result, looked up by profile; nothing is
// recomputed. A profile missing from the result yields a zero row.
func GenerateProfileMatrix(result *models.DiagnosticResult) []models.ProfileMatrixRow {
	if result == nil {
		return []models.ProfileMatrixRow{}
	}

	rows := make([]models.ProfileMatrixRow, 0, len(models.IncomeProfiles))
	for _, p := range models.IncomeProfiles {
		row := models.ProfileMatrixRow{
			Profile: p,
			Label:   p.Label(),
		}
		if s, ok := result.SubsidyFor(p); ok {
			row.SubsidyAmount = s.Amount
		}
		if f, ok := result.FinancingFor(p); ok {
			row.RemainingCost = f.RemainingCostPerUnit
			row.MonthlyPayment = f.MonthlyPayment
		}
		rows = append(rows, row)
	}
	return rows
}
