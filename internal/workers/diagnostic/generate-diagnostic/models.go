package generatediagnostic

import "copro-diagnostic/internal/models"

type Input struct {
	Input       models.DiagnosticInput `json:"input"`
	RecordStats *bool                  `json:"recordStats,omitempty"`
}

type Output struct {
	DiagnosticID  string                    `json:"diagnosticId"`
	Result        *models.DiagnosticResult  `json:"result"`
	ProfileMatrix []models.ProfileMatrixRow `json:"profileMatrix"`
	StatsRecorded bool                      `json:"statsRecorded"`
}
