package buildprofilematrix

import "copro-diagnostic/internal/models"

type Input struct {
	Result *models.DiagnosticResult `json:"result"`
}

type Output struct {
	ProfileMatrix []models.ProfileMatrixRow `json:"profileMatrix"`
}
