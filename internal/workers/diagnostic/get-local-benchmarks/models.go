package getlocalbenchmarks

import "copro-diagnostic/internal/models"

type Input struct {
	PostalCode        string        `json:"postalCode"`
	CurrentRating     models.Rating `json:"currentRating"`
	TargetRating      models.Rating `json:"targetRating"`
	SubjectCostPerSqm float64       `json:"subjectCostPerSqm"`
}

// Output carries a null benchmark when local data is insufficient.
type Output struct {
	Benchmark *models.BenchmarkResult `json:"benchmark"`
	Available bool                    `json:"available"`
}
