package params

import (
	"time"

	"copro-diagnostic/internal/models"
)

// DefaultVersion tags the built-in table.
const DefaultVersion = "2026.01"

// Default returns the built-in 2026 table. Each call returns a fresh copy.
func Default() *Table {
	return &Table{
		Version:    DefaultVersion,
		CostPerSqm: costPerSqmBySteps(150, 200),
		Subsidies: ProfileRules{
			VeryLow: bucketRules(3000, 16750, 13000),
			Low:     bucketRules(1500, 15250, 11500),
			Medium:  bucketRules(0, 13750, 10000),
			High:    bucketRules(0, 13750, 10000),
		},
		Bonuses: Bonuses{
			PassoireExit: 0.10,
			Fragile:      0.20,
		},
		Fees: Fees{
			SyndicRate:      0.03,
			InsuranceRate:   0.02,
			ContingencyRate: 0.05,
			AMOCostPerUnit:  600,
			VATRate:         0.055,
		},
		Collective: Collective{
			CEERate:              0.08,
			CEEMaxPerUnit:        5000,
			AMOAidRate:           0.50,
			AMOSmallCoproUnits:   20,
			AMOCeilingSmallCopro: 1000,
			AMOCeilingLargeCopro: 600,
			AMOMinAid:            3000,
		},
		Loan: Loan{
			AnnualRate:        0,
			DurationMonths:    240,
			MaxPerUnit:        50000,
			MaxPerUnitLowGain: 30000,
		},
		Energy: Energy{
			ConsumptionKWh: map[models.Rating]float64{
				models.RatingA: 50,
				models.RatingB: 90,
				models.RatingC: 150,
				models.RatingD: 210,
				models.RatingE: 280,
				models.RatingF: 350,
				models.RatingG: 450,
			},
			StandardMinGain:    0.35,
			PerformanceMinGain: 0.50,
			PassoireExitTarget: models.RatingD,
		},
		Policy: models.PolicyConservative,
		Weights: Weights{
			VeryLow: 0.20,
			Low:     0.25,
			Medium:  0.30,
			High:    0.25,
		},
		GreenValue: GreenValue{
			Standard:    0.08,
			Performance: 0.12,
		},
		Inaction: Inaction{
			HorizonYears:              3,
			ConstructionInflationRate: 0.02,
			GreenValueDrift:           0.015,
		},
		RentalBans: map[models.Rating]time.Time{
			models.RatingG: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
			models.RatingF: time.Date(2028, time.January, 1, 0, 0, 0, 0, time.UTC),
			models.RatingE: time.Date(2034, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

// costPerSqmBySteps prices every improving transition as base + perStep × steps.
func costPerSqmBySteps(base, perStep float64) map[models.Transition]float64 {
	out := make(map[models.Transition]float64)
	for _, from := range models.Ratings {
		for _, to := range models.Ratings {
			tr := models.Transition{From: from, To: to}
			if steps := tr.Steps(); steps > 0 {
				out[tr] = base + perStep*float64(steps)
			}
		}
	}
	return out
}

// bucketRules builds the standard three-bucket set for one profile: no aid
// under the standard gain, 30% then 45% with a 600 €/m² eligible basis cap.
func bucketRules(premium, performanceCeiling, standardCeiling float64) BucketRules {
	return BucketRules{
		None: &SubsidyRule{},
		Standard: &SubsidyRule{
			Rate:               0.30,
			CapPerSqm:          600,
			CeilingPerDwelling: standardCeiling,
			Premium:            premium,
		},
		Performance: &SubsidyRule{
			Rate:               0.45,
			CapPerSqm:          600,
			CeilingPerDwelling: performanceCeiling,
			Premium:            premium,
		},
	}
}
