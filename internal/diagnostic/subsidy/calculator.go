// Package subsidy computes the public renovation subsidy one dwelling receives
// for a given household income profile.
package subsidy

import (
	"fmt"
	"math"

	"copro-diagnostic/internal/common/errors"
	"copro-diagnostic/internal/diagnostic/params"
	"copro-diagnostic/internal/models"
)

// SimulationInputs is the renovation scope a subsidy is computed for.
type SimulationInputs struct {
	Transition    models.Transition
	SurfaceSqm    float64
	NumberOfUnits int
	// WorksCost is the building-wide works cost excluding fees and VAT.
	WorksCost float64
	IsFragile bool
}

// CalculateSubsidies returns the per-dwelling subsidy of profile for the scope.
//
// The eligible basis is the works cost bounded by the rule's per-m² cap, shared
// equally between dwellings. The rate (plus bonuses) applies to that basis, the
// flat premium is added, and the result is bounded by the per-dwelling ceiling.
// A missing rule is a configuration error, never a zero subsidy.
func CalculateSubsidies(in SimulationInputs, profile models.IncomeProfile, table *params.Table) (models.SubsidyResult, error) {
	if in.NumberOfUnits <= 0 {
		return models.SubsidyResult{}, errors.NewValidationError("numberOfUnits", "must be positive")
	}
	if in.SurfaceSqm <= 0 {
		return models.SubsidyResult{}, errors.NewValidationError("surfaceSqm", "must be positive")
	}
	if in.WorksCost < 0 || math.IsNaN(in.WorksCost) || math.IsInf(in.WorksCost, 0) {
		return models.SubsidyResult{}, errors.NewValidationError("worksCost", fmt.Sprintf("must be a finite non-negative amount, got %v", in.WorksCost))
	}

	bucket, err := table.Bucket(in.Transition)
	if err != nil {
		return models.SubsidyResult{}, err
	}
	rule, err := table.SubsidyRule(profile, bucket)
	if err != nil {
		return models.SubsidyResult{}, err
	}

	result := models.SubsidyResult{
		Profile: profile,
		Bucket:  bucket,
	}
	if rule.Rate <= 0 {
		return result, nil
	}

	rate := rule.Rate
	if table.IsPassoireExit(in.Transition) {
		rate += table.Bonuses.PassoireExit
	}
	if in.IsFragile {
		rate += table.Bonuses.Fragile
	}
	rate = math.Min(rate, 1)

	basis := in.WorksCost
	capped := false
	if statutory := rule.CapPerSqm * in.SurfaceSqm; basis > statutory {
		basis = statutory
		capped = true
	}
	basisPerDwelling := basis / float64(in.NumberOfUnits)

	amount := rate*basisPerDwelling + rule.Premium
	if amount > rule.CeilingPerDwelling {
		amount = rule.CeilingPerDwelling
		capped = true
	}

	result.Rate = round(rate, 4)
	result.EligibleBasis = round(basisPerDwelling, 2)
	result.Amount = round(amount, 2)
	result.Capped = capped
	return result, nil
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
