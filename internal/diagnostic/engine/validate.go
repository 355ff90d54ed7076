package engine

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"copro-diagnostic/internal/common/errors"
	"copro-diagnostic/internal/models"
)

var postalCodePattern = regexp.MustCompile(`^\d{5}$`)

const minConstructionYear = 1000

// Validate checks the structural invariants of an input. The engine runs it on
// every call, whatever the caller validated before.
func Validate(in models.DiagnosticInput, now time.Time) error {
	if strings.TrimSpace(in.Address) == "" {
		return errors.NewValidationError("address", "is required")
	}
	if in.PostalCode != "" && !postalCodePattern.MatchString(in.PostalCode) {
		return errors.NewValidationError("postalCode", fmt.Sprintf("%q is not a 5-digit postal code", in.PostalCode))
	}
	if !finite(in.SurfaceSqm) || in.SurfaceSqm <= 0 {
		return errors.NewValidationError("surfaceSqm", "must be greater than zero")
	}
	if in.ConstructionYear < minConstructionYear || in.ConstructionYear > now.Year() {
		return errors.NewValidationError("constructionYear", fmt.Sprintf("must be between %d and %d", minConstructionYear, now.Year()))
	}
	if in.NumberOfUnits < 1 {
		return errors.NewValidationError("numberOfUnits", "must be at least 1")
	}
	if !in.CurrentRating.Valid() {
		return errors.NewValidationError("currentRating", fmt.Sprintf("%q is not a rating between A and G", in.CurrentRating))
	}
	if !in.TargetRating.Valid() {
		return errors.NewValidationError("targetRating", fmt.Sprintf("%q is not a rating between A and G", in.TargetRating))
	}
	if !in.TargetRating.BetterOrEqual(in.CurrentRating) {
		return errors.NewValidationError("targetRating", fmt.Sprintf("%s is worse than the current rating %s", in.TargetRating, in.CurrentRating))
	}
	if !finite(in.MarketPricePerSqm) || in.MarketPricePerSqm < 0 {
		return errors.NewValidationError("marketPricePerSqm", "must not be negative")
	}
	if in.InvestorRatio != nil {
		if r := *in.InvestorRatio; !finite(r) || r < 0 || r > 1 {
			return errors.NewValidationError("investorRatio", "must be between 0 and 1")
		}
	}
	if !finite(in.AnnualEnergyBill) || in.AnnualEnergyBill < 0 {
		return errors.NewValidationError("annualEnergyBill", "must not be negative")
	}
	if !finite(in.LocalAidAmount) || in.LocalAidAmount < 0 {
		return errors.NewValidationError("localAidAmount", "must not be negative")
	}
	if !finite(in.EstimatedWorksCost) || in.EstimatedWorksCost < 0 {
		return errors.NewValidationError("estimatedWorksCost", "must not be negative")
	}
	if in.EstimatedWorksCost > 0 && in.Transition().Steps() == 0 {
		return errors.NewValidationError("estimatedWorksCost", "requires a target rating better than the current one")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
