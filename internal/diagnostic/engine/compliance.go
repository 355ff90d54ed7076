package engine

import (
	"math"
	"time"

	"copro-diagnostic/internal/diagnostic/params"
	"copro-diagnostic/internal/models"
)

const (
	highUrgencyDays   = 365
	mediumUrgencyDays = 3 * 365
)

// compliance reports the rental ban of the current rating as of now.
func compliance(rating models.Rating, bans map[models.Rating]time.Time, now time.Time) models.ComplianceStatus {
	status := models.ComplianceStatus{Rating: rating, Urgency: models.UrgencyLow}

	ban, ok := bans[rating]
	if !ok {
		return status
	}
	status.ProhibitedFrom = &ban

	if !now.Before(ban) {
		status.IsProhibited = true
		status.Urgency = models.UrgencyCritical
		return status
	}

	status.DaysRemaining = int(math.Ceil(ban.Sub(now).Hours() / 24))
	switch {
	case status.DaysRemaining <= highUrgencyDays:
		status.Urgency = models.UrgencyHigh
	case status.DaysRemaining <= mediumUrgencyDays:
		status.Urgency = models.UrgencyMedium
	}
	return status
}

// valuation is nil when the market price is unknown.
func valuation(in models.DiagnosticInput, greenRate, remainingCost float64) *models.Valuation {
	if in.MarketPricePerSqm <= 0 {
		return nil
	}
	current := in.MarketPricePerSqm * in.SurfaceSqm
	gain := current * greenRate
	return &models.Valuation{
		CurrentValue:   round2(current),
		GreenValueRate: greenRate,
		GreenValueGain: round2(gain),
		ProjectedValue: round2(current + gain),
		NetGain:        round2(gain - remainingCost),
	}
}

// inactionCost projects the works cost over the horizon at the construction
// inflation rate. F and G buildings also lose the drift of their full green
// value, which needs a market price.
func inactionCost(in models.DiagnosticInput, works float64, table *params.Table) models.InactionCost {
	inc := table.Inaction
	years := float64(inc.HorizonYears)

	projected := works * math.Pow(1+inc.ConstructionInflationRate, years)
	out := models.InactionCost{
		HorizonYears:  inc.HorizonYears,
		CurrentCost:   round2(works),
		ProjectedCost: round2(projected),
		InflationCost: round2(projected - works),
	}

	if (in.CurrentRating == models.RatingF || in.CurrentRating == models.RatingG) && in.MarketPricePerSqm > 0 {
		greenValue := in.MarketPricePerSqm * in.SurfaceSqm * table.GreenValue.Performance
		out.ValueErosion = round2(greenValue * (math.Pow(1+inc.GreenValueDrift, years) - 1))
	}
	out.TotalCost = round2(out.InflationCost + out.ValueErosion)
	return out
}
