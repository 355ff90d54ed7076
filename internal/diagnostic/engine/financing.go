package engine

import (
	"math"

	"copro-diagnostic/internal/diagnostic/params"
	"copro-diagnostic/internal/models"
)

type costs struct {
	costPerSqm float64
	quoted     bool
	works      float64
	fees       float64
	totalHT    float64
	total      float64
}

// computeCosts prices the works from the quote when the input carries one,
// and from the table cost per m² otherwise.
func computeCosts(in models.DiagnosticInput, tableCostPerSqm float64, fees params.Fees) costs {
	c := costs{costPerSqm: tableCostPerSqm}
	c.works = in.SurfaceSqm * tableCostPerSqm
	if in.EstimatedWorksCost > 0 {
		c.quoted = true
		c.works = in.EstimatedWorksCost
		c.costPerSqm = round2(in.EstimatedWorksCost / in.SurfaceSqm)
	}
	if c.works > 0 {
		c.fees = c.works*(fees.SyndicRate+fees.InsuranceRate+fees.ContingencyRate) +
			fees.AMOCostPerUnit*float64(in.NumberOfUnits)
	}
	c.totalHT = c.works + c.fees
	c.total = c.totalHT * (1 + fees.VATRate)
	return c
}

// collectiveAids sums energy saving certificates, the project management aid
// and any local aid. Nothing is granted when there are no works.
func collectiveAids(in models.DiagnosticInput, works float64, table *params.Table) float64 {
	aids := in.LocalAidAmount
	if works <= 0 {
		return aids
	}
	units := float64(in.NumberOfUnits)
	c := table.Collective

	cee := math.Min(c.CEERate*works, c.CEEMaxPerUnit*units)

	amoCost := table.Fees.AMOCostPerUnit * units
	ceiling := c.AMOCeilingLargeCopro
	if in.NumberOfUnits <= c.AMOSmallCoproUnits {
		ceiling = c.AMOCeilingSmallCopro
	}
	amo := c.AMOAidRate * math.Min(amoCost, ceiling*units)
	amo = math.Min(math.Max(amo, c.AMOMinAid), amoCost)

	return aids + cee + amo
}

// headlineSubsidy is the building-wide profile subsidy under policy.
func headlineSubsidy(policy models.FinancingPolicy, subsidies map[models.IncomeProfile]models.SubsidyResult, in models.DiagnosticInput, weights params.Weights) float64 {
	units := float64(in.NumberOfUnits)

	if policy == models.PolicyWeighted {
		investors := 0.0
		if in.InvestorRatio != nil {
			investors = *in.InvestorRatio
		}
		var perUnit float64
		for _, p := range models.IncomeProfiles {
			w := (1 - investors) * weights.Of(p)
			if p == models.ProfileHigh {
				w += investors
			}
			perUnit += w * subsidies[p].Amount
		}
		return perUnit * units
	}

	least := math.Inf(1)
	for _, p := range models.IncomeProfiles {
		least = math.Min(least, subsidies[p].Amount)
	}
	return least * units
}

// loanCapPerUnit depends on whether the works reach the standard energy gain.
func loanCapPerUnit(loan params.Loan, gain, standardMinGain float64) float64 {
	if gain >= standardMinGain {
		return loan.MaxPerUnit
	}
	return loan.MaxPerUnitLowGain
}

// monthlyPayment is the constant annuity of a loan, principal/months at 0%.
func monthlyPayment(principal, annualRate float64, months int) float64 {
	if principal <= 0 || months <= 0 {
		return 0
	}
	if annualRate == 0 {
		return principal / float64(months)
	}
	r := annualRate / 12
	return principal * r / (1 - math.Pow(1+r, -float64(months)))
}

func buildPlan(in models.DiagnosticInput, c costs, collective, profileSubsidies, gain float64, policy models.FinancingPolicy, table *params.Table) models.FinancingPlan {
	total := round2(c.total)
	totalSubsidies := round2(profileSubsidies + collective)

	plan := models.FinancingPlan{
		WorksCost:        round2(c.works),
		WorksCostPerSqm:  c.costPerSqm,
		WorksCostQuoted:  c.quoted,
		FeesCost:         round2(c.fees),
		TotalCostHT:      round2(c.totalHT),
		TotalCost:        total,
		CollectiveAids:   round2(collective),
		ProfileSubsidies: round2(profileSubsidies),
		TotalSubsidies:   totalSubsidies,
		Policy:           policy,
		EnergyGain:       gain,
	}

	remaining := round2(total - totalSubsidies)
	if remaining < 0 {
		remaining = 0
		plan.Floored = true
	}
	plan.RemainingCost = remaining

	capTotal := loanCapPerUnit(table.Loan, gain, table.Energy.StandardMinGain) * float64(in.NumberOfUnits)
	if principal := math.Min(remaining, capTotal); principal > 0 {
		plan.Loan = &models.LoanTerms{
			Principal:      round2(principal),
			AnnualRate:     table.Loan.AnnualRate,
			DurationMonths: table.Loan.DurationMonths,
			MonthlyPayment: round2(monthlyPayment(principal, table.Loan.AnnualRate, table.Loan.DurationMonths)),
		}
		plan.CashDownPayment = round2(remaining - principal)
	}

	plan.AnnualEnergySavings = round2(in.AnnualEnergyBill * gain)
	if plan.AnnualEnergySavings > 0 {
		payback := round2(remaining / plan.AnnualEnergySavings)
		plan.PaybackYears = &payback
	}
	return plan
}

func buildProfileFinancing(in models.DiagnosticInput, c costs, collective, gain float64, subsidies map[models.IncomeProfile]models.SubsidyResult, table *params.Table) []models.ProfileFinancing {
	units := float64(in.NumberOfUnits)
	costPerUnit := c.total / units
	collectivePerUnit := collective / units
	loanCap := loanCapPerUnit(table.Loan, gain, table.Energy.StandardMinGain)

	out := make([]models.ProfileFinancing, 0, len(models.IncomeProfiles))
	for _, p := range models.IncomeProfiles {
		subsidy := subsidies[p].Amount + collectivePerUnit
		remaining := costPerUnit - subsidy
		floored := false
		if remaining < 0 {
			remaining = 0
			floored = true
		}
		out = append(out, models.ProfileFinancing{
			Profile:              p,
			CostPerUnit:          round2(costPerUnit),
			SubsidyPerUnit:       round2(subsidy),
			RemainingCostPerUnit: round2(remaining),
			Floored:              floored,
			MonthlyPayment:       round2(monthlyPayment(math.Min(remaining, loanCap), table.Loan.AnnualRate, table.Loan.DurationMonths)),
		})
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
