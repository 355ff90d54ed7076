// Package params holds the versioned parameter tables the diagnostic engine
// computes against: renovation costs, subsidy rules, fees, loan terms.
package params

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"copro-diagnostic/internal/common/errors"
	"copro-diagnostic/internal/models"
)

// SubsidyRule is the subsidy granted to one income profile for one transition bucket.
type SubsidyRule struct {
	Rate float64 `yaml:"rate" json:"rate"`
	// CapPerSqm bounds the eligible cost basis per m² of building surface.
	CapPerSqm float64 `yaml:"cap_per_sqm" json:"capPerSqm"`
	// CeilingPerDwelling is the absolute maximum per dwelling.
	CeilingPerDwelling float64 `yaml:"ceiling_per_dwelling" json:"ceilingPerDwelling"`
	// Premium is a flat individual bonus added when the rate is positive.
	Premium float64 `yaml:"premium" json:"premium"`
}

// BucketRules holds one optional rule per transition bucket. A nil rule means
// the table defines nothing for that bucket.
type BucketRules struct {
	None        *SubsidyRule `yaml:"none" json:"none"`
	Standard    *SubsidyRule `yaml:"standard" json:"standard"`
	Performance *SubsidyRule `yaml:"performance" json:"performance"`
}

func (b BucketRules) rule(bucket models.TransitionBucket) *SubsidyRule {
	switch bucket {
	case models.BucketNone:
		return b.None
	case models.BucketStandard:
		return b.Standard
	case models.BucketPerformance:
		return b.Performance
	}
	return nil
}

// ProfileRules has exactly one field per income profile.
type ProfileRules struct {
	VeryLow BucketRules `yaml:"very_low" json:"veryLow"`
	Low     BucketRules `yaml:"low" json:"low"`
	Medium  BucketRules `yaml:"medium" json:"medium"`
	High    BucketRules `yaml:"high" json:"high"`
}

func (p ProfileRules) forProfile(profile models.IncomeProfile) (BucketRules, bool) {
	switch profile {
	case models.ProfileVeryLow:
		return p.VeryLow, true
	case models.ProfileLow:
		return p.Low, true
	case models.ProfileMedium:
		return p.Medium, true
	case models.ProfileHigh:
		return p.High, true
	}
	return BucketRules{}, false
}

// Bonuses are rate add-ons applied on top of an eligible rule.
type Bonuses struct {
	PassoireExit float64 `yaml:"passoire_exit" json:"passoireExit"`
	Fragile      float64 `yaml:"fragile" json:"fragile"`
}

// Fees are expressed as fractions of the works cost, except AMO which is per unit.
type Fees struct {
	SyndicRate      float64 `yaml:"syndic_rate" json:"syndicRate"`
	InsuranceRate   float64 `yaml:"insurance_rate" json:"insuranceRate"`
	ContingencyRate float64 `yaml:"contingency_rate" json:"contingencyRate"`
	AMOCostPerUnit  float64 `yaml:"amo_cost_per_unit" json:"amoCostPerUnit"`
	VATRate         float64 `yaml:"vat_rate" json:"vatRate"`
}

// Collective describes aids paid to the condominium as a whole.
type Collective struct {
	CEERate              float64 `yaml:"cee_rate" json:"ceeRate"`
	CEEMaxPerUnit        float64 `yaml:"cee_max_per_unit" json:"ceeMaxPerUnit"`
	AMOAidRate           float64 `yaml:"amo_aid_rate" json:"amoAidRate"`
	AMOSmallCoproUnits   int     `yaml:"amo_small_copro_units" json:"amoSmallCoproUnits"`
	AMOCeilingSmallCopro float64 `yaml:"amo_ceiling_small_copro" json:"amoCeilingSmallCopro"`
	AMOCeilingLargeCopro float64 `yaml:"amo_ceiling_large_copro" json:"amoCeilingLargeCopro"`
	AMOMinAid            float64 `yaml:"amo_min_aid" json:"amoMinAid"`
}

// Loan describes the collective zero-rate renovation loan.
type Loan struct {
	AnnualRate        float64 `yaml:"annual_rate" json:"annualRate"`
	DurationMonths    int     `yaml:"duration_months" json:"durationMonths"`
	MaxPerUnit        float64 `yaml:"max_per_unit" json:"maxPerUnit"`
	MaxPerUnitLowGain float64 `yaml:"max_per_unit_low_gain" json:"maxPerUnitLowGain"`
}

// Energy holds the reference consumption per rating and the bucket thresholds.
type Energy struct {
	ConsumptionKWh     map[models.Rating]float64 `yaml:"-" json:"consumptionKWh"`
	StandardMinGain    float64                   `yaml:"standard_min_gain" json:"standardMinGain"`
	PerformanceMinGain float64                   `yaml:"performance_min_gain" json:"performanceMinGain"`
	PassoireExitTarget models.Rating             `yaml:"passoire_exit_target" json:"passoireExitTarget"`
}

// Weights is the assumed household distribution used by the weighted policy.
type Weights struct {
	VeryLow float64 `yaml:"very_low" json:"veryLow"`
	Low     float64 `yaml:"low" json:"low"`
	Medium  float64 `yaml:"medium" json:"medium"`
	High    float64 `yaml:"high" json:"high"`
}

// Of returns the weight of a profile.
func (w Weights) Of(profile models.IncomeProfile) float64 {
	switch profile {
	case models.ProfileVeryLow:
		return w.VeryLow
	case models.ProfileLow:
		return w.Low
	case models.ProfileMedium:
		return w.Medium
	case models.ProfileHigh:
		return w.High
	}
	return 0
}

func (w Weights) sum() float64 {
	return w.VeryLow + w.Low + w.Medium + w.High
}

// GreenValue is the market value uplift rate per transition bucket.
type GreenValue struct {
	Standard    float64 `yaml:"standard" json:"standard"`
	Performance float64 `yaml:"performance" json:"performance"`
}

func (g GreenValue) Rate(bucket models.TransitionBucket) float64 {
	switch bucket {
	case models.BucketStandard:
		return g.Standard
	case models.BucketPerformance:
		return g.Performance
	}
	return 0
}

// Inaction holds the assumptions behind the cost of postponing the works.
// GreenValueDrift is the yearly widening of the price gap between renovated
// buildings and F/G buildings.
type Inaction struct {
	HorizonYears              int     `yaml:"horizon_years" json:"horizonYears"`
	ConstructionInflationRate float64 `yaml:"construction_inflation_rate" json:"constructionInflationRate"`
	GreenValueDrift           float64 `yaml:"green_value_drift" json:"greenValueDrift"`
}

// Table is one immutable, versioned set of parameters.
type Table struct {
	Version    string
	CostPerSqm map[models.Transition]float64
	Subsidies  ProfileRules
	Bonuses    Bonuses
	Fees       Fees
	Collective Collective
	Loan       Loan
	Energy     Energy
	Policy     models.FinancingPolicy
	Weights    Weights
	GreenValue GreenValue
	Inaction   Inaction
	// RentalBans maps a rating to the date renting it out becomes illegal.
	RentalBans map[models.Rating]time.Time
}

// SubsidyRule returns the rule for a profile and bucket, or a configuration
// error when the table has none.
func (t *Table) SubsidyRule(profile models.IncomeProfile, bucket models.TransitionBucket) (SubsidyRule, error) {
	rules, ok := t.Subsidies.forProfile(profile)
	if !ok {
		return SubsidyRule{}, errors.NewConfigurationError(fmt.Sprintf("table %s: unknown income profile %q", t.Version, profile))
	}
	rule := rules.rule(bucket)
	if rule == nil {
		return SubsidyRule{}, errors.NewConfigurationError(fmt.Sprintf("table %s: no subsidy rule for profile %s, bucket %s", t.Version, profile, bucket))
	}
	return *rule, nil
}

// CostPerSqmFor returns the technical cost per m² of a transition.
func (t *Table) CostPerSqmFor(tr models.Transition) (float64, error) {
	if tr.Steps() == 0 {
		return 0, nil
	}
	cost, ok := t.CostPerSqm[tr]
	if !ok {
		return 0, errors.NewConfigurationError(fmt.Sprintf("table %s: no cost per m² for transition %s", t.Version, tr))
	}
	return cost, nil
}

// EnergyGain returns the relative consumption drop of a transition, rounded to 4 decimals.
func (t *Table) EnergyGain(tr models.Transition) (float64, error) {
	from, okFrom := t.Energy.ConsumptionKWh[tr.From]
	to, okTo := t.Energy.ConsumptionKWh[tr.To]
	if !okFrom || !okTo || from <= 0 {
		return 0, errors.NewConfigurationError(fmt.Sprintf("table %s: no reference consumption for transition %s", t.Version, tr))
	}
	gain := (from - to) / from
	return math.Round(gain*10000) / 10000, nil
}

// Bucket classifies a transition into the single bracket its whole energy gain
// falls in. Multi-step transitions never combine several brackets.
func (t *Table) Bucket(tr models.Transition) (models.TransitionBucket, error) {
	gain, err := t.EnergyGain(tr)
	if err != nil {
		return "", err
	}
	switch {
	case gain >= t.Energy.PerformanceMinGain:
		return models.BucketPerformance, nil
	case gain >= t.Energy.StandardMinGain:
		return models.BucketStandard, nil
	default:
		return models.BucketNone, nil
	}
}

// IsPassoireExit reports whether a transition takes an F or G building to the
// passoire exit target or better.
func (t *Table) IsPassoireExit(tr models.Transition) bool {
	if tr.From != models.RatingF && tr.From != models.RatingG {
		return false
	}
	return tr.To.BetterOrEqual(t.Energy.PassoireExitTarget)
}

// Validate lists every missing or inconsistent entry of the table.
func (t *Table) Validate() error {
	var problems []string

	if t.Version == "" {
		problems = append(problems, "version is empty")
	}

	for _, from := range models.Ratings {
		for _, to := range models.Ratings {
			tr := models.Transition{From: from, To: to}
			if tr.Steps() <= 0 {
				continue
			}
			if cost, ok := t.CostPerSqm[tr]; !ok || cost <= 0 {
				problems = append(problems, fmt.Sprintf("cost_per_sqm[%s] missing or not positive", tr))
			}
		}
	}

	for _, profile := range models.IncomeProfiles {
		for _, bucket := range []models.TransitionBucket{models.BucketNone, models.BucketStandard, models.BucketPerformance} {
			rule, err := t.SubsidyRule(profile, bucket)
			if err != nil {
				problems = append(problems, fmt.Sprintf("subsidies.%s.%s missing", profile, bucket))
				continue
			}
			if rule.Rate < 0 || rule.Rate > 1 || rule.CapPerSqm < 0 || rule.CeilingPerDwelling < 0 || rule.Premium < 0 {
				problems = append(problems, fmt.Sprintf("subsidies.%s.%s out of range", profile, bucket))
			}
			if rule.Rate > 0 && (rule.CapPerSqm == 0 || rule.CeilingPerDwelling == 0) {
				problems = append(problems, fmt.Sprintf("subsidies.%s.%s needs a per-m² cap and a dwelling ceiling", profile, bucket))
			}
		}
	}

	for _, r := range models.Ratings {
		if kwh, ok := t.Energy.ConsumptionKWh[r]; !ok || kwh <= 0 {
			problems = append(problems, fmt.Sprintf("energy.consumption_kwh[%s] missing or not positive", r))
		}
	}
	if t.Energy.StandardMinGain <= 0 || t.Energy.PerformanceMinGain < t.Energy.StandardMinGain {
		problems = append(problems, "energy gain thresholds must satisfy 0 < standard <= performance")
	}
	if !t.Energy.PassoireExitTarget.Valid() {
		problems = append(problems, "energy.passoire_exit_target is not a rating")
	}

	if t.Loan.DurationMonths <= 0 {
		problems = append(problems, "loan.duration_months must be positive")
	}
	if t.Loan.AnnualRate < 0 {
		problems = append(problems, "loan.annual_rate must not be negative")
	}

	if t.Inaction.HorizonYears <= 0 {
		problems = append(problems, "inaction.horizon_years must be positive")
	}
	if t.Inaction.ConstructionInflationRate < 0 || t.Inaction.GreenValueDrift < 0 {
		problems = append(problems, "inaction rates must not be negative")
	}

	switch t.Policy {
	case models.PolicyConservative:
	case models.PolicyWeighted:
		if math.Abs(t.Weights.sum()-1) > 1e-6 {
			problems = append(problems, fmt.Sprintf("weights sum to %.4f, want 1", t.Weights.sum()))
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown policy %q", t.Policy))
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return errors.NewConfigurationError(fmt.Sprintf("table %s: %s", t.Version, strings.Join(problems, "; ")))
}
