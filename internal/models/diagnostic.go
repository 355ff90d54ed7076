package models

import (
	"fmt"
	"strings"
	"time"
)

// Rating is an energy performance rating, A (best) to G (worst).
type Rating string

const (
	RatingA Rating = "A"
	RatingB Rating = "B"
	RatingC Rating = "C"
	RatingD Rating = "D"
	RatingE Rating = "E"
	RatingF Rating = "F"
	RatingG Rating = "G"
)

// Ratings lists every rating from best to worst.
var Ratings = []Rating{RatingA, RatingB, RatingC, RatingD, RatingE, RatingF, RatingG}

// Rank returns 1 for A through 7 for G, and 0 for an unknown rating.
func (r Rating) Rank() int {
	for i, candidate := range Ratings {
		if candidate == r {
			return i + 1
		}
	}
	return 0
}

func (r Rating) Valid() bool {
	return r.Rank() > 0
}

// BetterOrEqual reports whether r is the same as or better than other.
func (r Rating) BetterOrEqual(other Rating) bool {
	return r.Rank() <= other.Rank()
}

func ParseRating(s string) (Rating, error) {
	r := Rating(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown energy rating %q", s)
	}
	return r, nil
}

// Transition is a renovation scope from one rating to another.
type Transition struct {
	From Rating `json:"from" yaml:"from"`
	To   Rating `json:"to" yaml:"to"`
}

// Steps is the number of rating classes gained.
func (t Transition) Steps() int {
	return t.From.Rank() - t.To.Rank()
}

func (t Transition) String() string {
	return fmt.Sprintf("%s-%s", t.From, t.To)
}

// ParseTransition reads the "F-C" form produced by String.
func ParseTransition(s string) (Transition, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return Transition{}, fmt.Errorf("transition %q must look like F-C", s)
	}
	from, err := ParseRating(parts[0])
	if err != nil {
		return Transition{}, err
	}
	to, err := ParseRating(parts[1])
	if err != nil {
		return Transition{}, err
	}
	return Transition{From: from, To: to}, nil
}

// IncomeProfile is a household income bracket. The set is closed.
type IncomeProfile string

const (
	ProfileVeryLow IncomeProfile = "very-low"
	ProfileLow     IncomeProfile = "low"
	ProfileMedium  IncomeProfile = "medium"
	ProfileHigh    IncomeProfile = "high"
)

// IncomeProfiles is the canonical profile order used in every report.
var IncomeProfiles = []IncomeProfile{ProfileVeryLow, ProfileLow, ProfileMedium, ProfileHigh}

func (p IncomeProfile) Valid() bool {
	switch p {
	case ProfileVeryLow, ProfileLow, ProfileMedium, ProfileHigh:
		return true
	}
	return false
}

// Label returns the bracket colour used on public aid forms.
func (p IncomeProfile) Label() string {
	switch p {
	case ProfileVeryLow:
		return "Blue (very low income)"
	case ProfileLow:
		return "Yellow (low income)"
	case ProfileMedium:
		return "Purple (medium income)"
	case ProfileHigh:
		return "Pink (high income)"
	}
	return string(p)
}

// TransitionBucket is the single energy-gain bracket a transition falls in.
type TransitionBucket string

const (
	BucketNone        TransitionBucket = "none"
	BucketStandard    TransitionBucket = "standard"
	BucketPerformance TransitionBucket = "performance"
)

// DiagnosticInput describes the building to diagnose. EstimatedWorksCost is a
// quoted works cost excluding VAT; when set it replaces the table estimate.
type DiagnosticInput struct {
	Address            string   `json:"address"`
	PostalCode         string   `json:"postalCode,omitempty"`
	SurfaceSqm         float64  `json:"surfaceSqm"`
	ConstructionYear   int      `json:"constructionYear"`
	NumberOfUnits      int      `json:"numberOfUnits"`
	CurrentRating      Rating   `json:"currentRating"`
	TargetRating       Rating   `json:"targetRating"`
	MarketPricePerSqm  float64  `json:"marketPricePerSqm"`
	InvestorRatio      *float64 `json:"investorRatio,omitempty"`
	AnnualEnergyBill   float64  `json:"annualEnergyBill,omitempty"`
	LocalAidAmount     float64  `json:"localAidAmount,omitempty"`
	IsFragile          bool     `json:"isFragile,omitempty"`
	EstimatedWorksCost float64  `json:"estimatedWorksCost,omitempty"`
}

func (in DiagnosticInput) Transition() Transition {
	return Transition{From: in.CurrentRating, To: in.TargetRating}
}

// SubsidyResult is the per-dwelling public subsidy for one income profile.
type SubsidyResult struct {
	Profile       IncomeProfile    `json:"profile"`
	Bucket        TransitionBucket `json:"bucket"`
	Rate          float64          `json:"rate"`
	EligibleBasis float64          `json:"eligibleBasis"`
	Amount        float64          `json:"amount"`
	Capped        bool             `json:"capped"`
}

// LoanTerms describes the collective zero-rate renovation loan.
type LoanTerms struct {
	Principal      float64 `json:"principal"`
	AnnualRate     float64 `json:"annualRate"`
	DurationMonths int     `json:"durationMonths"`
	MonthlyPayment float64 `json:"monthlyPayment"`
}

// FinancingPolicy selects which subsidy figure feeds the building-level plan.
type FinancingPolicy string

const (
	// PolicyConservative uses the least favourable profile for every dwelling.
	PolicyConservative FinancingPolicy = "conservative"
	// PolicyWeighted blends profiles by the table's household distribution,
	// with investor-owned dwellings at the high-income profile.
	PolicyWeighted FinancingPolicy = "weighted"
)

// FinancingPlan is the building-level cost and funding breakdown.
type FinancingPlan struct {
	WorksCost           float64         `json:"worksCost"`
	WorksCostPerSqm     float64         `json:"worksCostPerSqm"`
	WorksCostQuoted     bool            `json:"worksCostQuoted"`
	FeesCost            float64         `json:"feesCost"`
	TotalCostHT         float64         `json:"totalCostHT"`
	TotalCost           float64         `json:"totalCost"`
	CollectiveAids      float64         `json:"collectiveAids"`
	ProfileSubsidies    float64         `json:"profileSubsidies"`
	TotalSubsidies      float64         `json:"totalSubsidies"`
	RemainingCost       float64         `json:"remainingCost"`
	Floored             bool            `json:"floored"`
	Policy              FinancingPolicy `json:"policy"`
	Loan                *LoanTerms      `json:"loan,omitempty"`
	CashDownPayment     float64         `json:"cashDownPayment"`
	EnergyGain          float64         `json:"energyGain"`
	AnnualEnergySavings float64         `json:"annualEnergySavings"`
	PaybackYears        *float64        `json:"paybackYears,omitempty"`
}

// ProfileFinancing is what one dwelling of a given profile pays.
type ProfileFinancing struct {
	Profile              IncomeProfile `json:"profile"`
	CostPerUnit          float64       `json:"costPerUnit"`
	SubsidyPerUnit       float64       `json:"subsidyPerUnit"`
	RemainingCostPerUnit float64       `json:"remainingCostPerUnit"`
	Floored              bool          `json:"floored"`
	MonthlyPayment       float64       `json:"monthlyPayment"`
}

type BenchmarkStatus string

const (
	BenchmarkGreen  BenchmarkStatus = "green"
	BenchmarkYellow BenchmarkStatus = "yellow"
	BenchmarkRed    BenchmarkStatus = "red"
)

// BenchmarkResult compares the subject's cost per m² with local references.
type BenchmarkResult struct {
	AveragePrice      int             `json:"averagePrice"`
	SampleSize        int             `json:"sampleSize"`
	SubjectCostPerSqm float64         `json:"subjectCostPerSqm"`
	Ratio             float64         `json:"ratio"`
	Status            BenchmarkStatus `json:"status"`
}

// MarketRecord is one observed renovation cost for a rating transition.
type MarketRecord struct {
	PostalCode    string    `json:"postalCode"`
	CurrentRating Rating    `json:"currentRating"`
	TargetRating  Rating    `json:"targetRating"`
	CostPerSqm    float64   `json:"costPerSqm"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// ComplianceStatus reports the rental ban affecting the current rating.
type ComplianceStatus struct {
	Rating         Rating     `json:"rating"`
	ProhibitedFrom *time.Time `json:"prohibitedFrom,omitempty"`
	IsProhibited   bool       `json:"isProhibited"`
	DaysRemaining  int        `json:"daysRemaining"`
	Urgency        Urgency    `json:"urgency"`
}

// Valuation estimates the green value uplift of the renovation.
type Valuation struct {
	CurrentValue   float64 `json:"currentValue"`
	GreenValueRate float64 `json:"greenValueRate"`
	GreenValueGain float64 `json:"greenValueGain"`
	ProjectedValue float64 `json:"projectedValue"`
	NetGain        float64 `json:"netGain"`
}

// InactionCost estimates what postponing the works for HorizonYears costs:
// construction inflation, plus the value erosion of an F/G building.
type InactionCost struct {
	HorizonYears  int     `json:"horizonYears"`
	CurrentCost   float64 `json:"currentCost"`
	ProjectedCost float64 `json:"projectedCost"`
	InflationCost float64 `json:"inflationCost"`
	ValueErosion  float64 `json:"valueErosion"`
	TotalCost     float64 `json:"totalCost"`
}

type ResultMetadata struct {
	ComputedAt       time.Time `json:"computedAt"`
	ParameterVersion string    `json:"parameterVersion"`
}

// DiagnosticResult is the complete, immutable output of one diagnostic.
type DiagnosticResult struct {
	Input          DiagnosticInput    `json:"input"`
	Financing      FinancingPlan      `json:"financing"`
	SubsidyResults []SubsidyResult    `json:"subsidyResults"`
	Profiles       []ProfileFinancing `json:"profiles"`
	Benchmark      *BenchmarkResult   `json:"benchmark"`
	Compliance     ComplianceStatus   `json:"compliance"`
	InactionCost   InactionCost       `json:"inactionCost"`
	Valuation      *Valuation         `json:"valuation,omitempty"`
	Metadata       ResultMetadata     `json:"metadata"`
}

// SubsidyFor returns the subsidy result of a profile.
func (r *DiagnosticResult) SubsidyFor(p IncomeProfile) (SubsidyResult, bool) {
	for _, s := range r.SubsidyResults {
		if s.Profile == p {
			return s, true
		}
	}
	return SubsidyResult{}, false
}

// FinancingFor returns the per-dwelling financing of a profile.
func (r *DiagnosticResult) FinancingFor(p IncomeProfile) (ProfileFinancing, bool) {
	for _, f := range r.Profiles {
		if f.Profile == p {
			return f, true
		}
	}
	return ProfileFinancing{}, false
}

// ProfileMatrixRow is one line of the per-profile comparison table.
type ProfileMatrixRow struct {
	Profile        IncomeProfile `json:"profile"`
	Label          string        `json:"label"`
	SubsidyAmount  float64       `json:"subsidyAmount"`
	RemainingCost  float64       `json:"remainingCost"`
	MonthlyPayment float64       `json:"monthlyPayment"`
}
