// Package engine produces the complete financial diagnostic of a condominium
// renovation from a building description and a parameter table.
package engine

import (
	"context"
	"time"

	"copro-diagnostic/internal/common/logger"
	"copro-diagnostic/internal/diagnostic/benchmark"
	"copro-diagnostic/internal/diagnostic/params"
	"copro-diagnostic/internal/diagnostic/subsidy"
	"copro-diagnostic/internal/models"
)

// Engine is safe for concurrent use; it holds only read-only state.
type Engine struct {
	table      *params.Table
	policy     models.FinancingPolicy
	benchmarks *benchmark.Service
	now        func() time.Time
	logger     logger.Logger
}

type Option func(*Engine)

// WithBenchmarks attaches a market benchmark to every diagnostic with a postal code.
func WithBenchmarks(svc *benchmark.Service) Option {
	return func(e *Engine) { e.benchmarks = svc }
}

// WithPolicy overrides the table's financing policy.
func WithPolicy(p models.FinancingPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func New(table *params.Table, opts ...Option) *Engine {
	e := &Engine{
		table:  table,
		policy: table.Policy,
		now:    time.Now,
		logger: logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.policy == "" {
		e.policy = models.PolicyConservative
	}
	return e
}

// Table returns the parameter table the engine computes against.
func (e *Engine) Table() *params.Table {
	return e.table
}

// Generate computes the diagnostic of in. It returns either a complete result
// or a validation/configuration error, never a partial result. A failing
// benchmark only leaves Benchmark nil.
func (e *Engine) Generate(ctx context.Context, in models.DiagnosticInput) (*models.DiagnosticResult, error) {
	now := e.now().UTC()
	log := e.logger.WithFields(map[string]interface{}{
		"transition":       in.Transition().String(),
		"parameterVersion": e.table.Version,
	})

	if err := Validate(in, now); err != nil {
		log.Debug("Diagnostic input rejected", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	tr := in.Transition()
	costPerSqm, err := e.table.CostPerSqmFor(tr)
	if err != nil {
		return nil, err
	}
	gain, err := e.table.EnergyGain(tr)
	if err != nil {
		return nil, err
	}
	bucket, err := e.table.Bucket(tr)
	if err != nil {
		return nil, err
	}
	c := computeCosts(in, costPerSqm, e.table.Fees)

	scope := subsidy.SimulationInputs{
		Transition:    tr,
		SurfaceSqm:    in.SurfaceSqm,
		NumberOfUnits: in.NumberOfUnits,
		WorksCost:     c.works,
		IsFragile:     in.IsFragile,
	}
	subsidies := make(map[models.IncomeProfile]models.SubsidyResult, len(models.IncomeProfiles))
	for _, p := range models.IncomeProfiles {
		res, err := subsidy.CalculateSubsidies(scope, p, e.table)
		if err != nil {
			log.Error("Subsidy computation failed", map[string]interface{}{
				"profile": string(p),
				"error":   err.Error(),
			})
			return nil, err
		}
		subsidies[p] = res
	}

	collective := collectiveAids(in, c.works, e.table)
	headline := headlineSubsidy(e.policy, subsidies, in, e.table.Weights)
	plan := buildPlan(in, c, collective, headline, gain, e.policy, e.table)

	results := make([]models.SubsidyResult, 0, len(models.IncomeProfiles))
	for _, p := range models.IncomeProfiles {
		results = append(results, subsidies[p])
	}

	result := &models.DiagnosticResult{
		Input:          in,
		Financing:      plan,
		SubsidyResults: results,
		Profiles:       buildProfileFinancing(in, c, collective, gain, subsidies, e.table),
		Compliance:     compliance(in.CurrentRating, e.table.RentalBans, now),
		InactionCost:   inactionCost(in, c.works, e.table),
		Valuation:      valuation(in, e.table.GreenValue.Rate(bucket), plan.RemainingCost),
		Metadata: models.ResultMetadata{
			ComputedAt:       now,
			ParameterVersion: e.table.Version,
		},
	}

	if e.benchmarks != nil && in.PostalCode != "" && c.works > 0 {
		result.Benchmark = e.benchmarks.GetLocalBenchmarksAt(ctx, in.PostalCode, in.CurrentRating, in.TargetRating, c.costPerSqm, now)
	}

	log.Info("Diagnostic generated", map[string]interface{}{
		"worksQuoted":    c.quoted,
		"totalCost":      plan.TotalCost,
		"totalSubsidies": plan.TotalSubsidies,
		"remainingCost":  plan.RemainingCost,
		"floored":        plan.Floored,
		"policy":         string(plan.Policy),
		"benchmark":      result.Benchmark != nil,
	})
	return result, nil
}
