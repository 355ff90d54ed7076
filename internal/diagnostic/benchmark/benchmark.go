// Package benchmark compares a building's renovation cost per m² with recent
// local references for the same rating transition.
package benchmark

import (
	"context"
	"fmt"
	"math"
	"time"

	"copro-diagnostic/internal/common/errors"
	"copro-diagnostic/internal/common/logger"
	"copro-diagnostic/internal/models"
)

// MinSampleSize is the reliability threshold below which no benchmark is shown.
const MinSampleSize = 3

// WindowMonths is the recency window of qualifying records.
const WindowMonths = 12

// Source fetches candidate market records. Implementations may return records
// outside the window or for other transitions; the service filters them again.
type Source interface {
	FetchRecords(ctx context.Context, postalCode string, current, target models.Rating) ([]models.MarketRecord, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, postalCode string, current, target models.Rating) ([]models.MarketRecord, error)

func (f SourceFunc) FetchRecords(ctx context.Context, postalCode string, current, target models.Rating) ([]models.MarketRecord, error) {
	return f(ctx, postalCode, current, target)
}

// Bands are the inclusive upper ratio bounds of the green and yellow statuses.
type Bands struct {
	GreenMax  float64
	YellowMax float64
}

// DefaultBands is ≤105% green, ≤130% yellow.
var DefaultBands = Bands{GreenMax: 1.05, YellowMax: 1.30}

// ratioTolerance absorbs float error on an exact band bound, e.g. 115.5/110.
const ratioTolerance = 1e-9

// Classify maps a subject/mean cost ratio to a status.
func Classify(ratio float64, bands Bands) models.BenchmarkStatus {
	switch {
	case ratio <= bands.GreenMax+ratioTolerance:
		return models.BenchmarkGreen
	case ratio <= bands.YellowMax+ratioTolerance:
		return models.BenchmarkYellow
	default:
		return models.BenchmarkRed
	}
}

// Compute aggregates already-fetched records. It returns nil when fewer than
// MinSampleSize records qualify.
func Compute(records []models.MarketRecord, postalCode string, current, target models.Rating, subjectCostPerSqm float64, now time.Time, bands Bands) *models.BenchmarkResult {
	since := now.AddDate(0, -WindowMonths, 0)

	var sum float64
	var n int
	for _, r := range records {
		if r.PostalCode != postalCode || r.CurrentRating != current || r.TargetRating != target {
			continue
		}
		if r.CreatedAt.Before(since) || r.CreatedAt.After(now) {
			continue
		}
		if !(r.CostPerSqm > 0) || math.IsInf(r.CostPerSqm, 0) {
			continue
		}
		sum += r.CostPerSqm
		n++
	}
	if n < MinSampleSize {
		return nil
	}

	average := math.Round(sum / float64(n))
	if average <= 0 {
		return nil
	}

	// classified raw; only the reported ratio is rounded
	ratio := subjectCostPerSqm / average
	return &models.BenchmarkResult{
		AveragePrice:      int(average),
		SampleSize:        n,
		SubjectCostPerSqm: subjectCostPerSqm,
		Ratio:             math.Round(ratio*10000) / 10000,
		Status:            Classify(ratio, bands),
	}
}

// Service fetches and aggregates benchmarks, swallowing every failure.
type Service struct {
	source Source
	bands  Bands
	now    func() time.Time
	logger logger.Logger
}

type Option func(*Service)

func WithBands(b Bands) Option {
	return func(s *Service) { s.bands = b }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(source Source, opts ...Option) *Service {
	s := &Service{
		source: source,
		bands:  DefaultBands,
		now:    time.Now,
		logger: logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetLocalBenchmarks returns the benchmark of a transition in a postal code,
// or nil when data is insufficient or anything fails.
func (s *Service) GetLocalBenchmarks(ctx context.Context, postalCode string, current, target models.Rating, subjectCostPerSqm float64) *models.BenchmarkResult {
	return s.GetLocalBenchmarksAt(ctx, postalCode, current, target, subjectCostPerSqm, s.now())
}

// GetLocalBenchmarksAt is GetLocalBenchmarks with an explicit reference time.
func (s *Service) GetLocalBenchmarksAt(ctx context.Context, postalCode string, current, target models.Rating, subjectCostPerSqm float64, now time.Time) (result *models.BenchmarkResult) {
	log := s.logger.WithFields(map[string]interface{}{
		"postalCode": postalCode,
		"transition": models.Transition{From: current, To: target}.String(),
	})

	defer func() {
		if r := recover(); r != nil {
			s.unavailable(log, fmt.Errorf("panic: %v", r))
			result = nil
		}
	}()

	if s.source == nil || postalCode == "" {
		return nil
	}
	if math.IsNaN(subjectCostPerSqm) || math.IsInf(subjectCostPerSqm, 0) || subjectCostPerSqm < 0 {
		s.unavailable(log, fmt.Errorf("subject cost per m² is %v", subjectCostPerSqm))
		return nil
	}

	records, err := s.source.FetchRecords(ctx, postalCode, current, target)
	if err != nil {
		s.unavailable(log, err)
		return nil
	}

	result = Compute(records, postalCode, current, target, subjectCostPerSqm, now, s.bands)
	if result == nil {
		log.Debug("Benchmark suppressed: not enough qualifying records", map[string]interface{}{
			"records": len(records),
		})
	}
	return result
}

func (s *Service) unavailable(log logger.Logger, err error) {
	stdErr := errors.NewEnrichmentUnavailableError("market benchmark", err)
	log.Warn("Benchmark unavailable", map[string]interface{}{
		"errorCode": string(stdErr.Code),
		"details":   stdErr.Details,
	})
}
