package benchmark

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copro-diagnostic/internal/common/logger"
	"copro-diagnostic/internal/models"
)

var refNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func record(postal string, cost float64, age time.Duration) models.MarketRecord {
	return models.MarketRecord{
		PostalCode:    postal,
		CurrentRating: models.RatingF,
		TargetRating:  models.RatingC,
		CostPerSqm:    cost,
		CreatedAt:     refNow.Add(-age),
	}
}

func staticSource(records ...models.MarketRecord) Source {
	return SourceFunc(func(ctx context.Context, postalCode string, current, target models.Rating) ([]models.MarketRecord, error) {
		return records, nil
	})
}

func newTestService(t *testing.T, src Source) *Service {
	return NewService(src,
		WithClock(func() time.Time { return refNow }),
		WithLogger(logger.NewTestLogger(t)),
	)
}

// ==========================
// Classification
// ==========================

func TestClassify_BandEdges(t *testing.T) {
	tests := []struct {
		ratio float64
		want  models.BenchmarkStatus
	}{
		{0.5, models.BenchmarkGreen},
		{1.0, models.BenchmarkGreen},
		{1.05, models.BenchmarkGreen},
		{1.05 + 1e-12, models.BenchmarkGreen},
		{1.050036, models.BenchmarkYellow},
		{1.0501, models.BenchmarkYellow},
		{1.30, models.BenchmarkYellow},
		{1.3001, models.BenchmarkRed},
		{2.0, models.BenchmarkRed},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.ratio, DefaultBands), "ratio=%v", tt.ratio)
	}
}

func TestClassify_CustomBands(t *testing.T) {
	bands := Bands{GreenMax: 1.0, YellowMax: 1.1}
	assert.Equal(t, models.BenchmarkGreen, Classify(1.0, bands))
	assert.Equal(t, models.BenchmarkYellow, Classify(1.05, bands))
	assert.Equal(t, models.BenchmarkRed, Classify(1.2, bands))
}

// ==========================
// Aggregation
// ==========================

func TestCompute_ThreeRecords(t *testing.T) {
	records := []models.MarketRecord{
		record("75011", 100, 24*time.Hour),
		record("75011", 110, 48*time.Hour),
		record("75011", 120, 72*time.Hour),
	}

	res := Compute(records, "75011", models.RatingF, models.RatingC, 110, refNow, DefaultBands)
	require.NotNil(t, res)
	assert.Equal(t, 110, res.AveragePrice)
	assert.Equal(t, 3, res.SampleSize)
	assert.Equal(t, 1.0, res.Ratio)
	assert.Equal(t, models.BenchmarkGreen, res.Status)
}

func TestCompute_ReliabilityGate(t *testing.T) {
	two := []models.MarketRecord{
		record("75011", 100, time.Hour),
		record("75011", 120, time.Hour),
	}
	assert.Nil(t, Compute(two, "75011", models.RatingF, models.RatingC, 110, refNow, DefaultBands))

	three := append(two, record("75011", 110, time.Hour))
	assert.NotNil(t, Compute(three, "75011", models.RatingF, models.RatingC, 110, refNow, DefaultBands))
}

func TestCompute_RatioAtThresholds(t *testing.T) {
	records := []models.MarketRecord{
		record("75011", 100, time.Hour),
		record("75011", 110, time.Hour),
		record("75011", 120, time.Hour),
	}

	tests := []struct {
		subject float64
		ratio   float64
		status  models.BenchmarkStatus
	}{
		{115.5, 1.05, models.BenchmarkGreen},
		// reported as 1.05 but above the green bound
		{115.504, 1.05, models.BenchmarkYellow},
		{116, 1.0545, models.BenchmarkYellow},
		{143, 1.30, models.BenchmarkYellow},
		{144, 1.3091, models.BenchmarkRed},
	}

	for _, tt := range tests {
		res := Compute(records, "75011", models.RatingF, models.RatingC, tt.subject, refNow, DefaultBands)
		require.NotNil(t, res)
		assert.Equal(t, tt.ratio, res.Ratio, "subject=%v", tt.subject)
		assert.Equal(t, tt.status, res.Status, "subject=%v", tt.subject)
	}
}

func TestCompute_FiltersNonQualifyingRecords(t *testing.T) {
	otherTransition := record("75011", 500, time.Hour)
	otherTransition.TargetRating = models.RatingD

	records := []models.MarketRecord{
		record("75011", 100, time.Hour),
		record("75011", 110, time.Hour),
		record("75011", 0, time.Hour),
		record("75011", -40, time.Hour),
		record("75011", math.NaN(), time.Hour),
		record("75011", 900, 400*24*time.Hour),
		record("75011", 900, -48*time.Hour),
		record("69003", 900, time.Hour),
		otherTransition,
	}
	assert.Nil(t, Compute(records, "75011", models.RatingF, models.RatingC, 100, refNow, DefaultBands))

	records = append(records, record("75011", 121, 300*24*time.Hour))
	res := Compute(records, "75011", models.RatingF, models.RatingC, 100, refNow, DefaultBands)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.SampleSize)
	// (100+110+121)/3 = 110.33
	assert.Equal(t, 110, res.AveragePrice)
}

func TestCompute_RoundsMeanToNearestUnit(t *testing.T) {
	records := []models.MarketRecord{
		record("75011", 100, time.Hour),
		record("75011", 100, time.Hour),
		record("75011", 101.5, time.Hour),
	}
	res := Compute(records, "75011", models.RatingF, models.RatingC, 100, refNow, DefaultBands)
	require.NotNil(t, res)
	// 100.5 rounds up
	assert.Equal(t, 101, res.AveragePrice)
}

// ==========================
// Service failure policy
// ==========================

func TestService_GetLocalBenchmarks(t *testing.T) {
	svc := newTestService(t, staticSource(
		record("75011", 100, time.Hour),
		record("75011", 110, time.Hour),
		record("75011", 120, time.Hour),
	))

	res := svc.GetLocalBenchmarks(context.Background(), "75011", models.RatingF, models.RatingC, 132)
	require.NotNil(t, res)
	assert.Equal(t, 110, res.AveragePrice)
	assert.Equal(t, 1.2, res.Ratio)
	assert.Equal(t, models.BenchmarkYellow, res.Status)
}

func TestService_UsesConfiguredBands(t *testing.T) {
	svc := NewService(staticSource(
		record("75011", 100, time.Hour),
		record("75011", 100, time.Hour),
		record("75011", 100, time.Hour),
	), WithClock(func() time.Time { return refNow }), WithBands(Bands{GreenMax: 1.1, YellowMax: 1.2}))

	res := svc.GetLocalBenchmarks(context.Background(), "75011", models.RatingF, models.RatingC, 110)
	require.NotNil(t, res)
	assert.Equal(t, models.BenchmarkGreen, res.Status)
}

func TestService_SwallowsFailures(t *testing.T) {
	tests := []struct {
		name    string
		src     Source
		subject float64
	}{
		{
			name: "source error",
			src: SourceFunc(func(ctx context.Context, postalCode string, current, target models.Rating) ([]models.MarketRecord, error) {
				return nil, errors.New("connection refused")
			}),
			subject: 100,
		},
		{
			name: "source panic",
			src: SourceFunc(func(ctx context.Context, postalCode string, current, target models.Rating) ([]models.MarketRecord, error) {
				panic("nil map")
			}),
			subject: 100,
		},
		{
			name:    "non-finite subject",
			src:     staticSource(record("75011", 100, time.Hour), record("75011", 100, time.Hour), record("75011", 100, time.Hour)),
			subject: math.Inf(1),
		},
		{
			name:    "no source",
			src:     nil,
			subject: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, tt.src)
			assert.NotPanics(t, func() {
				assert.Nil(t, svc.GetLocalBenchmarks(context.Background(), "75011", models.RatingF, models.RatingC, tt.subject))
			})
		})
	}
}

func TestService_EmptyPostalCodeSkipsFetch(t *testing.T) {
	called := false
	svc := newTestService(t, SourceFunc(func(ctx context.Context, postalCode string, current, target models.Rating) ([]models.MarketRecord, error) {
		called = true
		return nil, nil
	}))

	assert.Nil(t, svc.GetLocalBenchmarks(context.Background(), "", models.RatingF, models.RatingC, 100))
	assert.False(t, called)
}
