package buildprofilematrix

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"copro-diagnostic/internal/common/errors"
	"copro-diagnostic/internal/common/logger"
	"copro-diagnostic/internal/common/validation"
	"copro-diagnostic/internal/diagnostic/engine"
	"copro-diagnostic/internal/diagnostic/matrix"
	"copro-diagnostic/internal/diagnostic/params"
	"copro-diagnostic/internal/models"
	"copro-diagnostic/pkg/registry"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
	}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func generateResult(t *testing.T) *models.DiagnosticResult {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	eng := engine.New(params.Default(), engine.WithClock(func() time.Time { return now }))

	res, err := eng.Generate(context.Background(), models.DiagnosticInput{
		Address:           "12 rue de la Roquette, 75011 Paris",
		PostalCode:        "75011",
		SurfaceSqm:        2500,
		ConstructionYear:  1975,
		NumberOfUnits:     45,
		CurrentRating:     models.RatingF,
		TargetRating:      models.RatingC,
		MarketPricePerSqm: 4000,
	})
	require.NoError(t, err)
	return res
}

// ==========================
// Execute Tests
// ==========================

func TestExecute_BuildsOneRowPerProfile(t *testing.T) {
	h := NewHandler(createTestConfig(), nil, createTestLogger(t))
	res := generateResult(t)

	out, err := h.Execute(context.Background(), &Input{Result: res})
	require.NoError(t, err)
	require.Len(t, out.ProfileMatrix, 4)

	expectedSubsidies := map[models.IncomeProfile]float64{
		models.ProfileVeryLow: 16_750,
		models.ProfileLow:     15_250,
		models.ProfileMedium:  13_750,
		models.ProfileHigh:    13_750,
	}
	for i, row := range out.ProfileMatrix {
		assert.Equal(t, models.IncomeProfiles[i], row.Profile)
		assert.Equal(t, row.Profile.Label(), row.Label)
		assert.Equal(t, expectedSubsidies[row.Profile], row.SubsidyAmount)

		fin, ok := res.FinancingFor(row.Profile)
		require.True(t, ok)
		assert.Equal(t, fin.RemainingCostPerUnit, row.RemainingCost)
		assert.Equal(t, fin.MonthlyPayment, row.MonthlyPayment)
	}
}

func TestExecute_ResultFromJobVariables(t *testing.T) {
	res := generateResult(t)
	vars, err := json.Marshal(map[string]interface{}{"result": res})
	require.NoError(t, err)

	reg, err := registry.Builtin()
	require.NoError(t, err)
	validator, err := validation.NewValidator(reg)
	require.NoError(t, err)
	h := NewHandler(createTestConfig(), validator, createTestLogger(t))

	input, err := h.parseVariables(string(vars))
	require.NoError(t, err)

	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, matrix.GenerateProfileMatrix(res), out.ProfileMatrix)
}

func TestExecute_MissingResult(t *testing.T) {
	h := NewHandler(createTestConfig(), nil, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, errors.ErrValidation)

	out, err = h.Execute(context.Background(), nil)
	assert.Nil(t, out)
	stdErr, ok := errors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeInvalidJobVariables, stdErr.Code)
}

func TestParseVariables_SchemaViolation(t *testing.T) {
	reg, err := registry.Builtin()
	require.NoError(t, err)
	validator, err := validation.NewValidator(reg)
	require.NoError(t, err)
	h := NewHandler(createTestConfig(), validator, createTestLogger(t))

	_, err = h.parseVariables(`{"result": {"subsidyResults": []}}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profiles")

	_, err = h.parseVariables(`{}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "result")
}
