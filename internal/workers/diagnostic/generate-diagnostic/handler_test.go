package generatediagnostic

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"copro-diagnostic/internal/common/errors"
	"copro-diagnostic/internal/common/logger"
	"copro-diagnostic/internal/common/validation"
	"copro-diagnostic/internal/diagnostic/engine"
	"copro-diagnostic/internal/diagnostic/params"
	"copro-diagnostic/internal/marketdata"
	"copro-diagnostic/internal/models"
	"copro-diagnostic/pkg/registry"
)

// ==========================
// Test Helper Functions
// ==========================

var refNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func createTestConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
	}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func createTestEngine(t *testing.T, table *params.Table) *engine.Engine {
	return engine.New(table,
		engine.WithClock(func() time.Time { return refNow }),
		engine.WithLogger(createTestLogger(t)),
	)
}

func createTestValidator(t *testing.T) *validation.Validator {
	reg, err := registry.Builtin()
	require.NoError(t, err)
	v, err := validation.NewValidator(reg)
	require.NoError(t, err)
	return v
}

func referenceInput() models.DiagnosticInput {
	return models.DiagnosticInput{
		Address:           "12 rue de la Roquette, 75011 Paris",
		PostalCode:        "75011",
		SurfaceSqm:        2500,
		ConstructionYear:  1975,
		NumberOfUnits:     45,
		CurrentRating:     models.RatingF,
		TargetRating:      models.RatingC,
		MarketPricePerSqm: 4000,
	}
}

func boolPtr(v bool) *bool { return &v }

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) Record(ctx context.Context, diagnosticID string, result *models.DiagnosticResult) (bool, error) {
	args := m.Called(ctx, diagnosticID, result)
	return args.Bool(0), args.Error(1)
}

func assertCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	stdErr, ok := errors.AsStandard(err)
	require.True(t, ok, "expected a StandardError, got %v", err)
	assert.Equal(t, code, stdErr.Code)
}

// ==========================
// Execute Tests
// ==========================

func TestExecute_ReferenceBuilding(t *testing.T) {
	h := NewHandler(createTestConfig(), createTestEngine(t, params.Default()), nil, nil, nil, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Input: referenceInput()})
	require.NoError(t, err)
	require.NotNil(t, out)

	_, err = uuid.Parse(out.DiagnosticID)
	assert.NoError(t, err)

	assert.InDelta(t, 2_204_422.5, out.Result.Financing.TotalCost, 0.001)
	assert.InDelta(t, 1_422_172.5, out.Result.Financing.RemainingCost, 0.001)
	assert.False(t, out.StatsRecorded)

	require.Len(t, out.ProfileMatrix, len(models.IncomeProfiles))
	for i, p := range models.IncomeProfiles {
		assert.Equal(t, p, out.ProfileMatrix[i].Profile)
	}
	assert.Equal(t, 16_750.0, out.ProfileMatrix[0].SubsidyAmount)
	assert.Equal(t, 13_750.0, out.ProfileMatrix[3].SubsidyAmount)
}

func TestExecute_UniqueDiagnosticIDs(t *testing.T) {
	h := NewHandler(createTestConfig(), createTestEngine(t, params.Default()), nil, nil, nil, createTestLogger(t))

	first, err := h.Execute(context.Background(), &Input{Input: referenceInput()})
	require.NoError(t, err)
	second, err := h.Execute(context.Background(), &Input{Input: referenceInput()})
	require.NoError(t, err)

	assert.NotEqual(t, first.DiagnosticID, second.DiagnosticID)
	assert.Equal(t, first.Result, second.Result)
}

func TestExecute_RecordsMarketStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	h := NewHandler(createTestConfig(), createTestEngine(t, params.Default()), marketdata.NewRecorder(db), nil, nil, createTestLogger(t))
	h.newID = func() string { return "diag-1" }

	mock.ExpectExec(`INSERT INTO market_stats`).
		WithArgs(sqlmock.AnyArg(), "diag-1", "75011", "F", "C", 800.0, 2500.0, 45, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	in := referenceInput()
	in.EstimatedWorksCost = 2_000_000
	out, err := h.Execute(context.Background(), &Input{Input: in, RecordStats: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, "diag-1", out.DiagnosticID)
	assert.True(t, out.StatsRecorded)
	assert.True(t, out.Result.Financing.WorksCostQuoted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_TableEstimateNotRecorded(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	h := NewHandler(createTestConfig(), createTestEngine(t, params.Default()), marketdata.NewRecorder(db), nil, nil, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Input: referenceInput(), RecordStats: boolPtr(true)})
	require.NoError(t, err)
	assert.False(t, out.StatsRecorded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_RecordStatsFlag(t *testing.T) {
	tests := []struct {
		name       string
		configured bool
		requested  *bool
		expectCall bool
	}{
		{"config default off", false, nil, false},
		{"config default on", true, nil, true},
		{"job enables", false, boolPtr(true), true},
		{"job disables", true, boolPtr(false), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := createTestConfig()
			cfg.RecordStats = tt.configured
			rec := &mockRecorder{}
			if tt.expectCall {
				rec.On("Record", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("*models.DiagnosticResult")).
					Return(true, nil).Once()
			}
			h := NewHandler(cfg, createTestEngine(t, params.Default()), rec, nil, nil, createTestLogger(t))

			out, err := h.Execute(context.Background(), &Input{Input: referenceInput(), RecordStats: tt.requested})
			require.NoError(t, err)
			assert.Equal(t, tt.expectCall, out.StatsRecorded)
			rec.AssertExpectations(t)
			if !tt.expectCall {
				rec.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestExecute_RecordingFailureIsNotFatal(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("Record", mock.Anything, mock.Anything, mock.Anything).
		Return(false, stderrors.New("connection refused")).Once()
	h := NewHandler(createTestConfig(), createTestEngine(t, params.Default()), rec, nil, nil, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Input: referenceInput(), RecordStats: boolPtr(true)})
	require.NoError(t, err)
	assert.False(t, out.StatsRecorded)
	assert.NotEmpty(t, out.ProfileMatrix)
	rec.AssertExpectations(t)
}

func TestExecute_Errors(t *testing.T) {
	h := NewHandler(createTestConfig(), createTestEngine(t, params.Default()), nil, nil, nil, createTestLogger(t))

	t.Run("nil input", func(t *testing.T) {
		out, err := h.Execute(context.Background(), nil)
		assert.Nil(t, out)
		assertCode(t, err, errors.ErrCodeInvalidJobVariables)
	})

	t.Run("invalid building", func(t *testing.T) {
		in := referenceInput()
		in.SurfaceSqm = 0
		out, err := h.Execute(context.Background(), &Input{Input: in})
		assert.Nil(t, out)
		assert.ErrorIs(t, err, errors.ErrValidation)
	})

	t.Run("missing parameter", func(t *testing.T) {
		table := params.Default()
		delete(table.CostPerSqm, models.Transition{From: models.RatingF, To: models.RatingC})
		h := NewHandler(createTestConfig(), createTestEngine(t, table), nil, nil, nil, createTestLogger(t))

		out, err := h.Execute(context.Background(), &Input{Input: referenceInput()})
		assert.Nil(t, out)
		assert.ErrorIs(t, err, errors.ErrConfiguration)
	})
}

// ==========================
// Variable Parsing Tests
// ==========================

func TestParseVariables(t *testing.T) {
	h := NewHandler(createTestConfig(), createTestEngine(t, params.Default()), nil, createTestValidator(t), nil, createTestLogger(t))

	t.Run("valid", func(t *testing.T) {
		input, err := h.parseVariables(`{
			"input": {
				"address": "12 rue de la Roquette, 75011 Paris",
				"postalCode": "75011",
				"surfaceSqm": 2500,
				"constructionYear": 1975,
				"numberOfUnits": 45,
				"currentRating": "F",
				"targetRating": "C",
				"marketPricePerSqm": 4000
			},
			"recordStats": true
		}`)
		require.NoError(t, err)
		assert.Equal(t, referenceInput(), input.Input)
		require.NotNil(t, input.RecordStats)
		assert.True(t, *input.RecordStats)
	})

	t.Run("schema violation", func(t *testing.T) {
		_, err := h.parseVariables(`{"input": {"address": "x", "surfaceSqm": 10, "constructionYear": 1975, "numberOfUnits": 0, "currentRating": "F", "targetRating": "C"}}`)
		assertCode(t, err, errors.ErrCodeInvalidJobVariables)
		assert.Contains(t, err.Error(), "numberOfUnits")
	})

	t.Run("missing input", func(t *testing.T) {
		_, err := h.parseVariables(`{"recordStats": false}`)
		assertCode(t, err, errors.ErrCodeInvalidJobVariables)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := h.parseVariables(`{"input":`)
		assertCode(t, err, errors.ErrCodeInvalidJobVariables)
	})

	t.Run("without validator", func(t *testing.T) {
		plain := NewHandler(createTestConfig(), createTestEngine(t, params.Default()), nil, nil, nil, createTestLogger(t))
		_, err := plain.parseVariables(`{"input": 12}`)
		assertCode(t, err, errors.ErrCodeInvalidJobVariables)
	})
}
