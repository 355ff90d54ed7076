package generatediagnostic

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"copro-diagnostic/internal/common/errors"
	"copro-diagnostic/internal/common/logger"
	"copro-diagnostic/internal/common/metrics"
	"copro-diagnostic/internal/common/observability"
	"copro-diagnostic/internal/common/validation"
	"copro-diagnostic/internal/diagnostic/engine"
	"copro-diagnostic/internal/diagnostic/matrix"
	"copro-diagnostic/internal/models"
)

const (
	TaskType = "generate-diagnostic"
)

// StatsRecorder keeps computed diagnostics as future benchmark references.
type StatsRecorder interface {
	Record(ctx context.Context, diagnosticID string, result *models.DiagnosticResult) (bool, error)
}

type Handler struct {
	config       *Config
	engine       *engine.Engine
	recorder     StatsRecorder
	validator    *validation.Validator
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
	newID        func() string
}

// NewHandler builds the handler. recorder, validator and obs may be nil.
func NewHandler(config *Config, eng *engine.Engine, recorder StatsRecorder, validator *validation.Validator, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		engine:       eng,
		recorder:     recorder,
		validator:    validator,
		obs:          obs,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
		newID:        uuid.NewString,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := h.parseVariables(job.Variables)
	if err != nil {
		h.failJob(client, job, start, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(client, job, start, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.ObserveJob(TaskType, start, "")
}

func (h *Handler) parseVariables(variables string) (*Input, error) {
	if h.validator != nil {
		if err := h.validator.ValidateJSON(TaskType, variables).Err(); err != nil {
			return nil, err
		}
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidJobVariablesError(err.Error())
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidJobVariablesError("input cannot be nil")
	}

	result, err := h.engine.Generate(ctx, input.Input)
	if err != nil {
		return nil, err
	}

	output := &Output{
		DiagnosticID:  h.newID(),
		Result:        result,
		ProfileMatrix: matrix.GenerateProfileMatrix(result),
	}
	h.observe(ctx, result)

	if h.shouldRecord(input) {
		stored, err := h.recorder.Record(ctx, output.DiagnosticID, result)
		if err != nil {
			h.logger.Warn("market stats not recorded", map[string]interface{}{
				"diagnosticId": output.DiagnosticID,
				"error":        err,
			})
		} else if stored {
			metrics.MarketStatsRecorded.Inc()
		}
		output.StatsRecorded = stored
	}

	h.logger.Info("diagnostic completed", map[string]interface{}{
		"diagnosticId":  output.DiagnosticID,
		"remainingCost": result.Financing.RemainingCost,
		"statsRecorded": output.StatsRecorded,
	})
	return output, nil
}

func (h *Handler) shouldRecord(input *Input) bool {
	if h.recorder == nil {
		return false
	}
	if input.RecordStats != nil {
		return *input.RecordStats
	}
	return h.config.RecordStats
}

func (h *Handler) observe(ctx context.Context, result *models.DiagnosticResult) {
	bucket := models.BucketNone
	if len(result.SubsidyResults) > 0 {
		bucket = result.SubsidyResults[0].Bucket
	}
	metrics.DiagnosticsGenerated.WithLabelValues(string(result.Financing.Policy), string(bucket)).Inc()
	metrics.DiagnosticRemainingCost.Observe(result.Financing.RemainingCost)
	h.obs.RecordSubsidies(ctx, result.Financing.TotalSubsidies, string(result.Financing.Policy))
	if result.Input.PostalCode != "" {
		metrics.ObserveBenchmark(result.Benchmark != nil)
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, start time.Time, err error) {
	stdErr := errors.Normalize(err)
	metrics.ObserveJob(TaskType, start, string(stdErr.Code))
	h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
}
