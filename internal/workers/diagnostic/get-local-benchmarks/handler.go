package getlocalbenchmarks

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"copro-diagnostic/internal/common/errors"
	"copro-diagnostic/internal/common/logger"
	"copro-diagnostic/internal/common/metrics"
	"copro-diagnostic/internal/common/validation"
	"copro-diagnostic/internal/diagnostic/benchmark"
	"copro-diagnostic/internal/models"
)

const (
	TaskType = "get-local-benchmarks"
)

var postalCodePattern = regexp.MustCompile(`^\d{5}$`)

type Handler struct {
	config       *Config
	service      *benchmark.Service
	validator    *validation.Validator
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, service *benchmark.Service, validator *validation.Validator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		service:      service,
		validator:    validator,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
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

// Execute looks up the benchmark. Enrichment failures never fail the job;
// they only yield an unavailable benchmark.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var result *models.BenchmarkResult
	if h.service != nil {
		result = h.service.GetLocalBenchmarks(ctx, input.PostalCode, input.CurrentRating, input.TargetRating, input.SubjectCostPerSqm)
	}
	metrics.ObserveBenchmark(result != nil)

	output := &Output{Benchmark: result, Available: result != nil}
	if result != nil {
		h.logger.Info("benchmark computed", map[string]interface{}{
			"postalCode": input.PostalCode,
			"sampleSize": result.SampleSize,
			"status":     result.Status,
		})
	}
	return output, nil
}

func validateInput(input *Input) error {
	if input == nil {
		return errors.NewInvalidJobVariablesError("input cannot be nil")
	}
	if !postalCodePattern.MatchString(input.PostalCode) {
		return errors.NewValidationError("postalCode", "must be a 5-digit postal code")
	}
	if !input.CurrentRating.Valid() {
		return errors.NewValidationError("currentRating", "must be a rating between A and G")
	}
	if !input.TargetRating.Valid() {
		return errors.NewValidationError("targetRating", "must be a rating between A and G")
	}
	if input.SubjectCostPerSqm < 0 {
		return errors.NewValidationError("subjectCostPerSqm", "must not be negative")
	}
	return nil
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
