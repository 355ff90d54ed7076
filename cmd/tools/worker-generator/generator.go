package main

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"copro-diagnostic/pkg/registry"
)

// WorkerData holds data for templates
type WorkerData struct {
	Name         string
	PackageName  string
	TaskType     string
	Description  string
	Timeout      string
	InputFields  []Field
	OutputFields []Field
}

type Field struct {
	Name     string
	GoType   string
	JSONName string
	Optional bool
}

func packageName(taskType string) string {
	return strings.ReplaceAll(taskType, "-", "")
}

// WorkerDir is where the worker of a registry activity lives.
func WorkerDir(root string, a registry.Activity) string {
	return filepath.Join(root, strings.ToLower(a.Category), a.TaskType)
}

func goType(prop map[string]interface{}) string {
	switch prop["type"] {
	case "string":
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "object":
		return "map[string]interface{}"
	case "array":
		return "[]interface{}"
	}
	return "interface{}"
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// fields lists the top-level properties of an object schema in name order.
func fields(schema map[string]interface{}) []Field {
	props, _ := schema["properties"].(map[string]interface{})
	required := map[string]bool{}
	if req, ok := schema["required"].([]interface{}); ok {
		for _, r := range req {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Field, 0, len(names))
	for _, name := range names {
		prop, _ := props[name].(map[string]interface{})
		out = append(out, Field{
			Name:     upperFirst(name),
			GoType:   goType(prop),
			JSONName: name,
			Optional: !required[name],
		})
	}
	return out
}

func newWorkerData(a registry.Activity) WorkerData {
	timeout := a.Timeout
	if timeout == "" {
		timeout = "10s"
	}
	return WorkerData{
		Name:         a.DisplayName,
		PackageName:  packageName(a.TaskType),
		TaskType:     a.TaskType,
		Description:  a.Description,
		Timeout:      timeout,
		InputFields:  fields(a.InputSchema),
		OutputFields: fields(a.OutputSchema),
	}
}

// Render produces gofmt'ed config.go, models.go and handler.go for a.
func Render(a registry.Activity) (map[string][]byte, error) {
	data := newWorkerData(a)
	files := map[string]string{
		"config.go":  configTemplate,
		"models.go":  modelsTemplate,
		"handler.go": handlerTemplate,
	}

	out := make(map[string][]byte, len(files))
	for name, text := range files {
		tmpl, err := template.New(name).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("execute template %s: %w", name, err)
		}
		src, err := format.Source(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", name, err)
		}
		out[name] = src
	}
	return out, nil
}

// Generate writes the scaffold of a under root. Existing files are kept.
func Generate(root string, a registry.Activity) ([]string, error) {
	files, err := Render(a)
	if err != nil {
		return nil, err
	}

	dir := WorkerDir(root, a)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var written []string
	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, files[name], 0o644); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// Missing returns the activities without a handler.go under root.
func Missing(root string, reg *registry.ActivityRegistry) []registry.Activity {
	var missing []registry.Activity
	for _, a := range reg.Activities {
		if _, err := os.Stat(filepath.Join(WorkerDir(root, a), "handler.go")); err != nil {
			missing = append(missing, a)
		}
	}
	return missing
}

const configTemplate = `package {{ .PackageName }}

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	timeout, _ := time.ParseDuration("{{ .Timeout }}")
	return &Config{
		Timeout: timeout,
	}
}
`

const modelsTemplate = `package {{ .PackageName }}

type Input struct {
{{- range .InputFields }}
	{{ .Name }} {{ .GoType }} ` + "`" + `json:"{{ .JSONName }}{{ if .Optional }},omitempty{{ end }}"` + "`" + `
{{- end }}
}

type Output struct {
{{- range .OutputFields }}
	{{ .Name }} {{ .GoType }} ` + "`" + `json:"{{ .JSONName }}"` + "`" + `
{{- end }}
}
`

const handlerTemplate = `package {{ .PackageName }}

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"copro-diagnostic/internal/common/errors"
	"copro-diagnostic/internal/common/logger"
	"copro-diagnostic/internal/common/metrics"
	"copro-diagnostic/internal/common/validation"
)

const (
	TaskType = "{{ .TaskType }}"
)

// Handler runs {{ .Name }}: {{ .Description }}
type Handler struct {
	config       *Config
	validator    *validation.Validator
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, validator *validation.Validator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		validator:    validator,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()

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

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.failJob(client, job, start, err)
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
	}
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
	return &Output{}, nil
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, start time.Time, err error) {
	stdErr := errors.Normalize(err)
	metrics.ObserveJob(TaskType, start, string(stdErr.Code))
	h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
}
`
