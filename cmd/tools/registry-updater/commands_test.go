package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copro-diagnostic/pkg/registry"
)

func exportToTemp(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "configs", "activity-registry.json")
	require.NoError(t, exportRegistry(path))
	return path
}

func TestListActivities(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, listActivities(&buf, ""))

	out := buf.String()
	assert.Contains(t, out, "TASK TYPE")
	assert.Contains(t, out, "generate-diagnostic")
	assert.Contains(t, out, "get-local-benchmarks")
	assert.Contains(t, out, "build-profile-matrix")
}

func TestValidateRegistry(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, validateRegistry(&buf, ""))
	assert.Contains(t, buf.String(), "Found 3 activities")

	buf.Reset()
	require.NoError(t, validateRegistry(&buf, exportToTemp(t)))

	assert.Error(t, validateRegistry(&buf, filepath.Join(t.TempDir(), "missing.json")))
}

func TestUpdateActivity(t *testing.T) {
	path := exportToTemp(t)

	require.NoError(t, updateActivity(path, "diagnostic.market.benchmark", "timeout", "8s"))
	require.NoError(t, updateActivity(path, "diagnostic.market.benchmark", "retries", "2"))

	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	a, ok := reg.Find("get-local-benchmarks")
	require.True(t, ok)
	assert.Equal(t, "8s", a.Timeout)
	assert.Equal(t, 2, a.Retries)
	assert.NotEmpty(t, reg.LastUpdated)
}

func TestUpdateActivity_Errors(t *testing.T) {
	path := exportToTemp(t)

	tests := []struct {
		name   string
		id     string
		field  string
		value  string
		errMsg string
	}{
		{"unknown activity", "diagnostic.market.other", "timeout", "8s", "not found"},
		{"unknown field", "diagnostic.market.benchmark", "owner", "x", "unknown field"},
		{"bad retries", "diagnostic.market.benchmark", "retries", "many", "invalid retries"},
		{"negative retries", "diagnostic.market.benchmark", "retries", "-1", "retries must be >= 0"},
		{"bad timeout", "diagnostic.market.benchmark", "timeout", "soon", "invalid timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := updateActivity(path, tt.id, tt.field, tt.value)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	a, _ := reg.Find("get-local-benchmarks")
	assert.Equal(t, "5s", a.Timeout)
}
