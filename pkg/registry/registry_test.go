package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin(t *testing.T) {
	reg, err := Builtin()
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	for _, taskType := range []string{"generate-diagnostic", "get-local-benchmarks", "build-profile-matrix"} {
		a, ok := reg.Find(taskType)
		require.True(t, ok, taskType)
		assert.NotEmpty(t, a.InputSchema)
		assert.Equal(t, 0, a.Retries)
	}

	_, ok := reg.Find("query-postgresql")
	assert.False(t, ok)
}

func TestValidate_Rejects(t *testing.T) {
	valid := func() *ActivityRegistry {
		return &ActivityRegistry{Activities: []Activity{{
			ID:       "diagnostic.profile.matrix",
			TaskType: "build-profile-matrix",
			Timeout:  "5s",
		}}}
	}

	tests := []struct {
		name   string
		mutate func(r *ActivityRegistry)
		errMsg string
	}{
		{"empty", func(r *ActivityRegistry) { r.Activities = nil }, "no activities"},
		{"bad id", func(r *ActivityRegistry) { r.Activities[0].ID = "BuildMatrix" }, "domain.subdomain.action"},
		{"duplicate id", func(r *ActivityRegistry) {
			dup := r.Activities[0]
			dup.TaskType = "other"
			r.Activities = append(r.Activities, dup)
		}, "duplicate activity ID"},
		{"duplicate task type", func(r *ActivityRegistry) {
			dup := r.Activities[0]
			dup.ID = "diagnostic.profile.other"
			r.Activities = append(r.Activities, dup)
		}, "duplicate task type"},
		{"missing task type", func(r *ActivityRegistry) { r.Activities[0].TaskType = "" }, "missing taskType"},
		{"bad timeout", func(r *ActivityRegistry) { r.Activities[0].Timeout = "soon" }, "invalid timeout"},
		{"negative retries", func(r *ActivityRegistry) { r.Activities[0].Retries = -1 }, "retries"},
		{"bad schema", func(r *ActivityRegistry) {
			r.Activities[0].InputSchema = map[string]interface{}{"type": 42}
		}, "invalid input schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := valid()
			require.NoError(t, reg.Validate())
			tt.mutate(reg)

			err := reg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoadRegistry(t *testing.T) {
	reg, err := Builtin()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "activity-registry.json")
	require.NoError(t, SaveRegistry(reg, path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, reg.Version, loaded.Version)
	assert.Len(t, loaded.Activities, len(reg.Activities))
	require.NoError(t, loaded.Validate())
}

func TestLoadRegistry_Errors(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Parse([]byte("{"))
	assert.Error(t, err)
}
