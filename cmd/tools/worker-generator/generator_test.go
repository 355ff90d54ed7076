package main

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copro-diagnostic/pkg/registry"
)

func builtinActivity(t *testing.T, taskType string) registry.Activity {
	t.Helper()
	reg, err := registry.Builtin()
	require.NoError(t, err)
	a, ok := reg.Find(taskType)
	require.True(t, ok)
	return *a
}

func TestFields(t *testing.T) {
	got := fields(builtinActivity(t, "get-local-benchmarks").InputSchema)

	assert.Equal(t, []Field{
		{Name: "CurrentRating", GoType: "string", JSONName: "currentRating"},
		{Name: "PostalCode", GoType: "string", JSONName: "postalCode"},
		{Name: "SubjectCostPerSqm", GoType: "float64", JSONName: "subjectCostPerSqm"},
		{Name: "TargetRating", GoType: "string", JSONName: "targetRating"},
	}, got)

	out := fields(builtinActivity(t, "get-local-benchmarks").OutputSchema)
	require.Len(t, out, 2)
	assert.Equal(t, "bool", out[0].GoType)
	// ["object", "null"]
	assert.Equal(t, "interface{}", out[1].GoType)
	assert.True(t, out[1].Optional)
}

func TestRender_ProducesValidGo(t *testing.T) {
	reg, err := registry.Builtin()
	require.NoError(t, err)

	for _, a := range reg.Activities {
		t.Run(a.TaskType, func(t *testing.T) {
			files, err := Render(a)
			require.NoError(t, err)
			require.Len(t, files, 3)

			fset := token.NewFileSet()
			for name, src := range files {
				f, err := parser.ParseFile(fset, name, src, 0)
				require.NoError(t, err, name)
				assert.Equal(t, packageName(a.TaskType), f.Name.Name)
			}
			assert.Contains(t, string(files["handler.go"]), `TaskType = "`+a.TaskType+`"`)
		})
	}
}

func TestRender_OptionalFields(t *testing.T) {
	files, err := Render(builtinActivity(t, "generate-diagnostic"))
	require.NoError(t, err)

	models := string(files["models.go"])
	assert.Contains(t, models, "`json:\"input\"`")
	assert.Contains(t, models, "`json:\"recordStats,omitempty\"`")
}

func TestGenerateAndMissing(t *testing.T) {
	root := t.TempDir()
	reg, err := registry.Builtin()
	require.NoError(t, err)

	assert.Len(t, Missing(root, reg), len(reg.Activities))

	a := builtinActivity(t, "build-profile-matrix")
	written, err := Generate(root, a)
	require.NoError(t, err)
	assert.Len(t, written, 3)

	dir := filepath.Join(root, "diagnostic", "build-profile-matrix")
	for _, name := range []string{"config.go", "models.go", "handler.go"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	assert.Len(t, Missing(root, reg), len(reg.Activities)-1)

	// existing files are never overwritten
	require.NoError(t, os.WriteFile(filepath.Join(dir, "handler.go"), []byte("package buildprofilematrix\n"), 0o644))
	written, err = Generate(root, a)
	require.NoError(t, err)
	assert.Empty(t, written)
	data, err := os.ReadFile(filepath.Join(dir, "handler.go"))
	require.NoError(t, err)
	assert.Equal(t, "package buildprofilematrix\n", string(data))
}

func TestMissing_RepositoryWorkers(t *testing.T) {
	reg, err := registry.Builtin()
	require.NoError(t, err)
	assert.Empty(t, Missing(filepath.Join("..", "..", "..", "internal", "workers"), reg))
}
