package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/double_input.yaml")
	require.NoError(t, err)

	assert.Equal(t, "double_input", s.Name)
	assert.Equal(t, filepath.Join("testdata", "programs", "double.cue"), s.Program, "program resolved relative to the scenario")
	require.NotNil(t, s.Seed)
	assert.Equal(t, uint64(42), *s.Seed)
	assert.Equal(t, []any{1, 2.5, -0.25}, s.Inputs["x"])
	require.Len(t, s.Assertions, 3)
	assert.Equal(t, AssertTraceOrder, s.Assertions[2].Type)
}

func TestLoadScenario_ExpectedError(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/out_of_bounds.yaml")
	require.NoError(t, err)
	require.NotNil(t, s.Expect)
	assert.Equal(t, "OutOfBounds", s.Expect.Error)
	assert.Equal(t, "main#1", s.Expect.Path)
	assert.Empty(t, s.Assertions)
}

func TestLoadScenario_UnknownField(t *testing.T) {
	_, err := LoadScenario("testdata/invalid/unknown_field.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.Contains(t, err.Error(), "assertion")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	prog, err := filepath.Abs("testdata/programs/load_index.cue")
	require.NoError(t, err)
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("program: "+prog+"\n"+body), 0o644))
	return path
}

func TestLoadScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing name", "description: d\nassertions: [{type: stats, stats: {statements: 1}}]\n", "name is required"},
		{"missing description", "name: n\nassertions: [{type: stats, stats: {statements: 1}}]\n", "description is required"},
		{"no assertions", "name: n\ndescription: d\n", "assertions list is required"},
		{"negative parallelism", "name: n\ndescription: d\nparallelism: -1\nassertions: [{type: stats, stats: {statements: 1}}]\n", "parallelism must be non-negative"},
		{"expect without error", "name: n\ndescription: d\nexpect: {path: main}\n", "expect: error is required"},
		{"expect and assertions", "name: n\ndescription: d\nexpect: {error: OutOfBounds}\nassertions: [{type: stats, stats: {statements: 1}}]\n", "cannot be combined"},
		{"unknown type", "name: n\ndescription: d\nassertions: [{type: final_state}]\n", `unknown assertion type "final_state"`},
		{"buffer_equals without buffer", "name: n\ndescription: d\nassertions: [{type: buffer_equals}]\n", "buffer is required"},
		{"buffer_one_of without values", "name: n\ndescription: d\nassertions: [{type: buffer_one_of, buffer: r}]\n", "values list is required"},
		{"unknown counter", "name: n\ndescription: d\nassertions: [{type: stats, stats: {cycles: 1}}]\n", `unknown counter "cycles"`},
		{"trace_count without kind", "name: n\ndescription: d\nassertions: [{type: trace_count, count: 1}]\n", "kind is required"},
		{"trace_order without kinds", "name: n\ndescription: d\nassertions: [{type: trace_order}]\n", "kinds list is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_ProgramNotFound(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: n
description: d
program: missing.cue
assertions: [{type: stats, stats: {statements: 1}}]
`), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "program file not found")
}
