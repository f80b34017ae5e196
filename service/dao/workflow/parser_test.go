package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStepsForm(t *testing.T) {
	workflow, err := Parse([]byte(`
name: render
steps:
  - id: quad
    type: geometry.create.quad
    parameters:
      size: 2
    outputs:
      vertex_data: mesh.vertices
      index_data: mesh.indices
  - id: upload
    type: graphics.buffer.upload
    inputs:
      vertex_data: mesh.vertices
      index_data: mesh.indices
    outputs:
      vertex_buffer: mesh.vb
      index_buffer: mesh.ib
`))
	require.NoError(t, err)
	assert.Equal(t, "render", workflow.Name)
	require.Len(t, workflow.Steps, 2)
	assert.Equal(t, "geometry.create.quad", workflow.Steps[0].Type)
	assert.Equal(t, 2, workflow.Steps[0].IntParameter("size", 0))
	assert.Equal(t, "mesh.vertices", workflow.Steps[1].Inputs["vertex_data"])
}

func TestParseJSONDocument(t *testing.T) {
	workflow, err := Parse([]byte(`{"name":"j","steps":[{"id":"a","type":"debug.log","parameters":{"message":"hi"}}]}`))
	require.NoError(t, err)
	require.Len(t, workflow.Steps, 1)
	assert.Equal(t, "debug.log", workflow.Steps[0].Type)
}

func TestParseNodesForm(t *testing.T) {
	testCases := []struct {
		description string
		document    string
		expectOrder []string
		expectError bool
	}{
		{
			description: "object connections with name references",
			document: `
name: graph
nodes:
  - id: n2
    name: Log
    plugin: debug.log
  - id: n1
    name: Create
    plugin: scene.create
connections:
  Create:
    main:
      "0":
        - node: Log
`,
			expectOrder: []string{"n1", "n2"},
		},
		{
			description: "array connections",
			document: `
name: graph
nodes:
  - id: a
    type: scene.create
  - id: b
    type: debug.log
connections:
  a:
    main:
      - - node: b
`,
			expectOrder: []string{"a", "b"},
		},
		{
			description: "cycle fails",
			document: `
name: graph
nodes:
  - id: a
    type: scene.create
  - id: b
    type: debug.log
connections:
  a:
    main:
      - - node: b
  b:
    main:
      - - node: a
`,
			expectError: true,
		},
		{
			description: "unknown node fails",
			document: `
name: graph
nodes:
  - id: a
    type: scene.create
connections:
  a:
    main:
      - - node: ghost
`,
			expectError: true,
		},
		{
			description: "both forms at once fails",
			document: `
name: graph
steps:
  - type: debug.log
nodes:
  - id: a
    type: scene.create
`,
			expectError: true,
		},
	}

	for _, testCase := range testCases {
		workflow, err := Parse([]byte(testCase.document))
		if testCase.expectError {
			assert.Error(t, err, testCase.description)
			continue
		}
		require.NoError(t, err, testCase.description)
		var order []string
		for _, step := range workflow.Steps {
			order = append(order, step.ID)
		}
		assert.Equal(t, testCase.expectOrder, order, testCase.description)
	}
}
