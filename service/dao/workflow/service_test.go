package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

const stepsDocument = `
name: build
steps:
  - id: create
    type: scene.create
    outputs:
      scene_id: scene_id
  - id: log
    type: debug.log
    parameters:
      message: created $scene_id
`

func TestServiceLoad(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	baseURL := "mem://localhost/workflows"
	err := fs.Upload(ctx, baseURL+"/demo/build.yaml", file.DefaultFileOsMode, strings.NewReader(stepsDocument))
	require.NoError(t, err)

	service := New(WithBaseURL(baseURL), WithFS(fs))
	workflow, err := service.Load(ctx, "demo", "build")
	require.NoError(t, err)
	assert.Equal(t, "build", workflow.Name)
	assert.Equal(t, "demo", workflow.Package)
	require.Len(t, workflow.Steps, 2)
	assert.Equal(t, "scene.create", workflow.Steps[0].Type)
	assert.Equal(t, map[string]string{"scene_id": "scene_id"}, workflow.Steps[0].Outputs)

	// cache hit returns the same instance without re-reading the store
	again, err := service.Load(ctx, "demo", "build")
	require.NoError(t, err)
	assert.Same(t, workflow, again)
}

func TestServiceLoadMiss(t *testing.T) {
	service := New(WithBaseURL("mem://localhost/empty"))
	_, err := service.Load(context.Background(), "demo", "absent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, &types.Error{Kind: types.KindControlFlow, Reason: types.ReasonWorkflowNotFound}))
}

func TestServiceUpsert(t *testing.T) {
	service := New()
	workflow := model.New("inline")
	workflow.AddStep(&model.StepDefinition{ID: "log", Type: "debug.log"})
	require.NoError(t, service.Upsert("demo", workflow))

	loaded, err := service.Load(context.Background(), "demo", "inline")
	require.NoError(t, err)
	assert.Same(t, workflow, loaded)

	service.Evict("demo", "inline")
	_, err = service.Load(context.Background(), "demo", "inline")
	require.Error(t, err)
}

func TestServiceUpsertInvalid(t *testing.T) {
	service := New()
	assert.Error(t, service.Upsert("demo", nil))
	assert.Error(t, service.Upsert("demo", model.New("")))

	broken := model.New("broken")
	broken.AddStep(&model.StepDefinition{ID: "x"})
	assert.Error(t, service.Upsert("demo", broken))
}
