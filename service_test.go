package renderflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/renderflow/renderflow/graphics"
	"github.com/renderflow/renderflow/graphics/memdev"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/service/step/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

func memoryDevice(device *memdev.Device) Option {
	return WithDeviceProvider(func(ctx context.Context) (graphics.Device, error) {
		return device, nil
	})
}

func TestRunSceneCreate(t *testing.T) {
	srv := New()
	workflow := model.New("create_scene")
	workflow.AddStep(&model.StepDefinition{
		ID:      "create",
		Type:    "scene.create",
		Outputs: map[string]string{"scene_id": "scene_id"},
	})
	require.NoError(t, srv.Upsert("demo", workflow))

	state := execution.NewContext()
	process, err := srv.Run(context.Background(), "demo", "create_scene", state)
	require.NoError(t, err)
	assert.Equal(t, execution.StateCompleted, process.State)

	first, err := state.String("scene_id")
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	// a second run on a fresh context yields a different id
	other := execution.NewContext()
	_, err = srv.Run(context.Background(), "demo", "create_scene", other)
	require.NoError(t, err)
	second, _ := other.String("scene_id")
	assert.NotEqual(t, first, second)
}

func TestRunRenderPipeline(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	require.NoError(t, fs.Upload(ctx, "mem://localhost/assets/quad.vert.wgsl", file.DefaultFileOsMode,
		strings.NewReader("@vertex fn vs_main() {}")))
	require.NoError(t, fs.Upload(ctx, "mem://localhost/assets/quad.frag.wgsl", file.DefaultFileOsMode,
		strings.NewReader("@fragment fn fs_main() {}")))

	device := memdev.New()
	srv := New(memoryDevice(device))

	workflow := model.New("render_quad")
	workflow.AddStep(&model.StepDefinition{
		ID:      "acquire",
		Type:    "graphics.device.acquire",
		Outputs: map[string]string{"device": "gpu.device"},
	})
	workflow.AddStep(&model.StepDefinition{
		ID:   "vs",
		Type: "graphics.gpu.shader.compile",
		Parameters: map[string]interface{}{
			"shader_path": "mem://localhost/assets/quad.vert.wgsl",
			"stage":       "vertex",
			"output_key":  "shader.vs",
		},
	})
	workflow.AddStep(&model.StepDefinition{
		ID:   "fs",
		Type: "graphics.gpu.shader.compile",
		Parameters: map[string]interface{}{
			"shader_path": "mem://localhost/assets/quad.frag.wgsl",
			"stage":       "fragment",
			"output_key":  "shader.fs",
		},
	})
	workflow.AddStep(&model.StepDefinition{
		ID:      "pipeline",
		Type:    "graphics.gpu.pipeline.create",
		Inputs:  map[string]string{"vertex_shader": "shader.vs", "fragment_shader": "shader.fs"},
		Outputs: map[string]string{"pipeline": "pipeline.main"},
		Parameters: map[string]interface{}{
			"vertex_format": "position_color",
		},
	})
	workflow.AddStep(&model.StepDefinition{
		ID:      "quad",
		Type:    "geometry.create.quad",
		Outputs: map[string]string{"vertex_data": "mesh.vertices", "index_data": "mesh.indices"},
	})
	workflow.AddStep(&model.StepDefinition{
		ID:      "upload",
		Type:    "graphics.buffer.upload",
		Inputs:  map[string]string{"vertex_data": "mesh.vertices", "index_data": "mesh.indices"},
		Outputs: map[string]string{"vertex_buffer": "mesh.vb", "index_buffer": "mesh.ib"},
	})
	require.NoError(t, srv.Upsert("demo", workflow))

	state := execution.NewContext()
	process, err := srv.Run(ctx, "demo", "render_quad", state)
	require.NoError(t, err)
	require.NoError(t, process.Err)
	assert.Equal(t, execution.StateCompleted, process.State)

	// shaders were consumed by the pipeline, buffers survive
	assert.False(t, state.Contains("shader.vs"))
	assert.True(t, state.Contains("pipeline.main"))

	vb, ok := state.Lookup("mesh.vb")
	require.True(t, ok)
	staged, err := state.Bytes("mesh.vertices")
	require.NoError(t, err)
	stored, err := device.BufferData(vb.(graphics.Handle))
	require.NoError(t, err)
	assert.Equal(t, staged, stored, "upload round trip is byte identical")
}

func TestRunFailureAttribution(t *testing.T) {
	srv := New()
	workflow := model.New("broken")
	workflow.AddStep(&model.StepDefinition{
		ID:      "create",
		Type:    "scene.create",
		Outputs: map[string]string{"scene_id": "scene_id"},
	})
	workflow.AddStep(&model.StepDefinition{
		ID:   "pipeline",
		Type: "graphics.gpu.pipeline.create",
		// fragment_shader missing
		Inputs:  map[string]string{"vertex_shader": "shader.vs"},
		Outputs: map[string]string{"pipeline": "pipeline.main"},
	})
	require.NoError(t, srv.Upsert("demo", workflow))

	state := execution.NewContext()
	process, err := srv.Run(context.Background(), "demo", "broken", state)
	require.NoError(t, err)
	assert.Equal(t, execution.StateFailed, process.State)
	assert.Equal(t, "graphics.gpu.pipeline.create", process.FailedType)
	assert.Equal(t, 1, process.FailedPosition)
	assert.True(t, errors.Is(process.Err, &types.Error{Kind: types.KindConfiguration, Reason: types.ReasonMissingInput, Subject: "fragment_shader"}))
	assert.False(t, state.Contains("pipeline.main"))
}

func TestRunLoopCeiling(t *testing.T) {
	srv := New()

	body := model.New("body")
	body.AddStep(&model.StepDefinition{
		ID:         "tick",
		Type:       "debug.log",
		Parameters: map[string]interface{}{"message": "iteration $loop.iteration"},
	})
	require.NoError(t, srv.Upsert("demo", body))

	loop := model.New("spin")
	loop.AddStep(&model.StepDefinition{
		ID:   "loop",
		Type: "control.loop.while",
		Parameters: map[string]interface{}{
			"package":        "demo",
			"workflow":       "body",
			"max_iterations": 100,
		},
		Inputs: map[string]string{"condition": "run"},
	})
	require.NoError(t, srv.Upsert("demo", loop))

	state := execution.NewContextWith(map[string]interface{}{"run": true})
	process, err := srv.Run(context.Background(), "demo", "spin", state)
	require.NoError(t, err)
	assert.Equal(t, execution.StateFailed, process.State)
	assert.True(t, errors.Is(process.Err, &types.Error{Kind: types.KindControlFlow, Reason: types.ReasonLoopOverrun}))

	// the last iteration the body observed is ceiling-1
	last, intErr := state.Int("loop.iteration")
	require.NoError(t, intErr)
	assert.Equal(t, 99, last)
}

func TestRunSwitchDispatch(t *testing.T) {
	srv := New()
	workflow := model.New("dispatch")
	workflow.AddStep(&model.StepDefinition{
		ID:   "switch",
		Type: "control.condition.switch",
		Parameters: map[string]interface{}{
			"cases": map[string]interface{}{
				"wide": []interface{}{
					map[string]interface{}{
						"type":       "value.set",
						"parameters": map[string]interface{}{"value": 1920},
						"outputs":    map[string]interface{}{"value": "width"},
					},
				},
			},
			"default": []interface{}{
				map[string]interface{}{
					"type":       "value.set",
					"parameters": map[string]interface{}{"value": 640},
					"outputs":    map[string]interface{}{"value": "width"},
				},
			},
		},
		Inputs: map[string]string{"value": "mode"},
	})
	require.NoError(t, srv.Upsert("demo", workflow))

	state := execution.NewContextWith(map[string]interface{}{"mode": "wide"})
	process, err := srv.Run(context.Background(), "demo", "dispatch", state)
	require.NoError(t, err)
	require.NoError(t, process.Err)
	width, _ := state.Int("width")
	assert.Equal(t, 1920, width)

	fallback := execution.NewContextWith(map[string]interface{}{"mode": "other"})
	_, err = srv.Run(context.Background(), "demo", "dispatch", fallback)
	require.NoError(t, err)
	width, _ = fallback.Int("width")
	assert.Equal(t, 640, width)
}

func TestRunInputCombine(t *testing.T) {
	srv := New()
	workflow := model.New("combine")
	workflow.AddStep(&model.StepDefinition{ID: "axes", Type: "input.axis.combine"})
	workflow.AddStep(&model.StepDefinition{ID: "buttons", Type: "input.button.combine"})
	require.NoError(t, srv.Upsert("demo", workflow))

	state := execution.NewContextWith(map[string]interface{}{
		input.ConfigKey: &input.AggregationConfig{
			InputBindings: input.Bindings{
				Axes: map[string]input.Binding{
					"move_x": {
						Sources: []input.Source{
							{Type: "key", Key: "d"},
							{Type: "key", Key: "a", Scale: -1},
						},
						Outputs: []string{"player.move_x"},
					},
				},
				Buttons: map[string]input.Binding{
					"jump": {
						Sources: []input.Source{{Type: "key", Key: "space"}},
						Outputs: []string{"player.jump"},
					},
				},
			},
		},
		input.KeyboardStateKey: map[string]interface{}{"d": true, "space": true},
	})
	process, err := srv.Run(context.Background(), "demo", "combine", state)
	require.NoError(t, err)
	require.NoError(t, process.Err)

	moveX, err := state.Float("player.move_x")
	require.NoError(t, err)
	assert.Equal(t, 1.0, moveX)
	jump, err := state.Bool("player.jump")
	require.NoError(t, err)
	assert.True(t, jump)
}

func TestUpsertRejectsInvalidWorkflow(t *testing.T) {
	srv := New()
	require.Error(t, srv.Upsert("demo", nil))

	err := srv.Upsert("demo", model.New(""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfiguration))

	missingType := model.New("broken").AddStep(&model.StepDefinition{ID: "a"})
	require.Error(t, srv.Upsert("demo", missingType))
}

func TestRunUnknownWorkflow(t *testing.T) {
	srv := New()
	_, err := srv.Run(context.Background(), "demo", "ghost", execution.NewContext())
	require.Error(t, err)
	assert.True(t, errors.Is(err, &types.Error{Kind: types.KindControlFlow, Reason: types.ReasonWorkflowNotFound}))
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig()
	assert.NoError(t, config.Validate())

	config.Device = "quantum"
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.LoopCeiling = -1
	assert.Error(t, config.Validate())
}
