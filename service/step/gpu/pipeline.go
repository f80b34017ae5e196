package gpu

import (
	"context"

	"github.com/renderflow/renderflow/ctxlog"
	"github.com/renderflow/renderflow/graphics"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/stepio"
)

// pipelineParams carries the static pipeline configuration. Defaults are
// applied before binding so absent keys keep them.
type pipelineParams struct {
	Label          string  `json:"label,omitempty"`
	VertexFormat   string  `json:"vertex_format,omitempty"`
	DepthTest      bool    `json:"depth_test,omitempty"`
	DepthWrite     bool    `json:"depth_write,omitempty"`
	HasDepth       bool    `json:"has_depth,omitempty"`
	CullMode       string  `json:"cull_mode,omitempty"`
	DepthBias      float64 `json:"depth_bias,omitempty"`
	DepthBiasSlope float64 `json:"depth_bias_slope,omitempty"`
	ColorFormat    string  `json:"color_format,omitempty"`
	DepthFormat    string  `json:"depth_format,omitempty"`
	ColorTargets   int     `json:"color_targets,omitempty"`
	ReleaseShaders *bool   `json:"release_shaders,omitempty"`
}

// PipelineStep combines a vertex and a fragment shader into a render
// pipeline. Both shader input ports resolve before any context mutation
// or device call, so a definition missing one fails without side
// effects. By default the consumed shader objects are released and their
// context keys removed once the pipeline exists.
type PipelineStep struct{}

// TypeID implements extension.Step.
func (s *PipelineStep) TypeID() string { return "graphics.gpu.pipeline.create" }

// Execute implements extension.Step.
func (s *PipelineStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	vertexKey, err := stepio.RequiredInput(def, "vertex_shader")
	if err != nil {
		return err
	}
	fragmentKey, err := stepio.RequiredInput(def, "fragment_shader")
	if err != nil {
		return err
	}
	outputKey, err := stepio.RequiredOutput(def, "pipeline")
	if err != nil {
		return err
	}
	params := pipelineParams{
		VertexFormat: string(graphics.VertexLayoutNone),
		DepthWrite:   true,
		CullMode:     "back",
		ColorTargets: 1,
	}
	if err := stepio.Bind(def.Parameters, &params); err != nil {
		return err
	}
	vertexShader, err := handleAt(state, vertexKey, graphics.KindShader)
	if err != nil {
		return err
	}
	fragmentShader, err := handleAt(state, fragmentKey, graphics.KindShader)
	if err != nil {
		return err
	}
	device, err := deviceFrom(def, state)
	if err != nil {
		return err
	}
	pipeline, err := device.CreatePipeline(&graphics.PipelineDescriptor{
		Label:          params.Label,
		VertexShader:   vertexShader,
		FragmentShader: fragmentShader,
		VertexLayout:   graphics.VertexLayout(params.VertexFormat),
		DepthTest:      params.DepthTest,
		DepthWrite:     params.DepthWrite,
		HasDepth:       params.HasDepth,
		CullMode:       params.CullMode,
		DepthBias:      params.DepthBias,
		DepthBiasSlope: params.DepthBiasSlope,
		ColorFormat:    params.ColorFormat,
		DepthFormat:    params.DepthFormat,
		ColorTargets:   params.ColorTargets,
	})
	if err != nil {
		return types.NewResourceError(types.ReasonDeviceCreate, def.Type, err)
	}
	state.Set(outputKey, pipeline)

	releaseShaders := true
	if params.ReleaseShaders != nil {
		releaseShaders = *params.ReleaseShaders
	}
	if releaseShaders {
		if err := device.Release(vertexShader); err != nil {
			return err
		}
		if err := device.Release(fragmentShader); err != nil {
			return err
		}
		state.Remove(vertexKey)
		state.Remove(fragmentKey)
	}
	ctxlog.From(ctx).Debug("pipeline created",
		"component", "graphics",
		"operation", "pipeline.create",
		"detail", params.Label,
		"release_shaders", releaseShaders)
	return nil
}
