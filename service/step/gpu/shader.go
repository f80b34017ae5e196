package gpu

import (
	"context"
	"path"
	"strings"

	"github.com/renderflow/renderflow/ctxlog"
	"github.com/renderflow/renderflow/graphics"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/stepio"
	"github.com/viant/afs"
)

// CompileStep loads shader source from a URL and creates a shader object
// on the device. The handle lands under the output_key parameter
// (default compiled_shader) and its metadata under <output_key>_info.
type CompileStep struct {
	fs afs.Service
}

// NewCompileStep creates the shader compile step.
func NewCompileStep() *CompileStep {
	return &CompileStep{fs: afs.New()}
}

// TypeID implements extension.Step.
func (s *CompileStep) TypeID() string { return "graphics.gpu.shader.compile" }

// Execute implements extension.Step.
func (s *CompileStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	shaderPath, err := s.shaderPath(def, state)
	if err != nil {
		return err
	}
	stage, err := shaderStage(def.StringParameter("stage", "vertex"))
	if err != nil {
		return err
	}
	device, err := deviceFrom(def, state)
	if err != nil {
		return err
	}
	code, err := s.fs.DownloadWithURL(ctx, shaderPath)
	if err != nil {
		return types.NewResourceError(types.ReasonResourceLoad, shaderPath, err)
	}
	format := def.StringParameter("format", inferFormat(shaderPath))
	desc := &graphics.ShaderDescriptor{
		Label:          def.StringParameter("label", path.Base(shaderPath)),
		Stage:          stage,
		Format:         format,
		Code:           code,
		EntryPoint:     def.StringParameter("entrypoint", "main"),
		UniformBuffers: def.IntParameter("num_uniform_buffers", 0),
		Samplers:       def.IntParameter("num_samplers", 0),
	}
	handle, err := device.CreateShader(desc)
	if err != nil {
		return types.NewResourceError(types.ReasonDeviceCreate, shaderPath, err)
	}
	outputKey := def.StringParameter("output_key", "compiled_shader")
	state.Set(outputKey, handle)
	state.Set(outputKey+"_info", &graphics.ShaderInfo{
		Stage:      stage.String(),
		Format:     format,
		CodeSize:   len(code),
		EntryPoint: desc.EntryPoint,
	})
	ctxlog.From(ctx).Debug("shader compiled",
		"component", "graphics",
		"operation", "shader.compile",
		"detail", shaderPath,
		"stage", stage.String(),
		"bytes", len(code))
	return nil
}

func (s *CompileStep) shaderPath(def *model.StepDefinition, state *execution.Context) (string, error) {
	if value := def.StringParameter("shader_path", ""); value != "" {
		return value, nil
	}
	key, err := stepio.RequiredInput(def, "shader_path")
	if err != nil {
		return "", err
	}
	return state.String(key)
}

func shaderStage(name string) (graphics.ShaderStage, error) {
	switch name {
	case "vertex":
		return graphics.StageVertex, nil
	case "fragment":
		return graphics.StageFragment, nil
	}
	return 0, types.NewConfigurationError(types.ReasonInvalidParameter, "stage", "shader stage must be vertex or fragment, got "+name)
}

func inferFormat(shaderPath string) string {
	switch strings.ToLower(path.Ext(shaderPath)) {
	case ".wgsl":
		return "wgsl"
	case ".spv", ".spirv":
		return "spirv"
	}
	return "spirv"
}
