package gpu

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/stepio"
)

// QuadStep emits the vertex and index bytes of a unit quad in the
// position_color layout (float3 position + unorm8x4 color, 16 byte
// stride), sized by the size parameter. It feeds buffer upload round
// trips without any external asset.
type QuadStep struct{}

// TypeID implements extension.Step.
func (s *QuadStep) TypeID() string { return "geometry.create.quad" }

// Execute implements extension.Step.
func (s *QuadStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	vertexOut, err := stepio.RequiredOutput(def, "vertex_data")
	if err != nil {
		return err
	}
	indexOut, err := stepio.RequiredOutput(def, "index_data")
	if err != nil {
		return err
	}
	half := float32(def.FloatParameter("size", 1.0) / 2)
	color := uint32(def.IntParameter("color", 0xFFFFFFFF))

	corners := [4][3]float32{
		{-half, -half, 0},
		{half, -half, 0},
		{-half, half, 0},
		{half, half, 0},
	}
	vertexData := make([]byte, 0, 4*16)
	for _, corner := range corners {
		for _, component := range corner {
			vertexData = binary.LittleEndian.AppendUint32(vertexData, math.Float32bits(component))
		}
		vertexData = binary.LittleEndian.AppendUint32(vertexData, color)
	}
	indexData := make([]byte, 0, 6*2)
	for _, index := range []uint16{0, 1, 2, 2, 1, 3} {
		indexData = binary.LittleEndian.AppendUint16(indexData, index)
	}
	state.Set(vertexOut, vertexData)
	state.Set(indexOut, indexData)
	return nil
}
