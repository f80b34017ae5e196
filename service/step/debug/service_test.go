package debug

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/renderflow/renderflow/ctxlog"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogExpandsMessage(t *testing.T) {
	var buffer bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buffer, nil))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	step := &LogStep{}
	state := execution.NewContextWith(map[string]interface{}{"scene_id": "abc"})
	def := &model.StepDefinition{
		Type:       step.TypeID(),
		Parameters: map[string]interface{}{"message": "created $scene_id"},
	}
	require.NoError(t, step.Execute(ctx, def, state))
	assert.Contains(t, buffer.String(), "created abc")
	assert.Contains(t, buffer.String(), "component=debug")
}

func TestAssertMatch(t *testing.T) {
	step := &AssertStep{}
	state := execution.NewContextWith(map[string]interface{}{
		"actual":   []byte{1, 2, 3},
		"expected": []byte{1, 2, 3},
	})
	def := &model.StepDefinition{
		Type:   step.TypeID(),
		Inputs: map[string]string{"actual": "actual", "expected": "expected"},
	}
	assert.NoError(t, step.Execute(context.Background(), def, state))
}

func TestAssertMismatchCarriesDiff(t *testing.T) {
	step := &AssertStep{}
	state := execution.NewContextWith(map[string]interface{}{
		"actual":   "line one\nline two\n",
		"expected": "line one\nline 2\n",
	})
	def := &model.StepDefinition{
		Type:   step.TypeID(),
		Inputs: map[string]string{"actual": "actual", "expected": "expected"},
	}
	err := step.Execute(context.Background(), def, state)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrData))
	assert.Contains(t, err.Error(), "-line 2")
	assert.Contains(t, err.Error(), "+line two")
}
