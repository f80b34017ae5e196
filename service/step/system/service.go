// Package system implements the system family: local command execution
// and explicit run termination.
package system

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/renderflow/renderflow/ctxlog"
	"github.com/renderflow/renderflow/extension"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/stepio"
	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
	"github.com/viant/toolbox"
)

// defaultCommandTimeout bounds a single command when timeout_ms is unset.
const defaultCommandTimeout = time.Minute

// Steps returns the system family implementations.
func Steps() []extension.Step {
	return []extension.Step{
		&ExecStep{},
		&ExitStep{},
	}
}

// ExecStep runs shell commands on the local host through a lazily opened
// session shared across invocations.
type ExecStep struct {
	mux     sync.Mutex
	session *gosh.Service
}

// TypeID implements extension.Step.
func (s *ExecStep) TypeID() string { return "system.exec" }

// Execute implements extension.Step.
func (s *ExecStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	commands, err := s.commands(def, state)
	if err != nil {
		return err
	}
	outputKey := stepio.OptionalOutput(def, "output", "exec.output")
	statusKey := stepio.OptionalOutput(def, "status", "exec.status")
	session, err := s.getSession(ctx, def)
	if err != nil {
		return types.NewResourceError(types.ReasonResourceLoad, "session", err)
	}
	timeout := defaultCommandTimeout
	if ms := def.IntParameter("timeout_ms", 0); ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}
	abortOnError := def.BoolParameter("abort_on_error", true)
	logger := ctxlog.From(ctx)

	var combined strings.Builder
	status := 0
	for _, command := range commands {
		stdout, exitCode, err := session.Run(ctx, command, runner.WithTimeout(int(timeout.Milliseconds())))
		if stdout != "" {
			combined.WriteString(stdout)
			combined.WriteString("\n")
		}
		status = exitCode
		logger.Debug("command finished",
			"component", "system",
			"operation", "exec",
			"detail", command,
			"status", exitCode)
		if err != nil {
			state.Set(outputKey, strings.TrimSpace(combined.String()))
			state.Set(statusKey, status)
			return types.NewResourceError(types.ReasonResourceLoad, command, err)
		}
		if abortOnError && exitCode != 0 {
			state.Set(outputKey, strings.TrimSpace(combined.String()))
			state.Set(statusKey, status)
			return fmt.Errorf("command %q exited with status %v", command, exitCode)
		}
	}
	state.Set(outputKey, strings.TrimSpace(combined.String()))
	state.Set(statusKey, status)
	return nil
}

func (s *ExecStep) commands(def *model.StepDefinition, state *execution.Context) ([]string, error) {
	if raw, ok := def.Parameter("commands"); ok {
		items, ok := raw.([]interface{})
		if !ok {
			return nil, types.NewConfigurationError(types.ReasonInvalidParameter, "commands", "system.exec commands must be a list")
		}
		commands := make([]string, 0, len(items))
		for _, item := range items {
			commands = append(commands, toolbox.AsString(state.Expand(item)))
		}
		return commands, nil
	}
	if command := def.StringParameter("command", ""); command != "" {
		return []string{toolbox.AsString(state.Expand(command))}, nil
	}
	return nil, types.NewConfigurationError(types.ReasonInvalidParameter, "commands", "system.exec requires a command or commands parameter")
}

func (s *ExecStep) getSession(ctx context.Context, def *model.StepDefinition) (*gosh.Service, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.session != nil {
		return s.session, nil
	}
	var envOptions []runner.Option
	if raw, ok := def.Parameter("env"); ok {
		if pairs, ok := raw.(map[string]interface{}); ok {
			env := make(map[string]string, len(pairs))
			for k, v := range pairs {
				env[k] = toolbox.AsString(v)
			}
			envOptions = append(envOptions, runner.WithEnvironment(env))
		}
	}
	session, err := gosh.New(ctx, local.New(envOptions...))
	if err != nil {
		return nil, err
	}
	s.session = session
	return session, nil
}

// ExitStep records an explicit exit code; a non zero code fails the run.
type ExitStep struct{}

// TypeID implements extension.Step.
func (s *ExitStep) TypeID() string { return "system.exit" }

// Execute implements extension.Step.
func (s *ExitStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	code := def.IntParameter("code", 0)
	state.Set(stepio.OptionalOutput(def, "code", "exit.code"), code)
	if code != 0 {
		return types.NewDataError(types.ReasonInvalidParameter, "code", fmt.Sprintf("workflow exited with code %v", code))
	}
	return nil
}
