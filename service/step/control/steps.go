package control

import "github.com/renderflow/renderflow/extension"

// Steps returns the control family implementations bound to runner.
func Steps(runner extension.Runner, loopCeiling int) []extension.Step {
	return []extension.Step{
		NewSwitchStep(runner),
		NewWhileStep(runner, loopCeiling),
	}
}

// WorkflowSteps returns the workflow family, the sub workflow invocation.
func WorkflowSteps(runner extension.Runner) []extension.Step {
	return []extension.Step{
		NewInvokeStep(runner),
	}
}
