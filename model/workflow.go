package model

import (
	"fmt"

	"github.com/renderflow/renderflow/model/types"
)

// Workflow is a named, ordered list of step definitions. Workflows are
// immutable per load; the package store may cache them.
type Workflow struct {
	Name        string            `yaml:"name,omitempty" json:"name,omitempty"`
	Package     string            `yaml:"package,omitempty" json:"package,omitempty"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []*StepDefinition `yaml:"steps" json:"steps"`
}

// New creates a workflow with the supplied name.
func New(name string) *Workflow {
	return &Workflow{Name: name}
}

// AddStep appends a step definition and returns the workflow for chaining.
func (w *Workflow) AddStep(step *StepDefinition) *Workflow {
	w.Steps = append(w.Steps, step)
	return w
}

// Validate checks structural integrity: every step carries a type id and
// explicit step ids are unique.
func (w *Workflow) Validate() error {
	if w == nil {
		return types.NewConfigurationError(types.ReasonInvalidParameter, "workflow", "workflow is nil")
	}
	seen := make(map[string]bool, len(w.Steps))
	for i, step := range w.Steps {
		if step == nil {
			return types.NewConfigurationError(types.ReasonInvalidParameter, w.Name, fmt.Sprintf("step %v is nil", i))
		}
		if step.Type == "" {
			return types.NewConfigurationError(types.ReasonInvalidParameter, w.Name, fmt.Sprintf("step %v has no type", i))
		}
		if step.ID == "" {
			continue
		}
		if seen[step.ID] {
			return types.NewConfigurationError(types.ReasonInvalidParameter, w.Name, fmt.Sprintf("duplicate step id %q", step.ID))
		}
		seen[step.ID] = true
	}
	return nil
}
