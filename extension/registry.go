package extension

import (
	"sort"
	"sync"

	"github.com/renderflow/renderflow/model/types"
	"github.com/viant/x"
)

// Registry maps step type identifiers to implementations for one workflow
// run. The registrar builds it with exactly the steps the run references.
// Runs sharing a registry only read it, the mutex guards concurrent
// builds against lookups.
type Registry struct {
	types *Types
	steps map[string]Step
	mux   sync.RWMutex
}

// Types returns the data type registry.
func (r *Registry) Types() *Types {
	return r.types
}

// Register adds a step implementation. Re-registering the identical
// implementation is a no-op; a different implementation under an existing
// type id is a configuration error.
func (r *Registry) Register(step Step) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	id := step.TypeID()
	if existing, ok := r.steps[id]; ok {
		if existing == step {
			return nil
		}
		return types.NewDuplicateStepError(id)
	}
	r.steps[id] = step
	return nil
}

// Lookup returns the step registered under typeID.
func (r *Registry) Lookup(typeID string) (Step, bool) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	step, ok := r.steps[typeID]
	return step, ok
}

// TypeIDs returns all registered type identifiers in lexical order.
func (r *Registry) TypeIDs() []string {
	r.mux.RLock()
	defer r.mux.RUnlock()
	ret := make([]string, 0, len(r.steps))
	for id := range r.steps {
		ret = append(ret, id)
	}
	sort.Strings(ret)
	return ret
}

// NewRegistry creates an empty registry, optionally seeding data types.
func NewRegistry(goTypes ...*x.Type) *Registry {
	ret := &Registry{
		types: NewTypes(),
		steps: make(map[string]Step),
	}
	for _, t := range goTypes {
		if t != nil {
			ret.types.Register(t)
		}
	}
	return ret
}
