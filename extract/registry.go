package extract

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/richinsley/comfyparams/graphapi"
)

var ErrUnknownProcessor = errors.New("no processor registered for node type")

// Processor computes the output of a single workflow node.
// A nil value means the node produced nothing usable.
type Processor interface {
	Compute(ev *Evaluator) (interface{}, error)
}

// ProcessorFactory creates the Processor for one node of a workflow.
type ProcessorFactory func(id string, node *graphapi.Node, wf *graphapi.Workflow) Processor

// Registry maps node type names to processor factories.
// It is filled before parsing starts and only read while workflows are evaluated.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProcessorFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]ProcessorFactory),
	}
}

// DefaultRegistry creates a registry holding the built-in processors.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}

// Register stores factory under typeName, replacing any earlier registration.
func (r *Registry) Register(typeName string, factory ProcessorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeName] = factory
}

// Lookup returns the factory for typeName. Unknown types are a normal outcome.
func (r *Registry) Lookup(typeName string) (ProcessorFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, exists := r.factories[typeName]
	return factory, exists
}

// Alias registers name with the factory currently registered for target.
func (r *Registry) Alias(name, target string) error {
	factory, ok := r.Lookup(target)
	if !ok {
		return fmt.Errorf("alias %q: %w %q", name, ErrUnknownProcessor, target)
	}
	r.Register(name, factory)
	return nil
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	retv := make([]string, 0, len(r.factories))
	for k := range r.factories {
		retv = append(retv, k)
	}
	sort.Strings(retv)
	return retv
}
