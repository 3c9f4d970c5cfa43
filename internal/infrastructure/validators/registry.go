package validators

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

// Entry configures one validator in the chain.
type Entry struct {
	Name          string
	FailClosed    bool
	DefaultLimit  int
	RequireStages bool
}

// Dependencies are the stores available to validator factories.
type Dependencies struct {
	Executions ports.ExecutionStore
	Quotas     ports.QuotaStore
	Locks      ports.LockStore
}

// Factory constructs a validator from its configuration entry.
type Factory func(entry Entry, deps Dependencies) (ports.PipelineValidator, error)

// Registry maps validator names to factories. It is created explicitly at
// startup; there is no package-level registry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("validator name is required")
	}
	if factory == nil {
		return fmt.Errorf("validator factory is nil for %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("validator %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// RegisterBuiltins registers every validator shipped with pipegate.
func (r *Registry) RegisterBuiltins() error {
	builtins := []struct {
		name    string
		factory Factory
	}{
		{NameDisabled, func(Entry, Dependencies) (ports.PipelineValidator, error) {
			return NewDisabled(), nil
		}},
		{NameStageGraph, func(entry Entry, _ Dependencies) (ports.PipelineValidator, error) {
			return NewStageGraph(entry.RequireStages), nil
		}},
		{NameLockout, func(entry Entry, deps Dependencies) (ports.PipelineValidator, error) {
			if deps.Locks == nil {
				return nil, fmt.Errorf("validator %q requires a lock store", NameLockout)
			}
			return NewLockout(deps.Locks, entry.FailClosed), nil
		}},
		{NameConcurrencyLimit, func(entry Entry, deps Dependencies) (ports.PipelineValidator, error) {
			if deps.Executions == nil {
				return nil, fmt.Errorf("validator %q requires an execution store", NameConcurrencyLimit)
			}
			return NewConcurrencyLimit(deps.Executions, entry.DefaultLimit, entry.FailClosed), nil
		}},
		{NameQuota, func(entry Entry, deps Dependencies) (ports.PipelineValidator, error) {
			if deps.Quotas == nil {
				return nil, fmt.Errorf("validator %q requires a quota store", NameQuota)
			}
			return NewQuota(deps.Quotas, entry.FailClosed), nil
		}},
	}

	for _, builtin := range builtins {
		if err := r.Register(builtin.name, builtin.factory); err != nil {
			return err
		}
	}
	return nil
}

// Names lists registered validator names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Build constructs validators in entry order. Unknown and repeated names are
// configuration errors.
func (r *Registry) Build(entries []Entry, deps Dependencies) ([]ports.PipelineValidator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(entries))
	out := make([]ports.PipelineValidator, 0, len(entries))
	for i, entry := range entries {
		factory, ok := r.factories[entry.Name]
		if !ok {
			return nil, fmt.Errorf("validators[%d]: unknown validator %q", i, entry.Name)
		}
		if _, dup := seen[entry.Name]; dup {
			return nil, fmt.Errorf("validators[%d]: validator %q configured more than once", i, entry.Name)
		}
		seen[entry.Name] = struct{}{}

		validator, err := factory(entry, deps)
		if err != nil {
			return nil, fmt.Errorf("validators[%d]: build %q: %w", i, entry.Name, err)
		}
		if validator == nil {
			return nil, fmt.Errorf("validators[%d]: factory for %q returned nil", i, entry.Name)
		}
		out = append(out, validator)
	}
	return out, nil
}
