package taskgraph

import (
	"context"
	"sync"
)

// Registry owns a set of registered tasks. A zero Registry is not usable;
// construct one with NewRegistry. Registration is safe for concurrent use,
// though the expected shape is a single registration phase at startup
// followed by any number of Execute calls.
type Registry struct {
	mu    sync.RWMutex
	tasks map[*Task]struct{}
}

// NewRegistry returns an empty task registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[*Task]struct{}),
	}
}

// Register installs a task and returns its handle. The name is carried into
// logs and error messages and need not be unique; identity is the returned
// pointer. The dependency list is copied, so the caller may reuse the slice.
//
// Register panics on a nil body: a task without a body is a programming
// error that would otherwise surface only when the task is first scheduled.
func (r *Registry) Register(name string, body Body, deps Deps, opts ...Option) *Task {
	if body == nil {
		panic("taskgraph: Register called with nil body for task " + name)
	}

	t := &Task{
		name:     name,
		body:     body,
		deps:     append(Deps(nil), deps...),
		priority: DefaultPriority,
	}
	for _, opt := range opts {
		opt(t)
	}

	r.mu.Lock()
	r.tasks[t] = struct{}{}
	r.mu.Unlock()

	return t
}

// registered reports whether t was created by this registry.
func (r *Registry) registered(t *Task) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tasks[t]
	return ok
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tasks)
}

// Execute resolves target into an invocation graph and runs it to
// completion, returning the target's result. Resolution failures are
// reported before any body runs; once bodies start, the first error aborts
// the run and is returned to the caller unchanged.
//
// The context is forwarded to every body. The executor itself never blocks
// on it: cancellation takes effect only where bodies choose to observe it.
func (r *Registry) Execute(ctx context.Context, target Dep, inputs Inputs) (any, error) {
	res := newResolver(r, inputs)

	root, err := res.resolve(target, nil)
	if err != nil {
		return nil, err
	}

	return run(ctx, root, res.order)
}
