package taskgraph

import "strings"

// invocation is one node of an execution graph: a task bound to a receiver,
// or a named input. Nodes are shared: every dependency path that reaches the
// same (task, receiver) pair resolves to the same *invocation.
type invocation struct {
	task     *Task // nil for input nodes
	receiver any   // nil unless method-bound
	input    string
	value    any // supplied input value
	priority int
	deps     []*invocation
}

// name returns a human-readable identifier for diagnostics.
func (inv *invocation) name() string {
	if inv.task == nil {
		return "input:" + inv.input
	}
	return inv.task.name
}

// invocationKey identifies a task invocation. Binding the same task to two
// receivers yields two keys; reaching one pair along two paths yields one.
type invocationKey struct {
	task     *Task
	receiver any
}

// resolver turns a Dep into a graph of invocations. Memoization makes the
// result a DAG keyed by (task, receiver); the walking set catches cycles
// before the scheduler ever sees them.
type resolver struct {
	registry *Registry
	inputs   Inputs

	nodes      map[invocationKey]*invocation
	inputNodes map[string]*invocation
	walking    map[invocationKey]bool
	stack      []string

	// order records invocations as their subtrees complete. Seeding the
	// scheduler from it keeps execution order independent of map iteration.
	order []*invocation
}

func newResolver(r *Registry, inputs Inputs) *resolver {
	return &resolver{
		registry:   r,
		inputs:     inputs,
		nodes:      make(map[invocationKey]*invocation),
		inputNodes: make(map[string]*invocation),
		walking:    make(map[invocationKey]bool),
	}
}

// resolve maps one dependency declaration to its invocation node. The scope
// argument is the receiver available to Ref lookups at this level; a direct
// *Task dependency discards it, so tasks reached without a receiver always
// resolve their own references against a clean scope.
func (r *resolver) resolve(dep Dep, scope any) (*invocation, error) {
	switch d := dep.(type) {
	case *Task:
		return r.bind(d, nil)
	case Method:
		return r.bind(d.Task, d.Receiver)
	case Input:
		return r.resolveInput(string(d))
	case Ref:
		m, err := r.walk(string(d), scope)
		if err != nil {
			return nil, err
		}
		return r.bind(m.Task, m.Receiver)
	case nil:
		return nil, &UnknownTaskError{Name: "<nil>"}
	default:
		// Dep is sealed; a new implementation inside the package must be
		// handled above.
		panic("taskgraph: unhandled dependency type")
	}
}

func (r *resolver) resolveInput(name string) (*invocation, error) {
	if node, ok := r.inputNodes[name]; ok {
		return node, nil
	}

	value, ok := r.inputs[name]
	if !ok {
		return nil, &MissingInputError{Name: name}
	}

	node := &invocation{
		input:    name,
		value:    value,
		priority: inputPriority,
	}
	r.inputNodes[name] = node
	r.order = append(r.order, node)

	return node, nil
}

// bind resolves a (task, receiver) pair and, recursively, the task's own
// dependencies with the receiver as their Ref scope.
func (r *resolver) bind(task *Task, receiver any) (*invocation, error) {
	if task == nil {
		return nil, &UnknownTaskError{Name: "<nil>"}
	}
	if !r.registry.registered(task) {
		return nil, &UnknownTaskError{Name: task.name}
	}

	key := invocationKey{task: task, receiver: receiver}
	if r.walking[key] {
		return nil, &CycleError{Path: append(append([]string(nil), r.stack...), task.name)}
	}
	if node, ok := r.nodes[key]; ok {
		return node, nil
	}

	node := &invocation{
		task:     task,
		receiver: receiver,
		priority: task.priority,
	}

	r.walking[key] = true
	r.stack = append(r.stack, task.name)

	for _, dep := range task.deps {
		child, err := r.resolve(dep, receiver)
		if err != nil {
			return nil, err
		}
		node.deps = append(node.deps, child)
	}

	r.stack = r.stack[:len(r.stack)-1]
	delete(r.walking, key)

	r.nodes[key] = node
	r.order = append(r.order, node)

	return node, nil
}

// walk follows a dotted path against the receiver in scope and returns the
// Method the final segment yields.
func (r *resolver) walk(path string, scope any) (Method, error) {
	if scope == nil {
		return Method{}, &UnresolvableRefError{Ref: path, Reason: "no receiver in scope"}
	}

	segments := strings.Split(path, ".")
	current := scope

	for i, segment := range segments {
		attrer, ok := current.(Attrer)
		if !ok {
			return Method{}, &UnresolvableRefError{
				Ref:     path,
				Segment: segment,
				Reason:  "value does not expose attributes",
			}
		}

		value, ok := attrer.Attr(segment)
		if !ok {
			return Method{}, &UnresolvableRefError{
				Ref:     path,
				Segment: segment,
				Reason:  "no such attribute",
			}
		}

		if i == len(segments)-1 {
			m, ok := value.(Method)
			if !ok {
				return Method{}, &UnresolvableRefError{
					Ref:     path,
					Segment: segment,
					Reason:  "path does not end in a bound method",
				}
			}
			return m, nil
		}

		current = value
	}

	// strings.Split never returns an empty slice, so the loop always
	// terminates inside the final-segment branch.
	return Method{}, &UnresolvableRefError{Ref: path, Reason: "empty reference"}
}
