package taskgraph

import "context"

// DefaultPriority is the scheduling priority assigned to tasks registered
// without WithPriority. Lower values run earlier among ready invocations.
const DefaultPriority = 100

// inputPriority orders caller-supplied values ahead of every task.
const inputPriority = -1

// Body is the unit of work behind a registered task. Dependency results
// arrive as positional arguments in declared order; when the task executes
// through a receiver, the receiver is prepended as args[0]. The context is
// passed through from Execute untouched, so bodies that perform I/O can
// honor caller deadlines.
type Body func(ctx context.Context, args []any) (any, error)

// Dep is a single dependency declaration. Exactly four types implement it:
// *Task, Input, Ref, and Method.
type Dep interface {
	isDep()
}

// Deps is the ordered dependency list of a task. Order is significant: it
// fixes the positional arguments handed to the body.
type Deps []Dep

// Task is a registered computation. Handles are created by Registry.Register
// and compared by identity, so holding a *Task is proof the task exists in
// some registry.
type Task struct {
	name     string
	body     Body
	deps     Deps
	priority int
}

func (*Task) isDep() {}

// Name returns the name the task was registered under.
func (t *Task) Name() string { return t.name }

// Priority returns the task's scheduling priority.
func (t *Task) Priority() int { return t.priority }

// Input declares a dependency on a named value supplied through Inputs at
// execution time. Two Input dependencies with the same name always resolve
// to the same node.
type Input string

func (Input) isDep() {}

// Ref declares a dependency on a method reached by walking a dotted
// attribute path against the receiver in scope. Every intermediate segment
// must resolve through Attrer; the final segment must yield a Method.
type Ref string

func (Ref) isDep() {}

// Method binds a task to a receiver object. The receiver becomes args[0] of
// the body and the scope for resolving the task's own Ref dependencies.
// Receivers must be comparable (pointers in practice): invocation identity
// is the (task, receiver) pair.
type Method struct {
	Task     *Task
	Receiver any
}

func (Method) isDep() {}

// Attrer is implemented by receiver objects that participate in Ref
// resolution. Attr returns the value of a named attribute, which is either
// another Attrer (an intermediate path segment) or a Method (the terminal
// segment), and reports whether the attribute exists.
type Attrer interface {
	Attr(name string) (any, bool)
}

// Inputs supplies values for Input dependencies at execution time. Values
// are passed to bodies as-is, including nil.
type Inputs map[string]any

// Option configures a task at registration.
type Option func(*Task)

// WithPriority overrides DefaultPriority. Lower values run earlier among
// invocations whose dependencies are complete; priority never overrides
// dependency order.
func WithPriority(p int) Option {
	return func(t *Task) {
		t.priority = p
	}
}
