// Package taskgraph provides a declarative task executor: callers register
// named tasks with dependency lists, then execute any task and receive its
// result with all transitive dependencies resolved, ordered, and invoked
// exactly once.
//
// # Model
//
// A task is a body function plus an ordered list of dependencies. Each
// dependency is one of:
//
//   - *Task: another registered task, executed with no receiver in scope.
//   - Input: a named value supplied by the caller at execution time.
//   - Ref: a dotted attribute path ("checks.goma.ensure") walked against the
//     receiver in scope and terminating in a Method.
//   - Method: a task bound to an explicit receiver object.
//
// Registration returns a *Task handle; the handle is the only way to refer
// to a task, so a dependency on an unregistered task cannot be expressed by
// accident within a single registry.
//
// # Execution
//
// Execute resolves the target into a graph of invocations. An invocation is
// the pair (task, receiver): the same task bound to two different receivers
// executes twice, while two dependency paths reaching the same pair share a
// single invocation and its result. Input nodes are keyed by name alone.
//
// Invocations are scheduled through a priority queue ordered by requeue
// count, then declared priority (lower runs earlier, default 100, inputs
// are fixed at -1), then queue insertion order. A popped invocation whose
// dependencies are not all complete is requeued behind fresher work rather
// than failing. Dependency results are passed to the body as positional
// arguments in declared order; a bound receiver is prepended as args[0].
//
// Execution is single threaded and deterministic: the same registrations
// and inputs produce the same invocation order on every run.
//
// # Errors
//
// Resolution reports typed errors (UnknownTaskError, UnresolvableRefError,
// MissingInputError, CycleError) before any body runs. Errors returned by
// task bodies abort the run and are handed back to the caller unchanged.
package taskgraph
