package taskgraph

import (
	"fmt"
	"strings"
)

// UnknownTaskError reports a dependency on a task handle the executing
// registry never issued.
type UnknownTaskError struct {
	Name string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("taskgraph: unknown task %q", e.Name)
}

// UnresolvableRefError reports a symbolic reference that could not be
// walked to a bound method. Segment names the path element that failed and
// is empty when the failure is about the scope as a whole.
type UnresolvableRefError struct {
	Ref     string
	Segment string
	Reason  string
}

func (e *UnresolvableRefError) Error() string {
	if e.Segment == "" {
		return fmt.Sprintf("taskgraph: cannot resolve reference %q: %s", e.Ref, e.Reason)
	}
	return fmt.Sprintf("taskgraph: cannot resolve reference %q at %q: %s", e.Ref, e.Segment, e.Reason)
}

// MissingInputError reports an Input dependency with no value in the Inputs
// map passed to Execute.
type MissingInputError struct {
	Name string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("taskgraph: missing input %q", e.Name)
}

// CycleError reports a dependency cycle discovered during resolution. Path
// lists task names from the first node on the cycle back to itself.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("taskgraph: dependency cycle: %s", strings.Join(e.Path, " -> "))
}

// OverflowError reports that the scheduler exceeded its iteration cap
// without finishing the graph. Resolution rejects cycles, so this error
// indicates an executor defect and is surfaced for diagnosis rather than
// recovery.
type OverflowError struct {
	Iterations int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("taskgraph: execution exceeded %d iterations", e.Iterations)
}
