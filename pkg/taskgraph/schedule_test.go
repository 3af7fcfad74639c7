package taskgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_PriorityOrdersReadyNodes(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	tr := &trace{}

	warn := reg.Register("warn", tr.body("warn", nil), nil, WithPriority(0))
	fetch := reg.Register("fetch", tr.body("fetch", nil), nil, WithPriority(20))
	deflt := reg.Register("default", tr.body("default", nil), nil)
	root := reg.Register("root", tr.body("root", nil), Deps{deflt, fetch, warn})

	_, err := reg.Execute(context.Background(), root, nil)

	require.NoError(t, err)
	require.Equal(t, []string{"warn", "fetch", "default", "root"}, tr.order)
}

func TestRun_InsertionOrderBreaksPriorityTies(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	tr := &trace{}

	first := reg.Register("first", tr.body("first", nil), nil)
	second := reg.Register("second", tr.body("second", nil), nil)
	third := reg.Register("third", tr.body("third", nil), nil)
	root := reg.Register("root", tr.body("root", nil), Deps{first, second, third})

	_, err := reg.Execute(context.Background(), root, nil)

	require.NoError(t, err)
	require.Equal(t, []string{"first", "second", "third", "root"}, tr.order)
}

func TestRun_RequeuedNodeDoesNotStarve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	tr := &trace{}

	// eager is popped first on priority, is not ready, and its step bump
	// sends it behind the pri-100 work that was already queued. It still
	// runs as soon as it comes up ready again.
	base := reg.Register("base", tr.body("base", nil), nil)
	mid := reg.Register("mid", tr.body("mid", nil), Deps{base})
	eager := reg.Register("eager", tr.body("eager", nil), Deps{mid}, WithPriority(0))
	other := reg.Register("other", tr.body("other", nil), nil)
	root := reg.Register("root", tr.body("root", nil), Deps{eager, other})

	_, err := reg.Execute(context.Background(), root, nil)

	require.NoError(t, err)
	require.Equal(t, []string{"base", "mid", "other", "eager", "root"}, tr.order)
}

func TestRun_IterationCapReportsOverflow(t *testing.T) {
	t.Parallel()

	// A node depending on an invocation that was never enqueued can never
	// become ready. The cap is the diagnostic of last resort for exactly
	// this kind of internal inconsistency.
	ghost := &invocation{input: "ghost"}
	stuck := &invocation{input: "stuck", deps: []*invocation{ghost}}

	_, err := run(context.Background(), stuck, []*invocation{stuck})

	var overflow *OverflowError
	require.ErrorAs(t, err, &overflow)
	require.Equal(t, maxIterations, overflow.Iterations)
}

func TestRun_OnlyReachableTasksExecute(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	tr := &trace{}

	// Registration alone never schedules work; only the target's transitive
	// dependencies run.
	dep := reg.Register("dep", tr.body("dep", nil), nil)
	root := reg.Register("root", tr.body("root", "answer"), Deps{dep})
	_ = reg.Register("bystander", tr.body("bystander", nil), nil)

	result, err := reg.Execute(context.Background(), root, nil)

	require.NoError(t, err)
	require.Equal(t, "answer", result)
	require.Equal(t, []string{"dep", "root"}, tr.order)
}
