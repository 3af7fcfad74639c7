package taskgraph

import (
	"container/heap"
	"context"
)

// maxIterations bounds the scheduling loop. The resolver rejects cyclic
// graphs up front, so the cap is a diagnostic backstop rather than a
// correctness mechanism; hitting it means the queue discipline itself is
// broken.
const maxIterations = 100000

// queueItem carries one pending invocation. Ordering is requeue count
// first, so nodes popped before their dependencies completed drift behind
// fresher work, then declared priority, then insertion sequence.
type queueItem struct {
	step     int
	priority int
	seq      int
	inv      *invocation
}

type runQueue []*queueItem

func (q runQueue) Len() int { return len(q) }

func (q runQueue) Less(i, j int) bool {
	if q[i].step != q[j].step {
		return q[i].step < q[j].step
	}
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q runQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *runQueue) Push(x any) { *q = append(*q, x.(*queueItem)) }

func (q *runQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// run executes every invocation reachable from root and returns root's
// result. The whole graph is enqueued up front in resolution order; results
// are memoized per node, so shared dependencies execute once.
func run(ctx context.Context, root *invocation, all []*invocation) (any, error) {
	q := make(runQueue, 0, len(all))
	for i, inv := range all {
		q = append(q, &queueItem{priority: inv.priority, seq: i, inv: inv})
	}
	heap.Init(&q)

	seq := len(all)
	results := make(map[*invocation]any, len(all))

	for i := 0; i < maxIterations; i++ {
		item := heap.Pop(&q).(*queueItem)

		args, ready := gather(item.inv, results)
		if !ready {
			item.step++
			item.seq = seq
			seq++
			heap.Push(&q, item)
			continue
		}

		value, err := item.inv.invoke(ctx, args)
		if err != nil {
			return nil, err
		}
		if item.inv == root {
			return value, nil
		}
		results[item.inv] = value
	}

	return nil, &OverflowError{Iterations: maxIterations}
}

// gather assembles the positional arguments for an invocation, prepending
// the receiver when one is bound. It reports false when any dependency has
// not produced a result yet.
func gather(inv *invocation, results map[*invocation]any) ([]any, bool) {
	args := make([]any, 0, len(inv.deps)+1)
	if inv.receiver != nil {
		args = append(args, inv.receiver)
	}
	for _, dep := range inv.deps {
		value, ok := results[dep]
		if !ok {
			return nil, false
		}
		args = append(args, value)
	}
	return args, true
}

// invoke runs the node: input nodes return their supplied value, task nodes
// call the registered body.
func (inv *invocation) invoke(ctx context.Context, args []any) (any, error) {
	if inv.task == nil {
		return inv.value, nil
	}
	return inv.task.body(ctx, args)
}
