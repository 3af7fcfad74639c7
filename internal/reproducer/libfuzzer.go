package reproducer

import (
	"context"
	"strings"

	"github.com/fuzzkit/repro/internal/shell"
)

// testcasePlaceholder marks where the service substituted the testcase path
// into the recorded arguments.
const testcasePlaceholder = "%TESTCASE%"

// LibfuzzerJob reproduces libFuzzer targets. The recorded arguments are
// fuzzing-session flags; reshaping turns them into a single-input replay.
type LibfuzzerJob struct {
	*Base
}

var _ Reproducer = (*LibfuzzerJob)(nil)

// Reproduce runs the replay loop with libFuzzer-shaped arguments.
func (l *LibfuzzerJob) Reproduce(ctx context.Context, iterations int) (*Result, error) {
	return reproduceLoop(ctx, l.tc, l.opts, iterations, l.command)
}

func (l *LibfuzzerJob) command(attempt int) (shell.Command, func(), error) {
	args, placed := reshapeLibfuzzerArgs(
		splitArgs(l.tc.ReproductionArgs), l.opts.TestcasePath)
	args = append(args, splitArgs(l.opts.TargetArgs)...)
	if !placed {
		args = append(args, l.opts.TestcasePath)
	}

	return shell.Command{
		Binary: l.opts.BinaryPath,
		Args:   args,
		Dir:    l.opts.BuildDir,
		Env:    runEnvironment(l.tc, l.opts),
	}, nil, nil
}

// reshapeLibfuzzerArgs adapts fuzzing-session flags for replaying one input:
// the testcase placeholder becomes the real path, and flags that only steer
// corpus generation are dropped. It reports whether the placeholder placed
// the testcase path.
func reshapeLibfuzzerArgs(args []string, testcasePath string) ([]string, bool) {
	reshaped := make([]string, 0, len(args))
	placed := false

	for _, arg := range args {
		switch {
		case arg == testcasePlaceholder:
			reshaped = append(reshaped, testcasePath)
			placed = true
		case strings.HasPrefix(arg, "-runs="),
			strings.HasPrefix(arg, "-fork="),
			strings.HasPrefix(arg, "-jobs="),
			strings.HasPrefix(arg, "-workers="),
			strings.HasPrefix(arg, "-max_total_time="):
			// Session flags; replaying one input runs exactly once.
		default:
			reshaped = append(reshaped, arg)
		}
	}

	return reshaped, placed
}
