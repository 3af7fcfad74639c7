// Package reproducer runs the crashing binary against the local testcase
// file and decides whether the recorded crash happened again.
package reproducer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fuzzkit/repro/internal/logger"
	"github.com/fuzzkit/repro/internal/shell"
	"github.com/fuzzkit/repro/internal/testcase"
	reproerrors "github.com/fuzzkit/repro/pkg/errors"
)

// Reproducer drives one testcase against a built binary.
type Reproducer interface {
	Reproduce(ctx context.Context, iterations int) (*Result, error)
}

// Result describes the outcome of a reproduction loop.
type Result struct {
	// Crashed reports whether any attempt terminated abnormally.
	Crashed bool

	// Matched reports whether a crash produced the recorded crash state.
	// With an empty recorded state any crash counts as a match.
	Matched bool

	// Attempts is how many runs happened before the loop stopped.
	Attempts int

	// Signature is the crash state of the last crashing run.
	Signature []string
}

// Options carries the pieces every reproducer variant needs.
type Options struct {
	BinaryPath   string
	BuildDir     string
	TestcasePath string

	// Sanitizer names the <SANITIZER>_OPTIONS variable to prepare, e.g.
	// "ASAN".
	Sanitizer string

	// TargetArgs is appended after the testcase's own reproduction args.
	TargetArgs string

	// BlackboxPath and XdotoolPath come from the preflight checks; empty
	// paths disable the virtual display and gesture replay.
	BlackboxPath string
	XdotoolPath  string

	Runner shell.Runner
	Log    *logger.Logger
}

// New maps a job definition's reproducer name onto an implementation.
func New(kind string, tc *testcase.Testcase, opts Options) (Reproducer, error) {
	base := &Base{tc: tc, opts: opts}
	switch kind {
	case "Base":
		return base, nil
	case "LibfuzzerJob":
		return &LibfuzzerJob{Base: base}, nil
	case "LinuxChromeJob":
		return &LinuxChromeJob{Base: base}, nil
	default:
		return nil, reproerrors.NewJobDefinitionError(
			tc.JobType, tc.JobType, "unknown reproducer "+kind, nil)
	}
}

// Base reruns the binary with the recorded arguments and environment until
// the crash state matches or the attempts run out.
type Base struct {
	tc   *testcase.Testcase
	opts Options
}

var _ Reproducer = (*Base)(nil)

// Reproduce runs up to iterations attempts. It returns the first matching
// attempt's result, or an UnreproducibleError when no attempt crashed with
// the recorded state.
func (b *Base) Reproduce(ctx context.Context, iterations int) (*Result, error) {
	return reproduceLoop(ctx, b.tc, b.opts, iterations, b.command)
}

// command assembles one attempt. Variants override the argument shape, not
// the loop.
func (b *Base) command(attempt int) (shell.Command, func(), error) {
	args := splitArgs(b.tc.ReproductionArgs)
	args = append(args, splitArgs(b.opts.TargetArgs)...)
	args = append(args, b.opts.TestcasePath)

	return shell.Command{
		Binary: b.opts.BinaryPath,
		Args:   args,
		Dir:    b.opts.BuildDir,
		Env:    runEnvironment(b.tc, b.opts),
	}, nil, nil
}

// commandFunc builds the command for one attempt. The cleanup func, when not
// nil, runs after the attempt finishes.
type commandFunc func(attempt int) (shell.Command, func(), error)

func reproduceLoop(
	ctx context.Context,
	tc *testcase.Testcase,
	opts Options,
	iterations int,
	build commandFunc,
) (*Result, error) {
	if iterations < 1 {
		iterations = 1
	}
	expected := expectedState(tc)

	result := &Result{}
	for attempt := 1; attempt <= iterations; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cmd, cleanup, err := build(attempt)
		if err != nil {
			return nil, err
		}

		opts.Log.WithFields(map[string]any{
			"testcase": tc.ID,
			"attempt":  attempt,
		}).Info("running testcase")

		start := time.Now()
		run, runErr := opts.Runner.Run(ctx, cmd)
		if cleanup != nil {
			cleanup()
		}
		result.Attempts = attempt

		if runErr != nil {
			var cmdErr *reproerrors.CommandError
			if !errors.As(runErr, &cmdErr) {
				// The binary never ran; retrying cannot help.
				return nil, runErr
			}
		}

		crashed := run.ExitCode != 0
		if !crashed {
			opts.Log.Debugf("attempt %d exited cleanly after %s",
				attempt, time.Since(start).Truncate(time.Millisecond))
			continue
		}

		result.Crashed = true
		result.Signature = crashState(run.Output())

		if stateMatches(expected, result.Signature) {
			result.Matched = true
			opts.Log.WithFields(map[string]any{
				"testcase": tc.ID,
				"attempt":  attempt,
			}).Info("crash reproduced")
			return result, nil
		}

		opts.Log.Warnf("attempt %d crashed with a different state:\n  %s",
			attempt, strings.Join(result.Signature, "\n  "))
	}

	return result, reproerrors.NewUnreproducibleError(tc.ID, result.Attempts)
}

// expectedState splits the recorded crash state into its frame lines.
func expectedState(tc *testcase.Testcase) []string {
	if strings.TrimSpace(tc.CrashState) == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSpace(tc.CrashState), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return lines
}

// splitArgs splits a recorded argument string on whitespace. Empty input
// yields no arguments rather than one empty argument.
func splitArgs(args string) []string {
	return strings.Fields(args)
}
