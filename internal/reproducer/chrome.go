package reproducer

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/fuzzkit/repro/internal/shell"
)

// gestureStartupDelay is how long the browser gets to draw its window before
// gesture replay starts.
const gestureStartupDelay = 5 * time.Second

// LinuxChromeJob reproduces browser testcases: each attempt gets a fresh
// profile, a window manager when blackbox is available, and the recorded
// gestures replayed through xdotool.
type LinuxChromeJob struct {
	*Base

	// startupDelay overrides gestureStartupDelay in tests.
	startupDelay time.Duration
}

var _ Reproducer = (*LinuxChromeJob)(nil)

// Reproduce runs the replay loop with browser-shaped attempts.
func (l *LinuxChromeJob) Reproduce(ctx context.Context, iterations int) (*Result, error) {
	return reproduceLoop(ctx, l.tc, l.opts, iterations, func(attempt int) (shell.Command, func(), error) {
		return l.command(ctx, attempt)
	})
}

func (l *LinuxChromeJob) command(ctx context.Context, attempt int) (shell.Command, func(), error) {
	profileDir, err := os.MkdirTemp("", "repro-profile-")
	if err != nil {
		return shell.Command{}, nil, err
	}
	cleanups := []func(){func() { os.RemoveAll(profileDir) }}

	args := splitArgs(l.tc.ReproductionArgs)
	args = append(args, "--user-data-dir="+profileDir)
	args = append(args, splitArgs(l.opts.TargetArgs)...)
	args = append(args, l.opts.TestcasePath)

	env := runEnvironment(l.tc, l.opts)

	if l.opts.BlackboxPath != "" {
		stop, err := startWindowManager(ctx, l.opts.BlackboxPath)
		if err != nil {
			runCleanups(cleanups)
			return shell.Command{}, nil, err
		}
		cleanups = append(cleanups, stop)
	}

	if len(l.tc.Gestures) > 0 && l.opts.XdotoolPath != "" {
		cleanups = append(cleanups, l.replayGestures(ctx, env["DISPLAY"]))
	}

	return shell.Command{
		Binary: l.opts.BinaryPath,
		Args:   args,
		Dir:    l.opts.BuildDir,
		Env:    env,
	}, func() { runCleanups(cleanups) }, nil
}

// replayGestures schedules the recorded gestures after the startup delay,
// while the browser run blocks the caller. The returned stop cancels replay
// for attempts that crash before the delay elapses.
func (l *LinuxChromeJob) replayGestures(ctx context.Context, display string) (stop func()) {
	delay := l.startupDelay
	if delay == 0 {
		delay = gestureStartupDelay
	}

	replayCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		select {
		case <-replayCtx.Done():
			return
		case <-time.After(delay):
		}

		for _, gesture := range l.tc.Gestures {
			if replayCtx.Err() != nil {
				return
			}
			if err := l.executeGesture(replayCtx, gesture, display); err != nil {
				l.opts.Log.Debugf("gesture %q failed: %v", gesture, err)
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// executeGesture runs one recorded gesture, e.g. "key,Tab" or "type,hello",
// as an xdotool command against the run's display.
func (l *LinuxChromeJob) executeGesture(ctx context.Context, gesture, display string) error {
	action, argument, ok := strings.Cut(gesture, ",")
	if !ok {
		l.opts.Log.Debugf("skipping malformed gesture %q", gesture)
		return nil
	}

	var env map[string]string
	if display != "" {
		env = map[string]string{"DISPLAY": display}
	}

	_, err := l.opts.Runner.Run(ctx, shell.Command{
		Binary: l.opts.XdotoolPath,
		Args:   []string{action, "--", argument},
		Env:    env,
		Silent: true,
	})
	return err
}

// startWindowManager launches blackbox in the background so the browser has
// a window manager to negotiate with. The returned stop kills it.
func startWindowManager(ctx context.Context, path string) (func(), error) {
	cmd := exec.CommandContext(ctx, path)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}, nil
}

func runCleanups(cleanups []func()) {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}
