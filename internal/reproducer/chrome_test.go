package reproducer

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuzzkit/repro/internal/shell"
)

func TestLinuxChromeJob_FreshProfilePerAttempt(t *testing.T) {
	t.Parallel()

	tc := chromeTestcase()
	runner := &fakeRunner{handler: crashResult}

	rep, err := New("LinuxChromeJob", tc, testOptions(t, runner))
	require.NoError(t, err)

	result, err := rep.Reproduce(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, result.Matched)

	commands := runner.recorded()
	require.Len(t, commands, 1)

	profileDir := profileArg(t, commands[0])
	assert.NotEmpty(t, profileDir)

	// The cleanup ran after the attempt, so the profile is gone.
	_, statErr := os.Stat(profileDir)
	assert.True(t, os.IsNotExist(statErr))

	// The testcase path stays the final argument.
	assert.Equal(t, "/cache/4242_testcase/testcase.html",
		commands[0].Args[len(commands[0].Args)-1])
}

func TestLinuxChromeJob_ReplaysGesturesThroughXdotool(t *testing.T) {
	t.Parallel()

	tc := chromeTestcase()
	tc.Gestures = []string{"key,Tab", "type,fuzz"}
	tc.Environment["DISPLAY"] = ":1"

	browserRunning := make(chan struct{})
	runner := &fakeRunner{}
	runner.handler = func(cmd shell.Command) (shell.Result, error) {
		if cmd.Binary == "/usr/bin/xdotool" {
			return shell.Result{}, nil
		}
		// Keep the browser "running" until both gestures have fired.
		<-browserRunning
		return crashResult(cmd)
	}

	opts := testOptions(t, runner)
	opts.XdotoolPath = "/usr/bin/xdotool"

	base := &Base{tc: tc, opts: opts}
	rep := &LinuxChromeJob{Base: base, startupDelay: time.Millisecond}

	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) && len(gestureCommands(runner)) < 2 {
			time.Sleep(5 * time.Millisecond)
		}
		close(browserRunning)
	}()

	result, err := rep.Reproduce(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, result.Matched)

	gestures := gestureCommands(runner)
	require.Len(t, gestures, 2)
	assert.Equal(t, []string{"key", "--", "Tab"}, gestures[0].Args)
	assert.Equal(t, []string{"type", "--", "fuzz"}, gestures[1].Args)
	assert.Equal(t, ":1", gestures[0].Env["DISPLAY"])
}

func TestLinuxChromeJob_NoGesturesSkipsXdotool(t *testing.T) {
	t.Parallel()

	tc := chromeTestcase()
	runner := &fakeRunner{handler: crashResult}

	opts := testOptions(t, runner)
	opts.XdotoolPath = "/usr/bin/xdotool"

	rep, err := New("LinuxChromeJob", tc, opts)
	require.NoError(t, err)

	_, err = rep.Reproduce(context.Background(), 1)
	require.NoError(t, err)

	assert.Empty(t, gestureCommands(runner))
}

func profileArg(t *testing.T, cmd shell.Command) string {
	t.Helper()

	for _, arg := range cmd.Args {
		if dir, ok := strings.CutPrefix(arg, "--user-data-dir="); ok {
			return dir
		}
	}
	t.Fatalf("no --user-data-dir argument in %v", cmd.Args)
	return ""
}

func gestureCommands(runner *fakeRunner) []shell.Command {
	var gestures []shell.Command
	for _, cmd := range runner.recorded() {
		if strings.HasSuffix(cmd.Binary, "xdotool") {
			gestures = append(gestures, cmd)
		}
	}
	return gestures
}
