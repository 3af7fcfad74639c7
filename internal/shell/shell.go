// Package shell runs external tools (git, gclient, ninja, gsutil, goma_ctl)
// with output streaming and capture, so build steps behave the same whether
// a human or the watch daemon is driving them.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/fuzzkit/repro/internal/logger"
	reproerrors "github.com/fuzzkit/repro/pkg/errors"
)

// Command describes one subprocess run.
type Command struct {
	Binary string
	Args   []string
	Dir    string

	// Env entries overlay the parent environment.
	Env map[string]string

	// Silent captures output without streaming it to the terminal. Used for
	// plumbing reads like `git rev-parse` whose output is a value, not
	// progress.
	Silent bool
}

// String renders the command the way it would be typed in a shell.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Args, " ")
}

// Result captures the outcome of a subprocess run.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Output returns stderr if present, otherwise stdout.
func (r Result) Output() string {
	if r.Stderr != "" {
		return r.Stderr
	}
	return r.Stdout
}

// Runner abstracts subprocess execution so build and daemon logic can be
// tested without spawning real tools.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Exec is the production Runner. Output streams to the configured writers
// while being captured for the caller.
type Exec struct {
	log    *logger.Logger
	stdout io.Writer
	stderr io.Writer
}

var _ Runner = (*Exec)(nil)

// New creates a Runner that streams to the process stdout/stderr.
func New(log *logger.Logger) *Exec {
	return &Exec{log: log, stdout: os.Stdout, stderr: os.Stderr}
}

// NewWithWriters creates a Runner that streams to the supplied writers.
func NewWithWriters(log *logger.Logger, stdout, stderr io.Writer) *Exec {
	return &Exec{log: log, stdout: stdout, stderr: stderr}
}

// Run executes the command and waits for it. A non-zero exit returns the
// captured Result alongside a *CommandError, so callers that treat exit
// codes as answers (git cat-file -e) can keep the result.
func (e *Exec) Run(ctx context.Context, spec Command) (Result, error) {
	e.log.WithFields(map[string]any{
		"cmd": spec.String(),
		"cwd": spec.Dir,
	}).Debug("running command")

	cmd := exec.CommandContext(ctx, spec.Binary, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = overlayEnv(spec.Env)

	var stdoutBuf, stderrBuf bytes.Buffer
	if spec.Silent {
		cmd.Stdout = &stdoutBuf
		cmd.Stderr = &stderrBuf
	} else {
		cmd.Stdout = io.MultiWriter(e.stdout, &stdoutBuf)
		cmd.Stderr = io.MultiWriter(e.stderr, &stderrBuf)
	}

	err := cmd.Run()
	result := Result{
		Stdout: strings.TrimSpace(stdoutBuf.String()),
		Stderr: strings.TrimSpace(stderrBuf.String()),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, reproerrors.NewCommandError(
				spec.String(), result.ExitCode, result.Output(), err)
		}
		result.ExitCode = -1
		return result, err
	}

	return result, nil
}

func overlayEnv(extra map[string]string) []string {
	if len(extra) == 0 {
		return nil
	}
	env := os.Environ()
	for key, value := range extra {
		env = append(env, key+"="+value)
	}
	return env
}
