// Package pipeline assembles the reproduce pipeline: every step of a run is
// a registered task, and the dependency executor sequences them from the
// declared references.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fuzzkit/repro/internal/builder"
	"github.com/fuzzkit/repro/internal/checks"
	"github.com/fuzzkit/repro/internal/config"
	"github.com/fuzzkit/repro/internal/logger"
	"github.com/fuzzkit/repro/internal/reproducer"
	"github.com/fuzzkit/repro/internal/shell"
	"github.com/fuzzkit/repro/internal/testcase"
	"github.com/fuzzkit/repro/internal/tui"
	reproerrors "github.com/fuzzkit/repro/pkg/errors"
	"github.com/fuzzkit/repro/pkg/taskgraph"
)

// Service is the slice of the API client the session needs.
type Service interface {
	TestcaseInfo(ctx context.Context, testcaseID string) ([]byte, error)
}

// Store yields the local file for a testcase, downloading it on first use.
type Store interface {
	Path(ctx context.Context, tc *testcase.Testcase) (string, error)
}

// SessionOptions carries the collaborators for a reproduction session.
type SessionOptions struct {
	Service  Service
	Store    Store
	Table    *config.Table
	Runner   shell.Runner
	Resolver *builder.RevisionResolver
	Log      *logger.Logger

	// Out receives the report card and outcome rendering; quiet mode
	// passes io.Discard.
	Out io.Writer

	// CacheDir is where downloaded builds land.
	CacheDir string

	// EditMode opens args.gn in $EDITOR before source builds run gn.
	EditMode bool

	// Confirm gates checkouts of another revision; nil accepts everything.
	Confirm func(prompt string) bool
}

// ReproduceParams are the flag values of one reproduce run. They enter the
// pipeline as named inputs.
type ReproduceParams struct {
	TestcaseID      string
	Current         bool
	Build           string
	DisableGoma     bool
	GomaThreads     int
	DisableGclient  bool
	Iterations      int
	DisableBlackbox bool
	TargetArgs      string
}

// Session owns one reproduction pipeline: the steps are registered as tasks
// whose dependencies reference each other symbolically, so collaborators
// like the goma manager and the host checks stay separate objects while the
// executor sequences them.
type Session struct {
	svc      Service
	store    Store
	table    *config.Table
	runner   shell.Runner
	resolver *builder.RevisionResolver
	log      *logger.Logger
	out      io.Writer
	cacheDir string
	editMode bool
	confirm  func(prompt string) bool

	checks *hostChecks
	goma   *gomaManager

	registry *taskgraph.Registry
	tasks    sessionTasks
}

type sessionTasks struct {
	testcase     *taskgraph.Task
	definition   *taskgraph.Task
	report       *taskgraph.Task
	testcasePath *taskgraph.Task
	provider     *taskgraph.Task
	binaryPath   *taskgraph.Task
	reproduce    *taskgraph.Task
}

// NewSession wires the pipeline. Registration happens once; Reproduce may
// be called any number of times with different inputs.
func NewSession(opts SessionOptions) *Session {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	s := &Session{
		svc:      opts.Service,
		store:    opts.Store,
		table:    opts.Table,
		runner:   opts.Runner,
		resolver: opts.Resolver,
		log:      opts.Log,
		out:      out,
		cacheDir: opts.CacheDir,
		editMode: opts.EditMode,
		confirm:  opts.Confirm,
		registry: taskgraph.NewRegistry(),
	}
	s.checks = &hostChecks{session: s}
	s.goma = &gomaManager{session: s}
	s.registerTasks()
	return s
}

// Attr exposes the session's steps and collaborators to symbolic path
// resolution.
func (s *Session) Attr(name string) (any, bool) {
	switch name {
	case "checks":
		return s.checks, true
	case "goma":
		return s.goma, true
	case "testcase":
		return taskgraph.Method{Task: s.tasks.testcase, Receiver: s}, true
	case "definition":
		return taskgraph.Method{Task: s.tasks.definition, Receiver: s}, true
	case "report":
		return taskgraph.Method{Task: s.tasks.report, Receiver: s}, true
	case "testcase_path":
		return taskgraph.Method{Task: s.tasks.testcasePath, Receiver: s}, true
	case "provider":
		return taskgraph.Method{Task: s.tasks.provider, Receiver: s}, true
	case "binary_path":
		return taskgraph.Method{Task: s.tasks.binaryPath, Receiver: s}, true
	}
	return nil, false
}

// Reproduce runs the pipeline for one testcase and returns the outcome of
// the reproduction loop.
func (s *Session) Reproduce(ctx context.Context, p ReproduceParams) (*reproducer.Result, error) {
	inputs := taskgraph.Inputs{
		"testcase_id":      p.TestcaseID,
		"current":          p.Current,
		"build":            p.Build,
		"disable_goma":     p.DisableGoma,
		"goma_threads":     p.GomaThreads,
		"disable_gclient":  p.DisableGclient,
		"iterations":       p.Iterations,
		"disable_blackbox": p.DisableBlackbox,
		"target_args":      p.TargetArgs,
	}

	out, err := s.registry.Execute(ctx,
		taskgraph.Method{Task: s.tasks.reproduce, Receiver: s}, inputs)
	if err != nil {
		return nil, err
	}
	return out.(*reproducer.Result), nil
}

// registerTasks declares the pipeline. Dependencies are listed in the order
// the bodies consume them; a bound receiver always arrives first.
func (s *Session) registerTasks() {
	reg := s.registry

	s.tasks.testcase = reg.Register("get_testcase",
		func(ctx context.Context, args []any) (any, error) {
			sess := args[0].(*Session)
			return sess.fetchTestcase(ctx, args[1].(string))
		},
		taskgraph.Deps{taskgraph.Input("testcase_id")},
		taskgraph.WithPriority(20))

	s.tasks.definition = reg.Register("get_definition",
		func(ctx context.Context, args []any) (any, error) {
			sess := args[0].(*Session)
			tc := args[1].(*testcase.Testcase)
			build := args[2].(string)
			return sess.table.Find(tc.JobType, build)
		},
		taskgraph.Deps{taskgraph.Ref("testcase"), taskgraph.Input("build")})

	s.tasks.report = reg.Register("print_report",
		func(ctx context.Context, args []any) (any, error) {
			sess := args[0].(*Session)
			tc := args[1].(*testcase.Testcase)
			sess.printReport(tc)
			return nil, nil
		},
		taskgraph.Deps{taskgraph.Ref("testcase")},
		taskgraph.WithPriority(0))

	s.tasks.testcasePath = reg.Register("download_testcase",
		func(ctx context.Context, args []any) (any, error) {
			sess := args[0].(*Session)
			tc := args[1].(*testcase.Testcase)
			return sess.store.Path(ctx, tc)
		},
		taskgraph.Deps{taskgraph.Ref("testcase")})

	s.goma.register(reg)
	s.checks.register(reg)

	s.tasks.provider = reg.Register("get_provider",
		func(ctx context.Context, args []any) (any, error) {
			sess := args[0].(*Session)
			tc := args[1].(*testcase.Testcase)
			def := args[2].(config.JobType)
			gomaDir := args[3].(string)
			// args[4] is the goma ensure step, depended on for ordering.
			build := args[5].(string)
			current := args[6].(bool)
			threads := args[7].(int)
			disableGclient := args[8].(bool)

			return builder.New(tc, def, build, builder.Options{
				CacheDir:       sess.cacheDir,
				Current:        current,
				GomaDir:        gomaDir,
				GomaThreads:    threads,
				DisableGclient: disableGclient,
				EditMode:       sess.editMode,
				Runner:         sess.runner,
				Resolver:       sess.resolver,
				Log:            sess.log,
				Confirm:        sess.confirm,
			})
		},
		taskgraph.Deps{
			taskgraph.Ref("testcase"),
			taskgraph.Ref("definition"),
			taskgraph.Ref("goma.dir"),
			taskgraph.Ref("goma.ensure"),
			taskgraph.Input("build"),
			taskgraph.Input("current"),
			taskgraph.Input("goma_threads"),
			taskgraph.Input("disable_gclient"),
		})

	s.tasks.binaryPath = reg.Register("get_binary_path",
		func(ctx context.Context, args []any) (any, error) {
			provider := args[1].(builder.Provider)
			return provider.BinaryPath(ctx)
		},
		taskgraph.Deps{taskgraph.Ref("provider")})

	s.tasks.reproduce = reg.Register("reproduce",
		func(ctx context.Context, args []any) (any, error) {
			sess := args[0].(*Session)
			// args[1] is the report step, depended on for ordering.
			tc := args[2].(*testcase.Testcase)
			def := args[3].(config.JobType)
			provider := args[4].(builder.Provider)
			binaryPath := args[5].(string)
			testcasePath := args[6].(string)
			blackboxPath := args[7].(string)
			xdotoolPath := args[8].(string)
			// args[9] is the gclient preflight, depended on for ordering.
			targetArgs := args[10].(string)
			iterations := args[11].(int)

			return sess.runReproducer(ctx, tc, def, provider, binaryPath,
				testcasePath, blackboxPath, xdotoolPath, targetArgs, iterations)
		},
		taskgraph.Deps{
			taskgraph.Ref("report"),
			taskgraph.Ref("testcase"),
			taskgraph.Ref("definition"),
			taskgraph.Ref("provider"),
			taskgraph.Ref("binary_path"),
			taskgraph.Ref("testcase_path"),
			taskgraph.Ref("checks.blackbox"),
			taskgraph.Ref("checks.xdotool"),
			taskgraph.Ref("checks.gclient"),
			taskgraph.Input("target_args"),
			taskgraph.Input("iterations"),
		})
}

func (s *Session) fetchTestcase(ctx context.Context, id string) (*testcase.Testcase, error) {
	s.log.WithFields(map[string]any{"testcase": id}).Info("fetching testcase information")
	data, err := s.svc.TestcaseInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	return testcase.Parse(data)
}

func (s *Session) printReport(tc *testcase.Testcase) {
	fmt.Fprintln(s.out, tui.RenderReport(tui.Report{
		TestcaseID: tc.ID,
		JobType:    tc.JobType,
		CrashType:  tc.CrashType,
		CrashState: crashStateLines(tc),
	}))

	if !tc.Reproducible {
		fmt.Fprintln(s.out, tui.RenderMarkedUnreproducibleWarning())
	}
	if len(tc.Gestures) > 0 {
		fmt.Fprintln(s.out, tui.RenderGestureWarning())
	}
}

func (s *Session) runReproducer(
	ctx context.Context,
	tc *testcase.Testcase,
	def config.JobType,
	provider builder.Provider,
	binaryPath, testcasePath, blackboxPath, xdotoolPath, targetArgs string,
	iterations int,
) (*reproducer.Result, error) {
	buildDir, err := provider.BuildDirectory(ctx)
	if err != nil {
		return nil, err
	}

	rep, err := reproducer.New(def.Reproducer, tc, reproducer.Options{
		BinaryPath:   binaryPath,
		BuildDir:     buildDir,
		TestcasePath: testcasePath,
		Sanitizer:    def.Sanitizer,
		TargetArgs:   targetArgs,
		BlackboxPath: blackboxPath,
		XdotoolPath:  xdotoolPath,
		Runner:       s.runner,
		Log:          s.log,
	})
	if err != nil {
		return nil, err
	}

	result, err := rep.Reproduce(ctx, iterations)
	if result != nil {
		fmt.Fprintln(s.out, tui.RenderOutcome(tui.Outcome{
			Reproduced: result.Crashed,
			Matched:    result.Matched,
			Attempts:   result.Attempts,
			Signature:  result.Signature,
		}))
	}
	if err != nil {
		var unrep *reproerrors.UnreproducibleError
		if errors.As(err, &unrep) && result != nil && !result.Crashed {
			fmt.Fprintln(s.out, tui.RenderUnreproducibleWarning(unrep.TestcaseID, unrep.Iterations))
		}
		return nil, err
	}
	return result, nil
}

func crashStateLines(tc *testcase.Testcase) []string {
	trimmed := strings.TrimSpace(tc.CrashState)
	if trimmed == "" {
		return nil
	}
	lines := strings.Split(trimmed, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return lines
}

// hostChecks resolves the external tools a run needs. Each check is its own
// step so the pipeline only pays for what the job type uses.
type hostChecks struct {
	session *Session

	blackbox *taskgraph.Task
	xdotool  *taskgraph.Task
	gclient  *taskgraph.Task
}

// Attr exposes the checks to symbolic resolution; "session" reaches back to
// the owning session so checks can depend on its steps.
func (c *hostChecks) Attr(name string) (any, bool) {
	switch name {
	case "session":
		return c.session, true
	case "blackbox":
		return taskgraph.Method{Task: c.blackbox, Receiver: c}, true
	case "xdotool":
		return taskgraph.Method{Task: c.xdotool, Receiver: c}, true
	case "gclient":
		return taskgraph.Method{Task: c.gclient, Receiver: c}, true
	}
	return nil, false
}

func (c *hostChecks) register(reg *taskgraph.Registry) {
	c.blackbox = reg.Register("blackbox_path",
		func(ctx context.Context, args []any) (any, error) {
			chk := args[0].(*hostChecks)
			disabled := args[1].(bool)
			tc := args[2].(*testcase.Testcase)
			return chk.blackboxPath(disabled, tc)
		},
		taskgraph.Deps{
			taskgraph.Input("disable_blackbox"),
			taskgraph.Ref("session.testcase"),
		})

	c.xdotool = reg.Register("xdotool_path",
		func(ctx context.Context, args []any) (any, error) {
			tc := args[1].(*testcase.Testcase)
			if len(tc.Gestures) == 0 {
				return "", nil
			}
			return checks.Binary("xdotool")
		},
		taskgraph.Deps{taskgraph.Ref("session.testcase")})

	c.gclient = reg.Register("gclient_path",
		func(ctx context.Context, args []any) (any, error) {
			build := args[1].(string)
			disabled := args[2].(bool)
			if build == config.BuildDownload || disabled {
				return "", nil
			}
			return checks.Binary("gclient")
		},
		taskgraph.Deps{taskgraph.Input("build"), taskgraph.Input("disable_gclient")})
}

// blackboxPath returns the window manager path, or "" when the run can do
// without one. A gesture testcase cannot: replay needs a predictable window
// layout, so a missing blackbox is an error there.
func (c *hostChecks) blackboxPath(disabled bool, tc *testcase.Testcase) (string, error) {
	if disabled {
		return "", nil
	}
	path, err := checks.Binary("blackbox")
	if err != nil {
		if len(tc.Gestures) > 0 {
			return "", err
		}
		c.session.log.Debug("blackbox not found; running without a window manager")
		return "", nil
	}
	return path, nil
}

// gomaManager owns the goma install for one session. The dir step locates
// (and implicitly validates) the install; the ensure step starts the
// compiler proxy. Download builds skip both.
type gomaManager struct {
	session *Session
	goma    *builder.Goma

	enabled *taskgraph.Task
	dir     *taskgraph.Task
	ensure  *taskgraph.Task
}

func (g *gomaManager) Attr(name string) (any, bool) {
	switch name {
	case "session":
		return g.session, true
	case "enabled":
		return taskgraph.Method{Task: g.enabled, Receiver: g}, true
	case "dir":
		return taskgraph.Method{Task: g.dir, Receiver: g}, true
	case "ensure":
		return taskgraph.Method{Task: g.ensure, Receiver: g}, true
	}
	return nil, false
}

func (g *gomaManager) register(reg *taskgraph.Registry) {
	g.enabled = reg.Register("goma_enabled",
		func(ctx context.Context, args []any) (any, error) {
			disabled := args[1].(bool)
			build := args[2].(string)
			return !disabled && build != config.BuildDownload, nil
		},
		taskgraph.Deps{taskgraph.Input("disable_goma"), taskgraph.Input("build")})

	g.dir = reg.Register("goma_dir",
		func(ctx context.Context, args []any) (any, error) {
			mgr := args[0].(*gomaManager)
			enabled := args[1].(bool)
			if !enabled {
				return "", nil
			}
			goma, err := builder.NewGoma(mgr.session.runner, mgr.session.log)
			if err != nil {
				return nil, err
			}
			mgr.goma = goma
			return goma.Dir(), nil
		},
		taskgraph.Deps{taskgraph.Ref("enabled")},
		taskgraph.WithPriority(20))

	g.ensure = reg.Register("ensure_goma",
		func(ctx context.Context, args []any) (any, error) {
			mgr := args[0].(*gomaManager)
			enabled := args[1].(bool)
			if !enabled {
				return false, nil
			}
			if err := mgr.goma.EnsureStart(ctx); err != nil {
				return nil, err
			}
			return true, nil
		},
		taskgraph.Deps{taskgraph.Ref("enabled"), taskgraph.Ref("dir")})
}
