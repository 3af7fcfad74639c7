package builder

import (
	"context"
	"runtime"

	"github.com/fuzzkit/repro/internal/checks"
	"github.com/fuzzkit/repro/internal/logger"
	"github.com/fuzzkit/repro/internal/shell"
)

// Goma wraps the goma compiler proxy install.
type Goma struct {
	dir    string
	runner shell.Runner
	log    *logger.Logger
}

// NewGoma locates the goma install and returns a handle for it.
func NewGoma(runner shell.Runner, log *logger.Logger) (*Goma, error) {
	dir, err := checks.GomaDir()
	if err != nil {
		return nil, err
	}
	return &Goma{dir: dir, runner: runner, log: log}, nil
}

// Dir reports where goma is installed.
func (g *Goma) Dir() string {
	return g.dir
}

// EnsureStart brings the compiler proxy up if it is not already running.
func (g *Goma) EnsureStart(ctx context.Context) error {
	g.log.Debugf("ensuring goma is running in %s", g.dir)
	_, err := g.runner.Run(ctx, shell.Command{
		Binary: "python",
		Args:   []string{"goma_ctl.py", "ensure_start"},
		Dir:    g.dir,
	})
	return err
}

// buildThreads picks the ninja -j value. Goma builds fan out far wider than
// the local core count; local builds leave headroom for the rest of the
// machine.
func buildThreads(requested int, gomaDir string) int {
	if requested > 0 {
		return requested
	}
	cpus := runtime.NumCPU()
	if gomaDir != "" {
		return 50 * cpus
	}
	return 3 * cpus / 4
}
