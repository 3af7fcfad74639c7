// Package builder locates the binary used to reproduce a crash: either the
// prebuilt archive FuzzKit stored for the job, or a fresh build of the crash
// revision inside a local source checkout.
package builder

import (
	"context"

	"github.com/fuzzkit/repro/internal/checks"
	"github.com/fuzzkit/repro/internal/config"
	"github.com/fuzzkit/repro/internal/logger"
	"github.com/fuzzkit/repro/internal/shell"
	"github.com/fuzzkit/repro/internal/testcase"
	reproerrors "github.com/fuzzkit/repro/pkg/errors"
)

// Provider yields the build that reproduces one testcase. Both methods are
// idempotent: the first call does the expensive work, later calls return the
// cached location.
type Provider interface {
	BuildDirectory(ctx context.Context) (string, error)
	BinaryPath(ctx context.Context) (string, error)
}

// Options carries the collaborators and flags shared by every provider.
type Options struct {
	// CacheDir is the tool cache root that holds downloaded builds.
	CacheDir string

	// Current builds whatever the checkout is at instead of pinning the
	// crash revision.
	Current bool

	// GomaDir enables goma-backed compilation when non-empty.
	GomaDir     string
	GomaThreads int

	DisableGclient bool

	// EditMode opens args.gn in $EDITOR before gn runs.
	EditMode bool

	Runner   shell.Runner
	Resolver *RevisionResolver
	Log      *logger.Logger

	// Confirm gates the checkout of another revision. A nil Confirm
	// accepts everything, which is what the watch daemon wants.
	Confirm func(prompt string) bool
}

// New constructs the provider for a testcase under a resolved job
// definition. A download build skips compilation entirely; anything else
// maps the definition's builder name onto a source build variant.
func New(tc *testcase.Testcase, def config.JobType, build string, opts Options) (Provider, error) {
	if build == config.BuildDownload {
		name := def.Binary
		if name == "" {
			name = tc.BinaryName()
		}
		return NewDownloadedBinary(tc.ID, tc.BuildURL, name, opts), nil
	}

	sourceDir, err := checks.SourceDir(def.SourceVar)
	if err != nil {
		return nil, err
	}

	switch def.Builder {
	case "Pdfium":
		return newPdfium(tc, sourceDir, opts), nil
	case "V8":
		return newV8(tc, sourceDir, opts, false), nil
	case "MsanV8":
		return newV8(tc, sourceDir, opts, true), nil
	case "Chromium", "UbsanVptrChromium":
		return newChromium(tc, def, sourceDir, opts, chromiumHooks{}), nil
	case "MsanChromium", "LibfuzzerMsan":
		return newChromium(tc, def, sourceDir, opts, chromiumHooks{msan: true}), nil
	case "CfiChromium":
		return newChromium(tc, def, sourceDir, opts, chromiumHooks{cfi: true}), nil
	default:
		return nil, reproerrors.NewJobDefinitionError(
			def.BuildType, def.Name, "unknown builder "+def.Builder, nil)
	}
}
