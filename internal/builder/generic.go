package builder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/fuzzkit/repro/internal/shell"
	"github.com/fuzzkit/repro/pkg/diff"
	reproerrors "github.com/fuzzkit/repro/pkg/errors"
)

// sourceBuild compiles the crash revision inside a local checkout. Variants
// differ in which repository the revision number maps to, the gn arguments
// they inject, and the hooks they run around gn.
type sourceBuild struct {
	testcaseID string
	buildURL   string
	revision   int64
	binaryName string
	target     string

	sourceDir string
	checkout  *Checkout
	opts      Options

	// repo is the crrev project the revision number belongs to.
	repo string
	// pdfiumPin swaps the resolved chromium SHA for the pdfium_revision
	// pinned in its DEPS file.
	pdfiumPin bool

	// seedArgs is the args.gn content recorded with the testcase. When
	// empty, the prebuilt archive is downloaded just to read its args.gn.
	seedArgs  string
	extraArgs map[string]string
	gnCheck   bool

	// runhooks runs gclient runhooks and the clang update before gn.
	runhooks bool
	// msan re-runs hooks with the MSan GYP_DEFINES after gn gen.
	msan bool
	// cfi fetches the gold plugin before building.
	cfi bool

	buildDir string
}

var _ Provider = (*sourceBuild)(nil)

// BuildDirectory compiles the target and returns the out directory. The
// first call does the checkout and build; later calls return the cached
// location.
func (b *sourceBuild) BuildDirectory(ctx context.Context) (string, error) {
	if b.buildDir != "" {
		return b.buildDir, nil
	}

	checkout, err := OpenCheckout(b.sourceDir, b.opts.Runner)
	if err != nil {
		return "", err
	}
	b.checkout = checkout

	if b.seedArgs == "" {
		seed, err := b.downloadedArgs(ctx)
		if err != nil {
			return "", err
		}
		b.seedArgs = seed
	}

	if !b.opts.Current {
		if err := b.checkoutCrashRevision(ctx); err != nil {
			return "", err
		}
	}

	outDir, err := b.outDirName()
	if err != nil {
		return "", err
	}
	if err := b.buildTarget(ctx, outDir); err != nil {
		return "", err
	}

	b.buildDir = outDir
	return outDir, nil
}

// BinaryPath returns the compiled binary inside the out directory.
func (b *sourceBuild) BinaryPath(ctx context.Context) (string, error) {
	dir, err := b.BuildDirectory(ctx)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, b.binaryName), nil
}

// downloadedArgs pulls the prebuilt archive and reads the args.gn it was
// compiled with, for testcases that did not record their gn arguments.
func (b *sourceBuild) downloadedArgs(ctx context.Context) (string, error) {
	download := NewDownloadedBinary(b.testcaseID, b.buildURL, b.binaryName, b.opts)
	dir, err := download.BuildDirectory(ctx)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(filepath.Join(dir, "args.gn"))
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// checkoutCrashRevision moves the source tree to the SHA the crash was found
// at. Moving an already-positioned tree is a no-op; a dirty tree refuses to
// move.
func (b *sourceBuild) checkoutCrashRevision(ctx context.Context) error {
	sha, err := b.crashSHA(ctx)
	if err != nil {
		return err
	}

	head, err := b.checkout.HeadSHA()
	if err != nil {
		return err
	}
	if head == sha {
		return nil
	}

	if b.opts.Confirm != nil {
		prompt := fmt.Sprintf("Run `git checkout %s` in %s?", sha, b.sourceDir)
		if !b.opts.Confirm(prompt) {
			return reproerrors.NewValidationError(
				"checkout", "declined checkout of "+sha, nil)
		}
	}

	return b.checkout.CheckoutSHA(ctx, sha)
}

func (b *sourceBuild) crashSHA(ctx context.Context) (string, error) {
	sha, err := b.opts.Resolver.SHA(ctx, b.revision, b.repo)
	if err != nil {
		return "", err
	}
	if b.pdfiumPin {
		return b.opts.Resolver.PdfiumSHA(ctx, sha)
	}
	return sha, nil
}

// outDirName derives the build directory from whatever SHA the tree
// actually sits on, with a _dirty suffix for modified trees so edited
// builds never shadow clean ones.
func (b *sourceBuild) outDirName() (string, error) {
	head, err := b.checkout.HeadSHA()
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("repro_%s_%s", b.testcaseID, head)

	dirty, err := b.checkout.IsDirty()
	if err != nil {
		return "", err
	}
	if dirty {
		name += "_dirty"
	}
	return filepath.Join(b.sourceDir, "out", name), nil
}

func (b *sourceBuild) buildTarget(ctx context.Context, outDir string) error {
	// gclient sync must run before gn args are written; it can regenerate
	// the tree under out/.
	if !b.opts.DisableGclient {
		if err := b.run(ctx, "gclient", "sync"); err != nil {
			return err
		}
	}

	if err := b.preBuild(ctx); err != nil {
		return err
	}
	if err := b.setupGNArgs(ctx, outDir); err != nil {
		return err
	}

	threads := buildThreads(b.opts.GomaThreads, b.opts.GomaDir)
	_, err := b.opts.Runner.Run(ctx, shell.Command{
		Binary: "ninja",
		Args: []string{
			"-w", "dupbuild=err",
			"-C", outDir,
			"-j", strconv.Itoa(threads),
			"-l", "15",
			b.target,
		},
		Dir: b.sourceDir,
	})
	return err
}

func (b *sourceBuild) preBuild(ctx context.Context) error {
	if b.runhooks {
		if !b.opts.DisableGclient {
			if err := b.run(ctx, "gclient", "runhooks"); err != nil {
				return err
			}
		}
		if !b.opts.Current {
			if err := b.run(ctx, "python", "tools/clang/scripts/update.py"); err != nil {
				return err
			}
		}
	}
	if b.cfi {
		if err := b.run(ctx, "build/download_gold_plugin.py"); err != nil {
			return err
		}
	}
	return nil
}

// setupGNArgs writes args.gn into the out directory and runs gn gen. The
// recorded arguments are adjusted for the local goma install, overlaid with
// the variant's extras, and optionally handed to $EDITOR.
func (b *sourceBuild) setupGNArgs(ctx context.Context, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	args, err := ParseGNArgs(b.seedArgs)
	if err != nil {
		return err
	}
	applyGomaArgs(args, b.opts.GomaDir)
	for key, value := range b.extraArgs {
		args[key] = value
	}

	content := SerializeGNArgs(args)
	if b.opts.EditMode {
		edited, err := editInEditor(ctx, content)
		if err != nil {
			return err
		}
		if delta := diff.Unified(
			[]byte(content), []byte(edited), "args.gn (generated)", "args.gn (edited)",
		); delta != "" {
			b.opts.Log.Infof("args.gn edited:\n%s", delta)
		}
		content = edited
	}

	if err := os.WriteFile(filepath.Join(outDir, "args.gn"), []byte(content), 0o644); err != nil {
		return err
	}
	b.seedArgs = content

	gnArgs := []string{"gen"}
	if b.gnCheck {
		gnArgs = append(gnArgs, "--check")
	}
	gnArgs = append(gnArgs, outDir)
	if err := b.run(ctx, "gn", gnArgs...); err != nil {
		return err
	}

	if b.msan && !b.opts.DisableGclient {
		final, err := ParseGNArgs(content)
		if err != nil {
			return err
		}
		defines := fmt.Sprintf(
			"msan=1 msan_track_origins=%d use_prebuilt_instrumented_libraries=1",
			msanTrackOrigins(final))
		if _, err := b.opts.Runner.Run(ctx, shell.Command{
			Binary: "gclient",
			Args:   []string{"runhooks"},
			Dir:    b.sourceDir,
			Env:    map[string]string{"GYP_DEFINES": defines},
		}); err != nil {
			return err
		}
	}

	return nil
}

func (b *sourceBuild) run(ctx context.Context, binary string, args ...string) error {
	_, err := b.opts.Runner.Run(ctx, shell.Command{
		Binary: binary,
		Args:   args,
		Dir:    b.sourceDir,
	})
	return err
}

// editInEditor hands the generated args.gn to $EDITOR through a temp file.
// The editor owns the terminal, so it runs directly instead of through the
// streaming Runner.
func editInEditor(ctx context.Context, content string) (string, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	tmp, err := os.CreateTemp("", "args-gn-*.gn")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, editor, tmp.Name())
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", err
	}

	edited, err := os.ReadFile(tmp.Name())
	if err != nil {
		return "", err
	}
	return string(edited), nil
}
