package builder

import (
	"github.com/fuzzkit/repro/internal/config"
	"github.com/fuzzkit/repro/internal/testcase"
)

// chromiumHooks selects the extra build steps a chromium job needs.
type chromiumHooks struct {
	msan bool
	cfi  bool
}

// newPdfium builds pdfium_test from a pdfium checkout. The testcase revision
// is a chromium commit position, so the actual SHA comes from the
// pdfium_revision pin in the matching DEPS file.
func newPdfium(tc *testcase.Testcase, sourceDir string, opts Options) *sourceBuild {
	return &sourceBuild{
		testcaseID: tc.ID,
		buildURL:   tc.BuildURL,
		revision:   tc.Revision,
		binaryName: "pdfium_test",
		target:     "pdfium_test",
		sourceDir:  sourceDir,
		opts:       opts,
		repo:       "chromium/src",
		pdfiumPin:  true,
		seedArgs:   tc.GNArgs,
		extraArgs:  map[string]string{"pdf_is_standalone": "true"},
	}
}

// newV8 builds d8 from a v8 checkout.
func newV8(tc *testcase.Testcase, sourceDir string, opts Options, msan bool) *sourceBuild {
	return &sourceBuild{
		testcaseID: tc.ID,
		buildURL:   tc.BuildURL,
		revision:   tc.Revision,
		binaryName: "d8",
		target:     "d8",
		sourceDir:  sourceDir,
		opts:       opts,
		repo:       "v8/v8",
		seedArgs:   tc.GNArgs,
		gnCheck:    true,
		runhooks:   true,
		msan:       msan,
	}
}

// newChromium builds an arbitrary target from a chromium checkout. The
// binary name comes from the job definition when it names one, otherwise
// from the run command in the stacktrace.
func newChromium(tc *testcase.Testcase, def config.JobType, sourceDir string, opts Options, hooks chromiumHooks) *sourceBuild {
	binary := def.Binary
	if binary == "" {
		binary = tc.BinaryName()
	}
	target := def.Target
	if target == "" {
		target = binary
	}

	return &sourceBuild{
		testcaseID: tc.ID,
		buildURL:   tc.BuildURL,
		revision:   tc.Revision,
		binaryName: binary,
		target:     target,
		sourceDir:  sourceDir,
		opts:       opts,
		repo:       "chromium/src",
		seedArgs:   tc.GNArgs,
		gnCheck:    true,
		runhooks:   true,
		msan:       hooks.msan,
		cfi:        hooks.cfi,
	}
}
