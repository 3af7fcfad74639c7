package builder

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuzzkit/repro/internal/config"
	"github.com/fuzzkit/repro/internal/logger"
	"github.com/fuzzkit/repro/internal/shell"
	"github.com/fuzzkit/repro/internal/testcase"
	reproerrors "github.com/fuzzkit/repro/pkg/errors"
)

// fakeRunner records every command and optionally simulates its effects.
type fakeRunner struct {
	mu       sync.Mutex
	commands []shell.Command
	handler  func(cmd shell.Command) (shell.Result, error)
}

func (f *fakeRunner) Run(ctx context.Context, cmd shell.Command) (shell.Result, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()

	if f.handler != nil {
		return f.handler(cmd)
	}
	return shell.Result{}, nil
}

// ran renders the recorded commands the way they would be typed.
func (f *fakeRunner) ran() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	rendered := make([]string, 0, len(f.commands))
	for _, cmd := range f.commands {
		rendered = append(rendered, cmd.String())
	}
	return rendered
}

func ranContaining(t *testing.T, runner *fakeRunner, fragment string) shell.Command {
	t.Helper()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	for _, cmd := range runner.commands {
		if strings.Contains(cmd.String(), fragment) {
			return cmd
		}
	}
	t.Fatalf("no recorded command contains %q; ran: %v", fragment, runner.commands)
	return shell.Command{}
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(logger.Options{Writer: io.Discard})
	require.NoError(t, err)
	return log
}

func testOptions(t *testing.T, runner *fakeRunner, cacheDir string) Options {
	t.Helper()

	return Options{
		CacheDir: cacheDir,
		Runner:   runner,
		Log:      testLogger(t),
	}
}

func sampleTestcase() *testcase.Testcase {
	return &testcase.Testcase{
		ID:       "4242",
		JobType:  "linux_asan_d8",
		Revision: 456789,
		BuildURL: "https://storage.cloud.google.com/fuzzkit-builds/d8-asan-456789.zip",
		GNArgs:   "is_asan = true\nis_debug = false",
		StacktraceLines: []string{
			"Running command: /b/builds/out/chrome --type=renderer /tmp/testcase.html",
		},
	}
}

func TestNew_DownloadBuildUsesPrebuiltArchive(t *testing.T) {
	runner := &fakeRunner{}
	def := config.JobType{Name: "linux_asan_d8", Builder: "V8", SourceVar: "V8_SRC", Binary: "d8"}

	provider, err := New(sampleTestcase(), def, config.BuildDownload, testOptions(t, runner, t.TempDir()))
	require.NoError(t, err)

	download, ok := provider.(*DownloadedBinary)
	require.True(t, ok)
	assert.Equal(t, "d8", download.binaryName)
}

func TestNew_DownloadFallsBackToStacktraceBinary(t *testing.T) {
	runner := &fakeRunner{}
	def := config.JobType{Name: "linux_asan_chrome_mp", Builder: "Chromium", SourceVar: "CHROMIUM_SRC"}

	provider, err := New(sampleTestcase(), def, config.BuildDownload, testOptions(t, runner, t.TempDir()))
	require.NoError(t, err)

	download, ok := provider.(*DownloadedBinary)
	require.True(t, ok)
	assert.Equal(t, "chrome", download.binaryName)
}

func TestNew_SourceBuildRequiresSourceVar(t *testing.T) {
	t.Setenv("FUZZKIT_TEST_UNSET_SRC", "")

	def := config.JobType{Name: "linux_asan_d8", Builder: "V8", SourceVar: "FUZZKIT_TEST_UNSET_SRC"}
	_, err := New(sampleTestcase(), def, config.BuildStandalone, testOptions(t, &fakeRunner{}, t.TempDir()))
	require.Error(t, err)

	var validationErr *reproerrors.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestNew_UnknownBuilderIsTyped(t *testing.T) {
	t.Setenv("FUZZKIT_TEST_SRC", t.TempDir())

	def := config.JobType{
		Name:      "linux_asan_d8",
		BuildType: config.BuildStandalone,
		Builder:   "Fortran",
		SourceVar: "FUZZKIT_TEST_SRC",
	}
	_, err := New(sampleTestcase(), def, config.BuildStandalone, testOptions(t, &fakeRunner{}, t.TempDir()))
	require.Error(t, err)

	var defErr *reproerrors.JobDefinitionError
	require.True(t, errors.As(err, &defErr))
	assert.Contains(t, defErr.Error(), "Fortran")
}

func TestNew_MapsBuilderNamesOntoVariants(t *testing.T) {
	t.Setenv("FUZZKIT_TEST_SRC", t.TempDir())

	cases := []struct {
		builder   string
		repo      string
		pdfiumPin bool
		msan      bool
		cfi       bool
	}{
		{builder: "Pdfium", repo: "chromium/src", pdfiumPin: true},
		{builder: "V8", repo: "v8/v8"},
		{builder: "MsanV8", repo: "v8/v8", msan: true},
		{builder: "Chromium", repo: "chromium/src"},
		{builder: "UbsanVptrChromium", repo: "chromium/src"},
		{builder: "MsanChromium", repo: "chromium/src", msan: true},
		{builder: "LibfuzzerMsan", repo: "chromium/src", msan: true},
		{builder: "CfiChromium", repo: "chromium/src", cfi: true},
	}

	for _, tc := range cases {
		t.Run(tc.builder, func(t *testing.T) {
			def := config.JobType{
				Name:      "some_job",
				Builder:   tc.builder,
				SourceVar: "FUZZKIT_TEST_SRC",
				Binary:    "content_shell",
			}

			provider, err := New(sampleTestcase(), def, config.BuildStandalone, testOptions(t, &fakeRunner{}, t.TempDir()))
			require.NoError(t, err)

			build, ok := provider.(*sourceBuild)
			require.True(t, ok)
			assert.Equal(t, tc.repo, build.repo)
			assert.Equal(t, tc.pdfiumPin, build.pdfiumPin)
			assert.Equal(t, tc.msan, build.msan)
			assert.Equal(t, tc.cfi, build.cfi)
		})
	}
}

func TestNew_ChromiumTargetFallsBackToBinary(t *testing.T) {
	t.Setenv("FUZZKIT_TEST_SRC", t.TempDir())

	def := config.JobType{
		Name:      "linux_asan_chrome_mp",
		Builder:   "Chromium",
		SourceVar: "FUZZKIT_TEST_SRC",
	}

	provider, err := New(sampleTestcase(), def, config.BuildStandalone, testOptions(t, &fakeRunner{}, t.TempDir()))
	require.NoError(t, err)

	build, ok := provider.(*sourceBuild)
	require.True(t, ok)
	assert.Equal(t, "chrome", build.binaryName)
	assert.Equal(t, "chrome", build.target)
}
