package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fuzzkit/repro/internal/api"
	"github.com/fuzzkit/repro/internal/builder"
	"github.com/fuzzkit/repro/internal/config"
	"github.com/fuzzkit/repro/internal/logger"
	"github.com/fuzzkit/repro/internal/pipeline"
	"github.com/fuzzkit/repro/internal/shell"
	"github.com/fuzzkit/repro/internal/testcase"
)

// defaultIterations is how many runs a testcase gets before it counts as
// unreproducible. Gesture replays are flaky enough that one run proves
// nothing.
const defaultIterations = 10

type reproduceOptions struct {
	testcaseID      string
	current         bool
	build           string
	disableGoma     bool
	gomaThreads     int
	disableGclient  bool
	iterations      int
	disableBlackbox bool
	targetArgs      string
	editMode        bool
	jobTypesPath    string

	verbose bool
	quiet   bool
}

var reproduceCmdRunner = runReproduce

func newReproduceCmd(root *rootFlags) *cobra.Command {
	opts := reproduceOptions{}

	cmd := &cobra.Command{
		Use:   "reproduce <testcase-id>",
		Short: "Rerun a FuzzKit testcase against a local or downloaded build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.testcaseID = args[0]
			opts.verbose = root.verbose
			opts.quiet = root.quiet

			if err := validateReproduceOptions(opts); err != nil {
				return err
			}

			return reproduceCmdRunner(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.current, "current", false, "Build the checkout's current revision instead of the crash revision")
	cmd.Flags().StringVar(&opts.build, "build", config.BuildChromium, "Build to reproduce against: download, standalone, or chromium")
	cmd.Flags().BoolVar(&opts.disableGoma, "disable-goma", false, "Compile without the goma distributed-build service")
	cmd.Flags().IntVarP(&opts.gomaThreads, "goma-threads", "j", 0, "Build job count (0 lets the builder pick)")
	cmd.Flags().BoolVar(&opts.disableGclient, "disable-gclient", false, "Skip running gclient runhooks before the build")
	cmd.Flags().IntVarP(&opts.iterations, "iterations", "i", defaultIterations, "Runs before the testcase counts as unreproducible")
	cmd.Flags().BoolVar(&opts.disableBlackbox, "disable-blackbox", false, "Run without the blackbox window manager")
	cmd.Flags().StringVar(&opts.targetArgs, "target-args", "", "Extra arguments appended to the target command line")
	cmd.Flags().BoolVar(&opts.editMode, "edit-mode", false, "Open generated build args in $EDITOR before compiling")
	cmd.Flags().StringVar(&opts.jobTypesPath, "job-types", "", "Path to a job-types document (default: embedded table)")

	return cmd
}

func validateReproduceOptions(opts reproduceOptions) error {
	switch opts.build {
	case config.BuildDownload, config.BuildStandalone, config.BuildChromium:
	default:
		return fmt.Errorf("invalid --build %q: want download, standalone, or chromium", opts.build)
	}
	if opts.iterations < 1 {
		return fmt.Errorf("invalid --iterations %d: must be at least 1", opts.iterations)
	}
	return nil
}

func runReproduce(opts reproduceOptions) error {
	tool, err := toolDir()
	if err != nil {
		return err
	}
	cacheDir, err := defaultCacheDir()
	if err != nil {
		return err
	}
	testcaseDir, err := defaultTestcaseDir()
	if err != nil {
		return err
	}

	level := "info"
	if opts.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Options{
		Level:         level,
		HumanReadable: true,
		Quiet:         opts.quiet,
		LogDir:        tool,
	})
	if err != nil {
		return err
	}
	defer log.Close()

	table, err := config.Load(opts.jobTypesPath)
	if err != nil {
		return err
	}

	client := api.New(api.Options{
		CacheDir: cacheDir,
		Logger:   log,
	})

	out := io.Writer(os.Stdout)
	if opts.quiet {
		out = io.Discard
	}

	session := pipeline.NewSession(pipeline.SessionOptions{
		Service:  client,
		Store:    testcase.NewStore(testcaseDir, client, log),
		Table:    table,
		Runner:   shell.New(log),
		Resolver: builder.NewRevisionResolver(builder.ResolverOptions{}),
		Log:      log,
		Out:      out,
		CacheDir: cacheDir,
		EditMode: opts.editMode,
		Confirm:  confirmPrompt,
	})

	_, err = session.Reproduce(context.Background(), pipeline.ReproduceParams{
		TestcaseID:      opts.testcaseID,
		Current:         opts.current,
		Build:           opts.build,
		DisableGoma:     opts.disableGoma,
		GomaThreads:     opts.gomaThreads,
		DisableGclient:  opts.disableGclient,
		Iterations:      opts.iterations,
		DisableBlackbox: opts.disableBlackbox,
		TargetArgs:      opts.targetArgs,
	})
	return err
}

// confirmPrompt asks on stdin before a step rewrites the user's checkout.
func confirmPrompt(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
