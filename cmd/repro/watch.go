package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fuzzkit/repro/internal/api"
	"github.com/fuzzkit/repro/internal/builder"
	"github.com/fuzzkit/repro/internal/checks"
	"github.com/fuzzkit/repro/internal/config"
	"github.com/fuzzkit/repro/internal/daemon"
	"github.com/fuzzkit/repro/internal/history"
	"github.com/fuzzkit/repro/internal/logger"
	"github.com/fuzzkit/repro/internal/pipeline"
	"github.com/fuzzkit/repro/internal/shell"
	"github.com/fuzzkit/repro/internal/testcase"
	"github.com/fuzzkit/repro/internal/tui/watch"
)

// chromiumSrcVar names the checkout the watch loop resets between runs.
const chromiumSrcVar = "CHROMIUM_SRC"

type watchOptions struct {
	sanityPath   string
	sourceDir    string
	interval     time.Duration
	iterations   int
	jobTypesPath string

	verbose        bool
	quiet          bool
	nonInteractive bool
}

var watchCmdRunner = runWatch

func newWatchCmd(root *rootFlags) *cobra.Command {
	opts := watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Continuously reproduce fresh FuzzKit testcases",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.verbose = root.verbose
			opts.quiet = root.quiet
			opts.nonInteractive = root.quiet || !term.IsTerminal(int(os.Stdout.Fd()))
			return watchCmdRunner(opts)
		},
	}

	cmd.Flags().StringVar(&opts.sanityPath, "sanity", "", "YAML file of known-reproducible testcase ids to run first")
	cmd.Flags().StringVar(&opts.sourceDir, "source", "", "Chromium checkout to reset between runs (default $CHROMIUM_SRC)")
	cmd.Flags().DurationVar(&opts.interval, "interval", 30*time.Second, "Pause between testcase runs")
	cmd.Flags().IntVarP(&opts.iterations, "iterations", "i", defaultIterations, "Runs before a testcase counts as unreproducible")
	cmd.Flags().StringVar(&opts.jobTypesPath, "job-types", "", "Path to a job-types document (default: embedded table)")

	return cmd
}

func runWatch(opts watchOptions) error {
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
	historyPath, err := defaultHistoryPath()
	if err != nil {
		return err
	}

	level := "info"
	if opts.verbose {
		level = "debug"
	}

	// The dashboard owns the terminal, so console logging is reserved for
	// non-interactive runs. The output.log sink keeps the full trail either
	// way.
	log, err := logger.New(logger.Options{
		Level:         level,
		HumanReadable: true,
		Quiet:         opts.quiet || !opts.nonInteractive,
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

	sourceDir := opts.sourceDir
	if sourceDir == "" {
		sourceDir, err = checks.SourceDir(chromiumSrcVar)
		if err != nil {
			return err
		}
	}

	histStore, err := history.NewStore(historyPath)
	if err != nil {
		return err
	}

	client := api.New(api.Options{
		CacheDir: cacheDir,
		Logger:   log,
	})
	runner := shell.New(log)

	session := pipeline.NewSession(pipeline.SessionOptions{
		Service:  client,
		Store:    testcase.NewStore(testcaseDir, client, log),
		Table:    table,
		Runner:   runner,
		Resolver: builder.NewRevisionResolver(builder.ResolverOptions{}),
		Log:      log,
		Out:      io.Discard,
		CacheDir: cacheDir,
	})

	run := func(ctx context.Context, testcaseID string) error {
		_, err := session.Reproduce(ctx, pipeline.ReproduceParams{
			TestcaseID: testcaseID,
			Build:      config.BuildChromium,
			Iterations: opts.iterations,
		})
		return err
	}

	daemonOpts := daemon.Options{
		Lister:     client,
		Table:      table,
		Run:        run,
		History:    histStore,
		Log:        log,
		Version:    version,
		SanityPath: opts.sanityPath,
		Interval:   opts.interval,
		Reset:      daemon.NewCheckoutReset(sourceDir, filepath.Join(sourceDir, "out"), runner, log),
	}

	if opts.nonInteractive {
		return daemon.New(daemonOpts).Run(context.Background())
	}
	return runWatchDashboard(daemonOpts)
}

// runWatchDashboard runs the daemon behind the dashboard. Quitting the
// dashboard cancels the daemon; a daemon failure stops the dashboard with
// the error left on screen.
func runWatchDashboard(daemonOpts daemon.Options) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	program := tea.NewProgram(watch.NewModel(version))

	daemonOpts.OnStart = func(testcaseID, kind string) {
		program.Send(watch.RunStartedMsg{TestcaseID: testcaseID, Kind: kind})
	}
	daemonOpts.OnFinish = func(record history.RunRecord) {
		program.Send(watch.RunFinishedMsg{Record: record})
	}

	var daemonErr error
	done := make(chan struct{})
	go func() {
		daemonErr = daemon.New(daemonOpts).Run(ctx)
		program.Send(watch.StoppedMsg{Err: daemonErr})
		close(done)
	}()

	_, programErr := program.Run()
	cancel()
	<-done

	if programErr != nil {
		return programErr
	}
	if daemonErr != nil && !errors.Is(daemonErr, context.Canceled) {
		return daemonErr
	}
	return nil
}
