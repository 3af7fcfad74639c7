// Package daemon implements the watch loop: run the sanity testcases from
// the local config, then poll the FuzzKit service for fresh reproducible
// testcases and run each through the reproduce pipeline.
package daemon

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"gopkg.in/yaml.v3"

	"github.com/fuzzkit/repro/internal/api"
	"github.com/fuzzkit/repro/internal/config"
	"github.com/fuzzkit/repro/internal/history"
	"github.com/fuzzkit/repro/internal/logger"
)

const (
	// defaultInterval is the pause between runs, so a busted testcase queue
	// cannot hammer the service.
	defaultInterval = 30 * time.Second

	// defaultBatchSize is how many candidate testcases one poll gathers
	// before running them.
	defaultBatchSize = 40

	// Tried testcases are remembered this long; after that a success is
	// worth re-verifying.
	defaultCacheSize = 1000
	defaultCacheTTL  = 48 * time.Hour

	// maxPages bounds one poll's page walk in case the service keeps
	// serving already-filtered items.
	maxPages = 20
)

// Lister serves pages of reproducible testcases. The api client satisfies
// this.
type Lister interface {
	ListTestcases(ctx context.Context, page int) ([]api.Summary, error)
}

// RunFunc reproduces one testcase. The daemon records the outcome; any
// error counts as a failed reproduction, not a daemon failure.
type RunFunc func(ctx context.Context, testcaseID string) error

// Options wires a Daemon.
type Options struct {
	Lister  Lister
	Table   *config.Table
	Run     RunFunc
	History *history.Store
	Log     *logger.Logger

	// Version is stamped into every run record.
	Version string

	// SanityPath points at the YAML list of known-reproducible testcases
	// run before polling starts. Empty skips the sanity pass.
	SanityPath string

	Interval  time.Duration
	BatchSize int
	CacheSize int
	CacheTTL  time.Duration

	// Reset runs before every testcase to put shared state (the chromium
	// checkout, stale out directories) back to a known-clean baseline.
	Reset func(ctx context.Context) error

	// Sleep is injectable for tests; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnStart and OnFinish feed the watch dashboard. Either may be nil.
	OnStart  func(testcaseID, kind string)
	OnFinish func(record history.RunRecord)
}

// Daemon is the continuous reproduction loop.
type Daemon struct {
	lister  Lister
	table   *config.Table
	run     RunFunc
	history *history.Store
	log     *logger.Logger

	version    string
	sanityPath string
	interval   time.Duration
	batchSize  int

	cache *expirable.LRU[string, bool]

	reset    func(ctx context.Context) error
	sleep    func(ctx context.Context, d time.Duration) error
	onStart  func(testcaseID, kind string)
	onFinish func(record history.RunRecord)
}

// New builds a Daemon from options, filling defaults.
func New(opts Options) *Daemon {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	cacheSize := opts.CacheSize
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cacheTTL := opts.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	return &Daemon{
		lister:     opts.Lister,
		table:      opts.Table,
		run:        opts.Run,
		history:    opts.History,
		log:        opts.Log,
		version:    opts.Version,
		sanityPath: opts.SanityPath,
		interval:   interval,
		batchSize:  batch,
		cache:      expirable.NewLRU[string, bool](cacheSize, nil, cacheTTL),
		reset:      opts.Reset,
		sleep:      sleep,
		onStart:    opts.OnStart,
		onFinish:   opts.OnFinish,
	}
}

// Run executes the sanity pass and then polls until the context is
// cancelled. It returns the context's error on cancellation; any other
// return means the daemon could not continue.
func (d *Daemon) Run(ctx context.Context) error {
	sanity, err := d.loadSanityTestcases()
	if err != nil {
		return err
	}

	d.log.Infof("watch starting: %d sanity testcases", len(sanity))
	for _, id := range sanity {
		if err := d.runOne(ctx, id, history.KindSanity); err != nil {
			return err
		}
		if err := d.sleep(ctx, d.interval); err != nil {
			return err
		}
	}

	for {
		ids, err := d.loadNewTestcases(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.log.Error(err, "failed to load testcases; backing off")
			if err := d.sleep(ctx, d.interval); err != nil {
				return err
			}
			continue
		}

		d.log.Debugf("poll returned %d candidate testcases", len(ids))
		for _, id := range ids {
			if err := d.runOne(ctx, id, history.KindContinuous); err != nil {
				return err
			}
			if err := d.sleep(ctx, d.interval); err != nil {
				return err
			}
		}
	}
}

// runOne resets shared state, reproduces one testcase, and records the
// outcome. A failed reproduction is recorded, not returned: the loop only
// stops for cancellation or a failing reset.
func (d *Daemon) runOne(ctx context.Context, id, kind string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.reset != nil {
		if err := d.reset(ctx); err != nil {
			return err
		}
	}

	if d.onStart != nil {
		d.onStart(id, kind)
	}
	d.log.WithFields(map[string]any{"testcase": id, "kind": kind}).Info("reproducing testcase")

	start := time.Now()
	runErr := d.run(ctx, id)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	ok := runErr == nil
	d.cache.Add(id, ok)

	record := history.RunRecord{
		TestcaseID: id,
		Kind:       kind,
		Version:    d.version,
		OK:         ok,
		Duration:   time.Since(start),
		Timestamp:  time.Now().UTC(),
	}
	if err := d.history.Append(record); err != nil {
		d.log.Error(err, "failed to record run")
	}
	if d.onFinish != nil {
		d.onFinish(record)
	}

	if ok {
		d.log.WithFields(map[string]any{"testcase": id}).Info("reproduced")
	} else {
		d.log.WithFields(map[string]any{"testcase": id}).Error(runErr, "did not reproduce")
	}
	return nil
}

// loadNewTestcases walks the listing pages and returns a batch of testcase
// ids worth running: supported chromium job types, minus anything this
// daemon already reproduced successfully. Failed testcases stay eligible so
// flaky ones get retried.
func (d *Daemon) loadNewTestcases(ctx context.Context) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)

	for page := 1; len(ids) < d.batchSize && page <= maxPages; page++ {
		items, err := d.lister.ListTestcases(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			id := strconv.FormatInt(item.ID, 10)
			if seen[id] {
				continue
			}
			if _, supported := d.table.Chromium[item.JobType]; !supported {
				continue
			}
			if reproduced, tried := d.cache.Get(id); tried && reproduced {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}

	return ids, nil
}

// sanityDoc is the layout of the sanity testcase list.
type sanityDoc struct {
	Testcases []int64 `yaml:"testcases"`
}

func (d *Daemon) loadSanityTestcases() ([]string, error) {
	if d.sanityPath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(d.sanityPath)
	if err != nil {
		return nil, err
	}

	var doc sanityDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(doc.Testcases))
	for _, id := range doc.Testcases {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	return ids, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
