package daemon

import (
	"context"
	"os"

	"github.com/fuzzkit/repro/internal/builder"
	"github.com/fuzzkit/repro/internal/logger"
	"github.com/fuzzkit/repro/internal/shell"
)

// NewCheckoutReset returns a Reset hook that puts the source checkout back
// on a clean HEAD and removes the build output directory, so edits and
// artifacts from one run never leak into the next. The checkout is opened
// per call; a checkout that cannot be reset stops the daemon.
func NewCheckoutReset(sourceDir, outDir string, runner shell.Runner, log *logger.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		checkout, err := builder.OpenCheckout(sourceDir, runner)
		if err != nil {
			return err
		}
		if err := checkout.ResetHard(); err != nil {
			return err
		}
		log.Debugf("reset checkout %s", sourceDir)

		if outDir != "" {
			if err := os.RemoveAll(outDir); err != nil {
				return err
			}
			log.Debugf("removed %s", outDir)
		}
		return nil
	}
}
