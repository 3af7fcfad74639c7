package watch

import "github.com/fuzzkit/repro/internal/history"

// RunStartedMsg announces that the daemon began reproducing a testcase.
type RunStartedMsg struct {
	TestcaseID string
	Kind       string
}

// RunFinishedMsg carries the record of a finished run.
type RunFinishedMsg struct {
	Record history.RunRecord
}

// StoppedMsg reports that the daemon exited. Err is nil on a clean stop.
type StoppedMsg struct {
	Err error
}
