// Package watch is the live dashboard for the watch daemon: a spinner row
// for the testcase currently being reproduced, a scrollback of finished
// runs, and running totals.
package watch

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fuzzkit/repro/internal/history"
)

// maxRows bounds the scrollback so long daemon sessions keep a stable
// screen height.
const maxRows = 15

type activeRun struct {
	testcaseID string
	kind       string
	startedAt  time.Time
}

// Model is the Bubble Tea state for the watch dashboard.
type Model struct {
	version string

	current *activeRun
	rows    []history.RunRecord

	reproduced int
	failed     int

	spinner   spinner.Model
	startedAt time.Time
	width     int

	finished bool
	stopErr  error
}

// NewModel builds the dashboard model.
func NewModel(version string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return Model{
		version:   version,
		spinner:   s,
		startedAt: time.Now(),
		width:     80,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Reproduced returns how many runs ended with a matching crash.
func (m Model) Reproduced() int {
	return m.reproduced
}

// Failed returns how many runs did not reproduce.
func (m Model) Failed() int {
	return m.failed
}

// IsFinished reports whether the dashboard is shutting down.
func (m Model) IsFinished() bool {
	return m.finished
}

// StopErr returns the daemon error that ended the session, if any.
func (m Model) StopErr() error {
	return m.stopErr
}
