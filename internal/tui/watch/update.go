package watch

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.finished = true
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case RunStartedMsg:
		m.current = &activeRun{
			testcaseID: msg.TestcaseID,
			kind:       msg.Kind,
			startedAt:  time.Now(),
		}
		return m, nil

	case RunFinishedMsg:
		m.current = nil
		m.rows = append(m.rows, msg.Record)
		if len(m.rows) > maxRows {
			m.rows = m.rows[len(m.rows)-maxRows:]
		}
		if msg.Record.OK {
			m.reproduced++
		} else {
			m.failed++
		}
		return m, nil

	case StoppedMsg:
		m.current = nil
		m.finished = true
		m.stopErr = msg.Err
		return m, tea.Quit
	}

	return m, nil
}
