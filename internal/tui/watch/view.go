package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the dashboard.
func (m Model) View() string {
	var sections []string

	sections = append(sections, titleStyle.Render(fmt.Sprintf("FuzzKit Watch • %s", m.version)))

	switch {
	case m.current != nil:
		elapsed := time.Since(m.current.startedAt).Truncate(time.Second)
		sections = append(sections, fmt.Sprintf("%s reproducing testcase %s (%s) %s",
			m.spinner.View(), m.current.testcaseID, m.current.kind, mutedStyle.Render(elapsed.String())))
	case !m.finished:
		sections = append(sections, mutedStyle.Render("waiting for testcases"))
	}

	if len(m.rows) > 0 {
		sections = append(sections, m.renderRows())
	}

	sections = append(sections, m.renderFooter())

	if m.stopErr != nil {
		sections = append(sections, errorBannerStyle.Render("watch stopped: "+m.stopErr.Error()))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m Model) renderRows() string {
	lines := make([]string, 0, len(m.rows))
	for i := len(m.rows) - 1; i >= 0; i-- {
		row := m.rows[i]
		line := fmt.Sprintf(" %s %s  %-10s  %8s  %s",
			statusIcon(row.OK),
			row.Timestamp.Local().Format("15:04:05"),
			row.Kind,
			row.Duration.Truncate(100*time.Millisecond),
			row.TestcaseID)
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	uptime := time.Since(m.startedAt).Truncate(time.Second)
	counters := fmt.Sprintf("%s reproduced • %s failed • up %s",
		okStyle.Render(fmt.Sprintf("%d", m.reproduced)),
		failStyle.Render(fmt.Sprintf("%d", m.failed)),
		uptime)
	if !m.finished {
		counters += mutedStyle.Render("  (q to quit)")
	}
	return footerStyle.Render(counters)
}

func statusIcon(ok bool) string {
	if ok {
		return okStyle.Render("✓")
	}
	return failStyle.Render("✗")
}
