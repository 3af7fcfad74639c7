// Package tui renders the reproduce command's terminal output: the crash
// report card shown before a run and the outcome lines and warning banners
// shown after it.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Report describes the testcase about to be reproduced.
type Report struct {
	TestcaseID string
	JobType    string
	CrashType  string
	CrashState []string
	Binary     string
	BuildDir   string
}

// Outcome describes how the reproduction attempt ended.
type Outcome struct {
	Reproduced bool
	Matched    bool
	Attempts   int
	Signature  []string
}

// RenderReport draws the testcase card.
func RenderReport(r Report) string {
	var lines []string

	title := fmt.Sprintf("Testcase %s", r.TestcaseID)
	if r.JobType != "" {
		title = fmt.Sprintf("%s • %s", title, r.JobType)
	}
	lines = append(lines, titleStyle.Render(title), "")

	lines = append(lines, renderField("Crash type", []string{r.CrashType})...)
	lines = append(lines, renderField("Crash state", r.CrashState)...)
	lines = append(lines, renderField("Binary", []string{r.Binary})...)
	lines = append(lines, renderField("Build dir", []string{r.BuildDir})...)

	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// renderField renders a label with one value line per entry, continuation
// lines indented under the label. Empty fields render nothing.
func renderField(label string, values []string) []string {
	var lines []string
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if len(lines) == 0 {
			lines = append(lines, labelStyle.Render(label)+valueStyle.Render(value))
			continue
		}
		lines = append(lines, labelStyle.Render("")+valueStyle.Render(value))
	}
	return lines
}

// RenderOutcome draws the verdict for a finished run.
func RenderOutcome(o Outcome) string {
	switch {
	case o.Reproduced && o.Matched:
		return successStyle.Render(
			fmt.Sprintf("✓ Crash reproduced after %s", attempts(o.Attempts)))
	case o.Reproduced:
		lines := []string{mismatchStyle.Render(
			fmt.Sprintf("⚠ Crashed after %s, but with a different crash state:", attempts(o.Attempts)))}
		for _, frame := range o.Signature {
			lines = append(lines, valueStyle.Render("  "+frame))
		}
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	default:
		return failureStyle.Render(
			fmt.Sprintf("✗ Did not reproduce after %s", attempts(o.Attempts)))
	}
}

func attempts(n int) string {
	if n == 1 {
		return "1 attempt"
	}
	return fmt.Sprintf("%d attempts", n)
}

// RenderGestureWarning is shown for testcases that replay recorded user
// gestures, which makes them inherently flaky.
func RenderGestureWarning() string {
	return warningBannerStyle.Render(
		"This testcase replays user gestures and is inherently flaky.\n" +
			"A failure to reproduce does not mean the crash is fixed.")
}

// RenderMarkedUnreproducibleWarning is shown when the service itself never
// reproduced the crash reliably.
func RenderMarkedUnreproducibleWarning() string {
	return warningBannerStyle.Render(
		"FuzzKit marked this testcase as unreproducible.\n" +
			"It may not reproduce locally either.")
}

// RenderUnreproducibleWarning is shown when every attempt ran clean.
func RenderUnreproducibleWarning(testcaseID string, iterations int) string {
	return warningBannerStyle.Render(fmt.Sprintf(
		"Testcase %s did not crash in %d runs.\n"+
			"Try --iterations with a higher count, or --current to test against your local tree.",
		testcaseID, iterations))
}
