// Package diff renders unified-style diffs of small text files. The build
// pipeline uses it to log what an args.gn edit changed before gn runs.
package diff

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	// maxLines bounds rendered output. gn args files are a few dozen lines,
	// so reaching the bound means something much larger was diffed.
	maxLines = 10000

	truncateMarker = "... (diff truncated) ..."
)

// Unified compares two versions of a file and renders the changes with
// one-character line prefixes, headed by the supplied labels. Identical
// content renders as "".
func Unified(before, after []byte, beforeLabel, afterLabel string) string {
	if bytes.Equal(before, after) {
		return ""
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(string(before), string(after), false))

	var buf strings.Builder
	fmt.Fprintf(&buf, "--- %s\n", beforeLabel)
	fmt.Fprintf(&buf, "+++ %s\n", afterLabel)

	lines := 2
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}

		for _, line := range splitLines(d.Text) {
			if lines >= maxLines {
				buf.WriteString(truncateMarker)
				buf.WriteString("\n")
				return buf.String()
			}
			buf.WriteString(prefix)
			buf.WriteString(line)
			buf.WriteString("\n")
			lines++
		}
	}

	return buf.String()
}

// splitLines breaks a diff chunk into lines, dropping the empty tail element
// Split produces for chunks that end in a newline.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" && strings.HasSuffix(text, "\n") {
		lines = lines[:len(lines)-1]
	}
	return lines
}
