package reproducer

import (
	"regexp"
	"strings"
)

// stateFrames is how many stack frames make up a crash state, matching what
// the FuzzKit backend records for a testcase.
const stateFrames = 3

var (
	// frameRegex matches sanitizer stack frames: "#N 0xADDR in symbol ...".
	frameRegex = regexp.MustCompile(`#\d+\s+0x[0-9a-fA-F]+\s+in\s+(\S+)`)

	// templateArgsRegex strips template noise the backend also strips.
	templateArgsRegex = regexp.MustCompile(`<.*>`)
)

// crashState extracts the crash state from a run's output: the top distinct
// frames of the first reported stack.
func crashState(output string) []string {
	var frames []string
	seen := map[string]bool{}

	for _, line := range strings.Split(output, "\n") {
		match := frameRegex.FindStringSubmatch(line)
		if match == nil {
			// Frames stop at the first non-frame line once the stack started;
			// later stacks (e.g. the allocation stack) are not part of the
			// crash state.
			if len(frames) > 0 {
				break
			}
			continue
		}

		frame := normalizeFrame(match[1])
		if frame == "" || seen[frame] {
			continue
		}
		seen[frame] = true
		frames = append(frames, frame)

		if len(frames) == stateFrames {
			break
		}
	}

	return frames
}

// normalizeFrame reduces a symbol to the form crash states use: no argument
// list, no template arguments.
func normalizeFrame(symbol string) string {
	if i := strings.IndexByte(symbol, '('); i >= 0 {
		symbol = symbol[:i]
	}
	symbol = templateArgsRegex.ReplaceAllString(symbol, "")
	return strings.TrimSpace(symbol)
}

// stateMatches compares the recorded crash state with an observed one. An
// empty recorded state accepts any crash; otherwise every recorded frame
// must appear at its position in the observed state.
func stateMatches(expected, observed []string) bool {
	if len(expected) == 0 {
		return true
	}
	if len(observed) < len(expected) {
		return false
	}
	for i, frame := range expected {
		if observed[i] != frame {
			return false
		}
	}
	return true
}
