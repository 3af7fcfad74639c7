package builder

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseGNArgs converts args.gn text into a key-value map. Values keep their
// gn spelling (quoted strings stay quoted).
func ParseGNArgs(text string) (map[string]string, error) {
	args := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("gn args line %q has no '='", line)
		}
		args[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return args, nil
}

// SerializeGNArgs renders a gn args map one assignment per line with sorted
// keys, so rewrites of the same map are byte-identical.
func SerializeGNArgs(args map[string]string) string {
	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+" = "+args[key])
	}
	return strings.Join(lines, "\n")
}

// applyGomaArgs rewrites the goma keys in place: enabled builds point
// goma_dir at the local installation, disabled builds drop the key so gn
// does not chase a stale path from the downloaded build.
func applyGomaArgs(args map[string]string, gomaDir string) {
	if gomaDir == "" {
		delete(args, "goma_dir")
		args["use_goma"] = "false"
		return
	}
	args["use_goma"] = "true"
	args["goma_dir"] = strconv.Quote(gomaDir)
}

// msanTrackOrigins reads the build's msan_track_origins value, defaulting to
// the level the instrumented libraries are built with.
func msanTrackOrigins(args map[string]string) int {
	if raw, ok := args["msan_track_origins"]; ok {
		if value, err := strconv.Atoi(raw); err == nil {
			return value
		}
	}
	return 2
}
