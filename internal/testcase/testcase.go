// Package testcase models FuzzKit testcases: the detail document served by
// the API, the environment and arguments mined from the crash stacktrace,
// and the local testcase file cache.
package testcase

import (
	"encoding/json"
	"strings"
)

// Testcase is the parsed testcase detail document.
type Testcase struct {
	ID               string
	JobType          string
	Revision         int64
	BuildURL         string
	AbsolutePath     string
	FileExtension    string
	Reproducible     bool
	Gestures         []string
	CrashType        string
	CrashState       string
	StacktraceLines  []string
	Environment      map[string]string
	ReproductionArgs string
	GNArgs           string
}

type detailDoc struct {
	ID              json.Number `json:"id"`
	CrashType       string      `json:"crash_type"`
	CrashState      string      `json:"crash_state"`
	CrashRevision   int64       `json:"crash_revision"`
	CrashStacktrace struct {
		Lines []struct {
			Content string `json:"content"`
		} `json:"lines"`
	} `json:"crash_stacktrace"`
	Metadata struct {
		BuildURL string `json:"build_url"`
		GNArgs   string `json:"gn_args"`
	} `json:"metadata"`
	Testcase struct {
		JobType            string   `json:"job_type"`
		AbsolutePath       string   `json:"absolute_path"`
		OneTimeCrasherFlag bool     `json:"one_time_crasher_flag"`
		Gestures           []string `json:"gestures"`
		WindowArgument     string   `json:"window_argument"`
		MinimizedArguments string   `json:"minimized_arguments"`
	} `json:"testcase"`
}

// Parse decodes a testcase detail document.
func Parse(data []byte) (*Testcase, error) {
	var doc detailDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(doc.CrashStacktrace.Lines))
	for _, line := range doc.CrashStacktrace.Lines {
		lines = append(lines, line.Content)
	}

	env, args := environmentAndArgs(lines)
	if args == "" {
		args = strings.TrimSpace(doc.Testcase.WindowArgument + " " + doc.Testcase.MinimizedArguments)
	}

	return &Testcase{
		ID:               doc.ID.String(),
		JobType:          doc.Testcase.JobType,
		Revision:         doc.CrashRevision,
		BuildURL:         doc.Metadata.BuildURL,
		AbsolutePath:     doc.Testcase.AbsolutePath,
		FileExtension:    fileExtension(doc.Testcase.AbsolutePath),
		Reproducible:     !doc.Testcase.OneTimeCrasherFlag,
		Gestures:         doc.Testcase.Gestures,
		CrashType:        doc.CrashType,
		CrashState:       doc.CrashState,
		StacktraceLines:  lines,
		Environment:      env,
		ReproductionArgs: args,
		GNArgs:           doc.Metadata.GNArgs,
	}, nil
}

// BinaryName extracts the base name of the crashing binary from the run
// command recorded in the stacktrace, or "" when no command was recorded.
func (t *Testcase) BinaryName() string {
	for _, line := range t.StacktraceLines {
		if !strings.Contains(line, "Running command: ") {
			continue
		}
		entry := strings.Replace(line, "Running command: ", "", 1)
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		parts := strings.Split(fields[0], "/")
		return parts[len(parts)-1]
	}
	return ""
}

// environmentAndArgs mines sanitizer environment variables and the original
// run arguments out of the stacktrace header.
func environmentAndArgs(lines []string) (map[string]string, string) {
	env := map[string]string{}
	args := ""

	for _, line := range lines {
		switch {
		case strings.Contains(line, "[Environment] "):
			entry := strings.Replace(line, "[Environment] ", "", 1)
			name, value, ok := strings.Cut(entry, " = ")
			if !ok {
				continue
			}
			if strings.Contains(name, "_OPTIONS") {
				value = forceSymbolize(value)
			}
			env[name] = value

		case strings.Contains(line, "Running command: "):
			entry := strings.Replace(line, "Running command: ", "", 1)
			fields := strings.Fields(entry)
			// The first field is the binary, the last the testcase path;
			// neither is valid on this machine.
			if len(fields) > 2 {
				args = strings.Join(fields[1:len(fields)-1], " ")
			} else {
				args = ""
			}
		}
	}

	return env, args
}

// forceSymbolize rewrites sanitizer options so the local run produces a
// symbolized stack even when the original job disabled it.
func forceSymbolize(value string) string {
	value = strings.ReplaceAll(value, "symbolize=0", "symbolize=1")
	if !strings.Contains(value, "symbolize=1") {
		value += ":symbolize=1"
	}
	return value
}

// fileExtension returns the dot-prefixed extension of the testcase path, or
// "" when the name has none.
func fileExtension(path string) string {
	parts := strings.Split(path, ".")
	if len(parts) < 2 {
		return ""
	}
	return "." + parts[len(parts)-1]
}
