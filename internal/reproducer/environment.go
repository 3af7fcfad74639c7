package reproducer

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fuzzkit/repro/internal/testcase"
)

// runEnvironment merges the environment recorded with the testcase and
// prepares the sanitizer options for a local, symbolized run.
func runEnvironment(tc *testcase.Testcase, opts Options) map[string]string {
	env := make(map[string]string, len(tc.Environment)+2)
	for key, value := range tc.Environment {
		env[key] = value
	}

	if opts.Sanitizer != "" {
		key := opts.Sanitizer + "_OPTIONS"
		options := deserializeSanitizerOptions(env[key])
		options["symbolize"] = "1"

		if symbolizer := findSymbolizer(opts.BuildDir); symbolizer != "" {
			options["external_symbolizer_path"] = symbolizer
		}

		env[key] = serializeSanitizerOptions(options)
	}

	return env
}

// deserializeSanitizerOptions parses the colon-separated key=value format
// sanitizer runtimes read. Entries without '=' are dropped.
func deserializeSanitizerOptions(serialized string) map[string]string {
	options := make(map[string]string)
	for _, entry := range strings.Split(serialized, ":") {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		options[key] = value
	}
	return options
}

// serializeSanitizerOptions renders options with sorted keys so the same map
// always serializes identically.
func serializeSanitizerOptions(options map[string]string) string {
	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]string, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, key+"="+options[key])
	}
	return strings.Join(entries, ":")
}

// findSymbolizer locates the llvm-symbolizer a build shipped with, walking
// from the out directory up into the source tree's bundled toolchain.
func findSymbolizer(buildDir string) string {
	if buildDir == "" {
		return ""
	}

	candidates := []string{
		filepath.Join(buildDir, "llvm-symbolizer"),
		filepath.Join(buildDir, "..", "..", "third_party",
			"llvm-build", "Release+Asserts", "bin", "llvm-symbolizer"),
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return filepath.Clean(candidate)
		}
	}
	return ""
}
