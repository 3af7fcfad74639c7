package config

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	reproerrors "github.com/fuzzkit/repro/pkg/errors"
)

//go:embed supported_job_types.yml
var defaultDocument []byte

// maxPresetDepth bounds preset inheritance so a preset cycle parses into an
// error instead of unbounded recursion.
const maxPresetDepth = 10

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// Load reads, resolves, and validates a job-types document. An empty path
// loads the embedded default table.
func Load(path string) (*Table, error) {
	data := defaultDocument
	name := "supported_job_types.yml (embedded)"

	if path != "" {
		read, err := os.ReadFile(path)
		if err != nil {
			return nil, reproerrors.NewParseError(path, 0, err)
		}
		data = read
		name = path
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, reproerrors.NewParseError(name, extractLine(err), err)
	}

	return resolveDocument(&doc)
}

// resolveDocument flattens preset inheritance and validates every entry.
func resolveDocument(doc *Document) (*Table, error) {
	table := &Table{
		Standalone: make(map[string]JobType, len(doc.Standalone)),
		Chromium:   make(map[string]JobType, len(doc.Chromium)),
	}

	for buildType, entries := range map[string]map[string]Definition{
		BuildStandalone: doc.Standalone,
		BuildChromium:   doc.Chromium,
	} {
		for name, def := range entries {
			resolved, err := resolveDefinition(def, doc.Presets, 0)
			if err != nil {
				return nil, reproerrors.NewJobDefinitionError(buildType, name, err.Error(), err)
			}

			jt := JobType{
				Name:       name,
				BuildType:  buildType,
				Builder:    resolved.Builder,
				SourceVar:  resolved.Source,
				Reproducer: resolved.Reproducer,
				Binary:     resolved.Binary,
				Sanitizer:  resolved.Sanitizer,
				Target:     resolved.Target,
			}
			if err := validateJobType(&jt); err != nil {
				return nil, err
			}

			switch buildType {
			case BuildStandalone:
				table.Standalone[name] = jt
			case BuildChromium:
				table.Chromium[name] = jt
			}
		}
	}

	return table, nil
}

// resolveDefinition overlays a definition onto its preset chain. Fields set
// on the definition win over inherited ones.
func resolveDefinition(def Definition, presets map[string]Definition, depth int) (Definition, error) {
	if def.Preset == "" {
		return def, nil
	}
	if depth >= maxPresetDepth {
		return Definition{}, fmt.Errorf("preset chain deeper than %d (cycle?)", maxPresetDepth)
	}

	base, ok := presets[def.Preset]
	if !ok {
		return Definition{}, fmt.Errorf("unknown preset %q", def.Preset)
	}

	resolved, err := resolveDefinition(base, presets, depth+1)
	if err != nil {
		return Definition{}, err
	}

	if def.Builder != "" {
		resolved.Builder = def.Builder
	}
	if def.Source != "" {
		resolved.Source = def.Source
	}
	if def.Reproducer != "" {
		resolved.Reproducer = def.Reproducer
	}
	if def.Binary != "" {
		resolved.Binary = def.Binary
	}
	if def.Sanitizer != "" {
		resolved.Sanitizer = def.Sanitizer
	}
	if def.Target != "" {
		resolved.Target = def.Target
	}
	resolved.Preset = ""

	return resolved, nil
}

// Find picks the job type for a testcase. The requested build table is
// consulted first; chromium then standalone serve as fallbacks so a job
// reproducible both ways prefers the richer build.
func (t *Table) Find(jobType, build string) (JobType, error) {
	if build != BuildDownload {
		if jt, ok := t.lookup(build, jobType); ok {
			return jt, nil
		}
	}
	for _, buildType := range []string{BuildChromium, BuildStandalone} {
		if jt, ok := t.lookup(buildType, jobType); ok {
			return jt, nil
		}
	}
	return JobType{}, reproerrors.NewJobTypeUnsupportedError(jobType)
}

func (t *Table) lookup(buildType, jobType string) (JobType, bool) {
	switch buildType {
	case BuildStandalone:
		jt, ok := t.Standalone[jobType]
		return jt, ok
	case BuildChromium:
		jt, ok := t.Chromium[jobType]
		return jt, ok
	default:
		return JobType{}, false
	}
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	if _, scanErr := fmt.Sscanf(matches[1], "%d", &line); scanErr != nil {
		return 0
	}
	return line
}
