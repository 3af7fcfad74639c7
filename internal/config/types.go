// Package config loads and validates the job-types document: the mapping
// from FuzzKit job types to the builder, reproducer, and source checkout
// needed to reproduce them locally.
package config

import "sort"

// BuildType selects which job table a definition lives in.
const (
	BuildStandalone = "standalone"
	BuildChromium   = "chromium"
	BuildDownload   = "download"
)

// Document is the raw YAML layout. Definitions may inherit from presets and
// presets may inherit from each other.
type Document struct {
	Presets    map[string]Definition `yaml:"presets"`
	Standalone map[string]Definition `yaml:"standalone"`
	Chromium   map[string]Definition `yaml:"chromium"`
}

// Definition is one unresolved job-type entry.
type Definition struct {
	Preset     string `yaml:"preset,omitempty"`
	Builder    string `yaml:"builder,omitempty"`
	Source     string `yaml:"source,omitempty"`
	Reproducer string `yaml:"reproducer,omitempty"`
	Binary     string `yaml:"binary,omitempty"`
	Sanitizer  string `yaml:"sanitizer,omitempty"`
	Target     string `yaml:"target,omitempty"`
}

// JobType is a fully resolved definition ready for the reproduce pipeline.
type JobType struct {
	Name       string `validate:"required,job_name"`
	BuildType  string `validate:"required,oneof=standalone chromium"`
	Builder    string `validate:"required,oneof=Pdfium V8 MsanV8 Chromium MsanChromium CfiChromium UbsanVptrChromium LibfuzzerMsan"`
	SourceVar  string `validate:"required"`
	Reproducer string `validate:"required,oneof=Base LibfuzzerJob LinuxChromeJob"`
	Binary     string
	Sanitizer  string
	Target     string
}

// Table holds every resolved job type, grouped the way lookups happen.
type Table struct {
	Standalone map[string]JobType
	Chromium   map[string]JobType
}

// Names returns the job-type names of one build table in sorted order.
func (t *Table) Names(buildType string) []string {
	var m map[string]JobType
	switch buildType {
	case BuildStandalone:
		m = t.Standalone
	case BuildChromium:
		m = t.Chromium
	default:
		return nil
	}

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
