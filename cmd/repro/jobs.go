package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fuzzkit/repro/internal/config"
)

// jobsDoc is the machine-readable shape of the jobs listing. Version lets a
// consumer detect which tool release produced a run.
type jobsDoc struct {
	Version    string   `yaml:"Version"`
	Standalone []string `yaml:"standalone"`
	Chromium   []string `yaml:"chromium"`
}

func newJobsCmd() *cobra.Command {
	var jobTypesPath string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List the supported job types as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := config.Load(jobTypesPath)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(jobsDoc{
				Version:    version,
				Standalone: table.Names(config.BuildStandalone),
				Chromium:   table.Names(config.BuildChromium),
			})
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&jobTypesPath, "job-types", "", "Path to a job-types document (default: embedded table)")

	return cmd
}
