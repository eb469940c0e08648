package main

import (
	"github.com/spf13/cobra"

	"effectlint/internal/consistency"
	"effectlint/internal/output"
)

var consistencyCmd = &cobra.Command{
	Use:   "consistency [paths...]",
	Short: "Report conflicting conventions across files",
	Long: `Compare files for mixed conventions: raw node fs or path next to the
platform services, mixed Effect import styles, and native Error classes next
to tagged errors.

Examples:
  effectlint consistency src/
  effectlint consistency --format json src/a.ts src/b.ts`,
	RunE: runConsistency,
}

func init() {
	rootCmd.AddCommand(consistencyCmd)
}

// ConsistencyResponse is the JSON shape of the consistency command.
type ConsistencyResponse struct {
	Files    int                 `json:"files"`
	Issues   []consistency.Issue `json:"issues"`
	Warnings []string            `json:"warnings,omitempty"`
}

func runConsistency(cmd *cobra.Command, args []string) error {
	eng, err := mustEngine()
	if err != nil {
		return err
	}
	paths, err := collectFiles(args)
	if err != nil {
		return err
	}
	files, err := readFiles(cmd.Context(), paths)
	if err != nil {
		return err
	}

	issues, warnings := eng.consistencyService(files).AnalyzeConsistencyWithWarnings(cmd.Context(), files)
	for _, w := range warnings {
		logger.Warn(w)
	}
	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), ConsistencyResponse{Files: len(files), Issues: issues, Warnings: warnings})
	}
	return output.RenderIssues(cmd.OutOrStdout(), issues)
}
