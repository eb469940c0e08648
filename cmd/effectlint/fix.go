package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"effectlint/internal/analysis"
	"effectlint/internal/fixes"
	"effectlint/internal/output"
)

var (
	fixRule  string
	fixWrite bool

	refactorFixes []string
	refactorWrite bool
)

var fixCmd = &cobra.Command{
	Use:   "fix --rule <rule-id> <file>",
	Short: "Preview the fix for one rule in one file",
	Long: `Generate the fix preview for every match of a rule in a file.

The preview is printed as a unified diff; --write replaces the file.

Examples:
  effectlint fix --rule node-fs src/io.ts
  effectlint fix --rule throw-inside-effect-logic --write src/program.ts`,
	Args: cobra.ExactArgs(1),
	RunE: runFix,
}

var refactorCmd = &cobra.Command{
	Use:   "refactor --fix <id>[,<id>...] [paths...]",
	Short: "Apply fixes across files",
	Long: `Apply the named fixes to every file, keeping the first of any
overlapping edits. Only changed files are reported.

Examples:
  effectlint refactor --fix replace-node-fs,replace-node-path src/
  effectlint refactor --fix throw-to-fail --write src/`,
	RunE: runRefactor,
}

func init() {
	fixCmd.Flags().StringVar(&fixRule, "rule", "", "Rule id whose fix to generate")
	fixCmd.Flags().BoolVar(&fixWrite, "write", false, "Write the fixed source back to the file")
	_ = fixCmd.MarkFlagRequired("rule")

	refactorCmd.Flags().StringSliceVar(&refactorFixes, "fix", nil, "Fix ids to apply")
	refactorCmd.Flags().BoolVar(&refactorWrite, "write", false, "Write changed files")
	_ = refactorCmd.MarkFlagRequired("fix")

	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(refactorCmd)
}

func runFix(cmd *cobra.Command, args []string) error {
	eng, err := mustEngine()
	if err != nil {
		return err
	}
	svc := eng.service(args[0])
	if _, err := svc.Rule(fixRule); err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	out := svc.GenerateFix(cmd.Context(), analysis.FixRequest{
		RuleID:   fixRule,
		Filename: args[0],
		Source:   string(data),
	})

	if fixWrite {
		if err := writeChanges(out.Changes); err != nil {
			return err
		}
		out.Applied = len(out.Changes) > 0
	}
	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	return output.RenderChanges(cmd.OutOrStdout(), out.Changes)
}

func runRefactor(cmd *cobra.Command, args []string) error {
	eng, err := mustEngine()
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(refactorFixes))
	for _, id := range refactorFixes {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if unknown := unknownFixes(ids); len(unknown) > 0 {
		logger.Warn("unknown fix ids ignored", "ids", strings.Join(unknown, ","))
	}

	paths, err := collectFiles(args)
	if err != nil {
		return err
	}
	files, err := readFiles(cmd.Context(), paths)
	if err != nil {
		return err
	}

	// Group by grammar; order is restored by filename below.
	var ts, tsx []analysis.File
	for _, f := range files {
		if eng.service(f.Filename) == eng.tsx {
			tsx = append(tsx, f)
		} else {
			ts = append(ts, f)
		}
	}
	changes := eng.ts.ApplyRefactorings(cmd.Context(), ids, ts)
	changes = append(changes, eng.tsx.ApplyRefactorings(cmd.Context(), ids, tsx)...)
	sortChanges(changes)

	if refactorWrite {
		if err := writeChanges(changes); err != nil {
			return err
		}
	}
	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), fixes.Output{Applied: refactorWrite && len(changes) > 0, Changes: changes})
	}
	return output.RenderChanges(cmd.OutOrStdout(), changes)
}

func unknownFixes(ids []string) []string {
	reg := fixes.Default()
	var out []string
	for _, id := range ids {
		if _, ok := reg.Get(id); !ok {
			out = append(out, id)
		}
	}
	return out
}

func writeChanges(changes []fixes.Change) error {
	for _, c := range changes {
		info, err := os.Stat(c.Filename)
		if err != nil {
			return err
		}
		if err := os.WriteFile(c.Filename, []byte(c.After), info.Mode().Perm()); err != nil {
			return fmt.Errorf("write %s: %w", c.Filename, err)
		}
		logger.Info("file rewritten", "file", c.Filename, "fixes", strings.Join(c.FixIDs, ","))
	}
	return nil
}

func sortChanges(changes []fixes.Change) {
	sort.Slice(changes, func(i, j int) bool { return changes[i].Filename < changes[j].Filename })
}
