package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	engerrors "effectlint/internal/errors"
	"effectlint/internal/guidance"
	"effectlint/internal/output"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the registered rules",
	Long:  "List every enabled rule with its severity, summary and bound fixes, after rules.toml overrides.",
	Args:  cobra.NoArgs,
	RunE:  runRules,
}

var guidanceCmd = &cobra.Command{
	Use:   "guidance <rule-id>",
	Short: "Print the guidance document of a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runGuidance,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(guidanceCmd)
}

func runRules(cmd *cobra.Command, _ []string) error {
	eng, err := mustEngine()
	if err != nil {
		return err
	}
	ds := eng.ts.ListRules()
	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), ds)
	}
	return output.RenderRules(cmd.OutOrStdout(), ds)
}

func runGuidance(cmd *cobra.Command, args []string) error {
	eng, err := mustEngine()
	if err != nil {
		return err
	}
	id := args[0]
	if _, err := eng.ts.Rule(id); err != nil {
		return err
	}

	doc, err := eng.guidance.Load(cmd.Context(), id)
	if errors.Is(err, guidance.ErrNotFound) {
		return engerrors.Newf(engerrors.GuidanceUnavailable, "no guidance document for %s at %s", id, eng.guidance.Path(id)).
			WithDetails(map[string]string{"ruleId": id})
	}
	if err != nil {
		return engerrors.New(engerrors.GuidanceUnavailable, err.Error(), err)
	}

	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), doc)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), doc.Markdown)
	return err
}
