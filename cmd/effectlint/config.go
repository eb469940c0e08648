package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"effectlint/internal/config"
	engerrors "effectlint/internal/errors"
	"effectlint/internal/rules"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage effectlint configuration",
	Long:  "View, validate and create the configuration stored in .effectlint/config.json",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config.json and rules.toml",
	Long: `Load .effectlint/config.json and the rule settings file and report
problems: invalid values, unknown rule ids, and guidance overrides that point
at missing files.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List supported environment variables",
	Args:  cobra.NoArgs,
	Run:   runConfigEnv,
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config.json")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configEnvCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	return writeJSON(cmd.OutOrStdout(), cfg)
}

// ValidateResponse is the JSON shape of config validate.
type ValidateResponse struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems"`
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	resp := ValidateResponse{Problems: validateSetup(cfg)}
	resp.Valid = len(resp.Problems) == 0

	if jsonOutput() {
		if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
	} else if resp.Valid {
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
	} else {
		for _, p := range resp.Problems {
			fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", p)
		}
	}
	if !resp.Valid {
		return &exitError{code: 3}
	}
	return nil
}

// validateSetup checks what loading the config alone cannot: the rule
// settings file and the guidance paths it names.
func validateSetup(c *config.Config) []string {
	problems := []string{}
	if err := c.Validate(); err != nil {
		problems = append(problems, err.Error())
	}

	settings, err := rules.LoadSettings(c.RulesPath())
	if err != nil {
		return append(problems, err.Error())
	}
	for _, id := range settings.Unknown(rules.Default()) {
		problems = append(problems, fmt.Sprintf("%s: unknown rule %q", rules.SettingsFile, id))
	}
	for id, p := range settings.GuidancePaths() {
		if !filepath.IsAbs(p) {
			p = filepath.Join(c.GuidanceDir(), p)
		}
		if _, err := os.Stat(p); err != nil {
			problems = append(problems, fmt.Sprintf("%s: guidance for %s not found at %s", rules.SettingsFile, id, p))
		}
	}
	if info, err := os.Stat(c.GuidanceDir()); err != nil || !info.IsDir() {
		problems = append(problems, fmt.Sprintf("guidance directory %s does not exist", c.GuidanceDir()))
	}
	sort.Strings(problems)
	return problems
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := filepath.Join(cfg.RepoRoot, config.Dir, "config.json")
	if _, err := os.Stat(path); err == nil && !configInitForce {
		return engerrors.Newf(engerrors.ConfigInvalid, "%s already exists; use --force to overwrite", path)
	}
	def := config.DefaultConfig()
	if err := def.Save(cfg.RepoRoot); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigEnv(cmd *cobra.Command, _ []string) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "EFFECTLINT_LOG_LEVEL     logging.level")
	fmt.Fprintln(out, "EFFECTLINT_TSC           qa.tscPath")
	fmt.Fprintln(out, "EFFECTLINT_GUIDANCE_DIR  guidance.dir")
}
