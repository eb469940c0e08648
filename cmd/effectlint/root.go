package main

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"effectlint/internal/config"
	engerrors "effectlint/internal/errors"
	"effectlint/internal/slogutil"
	"effectlint/internal/version"
)

var (
	configPath string
	repoFlag   string
	formatFlag string
	verbosity  int
	quietFlag  bool

	cfg       *config.Config
	logger    = slogutil.NewDiscardLogger()
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "effectlint",
	Short: "effectlint - anti-pattern analysis for Effect-TS code",
	Long: `effectlint parses TypeScript sources, detects Effect-TS anti-patterns,
scores each finding, attaches rule guidance and previews automated fixes.`,
	Version:           version.Info(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.SetVersionTemplate("effectlint {{.Version}}\n")
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default <repo>/.effectlint/config.json)")
	pf.StringVar(&repoFlag, "repo", ".", "Repository root")
	pf.StringVar(&formatFlag, "format", "human", "Output format (human, json, sarif for analyze)")
	pf.CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	pf.BoolVar(&quietFlag, "quiet", false, "Suppress all logs")
}

// setup loads the configuration and builds the process logger.
func setup(cmd *cobra.Command, _ []string) error {
	root, err := filepath.Abs(repoFlag)
	if err != nil {
		return err
	}

	if configPath != "" {
		cfg, err = config.LoadConfigFile(configPath)
		if err == nil && (cfg.RepoRoot == "." || cfg.RepoRoot == "") {
			cfg.RepoRoot = root
		}
	} else {
		cfg, err = config.LoadConfig(root)
	}
	if err != nil {
		var ce *config.ConfigError
		if errors.As(err, &ce) {
			return engerrors.New(engerrors.ConfigInvalid, "invalid configuration", err)
		}
		return err
	}

	level := slogutil.LevelFromString(cfg.Logging.Level)
	if cmd.Flags().Changed("verbose") || quietFlag {
		level = slogutil.LevelFromVerbosity(verbosity, quietFlag)
	}
	l, closer, err := slogutil.New(slogutil.Options{
		Format: cfg.Logging.Format,
		Level:  level,
		File:   cfg.Resolve(cfg.Logging.File),
		Stderr: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	closeLogger()
	logger, logCloser = l, closer
	slog.SetDefault(logger)

	switch formatFlag {
	case "human", "json", "sarif":
	default:
		return engerrors.Newf(engerrors.ConfigInvalid, "unsupported format: %s", formatFlag)
	}
	return nil
}

func closeLogger() {
	if logCloser != nil {
		_ = logCloser.Close()
		logCloser = nil
	}
}

// exitError carries a process exit code without an error message, for
// commands whose output already explains the failure.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return "findings at or above the failure threshold"
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if engerrors.Is(err, engerrors.ConfigInvalid) {
		return 3
	}
	return 2
}

func jsonOutput() bool {
	return formatFlag == "json"
}
