package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	engerrors "effectlint/internal/errors"
	"effectlint/internal/qa"
	"effectlint/internal/storage"
)

var (
	qaTimeout     time.Duration
	qaConcurrency int
	qaTsc         string
	qaNoCheck     bool
	qaNoStore     bool
	qaResultsDir  string
	qaRunsLimit   int
)

var qaCmd = &cobra.Command{
	Use:   "qa <manifest.toml>",
	Short: "Run a QA batch and validate generated fixes with tsc",
	Long: `Analyze every item of a QA manifest, generate the fixes for its findings
and type check each fixed source. Checker failures and timeouts are recorded
as warnings on the item; the batch always completes.

Manifest format:
  [[item]]
  id = "fs-import"
  path = "examples/fs-import.ts"
  rules = ["node-fs"]   # optional

Examples:
  effectlint qa qa/manifest.toml
  effectlint qa --timeout 60s --concurrency 4 qa/manifest.toml
  effectlint qa runs`,
	Args: cobra.ExactArgs(1),
	RunE: runQA,
}

var qaRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored QA runs",
	Args:  cobra.NoArgs,
	RunE:  runQARuns,
}

var qaShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the stored items of a QA run",
	Args:  cobra.ExactArgs(1),
	RunE:  runQAShow,
}

func init() {
	f := qaCmd.Flags()
	f.DurationVar(&qaTimeout, "timeout", 0, "Type checker timeout per fix (default qa.timeoutSeconds)")
	f.IntVar(&qaConcurrency, "concurrency", 0, "Items validated at once (default qa.concurrency)")
	f.StringVar(&qaTsc, "tsc", "", "Type checker binary (default qa.tscPath)")
	f.BoolVar(&qaNoCheck, "no-check", false, "Skip type checking of generated fixes")
	f.BoolVar(&qaNoStore, "no-store", false, "Do not persist the run")
	f.StringVar(&qaResultsDir, "results-dir", "", "Write one JSON file per item under this directory")

	qaRunsCmd.Flags().IntVar(&qaRunsLimit, "limit", 20, "Maximum runs to list")

	qaCmd.AddCommand(qaRunsCmd)
	qaCmd.AddCommand(qaShowCmd)
	rootCmd.AddCommand(qaCmd)
}

func runQA(cmd *cobra.Command, args []string) error {
	eng, err := mustEngine()
	if err != nil {
		return err
	}
	fs := afero.NewOsFs()
	m, err := qa.LoadManifest(fs, args[0])
	if err != nil {
		return engerrors.New(engerrors.ConfigInvalid, "invalid QA manifest", err)
	}

	opts := qa.Options{
		Service:     eng.fallback,
		Concurrency: firstPositive(qaConcurrency, cfg.QA.Concurrency),
		Fs:          fs,
		ResultsDir:  qaResultsDir,
		Logger:      logger.With("component", "qa"),
	}
	if opts.ResultsDir == "" {
		opts.ResultsDir = cfg.Resolve(cfg.QA.ResultsDir)
	}
	if !qaNoCheck {
		timeout := qaTimeout
		if timeout <= 0 {
			timeout = time.Duration(cfg.QA.TimeoutSeconds) * time.Second
		}
		tsc := qaTsc
		if tsc == "" {
			tsc = cfg.QA.TscPath
		}
		opts.Checker = qa.NewTSC(tsc, timeout)
	}
	if !qaNoStore {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()
		opts.Store = storage.NewQARepository(db)
	}

	run, err := qa.New(opts).Run(cmd.Context(), m)
	if err != nil {
		// The run itself completed; only recording it failed.
		logger.Error("QA run not fully recorded", "error", err)
	}
	if run == nil {
		return err
	}

	if jsonOutput() {
		if werr := writeJSON(cmd.OutOrStdout(), run); werr != nil {
			return werr
		}
	} else {
		printRun(cmd, run)
	}
	return err
}

func printRun(cmd *cobra.Command, run *qa.Run) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "QA run %s (%d items, %d warnings)\n", run.ID, len(run.Items), run.Warnings())
	for _, it := range run.Items {
		valid, total := 0, len(it.Fixes)
		for _, f := range it.Fixes {
			if f.Valid {
				valid++
			}
		}
		findings := 0
		if it.Report != nil {
			findings = len(it.Report.Findings)
		}
		fmt.Fprintf(out, "  %-24s findings=%d fixes=%d/%d valid", it.ID, findings, valid, total)
		if len(it.Warnings) > 0 {
			fmt.Fprintf(out, "  warnings: %s", strings.Join(it.Warnings, "; "))
		}
		fmt.Fprintln(out)
	}
}

func runQARuns(cmd *cobra.Command, _ []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := storage.NewQARepository(db).ListRuns(cmd.Context(), qaRunsLimit)
	if err != nil {
		return engerrors.New(engerrors.StorageFailure, "failed to list QA runs", err)
	}
	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), runs)
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No QA runs recorded")
		return nil
	}
	for _, r := range runs {
		status := "unfinished"
		if r.FinishedAt != nil {
			status = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(out, "%s  %s  items=%d warnings=%d  %s  %s\n",
			r.RunID, r.StartedAt.Local().Format(time.DateTime), r.ItemCount, r.WarningCount, status, r.Manifest)
	}
	return nil
}

func runQAShow(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := storage.NewQARepository(db)
	run, err := repo.GetRun(cmd.Context(), args[0])
	if errors.Is(err, storage.ErrRunNotFound) {
		return fmt.Errorf("no QA run %s", args[0])
	}
	if err != nil {
		return engerrors.New(engerrors.StorageFailure, "failed to read QA run", err)
	}
	items, err := repo.ListItems(cmd.Context(), run.RunID)
	if err != nil {
		return engerrors.New(engerrors.StorageFailure, "failed to read QA items", err)
	}

	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"run": run, "items": items})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "QA run %s  %s\n", run.RunID, run.Manifest)
	for _, it := range items {
		fmt.Fprintf(out, "  %-24s %s  rules=%s findings=%d fixes=%d %dms\n",
			it.ItemID, it.Path, strings.Join(it.RuleIDs, ","), it.FindingCount, it.FixCount, it.DurationMs)
		for _, w := range it.Warnings {
			fmt.Fprintf(out, "    warning: %s\n", w)
		}
		if it.Diagnostics != "" {
			fmt.Fprintf(out, "    %s\n", strings.ReplaceAll(strings.TrimSpace(it.Diagnostics), "\n", "\n    "))
		}
	}
	return nil
}

func openStore() (*storage.DB, error) {
	path := cfg.Resolve(cfg.QA.DbPath)
	if path == "" {
		path = filepath.Join(cfg.RepoRoot, storage.DefaultPath)
	}
	db, err := storage.Open(path, logger.With("component", "storage"))
	if err != nil {
		return nil, engerrors.New(engerrors.StorageFailure, "failed to open QA store", err)
	}
	return db, nil
}

func firstPositive(vs ...int) int {
	for _, v := range vs {
		if v > 0 {
			return v
		}
	}
	return 0
}
