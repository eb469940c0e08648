package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"effectlint/internal/analysis"
	"effectlint/internal/output"
	"effectlint/internal/version"
	"effectlint/internal/watcher"
)

var (
	analyzeFailOn string
	analyzeWatch  bool
	analyzeJobs   int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [paths...]",
	Short: "Detect Effect-TS anti-patterns",
	Long: `Analyze TypeScript files for Effect-TS anti-patterns.

Directories are walked for .ts and .tsx files, skipping node_modules and
declaration files.

Examples:
  effectlint analyze src/
  effectlint analyze --format json src/program.ts
  effectlint analyze --format sarif src/ > effectlint.sarif
  effectlint analyze --watch src/`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFailOn, "fail-on", "error", "Exit 1 on findings at this severity or worse (error, warning, info, none)")
	analyzeCmd.Flags().BoolVar(&analyzeWatch, "watch", false, "Re-analyze when sources or guidance documents change")
	analyzeCmd.Flags().IntVar(&analyzeJobs, "jobs", 4, "Files analyzed concurrently")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if err := validFailOn(analyzeFailOn); err != nil {
		return err
	}
	eng, err := mustEngine()
	if err != nil {
		return err
	}

	if analyzeWatch {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return watchAnalyze(ctx, cmd.OutOrStdout(), eng, args)
	}

	reports, err := analyzePaths(cmd.Context(), eng, args)
	if err != nil {
		return err
	}
	if err := writeReports(cmd.OutOrStdout(), eng, reports); err != nil {
		return err
	}
	if failing(reports, analyzeFailOn) {
		return &exitError{code: 1}
	}
	return nil
}

func analyzePaths(ctx context.Context, eng *engine, args []string) ([]*analysis.Report, error) {
	paths, err := collectFiles(args)
	if err != nil {
		return nil, err
	}
	files, err := readFiles(ctx, paths)
	if err != nil {
		return nil, err
	}

	reports := make([]*analysis.Report, len(files))
	g, gctx := errgroup.WithContext(ctx)
	jobs := analyzeJobs
	if jobs < 1 {
		jobs = 1
	}
	g.SetLimit(jobs)
	for i, f := range files {
		g.Go(func() error {
			reports[i] = eng.service(f.Filename).AnalyzeFile(gctx, f.Filename, f.Source)
			for _, w := range reports[i].Warnings {
				logger.Warn(w, "file", f.Filename)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Info("analysis finished", "files", len(files))
	return reports, nil
}

func writeReports(w io.Writer, eng *engine, reports []*analysis.Report) error {
	switch formatFlag {
	case "json":
		return writeJSON(w, reports)
	case "sarif":
		root := ""
		if cfg != nil {
			root = cfg.RepoRoot
		}
		data, err := output.FormatSARIF(reports, eng.rules.Descriptors(), version.Version, root)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	default:
		rows := output.RowsFromReports(reports)
		return output.RenderFindings(w, rows, output.Summarize(len(reports), rows))
	}
}

func validFailOn(s string) error {
	switch s {
	case "error", "warning", "info", "none", "never":
		return nil
	}
	return fmt.Errorf("invalid --fail-on %q: want error, warning, info or none", s)
}

// failing reports whether any finding is at least as severe as threshold.
func failing(reports []*analysis.Report, threshold string) bool {
	if threshold == "none" || threshold == "never" {
		return false
	}
	limit := output.SeverityRank(threshold)
	for _, r := range reports {
		for _, f := range r.Findings {
			if output.SeverityRank(string(f.Severity)) <= limit {
				return true
			}
		}
	}
	return false
}

// watchAnalyze analyzes once, then again for every debounced batch of source
// changes. Guidance edits invalidate the cache and trigger a full re-run.
func watchAnalyze(ctx context.Context, w io.Writer, eng *engine, args []string) error {
	rerun := make(chan struct{}, 1)
	trigger := func() {
		select {
		case rerun <- struct{}{}:
		default:
		}
	}

	wcfg := watcher.DefaultConfig()
	if cfg != nil {
		if !cfg.Watcher.Enabled {
			return errors.New("--watch: the watcher is disabled in config.json")
		}
		wcfg.DebounceMs = cfg.Watcher.DebounceMs
		wcfg.IgnorePatterns = append(wcfg.IgnorePatterns, cfg.Watcher.IgnorePatterns...)
	}
	guidanceDir, _ := filepath.Abs(eng.guidance.Dir())

	wt, err := watcher.New(wcfg, logger.With("component", "watcher"), func(events []watcher.Event) {
		for _, ev := range events {
			if abs, err := filepath.Abs(ev.Path); err == nil && guidanceDir != "" && isUnder(abs, guidanceDir) {
				if ids := eng.guidance.InvalidatePath(abs); len(ids) > 0 {
					logger.Info("guidance changed", "rules", fmt.Sprint(ids))
				}
			}
		}
		trigger()
	})
	if err != nil {
		return err
	}

	dirs := args
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	for _, d := range dirs {
		if err := wt.Add(watchDir(d)); err != nil {
			return err
		}
	}
	if guidanceDir != "" {
		if err := wt.Add(guidanceDir); err != nil {
			logger.Warn("guidance directory not watched", "dir", guidanceDir, "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return wt.Run(gctx) })
	g.Go(func() error {
		trigger()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-rerun:
			}
			start := time.Now()
			reports, err := analyzePaths(gctx, eng, args)
			if err != nil {
				logger.Error("analysis failed", "error", err)
				continue
			}
			if err := writeReports(w, eng, reports); err != nil {
				return err
			}
			logger.Debug("watch cycle", "duration", time.Since(start))
		}
	})
	err = g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func watchDir(p string) string {
	if isSource(p) {
		return filepath.Dir(p)
	}
	return p
}

func isUnder(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
