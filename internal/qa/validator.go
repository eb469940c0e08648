// Package qa runs a manifest of example sources through the engine and
// validates every generated fix with an external type checker. Failures of
// one item, or of the checker, become warnings on that item; the batch
// always completes.
package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"effectlint/internal/analysis"
	engerrors "effectlint/internal/errors"
	"effectlint/internal/output"
	"effectlint/internal/slogutil"
	"effectlint/internal/storage"
)

// DefaultConcurrency bounds items validated at once, and therefore
// concurrent type checker processes.
const DefaultConcurrency = 2

// FixValidation is the type checker verdict on one generated fix.
type FixValidation struct {
	RuleID      string   `json:"ruleId"`
	FixIDs      []string `json:"fixIds"`
	Valid       bool     `json:"valid"`
	Diagnostics string   `json:"diagnostics,omitempty"`
}

// ItemResult is the outcome of one manifest item.
type ItemResult struct {
	ID         string           `json:"id"`
	Path       string           `json:"path"`
	Report     *analysis.Report `json:"report,omitempty"`
	Fixes      []FixValidation  `json:"fixes"`
	Warnings   []string         `json:"warnings"`
	DurationMs int64            `json:"durationMs"`
}

// Run is the outcome of one batch.
type Run struct {
	ID         string       `json:"id"`
	Manifest   string       `json:"manifest"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Items      []ItemResult `json:"items"`
}

// Warnings counts the warnings across items.
func (r *Run) Warnings() int {
	n := 0
	for _, it := range r.Items {
		n += len(it.Warnings)
	}
	return n
}

// Options configures a Validator.
type Options struct {
	Service *analysis.Service

	// Checker validates fixed sources; nil skips fix validation
	Checker TypeChecker

	Concurrency int

	// Fs reads item sources and writes result files
	Fs afero.Fs

	// Store persists runs when set
	Store *storage.QARepository

	// ResultsDir receives one <run>/<item>.json file per item when set
	ResultsDir string

	Logger *slog.Logger
	Now    func() time.Time
}

// Validator runs QA batches.
type Validator struct {
	svc         *analysis.Service
	checker     TypeChecker
	concurrency int
	fs          afero.Fs
	store       *storage.QARepository
	resultsDir  string
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a Validator.
func New(opts Options) *Validator {
	v := &Validator{
		svc:         opts.Service,
		checker:     opts.Checker,
		concurrency: opts.Concurrency,
		fs:          opts.Fs,
		store:       opts.Store,
		resultsDir:  opts.ResultsDir,
		logger:      opts.Logger,
		now:         opts.Now,
	}
	if v.svc == nil {
		v.svc = analysis.New(analysis.Options{})
	}
	if v.concurrency <= 0 {
		v.concurrency = DefaultConcurrency
	}
	if v.fs == nil {
		v.fs = afero.NewOsFs()
	}
	if v.logger == nil {
		v.logger = slogutil.NewDiscardLogger()
	}
	if v.now == nil {
		v.now = time.Now
	}
	return v
}

// Run validates every item of m. The returned error reports only failures to
// record the run; item failures are warnings inside the result.
func (v *Validator) Run(ctx context.Context, m *Manifest) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Manifest:  m.Path,
		StartedAt: v.now(),
		Items:     make([]ItemResult, len(m.Items)),
	}
	v.logger.Info("Starting QA run",
		"run", run.ID,
		"items", len(m.Items),
		"concurrency", v.concurrency,
	)

	var g errgroup.Group
	g.SetLimit(v.concurrency)
	for i, item := range m.Items {
		g.Go(func() error {
			run.Items[i] = v.validate(ctx, m, item)
			return nil
		})
	}
	_ = g.Wait()
	run.FinishedAt = v.now()

	v.logger.Info("QA run finished",
		"run", run.ID,
		"items", len(run.Items),
		"warnings", run.Warnings(),
	)
	return run, v.record(ctx, run)
}

func (v *Validator) validate(ctx context.Context, m *Manifest, item ManifestItem) ItemResult {
	start := time.Now()
	res := ItemResult{ID: item.ID, Path: m.Resolve(item), Fixes: []FixValidation{}, Warnings: []string{}}
	defer func() {
		res.DurationMs = time.Since(start).Milliseconds()
	}()

	data, err := afero.ReadFile(v.fs, res.Path)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("failed to read %s: %v", res.Path, err))
		v.logger.Warn("QA item unreadable", "item", item.ID, "error", err.Error())
		return res
	}
	source := string(data)
	filename := filepath.Base(res.Path)

	res.Report = v.svc.AnalyzeFile(ctx, filename, source)
	res.Warnings = append(res.Warnings, res.Report.Warnings...)

	if v.checker == nil {
		return res
	}
	for _, ruleID := range fixableRules(res.Report, item.Rules) {
		out := v.svc.GenerateFix(ctx, analysis.FixRequest{RuleID: ruleID, Filename: filename, Source: source})
		for _, change := range out.Changes {
			fv := FixValidation{RuleID: ruleID, FixIDs: change.FixIDs, Valid: true}
			diagnostics, err := v.checker.Check(ctx, filename, change.After)
			if err != nil {
				fv.Valid = false
				fv.Diagnostics = diagnostics
				res.Warnings = append(res.Warnings, fmt.Sprintf("fix for %s: %v", ruleID, err))
				v.logger.Warn("Fix failed validation",
					"item", item.ID,
					"rule", ruleID,
					"code", string(engerrors.CodeOf(err)),
				)
			}
			res.Fixes = append(res.Fixes, fv)
		}
	}
	return res
}

// fixableRules returns the sorted rule ids of findings that carry fixes,
// restricted to only when it is non-empty.
func fixableRules(r *analysis.Report, only []string) []string {
	allowed := make(map[string]bool, len(only))
	for _, id := range only {
		allowed[id] = true
	}
	seen := make(map[string]bool)
	var ids []string
	for _, f := range r.Findings {
		if len(f.FixIDs) == 0 || seen[f.RuleID] {
			continue
		}
		if len(allowed) > 0 && !allowed[f.RuleID] {
			continue
		}
		seen[f.RuleID] = true
		ids = append(ids, f.RuleID)
	}
	sort.Strings(ids)
	return ids
}

// record persists the run to the store and the results directory.
func (v *Validator) record(ctx context.Context, run *Run) error {
	var errs []error
	fail := func(err error) {
		errs = append(errs, err)
	}

	if v.store != nil {
		if err := v.persist(ctx, run); err != nil {
			fail(engerrors.New(engerrors.StorageFailure, "failed to store qa run "+run.ID, err))
		}
	}
	if v.resultsDir != "" {
		dir := filepath.Join(v.resultsDir, run.ID)
		if err := v.fs.MkdirAll(dir, 0o755); err != nil {
			fail(fmt.Errorf("failed to create results directory: %w", err))
		} else {
			for _, it := range run.Items {
				if !validItemID(it.ID) {
					fail(fmt.Errorf("refusing to write result for item id %q", it.ID))
					continue
				}
				data, err := output.DeterministicEncodeIndented(it, "  ")
				if err == nil {
					err = afero.WriteFile(v.fs, filepath.Join(dir, it.ID+".json"), append(data, '\n'), 0o644)
				}
				if err != nil {
					fail(fmt.Errorf("failed to write result for %s: %w", it.ID, err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

func (v *Validator) persist(ctx context.Context, run *Run) error {
	if err := v.store.CreateRun(ctx, &storage.Run{
		RunID:     run.ID,
		Manifest:  run.Manifest,
		StartedAt: run.StartedAt,
	}); err != nil {
		return err
	}
	items := make([]storage.Item, 0, len(run.Items))
	for _, it := range run.Items {
		rec := storage.Item{
			RunID:      run.ID,
			ItemID:     it.ID,
			Path:       it.Path,
			FixCount:   len(it.Fixes),
			Warnings:   it.Warnings,
			DurationMs: it.DurationMs,
		}
		if it.Report != nil {
			rec.RuleIDs = it.Report.RuleIDs()
			rec.FindingCount = len(it.Report.Findings)
		}
		for _, f := range it.Fixes {
			if f.Diagnostics != "" {
				rec.Diagnostics += f.Diagnostics
			}
		}
		items = append(items, rec)
	}
	if err := v.store.SaveItems(ctx, items); err != nil {
		return err
	}
	return v.store.FinishRun(ctx, run.ID, run.FinishedAt, len(run.Items), run.Warnings())
}
