// Package analysis is the engine façade. A Service owns the immutable rule
// and fix registries, the scorer and the guidance cache, and exposes the
// five engine operations. Every operation returns a well-formed result;
// failures degrade into warnings.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"effectlint/internal/consistency"
	engerrors "effectlint/internal/errors"
	"effectlint/internal/fixes"
	"effectlint/internal/guidance"
	"effectlint/internal/rules"
	"effectlint/internal/scoring"
	"effectlint/internal/slogutil"
	"effectlint/internal/syntax"
)

// DefaultEnrichConcurrency bounds per-finding enrichment.
const DefaultEnrichConcurrency = 4

// File is one named source.
type File = consistency.File

// GuidanceLoader resolves guidance documents. *guidance.Store implements it.
type GuidanceLoader interface {
	Load(ctx context.Context, ruleID string) (*guidance.Doc, error)
}

// FixRequest asks for a fix preview of one rule in one file.
type FixRequest struct {
	RuleID   string `json:"ruleId"`
	Filename string `json:"filename"`
	Source   string `json:"source"`
}

// Options configures a Service. Nil fields get the built-in defaults.
type Options struct {
	Builder     *syntax.Builder
	Rules       *rules.Registry
	Fixes       *fixes.Registry
	Scorer      *scoring.Scorer
	Guidance    GuidanceLoader
	Consistency *consistency.Analyzer
	Logger      *slog.Logger

	EnrichConcurrency int
}

// Service runs the engine. It is safe for concurrent use.
type Service struct {
	builder     *syntax.Builder
	rules       *rules.Registry
	fixes       *fixes.Registry
	scorer      *scoring.Scorer
	guidance    GuidanceLoader
	consistency *consistency.Analyzer
	logger      *slog.Logger
	concurrency int
}

// New creates a Service.
func New(opts Options) *Service {
	s := &Service{
		builder:     opts.Builder,
		rules:       opts.Rules,
		fixes:       opts.Fixes,
		scorer:      opts.Scorer,
		guidance:    opts.Guidance,
		consistency: opts.Consistency,
		logger:      opts.Logger,
		concurrency: opts.EnrichConcurrency,
	}
	if s.logger == nil {
		s.logger = slogutil.NewDiscardLogger()
	}
	if s.builder == nil {
		s.builder = syntax.NewBuilder(syntax.LangTypeScript)
	}
	if s.rules == nil {
		s.rules = rules.Default()
	}
	if s.fixes == nil {
		s.fixes = fixes.Default()
	}
	if s.scorer == nil {
		s.scorer = scoring.NewDefault()
	}
	if s.consistency == nil {
		s.consistency = consistency.New(consistency.Options{Builder: s.builder, Logger: s.logger})
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultEnrichConcurrency
	}
	return s
}

// Builder returns the syntax builder, whose parse counter tracks how many
// trees the service has built.
func (s *Service) Builder() *syntax.Builder {
	return s.builder
}

// AnalyzeFile parses source once, runs every rule against the shared
// document, and enriches the matches with confidence and guidance.
func (s *Service) AnalyzeFile(ctx context.Context, filename, source string) *Report {
	start := time.Now()
	report := &Report{Filename: filename, Findings: []Finding{}}

	doc := s.builder.Build(ctx, filename, []byte(source))
	report.ParseErrors = len(doc.ParseErrors())
	if doc.Root() == nil {
		err := engerrors.New(engerrors.ParseFailed, "no syntax tree for "+filename, doc.Err())
		report.Warnings = append(report.Warnings, err.Error())
		s.logger.Warn("Parser produced no tree",
			"file", filename,
			"error", err.Error(),
		)
	}

	matches, failures := s.rules.Run(doc)
	for _, f := range failures {
		err := engerrors.New(engerrors.InternalError, "rule "+f.RuleID+" failed", f.Err)
		report.Warnings = append(report.Warnings, err.Error())
		s.logger.Warn("Rule failed",
			"rule", f.RuleID,
			"file", filename,
			"error", f.Err.Error(),
		)
	}

	findings := s.enrich(ctx, doc, matches)
	kept := findings[:0]
	for _, f := range findings {
		if f.RuleID != "" {
			kept = append(kept, f)
		}
	}
	sortFindings(kept)
	report.Findings = kept
	report.DurationMs = time.Since(start).Milliseconds()

	s.logger.Debug("Analyzed file",
		"file", filename,
		"findings", len(report.Findings),
		"durationMs", report.DurationMs,
	)
	return report
}

// enrich scores each match and attaches guidance with bounded concurrency.
// Findings below their rule's minimum confidence are left zeroed.
func (s *Service) enrich(ctx context.Context, doc *syntax.Document, matches []rules.RawMatch) []Finding {
	out := make([]Finding, len(matches))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, m := range matches {
		g.Go(func() error {
			rule, ok := s.rules.Get(m.RuleID)
			if !ok {
				return nil
			}
			d := rule.Descriptor()
			confidence := s.scorer.Score(doc, d, m)
			if confidence < d.MinConfidence {
				return nil
			}
			f := Finding{
				RuleID:     m.RuleID,
				Filename:   doc.Filename,
				Range:      m.Range,
				Message:    m.Message,
				Snippet:    m.Snippet,
				Category:   d.Category,
				Severity:   d.Severity,
				Confidence: confidence,
				FixIDs:     fixIDs(s.fixes.Bound(d)),
			}
			f.Guidance, f.Warnings = s.loadGuidance(ctx, m.RuleID)
			out[i] = f
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// loadGuidance returns nil without a warning when the rule simply has no
// guidance document.
func (s *Service) loadGuidance(ctx context.Context, ruleID string) (*guidance.Doc, []string) {
	if s.guidance == nil {
		return nil, nil
	}
	doc, err := s.guidance.Load(ctx, ruleID)
	if err == nil {
		return doc, nil
	}
	if errors.Is(err, guidance.ErrNotFound) {
		return nil, nil
	}
	ee := engerrors.New(engerrors.GuidanceUnavailable, "guidance for "+ruleID, err)
	s.logger.Debug("Guidance unavailable",
		"rule", ruleID,
		"error", err.Error(),
	)
	return nil, []string{ee.Error()}
}

func fixIDs(fs []fixes.Fix) []string {
	if len(fs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(fs))
	for _, f := range fs {
		ids = append(ids, f.ID())
	}
	return ids
}

// GenerateFix previews the fixes bound to req.RuleID. Nothing is written;
// Applied is always false. An unknown rule, a rule without fixes, or a
// source without a fixable match yields no changes.
func (s *Service) GenerateFix(ctx context.Context, req FixRequest) fixes.Output {
	rule, ok := s.rules.Get(req.RuleID)
	if !ok {
		s.logger.Debug("Fix requested for unknown rule", "rule", req.RuleID)
		return fixes.EmptyOutput()
	}
	d := rule.Descriptor()
	if len(s.fixes.Bound(d)) == 0 {
		return fixes.EmptyOutput()
	}

	doc := s.builder.Build(ctx, req.Filename, []byte(req.Source))
	ms, err := rules.RunRule(rule, doc)
	if err != nil {
		s.logger.Warn("Rule failed while generating fix",
			"rule", req.RuleID,
			"file", req.Filename,
			"error", err.Error(),
		)
		return fixes.EmptyOutput()
	}
	return s.fixes.Generate(doc, d, ms)
}

// ApplyRefactorings runs the fixes named by ids against every file and
// returns one change per modified file, in input order. Files that no fix
// touches are omitted. Unknown ids are ignored.
func (s *Service) ApplyRefactorings(ctx context.Context, ids []string, files []File) []fixes.Change {
	ruleSet := s.rulesFor(ids)
	if len(ruleSet) == 0 {
		return []fixes.Change{}
	}

	perFile := make([][]fixes.Change, len(files))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, f := range files {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			doc := s.builder.Build(ctx, f.Filename, []byte(f.Source))
			var ms []rules.RawMatch
			for _, rule := range ruleSet {
				found, err := rules.RunRule(rule, doc)
				if err != nil {
					s.logger.Warn("Rule failed during refactoring",
						"rule", rule.ID(),
						"file", f.Filename,
						"error", err.Error(),
					)
					continue
				}
				ms = append(ms, found...)
			}
			perFile[i] = s.fixes.Apply(ids, []fixes.Target{{Doc: doc, Matches: ms}})
			return nil
		})
	}
	_ = g.Wait()

	changes := []fixes.Change{}
	for _, cs := range perFile {
		changes = append(changes, cs...)
	}
	return changes
}

// rulesFor returns the registered rules that the fixes named by ids apply to.
func (s *Service) rulesFor(ids []string) []rules.Rule {
	seen := make(map[string]bool)
	var out []rules.Rule
	for _, id := range ids {
		f, ok := s.fixes.Get(id)
		if !ok {
			s.logger.Debug("Unknown refactoring id", "fix", id)
			continue
		}
		for _, ruleID := range f.AppliesTo() {
			rule, ok := s.rules.Get(ruleID)
			if !ok || seen[ruleID] {
				continue
			}
			seen[ruleID] = true
			out = append(out, rule)
		}
	}
	return out
}

// AnalyzeConsistency compares files for conflicting idioms. See
// consistency.Analyzer.
func (s *Service) AnalyzeConsistency(ctx context.Context, files []File) []consistency.Issue {
	issues, warnings := s.consistency.Analyze(ctx, files)
	for _, w := range warnings {
		s.logger.Debug("Consistency warning", "warning", w)
	}
	return issues
}

// AnalyzeConsistencyWithWarnings is AnalyzeConsistency that also returns
// the files that could not be compared.
func (s *Service) AnalyzeConsistencyWithWarnings(ctx context.Context, files []File) ([]consistency.Issue, []string) {
	return s.consistency.Analyze(ctx, files)
}

// ListRules returns the descriptors of every registered rule, sorted by id.
func (s *Service) ListRules() []rules.Descriptor {
	return s.rules.Descriptors()
}

// Rule returns the descriptor of one rule.
func (s *Service) Rule(id string) (rules.Descriptor, error) {
	rule, ok := s.rules.Get(id)
	if !ok {
		return rules.Descriptor{}, engerrors.New(engerrors.RuleNotFound, fmt.Sprintf("rule %q not found", id), nil)
	}
	return rule.Descriptor(), nil
}
