// Package consistency compares a batch of files for idioms that conflict
// across files, such as one file using node:fs while another uses the
// platform FileSystem service.
package consistency

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"effectlint/internal/slogutil"
	"effectlint/internal/syntax"
)

// DefaultMaxFiles bounds one batch.
const DefaultMaxFiles = 50

// File is one input of a batch.
type File struct {
	Filename string `json:"filename"`
	Source   string `json:"source"`
}

// Issue is one conflict class observed across at least two files.
type Issue struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Files       []string `json:"files"`
}

// check is one conflict class: files on the left side disagree with files
// on the right side.
type check struct {
	id          string
	description string
	left        func(Facts) bool
	right       func(Facts) bool
}

var checks = []check{
	{
		id:          "mixed-fs",
		description: "some files import node:fs directly while others use the FileSystem service from @effect/platform",
		left:        func(f Facts) bool { return f.RawFS },
		right:       func(f Facts) bool { return f.PlatformFS },
	},
	{
		id:          "mixed-path",
		description: "some files import node:path directly while others use the Path service from @effect/platform",
		left:        func(f Facts) bool { return f.RawPath },
		right:       func(f Facts) bool { return f.PlatformPath },
	},
	{
		id:          "mixed-effect-import-style",
		description: "Effect is imported both as a namespace from effect/Effect and as a named import from effect",
		left:        func(f Facts) bool { return f.EffectNamespace },
		right:       func(f Facts) bool { return f.EffectNamed },
	},
	{
		id:          "mixed-error-definition",
		description: "error classes extend the native Error in some files and Data.TaggedError or Schema.TaggedError in others",
		left:        func(f Facts) bool { return f.NativeErrorClass },
		right:       func(f Facts) bool { return f.TaggedErrorClass },
	},
}

// Options configures an Analyzer.
type Options struct {
	Builder *syntax.Builder

	// MaxFiles caps the batch; files beyond it, in filename order, are
	// skipped with a warning
	MaxFiles int

	// Concurrency bounds parallel fact extraction
	Concurrency int

	Logger *slog.Logger
}

// Analyzer evaluates conflict classes over file batches. It holds no
// per-batch state and is safe for concurrent use.
type Analyzer struct {
	builder     *syntax.Builder
	maxFiles    int
	concurrency int
	logger      *slog.Logger
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	a := &Analyzer{
		builder:     opts.Builder,
		maxFiles:    opts.MaxFiles,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
	}
	if a.builder == nil {
		a.builder = syntax.NewBuilder(syntax.LangTypeScript)
	}
	if a.maxFiles <= 0 {
		a.maxFiles = DefaultMaxFiles
	}
	if a.concurrency <= 0 {
		a.concurrency = 4
	}
	if a.logger == nil {
		a.logger = slogutil.NewDiscardLogger()
	}
	return a
}

// Analyze returns one issue per conflict class present in files, sorted by
// id. The result does not depend on the order of files. A file that cannot
// be analyzed is skipped. Warnings describe skipped files.
func (a *Analyzer) Analyze(ctx context.Context, files []File) ([]Issue, []string) {
	sorted := append([]File(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Filename < sorted[j].Filename })

	var warnings []string
	if len(sorted) > a.maxFiles {
		w := fmt.Sprintf("batch of %d files exceeds the limit of %d; %d files were not compared",
			len(sorted), a.maxFiles, len(sorted)-a.maxFiles)
		a.logger.Warn("Consistency batch truncated",
			"files", len(sorted),
			"limit", a.maxFiles,
		)
		warnings = append(warnings, w)
		sorted = sorted[:a.maxFiles]
	}

	facts := make([]*Facts, len(sorted))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, f := range sorted {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			fa, err := a.extract(gctx, f)
			if err != nil {
				a.logger.Warn("Skipping file in consistency check",
					"file", f.Filename,
					"error", err.Error(),
				)
				return nil
			}
			facts[i] = fa
			return nil
		})
	}
	_ = g.Wait()

	for i, fa := range facts {
		if fa == nil {
			warnings = append(warnings, fmt.Sprintf("%s: not compared", sorted[i].Filename))
		}
	}

	issues := []Issue{}
	for _, c := range checks {
		if issue, ok := evaluate(c, facts); ok {
			issues = append(issues, issue)
		}
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].ID < issues[j].ID })
	return issues, warnings
}

func (a *Analyzer) extract(ctx context.Context, f File) (fa *Facts, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			fa = nil
			err = fmt.Errorf("fact extraction panicked: %v", rec)
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := a.builder.Build(ctx, f.Filename, []byte(f.Source))
	if doc.Root() == nil {
		if err := doc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("no syntax tree")
	}
	facts := Extract(doc)
	return &facts, nil
}

// evaluate reports the conflict of c when its two sides are both present
// and together span at least two files.
func evaluate(c check, facts []*Facts) (Issue, bool) {
	var left, right bool
	files := make(map[string]bool)
	for _, f := range facts {
		if f == nil {
			continue
		}
		l, r := c.left(*f), c.right(*f)
		left = left || l
		right = right || r
		if l || r {
			files[f.Filename] = true
		}
	}
	if !left || !right || len(files) < 2 {
		return Issue{}, false
	}
	issue := Issue{ID: c.id, Description: c.description, Files: make([]string, 0, len(files))}
	for name := range files {
		issue.Files = append(issue.Files, name)
	}
	sort.Strings(issue.Files)
	return issue, true
}
