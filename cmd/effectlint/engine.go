package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"effectlint/internal/analysis"
	"effectlint/internal/config"
	"effectlint/internal/consistency"
	engerrors "effectlint/internal/errors"
	"effectlint/internal/fixes"
	"effectlint/internal/guidance"
	"effectlint/internal/rules"
	"effectlint/internal/scoring"
	"effectlint/internal/syntax"
)

// engine holds one analysis service per grammar. Both share the rule and
// fix registries and the guidance cache.
type engine struct {
	ts, tsx  *analysis.Service
	fallback *analysis.Service
	guidance *guidance.Store
	rules    *rules.Registry
}

func newEngine(cfg *config.Config) (*engine, error) {
	lang, err := syntax.ParseLanguage(cfg.Analysis.Language)
	if err != nil {
		return nil, engerrors.New(engerrors.ConfigInvalid, "invalid analysis.language", err)
	}

	settings, err := rules.LoadSettings(cfg.RulesPath())
	if err != nil {
		return nil, engerrors.New(engerrors.ConfigInvalid, "invalid rule settings", err)
	}
	base := rules.Default()
	if unknown := settings.Unknown(base); len(unknown) > 0 {
		logger.Warn("rules.toml names unknown rules", "ids", strings.Join(unknown, ","))
	}
	registry := base.Configure(settings)

	store := guidance.NewStore(guidance.Options{
		Dir:         cfg.GuidanceDir(),
		Capacity:    cfg.Guidance.Capacity,
		NegativeTTL: time.Duration(cfg.Guidance.NegativeTtlSeconds) * time.Second,
		Paths:       settings.GuidancePaths(),
		Logger:      logger.With("component", "guidance"),
	})

	fixReg := fixes.Default()
	scorer := scoring.New(cfg.Scoring)
	build := func(l syntax.Language) *analysis.Service {
		b := syntax.NewBuilder(l)
		return analysis.New(analysis.Options{
			Builder:  b,
			Rules:    registry,
			Fixes:    fixReg,
			Scorer:   scorer,
			Guidance: store,
			Consistency: consistency.New(consistency.Options{
				Builder:     b,
				MaxFiles:    cfg.Analysis.MaxConsistencyFiles,
				Concurrency: cfg.Analysis.ConsistencyConcurrency,
				Logger:      logger.With("component", "consistency"),
			}),
			Logger:            logger.With("component", "analysis"),
			EnrichConcurrency: cfg.Analysis.EnrichConcurrency,
		})
	}

	e := &engine{
		ts:       build(syntax.LangTypeScript),
		tsx:      build(syntax.LangTSX),
		guidance: store,
		rules:    registry,
	}
	e.fallback = e.ts
	if lang == syntax.LangTSX {
		e.fallback = e.tsx
	}
	return e, nil
}

// service picks the grammar by extension, falling back to the configured
// language for anything that is neither .ts nor .tsx.
func (e *engine) service(filename string) *analysis.Service {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tsx":
		return e.tsx
	case ".ts", ".mts", ".cts":
		return e.ts
	default:
		return e.fallback
	}
}

// consistencyService returns the service whose grammar fits most files.
func (e *engine) consistencyService(files []analysis.File) *analysis.Service {
	tsx := 0
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f.Filename), ".tsx") {
			tsx++
		}
	}
	if tsx*2 > len(files) {
		return e.tsx
	}
	return e.ts
}

func mustEngine() (*engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return newEngine(cfg)
}
