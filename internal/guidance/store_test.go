package guidance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedFs counts opens and blocks them until the gate is closed.
type gatedFs struct {
	afero.Fs
	opens atomic.Int64
	gate  chan struct{}
}

func (g *gatedFs) Open(name string) (afero.File, error) {
	g.opens.Add(1)
	if g.gate != nil {
		<-g.gate
	}
	return g.Fs.Open(name)
}

func memFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	return fs
}

const nodeFSDoc = `---
title: Use FileSystem
related: [node-path]
---
# Goal
Replace node:fs.
`

func TestLoad_FrontMatter(t *testing.T) {
	store := NewStore(Options{Dir: "/g", Fs: memFs(t, map[string]string{"/g/node-fs.md": nodeFSDoc})})

	doc, err := store.Load(context.Background(), "node-fs")
	require.NoError(t, err)
	assert.Equal(t, "node-fs", doc.RuleID)
	assert.Equal(t, "Use FileSystem", doc.Title)
	assert.Equal(t, []string{"node-path"}, doc.Related)
	assert.Equal(t, "# Goal\nReplace node:fs.\n", doc.Markdown)
	assert.Equal(t, "/g/node-fs.md", doc.Path)
}

func TestLoad_TitleFromHeading(t *testing.T) {
	store := NewStore(Options{Dir: "/g", Fs: memFs(t, map[string]string{"/g/x.md": "intro\n# Heading here\nbody\n"})})

	doc, err := store.Load(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "Heading here", doc.Title)
	assert.Equal(t, "intro\n# Heading here\nbody\n", doc.Markdown)
}

func TestLoad_CachedAfterFirstRead(t *testing.T) {
	fs := &gatedFs{Fs: memFs(t, map[string]string{"/g/node-fs.md": nodeFSDoc})}
	store := NewStore(Options{Dir: "/g", Fs: fs})

	first, err := store.Load(context.Background(), "node-fs")
	require.NoError(t, err)
	second, err := store.Load(context.Background(), "node-fs")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, fs.opens.Load())
	stats := store.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.EqualValues(t, 1, stats.Reads)
	assert.Equal(t, 1, stats.Entries)
}

func TestLoad_ConcurrentCallsShareOneRead(t *testing.T) {
	const callers = 20
	fs := &gatedFs{
		Fs:   memFs(t, map[string]string{"/g/node-fs.md": nodeFSDoc}),
		gate: make(chan struct{}),
	}
	store := NewStore(Options{Dir: "/g", Fs: fs})

	var wg sync.WaitGroup
	docs := make([]*Doc, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			docs[i], errs[i] = store.Load(context.Background(), "node-fs")
		}(i)
	}

	require.Eventually(t, func() bool { return store.Stats().Misses == callers }, 2*time.Second, time.Millisecond)
	close(fs.gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, docs[0], docs[i])
	}
	assert.EqualValues(t, 1, fs.opens.Load(), "concurrent loads must share one read")
	assert.EqualValues(t, 1, store.Stats().Reads)
}

func TestLoad_MissingUsesNegativeCache(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	fs := &gatedFs{Fs: afero.NewMemMapFs()}
	store := NewStore(Options{Dir: "/g", Fs: fs, NegativeTTL: 10 * time.Second, Now: clock})

	_, err := store.Load(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.Load(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
	assert.EqualValues(t, 1, fs.opens.Load())
	assert.EqualValues(t, 1, store.Stats().NegativeHits)

	now = now.Add(11 * time.Second)
	_, err = store.Load(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
	assert.EqualValues(t, 2, fs.opens.Load(), "expired negative entry must re-read")
}

func TestInvalidate(t *testing.T) {
	mem := memFs(t, map[string]string{"/g/node-fs.md": "# Old\n"})
	store := NewStore(Options{Dir: "/g", Fs: mem})

	doc, err := store.Load(context.Background(), "node-fs")
	require.NoError(t, err)
	assert.Equal(t, "Old", doc.Title)

	require.NoError(t, afero.WriteFile(mem, "/g/node-fs.md", []byte("# New\n"), 0o644))
	doc, err = store.Load(context.Background(), "node-fs")
	require.NoError(t, err)
	assert.Equal(t, "Old", doc.Title, "cached until invalidated")

	store.Invalidate("node-fs")
	doc, err = store.Load(context.Background(), "node-fs")
	require.NoError(t, err)
	assert.Equal(t, "New", doc.Title)
	assert.EqualValues(t, 2, store.Stats().Reads)
}

func TestInvalidatePath(t *testing.T) {
	mem := memFs(t, map[string]string{
		"/g/node-fs.md":      "# fs\n",
		"/custom/handler.md": "# handler\n",
	})
	store := NewStore(Options{Dir: "/g", Fs: mem, Paths: map[string]string{"generic-error-type": "/custom/handler.md"}})

	_, err := store.Load(context.Background(), "node-fs")
	require.NoError(t, err)
	_, err = store.Load(context.Background(), "generic-error-type")
	require.NoError(t, err)

	assert.Equal(t, []string{"generic-error-type"}, store.InvalidatePath("/custom/handler.md"))
	assert.Equal(t, []string{"node-fs"}, store.InvalidatePath("/g/node-fs.md"))
	assert.Empty(t, store.InvalidatePath("/elsewhere/readme.md"))
	assert.Equal(t, 0, store.Stats().Entries)
}

func TestClear(t *testing.T) {
	store := NewStore(Options{Dir: "/g", Fs: memFs(t, map[string]string{"/g/a.md": "# a\n"})})
	_, err := store.Load(context.Background(), "a")
	require.NoError(t, err)
	_, _ = store.Load(context.Background(), "b")

	store.Clear()
	assert.Equal(t, 0, store.Stats().Entries)

	_, err = store.Load(context.Background(), "a")
	require.NoError(t, err)
	assert.EqualValues(t, 3, store.Stats().Reads)
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	store := NewStore(Options{Dir: "/g", Capacity: 2, Fs: memFs(t, map[string]string{
		"/g/a.md": "# a\n",
		"/g/b.md": "# b\n",
		"/g/c.md": "# c\n",
	})})
	ctx := context.Background()

	for _, id := range []string{"a", "b", "a", "c"} {
		_, err := store.Load(ctx, id)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.Stats().Entries)

	before := store.Stats().Reads
	_, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, before, store.Stats().Reads, "a was recently used and must still be cached")

	_, err = store.Load(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, before+1, store.Stats().Reads, "b was evicted")
}

func TestLoad_InvalidRuleID(t *testing.T) {
	store := NewStore(Options{Dir: "/g", Fs: afero.NewMemMapFs()})
	for _, id := range []string{"", "..", "../etc/passwd", `a\b`} {
		_, err := store.Load(context.Background(), id)
		assert.ErrorIs(t, err, ErrInvalidRuleID, id)
	}
}

func TestLoad_ContextCanceledWhileWaiting(t *testing.T) {
	fs := &gatedFs{Fs: memFs(t, map[string]string{"/g/a.md": "# a\n"}), gate: make(chan struct{})}
	store := NewStore(Options{Dir: "/g", Fs: fs})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := store.Load(ctx, "a")
		done <- err
	}()

	require.Eventually(t, func() bool { return fs.opens.Load() == 1 }, 2*time.Second, time.Millisecond)
	cancel()
	err := <-done
	assert.True(t, errors.Is(err, context.Canceled))

	close(fs.gate)
	require.Eventually(t, func() bool { return store.Stats().Entries == 1 }, 2*time.Second, time.Millisecond,
		"the shared read completes and populates the cache")
}

func TestParse_InvalidFrontMatter(t *testing.T) {
	_, err := Parse("x", "x.md", []byte("---\ntitle: [unclosed\n---\nbody\n"), time.Now())
	assert.Error(t, err)

	_, err = Parse("x", "x.md", []byte("---\nrule: other\n---\nbody\n"), time.Now())
	assert.Error(t, err)
}
