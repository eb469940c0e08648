package guidance

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"effectlint/internal/slogutil"
)

var (
	// ErrNotFound is returned when a rule has no guidance document.
	ErrNotFound = errors.New("guidance not found")

	// ErrInvalidRuleID is returned for ids that cannot name a file.
	ErrInvalidRuleID = errors.New("invalid rule id")
)

const (
	DefaultCapacity    = 128
	DefaultNegativeTTL = 30 * time.Second
)

// Options configures a Store.
type Options struct {
	// Dir is the guidance directory; relative override paths resolve against it
	Dir string

	// Fs defaults to the OS filesystem
	Fs afero.Fs

	// Capacity bounds the number of cached documents
	Capacity int

	// NegativeTTL is how long a missing document is remembered
	NegativeTTL time.Duration

	// Paths maps rule ids to document paths, overriding <Dir>/<id>.md
	Paths map[string]string

	Logger *slog.Logger
	Now    func() time.Time
}

// Stats are cumulative cache counters.
type Stats struct {
	Hits         int64 `json:"hits"`
	Misses       int64 `json:"misses"`
	Reads        int64 `json:"reads"`
	NegativeHits int64 `json:"negativeHits"`
	Entries      int   `json:"entries"`
}

type entry struct {
	id  string
	doc *Doc
}

// stamp identifies the cache state a read started from.
type stamp struct {
	epoch, gen uint64
}

// Store is a bounded, process-wide guidance cache. Concurrent loads of the
// same uncached id share a single read.
type Store struct {
	fs          afero.Fs
	dir         string
	paths       map[string]string
	capacity    int
	negativeTTL time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	lru      *list.List
	entries  map[string]*list.Element
	negative map[string]time.Time
	gens     map[string]uint64
	epoch    uint64

	group singleflight.Group

	hits, misses, reads, negativeHits atomic.Int64
}

// NewStore creates a store.
func NewStore(opts Options) *Store {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.NegativeTTL <= 0 {
		opts.NegativeTTL = DefaultNegativeTTL
	}
	if opts.Logger == nil {
		opts.Logger = slogutil.NewDiscardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	paths := make(map[string]string, len(opts.Paths))
	for id, p := range opts.Paths {
		paths[id] = p
	}
	return &Store{
		fs:          opts.Fs,
		dir:         opts.Dir,
		paths:       paths,
		capacity:    opts.Capacity,
		negativeTTL: opts.NegativeTTL,
		logger:      opts.Logger,
		now:         opts.Now,
		lru:         list.New(),
		entries:     make(map[string]*list.Element),
		negative:    make(map[string]time.Time),
		gens:        make(map[string]uint64),
	}
}

// Dir returns the guidance directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the document path for a rule id.
func (s *Store) Path(ruleID string) string {
	if p, ok := s.paths[ruleID]; ok {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(s.dir, p)
	}
	return filepath.Join(s.dir, ruleID+".md")
}

// Load returns the guidance for ruleID, reading it at most once while cached.
// Waiting callers give up when ctx is done; the shared read continues.
func (s *Store) Load(ctx context.Context, ruleID string) (*Doc, error) {
	if !validRuleID(ruleID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRuleID, ruleID)
	}
	if doc, ok := s.cached(ruleID); ok {
		s.hits.Add(1)
		return doc, nil
	}
	if s.knownMissing(ruleID) {
		s.negativeHits.Add(1)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ruleID)
	}
	s.misses.Add(1)

	ch := s.group.DoChan(ruleID, func() (any, error) {
		return s.read(ruleID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Doc), nil
	}
}

// read runs once per flight.
func (s *Store) read(ruleID string) (*Doc, error) {
	// A flight that starts just after another one finished finds the result.
	if doc, ok := s.cached(ruleID); ok {
		return doc, nil
	}
	if s.knownMissing(ruleID) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ruleID)
	}
	gen := s.generation(ruleID)
	path := s.Path(ruleID)

	s.reads.Add(1)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.rememberMissing(ruleID, gen)
			s.logger.Debug("No guidance document", "ruleId", ruleID, "path", path)
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		s.logger.Warn("Failed to read guidance", "ruleId", ruleID, "path", path, "error", err.Error())
		return nil, fmt.Errorf("failed to read guidance %s: %w", path, err)
	}

	doc, err := Parse(ruleID, path, data, s.now())
	if err != nil {
		s.logger.Warn("Failed to parse guidance", "ruleId", ruleID, "error", err.Error())
		return nil, err
	}
	s.insert(ruleID, doc, gen)
	return doc, nil
}

func (s *Store) cached(ruleID string) (*Doc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.entries[ruleID]
	if !ok {
		return nil, false
	}
	s.lru.MoveToFront(el)
	return el.Value.(*entry).doc, true
}

func (s *Store) knownMissing(ruleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.negative[ruleID]
	if !ok {
		return false
	}
	if !s.now().Before(exp) {
		delete(s.negative, ruleID)
		return false
	}
	return true
}

func (s *Store) generation(ruleID string) stamp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stampLocked(ruleID)
}

func (s *Store) stampLocked(ruleID string) stamp {
	return stamp{epoch: s.epoch, gen: s.gens[ruleID]}
}

// insert caches doc unless the id was invalidated while it was being read.
func (s *Store) insert(ruleID string, doc *Doc, gen stamp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stampLocked(ruleID) != gen {
		return
	}
	delete(s.negative, ruleID)
	if el, ok := s.entries[ruleID]; ok {
		el.Value.(*entry).doc = doc
		s.lru.MoveToFront(el)
		return
	}
	s.entries[ruleID] = s.lru.PushFront(&entry{id: ruleID, doc: doc})
	for s.lru.Len() > s.capacity {
		oldest := s.lru.Back()
		s.lru.Remove(oldest)
		delete(s.entries, oldest.Value.(*entry).id)
	}
}

func (s *Store) rememberMissing(ruleID string, gen stamp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stampLocked(ruleID) != gen {
		return
	}
	s.negative[ruleID] = s.now().Add(s.negativeTTL)
}

// Invalidate drops the cached document and negative entry of ruleID. A read
// already in flight for it will not populate the cache.
func (s *Store) Invalidate(ruleID string) {
	s.mu.Lock()
	if el, ok := s.entries[ruleID]; ok {
		s.lru.Remove(el)
		delete(s.entries, ruleID)
	}
	delete(s.negative, ruleID)
	s.gens[ruleID]++
	s.mu.Unlock()
	s.group.Forget(ruleID)
}

// InvalidatePath invalidates every rule whose document lives at path and
// returns their ids.
func (s *Store) InvalidatePath(path string) []string {
	clean := filepath.Clean(path)
	var ids []string

	s.mu.Lock()
	candidates := make(map[string]bool, len(s.entries)+len(s.negative)+len(s.paths))
	for id := range s.entries {
		candidates[id] = true
	}
	for id := range s.negative {
		candidates[id] = true
	}
	s.mu.Unlock()
	for id := range s.paths {
		candidates[id] = true
	}
	if base := filepath.Base(clean); strings.HasSuffix(base, ".md") && filepath.Dir(clean) == filepath.Clean(s.dir) {
		candidates[strings.TrimSuffix(base, ".md")] = true
	}

	for id := range candidates {
		if filepath.Clean(s.Path(id)) == clean {
			s.Invalidate(id)
			ids = append(ids, id)
		}
	}
	return ids
}

// Clear drops every cached and negative entry. Reads in flight will not
// populate the cache.
func (s *Store) Clear() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.entries)+len(s.negative))
	for id := range s.entries {
		ids = append(ids, id)
	}
	for id := range s.negative {
		ids = append(ids, id)
	}
	s.epoch++
	s.lru.Init()
	s.entries = make(map[string]*list.Element)
	s.negative = make(map[string]time.Time)
	s.mu.Unlock()

	for _, id := range ids {
		s.group.Forget(id)
	}
}

// Stats returns the cache counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	n := s.lru.Len()
	s.mu.Unlock()
	return Stats{
		Hits:         s.hits.Load(),
		Misses:       s.misses.Load(),
		Reads:        s.reads.Load(),
		NegativeHits: s.negativeHits.Load(),
		Entries:      n,
	}
}

func validRuleID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}
