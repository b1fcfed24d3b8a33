// Package cache memoizes column fetches and filtered entity sets across
// queries sharing one catalog session.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/kartikbazzad/triq/internal/data"
)

// ErrCompute marks a failed cache population; the executor surfaces it as
// part of its execution error.
var ErrCompute = errors.New("cache compute failed")

// Source is the catalog capability the cache populates from.
type Source interface {
	Fetch(name data.ColumnName) ([]data.Triplet, error)
}

type Config struct {
	// Capacity bounds the number of resident entries; entries are evicted
	// least-recently-used first. Zero means unbounded.
	Capacity int
}

// ColumnCache maps column identities to triplet sequences and, per
// predicate fingerprint, to filtered entity sets. Concurrent requests for
// the same key share a single in-flight computation, so the source is hit
// at most once per distinct key per cache lifetime.
type ColumnCache struct {
	source Source
	flight singleflight.Group
	store  store
	logger log.Logger
}

func New(source Source, cfg Config, logger log.Logger) (*ColumnCache, error) {
	var st store
	if cfg.Capacity > 0 {
		l, err := lru.New[string, any](cfg.Capacity)
		if err != nil {
			return nil, err
		}
		st = &lruStore{entries: l}
	} else {
		st = &mapStore{entries: map[string]any{}}
	}

	return &ColumnCache{
		source: source,
		store:  st,
		logger: logger,
	}, nil
}

// Column returns the triplet sequence for a column, fetching it from the
// source on first use. The returned slice is shared; callers must not
// modify it.
func (c *ColumnCache) Column(name data.ColumnName) ([]data.Triplet, error) {
	key := "col/" + name.String()
	v, err := c.get(key, func() (any, error) {
		start := time.Now()
		triplets, err := c.source.Fetch(name)
		fetchDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		level.Debug(c.logger).Log("msg", "column fetched", "column", name, "triplets", len(triplets))
		return triplets, nil
	})
	if err != nil {
		return nil, errors.Wrapf(ErrCompute, "column %s: %v", name, err)
	}
	return v.([]data.Triplet), nil
}

// Filtered returns the entity set surviving a predicate on one column,
// keyed by the column identity plus the predicate fingerprint. compute
// receives the (cached) column triplets.
func (c *ColumnCache) Filtered(name data.ColumnName, fingerprint uint64, compute func([]data.Triplet) data.EIDSet) (data.EIDSet, error) {
	key := fmt.Sprintf("flt/%s/%016x", name, fingerprint)
	v, err := c.get(key, func() (any, error) {
		triplets, err := c.Column(name)
		if err != nil {
			return nil, err
		}
		return compute(triplets), nil
	})
	if err != nil {
		if errors.Is(err, ErrCompute) {
			return nil, err
		}
		return nil, errors.Wrapf(ErrCompute, "filtered %s: %v", name, err)
	}
	return v.(data.EIDSet), nil
}

// Invalidate drops every entry. Ingestion calls this after mutating the
// catalog; queries are not expected to be in flight at that point.
func (c *ColumnCache) Invalidate() {
	c.store.purge()
	invalidations.Inc()
	level.Debug(c.logger).Log("msg", "cache invalidated")
}

func (c *ColumnCache) get(key string, populate func() (any, error)) (any, error) {
	if v, ok := c.store.get(key); ok {
		hits.Inc()
		return v, nil
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// populated the entry while this one was queued.
		if v, ok := c.store.get(key); ok {
			hits.Inc()
			return v, nil
		}
		misses.Inc()
		v, err := populate()
		if err != nil {
			return nil, err
		}
		c.store.add(key, v)
		return v, nil
	})
	return v, err
}

// store abstracts the bounded and unbounded entry maps. Both are safe for
// concurrent readers with single-writer-per-key population via the
// singleflight group.
type store interface {
	get(key string) (any, bool)
	add(key string, v any)
	purge()
}

type mapStore struct {
	mu      sync.RWMutex
	entries map[string]any
}

func (s *mapStore) get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

func (s *mapStore) add(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = v
}

func (s *mapStore) purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = map[string]any{}
}

type lruStore struct {
	entries *lru.Cache[string, any]
}

func (s *lruStore) get(key string) (any, bool) { return s.entries.Get(key) }
func (s *lruStore) add(key string, v any)      { s.entries.Add(key, v) }
func (s *lruStore) purge()                     { s.entries.Purge() }
