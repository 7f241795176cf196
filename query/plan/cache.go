// Package plan caches the interpretations of query texts: parsed statements,
// parameter layouts of native queries and compiled select plans.
//
// Each of the three caches is bounded and evicts entries by recency and
// frequency, so a burst of one-shot queries cannot flush the frequently
// used ones:
//
//	cache, err := plan.NewInterpretationCache(
//		plan.WithPlanCacheSize(4096),
//		plan.WithStatistics(st),
//	)
//	interp, err := cache.ResolveInterpretation(text, translator.Translate)
//	if err != nil {
//		return err
//	}
//	interp.Xref.Bind("name", "Acme")
//
// Statements and plans are immutable and shared. Every resolution returns a
// fresh parameter xref, so executions of a cached statement never share
// bound values.
package plan

import (
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/syssam/sqm/query/tree"
	"github.com/syssam/sqm/stat"
)

// DefaultCacheSize is the default capacity of each cache.
const DefaultCacheSize = 2048

// HQLInterpretation is the result of resolving a query text. Statement and
// Metadata come from the cache, Xref is created for the caller.
type HQLInterpretation struct {
	Statement tree.Statement
	Metadata  *tree.ParameterMetadata
	Xref      *tree.ParameterXref
}

type interpretation struct {
	stmt tree.Statement
	meta *tree.ParameterMetadata
}

// InterpretationCache holds three independent bounded caches. It is safe
// for concurrent use.
type InterpretationCache struct {
	plans  *lru.TwoQueueCache[Key, *SelectPlan]
	hql    *lru.TwoQueueCache[string, *interpretation]
	native *lru.TwoQueueCache[string, *ParameterInterpretation]
	flight singleflight.Group
	stats  stat.Sink
	log    *slog.Logger
}

// Option configures an InterpretationCache.
type Option func(*config)

type config struct {
	planSize, hqlSize, nativeSize int
	stats                         stat.Sink
	log                           *slog.Logger
}

// WithPlanCacheSize sets the capacity of the select plan cache.
func WithPlanCacheSize(n int) Option {
	return func(c *config) { c.planSize = n }
}

// WithInterpretationCacheSize sets the capacity of the statement cache.
func WithInterpretationCacheSize(n int) Option {
	return func(c *config) { c.hqlSize = n }
}

// WithNativeParameterCacheSize sets the capacity of the native parameter cache.
func WithNativeParameterCacheSize(n int) Option {
	return func(c *config) { c.nativeSize = n }
}

// WithStatistics sets the sink notified of hits, misses and compilations.
func WithStatistics(s stat.Sink) Option {
	return func(c *config) { c.stats = s }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

// NewInterpretationCache returns an empty cache.
func NewInterpretationCache(opts ...Option) (*InterpretationCache, error) {
	cfg := config{
		planSize:   DefaultCacheSize,
		hqlSize:    DefaultCacheSize,
		nativeSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = slog.Default()
	}
	c := &InterpretationCache{stats: cfg.stats, log: cfg.log}
	var err error
	if c.plans, err = lru.New2Q[Key, *SelectPlan](cfg.planSize); err != nil {
		return nil, fmt.Errorf("plan: plan cache size %d: %w", cfg.planSize, err)
	}
	if c.hql, err = lru.New2Q[string, *interpretation](cfg.hqlSize); err != nil {
		return nil, fmt.Errorf("plan: interpretation cache size %d: %w", cfg.hqlSize, err)
	}
	if c.native, err = lru.New2Q[string, *ParameterInterpretation](cfg.nativeSize); err != nil {
		return nil, fmt.Errorf("plan: native parameter cache size %d: %w", cfg.nativeSize, err)
	}
	c.log.Debug("starting query interpretation cache",
		"plans", cfg.planSize, "interpretations", cfg.hqlSize, "native", cfg.nativeSize)
	return c, nil
}

// ResolveInterpretation returns the statement of the query text, calling
// create on a miss. Concurrent misses on the same text may each call
// create. The last result stored wins, and every result is equivalent.
// Errors are returned as is and nothing is cached.
func (c *InterpretationCache) ResolveInterpretation(text string, create func(string) (tree.Statement, error)) (*HQLInterpretation, error) {
	key := Normalize(text)
	enabled := c.statsEnabled()
	var start time.Time
	if enabled {
		start = time.Now()
	}
	in, ok := c.hql.Get(key)
	if ok {
		if enabled {
			c.record(func(s stat.Sink) { s.PlanCacheHit(text) })
		}
	} else {
		c.log.Debug("creating and caching query interpretation", "query", text)
		stmt, err := create(text)
		if err != nil {
			return nil, err
		}
		in = &interpretation{stmt: stmt, meta: stmt.Parameters()}
		c.hql.Add(key, in)
		if enabled {
			micros := time.Since(start).Microseconds()
			c.record(func(s stat.Sink) { s.QueryCompiled(text, micros) })
		}
	}
	return &HQLInterpretation{
		Statement: in.stmt,
		Metadata:  in.meta,
		Xref:      tree.NewParameterXref(in.meta),
	}, nil
}

// ResolveNativeParameters returns the parameter layout of a native query,
// calling create at most once per text while the entry stays cached, even
// under concurrent misses.
func (c *InterpretationCache) ResolveNativeParameters(text string, create func(string) (*ParameterInterpretation, error)) (*ParameterInterpretation, error) {
	key := Normalize(text)
	if pi, ok := c.native.Get(key); ok {
		return pi, nil
	}
	v, err, _ := c.flight.Do(key, func() (any, error) {
		if pi, ok := c.native.Get(key); ok {
			return pi, nil
		}
		pi, err := create(text)
		if err != nil {
			return nil, err
		}
		c.native.Add(key, pi)
		c.log.Debug("creating and caching native query parameters", "interpretation", pi)
		return pi, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ParameterInterpretation), nil
}

// ResolveSelectPlan returns the plan of the key, calling create on a miss.
// Plans marked Fixed are returned but not stored.
func (c *InterpretationCache) ResolveSelectPlan(key Key, create func() (*SelectPlan, error)) (*SelectPlan, error) {
	stored := key.PrepareForStore()
	enabled := c.statsEnabled()
	if p, ok := c.plans.Get(stored); ok {
		if enabled {
			c.record(func(s stat.Sink) { s.PlanCacheHit(key.QueryString()) })
		}
		return p, nil
	}
	p, err := create()
	if err != nil {
		return nil, err
	}
	if !p.Fixed {
		c.plans.Add(stored, p)
	}
	if enabled {
		c.record(func(s stat.Sink) { s.PlanCacheMiss(key.QueryString()) })
	}
	return p, nil
}

// PlanCount returns the number of cached select plans.
func (c *InterpretationCache) PlanCount() int { return c.plans.Len() }

// InterpretationCount returns the number of cached statements.
func (c *InterpretationCache) InterpretationCount() int { return c.hql.Len() }

// NativeParameterCount returns the number of cached native parameter layouts.
func (c *InterpretationCache) NativeParameterCount() int { return c.native.Len() }

// Close empties the caches. It may be called more than once, and lookups
// after Close behave as misses on an empty cache.
func (c *InterpretationCache) Close() {
	c.plans.Purge()
	c.hql.Purge()
	c.native.Purge()
	c.log.Debug("query interpretation cache closed")
}

func (c *InterpretationCache) statsEnabled() (enabled bool) {
	if c.stats == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("query statistics sink panicked", "panic", r)
			enabled = false
		}
	}()
	return c.stats.Enabled()
}

// record calls the sink. A panicking sink is logged and never fails the lookup.
func (c *InterpretationCache) record(fn func(stat.Sink)) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("query statistics sink panicked", "panic", r)
		}
	}()
	fn(c.stats)
}
