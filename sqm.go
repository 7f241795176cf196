// Package sqm runs object queries and bulk mutations over entities mapped
// to relational tables.
//
// A SessionFactory is opened once over a driver and an entity mapping. It
// owns the query interpretation cache, the statistics and the strategy used
// for mutations of entities stored in more than one table. Sessions are
// opened per unit of work and run every statement in one transaction:
//
//	sf, err := sqm.Open(drv, g, sqm.WithTableBasedStrategy(mutation.TableBasedConfig{}))
//	if err != nil {
//		return err
//	}
//	defer sf.Close()
//	s, err := sf.OpenSession(ctx)
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//	q, err := s.CreateQuery("delete Customer c where c.region = :region")
//	if err != nil {
//		return err
//	}
//	n, err := q.SetParameter("region", "eu").ExecuteUpdate(ctx)
//	if err != nil {
//		return err
//	}
//	return s.Commit(ctx)
package sqm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"sync/atomic"

	"github.com/syssam/sqm/config"
	"github.com/syssam/sqm/dialect"
	"github.com/syssam/sqm/dialect/sql/schema"
	"github.com/syssam/sqm/dialect/sql/sqlgraph"
	"github.com/syssam/sqm/query/hql"
	"github.com/syssam/sqm/query/mutation"
	"github.com/syssam/sqm/query/plan"
	"github.com/syssam/sqm/querylanguage"
	"github.com/syssam/sqm/stat"
)

// SessionFactory opens sessions over one database and one mapping. It is
// safe for concurrent use.
type SessionFactory struct {
	driver     dialect.Driver
	dialect    string
	schema     *sqlgraph.Schema
	translator *hql.Translator
	cache      *plan.InterpretationCache
	stats      *stat.Statistics
	strategy   mutation.Strategy
	queries    map[string]namedQuery
	log        *slog.Logger
	closed     atomic.Bool
}

type namedQuery struct {
	name   string
	text   string
	native bool
}

type filterDef struct {
	entity, name, condition string
}

// Option configures a SessionFactory.
type Option func(*options)

type options struct {
	strategy   mutation.Strategy
	table      *mutation.TableBasedConfig
	cache      []plan.Option
	statistics bool
	log        *slog.Logger
	queries    []namedQuery
	filters    []filterDef
	errs       []error
}

// WithStrategy sets the strategy of multi-table mutations.
func WithStrategy(s mutation.Strategy) Option {
	return func(o *options) { o.strategy, o.table = s, nil }
}

// WithInlineStrategy selects the inline strategy for the dialect of the
// driver. It is the default.
func WithInlineStrategy() Option {
	return func(o *options) { o.strategy, o.table = nil, nil }
}

// WithTableBasedStrategy selects a table based strategy. An empty dialect
// in cfg is the dialect of the driver.
func WithTableBasedStrategy(cfg mutation.TableBasedConfig) Option {
	return func(o *options) { o.strategy, o.table = nil, &cfg }
}

// WithCacheSize sets the capacity of the select plan, statement and native
// parameter caches. Zero keeps the default capacity.
func WithCacheSize(plans, interpretations, native int) Option {
	return func(o *options) {
		if plans > 0 {
			o.cache = append(o.cache, plan.WithPlanCacheSize(plans))
		}
		if interpretations > 0 {
			o.cache = append(o.cache, plan.WithInterpretationCacheSize(interpretations))
		}
		if native > 0 {
			o.cache = append(o.cache, plan.WithNativeParameterCacheSize(native))
		}
	}
}

// WithStatisticsEnabled sets the initial state of statistics collection.
func WithStatisticsEnabled(enabled bool) Option {
	return func(o *options) { o.statistics = enabled }
}

// WithLogger sets the logger of the factory and its sessions.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithNamedQuery registers an HQL query under name. It is translated by Open.
func WithNamedQuery(name, text string) Option {
	return func(o *options) { o.queries = append(o.queries, namedQuery{name: name, text: text}) }
}

// WithNamedNativeQuery registers a native SQL query under name.
func WithNamedNativeQuery(name, sql string) Option {
	return func(o *options) {
		o.queries = append(o.queries, namedQuery{name: name, text: sql, native: true})
	}
}

// WithFilter defines a filter on the entity, with an HQL condition over its
// attributes. Sessions enable it by name.
//
//	sqm.WithFilter("Customer", "region", "region = :region")
func WithFilter(entity, name, condition string) Option {
	return func(o *options) { o.filters = append(o.filters, filterDef{entity, name, condition}) }
}

// FromConfig applies the cache, statistics, strategy and named query
// settings of a loaded configuration. The entity mapping of the
// configuration is built separately with config.Mapping.Schema.
func FromConfig(c *config.Config) Option {
	return func(o *options) {
		WithCacheSize(c.Cache.Plans, c.Cache.Interpretations, c.Cache.NativeParameters)(o)
		WithStatisticsEnabled(c.Statistics)(o)
		switch c.Mutation.Strategy {
		case config.StrategyTable:
			cfg, err := c.TableBasedConfig()
			if err != nil {
				o.errs = append(o.errs, err)
				break
			}
			WithTableBasedStrategy(cfg)(o)
		default:
			WithInlineStrategy()(o)
		}
		for _, name := range slices.Sorted(maps.Keys(c.Mapping.Queries)) {
			WithNamedQuery(name, c.Mapping.Queries[name])(o)
		}
		for _, name := range slices.Sorted(maps.Keys(c.Mapping.NativeQueries)) {
			WithNamedNativeQuery(name, c.Mapping.NativeQueries[name])(o)
		}
	}
}

// Open returns a session factory over the driver and the mapping. The
// mapping, the filters and every named query are checked, and failures
// are returned as a *ConfigurationError. The factory owns the driver
// once Open succeeds.
func Open(drv dialect.Driver, g *sqlgraph.Schema, opts ...Option) (*SessionFactory, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if len(o.errs) > 0 {
		return nil, NewConfigurationError("options", errors.Join(o.errs...))
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	d := drv.Dialect()
	filters, err := defineFilters(g, o.filters)
	if err != nil {
		return nil, err
	}
	var vopts []schema.ValidateOption
	if o.table != nil {
		vopts = append(vopts, schema.RequireIDTypes())
	}
	if r := schema.ValidateMapping(g, vopts...); r.HasErrors() {
		return nil, NewConfigurationError("mapping", r.Err())
	}
	strategy, err := o.resolveStrategy(d)
	if err != nil {
		return nil, NewConfigurationError("mutation strategy", err)
	}
	stats := stat.New(stat.WithEnabled(o.statistics))
	cache, err := plan.NewInterpretationCache(append(o.cache, plan.WithStatistics(stats), plan.WithLogger(o.log))...)
	if err != nil {
		return nil, NewConfigurationError("query cache", err)
	}
	f := &SessionFactory{
		driver:     drv,
		dialect:    d,
		schema:     g,
		translator: hql.NewTranslator(g),
		cache:      cache,
		stats:      stats,
		strategy:   strategy,
		queries:    make(map[string]namedQuery, len(o.queries)),
		log:        o.log,
	}
	for _, q := range o.queries {
		if err := f.register(q); err != nil {
			cache.Close()
			return nil, err
		}
	}
	filters.install()
	f.log.Debug("session factory opened",
		"dialect", d, "entities", len(g.Entities()), "named_queries", len(f.queries), "strategy", fmt.Sprintf("%T", strategy))
	return f, nil
}

func (o *options) resolveStrategy(d string) (mutation.Strategy, error) {
	switch {
	case o.strategy != nil:
		return o.strategy, nil
	case o.table != nil:
		cfg := *o.table
		if cfg.Dialect == "" {
			cfg.Dialect = d
		}
		return mutation.NewTableBasedStrategy(cfg)
	default:
		return mutation.NewInlineStrategyFor(d)
	}
}

// filterSet holds the filters of the options by entity. They are added to
// the mapping only once Open succeeds.
type filterSet map[*sqlgraph.Entity][]*sqlgraph.Filter

func (fs filterSet) install() {
	for e, filters := range fs {
		if e.Filters == nil {
			e.Filters = make(map[string]*sqlgraph.Filter, len(filters))
		}
		for _, f := range filters {
			e.Filters[f.Name] = f
		}
	}
}

// defineFilters parses the filter options and checks them, together with
// the filters of the mapping, against their entities. The mapping is left
// untouched.
func defineFilters(g *sqlgraph.Schema, defs []filterDef) (filterSet, error) {
	fs := make(filterSet)
	for _, def := range defs {
		name := "filter " + strconv.Quote(def.name)
		e, ok := g.Entity(def.entity)
		if !ok {
			return nil, NewConfigurationError(name, fmt.Errorf("unknown entity %q", def.entity))
		}
		cond, err := hql.ParsePredicate(def.condition)
		if err != nil {
			return nil, NewConfigurationError(name, err)
		}
		f := &sqlgraph.Filter{Name: def.name, Condition: cond}
		if err := checkFilter(e, f); err != nil {
			return nil, err
		}
		fs[e] = append(fs[e], f)
	}
	for _, e := range g.Entities() {
		for name, f := range e.Filters {
			if f.Name == "" {
				f = &sqlgraph.Filter{Name: name, Condition: f.Condition}
			}
			if err := checkFilter(e, f); err != nil {
				return nil, err
			}
		}
	}
	return fs, nil
}

func checkFilter(e *sqlgraph.Entity, f *sqlgraph.Filter) error {
	name := "filter " + strconv.Quote(f.Name)
	for _, attr := range querylanguage.Fields(f.Condition) {
		if _, _, err := e.Resolve(attr); err != nil {
			return NewConfigurationError(name, err)
		}
	}
	for _, p := range querylanguage.Params(f.Condition) {
		if p.Name == "" {
			return NewConfigurationError(name, fmt.Errorf("positional parameter %s", p))
		}
	}
	return nil
}

// register resolves a named query through the cache, so its first
// execution is a cache hit.
func (f *SessionFactory) register(q namedQuery) error {
	name := "named query " + strconv.Quote(q.name)
	if _, ok := f.queries[q.name]; ok {
		return NewConfigurationError(name, errors.New("registered twice"))
	}
	var err error
	if q.native {
		_, err = f.resolveNative(q.text)
	} else {
		_, err = f.cache.ResolveInterpretation(q.text, f.translator.Translate)
	}
	if err != nil {
		return NewConfigurationError(name, err)
	}
	f.queries[q.name] = q
	return nil
}

func (f *SessionFactory) resolveNative(text string) (*plan.ParameterInterpretation, error) {
	return f.cache.ResolveNativeParameters(text, func(text string) (*plan.ParameterInterpretation, error) {
		return plan.InterpretNative(f.dialect, text)
	})
}

// Dialect returns the dialect of the driver.
func (f *SessionFactory) Dialect() string { return f.dialect }

// Schema returns the entity mapping.
func (f *SessionFactory) Schema() *sqlgraph.Schema { return f.schema }

// Strategy returns the strategy of multi-table mutations.
func (f *SessionFactory) Strategy() mutation.Strategy { return f.strategy }

// Statistics returns the statistics of the factory.
func (f *SessionFactory) Statistics() *stat.Statistics { return f.stats }

// WatchConfig toggles statistics collection whenever the configuration
// file at path changes, until ctx is done.
func (f *SessionFactory) WatchConfig(ctx context.Context, path string) error {
	return config.Watch(ctx, path, func(c *config.Config, err error) {
		if err != nil {
			f.log.Warn("ignoring configuration change", "path", path, "error", err)
			return
		}
		if c.Statistics != f.stats.Enabled() {
			f.log.Info("statistics collection changed", "enabled", c.Statistics)
			f.stats.SetEnabled(c.Statistics)
		}
	})
}

// Close releases the caches and closes the driver. Calling Close more
// than once is a no-op.
func (f *SessionFactory) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	f.cache.Close()
	return f.driver.Close()
}
