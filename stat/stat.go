// Package stat collects query cache statistics: plan cache hits and misses,
// query compilations and their durations, in total and per query text.
//
// Collection can be switched on and off at runtime. When disabled, callers
// pay for one atomic load per event:
//
//	st := stat.New(stat.WithEnabled(true))
//	cache := plan.NewInterpretationCache(plan.WithStatistics(st))
//	...
//	fmt.Println(st.Snapshot())
package stat

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Sink receives query cache events. Implementations must be safe for
// concurrent use. The cache checks Enabled before timing a compilation.
type Sink interface {
	Enabled() bool
	PlanCacheHit(query string)
	PlanCacheMiss(query string)
	QueryCompiled(query string, micros int64)
}

// DefaultMaxQueries is the default number of distinct query texts tracked.
const DefaultMaxQueries = 2048

// Statistics is the default Sink.
type Statistics struct {
	enabled       atomic.Bool
	start         atomic.Int64 // unix nanoseconds
	hits          atomic.Int64
	misses        atomic.Int64
	compilations  atomic.Int64
	compileMicros atomic.Int64
	maxMicros     atomic.Int64
	slowest       atomic.Pointer[string]
	queries       *lru.Cache[string, *counters]
}

type counters struct {
	hits          atomic.Int64
	misses        atomic.Int64
	compilations  atomic.Int64
	compileMicros atomic.Int64
}

// Option configures Statistics.
type Option func(*options)

type options struct {
	enabled    bool
	maxQueries int
}

// WithEnabled sets the initial state of the collection.
func WithEnabled(enabled bool) Option {
	return func(o *options) { o.enabled = enabled }
}

// WithMaxQueries bounds the number of query texts tracked individually.
// The least recently seen texts are dropped first.
func WithMaxQueries(n int) Option {
	return func(o *options) { o.maxQueries = n }
}

// New returns a disabled Statistics unless WithEnabled(true) is passed.
func New(opts ...Option) *Statistics {
	o := options{maxQueries: DefaultMaxQueries}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxQueries <= 0 {
		o.maxQueries = DefaultMaxQueries
	}
	queries, err := lru.New[string, *counters](o.maxQueries)
	if err != nil {
		// Unreachable, the size is positive.
		panic(err)
	}
	s := &Statistics{queries: queries}
	s.enabled.Store(o.enabled)
	s.start.Store(time.Now().UnixNano())
	return s
}

// Enabled implements the Sink interface.
func (s *Statistics) Enabled() bool { return s.enabled.Load() }

// SetEnabled switches the collection on or off.
func (s *Statistics) SetEnabled(enabled bool) { s.enabled.Store(enabled) }

// PlanCacheHit implements the Sink interface.
func (s *Statistics) PlanCacheHit(query string) {
	if !s.Enabled() {
		return
	}
	s.hits.Add(1)
	s.query(query).hits.Add(1)
}

// PlanCacheMiss implements the Sink interface.
func (s *Statistics) PlanCacheMiss(query string) {
	if !s.Enabled() {
		return
	}
	s.misses.Add(1)
	s.query(query).misses.Add(1)
}

// QueryCompiled implements the Sink interface.
func (s *Statistics) QueryCompiled(query string, micros int64) {
	if !s.Enabled() {
		return
	}
	s.compilations.Add(1)
	s.compileMicros.Add(micros)
	for {
		cur := s.maxMicros.Load()
		if micros <= cur {
			break
		}
		if s.maxMicros.CompareAndSwap(cur, micros) {
			s.slowest.Store(&query)
			break
		}
	}
	c := s.query(query)
	c.compilations.Add(1)
	c.compileMicros.Add(micros)
}

func (s *Statistics) query(query string) *counters {
	if c, ok := s.queries.Get(query); ok {
		return c
	}
	c := &counters{}
	// A concurrent first event for the same text may replace c. The lost
	// increment only affects the per-query breakdown.
	if prev, ok, _ := s.queries.PeekOrAdd(query, c); ok {
		return prev
	}
	return c
}

// Clear resets every counter and restarts the collection period.
func (s *Statistics) Clear() {
	s.hits.Store(0)
	s.misses.Store(0)
	s.compilations.Store(0)
	s.compileMicros.Store(0)
	s.maxMicros.Store(0)
	s.slowest.Store(nil)
	s.queries.Purge()
	s.start.Store(time.Now().UnixNano())
}

// Snapshot returns a point-in-time copy of the statistics.
func (s *Statistics) Snapshot() Snapshot {
	snap := Snapshot{
		Enabled:          s.Enabled(),
		Start:            time.Unix(0, s.start.Load()).UTC(),
		PlanCacheHits:    s.hits.Load(),
		PlanCacheMisses:  s.misses.Load(),
		Compilations:     s.compilations.Load(),
		CompileMicros:    s.compileMicros.Load(),
		MaxCompileMicros: s.maxMicros.Load(),
	}
	if q := s.slowest.Load(); q != nil {
		snap.SlowestQuery = *q
	}
	for _, query := range s.queries.Keys() {
		c, ok := s.queries.Peek(query)
		if !ok {
			continue
		}
		snap.Queries = append(snap.Queries, QueryStatistics{
			Query:         query,
			Hits:          c.hits.Load(),
			Misses:        c.misses.Load(),
			Compilations:  c.compilations.Load(),
			CompileMicros: c.compileMicros.Load(),
		})
	}
	slices.SortFunc(snap.Queries, func(a, b QueryStatistics) int {
		return strings.Compare(a.Query, b.Query)
	})
	return snap
}

// QueryStatistics holds the counters of one query text.
type QueryStatistics struct {
	Query         string `msgpack:"query"`
	Hits          int64  `msgpack:"hits"`
	Misses        int64  `msgpack:"misses"`
	Compilations  int64  `msgpack:"compilations"`
	CompileMicros int64  `msgpack:"compile_us"`
}

// Snapshot is a point-in-time copy of Statistics.
type Snapshot struct {
	Enabled          bool              `msgpack:"enabled"`
	Start            time.Time         `msgpack:"start"`
	PlanCacheHits    int64             `msgpack:"plan_cache_hits"`
	PlanCacheMisses  int64             `msgpack:"plan_cache_misses"`
	Compilations     int64             `msgpack:"compilations"`
	CompileMicros    int64             `msgpack:"compile_us"`
	MaxCompileMicros int64             `msgpack:"max_compile_us"`
	SlowestQuery     string            `msgpack:"slowest_query"`
	Queries          []QueryStatistics `msgpack:"queries"`
}

// HitRatio returns the plan cache hit ratio over every lookup, in [0, 1].
func (s Snapshot) HitRatio() float64 {
	total := s.PlanCacheHits + s.PlanCacheMisses + s.Compilations
	if total == 0 {
		return 0
	}
	return float64(s.PlanCacheHits) / float64(total)
}

// AvgCompileMicros returns the average compilation duration in microseconds.
func (s Snapshot) AvgCompileMicros() int64 {
	if s.Compilations == 0 {
		return 0
	}
	return s.CompileMicros / s.Compilations
}

// String returns a one line summary.
func (s Snapshot) String() string {
	return fmt.Sprintf(
		"hits=%d misses=%d compilations=%d avg_compile=%dµs max_compile=%dµs hit_ratio=%.2f",
		s.PlanCacheHits, s.PlanCacheMisses, s.Compilations,
		s.AvgCompileMicros(), s.MaxCompileMicros, s.HitRatio(),
	)
}

// MarshalBinary encodes the snapshot with msgpack.
func (s Snapshot) MarshalBinary() ([]byte, error) {
	type plain Snapshot
	return msgpack.Marshal(plain(s))
}

// UnmarshalBinary decodes a snapshot encoded by MarshalBinary.
func (s *Snapshot) UnmarshalBinary(data []byte) error {
	type plain Snapshot
	return msgpack.Unmarshal(data, (*plain)(s))
}
