package stat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatistics(t *testing.T) {
	s := New()
	s.PlanCacheHit("q1")
	s.QueryCompiled("q1", 10)
	assert.Equal(t, Snapshot{Enabled: false, Start: s.Snapshot().Start}, s.Snapshot())

	s.SetEnabled(true)
	s.QueryCompiled("q1", 10)
	s.QueryCompiled("q2", 30)
	s.QueryCompiled("q3", 20)
	s.PlanCacheHit("q1")
	s.PlanCacheHit("q1")
	s.PlanCacheMiss("q2")

	snap := s.Snapshot()
	assert.True(t, snap.Enabled)
	assert.EqualValues(t, 2, snap.PlanCacheHits)
	assert.EqualValues(t, 1, snap.PlanCacheMisses)
	assert.EqualValues(t, 3, snap.Compilations)
	assert.EqualValues(t, 60, snap.CompileMicros)
	assert.EqualValues(t, 20, snap.AvgCompileMicros())
	assert.EqualValues(t, 30, snap.MaxCompileMicros)
	assert.Equal(t, "q2", snap.SlowestQuery)
	assert.InDelta(t, 2.0/6.0, snap.HitRatio(), 0.0001)
	require.Len(t, snap.Queries, 3)
	assert.Equal(t, QueryStatistics{Query: "q1", Hits: 2, Compilations: 1, CompileMicros: 10}, snap.Queries[0])
	assert.Equal(t, QueryStatistics{Query: "q2", Misses: 1, Compilations: 1, CompileMicros: 30}, snap.Queries[1])
	assert.Contains(t, snap.String(), "hits=2 misses=1 compilations=3 avg_compile=20µs max_compile=30µs")

	s.Clear()
	snap = s.Snapshot()
	assert.Zero(t, snap.PlanCacheHits)
	assert.Empty(t, snap.SlowestQuery)
	assert.Empty(t, snap.Queries)
	assert.Zero(t, snap.HitRatio())
}

func TestStatistics_MaxQueries(t *testing.T) {
	s := New(WithEnabled(true), WithMaxQueries(2))
	s.PlanCacheMiss("a")
	s.PlanCacheMiss("b")
	s.PlanCacheMiss("c")
	snap := s.Snapshot()
	assert.EqualValues(t, 3, snap.PlanCacheMisses)
	require.Len(t, snap.Queries, 2)
	assert.Equal(t, "b", snap.Queries[0].Query)
	assert.Equal(t, "c", snap.Queries[1].Query)
}

func TestStatistics_Concurrent(t *testing.T) {
	s := New(WithEnabled(true))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.PlanCacheHit("q")
				s.QueryCompiled("q", int64(j))
			}
		}()
	}
	wg.Wait()
	snap := s.Snapshot()
	assert.EqualValues(t, 800, snap.PlanCacheHits)
	assert.EqualValues(t, 800, snap.Compilations)
	assert.EqualValues(t, 99, snap.MaxCompileMicros)
}

func TestSnapshot_MarshalBinary(t *testing.T) {
	s := New(WithEnabled(true))
	s.QueryCompiled("delete Customer c", 42)
	s.PlanCacheHit("delete Customer c")
	snap := s.Snapshot()

	data, err := snap.MarshalBinary()
	require.NoError(t, err)
	var got Snapshot
	require.NoError(t, got.UnmarshalBinary(data))
	assert.True(t, snap.Start.Equal(got.Start))
	got.Start = snap.Start
	assert.Equal(t, snap, got)
}
