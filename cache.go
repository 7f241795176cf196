package sqm

import "fmt"

// CacheStats reports the number of entries of each cache.
type CacheStats struct {
	Plans            int
	Interpretations  int
	NativeParameters int
}

// CacheStats returns the current cache sizes.
func (f *SessionFactory) CacheStats() CacheStats {
	return CacheStats{
		Plans:            f.cache.PlanCount(),
		Interpretations:  f.cache.InterpretationCount(),
		NativeParameters: f.cache.NativeParameterCount(),
	}
}

// String returns the cache sizes in a single line.
func (c CacheStats) String() string {
	return fmt.Sprintf("plans=%d interpretations=%d native=%d", c.Plans, c.Interpretations, c.NativeParameters)
}
