package mutation

import (
	"slices"

	"github.com/syssam/sqm/dialect"
	"github.com/syssam/sqm/dialect/sql"
)

// RestrictionProducer turns a set of matching ids into the predicate
// restricting a table keyed by columns to those ids. Columns has the arity
// of the ids.
type RestrictionProducer interface {
	Restrict(ids *MatchingIDs, columns []string) *sql.Predicate
}

// InListRestrictionProducer restricts with IN lists:
//
//	"id" IN (?, ?, ?)
//	("id" IN (?, ?) OR "id" IN (?))
//	("a", "b") IN ((?, ?), (?, ?))
//
// Lists longer than MaxListSize elements are split into an OR of lists.
// Composite ids use row values when TupleIn is set and fall back to a
// disjunction of conjunctions otherwise.
type InListRestrictionProducer struct {
	// MaxListSize is the number of values a single IN list may carry.
	// Zero means unbounded.
	MaxListSize int
	// TupleIn enables row value IN lists for composite ids.
	TupleIn bool
}

// Restrict implements RestrictionProducer.
func (p InListRestrictionProducer) Restrict(ids *MatchingIDs, columns []string) *sql.Predicate {
	if len(columns) > 1 && !p.TupleIn {
		return DisjunctionRestrictionProducer{}.Restrict(ids, columns)
	}
	if ids.Empty() {
		return sql.Or()
	}
	size := ids.Len()
	if p.MaxListSize > 0 {
		size = max(p.MaxListSize/len(columns), 1)
	}
	var preds []*sql.Predicate
	for rows := range slices.Chunk(ids.Rows, size) {
		if len(columns) == 1 {
			values := make([]any, len(rows))
			for i, r := range rows {
				values[i] = r[0]
			}
			preds = append(preds, sql.In(columns[0], values...))
		} else {
			preds = append(preds, sql.TupleIn(columns, rows))
		}
	}
	return sql.Or(preds...)
}

// DisjunctionRestrictionProducer restricts with an OR of equalities:
//
//	("a" = ? AND "b" = ? OR "a" = ? AND "b" = ?)
type DisjunctionRestrictionProducer struct{}

// Restrict implements RestrictionProducer.
func (DisjunctionRestrictionProducer) Restrict(ids *MatchingIDs, columns []string) *sql.Predicate {
	preds := make([]*sql.Predicate, 0, ids.Len())
	for _, r := range ids.Rows {
		eqs := make([]*sql.Predicate, len(columns))
		for i, c := range columns {
			eqs[i] = sql.EQ(c, r[i])
		}
		preds = append(preds, sql.And(eqs...))
	}
	return sql.Or(preds...)
}

// RestrictionProducerFor returns the producer matching the capabilities
// of a dialect.
func RestrictionProducerFor(c dialect.Capabilities) RestrictionProducer {
	return InListRestrictionProducer{MaxListSize: c.MaxInListSize, TupleIn: c.TupleInList}
}
