// Package mutation executes update and delete statements over entities
// stored in more than one table.
//
// A mutation first selects the identifiers of the matching entities under
// the statement predicate and the enabled filters, then issues one
// statement per table restricted to those identifiers. Strategies differ
// in how the identifiers reach the table statements: InlineStrategy lists
// them in the statements, TableBasedStrategy stages them in a holding
// table.
package mutation

import (
	"context"
	"errors"
	"fmt"

	"github.com/syssam/sqm/dialect"
	"github.com/syssam/sqm/dialect/sql"
	"github.com/syssam/sqm/dialect/sql/sqlgraph"
	"github.com/syssam/sqm/query/tree"
)

var (
	// ErrUnsupportedConfiguration is returned when a strategy cannot be
	// built for the given dialect or options.
	ErrUnsupportedConfiguration = errors.New("mutation: unsupported configuration")
	// ErrUnsupportedOperation is returned for statements a strategy cannot express.
	ErrUnsupportedOperation = errors.New("mutation: unsupported operation")
)

// Strategy executes multi-table mutations.
type Strategy interface {
	ExecuteUpdate(ctx context.Context, stmt *tree.UpdateStatement, x *tree.ParameterXref, ec *ExecutionContext) (int, error)
	ExecuteDelete(ctx context.Context, stmt *tree.DeleteStatement, x *tree.ParameterXref, ec *ExecutionContext) (int, error)
}

// InlineStrategy materializes the matching ids in memory and restricts
// every table statement with a predicate listing them.
type InlineStrategy struct {
	producer func(tree.MutationStatement) RestrictionProducer
}

// NewInlineStrategy returns an inline strategy taking the restriction
// producer of each statement from producer.
func NewInlineStrategy(producer func(tree.MutationStatement) RestrictionProducer) (*InlineStrategy, error) {
	if producer == nil {
		return nil, fmt.Errorf("%w: inline strategy without restriction producer", ErrUnsupportedConfiguration)
	}
	return &InlineStrategy{producer: producer}, nil
}

// NewInlineStrategyFor returns an inline strategy using the restriction
// producer matching the capabilities of the dialect.
func NewInlineStrategyFor(dialectName string) (*InlineStrategy, error) {
	c, err := dialect.CapabilitiesOf(dialectName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedConfiguration, err)
	}
	p := RestrictionProducerFor(c)
	return NewInlineStrategy(func(tree.MutationStatement) RestrictionProducer { return p })
}

// ExecuteUpdate implements Strategy.
func (s *InlineStrategy) ExecuteUpdate(ctx context.Context, stmt *tree.UpdateStatement, x *tree.ParameterXref, ec *ExecutionContext) (int, error) {
	d, err := s.resolveDelegate(ec, stmt, x)
	if err != nil {
		return 0, err
	}
	return d.Execute(ctx, ec)
}

// ExecuteDelete implements Strategy.
func (s *InlineStrategy) ExecuteDelete(ctx context.Context, stmt *tree.DeleteStatement, x *tree.ParameterXref, ec *ExecutionContext) (int, error) {
	d, err := s.resolveDelegate(ec, stmt, x)
	if err != nil {
		return 0, err
	}
	return d.Execute(ctx, ec)
}

func (s *InlineStrategy) resolveDelegate(ec *ExecutionContext, stmt tree.MutationStatement, x *tree.ParameterXref) (ExecutionDelegate, error) {
	p := s.producer(stmt)
	if p == nil {
		return nil, fmt.Errorf("%w: no restriction producer for %s", ErrUnsupportedConfiguration, stmt)
	}
	return resolveDelegate(ec, stmt, x, &inlineRestriction{producer: p})
}

// resolveDelegate returns a new delegate of the statement.
func resolveDelegate(ec *ExecutionContext, stmt tree.MutationStatement, x *tree.ParameterXref, r restriction) (ExecutionDelegate, error) {
	d, err := newDelegate(ec, stmt, x, r)
	if err != nil {
		return nil, err
	}
	switch stmt := stmt.(type) {
	case *tree.DeleteStatement:
		return &deleteDelegate{delegate: d}, nil
	case *tree.UpdateStatement:
		return &updateDelegate{delegate: d, assignments: stmt.Assignments}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperation, stmt.Kind())
	}
}

type inlineRestriction struct {
	producer RestrictionProducer
	ids      *MatchingIDs
}

func (r *inlineRestriction) stage(ctx context.Context, ec *ExecutionContext, s *sqlgraph.Selector) (int, error) {
	ids, err := collectIDs(ctx, ec, s)
	if err != nil {
		return 0, err
	}
	r.ids = ids
	return ids.Len(), nil
}

func (r *inlineRestriction) predicate(t *sqlgraph.Table) *sql.Predicate {
	return r.producer.Restrict(r.ids, t.KeyColumns)
}

func (r *inlineRestriction) release(context.Context, *ExecutionContext) error {
	r.ids = nil
	return nil
}
