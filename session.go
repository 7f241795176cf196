package sqm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"github.com/syssam/sqm/dialect"
	"github.com/syssam/sqm/dialect/sql/sqlgraph"
	"github.com/syssam/sqm/query/mutation"
	"github.com/syssam/sqm/query/plan"
	"github.com/syssam/sqm/querylanguage"
)

// Session is one unit of work. Every statement of a session runs in the
// same transaction, which ends with Commit, Rollback or Close. A session
// must not be used by more than one goroutine at a time.
type Session struct {
	id       string
	factory  *SessionFactory
	tx       dialect.Tx
	filters  []*FilterBinding
	cleanups mutation.Cleanups
	done     bool
	log      *slog.Logger
}

// OpenSession begins a transaction and returns the session running on it.
func (f *SessionFactory) OpenSession(ctx context.Context) (*Session, error) {
	if f.closed.Load() {
		return nil, ErrFactoryClosed
	}
	tx, err := f.driver.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqm: starting session: %w", err)
	}
	id := uuid.NewString()
	s := &Session{
		id:      id,
		factory: f,
		tx:      tx,
		log:     f.log.With("session", id),
	}
	s.log.Debug("session opened")
	return s, nil
}

// ID returns the unique identifier of the session. It discriminates the
// rows of the session in shared holding tables.
func (s *Session) ID() string { return s.id }

// Tx returns the transaction of the session.
func (s *Session) Tx() dialect.Tx { return s.tx }

// EnableFilter enables the named filter for the following statements of
// the session. Enabling an enabled filter returns its binding.
func (s *Session) EnableFilter(name string) (*FilterBinding, error) {
	if s.done {
		return nil, ErrSessionClosed
	}
	for _, b := range s.filters {
		if b.name == name {
			return b, nil
		}
	}
	if !s.factory.filterDefined(name) {
		return nil, NewConfigurationError("filter "+strconv.Quote(name), errors.New("not defined by any entity"))
	}
	var params []string
	for _, e := range s.factory.schema.Entities() {
		if f, ok := e.Filters[name]; ok {
			for _, p := range querylanguage.Params(f.Condition) {
				if !slices.Contains(params, p.Name) {
					params = append(params, p.Name)
				}
			}
		}
	}
	b := &FilterBinding{name: name, declared: params, values: make(map[string]any)}
	s.filters = append(s.filters, b)
	return b, nil
}

// DisableFilter disables the named filter.
func (s *Session) DisableFilter(name string) {
	s.filters = slices.DeleteFunc(s.filters, func(b *FilterBinding) bool { return b.name == name })
}

func (f *SessionFactory) filterDefined(name string) bool {
	for _, e := range f.schema.Entities() {
		if _, ok := e.Filters[name]; ok {
			return true
		}
	}
	return false
}

// enabledFilters returns the enabled filters with their bound values.
func (s *Session) enabledFilters() ([]mutation.EnabledFilter, error) {
	fs := make([]mutation.EnabledFilter, 0, len(s.filters))
	for _, b := range s.filters {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		fs = append(fs, mutation.EnabledFilter{Name: b.name, Params: maps.Clone(b.values)})
	}
	return fs, nil
}

// appliedFilters returns the enabled filters defined on e or its parents.
func (s *Session) appliedFilters(e *sqlgraph.Entity) ([]plan.AppliedFilter, error) {
	var fs []plan.AppliedFilter
	for _, b := range s.filters {
		def, ok := e.Filter(b.name)
		if !ok {
			continue
		}
		if err := b.Validate(); err != nil {
			return nil, err
		}
		fs = append(fs, plan.AppliedFilter{Filter: def, Bind: b.bind})
	}
	return fs, nil
}

// executionContext returns the context of one mutation call.
func (s *Session) executionContext(opts mutation.QueryOptions) (*mutation.ExecutionContext, error) {
	filters, err := s.enabledFilters()
	if err != nil {
		return nil, err
	}
	return &mutation.ExecutionContext{
		SessionID: s.id,
		Conn:      s.tx,
		Dialect:   s.factory.dialect,
		Schema:    s.factory.schema,
		Options:   opts,
		Filters:   filters,
		Cleanups:  &s.cleanups,
		Logger:    s.log,
	}, nil
}

// Commit runs the cleanups deferred by the mutations of the session and
// commits the transaction. The transaction is rolled back if a cleanup fails.
func (s *Session) Commit(ctx context.Context) error {
	if s.done {
		return ErrSessionClosed
	}
	s.done = true
	if err := s.cleanups.Run(ctx, s.tx); err != nil {
		if rerr := s.tx.Rollback(); rerr != nil {
			return NewAggregateError(err, &RollbackError{Err: rerr})
		}
		return err
	}
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("sqm: committing session: %w", err)
	}
	s.log.Debug("session committed")
	return nil
}

// Rollback rolls back the transaction. Deferred cleanups are dropped, the
// rollback undoes what they would have cleaned.
func (s *Session) Rollback() error {
	if s.done {
		return ErrSessionClosed
	}
	s.done = true
	if err := s.tx.Rollback(); err != nil {
		return &RollbackError{Err: err}
	}
	s.log.Debug("session rolled back")
	return nil
}

// Close ends a session that was neither committed nor rolled back: the
// deferred cleanups run and the transaction is rolled back. Close is a
// no-op on an ended session, so it can be deferred right after
// OpenSession.
func (s *Session) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	cerr := s.cleanups.Run(context.Background(), s.tx)
	var rerr error
	if err := s.tx.Rollback(); err != nil {
		rerr = &RollbackError{Err: err}
	}
	s.log.Debug("session closed")
	return NewAggregateError(cerr, rerr)
}

// FilterBinding holds the parameter values of a filter enabled on a session.
type FilterBinding struct {
	name     string
	declared []string
	values   map[string]any
	err      error
}

// Name returns the filter name.
func (b *FilterBinding) Name() string { return b.name }

// SetParameter binds a parameter of the filter condition.
func (b *FilterBinding) SetParameter(name string, v any) *FilterBinding {
	if !slices.Contains(b.declared, name) {
		b.err = fmt.Errorf("sqm: filter %q has no parameter %q", b.name, name)
		return b
	}
	b.values[name] = v
	return b
}

// Validate checks that every parameter of the filter is bound.
func (b *FilterBinding) Validate() error {
	if b.err != nil {
		return b.err
	}
	for _, p := range b.declared {
		if _, ok := b.values[p]; !ok {
			return fmt.Errorf("sqm: filter %q: %w :%s", b.name, sqlgraph.ErrUnboundParameter, p)
		}
	}
	return nil
}

func (b *FilterBinding) bind(p *querylanguage.Param) (any, error) {
	v, ok := b.values[p.Name]
	if !ok {
		return nil, fmt.Errorf("sqm: filter %q: %w %s", b.name, sqlgraph.ErrUnboundParameter, p)
	}
	return v, nil
}
