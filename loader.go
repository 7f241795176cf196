package sqm

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/syssam/sqm/dialect/sql/sqlgraph"
	"github.com/syssam/sqm/query/plan"
	"github.com/syssam/sqm/query/tree"
	"github.com/syssam/sqm/querylanguage"
)

// ProvidedQueryLoader loads single entities by identifier with a named
// query provided by the mapping instead of a generated select. The
// identifier is bound to the first parameter of the query.
type ProvidedQueryLoader struct {
	entity *sqlgraph.Entity
	query  namedQuery
	param  *querylanguage.Param
}

// NewProvidedQueryLoader returns a loader of the entity running the named
// query. A native query takes precedence over an HQL query of the same
// name. Unknown entities and queries fail with a *ConfigurationError.
func NewProvidedQueryLoader(f *SessionFactory, entity, queryName string) (*ProvidedQueryLoader, error) {
	name := "load query " + strconv.Quote(queryName) + " of " + entity
	e, ok := f.schema.Entity(entity)
	if !ok {
		return nil, NewConfigurationError(name, fmt.Errorf("unknown entity %q", entity))
	}
	q, ok := f.queries[queryName]
	if !ok {
		return nil, NewConfigurationError(name, errors.New("named query not registered"))
	}
	var meta *tree.ParameterMetadata
	if q.native {
		interp, err := f.resolveNative(q.text)
		if err != nil {
			return nil, NewConfigurationError(name, err)
		}
		meta = interp.Metadata
	} else {
		interp, err := f.cache.ResolveInterpretation(q.text, f.translator.Translate)
		if err != nil {
			return nil, NewConfigurationError(name, err)
		}
		if interp.Statement.Kind() != tree.KindSelect {
			return nil, NewConfigurationError(name, fmt.Errorf("%s statement", interp.Statement.Kind()))
		}
		meta = interp.Metadata
	}
	if meta.Len() == 0 {
		return nil, NewConfigurationError(name, errors.New("query has no identifier parameter"))
	}
	return &ProvidedQueryLoader{entity: e, query: q, param: meta.Params()[0]}, nil
}

// Entity returns the loaded entity.
func (l *ProvidedQueryLoader) Entity() *sqlgraph.Entity { return l.entity }

// Load runs the query with id bound to its first parameter and returns the
// only row. No row is a *NotFoundError and more than one a *NotSingularError.
func (l *ProvidedQueryLoader) Load(ctx context.Context, s *Session, id any) (plan.Row, error) {
	var (
		rows []plan.Row
		err  error
	)
	if l.query.native {
		var q *NativeQuery
		if q, err = s.CreateNativeQuery(l.query.text); err != nil {
			return nil, err
		}
		if l.param.Name != "" {
			q.SetParameter(l.param.Name, id)
		} else {
			q.SetPositionalParameter(l.param.Position, id)
		}
		rows, err = q.List(ctx)
	} else {
		var q *Query
		if q, err = s.CreateQuery(l.query.text); err != nil {
			return nil, err
		}
		if l.param.Name != "" {
			q.SetParameter(l.param.Name, id)
		} else {
			q.SetPositionalParameter(l.param.Position, id)
		}
		rows, err = q.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	return unique(l.entity.Name, id, rows)
}

// LoadInto loads the entity into an existing instance. Provided queries
// only build new rows, so a non-nil instance fails with
// ErrUnsupportedOperation.
func (l *ProvidedQueryLoader) LoadInto(ctx context.Context, s *Session, id, instance any) (plan.Row, error) {
	if instance != nil {
		return nil, fmt.Errorf("%w: %s loader cannot load into an existing instance", ErrUnsupportedOperation, l.entity.Name)
	}
	return l.Load(ctx, s, id)
}

// LoadDatabaseSnapshot returns the state of the entity as stored. Provided
// queries do not track state, so the snapshot is always empty.
func (l *ProvidedQueryLoader) LoadDatabaseSnapshot(context.Context, *Session, any) (plan.Row, error) {
	return plan.Row{}, nil
}
