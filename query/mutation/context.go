package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/syssam/sqm/dialect"
	"github.com/syssam/sqm/dialect/sql/sqlgraph"
	"github.com/syssam/sqm/query/plan"
	"github.com/syssam/sqm/querylanguage"
)

// QueryOptions are the execution options of one statement.
type QueryOptions struct {
	// Timeout bounds the execution of the whole mutation, id
	// selection included. Zero means no timeout.
	Timeout time.Duration
	// LockMode is applied to the matching id selection.
	LockMode plan.LockMode
}

// EnabledFilter is a filter enabled on the session, with the values of its
// parameters. Filters restrict the matching ids of every entity defining them.
type EnabledFilter struct {
	Name   string
	Params map[string]any
}

func (f EnabledFilter) bind(p *querylanguage.Param) (any, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("mutation: filter %q: positional parameter %s", f.Name, p)
	}
	v, ok := f.Params[p.Name]
	if !ok {
		return nil, fmt.Errorf("mutation: filter %q: %w %s", f.Name, sqlgraph.ErrUnboundParameter, p)
	}
	return v, nil
}

// CleanupFunc releases a resource left by a mutation, on the connection
// of the session that created it.
type CleanupFunc func(ctx context.Context, conn dialect.ExecQuerier) error

// Cleanups collects the deferred cleanups of a session. The zero value is
// ready to use.
type Cleanups struct {
	mu   sync.Mutex
	keys []string
	fns  []CleanupFunc
}

// Register adds fn under key. A key registered before is kept and fn is
// dropped, so repeated mutations on the same holding table register once.
func (c *Cleanups) Register(key string, fn CleanupFunc) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slices.Contains(c.keys, key) {
		return false
	}
	c.keys = append(c.keys, key)
	c.fns = append(c.fns, fn)
	return true
}

// Len returns the number of pending cleanups.
func (c *Cleanups) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fns)
}

// Run runs and removes the pending cleanups in registration order. Every
// cleanup runs even if a previous one failed. Calling Run again is a no-op
// until new cleanups are registered.
func (c *Cleanups) Run(ctx context.Context, conn dialect.ExecQuerier) error {
	c.mu.Lock()
	keys, fns := c.keys, c.fns
	c.keys, c.fns = nil, nil
	c.mu.Unlock()
	var errs []error
	for i, fn := range fns {
		if err := fn(ctx, conn); err != nil {
			errs = append(errs, fmt.Errorf("mutation: cleanup %s: %w", keys[i], err))
		}
	}
	return errors.Join(errs...)
}

// ExecutionContext is the environment of one mutation call: the connection
// of the session transaction, the mapping and the session state that
// influences the statements.
type ExecutionContext struct {
	// SessionID identifies the session in holding tables.
	SessionID string
	// Conn runs every statement of the mutation. It is the session
	// transaction, so the id selection and the table statements read
	// the same snapshot.
	Conn dialect.ExecQuerier
	// Dialect is the dialect of Conn.
	Dialect string
	// Schema resolves entity names.
	Schema *sqlgraph.Schema
	// Options are the options of the executed statement.
	Options QueryOptions
	// Filters are the filters enabled on the session.
	Filters []EnabledFilter
	// Cleanups receives cleanups deferred to the end of the session.
	Cleanups *Cleanups
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// RegisterCleanup defers fn to the end of the session.
func (ec *ExecutionContext) RegisterCleanup(key string, fn CleanupFunc) error {
	if ec.Cleanups == nil {
		return fmt.Errorf("%w: deferred cleanup of %s requires a session", ErrUnsupportedConfiguration, key)
	}
	if ec.Cleanups.Register(key, fn) {
		ec.logger().Debug("registered deferred cleanup", "session", ec.SessionID, "key", key)
	}
	return nil
}

func (ec *ExecutionContext) logger() *slog.Logger {
	if ec.Logger != nil {
		return ec.Logger
	}
	return slog.Default()
}

func (ec *ExecutionContext) entity(name string) (*sqlgraph.Entity, error) {
	if ec.Schema == nil {
		return nil, fmt.Errorf("mutation: no mapping to resolve %q", name)
	}
	e, ok := ec.Schema.Entity(name)
	if !ok {
		return nil, fmt.Errorf("mutation: unknown entity %q", name)
	}
	return e, nil
}
